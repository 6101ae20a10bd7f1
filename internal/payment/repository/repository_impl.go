package repository

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/casebridge/internal/payment/domain"
	"gorm.io/gorm"
)

type repo struct{}

func Provide() domain.Repository {
	return &repo{}
}

func (r *repo) Insert(ctx context.Context, db *gorm.DB, payment *domain.Payment) error {
	return db.WithContext(ctx).Exec(
		`INSERT INTO payments (
			id, case_id, external_ref, reference,
			amount, payment_date, method, notes,
			deleted_at, created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		payment.ID,
		payment.CaseID,
		payment.ExternalRef,
		payment.Reference,
		payment.Amount,
		payment.PaymentDate,
		payment.Method,
		payment.Notes,
		payment.DeletedAt,
		payment.CreatedAt,
		payment.UpdatedAt,
	).Error
}

func (r *repo) Update(ctx context.Context, db *gorm.DB, payment *domain.Payment) error {
	return db.WithContext(ctx).Exec(
		`UPDATE payments SET
			reference = ?, amount = ?, payment_date = ?, method = ?, notes = ?, updated_at = ?
		 WHERE id = ?`,
		payment.Reference,
		payment.Amount,
		payment.PaymentDate,
		payment.Method,
		payment.Notes,
		payment.UpdatedAt,
		payment.ID,
	).Error
}

func (r *repo) FindByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*domain.Payment, error) {
	return r.findOne(ctx, db, `SELECT * FROM payments WHERE id = ?`, id)
}

func (r *repo) FindByExternalRef(ctx context.Context, db *gorm.DB, externalRef string) (*domain.Payment, error) {
	return r.findOne(ctx, db, `SELECT * FROM payments WHERE external_ref = ?`, externalRef)
}

func (r *repo) findOne(ctx context.Context, db *gorm.DB, query string, args ...any) (*domain.Payment, error) {
	var payment domain.Payment
	err := db.WithContext(ctx).Raw(query, args...).Scan(&payment).Error
	if err != nil {
		return nil, err
	}
	if payment.ID == 0 {
		return nil, nil
	}
	return &payment, nil
}

func (r *repo) ListByCase(ctx context.Context, db *gorm.DB, caseID snowflake.ID) ([]domain.Payment, error) {
	var payments []domain.Payment
	err := db.WithContext(ctx).
		Raw(`SELECT * FROM payments WHERE case_id = ? AND deleted_at IS NULL ORDER BY payment_date, id`, caseID).
		Scan(&payments).Error
	if err != nil {
		return nil, err
	}
	return payments, nil
}

func (r *repo) SoftDelete(ctx context.Context, db *gorm.DB, id snowflake.ID, deletedAt time.Time) error {
	return db.WithContext(ctx).Exec(
		`UPDATE payments SET deleted_at = ?, updated_at = ? WHERE id = ? AND deleted_at IS NULL`,
		deletedAt, deletedAt, id,
	).Error
}
