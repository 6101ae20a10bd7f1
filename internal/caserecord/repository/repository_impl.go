package repository

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/casebridge/internal/caserecord/domain"
	"gorm.io/gorm"
)

type repo struct{}

func Provide() domain.Repository {
	return &repo{}
}

func (r *repo) Insert(ctx context.Context, db *gorm.DB, record *domain.Case) error {
	return db.WithContext(ctx).Exec(
		`INSERT INTO cases (
			id, org_id, account_number, case_name, external_ref,
			debtor_name, debtor_email, debtor_phone, debtor_address,
			original_amount, costs_added, interest_added, fees_added, outstanding_amount,
			status, stage, assigned_to, archived_at, created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		record.ID,
		record.OrgID,
		record.AccountNumber,
		record.CaseName,
		record.ExternalRef,
		record.DebtorName,
		record.DebtorEmail,
		record.DebtorPhone,
		record.DebtorAddress,
		record.OriginalAmount,
		record.CostsAdded,
		record.InterestAdded,
		record.FeesAdded,
		record.OutstandingAmount,
		record.Status,
		record.Stage,
		record.AssignedTo,
		record.ArchivedAt,
		record.CreatedAt,
		record.UpdatedAt,
	).Error
}

// Update never touches outstanding_amount: that column belongs to the ledger
// engine, and writing a copy read outside the engine's transaction could
// overwrite a recompute that committed in between.
func (r *repo) Update(ctx context.Context, db *gorm.DB, record *domain.Case) error {
	return db.WithContext(ctx).Exec(
		`UPDATE cases SET
			org_id = ?, account_number = ?, case_name = ?, external_ref = ?,
			debtor_name = ?, debtor_email = ?, debtor_phone = ?, debtor_address = ?,
			original_amount = ?, costs_added = ?, interest_added = ?, fees_added = ?,
			status = ?, stage = ?, assigned_to = ?, archived_at = ?, updated_at = ?
		 WHERE id = ?`,
		record.OrgID,
		record.AccountNumber,
		record.CaseName,
		record.ExternalRef,
		record.DebtorName,
		record.DebtorEmail,
		record.DebtorPhone,
		record.DebtorAddress,
		record.OriginalAmount,
		record.CostsAdded,
		record.InterestAdded,
		record.FeesAdded,
		record.Status,
		record.Stage,
		record.AssignedTo,
		record.ArchivedAt,
		record.UpdatedAt,
		record.ID,
	).Error
}

func (r *repo) FindByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*domain.Case, error) {
	return r.findOne(ctx, db, `SELECT * FROM cases WHERE id = ?`, id)
}

func (r *repo) FindByExternalRef(ctx context.Context, db *gorm.DB, externalRef string) (*domain.Case, error) {
	return r.findOne(ctx, db, `SELECT * FROM cases WHERE external_ref = ?`, externalRef)
}

func (r *repo) FindByAccountNumber(ctx context.Context, db *gorm.DB, orgID snowflake.ID, accountNumber string) (*domain.Case, error) {
	return r.findOne(ctx, db,
		`SELECT * FROM cases WHERE org_id = ? AND account_number = ? ORDER BY created_at LIMIT 1`,
		orgID, accountNumber,
	)
}

func (r *repo) findOne(ctx context.Context, db *gorm.DB, query string, args ...any) (*domain.Case, error) {
	var record domain.Case
	err := db.WithContext(ctx).Raw(query, args...).Scan(&record).Error
	if err != nil {
		return nil, err
	}
	if record.ID == 0 {
		return nil, nil
	}
	return &record, nil
}

func (r *repo) Archive(ctx context.Context, db *gorm.DB, id snowflake.ID, archivedAt time.Time) error {
	return db.WithContext(ctx).Exec(
		`UPDATE cases SET status = ?, archived_at = ?, updated_at = ? WHERE id = ?`,
		domain.StatusArchived, archivedAt, archivedAt, id,
	).Error
}

func (r *repo) DeleteCascade(ctx context.Context, db *gorm.DB, id snowflake.ID) error {
	statements := []string{
		`DELETE FROM payments WHERE case_id = ?`,
		`DELETE FROM activities WHERE case_id = ?`,
		`DELETE FROM case_messages WHERE case_id = ?`,
		`DELETE FROM case_mutes WHERE case_id = ?`,
		`DELETE FROM case_blocks WHERE case_id = ?`,
		`DELETE FROM cases WHERE id = ?`,
	}
	for _, stmt := range statements {
		if err := db.WithContext(ctx).Exec(stmt, id).Error; err != nil {
			return err
		}
	}
	return nil
}
