package repository

import (
	"context"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/casebridge/internal/organization/domain"
	"gorm.io/gorm"
)

type repo struct{}

func Provide() domain.Repository {
	return &repo{}
}

func (r *repo) Insert(ctx context.Context, db *gorm.DB, org *domain.Organisation) error {
	return db.WithContext(ctx).Exec(
		`INSERT INTO organisations (id, name, external_ref, contact_name, contact_email, contact_phone, address, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		org.ID,
		org.Name,
		org.ExternalRef,
		org.ContactName,
		org.ContactEmail,
		org.ContactPhone,
		org.Address,
		org.CreatedAt,
		org.UpdatedAt,
	).Error
}

func (r *repo) Update(ctx context.Context, db *gorm.DB, org *domain.Organisation) error {
	return db.WithContext(ctx).Exec(
		`UPDATE organisations
		 SET name = ?, external_ref = ?, contact_name = ?, contact_email = ?, contact_phone = ?, address = ?, updated_at = ?
		 WHERE id = ?`,
		org.Name,
		org.ExternalRef,
		org.ContactName,
		org.ContactEmail,
		org.ContactPhone,
		org.Address,
		org.UpdatedAt,
		org.ID,
	).Error
}

func (r *repo) FindByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*domain.Organisation, error) {
	var org domain.Organisation
	err := db.WithContext(ctx).Raw(
		`SELECT * FROM organisations WHERE id = ?`, id,
	).Scan(&org).Error
	if err != nil {
		return nil, err
	}
	if org.ID == 0 {
		return nil, nil
	}
	return &org, nil
}

func (r *repo) FindByExternalRef(ctx context.Context, db *gorm.DB, externalRef string) (*domain.Organisation, error) {
	var org domain.Organisation
	err := db.WithContext(ctx).Raw(
		`SELECT * FROM organisations WHERE external_ref = ?`, externalRef,
	).Scan(&org).Error
	if err != nil {
		return nil, err
	}
	if org.ID == 0 {
		return nil, nil
	}
	return &org, nil
}
