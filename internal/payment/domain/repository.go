package domain

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"
)

type Repository interface {
	Insert(ctx context.Context, db *gorm.DB, payment *Payment) error
	Update(ctx context.Context, db *gorm.DB, payment *Payment) error
	FindByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*Payment, error)

	// FindByExternalRef matches soft-deleted rows too; callers decide whether
	// a deleted payment counts for their operation.
	FindByExternalRef(ctx context.Context, db *gorm.DB, externalRef string) (*Payment, error)
	ListByCase(ctx context.Context, db *gorm.DB, caseID snowflake.ID) ([]Payment, error)
	SoftDelete(ctx context.Context, db *gorm.DB, id snowflake.ID, deletedAt time.Time) error
}
