package domain

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"
)

type Repository interface {
	Insert(ctx context.Context, db *gorm.DB, record *Case) error
	Update(ctx context.Context, db *gorm.DB, record *Case) error
	FindByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*Case, error)
	FindByExternalRef(ctx context.Context, db *gorm.DB, externalRef string) (*Case, error)
	FindByAccountNumber(ctx context.Context, db *gorm.DB, orgID snowflake.ID, accountNumber string) (*Case, error)
	Archive(ctx context.Context, db *gorm.DB, id snowflake.ID, archivedAt time.Time) error

	// DeleteCascade removes the case and its dependent payments, activities,
	// messages, mutes and blocks. Callers run it inside a transaction.
	DeleteCascade(ctx context.Context, db *gorm.DB, id snowflake.ID) error
}
