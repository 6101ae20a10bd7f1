package domain

import (
	"context"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"
)

type Repository interface {
	Insert(ctx context.Context, db *gorm.DB, org *Organisation) error
	Update(ctx context.Context, db *gorm.DB, org *Organisation) error
	FindByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*Organisation, error)
	FindByExternalRef(ctx context.Context, db *gorm.DB, externalRef string) (*Organisation, error)
}
