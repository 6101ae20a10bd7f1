package domain

import (
	"context"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"
)

type Repository interface {
	InsertActivity(ctx context.Context, db *gorm.DB, activity *Activity) error
	FindActivityByExternalRef(ctx context.Context, db *gorm.DB, externalRef string) (*Activity, error)
	ListActivitiesByCase(ctx context.Context, db *gorm.DB, caseID snowflake.ID) ([]Activity, error)

	InsertMessage(ctx context.Context, db *gorm.DB, message *CaseMessage) error
	FindMessageByExternalRef(ctx context.Context, db *gorm.DB, externalRef string) (*CaseMessage, error)
	ListMessagesByCase(ctx context.Context, db *gorm.DB, caseID snowflake.ID) ([]CaseMessage, error)
}
