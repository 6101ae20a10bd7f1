package domain

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"
)

type ListFilter struct {
	TableName string
	RecordID  string
	Operation string
	Actor     string
	StartAt   *time.Time
	EndAt     *time.Time
	Cursor    *ListCursor
	Limit     int
}

type ListCursor struct {
	ID        snowflake.ID
	CreatedAt time.Time
}

type Repository interface {
	Insert(ctx context.Context, db *gorm.DB, entry *AuditLog) error
	HasView(ctx context.Context, db *gorm.DB, tableName, recordID, actor string) (bool, error)
	List(ctx context.Context, db *gorm.DB, filter ListFilter) ([]*AuditLog, error)
}
