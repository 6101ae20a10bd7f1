package repository

import (
	"context"
	"strings"

	"github.com/smallbiznis/casebridge/internal/audit/domain"
	"gorm.io/gorm"
)

type repo struct{}

func Provide() domain.Repository {
	return &repo{}
}

func (r *repo) Insert(ctx context.Context, db *gorm.DB, entry *domain.AuditLog) error {
	if entry == nil {
		return nil
	}
	return db.WithContext(ctx).Exec(
		`INSERT INTO audit_logs (
			id, table_name, record_id, operation, field, old_value, new_value,
			actor, description, created_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		entry.ID,
		entry.Table,
		entry.RecordID,
		entry.Operation,
		entry.Field,
		entry.OldValue,
		entry.NewValue,
		entry.Actor,
		entry.Description,
		entry.CreatedAt,
	).Error
}

func (r *repo) HasView(ctx context.Context, db *gorm.DB, tableName, recordID, actor string) (bool, error) {
	var count int64
	err := db.WithContext(ctx).Model(&domain.AuditLog{}).
		Where("table_name = ? AND record_id = ? AND actor = ? AND operation = ?",
			tableName, recordID, actor, domain.OperationView).
		Count(&count).Error
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

func (r *repo) List(ctx context.Context, db *gorm.DB, filter domain.ListFilter) ([]*domain.AuditLog, error) {
	var logs []*domain.AuditLog
	stmt := db.WithContext(ctx).Model(&domain.AuditLog{})

	if tableName := strings.TrimSpace(filter.TableName); tableName != "" {
		stmt = stmt.Where("table_name = ?", tableName)
	}
	if recordID := strings.TrimSpace(filter.RecordID); recordID != "" {
		stmt = stmt.Where("record_id = ?", recordID)
	}
	if operation := strings.TrimSpace(filter.Operation); operation != "" {
		stmt = stmt.Where("operation = ?", strings.ToUpper(operation))
	}
	if actor := strings.TrimSpace(filter.Actor); actor != "" {
		stmt = stmt.Where("actor = ?", actor)
	}
	if filter.StartAt != nil {
		stmt = stmt.Where("created_at >= ?", filter.StartAt.UTC())
	}
	if filter.EndAt != nil {
		stmt = stmt.Where("created_at <= ?", filter.EndAt.UTC())
	}
	if filter.Cursor != nil {
		stmt = stmt.Where("(created_at < ?) OR (created_at = ? AND id < ?)",
			filter.Cursor.CreatedAt,
			filter.Cursor.CreatedAt,
			filter.Cursor.ID,
		)
	}

	stmt = stmt.Order("created_at desc, id desc")
	if filter.Limit > 0 {
		stmt = stmt.Limit(filter.Limit + 1)
	}

	if err := stmt.Find(&logs).Error; err != nil {
		return nil, err
	}
	return logs, nil
}
