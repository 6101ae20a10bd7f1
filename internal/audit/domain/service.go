package domain

import (
	"context"
	"errors"
	"time"

	"github.com/smallbiznis/casebridge/pkg/db/pagination"
)

// Change describes a single auditable mutation. Field/OldValue/NewValue are
// optional and carry the before/after of a field-level update.
type Change struct {
	TableName   string
	RecordID    string
	Operation   Operation
	Field       *string
	OldValue    *string
	NewValue    *string
	Description string
}

type ListAuditLogRequest struct {
	pagination.Pagination
	TableName string
	RecordID  string
	Operation string
	Actor     string
	StartAt   *time.Time
	EndAt     *time.Time
}

type ListAuditLogResponse struct {
	pagination.PageInfo
	AuditLogs []AuditLog `json:"audit_logs"`
}

// Service records and queries the audit trail. RecordChange and RecordView
// are best-effort: a sink failure is logged and swallowed so the business
// mutation it accompanies still succeeds.
type Service interface {
	RecordChange(ctx context.Context, change Change)
	RecordView(ctx context.Context, tableName, recordID string)
	List(ctx context.Context, req ListAuditLogRequest) (ListAuditLogResponse, error)
}

var (
	ErrInvalidPageToken = errors.New("invalid_page_token")
	ErrInvalidTimeRange = errors.New("invalid_time_range")
)
