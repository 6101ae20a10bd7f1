package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
)

// Operation classifies an audit entry.
type Operation string

const (
	OperationInsert   Operation = "INSERT"
	OperationUpdate   Operation = "UPDATE"
	OperationDelete   Operation = "DELETE"
	OperationView     Operation = "VIEW"
	OperationDownload Operation = "DOWNLOAD"
)

// AuditLog is an append-only record of a mutation or access. Rows are never
// updated or deleted after insert.
type AuditLog struct {
	ID          snowflake.ID `gorm:"primaryKey" json:"id"`
	Table       string       `gorm:"column:table_name;not null;index" json:"table_name"`
	RecordID    string       `gorm:"not null;index" json:"record_id"`
	Operation   Operation    `gorm:"type:text;not null;index" json:"operation"`
	Field       *string      `json:"field,omitempty"`
	OldValue    *string      `json:"old_value,omitempty"`
	NewValue    *string      `json:"new_value,omitempty"`
	Actor       string       `gorm:"not null;index" json:"actor"`
	Description string       `json:"description,omitempty"`
	CreatedAt   time.Time    `gorm:"not null;default:CURRENT_TIMESTAMP" json:"created_at"`
}

func (AuditLog) TableName() string { return "audit_logs" }
