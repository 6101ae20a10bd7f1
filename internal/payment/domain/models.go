package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
)

// Payment is a ledger entry against a case. Rows are soft-deleted so a
// removed payment stays visible to reconciliation and audit queries; the
// ledger engine skips rows with a deleted_at.
//
// A payment's case binding is immutable. Moving money between cases is done
// with a reversal plus a fresh payment, never by repointing case_id.
type Payment struct {
	ID          snowflake.ID `gorm:"primaryKey" json:"id"`
	CaseID      snowflake.ID `gorm:"not null;index" json:"case_id"`
	ExternalRef *string      `gorm:"uniqueIndex:ux_payments_external_ref" json:"external_ref,omitempty"`
	Reference   string       `json:"reference"`

	Amount      decimal.Decimal `gorm:"type:numeric(18,2);not null" json:"amount"`
	PaymentDate time.Time       `gorm:"not null" json:"payment_date"`
	Method      string          `json:"method,omitempty"`
	Notes       string          `json:"notes,omitempty"`

	DeletedAt *time.Time `gorm:"index" json:"deleted_at,omitempty"`
	CreatedAt time.Time  `gorm:"not null;default:CURRENT_TIMESTAMP" json:"created_at"`
	UpdatedAt time.Time  `gorm:"not null;default:CURRENT_TIMESTAMP" json:"updated_at"`
}

func (Payment) TableName() string { return "payments" }
