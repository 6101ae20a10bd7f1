package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
)

type Status string

const (
	StatusActive   Status = "active"
	StatusOnHold   Status = "on_hold"
	StatusClosed   Status = "closed"
	StatusArchived Status = "archived"
)

type Stage string

const (
	StageInitialContact Stage = "initial_contact"
	StageNegotiation    Stage = "negotiation"
	StageArrangement    Stage = "arrangement"
	StageLegal          Stage = "legal"
	StageSettled        Stage = "settled"
)

func ParseStatus(value string) (Status, bool) {
	switch Status(value) {
	case StatusActive, StatusOnHold, StatusClosed, StatusArchived:
		return Status(value), true
	default:
		return "", false
	}
}

func ParseStage(value string) (Stage, bool) {
	switch Stage(value) {
	case StageInitialContact, StageNegotiation, StageArrangement, StageLegal, StageSettled:
		return Stage(value), true
	default:
		return "", false
	}
}

// Case mirrors an upstream collection case. All monetary columns are exact
// decimals; OutstandingAmount is a cache recomputed by the ledger engine
// whenever a payment or adjustment field changes.
type Case struct {
	ID            snowflake.ID `gorm:"primaryKey" json:"id"`
	OrgID         snowflake.ID `gorm:"not null;index" json:"organisation_id"`
	AccountNumber string       `gorm:"not null;index" json:"account_number"`
	CaseName      string       `json:"case_name"`
	ExternalRef   *string      `gorm:"uniqueIndex:ux_cases_external_ref" json:"external_ref,omitempty"`

	DebtorName    string `json:"debtor_name,omitempty"`
	DebtorEmail   string `json:"debtor_email,omitempty"`
	DebtorPhone   string `json:"debtor_phone,omitempty"`
	DebtorAddress string `json:"debtor_address,omitempty"`

	OriginalAmount    decimal.Decimal `gorm:"type:numeric(18,2);not null" json:"original_amount"`
	CostsAdded        decimal.Decimal `gorm:"type:numeric(18,2);not null" json:"costs_added"`
	InterestAdded     decimal.Decimal `gorm:"type:numeric(18,2);not null" json:"interest_added"`
	FeesAdded         decimal.Decimal `gorm:"type:numeric(18,2);not null" json:"fees_added"`
	OutstandingAmount decimal.Decimal `gorm:"type:numeric(18,2);not null" json:"outstanding_amount"`

	Status     Status     `gorm:"type:text;not null;default:active" json:"status"`
	Stage      Stage      `gorm:"type:text;not null;default:initial_contact" json:"stage"`
	AssignedTo string     `json:"assigned_to,omitempty"`
	ArchivedAt *time.Time `json:"archived_at,omitempty"`
	CreatedAt  time.Time  `gorm:"not null;default:CURRENT_TIMESTAMP" json:"created_at"`
	UpdatedAt  time.Time  `gorm:"not null;default:CURRENT_TIMESTAMP" json:"updated_at"`
}

func (Case) TableName() string { return "cases" }
