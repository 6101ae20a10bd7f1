package domain

import (
	"context"
	"errors"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
)

type UpsertOutcome string

const (
	OutcomeCreated UpsertOutcome = "created"
	OutcomeUpdated UpsertOutcome = "updated"
)

// UpsertPaymentRequest carries raw external payload values. Amount and
// PaymentDate stay strings until the normalizer accepts them.
type UpsertPaymentRequest struct {
	ExternalRef     string `json:"external_ref"`
	CaseExternalRef string `json:"case_external_ref"`
	Reference       string `json:"reference"`
	Amount          string `json:"amount"`
	PaymentDate     string `json:"payment_date"`
	Method          string `json:"method"`
	Notes           string `json:"notes"`
}

type UpsertPaymentResponse struct {
	OutcomeUpsert UpsertOutcome   `json:"outcome"`
	Payment       Payment         `json:"payment"`
	Outstanding   decimal.Decimal `json:"outstanding_amount"`
}

type ReversePaymentResponse struct {
	Original    Payment         `json:"original"`
	Reversal    Payment         `json:"reversal"`
	Outstanding decimal.Decimal `json:"outstanding_amount"`
}

type DeletePaymentResponse struct {
	Payment     Payment         `json:"payment"`
	Outstanding decimal.Decimal `json:"outstanding_amount"`
}

type Service interface {
	Upsert(ctx context.Context, req UpsertPaymentRequest) (UpsertPaymentResponse, error)
	Delete(ctx context.Context, externalRef string) (DeletePaymentResponse, error)

	// Reverse neutralizes a payment by appending a negated counter-entry.
	// The original row is untouched so the ledger history stays append-only.
	Reverse(ctx context.Context, externalRef, reason string) (ReversePaymentResponse, error)
	GetByExternalRef(ctx context.Context, externalRef string) (Payment, error)
	ListByCase(ctx context.Context, caseID snowflake.ID) ([]Payment, error)
}

var (
	ErrInvalidExternalRef = errors.New("invalid_external_ref")
	ErrInvalidCaseRef     = errors.New("invalid_case_external_ref")
	ErrNotFound           = errors.New("payment_not_found")
	ErrDependencyNotFound = errors.New("dependency_not_found")
	ErrDeleted            = errors.New("payment_deleted")

	// ErrCaseMismatch: the push re-sent a known payment under a different
	// case. The binding is immutable, so the conflicting push is rejected.
	ErrCaseMismatch = errors.New("payment_case_mismatch")

	ErrAlreadyReversed = errors.New("payment_already_reversed")
)
