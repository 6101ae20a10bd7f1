package domain

import (
	"context"
	"errors"

	"github.com/bwmarrin/snowflake"
)

type UpsertOutcome string

const (
	OutcomeCreated UpsertOutcome = "created"
	OutcomeUpdated UpsertOutcome = "updated"
)

// UpsertCaseRequest carries raw external payload values. Monetary fields stay
// strings until the normalizer accepts them; an empty string means "not
// provided" and leaves the stored value untouched.
type UpsertCaseRequest struct {
	ExternalRef             string `json:"external_ref"`
	OrganisationExternalRef string `json:"organisation_external_ref"`
	AccountNumber           string `json:"account_number"`
	CaseName                string `json:"case_name"`

	DebtorName    string `json:"debtor_name"`
	DebtorEmail   string `json:"debtor_email"`
	DebtorPhone   string `json:"debtor_phone"`
	DebtorAddress string `json:"debtor_address"`

	OriginalAmount string `json:"original_amount"`
	CostsAdded     string `json:"costs_added"`
	InterestAdded  string `json:"interest_added"`
	FeesAdded      string `json:"fees_added"`

	Status     string `json:"status"`
	Stage      string `json:"stage"`
	AssignedTo string `json:"assigned_to"`
}

type UpsertCaseResponse struct {
	Outcome UpsertOutcome `json:"outcome"`
	Case    Case          `json:"case"`
}

type Service interface {
	Upsert(ctx context.Context, req UpsertCaseRequest) (UpsertCaseResponse, error)
	GetByID(ctx context.Context, id snowflake.ID) (Case, error)
	GetByExternalRef(ctx context.Context, externalRef string) (Case, error)
	Archive(ctx context.Context, id snowflake.ID) error
	Delete(ctx context.Context, id snowflake.ID) error
}

var (
	ErrInvalidExternalRef   = errors.New("invalid_external_ref")
	ErrInvalidAccountNumber = errors.New("invalid_account_number")
	ErrInvalidStatus        = errors.New("invalid_status")
	ErrInvalidStage         = errors.New("invalid_stage")
	ErrNotFound             = errors.New("case_not_found")
	ErrDependencyNotFound   = errors.New("dependency_not_found")

	// ErrDuplicateReference: the account-number fallback matched a case that
	// already carries a different external reference. Attaching a second
	// reference would split the reconciliation key, so the push is rejected.
	ErrDuplicateReference = errors.New("duplicate_reference")
)
