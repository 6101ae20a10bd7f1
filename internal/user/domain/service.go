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

type UpsertUserRequest struct {
	ExternalRef             string `json:"external_ref"`
	FirstName               string `json:"first_name"`
	LastName                string `json:"last_name"`
	Email                   string `json:"email"`
	OrganisationExternalRef string `json:"organisation_external_ref"`
	IsAdmin                 bool   `json:"is_admin"`
}

type UpsertUserResponse struct {
	Outcome UpsertOutcome `json:"outcome"`
	User    User          `json:"user"`

	// TempPassword is set only when the upsert created the user; it is shown
	// once and never stored in plaintext.
	TempPassword string `json:"temp_password,omitempty"`
}

type Service interface {
	Upsert(ctx context.Context, req UpsertUserRequest) (UpsertUserResponse, error)
	GetByID(ctx context.Context, id snowflake.ID) (User, error)
	FindAssignedAdmin(ctx context.Context, displayName string) (*User, error)
	ListByOrganisation(ctx context.Context, orgID snowflake.ID) ([]User, error)

	MuteCase(ctx context.Context, userID, caseID snowflake.ID) error
	UnmuteCase(ctx context.Context, userID, caseID snowflake.ID) error
	IsMuted(ctx context.Context, userID, caseID snowflake.ID) (bool, error)
	BlockCase(ctx context.Context, userID, caseID snowflake.ID) error
	UnblockCase(ctx context.Context, userID, caseID snowflake.ID) error
	IsBlocked(ctx context.Context, userID, caseID snowflake.ID) (bool, error)

	// AutoMuteNewCase mutes the new case for every member of the organisation
	// that opted into auto-muting. Runs for single upserts and bulk batches.
	AutoMuteNewCase(ctx context.Context, orgID, caseID snowflake.ID) error
}

var (
	ErrInvalidExternalRef = errors.New("invalid_external_ref")
	ErrInvalidEmail       = errors.New("invalid_email")
	ErrInvalidName        = errors.New("invalid_name")
	ErrNotFound           = errors.New("user_not_found")
	ErrDependencyNotFound = errors.New("dependency_not_found")
)
