package domain

import (
	"context"
	"errors"

	"github.com/bwmarrin/snowflake"
)

// UpsertOutcome reports whether a resolve created or updated the entity.
type UpsertOutcome string

const (
	OutcomeCreated UpsertOutcome = "created"
	OutcomeUpdated UpsertOutcome = "updated"
)

type UpsertOrganisationRequest struct {
	ExternalRef  string `json:"external_ref"`
	Name         string `json:"name"`
	ContactName  string `json:"contact_name"`
	ContactEmail string `json:"contact_email"`
	ContactPhone string `json:"contact_phone"`
	Address      string `json:"address"`
}

type UpsertOrganisationResponse struct {
	Outcome      UpsertOutcome `json:"outcome"`
	Organisation Organisation  `json:"organisation"`
}

type Service interface {
	Upsert(ctx context.Context, req UpsertOrganisationRequest) (UpsertOrganisationResponse, error)
	GetByID(ctx context.Context, id snowflake.ID) (Organisation, error)
	GetByExternalRef(ctx context.Context, externalRef string) (Organisation, error)
}

var (
	ErrInvalidExternalRef = errors.New("invalid_external_ref")
	ErrInvalidName        = errors.New("invalid_name")
	ErrNotFound           = errors.New("organisation_not_found")
)
