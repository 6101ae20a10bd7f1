package domain

import (
	"context"
	"errors"

	"github.com/bwmarrin/snowflake"
)

type AppendOutcome string

const (
	OutcomeCreated AppendOutcome = "created"

	// OutcomeDuplicate: the push re-sent an entry already in the timeline.
	// Append-only data is never updated in place, so the re-send is a no-op.
	OutcomeDuplicate AppendOutcome = "duplicate"
)

type AppendActivityRequest struct {
	CaseExternalRef string
	ExternalRef     string
	Type            string
	Description     string
	OccurredAt      string
}

type AppendActivityResponse struct {
	Outcome  AppendOutcome `json:"outcome"`
	Activity Activity      `json:"activity"`
}

type AppendMessageRequest struct {
	CaseExternalRef string
	ExternalRef     string
	Origin          string
	AuthorName      string
	Subject         string
	Body            string
	SentAt          string

	// SuppressNotifications stores the message without routing it. Used for
	// historical imports where re-notifying would spam every recipient.
	SuppressNotifications bool
}

type AppendMessageResponse struct {
	Outcome AppendOutcome `json:"outcome"`
	Message CaseMessage   `json:"message"`
}

type Service interface {
	AppendActivity(ctx context.Context, req AppendActivityRequest) (AppendActivityResponse, error)
	AppendMessage(ctx context.Context, req AppendMessageRequest) (AppendMessageResponse, error)
	ListActivities(ctx context.Context, caseID snowflake.ID) ([]Activity, error)
	ListMessages(ctx context.Context, caseID snowflake.ID) ([]CaseMessage, error)
}

var (
	ErrInvalidCaseRef     = errors.New("invalid_case_external_ref")
	ErrInvalidType        = errors.New("invalid_activity_type")
	ErrInvalidOrigin      = errors.New("invalid_message_origin")
	ErrInvalidBody        = errors.New("invalid_message_body")
	ErrDependencyNotFound = errors.New("dependency_not_found")
)
