package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
)

// Activity is one append-only timeline entry on a case. Activities never
// touch the ledger: a payment-looking activity is narrative only.
type Activity struct {
	ID          snowflake.ID `gorm:"primaryKey" json:"id"`
	CaseID      snowflake.ID `gorm:"not null;index" json:"case_id"`
	ExternalRef *string      `gorm:"uniqueIndex:ux_activities_external_ref" json:"external_ref,omitempty"`
	Type        string       `gorm:"not null" json:"type"`
	Description string       `json:"description,omitempty"`
	OccurredAt  time.Time    `gorm:"not null;index" json:"occurred_at"`
	CreatedAt   time.Time    `gorm:"not null;default:CURRENT_TIMESTAMP" json:"created_at"`
}

func (Activity) TableName() string { return "activities" }

// MessageOrigin says which side of the boundary wrote the message.
type MessageOrigin string

const (
	OriginUser  MessageOrigin = "user"
	OriginAdmin MessageOrigin = "admin"
)

// CaseMessage is correspondence attached to a case. Messages are append-only
// and routed to recipients by the notification router when they land.
type CaseMessage struct {
	ID          snowflake.ID  `gorm:"primaryKey" json:"id"`
	CaseID      snowflake.ID  `gorm:"not null;index" json:"case_id"`
	ExternalRef *string       `gorm:"uniqueIndex:ux_case_messages_external_ref" json:"external_ref,omitempty"`
	Origin      MessageOrigin `gorm:"type:text;not null" json:"origin"`
	AuthorName  string        `json:"author_name,omitempty"`
	Subject     string        `json:"subject,omitempty"`
	Body        string        `gorm:"not null" json:"body"`
	SentAt      time.Time     `gorm:"not null;index" json:"sent_at"`
	CreatedAt   time.Time     `gorm:"not null;default:CURRENT_TIMESTAMP" json:"created_at"`
}

func (CaseMessage) TableName() string { return "case_messages" }
