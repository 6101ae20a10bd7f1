package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
)

// Organisation is the portal-side record for an upstream organisation.
// ExternalRef is the reconciliation key issued by the system of record.
type Organisation struct {
	ID           snowflake.ID `gorm:"primaryKey" json:"id"`
	Name         string       `gorm:"not null" json:"name"`
	ExternalRef  *string      `gorm:"uniqueIndex:ux_organisations_external_ref" json:"external_ref,omitempty"`
	ContactName  string       `json:"contact_name,omitempty"`
	ContactEmail string       `json:"contact_email,omitempty"`
	ContactPhone string       `json:"contact_phone,omitempty"`
	Address      string       `json:"address,omitempty"`
	CreatedAt    time.Time    `gorm:"not null;default:CURRENT_TIMESTAMP" json:"created_at"`
	UpdatedAt    time.Time    `gorm:"not null;default:CURRENT_TIMESTAMP" json:"updated_at"`
}

func (Organisation) TableName() string { return "organisations" }
