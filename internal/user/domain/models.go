package domain

import (
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/datatypes"
)

// Role is the single role variant consulted at every authorization and
// routing decision point.
type Role string

const (
	RoleAdmin      Role = "admin"
	RoleSuperAdmin Role = "superadmin"
	RoleMember     Role = "member"
	RoleOwner      Role = "owner"
)

func (r Role) IsAdmin() bool {
	return r == RoleAdmin || r == RoleSuperAdmin
}

// Notification preference keys stored in User.Preferences.
const (
	PrefNotifyCaseMessages = "notify_case_messages"
	PrefNotifyCaseUpdates  = "notify_case_updates"
	PrefNotifyDocuments    = "notify_documents"
	PrefAutoMuteNewCases   = "auto_mute_new_cases"
)

type User struct {
	ID                 snowflake.ID      `gorm:"primaryKey" json:"id"`
	FirstName          string            `gorm:"not null" json:"first_name"`
	LastName           string            `gorm:"not null" json:"last_name"`
	Email              string            `gorm:"not null;uniqueIndex:ux_users_email" json:"email"`
	ExternalRef        *string           `gorm:"uniqueIndex:ux_users_external_ref" json:"external_ref,omitempty"`
	Role               Role              `gorm:"type:text;not null;default:member" json:"role"`
	PasswordHash       string            `gorm:"not null" json:"-"`
	MustChangePassword bool              `gorm:"not null;default:true" json:"must_change_password"`
	Preferences        datatypes.JSONMap `gorm:"type:jsonb;not null;default:'{}'" json:"preferences,omitempty"`
	CreatedAt          time.Time         `gorm:"not null;default:CURRENT_TIMESTAMP" json:"created_at"`
	UpdatedAt          time.Time         `gorm:"not null;default:CURRENT_TIMESTAMP" json:"updated_at"`
}

func (User) TableName() string { return "users" }

// DisplayName is the handler name the external system uses in a case's
// assigned_to field.
func (u User) DisplayName() string {
	return strings.TrimSpace(u.FirstName + " " + u.LastName)
}

// PrefEnabled reads a boolean preference; absent keys default to enabled for
// notification categories and disabled for auto-mute.
func (u User) PrefEnabled(key string) bool {
	value, ok := u.Preferences[key]
	if !ok {
		return key != PrefAutoMuteNewCases
	}
	enabled, ok := value.(bool)
	if !ok {
		return key != PrefAutoMuteNewCases
	}
	return enabled
}

// Membership assigns a user to an organisation with a member or owner role.
type Membership struct {
	ID        snowflake.ID `gorm:"primaryKey" json:"id"`
	UserID    snowflake.ID `gorm:"not null;uniqueIndex:ux_memberships_user_org,priority:1" json:"user_id"`
	OrgID     snowflake.ID `gorm:"not null;uniqueIndex:ux_memberships_user_org,priority:2;index" json:"organisation_id"`
	Role      Role         `gorm:"type:text;not null;default:member" json:"role"`
	CreatedAt time.Time    `gorm:"not null;default:CURRENT_TIMESTAMP" json:"created_at"`
}

func (Membership) TableName() string { return "org_memberships" }

// CaseMute suppresses notifications for one user on one case.
type CaseMute struct {
	UserID    snowflake.ID `gorm:"primaryKey" json:"user_id"`
	CaseID    snowflake.ID `gorm:"primaryKey" json:"case_id"`
	CreatedAt time.Time    `gorm:"not null;default:CURRENT_TIMESTAMP" json:"created_at"`
}

func (CaseMute) TableName() string { return "case_mutes" }

// CaseBlock denies a user visibility of one case entirely.
type CaseBlock struct {
	UserID    snowflake.ID `gorm:"primaryKey" json:"user_id"`
	CaseID    snowflake.ID `gorm:"primaryKey" json:"case_id"`
	CreatedAt time.Time    `gorm:"not null;default:CURRENT_TIMESTAMP" json:"created_at"`
}

func (CaseBlock) TableName() string { return "case_blocks" }
