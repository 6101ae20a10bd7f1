package domain

import (
	"context"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"
)

type Repository interface {
	Insert(ctx context.Context, db *gorm.DB, user *User) error
	Update(ctx context.Context, db *gorm.DB, user *User) error
	FindByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*User, error)
	FindByExternalRef(ctx context.Context, db *gorm.DB, externalRef string) (*User, error)
	FindByEmail(ctx context.Context, db *gorm.DB, email string) (*User, error)
	FindAdminByDisplayName(ctx context.Context, db *gorm.DB, displayName string) (*User, error)
	ListByOrganisation(ctx context.Context, db *gorm.DB, orgID snowflake.ID) ([]*User, error)

	EnsureMembership(ctx context.Context, db *gorm.DB, membership *Membership) error

	AddMute(ctx context.Context, db *gorm.DB, mute *CaseMute) error
	RemoveMute(ctx context.Context, db *gorm.DB, userID, caseID snowflake.ID) error
	IsMuted(ctx context.Context, db *gorm.DB, userID, caseID snowflake.ID) (bool, error)
	AddBlock(ctx context.Context, db *gorm.DB, block *CaseBlock) error
	RemoveBlock(ctx context.Context, db *gorm.DB, userID, caseID snowflake.ID) error
	IsBlocked(ctx context.Context, db *gorm.DB, userID, caseID snowflake.ID) (bool, error)
	DeleteMutesByCase(ctx context.Context, db *gorm.DB, caseID snowflake.ID) error
	DeleteBlocksByCase(ctx context.Context, db *gorm.DB, caseID snowflake.ID) error
}
