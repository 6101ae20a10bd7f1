package repository

import (
	"context"
	"strings"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/casebridge/internal/user/domain"
	"gorm.io/gorm"
)

type repo struct{}

func Provide() domain.Repository {
	return &repo{}
}

func (r *repo) Insert(ctx context.Context, db *gorm.DB, user *domain.User) error {
	return db.WithContext(ctx).Exec(
		`INSERT INTO users (id, first_name, last_name, email, external_ref, role, password_hash, must_change_password, preferences, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		user.ID,
		user.FirstName,
		user.LastName,
		user.Email,
		user.ExternalRef,
		user.Role,
		user.PasswordHash,
		user.MustChangePassword,
		user.Preferences,
		user.CreatedAt,
		user.UpdatedAt,
	).Error
}

func (r *repo) Update(ctx context.Context, db *gorm.DB, user *domain.User) error {
	return db.WithContext(ctx).Exec(
		`UPDATE users
		 SET first_name = ?, last_name = ?, email = ?, external_ref = ?, role = ?,
		     password_hash = ?, must_change_password = ?, preferences = ?, updated_at = ?
		 WHERE id = ?`,
		user.FirstName,
		user.LastName,
		user.Email,
		user.ExternalRef,
		user.Role,
		user.PasswordHash,
		user.MustChangePassword,
		user.Preferences,
		user.UpdatedAt,
		user.ID,
	).Error
}

func (r *repo) FindByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*domain.User, error) {
	return r.findOne(ctx, db, `SELECT * FROM users WHERE id = ?`, id)
}

func (r *repo) FindByExternalRef(ctx context.Context, db *gorm.DB, externalRef string) (*domain.User, error) {
	return r.findOne(ctx, db, `SELECT * FROM users WHERE external_ref = ?`, externalRef)
}

func (r *repo) FindByEmail(ctx context.Context, db *gorm.DB, email string) (*domain.User, error) {
	return r.findOne(ctx, db, `SELECT * FROM users WHERE lower(email) = ?`, strings.ToLower(email))
}

func (r *repo) FindAdminByDisplayName(ctx context.Context, db *gorm.DB, displayName string) (*domain.User, error) {
	return r.findOne(ctx, db,
		`SELECT * FROM users
		 WHERE role IN (?, ?) AND lower(first_name || ' ' || last_name) = ?`,
		domain.RoleAdmin, domain.RoleSuperAdmin, strings.ToLower(strings.TrimSpace(displayName)),
	)
}

func (r *repo) findOne(ctx context.Context, db *gorm.DB, query string, args ...any) (*domain.User, error) {
	var user domain.User
	err := db.WithContext(ctx).Raw(query, args...).Scan(&user).Error
	if err != nil {
		return nil, err
	}
	if user.ID == 0 {
		return nil, nil
	}
	return &user, nil
}

func (r *repo) ListByOrganisation(ctx context.Context, db *gorm.DB, orgID snowflake.ID) ([]*domain.User, error) {
	var users []*domain.User
	err := db.WithContext(ctx).Raw(
		`SELECT u.* FROM users u
		 JOIN org_memberships m ON m.user_id = u.id
		 WHERE m.org_id = ?
		 ORDER BY u.created_at, u.id`,
		orgID,
	).Scan(&users).Error
	if err != nil {
		return nil, err
	}
	return users, nil
}

func (r *repo) EnsureMembership(ctx context.Context, db *gorm.DB, membership *domain.Membership) error {
	var count int64
	err := db.WithContext(ctx).Model(&domain.Membership{}).
		Where("user_id = ? AND org_id = ?", membership.UserID, membership.OrgID).
		Count(&count).Error
	if err != nil {
		return err
	}
	if count > 0 {
		return nil
	}
	return db.WithContext(ctx).Exec(
		`INSERT INTO org_memberships (id, user_id, org_id, role, created_at)
		 VALUES (?, ?, ?, ?, ?)`,
		membership.ID,
		membership.UserID,
		membership.OrgID,
		membership.Role,
		membership.CreatedAt,
	).Error
}

func (r *repo) AddMute(ctx context.Context, db *gorm.DB, mute *domain.CaseMute) error {
	var count int64
	err := db.WithContext(ctx).Model(&domain.CaseMute{}).
		Where("user_id = ? AND case_id = ?", mute.UserID, mute.CaseID).
		Count(&count).Error
	if err != nil {
		return err
	}
	if count > 0 {
		return nil
	}
	return db.WithContext(ctx).Exec(
		`INSERT INTO case_mutes (user_id, case_id, created_at) VALUES (?, ?, ?)`,
		mute.UserID, mute.CaseID, mute.CreatedAt,
	).Error
}

func (r *repo) RemoveMute(ctx context.Context, db *gorm.DB, userID, caseID snowflake.ID) error {
	return db.WithContext(ctx).Exec(
		`DELETE FROM case_mutes WHERE user_id = ? AND case_id = ?`, userID, caseID,
	).Error
}

func (r *repo) IsMuted(ctx context.Context, db *gorm.DB, userID, caseID snowflake.ID) (bool, error) {
	var count int64
	err := db.WithContext(ctx).Model(&domain.CaseMute{}).
		Where("user_id = ? AND case_id = ?", userID, caseID).
		Count(&count).Error
	return count > 0, err
}

func (r *repo) AddBlock(ctx context.Context, db *gorm.DB, block *domain.CaseBlock) error {
	var count int64
	err := db.WithContext(ctx).Model(&domain.CaseBlock{}).
		Where("user_id = ? AND case_id = ?", block.UserID, block.CaseID).
		Count(&count).Error
	if err != nil {
		return err
	}
	if count > 0 {
		return nil
	}
	return db.WithContext(ctx).Exec(
		`INSERT INTO case_blocks (user_id, case_id, created_at) VALUES (?, ?, ?)`,
		block.UserID, block.CaseID, block.CreatedAt,
	).Error
}

func (r *repo) RemoveBlock(ctx context.Context, db *gorm.DB, userID, caseID snowflake.ID) error {
	return db.WithContext(ctx).Exec(
		`DELETE FROM case_blocks WHERE user_id = ? AND case_id = ?`, userID, caseID,
	).Error
}

func (r *repo) IsBlocked(ctx context.Context, db *gorm.DB, userID, caseID snowflake.ID) (bool, error) {
	var count int64
	err := db.WithContext(ctx).Model(&domain.CaseBlock{}).
		Where("user_id = ? AND case_id = ?", userID, caseID).
		Count(&count).Error
	return count > 0, err
}

func (r *repo) DeleteMutesByCase(ctx context.Context, db *gorm.DB, caseID snowflake.ID) error {
	return db.WithContext(ctx).Exec(`DELETE FROM case_mutes WHERE case_id = ?`, caseID).Error
}

func (r *repo) DeleteBlocksByCase(ctx context.Context, db *gorm.DB, caseID snowflake.ID) error {
	return db.WithContext(ctx).Exec(`DELETE FROM case_blocks WHERE case_id = ?`, caseID).Error
}
