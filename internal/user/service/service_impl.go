package service

import (
	"context"
	"strings"

	"github.com/bwmarrin/snowflake"
	"github.com/google/uuid"
	auditdomain "github.com/smallbiznis/casebridge/internal/audit/domain"
	"github.com/smallbiznis/casebridge/internal/clock"
	"github.com/smallbiznis/casebridge/internal/keylock"
	orgdomain "github.com/smallbiznis/casebridge/internal/organization/domain"
	"github.com/smallbiznis/casebridge/internal/user/domain"
	"github.com/smallbiznis/casebridge/pkg/db"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

type Params struct {
	fx.In

	DB    *gorm.DB
	Log   *zap.Logger
	GenID *snowflake.Node
	Clock clock.Clock
	Guard *keylock.Guard
	Repo  domain.Repository
	Orgs  orgdomain.Repository
	Audit auditdomain.Service
}

type Service struct {
	db    *gorm.DB
	log   *zap.Logger
	genID *snowflake.Node
	clock clock.Clock
	guard *keylock.Guard
	repo  domain.Repository
	orgs  orgdomain.Repository
	audit auditdomain.Service
}

func New(p Params) domain.Service {
	return &Service{
		db:    p.DB,
		log:   p.Log.Named("user.service"),
		genID: p.GenID,
		clock: p.Clock,
		guard: p.Guard,
		repo:  p.Repo,
		orgs:  p.Orgs,
		audit: p.Audit,
	}
}

func (s *Service) Upsert(ctx context.Context, req domain.UpsertUserRequest) (domain.UpsertUserResponse, error) {
	externalRef := strings.TrimSpace(req.ExternalRef)
	if externalRef == "" {
		return domain.UpsertUserResponse{}, domain.ErrInvalidExternalRef
	}

	// Resolve the organisation dependency before taking the key lock; a
	// missing organisation rejects the push without any write.
	var org *orgdomain.Organisation
	if orgRef := strings.TrimSpace(req.OrganisationExternalRef); orgRef != "" {
		found, err := s.orgs.FindByExternalRef(ctx, s.db, orgRef)
		if err != nil {
			return domain.UpsertUserResponse{}, err
		}
		if found == nil {
			return domain.UpsertUserResponse{}, domain.ErrDependencyNotFound
		}
		org = found
	}

	unlock := s.guard.Lock("user", externalRef)
	defer unlock()

	existing, err := s.repo.FindByExternalRef(ctx, s.db, externalRef)
	if err != nil {
		return domain.UpsertUserResponse{}, err
	}
	if existing != nil {
		return s.update(ctx, existing, org, req)
	}

	return s.create(ctx, externalRef, org, req)
}

func (s *Service) create(ctx context.Context, externalRef string, org *orgdomain.Organisation, req domain.UpsertUserRequest) (domain.UpsertUserResponse, error) {
	email := strings.ToLower(strings.TrimSpace(req.Email))
	if email == "" || !strings.Contains(email, "@") {
		return domain.UpsertUserResponse{}, domain.ErrInvalidEmail
	}
	firstName := strings.TrimSpace(req.FirstName)
	lastName := strings.TrimSpace(req.LastName)
	if firstName == "" && lastName == "" {
		return domain.UpsertUserResponse{}, domain.ErrInvalidName
	}

	tempPassword := uuid.NewString()
	hash, err := bcrypt.GenerateFromPassword([]byte(tempPassword), bcrypt.DefaultCost)
	if err != nil {
		return domain.UpsertUserResponse{}, err
	}

	role := domain.RoleMember
	if req.IsAdmin {
		role = domain.RoleAdmin
	}

	now := s.clock.Now()
	user := domain.User{
		ID:                 s.genID.Generate(),
		FirstName:          firstName,
		LastName:           lastName,
		Email:              email,
		ExternalRef:        &externalRef,
		Role:               role,
		PasswordHash:       string(hash),
		MustChangePassword: true,
		Preferences:        datatypes.JSONMap{},
		CreatedAt:          now,
		UpdatedAt:          now,
	}

	if err := s.repo.Insert(ctx, s.db, &user); err != nil {
		if db.IsDuplicateKeyErr(err) {
			winner, findErr := s.repo.FindByExternalRef(ctx, s.db, externalRef)
			if findErr != nil {
				return domain.UpsertUserResponse{}, findErr
			}
			if winner != nil {
				return s.update(ctx, winner, org, req)
			}
		}
		return domain.UpsertUserResponse{}, err
	}

	if org != nil {
		if err := s.ensureMembership(ctx, user.ID, org.ID); err != nil {
			return domain.UpsertUserResponse{}, err
		}
	}

	s.audit.RecordChange(ctx, auditdomain.Change{
		TableName:   "users",
		RecordID:    user.ID.String(),
		Operation:   auditdomain.OperationInsert,
		Description: "user created from external push",
	})

	return domain.UpsertUserResponse{
		Outcome:      domain.OutcomeCreated,
		User:         user,
		TempPassword: tempPassword,
	}, nil
}

func (s *Service) update(ctx context.Context, existing *domain.User, org *orgdomain.Organisation, req domain.UpsertUserRequest) (domain.UpsertUserResponse, error) {
	if v := strings.TrimSpace(req.FirstName); v != "" {
		existing.FirstName = v
	}
	if v := strings.TrimSpace(req.LastName); v != "" {
		existing.LastName = v
	}
	if v := strings.ToLower(strings.TrimSpace(req.Email)); v != "" {
		if !strings.Contains(v, "@") {
			return domain.UpsertUserResponse{}, domain.ErrInvalidEmail
		}
		existing.Email = v
	}
	if req.IsAdmin && !existing.Role.IsAdmin() {
		existing.Role = domain.RoleAdmin
	}
	existing.UpdatedAt = s.clock.Now()

	if err := s.repo.Update(ctx, s.db, existing); err != nil {
		return domain.UpsertUserResponse{}, err
	}

	if org != nil {
		if err := s.ensureMembership(ctx, existing.ID, org.ID); err != nil {
			return domain.UpsertUserResponse{}, err
		}
	}

	s.audit.RecordChange(ctx, auditdomain.Change{
		TableName:   "users",
		RecordID:    existing.ID.String(),
		Operation:   auditdomain.OperationUpdate,
		Description: "user updated from external push",
	})

	return domain.UpsertUserResponse{Outcome: domain.OutcomeUpdated, User: *existing}, nil
}

func (s *Service) ensureMembership(ctx context.Context, userID, orgID snowflake.ID) error {
	return s.repo.EnsureMembership(ctx, s.db, &domain.Membership{
		ID:        s.genID.Generate(),
		UserID:    userID,
		OrgID:     orgID,
		Role:      domain.RoleMember,
		CreatedAt: s.clock.Now(),
	})
}

func (s *Service) GetByID(ctx context.Context, id snowflake.ID) (domain.User, error) {
	user, err := s.repo.FindByID(ctx, s.db, id)
	if err != nil {
		return domain.User{}, err
	}
	if user == nil {
		return domain.User{}, domain.ErrNotFound
	}
	return *user, nil
}

// FindAssignedAdmin resolves a case's assigned_to handler name to an admin
// user. A nil result means no admin carries that display name.
func (s *Service) FindAssignedAdmin(ctx context.Context, displayName string) (*domain.User, error) {
	if strings.TrimSpace(displayName) == "" {
		return nil, nil
	}
	return s.repo.FindAdminByDisplayName(ctx, s.db, displayName)
}

func (s *Service) ListByOrganisation(ctx context.Context, orgID snowflake.ID) ([]domain.User, error) {
	items, err := s.repo.ListByOrganisation(ctx, s.db, orgID)
	if err != nil {
		return nil, err
	}
	users := make([]domain.User, 0, len(items))
	for _, item := range items {
		if item == nil {
			continue
		}
		users = append(users, *item)
	}
	return users, nil
}

func (s *Service) MuteCase(ctx context.Context, userID, caseID snowflake.ID) error {
	return s.repo.AddMute(ctx, s.db, &domain.CaseMute{
		UserID:    userID,
		CaseID:    caseID,
		CreatedAt: s.clock.Now(),
	})
}

func (s *Service) UnmuteCase(ctx context.Context, userID, caseID snowflake.ID) error {
	return s.repo.RemoveMute(ctx, s.db, userID, caseID)
}

func (s *Service) IsMuted(ctx context.Context, userID, caseID snowflake.ID) (bool, error) {
	return s.repo.IsMuted(ctx, s.db, userID, caseID)
}

func (s *Service) BlockCase(ctx context.Context, userID, caseID snowflake.ID) error {
	return s.repo.AddBlock(ctx, s.db, &domain.CaseBlock{
		UserID:    userID,
		CaseID:    caseID,
		CreatedAt: s.clock.Now(),
	})
}

func (s *Service) UnblockCase(ctx context.Context, userID, caseID snowflake.ID) error {
	return s.repo.RemoveBlock(ctx, s.db, userID, caseID)
}

func (s *Service) IsBlocked(ctx context.Context, userID, caseID snowflake.ID) (bool, error) {
	return s.repo.IsBlocked(ctx, s.db, userID, caseID)
}

func (s *Service) AutoMuteNewCase(ctx context.Context, orgID, caseID snowflake.ID) error {
	members, err := s.repo.ListByOrganisation(ctx, s.db, orgID)
	if err != nil {
		return err
	}
	for _, member := range members {
		if member == nil || !member.PrefEnabled(domain.PrefAutoMuteNewCases) {
			continue
		}
		if err := s.MuteCase(ctx, member.ID, caseID); err != nil {
			return err
		}
	}
	return nil
}
