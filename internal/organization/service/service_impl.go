package service

import (
	"context"
	"strings"

	"github.com/bwmarrin/snowflake"
	auditdomain "github.com/smallbiznis/casebridge/internal/audit/domain"
	"github.com/smallbiznis/casebridge/internal/clock"
	"github.com/smallbiznis/casebridge/internal/keylock"
	"github.com/smallbiznis/casebridge/internal/organization/domain"
	"github.com/smallbiznis/casebridge/pkg/db"
	"go.uber.org/fx"
	"go.uber.org/zap"
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
	Audit auditdomain.Service
}

type Service struct {
	db    *gorm.DB
	log   *zap.Logger
	genID *snowflake.Node
	clock clock.Clock
	guard *keylock.Guard
	repo  domain.Repository
	audit auditdomain.Service
}

func New(p Params) domain.Service {
	return &Service{
		db:    p.DB,
		log:   p.Log.Named("organisation.service"),
		genID: p.GenID,
		clock: p.Clock,
		guard: p.Guard,
		repo:  p.Repo,
		audit: p.Audit,
	}
}

// Upsert resolves an external organisation reference, creating the record if
// absent and partially updating it if present. Concurrent calls for the same
// reference serialize on the key guard; a create that still loses the race at
// the unique index falls back to update.
func (s *Service) Upsert(ctx context.Context, req domain.UpsertOrganisationRequest) (domain.UpsertOrganisationResponse, error) {
	externalRef := strings.TrimSpace(req.ExternalRef)
	if externalRef == "" {
		return domain.UpsertOrganisationResponse{}, domain.ErrInvalidExternalRef
	}

	unlock := s.guard.Lock("organisation", externalRef)
	defer unlock()

	existing, err := s.repo.FindByExternalRef(ctx, s.db, externalRef)
	if err != nil {
		return domain.UpsertOrganisationResponse{}, err
	}
	if existing != nil {
		return s.update(ctx, existing, req)
	}

	if strings.TrimSpace(req.Name) == "" {
		return domain.UpsertOrganisationResponse{}, domain.ErrInvalidName
	}

	now := s.clock.Now()
	org := domain.Organisation{
		ID:           s.genID.Generate(),
		Name:         strings.TrimSpace(req.Name),
		ExternalRef:  &externalRef,
		ContactName:  strings.TrimSpace(req.ContactName),
		ContactEmail: strings.TrimSpace(req.ContactEmail),
		ContactPhone: strings.TrimSpace(req.ContactPhone),
		Address:      strings.TrimSpace(req.Address),
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	if err := s.repo.Insert(ctx, s.db, &org); err != nil {
		if db.IsDuplicateKeyErr(err) {
			winner, findErr := s.repo.FindByExternalRef(ctx, s.db, externalRef)
			if findErr != nil {
				return domain.UpsertOrganisationResponse{}, findErr
			}
			if winner != nil {
				return s.update(ctx, winner, req)
			}
		}
		return domain.UpsertOrganisationResponse{}, err
	}

	s.audit.RecordChange(ctx, auditdomain.Change{
		TableName:   "organisations",
		RecordID:    org.ID.String(),
		Operation:   auditdomain.OperationInsert,
		Description: "organisation created from external push",
	})

	return domain.UpsertOrganisationResponse{Outcome: domain.OutcomeCreated, Organisation: org}, nil
}

func (s *Service) update(ctx context.Context, existing *domain.Organisation, req domain.UpsertOrganisationRequest) (domain.UpsertOrganisationResponse, error) {
	// Partial update: absent fields leave the stored value untouched.
	if name := strings.TrimSpace(req.Name); name != "" {
		existing.Name = name
	}
	if v := strings.TrimSpace(req.ContactName); v != "" {
		existing.ContactName = v
	}
	if v := strings.TrimSpace(req.ContactEmail); v != "" {
		existing.ContactEmail = v
	}
	if v := strings.TrimSpace(req.ContactPhone); v != "" {
		existing.ContactPhone = v
	}
	if v := strings.TrimSpace(req.Address); v != "" {
		existing.Address = v
	}
	existing.UpdatedAt = s.clock.Now()

	if err := s.repo.Update(ctx, s.db, existing); err != nil {
		return domain.UpsertOrganisationResponse{}, err
	}

	s.audit.RecordChange(ctx, auditdomain.Change{
		TableName:   "organisations",
		RecordID:    existing.ID.String(),
		Operation:   auditdomain.OperationUpdate,
		Description: "organisation updated from external push",
	})

	return domain.UpsertOrganisationResponse{Outcome: domain.OutcomeUpdated, Organisation: *existing}, nil
}

func (s *Service) GetByID(ctx context.Context, id snowflake.ID) (domain.Organisation, error) {
	org, err := s.repo.FindByID(ctx, s.db, id)
	if err != nil {
		return domain.Organisation{}, err
	}
	if org == nil {
		return domain.Organisation{}, domain.ErrNotFound
	}
	return *org, nil
}

func (s *Service) GetByExternalRef(ctx context.Context, externalRef string) (domain.Organisation, error) {
	org, err := s.repo.FindByExternalRef(ctx, s.db, strings.TrimSpace(externalRef))
	if err != nil {
		return domain.Organisation{}, err
	}
	if org == nil {
		return domain.Organisation{}, domain.ErrNotFound
	}
	return *org, nil
}
