package service

import (
	"context"
	"strings"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
	auditdomain "github.com/smallbiznis/casebridge/internal/audit/domain"
	"github.com/smallbiznis/casebridge/internal/caserecord/domain"
	"github.com/smallbiznis/casebridge/internal/clock"
	"github.com/smallbiznis/casebridge/internal/config"
	"github.com/smallbiznis/casebridge/internal/keylock"
	"github.com/smallbiznis/casebridge/internal/ledger"
	"github.com/smallbiznis/casebridge/internal/normalize"
	"github.com/smallbiznis/casebridge/internal/notification"
	orgdomain "github.com/smallbiznis/casebridge/internal/organization/domain"
	userdomain "github.com/smallbiznis/casebridge/internal/user/domain"
	"github.com/smallbiznis/casebridge/pkg/db"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type Params struct {
	fx.In

	Config config.Config
	DB     *gorm.DB
	Log    *zap.Logger
	GenID  *snowflake.Node
	Clock  clock.Clock
	Guard  *keylock.Guard
	Repo   domain.Repository
	Orgs   orgdomain.Repository
	Users  userdomain.Service
	Ledger *ledger.Engine
	Router *notification.Router
	Audit  auditdomain.Service
}

type Service struct {
	cfg    config.Config
	db     *gorm.DB
	log    *zap.Logger
	genID  *snowflake.Node
	clock  clock.Clock
	guard  *keylock.Guard
	repo   domain.Repository
	orgs   orgdomain.Repository
	users  userdomain.Service
	ledger *ledger.Engine
	router *notification.Router
	audit  auditdomain.Service
}

func New(p Params) domain.Service {
	return &Service{
		cfg:    p.Config,
		db:     p.DB,
		log:    p.Log.Named("caserecord.service"),
		genID:  p.GenID,
		clock:  p.Clock,
		guard:  p.Guard,
		repo:   p.Repo,
		orgs:   p.Orgs,
		users:  p.Users,
		ledger: p.Ledger,
		router: p.Router,
		audit:  p.Audit,
	}
}

// Upsert resolves an incoming case push against the local store. Resolution
// order: external reference first, then (only when enabled) the legacy
// account-number fallback scoped to the owning organisation. The owning
// organisation must already exist; cases never create their dependencies.
func (s *Service) Upsert(ctx context.Context, req domain.UpsertCaseRequest) (domain.UpsertCaseResponse, error) {
	externalRef := strings.TrimSpace(req.ExternalRef)
	if externalRef == "" {
		return domain.UpsertCaseResponse{}, domain.ErrInvalidExternalRef
	}

	org, err := s.orgs.FindByExternalRef(ctx, s.db, strings.TrimSpace(req.OrganisationExternalRef))
	if err != nil {
		return domain.UpsertCaseResponse{}, err
	}
	if org == nil {
		return domain.UpsertCaseResponse{}, domain.ErrDependencyNotFound
	}

	unlock := s.guard.Lock("case", externalRef)
	defer unlock()

	existing, err := s.repo.FindByExternalRef(ctx, s.db, externalRef)
	if err != nil {
		return domain.UpsertCaseResponse{}, err
	}
	if existing != nil {
		return s.update(ctx, existing, req)
	}

	accountNumber := strings.TrimSpace(req.AccountNumber)
	if s.cfg.AccountNumberFallback && accountNumber != "" {
		legacy, err := s.repo.FindByAccountNumber(ctx, s.db, org.ID, accountNumber)
		if err != nil {
			return domain.UpsertCaseResponse{}, err
		}
		if legacy != nil {
			if legacy.ExternalRef != nil && *legacy.ExternalRef != externalRef {
				return domain.UpsertCaseResponse{}, domain.ErrDuplicateReference
			}
			legacy.ExternalRef = &externalRef
			return s.update(ctx, legacy, req)
		}
	}

	return s.create(ctx, org.ID, externalRef, req)
}

func (s *Service) create(ctx context.Context, orgID snowflake.ID, externalRef string, req domain.UpsertCaseRequest) (domain.UpsertCaseResponse, error) {
	accountNumber := strings.TrimSpace(req.AccountNumber)
	if accountNumber == "" {
		return domain.UpsertCaseResponse{}, domain.ErrInvalidAccountNumber
	}

	original, err := parseAmountOrZero(req.OriginalAmount)
	if err != nil {
		return domain.UpsertCaseResponse{}, err
	}
	costs, err := parseAmountOrZero(req.CostsAdded)
	if err != nil {
		return domain.UpsertCaseResponse{}, err
	}
	interest, err := parseAmountOrZero(req.InterestAdded)
	if err != nil {
		return domain.UpsertCaseResponse{}, err
	}
	fees, err := parseAmountOrZero(req.FeesAdded)
	if err != nil {
		return domain.UpsertCaseResponse{}, err
	}

	status := domain.StatusActive
	if v := strings.TrimSpace(req.Status); v != "" {
		parsed, ok := domain.ParseStatus(v)
		if !ok {
			return domain.UpsertCaseResponse{}, domain.ErrInvalidStatus
		}
		status = parsed
	}
	stage := domain.StageInitialContact
	if v := strings.TrimSpace(req.Stage); v != "" {
		parsed, ok := domain.ParseStage(v)
		if !ok {
			return domain.UpsertCaseResponse{}, domain.ErrInvalidStage
		}
		stage = parsed
	}

	now := s.clock.Now()
	record := domain.Case{
		ID:            s.genID.Generate(),
		OrgID:         orgID,
		AccountNumber: accountNumber,
		CaseName:      strings.TrimSpace(req.CaseName),
		ExternalRef:   &externalRef,

		DebtorName:    strings.TrimSpace(req.DebtorName),
		DebtorEmail:   strings.TrimSpace(req.DebtorEmail),
		DebtorPhone:   strings.TrimSpace(req.DebtorPhone),
		DebtorAddress: strings.TrimSpace(req.DebtorAddress),

		OriginalAmount: original,
		CostsAdded:     costs,
		InterestAdded:  interest,
		FeesAdded:      fees,

		// A fresh case has no payments, so the outstanding cache is the
		// baseline. Every later change goes through the ledger engine.
		OutstandingAmount: ledger.Baseline(original, costs, interest, fees),

		Status:     status,
		Stage:      stage,
		AssignedTo: strings.TrimSpace(req.AssignedTo),
		CreatedAt:  now,
		UpdatedAt:  now,
	}

	if err := s.repo.Insert(ctx, s.db, &record); err != nil {
		if db.IsDuplicateKeyErr(err) {
			winner, findErr := s.repo.FindByExternalRef(ctx, s.db, externalRef)
			if findErr != nil {
				return domain.UpsertCaseResponse{}, findErr
			}
			if winner != nil {
				return s.update(ctx, winner, req)
			}
		}
		return domain.UpsertCaseResponse{}, err
	}

	if err := s.users.AutoMuteNewCase(ctx, orgID, record.ID); err != nil {
		// Mute preferences are a courtesy; the case itself is already in.
		s.log.Warn("auto-mute for new case failed",
			zap.String("case_id", record.ID.String()),
			zap.Error(err),
		)
	}

	s.audit.RecordChange(ctx, auditdomain.Change{
		TableName:   "cases",
		RecordID:    record.ID.String(),
		Operation:   auditdomain.OperationInsert,
		Description: "case created from external push",
	})

	return domain.UpsertCaseResponse{Outcome: domain.OutcomeCreated, Case: record}, nil
}

func (s *Service) update(ctx context.Context, existing *domain.Case, req domain.UpsertCaseRequest) (domain.UpsertCaseResponse, error) {
	adjusted := false

	apply := func(target *decimal.Decimal, raw string) error {
		value := strings.TrimSpace(raw)
		if value == "" {
			return nil
		}
		parsed, err := normalize.ParseAmount(value)
		if err != nil {
			return err
		}
		if !parsed.Equal(*target) {
			*target = parsed
			adjusted = true
		}
		return nil
	}

	if err := apply(&existing.OriginalAmount, req.OriginalAmount); err != nil {
		return domain.UpsertCaseResponse{}, err
	}
	if err := apply(&existing.CostsAdded, req.CostsAdded); err != nil {
		return domain.UpsertCaseResponse{}, err
	}
	if err := apply(&existing.InterestAdded, req.InterestAdded); err != nil {
		return domain.UpsertCaseResponse{}, err
	}
	if err := apply(&existing.FeesAdded, req.FeesAdded); err != nil {
		return domain.UpsertCaseResponse{}, err
	}

	if v := strings.TrimSpace(req.Status); v != "" {
		parsed, ok := domain.ParseStatus(v)
		if !ok {
			return domain.UpsertCaseResponse{}, domain.ErrInvalidStatus
		}
		existing.Status = parsed
	}
	if v := strings.TrimSpace(req.Stage); v != "" {
		parsed, ok := domain.ParseStage(v)
		if !ok {
			return domain.UpsertCaseResponse{}, domain.ErrInvalidStage
		}
		existing.Stage = parsed
	}

	if v := strings.TrimSpace(req.CaseName); v != "" {
		existing.CaseName = v
	}
	if v := strings.TrimSpace(req.AccountNumber); v != "" {
		existing.AccountNumber = v
	}
	if v := strings.TrimSpace(req.DebtorName); v != "" {
		existing.DebtorName = v
	}
	if v := strings.TrimSpace(req.DebtorEmail); v != "" {
		existing.DebtorEmail = v
	}
	if v := strings.TrimSpace(req.DebtorPhone); v != "" {
		existing.DebtorPhone = v
	}
	if v := strings.TrimSpace(req.DebtorAddress); v != "" {
		existing.DebtorAddress = v
	}
	if v := strings.TrimSpace(req.AssignedTo); v != "" {
		existing.AssignedTo = v
	}
	existing.UpdatedAt = s.clock.Now()

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := s.repo.Update(ctx, tx, existing); err != nil {
			return err
		}
		if adjusted {
			outstanding, err := s.ledger.RecomputeOutstanding(ctx, tx, existing.ID)
			if err != nil {
				return err
			}
			existing.OutstandingAmount = outstanding
		}
		return nil
	})
	if err != nil {
		return domain.UpsertCaseResponse{}, err
	}

	s.audit.RecordChange(ctx, auditdomain.Change{
		TableName:   "cases",
		RecordID:    existing.ID.String(),
		Operation:   auditdomain.OperationUpdate,
		Description: "case updated from external push",
	})

	s.router.Route(ctx, notification.Event{
		Kind:       notification.KindCaseUpdate,
		Origin:     notification.OriginAdmin,
		CaseID:     existing.ID,
		OrgID:      existing.OrgID,
		CaseName:   existing.CaseName,
		AssignedTo: existing.AssignedTo,
		Body:       "The details of this case were updated.",
	})

	return domain.UpsertCaseResponse{Outcome: domain.OutcomeUpdated, Case: *existing}, nil
}

func (s *Service) GetByID(ctx context.Context, id snowflake.ID) (domain.Case, error) {
	record, err := s.repo.FindByID(ctx, s.db, id)
	if err != nil {
		return domain.Case{}, err
	}
	if record == nil {
		return domain.Case{}, domain.ErrNotFound
	}
	return *record, nil
}

func (s *Service) GetByExternalRef(ctx context.Context, externalRef string) (domain.Case, error) {
	record, err := s.repo.FindByExternalRef(ctx, s.db, strings.TrimSpace(externalRef))
	if err != nil {
		return domain.Case{}, err
	}
	if record == nil {
		return domain.Case{}, domain.ErrNotFound
	}
	return *record, nil
}

// Archive soft-retires a case. The record and its history stay queryable; the
// audit trail records who archived it and when.
func (s *Service) Archive(ctx context.Context, id snowflake.ID) error {
	record, err := s.repo.FindByID(ctx, s.db, id)
	if err != nil {
		return err
	}
	if record == nil {
		return domain.ErrNotFound
	}

	if err := s.repo.Archive(ctx, s.db, id, s.clock.Now()); err != nil {
		return err
	}

	s.audit.RecordChange(ctx, auditdomain.Change{
		TableName:   "cases",
		RecordID:    id.String(),
		Operation:   auditdomain.OperationUpdate,
		Description: "case archived",
	})
	return nil
}

// Delete hard-removes the case and everything bound to it. Superadmin only;
// the handler enforces the role before calling in.
func (s *Service) Delete(ctx context.Context, id snowflake.ID) error {
	record, err := s.repo.FindByID(ctx, s.db, id)
	if err != nil {
		return err
	}
	if record == nil {
		return domain.ErrNotFound
	}

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return s.repo.DeleteCascade(ctx, tx, id)
	})
	if err != nil {
		return err
	}

	s.audit.RecordChange(ctx, auditdomain.Change{
		TableName:   "cases",
		RecordID:    id.String(),
		Operation:   auditdomain.OperationDelete,
		Description: "case deleted with dependent records",
	})
	return nil
}

func parseAmountOrZero(raw string) (decimal.Decimal, error) {
	value := strings.TrimSpace(raw)
	if value == "" {
		return decimal.Zero, nil
	}
	return normalize.ParseAmount(value)
}
