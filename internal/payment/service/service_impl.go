package service

import (
	"context"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	auditdomain "github.com/smallbiznis/casebridge/internal/audit/domain"
	casedomain "github.com/smallbiznis/casebridge/internal/caserecord/domain"
	"github.com/smallbiznis/casebridge/internal/clock"
	"github.com/smallbiznis/casebridge/internal/keylock"
	"github.com/smallbiznis/casebridge/internal/ledger"
	"github.com/smallbiznis/casebridge/internal/normalize"
	"github.com/smallbiznis/casebridge/internal/payment/domain"
	"github.com/smallbiznis/casebridge/pkg/db"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// reversalPrefix marks the counter-entry created by Reverse. The prefix is
// applied to both the human reference and the external reference so a second
// reversal attempt collides on the unique index instead of double-crediting.
const reversalPrefix = "REV-"

type Params struct {
	fx.In

	DB     *gorm.DB
	Log    *zap.Logger
	GenID  *snowflake.Node
	Clock  clock.Clock
	Guard  *keylock.Guard
	Repo   domain.Repository
	Cases  casedomain.Repository
	Ledger *ledger.Engine
	Audit  auditdomain.Service
}

type Service struct {
	db     *gorm.DB
	log    *zap.Logger
	genID  *snowflake.Node
	clock  clock.Clock
	guard  *keylock.Guard
	repo   domain.Repository
	cases  casedomain.Repository
	ledger *ledger.Engine
	audit  auditdomain.Service
}

func New(p Params) domain.Service {
	return &Service{
		db:     p.DB,
		log:    p.Log.Named("payment.service"),
		genID:  p.GenID,
		clock:  p.Clock,
		guard:  p.Guard,
		repo:   p.Repo,
		cases:  p.Cases,
		ledger: p.Ledger,
		audit:  p.Audit,
	}
}

// Upsert resolves an incoming payment push by external reference. Every write
// that lands recomputes the owning case's outstanding balance in the same
// transaction, so the ledger cache is never observable mid-flight.
func (s *Service) Upsert(ctx context.Context, req domain.UpsertPaymentRequest) (domain.UpsertPaymentResponse, error) {
	externalRef := strings.TrimSpace(req.ExternalRef)
	if externalRef == "" {
		return domain.UpsertPaymentResponse{}, domain.ErrInvalidExternalRef
	}

	unlock := s.guard.Lock("payment", externalRef)
	defer unlock()

	existing, err := s.repo.FindByExternalRef(ctx, s.db, externalRef)
	if err != nil {
		return domain.UpsertPaymentResponse{}, err
	}
	if existing != nil {
		return s.update(ctx, existing, req)
	}
	return s.create(ctx, externalRef, req)
}

func (s *Service) create(ctx context.Context, externalRef string, req domain.UpsertPaymentRequest) (domain.UpsertPaymentResponse, error) {
	caseRef := strings.TrimSpace(req.CaseExternalRef)
	if caseRef == "" {
		return domain.UpsertPaymentResponse{}, domain.ErrInvalidCaseRef
	}
	record, err := s.cases.FindByExternalRef(ctx, s.db, caseRef)
	if err != nil {
		return domain.UpsertPaymentResponse{}, err
	}
	if record == nil {
		return domain.UpsertPaymentResponse{}, domain.ErrDependencyNotFound
	}

	amount, err := normalize.ParseAmount(req.Amount)
	if err != nil {
		return domain.UpsertPaymentResponse{}, err
	}
	paymentDate, err := normalize.ParseDate(req.PaymentDate)
	if err != nil {
		return domain.UpsertPaymentResponse{}, err
	}

	now := s.clock.Now()
	payment := domain.Payment{
		ID:          s.genID.Generate(),
		CaseID:      record.ID,
		ExternalRef: &externalRef,
		Reference:   strings.TrimSpace(req.Reference),
		Amount:      amount,
		PaymentDate: paymentDate,
		Method:      strings.TrimSpace(req.Method),
		Notes:       strings.TrimSpace(req.Notes),
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	var outstanding = record.OutstandingAmount
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := s.repo.Insert(ctx, tx, &payment); err != nil {
			return err
		}
		value, err := s.ledger.RecomputeOutstanding(ctx, tx, payment.CaseID)
		if err != nil {
			return err
		}
		outstanding = value
		return nil
	})
	if err != nil {
		if db.IsDuplicateKeyErr(err) {
			winner, findErr := s.repo.FindByExternalRef(ctx, s.db, externalRef)
			if findErr != nil {
				return domain.UpsertPaymentResponse{}, findErr
			}
			if winner != nil {
				return s.update(ctx, winner, req)
			}
		}
		return domain.UpsertPaymentResponse{}, err
	}

	s.audit.RecordChange(ctx, auditdomain.Change{
		TableName:   "payments",
		RecordID:    payment.ID.String(),
		Operation:   auditdomain.OperationInsert,
		Description: "payment recorded from external push",
	})

	return domain.UpsertPaymentResponse{
		OutcomeUpsert: domain.OutcomeCreated,
		Payment:       payment,
		Outstanding:   outstanding,
	}, nil
}

func (s *Service) update(ctx context.Context, existing *domain.Payment, req domain.UpsertPaymentRequest) (domain.UpsertPaymentResponse, error) {
	if existing.DeletedAt != nil {
		return domain.UpsertPaymentResponse{}, domain.ErrDeleted
	}

	if caseRef := strings.TrimSpace(req.CaseExternalRef); caseRef != "" {
		record, err := s.cases.FindByExternalRef(ctx, s.db, caseRef)
		if err != nil {
			return domain.UpsertPaymentResponse{}, err
		}
		if record == nil {
			return domain.UpsertPaymentResponse{}, domain.ErrDependencyNotFound
		}
		if record.ID != existing.CaseID {
			return domain.UpsertPaymentResponse{}, domain.ErrCaseMismatch
		}
	}

	amountChanged := false
	if raw := strings.TrimSpace(req.Amount); raw != "" {
		amount, err := normalize.ParseAmount(raw)
		if err != nil {
			return domain.UpsertPaymentResponse{}, err
		}
		if !amount.Equal(existing.Amount) {
			existing.Amount = amount
			amountChanged = true
		}
	}
	if raw := strings.TrimSpace(req.PaymentDate); raw != "" {
		paymentDate, err := normalize.ParseDate(raw)
		if err != nil {
			return domain.UpsertPaymentResponse{}, err
		}
		existing.PaymentDate = paymentDate
	}
	if v := strings.TrimSpace(req.Reference); v != "" {
		existing.Reference = v
	}
	if v := strings.TrimSpace(req.Method); v != "" {
		existing.Method = v
	}
	if v := strings.TrimSpace(req.Notes); v != "" {
		existing.Notes = v
	}
	existing.UpdatedAt = s.clock.Now()

	var outstanding = existing.Amount
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := s.repo.Update(ctx, tx, existing); err != nil {
			return err
		}
		value, err := s.ledger.RecomputeOutstanding(ctx, tx, existing.CaseID)
		if err != nil {
			return err
		}
		outstanding = value
		return nil
	})
	if err != nil {
		return domain.UpsertPaymentResponse{}, err
	}

	description := "payment updated from external push"
	if !amountChanged {
		description = "payment details updated from external push"
	}
	s.audit.RecordChange(ctx, auditdomain.Change{
		TableName:   "payments",
		RecordID:    existing.ID.String(),
		Operation:   auditdomain.OperationUpdate,
		Description: description,
	})

	return domain.UpsertPaymentResponse{
		OutcomeUpsert: domain.OutcomeUpdated,
		Payment:       *existing,
		Outstanding:   outstanding,
	}, nil
}

// Delete soft-removes a payment and restores its amount to the outstanding
// balance. Deleting an already-deleted payment reports not found.
func (s *Service) Delete(ctx context.Context, externalRef string) (domain.DeletePaymentResponse, error) {
	externalRef = strings.TrimSpace(externalRef)
	if externalRef == "" {
		return domain.DeletePaymentResponse{}, domain.ErrInvalidExternalRef
	}

	unlock := s.guard.Lock("payment", externalRef)
	defer unlock()

	existing, err := s.repo.FindByExternalRef(ctx, s.db, externalRef)
	if err != nil {
		return domain.DeletePaymentResponse{}, err
	}
	if existing == nil || existing.DeletedAt != nil {
		return domain.DeletePaymentResponse{}, domain.ErrNotFound
	}

	deletedAt := s.clock.Now()
	var outstanding = existing.Amount
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := s.repo.SoftDelete(ctx, tx, existing.ID, deletedAt); err != nil {
			return err
		}
		value, err := s.ledger.RecomputeOutstanding(ctx, tx, existing.CaseID)
		if err != nil {
			return err
		}
		outstanding = value
		return nil
	})
	if err != nil {
		return domain.DeletePaymentResponse{}, err
	}
	existing.DeletedAt = &deletedAt

	s.audit.RecordChange(ctx, auditdomain.Change{
		TableName:   "payments",
		RecordID:    existing.ID.String(),
		Operation:   auditdomain.OperationDelete,
		Description: "payment deleted from external push",
	})

	return domain.DeletePaymentResponse{Payment: *existing, Outstanding: outstanding}, nil
}

func (s *Service) Reverse(ctx context.Context, externalRef, reason string) (domain.ReversePaymentResponse, error) {
	externalRef = strings.TrimSpace(externalRef)
	if externalRef == "" {
		return domain.ReversePaymentResponse{}, domain.ErrInvalidExternalRef
	}

	unlock := s.guard.Lock("payment", externalRef)
	defer unlock()

	original, err := s.repo.FindByExternalRef(ctx, s.db, externalRef)
	if err != nil {
		return domain.ReversePaymentResponse{}, err
	}
	if original == nil {
		return domain.ReversePaymentResponse{}, domain.ErrNotFound
	}
	if original.DeletedAt != nil {
		return domain.ReversePaymentResponse{}, domain.ErrDeleted
	}

	reversalRef := reversalPrefix + externalRef
	duplicate, err := s.repo.FindByExternalRef(ctx, s.db, reversalRef)
	if err != nil {
		return domain.ReversePaymentResponse{}, err
	}
	if duplicate != nil {
		return domain.ReversePaymentResponse{}, domain.ErrAlreadyReversed
	}

	notes := "reversal of " + externalRef
	if v := strings.TrimSpace(reason); v != "" {
		notes = notes + ": " + v
	}

	now := s.clock.Now()
	reversal := domain.Payment{
		ID:          s.genID.Generate(),
		CaseID:      original.CaseID,
		ExternalRef: &reversalRef,
		Reference:   reversalPrefix + original.Reference,
		Amount:      original.Amount.Neg(),
		PaymentDate: reversalDate(now, original.PaymentDate),
		Method:      original.Method,
		Notes:       notes,
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	var outstanding = original.Amount
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := s.repo.Insert(ctx, tx, &reversal); err != nil {
			return err
		}
		value, err := s.ledger.RecomputeOutstanding(ctx, tx, original.CaseID)
		if err != nil {
			return err
		}
		outstanding = value
		return nil
	})
	if err != nil {
		if db.IsDuplicateKeyErr(err) {
			return domain.ReversePaymentResponse{}, domain.ErrAlreadyReversed
		}
		return domain.ReversePaymentResponse{}, err
	}

	s.audit.RecordChange(ctx, auditdomain.Change{
		TableName:   "payments",
		RecordID:    reversal.ID.String(),
		Operation:   auditdomain.OperationInsert,
		Description: auditDescription(externalRef, reason),
	})

	return domain.ReversePaymentResponse{
		Original:    *original,
		Reversal:    reversal,
		Outstanding: outstanding,
	}, nil
}

func (s *Service) GetByExternalRef(ctx context.Context, externalRef string) (domain.Payment, error) {
	payment, err := s.repo.FindByExternalRef(ctx, s.db, strings.TrimSpace(externalRef))
	if err != nil {
		return domain.Payment{}, err
	}
	if payment == nil {
		return domain.Payment{}, domain.ErrNotFound
	}
	return *payment, nil
}

func (s *Service) ListByCase(ctx context.Context, caseID snowflake.ID) ([]domain.Payment, error) {
	return s.repo.ListByCase(ctx, s.db, caseID)
}

func auditDescription(externalRef, reason string) string {
	description := "payment reversed, counter-entry for " + externalRef
	if v := strings.TrimSpace(reason); v != "" {
		description = description + ": " + v
	}
	return description
}

// reversalDate keeps the counter-entry on the original value date when that
// date is in the past, so period reports net to zero in the same period.
func reversalDate(now, original time.Time) time.Time {
	if original.Before(now) {
		return original
	}
	return now
}
