package service

import (
	"context"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/glebarez/sqlite"
	"github.com/shopspring/decimal"
	auditdomain "github.com/smallbiznis/casebridge/internal/audit/domain"
	auditrepository "github.com/smallbiznis/casebridge/internal/audit/repository"
	auditservice "github.com/smallbiznis/casebridge/internal/audit/service"
	casedomain "github.com/smallbiznis/casebridge/internal/caserecord/domain"
	caserepository "github.com/smallbiznis/casebridge/internal/caserecord/repository"
	"github.com/smallbiznis/casebridge/internal/clock"
	"github.com/smallbiznis/casebridge/internal/keylock"
	"github.com/smallbiznis/casebridge/internal/ledger"
	"github.com/smallbiznis/casebridge/internal/payment/domain"
	"github.com/smallbiznis/casebridge/internal/payment/repository"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type fixture struct {
	svc  domain.Service
	db   *gorm.DB
	node *snowflake.Node
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	db, err := gorm.Open(sqlite.Open("file:"+t.Name()+"?mode=memory&cache=shared"), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(
		&casedomain.Case{},
		&domain.Payment{},
		&auditdomain.AuditLog{},
	))

	node, err := snowflake.NewNode(1)
	require.NoError(t, err)
	clk := clock.NewFakeClock(time.Date(2025, 6, 1, 9, 0, 0, 0, time.UTC))

	auditSvc := auditservice.New(auditservice.Params{
		DB:    db,
		Log:   zap.NewNop(),
		GenID: node,
		Clock: clk,
		Repo:  auditrepository.Provide(),
	})
	engine := ledger.New(ledger.Params{
		Log:   zap.NewNop(),
		Clock: clk,
	})

	svc := New(Params{
		DB:     db,
		Log:    zap.NewNop(),
		GenID:  node,
		Clock:  clk,
		Guard:  keylock.New(),
		Repo:   repository.Provide(),
		Cases:  caserepository.Provide(),
		Ledger: engine,
		Audit:  auditSvc,
	})
	return &fixture{svc: svc, db: db, node: node}
}

func (f *fixture) seedCase(t *testing.T, externalRef, outstanding string) casedomain.Case {
	t.Helper()
	now := time.Now().UTC()
	record := casedomain.Case{
		ID:                f.node.Generate(),
		OrgID:             f.node.Generate(),
		AccountNumber:     "ACC-1",
		ExternalRef:       &externalRef,
		OriginalAmount:    decimal.RequireFromString(outstanding),
		OutstandingAmount: decimal.RequireFromString(outstanding),
		Status:            casedomain.StatusActive,
		Stage:             casedomain.StageInitialContact,
		CreatedAt:         now,
		UpdatedAt:         now,
	}
	require.NoError(t, f.db.Create(&record).Error)
	return record
}

func TestUpsertPayment_CreateThenUpdate(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.seedCase(t, "CASE-1", "1000.00")

	created, err := f.svc.Upsert(ctx, domain.UpsertPaymentRequest{
		ExternalRef:     "PAY-1",
		CaseExternalRef: "CASE-1",
		Reference:       "BACS-2201",
		Amount:          "250.00",
		PaymentDate:     "2025-05-20",
	})
	require.NoError(t, err)
	assert.Equal(t, domain.OutcomeCreated, created.OutcomeUpsert)
	assert.True(t, decimal.RequireFromString("750.00").Equal(created.Outstanding), created.Outstanding.String())

	// Same reference again with a corrected amount updates in place and
	// recomputes the balance.
	updated, err := f.svc.Upsert(ctx, domain.UpsertPaymentRequest{
		ExternalRef: "PAY-1",
		Amount:      "300.00",
	})
	require.NoError(t, err)
	assert.Equal(t, domain.OutcomeUpdated, updated.OutcomeUpsert)
	assert.Equal(t, created.Payment.ID, updated.Payment.ID)
	assert.True(t, decimal.RequireFromString("700.00").Equal(updated.Outstanding), updated.Outstanding.String())

	var count int64
	require.NoError(t, f.db.Model(&domain.Payment{}).Count(&count).Error)
	assert.EqualValues(t, 1, count)
}

func TestUpsertPayment_Validation(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.seedCase(t, "CASE-2", "100.00")

	_, err := f.svc.Upsert(ctx, domain.UpsertPaymentRequest{CaseExternalRef: "CASE-2", Amount: "10.00"})
	assert.ErrorIs(t, err, domain.ErrInvalidExternalRef)

	_, err = f.svc.Upsert(ctx, domain.UpsertPaymentRequest{ExternalRef: "PAY-X", Amount: "10.00"})
	assert.ErrorIs(t, err, domain.ErrInvalidCaseRef)

	_, err = f.svc.Upsert(ctx, domain.UpsertPaymentRequest{
		ExternalRef:     "PAY-X",
		CaseExternalRef: "CASE-MISSING",
		Amount:          "10.00",
		PaymentDate:     "2025-05-20",
	})
	assert.ErrorIs(t, err, domain.ErrDependencyNotFound)

	_, err = f.svc.Upsert(ctx, domain.UpsertPaymentRequest{
		ExternalRef:     "PAY-X",
		CaseExternalRef: "CASE-2",
		Amount:          "1.2e3",
		PaymentDate:     "2025-05-20",
	})
	assert.Error(t, err)
}

func TestUpsertPayment_CaseBindingImmutable(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.seedCase(t, "CASE-A", "500.00")
	f.seedCase(t, "CASE-B", "500.00")

	_, err := f.svc.Upsert(ctx, domain.UpsertPaymentRequest{
		ExternalRef:     "PAY-BOUND",
		CaseExternalRef: "CASE-A",
		Amount:          "100.00",
		PaymentDate:     "2025-05-20",
	})
	require.NoError(t, err)

	_, err = f.svc.Upsert(ctx, domain.UpsertPaymentRequest{
		ExternalRef:     "PAY-BOUND",
		CaseExternalRef: "CASE-B",
		Amount:          "100.00",
	})
	assert.ErrorIs(t, err, domain.ErrCaseMismatch)
}

func TestDeletePayment_RestoresOutstanding(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	record := f.seedCase(t, "CASE-DEL", "800.00")

	_, err := f.svc.Upsert(ctx, domain.UpsertPaymentRequest{
		ExternalRef:     "PAY-DEL",
		CaseExternalRef: "CASE-DEL",
		Amount:          "150.00",
		PaymentDate:     "2025-05-20",
	})
	require.NoError(t, err)

	resp, err := f.svc.Delete(ctx, "PAY-DEL")
	require.NoError(t, err)
	assert.NotNil(t, resp.Payment.DeletedAt)
	assert.True(t, decimal.RequireFromString("800.00").Equal(resp.Outstanding), resp.Outstanding.String())

	var stored casedomain.Case
	require.NoError(t, f.db.First(&stored, "id = ?", record.ID).Error)
	assert.True(t, decimal.RequireFromString("800.00").Equal(stored.OutstandingAmount))

	_, err = f.svc.Delete(ctx, "PAY-DEL")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestReversePayment(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.seedCase(t, "CASE-REV", "1000.00")

	_, err := f.svc.Upsert(ctx, domain.UpsertPaymentRequest{
		ExternalRef:     "PAY-REV",
		CaseExternalRef: "CASE-REV",
		Reference:       "CHQ-100",
		Amount:          "400.00",
		PaymentDate:     "2025-05-20",
	})
	require.NoError(t, err)

	resp, err := f.svc.Reverse(ctx, "PAY-REV", "bounced cheque")
	require.NoError(t, err)
	require.NotNil(t, resp.Reversal.ExternalRef)
	assert.Equal(t, "REV-PAY-REV", *resp.Reversal.ExternalRef)
	assert.Equal(t, "REV-CHQ-100", resp.Reversal.Reference)
	assert.Equal(t, "reversal of PAY-REV: bounced cheque", resp.Reversal.Notes)
	assert.True(t, resp.Reversal.Amount.Equal(decimal.RequireFromString("-400.00")), resp.Reversal.Amount.String())

	// Original plus reversal net to zero against the balance.
	assert.True(t, decimal.RequireFromString("1000.00").Equal(resp.Outstanding), resp.Outstanding.String())

	// The original entry is untouched.
	original, err := f.svc.GetByExternalRef(ctx, "PAY-REV")
	require.NoError(t, err)
	assert.True(t, original.Amount.Equal(decimal.RequireFromString("400.00")))
	assert.Nil(t, original.DeletedAt)

	_, err = f.svc.Reverse(ctx, "PAY-REV", "")
	assert.ErrorIs(t, err, domain.ErrAlreadyReversed)

	// The stated reason travels into the audit trail.
	var description string
	require.NoError(t, f.db.Raw(
		`SELECT description FROM audit_logs WHERE record_id = ? AND operation = 'INSERT'`,
		resp.Reversal.ID.String(),
	).Scan(&description).Error)
	assert.Equal(t, "payment reversed, counter-entry for PAY-REV: bounced cheque", description)
}

func TestReversePayment_DeletedRejected(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.seedCase(t, "CASE-RD", "100.00")

	_, err := f.svc.Upsert(ctx, domain.UpsertPaymentRequest{
		ExternalRef:     "PAY-RD",
		CaseExternalRef: "CASE-RD",
		Amount:          "50.00",
		PaymentDate:     "2025-05-20",
	})
	require.NoError(t, err)

	_, err = f.svc.Delete(ctx, "PAY-RD")
	require.NoError(t, err)

	_, err = f.svc.Reverse(ctx, "PAY-RD", "")
	assert.ErrorIs(t, err, domain.ErrDeleted)
}
