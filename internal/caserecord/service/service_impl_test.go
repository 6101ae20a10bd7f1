package service

import (
	"context"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/glebarez/sqlite"
	"github.com/shopspring/decimal"
	activitydomain "github.com/smallbiznis/casebridge/internal/activity/domain"
	auditdomain "github.com/smallbiznis/casebridge/internal/audit/domain"
	auditrepository "github.com/smallbiznis/casebridge/internal/audit/repository"
	auditservice "github.com/smallbiznis/casebridge/internal/audit/service"
	"github.com/smallbiznis/casebridge/internal/caserecord/domain"
	"github.com/smallbiznis/casebridge/internal/caserecord/repository"
	"github.com/smallbiznis/casebridge/internal/clock"
	"github.com/smallbiznis/casebridge/internal/config"
	"github.com/smallbiznis/casebridge/internal/keylock"
	"github.com/smallbiznis/casebridge/internal/ledger"
	"github.com/smallbiznis/casebridge/internal/notification"
	"github.com/smallbiznis/casebridge/internal/notification/email"
	orgdomain "github.com/smallbiznis/casebridge/internal/organization/domain"
	orgrepository "github.com/smallbiznis/casebridge/internal/organization/repository"
	paymentdomain "github.com/smallbiznis/casebridge/internal/payment/domain"
	userdomain "github.com/smallbiznis/casebridge/internal/user/domain"
	userrepository "github.com/smallbiznis/casebridge/internal/user/repository"
	userservice "github.com/smallbiznis/casebridge/internal/user/service"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type fixture struct {
	svc      domain.Service
	users    userdomain.Service
	db       *gorm.DB
	node     *snowflake.Node
	org      orgdomain.Organisation
	provider *stubProvider
}

type stubProvider struct {
	sent [][]string
}

func (p *stubProvider) Send(ctx context.Context, to []string, subject string, htmlBody string) error {
	p.sent = append(p.sent, to)
	return nil
}

var _ email.Provider = (*stubProvider)(nil)

func newFixture(t *testing.T, cfg config.Config) *fixture {
	t.Helper()

	db, err := gorm.Open(sqlite.Open("file:"+t.Name()+"?mode=memory&cache=shared"), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(
		&orgdomain.Organisation{},
		&userdomain.User{},
		&userdomain.Membership{},
		&userdomain.CaseMute{},
		&userdomain.CaseBlock{},
		&domain.Case{},
		&paymentdomain.Payment{},
		&activitydomain.Activity{},
		&activitydomain.CaseMessage{},
		&auditdomain.AuditLog{},
	))

	node, err := snowflake.NewNode(1)
	require.NoError(t, err)
	clk := clock.NewFakeClock(time.Date(2025, 6, 1, 9, 0, 0, 0, time.UTC))
	guard := keylock.New()
	orgRepo := orgrepository.Provide()

	auditSvc := auditservice.New(auditservice.Params{
		DB:    db,
		Log:   zap.NewNop(),
		GenID: node,
		Clock: clk,
		Repo:  auditrepository.Provide(),
	})
	userSvc := userservice.New(userservice.Params{
		DB:    db,
		Log:   zap.NewNop(),
		GenID: node,
		Clock: clk,
		Guard: guard,
		Repo:  userrepository.Provide(),
		Orgs:  orgRepo,
		Audit: auditSvc,
	})
	engine := ledger.New(ledger.Params{
		Log:   zap.NewNop(),
		Clock: clk,
	})
	provider := &stubProvider{}
	router := notification.New(notification.Params{
		Log:      zap.NewNop(),
		Config:   cfg,
		Users:    userSvc,
		Provider: provider,
	})

	svc := New(Params{
		Config: cfg,
		DB:     db,
		Log:    zap.NewNop(),
		GenID:  node,
		Clock:  clk,
		Guard:  guard,
		Repo:   repository.Provide(),
		Orgs:   orgRepo,
		Users:  userSvc,
		Ledger: engine,
		Router: router,
		Audit:  auditSvc,
	})

	orgRef := "ORG-1"
	org := orgdomain.Organisation{
		ID:          node.Generate(),
		Name:        "Northwind Recoveries",
		ExternalRef: &orgRef,
		CreatedAt:   clk.Now(),
		UpdatedAt:   clk.Now(),
	}
	require.NoError(t, db.Create(&org).Error)

	return &fixture{svc: svc, users: userSvc, db: db, node: node, org: org, provider: provider}
}

func TestUpsertCase_CreateDefaults(t *testing.T) {
	f := newFixture(t, config.Config{})
	ctx := context.Background()

	resp, err := f.svc.Upsert(ctx, domain.UpsertCaseRequest{
		ExternalRef:             "CASE-1",
		OrganisationExternalRef: "ORG-1",
		AccountNumber:           "ACC-77",
		CaseName:                "Meridian vs Holt",
		OriginalAmount:          "1200.00",
		CostsAdded:              "35.50",
	})
	require.NoError(t, err)
	assert.Equal(t, domain.OutcomeCreated, resp.Outcome)
	assert.Equal(t, domain.StatusActive, resp.Case.Status)
	assert.Equal(t, domain.StageInitialContact, resp.Case.Stage)
	assert.True(t, decimal.RequireFromString("1235.50").Equal(resp.Case.OutstandingAmount), resp.Case.OutstandingAmount.String())
}

func TestUpsertCase_MissingOrganisation(t *testing.T) {
	f := newFixture(t, config.Config{})

	_, err := f.svc.Upsert(context.Background(), domain.UpsertCaseRequest{
		ExternalRef:             "CASE-2",
		OrganisationExternalRef: "ORG-UNKNOWN",
		AccountNumber:           "ACC-1",
	})
	assert.ErrorIs(t, err, domain.ErrDependencyNotFound)
}

func TestUpsertCase_InvalidAmountRejected(t *testing.T) {
	f := newFixture(t, config.Config{})

	_, err := f.svc.Upsert(context.Background(), domain.UpsertCaseRequest{
		ExternalRef:             "CASE-3",
		OrganisationExternalRef: "ORG-1",
		AccountNumber:           "ACC-1",
		OriginalAmount:          "1,200.00",
	})
	assert.Error(t, err)
}

func TestUpsertCase_AdjustmentRecomputesOutstanding(t *testing.T) {
	f := newFixture(t, config.Config{})
	ctx := context.Background()

	created, err := f.svc.Upsert(ctx, domain.UpsertCaseRequest{
		ExternalRef:             "CASE-4",
		OrganisationExternalRef: "ORG-1",
		AccountNumber:           "ACC-4",
		OriginalAmount:          "1000.00",
	})
	require.NoError(t, err)

	now := time.Now().UTC()
	payment := paymentdomain.Payment{
		ID:          f.node.Generate(),
		CaseID:      created.Case.ID,
		Amount:      decimal.RequireFromString("200.00"),
		PaymentDate: now,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	require.NoError(t, f.db.Create(&payment).Error)

	updated, err := f.svc.Upsert(ctx, domain.UpsertCaseRequest{
		ExternalRef:             "CASE-4",
		OrganisationExternalRef: "ORG-1",
		CostsAdded:              "50.00",
	})
	require.NoError(t, err)
	assert.Equal(t, domain.OutcomeUpdated, updated.Outcome)
	assert.True(t, decimal.RequireFromString("850.00").Equal(updated.Case.OutstandingAmount), updated.Case.OutstandingAmount.String())
}

func TestUpsertCase_AccountNumberFallback(t *testing.T) {
	f := newFixture(t, config.Config{AccountNumberFallback: true})
	ctx := context.Background()

	// Legacy case created before the external system started pushing
	// references.
	legacy := domain.Case{
		ID:                f.node.Generate(),
		OrgID:             f.org.ID,
		AccountNumber:     "ACC-LEGACY",
		OriginalAmount:    decimal.RequireFromString("400.00"),
		OutstandingAmount: decimal.RequireFromString("400.00"),
		Status:            domain.StatusActive,
		Stage:             domain.StageInitialContact,
		CreatedAt:         time.Now().UTC(),
		UpdatedAt:         time.Now().UTC(),
	}
	require.NoError(t, f.db.Create(&legacy).Error)

	resp, err := f.svc.Upsert(ctx, domain.UpsertCaseRequest{
		ExternalRef:             "CASE-NEW-REF",
		OrganisationExternalRef: "ORG-1",
		AccountNumber:           "ACC-LEGACY",
	})
	require.NoError(t, err)
	assert.Equal(t, domain.OutcomeUpdated, resp.Outcome)
	assert.Equal(t, legacy.ID, resp.Case.ID)
	require.NotNil(t, resp.Case.ExternalRef)
	assert.Equal(t, "CASE-NEW-REF", *resp.Case.ExternalRef)

	// A different reference for the same account is a conflict, not a
	// second binding.
	_, err = f.svc.Upsert(ctx, domain.UpsertCaseRequest{
		ExternalRef:             "CASE-OTHER-REF",
		OrganisationExternalRef: "ORG-1",
		AccountNumber:           "ACC-LEGACY",
	})
	assert.ErrorIs(t, err, domain.ErrDuplicateReference)
}

func TestUpsertCase_FallbackDisabledCreatesNewCase(t *testing.T) {
	f := newFixture(t, config.Config{})
	ctx := context.Background()

	legacy := domain.Case{
		ID:                f.node.Generate(),
		OrgID:             f.org.ID,
		AccountNumber:     "ACC-SHARED",
		OriginalAmount:    decimal.RequireFromString("100.00"),
		OutstandingAmount: decimal.RequireFromString("100.00"),
		Status:            domain.StatusActive,
		Stage:             domain.StageInitialContact,
		CreatedAt:         time.Now().UTC(),
		UpdatedAt:         time.Now().UTC(),
	}
	require.NoError(t, f.db.Create(&legacy).Error)

	resp, err := f.svc.Upsert(ctx, domain.UpsertCaseRequest{
		ExternalRef:             "CASE-DISTINCT",
		OrganisationExternalRef: "ORG-1",
		AccountNumber:           "ACC-SHARED",
	})
	require.NoError(t, err)
	assert.Equal(t, domain.OutcomeCreated, resp.Outcome)
	assert.NotEqual(t, legacy.ID, resp.Case.ID)
}

func TestArchiveCase(t *testing.T) {
	f := newFixture(t, config.Config{})
	ctx := context.Background()

	created, err := f.svc.Upsert(ctx, domain.UpsertCaseRequest{
		ExternalRef:             "CASE-ARCHIVE",
		OrganisationExternalRef: "ORG-1",
		AccountNumber:           "ACC-9",
	})
	require.NoError(t, err)

	require.NoError(t, f.svc.Archive(ctx, created.Case.ID))

	stored, err := f.svc.GetByID(ctx, created.Case.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusArchived, stored.Status)
	assert.NotNil(t, stored.ArchivedAt)
}

func TestDeleteCase_Cascades(t *testing.T) {
	f := newFixture(t, config.Config{})
	ctx := context.Background()

	created, err := f.svc.Upsert(ctx, domain.UpsertCaseRequest{
		ExternalRef:             "CASE-DELETE",
		OrganisationExternalRef: "ORG-1",
		AccountNumber:           "ACC-10",
		OriginalAmount:          "500.00",
	})
	require.NoError(t, err)

	now := time.Now().UTC()
	payment := paymentdomain.Payment{
		ID:          f.node.Generate(),
		CaseID:      created.Case.ID,
		Amount:      decimal.RequireFromString("50.00"),
		PaymentDate: now,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	require.NoError(t, f.db.Create(&payment).Error)

	require.NoError(t, f.svc.Delete(ctx, created.Case.ID))

	_, err = f.svc.GetByID(ctx, created.Case.ID)
	assert.ErrorIs(t, err, domain.ErrNotFound)

	var paymentCount int64
	require.NoError(t, f.db.Model(&paymentdomain.Payment{}).Where("case_id = ?", created.Case.ID).Count(&paymentCount).Error)
	assert.EqualValues(t, 0, paymentCount)
}

func TestUpsertCase_UpdateNotifiesMembers(t *testing.T) {
	f := newFixture(t, config.Config{})
	ctx := context.Background()

	member, err := f.users.Upsert(ctx, userdomain.UpsertUserRequest{
		ExternalRef:             "USR-NOTIFY",
		FirstName:               "Dana",
		LastName:                "Holt",
		Email:                   "dana@example.test",
		OrganisationExternalRef: "ORG-1",
	})
	require.NoError(t, err)
	// The member has signed in, so delivery is not suppressed.
	require.NoError(t, f.db.Exec(
		`UPDATE users SET must_change_password = ? WHERE id = ?`,
		false, member.User.ID,
	).Error)

	_, err = f.svc.Upsert(ctx, domain.UpsertCaseRequest{
		ExternalRef:             "CASE-NOTIFY",
		OrganisationExternalRef: "ORG-1",
		AccountNumber:           "ACC-20",
		OriginalAmount:          "300.00",
	})
	require.NoError(t, err)
	assert.Empty(t, f.provider.sent)

	_, err = f.svc.Upsert(ctx, domain.UpsertCaseRequest{
		ExternalRef:             "CASE-NOTIFY",
		OrganisationExternalRef: "ORG-1",
		Stage:                   "negotiation",
	})
	require.NoError(t, err)

	require.Len(t, f.provider.sent, 1)
	assert.Equal(t, []string{"dana@example.test"}, f.provider.sent[0])
}

func TestCaseRepositoryUpdate_NeverWritesOutstanding(t *testing.T) {
	f := newFixture(t, config.Config{})
	ctx := context.Background()

	created, err := f.svc.Upsert(ctx, domain.UpsertCaseRequest{
		ExternalRef:             "CASE-STALE",
		OrganisationExternalRef: "ORG-1",
		AccountNumber:           "ACC-30",
		OriginalAmount:          "1000.00",
	})
	require.NoError(t, err)

	// A copy holding a stale cache value must not clobber the column: only
	// the ledger engine writes it.
	stale := created.Case
	stale.OutstandingAmount = decimal.RequireFromString("1.00")
	stale.DebtorName = "Updated Debtor"
	require.NoError(t, repository.Provide().Update(ctx, f.db, &stale))

	refreshed, err := f.svc.GetByID(ctx, created.Case.ID)
	require.NoError(t, err)
	assert.Equal(t, "Updated Debtor", refreshed.DebtorName)
	assert.True(t, decimal.RequireFromString("1000.00").Equal(refreshed.OutstandingAmount), refreshed.OutstandingAmount.String())
}
