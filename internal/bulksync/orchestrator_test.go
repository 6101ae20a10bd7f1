package bulksync

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/glebarez/sqlite"
	activitydomain "github.com/smallbiznis/casebridge/internal/activity/domain"
	auditdomain "github.com/smallbiznis/casebridge/internal/audit/domain"
	auditrepository "github.com/smallbiznis/casebridge/internal/audit/repository"
	auditservice "github.com/smallbiznis/casebridge/internal/audit/service"
	casedomain "github.com/smallbiznis/casebridge/internal/caserecord/domain"
	caserepository "github.com/smallbiznis/casebridge/internal/caserecord/repository"
	caseservice "github.com/smallbiznis/casebridge/internal/caserecord/service"
	"github.com/smallbiznis/casebridge/internal/clock"
	"github.com/smallbiznis/casebridge/internal/config"
	"github.com/smallbiznis/casebridge/internal/keylock"
	"github.com/smallbiznis/casebridge/internal/ledger"
	"github.com/smallbiznis/casebridge/internal/notification"
	"github.com/smallbiznis/casebridge/internal/notification/email"
	orgdomain "github.com/smallbiznis/casebridge/internal/organization/domain"
	orgrepository "github.com/smallbiznis/casebridge/internal/organization/repository"
	orgservice "github.com/smallbiznis/casebridge/internal/organization/service"
	paymentdomain "github.com/smallbiznis/casebridge/internal/payment/domain"
	paymentrepository "github.com/smallbiznis/casebridge/internal/payment/repository"
	paymentservice "github.com/smallbiznis/casebridge/internal/payment/service"
	userdomain "github.com/smallbiznis/casebridge/internal/user/domain"
	userrepository "github.com/smallbiznis/casebridge/internal/user/repository"
	userservice "github.com/smallbiznis/casebridge/internal/user/service"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type fixture struct {
	orch *Orchestrator
	db   *gorm.DB
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	db, err := gorm.Open(sqlite.Open("file:"+t.Name()+"?mode=memory&cache=shared"), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(
		&orgdomain.Organisation{},
		&userdomain.User{},
		&userdomain.Membership{},
		&userdomain.CaseMute{},
		&userdomain.CaseBlock{},
		&casedomain.Case{},
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
	caseRepo := caserepository.Provide()

	auditSvc := auditservice.New(auditservice.Params{
		DB:    db,
		Log:   zap.NewNop(),
		GenID: node,
		Clock: clk,
		Repo:  auditrepository.Provide(),
	})
	orgSvc := orgservice.New(orgservice.Params{
		DB:    db,
		Log:   zap.NewNop(),
		GenID: node,
		Clock: clk,
		Guard: guard,
		Repo:  orgRepo,
		Audit: auditSvc,
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
	router := notification.New(notification.Params{
		Log:      zap.NewNop(),
		Config:   config.Config{},
		Users:    userSvc,
		Provider: &email.NoOpProvider{},
	})
	caseSvc := caseservice.New(caseservice.Params{
		Config: config.Config{},
		DB:     db,
		Log:    zap.NewNop(),
		GenID:  node,
		Clock:  clk,
		Guard:  guard,
		Repo:   caseRepo,
		Orgs:   orgRepo,
		Users:  userSvc,
		Ledger: engine,
		Router: router,
		Audit:  auditSvc,
	})
	paymentSvc := paymentservice.New(paymentservice.Params{
		DB:     db,
		Log:    zap.NewNop(),
		GenID:  node,
		Clock:  clk,
		Guard:  guard,
		Repo:   paymentrepository.Provide(),
		Cases:  caseRepo,
		Ledger: engine,
		Audit:  auditSvc,
	})

	orch := New(Params{
		Log:      zap.NewNop(),
		Orgs:     orgSvc,
		Users:    userSvc,
		Cases:    caseSvc,
		Payments: paymentSvc,
	})
	return &fixture{orch: orch, db: db}
}

func TestRun_DependencyOrderWithinOneBatch(t *testing.T) {
	f := newFixture(t)

	// Cases reference an organisation carried in the same batch, payments a
	// case carried in the same batch. Category draining makes that legal.
	result := f.orch.Run(context.Background(), Batch{
		Organisations: []orgdomain.UpsertOrganisationRequest{
			{ExternalRef: "ORG-1", Name: "Northwind Recoveries"},
		},
		Users: []userdomain.UpsertUserRequest{
			{ExternalRef: "USR-1", FirstName: "Alice", LastName: "Tester", Email: "alice@example.test", OrganisationExternalRef: "ORG-1"},
		},
		Cases: []casedomain.UpsertCaseRequest{
			{ExternalRef: "CASE-1", OrganisationExternalRef: "ORG-1", AccountNumber: "ACC-1", OriginalAmount: "1000.00"},
		},
		Payments: []paymentdomain.UpsertPaymentRequest{
			{ExternalRef: "PAY-1", CaseExternalRef: "CASE-1", Amount: "250.00", PaymentDate: "2025-05-20"},
		},
	})

	assert.Equal(t, CategoryResult{Created: 1}, result.Organisations)
	assert.Equal(t, CategoryResult{Created: 1}, result.Users)
	assert.Equal(t, CategoryResult{Created: 1}, result.Cases)
	assert.Equal(t, CategoryResult{Created: 1}, result.Payments)

	var outstanding string
	require.NoError(t, f.db.Raw(`SELECT outstanding_amount FROM cases WHERE external_ref = ?`, "CASE-1").Scan(&outstanding).Error)
	assert.Equal(t, "750", outstanding)
}

func TestRun_OneBadItemDoesNotFailTheBatch(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.orch.orgs.Upsert(ctx, orgdomain.UpsertOrganisationRequest{ExternalRef: "ORG-1", Name: "Northwind Recoveries"})
	require.NoError(t, err)

	cases := make([]casedomain.UpsertCaseRequest, 0, 11)
	for i := 1; i <= 10; i++ {
		cases = append(cases, casedomain.UpsertCaseRequest{
			ExternalRef:             fmt.Sprintf("CASE-%d", i),
			OrganisationExternalRef: "ORG-1",
			AccountNumber:           fmt.Sprintf("ACC-%d", i),
			OriginalAmount:          "100.00",
		})
	}
	// Unknown organisation: this one item fails, the other ten land.
	cases = append(cases, casedomain.UpsertCaseRequest{
		ExternalRef:             "CASE-BAD",
		OrganisationExternalRef: "ORG-MISSING",
		AccountNumber:           "ACC-BAD",
	})

	result := f.orch.Run(ctx, Batch{Cases: cases})

	assert.Equal(t, 10, result.Cases.Created)
	assert.Equal(t, 1, result.Cases.Failed)
	require.Len(t, result.Cases.Errors, 1)
	assert.Equal(t, "CASE-BAD", result.Cases.Errors[0].ExternalRef)
	assert.Equal(t, "dependency_not_found", result.Cases.Errors[0].Error)

	var count int64
	require.NoError(t, f.db.Raw(`SELECT COUNT(*) FROM cases`).Scan(&count).Error)
	assert.EqualValues(t, 10, count)
}

func TestRun_MalformedAmountFailsOnlyItsItem(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.orch.orgs.Upsert(ctx, orgdomain.UpsertOrganisationRequest{ExternalRef: "ORG-1", Name: "Northwind Recoveries"})
	require.NoError(t, err)

	cases := make([]casedomain.UpsertCaseRequest, 0, 11)
	for i := 1; i <= 10; i++ {
		cases = append(cases, casedomain.UpsertCaseRequest{
			ExternalRef:             fmt.Sprintf("CASE-%d", i),
			OrganisationExternalRef: "ORG-1",
			AccountNumber:           fmt.Sprintf("ACC-%d", i),
			OriginalAmount:          "100.00",
		})
	}
	// Thousands separators are rejected by the amount parser.
	cases = append(cases, casedomain.UpsertCaseRequest{
		ExternalRef:             "CASE-BADAMT",
		OrganisationExternalRef: "ORG-1",
		AccountNumber:           "ACC-BADAMT",
		OriginalAmount:          "1,200.00",
	})

	result := f.orch.Run(ctx, Batch{Cases: cases})

	assert.Equal(t, 10, result.Cases.Created)
	assert.Equal(t, 1, result.Cases.Failed)
	require.Len(t, result.Cases.Errors, 1)
	assert.Equal(t, "CASE-BADAMT", result.Cases.Errors[0].ExternalRef)
	assert.Equal(t, "invalid_amount", result.Cases.Errors[0].Error)

	var count int64
	require.NoError(t, f.db.Raw(`SELECT COUNT(*) FROM cases`).Scan(&count).Error)
	assert.EqualValues(t, 10, count)
}

func TestRun_RepeatedBatchIsIdempotent(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	batch := Batch{
		Organisations: []orgdomain.UpsertOrganisationRequest{
			{ExternalRef: "ORG-1", Name: "Northwind Recoveries"},
		},
		Cases: []casedomain.UpsertCaseRequest{
			{ExternalRef: "CASE-1", OrganisationExternalRef: "ORG-1", AccountNumber: "ACC-1", OriginalAmount: "500.00"},
		},
	}

	first := f.orch.Run(ctx, batch)
	assert.Equal(t, CategoryResult{Created: 1}, first.Cases)

	second := f.orch.Run(ctx, batch)
	assert.Equal(t, CategoryResult{Updated: 1}, second.Organisations)
	assert.Equal(t, CategoryResult{Updated: 1}, second.Cases)

	var count int64
	require.NoError(t, f.db.Raw(`SELECT COUNT(*) FROM cases`).Scan(&count).Error)
	assert.EqualValues(t, 1, count)
}
