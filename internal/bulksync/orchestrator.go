package bulksync

import (
	"context"
	"sync"

	casedomain "github.com/smallbiznis/casebridge/internal/caserecord/domain"
	"github.com/smallbiznis/casebridge/internal/observability/metrics"
	orgdomain "github.com/smallbiznis/casebridge/internal/organization/domain"
	paymentdomain "github.com/smallbiznis/casebridge/internal/payment/domain"
	userdomain "github.com/smallbiznis/casebridge/internal/user/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

// workerCount bounds concurrency inside one category. Items for the same
// reconciliation key still serialize on the key guard below the services.
const workerCount = 4

// Batch is one bulk push from the external system. Categories are processed
// in dependency order so an item never races its own prerequisite:
// organisations, then users, then cases, then payments.
type Batch struct {
	Organisations []orgdomain.UpsertOrganisationRequest `json:"organisations,omitempty"`
	Users         []userdomain.UpsertUserRequest        `json:"users,omitempty"`
	Cases         []casedomain.UpsertCaseRequest        `json:"cases,omitempty"`
	Payments      []paymentdomain.UpsertPaymentRequest  `json:"payments,omitempty"`
}

// ItemError pins a failure to the item that caused it. One bad item never
// fails its batch: everything else still lands.
type ItemError struct {
	ExternalRef string `json:"external_ref"`
	Error       string `json:"error"`
}

// CategoryResult carries its own error slots so the caller can retry one
// category's failed subset without cross-referencing a shared list.
type CategoryResult struct {
	Created int         `json:"created"`
	Updated int         `json:"updated"`
	Failed  int         `json:"failed"`
	Errors  []ItemError `json:"errors,omitempty"`
}

type Result struct {
	Organisations CategoryResult `json:"organisations"`
	Users         CategoryResult `json:"users"`
	Cases         CategoryResult `json:"cases"`
	Payments      CategoryResult `json:"payments"`
}

type Orchestrator struct {
	log      *zap.Logger
	orgs     orgdomain.Service
	users    userdomain.Service
	cases    casedomain.Service
	payments paymentdomain.Service
}

type Params struct {
	fx.In

	Log      *zap.Logger
	Orgs     orgdomain.Service
	Users    userdomain.Service
	Cases    casedomain.Service
	Payments paymentdomain.Service
}

func New(p Params) *Orchestrator {
	return &Orchestrator{
		log:      p.Log.Named("bulksync.orchestrator"),
		orgs:     p.Orgs,
		users:    p.Users,
		cases:    p.Cases,
		payments: p.Payments,
	}
}

// Run processes the batch category by category. A category fully drains
// before the next one starts, so cases see every organisation and user the
// same batch carried.
func (o *Orchestrator) Run(ctx context.Context, batch Batch) Result {
	var result Result
	var mu sync.Mutex

	record := func(category *CategoryResult, itemCategory, externalRef string, outcome string, err error) {
		mu.Lock()
		defer mu.Unlock()
		if err != nil {
			category.Failed++
			category.Errors = append(category.Errors, ItemError{
				ExternalRef: externalRef,
				Error:       err.Error(),
			})
			metrics.RecordSyncItem(itemCategory, "failed")
			return
		}
		if outcome == "created" {
			category.Created++
		} else {
			category.Updated++
		}
		metrics.RecordSyncItem(itemCategory, outcome)
	}

	runCategory(ctx, batch.Organisations, func(ctx context.Context, req orgdomain.UpsertOrganisationRequest) {
		resp, err := o.orgs.Upsert(ctx, req)
		record(&result.Organisations, "organisation", req.ExternalRef, string(resp.Outcome), err)
	})
	runCategory(ctx, batch.Users, func(ctx context.Context, req userdomain.UpsertUserRequest) {
		resp, err := o.users.Upsert(ctx, req)
		record(&result.Users, "user", req.ExternalRef, string(resp.Outcome), err)
	})
	runCategory(ctx, batch.Cases, func(ctx context.Context, req casedomain.UpsertCaseRequest) {
		resp, err := o.cases.Upsert(ctx, req)
		record(&result.Cases, "case", req.ExternalRef, string(resp.Outcome), err)
	})
	runCategory(ctx, batch.Payments, func(ctx context.Context, req paymentdomain.UpsertPaymentRequest) {
		resp, err := o.payments.Upsert(ctx, req)
		record(&result.Payments, "payment", req.ExternalRef, string(resp.OutcomeUpsert), err)
	})

	o.log.Info("bulk sync finished",
		zap.Int("organisations", len(batch.Organisations)),
		zap.Int("users", len(batch.Users)),
		zap.Int("cases", len(batch.Cases)),
		zap.Int("payments", len(batch.Payments)),
		zap.Int("failed", result.Organisations.Failed+result.Users.Failed+result.Cases.Failed+result.Payments.Failed),
	)
	return result
}

func runCategory[T any](ctx context.Context, items []T, process func(context.Context, T)) {
	if len(items) == 0 {
		return
	}

	jobs := make(chan T)
	var wg sync.WaitGroup
	for i := 0; i < workerCount; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for item := range jobs {
				process(ctx, item)
			}
		}()
	}
	for _, item := range items {
		jobs <- item
	}
	close(jobs)
	wg.Wait()
}

// Module wires the bulk sync orchestrator.
var Module = fx.Module("bulksync.orchestrator",
	fx.Provide(New),
)
