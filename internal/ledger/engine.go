package ledger

import (
	"context"
	"errors"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
	"github.com/smallbiznis/casebridge/internal/clock"
	"github.com/smallbiznis/casebridge/pkg/db"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

var ErrCaseNotFound = errors.New("case_not_found")

// Engine maintains the case ledger invariant:
//
//	outstanding = original + costs + interest + fees - sum(payments)
//
// The stored outstanding_amount is only a cache; this is the single place
// that recomputes and persists it. Every caller runs it inside the same
// transaction as the payment or adjustment write that invalidated the cache.
type Engine struct {
	log   *zap.Logger
	clock clock.Clock
}

type Params struct {
	fx.In

	Log   *zap.Logger
	Clock clock.Clock
}

func New(p Params) *Engine {
	return &Engine{
		log:   p.Log.Named("ledger.engine"),
		clock: p.Clock,
	}
}

type caseAmounts struct {
	OriginalAmount decimal.Decimal
	CostsAdded     decimal.Decimal
	InterestAdded  decimal.Decimal
	FeesAdded      decimal.Decimal
}

type paymentAmount struct {
	Amount decimal.Decimal
}

// RecomputeOutstanding derives the outstanding balance from the case's
// adjustment fields and its non-deleted payments, persists the cache and
// returns the value. The case row is locked first so concurrent payment
// writes for the same case serialize instead of both reading a stale sum.
// Summation happens in Go over exact decimals, never in SQL floats.
func (e *Engine) RecomputeOutstanding(ctx context.Context, tx *gorm.DB, caseID snowflake.ID) (decimal.Decimal, error) {
	var amounts []caseAmounts
	stmt := db.ForUpdate(tx.WithContext(ctx).
		Table("cases").
		Select("original_amount", "costs_added", "interest_added", "fees_added").
		Where("id = ?", caseID))
	if err := stmt.Find(&amounts).Error; err != nil {
		return decimal.Decimal{}, err
	}
	if len(amounts) == 0 {
		return decimal.Decimal{}, ErrCaseNotFound
	}

	outstanding := Baseline(amounts[0].OriginalAmount, amounts[0].CostsAdded, amounts[0].InterestAdded, amounts[0].FeesAdded)

	var payments []paymentAmount
	err := tx.WithContext(ctx).
		Table("payments").
		Select("amount").
		Where("case_id = ? AND deleted_at IS NULL", caseID).
		Find(&payments).Error
	if err != nil {
		return decimal.Decimal{}, err
	}
	for _, payment := range payments {
		outstanding = outstanding.Sub(payment.Amount)
	}

	err = tx.WithContext(ctx).Exec(
		`UPDATE cases SET outstanding_amount = ?, updated_at = ? WHERE id = ?`,
		outstanding, e.clock.Now(), caseID,
	).Error
	if err != nil {
		return decimal.Decimal{}, err
	}

	e.log.Debug("outstanding recomputed",
		zap.String("case_id", caseID.String()),
		zap.String("outstanding", outstanding.String()),
	)
	return outstanding, nil
}

// Baseline is the pre-payment balance of a case.
func Baseline(original, costs, interest, fees decimal.Decimal) decimal.Decimal {
	return original.Add(costs).Add(interest).Add(fees)
}

// Module wires the ledger engine.
var Module = fx.Module("ledger.engine",
	fx.Provide(New),
)
