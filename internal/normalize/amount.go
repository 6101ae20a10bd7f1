package normalize

import (
	"errors"
	"strings"

	"github.com/shopspring/decimal"
)

var ErrInvalidAmount = errors.New("invalid_amount")

// ParseAmount parses a monetary literal into an exact decimal. Amounts from
// the external system arrive as strings and must never pass through a binary
// float: precision loss in the ledger path is not recoverable.
func ParseAmount(raw string) (decimal.Decimal, error) {
	value := strings.TrimSpace(raw)
	if value == "" {
		return decimal.Decimal{}, ErrInvalidAmount
	}

	switch strings.ToLower(value) {
	case "nan", "+nan", "-nan", "inf", "+inf", "-inf", "infinity", "+infinity", "-infinity":
		return decimal.Decimal{}, ErrInvalidAmount
	}

	// Thousands separators are ambiguous across locales; the upstream contract
	// sends plain decimal literals only.
	if strings.ContainsAny(value, ", _'") {
		return decimal.Decimal{}, ErrInvalidAmount
	}
	if strings.ContainsAny(value, "eE") {
		return decimal.Decimal{}, ErrInvalidAmount
	}

	parsed, err := decimal.NewFromString(value)
	if err != nil {
		return decimal.Decimal{}, ErrInvalidAmount
	}
	return parsed, nil
}
