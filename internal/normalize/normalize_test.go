package normalize

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/smallbiznis/casebridge/internal/clock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseAmount(t *testing.T) {
	t.Run("exact decimal", func(t *testing.T) {
		amount, err := ParseAmount("100.10")
		require.NoError(t, err)
		assert.True(t, amount.Equal(decimal.RequireFromString("100.10")))
	})

	t.Run("negative", func(t *testing.T) {
		amount, err := ParseAmount("-42.05")
		require.NoError(t, err)
		assert.True(t, amount.Equal(decimal.RequireFromString("-42.05")))
	})

	t.Run("preserves precision", func(t *testing.T) {
		amount, err := ParseAmount("0.1")
		require.NoError(t, err)
		assert.Equal(t, "0.1", amount.String())
	})

	t.Run("rejects malformed", func(t *testing.T) {
		for _, raw := range []string{"", "  ", "abc", "NaN", "-Inf", "Infinity", "1,000.00", "1e5", "12.34.56"} {
			_, err := ParseAmount(raw)
			assert.ErrorIs(t, err, ErrInvalidAmount, "input %q", raw)
		}
	})
}

func TestParseDate(t *testing.T) {
	t.Run("day month year", func(t *testing.T) {
		parsed, err := ParseDate("21/01/2025")
		require.NoError(t, err)
		assert.Equal(t, 21, parsed.Day())
		assert.Equal(t, time.January, parsed.Month())
		assert.Equal(t, 2025, parsed.Year())
	})

	t.Run("iso calendar", func(t *testing.T) {
		parsed, err := ParseDate("2025-04-30")
		require.NoError(t, err)
		assert.Equal(t, 30, parsed.Day())
		assert.Equal(t, time.April, parsed.Month())
	})

	t.Run("rfc3339", func(t *testing.T) {
		parsed, err := ParseDate("2025-01-21T14:30:00Z")
		require.NoError(t, err)
		assert.Equal(t, 14, parsed.Hour())
	})

	t.Run("rejects calendar overflow", func(t *testing.T) {
		// April has 30 days; rolling to May 1st would corrupt payment dates.
		_, err := ParseDate("31/04/2025")
		assert.ErrorIs(t, err, ErrInvalidDate)

		_, err = ParseDate("2025-02-30")
		assert.ErrorIs(t, err, ErrInvalidDate)
	})

	t.Run("rejects other formats", func(t *testing.T) {
		for _, raw := range []string{"", "21.01.2025", "2025/01/21", "01-21-2025", "21/1/2025", "21/01/25", "next tuesday"} {
			_, err := ParseDate(raw)
			assert.ErrorIs(t, err, ErrInvalidDate, "input %q", raw)
		}
	})
}

func TestParseDateOrNow(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	clk := clock.NewFakeClock(now)

	parsed, err := ParseDateOrNow("", clk)
	require.NoError(t, err)
	assert.Equal(t, now, parsed)

	parsed, err = ParseDateOrNow("02/06/2025", clk)
	require.NoError(t, err)
	assert.Equal(t, 2, parsed.Day())

	_, err = ParseDateOrNow("31/04/2025", clk)
	assert.ErrorIs(t, err, ErrInvalidDate)
}
