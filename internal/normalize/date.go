package normalize

import (
	"errors"
	"strconv"
	"strings"
	"time"

	"github.com/smallbiznis/casebridge/internal/clock"
)

var ErrInvalidDate = errors.New("invalid_date")

// ParseDate accepts exactly three formats: DD/MM/YYYY, YYYY-MM-DD and full
// RFC 3339. The two calendar forms are decomposed into day/month/year, a
// time.Date is constructed from the components and read back; a mismatch means
// the calendar normalised an overflow (31/04 rolling into May) and the input
// is rejected instead of silently shifted.
func ParseDate(raw string) (time.Time, error) {
	value := strings.TrimSpace(raw)
	if value == "" {
		return time.Time{}, ErrInvalidDate
	}

	if strings.Contains(value, "T") {
		parsed, err := time.Parse(time.RFC3339, value)
		if err != nil {
			return time.Time{}, ErrInvalidDate
		}
		return parsed.UTC(), nil
	}

	var day, month, year int
	var err error
	switch {
	case strings.Contains(value, "/"):
		day, month, year, err = splitCalendar(value, "/", 0, 1, 2)
	case strings.Contains(value, "-"):
		year, month, day, err = splitCalendarISO(value)
	default:
		return time.Time{}, ErrInvalidDate
	}
	if err != nil {
		return time.Time{}, ErrInvalidDate
	}

	constructed := time.Date(year, time.Month(month), day, 0, 0, 0, 0, time.UTC)
	if constructed.Year() != year || constructed.Month() != time.Month(month) || constructed.Day() != day {
		return time.Time{}, ErrInvalidDate
	}
	return constructed, nil
}

// ParseDateOrNow defaults an absent date to the current instant. Only
// endpoints whose contract allows a defaulted date (activity and message
// pushes) call this; ledger-affecting writes always require an explicit date.
func ParseDateOrNow(raw string, clk clock.Clock) (time.Time, error) {
	if strings.TrimSpace(raw) == "" {
		return clk.Now().UTC(), nil
	}
	return ParseDate(raw)
}

func splitCalendar(value, sep string, dayIdx, monthIdx, yearIdx int) (day, month, year int, err error) {
	parts := strings.Split(value, sep)
	if len(parts) != 3 {
		return 0, 0, 0, ErrInvalidDate
	}
	if len(parts[dayIdx]) != 2 || len(parts[monthIdx]) != 2 || len(parts[yearIdx]) != 4 {
		return 0, 0, 0, ErrInvalidDate
	}
	day, err = strconv.Atoi(parts[dayIdx])
	if err != nil {
		return 0, 0, 0, ErrInvalidDate
	}
	month, err = strconv.Atoi(parts[monthIdx])
	if err != nil {
		return 0, 0, 0, ErrInvalidDate
	}
	year, err = strconv.Atoi(parts[yearIdx])
	if err != nil {
		return 0, 0, 0, ErrInvalidDate
	}
	return day, month, year, nil
}

func splitCalendarISO(value string) (year, month, day int, err error) {
	parts := strings.Split(value, "-")
	if len(parts) != 3 {
		return 0, 0, 0, ErrInvalidDate
	}
	if len(parts[0]) != 4 || len(parts[1]) != 2 || len(parts[2]) != 2 {
		return 0, 0, 0, ErrInvalidDate
	}
	year, err = strconv.Atoi(parts[0])
	if err != nil {
		return 0, 0, 0, ErrInvalidDate
	}
	month, err = strconv.Atoi(parts[1])
	if err != nil {
		return 0, 0, 0, ErrInvalidDate
	}
	day, err = strconv.Atoi(parts[2])
	if err != nil {
		return 0, 0, 0, ErrInvalidDate
	}
	return year, month, day, nil
}
