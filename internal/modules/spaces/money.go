package spaces

import (
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// Scale is the number of decimal places kept for every amount
const Scale = 4

// endOfTime is the latest instant the ledger's nanosecond column can hold
var endOfTime = time.Unix(0, math.MaxInt64).UTC()

// ParseAmount parses a decimal string and rejects more than Scale decimal places
func ParseAmount(field, s string) (decimal.Decimal, error) {
	d, err := decimal.NewFromString(strings.TrimSpace(s))
	if err != nil {
		return decimal.Zero, validationf(field, "invalid amount %q", s)
	}
	if err := checkScale(field, d); err != nil {
		return decimal.Zero, err
	}
	return d, nil
}

func checkScale(field string, d decimal.Decimal) error {
	if !d.Equal(d.Truncate(Scale)) {
		return validationf(field, "amount %s has more than %d decimal places", d.String(), Scale)
	}
	return nil
}

func formatAmount(d decimal.Decimal) string {
	return d.StringFixed(Scale)
}

func parseStoredAmount(s string) (decimal.Decimal, error) {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, fmt.Errorf("failed to parse stored amount %q: %w", s, err)
	}
	return d, nil
}

// storedTimeLayout is fixed-width so stored timestamps sort as text
const storedTimeLayout = "2006-01-02T15:04:05.000000000Z07:00"

func formatTime(t time.Time) string {
	return t.UTC().Format(storedTimeLayout)
}

func parseTime(s string) (time.Time, error) {
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("failed to parse stored time %q: %w", s, err)
	}
	return t.UTC(), nil
}

func stringPtr(s string) *string { return &s }

func timePtr(t time.Time) *time.Time { return &t }
