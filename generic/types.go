/*
Package generic provides the domain-agnostic primitives of the obligation engine.

PURPOSE:
  Money arithmetic, calendar days and horizons are shared by every other
  package: the simulation core, the scenario loader, the report writer and
  the stores. Keeping them here means a single rounding rule and a single
  date format across the whole repository.

KEY CONCEPTS IN THIS FILE (types.go):
  - Money: decimal.Decimal values rounded to currency precision (2 places)
  - Even split: dividing a total into N chunks that sum back exactly
  - Identifiers: type-safe account, item and obligation IDs

DESIGN PRINCIPLES:
  1. Precision: decimal.Decimal everywhere, never float64
  2. Conservation: splits and rounding never create or lose a cent
  3. Type Safety: strong typing prevents mixing account and item IDs

USAGE:
  price := generic.MustParseDecimal("100.00")
  parts := generic.SplitEvenly(price, 3) // 33.33, 33.33, 33.34

SEE ALSO:
  - time.go: TimePoint day dates
  - period.go: Simulation horizon
  - errors.go: Shared sentinel errors
*/
package generic

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

// =============================================================================
// MONEY - decimal values at currency precision
// =============================================================================

// MoneyPlaces is the number of fractional digits kept for money values.
const MoneyPlaces int32 = 2

// RoundMoney rounds to currency precision (half away from zero).
func RoundMoney(d decimal.Decimal) decimal.Decimal {
	return d.Round(MoneyPlaces)
}

// TruncateMoney drops digits past currency precision (toward zero), so the
// result never exceeds the input when both are positive.
func TruncateMoney(d decimal.Decimal) decimal.Decimal {
	return d.Truncate(MoneyPlaces)
}

// ParseMoney parses a decimal string and rounds it to currency precision.
func ParseMoney(s string) (decimal.Decimal, error) {
	d, err := decimal.NewFromString(strings.TrimSpace(s))
	if err != nil {
		return decimal.Zero, fmt.Errorf("%w: %q", ErrInvalidAmount, s)
	}
	return RoundMoney(d), nil
}

// MustParseDecimal parses s or panics. For constants and tests.
func MustParseDecimal(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

// FormatMoney renders a value with exactly two decimals.
func FormatMoney(d decimal.Decimal) string {
	return d.StringFixed(MoneyPlaces)
}

func MinDecimal(a, b decimal.Decimal) decimal.Decimal {
	if a.LessThan(b) {
		return a
	}
	return b
}

func MaxDecimal(a, b decimal.Decimal) decimal.Decimal {
	if a.GreaterThan(b) {
		return a
	}
	return b
}

// NonNegative clamps negative values to zero.
func NonNegative(d decimal.Decimal) decimal.Decimal {
	if d.IsNegative() {
		return decimal.Zero
	}
	return d
}

// SplitEvenly divides total into n chunks truncated to currency precision.
// The last chunk absorbs the remainder, so the chunks always sum to total.
// n < 1 is treated as a single chunk.
func SplitEvenly(total decimal.Decimal, n int) []decimal.Decimal {
	if n <= 1 {
		return []decimal.Decimal{total}
	}
	chunk := total.Div(decimal.NewFromInt(int64(n))).Truncate(MoneyPlaces)
	parts := make([]decimal.Decimal, n)
	allocated := decimal.Zero
	for i := 0; i < n-1; i++ {
		parts[i] = chunk
		allocated = allocated.Add(chunk)
	}
	parts[n-1] = total.Sub(allocated)
	return parts
}

// Sum adds a list of decimals.
func Sum(values []decimal.Decimal) decimal.Decimal {
	total := decimal.Zero
	for _, v := range values {
		total = total.Add(v)
	}
	return total
}

// =============================================================================
// IDENTIFIERS
// =============================================================================

type AccountID string
type ItemID string
type ObligationID string

// SourceCash is the funding source for purchases paid from the cash balance.
const SourceCash AccountID = "cash"

// IsCash reports whether the source is the cash pool.
func (a AccountID) IsCash() bool { return a == SourceCash || a == "" }
