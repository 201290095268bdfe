package finance

import (
	"fmt"
	"sort"

	"github.com/shopspring/decimal"
	"github.com/warp/obligation-engine/generic"
)

// =============================================================================
// ALLOCATION POLICY - Which obligation gets paid first
// =============================================================================

type AllocationPolicy string

const (
	// PolicyFIFODeadline pays the earliest deadline first, ties by creation.
	PolicyFIFODeadline AllocationPolicy = "fifo_deadline"

	// PolicyHighestRate pays the highest captured interest rate first.
	PolicyHighestRate AllocationPolicy = "highest_rate"

	// PolicyHighestValue pays the highest captured value score first.
	PolicyHighestValue AllocationPolicy = "highest_value"
)

// ParseAllocationPolicy maps a name to a policy; empty means fifo_deadline.
func ParseAllocationPolicy(s string) (AllocationPolicy, error) {
	switch AllocationPolicy(s) {
	case "":
		return PolicyFIFODeadline, nil
	case PolicyFIFODeadline, PolicyHighestRate, PolicyHighestValue:
		return AllocationPolicy(s), nil
	default:
		return "", fmt.Errorf("%w: %q", ErrInvalidPolicy, s)
	}
}

// less orders two unpaid obligations under the policy. Every policy falls
// back to deadline, creation order and ID so the order is total.
func (p AllocationPolicy) less(a, b Obligation) bool {
	switch p {
	case PolicyHighestRate:
		if !a.InterestRate.Equal(b.InterestRate) {
			return a.InterestRate.GreaterThan(b.InterestRate)
		}
	case PolicyHighestValue:
		if !a.ValueScore.Equal(b.ValueScore) {
			return a.ValueScore.GreaterThan(b.ValueScore)
		}
	}
	if !a.Deadline.Equal(b.Deadline) {
		return a.Deadline.Before(b.Deadline)
	}
	if !a.CreatedAt.Equal(b.CreatedAt) {
		return a.CreatedAt.Before(b.CreatedAt)
	}
	if a.Seq != b.Seq {
		return a.Seq < b.Seq
	}
	return a.ID < b.ID
}

// =============================================================================
// PRICE MODE - Which price is assumed for an item
// =============================================================================

type PriceMode string

const (
	// PriceFixed always uses the point price.
	PriceFixed PriceMode = "fixed"

	// PriceRange uses the upper bound when present (worst case).
	PriceRange PriceMode = "range"

	// PriceRangeMin uses the lower bound when present (best case).
	PriceRangeMin PriceMode = "range_min"

	// PriceOptimize is accepted for compatibility and behaves like PriceRange.
	PriceOptimize PriceMode = "optimize_under_constraints"
)

// ParsePriceMode maps a name to a mode; empty means range.
func ParsePriceMode(s string) (PriceMode, error) {
	switch PriceMode(s) {
	case "":
		return PriceRange, nil
	case PriceFixed, PriceRange, PriceRangeMin, PriceOptimize:
		return PriceMode(s), nil
	default:
		return "", fmt.Errorf("%w: %q", ErrInvalidPriceMode, s)
	}
}

// Resolve picks the price for an item. Zero or negative results are clamped
// to zero: the purchase is still recorded, as a zero-cost one.
func (m PriceMode) Resolve(p Price) decimal.Decimal {
	price := p.Value
	switch m {
	case PriceFixed:
	case PriceRangeMin:
		if p.Min != nil {
			price = *p.Min
		}
	default:
		if p.Max != nil {
			price = *p.Max
		}
	}
	return generic.NonNegative(generic.RoundMoney(price))
}

// =============================================================================
// SOURCE STRATEGY - Which account funds a credit purchase
// =============================================================================

type SourceStrategy string

const (
	// SourceLongestGrace picks the longest grace period, ties by lowest rate.
	SourceLongestGrace SourceStrategy = "longest_grace"

	// SourceLowestRate picks the lowest interest rate, ties by longest grace.
	SourceLowestRate SourceStrategy = "lowest_rate"

	// SourceFirstListed picks the first allowed source that is a known account.
	SourceFirstListed SourceStrategy = "first_listed"
)

// ParseSourceStrategy maps a name to a strategy; empty means longest_grace.
func ParseSourceStrategy(s string) (SourceStrategy, error) {
	switch SourceStrategy(s) {
	case "":
		return SourceLongestGrace, nil
	case SourceLongestGrace, SourceLowestRate, SourceFirstListed:
		return SourceStrategy(s), nil
	default:
		return "", fmt.Errorf("%w: %q", ErrInvalidSourceStrategy, s)
	}
}

// Pick returns the funding account among the allowed sources, or
// generic.SourceCash when none of them is a known account.
func (s SourceStrategy) Pick(allowed []generic.AccountID, accounts map[generic.AccountID]Account) generic.AccountID {
	var candidates []Account
	seen := make(map[generic.AccountID]bool)
	for _, id := range allowed {
		if id.IsCash() || seen[id] {
			continue
		}
		if acc, ok := accounts[id]; ok {
			candidates = append(candidates, acc)
			seen[id] = true
		}
	}
	if len(candidates) == 0 {
		return generic.SourceCash
	}
	if s == SourceFirstListed {
		return candidates[0].ID
	}

	sort.SliceStable(candidates, func(i, j int) bool {
		a, b := candidates[i], candidates[j]
		byGrace := func() (bool, bool) {
			if a.GraceDays != b.GraceDays {
				return a.GraceDays > b.GraceDays, true
			}
			return false, false
		}
		byRate := func() (bool, bool) {
			if !a.InterestRate.Equal(b.InterestRate) {
				return a.InterestRate.LessThan(b.InterestRate), true
			}
			return false, false
		}
		first, second := byGrace, byRate
		if s == SourceLowestRate {
			first, second = byRate, byGrace
		}
		if r, ok := first(); ok {
			return r
		}
		if r, ok := second(); ok {
			return r
		}
		return a.ID < b.ID
	})
	return candidates[0].ID
}
