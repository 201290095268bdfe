package finance

import (
	"sort"

	"github.com/shopspring/decimal"
	"github.com/warp/obligation-engine/generic"
)

// =============================================================================
// PAYMENT ALLOCATOR - Distributes cash over one account's obligations
// =============================================================================

// Allocation is one transfer of cash onto one obligation.
type Allocation struct {
	ObligationID generic.ObligationID
	ItemID       generic.ItemID
	Deadline     generic.TimePoint
	Amount       decimal.Decimal
}

// Allocate orders the unpaid obligations by policy and pays each in full
// until cash runs out; the last obligation touched may be paid partially.
//
// It is pure: the input slice is not modified. The returned obligations are
// copies with Remaining reduced, in the input order. cash <= 0 is a no-op
// returning no allocations.
func Allocate(obligations []Obligation, cash decimal.Decimal, policy AllocationPolicy) ([]Obligation, []Allocation) {
	updated := make([]Obligation, len(obligations))
	copy(updated, obligations)
	if !cash.IsPositive() {
		return updated, nil
	}

	order := make([]int, 0, len(updated))
	for i, ob := range updated {
		if ob.Remaining.IsPositive() {
			order = append(order, i)
		}
	}
	sort.SliceStable(order, func(i, j int) bool {
		return policy.less(updated[order[i]], updated[order[j]])
	})

	var allocations []Allocation
	left := cash
	for _, idx := range order {
		if !left.IsPositive() {
			break
		}
		ob := &updated[idx]
		pay := generic.MinDecimal(ob.Remaining, left)
		ob.Remaining = ob.Remaining.Sub(pay)
		left = left.Sub(pay)
		allocations = append(allocations, Allocation{
			ObligationID: ob.ID,
			ItemID:       ob.ItemID,
			Deadline:     ob.Deadline,
			Amount:       pay,
		})
	}
	return updated, allocations
}

// TotalAllocated sums the amounts of a list of allocations.
func TotalAllocated(allocations []Allocation) decimal.Decimal {
	total := decimal.Zero
	for _, a := range allocations {
		total = total.Add(a.Amount)
	}
	return total
}
