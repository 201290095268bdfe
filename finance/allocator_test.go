package finance_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/warp/obligation-engine/finance"
	"github.com/warp/obligation-engine/generic"
)

// =============================================================================
// ALLOCATOR TESTS
// =============================================================================

func TestAllocate_FIFO_EarliestDeadlineFirst(t *testing.T) {
	// GIVEN: $50 due Jan 10 and $30 due Jan 5
	obs := []finance.Obligation{
		obligation("a", "card", "lamp", "50", "2024-01-10"),
		obligation("b", "card", "desk", "30", "2024-01-05"),
	}

	// WHEN: Paying $40 under fifo_deadline
	updated, allocs := finance.Allocate(obs, money("40"), finance.PolicyFIFODeadline)

	// THEN: The Jan 5 obligation is cleared, $10 goes to the Jan 10 one
	require.Len(t, allocs, 2)
	assert.Equal(t, generic.ObligationID("b"), allocs[0].ObligationID)
	assertMoney(t, "30", allocs[0].Amount)
	assert.Equal(t, generic.ObligationID("a"), allocs[1].ObligationID)
	assertMoney(t, "10", allocs[1].Amount)

	// Updated obligations keep input order
	assertMoney(t, "40", updated[0].Remaining)
	assertMoney(t, "0", updated[1].Remaining)
	assertMoney(t, "40", updated[0].Remaining.Add(updated[1].Remaining))
}

func TestAllocate_DoesNotModifyInput(t *testing.T) {
	// GIVEN: One obligation
	obs := []finance.Obligation{obligation("a", "card", "lamp", "50", "2024-01-10")}

	// WHEN: Allocating
	_, _ = finance.Allocate(obs, money("20"), finance.PolicyFIFODeadline)

	// THEN: Caller's slice is untouched
	assertMoney(t, "50", obs[0].Remaining)
}

func TestAllocate_HighestRate(t *testing.T) {
	// GIVEN: A low-rate obligation due first and a high-rate one due later
	low := obligation("low", "card", "lamp", "50", "2024-01-05")
	low.InterestRate = money("0.10")
	high := obligation("high", "card", "desk", "50", "2024-01-20")
	high.InterestRate = money("0.25")

	// WHEN: Paying $60 under highest_rate
	_, allocs := finance.Allocate([]finance.Obligation{low, high}, money("60"), finance.PolicyHighestRate)

	// THEN: The high-rate obligation is paid first regardless of deadline
	require.Len(t, allocs, 2)
	assert.Equal(t, generic.ObligationID("high"), allocs[0].ObligationID)
	assertMoney(t, "50", allocs[0].Amount)
	assertMoney(t, "10", allocs[1].Amount)
}

func TestAllocate_HighestValue(t *testing.T) {
	// GIVEN: Two obligations with different value scores
	a := obligation("a", "card", "lamp", "50", "2024-01-05")
	a.ValueScore = money("1")
	b := obligation("b", "card", "desk", "50", "2024-01-20")
	b.ValueScore = money("9")

	// WHEN: Paying $30 under highest_value
	_, allocs := finance.Allocate([]finance.Obligation{a, b}, money("30"), finance.PolicyHighestValue)

	// THEN: Only the high-value obligation receives money
	require.Len(t, allocs, 1)
	assert.Equal(t, generic.ObligationID("b"), allocs[0].ObligationID)
}

func TestAllocate_TiesBrokenByCreationOrder(t *testing.T) {
	// GIVEN: Equal deadlines, different creation sequence
	first := obligation("x", "card", "lamp", "10", "2024-01-05")
	first.Seq = 1
	second := obligation("y", "card", "desk", "10", "2024-01-05")
	second.Seq = 2

	// WHEN: Listed in reverse
	_, allocs := finance.Allocate([]finance.Obligation{second, first}, money("10"), finance.PolicyFIFODeadline)

	// THEN: The older one wins
	require.Len(t, allocs, 1)
	assert.Equal(t, generic.ObligationID("x"), allocs[0].ObligationID)
}

func TestAllocate_ZeroCash_NoOp(t *testing.T) {
	obs := []finance.Obligation{obligation("a", "card", "lamp", "50", "2024-01-10")}

	updated, allocs := finance.Allocate(obs, money("0"), finance.PolicyFIFODeadline)

	assert.Empty(t, allocs)
	assertMoney(t, "50", updated[0].Remaining)
}

func TestAllocate_CashExceedsDebt_StopsAtZero(t *testing.T) {
	// GIVEN: $80 owed in total
	obs := []finance.Obligation{
		obligation("a", "card", "lamp", "50", "2024-01-10"),
		obligation("b", "card", "desk", "30", "2024-01-05"),
	}

	// WHEN: Paying $500
	updated, allocs := finance.Allocate(obs, money("500"), finance.PolicyFIFODeadline)

	// THEN: Only $80 is allocated; nothing goes negative
	assertMoney(t, "80", finance.TotalAllocated(allocs))
	for _, ob := range updated {
		assert.True(t, ob.IsPaid())
		assert.False(t, ob.Remaining.IsNegative())
	}
}

func TestAllocate_SkipsPaidObligations(t *testing.T) {
	paid := obligation("paid", "card", "lamp", "0", "2024-01-01")
	open := obligation("open", "card", "desk", "25", "2024-01-09")

	_, allocs := finance.Allocate([]finance.Obligation{paid, open}, money("10"), finance.PolicyFIFODeadline)

	require.Len(t, allocs, 1)
	assert.Equal(t, generic.ObligationID("open"), allocs[0].ObligationID)
}

func TestParseAllocationPolicy(t *testing.T) {
	p, err := finance.ParseAllocationPolicy("")
	require.NoError(t, err)
	assert.Equal(t, finance.PolicyFIFODeadline, p)

	p, err = finance.ParseAllocationPolicy("highest_rate")
	require.NoError(t, err)
	assert.Equal(t, finance.PolicyHighestRate, p)

	_, err = finance.ParseAllocationPolicy("random")
	assert.ErrorIs(t, err, finance.ErrInvalidPolicy)
}
