package finance_test

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/warp/obligation-engine/finance"
	"github.com/warp/obligation-engine/generic"
)

// =============================================================================
// TEST HELPERS
// =============================================================================

func day(s string) generic.TimePoint { return generic.MustParseDate(s) }

func dayPtr(s string) *generic.TimePoint {
	d := day(s)
	return &d
}

func money(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func moneyPtr(s string) *decimal.Decimal {
	m := money(s)
	return &m
}

// assertMoney compares at currency precision so "40" and "40.00" match.
func assertMoney(t *testing.T, want string, got decimal.Decimal, msgAndArgs ...any) {
	t.Helper()
	assert.Equal(t, generic.FormatMoney(money(want)), generic.FormatMoney(got), msgAndArgs...)
}

func card(id, limit string, grace int) finance.Account {
	return finance.Account{
		ID:             generic.AccountID(id),
		Name:           id,
		CreditLimit:    money(limit),
		GraceDays:      grace,
		InterestRate:   money("0.2"),
		MinPaymentRate: money("0.05"),
	}
}

func item(id, price string, sources ...string) finance.Item {
	allowed := make([]generic.AccountID, len(sources))
	for i, s := range sources {
		allowed[i] = generic.AccountID(s)
	}
	return finance.Item{
		ID:             generic.ItemID(id),
		Name:           id,
		Priority:       1,
		ValueScore:     money("1"),
		Price:          finance.Price{Value: money(price)},
		AllowedSources: allowed,
		DatePolicy:     finance.DateOptimize,
	}
}

func inputs(start string, horizon int, items []finance.Item, accounts ...finance.Account) finance.Inputs {
	return finance.Inputs{
		Config: finance.Config{
			StartDate:   day(start),
			HorizonDays: horizon,
		},
		Items:    items,
		Accounts: accounts,
		Budget:   finance.Budget{},
	}
}

func obligation(id, account, itemID, remaining, deadline string) finance.Obligation {
	return finance.Obligation{
		ID:           generic.ObligationID(id),
		AccountID:    generic.AccountID(account),
		ItemID:       generic.ItemID(itemID),
		Original:     money(remaining),
		Remaining:    money(remaining),
		Deadline:     day(deadline),
		CreatedAt:    day("2024-01-01"),
		InterestRate: decimal.Zero,
		ValueScore:   decimal.Zero,
	}
}

func violationsOf(r *finance.Result, kind finance.ViolationKind) []finance.Violation {
	var out []finance.Violation
	for _, v := range r.Violations {
		if v.Kind == kind {
			out = append(out, v)
		}
	}
	return out
}

func accountRow(r *finance.Result, account, date string) (finance.AccountBalanceRow, bool) {
	for _, row := range r.AccountBalances {
		if string(row.AccountID) == account && row.Date.String() == date {
			return row, true
		}
	}
	return finance.AccountBalanceRow{}, false
}

func itemRow(r *finance.Result, itemID, date string) (finance.ItemBalanceRow, bool) {
	for _, row := range r.ItemBalances {
		if string(row.ItemID) == itemID && row.Date.String() == date {
			return row, true
		}
	}
	return finance.ItemBalanceRow{}, false
}

func kpi(r *finance.Result, name finance.KPIName, date string) (decimal.Decimal, bool) {
	for _, row := range r.KPIs {
		if row.Name == name && row.Date.String() == date {
			return row.Value, true
		}
	}
	return decimal.Zero, false
}
