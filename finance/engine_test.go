package finance_test

import (
	"bytes"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/warp/obligation-engine/finance"
	"github.com/warp/obligation-engine/generic"
)

// =============================================================================
// DAILY LOOP TESTS
// =============================================================================

func TestRun_LimitBreach_OneViolationPerDay(t *testing.T) {
	// GIVEN: A $1200 purchase on a card with a $1000 limit and no cash
	in := inputs("2024-01-01", 3,
		[]finance.Item{item("tv", "1200", "card-a")},
		card("card-a", "1000", 25),
	)

	// WHEN: Simulating three days
	result, err := finance.Simulate(in)
	require.NoError(t, err)

	// THEN: The breach is reported once per day
	breaches := violationsOf(result, finance.ViolationCardLimit)
	require.Len(t, breaches, 3)
	assert.Equal(t, "card-a balance 1200.00 exceeds 1000.00", breaches[0].Details)
	assert.Equal(t, "2024-01-01", breaches[0].Date.String())
	assert.Equal(t, "2024-01-03", breaches[2].Date.String())
	assert.Empty(t, violationsOf(result, finance.ViolationOverdue))

	assert.Equal(t, 1, result.Summary.OverLimitItems)
	assertMoney(t, "1.2", result.Summary.MaxUtilization)
}

func TestRun_LimitBreach_StopsOnceResolved(t *testing.T) {
	// GIVEN: The same breach, but $300 arrives on day 2 and pay-ahead
	// requires the full balance
	acc := card("card-a", "1000", 25)
	acc.MinPaymentRate = money("1")
	in := inputs("2024-01-01", 4, []finance.Item{item("tv", "1200", "card-a")}, acc)
	in.Config.AllowPayAhead = true
	in.Budget.Add(day("2024-01-02"), money("300"), money("0"))

	// WHEN: Simulating
	result, err := finance.Simulate(in)
	require.NoError(t, err)

	// THEN: Only day 1 breaches; the payment brings the balance to the limit
	breaches := violationsOf(result, finance.ViolationCardLimit)
	require.Len(t, breaches, 1)
	assert.Equal(t, "2024-01-01", breaches[0].Date.String())

	row, ok := accountRow(result, "card-a", "2024-01-02")
	require.True(t, ok)
	assertMoney(t, "900", row.Balance)
	assertMoney(t, "100", row.AvailableCredit)
	assertMoney(t, "0.9", row.Utilization)
}

func TestRun_PayAheadDisabled_PaysOnlyWhatIsDue(t *testing.T) {
	// GIVEN: A $500 purchase due in 10 days and plenty of cash
	in := inputs("2024-01-01", 2, []finance.Item{item("desk", "500", "card-a")}, card("card-a", "5000", 10))
	in.Budget.Add(day("2024-01-01"), money("1000"), money("0"))

	// WHEN: Pay-ahead is off
	result, err := finance.Simulate(in)
	require.NoError(t, err)

	// THEN: Nothing is paid before the deadline
	assert.Empty(t, result.Payments)
	row, _ := accountRow(result, "card-a", "2024-01-02")
	assertMoney(t, "500", row.Balance)
	assert.True(t, row.InGrace)
}

func TestRun_PayAheadEnabled_PaysMinimumRate(t *testing.T) {
	// GIVEN: The same purchase with a 10% minimum payment rate
	acc := card("card-a", "5000", 10)
	acc.MinPaymentRate = money("0.1")
	in := inputs("2024-01-01", 1, []finance.Item{item("desk", "500", "card-a")}, acc)
	in.Config.AllowPayAhead = true
	in.Budget.Add(day("2024-01-01"), money("1000"), money("0"))

	// WHEN: Pay-ahead is on
	result, err := finance.Simulate(in)
	require.NoError(t, err)

	// THEN: 10% of the balance is paid on day one
	require.Len(t, result.Payments, 1)
	assertMoney(t, "50", result.Payments[0].Amount)
	assert.Equal(t, generic.SourceCash, result.Payments[0].SourceAccount)
	row, _ := accountRow(result, "card-a", "2024-01-01")
	assertMoney(t, "450", row.Balance)
	cash, _ := kpi(result, finance.KPICashBalance, "2024-01-01")
	assertMoney(t, "950", cash)
}

func TestRun_ZeroCash_OverdueNextDay(t *testing.T) {
	// GIVEN: A purchase due the same day it is made and no cash at all
	in := inputs("2024-01-01", 3, []finance.Item{item("desk", "100", "card-a")}, card("card-a", "1000", 0))

	// WHEN: Simulating
	result, err := finance.Simulate(in)
	require.NoError(t, err)

	// THEN: Due on day 1 is not yet overdue; from day 2 on it is
	overdue := violationsOf(result, finance.ViolationOverdue)
	require.Len(t, overdue, 2)
	assert.Equal(t, "2024-01-02", overdue[0].Date.String())
	assert.Equal(t, "card-a overdue items: desk", overdue[0].Details)
	assert.Empty(t, result.Payments)

	r1, _ := itemRow(result, "desk", "2024-01-01")
	assert.Equal(t, finance.ItemOpen, r1.Status)
	r2, _ := itemRow(result, "desk", "2024-01-02")
	assert.Equal(t, finance.ItemOverdue, r2.Status)
	assertMoney(t, "100", r2.RemainingBalance)

	count, _ := kpi(result, finance.KPIViolationsCount, "2024-01-02")
	assertMoney(t, "1", count)
}

func TestRun_PaidOnDeadline_NoViolations(t *testing.T) {
	// GIVEN: Enough cash arrives before a 2-day grace period ends
	in := inputs("2024-01-01", 5, []finance.Item{item("desk", "100", "card-a")}, card("card-a", "1000", 2))
	in.Budget.Add(day("2024-01-01"), money("100"), money("0"))

	// WHEN: Simulating
	result, err := finance.Simulate(in)
	require.NoError(t, err)

	// THEN: Paid in full on the deadline, nothing recorded against the card
	assert.Empty(t, result.Violations)
	require.Len(t, result.Payments, 1)
	assert.Equal(t, "2024-01-03", result.Payments[0].Date.String())
	assertMoney(t, "0", result.Summary.FinalDebt)
	assertMoney(t, "0", result.Summary.FinalCash)

	r, _ := itemRow(result, "desk", "2024-01-03")
	assert.Equal(t, finance.ItemPaid, r.Status)
}

func TestRun_SharedCash_AccountsInIDOrder(t *testing.T) {
	// GIVEN: Two cards both due on day 1 and only $150
	in := inputs("2024-01-01", 2,
		[]finance.Item{item("lamp", "100", "card-b"), item("desk", "100", "card-a")},
		card("card-b", "1000", 0), card("card-a", "1000", 0),
	)
	in.Budget.Add(day("2024-01-01"), money("150"), money("0"))

	// WHEN: Simulating
	result, err := finance.Simulate(in)
	require.NoError(t, err)

	// THEN: card-a is served first, card-b gets the rest and goes overdue
	require.Len(t, result.Payments, 2)
	assert.Equal(t, generic.AccountID("card-a"), result.Payments[0].Target)
	assertMoney(t, "100", result.Payments[0].Amount)
	assert.Equal(t, generic.AccountID("card-b"), result.Payments[1].Target)
	assertMoney(t, "50", result.Payments[1].Amount)

	overdue := violationsOf(result, finance.ViolationOverdue)
	require.Len(t, overdue, 1)
	assert.Equal(t, generic.AccountID("card-b"), overdue[0].AccountID)
}

func TestRun_CashPurchase_ReducesCash(t *testing.T) {
	in := inputs("2024-01-01", 1, []finance.Item{item("coffee", "4.50", "cash")}, card("card-a", "1000", 10))
	in.Budget.Add(day("2024-01-01"), money("10"), money("1"))

	result, err := finance.Simulate(in)
	require.NoError(t, err)

	cash, ok := kpi(result, finance.KPICashBalance, "2024-01-01")
	require.True(t, ok)
	assertMoney(t, "4.50", cash)
	assertMoney(t, "4.50", result.Summary.CashSpend)
	assert.Empty(t, result.Obligations)
}

func TestRun_ManualPayment_ExcessIsUnapplied(t *testing.T) {
	// GIVEN: $100 owed and a $150 manual payment from cash
	in := inputs("2024-01-01", 1, []finance.Item{item("desk", "100", "card-a")}, card("card-a", "1000", 30))
	in.Budget.Add(day("2024-01-01"), money("200"), money("0"))
	in.ManualPayments = []finance.ManualPayment{
		{Date: day("2024-01-01"), AccountID: "card-a", Amount: money("150"), SourceAccount: generic.SourceCash},
	}

	// WHEN: Simulating
	result, err := finance.Simulate(in)
	require.NoError(t, err)

	// THEN: Only what is owed moves; the rest is reported as unapplied
	require.Len(t, result.Payments, 1)
	p := result.Payments[0]
	assert.True(t, p.Manual)
	assertMoney(t, "100", p.Amount)
	assertMoney(t, "50", p.Unapplied)

	cash, _ := kpi(result, finance.KPICashBalance, "2024-01-01")
	assertMoney(t, "100", cash)
	debt, _ := kpi(result, finance.KPITotalDebt, "2024-01-01")
	assertMoney(t, "0", debt)
}

func TestRun_ManualPayment_FromAnotherCardDrawsCash(t *testing.T) {
	// GIVEN: $300 owed on card-a, $50 cash, and a $200 manual payment
	// naming card-b as its source on day 2
	in := inputs("2024-01-01", 2,
		[]finance.Item{item("desk", "300", "card-a")},
		card("card-a", "1000", 30), card("card-b", "1000", 30),
	)
	in.Budget.Add(day("2024-01-01"), money("50"), money("0"))
	in.ManualPayments = []finance.ManualPayment{
		{Date: day("2024-01-02"), AccountID: "card-a", Amount: money("200"), SourceAccount: "card-b"},
	}

	// WHEN: Simulating
	result, err := finance.Simulate(in)
	require.NoError(t, err)

	// THEN: The payment is funded by cash, so total debt plus cash is conserved
	require.Len(t, result.Payments, 1)
	p := result.Payments[0]
	assert.Equal(t, generic.AccountID("card-b"), p.SourceAccount)
	assertMoney(t, "200", p.Amount)

	cash, _ := kpi(result, finance.KPICashBalance, "2024-01-02")
	assertMoney(t, "-150", cash)
	debt, _ := kpi(result, finance.KPITotalDebt, "2024-01-02")
	assertMoney(t, "100", debt)
	rowB, ok := accountRow(result, "card-b", "2024-01-02")
	require.True(t, ok)
	assertMoney(t, "0", rowB.Balance)
}

func TestRun_ManualPayment_NothingPayable_AllUnapplied(t *testing.T) {
	// GIVEN: A manual payment to a card that owes nothing
	in := inputs("2024-01-01", 1, nil, card("card-a", "1000", 30))
	in.Budget.Add(day("2024-01-01"), money("100"), money("0"))
	in.ManualPayments = []finance.ManualPayment{
		{Date: day("2024-01-01"), AccountID: "card-a", Amount: money("40"), SourceAccount: generic.SourceCash},
	}

	// WHEN: Simulating
	result, err := finance.Simulate(in)
	require.NoError(t, err)

	// THEN: The payment is kept with nothing applied and cash untouched
	require.Len(t, result.Payments, 1)
	p := result.Payments[0]
	assert.True(t, p.Manual)
	assert.Empty(t, p.Allocations)
	assertMoney(t, "0", p.Amount)
	assertMoney(t, "40", p.Unapplied)
	cash, _ := kpi(result, finance.KPICashBalance, "2024-01-01")
	assertMoney(t, "100", cash)
}

func TestRun_SubCentCash_NeverOverpays(t *testing.T) {
	// GIVEN: $100 due today and an inflow with a fraction of a cent
	in := inputs("2024-01-01", 1, []finance.Item{item("desk", "100", "card-a")}, card("card-a", "1000", 0))
	in.Budget.Add(day("2024-01-01"), money("10.005"), money("0.004"))

	// WHEN: Simulating
	result, err := finance.Simulate(in)
	require.NoError(t, err)

	// THEN: Budget amounts are held at cents and the payment never exceeds cash
	require.Len(t, result.Payments, 1)
	assert.Equal(t, "10.01", result.Payments[0].Amount.String())
	cash, _ := kpi(result, finance.KPICashBalance, "2024-01-01")
	assert.False(t, cash.IsNegative())
	assertMoney(t, "0", cash)
	assertMoney(t, "89.99", result.Summary.FinalDebt)
}

func TestRun_Installments_DueMonthly(t *testing.T) {
	// GIVEN: $300 in 3 terms, cash arriving each month
	it := item("laptop", "300", "card-a")
	it.Terms = 3
	in := inputs("2024-01-15", 32, []finance.Item{it}, card("card-a", "1000", 25))
	in.Budget.Add(day("2024-02-15"), money("100"), money("0"))

	// WHEN: Simulating past the first installment
	result, err := finance.Simulate(in)
	require.NoError(t, err)

	// THEN: Exactly the first chunk is paid on its anniversary
	require.Len(t, result.Payments, 1)
	assert.Equal(t, "2024-02-15", result.Payments[0].Date.String())
	assertMoney(t, "100", result.Payments[0].Amount)
	assert.Empty(t, result.Violations)
	assert.Len(t, result.Obligations, 3)
}

func TestRun_RemainingNeverIncreases(t *testing.T) {
	// GIVEN: A run with purchases and partial payments
	acc := card("card-a", "1000", 3)
	acc.MinPaymentRate = money("0.3")
	in := inputs("2024-01-01", 10,
		[]finance.Item{item("desk", "400", "card-a"), item("lamp", "75.55", "card-a")},
		acc,
	)
	in.Config.AllowPayAhead = true
	for i := 0; i < 10; i++ {
		in.Budget.Add(day("2024-01-01").AddDays(i), money("37.13"), money("0"))
	}

	// WHEN: Simulating
	result, err := finance.Simulate(in)
	require.NoError(t, err)

	// THEN: Each item's remaining balance is non-increasing day over day
	last := map[generic.ItemID]string{}
	prev := map[generic.ItemID]*finance.ItemBalanceRow{}
	for i := range result.ItemBalances {
		row := result.ItemBalances[i]
		if p := prev[row.ItemID]; p != nil {
			assert.False(t, row.RemainingBalance.GreaterThan(p.RemainingBalance),
				"%s increased on %s", row.ItemID, row.Date)
		}
		assert.False(t, row.RemainingBalance.IsNegative())
		prev[row.ItemID] = &row
		last[row.ItemID] = row.Date.String()
	}
	assert.Equal(t, "2024-01-10", last["desk"])

	// Balance + paid == spend
	paid := result.Summary.TotalPaid
	assertMoney(t, result.Summary.CreditSpend.String(), paid.Add(result.Summary.FinalDebt))
}

func TestRun_Deterministic(t *testing.T) {
	// GIVEN: Identical inputs
	build := func() finance.Inputs {
		in := inputs("2024-03-01", 15,
			[]finance.Item{item("a", "120", "card-a", "card-b"), item("b", "80", "card-b"), item("c", "5", "cash")},
			card("card-a", "100", 5), card("card-b", "500", 7),
		)
		in.Config.AllocationPolicy = finance.PolicyHighestRate
		in.Budget.Add(day("2024-03-05"), money("60"), money("10"))
		return in
	}

	// WHEN: Running twice
	r1, err := finance.Simulate(build())
	require.NoError(t, err)
	r2, err := finance.Simulate(build())
	require.NoError(t, err)

	// THEN: Every table matches
	assert.Equal(t, r1.Payments, r2.Payments)
	assert.Equal(t, r1.Violations, r2.Violations)
	assert.Equal(t, r1.AccountBalances, r2.AccountBalances)
	assert.Equal(t, r1.ItemBalances, r2.ItemBalances)
	assert.Equal(t, r1.KPIs, r2.KPIs)
}

func TestRun_RowsPerDay(t *testing.T) {
	in := inputs("2024-01-01", 5,
		[]finance.Item{item("a", "10", "card-a"), item("b", "10", "cash")},
		card("card-a", "100", 5), card("card-b", "100", 5),
	)

	result, err := finance.Simulate(in)
	require.NoError(t, err)

	assert.Len(t, result.AccountBalances, 5*2)
	assert.Len(t, result.ItemBalances, 5*2)
	assert.Len(t, result.KPIs, 5*4)
	assert.Equal(t, 5, result.Summary.Days)
}

func TestRun_ZeroHorizon_EmptyResult(t *testing.T) {
	in := inputs("2024-01-01", 0, []finance.Item{item("a", "10", "card-a")}, card("card-a", "100", 5))

	result, err := finance.Simulate(in)

	require.NoError(t, err)
	assert.Empty(t, result.KPIs)
	assert.Empty(t, result.Violations)
	assert.Len(t, result.Purchases, 1)
}

func TestRun_LogsSummary(t *testing.T) {
	var buf bytes.Buffer
	log := logrus.New()
	log.SetOutput(&buf)
	log.SetFormatter(&logrus.JSONFormatter{})

	in := inputs("2024-01-01", 1, nil, card("card-a", "100", 5))
	_, err := finance.NewEngine(log).Run(in)

	require.NoError(t, err)
	assert.Contains(t, buf.String(), "simulation complete")
	assert.Contains(t, buf.String(), `"days":1`)
}

// =============================================================================
// VALIDATION TESTS
// =============================================================================

func TestValidate_NegativeHorizon(t *testing.T) {
	in := inputs("2024-01-01", -1, nil)

	_, err := finance.Simulate(in)

	require.Error(t, err)
	assert.ErrorIs(t, err, finance.ErrNegativeHorizon)
	assert.True(t, finance.IsConfigError(err))
}

func TestValidate_UnknownAccount(t *testing.T) {
	in := inputs("2024-01-01", 1, []finance.Item{item("desk", "10", "card-zzz")}, card("card-a", "100", 5))

	_, err := finance.Simulate(in)

	assert.ErrorIs(t, err, finance.ErrUnknownAccount)
	var cfgErr *finance.ConfigError
	require.ErrorAs(t, err, &cfgErr)
	assert.Equal(t, "item:desk", cfgErr.Record)
	assert.Equal(t, "allowed_sources", cfgErr.Field)
}

func TestValidate_InvalidPolicy(t *testing.T) {
	in := inputs("2024-01-01", 1, nil)
	in.Config.AllocationPolicy = "coin_flip"

	_, err := finance.Simulate(in)

	assert.ErrorIs(t, err, finance.ErrInvalidPolicy)
	assert.True(t, finance.IsConfigError(err))
}

func TestValidate_MissingStartDate(t *testing.T) {
	_, err := finance.Validate(finance.Inputs{Config: finance.Config{HorizonDays: 3}})
	assert.ErrorIs(t, err, finance.ErrMissingStartDate)
}

func TestValidate_DuplicatesAndNegativeLimit(t *testing.T) {
	_, err := finance.Validate(inputs("2024-01-01", 1, nil, card("a", "1", 0), card("a", "1", 0)))
	assert.ErrorIs(t, err, finance.ErrDuplicateID)

	_, err = finance.Validate(inputs("2024-01-01", 1, nil, card("a", "-1", 0)))
	assert.ErrorIs(t, err, finance.ErrNegativeCreditLimit)

	_, err = finance.Validate(inputs("2024-01-01", 1, []finance.Item{item("x", "1"), item("x", "2")}))
	assert.ErrorIs(t, err, finance.ErrDuplicateID)
}

func TestValidate_ManualPaymentUnknownAccount(t *testing.T) {
	in := inputs("2024-01-01", 1, nil, card("card-a", "100", 5))
	in.ManualPayments = []finance.ManualPayment{{Date: day("2024-01-01"), AccountID: "nope", Amount: money("1")}}

	_, err := finance.Validate(in)

	assert.ErrorIs(t, err, finance.ErrUnknownAccount)
}

func TestValidate_FixedDateBeforeStart(t *testing.T) {
	// GIVEN: A purchase fixed before the simulation starts
	it := item("desk", "300", "card-a")
	it.DatePolicy = finance.DateFixed
	it.FixedDate = dayPtr("2023-12-20")
	in := inputs("2024-01-01", 5, []finance.Item{it}, card("card-a", "1000", 5))
	in.Budget.Add(day("2024-01-01"), money("100"), money("0"))

	// WHEN: Simulating
	result, err := finance.Simulate(in)

	// THEN: It is a configuration error, nothing is simulated
	assert.Nil(t, result)
	assert.ErrorIs(t, err, finance.ErrPurchaseBeforeStart)
	var cfgErr *finance.ConfigError
	require.ErrorAs(t, err, &cfgErr)
	assert.Equal(t, "item:desk", cfgErr.Record)
	assert.Equal(t, "purchase_date_fixed", cfgErr.Field)

	it.FixedDate = dayPtr("2024-01-01")
	_, err = finance.Validate(inputs("2024-01-01", 5, []finance.Item{it}, card("card-a", "1000", 5)))
	assert.NoError(t, err)
}

func TestValidate_AppliesDefaults(t *testing.T) {
	cfg, err := finance.Validate(inputs("2024-01-01", 1, nil))

	require.NoError(t, err)
	assert.Equal(t, finance.PolicyFIFODeadline, cfg.AllocationPolicy)
	assert.Equal(t, finance.PriceRange, cfg.PriceMode)
	assert.Equal(t, finance.SourceLongestGrace, cfg.SourceStrategy)
}

func TestRun_WarnsAboutPurchasesPastHorizon(t *testing.T) {
	var buf bytes.Buffer
	log := logrus.New()
	log.SetOutput(&buf)
	log.SetFormatter(&logrus.JSONFormatter{})

	late := item("desk", "100", "card-a")
	late.Latest = dayPtr("2024-02-01")
	in := inputs("2024-01-01", 3, []finance.Item{late}, card("card-a", "1000", 5))

	result, err := finance.NewEngine(log).Run(in)

	require.NoError(t, err)
	assert.Contains(t, buf.String(), "outside the horizon")
	assert.Contains(t, buf.String(), `"horizon":"[2024-01-01, 2024-01-03]"`)
	assert.True(t, result.Summary.FinalDebt.IsZero())
}
