/*
Package finance implements the day-by-day financial obligation simulator.

PURPOSE:
  Given purchase items, credit-line accounts ("cards") and a daily cash
  budget, the engine schedules purchases, turns credit-funded purchases into
  repayment obligations and then walks the horizon one day at a time,
  allocating limited cash against those obligations under a configurable
  allocation policy. Every day produces balances, KPIs and violations.

KEY CONCEPTS IN THIS FILE (types.go):
  - Item: something to buy, with price, funding options and date bounds
  - Account: a credit line with limit, grace period and payment rules
  - Obligation: one repayment liability (item x account x due date)
  - Purchase: the scheduling decision for one item
  - Inputs / Config: everything one run needs

COMPONENTS (leaves first):
  ledger.go:    Obligation Ledger - due/overdue queries, applies payments
  scheduler.go: Purchase Scheduler - date, source, price, obligations
  allocator.go: Payment Allocator - orders obligations by policy, pays greedily
  engine.go:    Daily Simulation Loop - the only place state evolves
  recorder.go:  Violation/KPI Recorder - derives daily rows from state

DESIGN PRINCIPLES:
  1. Determinism: accounts and items are always walked in sorted order
  2. Precision: decimal.Decimal for every money value
  3. No process-wide state: each Run owns its ledger and balances
  4. Anomalies are output: limit breaches and overdue debt are Violations,
     never errors

SEE ALSO:
  - generic/types.go: Money helpers
  - factory/scenario.go: Builds Inputs from scenario documents
  - report/: Renders a Result to CSV and markdown
*/
package finance

import (
	"github.com/shopspring/decimal"
	"github.com/warp/obligation-engine/generic"
)

// =============================================================================
// ITEM - Something to buy (immutable once loaded)
// =============================================================================

// DatePolicy decides how the purchase date is chosen.
type DatePolicy string

const (
	DateFixed    DatePolicy = "fixed"
	DateOptimize DatePolicy = "optimize"
)

// Price is either a point price or a range around it.
type Price struct {
	Value decimal.Decimal
	Min   *decimal.Decimal
	Max   *decimal.Decimal
}

type Item struct {
	ID         generic.ItemID
	Name       string
	Priority   int // lower rank is bought first
	ValueScore decimal.Decimal
	Price      Price

	// AllowedSources lists account IDs or "cash", in preference order.
	AllowedSources []generic.AccountID

	DatePolicy DatePolicy
	FixedDate  *generic.TimePoint
	Earliest   *generic.TimePoint
	Latest     *generic.TimePoint

	DeadlineOverride *generic.TimePoint

	// Terms > 1 splits a credit purchase into monthly installments.
	Terms int
}

// =============================================================================
// ACCOUNT - A credit line (immutable once loaded)
// =============================================================================

type Account struct {
	ID             generic.AccountID
	Name           string
	CreditLimit    decimal.Decimal
	GraceDays      int
	InterestRate   decimal.Decimal // annual, applied outside grace
	MinPaymentRate decimal.Decimal
	StatementDay   int
	DueDay         int
}

// =============================================================================
// OBLIGATION - One repayment liability
// =============================================================================

// Obligation belongs to one account and one item. Remaining only ever
// decreases; an obligation paid to zero stays in the ledger for audit.
type Obligation struct {
	ID        generic.ObligationID
	AccountID generic.AccountID
	ItemID    generic.ItemID
	Original  decimal.Decimal
	Remaining decimal.Decimal
	Deadline  generic.TimePoint
	CreatedAt generic.TimePoint

	// Snapshots taken at creation.
	InterestRate decimal.Decimal
	ValueScore   decimal.Decimal

	// Installment is 1-based; Seq orders obligations by creation.
	Installment int
	Seq         int
}

func (o Obligation) IsPaid() bool { return !o.Remaining.IsPositive() }

// IsOverdue reports remaining debt past its deadline.
func (o Obligation) IsOverdue(asOf generic.TimePoint) bool {
	return o.Remaining.IsPositive() && o.Deadline.Before(asOf)
}

// =============================================================================
// PURCHASE - The scheduling decision for one item
// =============================================================================

type PurchaseFlag string

const (
	FlagFixedDate     PurchaseFlag = "fixed_date"
	FlagOptimizedDate PurchaseFlag = "optimized_date"
)

type Purchase struct {
	ItemID     generic.ItemID
	Date       generic.TimePoint
	Source     generic.AccountID
	Price      decimal.Decimal
	Deadline   generic.TimePoint
	Flag       PurchaseFlag
	ValueScore decimal.Decimal
	Terms      int
}

func (p Purchase) IsCredit() bool { return !p.Source.IsCash() }

// =============================================================================
// BUDGET & MANUAL PAYMENTS
// =============================================================================

// BudgetDay is one calendar entry. Missing days mean zero inflow and outflow.
type BudgetDay struct {
	Inflow       decimal.Decimal
	FixedOutflow decimal.Decimal
}

// Budget maps a day (YYYY-MM-DD) to its cash movements.
type Budget map[string]BudgetDay

// On returns the entry for a day, zero if absent.
func (b Budget) On(day generic.TimePoint) BudgetDay {
	if e, ok := b[day.String()]; ok {
		return e
	}
	return BudgetDay{Inflow: decimal.Zero, FixedOutflow: decimal.Zero}
}

// Add accumulates an entry; several rows on the same day are summed.
func (b Budget) Add(day generic.TimePoint, inflow, outflow decimal.Decimal) {
	cur := b.On(day)
	b[day.String()] = BudgetDay{
		Inflow:       cur.Inflow.Add(inflow),
		FixedOutflow: cur.FixedOutflow.Add(outflow),
	}
}

// ManualPayment is an out-of-band payment applied after scheduled payments.
type ManualPayment struct {
	Date          generic.TimePoint
	AccountID     generic.AccountID
	Amount        decimal.Decimal
	SourceAccount generic.AccountID // "cash" (or empty) draws from the cash balance
}

// =============================================================================
// CONFIG & INPUTS
// =============================================================================

type Config struct {
	StartDate        generic.TimePoint
	HorizonDays      int
	AllocationPolicy AllocationPolicy
	AllowPayAhead    bool
	PriceMode        PriceMode
	SourceStrategy   SourceStrategy
}

// Inputs is everything a single run consumes. Records arrive validated and
// typed from the loader; Validate still guards the invariants the loop needs.
type Inputs struct {
	Config         Config
	Items          []Item
	Accounts       []Account
	Budget         Budget
	ManualPayments []ManualPayment
}
