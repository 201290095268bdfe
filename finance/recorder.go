package finance

import (
	"fmt"
	"sort"
	"strings"

	"github.com/shopspring/decimal"
	"github.com/warp/obligation-engine/generic"
)

// =============================================================================
// OUTPUT ROWS - Consumed by the report writer and the stores
// =============================================================================

// PaymentEvent is one actual transfer onto an account.
type PaymentEvent struct {
	Date          generic.TimePoint
	SourceAccount generic.AccountID
	Target        generic.AccountID
	Amount        decimal.Decimal
	Allocations   []Allocation
	Unapplied     decimal.Decimal // manual payments only: requested - allocated
	Manual        bool
}

type ItemStatus string

const (
	ItemPaid    ItemStatus = "paid"
	ItemOverdue ItemStatus = "overdue"
	ItemOpen    ItemStatus = "open"
)

type ItemBalanceRow struct {
	Date             generic.TimePoint
	ItemID           generic.ItemID
	Source           generic.AccountID
	RemainingBalance decimal.Decimal
	Deadline         generic.TimePoint
	Status           ItemStatus
}

type AccountBalanceRow struct {
	Date            generic.TimePoint
	AccountID       generic.AccountID
	Balance         decimal.Decimal
	AvailableCredit decimal.Decimal
	Utilization     decimal.Decimal
	InGrace         bool
	NextDeadline    *generic.TimePoint
}

type KPIName string

const (
	KPICashBalance        KPIName = "cash_balance"
	KPITotalDebt          KPIName = "total_card_debt"
	KPIViolationsCount    KPIName = "violations_count"
	KPIMaxCardUtilization KPIName = "max_card_utilization"
)

type KPIRow struct {
	Date  generic.TimePoint
	Name  KPIName
	Value decimal.Decimal
}

type ViolationKind string

const (
	ViolationCardLimit ViolationKind = "card_limit"
	ViolationOverdue   ViolationKind = "overdue"
)

// Violation is append-only; duplicates across days are kept.
type Violation struct {
	Date      generic.TimePoint
	Kind      ViolationKind
	AccountID generic.AccountID
	Details   string
}

// Summary aggregates a whole run.
type Summary struct {
	Days             int
	TotalSpend       decimal.Decimal
	CreditSpend      decimal.Decimal
	CashSpend        decimal.Decimal
	TotalPaid        decimal.Decimal
	FinalCash        decimal.Decimal
	FinalDebt        decimal.Decimal
	MaxUtilization   decimal.Decimal
	OverLimitItems   int // credit purchases priced above their account's limit
	ViolationsByKind map[ViolationKind]int
}

// Result holds every table a run produces.
type Result struct {
	Config          Config
	Purchases       []Purchase
	Obligations     []Obligation // final state, creation order
	Payments        []PaymentEvent
	ItemBalances    []ItemBalanceRow
	AccountBalances []AccountBalanceRow
	KPIs            []KPIRow
	Violations      []Violation
	Summary         Summary
}

// =============================================================================
// STATE - Mutable per-run state owned by the loop
// =============================================================================

type State struct {
	Cash     decimal.Decimal
	Balances map[generic.AccountID]decimal.Decimal
	Ledger   *Ledger
}

func NewState(accounts []Account) *State {
	balances := make(map[generic.AccountID]decimal.Decimal, len(accounts))
	for _, a := range accounts {
		balances[a.ID] = decimal.Zero
	}
	return &State{Cash: decimal.Zero, Balances: balances, Ledger: NewLedger()}
}

// TotalDebt sums account balances.
func (s *State) TotalDebt() decimal.Decimal {
	total := decimal.Zero
	for _, b := range s.Balances {
		total = total.Add(b)
	}
	return total
}

// =============================================================================
// RECORDER - Derives violations, snapshots and KPIs from state
// =============================================================================

// Recorder observes state at the end of each day. It never mutates state.
type Recorder struct {
	accounts  []Account // sorted by ID
	purchases []Purchase
	result    *Result
}

func NewRecorder(accounts []Account, purchases []Purchase, result *Result) *Recorder {
	return &Recorder{accounts: accounts, purchases: purchases, result: result}
}

// Utilization is balance / limit; a zero limit yields zero.
func Utilization(balance, limit decimal.Decimal) decimal.Decimal {
	if !limit.IsPositive() {
		return decimal.Zero
	}
	return balance.Div(limit).Round(4)
}

// DetectViolations appends today's violations and returns how many there were.
func (r *Recorder) DetectViolations(day generic.TimePoint, st *State) int {
	count := 0
	for _, acc := range r.accounts {
		bal := st.Balances[acc.ID]
		if bal.GreaterThan(acc.CreditLimit) {
			r.result.Violations = append(r.result.Violations, Violation{
				Date:      day,
				Kind:      ViolationCardLimit,
				AccountID: acc.ID,
				Details: fmt.Sprintf("%s balance %s exceeds %s",
					acc.ID, generic.FormatMoney(bal), generic.FormatMoney(acc.CreditLimit)),
			})
			count++
		}

		overdue := st.Ledger.Overdue(acc.ID, day)
		if len(overdue) > 0 {
			r.result.Violations = append(r.result.Violations, Violation{
				Date:      day,
				Kind:      ViolationOverdue,
				AccountID: acc.ID,
				Details:   fmt.Sprintf("%s overdue items: %s", acc.ID, joinItems(overdue)),
			})
			count++
		}
	}
	return count
}

// RecordDay appends the per-account, per-item and KPI rows for a day.
func (r *Recorder) RecordDay(day generic.TimePoint, st *State, violations int) {
	maxUtil := decimal.Zero
	for _, acc := range r.accounts {
		bal := st.Balances[acc.ID]
		util := Utilization(bal, acc.CreditLimit)
		maxUtil = generic.MaxDecimal(maxUtil, util)

		row := AccountBalanceRow{
			Date:            day,
			AccountID:       acc.ID,
			Balance:         bal,
			AvailableCredit: acc.CreditLimit.Sub(bal),
			Utilization:     util,
		}
		if next, ok := st.Ledger.NextDeadline(acc.ID); ok {
			row.NextDeadline = &next
			row.InGrace = day.BeforeOrEqual(next)
		}
		r.result.AccountBalances = append(r.result.AccountBalances, row)
	}

	for _, p := range r.purchases {
		r.result.ItemBalances = append(r.result.ItemBalances, r.itemRow(day, st.Ledger, p))
	}

	r.result.KPIs = append(r.result.KPIs,
		KPIRow{Date: day, Name: KPICashBalance, Value: st.Cash},
		KPIRow{Date: day, Name: KPITotalDebt, Value: st.TotalDebt()},
		KPIRow{Date: day, Name: KPIViolationsCount, Value: decimal.NewFromInt(int64(violations))},
		KPIRow{Date: day, Name: KPIMaxCardUtilization, Value: maxUtil},
	)
}

func (r *Recorder) itemRow(day generic.TimePoint, ledger *Ledger, p Purchase) ItemBalanceRow {
	row := ItemBalanceRow{
		Date:             day,
		ItemID:           p.ItemID,
		Source:           p.Source,
		RemainingBalance: decimal.Zero,
		Deadline:         p.Deadline,
		Status:           ItemPaid,
	}
	if !p.IsCredit() {
		return row
	}

	overdue := false
	var nearest *generic.TimePoint
	for _, ob := range ledger.Obligations(p.Source) {
		if ob.ItemID != p.ItemID || ob.IsPaid() {
			continue
		}
		row.RemainingBalance = row.RemainingBalance.Add(ob.Remaining)
		if ob.IsOverdue(day) {
			overdue = true
		}
		if nearest == nil || ob.Deadline.Before(*nearest) {
			d := ob.Deadline
			nearest = &d
		}
	}
	switch {
	case !row.RemainingBalance.IsPositive():
		row.Status = ItemPaid
	case overdue:
		row.Status = ItemOverdue
	default:
		row.Status = ItemOpen
	}
	if nearest != nil {
		row.Deadline = *nearest
	}
	return row
}

func joinItems(obs []Obligation) string {
	seen := make(map[generic.ItemID]bool)
	var ids []string
	for _, ob := range obs {
		if !seen[ob.ItemID] {
			seen[ob.ItemID] = true
			ids = append(ids, string(ob.ItemID))
		}
	}
	sort.Strings(ids)
	return strings.Join(ids, ",")
}
