/*
engine.go - Daily Simulation Loop

PURPOSE:
  Drives time forward over [start, start+horizon), one transition per day,
  no skipped days. It owns all mutable state of a run (cash, per-account
  balances, the obligation ledger) and invokes the other components.

DAY TRANSITION:
  1. Apply budget:   cash += inflow - fixed outflow (missing day = 0, 0)
  2. Post purchases: credit purchases raise the account balance, cash
                     purchases lower the cash balance
  3. Required payment per account (sorted by account ID):
                     due = AmountDueBy(account, today)
                     pay-ahead on:  target = max(due, balance x min rate)
                     pay-ahead off: target = due
  4. Pay:            min(target, cash) truncated to cents, allocated by
                     policy; balance and cash fall by what was allocated
  5. Manual payments scheduled for today, in input order, same allocator.
                     They always draw cash; source_account is only recorded.
                     A payment that finds nothing payable is kept with its
                     whole amount unapplied
  6. Violations:     card_limit when balance > limit, one overdue per account
                     listing the affected items
  7. Record:         account rows, item rows, KPIs

CASH POOL:
  All accounts compete for one cash balance. Accounts are processed in ID
  order so output is reproducible when cash can't cover everyone.

PAYMENT SCOPE:
  Only obligations whose purchase has posted (CreatedAt <= today) receive
  payments; the account balance reflects exactly those.

SEE ALSO:
  - scheduler.go, ledger.go, allocator.go, recorder.go
*/
package finance

import (
	"fmt"
	"io"
	"sort"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"github.com/warp/obligation-engine/generic"
)

// Engine runs simulations. It holds no state between runs.
type Engine struct {
	Log logrus.FieldLogger
}

// NewEngine creates an engine; a nil logger discards output.
func NewEngine(log logrus.FieldLogger) *Engine {
	if log == nil {
		discard := logrus.New()
		discard.SetOutput(io.Discard)
		log = discard
	}
	return &Engine{Log: log}
}

// Simulate is a convenience for NewEngine(nil).Run(in).
func Simulate(in Inputs) (*Result, error) {
	return NewEngine(nil).Run(in)
}

// Run validates the inputs, schedules purchases and simulates every day of
// the horizon. Configuration problems are returned before any day runs;
// everything else ends up in the Result.
func (e *Engine) Run(in Inputs) (*Result, error) {
	cfg, err := Validate(in)
	if err != nil {
		return nil, err
	}

	accounts := sortedAccounts(in.Accounts)
	scheduler := NewScheduler(accounts, cfg.StartDate, cfg.PriceMode, cfg.SourceStrategy)
	purchases, obligations := scheduler.ScheduleAll(in.Items)

	st := NewState(accounts)
	for _, ob := range obligations {
		st.Ledger.Add(ob)
	}

	byDate := make(map[string][]Purchase)
	for _, p := range purchases {
		byDate[p.Date.String()] = append(byDate[p.Date.String()], p)
	}
	manual := make(map[string][]ManualPayment)
	for _, mp := range in.ManualPayments {
		manual[mp.Date.String()] = append(manual[mp.Date.String()], mp)
	}
	budget := in.Budget
	if budget == nil {
		budget = Budget{}
	}

	result := &Result{Config: cfg, Purchases: purchases}
	recorder := NewRecorder(accounts, purchases, result)
	limits := make(map[generic.AccountID]decimal.Decimal, len(accounts))
	for _, a := range accounts {
		limits[a.ID] = a.CreditLimit
	}

	horizon := generic.Horizon(cfg.StartDate, cfg.HorizonDays)
	for _, p := range purchases {
		if !horizon.Contains(p.Date) {
			e.Log.WithFields(logrus.Fields{
				"item":    p.ItemID,
				"date":    p.Date.String(),
				"horizon": horizon.String(),
			}).Warn("purchase falls outside the horizon and is never posted")
		}
	}
	for _, day := range horizon.Days() {
		key := day.String()

		entry := budget.On(day)
		st.Cash = st.Cash.Add(generic.RoundMoney(entry.Inflow)).Sub(generic.RoundMoney(entry.FixedOutflow))

		for _, p := range byDate[key] {
			if p.IsCredit() {
				st.Balances[p.Source] = st.Balances[p.Source].Add(p.Price)
			} else {
				st.Cash = st.Cash.Sub(p.Price)
			}
		}

		for _, acc := range accounts {
			target := e.requiredPayment(st, acc, day, cfg.AllowPayAhead)
			pay := generic.TruncateMoney(generic.MinDecimal(target, st.Cash))
			if !pay.IsPositive() {
				continue
			}
			event, err := e.pay(st, acc.ID, day, pay, cfg.AllocationPolicy, generic.SourceCash)
			if err != nil {
				return nil, err
			}
			if event.Amount.IsPositive() {
				result.Payments = append(result.Payments, *event)
			}
		}

		for _, mp := range manual[key] {
			amount := generic.RoundMoney(mp.Amount)
			event, err := e.pay(st, mp.AccountID, day, amount, cfg.AllocationPolicy, mp.SourceAccount)
			if err != nil {
				return nil, err
			}
			event.Manual = true
			event.Unapplied = amount.Sub(event.Amount)
			result.Payments = append(result.Payments, *event)
		}

		violations := recorder.DetectViolations(day, st)
		recorder.RecordDay(day, st, violations)
	}

	for _, id := range st.Ledger.Accounts() {
		result.Obligations = append(result.Obligations, st.Ledger.Obligations(id)...)
	}
	result.Summary = summarize(result, st, limits, horizon.Len())

	e.Log.WithFields(logrus.Fields{
		"start":      cfg.StartDate.String(),
		"days":       horizon.Len(),
		"purchases":  len(purchases),
		"payments":   len(result.Payments),
		"violations": len(result.Violations),
		"final_cash": generic.FormatMoney(st.Cash),
		"final_debt": generic.FormatMoney(st.TotalDebt()),
	}).Info("simulation complete")

	return result, nil
}

// requiredPayment computes today's payment target for one account.
func (e *Engine) requiredPayment(st *State, acc Account, day generic.TimePoint, allowPayAhead bool) decimal.Decimal {
	due := st.Ledger.AmountDueBy(acc.ID, day)
	if !allowPayAhead {
		return due
	}
	minPay := generic.RoundMoney(st.Balances[acc.ID].Mul(acc.MinPaymentRate))
	return generic.MaxDecimal(due, minPay)
}

// pay allocates amount over the account's payable obligations and moves the
// account balance and cash by the allocated total. The event always comes
// back; its Amount is zero when nothing was payable.
func (e *Engine) pay(
	st *State,
	account generic.AccountID,
	day generic.TimePoint,
	amount decimal.Decimal,
	policy AllocationPolicy,
	source generic.AccountID,
) (*PaymentEvent, error) {
	if source == "" {
		source = generic.SourceCash
	}
	_, allocations := Allocate(st.Ledger.Payable(account, day), amount, policy)
	if len(allocations) == 0 {
		return &PaymentEvent{
			Date:          day,
			SourceAccount: source,
			Target:        account,
			Amount:        decimal.Zero,
			Unapplied:     decimal.Zero,
		}, nil
	}
	if err := st.Ledger.ApplyPayment(account, day, allocations); err != nil {
		return nil, fmt.Errorf("apply payment to %s on %s: %w", account, day, err)
	}

	paid := TotalAllocated(allocations)
	st.Balances[account] = generic.NonNegative(st.Balances[account].Sub(paid))
	st.Cash = st.Cash.Sub(paid)

	e.Log.WithFields(logrus.Fields{
		"date":        day.String(),
		"account":     account,
		"source":      source,
		"amount":      generic.FormatMoney(paid),
		"allocations": len(allocations),
	}).Debug("payment allocated")

	return &PaymentEvent{
		Date:          day,
		SourceAccount: source,
		Target:        account,
		Amount:        paid,
		Allocations:   allocations,
		Unapplied:     decimal.Zero,
	}, nil
}

func summarize(r *Result, st *State, limits map[generic.AccountID]decimal.Decimal, days int) Summary {
	s := Summary{
		Days:             days,
		TotalSpend:       decimal.Zero,
		CreditSpend:      decimal.Zero,
		CashSpend:        decimal.Zero,
		TotalPaid:        decimal.Zero,
		FinalCash:        st.Cash,
		FinalDebt:        st.TotalDebt(),
		MaxUtilization:   decimal.Zero,
		ViolationsByKind: make(map[ViolationKind]int),
	}
	for _, p := range r.Purchases {
		s.TotalSpend = s.TotalSpend.Add(p.Price)
		if p.IsCredit() {
			s.CreditSpend = s.CreditSpend.Add(p.Price)
			if p.Price.GreaterThan(limits[p.Source]) {
				s.OverLimitItems++
			}
		} else {
			s.CashSpend = s.CashSpend.Add(p.Price)
		}
	}
	for _, pe := range r.Payments {
		s.TotalPaid = s.TotalPaid.Add(pe.Amount)
	}
	for _, row := range r.AccountBalances {
		s.MaxUtilization = generic.MaxDecimal(s.MaxUtilization, row.Utilization)
	}
	for _, v := range r.Violations {
		s.ViolationsByKind[v.Kind]++
	}
	return s
}

func sortedAccounts(accounts []Account) []Account {
	out := make([]Account, len(accounts))
	copy(out, accounts)
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}
