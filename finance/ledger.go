/*
ledger.go - Obligation Ledger

PURPOSE:
  Owns every repayment obligation of a run, grouped by account. It answers
  the two questions the daily loop asks ("how much is due by today?" and
  "what is overdue?") and is the only place remaining balances change.

CRITICAL INVARIANTS:
  1. 0 <= Remaining <= Original for every obligation, always
  2. Remaining never increases (no un-posting, no refunds)
  3. Obligations are never removed: a paid obligation stays with
     Remaining == 0 and simply stops contributing to queries
  4. Every applied allocation is appended to an audit log

ORDERING:
  Obligations are kept per account in creation order (Seq). Queries that
  return lists preserve it, so results are deterministic.

SEE ALSO:
  - allocator.go: Produces the allocations this ledger applies
  - engine.go: Owns the ledger for the lifetime of one run
*/
package finance

import (
	"fmt"
	"sort"

	"github.com/shopspring/decimal"
	"github.com/warp/obligation-engine/generic"
)

// =============================================================================
// LEDGER ENTRY - Append-only record of an applied allocation
// =============================================================================

type LedgerEntry struct {
	At             generic.TimePoint
	AccountID      generic.AccountID
	ObligationID   generic.ObligationID
	ItemID         generic.ItemID
	Amount         decimal.Decimal
	RemainingAfter decimal.Decimal
}

// =============================================================================
// LEDGER
// =============================================================================

// Ledger maps accounts to their obligations. It is owned by a single run and
// is not safe for concurrent use.
type Ledger struct {
	byAccount map[generic.AccountID][]*Obligation
	byID      map[generic.ObligationID]*Obligation
	entries   []LedgerEntry
	seq       int
}

func NewLedger() *Ledger {
	return &Ledger{
		byAccount: make(map[generic.AccountID][]*Obligation),
		byID:      make(map[generic.ObligationID]*Obligation),
	}
}

// Add records a new obligation and returns it with ID and Seq assigned.
// Remaining starts at Original.
func (l *Ledger) Add(ob Obligation) Obligation {
	l.seq++
	ob.Seq = l.seq
	if ob.ID == "" {
		ob.ID = generic.ObligationID(fmt.Sprintf("%s-%s-%d", ob.AccountID, ob.ItemID, ob.Seq))
	}
	ob.Original = generic.NonNegative(ob.Original)
	ob.Remaining = ob.Original

	stored := ob
	l.byAccount[ob.AccountID] = append(l.byAccount[ob.AccountID], &stored)
	l.byID[ob.ID] = &stored
	return stored
}

// Accounts returns every account holding obligations, sorted by ID.
func (l *Ledger) Accounts() []generic.AccountID {
	ids := make([]generic.AccountID, 0, len(l.byAccount))
	for id := range l.byAccount {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

// Obligations returns copies of all obligations on an account, paid ones
// included, in creation order.
func (l *Ledger) Obligations(account generic.AccountID) []Obligation {
	return l.filter(account, func(Obligation) bool { return true })
}

// Get returns one obligation by ID.
func (l *Ledger) Get(id generic.ObligationID) (Obligation, bool) {
	ob, ok := l.byID[id]
	if !ok {
		return Obligation{}, false
	}
	return *ob, true
}

// Unpaid returns obligations with remaining > 0.
func (l *Ledger) Unpaid(account generic.AccountID) []Obligation {
	return l.filter(account, func(ob Obligation) bool { return !ob.IsPaid() })
}

// Payable returns unpaid obligations whose purchase has posted by asOf.
func (l *Ledger) Payable(account generic.AccountID, asOf generic.TimePoint) []Obligation {
	return l.filter(account, func(ob Obligation) bool {
		return !ob.IsPaid() && ob.CreatedAt.BeforeOrEqual(asOf)
	})
}

// AmountDueBy sums remaining balances of obligations due on or before asOf.
func (l *Ledger) AmountDueBy(account generic.AccountID, asOf generic.TimePoint) decimal.Decimal {
	total := decimal.Zero
	for _, ob := range l.byAccount[account] {
		if ob.Remaining.IsPositive() && ob.Deadline.BeforeOrEqual(asOf) {
			total = total.Add(ob.Remaining)
		}
	}
	return total
}

// Overdue returns obligations with remaining > 0 and a deadline before asOf.
func (l *Ledger) Overdue(account generic.AccountID, asOf generic.TimePoint) []Obligation {
	return l.filter(account, func(ob Obligation) bool { return ob.IsOverdue(asOf) })
}

// TotalRemaining sums every unpaid balance on an account.
func (l *Ledger) TotalRemaining(account generic.AccountID) decimal.Decimal {
	total := decimal.Zero
	for _, ob := range l.byAccount[account] {
		total = total.Add(ob.Remaining)
	}
	return total
}

// RemainingForItem sums what is still owed for an item on an account.
func (l *Ledger) RemainingForItem(account generic.AccountID, item generic.ItemID) decimal.Decimal {
	total := decimal.Zero
	for _, ob := range l.byAccount[account] {
		if ob.ItemID == item {
			total = total.Add(ob.Remaining)
		}
	}
	return total
}

// NextDeadline returns the nearest deadline among unpaid obligations.
func (l *Ledger) NextDeadline(account generic.AccountID) (generic.TimePoint, bool) {
	var next generic.TimePoint
	found := false
	for _, ob := range l.byAccount[account] {
		if ob.IsPaid() {
			continue
		}
		if !found || ob.Deadline.Before(next) {
			next = ob.Deadline
			found = true
		}
	}
	return next, found
}

// ApplyPayment reduces remaining balances by each allocation. The whole
// batch is checked before anything is applied, so a bad allocation leaves
// the ledger untouched.
func (l *Ledger) ApplyPayment(account generic.AccountID, at generic.TimePoint, allocations []Allocation) error {
	pending := make(map[generic.ObligationID]decimal.Decimal)
	for _, a := range allocations {
		ob, ok := l.byID[a.ObligationID]
		if !ok || ob.AccountID != account {
			return fmt.Errorf("%w: %s on %s", ErrUnknownObligation, a.ObligationID, account)
		}
		if a.Amount.IsNegative() {
			return fmt.Errorf("obligation %s: negative allocation %s", a.ObligationID, a.Amount)
		}
		requested := pending[a.ObligationID].Add(a.Amount)
		if requested.GreaterThan(ob.Remaining) {
			return &OverpaymentError{ObligationID: ob.ID, Remaining: ob.Remaining, Requested: requested}
		}
		pending[a.ObligationID] = requested
	}

	for _, a := range allocations {
		if a.Amount.IsZero() {
			continue
		}
		ob := l.byID[a.ObligationID]
		ob.Remaining = ob.Remaining.Sub(a.Amount)
		l.entries = append(l.entries, LedgerEntry{
			At:             at,
			AccountID:      account,
			ObligationID:   ob.ID,
			ItemID:         ob.ItemID,
			Amount:         a.Amount,
			RemainingAfter: ob.Remaining,
		})
	}
	return nil
}

// Entries returns the audit log of applied allocations.
func (l *Ledger) Entries() []LedgerEntry {
	out := make([]LedgerEntry, len(l.entries))
	copy(out, l.entries)
	return out
}

func (l *Ledger) filter(account generic.AccountID, keep func(Obligation) bool) []Obligation {
	var out []Obligation
	for _, ob := range l.byAccount[account] {
		if keep(*ob) {
			out = append(out, *ob)
		}
	}
	return out
}
