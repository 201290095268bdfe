/*
scheduler.go - Purchase Scheduler

PURPOSE:
  Turns each Item into exactly one Purchase and, when the purchase is
  funded by credit, into one or more Obligations.

DECISIONS PER ITEM:
  Date:     fixed policy with a fixed date -> that date (never before the
            start; validation rejects it). Otherwise the latest permissible
            date: the latest bound, else the earliest bound, each no earlier
            than the global start, else the global start.
  Price:    PriceMode (fixed point price, or a bound of the range).
  Source:   SourceStrategy over the allowed sources that are known accounts;
            no match means cash and no obligations.
  Deadline: item override, else date + grace days of the source (0 for cash).

INSTALLMENTS:
  Terms > 1 on a credit purchase splits the price into Terms chunks
  (generic.SplitEvenly, the last chunk absorbs rounding) due on successive
  monthly anniversaries of the purchase date. Otherwise a single obligation
  for the full price is due on the deadline.

ORDERING:
  Items are scheduled in (priority, value score desc, id) order. Decisions
  don't depend on the order; obligation IDs and Seq numbers do.
*/
package finance

import (
	"sort"

	"github.com/warp/obligation-engine/generic"
)

// Scheduler resolves purchases for one run.
type Scheduler struct {
	Accounts  map[generic.AccountID]Account
	Start     generic.TimePoint
	PriceMode PriceMode
	Sources   SourceStrategy
}

// NewScheduler indexes the accounts and applies defaults for empty modes.
func NewScheduler(accounts []Account, start generic.TimePoint, priceMode PriceMode, sources SourceStrategy) *Scheduler {
	index := make(map[generic.AccountID]Account, len(accounts))
	for _, a := range accounts {
		index[a.ID] = a
	}
	if priceMode == "" {
		priceMode = PriceRange
	}
	if sources == "" {
		sources = SourceLongestGrace
	}
	return &Scheduler{Accounts: index, Start: start, PriceMode: priceMode, Sources: sources}
}

// Schedule decides the purchase for one item and builds its obligations.
// Obligations are returned without IDs; the ledger assigns them.
func (s *Scheduler) Schedule(item Item) (Purchase, []Obligation) {
	date, flag := s.resolveDate(item)
	price := s.PriceMode.Resolve(item.Price)
	source := s.Sources.Pick(item.AllowedSources, s.Accounts)

	grace := 0
	acc, isCredit := s.Accounts[source]
	if isCredit {
		grace = acc.GraceDays
	}
	deadline := date.AddDays(grace)
	if item.DeadlineOverride != nil {
		deadline = *item.DeadlineOverride
	}

	purchase := Purchase{
		ItemID:     item.ID,
		Date:       date,
		Source:     source,
		Price:      price,
		Deadline:   deadline,
		Flag:       flag,
		ValueScore: item.ValueScore,
		Terms:      item.Terms,
	}

	if !isCredit || price.IsZero() {
		return purchase, nil
	}
	return purchase, s.obligations(purchase, acc)
}

// ScheduleAll schedules every item in deterministic order.
func (s *Scheduler) ScheduleAll(items []Item) ([]Purchase, []Obligation) {
	ordered := SortItems(items)
	purchases := make([]Purchase, 0, len(ordered))
	var obligations []Obligation
	for _, item := range ordered {
		p, obs := s.Schedule(item)
		purchases = append(purchases, p)
		obligations = append(obligations, obs...)
	}
	return purchases, obligations
}

func (s *Scheduler) resolveDate(item Item) (generic.TimePoint, PurchaseFlag) {
	flag := FlagOptimizedDate
	if item.DatePolicy == DateFixed {
		flag = FlagFixedDate
		if item.FixedDate != nil {
			return *item.FixedDate, flag
		}
	}
	if item.Latest != nil {
		return generic.MaxTime(*item.Latest, s.Start), flag
	}
	if item.Earliest != nil {
		return generic.MaxTime(*item.Earliest, s.Start), flag
	}
	return s.Start, flag
}

func (s *Scheduler) obligations(p Purchase, acc Account) []Obligation {
	base := Obligation{
		AccountID:    acc.ID,
		ItemID:       p.ItemID,
		CreatedAt:    p.Date,
		InterestRate: acc.InterestRate,
		ValueScore:   p.ValueScore,
	}
	if p.Terms <= 1 {
		ob := base
		ob.Original = p.Price
		ob.Remaining = p.Price
		ob.Deadline = p.Deadline
		ob.Installment = 1
		return []Obligation{ob}
	}

	parts := generic.SplitEvenly(p.Price, p.Terms)
	out := make([]Obligation, len(parts))
	for i, amount := range parts {
		ob := base
		ob.Original = amount
		ob.Remaining = amount
		ob.Deadline = p.Date.AddMonths(i + 1)
		ob.Installment = i + 1
		out[i] = ob
	}
	return out
}

// SortItems returns items ordered by priority, value score (highest first)
// and ID. The input is not modified.
func SortItems(items []Item) []Item {
	out := make([]Item, len(items))
	copy(out, items)
	sort.SliceStable(out, func(i, j int) bool {
		a, b := out[i], out[j]
		if a.Priority != b.Priority {
			return a.Priority < b.Priority
		}
		if !a.ValueScore.Equal(b.ValueScore) {
			return a.ValueScore.GreaterThan(b.ValueScore)
		}
		return a.ID < b.ID
	})
	return out
}
