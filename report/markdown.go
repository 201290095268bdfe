package report

import (
	"fmt"
	"sort"
	"strings"

	"github.com/shopspring/decimal"
	"github.com/warp/obligation-engine/finance"
	"github.com/warp/obligation-engine/generic"
)

// Markdown renders the human-readable run report: purchases, daily payment
// totals, warnings (identical violations listed once) and the summary.
func Markdown(title string, r *finance.Result) string {
	var b strings.Builder
	if title == "" {
		title = "Finance report"
	}
	fmt.Fprintf(&b, "# %s\n\n", title)

	b.WriteString("## Purchases\n")
	if len(r.Purchases) == 0 {
		b.WriteString("- No purchases\n")
	}
	for _, p := range r.Purchases {
		fmt.Fprintf(&b, "- %s: %s via %s for %s, deadline %s\n",
			p.ItemID, p.Date, p.Source, generic.FormatMoney(p.Price), p.Deadline)
	}

	b.WriteString("\n## Payments\n")
	if len(r.Payments) == 0 {
		b.WriteString("- No payments\n")
	}
	totals := make(map[string]decimal.Decimal)
	var days []string
	for _, p := range r.Payments {
		key := p.Date.String()
		if _, ok := totals[key]; !ok {
			days = append(days, key)
			totals[key] = decimal.Zero
		}
		totals[key] = totals[key].Add(p.Amount)
	}
	sort.Strings(days)
	for _, d := range days {
		fmt.Fprintf(&b, "- %s: %s\n", d, generic.FormatMoney(totals[d]))
	}

	b.WriteString("\n## Warnings\n")
	if len(r.Violations) == 0 {
		b.WriteString("- No violations found\n")
	}
	seen := make(map[finance.Violation]bool)
	for _, v := range r.Violations {
		if seen[v] {
			continue
		}
		seen[v] = true
		fmt.Fprintf(&b, "- %s: %s -> %s\n", v.Date, v.Kind, v.Details)
	}

	s := r.Summary
	b.WriteString("\n## Summary\n")
	fmt.Fprintf(&b, "- Days simulated: %d\n", s.Days)
	fmt.Fprintf(&b, "- Total spend: %s (credit %s, cash %s)\n",
		generic.FormatMoney(s.TotalSpend), generic.FormatMoney(s.CreditSpend), generic.FormatMoney(s.CashSpend))
	fmt.Fprintf(&b, "- Total paid: %s\n", generic.FormatMoney(s.TotalPaid))
	fmt.Fprintf(&b, "- Final cash: %s\n", generic.FormatMoney(s.FinalCash))
	fmt.Fprintf(&b, "- Final card debt: %s\n", generic.FormatMoney(s.FinalDebt))
	fmt.Fprintf(&b, "- Max card utilization: %s\n", s.MaxUtilization.StringFixed(4))
	fmt.Fprintf(&b, "- Items over card limit: %d\n", s.OverLimitItems)
	fmt.Fprintf(&b, "- Violations: %d card_limit, %d overdue\n",
		s.ViolationsByKind[finance.ViolationCardLimit], s.ViolationsByKind[finance.ViolationOverdue])

	return b.String()
}
