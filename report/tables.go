/*
Package report renders a finance.Result as CSV tables and a markdown summary.

PURPOSE:
  The simulation produces typed rows; downstream consumers (spreadsheets,
  the HTTP API, the CLI output directory) want flat text. This package owns
  the column names and the text formatting of every value so the API and
  the CLI emit byte-identical files.

TABLES (file name = table name + ".csv"):
  purchases_plan       one row per item
  payments_plan_daily  one row per payment event, allocations as JSON
  item_balance_daily   one row per item per day
  card_balance_daily   one row per account per day
  kpi_daily            one row per KPI per day
  violations           one row per violation
  payments_monthly     payments summed by month and target account
  kpi_monthly          KPI values summed by month and KPI name

FORMATTING:
  Dates are YYYY-MM-DD (months are the first day of the month), money has
  two decimals, utilization four, booleans are true/false.
*/
package report

import (
	"encoding/csv"
	"encoding/json"
	"io"
	"sort"
	"strconv"

	"github.com/shopspring/decimal"
	"github.com/warp/obligation-engine/finance"
	"github.com/warp/obligation-engine/generic"
)

// Table is a rendered CSV table.
type Table struct {
	Name   string
	Header []string
	Rows   [][]string
}

const (
	TablePurchases       = "purchases_plan"
	TablePayments        = "payments_plan_daily"
	TableItemBalances    = "item_balance_daily"
	TableAccountBalances = "card_balance_daily"
	TableKPIs            = "kpi_daily"
	TableViolations      = "violations"
	TablePaymentsMonthly = "payments_monthly"
	TableKPIMonthly      = "kpi_monthly"
)

// TableNames lists every table in output order.
var TableNames = []string{
	TablePurchases,
	TablePayments,
	TableItemBalances,
	TableAccountBalances,
	TableKPIs,
	TableViolations,
	TablePaymentsMonthly,
	TableKPIMonthly,
}

var builders = map[string]func(*finance.Result) Table{
	TablePurchases:       Purchases,
	TablePayments:        Payments,
	TableItemBalances:    ItemBalances,
	TableAccountBalances: AccountBalances,
	TableKPIs:            KPIs,
	TableViolations:      Violations,
	TablePaymentsMonthly: PaymentsMonthly,
	TableKPIMonthly:      KPIMonthly,
}

// Tables renders every table of a result.
func Tables(r *finance.Result) []Table {
	out := make([]Table, 0, len(TableNames))
	for _, name := range TableNames {
		out = append(out, builders[name](r))
	}
	return out
}

// TableByName renders one table; false if the name is unknown.
func TableByName(r *finance.Result, name string) (Table, bool) {
	build, ok := builders[name]
	if !ok {
		return Table{}, false
	}
	return build(r), true
}

// WriteCSV writes the header and rows.
func WriteCSV(w io.Writer, t Table) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(t.Header); err != nil {
		return err
	}
	if err := cw.WriteAll(t.Rows); err != nil {
		return err
	}
	return cw.Error()
}

// =============================================================================
// DAILY TABLES
// =============================================================================

func Purchases(r *finance.Result) Table {
	t := Table{
		Name:   TablePurchases,
		Header: []string{"item_id", "chosen_purchase_date", "chosen_source", "chosen_price", "deadline_date", "flags", "value_score", "terms"},
	}
	for _, p := range r.Purchases {
		t.Rows = append(t.Rows, []string{
			string(p.ItemID),
			p.Date.String(),
			string(p.Source),
			generic.FormatMoney(p.Price),
			p.Deadline.String(),
			string(p.Flag),
			p.ValueScore.String(),
			strconv.Itoa(p.Terms),
		})
	}
	return t
}

type allocationJSON struct {
	ItemID       string `json:"item_id"`
	ObligationID string `json:"obligation_id"`
	Deadline     string `json:"deadline"`
	Amount       string `json:"amount"`
}

func Payments(r *finance.Result) Table {
	t := Table{
		Name:   TablePayments,
		Header: []string{"date", "source_account", "target", "amount", "unapplied", "manual", "allocations"},
	}
	for _, p := range r.Payments {
		t.Rows = append(t.Rows, []string{
			p.Date.String(),
			string(p.SourceAccount),
			string(p.Target),
			generic.FormatMoney(p.Amount),
			generic.FormatMoney(p.Unapplied),
			strconv.FormatBool(p.Manual),
			allocationsJSON(p.Allocations),
		})
	}
	return t
}

func allocationsJSON(allocs []finance.Allocation) string {
	out := make([]allocationJSON, len(allocs))
	for i, a := range allocs {
		out[i] = allocationJSON{
			ItemID:       string(a.ItemID),
			ObligationID: string(a.ObligationID),
			Deadline:     a.Deadline.String(),
			Amount:       generic.FormatMoney(a.Amount),
		}
	}
	b, err := json.Marshal(out)
	if err != nil {
		return "[]"
	}
	return string(b)
}

func ItemBalances(r *finance.Result) Table {
	t := Table{
		Name:   TableItemBalances,
		Header: []string{"date", "item_id", "source", "remaining_balance", "deadline_date", "status"},
	}
	for _, row := range r.ItemBalances {
		t.Rows = append(t.Rows, []string{
			row.Date.String(),
			string(row.ItemID),
			string(row.Source),
			generic.FormatMoney(row.RemainingBalance),
			row.Deadline.String(),
			string(row.Status),
		})
	}
	return t
}

func AccountBalances(r *finance.Result) Table {
	t := Table{
		Name:   TableAccountBalances,
		Header: []string{"date", "card_id", "balance", "available_limit", "utilization", "in_grace_bool", "next_deadline"},
	}
	for _, row := range r.AccountBalances {
		next := ""
		if row.NextDeadline != nil {
			next = row.NextDeadline.String()
		}
		t.Rows = append(t.Rows, []string{
			row.Date.String(),
			string(row.AccountID),
			generic.FormatMoney(row.Balance),
			generic.FormatMoney(row.AvailableCredit),
			row.Utilization.StringFixed(4),
			strconv.FormatBool(row.InGrace),
			next,
		})
	}
	return t
}

func KPIs(r *finance.Result) Table {
	t := Table{Name: TableKPIs, Header: []string{"date", "kpi_name", "value"}}
	for _, row := range r.KPIs {
		t.Rows = append(t.Rows, []string{row.Date.String(), string(row.Name), formatKPI(row.Name, row.Value)})
	}
	return t
}

func Violations(r *finance.Result) Table {
	t := Table{Name: TableViolations, Header: []string{"date", "violation_type", "card_id", "details"}}
	for _, v := range r.Violations {
		t.Rows = append(t.Rows, []string{v.Date.String(), string(v.Kind), string(v.AccountID), v.Details})
	}
	return t
}

func formatKPI(name finance.KPIName, v decimal.Decimal) string {
	switch name {
	case finance.KPIViolationsCount:
		return v.StringFixed(0)
	case finance.KPIMaxCardUtilization:
		return v.StringFixed(4)
	default:
		return generic.FormatMoney(v)
	}
}

// =============================================================================
// MONTHLY AGGREGATES
// =============================================================================

type monthKey struct {
	month string
	group string
}

// monthly sums values by (first day of month, group) in sorted key order.
func monthly(rows []monthlyRow) [][]string {
	sums := make(map[monthKey]decimal.Decimal)
	names := make(map[monthKey]finance.KPIName)
	var keys []monthKey
	for _, r := range rows {
		k := monthKey{month: generic.StartOfMonth(r.date.Year(), r.date.Month()).String(), group: r.group}
		if _, ok := sums[k]; !ok {
			keys = append(keys, k)
			sums[k] = decimal.Zero
		}
		sums[k] = sums[k].Add(r.value)
		names[k] = r.kpi
	}
	sort.Slice(keys, func(i, j int) bool {
		if keys[i].month != keys[j].month {
			return keys[i].month < keys[j].month
		}
		return keys[i].group < keys[j].group
	})

	out := make([][]string, 0, len(keys))
	for _, k := range keys {
		out = append(out, []string{k.month, k.group, formatKPI(names[k], sums[k])})
	}
	return out
}

type monthlyRow struct {
	date  generic.TimePoint
	group string
	value decimal.Decimal
	kpi   finance.KPIName // empty for payments, formats as money
}

func PaymentsMonthly(r *finance.Result) Table {
	rows := make([]monthlyRow, 0, len(r.Payments))
	for _, p := range r.Payments {
		rows = append(rows, monthlyRow{date: p.Date, group: string(p.Target), value: p.Amount})
	}
	return Table{
		Name:   TablePaymentsMonthly,
		Header: []string{"month", "target", "amount"},
		Rows:   monthly(rows),
	}
}

func KPIMonthly(r *finance.Result) Table {
	rows := make([]monthlyRow, 0, len(r.KPIs))
	for _, k := range r.KPIs {
		rows = append(rows, monthlyRow{date: k.Date, group: string(k.Name), value: k.Value, kpi: k.Name})
	}
	return Table{
		Name:   TableKPIMonthly,
		Header: []string{"month", "kpi_name", "value"},
		Rows:   monthly(rows),
	}
}
