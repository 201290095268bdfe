/*
Package factory converts scenario documents into simulation inputs.

PURPOSE:
  A scenario is one YAML or JSON document holding everything a run needs:
  the config block, the cards, the items, the daily budget and optional
  manual payments. The factory decodes it, checks the fields a decoder
  can't (enums, date modes, terms) and produces typed finance.Inputs.
  Cross-record checks (unknown accounts, duplicates) are left to
  finance.Validate so the API and the CLI report them the same way.

DOCUMENT SCHEMA (YAML shown, JSON uses the same keys):
  name: spring-purchases
  config:
    start_date: 2024-03-01
    horizon_days: 60
    time_step: day                  # only "day" is supported
    allocation_policy: fifo_deadline
    allow_pay_ahead: false
    price_mode: range
    source_strategy: longest_grace
  cards:
    - card_id: card-a
      credit_limit: 1500
      grace_days: 25
      apr_outside_grace: 0.21
      min_payment_rule: 0.05
  items:
    - item_id: laptop
      name: Laptop
      price_value: 1200
      price_min: 1100
      price_max: 1300
      value_score: 9
      priority: 1
      allowed_sources: card-a,cash  # or a list
      purchase_date_mode: optimize  # or fixed
      purchase_date_latest: 2024-03-20
      installment_allowed: true
      installment_terms: 3
  budget_daily:
    - date: 2024-03-01
      amount_in: 2500
      amount_out_fixed: 900
  manual_payments:
    - date: 2024-03-10
      card_id: card-a
      amount: 200

KEY FEATURES:
  - Money accepts numbers or quoted strings and is kept as decimal
  - allowed_sources accepts a comma separated string or a list
  - Several budget rows on one day are summed

USAGE:
  f := factory.NewScenarioFactory()
  doc, err := f.LoadFile("scenarios/spring.yaml")
  inputs, err := f.ToInputs(doc)
  result, err := finance.NewEngine(log).Run(inputs)

SEE ALSO:
  - finance/types.go: Inputs, Item, Account
  - finance/validate.go: Cross-record validation
*/
package factory

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/shopspring/decimal"
	"github.com/warp/obligation-engine/finance"
	"github.com/warp/obligation-engine/generic"
	"gopkg.in/yaml.v3"
)

// =============================================================================
// DOCUMENT SCHEMA TYPES
// =============================================================================

// ScenarioJSON is the document form of a scenario, shared by JSON and YAML.
type ScenarioJSON struct {
	Name           string              `json:"name,omitempty" yaml:"name,omitempty"`
	Config         ConfigJSON          `json:"config" yaml:"config"`
	Cards          []CardJSON          `json:"cards" yaml:"cards"`
	Items          []ItemJSON          `json:"items" yaml:"items"`
	Budget         []BudgetRowJSON     `json:"budget_daily,omitempty" yaml:"budget_daily,omitempty"`
	ManualPayments []ManualPaymentJSON `json:"manual_payments,omitempty" yaml:"manual_payments,omitempty"`
}

type ConfigJSON struct {
	StartDate        generic.TimePoint `json:"start_date" yaml:"start_date"`
	HorizonDays      int               `json:"horizon_days" yaml:"horizon_days"`
	TimeStep         string            `json:"time_step,omitempty" yaml:"time_step,omitempty"`
	AllocationPolicy string            `json:"allocation_policy,omitempty" yaml:"allocation_policy,omitempty"`
	AllowPayAhead    bool              `json:"allow_pay_ahead" yaml:"allow_pay_ahead"`
	PriceMode        string            `json:"price_mode,omitempty" yaml:"price_mode,omitempty"`
	SourceStrategy   string            `json:"source_strategy,omitempty" yaml:"source_strategy,omitempty"`
}

type CardJSON struct {
	CardID         string          `json:"card_id" yaml:"card_id"`
	Name           string          `json:"name,omitempty" yaml:"name,omitempty"`
	CreditLimit    decimal.Decimal `json:"credit_limit" yaml:"credit_limit"`
	GraceDays      int             `json:"grace_days" yaml:"grace_days"`
	APR            decimal.Decimal `json:"apr_outside_grace" yaml:"apr_outside_grace"`
	MinPaymentRule decimal.Decimal `json:"min_payment_rule" yaml:"min_payment_rule"`
	StatementDay   int             `json:"statement_day,omitempty" yaml:"statement_day,omitempty"`
	DueDay         int             `json:"due_day,omitempty" yaml:"due_day,omitempty"`
}

type ItemJSON struct {
	ItemID         string             `json:"item_id" yaml:"item_id"`
	Name           string             `json:"name,omitempty" yaml:"name,omitempty"`
	PriceValue     decimal.Decimal    `json:"price_value" yaml:"price_value"`
	PriceMin       *decimal.Decimal   `json:"price_min,omitempty" yaml:"price_min,omitempty"`
	PriceMax       *decimal.Decimal   `json:"price_max,omitempty" yaml:"price_max,omitempty"`
	ValueScore     decimal.Decimal    `json:"value_score" yaml:"value_score"`
	Priority       int                `json:"priority" yaml:"priority"`
	AllowedSources SourceList         `json:"allowed_sources" yaml:"allowed_sources"`
	DateMode       string             `json:"purchase_date_mode,omitempty" yaml:"purchase_date_mode,omitempty"`
	DateFixed      *generic.TimePoint `json:"purchase_date_fixed,omitempty" yaml:"purchase_date_fixed,omitempty"`
	DateEarliest   *generic.TimePoint `json:"purchase_date_earliest,omitempty" yaml:"purchase_date_earliest,omitempty"`
	DateLatest     *generic.TimePoint `json:"purchase_date_latest,omitempty" yaml:"purchase_date_latest,omitempty"`
	Deadline       *generic.TimePoint `json:"item_deadline_override,omitempty" yaml:"item_deadline_override,omitempty"`

	SplitAllowed       bool `json:"split_allowed,omitempty" yaml:"split_allowed,omitempty"`
	SplitTerms         int  `json:"split_terms,omitempty" yaml:"split_terms,omitempty"`
	InstallmentAllowed bool `json:"installment_allowed,omitempty" yaml:"installment_allowed,omitempty"`
	InstallmentTerms   int  `json:"installment_terms,omitempty" yaml:"installment_terms,omitempty"`
}

type BudgetRowJSON struct {
	Date           generic.TimePoint `json:"date" yaml:"date"`
	AmountIn       decimal.Decimal   `json:"amount_in" yaml:"amount_in"`
	AmountOutFixed decimal.Decimal   `json:"amount_out_fixed" yaml:"amount_out_fixed"`
}

type ManualPaymentJSON struct {
	Date          generic.TimePoint `json:"date" yaml:"date"`
	CardID        string            `json:"card_id" yaml:"card_id"`
	Amount        decimal.Decimal   `json:"amount" yaml:"amount"`
	SourceAccount string            `json:"source_account,omitempty" yaml:"source_account,omitempty"`
}

// SourceList decodes from "card-a, cash" or ["card-a", "cash"].
type SourceList []string

func (s *SourceList) UnmarshalJSON(b []byte) error {
	var list []string
	if err := json.Unmarshal(b, &list); err == nil {
		*s = cleanSources(list)
		return nil
	}
	var joined string
	if err := json.Unmarshal(b, &joined); err != nil {
		return fmt.Errorf("allowed_sources: expected string or list: %w", err)
	}
	*s = cleanSources(strings.Split(joined, ","))
	return nil
}

func (s *SourceList) UnmarshalYAML(node *yaml.Node) error {
	switch node.Kind {
	case yaml.SequenceNode:
		var list []string
		if err := node.Decode(&list); err != nil {
			return err
		}
		*s = cleanSources(list)
	case yaml.ScalarNode:
		*s = cleanSources(strings.Split(node.Value, ","))
	default:
		return fmt.Errorf("allowed_sources: expected string or list at line %d", node.Line)
	}
	return nil
}

func cleanSources(raw []string) SourceList {
	out := make(SourceList, 0, len(raw))
	for _, token := range raw {
		if token = strings.TrimSpace(token); token != "" {
			out = append(out, token)
		}
	}
	return out
}

// =============================================================================
// SCENARIO FACTORY
// =============================================================================

// ScenarioFactory decodes scenario documents.
type ScenarioFactory struct{}

func NewScenarioFactory() *ScenarioFactory {
	return &ScenarioFactory{}
}

// ParseJSON decodes a JSON document.
func (f *ScenarioFactory) ParseJSON(data []byte) (*ScenarioJSON, error) {
	var sj ScenarioJSON
	if err := json.Unmarshal(data, &sj); err != nil {
		return nil, documentErr("json", err)
	}
	return &sj, nil
}

// ParseYAML decodes a YAML document. JSON is valid YAML, so this accepts both.
func (f *ScenarioFactory) ParseYAML(data []byte) (*ScenarioJSON, error) {
	var sj ScenarioJSON
	dec := yaml.NewDecoder(bytes.NewReader(data))
	if err := dec.Decode(&sj); err != nil {
		return nil, documentErr("yaml", err)
	}
	return &sj, nil
}

// Parse picks the decoder by format name ("json", "yaml" or "yml").
func (f *ScenarioFactory) Parse(format string, data []byte) (*ScenarioJSON, error) {
	switch strings.ToLower(strings.TrimPrefix(format, ".")) {
	case "json":
		return f.ParseJSON(data)
	default:
		return f.ParseYAML(data)
	}
}

// LoadFile reads a scenario from disk; the extension picks the decoder.
func (f *ScenarioFactory) LoadFile(path string) (*ScenarioJSON, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read scenario %s: %w", path, err)
	}
	sj, err := f.Parse(filepath.Ext(path), data)
	if err != nil {
		return nil, fmt.Errorf("scenario %s: %w", path, err)
	}
	if sj.Name == "" {
		sj.Name = strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	}
	return sj, nil
}

// MarshalJSON renders a document in its canonical stored form.
func (f *ScenarioFactory) MarshalJSON(sj *ScenarioJSON) ([]byte, error) {
	return json.Marshal(sj)
}

// ToInputs converts a decoded document into simulation inputs.
func (f *ScenarioFactory) ToInputs(sj *ScenarioJSON) (finance.Inputs, error) {
	in := finance.Inputs{
		Config: finance.Config{
			StartDate:        sj.Config.StartDate,
			HorizonDays:      sj.Config.HorizonDays,
			AllocationPolicy: finance.AllocationPolicy(sj.Config.AllocationPolicy),
			AllowPayAhead:    sj.Config.AllowPayAhead,
			PriceMode:        finance.PriceMode(sj.Config.PriceMode),
			SourceStrategy:   finance.SourceStrategy(sj.Config.SourceStrategy),
		},
		Budget: finance.Budget{},
	}
	if step := sj.Config.TimeStep; step != "" && step != "day" {
		return finance.Inputs{}, &finance.ConfigError{
			Record: "config", Field: "time_step", Value: step,
			Err: fmt.Errorf("only daily steps are supported"),
		}
	}

	for _, cj := range sj.Cards {
		in.Accounts = append(in.Accounts, parseCard(cj))
	}

	for _, ij := range sj.Items {
		item, err := parseItem(ij)
		if err != nil {
			return finance.Inputs{}, err
		}
		in.Items = append(in.Items, item)
	}

	for i, row := range sj.Budget {
		if row.Date.IsZero() {
			return finance.Inputs{}, &finance.ConfigError{
				Record: fmt.Sprintf("budget_daily:%d", i), Field: "date", Err: generic.ErrInvalidDate,
			}
		}
		in.Budget.Add(row.Date, generic.RoundMoney(row.AmountIn), generic.RoundMoney(row.AmountOutFixed))
	}

	for _, mj := range sj.ManualPayments {
		source := generic.AccountID(mj.SourceAccount)
		if source == "" {
			source = generic.SourceCash
		}
		in.ManualPayments = append(in.ManualPayments, finance.ManualPayment{
			Date:          mj.Date,
			AccountID:     generic.AccountID(mj.CardID),
			Amount:        generic.RoundMoney(mj.Amount),
			SourceAccount: source,
		})
	}

	return in, nil
}

// Load reads a file and converts it in one step.
func (f *ScenarioFactory) Load(path string) (*ScenarioJSON, finance.Inputs, error) {
	sj, err := f.LoadFile(path)
	if err != nil {
		return nil, finance.Inputs{}, err
	}
	in, err := f.ToInputs(sj)
	if err != nil {
		return nil, finance.Inputs{}, fmt.Errorf("scenario %s: %w", path, err)
	}
	return sj, in, nil
}

// =============================================================================
// PARSING HELPERS
// =============================================================================

func parseCard(cj CardJSON) finance.Account {
	name := cj.Name
	if name == "" {
		name = cj.CardID
	}
	return finance.Account{
		ID:             generic.AccountID(cj.CardID),
		Name:           name,
		CreditLimit:    generic.RoundMoney(cj.CreditLimit),
		GraceDays:      cj.GraceDays,
		InterestRate:   cj.APR,
		MinPaymentRate: cj.MinPaymentRule,
		StatementDay:   cj.StatementDay,
		DueDay:         cj.DueDay,
	}
}

func parseItem(ij ItemJSON) (finance.Item, error) {
	record := "item:" + ij.ItemID

	mode, err := parseDateMode(ij.DateMode)
	if err != nil {
		return finance.Item{}, &finance.ConfigError{Record: record, Field: "purchase_date_mode", Value: ij.DateMode, Err: err}
	}
	if mode == finance.DateFixed && ij.DateFixed == nil && ij.DateEarliest == nil && ij.DateLatest == nil {
		return finance.Item{}, &finance.ConfigError{
			Record: record, Field: "purchase_date_fixed", Err: fmt.Errorf("fixed date mode needs a date"),
		}
	}
	if ij.SplitTerms < 0 || ij.InstallmentTerms < 0 {
		return finance.Item{}, &finance.ConfigError{Record: record, Field: "terms", Err: fmt.Errorf("must be >= 0")}
	}

	sources := make([]generic.AccountID, len(ij.AllowedSources))
	for i, s := range ij.AllowedSources {
		sources[i] = generic.AccountID(s)
	}

	return finance.Item{
		ID:               generic.ItemID(ij.ItemID),
		Name:             ij.Name,
		Priority:         ij.Priority,
		ValueScore:       ij.ValueScore,
		Price:            finance.Price{Value: generic.RoundMoney(ij.PriceValue), Min: roundPtr(ij.PriceMin), Max: roundPtr(ij.PriceMax)},
		AllowedSources:   sources,
		DatePolicy:       mode,
		FixedDate:        ij.DateFixed,
		Earliest:         ij.DateEarliest,
		Latest:           ij.DateLatest,
		DeadlineOverride: ij.Deadline,
		Terms:            parseTerms(ij),
	}, nil
}

// roundPtr rounds an optional amount to currency precision.
func roundPtr(d *decimal.Decimal) *decimal.Decimal {
	if d == nil {
		return nil
	}
	r := generic.RoundMoney(*d)
	return &r
}

func parseDateMode(s string) (finance.DatePolicy, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "optimize", "optimized", "flexible":
		return finance.DateOptimize, nil
	case "fixed":
		return finance.DateFixed, nil
	default:
		return "", fmt.Errorf("unknown purchase date mode")
	}
}

// parseTerms prefers installments over splits; one term means pay in full.
func parseTerms(ij ItemJSON) int {
	if ij.InstallmentAllowed && ij.InstallmentTerms > 1 {
		return ij.InstallmentTerms
	}
	if ij.SplitAllowed && ij.SplitTerms > 1 {
		return ij.SplitTerms
	}
	return 0
}

func documentErr(format string, err error) error {
	return &finance.ConfigError{Record: "scenario", Field: format, Err: err}
}
