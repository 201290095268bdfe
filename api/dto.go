/*
dto.go - Data Transfer Objects for API requests and responses

PURPOSE:
  Defines the JSON structures for API communication. These types decouple
  the finance model from the external API contract: money is rendered as
  fixed two-decimal strings and dates as YYYY-MM-DD.

NAMING CONVENTION:
  - *DTO: Response types returned to clients
  - *Request: Request body types from clients

REQUEST BODIES:
  Scenario documents are factory.ScenarioJSON, sent as JSON or YAML
  (Content-Type: application/yaml).

SEE ALSO:
  - handlers.go: Uses these types
  - factory/scenario.go: ScenarioJSON type
*/
package api

import (
	"encoding/json"
	"time"

	"github.com/warp/obligation-engine/finance"
	"github.com/warp/obligation-engine/generic"
)

// =============================================================================
// RUNS
// =============================================================================

type SummaryDTO struct {
	Days             int            `json:"days"`
	TotalSpend       string         `json:"total_spend"`
	CreditSpend      string         `json:"credit_spend"`
	CashSpend        string         `json:"cash_spend"`
	TotalPaid        string         `json:"total_paid"`
	FinalCash        string         `json:"final_cash"`
	FinalDebt        string         `json:"final_debt"`
	MaxUtilization   string         `json:"max_utilization"`
	OverLimitItems   int            `json:"over_limit_items"`
	ViolationsByKind map[string]int `json:"violations_by_kind"`
}

// RunDTO is the listing view of a run.
type RunDTO struct {
	ID         string     `json:"id"`
	ScenarioID string     `json:"scenario_id,omitempty"`
	Name       string     `json:"name"`
	CreatedAt  string     `json:"created_at"`
	Summary    SummaryDTO `json:"summary"`
}

// RunDetailDTO adds the decisions of a run. Daily snapshots are served as
// CSV tables instead.
type RunDetailDTO struct {
	RunDTO
	Purchases   []PurchaseDTO   `json:"purchases"`
	Payments    []PaymentDTO    `json:"payments"`
	Obligations []ObligationDTO `json:"obligations"`
	Violations  []ViolationDTO  `json:"violations"`
	Tables      []string        `json:"tables"`
}

type PurchaseDTO struct {
	ItemID     string `json:"item_id"`
	Date       string `json:"date"`
	Source     string `json:"source"`
	Price      string `json:"price"`
	Deadline   string `json:"deadline"`
	Flag       string `json:"flag"`
	ValueScore string `json:"value_score"`
	Terms      int    `json:"terms,omitempty"`
}

type AllocationDTO struct {
	ObligationID string `json:"obligation_id"`
	ItemID       string `json:"item_id"`
	Deadline     string `json:"deadline"`
	Amount       string `json:"amount"`
}

type PaymentDTO struct {
	Date          string          `json:"date"`
	SourceAccount string          `json:"source_account"`
	Target        string          `json:"target"`
	Amount        string          `json:"amount"`
	Manual        bool            `json:"manual"`
	Unapplied     string          `json:"unapplied,omitempty"`
	Allocations   []AllocationDTO `json:"allocations"`
}

type ObligationDTO struct {
	ID          string `json:"id"`
	AccountID   string `json:"account_id"`
	ItemID      string `json:"item_id"`
	Original    string `json:"original"`
	Remaining   string `json:"remaining"`
	Deadline    string `json:"deadline"`
	CreatedAt   string `json:"created_at"`
	Installment int    `json:"installment"`
}

type ViolationDTO struct {
	Date      string `json:"date"`
	Kind      string `json:"kind"`
	AccountID string `json:"account_id"`
	Details   string `json:"details"`
}

// =============================================================================
// SCENARIOS
// =============================================================================

type ScenarioDTO struct {
	ID        string          `json:"id"`
	Name      string          `json:"name"`
	CreatedAt string          `json:"created_at"`
	Document  json.RawMessage `json:"document,omitempty"`
}

// ErrorResponse is the body of every non-2xx response.
type ErrorResponse struct {
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
}

// =============================================================================
// CONVERSIONS
// =============================================================================

func toSummaryDTO(s finance.Summary) SummaryDTO {
	byKind := make(map[string]int, len(s.ViolationsByKind))
	for k, n := range s.ViolationsByKind {
		byKind[string(k)] = n
	}
	return SummaryDTO{
		Days:             s.Days,
		TotalSpend:       generic.FormatMoney(s.TotalSpend),
		CreditSpend:      generic.FormatMoney(s.CreditSpend),
		CashSpend:        generic.FormatMoney(s.CashSpend),
		TotalPaid:        generic.FormatMoney(s.TotalPaid),
		FinalCash:        generic.FormatMoney(s.FinalCash),
		FinalDebt:        generic.FormatMoney(s.FinalDebt),
		MaxUtilization:   s.MaxUtilization.StringFixed(4),
		OverLimitItems:   s.OverLimitItems,
		ViolationsByKind: byKind,
	}
}

func toRunDTO(info finance.RunInfo) RunDTO {
	return RunDTO{
		ID:         info.ID,
		ScenarioID: info.ScenarioID,
		Name:       info.Name,
		CreatedAt:  info.CreatedAt.Format(time.RFC3339),
		Summary:    toSummaryDTO(info.Summary),
	}
}

func toRunDetailDTO(run *finance.Run, tables []string) RunDetailDTO {
	dto := RunDetailDTO{
		RunDTO:      toRunDTO(run.Info()),
		Purchases:   []PurchaseDTO{},
		Payments:    []PaymentDTO{},
		Obligations: []ObligationDTO{},
		Violations:  []ViolationDTO{},
		Tables:      tables,
	}
	if run.Result == nil {
		return dto
	}
	for _, p := range run.Result.Purchases {
		dto.Purchases = append(dto.Purchases, PurchaseDTO{
			ItemID:     string(p.ItemID),
			Date:       p.Date.String(),
			Source:     string(p.Source),
			Price:      generic.FormatMoney(p.Price),
			Deadline:   p.Deadline.String(),
			Flag:       string(p.Flag),
			ValueScore: p.ValueScore.String(),
			Terms:      p.Terms,
		})
	}
	for _, p := range run.Result.Payments {
		dto.Payments = append(dto.Payments, toPaymentDTO(p))
	}
	for _, o := range run.Result.Obligations {
		dto.Obligations = append(dto.Obligations, ObligationDTO{
			ID:          string(o.ID),
			AccountID:   string(o.AccountID),
			ItemID:      string(o.ItemID),
			Original:    generic.FormatMoney(o.Original),
			Remaining:   generic.FormatMoney(o.Remaining),
			Deadline:    o.Deadline.String(),
			CreatedAt:   o.CreatedAt.String(),
			Installment: o.Installment,
		})
	}
	dto.Violations = toViolationDTOs(run.Result.Violations)
	return dto
}

func toPaymentDTO(p finance.PaymentEvent) PaymentDTO {
	dto := PaymentDTO{
		Date:          p.Date.String(),
		SourceAccount: string(p.SourceAccount),
		Target:        string(p.Target),
		Amount:        generic.FormatMoney(p.Amount),
		Manual:        p.Manual,
		Allocations:   make([]AllocationDTO, 0, len(p.Allocations)),
	}
	if p.Unapplied.IsPositive() {
		dto.Unapplied = generic.FormatMoney(p.Unapplied)
	}
	for _, a := range p.Allocations {
		dto.Allocations = append(dto.Allocations, AllocationDTO{
			ObligationID: string(a.ObligationID),
			ItemID:       string(a.ItemID),
			Deadline:     a.Deadline.String(),
			Amount:       generic.FormatMoney(a.Amount),
		})
	}
	return dto
}

func toViolationDTOs(vs []finance.Violation) []ViolationDTO {
	out := make([]ViolationDTO, 0, len(vs))
	for _, v := range vs {
		out = append(out, ViolationDTO{
			Date:      v.Date.String(),
			Kind:      string(v.Kind),
			AccountID: string(v.AccountID),
			Details:   v.Details,
		})
	}
	return out
}

func toScenarioDTO(sc *finance.Scenario, withDocument bool) ScenarioDTO {
	dto := ScenarioDTO{
		ID:        sc.ID,
		Name:      sc.Name,
		CreatedAt: sc.CreatedAt.Format(time.RFC3339),
	}
	if withDocument {
		dto.Document = json.RawMessage(sc.Document)
	}
	return dto
}
