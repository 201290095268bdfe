/*
errors.go - Error types for the simulation core

ERROR CATEGORIES:
  1. Configuration errors - bad inputs, raised before the first simulated day
  2. Ledger errors - programming errors (overpaying an obligation)

Simulation-time anomalies (limit breach, overdue debt, not enough cash) are
NOT errors. They are recorded as Violation rows and the run always covers
the full horizon.

USAGE:
  result, err := finance.NewEngine(log).Run(inputs)
  if finance.IsConfigError(err) {
      // reject the scenario, nothing was simulated
  }
*/
package finance

import (
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
	"github.com/warp/obligation-engine/generic"
)

// =============================================================================
// SENTINEL ERRORS - Use with errors.Is()
// =============================================================================

var (
	// ErrInvalidConfig is the parent of every configuration error.
	ErrInvalidConfig = errors.New("invalid configuration")

	// ErrUnknownAccount is returned when an item or manual payment references
	// an account that was not loaded.
	ErrUnknownAccount = errors.New("unknown account")

	// ErrNegativeHorizon is returned for horizon_days < 0.
	ErrNegativeHorizon = errors.New("negative horizon")

	// ErrInvalidPolicy is returned for a malformed allocation policy name.
	ErrInvalidPolicy = errors.New("invalid allocation policy")

	// ErrInvalidPriceMode is returned for an unknown price resolution mode.
	ErrInvalidPriceMode = errors.New("invalid price mode")

	// ErrInvalidSourceStrategy is returned for an unknown source strategy.
	ErrInvalidSourceStrategy = errors.New("invalid source strategy")

	// ErrNegativeCreditLimit is returned when an account has limit < 0.
	ErrNegativeCreditLimit = errors.New("negative credit limit")

	// ErrDuplicateID is returned when two items or two accounts share an ID.
	ErrDuplicateID = errors.New("duplicate id")

	// ErrMissingStartDate is returned when the config has no start date.
	ErrMissingStartDate = errors.New("missing start date")

	// ErrPurchaseBeforeStart is returned for a fixed purchase date earlier
	// than the start date; such a purchase could never post.
	ErrPurchaseBeforeStart = errors.New("purchase date before start date")

	// ErrOverpayment is returned by the ledger when an allocation exceeds the
	// obligation's remaining balance. The allocator never produces one.
	ErrOverpayment = errors.New("allocation exceeds remaining balance")

	// ErrUnknownObligation is returned by the ledger for an allocation that
	// names an obligation it doesn't hold.
	ErrUnknownObligation = errors.New("unknown obligation")
)

// =============================================================================
// STRUCTURED ERRORS - Carry additional context
// =============================================================================

// ConfigError names the offending record and field.
type ConfigError struct {
	Record string // e.g. "item:laptop", "account:card-a", "config"
	Field  string
	Value  string
	Err    error
}

func (e *ConfigError) Error() string {
	if e.Value != "" {
		return fmt.Sprintf("%s: %s %q: %v", e.Record, e.Field, e.Value, e.Err)
	}
	return fmt.Sprintf("%s: %s: %v", e.Record, e.Field, e.Err)
}

func (e *ConfigError) Unwrap() []error {
	return []error{e.Err, ErrInvalidConfig}
}

func configErr(record, field, value string, err error) *ConfigError {
	return &ConfigError{Record: record, Field: field, Value: value, Err: err}
}

// OverpaymentError provides details about a rejected allocation.
type OverpaymentError struct {
	ObligationID generic.ObligationID
	Remaining    decimal.Decimal
	Requested    decimal.Decimal
}

func (e *OverpaymentError) Error() string {
	return fmt.Sprintf("obligation %s: allocation %s exceeds remaining %s",
		e.ObligationID, generic.FormatMoney(e.Requested), generic.FormatMoney(e.Remaining))
}

func (e *OverpaymentError) Unwrap() error {
	return ErrOverpayment
}

// =============================================================================
// ERROR HELPERS
// =============================================================================

// IsConfigError returns true if the error is due to invalid inputs.
func IsConfigError(err error) bool {
	return errors.Is(err, ErrInvalidConfig)
}
