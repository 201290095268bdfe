package finance

import (
	"fmt"
	"strconv"

	"github.com/warp/obligation-engine/generic"
)

// =============================================================================
// VALIDATION - Fail fast before the first simulated day
// =============================================================================

// Validate checks the inputs and returns the config with defaults applied
// (empty policy, price mode and source strategy resolve to their defaults).
// Every failure is a *ConfigError.
func Validate(in Inputs) (Config, error) {
	cfg := in.Config

	if cfg.StartDate.IsZero() {
		return Config{}, configErr("config", "start_date", "", ErrMissingStartDate)
	}
	if cfg.HorizonDays < 0 {
		return Config{}, configErr("config", "horizon_days", strconv.Itoa(cfg.HorizonDays), ErrNegativeHorizon)
	}

	policy, err := ParseAllocationPolicy(string(cfg.AllocationPolicy))
	if err != nil {
		return Config{}, configErr("config", "allocation_policy", string(cfg.AllocationPolicy), ErrInvalidPolicy)
	}
	cfg.AllocationPolicy = policy

	mode, err := ParsePriceMode(string(cfg.PriceMode))
	if err != nil {
		return Config{}, configErr("config", "price_mode", string(cfg.PriceMode), ErrInvalidPriceMode)
	}
	cfg.PriceMode = mode

	strategy, err := ParseSourceStrategy(string(cfg.SourceStrategy))
	if err != nil {
		return Config{}, configErr("config", "source_strategy", string(cfg.SourceStrategy), ErrInvalidSourceStrategy)
	}
	cfg.SourceStrategy = strategy

	known := make(map[generic.AccountID]bool, len(in.Accounts))
	for _, a := range in.Accounts {
		record := "account:" + string(a.ID)
		if a.ID == "" || a.ID.IsCash() {
			return Config{}, configErr(record, "id", string(a.ID), fmt.Errorf("account id must be set and not %q", generic.SourceCash))
		}
		if known[a.ID] {
			return Config{}, configErr(record, "id", string(a.ID), ErrDuplicateID)
		}
		if a.CreditLimit.IsNegative() {
			return Config{}, configErr(record, "credit_limit", a.CreditLimit.String(), ErrNegativeCreditLimit)
		}
		if a.GraceDays < 0 {
			return Config{}, configErr(record, "grace_days", strconv.Itoa(a.GraceDays), fmt.Errorf("must be >= 0"))
		}
		if a.MinPaymentRate.IsNegative() {
			return Config{}, configErr(record, "min_payment_rate", a.MinPaymentRate.String(), fmt.Errorf("must be >= 0"))
		}
		known[a.ID] = true
	}

	items := make(map[generic.ItemID]bool, len(in.Items))
	for _, it := range in.Items {
		record := "item:" + string(it.ID)
		if it.ID == "" {
			return Config{}, configErr(record, "id", "", fmt.Errorf("must be set"))
		}
		if items[it.ID] {
			return Config{}, configErr(record, "id", string(it.ID), ErrDuplicateID)
		}
		items[it.ID] = true

		for _, src := range it.AllowedSources {
			if !src.IsCash() && !known[src] {
				return Config{}, configErr(record, "allowed_sources", string(src), ErrUnknownAccount)
			}
		}
		if it.Terms < 0 {
			return Config{}, configErr(record, "terms", strconv.Itoa(it.Terms), fmt.Errorf("must be >= 0"))
		}
		if it.DatePolicy == DateFixed && it.FixedDate != nil && it.FixedDate.Before(cfg.StartDate) {
			return Config{}, configErr(record, "purchase_date_fixed", it.FixedDate.String(), ErrPurchaseBeforeStart)
		}
		if it.Earliest != nil && it.Latest != nil && it.Latest.Before(*it.Earliest) {
			return Config{}, configErr(record, "latest", it.Latest.String(), fmt.Errorf("before earliest %s", it.Earliest))
		}
	}

	for i, mp := range in.ManualPayments {
		record := "manual_payment:" + strconv.Itoa(i)
		if !known[mp.AccountID] {
			return Config{}, configErr(record, "account", string(mp.AccountID), ErrUnknownAccount)
		}
		if !mp.SourceAccount.IsCash() && !known[mp.SourceAccount] {
			return Config{}, configErr(record, "source_account", string(mp.SourceAccount), ErrUnknownAccount)
		}
		if mp.Amount.IsNegative() {
			return Config{}, configErr(record, "amount", mp.Amount.String(), generic.ErrInvalidAmount)
		}
		if mp.Date.IsZero() {
			return Config{}, configErr(record, "date", "", generic.ErrInvalidDate)
		}
	}

	return cfg, nil
}
