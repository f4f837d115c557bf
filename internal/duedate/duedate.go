// Package duedate derives the payment due date for an account from its
// disbursement, repayment and fee history.
//
// One parameterized engine serves both product variants instead of two
// copy-pasted rule sets:
//
//   - VariantInstallment: revolving accounts where a sufficiently large
//     partial repayment extends the due date from the last transaction,
//     while under-payments keep it anchored to the last disbursement.
//   - VariantRecurringFee: accounts that stay current by keeping a monthly
//     service fee paced with the periods elapsed since the last
//     disbursement, with a legacy population grandfathered onto the plain
//     disbursement-plus-grace rule.
//
// The due date is always derived from scratch at each cutoff; it is never
// persisted and carried forward, because the rules depend on the event
// history visible at the cutoff.
package duedate

import (
	"fmt"
	"time"

	"golang-loanpanel-service/internal/aggregate"
	"golang-loanpanel-service/internal/models"

	"github.com/shopspring/decimal"
)

// Variant selects the product rule set
type Variant string

const (
	VariantInstallment  Variant = "installment"
	VariantRecurringFee Variant = "recurring-fee"
)

// IsValid checks if the variant is known
func (v Variant) IsValid() bool {
	return v == VariantInstallment || v == VariantRecurringFee
}

// Config holds the rule parameters for the engine
type Config struct {
	Variant Variant

	// GraceDays is the payment window granted after a qualifying
	// transaction (default 30)
	GraceDays int

	// MinimumPayment is the balance threshold below which any repayment
	// behavior anchors the due date to the last disbursement (default 67.50)
	MinimumPayment decimal.Decimal

	// MinimumPaymentRatio is the fraction of the pre-repayment balance that
	// counts as a qualifying minimum payment (default 0.30)
	MinimumPaymentRatio decimal.Decimal

	// LegacyCutover applies to the recurring-fee variant: accounts whose
	// last disbursement is on or before this date keep the plain
	// disbursement-plus-grace due date
	LegacyCutover time.Time
}

// DefaultConfig returns the default rule parameters for a variant
func DefaultConfig(variant Variant) *Config {
	return &Config{
		Variant:             variant,
		GraceDays:           30,
		MinimumPayment:      decimal.NewFromFloat(67.50),
		MinimumPaymentRatio: decimal.NewFromFloat(0.30),
		LegacyCutover:       time.Date(2022, 5, 1, 0, 0, 0, 0, time.UTC),
	}
}

// Validate validates the engine configuration
func (c *Config) Validate() error {
	if !c.Variant.IsValid() {
		return fmt.Errorf("invalid due-date variant: %s", c.Variant)
	}

	if c.GraceDays <= 0 {
		return fmt.Errorf("grace days must be positive, got %d", c.GraceDays)
	}

	if c.MinimumPayment.IsNegative() {
		return fmt.Errorf("minimum payment cannot be negative")
	}

	if c.MinimumPaymentRatio.IsNegative() || c.MinimumPaymentRatio.GreaterThan(decimal.NewFromInt(1)) {
		return fmt.Errorf("minimum payment ratio must be in [0, 1]")
	}

	if c.Variant == VariantRecurringFee && c.LegacyCutover.IsZero() {
		return fmt.Errorf("legacy cutover date is required for the recurring-fee variant")
	}

	return nil
}

// Engine computes due dates under a configured rule set
type Engine struct {
	config *Config
}

// NewEngine creates an engine for the given configuration
func NewEngine(config *Config) (*Engine, error) {
	if config == nil {
		return nil, fmt.Errorf("due-date engine configuration is required")
	}

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid due-date configuration: %w", err)
	}

	return &Engine{config: config}, nil
}

// Config returns the engine's configuration
func (e *Engine) Config() *Config {
	return e.config
}

// DueDate computes the due date for the account facts at the facts' cutoff.
// The zero time is returned when no due date can be derived (the account has
// never been disbursed); the classifier surfaces that state explicitly.
func (e *Engine) DueDate(facts *aggregate.Facts) time.Time {
	if facts.LastDisbursementAt.IsZero() {
		return time.Time{}
	}

	switch e.config.Variant {
	case VariantRecurringFee:
		return e.recurringFeeDueDate(facts)
	default:
		return e.installmentDueDate(facts)
	}
}

// installmentDueDate implements the minimum-payment extension rule.
func (e *Engine) installmentDueDate(facts *aggregate.Facts) time.Time {
	// A disbursement as the most recent transaction restarts the clock.
	// Assumption inherited from the product: the account was in good
	// standing when the draw was allowed; the engine does not re-verify it.
	if facts.LastTransactionType == models.EventTypeDisbursement {
		return facts.LastTransactionAt.AddDate(0, 0, e.config.GraceDays)
	}

	prior := facts.BalanceAtLastDisbursement
	repaid := facts.RepaidSinceLastDisbursement

	// A qualifying partial payment on a balance above the minimum-payment
	// threshold extends the due date from the last transaction. Everything
	// else (paid in full, small balances, under-payments) anchors to the
	// last disbursement.
	if prior.GreaterThan(e.config.MinimumPayment) &&
		repaid.LessThan(prior) &&
		repaid.GreaterThanOrEqual(e.minimumDue(prior)) {
		return facts.LastTransactionAt.AddDate(0, 0, e.config.GraceDays)
	}

	return facts.LastDisbursementAt.AddDate(0, 0, e.config.GraceDays)
}

// recurringFeeDueDate implements the fee-pacing rule: the due date slides
// forward only as far as fee payments have kept pace with the 30-day periods
// elapsed since the last disbursement.
func (e *Engine) recurringFeeDueDate(facts *aggregate.Facts) time.Time {
	if !facts.LastDisbursementAt.After(e.config.LegacyCutover) {
		return facts.LastDisbursementAt.AddDate(0, 0, e.config.GraceDays)
	}

	expected := models.DaysBetween(facts.LastDisbursementAt, facts.Cutoff) / e.config.GraceDays
	made := facts.FeePaymentsSinceDisbursement

	if made >= expected {
		base := facts.LastFeeAt
		if base.IsZero() {
			// The ledger occasionally misses the fee posting; fall back
			// to the disbursement date rather than dropping the row.
			base = facts.LastDisbursementAt
		}
		return base.AddDate(0, 0, e.config.GraceDays)
	}

	return facts.LastDisbursementAt.AddDate(0, 0, (1+made)*e.config.GraceDays)
}

// minimumDue returns the qualifying minimum payment for a pre-repayment
// balance: the larger of the ratio-based amount and the flat minimum
func (e *Engine) minimumDue(prior decimal.Decimal) decimal.Decimal {
	ratioAmount := prior.Mul(e.config.MinimumPaymentRatio)
	if ratioAmount.GreaterThan(e.config.MinimumPayment) {
		return ratioAmount
	}
	return e.config.MinimumPayment
}
