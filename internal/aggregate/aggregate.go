// Package aggregate reduces an account's event history into the facts the
// due-date engine and bucket classifier consume.
//
// The reduction is deterministic: events are stably ordered by
// (posted time, event ID) before the running sum, so duplicate timestamps are
// never dropped and reruns over identical input produce identical balances.
package aggregate

import (
	"sort"
	"time"

	"golang-loanpanel-service/internal/models"
	"golang-loanpanel-service/internal/periods"

	"github.com/shopspring/decimal"
)

// Config holds the aggregation parameters
type Config struct {
	// ZeroEpsilon is the near-zero clamp: running balances whose absolute
	// value does not exceed it are treated as exactly zero. Bucket
	// classification branches on balance > 0, so absorbing representation
	// residue here is mandatory, not cosmetic.
	ZeroEpsilon decimal.Decimal
}

// DefaultConfig returns the default aggregation configuration
func DefaultConfig() *Config {
	return &Config{
		ZeroEpsilon: decimal.NewFromFloat(0.01),
	}
}

// Facts is the reduced state of one account at one cutoff date
type Facts struct {
	AccountID     string
	UserReference string
	Cutoff        time.Time

	// HasActivity is true when at least one balance-bearing event
	// (disbursement or repayment at or after the first disbursement)
	// exists at the cutoff
	HasActivity bool

	Outstanding decimal.Decimal

	FirstDisbursementAt time.Time
	LastDisbursementAt  time.Time
	LastRepaymentAt     time.Time
	LastFeeAt           time.Time

	// LastTransactionAt / LastTransactionType cover disbursements and
	// repayments only; fee payments do not move the balance and are not
	// "transactions" for due-date purposes
	LastTransactionAt   time.Time
	LastTransactionType models.EventType

	// BalanceAtLastDisbursement is the outstanding balance immediately
	// after the most recent disbursement posted
	BalanceAtLastDisbursement decimal.Decimal
	// RepaidSinceLastDisbursement is the positive sum of repayments made
	// after the most recent disbursement
	RepaidSinceLastDisbursement decimal.Decimal
	// FeePaymentsSinceDisbursement counts fee payments whose civil date is
	// strictly after the most recent disbursement's date
	FeePaymentsSinceDisbursement int

	InPeriodDisbursedCount int
	InPeriodDisbursed      decimal.Decimal
	InPeriodRepaidCount    int
	InPeriodRepaid         decimal.Decimal
}

// Compute reduces the account's events up to and including the cutoff date.
// The cutoff is a weekly snapshot date (an ISO week ending); the in-period
// totals cover events whose own week ending equals it. The input slice is
// not modified.
func Compute(accountID string, events []*models.Event, cutoff time.Time, cfg *Config) *Facts {
	if cfg == nil {
		cfg = DefaultConfig()
	}

	cutoff = models.Date(cutoff)
	facts := &Facts{
		AccountID:         accountID,
		Cutoff:            cutoff,
		Outstanding:       decimal.Zero,
		InPeriodDisbursed: decimal.Zero,
		InPeriodRepaid:    decimal.Zero,
	}

	inWindow := sortedWindow(events, cutoff)
	if len(inWindow) == 0 {
		return facts
	}

	// Repayments posted before the account's first disbursement are stray
	// ledger entries (reversals, test postings) and are excluded from the
	// balance, as are all repayments when no disbursement exists at all.
	for _, e := range inWindow {
		if e.Type == models.EventTypeDisbursement {
			facts.FirstDisbursementAt = models.Date(e.PostedAt)
			break
		}
	}

	facts.BalanceAtLastDisbursement = decimal.Zero
	facts.RepaidSinceLastDisbursement = decimal.Zero

	for _, e := range inWindow {
		if facts.UserReference == "" {
			facts.UserReference = e.UserReference
		}

		eventDate := models.Date(e.PostedAt)

		switch e.Type {
		case models.EventTypeFee:
			facts.LastFeeAt = eventDate
			continue
		case models.EventTypeRepayment:
			if facts.FirstDisbursementAt.IsZero() || eventDate.Before(facts.FirstDisbursementAt) {
				continue
			}
		}

		facts.HasActivity = true
		facts.Outstanding = facts.Outstanding.Add(e.BalanceImpact())
		facts.LastTransactionAt = eventDate
		facts.LastTransactionType = e.Type

		if e.Type == models.EventTypeDisbursement {
			facts.LastDisbursementAt = eventDate
			facts.BalanceAtLastDisbursement = facts.Outstanding
			facts.RepaidSinceLastDisbursement = decimal.Zero
		} else {
			facts.LastRepaymentAt = eventDate
			facts.RepaidSinceLastDisbursement = facts.RepaidSinceLastDisbursement.Add(e.Magnitude())
		}

		if periods.WeekEnd(eventDate).Equal(cutoff) {
			if e.Type == models.EventTypeDisbursement {
				facts.InPeriodDisbursedCount++
				facts.InPeriodDisbursed = facts.InPeriodDisbursed.Add(e.Magnitude())
			} else {
				facts.InPeriodRepaidCount++
				facts.InPeriodRepaid = facts.InPeriodRepaid.Add(e.Magnitude())
			}
		}
	}

	if !facts.LastDisbursementAt.IsZero() {
		for _, e := range inWindow {
			if e.Type == models.EventTypeFee && models.Date(e.PostedAt).After(facts.LastDisbursementAt) {
				facts.FeePaymentsSinceDisbursement++
			}
		}
	}

	if facts.Outstanding.Abs().LessThanOrEqual(cfg.ZeroEpsilon) {
		facts.Outstanding = decimal.Zero
	}

	return facts
}

// sortedWindow returns the account's events at or before the cutoff, stably
// ordered by (posted time, event ID)
func sortedWindow(events []*models.Event, cutoff time.Time) []*models.Event {
	var window []*models.Event
	for _, e := range events {
		if !models.Date(e.PostedAt).After(cutoff) {
			window = append(window, e)
		}
	}

	sort.SliceStable(window, func(i, j int) bool {
		if !window[i].PostedAt.Equal(window[j].PostedAt) {
			return window[i].PostedAt.Before(window[j].PostedAt)
		}
		return window[i].EventID < window[j].EventID
	})

	return window
}
