// Package bucket classifies snapshot rows into delinquency buckets.
//
// Classification is a pure function of (outstanding balance, due date,
// snapshot date). Bucket boundaries are closed whole-day gaps between the
// snapshot and the due date: 1-30, 31-60, 61-90, and above 90 into the
// terminal default bucket.
package bucket

import (
	"time"

	"golang-loanpanel-service/internal/models"

	"github.com/shopspring/decimal"
)

// Classify maps a snapshot state onto its delinquency bucket.
//
// A positive balance with no derivable due date is a data-quality signal and
// is always surfaced as BucketBalanceIssue. The historical products
// disagreed here (one silently coerced the state to Current); the explicit
// fallback is used for both variants so the condition cannot hide.
func Classify(balance decimal.Decimal, dueDate, snapshot time.Time) models.Bucket {
	if balance.LessThanOrEqual(decimal.Zero) {
		return models.BucketInactive
	}

	if dueDate.IsZero() {
		return models.BucketBalanceIssue
	}

	if !models.Date(dueDate).Before(models.Date(snapshot)) {
		return models.BucketCurrent
	}

	switch gap := models.DaysBetween(dueDate, snapshot); {
	case gap >= 1 && gap <= 30:
		return models.BucketPastDue30
	case gap >= 31 && gap <= 60:
		return models.BucketPastDue60
	case gap >= 61 && gap <= 90:
		return models.BucketPastDue90
	case gap > 90:
		return models.BucketDefault
	default:
		return models.BucketBalanceIssue
	}
}

// ClassifyAccount applies the account-level overrides before the balance
// classification: an account cancelled on or before the snapshot that never
// drew funds reports as Cancelled rather than Inactive.
func ClassifyAccount(balance decimal.Decimal, dueDate, snapshot time.Time, meta *models.AccountRecord, everDisbursed bool) models.Bucket {
	if meta != nil && !everDisbursed && meta.IsCancelledAsOf(snapshot) {
		return models.BucketCancelled
	}
	return Classify(balance, dueDate, snapshot)
}
