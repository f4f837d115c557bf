// Package linker derives the cross-period state of the panel: prior buckets,
// new-loan and new-default flags, paid classification and cohort cures.
//
// The linkage is a keyed self-join over the panel on
// (account, previous period date). Accounts are allowed to be missing in a
// period, so the predecessor is always looked up by the exact one-week-back
// snapshot date, never by physical row adjacency.
//
// Link is a pure function: it reads the assembled rows and returns annotated
// copies, leaving the input untouched.
package linker

import (
	"golang-loanpanel-service/internal/models"
	"golang-loanpanel-service/internal/periods"
)

// Link annotates every row of the panel with its cross-period state. The
// input must contain all computed rows for all periods; linkage cannot run
// per row in isolation.
func Link(rows []*models.Snapshot) []*models.Snapshot {
	index := make(map[string]*models.Snapshot, len(rows))
	for _, row := range rows {
		index[row.Key()] = row
	}

	out := make([]*models.Snapshot, len(rows))
	for i, row := range rows {
		annotated := *row

		var prior *models.Snapshot
		prevKey := models.PanelKey(row.AccountID, periods.PreviousPeriod(row.SnapshotDate))
		if p, ok := index[prevKey]; ok {
			prior = p
		}

		annotated.PriorBucket = models.BucketNonExistent
		if prior != nil {
			annotated.PriorBucket = prior.DelinquencyBucket
		}

		annotated.NewLoan = !row.CohortEndDate.IsZero() &&
			row.SnapshotDate.Equal(row.CohortEndDate)

		annotated.NewDefault = row.DelinquencyBucket == models.BucketDefault &&
			annotated.PriorBucket != models.BucketDefault

		annotated.PaidClass = paidClass(row, annotated.PriorBucket)

		annotated.PaidInCohort = row.DelinquencyBucket == models.BucketInactive &&
			!row.LastRepaymentAt.IsZero() &&
			periods.WeekEnd(row.LastRepaymentAt).Equal(row.SnapshotDate)

		out[i] = &annotated
	}

	return out
}

// paidClass classifies how a zero-balance row got there. It is only
// meaningful for Inactive rows; everything else is NA.
func paidClass(row *models.Snapshot, priorBucket models.Bucket) models.PaidClass {
	if row.DelinquencyBucket != models.BucketInactive {
		return models.PaidClassNA
	}

	// Rows that were never disbursed are Inactive without a due date;
	// nothing was paid off, so no classification applies.
	if !row.HasDueDate() || row.LastTransactionAt.IsZero() {
		return models.PaidClassNA
	}

	if models.DaysBetween(row.DueDate, row.LastTransactionAt) <= 0 {
		return models.PaidClassOnTime
	}

	// Settling after the account had already hit the terminal bucket
	// overrides the plain late classification, but never the on-time one.
	if priorBucket == models.BucketDefault {
		return models.PaidClassAfterDefault
	}

	return models.PaidClassLate
}
