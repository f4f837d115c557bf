package sink

import (
	"context"
	"fmt"
	"io"
	"sort"
	"strings"

	"golang-loanpanel-service/internal/models"
)

// SummarySink writes a human-readable run summary: row counts and the bucket
// distribution of the latest snapshot period. It is meant for the terminal,
// alongside the real table/CSV destinations.
type SummarySink struct {
	writer io.Writer
}

// NewSummarySink creates a console summary writer
func NewSummarySink(w io.Writer) *SummarySink {
	return &SummarySink{writer: w}
}

// Replace implements PanelSink
func (s *SummarySink) Replace(ctx context.Context, rows []*models.Snapshot) error {
	fmt.Fprintf(s.writer, "\n=== Loan Panel Summary ===\n\n")
	fmt.Fprintf(s.writer, "Total rows:      %d\n", len(rows))

	if len(rows) == 0 {
		return nil
	}

	accounts := make(map[string]struct{})
	latest := rows[0].SnapshotDate
	for _, r := range rows {
		accounts[r.AccountID] = struct{}{}
		if r.SnapshotDate.After(latest) {
			latest = r.SnapshotDate
		}
	}

	fmt.Fprintf(s.writer, "Accounts:        %d\n", len(accounts))
	fmt.Fprintf(s.writer, "Latest snapshot: %s\n", latest.Format("2006-01-02"))

	distribution := make(map[models.Bucket]int)
	for _, r := range rows {
		if r.SnapshotDate.Equal(latest) {
			distribution[r.DelinquencyBucket]++
		}
	}

	var buckets []models.Bucket
	for b := range distribution {
		buckets = append(buckets, b)
	}
	sort.Slice(buckets, func(i, j int) bool { return buckets[i] < buckets[j] })

	fmt.Fprintf(s.writer, "\nLatest period bucket distribution:\n")
	fmt.Fprintf(s.writer, "%s\n", strings.Repeat("-", 40))
	for _, b := range buckets {
		fmt.Fprintf(s.writer, "%-20s %8d\n", b.String(), distribution[b])
	}

	return nil
}
