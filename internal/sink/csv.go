package sink

import (
	"context"
	"encoding/csv"
	"io"
	"os"
	"strconv"
	"time"

	"golang-loanpanel-service/internal/models"
	"golang-loanpanel-service/pkg/errors"
	"golang-loanpanel-service/pkg/logger"
)

// csvHeader is the exported column set, one column per Snapshot field
var csvHeader = []string{
	"account_id", "user_reference", "snapshot_date",
	"outstanding_balance", "last_transaction_at", "last_transaction_type",
	"last_repayment_at", "due_date", "cohort_end_date",
	"delinquency_bucket", "prior_bucket", "new_loan", "new_default",
	"paid_class", "paid_in_cohort",
	"in_period_disbursed_count", "in_period_disbursed",
	"in_period_repaid_count", "in_period_repaid",
}

// CSVSink mirrors the panel into a flat file for spreadsheet consumers.
// The file is recreated on every run, matching the table's full-replace
// semantics.
type CSVSink struct {
	path   string
	logger logger.Logger
}

// NewCSVSink creates a CSV exporter writing to the given path
func NewCSVSink(path string) (*CSVSink, error) {
	if path == "" {
		return nil, errors.ConfigurationError(errors.CodeMissingConfig,
			"CSV export path is required", nil)
	}

	return &CSVSink{
		path:   path,
		logger: logger.GetGlobalLogger().WithComponent("csv_sink"),
	}, nil
}

// Replace implements PanelSink
func (s *CSVSink) Replace(ctx context.Context, rows []*models.Snapshot) error {
	file, err := os.Create(s.path)
	if err != nil {
		return errors.SinkError(errors.CodeSinkWrite, s.path, err)
	}
	defer file.Close()

	if err := WritePanel(file, rows); err != nil {
		return errors.SinkError(errors.CodeSinkWrite, s.path, err)
	}

	s.logger.WithFields(logger.Fields{
		"file": s.path,
		"rows": len(rows),
	}).Info("Panel exported to CSV")

	return nil
}

// WritePanel writes the panel rows as CSV to the given writer
func WritePanel(w io.Writer, rows []*models.Snapshot) error {
	writer := csv.NewWriter(w)

	if err := writer.Write(csvHeader); err != nil {
		return err
	}

	for _, r := range rows {
		record := []string{
			r.AccountID,
			r.UserReference,
			formatDate(r.SnapshotDate),
			r.OutstandingBalance.StringFixed(2),
			formatDate(r.LastTransactionAt),
			string(r.LastTransactionTyp),
			formatDate(r.LastRepaymentAt),
			formatDate(r.DueDate),
			formatDate(r.CohortEndDate),
			r.DelinquencyBucket.String(),
			r.PriorBucket.String(),
			formatFlag(r.NewLoan),
			formatFlag(r.NewDefault),
			r.PaidClass.String(),
			formatFlag(r.PaidInCohort),
			strconv.Itoa(r.InPeriodDisbursedCount),
			r.InPeriodDisbursed.StringFixed(2),
			strconv.Itoa(r.InPeriodRepaidCount),
			r.InPeriodRepaid.StringFixed(2),
		}

		if err := writer.Write(record); err != nil {
			return err
		}
	}

	writer.Flush()
	return writer.Error()
}

func formatDate(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.Format("2006-01-02")
}

func formatFlag(b bool) string {
	if b {
		return "Yes"
	}
	return "No"
}
