package sink

import (
	"context"
	"fmt"
	"time"

	"golang-loanpanel-service/internal/models"
	"golang-loanpanel-service/pkg/errors"
	"golang-loanpanel-service/pkg/logger"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PostgresSink writes the panel into a warehouse table. Replace truncates
// and reinserts inside a single transaction, so consumers either see the
// previous panel or the new one, never a mix.
type PostgresSink struct {
	pool   *pgxpool.Pool
	table  string
	logger logger.Logger
}

// NewPostgresSink creates a sink backed by a Postgres connection pool
func NewPostgresSink(ctx context.Context, databaseURL, table string) (*PostgresSink, error) {
	if table == "" {
		return nil, errors.ConfigurationError(errors.CodeMissingConfig,
			"panel table name is required", nil)
	}

	pool, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		return nil, errors.SinkError(errors.CodeSinkUnavailable, table, err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, errors.SinkError(errors.CodeSinkUnavailable, table, err)
	}

	return &PostgresSink{
		pool:   pool,
		table:  table,
		logger: logger.GetGlobalLogger().WithComponent("postgres_sink"),
	}, nil
}

// Close releases the connection pool
func (s *PostgresSink) Close() {
	s.pool.Close()
}

// Replace implements PanelSink
func (s *PostgresSink) Replace(ctx context.Context, rows []*models.Snapshot) error {
	s.logger.WithFields(logger.Fields{
		"table": s.table,
		"rows":  len(rows),
	}).Info("Replacing panel table")

	err := s.withTransaction(ctx, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx, fmt.Sprintf("TRUNCATE TABLE %s", s.table)); err != nil {
			return fmt.Errorf("failed to truncate panel table: %w", err)
		}

		columns := []string{
			"account_id", "user_reference", "snapshot_date",
			"outstanding_balance", "last_transaction_at", "last_transaction_type",
			"last_repayment_at", "due_date", "cohort_end_date",
			"delinquency_bucket", "prior_bucket", "new_loan", "new_default",
			"paid_class", "paid_in_cohort",
			"in_period_disbursed_count", "in_period_disbursed",
			"in_period_repaid_count", "in_period_repaid",
		}

		source := pgx.CopyFromSlice(len(rows), func(i int) ([]interface{}, error) {
			r := rows[i]
			return []interface{}{
				r.AccountID, r.UserReference, r.SnapshotDate,
				r.OutstandingBalance, nullableTime(r.LastTransactionAt), string(r.LastTransactionTyp),
				nullableTime(r.LastRepaymentAt), nullableTime(r.DueDate), nullableTime(r.CohortEndDate),
				r.DelinquencyBucket.String(), r.PriorBucket.String(), r.NewLoan, r.NewDefault,
				r.PaidClass.String(), r.PaidInCohort,
				r.InPeriodDisbursedCount, r.InPeriodDisbursed,
				r.InPeriodRepaidCount, r.InPeriodRepaid,
			}, nil
		})

		if _, err := tx.CopyFrom(ctx, pgx.Identifier{s.table}, columns, source); err != nil {
			return fmt.Errorf("failed to copy panel rows: %w", err)
		}

		return nil
	})
	if err != nil {
		return errors.SinkError(errors.CodeSinkWrite, s.table, err)
	}

	s.logger.WithField("rows", len(rows)).Info("Panel table replaced")
	return nil
}

// withTransaction executes fn inside a transaction, rolling back on error
func (s *PostgresSink) withTransaction(ctx context.Context, fn func(tx pgx.Tx) error) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}

	defer func() {
		if err != nil {
			if rbErr := tx.Rollback(ctx); rbErr != nil {
				err = fmt.Errorf("rollback failed: %v, original error: %w", rbErr, err)
			}
		}
	}()

	if err = fn(tx); err != nil {
		return err
	}

	if err = tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}

	return nil
}

// nullableTime maps the zero time onto SQL NULL
func nullableTime(t time.Time) interface{} {
	if t.IsZero() {
		return nil
	}
	return t
}
