package ledger

import (
	"context"
	"fmt"

	"golang-loanpanel-service/internal/models"
	"golang-loanpanel-service/pkg/errors"
	"golang-loanpanel-service/pkg/logger"

	"github.com/jackc/pgx/v5/pgxpool"
)

// PostgresSource reads ledger events and account metadata from the warehouse
// tables. It implements both EventSource and AccountSource.
type PostgresSource struct {
	pool   *pgxpool.Pool
	config *PostgresConfig
	logger logger.Logger
}

// PostgresConfig configures the warehouse-backed source
type PostgresConfig struct {
	// EventsTable holds one row per succeeded monetary event
	EventsTable string
	// AccountsTable holds the account registry; optional
	AccountsTable string
}

// DefaultPostgresConfig returns the default table names
func DefaultPostgresConfig() *PostgresConfig {
	return &PostgresConfig{
		EventsTable:   "ledger_events",
		AccountsTable: "loan_accounts",
	}
}

// NewPostgresSource creates a source backed by a Postgres connection pool
func NewPostgresSource(ctx context.Context, databaseURL string, config *PostgresConfig) (*PostgresSource, error) {
	if config == nil {
		config = DefaultPostgresConfig()
	}

	pool, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		return nil, errors.SourceError(errors.CodeSourceUnavailable, "postgres", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, errors.SourceError(errors.CodeSourceUnavailable, "postgres", err)
	}

	return &PostgresSource{
		pool:   pool,
		config: config,
		logger: logger.GetGlobalLogger().WithComponent("postgres_source"),
	}, nil
}

// Close releases the connection pool
func (s *PostgresSource) Close() {
	s.pool.Close()
}

// Events implements EventSource
func (s *PostgresSource) Events(ctx context.Context) (map[string][]*models.Event, error) {
	query := fmt.Sprintf(`
		SELECT event_id, account_id, COALESCE(user_reference, ''), event_type, amount, posted_at
		FROM %s
		ORDER BY account_id, posted_at, event_id
	`, s.config.EventsTable)

	rows, err := s.pool.Query(ctx, query)
	if err != nil {
		return nil, errors.SourceError(errors.CodeSourceRead, s.config.EventsTable, err)
	}
	defer rows.Close()

	grouped := make(map[string][]*models.Event)
	count := 0

	for rows.Next() {
		var e models.Event
		var rawType string
		if err := rows.Scan(&e.EventID, &e.AccountID, &e.UserReference, &rawType, &e.Amount, &e.PostedAt); err != nil {
			return nil, errors.SourceError(errors.CodeInvalidRecord, s.config.EventsTable, err)
		}

		e.Type, err = models.ParseEventType(rawType)
		if err != nil {
			return nil, errors.SourceError(errors.CodeInvalidRecord, s.config.EventsTable, err)
		}

		grouped[e.AccountID] = append(grouped[e.AccountID], &e)
		count++
	}

	if err := rows.Err(); err != nil {
		return nil, errors.SourceError(errors.CodeSourceRead, s.config.EventsTable, err)
	}

	s.logger.WithFields(logger.Fields{
		"events":   count,
		"accounts": len(grouped),
	}).Info("Ledger events loaded from warehouse")

	return grouped, nil
}

// Accounts implements AccountSource
func (s *PostgresSource) Accounts(ctx context.Context) (map[string]*models.AccountRecord, error) {
	accounts := make(map[string]*models.AccountRecord)
	if s.config.AccountsTable == "" {
		return accounts, nil
	}

	query := fmt.Sprintf(`
		SELECT account_id, COALESCE(user_reference, ''), COALESCE(loan_type, ''),
		       status, COALESCE(status_updated_at, '0001-01-01'),
		       COALESCE(opened_at, '0001-01-01'),
		       COALESCE(credit_limit, 0)
		FROM %s
	`, s.config.AccountsTable)

	rows, err := s.pool.Query(ctx, query)
	if err != nil {
		return nil, errors.SourceError(errors.CodeSourceRead, s.config.AccountsTable, err)
	}
	defer rows.Close()

	for rows.Next() {
		var a models.AccountRecord
		if err := rows.Scan(&a.AccountID, &a.UserReference, &a.LoanType,
			&a.Status, &a.StatusUpdatedAt, &a.OpenedAt, &a.CreditLimit); err != nil {
			return nil, errors.SourceError(errors.CodeInvalidRecord, s.config.AccountsTable, err)
		}
		accounts[a.AccountID] = &a
	}

	if err := rows.Err(); err != nil {
		return nil, errors.SourceError(errors.CodeSourceRead, s.config.AccountsTable, err)
	}

	s.logger.WithField("accounts", len(accounts)).Info("Account metadata loaded from warehouse")
	return accounts, nil
}
