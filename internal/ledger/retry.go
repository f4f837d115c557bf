package ledger

import (
	"context"
	"time"

	"golang-loanpanel-service/internal/models"
	"golang-loanpanel-service/pkg/errors"
	"golang-loanpanel-service/pkg/logger"

	"github.com/cenkalti/backoff/v4"
)

// RetryConfig bounds the backoff applied to transient source reads
type RetryConfig struct {
	InitialInterval time.Duration
	MaxInterval     time.Duration
	MaxElapsedTime  time.Duration
}

// DefaultRetryConfig returns the default retry policy
func DefaultRetryConfig() *RetryConfig {
	return &RetryConfig{
		InitialInterval: 500 * time.Millisecond,
		MaxInterval:     10 * time.Second,
		MaxElapsedTime:  2 * time.Minute,
	}
}

func (c *RetryConfig) newBackoff(ctx context.Context) backoff.BackOffContext {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = c.InitialInterval
	b.MaxInterval = c.MaxInterval
	b.MaxElapsedTime = c.MaxElapsedTime
	return backoff.WithContext(b, ctx)
}

// permanentIfDataError stops the backoff loop for deterministic failures.
// A malformed record or a missing column parses the same way on every
// attempt, so replaying the read only burns the retry budget.
func permanentIfDataError(err error) error {
	if pe, ok := errors.AsPanelError(err); ok {
		switch pe.Code {
		case errors.CodeInvalidRecord, errors.CodeMissingColumn:
			return backoff.Permanent(err)
		}
	}
	return err
}

// RetryingSource decorates an EventSource and AccountSource pair with
// bounded exponential backoff. Exhausted retries abort the whole run: a
// panel computed from a partial read is worse than no panel.
type RetryingSource struct {
	events   EventSource
	accounts AccountSource
	config   *RetryConfig
	logger   logger.Logger
}

// NewRetryingSource wraps the given sources with the retry policy
func NewRetryingSource(events EventSource, accounts AccountSource, config *RetryConfig) *RetryingSource {
	if config == nil {
		config = DefaultRetryConfig()
	}

	return &RetryingSource{
		events:   events,
		accounts: accounts,
		config:   config,
		logger:   logger.GetGlobalLogger().WithComponent("retrying_source"),
	}
}

// Events implements EventSource
func (s *RetryingSource) Events(ctx context.Context) (map[string][]*models.Event, error) {
	var result map[string][]*models.Event

	operation := func() error {
		var err error
		result, err = s.events.Events(ctx)
		if err != nil {
			if permanent := permanentIfDataError(err); permanent != err {
				return permanent
			}
			s.logger.WithError(err).Warn("Event source read failed, retrying")
		}
		return err
	}

	if err := backoff.Retry(operation, s.config.newBackoff(ctx)); err != nil {
		return nil, errors.WrapIfNeeded(err, errors.CategorySource,
			errors.CodeRetryExhausted, "event source retries exhausted")
	}

	return result, nil
}

// Accounts implements AccountSource
func (s *RetryingSource) Accounts(ctx context.Context) (map[string]*models.AccountRecord, error) {
	var result map[string]*models.AccountRecord

	operation := func() error {
		var err error
		result, err = s.accounts.Accounts(ctx)
		if err != nil {
			if permanent := permanentIfDataError(err); permanent != err {
				return permanent
			}
			s.logger.WithError(err).Warn("Account source read failed, retrying")
		}
		return err
	}

	if err := backoff.Retry(operation, s.config.newBackoff(ctx)); err != nil {
		return nil, errors.WrapIfNeeded(err, errors.CategorySource,
			errors.CodeRetryExhausted, "account source retries exhausted")
	}

	return result, nil
}
