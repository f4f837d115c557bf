// Package sink delivers the finished panel to its destinations.
//
// The panel contract is full-replace: a run either lands every row or none.
// Downstream consumers assume a consistent complete snapshot set, so partial
// writes are never acceptable and every backend implements Replace as an
// all-or-nothing operation, retried with bounded backoff on transient
// failure.
package sink

import (
	"context"
	"time"

	"golang-loanpanel-service/internal/models"
	"golang-loanpanel-service/pkg/errors"
	"golang-loanpanel-service/pkg/logger"

	"github.com/cenkalti/backoff/v4"
)

// PanelSink writes the complete panel, replacing whatever a previous run
// left behind.
type PanelSink interface {
	Replace(ctx context.Context, rows []*models.Snapshot) error
}

// RetryConfig bounds the backoff applied to sink writes
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

// RetryingSink decorates a PanelSink with bounded exponential backoff
type RetryingSink struct {
	sink   PanelSink
	config *RetryConfig
	logger logger.Logger
}

// NewRetryingSink wraps the given sink with the retry policy
func NewRetryingSink(sink PanelSink, config *RetryConfig) *RetryingSink {
	if config == nil {
		config = DefaultRetryConfig()
	}

	return &RetryingSink{
		sink:   sink,
		config: config,
		logger: logger.GetGlobalLogger().WithComponent("retrying_sink"),
	}
}

// Replace implements PanelSink
func (s *RetryingSink) Replace(ctx context.Context, rows []*models.Snapshot) error {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = s.config.InitialInterval
	b.MaxInterval = s.config.MaxInterval
	b.MaxElapsedTime = s.config.MaxElapsedTime

	operation := func() error {
		err := s.sink.Replace(ctx, rows)
		if err != nil {
			s.logger.WithError(err).Warn("Panel write failed, retrying")
		}
		return err
	}

	if err := backoff.Retry(operation, backoff.WithContext(b, ctx)); err != nil {
		return errors.WrapIfNeeded(err, errors.CategorySink,
			errors.CodeRetryExhausted, "panel sink retries exhausted")
	}

	return nil
}

// MultiSink fans the panel out to several destinations in order, stopping at
// the first failure. The table destination should come before best-effort
// exports.
type MultiSink struct {
	sinks []PanelSink
}

// NewMultiSink creates a sink that writes to every destination
func NewMultiSink(sinks ...PanelSink) *MultiSink {
	return &MultiSink{sinks: sinks}
}

// Replace implements PanelSink
func (m *MultiSink) Replace(ctx context.Context, rows []*models.Snapshot) error {
	for _, s := range m.sinks {
		if err := s.Replace(ctx, rows); err != nil {
			return err
		}
	}
	return nil
}
