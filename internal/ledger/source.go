// Package ledger supplies the panel's input collaborators: the append-only
// event ledger and the account metadata source.
//
// Two concrete backends are provided - CSV extracts and Postgres - plus a
// retrying decorator with bounded exponential backoff for transient read
// failures. The computation core only sees the EventSource and AccountSource
// interfaces.
package ledger

import (
	"context"

	"golang-loanpanel-service/internal/models"
)

// EventSource yields every ledger event, grouped by account. The pipeline is
// a full recompute, so the source always returns the complete history rather
// than a delta.
type EventSource interface {
	Events(ctx context.Context) (map[string][]*models.Event, error)
}

// AccountSource yields the per-account metadata (type, status, open date)
// keyed by account ID. Implementations may return an empty map when the
// product has no separate account registry.
type AccountSource interface {
	Accounts(ctx context.Context) (map[string]*models.AccountRecord, error)
}

// StaticSource is an in-memory EventSource and AccountSource. It backs unit
// tests and small ad-hoc runs.
type StaticSource struct {
	EventList   []*models.Event
	AccountList []*models.AccountRecord
}

// Events implements EventSource
func (s *StaticSource) Events(ctx context.Context) (map[string][]*models.Event, error) {
	grouped := make(map[string][]*models.Event)
	for _, e := range s.EventList {
		grouped[e.AccountID] = append(grouped[e.AccountID], e)
	}
	return grouped, nil
}

// Accounts implements AccountSource
func (s *StaticSource) Accounts(ctx context.Context) (map[string]*models.AccountRecord, error) {
	accounts := make(map[string]*models.AccountRecord, len(s.AccountList))
	for _, a := range s.AccountList {
		accounts[a.AccountID] = a
	}
	return accounts, nil
}
