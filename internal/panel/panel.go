// Package panel orchestrates the full panel computation: period generation,
// per-account aggregation, due-date derivation, bucket classification,
// cross-period linkage and delivery to the sink.
//
// Accounts are independent until the linkage step, so the per-account work is
// sharded across a bounded worker pool. Within an account, periods are
// processed in increasing date order; the linker runs only after every
// account's rows are materialized. Rows are always flattened in sorted
// account order and the per-account reduction is sequential, so a run over
// identical input and as-of date is byte-identical regardless of worker
// scheduling.
package panel

import (
	"context"
	"sort"
	"sync"
	"time"

	"golang-loanpanel-service/internal/aggregate"
	"golang-loanpanel-service/internal/bucket"
	"golang-loanpanel-service/internal/duedate"
	"golang-loanpanel-service/internal/ledger"
	"golang-loanpanel-service/internal/linker"
	"golang-loanpanel-service/internal/models"
	"golang-loanpanel-service/internal/periods"
	"golang-loanpanel-service/internal/sink"
	"golang-loanpanel-service/pkg/errors"
	"golang-loanpanel-service/pkg/logger"
)

// Config holds the assembler configuration
type Config struct {
	// StartDate is the fixed report start of the product
	StartDate time.Time

	// AsOf is the computation cutoff; when zero it defaults to the most
	// recently completed week boundary
	AsOf time.Time

	// Workers bounds the account-level parallelism (default 4)
	Workers int

	DueDate     *duedate.Config
	Aggregation *aggregate.Config
}

// Validate validates the assembler configuration
func (c *Config) Validate() error {
	if c.StartDate.IsZero() {
		return errors.ConfigurationError(errors.CodeMissingConfig,
			"report start date is required", nil)
	}

	if c.DueDate == nil {
		return errors.ConfigurationError(errors.CodeMissingConfig,
			"due-date configuration is required", nil)
	}

	return c.DueDate.Validate()
}

// RunResult summarizes a completed panel run
type RunResult struct {
	Periods  int           `json:"periods"`
	Accounts int           `json:"accounts"`
	Rows     int           `json:"rows"`
	AsOf     time.Time     `json:"as_of"`
	Elapsed  time.Duration `json:"elapsed"`
}

// Assembler drives the panel computation
type Assembler struct {
	config   *Config
	engine   *duedate.Engine
	events   ledger.EventSource
	accounts ledger.AccountSource
	sink     sink.PanelSink
	logger   logger.Logger
}

// NewAssembler creates an assembler for the given sources and sink
func NewAssembler(config *Config, events ledger.EventSource, accounts ledger.AccountSource, panelSink sink.PanelSink) (*Assembler, error) {
	if config == nil {
		return nil, errors.ConfigurationError(errors.CodeMissingConfig,
			"assembler configuration is required", nil)
	}

	if err := config.Validate(); err != nil {
		return nil, err
	}

	// Defaults go into a copy so the caller's config is left alone.
	cfg := *config

	if cfg.Workers <= 0 {
		cfg.Workers = 4
	}

	if cfg.Aggregation == nil {
		cfg.Aggregation = aggregate.DefaultConfig()
	}

	engine, err := duedate.NewEngine(cfg.DueDate)
	if err != nil {
		return nil, err
	}

	return &Assembler{
		config:   &cfg,
		engine:   engine,
		events:   events,
		accounts: accounts,
		sink:     panelSink,
		logger:   logger.GetGlobalLogger().WithComponent("panel_assembler"),
	}, nil
}

// Run executes the full pipeline: read sources, build and link the panel,
// and hand it to the sink. The run is all-or-nothing.
func (a *Assembler) Run(ctx context.Context) (*RunResult, error) {
	start := time.Now()

	asOf := a.config.AsOf
	if asOf.IsZero() {
		asOf = periods.MostRecentCompletedWeekEnd(time.Now())
	}

	cutoffs, err := periods.NewGenerator(a.config.StartDate, asOf).Generate()
	if err != nil {
		return nil, err
	}

	a.logger.WithFields(logger.Fields{
		"variant": string(a.config.DueDate.Variant),
		"start":   a.config.StartDate.Format("2006-01-02"),
		"as_of":   asOf.Format("2006-01-02"),
		"periods": len(cutoffs),
	}).Info("Starting panel run")

	eventsByAccount, err := a.events.Events(ctx)
	if err != nil {
		return nil, err
	}

	accounts := map[string]*models.AccountRecord{}
	if a.accounts != nil {
		if accounts, err = a.accounts.Accounts(ctx); err != nil {
			return nil, err
		}
	}

	rows, err := a.Build(ctx, eventsByAccount, accounts, cutoffs)
	if err != nil {
		return nil, err
	}

	linked := linker.Link(rows)

	if a.sink != nil {
		if err := a.sink.Replace(ctx, linked); err != nil {
			return nil, err
		}
	}

	result := &RunResult{
		Periods:  len(cutoffs),
		Accounts: countAccounts(linked),
		Rows:     len(linked),
		AsOf:     asOf,
		Elapsed:  time.Since(start),
	}

	a.logger.WithFields(logger.Fields{
		"rows":     result.Rows,
		"accounts": result.Accounts,
		"elapsed":  result.Elapsed,
	}).Info("Panel run completed")

	return result, nil
}

// Build computes the unlinked panel rows for every account and period.
// The returned rows are ordered by (account, snapshot date).
func (a *Assembler) Build(ctx context.Context, eventsByAccount map[string][]*models.Event,
	accounts map[string]*models.AccountRecord, cutoffs []time.Time) ([]*models.Snapshot, error) {

	accountIDs := collectAccountIDs(eventsByAccount, accounts)

	var (
		mu      sync.Mutex
		byAcct  = make(map[string][]*models.Snapshot, len(accountIDs))
		wg      sync.WaitGroup
		jobs    = make(chan string)
		runErr  error
		errOnce sync.Once
	)

	for w := 0; w < a.config.Workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for id := range jobs {
				// Keep draining after cancellation so the producer never
				// blocks on a channel nobody reads.
				if ctx.Err() != nil {
					errOnce.Do(func() {
						runErr = errors.ComputeError(errors.CodeProcessingError,
							"panel build", ctx.Err())
					})
					continue
				}

				rows := a.buildAccount(id, eventsByAccount[id], accounts[id], cutoffs)
				mu.Lock()
				byAcct[id] = rows
				mu.Unlock()
			}
		}()
	}

	for _, id := range accountIDs {
		jobs <- id
	}
	close(jobs)
	wg.Wait()

	if runErr != nil {
		return nil, runErr
	}

	var out []*models.Snapshot
	for _, id := range accountIDs {
		out = append(out, byAcct[id]...)
	}

	return out, nil
}

// buildAccount computes the account's rows for every period in which it
// exists, in increasing date order.
func (a *Assembler) buildAccount(accountID string, events []*models.Event,
	meta *models.AccountRecord, cutoffs []time.Time) []*models.Snapshot {

	appearFrom := accountAppearance(events, meta)
	if appearFrom.IsZero() {
		return nil
	}

	var rows []*models.Snapshot
	for _, cutoff := range cutoffs {
		if cutoff.Before(appearFrom) {
			continue
		}

		facts := aggregate.Compute(accountID, events, cutoff, a.config.Aggregation)
		dueDate := a.engine.DueDate(facts)
		everDisbursed := !facts.FirstDisbursementAt.IsZero()

		row := &models.Snapshot{
			AccountID:          accountID,
			UserReference:      facts.UserReference,
			SnapshotDate:       cutoff,
			OutstandingBalance: facts.Outstanding,
			LastTransactionAt:  facts.LastTransactionAt,
			LastTransactionTyp: facts.LastTransactionType,
			LastRepaymentAt:    facts.LastRepaymentAt,
			DueDate:            dueDate,
			CohortEndDate:      cohortEnd(facts, meta),
			DelinquencyBucket: bucket.ClassifyAccount(facts.Outstanding,
				dueDate, cutoff, meta, everDisbursed),
			InPeriodDisbursedCount: facts.InPeriodDisbursedCount,
			InPeriodDisbursed:      facts.InPeriodDisbursed,
			InPeriodRepaidCount:    facts.InPeriodRepaidCount,
			InPeriodRepaid:         facts.InPeriodRepaid,
		}

		if row.UserReference == "" && meta != nil {
			row.UserReference = meta.UserReference
		}

		rows = append(rows, row)
	}

	return rows
}

// accountAppearance returns the first snapshot date on which the account
// exists: the week end of its registry open date when metadata is available,
// otherwise the week end of its earliest ledger event.
func accountAppearance(events []*models.Event, meta *models.AccountRecord) time.Time {
	var first time.Time

	if meta != nil && !meta.OpenedAt.IsZero() {
		first = periods.WeekEnd(meta.OpenedAt)
	}

	for _, e := range events {
		we := periods.WeekEnd(e.PostedAt)
		if first.IsZero() || we.Before(first) {
			first = we
		}
	}

	return first
}

// cohortEnd returns the account's fixed origination period: the week of the
// registry open date when metadata exists, otherwise the week of the first
// qualifying disbursement. Accounts without metadata that have not yet drawn
// have no cohort end until the first disbursement posts.
func cohortEnd(facts *aggregate.Facts, meta *models.AccountRecord) time.Time {
	if meta != nil && !meta.OpenedAt.IsZero() {
		return periods.WeekEnd(meta.OpenedAt)
	}

	if !facts.FirstDisbursementAt.IsZero() {
		return periods.WeekEnd(facts.FirstDisbursementAt)
	}

	return time.Time{}
}

func collectAccountIDs(eventsByAccount map[string][]*models.Event,
	accounts map[string]*models.AccountRecord) []string {

	seen := make(map[string]struct{}, len(eventsByAccount)+len(accounts))
	for id := range eventsByAccount {
		seen[id] = struct{}{}
	}
	for id := range accounts {
		seen[id] = struct{}{}
	}

	ids := make([]string, 0, len(seen))
	for id := range seen {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	return ids
}

func countAccounts(rows []*models.Snapshot) int {
	seen := make(map[string]struct{})
	for _, r := range rows {
		seen[r.AccountID] = struct{}{}
	}
	return len(seen)
}
