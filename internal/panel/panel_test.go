package panel

import (
	"context"
	"sort"
	"testing"
	"time"

	"golang-loanpanel-service/internal/duedate"
	"golang-loanpanel-service/internal/ledger"
	"golang-loanpanel-service/internal/models"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func date(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func event(id, account string, evType models.EventType, amount float64, postedAt time.Time) *models.Event {
	return models.NewEvent(id, account, "user-"+account, evType, decimal.NewFromFloat(amount), postedAt)
}

// captureSink records the rows handed to it.
type captureSink struct {
	rows []*models.Snapshot
}

func (c *captureSink) Replace(ctx context.Context, rows []*models.Snapshot) error {
	c.rows = rows
	return nil
}

func testConfig() *Config {
	return &Config{
		StartDate: date(2024, 1, 1),
		AsOf:      date(2024, 3, 10),
		Workers:   3,
		DueDate:   duedate.DefaultConfig(duedate.VariantInstallment),
	}
}

func testSource() *ledger.StaticSource {
	return &ledger.StaticSource{
		EventList: []*models.Event{
			event("ev-1", "acct-1", models.EventTypeDisbursement, 100, date(2024, 1, 1)),
			event("ev-2", "acct-1", models.EventTypeRepayment, 100, date(2024, 2, 6)),
		},
		AccountList: []*models.AccountRecord{
			{
				AccountID:       "acct-2",
				UserReference:   "user-acct-2",
				Status:          models.AccountStatusCancelled,
				StatusUpdatedAt: date(2024, 2, 1),
				OpenedAt:        date(2024, 1, 10),
			},
		},
	}
}

func runPanel(t *testing.T) []*models.Snapshot {
	t.Helper()

	source := testSource()
	captured := &captureSink{}

	assembler, err := NewAssembler(testConfig(), source, source, captured)
	require.NoError(t, err)

	result, err := assembler.Run(context.Background())
	require.NoError(t, err)
	require.Equal(t, len(captured.rows), result.Rows)

	return captured.rows
}

func TestRunProducesOneRowPerAccountPeriod(t *testing.T) {
	rows := runPanel(t)

	// acct-1 appears from its first event's week (2024-01-07): 10 rows.
	// acct-2 appears from its open date's week (2024-01-14): 9 rows.
	byAccount := map[string]int{}
	for _, r := range rows {
		byAccount[r.AccountID]++
	}

	assert.Equal(t, 10, byAccount["acct-1"])
	assert.Equal(t, 9, byAccount["acct-2"])
	assert.Len(t, rows, 19)

	seen := map[string]bool{}
	for _, r := range rows {
		key := r.Key()
		require.False(t, seen[key], "duplicate panel key %s", key)
		seen[key] = true
	}
}

func TestRunRowsAreOrdered(t *testing.T) {
	rows := runPanel(t)

	ordered := sort.SliceIsSorted(rows, func(i, j int) bool {
		if rows[i].AccountID != rows[j].AccountID {
			return rows[i].AccountID < rows[j].AccountID
		}
		return rows[i].SnapshotDate.Before(rows[j].SnapshotDate)
	})
	assert.True(t, ordered, "rows must be sorted by (account, snapshot date)")
}

func TestRunAccountLifecycle(t *testing.T) {
	rows := runPanel(t)

	index := map[string]*models.Snapshot{}
	for _, r := range rows {
		index[r.Key()] = r
	}

	// Origination week: current balance, new-loan flag, due in 30 days.
	first := index[models.PanelKey("acct-1", date(2024, 1, 7))]
	require.NotNil(t, first)
	assert.True(t, first.NewLoan)
	assert.Equal(t, models.BucketCurrent, first.DelinquencyBucket)
	assert.True(t, first.DueDate.Equal(date(2024, 1, 31)))
	assert.True(t, first.CohortEndDate.Equal(date(2024, 1, 7)))
	assert.Equal(t, models.BucketNonExistent, first.PriorBucket)
	assert.Equal(t, 1, first.InPeriodDisbursedCount)
	assert.True(t, first.OutstandingBalance.Equal(decimal.NewFromInt(100)))

	// The new-loan flag fires exactly once over the account's lifetime.
	newLoans := 0
	for _, r := range rows {
		if r.AccountID == "acct-1" && r.NewLoan {
			newLoans++
		}
	}
	assert.Equal(t, 1, newLoans)

	// Past the due date, before the repayment: first delinquency bucket.
	overdue := index[models.PanelKey("acct-1", date(2024, 2, 4))]
	require.NotNil(t, overdue)
	assert.Equal(t, models.BucketPastDue30, overdue.DelinquencyBucket)
	assert.Equal(t, models.BucketCurrent, overdue.PriorBucket)

	// Repayment week: settled late, flagged in its cohort week.
	settled := index[models.PanelKey("acct-1", date(2024, 2, 11))]
	require.NotNil(t, settled)
	assert.Equal(t, models.BucketInactive, settled.DelinquencyBucket)
	assert.Equal(t, models.PaidClassLate, settled.PaidClass)
	assert.True(t, settled.PaidInCohort)
	assert.True(t, settled.OutstandingBalance.IsZero())
	assert.Equal(t, 1, settled.InPeriodRepaidCount)

	// The week after: still inactive, but the cohort flag does not repeat.
	after := index[models.PanelKey("acct-1", date(2024, 2, 18))]
	require.NotNil(t, after)
	assert.Equal(t, models.BucketInactive, after.DelinquencyBucket)
	assert.False(t, after.PaidInCohort)
}

func TestRunCancelledAccount(t *testing.T) {
	rows := runPanel(t)

	index := map[string]*models.Snapshot{}
	for _, r := range rows {
		index[r.Key()] = r
	}

	// Before the cancellation takes effect the account is just inactive.
	before := index[models.PanelKey("acct-2", date(2024, 1, 28))]
	require.NotNil(t, before)
	assert.Equal(t, models.BucketInactive, before.DelinquencyBucket)

	// From the cancellation week on it reports as cancelled.
	cancelled := index[models.PanelKey("acct-2", date(2024, 2, 4))]
	require.NotNil(t, cancelled)
	assert.Equal(t, models.BucketCancelled, cancelled.DelinquencyBucket)

	// Metadata supplies the user reference for accounts without events.
	assert.Equal(t, "user-acct-2", cancelled.UserReference)
}

func TestRunIsIdempotent(t *testing.T) {
	first := runPanel(t)
	second := runPanel(t)

	require.Equal(t, len(first), len(second))
	for i := range first {
		assert.Equal(t, first[i], second[i], "row %d differs between runs", i)
	}
}

func TestRunWorkerCountDoesNotAffectOutput(t *testing.T) {
	var outputs [][]*models.Snapshot

	for _, workers := range []int{1, 2, 8} {
		source := testSource()
		captured := &captureSink{}

		config := testConfig()
		config.Workers = workers

		assembler, err := NewAssembler(config, source, source, captured)
		require.NoError(t, err)

		_, err = assembler.Run(context.Background())
		require.NoError(t, err)

		outputs = append(outputs, captured.rows)
	}

	for i := 1; i < len(outputs); i++ {
		require.Equal(t, len(outputs[0]), len(outputs[i]))
		for j := range outputs[0] {
			assert.Equal(t, outputs[0][j], outputs[i][j])
		}
	}
}

func TestRunCancelledContext(t *testing.T) {
	source := testSource()

	assembler, err := NewAssembler(testConfig(), source, source, &captureSink{})
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err = assembler.Run(ctx)
	assert.Error(t, err)
}

func TestNewAssemblerValidation(t *testing.T) {
	source := testSource()

	t.Run("nil config", func(t *testing.T) {
		_, err := NewAssembler(nil, source, source, nil)
		assert.Error(t, err)
	})

	t.Run("missing start date", func(t *testing.T) {
		config := testConfig()
		config.StartDate = time.Time{}
		_, err := NewAssembler(config, source, source, nil)
		assert.Error(t, err)
	})

	t.Run("missing due-date config", func(t *testing.T) {
		config := testConfig()
		config.DueDate = nil
		_, err := NewAssembler(config, source, source, nil)
		assert.Error(t, err)
	})

	t.Run("invalid variant", func(t *testing.T) {
		config := testConfig()
		config.DueDate.Variant = "unknown"
		_, err := NewAssembler(config, source, source, nil)
		assert.Error(t, err)
	})
}

func TestNewAssemblerDoesNotMutateConfig(t *testing.T) {
	source := testSource()

	config := testConfig()
	config.Workers = 0
	config.Aggregation = nil

	assembler, err := NewAssembler(config, source, source, nil)
	require.NoError(t, err)

	assert.Equal(t, 0, config.Workers)
	assert.Nil(t, config.Aggregation)
	assert.Equal(t, 4, assembler.config.Workers)
	assert.NotNil(t, assembler.config.Aggregation)
}

func TestBuildWithoutMetadata(t *testing.T) {
	// Event-only products run with no account source at all.
	source := &ledger.StaticSource{
		EventList: []*models.Event{
			event("ev-1", "acct-9", models.EventTypeDisbursement, 50, date(2024, 2, 14)),
		},
	}
	captured := &captureSink{}

	assembler, err := NewAssembler(testConfig(), source, nil, captured)
	require.NoError(t, err)

	result, err := assembler.Run(context.Background())
	require.NoError(t, err)

	// Weeks 2024-02-18 through 2024-03-10.
	assert.Equal(t, 4, result.Rows)
	assert.Equal(t, 1, result.Accounts)

	first := captured.rows[0]
	assert.True(t, first.SnapshotDate.Equal(date(2024, 2, 18)))
	assert.True(t, first.CohortEndDate.Equal(date(2024, 2, 18)))
	assert.True(t, first.NewLoan)
}
