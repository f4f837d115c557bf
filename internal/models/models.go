// Package models defines the core domain types for the loan panel pipeline.
//
// The pipeline consumes an append-only ledger of monetary events per loan
// account and produces one Snapshot row per (account, weekly snapshot date).
// This package holds the event and snapshot types, the delinquency bucket and
// paid-class enumerations, and the parsing helpers shared by the CSV-backed
// sources.
package models

import (
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// EventType represents the type of a ledger event
type EventType string

const (
	// EventTypeDisbursement represents funds drawn by the account holder
	EventTypeDisbursement EventType = "DISBURSEMENT"
	// EventTypeRepayment represents a repayment against the outstanding balance
	EventTypeRepayment EventType = "REPAYMENT"
	// EventTypeFee represents a recurring service fee payment
	EventTypeFee EventType = "FEE"
)

// String returns the string representation of EventType
func (t EventType) String() string {
	return string(t)
}

// IsValid checks if the event type is valid
func (t EventType) IsValid() bool {
	return t == EventTypeDisbursement || t == EventTypeRepayment || t == EventTypeFee
}

// Event is a single immutable ledger entry for a loan account.
//
// Amounts are stored as recorded by the product ledger; the aggregator
// normalizes signs so that disbursements increase the outstanding balance
// and repayments decrease it, regardless of the product's sign convention.
type Event struct {
	EventID       string          `json:"eventID" csv:"eventID"`
	AccountID     string          `json:"accountID" csv:"accountID"`
	UserReference string          `json:"userReference" csv:"userReference"`
	Type          EventType       `json:"type" csv:"type"`
	Amount        decimal.Decimal `json:"amount" csv:"amount"`
	PostedAt      time.Time       `json:"postedAt" csv:"postedAt"`
}

// NewEvent creates a new Event instance
func NewEvent(eventID, accountID, userRef string, evType EventType, amount decimal.Decimal, postedAt time.Time) *Event {
	return &Event{
		EventID:       eventID,
		AccountID:     accountID,
		UserReference: userRef,
		Type:          evType,
		Amount:        amount,
		PostedAt:      postedAt,
	}
}

// Validate performs basic validation on the Event
func (e *Event) Validate() error {
	if strings.TrimSpace(e.EventID) == "" {
		return fmt.Errorf("event ID cannot be empty")
	}

	if strings.TrimSpace(e.AccountID) == "" {
		return fmt.Errorf("event account ID cannot be empty")
	}

	if !e.Type.IsValid() {
		return fmt.Errorf("invalid event type: %s", e.Type)
	}

	if e.PostedAt.IsZero() {
		return fmt.Errorf("event posted time cannot be zero")
	}

	return nil
}

// String returns a string representation of the Event
func (e *Event) String() string {
	return fmt.Sprintf("Event{ID: %s, Account: %s, Type: %s, Amount: %s, PostedAt: %s}",
		e.EventID, e.AccountID, e.Type, e.Amount.String(), e.PostedAt.Format("2006-01-02"))
}

// Magnitude returns the absolute value of the event amount
func (e *Event) Magnitude() decimal.Decimal {
	return e.Amount.Abs()
}

// BalanceImpact returns the normalized signed effect of the event on the
// outstanding balance: positive for disbursements, negative for repayments,
// zero for fee payments (fees do not change the outstanding balance).
func (e *Event) BalanceImpact() decimal.Decimal {
	switch e.Type {
	case EventTypeDisbursement:
		return e.Amount.Abs()
	case EventTypeRepayment:
		return e.Amount.Abs().Neg()
	default:
		return decimal.Zero
	}
}

// AccountStatus represents the lifecycle status of an account
type AccountStatus string

const (
	AccountStatusActive    AccountStatus = "active"
	AccountStatusCancelled AccountStatus = "cancelled"
)

// AccountRecord holds the per-account metadata supplied by the account source
type AccountRecord struct {
	AccountID       string          `json:"accountID" csv:"accountID"`
	UserReference   string          `json:"userReference" csv:"userReference"`
	LoanType        string          `json:"loanType" csv:"loanType"`
	Status          AccountStatus   `json:"status" csv:"status"`
	StatusUpdatedAt time.Time       `json:"statusUpdatedAt" csv:"statusUpdatedAt"`
	OpenedAt        time.Time       `json:"openedAt" csv:"openedAt"`
	CreditLimit     decimal.Decimal `json:"creditLimit" csv:"creditLimit"`
}

// Validate performs basic validation on the AccountRecord
func (a *AccountRecord) Validate() error {
	if strings.TrimSpace(a.AccountID) == "" {
		return fmt.Errorf("account ID cannot be empty")
	}

	if a.Status != AccountStatusActive && a.Status != AccountStatusCancelled {
		return fmt.Errorf("invalid account status: %s", a.Status)
	}

	if a.OpenedAt.IsZero() {
		return fmt.Errorf("account opened time cannot be zero")
	}

	return nil
}

// IsCancelledAsOf reports whether the account was cancelled on or before the
// given snapshot date
func (a *AccountRecord) IsCancelledAsOf(snapshot time.Time) bool {
	return a.Status == AccountStatusCancelled &&
		!a.StatusUpdatedAt.IsZero() && !a.StatusUpdatedAt.After(snapshot)
}

// Bucket is the ordinal delinquency classification of a snapshot row.
//
// The ordering is total: higher values are strictly worse standings, with the
// sentinel BucketNonExistent reserved for "no prior row" lookups and the two
// out-of-band buckets (BalanceIssue, Cancelled) above the delinquency ladder.
type Bucket int

const (
	// BucketNonExistent is the sentinel prior-bucket value used when an
	// account had no row in the preceding period
	BucketNonExistent Bucket = 0
	// BucketInactive means the account carries no outstanding balance
	BucketInactive Bucket = 1
	// BucketCurrent means a positive balance that is not yet past due
	BucketCurrent Bucket = 2
	// BucketPastDue30 covers due-date gaps of 1 to 30 whole days
	BucketPastDue30 Bucket = 3
	// BucketPastDue60 covers gaps of 31 to 60 days
	BucketPastDue60 Bucket = 4
	// BucketPastDue90 covers gaps of 61 to 90 days
	BucketPastDue90 Bucket = 5
	// BucketDefault is the terminal bucket for gaps above 90 days
	BucketDefault Bucket = 6
	// BucketBalanceIssue flags a positive balance with no derivable due date
	BucketBalanceIssue Bucket = 7
	// BucketCancelled marks accounts cancelled before the snapshot that
	// never drew funds
	BucketCancelled Bucket = 8
)

var bucketLabels = map[Bucket]string{
	BucketNonExistent:  "0. non existent",
	BucketInactive:     "1. Inactive",
	BucketCurrent:      "2. Current",
	BucketPastDue30:    "3. 1 to 30",
	BucketPastDue60:    "4. 31 to 60",
	BucketPastDue90:    "5. 61 to 90",
	BucketDefault:      "6. 91+",
	BucketBalanceIssue: "7. Balance Issue",
	BucketCancelled:    "8. Cancelled",
}

// String returns the panel label for the bucket
func (b Bucket) String() string {
	if label, ok := bucketLabels[b]; ok {
		return label
	}
	return fmt.Sprintf("unknown(%d)", int(b))
}

// IsValid checks if the bucket is a known classification
func (b Bucket) IsValid() bool {
	_, ok := bucketLabels[b]
	return ok
}

// IsDelinquent reports whether the bucket is past due
func (b Bucket) IsDelinquent() bool {
	return b >= BucketPastDue30 && b <= BucketDefault
}

// PaidClass classifies how an account reached a zero balance
type PaidClass string

const (
	PaidClassOnTime       PaidClass = "1. paid on time"
	PaidClassLate         PaidClass = "2. paid late"
	PaidClassAfterDefault PaidClass = "3. paid after default"
	PaidClassNA           PaidClass = "4. NA"
)

// String returns the string representation of PaidClass
func (p PaidClass) String() string {
	return string(p)
}

// Snapshot is one denormalized panel row: the state of a single account as of
// one weekly snapshot date.
//
// Rows are built in a single computation pass and never updated afterwards;
// a full rerun replaces the panel wholesale.
type Snapshot struct {
	AccountID     string    `json:"accountID" csv:"accountID"`
	UserReference string    `json:"userReference" csv:"userReference"`
	SnapshotDate  time.Time `json:"snapshotDate" csv:"snapshotDate"`

	OutstandingBalance decimal.Decimal `json:"outstandingBalance" csv:"outstandingBalance"`
	LastTransactionAt  time.Time       `json:"lastTransactionAt" csv:"lastTransactionAt"`
	LastTransactionTyp EventType       `json:"lastTransactionType" csv:"lastTransactionType"`
	LastRepaymentAt    time.Time       `json:"lastRepaymentAt" csv:"lastRepaymentAt"`
	DueDate            time.Time       `json:"dueDate" csv:"dueDate"`
	CohortEndDate      time.Time       `json:"cohortEndDate" csv:"cohortEndDate"`

	DelinquencyBucket Bucket    `json:"delinquencyBucket" csv:"delinquencyBucket"`
	PriorBucket       Bucket    `json:"priorBucket" csv:"priorBucket"`
	NewLoan           bool      `json:"newLoan" csv:"newLoan"`
	NewDefault        bool      `json:"newDefault" csv:"newDefault"`
	PaidClass         PaidClass `json:"paidClass" csv:"paidClass"`
	PaidInCohort      bool      `json:"paidInCohort" csv:"paidInCohort"`

	InPeriodDisbursedCount int             `json:"inPeriodDisbursedCount" csv:"inPeriodDisbursedCount"`
	InPeriodDisbursed      decimal.Decimal `json:"inPeriodDisbursed" csv:"inPeriodDisbursed"`
	InPeriodRepaidCount    int             `json:"inPeriodRepaidCount" csv:"inPeriodRepaidCount"`
	InPeriodRepaid         decimal.Decimal `json:"inPeriodRepaid" csv:"inPeriodRepaid"`
}

// Key returns the panel key for the row: the (account, snapshot date) pair
// rendered as a stable string. Dates are keyed by civil date so that rows
// computed in different locations or with monotonic clock readings still
// join correctly.
func (s *Snapshot) Key() string {
	return PanelKey(s.AccountID, s.SnapshotDate)
}

// PanelKey builds the (account, date) join key used by the cross-period linker
func PanelKey(accountID string, date time.Time) string {
	return accountID + "|" + date.Format("2006-01-02")
}

// HasDueDate reports whether a due date could be derived for the row
func (s *Snapshot) HasDueDate() bool {
	return !s.DueDate.IsZero()
}

// String returns a compact representation useful in logs and test failures
func (s *Snapshot) String() string {
	return fmt.Sprintf("Snapshot{Account: %s, Date: %s, OS: %s, Bucket: %s}",
		s.AccountID, s.SnapshotDate.Format("2006-01-02"),
		s.OutstandingBalance.String(), s.DelinquencyBucket)
}

// Utility functions shared by the CSV-backed sources

// ParseAmount parses a monetary amount from string, tolerating currency
// symbols and thousand separators as they appear in ledger extracts
func ParseAmount(s string) (decimal.Decimal, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return decimal.Zero, fmt.Errorf("amount string cannot be empty")
	}

	s = strings.ReplaceAll(s, "$", "")
	s = strings.ReplaceAll(s, ",", "")
	s = strings.TrimSpace(s)

	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, fmt.Errorf("invalid decimal format '%s': %w", s, err)
	}

	return d, nil
}

// ParseEventType parses and validates an event type from string
func ParseEventType(s string) (EventType, error) {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "DISBURSEMENT", "LOAN", "WITHDRAWAL", "BORROW", "DRAW":
		return EventTypeDisbursement, nil
	case "REPAYMENT", "REPAY", "PAYMENT":
		return EventTypeRepayment, nil
	case "FEE", "FEE_PAYMENT":
		return EventTypeFee, nil
	default:
		return "", fmt.Errorf("invalid event type '%s': must be DISBURSEMENT, REPAYMENT or FEE", s)
	}
}

// ParseDate attempts to parse a timestamp from string using the formats seen
// in ledger and account extracts
func ParseDate(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, fmt.Errorf("date string cannot be empty")
	}

	formats := []string{
		time.RFC3339,
		"2006-01-02 15:04:05",
		"2006-01-02T15:04:05",
		"2006-01-02",
		"01/02/2006",
		"2006/01/02",
	}

	var lastErr error
	for _, format := range formats {
		if t, err := time.Parse(format, s); err == nil {
			return t.UTC(), nil
		} else {
			lastErr = err
		}
	}

	return time.Time{}, fmt.Errorf("unable to parse date '%s': %w", s, lastErr)
}

// Date truncates a timestamp to its civil date in UTC. All snapshot math is
// done on whole days.
func Date(t time.Time) time.Time {
	y, m, d := t.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// DaysBetween returns the whole-day difference to - from
func DaysBetween(from, to time.Time) int {
	return int(Date(to).Sub(Date(from)).Hours() / 24)
}
