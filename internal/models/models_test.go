package models

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
)

func TestEventBalanceImpact(t *testing.T) {
	tests := []struct {
		name     string
		evType   EventType
		amount   decimal.Decimal
		expected decimal.Decimal
	}{
		{
			name:     "disbursement is positive",
			evType:   EventTypeDisbursement,
			amount:   decimal.NewFromInt(100),
			expected: decimal.NewFromInt(100),
		},
		{
			name:     "negatively recorded disbursement is normalized",
			evType:   EventTypeDisbursement,
			amount:   decimal.NewFromInt(-100),
			expected: decimal.NewFromInt(100),
		},
		{
			name:     "repayment is negative",
			evType:   EventTypeRepayment,
			amount:   decimal.NewFromInt(40),
			expected: decimal.NewFromInt(-40),
		},
		{
			name:     "negatively recorded repayment stays negative",
			evType:   EventTypeRepayment,
			amount:   decimal.NewFromInt(-40),
			expected: decimal.NewFromInt(-40),
		},
		{
			name:     "fee does not move the balance",
			evType:   EventTypeFee,
			amount:   decimal.NewFromInt(5),
			expected: decimal.Zero,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := &Event{Type: tt.evType, Amount: tt.amount}
			if got := e.BalanceImpact(); !got.Equal(tt.expected) {
				t.Errorf("BalanceImpact() = %s, expected %s", got, tt.expected)
			}
		})
	}
}

func TestParseEventType(t *testing.T) {
	tests := []struct {
		input    string
		expected EventType
		wantErr  bool
	}{
		{"DISBURSEMENT", EventTypeDisbursement, false},
		{"loan", EventTypeDisbursement, false},
		{"Withdrawal", EventTypeDisbursement, false},
		{"REPAYMENT", EventTypeRepayment, false},
		{"payment", EventTypeRepayment, false},
		{"FEE", EventTypeFee, false},
		{"fee_payment", EventTypeFee, false},
		{" repayment ", EventTypeRepayment, false},
		{"TRANSFER", "", true},
		{"", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got, err := ParseEventType(tt.input)
			if tt.wantErr {
				if err == nil {
					t.Errorf("expected error for %q", tt.input)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got != tt.expected {
				t.Errorf("ParseEventType(%q) = %s, expected %s", tt.input, got, tt.expected)
			}
		})
	}
}

func TestParseAmount(t *testing.T) {
	tests := []struct {
		input    string
		expected string
		wantErr  bool
	}{
		{"100.50", "100.5", false},
		{"$1,234.56", "1234.56", false},
		{"-67.50", "-67.5", false},
		{" 42 ", "42", false},
		{"", "", true},
		{"abc", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got, err := ParseAmount(tt.input)
			if tt.wantErr {
				if err == nil {
					t.Errorf("expected error for %q", tt.input)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got.String() != tt.expected {
				t.Errorf("ParseAmount(%q) = %s, expected %s", tt.input, got, tt.expected)
			}
		})
	}
}

func TestParseDate(t *testing.T) {
	tests := []struct {
		input    string
		expected time.Time
		wantErr  bool
	}{
		{"2024-03-10", time.Date(2024, 3, 10, 0, 0, 0, 0, time.UTC), false},
		{"2024-03-10 14:30:00", time.Date(2024, 3, 10, 14, 30, 0, 0, time.UTC), false},
		{"2024-03-10T14:30:00Z", time.Date(2024, 3, 10, 14, 30, 0, 0, time.UTC), false},
		{"03/10/2024", time.Date(2024, 3, 10, 0, 0, 0, 0, time.UTC), false},
		{"not-a-date", time.Time{}, true},
		{"", time.Time{}, true},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got, err := ParseDate(tt.input)
			if tt.wantErr {
				if err == nil {
					t.Errorf("expected error for %q", tt.input)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if !got.Equal(tt.expected) {
				t.Errorf("ParseDate(%q) = %s, expected %s", tt.input, got, tt.expected)
			}
		})
	}
}

func TestDaysBetween(t *testing.T) {
	tests := []struct {
		name     string
		from     time.Time
		to       time.Time
		expected int
	}{
		{
			name:     "whole days forward",
			from:     time.Date(2024, 1, 31, 0, 0, 0, 0, time.UTC),
			to:       time.Date(2024, 3, 15, 0, 0, 0, 0, time.UTC),
			expected: 44,
		},
		{
			name:     "same day",
			from:     time.Date(2024, 3, 10, 0, 0, 0, 0, time.UTC),
			to:       time.Date(2024, 3, 10, 0, 0, 0, 0, time.UTC),
			expected: 0,
		},
		{
			name:     "backwards is negative",
			from:     time.Date(2024, 3, 10, 0, 0, 0, 0, time.UTC),
			to:       time.Date(2024, 3, 3, 0, 0, 0, 0, time.UTC),
			expected: -7,
		},
		{
			name:     "time of day is truncated",
			from:     time.Date(2024, 3, 9, 23, 0, 0, 0, time.UTC),
			to:       time.Date(2024, 3, 10, 1, 0, 0, 0, time.UTC),
			expected: 1,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := DaysBetween(tt.from, tt.to); got != tt.expected {
				t.Errorf("DaysBetween = %d, expected %d", got, tt.expected)
			}
		})
	}
}

func TestBucketLabels(t *testing.T) {
	tests := []struct {
		bucket   Bucket
		expected string
	}{
		{BucketNonExistent, "0. non existent"},
		{BucketInactive, "1. Inactive"},
		{BucketCurrent, "2. Current"},
		{BucketPastDue30, "3. 1 to 30"},
		{BucketPastDue60, "4. 31 to 60"},
		{BucketPastDue90, "5. 61 to 90"},
		{BucketDefault, "6. 91+"},
		{BucketBalanceIssue, "7. Balance Issue"},
		{BucketCancelled, "8. Cancelled"},
	}

	for _, tt := range tests {
		if got := tt.bucket.String(); got != tt.expected {
			t.Errorf("Bucket(%d).String() = %q, expected %q", int(tt.bucket), got, tt.expected)
		}
	}
}

func TestBucketOrdering(t *testing.T) {
	// The ordinal encodes severity: every later bucket is strictly worse.
	ladder := []Bucket{
		BucketNonExistent, BucketInactive, BucketCurrent,
		BucketPastDue30, BucketPastDue60, BucketPastDue90, BucketDefault,
	}
	for i := 1; i < len(ladder); i++ {
		if ladder[i] <= ladder[i-1] {
			t.Errorf("bucket %s is not ordered above %s", ladder[i], ladder[i-1])
		}
	}

	if !BucketPastDue30.IsDelinquent() || !BucketDefault.IsDelinquent() {
		t.Error("past due buckets should report as delinquent")
	}
	if BucketCurrent.IsDelinquent() || BucketBalanceIssue.IsDelinquent() {
		t.Error("non past due buckets should not report as delinquent")
	}
}

func TestPanelKey(t *testing.T) {
	d := time.Date(2024, 3, 10, 0, 0, 0, 0, time.UTC)
	if got := PanelKey("acct-1", d); got != "acct-1|2024-03-10" {
		t.Errorf("PanelKey = %q", got)
	}

	// Keys built from timestamps with time-of-day still join.
	noon := time.Date(2024, 3, 10, 12, 0, 0, 0, time.UTC)
	if PanelKey("acct-1", d) != PanelKey("acct-1", noon) {
		t.Error("panel keys should be keyed by civil date")
	}
}

func TestAccountRecordIsCancelledAsOf(t *testing.T) {
	snapshot := time.Date(2024, 3, 10, 0, 0, 0, 0, time.UTC)

	tests := []struct {
		name     string
		record   AccountRecord
		expected bool
	}{
		{
			name: "cancelled before snapshot",
			record: AccountRecord{
				Status:          AccountStatusCancelled,
				StatusUpdatedAt: time.Date(2024, 2, 1, 0, 0, 0, 0, time.UTC),
			},
			expected: true,
		},
		{
			name: "cancelled on the snapshot date",
			record: AccountRecord{
				Status:          AccountStatusCancelled,
				StatusUpdatedAt: snapshot,
			},
			expected: true,
		},
		{
			name: "cancelled after snapshot",
			record: AccountRecord{
				Status:          AccountStatusCancelled,
				StatusUpdatedAt: time.Date(2024, 4, 1, 0, 0, 0, 0, time.UTC),
			},
			expected: false,
		},
		{
			name: "active account",
			record: AccountRecord{
				Status:          AccountStatusActive,
				StatusUpdatedAt: time.Date(2024, 2, 1, 0, 0, 0, 0, time.UTC),
			},
			expected: false,
		},
		{
			name: "cancelled without a status timestamp",
			record: AccountRecord{
				Status: AccountStatusCancelled,
			},
			expected: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.record.IsCancelledAsOf(snapshot); got != tt.expected {
				t.Errorf("IsCancelledAsOf = %v, expected %v", got, tt.expected)
			}
		})
	}
}

func TestEventValidate(t *testing.T) {
	valid := NewEvent("ev-1", "acct-1", "user-1", EventTypeDisbursement,
		decimal.NewFromInt(100), time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC))
	if err := valid.Validate(); err != nil {
		t.Errorf("valid event failed validation: %v", err)
	}

	tests := []struct {
		name  string
		event *Event
	}{
		{"empty event ID", &Event{AccountID: "a", Type: EventTypeFee, PostedAt: time.Now()}},
		{"empty account ID", &Event{EventID: "e", Type: EventTypeFee, PostedAt: time.Now()}},
		{"invalid type", &Event{EventID: "e", AccountID: "a", Type: "TRANSFER", PostedAt: time.Now()}},
		{"zero posted time", &Event{EventID: "e", AccountID: "a", Type: EventTypeFee}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := tt.event.Validate(); err == nil {
				t.Error("expected validation error")
			}
		})
	}
}
