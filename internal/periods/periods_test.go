package periods

import (
	"testing"
	"time"

	"golang-loanpanel-service/pkg/errors"
)

func date(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func TestWeekEnd(t *testing.T) {
	tests := []struct {
		name     string
		input    time.Time
		expected time.Time
	}{
		{
			name:     "monday maps to following sunday",
			input:    date(2024, 3, 4),
			expected: date(2024, 3, 10),
		},
		{
			name:     "saturday maps to next day",
			input:    date(2024, 3, 9),
			expected: date(2024, 3, 10),
		},
		{
			name:     "sunday maps to itself",
			input:    date(2024, 3, 10),
			expected: date(2024, 3, 10),
		},
		{
			name:     "timestamp time-of-day is ignored",
			input:    time.Date(2024, 3, 4, 23, 59, 59, 0, time.UTC),
			expected: date(2024, 3, 10),
		},
		{
			name:     "year boundary",
			input:    date(2023, 12, 29),
			expected: date(2023, 12, 31),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := WeekEnd(tt.input)
			if !got.Equal(tt.expected) {
				t.Errorf("WeekEnd(%s) = %s, expected %s",
					tt.input.Format("2006-01-02"), got.Format("2006-01-02"), tt.expected.Format("2006-01-02"))
			}
		})
	}
}

func TestMostRecentCompletedWeekEnd(t *testing.T) {
	tests := []struct {
		name     string
		now      time.Time
		expected time.Time
	}{
		{
			name:     "midweek returns previous sunday",
			now:      date(2024, 3, 13),
			expected: date(2024, 3, 10),
		},
		{
			name:     "monday returns previous sunday",
			now:      date(2024, 3, 11),
			expected: date(2024, 3, 10),
		},
		{
			name:     "sunday is still open and returns the week before",
			now:      date(2024, 3, 10),
			expected: date(2024, 3, 3),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := MostRecentCompletedWeekEnd(tt.now)
			if !got.Equal(tt.expected) {
				t.Errorf("MostRecentCompletedWeekEnd(%s) = %s, expected %s",
					tt.now.Format("2006-01-02"), got.Format("2006-01-02"), tt.expected.Format("2006-01-02"))
			}
		})
	}
}

func TestPreviousPeriod(t *testing.T) {
	got := PreviousPeriod(date(2024, 3, 10))
	expected := date(2024, 3, 3)
	if !got.Equal(expected) {
		t.Errorf("PreviousPeriod = %s, expected %s", got.Format("2006-01-02"), expected.Format("2006-01-02"))
	}
}

func TestGenerate(t *testing.T) {
	t.Run("sequence is strictly weekly and inclusive of the as-of week", func(t *testing.T) {
		gen := NewGenerator(date(2024, 3, 4), date(2024, 3, 24))

		got, err := gen.Generate()
		if err != nil {
			t.Fatalf("Generate failed: %v", err)
		}

		expected := []time.Time{
			date(2024, 3, 10),
			date(2024, 3, 17),
			date(2024, 3, 24),
		}

		if len(got) != len(expected) {
			t.Fatalf("expected %d periods, got %d", len(expected), len(got))
		}
		for i := range expected {
			if !got[i].Equal(expected[i]) {
				t.Errorf("period %d = %s, expected %s", i,
					got[i].Format("2006-01-02"), expected[i].Format("2006-01-02"))
			}
		}
	})

	t.Run("week end past the as-of date is excluded", func(t *testing.T) {
		// Start's week ends on 2024-03-10, after the as-of date.
		gen := NewGenerator(date(2024, 3, 4), date(2024, 3, 8))

		_, err := gen.Generate()
		if err == nil {
			t.Fatal("expected an error for a window with no completed week")
		}

		panelErr, ok := errors.AsPanelError(err)
		if !ok {
			t.Fatalf("expected a PanelError, got %T", err)
		}
		if panelErr.Code != errors.CodeInvalidPeriodRange {
			t.Errorf("expected code %s, got %s", errors.CodeInvalidPeriodRange, panelErr.Code)
		}
	})

	t.Run("start after as-of is a configuration error", func(t *testing.T) {
		gen := NewGenerator(date(2024, 4, 1), date(2024, 3, 1))

		_, err := gen.Generate()
		if err == nil {
			t.Fatal("expected an error when start is after as-of")
		}

		panelErr, ok := errors.AsPanelError(err)
		if !ok {
			t.Fatalf("expected a PanelError, got %T", err)
		}
		if panelErr.Category != errors.CategoryConfiguration {
			t.Errorf("expected category %s, got %s", errors.CategoryConfiguration, panelErr.Category)
		}
	})

	t.Run("single completed week", func(t *testing.T) {
		gen := NewGenerator(date(2024, 3, 4), date(2024, 3, 10))

		got, err := gen.Generate()
		if err != nil {
			t.Fatalf("Generate failed: %v", err)
		}
		if len(got) != 1 || !got[0].Equal(date(2024, 3, 10)) {
			t.Errorf("expected a single period 2024-03-10, got %v", got)
		}
	})
}
