package errors

import (
	stderrors "errors"
	"fmt"
	"strings"
	"testing"
)

func TestErrorConstructors(t *testing.T) {
	tests := []struct {
		name     string
		err      *PanelError
		category ErrorCategory
		exitCode int
	}{
		{
			name:     "source error",
			err:      SourceError(CodeSourceRead, "ledger.csv", fmt.Errorf("boom")),
			category: CategorySource,
			exitCode: 2,
		},
		{
			name:     "compute error",
			err:      ComputeError(CodeProcessingError, "aggregation", nil),
			category: CategoryCompute,
			exitCode: 3,
		},
		{
			name:     "configuration error",
			err:      ConfigurationError(CodeInvalidPeriodRange, "bad window", nil),
			category: CategoryConfiguration,
			exitCode: 4,
		},
		{
			name:     "sink error",
			err:      SinkError(CodeSinkWrite, "weekly_panel", fmt.Errorf("down")),
			category: CategorySink,
			exitCode: 5,
		},
		{
			name:     "internal error",
			err:      InternalError(CodeUnexpectedError, "linking", nil),
			category: CategoryInternal,
			exitCode: 6,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.err.Category != tt.category {
				t.Errorf("category = %s, expected %s", tt.err.Category, tt.category)
			}
			if got := tt.err.GetExitCode(); got != tt.exitCode {
				t.Errorf("exit code = %d, expected %d", got, tt.exitCode)
			}
			if tt.err.Error() == "" {
				t.Error("error message is empty")
			}
		})
	}
}

func TestErrorWrappingAndUnwrap(t *testing.T) {
	cause := fmt.Errorf("underlying failure")
	err := SourceError(CodeSourceRead, "ledger.csv", cause)

	if !stderrors.Is(err, cause) {
		t.Error("wrapped cause should be reachable through errors.Is")
	}
	if err.Unwrap() != cause {
		t.Error("Unwrap should return the cause")
	}
}

func TestErrorContextAndSuggestion(t *testing.T) {
	err := New(CategoryCompute, CodeProcessingError, "it broke").
		WithContext("account", "acct-1").
		WithSuggestion("rerun with --verbose")

	if err.Context["account"] != "acct-1" {
		t.Errorf("context = %v", err.Context)
	}
	if !strings.Contains(err.Error(), "rerun with --verbose") {
		t.Errorf("suggestion missing from message: %s", err.Error())
	}
}

func TestAsPanelError(t *testing.T) {
	inner := ConfigurationError(CodeInvalidConfig, "bad flags", nil)
	wrapped := fmt.Errorf("command failed: %w", inner)

	got, ok := AsPanelError(wrapped)
	if !ok {
		t.Fatal("expected to find the PanelError in the chain")
	}
	if got.Code != CodeInvalidConfig {
		t.Errorf("code = %s", got.Code)
	}

	if _, ok := AsPanelError(fmt.Errorf("plain")); ok {
		t.Error("plain errors should not match")
	}
	if IsPanelError(fmt.Errorf("plain")) {
		t.Error("IsPanelError should reject plain errors")
	}
}

func TestWrapIfNeeded(t *testing.T) {
	t.Run("plain errors are wrapped", func(t *testing.T) {
		err := WrapIfNeeded(fmt.Errorf("boom"), CategorySink, CodeRetryExhausted, "gave up")
		if err.Code != CodeRetryExhausted {
			t.Errorf("code = %s", err.Code)
		}
	})

	t.Run("existing panel errors pass through", func(t *testing.T) {
		original := SourceError(CodeMissingColumn, "events.csv", nil)
		err := WrapIfNeeded(original, CategorySink, CodeRetryExhausted, "gave up")
		if err != original {
			t.Error("expected the original error back")
		}
	})

	t.Run("nil stays nil", func(t *testing.T) {
		if WrapIfNeeded(nil, CategorySink, CodeRetryExhausted, "gave up") != nil {
			t.Error("expected nil")
		}
	})
}

func TestErrorSummary(t *testing.T) {
	summary := NewErrorSummary([]*PanelError{
		SourceError(CodeSourceRead, "a.csv", nil),
		SourceError(CodeInvalidRecord, "b.csv", nil),
		SinkError(CodeSinkWrite, "panel", nil),
	})

	if summary.Categories[CategorySource] != 2 {
		t.Errorf("source count = %d", summary.Categories[CategorySource])
	}
	if !summary.HasCategory(CategorySink) {
		t.Error("expected a sink category")
	}
	if summary.HasCategory(CategoryCompute) {
		t.Error("unexpected compute category")
	}

	// The most severe category wins the exit code.
	if got := summary.GetExitCode(); got != 5 {
		t.Errorf("exit code = %d, expected 5", got)
	}

	if !strings.Contains(summary.Error(), "3 errors") {
		t.Errorf("summary message = %s", summary.Error())
	}
}
