package errors

import (
	"fmt"
	"strings"

	"github.com/pkg/errors"
)

// ErrorCategory represents different categories of errors
type ErrorCategory string

const (
	CategorySource        ErrorCategory = "source"
	CategoryCompute       ErrorCategory = "compute"
	CategoryConfiguration ErrorCategory = "configuration"
	CategorySink          ErrorCategory = "sink"
	CategoryInternal      ErrorCategory = "internal"
)

// ErrorCode represents specific error codes within categories
type ErrorCode string

const (
	// Source errors
	CodeSourceUnavailable ErrorCode = "source_unavailable"
	CodeSourceRead        ErrorCode = "source_read"
	CodeInvalidRecord     ErrorCode = "invalid_record"
	CodeMissingColumn     ErrorCode = "missing_column"

	// Compute errors
	CodeBalanceIssue    ErrorCode = "balance_issue"
	CodeLinkageFailed   ErrorCode = "linkage_failed"
	CodeProcessingError ErrorCode = "processing_error"

	// Configuration errors
	CodeInvalidConfig      ErrorCode = "invalid_config"
	CodeMissingConfig      ErrorCode = "missing_config"
	CodeInvalidPeriodRange ErrorCode = "invalid_period_range"

	// Sink errors
	CodeSinkUnavailable ErrorCode = "sink_unavailable"
	CodeSinkWrite       ErrorCode = "sink_write"
	CodeRetryExhausted  ErrorCode = "retry_exhausted"

	// Internal errors
	CodeUnexpectedError ErrorCode = "unexpected_error"
)

// PanelError is the base error type for all application errors
type PanelError struct {
	Category   ErrorCategory     `json:"category"`
	Code       ErrorCode         `json:"code"`
	Message    string            `json:"message"`
	Suggestion string            `json:"suggestion,omitempty"`
	Context    Context           `json:"context,omitempty"`
	Cause      error             `json:"-"`
	StackTrace errors.StackTrace `json:"-"`
}

// Context provides additional information about the error
type Context map[string]interface{}

// Error implements the error interface
func (e *PanelError) Error() string {
	if e.Suggestion != "" {
		return fmt.Sprintf("%s (suggestion: %s)", e.Message, e.Suggestion)
	}
	return e.Message
}

// Unwrap returns the underlying cause error
func (e *PanelError) Unwrap() error {
	return e.Cause
}

// GetExitCode returns an appropriate exit code for the error
func (e *PanelError) GetExitCode() int {
	switch e.Category {
	case CategorySource:
		return 2
	case CategoryCompute:
		return 3
	case CategoryConfiguration:
		return 4
	case CategorySink:
		return 5
	case CategoryInternal:
		return 6
	default:
		return 1
	}
}

// WithContext adds context information to the error
func (e *PanelError) WithContext(key string, value interface{}) *PanelError {
	if e.Context == nil {
		e.Context = make(Context)
	}
	e.Context[key] = value
	return e
}

// WithSuggestion adds a suggestion for fixing the error
func (e *PanelError) WithSuggestion(suggestion string) *PanelError {
	e.Suggestion = suggestion
	return e
}

// New creates a new PanelError
func New(category ErrorCategory, code ErrorCode, message string) *PanelError {
	return &PanelError{
		Category:   category,
		Code:       code,
		Message:    message,
		StackTrace: errors.New("").(stackTracer).StackTrace(),
	}
}

// Wrap wraps an existing error with PanelError context
func Wrap(err error, category ErrorCategory, code ErrorCode, message string) *PanelError {
	if err == nil {
		return nil
	}

	return &PanelError{
		Category:   category,
		Code:       code,
		Message:    message,
		Cause:      err,
		StackTrace: errors.WithStack(err).(stackTracer).StackTrace(),
	}
}

// stackTracer interface for extracting stack traces
type stackTracer interface {
	StackTrace() errors.StackTrace
}

// Specific error constructors

// SourceError creates an error for failures reading the event or account source
func SourceError(code ErrorCode, source string, err error) *PanelError {
	var message string
	var suggestion string

	switch code {
	case CodeSourceUnavailable:
		message = fmt.Sprintf("event source unavailable: %s", source)
		suggestion = "check connectivity and credentials for the source"
	case CodeSourceRead:
		message = fmt.Sprintf("failed to read from source: %s", source)
		suggestion = "verify the source exists and is readable"
	case CodeInvalidRecord:
		message = fmt.Sprintf("invalid record in source: %s", source)
		suggestion = "inspect the source data for malformed rows"
	case CodeMissingColumn:
		message = fmt.Sprintf("missing required column in source: %s", source)
		suggestion = "verify the extract has all required columns with correct headers"
	default:
		message = fmt.Sprintf("source error: %s", source)
		suggestion = "check the source and try again"
	}

	var result *PanelError
	if err != nil {
		result = Wrap(err, CategorySource, code, message)
	} else {
		result = New(CategorySource, code, message)
	}

	return result.
		WithSuggestion(suggestion).
		WithContext("source", source)
}

// ComputeError creates an error for failures inside the panel computation
func ComputeError(code ErrorCode, operation string, err error) *PanelError {
	message := fmt.Sprintf("panel computation failed during %s", operation)
	if code == CodeLinkageFailed {
		message = fmt.Sprintf("cross-period linkage failed during %s", operation)
	}

	var result *PanelError
	if err != nil {
		result = Wrap(err, CategoryCompute, code, message)
	} else {
		result = New(CategoryCompute, code, message)
	}

	return result.WithContext("operation", operation)
}

// ConfigurationError creates a configuration-related error
func ConfigurationError(code ErrorCode, message string, err error) *PanelError {
	if err != nil {
		return Wrap(err, CategoryConfiguration, code, message)
	}
	return New(CategoryConfiguration, code, message)
}

// SinkError creates an error for failures writing the panel
func SinkError(code ErrorCode, destination string, err error) *PanelError {
	var message string
	var suggestion string

	switch code {
	case CodeSinkUnavailable:
		message = fmt.Sprintf("panel sink unavailable: %s", destination)
		suggestion = "check connectivity and credentials for the destination"
	case CodeSinkWrite:
		message = fmt.Sprintf("failed to write panel to %s", destination)
		suggestion = "the write is all-or-nothing; rerun once the destination is healthy"
	case CodeRetryExhausted:
		message = fmt.Sprintf("retries exhausted writing panel to %s", destination)
		suggestion = "the run was aborted to avoid a partial panel; rerun after the outage"
	default:
		message = fmt.Sprintf("sink error: %s", destination)
		suggestion = "check the destination and try again"
	}

	var result *PanelError
	if err != nil {
		result = Wrap(err, CategorySink, code, message)
	} else {
		result = New(CategorySink, code, message)
	}

	return result.
		WithSuggestion(suggestion).
		WithContext("destination", destination)
}

// InternalError creates an internal error
func InternalError(code ErrorCode, operation string, err error) *PanelError {
	message := fmt.Sprintf("internal error during %s", operation)

	var result *PanelError
	if err != nil {
		result = Wrap(err, CategoryInternal, code, message)
	} else {
		result = New(CategoryInternal, code, message)
	}

	return result.
		WithSuggestion("this is unexpected; report it with the run logs").
		WithContext("operation", operation)
}

// ErrorSummary aggregates multiple errors from a run
type ErrorSummary struct {
	Errors     []*PanelError           `json:"errors"`
	Categories map[ErrorCategory]int   `json:"categories"`
	Codes      map[ErrorCode]int       `json:"codes"`
}

// NewErrorSummary creates a summary from a list of errors
func NewErrorSummary(errs []*PanelError) *ErrorSummary {
	summary := &ErrorSummary{
		Errors:     errs,
		Categories: make(map[ErrorCategory]int),
		Codes:      make(map[ErrorCode]int),
	}

	for _, err := range errs {
		summary.Categories[err.Category]++
		summary.Codes[err.Code]++
	}

	return summary
}

// Error implements the error interface for the summary
func (es *ErrorSummary) Error() string {
	if len(es.Errors) == 0 {
		return "no errors"
	}

	if len(es.Errors) == 1 {
		return es.Errors[0].Error()
	}

	var parts []string
	for category, count := range es.Categories {
		parts = append(parts, fmt.Sprintf("%d %s", count, category))
	}

	return fmt.Sprintf("%d errors (%s)", len(es.Errors), strings.Join(parts, ", "))
}

// HasCategory reports whether the summary contains errors of the category
func (es *ErrorSummary) HasCategory(category ErrorCategory) bool {
	return es.Categories[category] > 0
}

// GetExitCode returns the exit code of the most severe error
func (es *ErrorSummary) GetExitCode() int {
	code := 0
	for _, err := range es.Errors {
		if c := err.GetExitCode(); c > code {
			code = c
		}
	}
	return code
}

// IsPanelError checks if an error is a PanelError
func IsPanelError(err error) bool {
	_, ok := AsPanelError(err)
	return ok
}

// AsPanelError extracts a PanelError from an error chain
func AsPanelError(err error) (*PanelError, bool) {
	for err != nil {
		if pe, ok := err.(*PanelError); ok {
			return pe, true
		}
		unwrapper, ok := err.(interface{ Unwrap() error })
		if !ok {
			return nil, false
		}
		err = unwrapper.Unwrap()
	}
	return nil, false
}

// WrapIfNeeded wraps an error as a PanelError unless it already is one
func WrapIfNeeded(err error, category ErrorCategory, code ErrorCode, message string) *PanelError {
	if err == nil {
		return nil
	}

	if pe, ok := AsPanelError(err); ok {
		return pe
	}

	return Wrap(err, category, code, message)
}
