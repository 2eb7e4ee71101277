package errors

import (
	"fmt"
)

// PeregrineError is the structured error type for peregrine.
// It provides rich context for error handling, logging, and user presentation.
type PeregrineError struct {
	// Code is the unique error code (e.g., "ERR_201_PATH_NOT_FOUND").
	Code string

	// Message is the human-readable error message.
	Message string

	// Category is the error category (Workspace, Path, Query, etc.).
	Category Category

	// Severity is the error severity level.
	Severity Severity

	// Details contains additional context as key-value pairs.
	Details map[string]string

	// Cause is the underlying error that caused this error.
	Cause error

	// Retryable indicates if the operation can be retried.
	Retryable bool

	// Suggestion is an actionable suggestion for the user.
	Suggestion string
}

// Error implements the error interface.
func (e *PeregrineError) Error() string {
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Unwrap returns the underlying cause for error chain support.
func (e *PeregrineError) Unwrap() error {
	return e.Cause
}

// Is checks if this error matches the target error by code.
// This enables errors.Is() to work with PeregrineError.
func (e *PeregrineError) Is(target error) bool {
	if t, ok := target.(*PeregrineError); ok {
		return e.Code == t.Code
	}
	return false
}

// WithDetail adds a key-value detail to the error.
// Returns the error for method chaining.
func (e *PeregrineError) WithDetail(key, value string) *PeregrineError {
	if e.Details == nil {
		e.Details = make(map[string]string)
	}
	e.Details[key] = value
	return e
}

// WithSuggestion adds an actionable suggestion for the user.
// Returns the error for method chaining.
func (e *PeregrineError) WithSuggestion(suggestion string) *PeregrineError {
	e.Suggestion = suggestion
	return e
}

// New creates a new PeregrineError with the given code and message.
// Category, severity, and retryable flag are derived from the code.
func New(code string, message string, cause error) *PeregrineError {
	return &PeregrineError{
		Code:      code,
		Message:   message,
		Category:  categoryFromCode(code),
		Severity:  severityFromCode(code),
		Cause:     cause,
		Retryable: isRetryableCode(code),
	}
}

// Wrap creates a PeregrineError from an existing error.
// The error's message becomes the PeregrineError message.
func Wrap(code string, err error) *PeregrineError {
	if err == nil {
		return nil
	}
	return New(code, err.Error(), err)
}

// WorkspaceError creates a workspace-related error.
func WorkspaceError(message string, cause error) *PeregrineError {
	return New(ErrCodeWorkspaceNotFound, message, cause)
}

// PathError creates a per-path error. Path errors abort indexing of that
// path with no index mutation.
func PathError(code, path string, cause error) *PeregrineError {
	e := New(code, fmt.Sprintf("path %q", path), cause)
	return e.WithDetail("path", path)
}

// ExtractError creates a keyword-extraction error. Always recoverable: the
// indexer logs it and indexes an empty content keyword set.
func ExtractError(path string, cause error) *PeregrineError {
	e := New(ErrCodeExtractFailed, fmt.Sprintf("keyword extraction failed for %q", path), cause)
	return e.WithDetail("path", path)
}

// QueryError creates a malformed-query error.
func QueryError(code, message string) *PeregrineError {
	return New(code, message, nil)
}

// InternalError creates an internal error.
func InternalError(message string, cause error) *PeregrineError {
	return New(ErrCodeInternal, message, cause)
}

// IsRetryable checks if an error is retryable.
// Returns true if the error is a PeregrineError with Retryable flag set.
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}
	if pe, ok := err.(*PeregrineError); ok {
		return pe.Retryable
	}
	return false
}

// IsFatal checks if an error has fatal severity.
// Fatal errors should abort the current operation.
func IsFatal(err error) bool {
	if err == nil {
		return false
	}
	if pe, ok := err.(*PeregrineError); ok {
		return pe.Severity == SeverityFatal
	}
	return false
}

// IsRecovered checks if an error has warning severity, meaning the
// operation already degraded gracefully and the caller only reports it.
func IsRecovered(err error) bool {
	if err == nil {
		return false
	}
	if pe, ok := err.(*PeregrineError); ok {
		return pe.Severity == SeverityWarning
	}
	return false
}

// GetCode extracts the error code from a PeregrineError.
// Returns empty string if not a PeregrineError.
func GetCode(err error) string {
	if pe, ok := err.(*PeregrineError); ok {
		return pe.Code
	}
	return ""
}

// GetCategory extracts the category from a PeregrineError.
// Returns empty string if not a PeregrineError.
func GetCategory(err error) Category {
	if pe, ok := err.(*PeregrineError); ok {
		return pe.Category
	}
	return ""
}
