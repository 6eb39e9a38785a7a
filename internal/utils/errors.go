package utils

import (
	"errors"
	"fmt"
	"strings"
)

// ErrorWithSuggestion wraps an error with a user-friendly suggestion.
type ErrorWithSuggestion struct {
	Err        error
	Suggestion string
}

// Error implements the error interface.
func (e *ErrorWithSuggestion) Error() string {
	return fmt.Sprintf("%s\n\nSuggestion: %s", e.Err.Error(), e.Suggestion)
}

// GetSuggestion returns the suggestion text.
func (e *ErrorWithSuggestion) GetSuggestion() string {
	return e.Suggestion
}

// Unwrap returns the underlying error for error chain support.
func (e *ErrorWithSuggestion) Unwrap() error {
	return e.Err
}

// WrapWithSuggestion wraps an existing error with a suggestion.
func WrapWithSuggestion(err error, suggestion string) error {
	return &ErrorWithSuggestion{
		Err:        err,
		Suggestion: suggestion,
	}
}

// ErrTaskNotFound returns an error for when a task id is not in the current list.
func ErrTaskNotFound(id string) error {
	return &ErrorWithSuggestion{
		Err:        fmt.Errorf("task not found: %s", id),
		Suggestion: "Use 'taskbridge list' to see task ids",
	}
}

// ErrEmptyName returns an error for a task submitted without a name.
func ErrEmptyName() error {
	return &ErrorWithSuggestion{
		Err:        errors.New("task name is required"),
		Suggestion: "Pass a non-empty name, e.g. 'taskbridge add \"Draft proposal\"'",
	}
}

// ErrBackendNotConfigured returns an error when a backend is not configured.
func ErrBackendNotConfigured(name string) error {
	return &ErrorWithSuggestion{
		Err:        fmt.Errorf("backend not configured: %s", name),
		Suggestion: fmt.Sprintf("Add %s configuration to your config file or run 'taskbridge config path'", name),
	}
}

// ErrBackendOffline returns an error when a backend is unreachable with smart suggestions.
func ErrBackendOffline(name, reason string) error {
	suggestion := getSmartSuggestion(reason)
	return &ErrorWithSuggestion{
		Err:        fmt.Errorf("backend %s is offline: %s", name, reason),
		Suggestion: suggestion,
	}
}

// getSmartSuggestion returns a context-aware suggestion based on the error reason.
func getSmartSuggestion(reason string) string {
	lowerReason := strings.ToLower(reason)

	if strings.Contains(lowerReason, "no such host") || strings.Contains(lowerReason, "dns") {
		return "Check your DNS settings and internet connection"
	}

	if strings.Contains(lowerReason, "connection refused") {
		return "Check if the server is running and accessible"
	}

	if strings.Contains(lowerReason, "timeout") || strings.Contains(lowerReason, "i/o timeout") {
		return "The server may be slow or unreachable. Try again later"
	}

	return "Check your internet connection and try again"
}

// ErrNoTasksOnDate returns an error for a date filter with zero matches.
func ErrNoTasksOnDate(err error, date string) error {
	return &ErrorWithSuggestion{
		Err:        err,
		Suggestion: fmt.Sprintf("No task is due on %s. Pick another date or run 'taskbridge list' without --date", date),
	}
}

// ErrSchemaUnavailable returns an error for a board whose columns cannot be resolved.
func ErrSchemaUnavailable(err error) error {
	return &ErrorWithSuggestion{
		Err:        err,
		Suggestion: "Check board_id and that the board has Description, Date and Status columns",
	}
}

// ErrInvalidDate returns an error for an invalid date string.
func ErrInvalidDate(dateStr string) error {
	return &ErrorWithSuggestion{
		Err:        fmt.Errorf("invalid date: %s", dateStr),
		Suggestion: "Use date format YYYY-MM-DD (e.g., 2026-01-15)",
	}
}

// ErrInvalidStatus returns an error for an invalid status with valid options.
func ErrInvalidStatus(status string, valid []string) error {
	return &ErrorWithSuggestion{
		Err:        fmt.Errorf("invalid status: %s", status),
		Suggestion: fmt.Sprintf("Valid options: %s", strings.Join(valid, ", ")),
	}
}

// ErrCredentialsNotFound returns an error when the API token is missing.
func ErrCredentialsNotFound(backend, account string) error {
	return &ErrorWithSuggestion{
		Err:        fmt.Errorf("credentials not found for %s account %s", backend, account),
		Suggestion: fmt.Sprintf("Run 'taskbridge credentials set %s' or export TASKBRIDGE_%s_TOKEN", backend, strings.ToUpper(backend)),
	}
}

// ErrAuthenticationFailed returns an error when authentication fails.
func ErrAuthenticationFailed(backend string) error {
	return &ErrorWithSuggestion{
		Err:        fmt.Errorf("authentication failed for %s", backend),
		Suggestion: "Verify your API token is correct and has not expired",
	}
}
