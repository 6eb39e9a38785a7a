package backend

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
)

// TransportError reports an HTTP-level failure: a non-2xx status, or a
// request that never got a response (StatusCode is 0 and Err is set).
type TransportError struct {
	Backend    Kind
	Op         string
	StatusCode int
	Err        error
}

func (e *TransportError) Error() string {
	if e.StatusCode == 0 {
		return fmt.Sprintf("%s %s: request failed: %v", e.Backend, e.Op, e.Err)
	}
	return fmt.Sprintf("%s %s: status %d %s", e.Backend, e.Op, e.StatusCode, http.StatusText(e.StatusCode))
}

func (e *TransportError) Unwrap() error {
	return e.Err
}

// BackendError reports an application-level error envelope returned with
// a successful HTTP status.
type BackendError struct {
	Backend  Kind
	Op       string
	Messages []string
}

func (e *BackendError) Error() string {
	msg := "unknown error"
	if len(e.Messages) > 0 {
		msg = strings.Join(e.Messages, "; ")
	}
	return fmt.Sprintf("%s %s: %s", e.Backend, e.Op, msg)
}

// NoResultsError reports a date filter that legitimately matched nothing.
type NoResultsError struct {
	Backend Kind
	Date    string
}

func (e *NoResultsError) Error() string {
	return fmt.Sprintf("%s: no tasks due on %s", e.Backend, e.Date)
}

// SchemaUnavailableError reports missing board or column metadata.
type SchemaUnavailableError struct {
	Backend Kind
	BoardID string
	Reason  string
}

func (e *SchemaUnavailableError) Error() string {
	return fmt.Sprintf("%s board %s: schema unavailable: %s", e.Backend, e.BoardID, e.Reason)
}

// IsTransport reports whether err is or wraps a *TransportError.
func IsTransport(err error) bool {
	var target *TransportError
	return errors.As(err, &target)
}

// IsBackend reports whether err is or wraps a *BackendError.
func IsBackend(err error) bool {
	var target *BackendError
	return errors.As(err, &target)
}

// IsNoResults reports whether err is or wraps a *NoResultsError.
func IsNoResults(err error) bool {
	var target *NoResultsError
	return errors.As(err, &target)
}

// IsSchemaUnavailable reports whether err is or wraps a *SchemaUnavailableError.
func IsSchemaUnavailable(err error) bool {
	var target *SchemaUnavailableError
	return errors.As(err, &target)
}

// CheckStatus returns a *TransportError for any status outside 2xx.
func CheckStatus(kind Kind, op string, resp *http.Response) error {
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return &TransportError{Backend: kind, Op: op, StatusCode: resp.StatusCode}
	}
	return nil
}
