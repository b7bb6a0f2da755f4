// Package errors defines the engine's error taxonomy: sentinel errors for
// each failure kind, a structured AppError carrying a human message, and the
// mapping to HTTP status codes used by the service surface.
package errors

import (
	"errors"
	"fmt"
	"net/http"
)

var (
	// ErrInvalidQuery covers malformed query parameters: bad pagination,
	// unknown matching strategy, out-of-range thresholds.
	ErrInvalidQuery = errors.New("invalid query")
	// ErrInvalidFilter covers filter syntax errors and filters on
	// attributes not declared filterable.
	ErrInvalidFilter = errors.New("invalid filter")
	// ErrFilterTooDeep is returned when a filter expression exceeds the
	// maximum nesting depth instead of risking a stack overflow.
	ErrFilterTooDeep = errors.New("filter expression too deep")
	// ErrInvalidSort covers sorts on attributes not declared sortable and
	// malformed sort specifications.
	ErrInvalidSort = errors.New("invalid sort")
	// ErrSchedulerFull signals admission rejection; callers may retry
	// after backing off.
	ErrSchedulerFull = errors.New("too many concurrent queries")
	// ErrDocumentNotFound is returned by document stores for unknown ids.
	ErrDocumentNotFound = errors.New("document not found")
	// ErrIndexNotFound is returned for operations on unknown index names.
	ErrIndexNotFound = errors.New("index not found")
	// ErrInconsistentSnapshot signals a posting referencing a document id
	// missing from the document store. Recovered per query, never fatal.
	ErrInconsistentSnapshot = errors.New("snapshot inconsistency")
	// ErrInvalidDocument covers documents without a primary key or with
	// non-scalar primary key values.
	ErrInvalidDocument = errors.New("invalid document")
	ErrInternal        = errors.New("internal error")
)

// AppError pairs a sentinel with a human-readable message and the HTTP
// status the service layer should emit.
type AppError struct {
	Err        error
	Message    string
	StatusCode int
}

func (e *AppError) Error() string {
	return fmt.Sprintf("%s: %s", e.Err.Error(), e.Message)
}

func (e *AppError) Unwrap() error {
	return e.Err
}

// New wraps a sentinel error with a message and status code.
func New(sentinel error, statusCode int, message string) *AppError {
	return &AppError{
		Err:        sentinel,
		Message:    message,
		StatusCode: statusCode,
	}
}

// Newf is New with Sprintf-style message formatting.
func Newf(sentinel error, statusCode int, format string, args ...any) *AppError {
	return &AppError{
		Err:        sentinel,
		Message:    fmt.Sprintf(format, args...),
		StatusCode: statusCode,
	}
}

// InvalidFilter builds an AppError for a filter rejected before execution.
func InvalidFilter(format string, args ...any) *AppError {
	return Newf(ErrInvalidFilter, http.StatusBadRequest, format, args...)
}

// InvalidSort builds an AppError for a sort rejected before execution.
func InvalidSort(format string, args ...any) *AppError {
	return Newf(ErrInvalidSort, http.StatusBadRequest, format, args...)
}

// HTTPStatusCode maps an error to the HTTP status the caller should return.
func HTTPStatusCode(err error) int {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.StatusCode
	}
	switch {
	case errors.Is(err, ErrInvalidQuery),
		errors.Is(err, ErrInvalidFilter),
		errors.Is(err, ErrFilterTooDeep),
		errors.Is(err, ErrInvalidSort),
		errors.Is(err, ErrInvalidDocument):
		return http.StatusBadRequest
	case errors.Is(err, ErrDocumentNotFound), errors.Is(err, ErrIndexNotFound):
		return http.StatusNotFound
	case errors.Is(err, ErrSchedulerFull):
		return http.StatusTooManyRequests
	default:
		return http.StatusInternalServerError
	}
}
