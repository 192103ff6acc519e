package apperr

import (
	"errors"
	"fmt"
	"net/http"
)

// Error codes surfaced to the transport layer. Ledger codes are split so a
// caller can tell a safely-retryable failure (ledger_unavailable) from a
// timed-out submission whose outcome is unknown (ledger_indeterminate).
const (
	CodeInvalidInput        = "invalid_input"
	CodeNotFound            = "not_found"
	CodePermissionDenied    = "permission_denied"
	CodeAlreadyDeleted      = "already_deleted"
	CodeAlreadyScanned      = "already_scanned"
	CodeLedgerUnavailable   = "ledger_unavailable"
	CodeLedgerIndeterminate = "ledger_indeterminate"
	CodePersistenceFailure  = "persistence_failure"
)

type Error struct {
	Status int
	Code   string
	Err    error
}

func (e *Error) Error() string {
	if e == nil {
		return ""
	}
	if e.Err != nil {
		return e.Err.Error()
	}
	if e.Code != "" {
		return e.Code
	}
	if e.Status != 0 {
		return fmt.Sprintf("api error (%d)", e.Status)
	}
	return "api error"
}

func (e *Error) Unwrap() error { return e.Err }

func New(status int, code string, err error) *Error {
	return &Error{Status: status, Code: code, Err: err}
}

func InvalidInput(format string, args ...interface{}) *Error {
	return New(http.StatusBadRequest, CodeInvalidInput, fmt.Errorf(format, args...))
}

func NotFound(format string, args ...interface{}) *Error {
	return New(http.StatusNotFound, CodeNotFound, fmt.Errorf(format, args...))
}

func PermissionDenied(format string, args ...interface{}) *Error {
	return New(http.StatusForbidden, CodePermissionDenied, fmt.Errorf(format, args...))
}

func AlreadyDeleted(format string, args ...interface{}) *Error {
	return New(http.StatusConflict, CodeAlreadyDeleted, fmt.Errorf(format, args...))
}

func LedgerUnavailable(err error) *Error {
	return New(http.StatusBadGateway, CodeLedgerUnavailable, err)
}

func LedgerIndeterminate(err error) *Error {
	return New(http.StatusGatewayTimeout, CodeLedgerIndeterminate, err)
}

func PersistenceFailure(err error) *Error {
	return New(http.StatusInternalServerError, CodePersistenceFailure, err)
}

// CodeOf extracts the taxonomy code from an error chain, or "" when the
// error carries none.
func CodeOf(err error) string {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return ""
}

// StatusOf maps an error chain to an HTTP status, defaulting to 500.
func StatusOf(err error) int {
	var e *Error
	if errors.As(err, &e) && e.Status != 0 {
		return e.Status
	}
	return http.StatusInternalServerError
}
