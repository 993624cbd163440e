package domain

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// DomainError is an error with a stable code the admin API and CLI report.
//
// Codes read WP-<AREA>-<NNNN>. For codes that are not argument errors, the
// first three digits are the HTTP status the API answers with.
type DomainError struct {
	Code    string
	Message string
	Details string
	Cause   error
}

func NewDomainError(code, message string) *DomainError {
	return &DomainError{Code: code, Message: message}
}

func (e *DomainError) Error() string {
	if e.Details != "" {
		return fmt.Sprintf("[%s] %s: %s", e.Code, e.Message, e.Details)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

func (e *DomainError) Unwrap() error { return e.Cause }

// Is matches any DomainError with the same code, so copies made by
// WithDetails and WithCause still match their sentinel.
func (e *DomainError) Is(target error) bool {
	t, ok := target.(*DomainError)
	return ok && e.Code == t.Code
}

// WithDetails returns a copy carrying details. The receiver is not modified.
func (e *DomainError) WithDetails(details string) *DomainError {
	c := *e
	c.Details = details
	return &c
}

// WithCause returns a copy wrapping cause. The receiver is not modified.
func (e *DomainError) WithCause(cause error) *DomainError {
	c := *e
	c.Cause = cause
	return &c
}

// Status returns the HTTP status for the error's code: 400 for argument
// errors, 500 when the code carries no status.
func (e *DomainError) Status() int {
	if strings.HasPrefix(e.Code, "WP-ARG-") {
		return 400
	}
	if len(e.Code) >= 4 {
		if n, err := strconv.Atoi(e.Code[len(e.Code)-4 : len(e.Code)-1]); err == nil && n >= 400 && n < 600 {
			return n
		}
	}
	return 500
}

// IsDomainError reports whether err wraps a DomainError with code, or any
// DomainError when code is empty.
func IsDomainError(err error, code string) bool {
	var de *DomainError
	if !errors.As(err, &de) {
		return false
	}
	return code == "" || de.Code == code
}

// ============================================================================
// Session Errors (SESS)
// ============================================================================

var (
	// ErrSessionNotFound indicates the requested game session is not active.
	ErrSessionNotFound = NewDomainError("WP-SESS-4040", "session not found")

	// ErrSessionState indicates the operation is not allowed in the session's current state.
	ErrSessionState = NewDomainError("WP-SESS-4090", "invalid session state")

	// ErrSessionValidation indicates session data validation failed.
	ErrSessionValidation = NewDomainError("WP-SESS-4001", "session validation failed")
)

// ============================================================================
// Save Point Errors (SAVE)
// ============================================================================

var (
	// ErrSavePointNotFound indicates the requested save point does not exist.
	ErrSavePointNotFound = NewDomainError("WP-SAVE-4040", "save point not found")

	// ErrIntegrityFailed indicates a save point failed checksum verification.
	ErrIntegrityFailed = NewDomainError("WP-SAVE-4220", "save point integrity check failed")

	// ErrSaveFailed indicates the save point could not be durably written.
	ErrSaveFailed = NewDomainError("WP-SAVE-5001", "save point write failed")

	// ErrSaveInProgress indicates another save for the same session is in flight.
	ErrSaveInProgress = NewDomainError("WP-SAVE-4091", "save already in progress")
)

// ============================================================================
// Restore Errors (REST)
// ============================================================================

var (
	// ErrRestoreAborted indicates a restore stopped at the first failing category.
	ErrRestoreAborted = NewDomainError("WP-REST-4220", "restore aborted")

	// ErrRestoreCategory indicates a single restore category failed to apply.
	ErrRestoreCategory = NewDomainError("WP-REST-4221", "restore category failed")

	// ErrNoValidSavePoint indicates auto-restore found no verified save point.
	ErrNoValidSavePoint = NewDomainError("WP-REST-4041", "no valid save points found")
)

// ErrSubStateNotFound is returned by collaborator stores when a character has
// no data for a sub-state. Capture treats it as an empty block.
var ErrSubStateNotFound = errors.New("sub-state not found")

// ============================================================================
// System Errors (SYS)
// ============================================================================

var (
	// ErrInternal indicates an internal error.
	ErrInternal = NewDomainError("WP-SYS-5000", "internal error")

	// ErrStorage indicates a storage layer error.
	ErrStorage = NewDomainError("WP-SYS-5001", "storage error")

	// ErrServiceUnavailable indicates the engine is shutting down.
	ErrServiceUnavailable = NewDomainError("WP-SYS-5030", "service unavailable")

	// ErrBadRequest indicates a malformed request.
	ErrBadRequest = NewDomainError("WP-SYS-4000", "bad request")

	// ErrRateLimited indicates too many save requests.
	ErrRateLimited = NewDomainError("WP-SYS-4290", "too many requests")
)

// ============================================================================
// Argument Errors (ARG)
// ============================================================================

var (
	// ErrInvalidArgument indicates an invalid argument.
	ErrInvalidArgument = NewDomainError("WP-ARG-1001", "invalid argument")

	// ErrMissingArgument indicates a required argument is missing.
	ErrMissingArgument = NewDomainError("WP-ARG-1002", "missing required argument")
)
