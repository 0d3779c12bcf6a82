package utils

import (
	"errors"
	"fmt"

	mysqlDriver "github.com/go-sql-driver/mysql"
)

var ErrorRecordNotFound = errors.New("record not found")

// ErrorConcurrentModification is returned when a conditional write loses a
// version race. Callers retry by re-reading and recomputing.
var ErrorConcurrentModification = errors.New("record was modified concurrently")

// InvalidStateError means an operation's status precondition was not met,
// e.g. billing a log that has not been received yet.
type InvalidStateError struct {
	Op     string
	Status string
}

func (e *InvalidStateError) Error() string {
	return fmt.Sprintf("%s not allowed in status %q", e.Op, e.Status)
}

// InvalidMergeError means a merge precondition was violated.
type InvalidMergeError struct {
	Reason string
}

func (e *InvalidMergeError) Error() string {
	return "invalid merge: " + e.Reason
}

// ValidationError reports malformed caller input (negative quantities etc.).
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

type PersistenceErrorKind string

const (
	PersistencePermissionDenied PersistenceErrorKind = "PermissionDenied"
	PersistenceUnavailable      PersistenceErrorKind = "Unavailable"
	PersistenceUnknown          PersistenceErrorKind = "Unknown"
)

// PersistenceError wraps a store read/write failure. The kind is surfaced to
// the caller unmodified so the client can pick its recovery UI.
type PersistenceError struct {
	Kind PersistenceErrorKind
	Err  error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("persistence error (%s): %v", e.Kind, e.Err)
}

func (e *PersistenceError) Unwrap() error { return e.Err }

func NewPersistenceError(err error) error {
	if err == nil {
		return nil
	}
	return &PersistenceError{Kind: classifyPersistenceError(err), Err: err}
}

func classifyPersistenceError(err error) PersistenceErrorKind {
	msg := err.Error()
	switch {
	case containsAny(msg, "access denied", "permission"):
		return PersistencePermissionDenied
	case containsAny(msg, "connection refused", "invalid connection", "driver: bad connection", "timeout"):
		return PersistenceUnavailable
	default:
		return PersistenceUnknown
	}
}

// IsDuplicateKeyError reports whether an insert lost a race against a unique
// index. Callers that pre-check uniqueness still need this fallback.
func IsDuplicateKeyError(err error) bool {
	var mysqlErr *mysqlDriver.MySQLError
	if errors.As(err, &mysqlErr) {
		return mysqlErr.Number == 1062
	}
	return false
}

type ExternalLookupErrorKind string

const (
	LookupNotFound    ExternalLookupErrorKind = "NotFound"
	LookupAuthInvalid ExternalLookupErrorKind = "AuthInvalid"
	LookupTimeout     ExternalLookupErrorKind = "Timeout"
	LookupRateLimited ExternalLookupErrorKind = "RateLimited"
	LookupUnavailable ExternalLookupErrorKind = "Unavailable"
)

// ExternalLookupError reports a storefront order-lookup failure.
type ExternalLookupError struct {
	Kind  ExternalLookupErrorKind
	Store string
	Err   error
}

func (e *ExternalLookupError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("order lookup failed (%s, store=%s): %v", e.Kind, e.Store, e.Err)
	}
	return fmt.Sprintf("order lookup failed (%s, store=%s)", e.Kind, e.Store)
}

func (e *ExternalLookupError) Unwrap() error { return e.Err }

func ErrorPanic(err error) {
	if err != nil {
		panic(err)
	}
}
