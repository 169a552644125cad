package fault

import (
	"fmt"
	"strings"

	"github.com/pkg/errors"
)

// Kind designates the class of a domain failure
type Kind uint8

// failure kinds
const (
	KUnknown Kind = iota
	KLock
	KAuthorization
	KInvariant
	KNotFound
	KStorage
)

func (k Kind) String() string {
	switch k {
	case KLock:
		return "lock"
	case KAuthorization:
		return "authorization"
	case KInvariant:
		return "invariant"
	case KNotFound:
		return "not found"
	case KStorage:
		return "storage"
	default:
		return "unknown"
	}
}

// Error is a typed domain failure, carrying the entity and
// operation it relates to so that callers can match on kind
// rather than parse the message
type Error struct {
	Kind    Kind   `json:"kind"`
	Entity  string `json:"entity"`
	Op      string `json:"op"`
	Message string `json:"message"`
	err     error
}

// Error renders the error as "<Entity><Op>Error: <Message>"
func (e *Error) Error() string {
	if e.Entity == "" && e.Op == "" {
		if e.err != nil && e.Message == "" {
			return e.err.Error()
		}

		return e.Message
	}

	return fmt.Sprintf("%s%sError: %s", e.Entity, e.Op, e.Message)
}

// Unwrap returns the underlying error, if any
func (e *Error) Unwrap() error {
	return e.err
}

// New initializes a new typed error
func New(kind Kind, entity, op, msg string) *Error {
	return &Error{
		Kind:    kind,
		Entity:  entity,
		Op:      op,
		Message: msg,
	}
}

// Newf is like New but with message formatting
func Newf(kind Kind, entity, op, format string, args ...interface{}) *Error {
	return New(kind, entity, op, fmt.Sprintf(format, args...))
}

// Lock returns an error denoting that an edit or delete lock is in effect
func Lock(entity, op, msg string) *Error {
	return New(KLock, entity, op, msg)
}

// Invariant returns an error denoting a violated structural rule
func Invariant(entity, op, msg string) *Error {
	return New(KInvariant, entity, op, msg)
}

// Forbidden returns a blanket authorization denial which never
// says whether the target exists
func Forbidden(entity, op string) *Error {
	return New(KAuthorization, entity, op, "access denied")
}

// NotFound returns an error denoting that an entity either doesn't exist
// or does not belong to the caller's business
func NotFound(entity string) *Error {
	return &Error{
		Kind:    KNotFound,
		Message: fmt.Sprintf("%s not found", strings.ToLower(entity)),
	}
}

// Storage wraps an underlying transaction failure
func Storage(err error, msg string) *Error {
	if err == nil {
		return nil
	}

	return &Error{
		Kind:    KStorage,
		Message: errors.Wrap(err, msg).Error(),
		err:     err,
	}
}

// KindOf returns the kind of a typed error found anywhere in the chain,
// KUnknown otherwise
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}

	return KUnknown
}

// Is reports whether the error chain contains a typed error of a given kind
func Is(err error, kind Kind) bool {
	return err != nil && KindOf(err) == kind
}

// As extracts a typed error from the chain
func As(err error) (*Error, bool) {
	var e *Error
	if errors.As(err, &e) {
		return e, true
	}

	return nil, false
}
