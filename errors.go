package licensing

import (
	"errors"
	"fmt"
)

// Sentinel errors. Every rejection returned by the engine matches exactly one
// of them through errors.Is.
var (
	// Access
	ErrUnauthorized    = errors.New("licensing: unauthorized")
	ErrNotLicenseOwner = errors.New("licensing: not license owner")

	// State
	ErrNoOpUpdate   = errors.New("licensing: new state identical to old state")
	ErrSaleInactive = errors.New("licensing: sale inactive")
	ErrNotStarted   = errors.New("licensing: engine not started")

	// Funds
	ErrInsufficientPayment  = errors.New("licensing: insufficient payment")
	ErrInsufficientTreasury = errors.New("licensing: insufficient treasury balance")

	// General
	ErrNotFound      = errors.New("licensing: not found")
	ErrAlreadyExists = errors.New("licensing: already exists")
	ErrInvalidInput  = errors.New("licensing: invalid input")

	// Store
	ErrStoreClosed = errors.New("licensing: store is closed")
)

var kinds = []error{
	ErrUnauthorized,
	ErrNotLicenseOwner,
	ErrNoOpUpdate,
	ErrSaleInactive,
	ErrNotStarted,
	ErrInsufficientPayment,
	ErrInsufficientTreasury,
	ErrNotFound,
	ErrAlreadyExists,
	ErrInvalidInput,
	ErrStoreClosed,
}

// Error is a rejected engine operation. Kind is one of the sentinels above,
// Reason is the message shown to callers and Err an optional underlying cause.
type Error struct {
	Kind   error
	Op     string
	Reason string
	Err    error
}

func (e *Error) Error() string {
	msg := fmt.Sprintf("licensing: %s: %s", e.Op, e.Reason)
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

// Is matches the error's Kind.
func (e *Error) Is(target error) bool {
	return e.Kind == target
}

// Unwrap exposes the cause.
func (e *Error) Unwrap() error {
	return e.Err
}

func newError(kind error, op, reason string) *Error {
	return &Error{Kind: kind, Op: op, Reason: reason}
}

func wrapError(kind error, op, reason string, cause error) *Error {
	return &Error{Kind: kind, Op: op, Reason: reason, Err: cause}
}

// KindOf returns the sentinel err matches, or nil.
func KindOf(err error) error {
	if err == nil {
		return nil
	}
	var le *Error
	if errors.As(err, &le) {
		return le.Kind
	}
	for _, k := range kinds {
		if errors.Is(err, k) {
			return k
		}
	}
	return nil
}

// IsNotFound returns true if the error is a not found error.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

// IsAccessError returns true if the caller lacked the right to act.
func IsAccessError(err error) bool {
	return errors.Is(err, ErrUnauthorized) || errors.Is(err, ErrNotLicenseOwner)
}

// ValidationError represents a validation failure with details.
type ValidationError struct {
	Field   string
	Message string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("licensing: validation failed for %s: %s", e.Field, e.Message)
}

// Is lets a ValidationError match ErrInvalidInput.
func (e ValidationError) Is(target error) bool {
	return target == ErrInvalidInput
}

// MultiError represents multiple errors that occurred.
type MultiError struct {
	Errors []error
}

func (e MultiError) Error() string {
	if len(e.Errors) == 0 {
		return "licensing: no errors"
	}
	if len(e.Errors) == 1 {
		return e.Errors[0].Error()
	}
	return fmt.Sprintf("licensing: %d errors occurred", len(e.Errors))
}

// Add adds an error to the multi-error.
func (e *MultiError) Add(err error) {
	if err != nil {
		e.Errors = append(e.Errors, err)
	}
}

// HasErrors returns true if there are any errors.
func (e MultiError) HasErrors() bool {
	return len(e.Errors) > 0
}

// Unwrap exposes the collected errors to errors.Is.
func (e MultiError) Unwrap() []error {
	return e.Errors
}
