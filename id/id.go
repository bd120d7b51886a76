// Package id defines the TypeID-based identifiers used by the licensing engine.
//
// License records themselves are numbered sequentially (1, 2, 3, ...) because
// holders and metadata URIs address them by number. Everything else that needs
// a globally unique handle (engine deployments, emitted events, withdrawals)
// uses a prefix-qualified, K-sortable TypeID such as "dep_01h2xcejqtf2nbrexx3vqjhp41".
package id

import (
	"database/sql/driver"
	"fmt"

	"go.jetify.com/typeid/v2"
)

// Prefix identifies the kind of entity encoded in a TypeID.
type Prefix string

const (
	PrefixDeployment Prefix = "dep" // Engine deployment
	PrefixEvent      Prefix = "evt" // Emitted engine event
	PrefixWithdrawal Prefix = "wd"  // Treasury withdrawal
)

// ID wraps a TypeID. The zero value is Nil.
//
//nolint:recvcheck // Value receivers for read-only methods, pointer receivers for UnmarshalText/Scan.
type ID struct {
	inner typeid.TypeID
	valid bool
}

// Nil is the zero-value ID.
var Nil ID

// DeploymentID identifies one engine deployment and scopes all of its stored state.
type DeploymentID = ID

// EventID identifies a single emitted event.
type EventID = ID

// WithdrawalID identifies a treasury withdrawal.
type WithdrawalID = ID

// New generates an ID with the given prefix. It panics on an invalid prefix,
// which can only be a programming error.
func New(prefix Prefix) ID {
	tid, err := typeid.Generate(string(prefix))
	if err != nil {
		panic(fmt.Sprintf("id: invalid prefix %q: %v", prefix, err))
	}
	return ID{inner: tid, valid: true}
}

// NewDeploymentID generates a new deployment ID.
func NewDeploymentID() ID { return New(PrefixDeployment) }

// NewEventID generates a new event ID.
func NewEventID() ID { return New(PrefixEvent) }

// NewWithdrawalID generates a new withdrawal ID.
func NewWithdrawalID() ID { return New(PrefixWithdrawal) }

// Parse parses any TypeID string.
func Parse(s string) (ID, error) {
	if s == "" {
		return Nil, fmt.Errorf("id: parse %q: empty string", s)
	}
	tid, err := typeid.Parse(s)
	if err != nil {
		return Nil, fmt.Errorf("id: parse %q: %w", s, err)
	}
	return ID{inner: tid, valid: true}, nil
}

// ParseWithPrefix parses s and checks that it carries the expected prefix.
func ParseWithPrefix(s string, expected Prefix) (ID, error) {
	parsed, err := Parse(s)
	if err != nil {
		return Nil, err
	}
	if parsed.Prefix() != expected {
		return Nil, fmt.Errorf("id: expected prefix %q, got %q", expected, parsed.Prefix())
	}
	return parsed, nil
}

// ParseDeploymentID parses a "dep_" identifier.
func ParseDeploymentID(s string) (ID, error) { return ParseWithPrefix(s, PrefixDeployment) }

// ParseEventID parses an "evt_" identifier.
func ParseEventID(s string) (ID, error) { return ParseWithPrefix(s, PrefixEvent) }

// ParseWithdrawalID parses a "wd_" identifier.
func ParseWithdrawalID(s string) (ID, error) { return ParseWithPrefix(s, PrefixWithdrawal) }

// MustParse is Parse for hardcoded values.
func MustParse(s string) ID {
	parsed, err := Parse(s)
	if err != nil {
		panic(fmt.Sprintf("id: must parse %q: %v", s, err))
	}
	return parsed
}

// String returns "prefix_suffix", or "" for Nil.
func (i ID) String() string {
	if !i.valid {
		return ""
	}
	return i.inner.String()
}

// Prefix returns the prefix component, or "" for Nil.
func (i ID) Prefix() Prefix {
	if !i.valid {
		return ""
	}
	return Prefix(i.inner.Prefix())
}

// IsNil reports whether i is the zero value.
func (i ID) IsNil() bool { return !i.valid }

// MarshalText implements encoding.TextMarshaler.
func (i ID) MarshalText() ([]byte, error) {
	return []byte(i.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler. Empty input yields Nil.
func (i *ID) UnmarshalText(data []byte) error {
	if len(data) == 0 {
		*i = Nil
		return nil
	}
	parsed, err := Parse(string(data))
	if err != nil {
		return err
	}
	*i = parsed
	return nil
}

// Value implements driver.Valuer. Nil is stored as NULL.
func (i ID) Value() (driver.Value, error) {
	if !i.valid {
		return nil, nil //nolint:nilnil // nil is the canonical NULL for driver.Valuer
	}
	return i.inner.String(), nil
}

// Scan implements sql.Scanner.
func (i *ID) Scan(src any) error {
	switch v := src.(type) {
	case nil:
		*i = Nil
		return nil
	case string:
		return i.UnmarshalText([]byte(v))
	case []byte:
		return i.UnmarshalText(v)
	default:
		return fmt.Errorf("id: cannot scan %T into ID", src)
	}
}
