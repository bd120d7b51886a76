package types

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
)

// Amount is a quantity of a payment ledger's token in its smallest unit.
// Arithmetic is integer-only and checked: it never wraps around.
//
// Examples:
//   - Amount(10_000_000) with 6 decimals formats as "10.000000"
//   - Amount(1) with 18 decimals formats as "0.000000000000000001"
type Amount uint64

// ErrAmountOverflow is returned when checked arithmetic would leave the uint64 range.
var ErrAmountOverflow = errors.New("types: amount overflow")

// Add returns a+b, or ErrAmountOverflow.
func (a Amount) Add(b Amount) (Amount, error) {
	if b > math.MaxUint64-a {
		return 0, ErrAmountOverflow
	}
	return a + b, nil
}

// Sub returns a-b, or ErrAmountOverflow when b is larger than a.
func (a Amount) Sub(b Amount) (Amount, error) {
	if b > a {
		return 0, ErrAmountOverflow
	}
	return a - b, nil
}

// IsZero reports whether the amount is zero.
func (a Amount) IsZero() bool { return a == 0 }

// Covers reports whether a is at least need.
func (a Amount) Covers(need Amount) bool { return a >= need }

// Uint64 returns the raw value.
func (a Amount) Uint64() uint64 { return uint64(a) }

// String returns the raw integer in base 10.
func (a Amount) String() string { return strconv.FormatUint(uint64(a), 10) }

// FormatUnits renders the amount in major units for a token with the given
// number of decimals. Zero decimals yields the raw integer.
func (a Amount) FormatUnits(decimals uint8) string {
	if decimals == 0 {
		return a.String()
	}

	raw := a.String()
	if len(raw) <= int(decimals) {
		return "0." + strings.Repeat("0", int(decimals)-len(raw)) + raw
	}
	split := len(raw) - int(decimals)
	return raw[:split] + "." + raw[split:]
}

// MarshalJSON encodes the amount as a decimal string so values above 2^53
// survive JavaScript clients.
func (a Amount) MarshalJSON() ([]byte, error) {
	return json.Marshal(a.String())
}

// UnmarshalJSON accepts either a decimal string or a JSON number.
func (a *Amount) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		s = string(data)
	}
	v, err := strconv.ParseUint(s, 10, 64)
	if err != nil {
		return fmt.Errorf("types: parse amount %q: %w", s, err)
	}
	*a = Amount(v)
	return nil
}

// Sum adds all values, failing on overflow.
func Sum(values ...Amount) (Amount, error) {
	var total Amount
	for _, v := range values {
		next, err := total.Add(v)
		if err != nil {
			return 0, err
		}
		total = next
	}
	return total, nil
}
