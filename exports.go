package licensing

import (
	"github.com/xraph/licensing/license"
	"github.com/xraph/licensing/types"
)

// Re-export common types so callers don't have to import the sub-packages.

// Amount is re-exported from types package.
type Amount = types.Amount

// Entity is re-exported from types package.
type Entity = types.Entity

// Attributes is re-exported from license package.
type Attributes = license.Attributes

// License is re-exported from license package.
type License = license.License

var (
	NewEntity = types.NewEntity
	Pair      = license.Pair
)
