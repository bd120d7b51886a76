// Package license defines issued license records and the storage contract
// for them and for the per-holder ownership index.
package license

import (
	"github.com/ethereum/go-ethereum/common"

	"github.com/xraph/licensing/id"
	"github.com/xraph/licensing/types"
)

// Attributes is the ordered pair of per-license configuration bits chosen at
// adoption. The engine stores them and gates who may change them; it assigns
// them no further meaning.
type Attributes struct {
	FlagA bool `json:"flag_a"`
	FlagB bool `json:"flag_b"`
}

// Pair builds Attributes from positional flags, matching the [flagA, flagB]
// shape holders submit.
func Pair(flagA, flagB bool) Attributes {
	return Attributes{FlagA: flagA, FlagB: flagB}
}

// License is one issued license.
type License struct {
	types.Entity
	DeploymentID  id.DeploymentID `json:"deployment_id"`
	ID            uint64          `json:"id"`
	Owner         common.Address  `json:"owner"`
	Attributes    Attributes      `json:"attributes"`
	PricePaid     types.Amount    `json:"price_paid"`
	PaymentLedger common.Address  `json:"payment_ledger"`
}
