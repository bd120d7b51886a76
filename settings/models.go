// Package settings holds the single mutable configuration record of an
// engine deployment: its price, sale switch and accepted payment ledger,
// alongside the values fixed at construction.
package settings

import (
	"github.com/ethereum/go-ethereum/common"

	"github.com/xraph/licensing/id"
	"github.com/xraph/licensing/types"
)

// Config is the engine's configuration record. Owner, Name, Symbol and
// BaseURI are fixed once the deployment exists; MintPrice, Paused and
// PaymentLedger change only through the engine's owner-gated setters.
type Config struct {
	types.Entity
	DeploymentID id.DeploymentID `json:"deployment_id"`

	Owner   common.Address `json:"owner"`
	Name    string         `json:"name"`
	Symbol  string         `json:"symbol"`
	BaseURI string         `json:"base_uri"`

	MintPrice     types.Amount   `json:"mint_price"`
	Paused        bool           `json:"paused"`
	PaymentLedger common.Address `json:"payment_ledger"`
}

// Clone returns a copy safe to mutate.
func (c *Config) Clone() Config {
	return *c
}
