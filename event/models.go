// Package event defines the payloads the licensing engine emits after each
// committed state change. Observers receive them through plugin hooks.
package event

import (
	"time"

	"github.com/ethereum/go-ethereum/common"

	"github.com/xraph/licensing/id"
	"github.com/xraph/licensing/license"
	"github.com/xraph/licensing/types"
)

// Meta is common to every event.
type Meta struct {
	ID           id.EventID      `json:"id"`
	DeploymentID id.DeploymentID `json:"deployment_id"`
	Caller       common.Address  `json:"caller"`
	OccurredAt   time.Time       `json:"occurred_at"`
}

// NewMeta stamps a fresh event id and the current time.
func NewMeta(depID id.DeploymentID, caller common.Address) Meta {
	return Meta{
		ID:           id.NewEventID(),
		DeploymentID: depID,
		Caller:       caller,
		OccurredAt:   time.Now().UTC(),
	}
}

type PriceChanged struct {
	Meta
	Old types.Amount `json:"old"`
	New types.Amount `json:"new"`
}

type PauseChanged struct {
	Meta
	Old bool `json:"old"`
	New bool `json:"new"`
}

type PaymentLedgerChanged struct {
	Meta
	Old common.Address `json:"old"`
	New common.Address `json:"new"`
}

// Issued reports a successful adoption.
type Issued struct {
	Meta
	Holder        common.Address `json:"holder"`
	LicenseID     uint64         `json:"license_id"`
	PricePaid     types.Amount   `json:"price_paid"`
	PaymentLedger common.Address `json:"payment_ledger"`
}

// AdoptRejected reports an adoption that failed before anything was issued.
type AdoptRejected struct {
	Meta
	Holder common.Address `json:"holder"`
	Price  types.Amount   `json:"price"`
	Kind   string         `json:"kind"`
	Reason string         `json:"reason"`
}

type DetailChanged struct {
	Meta
	LicenseID uint64             `json:"license_id"`
	Old       license.Attributes `json:"old"`
	New       license.Attributes `json:"new"`
}

type Transferred struct {
	Meta
	LicenseID uint64         `json:"license_id"`
	From      common.Address `json:"from"`
	To        common.Address `json:"to"`
}

// Withdrawn reports treasury funds paid out to the owner.
type Withdrawn struct {
	Meta
	WithdrawalID id.WithdrawalID `json:"withdrawal_id"`
	Amount       types.Amount    `json:"amount"`
	Ledger       common.Address  `json:"ledger"`
	To           common.Address  `json:"to"`
}
