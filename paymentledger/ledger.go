// Package paymentledger defines the fungible-balance ledger the licensing
// engine collects mint payments in and pays withdrawals out of.
//
// The engine only consumes this interface. Concrete ledgers (an on-chain
// token client, a bookkeeping service, or the in-process ledger in the
// memory subpackage) are resolved by address through a Resolver, so the
// engine can rotate its active payment ledger and still reach balances held
// in ledgers it used before.
package paymentledger

import (
	"context"
	"errors"

	"github.com/ethereum/go-ethereum/common"

	"github.com/xraph/licensing/types"
)

// Errors a Ledger implementation reports when it rejects a movement.
var (
	ErrInsufficientBalance   = errors.New("paymentledger: insufficient balance")
	ErrInsufficientAllowance = errors.New("paymentledger: insufficient allowance")
	ErrZeroAddress           = errors.New("paymentledger: zero address")
	ErrUnknownLedger         = errors.New("paymentledger: unknown ledger")
	ErrDuplicateLedger       = errors.New("paymentledger: ledger already registered")
)

// Ledger is a fungible-balance store with ERC-20 style allowances.
// Any returned error means the movement did not happen.
type Ledger interface {
	// Address is the ledger's own identity; engines store it as their
	// configured payment ledger.
	Address() common.Address

	BalanceOf(ctx context.Context, account common.Address) (types.Amount, error)
	Allowance(ctx context.Context, owner, spender common.Address) (types.Amount, error)

	// Transfer moves amount from from to to, acting as from.
	Transfer(ctx context.Context, from, to common.Address, amount types.Amount) error

	// TransferFrom moves amount from from to to on behalf of spender,
	// consuming spender's allowance over from's balance.
	TransferFrom(ctx context.Context, spender, from, to common.Address, amount types.Amount) error

	// Approve sets spender's allowance over owner's balance.
	Approve(ctx context.Context, owner, spender common.Address, amount types.Amount) error
}

// Resolver finds the Ledger living at an address.
type Resolver interface {
	Resolve(addr common.Address) (Ledger, error)
}

// ResolverFunc adapts a plain function to a Resolver.
type ResolverFunc func(addr common.Address) (Ledger, error)

// Resolve implements Resolver.
func (f ResolverFunc) Resolve(addr common.Address) (Ledger, error) {
	return f(addr)
}
