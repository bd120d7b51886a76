// Package memory provides an in-process payment ledger with ERC-20 semantics.
//
// It backs tests, local deployments and the factory's default wiring. All
// movements are checked before any balance is touched, so a rejected call
// leaves the ledger unchanged.
package memory

import (
	"context"
	"fmt"
	"sync"

	"github.com/ethereum/go-ethereum/common"

	"github.com/xraph/licensing/paymentledger"
	"github.com/xraph/licensing/types"
)

var _ paymentledger.Ledger = (*Ledger)(nil)

// Ledger is a mutex-guarded balance and allowance table.
type Ledger struct {
	mu sync.RWMutex

	address  common.Address
	name     string
	symbol   string
	decimals uint8

	totalSupply types.Amount
	balances    map[common.Address]types.Amount
	allowances  map[common.Address]map[common.Address]types.Amount
}

// Option configures a Ledger.
type Option func(*Ledger)

// WithName sets the token name.
func WithName(name string) Option { return func(l *Ledger) { l.name = name } }

// WithSymbol sets the token symbol.
func WithSymbol(symbol string) Option { return func(l *Ledger) { l.symbol = symbol } }

// WithDecimals sets the number of decimals used when formatting amounts.
func WithDecimals(d uint8) Option { return func(l *Ledger) { l.decimals = d } }

// New creates an empty ledger living at addr.
func New(addr common.Address, opts ...Option) *Ledger {
	l := &Ledger{
		address:    addr,
		name:       "Payment Token",
		symbol:     "PAY",
		decimals:   6,
		balances:   make(map[common.Address]types.Amount),
		allowances: make(map[common.Address]map[common.Address]types.Amount),
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

func (l *Ledger) Address() common.Address { return l.address }
func (l *Ledger) Name() string            { return l.name }
func (l *Ledger) Symbol() string          { return l.symbol }
func (l *Ledger) Decimals() uint8         { return l.decimals }

// TotalSupply returns the sum of all balances.
func (l *Ledger) TotalSupply() types.Amount {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.totalSupply
}

// Mint creates amount new units in to's balance.
func (l *Ledger) Mint(to common.Address, amount types.Amount) error {
	if to == (common.Address{}) {
		return paymentledger.ErrZeroAddress
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	supply, err := l.totalSupply.Add(amount)
	if err != nil {
		return fmt.Errorf("paymentledger/memory: mint: %w", err)
	}
	balance, err := l.balances[to].Add(amount)
	if err != nil {
		return fmt.Errorf("paymentledger/memory: mint: %w", err)
	}
	l.totalSupply = supply
	l.balances[to] = balance
	return nil
}

func (l *Ledger) BalanceOf(_ context.Context, account common.Address) (types.Amount, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.balances[account], nil
}

func (l *Ledger) Allowance(_ context.Context, owner, spender common.Address) (types.Amount, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.allowances[owner][spender], nil
}

func (l *Ledger) Approve(_ context.Context, owner, spender common.Address, amount types.Amount) error {
	if owner == (common.Address{}) || spender == (common.Address{}) {
		return paymentledger.ErrZeroAddress
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	if l.allowances[owner] == nil {
		l.allowances[owner] = make(map[common.Address]types.Amount)
	}
	l.allowances[owner][spender] = amount
	return nil
}

func (l *Ledger) Transfer(_ context.Context, from, to common.Address, amount types.Amount) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.move(from, to, amount)
}

func (l *Ledger) TransferFrom(_ context.Context, spender, from, to common.Address, amount types.Amount) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	allowed := l.allowances[from][spender]
	if !allowed.Covers(amount) {
		return fmt.Errorf("%w: %s may spend %s of %s, needs %s",
			paymentledger.ErrInsufficientAllowance, spender.Hex(), allowed, from.Hex(), amount)
	}
	if err := l.move(from, to, amount); err != nil {
		return err
	}
	if amount > 0 {
		l.allowances[from][spender] = allowed - amount
	}
	return nil
}

// move must be called with mu held.
func (l *Ledger) move(from, to common.Address, amount types.Amount) error {
	if to == (common.Address{}) {
		return paymentledger.ErrZeroAddress
	}
	balance := l.balances[from]
	if !balance.Covers(amount) {
		return fmt.Errorf("%w: %s holds %s, needs %s",
			paymentledger.ErrInsufficientBalance, from.Hex(), balance, amount)
	}
	if from == to {
		return nil
	}
	l.balances[from] = balance - amount
	// Cannot overflow: the sum of all balances is totalSupply.
	l.balances[to] += amount
	return nil
}
