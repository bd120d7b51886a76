package paymentledger

import (
	"fmt"
	"sync"

	"github.com/ethereum/go-ethereum/common"
)

var _ Resolver = (*Registry)(nil)

// Registry is a Resolver over an explicit set of ledgers.
type Registry struct {
	mu      sync.RWMutex
	ledgers map[common.Address]Ledger
}

// NewRegistry returns a Registry holding the given ledgers.
func NewRegistry(ledgers ...Ledger) *Registry {
	r := &Registry{ledgers: make(map[common.Address]Ledger, len(ledgers))}
	for _, l := range ledgers {
		r.ledgers[l.Address()] = l
	}
	return r
}

// Register adds a ledger. Registering a second ledger at the same address fails.
func (r *Registry) Register(l Ledger) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	addr := l.Address()
	if addr == (common.Address{}) {
		return ErrZeroAddress
	}
	if _, exists := r.ledgers[addr]; exists {
		return fmt.Errorf("%w: %s", ErrDuplicateLedger, addr.Hex())
	}
	r.ledgers[addr] = l
	return nil
}

// Unregister removes the ledger at addr, if any.
func (r *Registry) Unregister(addr common.Address) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.ledgers, addr)
}

// Resolve implements Resolver.
func (r *Registry) Resolve(addr common.Address) (Ledger, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if l, ok := r.ledgers[addr]; ok {
		return l, nil
	}
	return nil, fmt.Errorf("%w: %s", ErrUnknownLedger, addr.Hex())
}

// Addresses returns the addresses of all registered ledgers.
func (r *Registry) Addresses() []common.Address {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]common.Address, 0, len(r.ledgers))
	for addr := range r.ledgers {
		out = append(out, addr)
	}
	return out
}
