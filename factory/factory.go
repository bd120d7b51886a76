// Package factory deploys licensing engines together with their payment
// ledger and keeps track of what it deployed.
package factory

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/go-playground/validator/v10"

	"github.com/xraph/licensing"
	"github.com/xraph/licensing/id"
	"github.com/xraph/licensing/paymentledger"
	ledgermem "github.com/xraph/licensing/paymentledger/memory"
	"github.com/xraph/licensing/store"
	"github.com/xraph/licensing/types"
)

// ErrWiringMismatch is returned when a freshly deployed engine reports a
// payment ledger or price other than the one it was deployed with.
var ErrWiringMismatch = errors.New("factory: engine wiring mismatch")

// Params describe one deployment. Addresses are hex strings.
type Params struct {
	Owner   string `json:"owner"    validate:"required,eth_addr"`
	Name    string `json:"name"     validate:"max=64"`
	Symbol  string `json:"symbol"   validate:"max=16"`
	BaseURI string `json:"base_uri" validate:"omitempty,url"`

	MintPrice types.Amount `json:"mint_price"`

	// PaymentLedger names an existing ledger in the factory's registry.
	// Empty deploys a new in-memory ledger.
	PaymentLedger string `json:"payment_ledger" validate:"omitempty,eth_addr"`

	// Settings for a newly deployed ledger.
	TokenName     string       `json:"token_name"     validate:"max=64"`
	TokenSymbol   string       `json:"token_symbol"   validate:"max=16"`
	TokenDecimals uint8        `json:"token_decimals" validate:"max=36"`
	InitialSupply types.Amount `json:"initial_supply"`
}

// Deployment is an engine the factory created.
type Deployment struct {
	ID            id.DeploymentID
	Engine        *licensing.Engine
	PaymentLedger common.Address
	CreatedAt     time.Time
}

// Factory deploys engines. It is safe for concurrent use.
type Factory struct {
	mu          sync.RWMutex
	registry    *paymentledger.Registry
	newStore    func() store.Store
	validate    *validator.Validate
	logger      *slog.Logger
	address     common.Address
	nonce       uint64
	engineOpts  []licensing.Option
	deployments map[string]*Deployment
}

// Option configures a Factory.
type Option func(*Factory)

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(f *Factory) { f.logger = logger }
}

// WithAddress sets the account new ledger addresses are derived from.
func WithAddress(addr common.Address) Option {
	return func(f *Factory) { f.address = addr }
}

// WithEngineOptions adds options applied to every deployed engine.
func WithEngineOptions(opts ...licensing.Option) Option {
	return func(f *Factory) { f.engineOpts = append(f.engineOpts, opts...) }
}

// New creates a factory. Ledgers it deploys are registered in registry, and
// each engine gets its own store from newStore.
func New(registry *paymentledger.Registry, newStore func() store.Store, opts ...Option) *Factory {
	f := &Factory{
		registry:    registry,
		newStore:    newStore,
		validate:    validator.New(validator.WithRequiredStructEnabled()),
		logger:      slog.Default(),
		address:     common.BytesToAddress(crypto.Keccak256([]byte("licensing/factory"))),
		deployments: make(map[string]*Deployment),
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// Deploy validates p, deploys a payment ledger when p names none, then
// constructs and starts an engine and checks it reports the requested wiring.
func (f *Factory) Deploy(ctx context.Context, p Params) (*Deployment, error) {
	if err := f.validate.Struct(p); err != nil {
		return nil, fmt.Errorf("%w: %w", licensing.ErrInvalidInput, err)
	}

	owner := common.HexToAddress(p.Owner)
	ledgerAddr, deployed, err := f.paymentLedger(p, owner)
	if err != nil {
		return nil, err
	}

	depID := id.NewDeploymentID()
	opts := append(slices.Clone(f.engineOpts),
		licensing.WithDeploymentID(depID),
		licensing.WithLogger(f.logger.With("deployment_id", depID.String())),
	)
	// A deployed ledger is unregistered again if the engine never comes up.
	if deployed != nil {
		if err := f.registry.Register(deployed); err != nil {
			return nil, fmt.Errorf("factory: register ledger: %w", err)
		}
	}
	fail := func(err error) (*Deployment, error) {
		if deployed != nil {
			f.registry.Unregister(ledgerAddr)
		}
		return nil, err
	}

	s := f.newStore()
	engine, err := licensing.New(s, f.registry, licensing.Params{
		Owner:         owner,
		Name:          p.Name,
		Symbol:        p.Symbol,
		BaseURI:       p.BaseURI,
		MintPrice:     p.MintPrice,
		PaymentLedger: ledgerAddr,
	}, opts...)
	if err != nil {
		if s != nil {
			_ = s.Close() //nolint:errcheck // already failing
		}
		return fail(err)
	}
	if err := engine.Start(ctx); err != nil {
		_ = s.Close() //nolint:errcheck // already failing
		return fail(err)
	}

	if err := verifyWiring(engine, ledgerAddr, p.MintPrice); err != nil {
		_ = engine.Stop() //nolint:errcheck // already failing
		return fail(err)
	}

	d := &Deployment{
		ID:            depID,
		Engine:        engine,
		PaymentLedger: ledgerAddr,
		CreatedAt:     time.Now().UTC(),
	}

	f.mu.Lock()
	f.deployments[depID.String()] = d
	f.mu.Unlock()

	f.logger.Info("licensing engine deployed",
		"deployment_id", depID.String(),
		"payment_ledger", ledgerAddr.Hex(),
		"engine_address", engine.Address().Hex(),
	)
	return d, nil
}

// paymentLedger resolves the requested ledger or deploys a new one. A newly
// deployed ledger is returned unregistered.
func (f *Factory) paymentLedger(p Params, owner common.Address) (common.Address, *ledgermem.Ledger, error) {
	if p.PaymentLedger != "" {
		addr := common.HexToAddress(p.PaymentLedger)
		if _, err := f.registry.Resolve(addr); err != nil {
			return common.Address{}, nil, fmt.Errorf("factory: %w", err)
		}
		return addr, nil, nil
	}

	f.mu.Lock()
	addr := crypto.CreateAddress(f.address, f.nonce)
	f.nonce++
	f.mu.Unlock()

	opts := []ledgermem.Option{}
	if p.TokenName != "" {
		opts = append(opts, ledgermem.WithName(p.TokenName))
	}
	if p.TokenSymbol != "" {
		opts = append(opts, ledgermem.WithSymbol(p.TokenSymbol))
	}
	if p.TokenDecimals > 0 {
		opts = append(opts, ledgermem.WithDecimals(p.TokenDecimals))
	}
	led := ledgermem.New(addr, opts...)
	if !p.InitialSupply.IsZero() {
		if err := led.Mint(owner, p.InitialSupply); err != nil {
			return common.Address{}, nil, fmt.Errorf("factory: mint initial supply: %w", err)
		}
	}
	return addr, led, nil
}

// verifyWiring reads the engine back through its public accessors.
func verifyWiring(engine *licensing.Engine, ledger common.Address, price types.Amount) error {
	if got := engine.PaymentLedger(); got != ledger {
		return fmt.Errorf("%w: payment ledger %s, want %s", ErrWiringMismatch, got.Hex(), ledger.Hex())
	}
	if got := engine.MintPrice(); got != price {
		return fmt.Errorf("%w: mint price %s, want %s", ErrWiringMismatch, got, price)
	}
	return nil
}

// Get returns a deployment by id.
func (f *Factory) Get(depID id.DeploymentID) (*Deployment, error) {
	f.mu.RLock()
	defer f.mu.RUnlock()

	if d, ok := f.deployments[depID.String()]; ok {
		return d, nil
	}
	return nil, fmt.Errorf("factory: deployment %s: %w", depID, licensing.ErrNotFound)
}

// List returns all deployments, oldest first.
func (f *Factory) List() []*Deployment {
	f.mu.RLock()
	defer f.mu.RUnlock()

	out := make([]*Deployment, 0, len(f.deployments))
	for _, d := range f.deployments {
		out = append(out, d)
	}
	slices.SortFunc(out, func(a, b *Deployment) int {
		return a.CreatedAt.Compare(b.CreatedAt)
	})
	return out
}

// Close stops every deployed engine.
func (f *Factory) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()

	var errs licensing.MultiError
	for _, d := range f.deployments {
		errs.Add(d.Engine.Stop())
	}
	if errs.HasErrors() {
		return errs
	}
	return nil
}
