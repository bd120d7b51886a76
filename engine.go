package licensing

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"strconv"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"

	"github.com/xraph/licensing/event"
	"github.com/xraph/licensing/id"
	"github.com/xraph/licensing/license"
	"github.com/xraph/licensing/paymentledger"
	"github.com/xraph/licensing/plugin"
	"github.com/xraph/licensing/settings"
	"github.com/xraph/licensing/store"
	"github.com/xraph/licensing/types"
)

// State is the sale state of an engine.
type State string

const (
	StateActive State = "active"
	StatePaused State = "paused"
)

// Params are the construction-time values of a deployment. Owner, Name,
// Symbol and BaseURI never change afterwards.
type Params struct {
	Owner         common.Address
	Name          string
	Symbol        string
	BaseURI       string
	MintPrice     types.Amount
	PaymentLedger common.Address
}

// Engine issues licenses against payment and manages the deployment's
// configuration and treasury. All mutations are serialized; events are
// emitted after the change is committed.
type Engine struct {
	mu sync.RWMutex

	store    store.Store
	resolver paymentledger.Resolver
	plugins  *plugin.Registry
	logger   *slog.Logger

	depID   id.DeploymentID
	address common.Address
	cfg     *settings.Config
	issued  uint64
	started bool

	optErrs MultiError
}

// Option configures an Engine.
type Option func(*Engine)

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(e *Engine) {
		e.logger = logger
		e.plugins.WithLogger(logger)
	}
}

// WithPlugin registers a plugin. A duplicate name makes New fail.
func WithPlugin(p plugin.Plugin) Option {
	return func(e *Engine) {
		e.optErrs.Add(e.plugins.Register(p))
	}
}

// WithPluginTimeout bounds each plugin hook call.
func WithPluginTimeout(d time.Duration) Option {
	return func(e *Engine) {
		e.plugins.WithTimeout(d)
	}
}

// WithDeploymentID resumes an existing deployment instead of creating a new one.
func WithDeploymentID(depID id.DeploymentID) Option {
	return func(e *Engine) {
		e.depID = depID
	}
}

// WithAddress sets the treasury account mint payments are collected into.
// By default it is derived from the deployment id.
func WithAddress(addr common.Address) Option {
	return func(e *Engine) {
		e.address = addr
	}
}

// TreasuryAddress derives the default treasury account of a deployment.
func TreasuryAddress(depID id.DeploymentID) common.Address {
	return common.BytesToAddress(crypto.Keccak256([]byte(depID.String())))
}

// New creates an engine. Call Start before any mutating operation.
func New(s store.Store, resolver paymentledger.Resolver, params Params, opts ...Option) (*Engine, error) {
	e := &Engine{
		store:    s,
		resolver: resolver,
		plugins:  plugin.NewRegistry(),
		logger:   slog.Default(),
	}

	for _, opt := range opts {
		opt(e)
	}

	if s == nil {
		e.optErrs.Add(ValidationError{Field: "store", Message: "required"})
	}
	if resolver == nil {
		e.optErrs.Add(ValidationError{Field: "resolver", Message: "required"})
	}
	if params.Owner == (common.Address{}) {
		e.optErrs.Add(ValidationError{Field: "owner", Message: "must not be the zero address"})
	}
	if params.PaymentLedger == (common.Address{}) {
		e.optErrs.Add(ValidationError{Field: "payment_ledger", Message: "must not be the zero address"})
	}
	if e.optErrs.HasErrors() {
		return nil, e.optErrs
	}

	if e.depID.IsNil() {
		e.depID = id.NewDeploymentID()
	}
	if e.address == (common.Address{}) {
		e.address = TreasuryAddress(e.depID)
	}

	e.cfg = &settings.Config{
		Entity:        types.NewEntity(),
		DeploymentID:  e.depID,
		Owner:         params.Owner,
		Name:          params.Name,
		Symbol:        params.Symbol,
		BaseURI:       params.BaseURI,
		MintPrice:     params.MintPrice,
		PaymentLedger: params.PaymentLedger,
	}

	return e, nil
}

// Start migrates the store and loads the deployment's configuration and
// issuance counter, creating the configuration on first start.
func (e *Engine) Start(ctx context.Context) error {
	e.mu.Lock()

	if e.started {
		e.mu.Unlock()
		return nil
	}

	if err := e.store.Migrate(ctx); err != nil {
		e.mu.Unlock()
		return fmt.Errorf("licensing: migrate: %w", err)
	}

	stored, err := e.store.GetConfig(ctx, e.depID)
	switch {
	case err == nil:
		e.cfg = stored
		e.logger.Info("licensing deployment resumed", "deployment_id", e.depID.String())
	case errors.Is(err, ErrNotFound):
		if err := e.store.CreateConfig(ctx, e.cfg); err != nil {
			e.mu.Unlock()
			return fmt.Errorf("licensing: create config: %w", err)
		}
	default:
		e.mu.Unlock()
		return fmt.Errorf("licensing: load config: %w", err)
	}

	last, err := e.store.LastLicenseID(ctx, e.depID)
	if err != nil {
		e.mu.Unlock()
		return fmt.Errorf("licensing: load license counter: %w", err)
	}
	e.issued = last
	e.started = true

	e.logger.Info("licensing engine started",
		"deployment_id", e.depID.String(),
		"address", e.address.Hex(),
		"payment_ledger", e.cfg.PaymentLedger.Hex(),
		"mint_price", e.cfg.MintPrice.String(),
		"paused", e.cfg.Paused,
		"issued", e.issued,
	)
	e.mu.Unlock()

	e.plugins.EmitInit(ctx, e)
	return nil
}

// Stop notifies plugins and closes the store.
func (e *Engine) Stop() error {
	e.mu.Lock()
	wasStarted := e.started
	e.started = false
	e.mu.Unlock()

	if wasStarted {
		e.plugins.EmitShutdown(context.Background())
	}
	return e.store.Close()
}

// Plugins returns the engine's plugin registry.
func (e *Engine) Plugins() *plugin.Registry { return e.plugins }

// DeploymentID returns the id scoping this deployment's records.
func (e *Engine) DeploymentID() id.DeploymentID { return e.depID }

// Address returns the treasury account mint payments are collected into.
func (e *Engine) Address() common.Address { return e.address }

// ──────────────────────────────────────────────────
// Configuration
// ──────────────────────────────────────────────────

// SetMintPrice changes the price of one adoption.
func (e *Engine) SetMintPrice(ctx context.Context, caller common.Address, price types.Amount) error {
	const op = "SetMintPrice"

	var ev event.PriceChanged
	err := e.updateConfig(ctx, op, caller, func(c *settings.Config) error {
		if err := rejectIfEqual(op, "mint price", c.MintPrice, price); err != nil {
			return err
		}
		ev = event.PriceChanged{Meta: event.NewMeta(e.depID, caller), Old: c.MintPrice, New: price}
		c.MintPrice = price
		return nil
	})
	if err != nil {
		return err
	}

	e.logger.Info("mint price changed", "old", ev.Old.String(), "new", ev.New.String())
	e.plugins.EmitPriceChanged(ctx, ev)
	return nil
}

// SetPaused opens or closes the sale.
func (e *Engine) SetPaused(ctx context.Context, caller common.Address, paused bool) error {
	const op = "SetPaused"

	var ev event.PauseChanged
	err := e.updateConfig(ctx, op, caller, func(c *settings.Config) error {
		if err := rejectIfEqual(op, "paused", c.Paused, paused); err != nil {
			return err
		}
		ev = event.PauseChanged{Meta: event.NewMeta(e.depID, caller), Old: c.Paused, New: paused}
		c.Paused = paused
		return nil
	})
	if err != nil {
		return err
	}

	e.logger.Info("sale state changed", "paused", paused)
	e.plugins.EmitPauseChanged(ctx, ev)
	return nil
}

// SetPaymentLedger switches the ledger future adoptions are paid in.
// Licenses already issued keep the ledger they were paid in. The zero
// address fails with ErrInvalidInput.
func (e *Engine) SetPaymentLedger(ctx context.Context, caller, ledger common.Address) error {
	const op = "SetPaymentLedger"

	var ev event.PaymentLedgerChanged
	err := e.updateConfig(ctx, op, caller, func(c *settings.Config) error {
		if err := rejectIfEqual(op, "payment ledger", c.PaymentLedger, ledger); err != nil {
			return err
		}
		if ledger == (common.Address{}) {
			return newError(ErrInvalidInput, op, "payment ledger must not be the zero address")
		}
		ev = event.PaymentLedgerChanged{Meta: event.NewMeta(e.depID, caller), Old: c.PaymentLedger, New: ledger}
		c.PaymentLedger = ledger
		return nil
	})
	if err != nil {
		return err
	}

	e.logger.Info("payment ledger changed", "old", ev.Old.Hex(), "new", ev.New.Hex())
	e.plugins.EmitPaymentLedgerChanged(ctx, ev)
	return nil
}

// updateConfig applies mutate to a copy of the configuration, persists it and
// only then swaps it in. mutate returning an error leaves everything as is.
func (e *Engine) updateConfig(ctx context.Context, op string, caller common.Address, mutate func(*settings.Config) error) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if err := e.checkOwner(op, caller); err != nil {
		return err
	}

	next := e.cfg.Clone()
	if err := mutate(&next); err != nil {
		return err
	}
	next.Touch()

	if err := e.store.UpdateConfig(ctx, &next); err != nil {
		return fmt.Errorf("licensing: %s: persist config: %w", op, err)
	}
	*e.cfg = next
	return nil
}

// MintPrice returns the current price of one adoption.
func (e *Engine) MintPrice() types.Amount {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.cfg.MintPrice
}

// Paused reports whether the sale is closed.
func (e *Engine) Paused() bool {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.cfg.Paused
}

// State returns StatePaused or StateActive.
func (e *Engine) State() State {
	if e.Paused() {
		return StatePaused
	}
	return StateActive
}

// PaymentLedger returns the ledger adoptions are currently paid in.
func (e *Engine) PaymentLedger() common.Address {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.cfg.PaymentLedger
}

// Owner returns the administrative owner.
func (e *Engine) Owner() common.Address {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.cfg.Owner
}

// BaseURI returns the metadata base URI.
func (e *Engine) BaseURI() string {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.cfg.BaseURI
}

// Config returns a copy of the configuration record.
func (e *Engine) Config() settings.Config {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.cfg.Clone()
}

// ──────────────────────────────────────────────────
// Issuance
// ──────────────────────────────────────────────────

// Adopt charges the caller the current mint price in the configured payment
// ledger and issues the next license to them. The caller must have approved
// the engine's Address for at least the price beforehand.
func (e *Engine) Adopt(ctx context.Context, caller common.Address, attrs license.Attributes) (uint64, error) {
	lic, rejected, err := e.adopt(ctx, caller, attrs)
	if err != nil {
		if rejected != nil {
			e.plugins.EmitAdoptRejected(ctx, *rejected)
		}
		return 0, err
	}

	e.logger.Info("license issued",
		"license_id", lic.ID,
		"holder", caller.Hex(),
		"price", lic.PricePaid.String(),
	)
	e.plugins.EmitLicenseIssued(ctx, event.Issued{
		Meta:          event.NewMeta(e.depID, caller),
		Holder:        caller,
		LicenseID:     lic.ID,
		PricePaid:     lic.PricePaid,
		PaymentLedger: lic.PaymentLedger,
	})
	return lic.ID, nil
}

func (e *Engine) adopt(ctx context.Context, caller common.Address, attrs license.Attributes) (*license.License, *event.AdoptRejected, error) {
	const op = "Adopt"

	e.mu.Lock()
	defer e.mu.Unlock()

	if err := e.ready(op); err != nil {
		return nil, nil, err
	}
	if caller == (common.Address{}) {
		return nil, nil, newError(ErrInvalidInput, op, "caller must not be the zero address")
	}
	if caller == e.address {
		return nil, nil, newError(ErrInvalidInput, op, "caller must not be the treasury")
	}
	if e.issued == math.MaxUint64 {
		return nil, nil, newError(ErrInvalidInput, op, "license ids exhausted")
	}

	price := e.cfg.MintPrice
	ledgerAddr := e.cfg.PaymentLedger
	reject := func(err *Error) (*license.License, *event.AdoptRejected, error) {
		e.logger.Debug("adoption rejected", "holder", caller.Hex(), "reason", err.Reason, "error", err.Err)
		return nil, &event.AdoptRejected{
			Meta:   event.NewMeta(e.depID, caller),
			Holder: caller,
			Price:  price,
			Kind:   err.Kind.Error(),
			Reason: err.Reason,
		}, err
	}

	if e.cfg.Paused {
		return reject(newError(ErrSaleInactive, op, "sale is not active"))
	}

	var payment paymentledger.Ledger
	if !price.IsZero() {
		led, err := e.resolver.Resolve(ledgerAddr)
		if err != nil {
			return reject(wrapError(ErrInsufficientPayment, op, "payment ledger unavailable", err))
		}
		if err := led.TransferFrom(ctx, e.address, caller, e.address, price); err != nil {
			return reject(wrapError(ErrInsufficientPayment, op, "payment rejected", err))
		}
		payment = led
	}

	lic := &license.License{
		Entity:        types.NewEntity(),
		DeploymentID:  e.depID,
		ID:            e.issued + 1,
		Owner:         caller,
		Attributes:    attrs,
		PricePaid:     price,
		PaymentLedger: ledgerAddr,
	}
	if err := e.store.CreateLicense(ctx, lic); err != nil {
		if payment != nil {
			e.refund(ctx, payment, caller, price, lic.ID)
		}
		return nil, nil, fmt.Errorf("licensing: %s: persist license: %w", op, err)
	}

	e.issued = lic.ID
	return lic, nil, nil
}

// refund returns a payment whose license could not be stored.
func (e *Engine) refund(ctx context.Context, led paymentledger.Ledger, to common.Address, amount types.Amount, licenseID uint64) {
	if err := led.Transfer(context.WithoutCancel(ctx), e.address, to, amount); err != nil {
		e.logger.Error("failed to refund adoption payment",
			"license_id", licenseID,
			"holder", to.Hex(),
			"amount", amount.String(),
			"ledger", led.Address().Hex(),
			"error", err,
		)
		return
	}
	e.logger.Warn("adoption payment refunded",
		"license_id", licenseID,
		"holder", to.Hex(),
		"amount", amount.String(),
	)
}

// SetLicenseDetail overwrites a license's attributes. Only its owner may do
// so, and it is allowed while the sale is paused.
func (e *Engine) SetLicenseDetail(ctx context.Context, caller common.Address, attrs license.Attributes, licenseID uint64) error {
	const op = "SetLicenseDetail"

	ev, err := func() (event.DetailChanged, error) {
		e.mu.Lock()
		defer e.mu.Unlock()

		if err := e.ready(op); err != nil {
			return event.DetailChanged{}, err
		}
		lic, err := e.getLicense(ctx, op, licenseID)
		if err != nil {
			return event.DetailChanged{}, err
		}
		if lic.Owner != caller {
			return event.DetailChanged{}, newError(ErrNotLicenseOwner, op, "caller is not the license owner")
		}
		if err := rejectIfEqual(op, "attributes", lic.Attributes, attrs); err != nil {
			return event.DetailChanged{}, err
		}
		if err := e.store.UpdateAttributes(ctx, e.depID, licenseID, attrs); err != nil {
			return event.DetailChanged{}, fmt.Errorf("licensing: %s: persist attributes: %w", op, err)
		}
		return event.DetailChanged{
			Meta:      event.NewMeta(e.depID, caller),
			LicenseID: licenseID,
			Old:       lic.Attributes,
			New:       attrs,
		}, nil
	}()
	if err != nil {
		return err
	}

	e.logger.Debug("license detail changed", "license_id", licenseID)
	e.plugins.EmitDetailChanged(ctx, ev)
	return nil
}

// TransferLicense hands a license to another holder.
func (e *Engine) TransferLicense(ctx context.Context, caller, to common.Address, licenseID uint64) error {
	const op = "TransferLicense"

	ev, err := func() (event.Transferred, error) {
		e.mu.Lock()
		defer e.mu.Unlock()

		if err := e.ready(op); err != nil {
			return event.Transferred{}, err
		}
		if to == (common.Address{}) {
			return event.Transferred{}, newError(ErrInvalidInput, op, "recipient must not be the zero address")
		}
		lic, err := e.getLicense(ctx, op, licenseID)
		if err != nil {
			return event.Transferred{}, err
		}
		if lic.Owner != caller {
			return event.Transferred{}, newError(ErrNotLicenseOwner, op, "caller is not the license owner")
		}
		if to == caller {
			return event.Transferred{}, newError(ErrInvalidInput, op, "recipient already owns the license")
		}
		if err := e.store.TransferLicense(ctx, e.depID, licenseID, to); err != nil {
			return event.Transferred{}, fmt.Errorf("licensing: %s: persist owner: %w", op, err)
		}
		return event.Transferred{
			Meta:      event.NewMeta(e.depID, caller),
			LicenseID: licenseID,
			From:      caller,
			To:        to,
		}, nil
	}()
	if err != nil {
		return err
	}

	e.logger.Info("license transferred", "license_id", licenseID, "from", caller.Hex(), "to", to.Hex())
	e.plugins.EmitLicenseTransferred(ctx, ev)
	return nil
}

// TotalIssued returns the number of licenses issued so far.
func (e *Engine) TotalIssued() uint64 {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.issued
}

// License returns the full record of a license.
func (e *Engine) License(ctx context.Context, licenseID uint64) (*license.License, error) {
	return e.getLicense(ctx, "License", licenseID)
}

// LicenseDetail returns a license's attributes.
func (e *Engine) LicenseDetail(ctx context.Context, licenseID uint64) (license.Attributes, error) {
	lic, err := e.getLicense(ctx, "LicenseDetail", licenseID)
	if err != nil {
		return license.Attributes{}, err
	}
	return lic.Attributes, nil
}

// OwnerOf returns the current holder of a license.
func (e *Engine) OwnerOf(ctx context.Context, licenseID uint64) (common.Address, error) {
	lic, err := e.getLicense(ctx, "OwnerOf", licenseID)
	if err != nil {
		return common.Address{}, err
	}
	return lic.Owner, nil
}

// OwnedLicenseIDs returns the ids held by holder in ascending order.
func (e *Engine) OwnedLicenseIDs(ctx context.Context, holder common.Address) ([]uint64, error) {
	ids, err := e.store.ListOwned(ctx, e.depID, holder)
	if err != nil {
		return nil, fmt.Errorf("licensing: OwnedLicenseIDs: %w", err)
	}
	if ids == nil {
		ids = []uint64{}
	}
	return ids, nil
}

// BalanceOf returns how many licenses holder has.
func (e *Engine) BalanceOf(ctx context.Context, holder common.Address) (int, error) {
	ids, err := e.OwnedLicenseIDs(ctx, holder)
	if err != nil {
		return 0, err
	}
	return len(ids), nil
}

// TokenURI returns the metadata URI of an issued license.
func (e *Engine) TokenURI(ctx context.Context, licenseID uint64) (string, error) {
	if _, err := e.getLicense(ctx, "TokenURI", licenseID); err != nil {
		return "", err
	}
	return e.BaseURI() + strconv.FormatUint(licenseID, 10), nil
}

func (e *Engine) getLicense(ctx context.Context, op string, licenseID uint64) (*license.License, error) {
	lic, err := e.store.GetLicense(ctx, e.depID, licenseID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, newError(ErrNotFound, op, "license "+strconv.FormatUint(licenseID, 10)+" does not exist")
		}
		return nil, fmt.Errorf("licensing: %s: load license: %w", op, err)
	}
	return lic, nil
}

// ──────────────────────────────────────────────────
// Treasury
// ──────────────────────────────────────────────────

// Withdraw pays amount out of the treasury's balance in ledgerAddr to the owner.
// Balances left in a previously configured ledger stay withdrawable. A zero
// amount is covered by any balance and still emits Withdrawn.
func (e *Engine) Withdraw(ctx context.Context, caller common.Address, amount types.Amount, ledgerAddr common.Address) error {
	const op = "Withdraw"

	ev, err := func() (event.Withdrawn, error) {
		e.mu.Lock()
		defer e.mu.Unlock()

		if err := e.checkOwner(op, caller); err != nil {
			return event.Withdrawn{}, err
		}
		led, err := e.resolveLedger(op, ledgerAddr)
		if err != nil {
			return event.Withdrawn{}, err
		}

		balance, err := led.BalanceOf(ctx, e.address)
		if err != nil {
			return event.Withdrawn{}, wrapError(ErrInsufficientTreasury, op, "treasury balance unavailable", err)
		}
		if !balance.Covers(amount) {
			return event.Withdrawn{}, newError(ErrInsufficientTreasury, op, "not enough balance")
		}
		if err := led.Transfer(ctx, e.address, e.cfg.Owner, amount); err != nil {
			return event.Withdrawn{}, wrapError(ErrInsufficientTreasury, op, "transfer rejected", err)
		}

		return event.Withdrawn{
			Meta:         event.NewMeta(e.depID, caller),
			WithdrawalID: id.NewWithdrawalID(),
			Amount:       amount,
			Ledger:       ledgerAddr,
			To:           e.cfg.Owner,
		}, nil
	}()
	if err != nil {
		return err
	}

	e.logger.Info("treasury withdrawal",
		"withdrawal_id", ev.WithdrawalID.String(),
		"amount", amount.String(),
		"ledger", ledgerAddr.Hex(),
	)
	e.plugins.EmitWithdrawn(ctx, ev)
	return nil
}

// TreasuryBalance returns the treasury's balance in the given ledger.
func (e *Engine) TreasuryBalance(ctx context.Context, ledgerAddr common.Address) (types.Amount, error) {
	const op = "TreasuryBalance"

	led, err := e.resolveLedger(op, ledgerAddr)
	if err != nil {
		return 0, err
	}
	balance, err := led.BalanceOf(ctx, e.address)
	if err != nil {
		return 0, fmt.Errorf("licensing: %s: %w", op, err)
	}
	return balance, nil
}

func (e *Engine) resolveLedger(op string, addr common.Address) (paymentledger.Ledger, error) {
	led, err := e.resolver.Resolve(addr)
	if err != nil {
		return nil, wrapError(ErrNotFound, op, "unknown payment ledger "+addr.Hex(), err)
	}
	return led, nil
}

// ──────────────────────────────────────────────────
// Guards
// ──────────────────────────────────────────────────

// ready fails until Start has succeeded. Caller holds e.mu.
func (e *Engine) ready(op string) error {
	if !e.started {
		return newError(ErrNotStarted, op, "engine not started")
	}
	return nil
}

// checkOwner also implies ready. Caller holds e.mu.
func (e *Engine) checkOwner(op string, caller common.Address) error {
	if err := e.ready(op); err != nil {
		return err
	}
	if caller != e.cfg.Owner {
		return newError(ErrUnauthorized, op, "caller is not the owner")
	}
	return nil
}

// rejectIfEqual refuses updates that would not change anything.
func rejectIfEqual[T comparable](op, field string, current, next T) error {
	if current == next {
		return newError(ErrNoOpUpdate, op, "new "+field+" identical to current")
	}
	return nil
}
