package plugin

import (
	"context"
	"fmt"
	"log/slog"
	"reflect"
	"sync"
	"time"

	"github.com/xraph/licensing/event"
)

// DefaultTimeout bounds a single hook call.
const DefaultTimeout = 5 * time.Second

// Registry manages registered plugins. Hook implementations are cached per
// interface at registration so dispatch never type-asserts.
type Registry struct {
	mu      sync.RWMutex
	plugins []Plugin
	logger  *slog.Logger
	timeout time.Duration

	onInit                 []OnInit
	onShutdown             []OnShutdown
	onPriceChanged         []OnPriceChanged
	onPauseChanged         []OnPauseChanged
	onPaymentLedgerChanged []OnPaymentLedgerChanged
	onLicenseIssued        []OnLicenseIssued
	onAdoptRejected        []OnAdoptRejected
	onDetailChanged        []OnDetailChanged
	onLicenseTransferred   []OnLicenseTransferred
	onWithdrawn            []OnWithdrawn
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		logger:  slog.Default(),
		timeout: DefaultTimeout,
	}
}

// WithLogger sets the logger for the registry.
func (r *Registry) WithLogger(logger *slog.Logger) *Registry {
	r.logger = logger
	return r
}

// WithTimeout sets the per-hook timeout. Non-positive values are ignored.
func (r *Registry) WithTimeout(d time.Duration) *Registry {
	if d > 0 {
		r.timeout = d
	}
	return r
}

// Register adds a plugin and caches the hooks it implements.
func (r *Registry) Register(p Plugin) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, existing := range r.plugins {
		if existing.Name() == p.Name() {
			return fmt.Errorf("plugin: duplicate registration: %s", p.Name())
		}
	}

	r.plugins = append(r.plugins, p)

	if v, ok := p.(OnInit); ok {
		r.onInit = append(r.onInit, v)
	}
	if v, ok := p.(OnShutdown); ok {
		r.onShutdown = append(r.onShutdown, v)
	}
	if v, ok := p.(OnPriceChanged); ok {
		r.onPriceChanged = append(r.onPriceChanged, v)
	}
	if v, ok := p.(OnPauseChanged); ok {
		r.onPauseChanged = append(r.onPauseChanged, v)
	}
	if v, ok := p.(OnPaymentLedgerChanged); ok {
		r.onPaymentLedgerChanged = append(r.onPaymentLedgerChanged, v)
	}
	if v, ok := p.(OnLicenseIssued); ok {
		r.onLicenseIssued = append(r.onLicenseIssued, v)
	}
	if v, ok := p.(OnAdoptRejected); ok {
		r.onAdoptRejected = append(r.onAdoptRejected, v)
	}
	if v, ok := p.(OnDetailChanged); ok {
		r.onDetailChanged = append(r.onDetailChanged, v)
	}
	if v, ok := p.(OnLicenseTransferred); ok {
		r.onLicenseTransferred = append(r.onLicenseTransferred, v)
	}
	if v, ok := p.(OnWithdrawn); ok {
		r.onWithdrawn = append(r.onWithdrawn, v)
	}

	r.logger.Info("plugin registered",
		"name", p.Name(),
		"interfaces", implementedHooks(p),
	)

	return nil
}

var hookTypes = []struct {
	name string
	typ  reflect.Type
}{
	{"OnInit", reflect.TypeOf((*OnInit)(nil)).Elem()},
	{"OnShutdown", reflect.TypeOf((*OnShutdown)(nil)).Elem()},
	{"OnPriceChanged", reflect.TypeOf((*OnPriceChanged)(nil)).Elem()},
	{"OnPauseChanged", reflect.TypeOf((*OnPauseChanged)(nil)).Elem()},
	{"OnPaymentLedgerChanged", reflect.TypeOf((*OnPaymentLedgerChanged)(nil)).Elem()},
	{"OnLicenseIssued", reflect.TypeOf((*OnLicenseIssued)(nil)).Elem()},
	{"OnAdoptRejected", reflect.TypeOf((*OnAdoptRejected)(nil)).Elem()},
	{"OnDetailChanged", reflect.TypeOf((*OnDetailChanged)(nil)).Elem()},
	{"OnLicenseTransferred", reflect.TypeOf((*OnLicenseTransferred)(nil)).Elem()},
	{"OnWithdrawn", reflect.TypeOf((*OnWithdrawn)(nil)).Elem()},
}

// implementedHooks lists the hook interfaces p implements, for logging.
func implementedHooks(p Plugin) []string {
	var names []string
	v := reflect.TypeOf(p)
	for _, h := range hookTypes {
		if v.Implements(h.typ) {
			names = append(names, h.name)
		}
	}
	return names
}

// Get returns a plugin by name, or nil.
func (r *Registry) Get(name string) Plugin {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, p := range r.plugins {
		if p.Name() == name {
			return p
		}
	}
	return nil
}

// List returns all registered plugins in registration order.
func (r *Registry) List() []Plugin {
	r.mu.RLock()
	defer r.mu.RUnlock()

	result := make([]Plugin, len(r.plugins))
	copy(result, r.plugins)
	return result
}

// Count returns the number of registered plugins.
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.plugins)
}

// ──────────────────────────────────────────────────
// Event emission
// ──────────────────────────────────────────────────

func (r *Registry) EmitInit(ctx context.Context, engine any) {
	dispatch(ctx, r, "OnInit", snapshot(r, &r.onInit), func(p OnInit) error {
		return p.OnInit(ctx, engine)
	})
}

func (r *Registry) EmitShutdown(ctx context.Context) {
	dispatch(ctx, r, "OnShutdown", snapshot(r, &r.onShutdown), func(p OnShutdown) error {
		return p.OnShutdown(ctx)
	})
}

func (r *Registry) EmitPriceChanged(ctx context.Context, e event.PriceChanged) {
	dispatch(ctx, r, "OnPriceChanged", snapshot(r, &r.onPriceChanged), func(p OnPriceChanged) error {
		return p.OnPriceChanged(ctx, e)
	})
}

func (r *Registry) EmitPauseChanged(ctx context.Context, e event.PauseChanged) {
	dispatch(ctx, r, "OnPauseChanged", snapshot(r, &r.onPauseChanged), func(p OnPauseChanged) error {
		return p.OnPauseChanged(ctx, e)
	})
}

func (r *Registry) EmitPaymentLedgerChanged(ctx context.Context, e event.PaymentLedgerChanged) {
	dispatch(ctx, r, "OnPaymentLedgerChanged", snapshot(r, &r.onPaymentLedgerChanged), func(p OnPaymentLedgerChanged) error {
		return p.OnPaymentLedgerChanged(ctx, e)
	})
}

func (r *Registry) EmitLicenseIssued(ctx context.Context, e event.Issued) {
	dispatch(ctx, r, "OnLicenseIssued", snapshot(r, &r.onLicenseIssued), func(p OnLicenseIssued) error {
		return p.OnLicenseIssued(ctx, e)
	})
}

func (r *Registry) EmitAdoptRejected(ctx context.Context, e event.AdoptRejected) {
	dispatch(ctx, r, "OnAdoptRejected", snapshot(r, &r.onAdoptRejected), func(p OnAdoptRejected) error {
		return p.OnAdoptRejected(ctx, e)
	})
}

func (r *Registry) EmitDetailChanged(ctx context.Context, e event.DetailChanged) {
	dispatch(ctx, r, "OnDetailChanged", snapshot(r, &r.onDetailChanged), func(p OnDetailChanged) error {
		return p.OnDetailChanged(ctx, e)
	})
}

func (r *Registry) EmitLicenseTransferred(ctx context.Context, e event.Transferred) {
	dispatch(ctx, r, "OnLicenseTransferred", snapshot(r, &r.onLicenseTransferred), func(p OnLicenseTransferred) error {
		return p.OnLicenseTransferred(ctx, e)
	})
}

func (r *Registry) EmitWithdrawn(ctx context.Context, e event.Withdrawn) {
	dispatch(ctx, r, "OnWithdrawn", snapshot(r, &r.onWithdrawn), func(p OnWithdrawn) error {
		return p.OnWithdrawn(ctx, e)
	})
}

// snapshot reads a cached hook list under the read lock.
func snapshot[P Plugin](r *Registry, list *[]P) []P {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return *list
}

// dispatch calls every plugin in order. Failures are logged, never returned:
// an observer must not be able to undo or block a committed change.
func dispatch[P Plugin](ctx context.Context, r *Registry, hook string, plugins []P, call func(P) error) {
	for _, p := range plugins {
		if err := r.callWithTimeout(ctx, p.Name(), func() error {
			return call(p)
		}); err != nil {
			r.logger.Warn("plugin hook failed",
				"hook", hook,
				"plugin", p.Name(),
				"error", err,
			)
		}
	}
}

// callWithTimeout runs fn, giving up after the registry timeout or when ctx ends.
func (r *Registry) callWithTimeout(ctx context.Context, pluginName string, fn func() error) error {
	done := make(chan error, 1)

	go func() {
		defer func() {
			if rec := recover(); rec != nil {
				done <- fmt.Errorf("plugin panic: %s: %v", pluginName, rec)
			}
		}()
		done <- fn()
	}()

	timer := time.NewTimer(r.timeout)
	defer timer.Stop()

	select {
	case err := <-done:
		return err
	case <-timer.C:
		return fmt.Errorf("plugin timeout: %s", pluginName)
	case <-ctx.Done():
		return ctx.Err()
	}
}
