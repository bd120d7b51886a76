// Package extension provides the Forge extension adapter for the licensing
// engine.
//
// It implements the forge.Extension interface to integrate licensing
// into a Forge application with DI registration and lifecycle management.
//
// Configuration can be provided programmatically via Option functions,
// via YAML configuration files under "extensions.licensing" or "licensing"
// keys, or via LICENSING_* environment variables.
package extension

import (
	"context"
	"errors"
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/xraph/forge"
	"github.com/xraph/vessel"

	"github.com/xraph/licensing"
	"github.com/xraph/licensing/api"
	"github.com/xraph/licensing/id"
	"github.com/xraph/licensing/paymentledger"
	ledgermem "github.com/xraph/licensing/paymentledger/memory"
	"github.com/xraph/licensing/store"
	"github.com/xraph/licensing/store/memory"
	"github.com/xraph/licensing/types"
)

// ExtensionName is the name registered with Forge.
const ExtensionName = "licensing"

// ExtensionDescription is the human-readable description.
const ExtensionDescription = "License issuance paid through a payment ledger"

// ExtensionVersion is the semantic version.
const ExtensionVersion = "0.1.0"

// Ensure Extension implements forge.Extension at compile time.
var _ forge.Extension = (*Extension)(nil)

// Extension adapts the licensing engine as a Forge extension.
type Extension struct {
	*forge.BaseExtension

	config     Config
	engine     *licensing.Engine
	handler    *api.Handler
	store      store.Store
	resolver   paymentledger.Resolver
	engineOpts []licensing.Option
}

// New creates a new licensing Forge extension with the given options.
func New(opts ...Option) *Extension {
	e := &Extension{
		BaseExtension: forge.NewBaseExtension(ExtensionName, ExtensionVersion, ExtensionDescription),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Engine returns the underlying engine. It is nil until Register is called.
func (e *Extension) Engine() *licensing.Engine { return e.engine }

// Handler returns the read API, or nil when routes are disabled.
func (e *Extension) Handler() *api.Handler { return e.handler }

// BasePath is where the host is expected to mount Handler.
func (e *Extension) BasePath() string { return e.config.BasePath }

// Register implements [forge.Extension]. It loads configuration,
// builds the engine, and registers it in the DI container.
func (e *Extension) Register(fapp forge.App) error {
	if err := e.BaseExtension.Register(fapp); err != nil {
		return err
	}

	if err := e.loadConfiguration(); err != nil {
		return err
	}

	if err := e.build(); err != nil {
		return err
	}

	if err := vessel.Provide(fapp.Container(), func() (*licensing.Engine, error) {
		return e.engine, nil
	}); err != nil {
		return err
	}
	if e.handler == nil {
		return nil
	}
	return vessel.Provide(fapp.Container(), func() (*api.Handler, error) {
		return e.handler, nil
	})
}

// build constructs the engine and handler from the resolved config.
func (e *Extension) build() error {
	if err := e.config.Validate(); err != nil {
		return err
	}

	params, opts, err := engineParams(e.config)
	if err != nil {
		return err
	}

	if e.store == nil {
		e.store = memory.New()
	}
	if e.resolver == nil {
		e.resolver = paymentledger.NewRegistry(ledgermem.New(params.PaymentLedger))
	}

	eng, err := licensing.New(e.store, e.resolver, params, append(opts, e.engineOpts...)...)
	if err != nil {
		return err
	}
	e.engine = eng

	if !e.config.DisableRoutes {
		e.handler = api.NewHandler(eng)
	}
	return nil
}

// engineParams translates a validated Config into engine construction values.
func engineParams(cfg Config) (licensing.Params, []licensing.Option, error) {
	params := licensing.Params{
		Owner:         common.HexToAddress(cfg.Owner),
		Name:          cfg.Name,
		Symbol:        cfg.Symbol,
		BaseURI:       cfg.BaseURI,
		MintPrice:     types.Amount(cfg.MintPrice),
		PaymentLedger: common.HexToAddress(cfg.PaymentLedger),
	}

	var opts []licensing.Option
	if cfg.PluginTimeout > 0 {
		opts = append(opts, licensing.WithPluginTimeout(cfg.PluginTimeout))
	}
	if cfg.DeploymentID != "" {
		depID, err := id.ParseDeploymentID(cfg.DeploymentID)
		if err != nil {
			return licensing.Params{}, nil, fmt.Errorf("licensing: deployment_id: %w", err)
		}
		opts = append(opts, licensing.WithDeploymentID(depID))
	}
	return params, opts, nil
}

// Start implements [forge.Extension].
func (e *Extension) Start(ctx context.Context) error {
	if e.engine == nil {
		return errors.New("licensing: extension not initialized")
	}

	if err := e.engine.Start(ctx); err != nil {
		return err
	}

	e.Logger().Info("licensing: extension started",
		forge.F("deployment_id", e.engine.DeploymentID().String()),
		forge.F("address", e.engine.Address().Hex()),
	)
	e.MarkStarted()
	return nil
}

// Stop implements [forge.Extension].
func (e *Extension) Stop(_ context.Context) error {
	if e.engine != nil {
		if err := e.engine.Stop(); err != nil {
			e.MarkStopped()
			return err
		}
	}
	e.MarkStopped()
	return nil
}

// Health implements [forge.Extension].
func (e *Extension) Health(ctx context.Context) error {
	if e.store == nil {
		return errors.New("licensing: store not initialized")
	}
	return e.store.Ping(ctx)
}

// --- Config Loading ---

// loadConfiguration loads config from YAML files, the environment or
// programmatic sources, in that order of precedence.
func (e *Extension) loadConfiguration() error {
	programmaticConfig := e.config

	loaded, ok := e.tryLoadFromConfigFile()
	if !ok {
		if programmaticConfig.RequireConfig {
			return errors.New("licensing: configuration is required but not found in config files; " +
				"ensure 'extensions.licensing' or 'licensing' key exists in your config")
		}

		var err error
		loaded, ok, err = configFromEnv()
		if err != nil {
			return err
		}
	}

	if ok {
		e.config = mergeConfigurations(loaded, programmaticConfig)
	} else {
		e.config = mergeWithDefaults(programmaticConfig)
	}

	e.Logger().Debug("licensing: configuration loaded",
		forge.F("disable_routes", e.config.DisableRoutes),
		forge.F("base_path", e.config.BasePath),
		forge.F("owner", e.config.Owner),
		forge.F("payment_ledger", e.config.PaymentLedger),
		forge.F("mint_price", e.config.MintPrice),
		forge.F("deployment_id", e.config.DeploymentID),
	)

	return nil
}

// tryLoadFromConfigFile attempts to load config from YAML files.
func (e *Extension) tryLoadFromConfigFile() (Config, bool) {
	cm := e.App().Config()

	for _, key := range []string{"extensions.licensing", "licensing"} {
		if !cm.IsSet(key) {
			continue
		}
		var cfg Config
		if err := cm.Bind(key, &cfg); err != nil {
			e.Logger().Warn("licensing: failed to bind config",
				forge.F("key", key),
				forge.F("error", err.Error()),
			)
			continue
		}
		e.Logger().Debug("licensing: loaded config from file", forge.F("key", key))
		return cfg, true
	}

	return Config{}, false
}
