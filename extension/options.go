package extension

import (
	"github.com/xraph/licensing"
	"github.com/xraph/licensing/paymentledger"
	"github.com/xraph/licensing/plugin"
	"github.com/xraph/licensing/store"
)

// Option configures the licensing Forge extension.
type Option func(*Extension)

// WithStore sets the store for the licensing engine. Defaults to the
// in-memory store.
func WithStore(s store.Store) Option {
	return func(e *Extension) {
		e.store = s
	}
}

// WithResolver sets how payment ledger addresses are resolved. Defaults to a
// registry holding one in-memory ledger at the configured address.
func WithResolver(r paymentledger.Resolver) Option {
	return func(e *Extension) {
		e.resolver = r
	}
}

// WithEngineOption passes a licensing.Option through to the underlying engine.
func WithEngineOption(opt licensing.Option) Option {
	return func(e *Extension) {
		e.engineOpts = append(e.engineOpts, opt)
	}
}

// WithPlugin registers a licensing plugin.
func WithPlugin(p plugin.Plugin) Option {
	return func(e *Extension) {
		e.engineOpts = append(e.engineOpts, licensing.WithPlugin(p))
	}
}

// WithConfig sets the Forge extension configuration.
func WithConfig(cfg Config) Option {
	return func(e *Extension) { e.config = cfg }
}

// WithDisableRoutes prevents the read API handler from being built.
func WithDisableRoutes() Option {
	return func(e *Extension) { e.config.DisableRoutes = true }
}

// WithBasePath sets the URL prefix for the read API.
func WithBasePath(path string) Option {
	return func(e *Extension) { e.config.BasePath = path }
}

// WithRequireConfig requires config to be present in YAML files.
// If true and no config is found, Register returns an error.
func WithRequireConfig(require bool) Option {
	return func(e *Extension) { e.config.RequireConfig = require }
}
