package extension

import (
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/kelseyhightower/envconfig"
)

// EnvPrefix is the environment variable prefix read when no config file
// section is present, e.g. LICENSING_OWNER.
const EnvPrefix = "LICENSING"

// Config holds the licensing extension configuration.
// Fields can be set programmatically via Option functions, loaded from
// YAML configuration files (under "extensions.licensing" or "licensing" keys)
// or read from LICENSING_* environment variables.
type Config struct {
	// DisableRoutes prevents the read API handler from being built.
	DisableRoutes bool `json:"disable_routes" mapstructure:"disable_routes" yaml:"disable_routes" envconfig:"DISABLE_ROUTES"`

	// BasePath is the URL prefix the host should mount the read API under
	// (default: "/licensing").
	BasePath string `json:"base_path" mapstructure:"base_path" yaml:"base_path" envconfig:"BASE_PATH"`

	// Owner is the hex address allowed to reconfigure the deployment and
	// withdraw from its treasury.
	Owner string `json:"owner" mapstructure:"owner" yaml:"owner" envconfig:"OWNER" validate:"required,eth_addr"`

	Name    string `json:"name" mapstructure:"name" yaml:"name" envconfig:"NAME"`
	Symbol  string `json:"symbol" mapstructure:"symbol" yaml:"symbol" envconfig:"SYMBOL"`
	BaseURI string `json:"base_uri" mapstructure:"base_uri" yaml:"base_uri" envconfig:"BASE_URI" validate:"omitempty,url"`

	// MintPrice is the adoption price in the payment ledger's smallest unit.
	MintPrice uint64 `json:"mint_price" mapstructure:"mint_price" yaml:"mint_price" envconfig:"MINT_PRICE"`

	// PaymentLedger is the hex address of the accepted payment ledger.
	PaymentLedger string `json:"payment_ledger" mapstructure:"payment_ledger" yaml:"payment_ledger" envconfig:"PAYMENT_LEDGER" validate:"required,eth_addr"`

	// DeploymentID resumes an existing deployment. Empty starts a new one.
	DeploymentID string `json:"deployment_id" mapstructure:"deployment_id" yaml:"deployment_id" envconfig:"DEPLOYMENT_ID"`

	// PluginTimeout bounds each plugin hook call (default: 5s).
	PluginTimeout time.Duration `json:"plugin_timeout" mapstructure:"plugin_timeout" yaml:"plugin_timeout" envconfig:"PLUGIN_TIMEOUT"`

	// RequireConfig requires config to be present in YAML files.
	// If true and no config is found, Register returns an error.
	RequireConfig bool `json:"-" yaml:"-" ignored:"true"`
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() Config {
	return Config{
		BasePath:      "/licensing",
		PluginTimeout: 5 * time.Second,
	}
}

var validate = validator.New(validator.WithRequiredStructEnabled())

// Validate checks addresses and URLs.
func (c Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("licensing: invalid extension config: %w", err)
	}
	return nil
}

// configFromEnv reads LICENSING_* variables. ok is false when none of the
// identifying fields are set.
func configFromEnv() (cfg Config, ok bool, err error) {
	if err := envconfig.Process(EnvPrefix, &cfg); err != nil {
		return Config{}, false, fmt.Errorf("licensing: read environment: %w", err)
	}
	return cfg, cfg.Owner != "" || cfg.PaymentLedger != "", nil
}

// mergeWithDefaults fills zero-valued fields with defaults.
func mergeWithDefaults(cfg Config) Config {
	defaults := DefaultConfig()
	if cfg.BasePath == "" {
		cfg.BasePath = defaults.BasePath
	}
	if cfg.PluginTimeout == 0 {
		cfg.PluginTimeout = defaults.PluginTimeout
	}
	return cfg
}

// mergeConfigurations merges loaded config with programmatic options.
// Loaded values take precedence; programmatic values fill gaps.
func mergeConfigurations(loaded, programmatic Config) Config {
	if programmatic.DisableRoutes {
		loaded.DisableRoutes = true
	}

	fill := func(dst *string, src string) {
		if *dst == "" {
			*dst = src
		}
	}
	fill(&loaded.BasePath, programmatic.BasePath)
	fill(&loaded.Owner, programmatic.Owner)
	fill(&loaded.Name, programmatic.Name)
	fill(&loaded.Symbol, programmatic.Symbol)
	fill(&loaded.BaseURI, programmatic.BaseURI)
	fill(&loaded.PaymentLedger, programmatic.PaymentLedger)
	fill(&loaded.DeploymentID, programmatic.DeploymentID)

	if loaded.MintPrice == 0 {
		loaded.MintPrice = programmatic.MintPrice
	}
	if loaded.PluginTimeout == 0 {
		loaded.PluginTimeout = programmatic.PluginTimeout
	}
	loaded.RequireConfig = programmatic.RequireConfig

	return mergeWithDefaults(loaded)
}
