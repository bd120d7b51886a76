package settings

import (
	"context"

	"github.com/xraph/licensing/id"
)

// Store persists one Config per deployment.
type Store interface {
	CreateConfig(ctx context.Context, c *Config) error
	GetConfig(ctx context.Context, depID id.DeploymentID) (*Config, error)
	UpdateConfig(ctx context.Context, c *Config) error
}
