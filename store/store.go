// Package store defines the aggregate persistence interface for the
// licensing engine. Backends live in the sub-packages.
package store

import (
	"context"

	"github.com/ethereum/go-ethereum/common"

	"github.com/xraph/licensing/id"
	"github.com/xraph/licensing/license"
	"github.com/xraph/licensing/settings"
)

// Store is the unified storage interface for all licensing entities.
// Methods are declared explicitly rather than by embedding the
// sub-interfaces so a backend's method set reads in one place.
type Store interface {
	// Config methods
	CreateConfig(ctx context.Context, c *settings.Config) error
	GetConfig(ctx context.Context, depID id.DeploymentID) (*settings.Config, error)
	UpdateConfig(ctx context.Context, c *settings.Config) error

	// License methods
	CreateLicense(ctx context.Context, l *license.License) error
	GetLicense(ctx context.Context, depID id.DeploymentID, licenseID uint64) (*license.License, error)
	UpdateAttributes(ctx context.Context, depID id.DeploymentID, licenseID uint64, attrs license.Attributes) error
	TransferLicense(ctx context.Context, depID id.DeploymentID, licenseID uint64, to common.Address) error
	ListOwned(ctx context.Context, depID id.DeploymentID, owner common.Address) ([]uint64, error)
	LastLicenseID(ctx context.Context, depID id.DeploymentID) (uint64, error)

	// Core methods
	Migrate(ctx context.Context) error
	Ping(ctx context.Context) error
	Close() error
}

var (
	_ settings.Store = Store(nil)
	_ license.Store  = Store(nil)
)
