package license

import (
	"context"

	"github.com/ethereum/go-ethereum/common"

	"github.com/xraph/licensing/id"
)

// Store persists license records. Owner and ownership index live in the same
// record, so every write that changes an owner updates the index with it.
type Store interface {
	// CreateLicense inserts a new record. It fails if the id is already taken.
	CreateLicense(ctx context.Context, l *License) error
	GetLicense(ctx context.Context, depID id.DeploymentID, licenseID uint64) (*License, error)
	UpdateAttributes(ctx context.Context, depID id.DeploymentID, licenseID uint64, attrs Attributes) error
	TransferLicense(ctx context.Context, depID id.DeploymentID, licenseID uint64, to common.Address) error

	// ListOwned returns the ids held by owner in ascending order. The result
	// is empty, never nil, for holders without licenses.
	ListOwned(ctx context.Context, depID id.DeploymentID, owner common.Address) ([]uint64, error)

	// LastLicenseID returns the highest id issued so far, or 0.
	LastLicenseID(ctx context.Context, depID id.DeploymentID) (uint64, error)
}
