package licensing

import "github.com/xraph/licensing/id"

// ID is the identifier type for deployments, events and withdrawals.
type ID = id.ID

// DeploymentID scopes every record of one engine deployment.
type DeploymentID = id.DeploymentID

// Prefix identifies the entity type encoded in a TypeID.
type Prefix = id.Prefix
