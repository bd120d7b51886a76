package mongo

import (
	"fmt"
	"strconv"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/xraph/grove"

	"github.com/xraph/licensing/id"
	"github.com/xraph/licensing/license"
	"github.com/xraph/licensing/settings"
	"github.com/xraph/licensing/types"
)

// ==================== Config models ====================

type configModel struct {
	grove.BaseModel `grove:"table:licensing_configs"`

	DeploymentID  string    `grove:"deployment_id,pk" bson:"_id"`
	Owner         string    `grove:"owner"            bson:"owner"`
	Name          string    `grove:"name"             bson:"name"`
	Symbol        string    `grove:"symbol"           bson:"symbol"`
	BaseURI       string    `grove:"base_uri"         bson:"base_uri"`
	MintPrice     string    `grove:"mint_price"       bson:"mint_price"`
	Paused        bool      `grove:"paused"           bson:"paused"`
	PaymentLedger string    `grove:"payment_ledger"   bson:"payment_ledger"`
	CreatedAt     time.Time `grove:"created_at"       bson:"created_at"`
	UpdatedAt     time.Time `grove:"updated_at"       bson:"updated_at"`
}

func toConfigModel(c *settings.Config) *configModel {
	return &configModel{
		DeploymentID:  c.DeploymentID.String(),
		Owner:         c.Owner.Hex(),
		Name:          c.Name,
		Symbol:        c.Symbol,
		BaseURI:       c.BaseURI,
		MintPrice:     c.MintPrice.String(),
		Paused:        c.Paused,
		PaymentLedger: c.PaymentLedger.Hex(),
		CreatedAt:     c.CreatedAt,
		UpdatedAt:     c.UpdatedAt,
	}
}

func fromConfigModel(m *configModel) (*settings.Config, error) {
	depID, err := id.ParseDeploymentID(m.DeploymentID)
	if err != nil {
		return nil, err
	}
	price, err := parseAmount(m.MintPrice)
	if err != nil {
		return nil, err
	}

	return &settings.Config{
		Entity:        types.Entity{CreatedAt: m.CreatedAt, UpdatedAt: m.UpdatedAt},
		DeploymentID:  depID,
		Owner:         common.HexToAddress(m.Owner),
		Name:          m.Name,
		Symbol:        m.Symbol,
		BaseURI:       m.BaseURI,
		MintPrice:     price,
		Paused:        m.Paused,
		PaymentLedger: common.HexToAddress(m.PaymentLedger),
	}, nil
}

// ==================== License models ====================

// licenseModel documents are keyed "<deployment>:<id>" so one deployment's
// numbering never collides with another's.
type licenseModel struct {
	grove.BaseModel `grove:"table:licensing_licenses"`

	Key           string    `grove:"key,pk"         bson:"_id"`
	DeploymentID  string    `grove:"deployment_id"  bson:"deployment_id"`
	LicenseID     int64     `grove:"license_id"     bson:"license_id"`
	Owner         string    `grove:"owner"          bson:"owner"`
	Attributes    attrModel `grove:"attributes"     bson:"attributes"`
	PricePaid     string    `grove:"price_paid"     bson:"price_paid"`
	PaymentLedger string    `grove:"payment_ledger" bson:"payment_ledger"`
	CreatedAt     time.Time `grove:"created_at"     bson:"created_at"`
	UpdatedAt     time.Time `grove:"updated_at"     bson:"updated_at"`
}

type attrModel struct {
	FlagA bool `bson:"flag_a"`
	FlagB bool `bson:"flag_b"`
}

func licenseKey(depID id.DeploymentID, licenseID uint64) string {
	return depID.String() + ":" + strconv.FormatUint(licenseID, 10)
}

func toLicenseModel(l *license.License) *licenseModel {
	return &licenseModel{
		Key:           licenseKey(l.DeploymentID, l.ID),
		DeploymentID:  l.DeploymentID.String(),
		LicenseID:     int64(l.ID), //nolint:gosec // ids are sequential from 1
		Owner:         l.Owner.Hex(),
		Attributes:    attrModel{FlagA: l.Attributes.FlagA, FlagB: l.Attributes.FlagB},
		PricePaid:     l.PricePaid.String(),
		PaymentLedger: l.PaymentLedger.Hex(),
		CreatedAt:     l.CreatedAt,
		UpdatedAt:     l.UpdatedAt,
	}
}

func fromLicenseModel(m *licenseModel) (*license.License, error) {
	depID, err := id.ParseDeploymentID(m.DeploymentID)
	if err != nil {
		return nil, err
	}
	price, err := parseAmount(m.PricePaid)
	if err != nil {
		return nil, err
	}

	return &license.License{
		Entity:        types.Entity{CreatedAt: m.CreatedAt, UpdatedAt: m.UpdatedAt},
		DeploymentID:  depID,
		ID:            uint64(m.LicenseID), //nolint:gosec // stored from a uint64
		Owner:         common.HexToAddress(m.Owner),
		Attributes:    license.Pair(m.Attributes.FlagA, m.Attributes.FlagB),
		PricePaid:     price,
		PaymentLedger: common.HexToAddress(m.PaymentLedger),
	}, nil
}

// parseAmount reads amounts stored as decimal strings; BSON has no uint64.
func parseAmount(s string) (types.Amount, error) {
	if s == "" {
		return 0, nil
	}
	v, err := strconv.ParseUint(s, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("licensing/mongo: parse amount %q: %w", s, err)
	}
	return types.Amount(v), nil
}
