package postgres

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

// Amounts are stored as decimal text: they are uint64 and BIGINT is signed.

// ==================== Config models ====================

type configModel struct {
	grove.BaseModel `grove:"table:licensing_configs"`

	DeploymentID  string    `grove:"deployment_id,pk"`
	Owner         string    `grove:"owner"`
	Name          string    `grove:"name"`
	Symbol        string    `grove:"symbol"`
	BaseURI       string    `grove:"base_uri"`
	MintPrice     string    `grove:"mint_price"`
	Paused        bool      `grove:"paused"`
	PaymentLedger string    `grove:"payment_ledger"`
	CreatedAt     time.Time `grove:"created_at"`
	UpdatedAt     time.Time `grove:"updated_at"`
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
		Entity: types.Entity{
			CreatedAt: m.CreatedAt,
			UpdatedAt: m.UpdatedAt,
		},
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

type licenseModel struct {
	grove.BaseModel `grove:"table:licensing_licenses"`

	DeploymentID  string    `grove:"deployment_id,pk"`
	ID            int64     `grove:"id,pk"`
	Owner         string    `grove:"owner"`
	FlagA         bool      `grove:"flag_a"`
	FlagB         bool      `grove:"flag_b"`
	PricePaid     string    `grove:"price_paid"`
	PaymentLedger string    `grove:"payment_ledger"`
	CreatedAt     time.Time `grove:"created_at"`
	UpdatedAt     time.Time `grove:"updated_at"`
}

func toLicenseModel(l *license.License) *licenseModel {
	return &licenseModel{
		DeploymentID:  l.DeploymentID.String(),
		ID:            int64(l.ID), //nolint:gosec // ids are sequential from 1
		Owner:         l.Owner.Hex(),
		FlagA:         l.Attributes.FlagA,
		FlagB:         l.Attributes.FlagB,
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
		Entity: types.Entity{
			CreatedAt: m.CreatedAt,
			UpdatedAt: m.UpdatedAt,
		},
		DeploymentID:  depID,
		ID:            uint64(m.ID), //nolint:gosec // stored from a uint64
		Owner:         common.HexToAddress(m.Owner),
		Attributes:    license.Pair(m.FlagA, m.FlagB),
		PricePaid:     price,
		PaymentLedger: common.HexToAddress(m.PaymentLedger),
	}, nil
}

func parseAmount(s string) (types.Amount, error) {
	if s == "" {
		return 0, nil
	}
	v, err := strconv.ParseUint(s, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("licensing/postgres: parse amount %q: %w", s, err)
	}
	return types.Amount(v), nil
}
