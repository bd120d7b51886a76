package factory_test

import (
	"context"
	"errors"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xraph/licensing"
	"github.com/xraph/licensing/factory"
	"github.com/xraph/licensing/id"
	"github.com/xraph/licensing/license"
	"github.com/xraph/licensing/paymentledger"
	ledgermem "github.com/xraph/licensing/paymentledger/memory"
	"github.com/xraph/licensing/store"
	"github.com/xraph/licensing/store/memory"
)

const ownerHex = "0x00000000000000000000000000000000000000a1"

func newFactory(t *testing.T) (*factory.Factory, *paymentledger.Registry) {
	t.Helper()
	registry := paymentledger.NewRegistry()
	f := factory.New(registry, func() store.Store { return memory.New() })
	t.Cleanup(func() { _ = f.Close() })
	return f, registry
}

func TestDeployNewLedger(t *testing.T) {
	ctx := context.Background()
	f, registry := newFactory(t)

	d, err := f.Deploy(ctx, factory.Params{
		Owner:         ownerHex,
		Name:          "Intelligence License",
		Symbol:        "SIL",
		BaseURI:       "https://licenses.example.com/metadata/",
		MintPrice:     10_000_000,
		TokenSymbol:   "USDT",
		InitialSupply: 1_000_000_000,
	})
	require.NoError(t, err)

	assert.Equal(t, d.PaymentLedger, d.Engine.PaymentLedger())
	assert.Equal(t, licensing.Amount(10_000_000), d.Engine.MintPrice())

	led, err := registry.Resolve(d.PaymentLedger)
	require.NoError(t, err)
	owner := common.HexToAddress(ownerHex)
	balance, err := led.BalanceOf(ctx, owner)
	require.NoError(t, err)
	assert.Equal(t, licensing.Amount(1_000_000_000), balance)

	// The owner can adopt straight away with the minted supply.
	require.NoError(t, led.Approve(ctx, owner, d.Engine.Address(), 10_000_000))
	licenseID, err := d.Engine.Adopt(ctx, owner, license.Pair(true, true))
	require.NoError(t, err)
	assert.Equal(t, uint64(1), licenseID)

	got, err := f.Get(d.ID)
	require.NoError(t, err)
	assert.Same(t, d, got)
}

func TestDeployExistingLedger(t *testing.T) {
	ctx := context.Background()
	f, registry := newFactory(t)

	token := ledgermem.New(common.HexToAddress("0x00000000000000000000000000000000000000d4"))
	require.NoError(t, registry.Register(token))

	d, err := f.Deploy(ctx, factory.Params{
		Owner:         ownerHex,
		MintPrice:     5,
		PaymentLedger: token.Address().Hex(),
	})
	require.NoError(t, err)
	assert.Equal(t, token.Address(), d.Engine.PaymentLedger())

	_, err = f.Deploy(ctx, factory.Params{
		Owner:         ownerHex,
		PaymentLedger: "0x00000000000000000000000000000000000000ff",
	})
	require.ErrorIs(t, err, paymentledger.ErrUnknownLedger)
}

func TestDeployValidatesParams(t *testing.T) {
	f, _ := newFactory(t)

	tests := []struct {
		name   string
		params factory.Params
	}{
		{"missing owner", factory.Params{}},
		{"bad owner", factory.Params{Owner: "alice"}},
		{"bad base uri", factory.Params{Owner: ownerHex, BaseURI: "not a url"}},
		{"bad ledger", factory.Params{Owner: ownerHex, PaymentLedger: "0x12"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.Deploy(context.Background(), tt.params)
			require.ErrorIs(t, err, licensing.ErrInvalidInput)
		})
	}
	assert.Empty(t, f.List())
}

func TestDeploymentsGetDistinctLedgers(t *testing.T) {
	f, _ := newFactory(t)

	a, err := f.Deploy(context.Background(), factory.Params{Owner: ownerHex})
	require.NoError(t, err)
	b, err := f.Deploy(context.Background(), factory.Params{Owner: ownerHex})
	require.NoError(t, err)

	assert.NotEqual(t, a.PaymentLedger, b.PaymentLedger)
	assert.NotEqual(t, a.Engine.Address(), b.Engine.Address())
	assert.Len(t, f.List(), 2)

	_, err = f.Get(id.NewDeploymentID())
	require.ErrorIs(t, err, licensing.ErrNotFound)
}

// brokenStore fails migration, so engines built on it never start.
type brokenStore struct {
	*memory.Store
}

func (brokenStore) Migrate(context.Context) error { return errors.New("migration failed") }

func TestDeployCleansUpWhenEngineFailsToStart(t *testing.T) {
	registry := paymentledger.NewRegistry()
	var built []brokenStore
	f := factory.New(registry, func() store.Store {
		s := brokenStore{memory.New()}
		built = append(built, s)
		return s
	})
	t.Cleanup(func() { _ = f.Close() })

	_, err := f.Deploy(context.Background(), factory.Params{Owner: ownerHex, InitialSupply: 100})
	require.Error(t, err)

	assert.Empty(t, registry.Addresses(), "deployed ledger must not stay registered")
	assert.Empty(t, f.List())
	require.Len(t, built, 1)
	assert.ErrorIs(t, built[0].Ping(context.Background()), licensing.ErrStoreClosed)
}
