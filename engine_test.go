package licensing_test

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xraph/licensing"
	"github.com/xraph/licensing/event"
	"github.com/xraph/licensing/license"
	"github.com/xraph/licensing/paymentledger"
	ledgermem "github.com/xraph/licensing/paymentledger/memory"
	"github.com/xraph/licensing/store"
	"github.com/xraph/licensing/store/memory"
	"github.com/xraph/licensing/types"
)

const mintPrice = types.Amount(10_000_000)

var (
	owner    = common.HexToAddress("0x00000000000000000000000000000000000000a1")
	alice    = common.HexToAddress("0x00000000000000000000000000000000000000b2")
	bob      = common.HexToAddress("0x00000000000000000000000000000000000000c3")
	tokenA   = common.HexToAddress("0x00000000000000000000000000000000000000d4")
	tokenB   = common.HexToAddress("0x00000000000000000000000000000000000000e5")
	stranger = common.HexToAddress("0x00000000000000000000000000000000000000f6")
)

// recorder captures every event the engine emits.
type recorder struct {
	mu       sync.Mutex
	prices   []event.PriceChanged
	pauses   []event.PauseChanged
	ledgers  []event.PaymentLedgerChanged
	issued   []event.Issued
	rejected []event.AdoptRejected
	details  []event.DetailChanged
	moves    []event.Transferred
	withdraw []event.Withdrawn
}

func (r *recorder) Name() string { return "recorder" }

func (r *recorder) OnPriceChanged(_ context.Context, e event.PriceChanged) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.prices = append(r.prices, e)
	return nil
}

func (r *recorder) OnPauseChanged(_ context.Context, e event.PauseChanged) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.pauses = append(r.pauses, e)
	return nil
}

func (r *recorder) OnPaymentLedgerChanged(_ context.Context, e event.PaymentLedgerChanged) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.ledgers = append(r.ledgers, e)
	return nil
}

func (r *recorder) OnLicenseIssued(_ context.Context, e event.Issued) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.issued = append(r.issued, e)
	return nil
}

func (r *recorder) OnAdoptRejected(_ context.Context, e event.AdoptRejected) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.rejected = append(r.rejected, e)
	return nil
}

func (r *recorder) OnDetailChanged(_ context.Context, e event.DetailChanged) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.details = append(r.details, e)
	return nil
}

func (r *recorder) OnLicenseTransferred(_ context.Context, e event.Transferred) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.moves = append(r.moves, e)
	return nil
}

func (r *recorder) OnWithdrawn(_ context.Context, e event.Withdrawn) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.withdraw = append(r.withdraw, e)
	return nil
}

type fixture struct {
	ctx      context.Context
	engine   *licensing.Engine
	token    *ledgermem.Ledger
	registry *paymentledger.Registry
	events   *recorder
}

func newFixture(t *testing.T, s store.Store, opts ...licensing.Option) *fixture {
	t.Helper()

	ctx := context.Background()
	token := ledgermem.New(tokenA, ledgermem.WithSymbol("USDT"))
	registry := paymentledger.NewRegistry(token)
	events := &recorder{}

	opts = append([]licensing.Option{licensing.WithPlugin(events)}, opts...)
	engine, err := licensing.New(s, registry, licensing.Params{
		Owner:         owner,
		Name:          "Intelligence License",
		Symbol:        "SIL",
		BaseURI:       "https://licenses.example.com/metadata/",
		MintPrice:     mintPrice,
		PaymentLedger: tokenA,
	}, opts...)
	require.NoError(t, err)
	require.NoError(t, engine.Start(ctx))
	t.Cleanup(func() { _ = engine.Stop() })

	return &fixture{ctx: ctx, engine: engine, token: token, registry: registry, events: events}
}

// fund mints amount to holder and approves the engine to pull it.
func (f *fixture) fund(t *testing.T, holder common.Address, amount types.Amount) {
	t.Helper()
	require.NoError(t, f.token.Mint(holder, amount))
	require.NoError(t, f.token.Approve(f.ctx, holder, f.engine.Address(), amount))
}

func (f *fixture) balance(t *testing.T, account common.Address) types.Amount {
	t.Helper()
	b, err := f.token.BalanceOf(f.ctx, account)
	require.NoError(t, err)
	return b
}

func TestNewValidatesParams(t *testing.T) {
	_, err := licensing.New(memory.New(), paymentledger.NewRegistry(), licensing.Params{})
	require.Error(t, err)
	assert.ErrorIs(t, err, licensing.ErrInvalidInput)
}

func TestNewRejectsDuplicatePlugin(t *testing.T) {
	_, err := licensing.New(memory.New(), paymentledger.NewRegistry(), licensing.Params{
		Owner:         owner,
		PaymentLedger: tokenA,
	}, licensing.WithPlugin(&recorder{}), licensing.WithPlugin(&recorder{}))
	require.Error(t, err)
}

func TestMutationsRequireStart(t *testing.T) {
	engine, err := licensing.New(memory.New(), paymentledger.NewRegistry(), licensing.Params{
		Owner:         owner,
		MintPrice:     mintPrice,
		PaymentLedger: tokenA,
	})
	require.NoError(t, err)

	assert.Equal(t, mintPrice, engine.MintPrice())
	assert.ErrorIs(t, engine.SetMintPrice(context.Background(), owner, 1), licensing.ErrNotStarted)

	_, err = engine.Adopt(context.Background(), alice, license.Pair(true, true))
	assert.ErrorIs(t, err, licensing.ErrNotStarted)
}

func TestAdoptScenario(t *testing.T) {
	f := newFixture(t, memory.New())
	f.fund(t, alice, mintPrice)

	licenseID, err := f.engine.Adopt(f.ctx, alice, license.Pair(true, true))
	require.NoError(t, err)
	assert.Equal(t, uint64(1), licenseID)
	assert.Equal(t, uint64(1), f.engine.TotalIssued())

	ids, err := f.engine.OwnedLicenseIDs(f.ctx, alice)
	require.NoError(t, err)
	assert.Equal(t, []uint64{1}, ids)

	attrs, err := f.engine.LicenseDetail(f.ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, license.Pair(true, true), attrs)

	assert.Equal(t, types.Amount(0), f.balance(t, alice))
	assert.Equal(t, mintPrice, f.balance(t, f.engine.Address()))

	require.Len(t, f.events.issued, 1)
	assert.Equal(t, alice, f.events.issued[0].Holder)
	assert.Equal(t, mintPrice, f.events.issued[0].PricePaid)
	assert.Equal(t, uint64(1), f.events.issued[0].LicenseID)
}

func TestAdoptIssuesIncreasingIDs(t *testing.T) {
	f := newFixture(t, memory.New())
	f.fund(t, alice, 2*mintPrice)
	f.fund(t, bob, mintPrice)

	var got []uint64
	for _, holder := range []common.Address{alice, bob, alice} {
		before, err := f.engine.OwnedLicenseIDs(f.ctx, holder)
		require.NoError(t, err)

		licenseID, err := f.engine.Adopt(f.ctx, holder, license.Pair(false, true))
		require.NoError(t, err)
		got = append(got, licenseID)

		after, err := f.engine.OwnedLicenseIDs(f.ctx, holder)
		require.NoError(t, err)
		assert.Equal(t, append(before, licenseID), after)
	}

	assert.Equal(t, []uint64{1, 2, 3}, got)
	n, err := f.engine.BalanceOf(f.ctx, alice)
	require.NoError(t, err)
	assert.Equal(t, 2, n)
}

func TestAdoptWhilePaused(t *testing.T) {
	f := newFixture(t, memory.New())
	f.fund(t, alice, mintPrice)
	require.NoError(t, f.engine.SetPaused(f.ctx, owner, true))

	_, err := f.engine.Adopt(f.ctx, alice, license.Pair(true, false))
	require.ErrorIs(t, err, licensing.ErrSaleInactive)
	assert.Equal(t, uint64(0), f.engine.TotalIssued())
	assert.Equal(t, mintPrice, f.balance(t, alice))

	require.Len(t, f.events.rejected, 1)
	assert.Equal(t, alice, f.events.rejected[0].Holder)
}

func TestAdoptInsufficientPayment(t *testing.T) {
	tests := []struct {
		name     string
		minted   types.Amount
		approved types.Amount
	}{
		{"balance short", mintPrice - 1, mintPrice},
		{"allowance short", mintPrice, mintPrice - 1},
		{"nothing", 0, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t, memory.New())
			if tt.minted > 0 {
				require.NoError(t, f.token.Mint(alice, tt.minted))
			}
			require.NoError(t, f.token.Approve(f.ctx, alice, f.engine.Address(), tt.approved))

			_, err := f.engine.Adopt(f.ctx, alice, license.Pair(true, true))
			require.ErrorIs(t, err, licensing.ErrInsufficientPayment)
			assert.Equal(t, licensing.ErrInsufficientPayment, licensing.KindOf(err))

			assert.Equal(t, uint64(0), f.engine.TotalIssued())
			assert.Equal(t, tt.minted, f.balance(t, alice))
			assert.Equal(t, types.Amount(0), f.balance(t, f.engine.Address()))
			assert.Empty(t, f.events.issued)
		})
	}
}

func TestAdoptFreeMintSkipsLedger(t *testing.T) {
	f := newFixture(t, memory.New())
	require.NoError(t, f.engine.SetPaymentLedger(f.ctx, owner, tokenB))
	require.NoError(t, f.engine.SetMintPrice(f.ctx, owner, 0))

	// tokenB is not registered; a zero price never resolves it.
	licenseID, err := f.engine.Adopt(f.ctx, alice, license.Pair(false, false))
	require.NoError(t, err)
	assert.Equal(t, uint64(1), licenseID)
}

type failingStore struct {
	*memory.Store
}

func (failingStore) CreateLicense(context.Context, *license.License) error {
	return errors.New("disk full")
}

func TestAdoptRefundsWhenStoreFails(t *testing.T) {
	f := newFixture(t, failingStore{memory.New()})
	f.fund(t, alice, mintPrice)

	_, err := f.engine.Adopt(f.ctx, alice, license.Pair(true, true))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "disk full")

	assert.Equal(t, uint64(0), f.engine.TotalIssued())
	assert.Equal(t, mintPrice, f.balance(t, alice))
	assert.Equal(t, types.Amount(0), f.balance(t, f.engine.Address()))
	assert.Empty(t, f.events.issued)
}

func TestSetMintPrice(t *testing.T) {
	f := newFixture(t, memory.New())

	require.NoError(t, f.engine.SetMintPrice(f.ctx, owner, 5))
	assert.Equal(t, types.Amount(5), f.engine.MintPrice())

	err := f.engine.SetMintPrice(f.ctx, owner, 5)
	require.ErrorIs(t, err, licensing.ErrNoOpUpdate)
	assert.Equal(t, types.Amount(5), f.engine.MintPrice())

	err = f.engine.SetMintPrice(f.ctx, stranger, 7)
	require.ErrorIs(t, err, licensing.ErrUnauthorized)
	assert.Equal(t, types.Amount(5), f.engine.MintPrice())

	require.Len(t, f.events.prices, 1)
	assert.Equal(t, mintPrice, f.events.prices[0].Old)
	assert.Equal(t, types.Amount(5), f.events.prices[0].New)
}

func TestSetPausedTwice(t *testing.T) {
	f := newFixture(t, memory.New())
	assert.Equal(t, licensing.StateActive, f.engine.State())

	require.NoError(t, f.engine.SetPaused(f.ctx, owner, true))
	err := f.engine.SetPaused(f.ctx, owner, true)
	require.ErrorIs(t, err, licensing.ErrNoOpUpdate)

	assert.True(t, f.engine.Paused())
	assert.Equal(t, licensing.StatePaused, f.engine.State())
	require.Len(t, f.events.pauses, 1)
}

func TestSetPaymentLedger(t *testing.T) {
	f := newFixture(t, memory.New())

	tests := []struct {
		name   string
		caller common.Address
		addr   common.Address
		want   error
	}{
		{"not owner", stranger, tokenB, licensing.ErrUnauthorized},
		{"same ledger", owner, tokenA, licensing.ErrNoOpUpdate},
		{"zero address", owner, common.Address{}, licensing.ErrInvalidInput},
		{"switch", owner, tokenB, nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := f.engine.SetPaymentLedger(f.ctx, tt.caller, tt.addr)
			if tt.want == nil {
				require.NoError(t, err)
				return
			}
			require.ErrorIs(t, err, tt.want)
		})
	}

	assert.Equal(t, tokenB, f.engine.PaymentLedger())
	require.Len(t, f.events.ledgers, 1)
	assert.Equal(t, tokenA, f.events.ledgers[0].Old)
}

func TestSetPaymentLedgerKeepsIssuedLicenses(t *testing.T) {
	f := newFixture(t, memory.New())
	f.fund(t, alice, mintPrice)
	_, err := f.engine.Adopt(f.ctx, alice, license.Pair(true, true))
	require.NoError(t, err)

	second := ledgermem.New(tokenB)
	require.NoError(t, f.registry.Register(second))
	require.NoError(t, f.engine.SetPaymentLedger(f.ctx, owner, tokenB))

	lic, err := f.engine.License(f.ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, tokenA, lic.PaymentLedger)

	// Old treasury funds stay withdrawable.
	require.NoError(t, f.engine.Withdraw(f.ctx, owner, mintPrice, tokenA))
	assert.Equal(t, mintPrice, f.balance(t, owner))
}

func TestSetLicenseDetail(t *testing.T) {
	f := newFixture(t, memory.New())
	f.fund(t, alice, mintPrice)
	_, err := f.engine.Adopt(f.ctx, alice, license.Pair(true, true))
	require.NoError(t, err)

	err = f.engine.SetLicenseDetail(f.ctx, bob, license.Pair(false, false), 1)
	require.ErrorIs(t, err, licensing.ErrNotLicenseOwner)

	err = f.engine.SetLicenseDetail(f.ctx, alice, license.Pair(true, true), 1)
	require.ErrorIs(t, err, licensing.ErrNoOpUpdate)

	err = f.engine.SetLicenseDetail(f.ctx, alice, license.Pair(true, false), 42)
	require.ErrorIs(t, err, licensing.ErrNotFound)

	// Edits are allowed while the sale is paused.
	require.NoError(t, f.engine.SetPaused(f.ctx, owner, true))
	require.NoError(t, f.engine.SetLicenseDetail(f.ctx, alice, license.Pair(true, false), 1))

	attrs, err := f.engine.LicenseDetail(f.ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, license.Pair(true, false), attrs)

	require.Len(t, f.events.details, 1)
	assert.Equal(t, license.Pair(true, true), f.events.details[0].Old)
	assert.Equal(t, license.Pair(true, false), f.events.details[0].New)
}

func TestLicenseDetailUnknown(t *testing.T) {
	f := newFixture(t, memory.New())

	_, err := f.engine.LicenseDetail(f.ctx, 1)
	require.ErrorIs(t, err, licensing.ErrNotFound)
	assert.True(t, licensing.IsNotFound(err))

	ids, err := f.engine.OwnedLicenseIDs(f.ctx, bob)
	require.NoError(t, err)
	assert.NotNil(t, ids)
	assert.Empty(t, ids)
}

func TestTransferLicense(t *testing.T) {
	f := newFixture(t, memory.New())
	f.fund(t, alice, 2*mintPrice)
	for range 2 {
		_, err := f.engine.Adopt(f.ctx, alice, license.Pair(true, true))
		require.NoError(t, err)
	}

	require.ErrorIs(t, f.engine.TransferLicense(f.ctx, bob, bob, 1), licensing.ErrNotLicenseOwner)
	require.ErrorIs(t, f.engine.TransferLicense(f.ctx, alice, common.Address{}, 1), licensing.ErrInvalidInput)
	require.ErrorIs(t, f.engine.TransferLicense(f.ctx, alice, alice, 1), licensing.ErrInvalidInput)
	require.ErrorIs(t, f.engine.TransferLicense(f.ctx, alice, bob, 9), licensing.ErrNotFound)

	require.NoError(t, f.engine.TransferLicense(f.ctx, alice, bob, 1))

	aliceIDs, err := f.engine.OwnedLicenseIDs(f.ctx, alice)
	require.NoError(t, err)
	assert.Equal(t, []uint64{2}, aliceIDs)

	bobIDs, err := f.engine.OwnedLicenseIDs(f.ctx, bob)
	require.NoError(t, err)
	assert.Equal(t, []uint64{1}, bobIDs)

	holder, err := f.engine.OwnerOf(f.ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, bob, holder)

	// The new holder now controls the attributes.
	require.ErrorIs(t, f.engine.SetLicenseDetail(f.ctx, alice, license.Pair(false, false), 1), licensing.ErrNotLicenseOwner)
	require.NoError(t, f.engine.SetLicenseDetail(f.ctx, bob, license.Pair(false, false), 1))

	require.Len(t, f.events.moves, 1)
	assert.Equal(t, alice, f.events.moves[0].From)
	assert.Equal(t, bob, f.events.moves[0].To)
}

func TestWithdrawZeroFromEmptyTreasury(t *testing.T) {
	f := newFixture(t, memory.New())

	require.NoError(t, f.engine.Withdraw(f.ctx, owner, 0, tokenA))
	assert.Equal(t, types.Amount(0), f.balance(t, owner))
	require.Len(t, f.events.withdraw, 1)
	assert.Equal(t, types.Amount(0), f.events.withdraw[0].Amount)
}

func TestAdoptRejectsTreasuryCaller(t *testing.T) {
	f := newFixture(t, memory.New())
	treasury := f.engine.Address()
	f.fund(t, treasury, mintPrice)

	_, err := f.engine.Adopt(f.ctx, treasury, license.Pair(true, true))
	require.ErrorIs(t, err, licensing.ErrInvalidInput)
	assert.Equal(t, uint64(0), f.engine.TotalIssued())
	assert.Equal(t, mintPrice, f.balance(t, treasury))
	assert.Empty(t, f.events.issued)
}

func TestWithdraw(t *testing.T) {
	f := newFixture(t, memory.New())
	require.NoError(t, f.token.Mint(f.engine.Address(), 10_000))
	supply := f.token.TotalSupply()

	require.ErrorIs(t, f.engine.Withdraw(f.ctx, stranger, 1, tokenA), licensing.ErrUnauthorized)
	require.ErrorIs(t, f.engine.Withdraw(f.ctx, owner, 10_001, tokenA), licensing.ErrInsufficientTreasury)
	require.ErrorIs(t, f.engine.Withdraw(f.ctx, owner, 1, tokenB), licensing.ErrNotFound)

	require.NoError(t, f.engine.Withdraw(f.ctx, owner, 10_000, tokenA))

	treasury, err := f.engine.TreasuryBalance(f.ctx, tokenA)
	require.NoError(t, err)
	assert.Equal(t, types.Amount(0), treasury)
	assert.Equal(t, types.Amount(10_000), f.balance(t, owner))
	assert.Equal(t, supply, f.token.TotalSupply())

	require.Len(t, f.events.withdraw, 1)
	assert.Equal(t, types.Amount(10_000), f.events.withdraw[0].Amount)
	assert.Equal(t, tokenA, f.events.withdraw[0].Ledger)
	assert.False(t, f.events.withdraw[0].WithdrawalID.IsNil())
}

func TestTokenURI(t *testing.T) {
	f := newFixture(t, memory.New())
	f.fund(t, alice, mintPrice)
	_, err := f.engine.Adopt(f.ctx, alice, license.Pair(true, true))
	require.NoError(t, err)

	uri, err := f.engine.TokenURI(f.ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, "https://licenses.example.com/metadata/1", uri)

	_, err = f.engine.TokenURI(f.ctx, 2)
	require.ErrorIs(t, err, licensing.ErrNotFound)
}

func TestRestartResumesDeployment(t *testing.T) {
	s := memory.New()
	f := newFixture(t, s)
	f.fund(t, alice, 2*mintPrice)
	_, err := f.engine.Adopt(f.ctx, alice, license.Pair(true, true))
	require.NoError(t, err)
	require.NoError(t, f.engine.SetMintPrice(f.ctx, owner, mintPrice/2))

	// A second engine over the same records picks up config and counter.
	resumed, err := licensing.New(stillOpen{s}, f.registry, licensing.Params{
		Owner:         owner,
		MintPrice:     mintPrice,
		PaymentLedger: tokenA,
	}, licensing.WithDeploymentID(f.engine.DeploymentID()))
	require.NoError(t, err)
	require.NoError(t, resumed.Start(f.ctx))

	assert.Equal(t, mintPrice/2, resumed.MintPrice())
	assert.Equal(t, uint64(1), resumed.TotalIssued())
	assert.Equal(t, f.engine.Address(), resumed.Address())

	licenseID, err := resumed.Adopt(f.ctx, alice, license.Pair(false, false))
	require.NoError(t, err)
	assert.Equal(t, uint64(2), licenseID)
}

// stillOpen shares a memory store between engines without letting the
// second one close it.
type stillOpen struct {
	*memory.Store
}

func (stillOpen) Close() error { return nil }

type brokenPlugin struct {
	panics bool
}

func (p brokenPlugin) Name() string {
	if p.panics {
		return "panicking"
	}
	return "failing"
}

func (p brokenPlugin) OnLicenseIssued(context.Context, event.Issued) error {
	if p.panics {
		panic("boom")
	}
	return errors.New("observer down")
}

func TestPluginFailuresDoNotFailOperations(t *testing.T) {
	f := newFixture(t, memory.New(),
		licensing.WithPlugin(brokenPlugin{}),
		licensing.WithPlugin(brokenPlugin{panics: true}),
	)
	f.fund(t, alice, mintPrice)

	licenseID, err := f.engine.Adopt(f.ctx, alice, license.Pair(true, true))
	require.NoError(t, err)
	assert.Equal(t, uint64(1), licenseID)
	assert.Len(t, f.events.issued, 1)
}

func TestConcurrentAdoptionsNeverReuseIDs(t *testing.T) {
	f := newFixture(t, memory.New())
	require.NoError(t, f.engine.SetMintPrice(f.ctx, owner, 1))

	const n = 32
	holders := make([]common.Address, n)
	for i := range holders {
		holders[i] = common.BytesToAddress([]byte{0x10, byte(i + 1)})
		f.fund(t, holders[i], 1)
	}

	ids := make(chan uint64, n)
	var wg sync.WaitGroup
	for _, h := range holders {
		wg.Add(1)
		go func() {
			defer wg.Done()
			licenseID, err := f.engine.Adopt(f.ctx, h, license.Pair(true, false))
			assert.NoError(t, err)
			ids <- licenseID
		}()
	}
	wg.Wait()
	close(ids)

	seen := make(map[uint64]bool, n)
	for licenseID := range ids {
		assert.False(t, seen[licenseID], "id %d issued twice", licenseID)
		seen[licenseID] = true
	}
	assert.Len(t, seen, n)
	assert.Equal(t, uint64(n), f.engine.TotalIssued())
	assert.Equal(t, types.Amount(n), f.balance(t, f.engine.Address()))
}
