package licensing_test

import (
	"context"
	"errors"
	"log"
	"log/slog"
	"testing"

	"github.com/ethereum/go-ethereum/common"

	"github.com/xraph/licensing"
	"github.com/xraph/licensing/paymentledger"
	ledgermem "github.com/xraph/licensing/paymentledger/memory"
	"github.com/xraph/licensing/store/memory"
	"github.com/xraph/licensing/types"
)

// TestDocumentationExamples verifies that the package documentation examples
// work as written.
func TestDocumentationExamples(t *testing.T) {
	t.Run("QuickStartExample", func(t *testing.T) {
		ctx := context.Background()
		usdt := ledgermem.New(common.HexToAddress("0x00000000000000000000000000000000000000d4"),
			ledgermem.WithName("Tether USD"),
			ledgermem.WithSymbol("USDT"),
			ledgermem.WithDecimals(6),
		)
		owner := common.HexToAddress("0x00000000000000000000000000000000000000a1")
		holder := common.HexToAddress("0x00000000000000000000000000000000000000b2")

		engine, err := licensing.New(memory.New(), paymentledger.NewRegistry(usdt), licensing.Params{
			Owner:         owner,
			Name:          "Intelligence License",
			Symbol:        "SIL",
			BaseURI:       "https://licenses.example.com/",
			MintPrice:     10_000_000,
			PaymentLedger: usdt.Address(),
		}, licensing.WithLogger(slog.Default()))
		if err != nil {
			t.Fatal(err)
		}
		if err := engine.Start(ctx); err != nil {
			t.Fatal(err)
		}
		defer engine.Stop()

		// The holder funds and approves the engine before adopting.
		if err := usdt.Mint(holder, 10_000_000); err != nil {
			t.Fatal(err)
		}
		if err := usdt.Approve(ctx, holder, engine.Address(), 10_000_000); err != nil {
			t.Fatal(err)
		}

		licenseID, err := engine.Adopt(ctx, holder, licensing.Pair(true, false))
		if err != nil {
			t.Fatal(err)
		}
		uri, err := engine.TokenURI(ctx, licenseID)
		if err != nil {
			t.Fatal(err)
		}
		log.Printf("license %d issued: %s\n", licenseID, uri)

		if err := engine.SetPaused(ctx, owner, true); err != nil {
			t.Fatal(err)
		}
		if _, err := engine.Adopt(ctx, holder, licensing.Pair(false, false)); !errors.Is(err, licensing.ErrSaleInactive) {
			t.Fatalf("expected ErrSaleInactive, got %v", err)
		}

		if err := engine.Withdraw(ctx, owner, 10_000_000, usdt.Address()); err != nil {
			t.Fatal(err)
		}
	})

	t.Run("AmountExamples", func(t *testing.T) {
		price := types.Amount(10_000_000)
		if got := price.FormatUnits(6); got != "10.000000" {
			t.Errorf("FormatUnits = %q", got)
		}

		if _, err := types.Amount(1).Sub(2); !errors.Is(err, types.ErrAmountOverflow) {
			t.Errorf("expected ErrAmountOverflow, got %v", err)
		}

		total, err := types.Sum(price, price)
		if err != nil || total != 20_000_000 {
			t.Errorf("Sum = %v, %v", total, err)
		}
	})
}
