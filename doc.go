// Package licensing issues numbered licenses to holders who pay a
// configurable price in a fungible payment ledger.
//
// Licensing is designed as a library, not a service. Import it directly into
// your Go application. It provides:
//
//   - Adoption: a holder pays the mint price and receives the next license id
//   - Per-license attributes that only the current holder may change
//   - Owner-gated price, sale switch and payment ledger configuration
//   - A treasury the owner can withdraw from in any known ledger
//   - Hook plugins for audit trails and Prometheus metrics
//
// # Quick Start
//
// Create an engine with your preferred store and a resolver for payment
// ledgers:
//
//	import (
//	    "github.com/xraph/licensing"
//	    "github.com/xraph/licensing/paymentledger"
//	    "github.com/xraph/licensing/store/postgres"
//	)
//
//	engine, err := licensing.New(postgres.New(db), paymentledger.NewRegistry(usdt), licensing.Params{
//	    Owner:         owner,
//	    Name:          "Intelligence License",
//	    Symbol:        "SIL",
//	    BaseURI:       "https://licenses.example.com/",
//	    MintPrice:     10_000_000,
//	    PaymentLedger: usdt.Address(),
//	})
//	if err != nil {
//	    log.Fatal(err)
//	}
//	if err := engine.Start(ctx); err != nil {
//	    log.Fatal(err)
//	}
//	defer engine.Stop()
//
// # Adoption
//
// The holder first approves the engine's address in the payment ledger, then
// adopts a license with its two attribute flags:
//
//	licenseID, err := engine.Adopt(ctx, holder, licensing.Pair(true, false))
//
// Payment and issuance succeed or fail together: if the record cannot be
// stored, the price is refunded.
//
// # Errors
//
// Operations return *Error values carrying a sentinel Kind, so callers use
// errors.Is:
//
//	if errors.Is(err, licensing.ErrSaleInactive) {
//	    // sale is paused
//	}
//
// # Amounts
//
// Amounts are unsigned integers in the payment ledger's smallest unit and all
// arithmetic is overflow-checked.
package licensing
