// Package plugin provides the hook system observers use to follow a
// licensing engine. A plugin implements Plugin plus any subset of the hook
// interfaces below; the Registry discovers which ones at registration.
package plugin

import (
	"context"

	"github.com/xraph/licensing/event"
)

// Plugin is the base interface that all plugins must implement.
type Plugin interface {
	Name() string
}

// ──────────────────────────────────────────────────
// Lifecycle hooks
// ──────────────────────────────────────────────────

// OnInit is called when the engine starts. engine is the *licensing.Engine.
type OnInit interface {
	Plugin
	OnInit(ctx context.Context, engine any) error
}

// OnShutdown is called when the engine stops.
type OnShutdown interface {
	Plugin
	OnShutdown(ctx context.Context) error
}

// ──────────────────────────────────────────────────
// Configuration hooks
// ──────────────────────────────────────────────────

type OnPriceChanged interface {
	Plugin
	OnPriceChanged(ctx context.Context, e event.PriceChanged) error
}

type OnPauseChanged interface {
	Plugin
	OnPauseChanged(ctx context.Context, e event.PauseChanged) error
}

type OnPaymentLedgerChanged interface {
	Plugin
	OnPaymentLedgerChanged(ctx context.Context, e event.PaymentLedgerChanged) error
}

// ──────────────────────────────────────────────────
// Issuance hooks
// ──────────────────────────────────────────────────

type OnLicenseIssued interface {
	Plugin
	OnLicenseIssued(ctx context.Context, e event.Issued) error
}

// OnAdoptRejected is called when an adoption fails on pause or payment.
type OnAdoptRejected interface {
	Plugin
	OnAdoptRejected(ctx context.Context, e event.AdoptRejected) error
}

type OnDetailChanged interface {
	Plugin
	OnDetailChanged(ctx context.Context, e event.DetailChanged) error
}

type OnLicenseTransferred interface {
	Plugin
	OnLicenseTransferred(ctx context.Context, e event.Transferred) error
}

// ──────────────────────────────────────────────────
// Treasury hooks
// ──────────────────────────────────────────────────

type OnWithdrawn interface {
	Plugin
	OnWithdrawn(ctx context.Context, e event.Withdrawn) error
}
