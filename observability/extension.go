// Package observability provides a metrics extension for the licensing
// engine that records event counts through a MetricFactory.
package observability

import (
	"context"

	"github.com/xraph/licensing/event"
	"github.com/xraph/licensing/plugin"
)

// Ensure MetricsExtension implements required interfaces.
var (
	_ plugin.Plugin                 = (*MetricsExtension)(nil)
	_ plugin.OnInit                 = (*MetricsExtension)(nil)
	_ plugin.OnPriceChanged         = (*MetricsExtension)(nil)
	_ plugin.OnPauseChanged         = (*MetricsExtension)(nil)
	_ plugin.OnPaymentLedgerChanged = (*MetricsExtension)(nil)
	_ plugin.OnLicenseIssued        = (*MetricsExtension)(nil)
	_ plugin.OnAdoptRejected        = (*MetricsExtension)(nil)
	_ plugin.OnDetailChanged        = (*MetricsExtension)(nil)
	_ plugin.OnLicenseTransferred   = (*MetricsExtension)(nil)
	_ plugin.OnWithdrawn            = (*MetricsExtension)(nil)
)

// Counter interface for metric counters.
type Counter interface {
	Inc()
	Add(float64)
}

// Histogram interface for metric histograms.
type Histogram interface {
	Observe(float64)
}

// MetricFactory creates metrics.
type MetricFactory interface {
	Counter(name string) Counter
	Histogram(name string) Histogram
}

// MetricsExtension records engine metrics.
// Register it as a licensing plugin to track issuance and treasury activity.
type MetricsExtension struct {
	factory MetricFactory

	// Configuration metrics
	PriceChanged         Counter
	PauseChanged         Counter
	PaymentLedgerChanged Counter

	// Issuance metrics
	LicenseIssued      Counter
	AdoptionsRejected  Counter
	DetailChanged      Counter
	LicenseTransferred Counter
	PricePaid          Histogram

	// Treasury metrics
	Withdrawals     Counter
	WithdrawnAmount Histogram
}

// NewMetricsExtension creates a MetricsExtension with the provided MetricFactory.
func NewMetricsExtension(factory MetricFactory) *MetricsExtension {
	return &MetricsExtension{
		factory: factory,

		PriceChanged:         factory.Counter("licensing.config.price_changed"),
		PauseChanged:         factory.Counter("licensing.config.pause_changed"),
		PaymentLedgerChanged: factory.Counter("licensing.config.payment_ledger_changed"),

		LicenseIssued:      factory.Counter("licensing.license.issued"),
		AdoptionsRejected:  factory.Counter("licensing.license.adoptions_rejected"),
		DetailChanged:      factory.Counter("licensing.license.detail_changed"),
		LicenseTransferred: factory.Counter("licensing.license.transferred"),
		PricePaid:          factory.Histogram("licensing.license.price_paid"),

		Withdrawals:     factory.Counter("licensing.treasury.withdrawals"),
		WithdrawnAmount: factory.Histogram("licensing.treasury.withdrawn_amount"),
	}
}

// Name implements plugin.Plugin.
func (m *MetricsExtension) Name() string { return "observability-metrics" }

// OnInit implements plugin.OnInit.
func (m *MetricsExtension) OnInit(_ context.Context, _ any) error {
	return nil
}

func (m *MetricsExtension) OnPriceChanged(_ context.Context, _ event.PriceChanged) error {
	m.PriceChanged.Inc()
	return nil
}

func (m *MetricsExtension) OnPauseChanged(_ context.Context, _ event.PauseChanged) error {
	m.PauseChanged.Inc()
	return nil
}

func (m *MetricsExtension) OnPaymentLedgerChanged(_ context.Context, _ event.PaymentLedgerChanged) error {
	m.PaymentLedgerChanged.Inc()
	return nil
}

func (m *MetricsExtension) OnLicenseIssued(_ context.Context, e event.Issued) error {
	m.LicenseIssued.Inc()
	m.PricePaid.Observe(float64(e.PricePaid))
	return nil
}

func (m *MetricsExtension) OnAdoptRejected(_ context.Context, _ event.AdoptRejected) error {
	m.AdoptionsRejected.Inc()
	return nil
}

func (m *MetricsExtension) OnDetailChanged(_ context.Context, _ event.DetailChanged) error {
	m.DetailChanged.Inc()
	return nil
}

func (m *MetricsExtension) OnLicenseTransferred(_ context.Context, _ event.Transferred) error {
	m.LicenseTransferred.Inc()
	return nil
}

func (m *MetricsExtension) OnWithdrawn(_ context.Context, e event.Withdrawn) error {
	m.Withdrawals.Inc()
	m.WithdrawnAmount.Observe(float64(e.Amount))
	return nil
}
