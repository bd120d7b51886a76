// Package audithook bridges licensing engine events to an audit trail backend.
//
// It defines a local Recorder interface so the package does not import any
// audit backend directly. Callers inject a RecorderFunc adapter at wiring time.
package audithook

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"

	"github.com/xraph/licensing/event"
	"github.com/xraph/licensing/plugin"
)

// Compile-time interface checks.
var (
	_ plugin.Plugin                 = (*Extension)(nil)
	_ plugin.OnPriceChanged         = (*Extension)(nil)
	_ plugin.OnPauseChanged         = (*Extension)(nil)
	_ plugin.OnPaymentLedgerChanged = (*Extension)(nil)
	_ plugin.OnLicenseIssued        = (*Extension)(nil)
	_ plugin.OnAdoptRejected        = (*Extension)(nil)
	_ plugin.OnDetailChanged        = (*Extension)(nil)
	_ plugin.OnLicenseTransferred   = (*Extension)(nil)
	_ plugin.OnWithdrawn            = (*Extension)(nil)
)

// Recorder is the interface that audit backends must implement.
type Recorder interface {
	Record(ctx context.Context, event *AuditEvent) error
}

// AuditEvent is a backend-neutral audit record.
type AuditEvent struct {
	Action     string         `json:"action"`
	Resource   string         `json:"resource"`
	Category   string         `json:"category"`
	ResourceID string         `json:"resource_id,omitempty"`
	Metadata   map[string]any `json:"metadata,omitempty"`
	Outcome    string         `json:"outcome"`
	Severity   string         `json:"severity"`
	Reason     string         `json:"reason,omitempty"`
}

// RecorderFunc is an adapter to use a plain function as a Recorder.
type RecorderFunc func(ctx context.Context, event *AuditEvent) error

// Record implements Recorder.
func (f RecorderFunc) Record(ctx context.Context, event *AuditEvent) error {
	return f(ctx, event)
}

// Extension bridges licensing events to an audit trail backend.
type Extension struct {
	recorder Recorder
	enabled  map[string]bool // nil = all enabled
	logger   *slog.Logger
}

// New creates an Extension that emits audit events through the provided Recorder.
func New(r Recorder, opts ...Option) *Extension {
	e := &Extension{
		recorder: r,
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Name implements plugin.Plugin.
func (e *Extension) Name() string { return "audit-hook" }

// ──────────────────────────────────────────────────
// Configuration hooks
// ──────────────────────────────────────────────────

// OnPriceChanged implements plugin.OnPriceChanged.
func (e *Extension) OnPriceChanged(ctx context.Context, ev event.PriceChanged) error {
	return e.record(ctx, ActionPriceChanged, SeverityInfo, OutcomeSuccess,
		ResourceConfig, ev.DeploymentID.String(), CategoryAdministration, "",
		ev.Meta,
		"old_price", ev.Old.String(),
		"new_price", ev.New.String(),
	)
}

// OnPauseChanged implements plugin.OnPauseChanged.
func (e *Extension) OnPauseChanged(ctx context.Context, ev event.PauseChanged) error {
	return e.record(ctx, ActionPauseChanged, SeverityInfo, OutcomeSuccess,
		ResourceConfig, ev.DeploymentID.String(), CategoryAdministration, "",
		ev.Meta,
		"paused", ev.New,
	)
}

// OnPaymentLedgerChanged implements plugin.OnPaymentLedgerChanged.
func (e *Extension) OnPaymentLedgerChanged(ctx context.Context, ev event.PaymentLedgerChanged) error {
	return e.record(ctx, ActionPaymentLedgerChanged, SeverityWarning, OutcomeSuccess,
		ResourceConfig, ev.DeploymentID.String(), CategoryAdministration, "",
		ev.Meta,
		"old_ledger", ev.Old.Hex(),
		"new_ledger", ev.New.Hex(),
	)
}

// ──────────────────────────────────────────────────
// License hooks
// ──────────────────────────────────────────────────

// OnLicenseIssued implements plugin.OnLicenseIssued.
func (e *Extension) OnLicenseIssued(ctx context.Context, ev event.Issued) error {
	return e.record(ctx, ActionLicenseIssued, SeverityInfo, OutcomeSuccess,
		ResourceLicense, licenseID(ev.LicenseID), CategoryIssuance, "",
		ev.Meta,
		"holder", ev.Holder.Hex(),
		"price_paid", ev.PricePaid.String(),
		"payment_ledger", ev.PaymentLedger.Hex(),
	)
}

// OnAdoptRejected implements plugin.OnAdoptRejected.
func (e *Extension) OnAdoptRejected(ctx context.Context, ev event.AdoptRejected) error {
	return e.record(ctx, ActionAdoptionRejected, SeverityWarning, OutcomeFailure,
		ResourceLicense, "", CategoryIssuance, ev.Reason,
		ev.Meta,
		"holder", ev.Holder.Hex(),
		"price", ev.Price.String(),
		"kind", ev.Kind,
	)
}

// OnDetailChanged implements plugin.OnDetailChanged.
func (e *Extension) OnDetailChanged(ctx context.Context, ev event.DetailChanged) error {
	return e.record(ctx, ActionDetailChanged, SeverityInfo, OutcomeSuccess,
		ResourceLicense, licenseID(ev.LicenseID), CategoryIssuance, "",
		ev.Meta,
		"old_flag_a", ev.Old.FlagA,
		"old_flag_b", ev.Old.FlagB,
		"new_flag_a", ev.New.FlagA,
		"new_flag_b", ev.New.FlagB,
	)
}

// OnLicenseTransferred implements plugin.OnLicenseTransferred.
func (e *Extension) OnLicenseTransferred(ctx context.Context, ev event.Transferred) error {
	return e.record(ctx, ActionLicenseTransferred, SeverityInfo, OutcomeSuccess,
		ResourceLicense, licenseID(ev.LicenseID), CategoryIssuance, "",
		ev.Meta,
		"from", ev.From.Hex(),
		"to", ev.To.Hex(),
	)
}

// ──────────────────────────────────────────────────
// Treasury hooks
// ──────────────────────────────────────────────────

// OnWithdrawn implements plugin.OnWithdrawn.
func (e *Extension) OnWithdrawn(ctx context.Context, ev event.Withdrawn) error {
	return e.record(ctx, ActionWithdrawn, SeverityWarning, OutcomeSuccess,
		ResourceTreasury, ev.WithdrawalID.String(), CategoryPayment, "",
		ev.Meta,
		"amount", ev.Amount.String(),
		"ledger", ev.Ledger.Hex(),
		"to", ev.To.Hex(),
	)
}

func licenseID(n uint64) string {
	return strconv.FormatUint(n, 10)
}

// ──────────────────────────────────────────────────
// Internal helpers
// ──────────────────────────────────────────────────

// record builds and sends an audit event if the action is enabled.
func (e *Extension) record(
	ctx context.Context,
	action, severity, outcome string,
	resource, resourceID, category string,
	reason string,
	meta event.Meta,
	kvPairs ...any,
) error {
	if e.enabled != nil && !e.enabled[action] {
		return nil
	}

	md := make(map[string]any, len(kvPairs)/2+3)
	md["event_id"] = meta.ID.String()
	md["deployment_id"] = meta.DeploymentID.String()
	md["caller"] = meta.Caller.Hex()
	for i := 0; i+1 < len(kvPairs); i += 2 {
		key, ok := kvPairs[i].(string)
		if !ok {
			key = fmt.Sprintf("%v", kvPairs[i])
		}
		md[key] = kvPairs[i+1]
	}

	evt := &AuditEvent{
		Action:     action,
		Resource:   resource,
		Category:   category,
		ResourceID: resourceID,
		Metadata:   md,
		Outcome:    outcome,
		Severity:   severity,
		Reason:     reason,
	}

	if recErr := e.recorder.Record(ctx, evt); recErr != nil {
		e.logger.Warn("audit_hook: failed to record audit event",
			"action", action,
			"resource_id", resourceID,
			"error", recErr,
		)
	}
	return nil
}
