package audithook

// Action constants for audit events.
const (
	// Configuration actions
	ActionPriceChanged         = "config.price_changed"
	ActionPauseChanged         = "config.pause_changed"
	ActionPaymentLedgerChanged = "config.payment_ledger_changed"

	// License actions
	ActionLicenseIssued      = "license.issued"
	ActionAdoptionRejected   = "license.adoption_rejected"
	ActionDetailChanged      = "license.detail_changed"
	ActionLicenseTransferred = "license.transferred"

	// Treasury actions
	ActionWithdrawn = "treasury.withdrawn"
)

// Resource constants for audit events.
const (
	ResourceConfig   = "config"
	ResourceLicense  = "license"
	ResourceTreasury = "treasury"
)

// Category constants for audit events.
const (
	CategoryAdministration = "administration"
	CategoryIssuance       = "issuance"
	CategoryPayment        = "payment"
)

// Severity levels for audit events.
const (
	SeverityInfo     = "info"
	SeverityWarning  = "warning"
	SeverityError    = "error"
	SeverityCritical = "critical"
)

// Outcome values for audit events.
const (
	OutcomeSuccess = "success"
	OutcomeFailure = "failure"
)
