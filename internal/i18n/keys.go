// internal/i18n/keys.go
package i18n

// Translation keys constants
const (
	// Common
	KeySuccess = "success"
	KeyError   = "error"

	// Validation
	KeyValidationInvalid  = "validation.invalid"
	KeyValidationRequired = "validation.required"
	KeyRateLimited        = "rate_limit.exceeded"
	KeyInternalError      = "error.internal"

	// Snapshots
	KeySnapshotIngested    = "snapshot.ingested"
	KeySnapshotRefreshed   = "snapshot.refreshed"
	KeySnapshotStale       = "snapshot.stale"
	KeySnapshotUnavailable = "snapshot.unavailable"
	KeySnapshotFormat      = "snapshot.unknown_format"

	// Schools
	KeySchoolNotFound      = "school.not_found"
	KeySchoolLimitChanged  = "school.limit_changed"
	KeySchoolStatusChanged = "school.status_changed"

	// Licenses
	KeyLicenseAssigned    = "license.assigned"
	KeyLicenseRevoked     = "license.revoked"
	KeyLicenseTransferred = "license.transferred"
	KeyLicenseReminder    = "license.reminder"

	// Users
	KeyUserNotFound = "user.not_found"
	KeyUserUpdated  = "user.updated"

	// Audit
	KeyAuditRecorded      = "audit.recorded"
	KeyAuditReverted      = "audit.reverted"
	KeyAuditNotFound      = "audit.not_found"
	KeyAuditNotReversible = "audit.not_reversible"
)
