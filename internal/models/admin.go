// internal/models/admin.go
package models

import "time"

// AuditEntry is one immutable line of the audit ledger. Entries are never
// updated; RevertedByID is derived from the reversal that points back here.
type AuditEntry struct {
	ID            string       `json:"id"`
	Timestamp     time.Time    `json:"timestamp"`
	ChangeKind    ChangeKind   `json:"change_kind"`
	EntityKind    EntityKind   `json:"entity_kind"`
	EntityID      string       `json:"entity_id"`
	EntityName    string       `json:"entity_name,omitempty"`
	ActorID       string       `json:"actor_id"`
	ActorName     string       `json:"actor_name,omitempty"`
	ActorEmail    string       `json:"actor_email,omitempty"`
	Description   string       `json:"description,omitempty"`
	ChangedFields FieldChanges `json:"changed_fields,omitempty"`
	Reversible    bool         `json:"reversible"`
	ReversalOfID  *string      `json:"reversal_of_id,omitempty"`
	RevertedByID  string       `json:"reverted_by_id,omitempty"`
	IPAddress     string       `json:"ip_address,omitempty"`
	UserAgent     string       `json:"user_agent,omitempty"`
}

// IsReversal reports whether the entry undoes another one.
func (e *AuditEntry) IsReversal() bool {
	return e.ReversalOfID != nil
}

// MarkReverted records the derived consumed state on a read copy.
func (e *AuditEntry) MarkReverted(reversalID string) {
	if reversalID == "" {
		return
	}
	e.RevertedByID = reversalID
	e.Reversible = false
}

type Actor struct {
	ID    string `json:"actor_id" validate:"required"`
	Name  string `json:"actor_name"`
	Email string `json:"actor_email" validate:"omitempty,email"`
}

// SystemActor signs reversals requested without an explicit actor.
var SystemActor = Actor{ID: "system", Name: "System"}

// Reminder tells the operator to mirror a recorded change in Canva itself.
type Reminder struct {
	Message string `json:"message"`
	URL     string `json:"url"`
}

// SchoolLicenseView is derived on demand and never stored.
type SchoolLicenseView struct {
	School            School        `json:"school"`
	Users             []LicenseUser `json:"users"`
	UsedLicenses      int           `json:"used_licenses"`
	AvailableLicenses int           `json:"available_licenses"`
	Status            LicenseStatus `json:"status"`
	NonCompliantUsers []LicenseUser `json:"non_compliant_users"`
	Unassigned        bool          `json:"unassigned,omitempty"`
}
