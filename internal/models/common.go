// internal/models/common.go
package models

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
)

// UnassignedSchoolID identifies the synthetic bucket holding users that could
// not be matched to any school.
const UnassignedSchoolID = "0"

// DefaultMaxLicensesPerSchool is used when no policy or override says otherwise.
const DefaultMaxLicensesPerSchool = 2

// Enums
type SchoolStatus string

const (
	SchoolStatusActive     SchoolStatus = "Active"
	SchoolStatusOnboarding SchoolStatus = "Onboarding"
	SchoolStatusPaused     SchoolStatus = "Paused"
)

func (s SchoolStatus) Valid() bool {
	switch s {
	case SchoolStatusActive, SchoolStatusOnboarding, SchoolStatusPaused:
		return true
	}
	return false
}

type UserRole string

const (
	UserRoleStudent       UserRole = "Student"
	UserRoleTeacher       UserRole = "Teacher"
	UserRoleAdministrator UserRole = "Administrator"
)

func (r UserRole) Valid() bool {
	switch r {
	case UserRoleStudent, UserRoleTeacher, UserRoleAdministrator:
		return true
	}
	return false
}

type LicenseStatus string

const (
	LicenseStatusAvailable LicenseStatus = "Available"
	LicenseStatusComplete  LicenseStatus = "Complete"
	LicenseStatusExcess    LicenseStatus = "Excess"
)

type ChangeKind string

const (
	ChangeKindCreate     ChangeKind = "Create"
	ChangeKindUpdate     ChangeKind = "Update"
	ChangeKindDelete     ChangeKind = "Delete"
	ChangeKindRevert     ChangeKind = "Revert"
	ChangeKindTransfer   ChangeKind = "Transfer"
	ChangeKindActivate   ChangeKind = "Activate"
	ChangeKindDeactivate ChangeKind = "Deactivate"
)

type EntityKind string

const (
	EntityKindSchool    EntityKind = "School"
	EntityKindUser      EntityKind = "User"
	EntityKindLicense   EntityKind = "License"
	EntityKindFranchise EntityKind = "Franchise"
	EntityKindCluster   EntityKind = "Cluster"
)

func (k EntityKind) Valid() bool {
	switch k {
	case EntityKindSchool, EntityKindUser, EntityKindLicense, EntityKindFranchise, EntityKindCluster:
		return true
	}
	return false
}

// FieldChange records one field transition. A nil Before means the entity did
// not exist before the change; a nil After means it was removed.
type FieldChange struct {
	Field  string      `json:"field" validate:"required"`
	Before interface{} `json:"before"`
	After  interface{} `json:"after"`
}

type FieldChanges []FieldChange

func (f FieldChanges) Value() (driver.Value, error) {
	if f == nil {
		return nil, nil
	}
	return json.Marshal(f)
}

func (f *FieldChanges) Scan(value interface{}) error {
	if value == nil {
		*f = nil
		return nil
	}

	var raw []byte
	switch v := value.(type) {
	case []byte:
		raw = v
	case string:
		raw = []byte(v)
	default:
		return fmt.Errorf("unsupported type %T for field changes", value)
	}

	return json.Unmarshal(raw, f)
}

// Find returns the change for field, if present.
func (f FieldChanges) Find(field string) (FieldChange, bool) {
	for _, c := range f {
		if c.Field == field {
			return c, true
		}
	}
	return FieldChange{}, false
}

// Inverted swaps before and after on every change.
func (f FieldChanges) Inverted() FieldChanges {
	if f == nil {
		return nil
	}
	out := make(FieldChanges, len(f))
	for i, c := range f {
		out[i] = FieldChange{Field: c.Field, Before: c.After, After: c.Before}
	}
	return out
}
