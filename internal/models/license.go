// internal/models/license.go
package models

import (
	"strings"
	"time"
)

type ActivityCounters struct {
	Created   int `json:"created" gorm:"default:0"`
	Published int `json:"published" gorm:"default:0"`
	Shared    int `json:"shared" gorm:"default:0"`
	Viewed    int `json:"viewed" gorm:"default:0"`
}

func (a ActivityCounters) Add(o ActivityCounters) ActivityCounters {
	return ActivityCounters{
		Created:   a.Created + o.Created,
		Published: a.Published + o.Published,
		Shared:    a.Shared + o.Shared,
		Viewed:    a.Viewed + o.Viewed,
	}
}

// LicenseUser is one Canva seat holder. Email is the key within a school;
// an empty SchoolID means the seat is not attached to any school.
type LicenseUser struct {
	Email         string           `json:"email" gorm:"primaryKey;size:255"`
	SchoolID      string           `json:"school_id,omitempty" gorm:"primaryKey;size:32"`
	Name          string           `json:"name" gorm:"size:255;not null"`
	Role          UserRole         `json:"role" gorm:"type:varchar(20);default:'Student'"`
	SchoolName    string           `json:"school_name,omitempty" gorm:"size:255"`
	LicenseStatus string           `json:"license_status,omitempty" gorm:"size:50"`
	LastActivity  *time.Time       `json:"last_activity,omitempty"`
	Activity      ActivityCounters `json:"activity" gorm:"embedded;embeddedPrefix:activity_"`
	IsCompliant   bool             `json:"is_compliant" gorm:"-"`
	CreatedAt     time.Time        `json:"created_at"`
	UpdatedAt     time.Time        `json:"updated_at"`
}

// NormalizeEmail is the canonical form used for keys and comparisons.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

type UserPatch struct {
	Name *string   `json:"name,omitempty"`
	Role *UserRole `json:"role,omitempty"`
}

func (p UserPatch) Empty() bool {
	return p.Name == nil && p.Role == nil
}

func (p UserPatch) ApplyTo(u *LicenseUser) {
	if p.Name != nil {
		u.Name = *p.Name
	}
	if p.Role != nil {
		u.Role = *p.Role
	}
}

// ActivitySlot separates the latest activity report from the one before it,
// so rankings can be compared period over period.
type ActivitySlot string

const (
	ActivitySlotCurrent  ActivitySlot = "current"
	ActivitySlotPrevious ActivitySlot = "previous"
)

type ActivityRecord struct {
	Slot         ActivitySlot     `json:"slot" gorm:"primaryKey;size:10"`
	Email        string           `json:"email" gorm:"primaryKey;size:255"`
	Name         string           `json:"name" gorm:"size:255"`
	Role         UserRole         `json:"role" gorm:"type:varchar(20)"`
	LastActivity *time.Time       `json:"last_activity,omitempty"`
	Activity     ActivityCounters `json:"activity" gorm:"embedded;embeddedPrefix:activity_"`
	CreatedAt    time.Time        `json:"created_at"`
}

func (r ActivityRecord) ToUser() LicenseUser {
	return LicenseUser{
		Email:        r.Email,
		Name:         r.Name,
		Role:         r.Role,
		LastActivity: r.LastActivity,
		Activity:     r.Activity,
	}
}

func NewActivityRecord(slot ActivitySlot, u LicenseUser) ActivityRecord {
	return ActivityRecord{
		Slot:         slot,
		Email:        NormalizeEmail(u.Email),
		Name:         u.Name,
		Role:         u.Role,
		LastActivity: u.LastActivity,
		Activity:     u.Activity,
	}
}
