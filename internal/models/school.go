// internal/models/school.go
package models

import "time"

type School struct {
	ID          string       `json:"id" gorm:"primaryKey;size:32"`
	Name        string       `json:"name" gorm:"size:255;not null;index"`
	Status      SchoolStatus `json:"status" gorm:"type:varchar(20);default:'Active';index"`
	Cluster     string       `json:"cluster" gorm:"size:100;index"`
	City        string       `json:"city" gorm:"size:120"`
	State       string       `json:"state" gorm:"size:60"`
	MaxLicenses int          `json:"max_licenses" gorm:"-"`
	// Position is the order the school was first seen in; earlier schools
	// win name ties when users are matched.
	Position  int       `json:"-" gorm:"not null;default:0;index"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// SchoolLimit is a per-school seat override set by an audited limit change.
// It is kept apart from School so roster re-ingestion never resets it.
type SchoolLimit struct {
	SchoolID    string    `json:"school_id" gorm:"primaryKey;size:32"`
	MaxLicenses int       `json:"max_licenses" gorm:"not null"`
	UpdatedAt   time.Time `json:"updated_at"`
}

type SchoolPatch struct {
	Name    *string       `json:"name,omitempty"`
	Status  *SchoolStatus `json:"status,omitempty"`
	Cluster *string       `json:"cluster,omitempty"`
	City    *string       `json:"city,omitempty"`
	State   *string       `json:"state,omitempty"`
}

func (p SchoolPatch) Empty() bool {
	return p.Name == nil && p.Status == nil && p.Cluster == nil && p.City == nil && p.State == nil
}

func (p SchoolPatch) ApplyTo(s *School) {
	if p.Name != nil {
		s.Name = *p.Name
	}
	if p.Status != nil {
		s.Status = *p.Status
	}
	if p.Cluster != nil {
		s.Cluster = *p.Cluster
	}
	if p.City != nil {
		s.City = *p.City
	}
	if p.State != nil {
		s.State = *p.State
	}
}
