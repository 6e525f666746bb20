// internal/licensing/status.go
package licensing

import (
	"github.com/shopspring/decimal"

	"github.com/javajoker/canva-seat-ledger/internal/models"
)

// StatusFor compares seats in use against the school's allowance. Counts are
// never capped, so an over-allocated school reports Excess.
func StatusFor(used, total int) models.LicenseStatus {
	switch {
	case used > total:
		return models.LicenseStatusExcess
	case used == total:
		return models.LicenseStatusComplete
	default:
		return models.LicenseStatusAvailable
	}
}

// Available never goes below zero.
func Available(used, total int) int {
	if used >= total {
		return 0
	}
	return total - used
}

type Stats struct {
	TotalSchools        int     `json:"total_schools"`
	ActiveSchools       int     `json:"active_schools"`
	TotalUsers          int     `json:"total_users"`
	UnassignedUsers     int     `json:"unassigned_users"`
	TotalLicenses       int     `json:"total_licenses"`
	UsedLicenses        int     `json:"used_licenses"`
	AvailableLicenses   int     `json:"available_licenses"`
	UtilizationRate     float64 `json:"utilization_rate"`
	UtilizationPercent  float64 `json:"utilization_percent"`
	SchoolsAtCapacity   int     `json:"schools_at_capacity"`
	SchoolsOverCapacity int     `json:"schools_over_capacity"`
	CompliantUsers      int     `json:"compliant_users"`
	NonCompliantUsers   int     `json:"non_compliant_users"`
	ComplianceRate      float64 `json:"compliance_rate"`
}

// ComputeStats aggregates reconciled views. The Unassigned bucket adds to
// user and compliance counts but not to seat capacity.
func ComputeStats(views []models.SchoolLicenseView) Stats {
	var s Stats
	for _, v := range views {
		users := len(v.Users)
		nonCompliant := len(v.NonCompliantUsers)

		s.TotalUsers += users
		s.NonCompliantUsers += nonCompliant
		s.CompliantUsers += users - nonCompliant

		if v.Unassigned {
			s.UnassignedUsers += users
			continue
		}

		s.TotalSchools++
		if v.School.Status == models.SchoolStatusActive {
			s.ActiveSchools++
		}
		s.TotalLicenses += v.School.MaxLicenses
		s.UsedLicenses += v.UsedLicenses
		s.AvailableLicenses += v.AvailableLicenses
		if v.UsedLicenses >= v.School.MaxLicenses {
			s.SchoolsAtCapacity++
		}
		if v.UsedLicenses > v.School.MaxLicenses {
			s.SchoolsOverCapacity++
		}
	}

	if s.TotalLicenses > 0 {
		rate := decimal.NewFromInt(int64(s.UsedLicenses)).Div(decimal.NewFromInt(int64(s.TotalLicenses)))
		s.UtilizationRate = rate.Round(4).InexactFloat64()
		s.UtilizationPercent = Percent(s.UsedLicenses, s.TotalLicenses)
	}

	s.ComplianceRate = 100
	if s.TotalUsers > 0 {
		s.ComplianceRate = Percent(s.CompliantUsers, s.TotalUsers)
	}

	return s
}

// Percent returns part/whole*100 rounded to two decimals, or 0 when whole is 0.
func Percent(part, whole int) float64 {
	if whole == 0 {
		return 0
	}
	return decimal.NewFromInt(int64(part)).
		Mul(decimal.NewFromInt(100)).
		Div(decimal.NewFromInt(int64(whole))).
		Round(2).
		InexactFloat64()
}
