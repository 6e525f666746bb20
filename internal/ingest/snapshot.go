// internal/ingest/snapshot.go
package ingest

import (
	"strings"

	"github.com/javajoker/canva-seat-ledger/internal/apperr"
	"github.com/javajoker/canva-seat-ledger/internal/models"
)

type Format string

const (
	FormatRoster         Format = "roster"
	FormatLicenseExtract Format = "license-extract"
	FormatActivity       Format = "activity"
	FormatIntegrated     Format = "integrated"
)

// ParseFormat accepts the canonical names plus "users" for the license extract.
func ParseFormat(raw string) (Format, error) {
	switch Format(strings.ToLower(strings.TrimSpace(raw))) {
	case FormatRoster:
		return FormatRoster, nil
	case FormatLicenseExtract, "users":
		return FormatLicenseExtract, nil
	case FormatActivity:
		return FormatActivity, nil
	case FormatIntegrated:
		return FormatIntegrated, nil
	}
	return "", apperr.NewValidationError("unknown snapshot format %q", raw)
}

// Snapshot is one loaded source, tagged with the format it came from. Only the
// collections that format produces are set.
type Snapshot struct {
	Format  Format               `json:"format"`
	Schools []models.School      `json:"schools,omitempty"`
	Users   []models.LicenseUser `json:"users,omitempty"`
	Skipped []apperr.ParseError  `json:"skipped,omitempty"`
	Period  string               `json:"period,omitempty"`

	// Set by the integrated collector only.
	CollectedAt string             `json:"collected_at,omitempty"`
	UpdatedOn   string             `json:"updated_on,omitempty"`
	Metrics     map[string]float64 `json:"metrics,omitempty"`
}

func Load(format Format, raw []byte) (*Snapshot, error) {
	snap := &Snapshot{Format: format}

	switch format {
	case FormatRoster:
		snap.Schools, snap.Skipped = ParseSchools(raw)
	case FormatLicenseExtract:
		snap.Users, snap.Skipped = ParseUsers(raw)
	case FormatActivity:
		snap.Users, snap.Skipped = ParseActivity(raw)
	case FormatIntegrated:
		integrated, err := ParseIntegrated(raw)
		if err != nil {
			return nil, err
		}
		snap.Schools, snap.Users, snap.Skipped = integrated.Normalize()
		snap.Period = integrated.Period
		snap.CollectedAt = strings.TrimSpace(integrated.CollectedAt)
		snap.UpdatedOn = strings.TrimSpace(integrated.UpdatedOn)
		snap.Metrics = integrated.Metrics
		logParseErrors("integrated", snap.Skipped)
	default:
		return nil, apperr.NewValidationError("unknown snapshot format %q", format)
	}

	return snap, nil
}
