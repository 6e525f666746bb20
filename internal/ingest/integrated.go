// internal/ingest/integrated.go
package ingest

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/javajoker/canva-seat-ledger/internal/apperr"
	"github.com/javajoker/canva-seat-ledger/internal/models"
)

type IntegratedUser struct {
	Name  string `json:"nome"`
	Email string `json:"email"`
	Role  string `json:"funcao"`
}

type IntegratedAllocation struct {
	SchoolID      json.Number      `json:"school_id"`
	SchoolName    string           `json:"school_name"`
	Users         []IntegratedUser `json:"users"`
	TotalUsers    int              `json:"total_users"`
	TotalLicenses int              `json:"total_licenses,omitempty"`
}

// IntegratedSnapshot is the JSON document the upstream collector publishes.
type IntegratedSnapshot struct {
	CollectedAt       string                 `json:"timestamp_coleta,omitempty"`
	UpdatedOn         string                 `json:"data_atualizacao,omitempty"`
	Period            string                 `json:"periodo_filtro,omitempty"`
	Metrics           map[string]float64     `json:"canva_metrics,omitempty"`
	SchoolsAllocation []IntegratedAllocation `json:"schools_allocation"`
	UnallocatedUsers  []IntegratedUser       `json:"unallocated_users_list"`
}

// ParseIntegrated decodes and checks an integrated snapshot. A document with
// neither allocations nor unallocated users is rejected.
func ParseIntegrated(raw []byte) (*IntegratedSnapshot, error) {
	text := strings.TrimSpace(Decode(raw))
	if text == "" {
		return nil, apperr.NewValidationError("integrated snapshot is empty")
	}

	var snapshot IntegratedSnapshot
	if err := json.Unmarshal([]byte(text), &snapshot); err != nil {
		return nil, apperr.NewValidationError("invalid integrated snapshot: %v", err)
	}
	if snapshot.SchoolsAllocation == nil && snapshot.UnallocatedUsers == nil {
		return nil, apperr.NewValidationError("integrated snapshot has no schools_allocation or unallocated_users_list")
	}

	return &snapshot, nil
}

// Normalize converts the snapshot into canonical schools and users. Users
// listed under an allocation carry that school id; unallocated ones carry none.
// Line numbers in the returned errors are zero since the input is not line based.
func (s *IntegratedSnapshot) Normalize() ([]models.School, []models.LicenseUser, []apperr.ParseError) {
	var (
		schools []models.School
		users   []models.LicenseUser
		errs    []apperr.ParseError
	)
	seen := make(map[string]bool)

	convert := func(u IntegratedUser, schoolID, schoolName string) {
		email := models.NormalizeEmail(u.Email)
		if !validEmail(email) {
			errs = append(errs, apperr.ParseError{Reason: fmt.Sprintf("invalid email %q in %s", u.Email, describeSchool(schoolID, schoolName))})
			return
		}
		name := strings.TrimSpace(u.Name)
		if name == "" {
			name = localPart(email)
		}
		users = append(users, models.LicenseUser{
			Email:      email,
			Name:       name,
			Role:       NormalizeRole(u.Role),
			SchoolID:   schoolID,
			SchoolName: schoolName,
		})
	}

	for _, alloc := range s.SchoolsAllocation {
		id := normalizeID(alloc.SchoolID.String())
		name := strings.TrimSpace(alloc.SchoolName)
		if id == models.UnassignedSchoolID {
			id, name = "", ""
		}
		if id != "" && !seen[id] {
			seen[id] = true
			if name == "" {
				name = "School " + id
			}
			schools = append(schools, models.School{ID: id, Name: name, Status: models.SchoolStatusActive})
		}
		for _, u := range alloc.Users {
			convert(u, id, name)
		}
	}
	for _, u := range s.UnallocatedUsers {
		convert(u, "", "")
	}

	if schools == nil {
		schools = []models.School{}
	}
	if users == nil {
		users = []models.LicenseUser{}
	}
	return schools, users, errs
}

func describeSchool(id, name string) string {
	switch {
	case id == "":
		return "unallocated users"
	case name != "":
		return fmt.Sprintf("school %s (%s)", id, name)
	default:
		return "school " + id
	}
}
