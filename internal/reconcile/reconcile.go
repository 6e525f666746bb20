// internal/reconcile/reconcile.go
package reconcile

import (
	"sort"

	"github.com/javajoker/canva-seat-ledger/internal/compliance"
	"github.com/javajoker/canva-seat-ledger/internal/licensing"
	"github.com/javajoker/canva-seat-ledger/internal/models"
	"github.com/javajoker/canva-seat-ledger/internal/textnorm"
)

const UnassignedSchoolName = "Unassigned"

type Options struct {
	// DefaultLimit applies to schools without an override; <= 0 means the
	// built-in default.
	DefaultLimit    int
	Limits          map[string]int
	DomainOverrides map[string]string
	Classifier      *compliance.Classifier
}

func (o Options) Limit(schoolID string) int {
	if limit, ok := o.Limits[schoolID]; ok {
		return limit
	}
	if o.DefaultLimit > 0 {
		return o.DefaultLimit
	}
	return models.DefaultMaxLicensesPerSchool
}

// Reconcile joins users to schools and derives one view per school. Every
// school is emitted, users nobody claims land in the Unassigned view, and
// no user is dropped. Inputs are not modified.
func Reconcile(schools []models.School, users []models.LicenseUser, opts Options) []models.SchoolLicenseView {
	schools = uniqueSchools(schools)
	matcher := NewMatcher(schools, opts.DomainOverrides)

	buckets := make([][]models.LicenseUser, len(schools))
	seen := make([]map[string]bool, len(schools))
	var unassigned []models.LicenseUser
	unassignedSeen := make(map[string]bool)

	for _, u := range users {
		u.Email = models.NormalizeEmail(u.Email)
		u.IsCompliant = opts.Classifier.IsCompliant(u.Email)

		i, _ := matcher.Resolve(u)
		if i < 0 {
			if !unassignedSeen[u.Email] {
				unassignedSeen[u.Email] = true
				unassigned = append(unassigned, u)
			}
			continue
		}

		if seen[i] == nil {
			seen[i] = make(map[string]bool)
		}
		if seen[i][u.Email] {
			continue
		}
		seen[i][u.Email] = true

		u.SchoolID = schools[i].ID
		u.SchoolName = schools[i].Name
		buckets[i] = append(buckets[i], u)
	}

	views := make([]models.SchoolLicenseView, 0, len(schools)+1)
	for i, school := range schools {
		school.MaxLicenses = opts.Limit(school.ID)
		views = append(views, buildView(school, buckets[i]))
	}

	if len(unassigned) > 0 {
		school := models.School{
			ID:          models.UnassignedSchoolID,
			Name:        UnassignedSchoolName,
			Status:      models.SchoolStatusActive,
			MaxLicenses: len(unassigned),
		}
		view := buildView(school, unassigned)
		view.Unassigned = true
		views = append(views, view)
	}

	sort.SliceStable(views, func(a, b int) bool {
		if views[a].UsedLicenses != views[b].UsedLicenses {
			return views[a].UsedLicenses > views[b].UsedLicenses
		}
		return textnorm.Fold(views[a].School.Name) < textnorm.Fold(views[b].School.Name)
	})

	return views
}

func buildView(school models.School, users []models.LicenseUser) models.SchoolLicenseView {
	if users == nil {
		users = []models.LicenseUser{}
	}

	nonCompliant := make([]models.LicenseUser, 0)
	for _, u := range users {
		if !u.IsCompliant {
			nonCompliant = append(nonCompliant, u)
		}
	}

	used := len(users)
	return models.SchoolLicenseView{
		School:            school,
		Users:             users,
		UsedLicenses:      used,
		AvailableLicenses: licensing.Available(used, school.MaxLicenses),
		Status:            licensing.StatusFor(used, school.MaxLicenses),
		NonCompliantUsers: nonCompliant,
	}
}

func uniqueSchools(schools []models.School) []models.School {
	seen := make(map[string]bool, len(schools))
	out := make([]models.School, 0, len(schools))
	for _, s := range schools {
		if seen[s.ID] {
			continue
		}
		seen[s.ID] = true
		out = append(out, s)
	}
	return out
}

// Find returns the view for schoolID, if present.
func Find(views []models.SchoolLicenseView, schoolID string) (models.SchoolLicenseView, bool) {
	for _, v := range views {
		if v.School.ID == schoolID {
			return v, true
		}
	}
	return models.SchoolLicenseView{}, false
}
