// internal/ingest/users.go
package ingest

import (
	"fmt"

	"github.com/javajoker/canva-seat-ledger/internal/apperr"
	"github.com/javajoker/canva-seat-ledger/internal/models"
)

// License extract column order.
const (
	userColName = iota
	userColEmail
	userColRole
	userColSchoolName
	userColSchoolID
	userColLicenseStatus
	userColUpdatedAt
)

// ParseUsers reads the license extract (name;email;role;schoolName;schoolId;status;updatedAt).
func ParseUsers(raw []byte) ([]models.LicenseUser, []apperr.ParseError) {
	rows, errs := readRows(Decode(raw))

	users := make([]models.LicenseUser, 0, len(rows))
	for _, r := range rows {
		if isHeaderRow(r, userColEmail) {
			continue
		}

		email := models.NormalizeEmail(r.field(userColEmail))
		if !validEmail(email) {
			errs = append(errs, apperr.ParseError{Line: r.line, Reason: fmt.Sprintf("invalid email %q", r.field(userColEmail))})
			continue
		}

		name := r.field(userColName)
		if name == "" {
			name = localPart(email)
		}

		users = append(users, models.LicenseUser{
			Email:         email,
			Name:          name,
			Role:          NormalizeRole(r.field(userColRole)),
			SchoolName:    r.field(userColSchoolName),
			SchoolID:      normalizeID(r.field(userColSchoolID)),
			LicenseStatus: r.field(userColLicenseStatus),
			LastActivity:  parseDate(r.field(userColUpdatedAt)),
		})
	}

	logParseErrors("license-extract", errs)
	return users, errs
}
