// internal/ingest/activity.go
package ingest

import (
	"fmt"

	"github.com/javajoker/canva-seat-ledger/internal/apperr"
	"github.com/javajoker/canva-seat-ledger/internal/models"
)

// Activity report column order.
const (
	activityColMember = iota
	activityColEmail
	activityColRole
	activityColLastActivity
	activityColCreated
	activityColPublished
	activityColShared
	activityColViewed
)

// ParseActivity reads the Canva member activity report.
func ParseActivity(raw []byte) ([]models.LicenseUser, []apperr.ParseError) {
	rows, errs := readRows(Decode(raw))

	users := make([]models.LicenseUser, 0, len(rows))
	for _, r := range rows {
		if isHeaderRow(r, activityColEmail) {
			continue
		}

		email := models.NormalizeEmail(r.field(activityColEmail))
		if !validEmail(email) {
			errs = append(errs, apperr.ParseError{Line: r.line, Reason: fmt.Sprintf("invalid email %q", r.field(activityColEmail))})
			continue
		}

		name := r.field(activityColMember)
		if name == "" {
			name = localPart(email)
		}

		users = append(users, models.LicenseUser{
			Email:        email,
			Name:         name,
			Role:         NormalizeRole(r.field(activityColRole)),
			LastActivity: parseDate(r.field(activityColLastActivity)),
			Activity: models.ActivityCounters{
				Created:   parseCount(r.field(activityColCreated)),
				Published: parseCount(r.field(activityColPublished)),
				Shared:    parseCount(r.field(activityColShared)),
				Viewed:    parseCount(r.field(activityColViewed)),
			},
		})
	}

	logParseErrors("activity", errs)
	return users, errs
}
