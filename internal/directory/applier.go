// internal/directory/applier.go
package directory

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/javajoker/canva-seat-ledger/internal/apperr"
	"github.com/javajoker/canva-seat-ledger/internal/models"
)

// Field names carried in audit entries.
const (
	FieldSchoolID    = "school_id"
	FieldName        = "name"
	FieldRole        = "role"
	FieldMaxLicenses = "max_licenses"
	FieldStatus      = "status"
	FieldCluster     = "cluster"
	FieldCity        = "city"
	FieldState       = "state"
)

var schoolFields = map[string]bool{
	FieldMaxLicenses: true,
	FieldStatus:      true,
	FieldName:        true,
	FieldCluster:     true,
	FieldCity:        true,
	FieldState:       true,
}

var userFields = map[string]bool{
	FieldSchoolID: true,
	FieldName:     true,
	FieldRole:     true,
}

// Applier writes audit field changes onto a Directory. It is what lets the
// audit engine revert seat and school mutations.
type Applier struct {
	dir Directory
}

func NewApplier(dir Directory) *Applier {
	return &Applier{dir: dir}
}

func (a *Applier) Supports(kind models.EntityKind, changes models.FieldChanges) bool {
	if len(changes) == 0 {
		return false
	}

	var allowed map[string]bool
	switch kind {
	case models.EntityKindSchool:
		allowed = schoolFields
	case models.EntityKindUser, models.EntityKindLicense:
		if _, ok := changes.Find(FieldSchoolID); !ok {
			return false
		}
		allowed = userFields
	default:
		return false
	}

	for _, c := range changes {
		if !allowed[c.Field] {
			return false
		}
	}
	return true
}

func (a *Applier) Apply(ctx context.Context, kind models.EntityKind, entityID string, changes models.FieldChanges) error {
	switch kind {
	case models.EntityKindSchool:
		return a.applySchool(ctx, entityID, changes)
	case models.EntityKindUser, models.EntityKindLicense:
		return a.applyUser(ctx, entityID, changes)
	default:
		return apperr.NewValidationError("changes to %s cannot be applied", kind)
	}
}

func (a *Applier) applySchool(ctx context.Context, id string, changes models.FieldChanges) error {
	var patch models.SchoolPatch
	for _, c := range changes {
		switch c.Field {
		case FieldMaxLicenses:
			limit, err := optionalInt(c.After)
			if err != nil {
				return apperr.NewValidationError("invalid %s: %v", FieldMaxLicenses, err)
			}
			if err := a.dir.SetLimit(ctx, id, limit); err != nil {
				return err
			}
		case FieldStatus:
			s, _ := optionalString(c.After)
			status := models.SchoolStatus(s)
			if !status.Valid() {
				return apperr.NewValidationError("invalid school status %q", s)
			}
			patch.Status = &status
		case FieldName:
			patch.Name = stringPtr(c.After)
		case FieldCluster:
			patch.Cluster = stringPtr(c.After)
		case FieldCity:
			patch.City = stringPtr(c.After)
		case FieldState:
			patch.State = stringPtr(c.After)
		default:
			return apperr.NewValidationError("field %q cannot be applied to a school", c.Field)
		}
	}

	if patch.Empty() {
		return nil
	}
	return a.dir.UpdateSchool(ctx, id, patch)
}

func (a *Applier) applyUser(ctx context.Context, email string, changes models.FieldChanges) error {
	email = models.NormalizeEmail(email)

	sc, ok := changes.Find(FieldSchoolID)
	if !ok {
		return apperr.NewValidationError("seat changes need a %s field", FieldSchoolID)
	}
	from, hadSeat := optionalString(sc.Before)
	to, keepsSeat := optionalString(sc.After)

	var patch models.UserPatch
	for _, c := range changes {
		switch c.Field {
		case FieldSchoolID:
		case FieldName:
			patch.Name = stringPtr(c.After)
		case FieldRole:
			if s, ok := optionalString(c.After); ok {
				role := models.UserRole(s)
				if !role.Valid() {
					return apperr.NewValidationError("invalid role %q", s)
				}
				patch.Role = &role
			}
		default:
			return apperr.NewValidationError("field %q cannot be applied to a seat", c.Field)
		}
	}

	switch {
	case !hadSeat && keepsSeat:
		user := models.LicenseUser{Email: email, SchoolID: to, Role: models.UserRoleStudent}
		if i := strings.Index(email, "@"); i > 0 {
			user.Name = email[:i]
		}
		patch.ApplyTo(&user)
		return a.dir.AddUser(ctx, user)

	case hadSeat && !keepsSeat:
		return a.dir.RemoveUser(ctx, email, from)

	case hadSeat && keepsSeat:
		if from != to {
			if err := a.dir.MoveUser(ctx, email, from, to); err != nil {
				return err
			}
		}
		if patch.Empty() {
			return nil
		}
		return a.dir.UpdateUser(ctx, email, to, patch)
	}

	return apperr.NewValidationError("%s change has neither a before nor an after value", FieldSchoolID)
}

// optionalString reads a stored field value. JSON round trips turn numeric
// ids into float64, so those are formatted back.
func optionalString(v interface{}) (string, bool) {
	switch t := v.(type) {
	case nil:
		return "", false
	case string:
		return t, true
	case json.Number:
		return t.String(), true
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64), true
	case int:
		return strconv.Itoa(t), true
	case int64:
		return strconv.FormatInt(t, 10), true
	default:
		return fmt.Sprint(t), true
	}
}

func stringPtr(v interface{}) *string {
	s, ok := optionalString(v)
	if !ok {
		return nil
	}
	return &s
}

func optionalInt(v interface{}) (*int, error) {
	var n int
	switch t := v.(type) {
	case nil:
		return nil, nil
	case int:
		n = t
	case int64:
		n = int(t)
	case float64:
		if t != math.Trunc(t) {
			return nil, fmt.Errorf("%v is not a whole number", t)
		}
		n = int(t)
	case json.Number:
		i, err := t.Int64()
		if err != nil {
			return nil, err
		}
		n = int(i)
	case string:
		i, err := strconv.Atoi(strings.TrimSpace(t))
		if err != nil {
			return nil, err
		}
		n = i
	default:
		return nil, fmt.Errorf("unsupported value %v", v)
	}
	return &n, nil
}
