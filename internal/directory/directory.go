// internal/directory/directory.go
package directory

import (
	"context"

	"github.com/javajoker/canva-seat-ledger/internal/models"
)

// Directory holds live entity state: schools, seat holders, limit overrides
// and the last two activity reports. Views are derived from it on demand.
//
// Mutating methods join the unit of work carried by ctx so they commit or
// roll back together with the audit entry describing them.
type Directory interface {
	// UpsertSchools writes schools by id. With pauseMissing, schools absent
	// from the list are marked Paused; schools are never deleted.
	UpsertSchools(ctx context.Context, schools []models.School, pauseMissing bool) error
	Schools(ctx context.Context) ([]models.School, error)
	School(ctx context.Context, id string) (*models.School, error)
	UpdateSchool(ctx context.Context, id string, patch models.SchoolPatch) error

	// ReplaceUsers swaps the whole seat list for a new snapshot.
	ReplaceUsers(ctx context.Context, users []models.LicenseUser) error
	Users(ctx context.Context) ([]models.LicenseUser, error)
	User(ctx context.Context, email, schoolID string) (*models.LicenseUser, error)
	AddUser(ctx context.Context, user models.LicenseUser) error
	RemoveUser(ctx context.Context, email, schoolID string) error
	MoveUser(ctx context.Context, email, fromSchoolID, toSchoolID string) error
	UpdateUser(ctx context.Context, email, schoolID string, patch models.UserPatch) error

	Limits(ctx context.Context) (map[string]int, error)
	// SetLimit stores an override; nil clears it.
	SetLimit(ctx context.Context, schoolID string, limit *int) error

	// ReplaceActivity stores a new report and keeps the previous one.
	ReplaceActivity(ctx context.Context, users []models.LicenseUser) error
	Activity(ctx context.Context, slot models.ActivitySlot) ([]models.LicenseUser, error)
}
