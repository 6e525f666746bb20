//go:build integration

package directory

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/javajoker/canva-seat-ledger/internal/apperr"
	"github.com/javajoker/canva-seat-ledger/internal/database"
	"github.com/javajoker/canva-seat-ledger/internal/models"
)

// openTestDB connects to SEAT_LEDGER_TEST_DSN inside a throwaway schema.
func openTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	dsn := strings.TrimSpace(os.Getenv("SEAT_LEDGER_TEST_DSN"))
	if dsn == "" {
		t.Skip("SEAT_LEDGER_TEST_DSN not set")
	}

	cfg := &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)}
	admin, err := gorm.Open(postgres.Open(dsn), cfg)
	require.NoError(t, err)

	schema := "dir_it_" + strings.ReplaceAll(uuid.NewString(), "-", "")[:12]
	require.NoError(t, admin.Exec("CREATE SCHEMA "+schema).Error)
	t.Cleanup(func() {
		admin.Exec("DROP SCHEMA " + schema + " CASCADE")
		database.Close(admin)
	})

	sep := " "
	if strings.Contains(dsn, "://") {
		sep = "&"
		if !strings.Contains(dsn, "?") {
			sep = "?"
		}
	}
	db, err := gorm.Open(postgres.Open(fmt.Sprintf("%s%ssearch_path=%s", dsn, sep, schema)), cfg)
	require.NoError(t, err)
	t.Cleanup(func() { database.Close(db) })

	require.NoError(t, database.RunMigrations(db))
	return db
}

func TestGormSchoolsKeepFirstSeenOrder(t *testing.T) {
	ctx := context.Background()
	d := NewGormDirectory(openTestDB(t))

	require.NoError(t, d.UpsertSchools(ctx, []models.School{
		{ID: "30", Name: "Maple Bear Sul", Status: models.SchoolStatusActive},
		{ID: "12", Name: "Maple Bear Centro", Status: models.SchoolStatusActive},
	}, false))
	require.NoError(t, d.UpsertSchools(ctx, []models.School{
		{ID: "12", Name: "Maple Bear Centro II", Status: models.SchoolStatusActive},
		{ID: "7", Name: "Maple Bear Norte", Status: models.SchoolStatusActive},
	}, true))

	schools, err := d.Schools(ctx)
	require.NoError(t, err)
	require.Len(t, schools, 3)
	assert.Equal(t, []string{"30", "12", "7"}, []string{schools[0].ID, schools[1].ID, schools[2].ID})
	assert.Equal(t, models.SchoolStatusPaused, schools[0].Status)
	assert.Equal(t, "Maple Bear Centro II", schools[1].Name)
}

func TestGormSeatLifecycle(t *testing.T) {
	ctx := context.Background()
	db := openTestDB(t)
	d := NewGormDirectory(db)

	require.NoError(t, d.UpsertSchools(ctx, []models.School{
		{ID: "12", Name: "Maple Bear Centro", Status: models.SchoolStatusActive},
		{ID: "30", Name: "Maple Bear Sul", Status: models.SchoolStatusActive},
	}, false))
	require.NoError(t, d.ReplaceUsers(ctx, []models.LicenseUser{
		{Email: "Ana@MapleBear.com.br", SchoolID: "12", Name: "Ana", Role: models.UserRoleTeacher},
		{Email: "ana@maplebear.com.br", SchoolID: "12", Name: "Duplicate"},
	}))

	users, err := d.Users(ctx)
	require.NoError(t, err)
	require.Len(t, users, 1)
	assert.Equal(t, "Ana", users[0].Name)

	err = d.AddUser(ctx, models.LicenseUser{Email: "ana@maplebear.com.br", SchoolID: "12", Name: "Ana"})
	assert.True(t, errors.Is(err, apperr.ErrValidation))

	require.NoError(t, d.AddUser(ctx, models.LicenseUser{Email: "bia@maplebear.com.br", SchoolID: "30", Name: "Bia"}))
	bia, err := d.User(ctx, "BIA@maplebear.com.br", "30")
	require.NoError(t, err)
	assert.Equal(t, "Maple Bear Sul", bia.SchoolName)

	err = d.MoveUser(ctx, "bia@maplebear.com.br", "30", "12")
	require.NoError(t, err)
	_, err = d.User(ctx, "bia@maplebear.com.br", "30")
	assert.True(t, errors.Is(err, apperr.ErrNotFound))

	err = d.MoveUser(ctx, "ana@maplebear.com.br", "12", "12")
	assert.NoError(t, err)

	role := models.UserRoleAdministrator
	require.NoError(t, d.UpdateUser(ctx, "ana@maplebear.com.br", "12", models.UserPatch{Role: &role}))
	ana, err := d.User(ctx, "ana@maplebear.com.br", "12")
	require.NoError(t, err)
	assert.Equal(t, models.UserRoleAdministrator, ana.Role)

	require.NoError(t, d.RemoveUser(ctx, "ana@maplebear.com.br", "12"))
	err = d.RemoveUser(ctx, "ana@maplebear.com.br", "12")
	assert.True(t, errors.Is(err, apperr.ErrNotFound))
}

func TestGormLimitsAndActivity(t *testing.T) {
	ctx := context.Background()
	d := NewGormDirectory(openTestDB(t))

	five := 5
	require.NoError(t, d.SetLimit(ctx, "12", &five))
	six := 6
	require.NoError(t, d.SetLimit(ctx, "12", &six))
	limits, err := d.Limits(ctx)
	require.NoError(t, err)
	assert.Equal(t, map[string]int{"12": 6}, limits)

	require.NoError(t, d.SetLimit(ctx, "12", nil))
	limits, err = d.Limits(ctx)
	require.NoError(t, err)
	assert.Empty(t, limits)

	negative := -1
	assert.True(t, errors.Is(d.SetLimit(ctx, "12", &negative), apperr.ErrValidation))

	require.NoError(t, d.ReplaceActivity(ctx, []models.LicenseUser{
		{Email: "ana@maplebear.com.br", Activity: models.ActivityCounters{Created: 3}},
	}))
	require.NoError(t, d.ReplaceActivity(ctx, []models.LicenseUser{
		{Email: "ana@maplebear.com.br", Activity: models.ActivityCounters{Created: 8}},
	}))

	current, err := d.Activity(ctx, models.ActivitySlotCurrent)
	require.NoError(t, err)
	require.Len(t, current, 1)
	assert.Equal(t, 8, current[0].Activity.Created)

	previous, err := d.Activity(ctx, models.ActivitySlotPrevious)
	require.NoError(t, err)
	require.Len(t, previous, 1)
	assert.Equal(t, 3, previous[0].Activity.Created)
}

func TestGormMutationsRollBackWithUnitOfWork(t *testing.T) {
	ctx := context.Background()
	db := openTestDB(t)
	d := NewGormDirectory(db)
	tx := database.NewTransactor(db)

	require.NoError(t, d.UpsertSchools(ctx, []models.School{
		{ID: "12", Name: "Maple Bear Centro", Status: models.SchoolStatusActive},
	}, false))

	boom := errors.New("boom")
	err := tx.WithinTransaction(ctx, func(ctx context.Context) error {
		if err := d.AddUser(ctx, models.LicenseUser{Email: "ana@maplebear.com.br", SchoolID: "12"}); err != nil {
			return err
		}
		return boom
	})
	require.ErrorIs(t, err, boom)

	users, err := d.Users(ctx)
	require.NoError(t, err)
	assert.Empty(t, users)
}
