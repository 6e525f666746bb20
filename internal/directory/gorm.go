// internal/directory/gorm.go
package directory

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/javajoker/canva-seat-ledger/internal/apperr"
	"github.com/javajoker/canva-seat-ledger/internal/models"
	"github.com/javajoker/canva-seat-ledger/internal/txn"
)

const batchSize = 500

// GormDirectory persists live state in PostgreSQL. Calls made inside a
// database unit of work use its transaction.
type GormDirectory struct {
	db *gorm.DB
}

func NewGormDirectory(db *gorm.DB) *GormDirectory {
	return &GormDirectory{db: db}
}

func (d *GormDirectory) conn(ctx context.Context) *gorm.DB {
	return txn.Conn(ctx, d.db)
}

// within runs fn in the caller's transaction or opens one of its own.
func (d *GormDirectory) within(ctx context.Context, fn func(tx *gorm.DB) error) error {
	if txn.InDBTransaction(ctx) {
		return fn(d.conn(ctx))
	}
	return d.db.WithContext(ctx).Transaction(fn)
}

func (d *GormDirectory) UpsertSchools(ctx context.Context, schools []models.School, pauseMissing bool) error {
	if len(schools) == 0 {
		return nil
	}

	return d.within(ctx, func(tx *gorm.DB) error {
		var last int
		if err := tx.Model(&models.School{}).Select("COALESCE(MAX(position), 0)").Scan(&last).Error; err != nil {
			return fmt.Errorf("failed to load school positions: %w", err)
		}

		// New schools queue up after every known one; known schools keep
		// their position since it is not in the update list.
		rows := make([]models.School, len(schools))
		ids := make([]string, 0, len(schools))
		for i, s := range schools {
			s.Position = last + i + 1
			rows[i] = s
			ids = append(ids, s.ID)
		}

		err := tx.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "id"}},
			DoUpdates: clause.AssignmentColumns([]string{"name", "status", "cluster", "city", "state", "updated_at"}),
		}).CreateInBatches(&rows, batchSize).Error
		if err != nil {
			return fmt.Errorf("failed to upsert schools: %w", err)
		}

		if pauseMissing {
			err = tx.Model(&models.School{}).
				Where("id NOT IN ? AND status <> ?", ids, models.SchoolStatusPaused).
				Updates(map[string]interface{}{"status": models.SchoolStatusPaused, "updated_at": time.Now()}).Error
			if err != nil {
				return fmt.Errorf("failed to pause missing schools: %w", err)
			}
		}
		return nil
	})
}

func (d *GormDirectory) Schools(ctx context.Context) ([]models.School, error) {
	var schools []models.School
	if err := d.conn(ctx).Order("position ASC, id ASC").Find(&schools).Error; err != nil {
		return nil, fmt.Errorf("failed to load schools: %w", err)
	}
	return schools, nil
}

func (d *GormDirectory) School(ctx context.Context, id string) (*models.School, error) {
	var school models.School
	if err := d.conn(ctx).First(&school, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperr.NewNotFoundError("school", id)
		}
		return nil, fmt.Errorf("failed to load school %s: %w", id, err)
	}
	return &school, nil
}

func (d *GormDirectory) UpdateSchool(ctx context.Context, id string, patch models.SchoolPatch) error {
	updates := map[string]interface{}{"updated_at": time.Now()}
	if patch.Name != nil {
		updates["name"] = *patch.Name
	}
	if patch.Status != nil {
		updates["status"] = *patch.Status
	}
	if patch.Cluster != nil {
		updates["cluster"] = *patch.Cluster
	}
	if patch.City != nil {
		updates["city"] = *patch.City
	}
	if patch.State != nil {
		updates["state"] = *patch.State
	}

	result := d.conn(ctx).Model(&models.School{}).Where("id = ?", id).Updates(updates)
	if result.Error != nil {
		return fmt.Errorf("failed to update school %s: %w", id, result.Error)
	}
	if result.RowsAffected == 0 {
		return apperr.NewNotFoundError("school", id)
	}
	return nil
}

func (d *GormDirectory) ReplaceUsers(ctx context.Context, users []models.LicenseUser) error {
	seen := make(map[string]bool, len(users))
	rows := make([]models.LicenseUser, 0, len(users))
	for _, u := range users {
		u.Email = models.NormalizeEmail(u.Email)
		key := u.SchoolID + "|" + u.Email
		if seen[key] {
			continue
		}
		seen[key] = true
		rows = append(rows, u)
	}

	return d.within(ctx, func(tx *gorm.DB) error {
		if err := tx.Session(&gorm.Session{AllowGlobalUpdate: true}).Delete(&models.LicenseUser{}).Error; err != nil {
			return fmt.Errorf("failed to clear users: %w", err)
		}
		if len(rows) == 0 {
			return nil
		}
		if err := tx.CreateInBatches(&rows, batchSize).Error; err != nil {
			return fmt.Errorf("failed to store users: %w", err)
		}
		return nil
	})
}

func (d *GormDirectory) Users(ctx context.Context) ([]models.LicenseUser, error) {
	var users []models.LicenseUser
	if err := d.conn(ctx).Order("school_id ASC, email ASC").Find(&users).Error; err != nil {
		return nil, fmt.Errorf("failed to load users: %w", err)
	}
	return users, nil
}

func (d *GormDirectory) User(ctx context.Context, email, schoolID string) (*models.LicenseUser, error) {
	email = models.NormalizeEmail(email)

	var user models.LicenseUser
	err := d.conn(ctx).Where("email = ? AND school_id = ?", email, schoolID).First(&user).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperr.NewNotFoundError("user", email)
		}
		return nil, fmt.Errorf("failed to load user %s: %w", email, err)
	}
	return &user, nil
}

func (d *GormDirectory) schoolName(tx *gorm.DB, id string) string {
	var school models.School
	if err := tx.Select("name").First(&school, "id = ?", id).Error; err != nil {
		return ""
	}
	return school.Name
}

func (d *GormDirectory) AddUser(ctx context.Context, user models.LicenseUser) error {
	user.Email = models.NormalizeEmail(user.Email)

	return d.within(ctx, func(tx *gorm.DB) error {
		if name := d.schoolName(tx, user.SchoolID); name != "" {
			user.SchoolName = name
		}
		result := tx.Clauses(clause.OnConflict{DoNothing: true}).Create(&user)
		if result.Error != nil {
			return fmt.Errorf("failed to add user %s: %w", user.Email, result.Error)
		}
		if result.RowsAffected == 0 {
			return seatTaken(user.Email, user.SchoolID)
		}
		return nil
	})
}

func (d *GormDirectory) RemoveUser(ctx context.Context, email, schoolID string) error {
	email = models.NormalizeEmail(email)

	result := d.conn(ctx).Where("email = ? AND school_id = ?", email, schoolID).Delete(&models.LicenseUser{})
	if result.Error != nil {
		return fmt.Errorf("failed to remove user %s: %w", email, result.Error)
	}
	if result.RowsAffected == 0 {
		return apperr.NewNotFoundError("user", email)
	}
	return nil
}

func (d *GormDirectory) MoveUser(ctx context.Context, email, fromSchoolID, toSchoolID string) error {
	email = models.NormalizeEmail(email)

	return d.within(ctx, func(tx *gorm.DB) error {
		var count int64
		if err := tx.Model(&models.LicenseUser{}).
			Where("email = ? AND school_id = ?", email, fromSchoolID).
			Count(&count).Error; err != nil {
			return fmt.Errorf("failed to load user %s: %w", email, err)
		}
		if count == 0 {
			return apperr.NewNotFoundError("user", email)
		}
		if fromSchoolID == toSchoolID {
			return nil
		}

		if err := tx.Model(&models.LicenseUser{}).
			Where("email = ? AND school_id = ?", email, toSchoolID).
			Count(&count).Error; err != nil {
			return fmt.Errorf("failed to check seat for %s: %w", email, err)
		}
		if count > 0 {
			return seatTaken(email, toSchoolID)
		}

		return tx.Model(&models.LicenseUser{}).
			Where("email = ? AND school_id = ?", email, fromSchoolID).
			Updates(map[string]interface{}{
				"school_id":   toSchoolID,
				"school_name": d.schoolName(tx, toSchoolID),
				"updated_at":  time.Now(),
			}).Error
	})
}

func (d *GormDirectory) UpdateUser(ctx context.Context, email, schoolID string, patch models.UserPatch) error {
	email = models.NormalizeEmail(email)

	updates := map[string]interface{}{"updated_at": time.Now()}
	if patch.Name != nil {
		updates["name"] = *patch.Name
	}
	if patch.Role != nil {
		updates["role"] = *patch.Role
	}

	result := d.conn(ctx).Model(&models.LicenseUser{}).
		Where("email = ? AND school_id = ?", email, schoolID).
		Updates(updates)
	if result.Error != nil {
		return fmt.Errorf("failed to update user %s: %w", email, result.Error)
	}
	if result.RowsAffected == 0 {
		return apperr.NewNotFoundError("user", email)
	}
	return nil
}

func (d *GormDirectory) Limits(ctx context.Context) (map[string]int, error) {
	var rows []models.SchoolLimit
	if err := d.conn(ctx).Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("failed to load limits: %w", err)
	}

	limits := make(map[string]int, len(rows))
	for _, r := range rows {
		limits[r.SchoolID] = r.MaxLicenses
	}
	return limits, nil
}

func (d *GormDirectory) SetLimit(ctx context.Context, schoolID string, limit *int) error {
	if limit == nil {
		if err := d.conn(ctx).Delete(&models.SchoolLimit{}, "school_id = ?", schoolID).Error; err != nil {
			return fmt.Errorf("failed to clear limit for school %s: %w", schoolID, err)
		}
		return nil
	}
	if *limit < 0 {
		return apperr.NewValidationError("limit for school %s must not be negative", schoolID)
	}

	row := models.SchoolLimit{SchoolID: schoolID, MaxLicenses: *limit}
	err := d.conn(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "school_id"}},
		DoUpdates: clause.AssignmentColumns([]string{"max_licenses", "updated_at"}),
	}).Create(&row).Error
	if err != nil {
		return fmt.Errorf("failed to set limit for school %s: %w", schoolID, err)
	}
	return nil
}

func (d *GormDirectory) ReplaceActivity(ctx context.Context, users []models.LicenseUser) error {
	seen := make(map[string]bool, len(users))
	rows := make([]models.ActivityRecord, 0, len(users))
	for _, u := range users {
		r := models.NewActivityRecord(models.ActivitySlotCurrent, u)
		if seen[r.Email] {
			continue
		}
		seen[r.Email] = true
		rows = append(rows, r)
	}

	return d.within(ctx, func(tx *gorm.DB) error {
		if err := tx.Where("slot = ?", models.ActivitySlotPrevious).Delete(&models.ActivityRecord{}).Error; err != nil {
			return fmt.Errorf("failed to drop previous activity: %w", err)
		}
		if err := tx.Model(&models.ActivityRecord{}).
			Where("slot = ?", models.ActivitySlotCurrent).
			Update("slot", models.ActivitySlotPrevious).Error; err != nil {
			return fmt.Errorf("failed to rotate activity: %w", err)
		}
		if len(rows) == 0 {
			return nil
		}
		if err := tx.CreateInBatches(&rows, batchSize).Error; err != nil {
			return fmt.Errorf("failed to store activity: %w", err)
		}
		return nil
	})
}

func (d *GormDirectory) Activity(ctx context.Context, slot models.ActivitySlot) ([]models.LicenseUser, error) {
	var rows []models.ActivityRecord
	if err := d.conn(ctx).Where("slot = ?", slot).Order("email ASC").Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("failed to load %s activity: %w", slot, err)
	}

	users := make([]models.LicenseUser, 0, len(rows))
	for _, r := range rows {
		users = append(users, r.ToUser())
	}
	return users, nil
}
