// internal/directory/memory.go
package directory

import (
	"context"
	"sync"
	"time"

	"github.com/javajoker/canva-seat-ledger/internal/apperr"
	"github.com/javajoker/canva-seat-ledger/internal/models"
	"github.com/javajoker/canva-seat-ledger/internal/txn"
)

type memoryState struct {
	schools  []models.School
	users    []models.LicenseUser
	limits   map[string]int
	activity map[models.ActivitySlot][]models.LicenseUser
}

func (s memoryState) clone() memoryState {
	c := memoryState{
		schools:  append([]models.School(nil), s.schools...),
		users:    append([]models.LicenseUser(nil), s.users...),
		limits:   make(map[string]int, len(s.limits)),
		activity: make(map[models.ActivitySlot][]models.LicenseUser, len(s.activity)),
	}
	for k, v := range s.limits {
		c.limits[k] = v
	}
	for k, v := range s.activity {
		c.activity[k] = append([]models.LicenseUser(nil), v...)
	}
	return c
}

// MemoryDirectory keeps live state in process. Inside a unit of work every
// mutation registers a checkpoint so a failed unit restores the prior state.
type MemoryDirectory struct {
	mu    sync.RWMutex
	state memoryState
	now   func() time.Time
}

func NewMemoryDirectory() *MemoryDirectory {
	return &MemoryDirectory{
		state: memoryState{
			limits:   make(map[string]int),
			activity: make(map[models.ActivitySlot][]models.LicenseUser),
		},
		now: time.Now,
	}
}

// mutate runs fn under the write lock and arranges rollback when ctx
// carries a unit of work.
func (d *MemoryDirectory) mutate(ctx context.Context, fn func(s *memoryState) error) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	var checkpoint *memoryState
	if txn.InTransaction(ctx) {
		c := d.state.clone()
		checkpoint = &c
	}

	if err := fn(&d.state); err != nil {
		if checkpoint != nil {
			d.state = *checkpoint
		}
		return err
	}

	if checkpoint != nil {
		restore := *checkpoint
		txn.OnRollback(ctx, func() {
			d.mu.Lock()
			defer d.mu.Unlock()
			d.state = restore
		})
	}
	return nil
}

func (s *memoryState) schoolIndex(id string) int {
	for i := range s.schools {
		if s.schools[i].ID == id {
			return i
		}
	}
	return -1
}

func (s *memoryState) userIndex(email, schoolID string) int {
	email = models.NormalizeEmail(email)
	for i := range s.users {
		if s.users[i].Email == email && s.users[i].SchoolID == schoolID {
			return i
		}
	}
	return -1
}

func (s *memoryState) schoolName(id string) string {
	if i := s.schoolIndex(id); i >= 0 {
		return s.schools[i].Name
	}
	return ""
}

func (d *MemoryDirectory) UpsertSchools(ctx context.Context, schools []models.School, pauseMissing bool) error {
	now := d.now()
	return d.mutate(ctx, func(s *memoryState) error {
		present := make(map[string]bool, len(schools))
		for _, school := range schools {
			present[school.ID] = true
			school.MaxLicenses = 0
			school.UpdatedAt = now
			if i := s.schoolIndex(school.ID); i >= 0 {
				school.CreatedAt = s.schools[i].CreatedAt
				school.Position = s.schools[i].Position
				s.schools[i] = school
				continue
			}
			school.Position = len(s.schools) + 1
			school.CreatedAt = now
			s.schools = append(s.schools, school)
		}

		if pauseMissing && len(schools) > 0 {
			for i := range s.schools {
				if !present[s.schools[i].ID] && s.schools[i].Status != models.SchoolStatusPaused {
					s.schools[i].Status = models.SchoolStatusPaused
					s.schools[i].UpdatedAt = now
				}
			}
		}
		return nil
	})
}

func (d *MemoryDirectory) Schools(ctx context.Context) ([]models.School, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return append([]models.School{}, d.state.schools...), nil
}

func (d *MemoryDirectory) School(ctx context.Context, id string) (*models.School, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	i := d.state.schoolIndex(id)
	if i < 0 {
		return nil, apperr.NewNotFoundError("school", id)
	}
	school := d.state.schools[i]
	return &school, nil
}

func (d *MemoryDirectory) UpdateSchool(ctx context.Context, id string, patch models.SchoolPatch) error {
	now := d.now()
	return d.mutate(ctx, func(s *memoryState) error {
		i := s.schoolIndex(id)
		if i < 0 {
			return apperr.NewNotFoundError("school", id)
		}
		patch.ApplyTo(&s.schools[i])
		s.schools[i].UpdatedAt = now
		return nil
	})
}

func (d *MemoryDirectory) ReplaceUsers(ctx context.Context, users []models.LicenseUser) error {
	now := d.now()
	return d.mutate(ctx, func(s *memoryState) error {
		next := make([]models.LicenseUser, 0, len(users))
		seen := make(map[string]bool, len(users))
		for _, u := range users {
			u.Email = models.NormalizeEmail(u.Email)
			key := u.SchoolID + "|" + u.Email
			if seen[key] {
				continue
			}
			seen[key] = true
			u.CreatedAt, u.UpdatedAt = now, now
			next = append(next, u)
		}
		s.users = next
		return nil
	})
}

func (d *MemoryDirectory) Users(ctx context.Context) ([]models.LicenseUser, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return append([]models.LicenseUser{}, d.state.users...), nil
}

func (d *MemoryDirectory) User(ctx context.Context, email, schoolID string) (*models.LicenseUser, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	i := d.state.userIndex(email, schoolID)
	if i < 0 {
		return nil, apperr.NewNotFoundError("user", models.NormalizeEmail(email))
	}
	u := d.state.users[i]
	return &u, nil
}

func (d *MemoryDirectory) AddUser(ctx context.Context, user models.LicenseUser) error {
	now := d.now()
	return d.mutate(ctx, func(s *memoryState) error {
		user.Email = models.NormalizeEmail(user.Email)
		if s.userIndex(user.Email, user.SchoolID) >= 0 {
			return seatTaken(user.Email, user.SchoolID)
		}
		if name := s.schoolName(user.SchoolID); name != "" {
			user.SchoolName = name
		}
		user.CreatedAt, user.UpdatedAt = now, now
		s.users = append(s.users, user)
		return nil
	})
}

func (d *MemoryDirectory) RemoveUser(ctx context.Context, email, schoolID string) error {
	return d.mutate(ctx, func(s *memoryState) error {
		i := s.userIndex(email, schoolID)
		if i < 0 {
			return apperr.NewNotFoundError("user", models.NormalizeEmail(email))
		}
		s.users = append(s.users[:i], s.users[i+1:]...)
		return nil
	})
}

func (d *MemoryDirectory) MoveUser(ctx context.Context, email, fromSchoolID, toSchoolID string) error {
	now := d.now()
	return d.mutate(ctx, func(s *memoryState) error {
		i := s.userIndex(email, fromSchoolID)
		if i < 0 {
			return apperr.NewNotFoundError("user", models.NormalizeEmail(email))
		}
		if fromSchoolID == toSchoolID {
			return nil
		}
		if s.userIndex(email, toSchoolID) >= 0 {
			return seatTaken(email, toSchoolID)
		}
		s.users[i].SchoolID = toSchoolID
		s.users[i].SchoolName = s.schoolName(toSchoolID)
		s.users[i].UpdatedAt = now
		return nil
	})
}

func (d *MemoryDirectory) UpdateUser(ctx context.Context, email, schoolID string, patch models.UserPatch) error {
	now := d.now()
	return d.mutate(ctx, func(s *memoryState) error {
		i := s.userIndex(email, schoolID)
		if i < 0 {
			return apperr.NewNotFoundError("user", models.NormalizeEmail(email))
		}
		patch.ApplyTo(&s.users[i])
		s.users[i].UpdatedAt = now
		return nil
	})
}

func (d *MemoryDirectory) Limits(ctx context.Context) (map[string]int, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	out := make(map[string]int, len(d.state.limits))
	for k, v := range d.state.limits {
		out[k] = v
	}
	return out, nil
}

func (d *MemoryDirectory) SetLimit(ctx context.Context, schoolID string, limit *int) error {
	return d.mutate(ctx, func(s *memoryState) error {
		if limit == nil {
			delete(s.limits, schoolID)
			return nil
		}
		if *limit < 0 {
			return apperr.NewValidationError("limit for school %s must not be negative", schoolID)
		}
		s.limits[schoolID] = *limit
		return nil
	})
}

func (d *MemoryDirectory) ReplaceActivity(ctx context.Context, users []models.LicenseUser) error {
	return d.mutate(ctx, func(s *memoryState) error {
		current := make([]models.LicenseUser, 0, len(users))
		for _, u := range users {
			u.Email = models.NormalizeEmail(u.Email)
			current = append(current, u)
		}
		s.activity[models.ActivitySlotPrevious] = s.activity[models.ActivitySlotCurrent]
		s.activity[models.ActivitySlotCurrent] = current
		return nil
	})
}

func (d *MemoryDirectory) Activity(ctx context.Context, slot models.ActivitySlot) ([]models.LicenseUser, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return append([]models.LicenseUser{}, d.state.activity[slot]...), nil
}

func seatTaken(email, schoolID string) error {
	if schoolID == "" {
		return apperr.NewValidationError("%s already holds an unassigned seat", email)
	}
	return apperr.NewValidationError("%s already holds a seat at school %s", email, schoolID)
}
