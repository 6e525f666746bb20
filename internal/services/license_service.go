// internal/services/license_service.go
package services

import (
	"context"
	"fmt"
	"strings"

	"github.com/javajoker/canva-seat-ledger/internal/apperr"
	"github.com/javajoker/canva-seat-ledger/internal/audit"
	"github.com/javajoker/canva-seat-ledger/internal/directory"
	"github.com/javajoker/canva-seat-ledger/internal/models"
	"github.com/javajoker/canva-seat-ledger/internal/reconcile"
	"github.com/javajoker/canva-seat-ledger/internal/utils"
)

// CanvaPeopleURL is where seat changes have to be replicated by hand.
const CanvaPeopleURL = "https://www.canva.com/settings/people"

type LicenseService struct {
	dir       directory.Directory
	engine    *audit.Engine
	dashboard *DashboardService
}

// RequestMeta is request context stored alongside audit entries.
type RequestMeta struct {
	IPAddress string
	UserAgent string
}

type MutationResult struct {
	Entry    *models.AuditEntry `json:"entry"`
	Reminder models.Reminder    `json:"reminder"`
}

type AssignLicenseRequest struct {
	models.Actor
	Email         string          `json:"email" validate:"required,email,max=255"`
	SchoolID      string          `json:"school_id" validate:"required,max=32"`
	Name          string          `json:"name" validate:"max=255"`
	Role          models.UserRole `json:"role" validate:"omitempty,user_role"`
	Justification string          `json:"justification" validate:"max=2000"`
}

type RevokeLicenseRequest struct {
	models.Actor
	Email    string `json:"email" validate:"required,email,max=255"`
	SchoolID string `json:"school_id" validate:"max=32"`
	Reason   string `json:"reason" validate:"max=2000"`
}

type TransferLicenseRequest struct {
	models.Actor
	Email         string `json:"email" validate:"required,email,max=255"`
	FromSchoolID  string `json:"from_school_id" validate:"max=32"`
	ToSchoolID    string `json:"to_school_id" validate:"required,max=32"`
	Justification string `json:"justification" validate:"max=2000"`
}

type ChangeLimitRequest struct {
	models.Actor
	MaxLicenses *int   `json:"max_licenses" validate:"required,min=0,max=10000"`
	Reason      string `json:"reason" validate:"required,notblank,max=2000"`
}

type UpdateUserRequest struct {
	models.Actor
	SchoolID string           `json:"school_id" validate:"max=32"`
	Name     *string          `json:"name,omitempty" validate:"omitempty,notblank,max=255"`
	Role     *models.UserRole `json:"role,omitempty" validate:"omitempty,user_role"`
}

type SchoolStatusRequest struct {
	models.Actor
	Status models.SchoolStatus `json:"status" validate:"required,school_status"`
	Reason string              `json:"reason" validate:"max=2000"`
}

func NewLicenseService(dir directory.Directory, engine *audit.Engine, dashboard *DashboardService) *LicenseService {
	return &LicenseService{dir: dir, engine: engine, dashboard: dashboard}
}

func newMutation(actor models.Actor, meta RequestMeta) audit.Mutation {
	m := audit.Mutation{IPAddress: meta.IPAddress, UserAgent: meta.UserAgent}
	m.SetActor(actor)
	return m
}

func reminder(format string, args ...interface{}) models.Reminder {
	return models.Reminder{
		Message: fmt.Sprintf(format, args...) + " in Canva at " + CanvaPeopleURL,
		URL:     CanvaPeopleURL,
	}
}

func withNote(description, note string) string {
	if note = strings.TrimSpace(note); note != "" {
		return description + ": " + note
	}
	return description
}

// capacity returns seats used and allowed at schoolID.
func (s *LicenseService) capacity(ctx context.Context, schoolID string) (int, int, error) {
	views, err := s.dashboard.Views(ctx)
	if err != nil {
		return 0, 0, err
	}
	view, ok := reconcile.Find(views, schoolID)
	if !ok {
		return 0, 0, apperr.NewNotFoundError("school", schoolID)
	}
	return view.UsedLicenses, view.School.MaxLicenses, nil
}

func (s *LicenseService) requireJustification(ctx context.Context, school *models.School, justification string) error {
	used, limit, err := s.capacity(ctx, school.ID)
	if err != nil {
		return err
	}
	if used >= limit && strings.TrimSpace(justification) == "" {
		return apperr.NewValidationError("school %s already uses %d of %d licenses; a justification is required", school.Name, used, limit)
	}
	return nil
}

// AssignLicense gives email a seat at a school. Assigning past the school's
// allowance needs a justification.
func (s *LicenseService) AssignLicense(ctx context.Context, req *AssignLicenseRequest, meta RequestMeta) (*MutationResult, error) {
	if err := utils.Validate(req, "invalid license assignment"); err != nil {
		return nil, err
	}

	email := models.NormalizeEmail(req.Email)
	school, err := s.dir.School(ctx, req.SchoolID)
	if err != nil {
		return nil, err
	}

	user := models.LicenseUser{
		Email:    email,
		SchoolID: school.ID,
		Name:     strings.TrimSpace(req.Name),
		Role:     req.Role,
	}
	if user.Name == "" {
		user.Name = email[:strings.Index(email, "@")]
	}
	if user.Role == "" {
		user.Role = models.UserRoleStudent
	}

	m := newMutation(req.Actor, meta)
	m.ChangeKind = models.ChangeKindCreate
	m.EntityKind = models.EntityKindLicense
	m.EntityID = email
	m.EntityName = user.Name
	m.Description = withNote(fmt.Sprintf("Assigned a Canva license to %s at %s", email, school.Name), req.Justification)
	m.ChangedFields = models.FieldChanges{
		{Field: directory.FieldSchoolID, After: school.ID},
		{Field: directory.FieldName, After: user.Name},
		{Field: directory.FieldRole, After: string(user.Role)},
	}

	entry, err := s.engine.Execute(ctx, m, func(ctx context.Context) error {
		if err := s.requireJustification(ctx, school, req.Justification); err != nil {
			return err
		}
		return s.dir.AddUser(ctx, user)
	})
	if err != nil {
		return nil, err
	}

	return &MutationResult{
		Entry:    entry,
		Reminder: reminder("Add %s to the %s team", email, school.Name),
	}, nil
}

func (s *LicenseService) RevokeLicense(ctx context.Context, req *RevokeLicenseRequest, meta RequestMeta) (*MutationResult, error) {
	if err := utils.Validate(req, "invalid license revocation"); err != nil {
		return nil, err
	}

	user, err := s.dir.User(ctx, req.Email, req.SchoolID)
	if err != nil {
		return nil, err
	}

	m := newMutation(req.Actor, meta)
	m.ChangeKind = models.ChangeKindDelete
	m.EntityKind = models.EntityKindLicense
	m.EntityID = user.Email
	m.EntityName = user.Name
	m.Description = withNote(fmt.Sprintf("Revoked the Canva license of %s", user.Email), req.Reason)
	m.ChangedFields = models.FieldChanges{
		{Field: directory.FieldSchoolID, Before: user.SchoolID},
		{Field: directory.FieldName, Before: user.Name},
		{Field: directory.FieldRole, Before: string(user.Role)},
	}

	entry, err := s.engine.Execute(ctx, m, func(ctx context.Context) error {
		return s.dir.RemoveUser(ctx, user.Email, user.SchoolID)
	})
	if err != nil {
		return nil, err
	}

	return &MutationResult{
		Entry:    entry,
		Reminder: reminder("Remove %s from the team", user.Email),
	}, nil
}

func (s *LicenseService) TransferLicense(ctx context.Context, req *TransferLicenseRequest, meta RequestMeta) (*MutationResult, error) {
	if err := utils.Validate(req, "invalid license transfer"); err != nil {
		return nil, err
	}
	if req.FromSchoolID == req.ToSchoolID {
		return nil, apperr.NewValidationError("source and destination school are the same")
	}

	user, err := s.dir.User(ctx, req.Email, req.FromSchoolID)
	if err != nil {
		return nil, err
	}
	target, err := s.dir.School(ctx, req.ToSchoolID)
	if err != nil {
		return nil, err
	}

	m := newMutation(req.Actor, meta)
	m.ChangeKind = models.ChangeKindTransfer
	m.EntityKind = models.EntityKindLicense
	m.EntityID = user.Email
	m.EntityName = user.Name
	m.Description = withNote(fmt.Sprintf("Transferred the Canva license of %s to %s", user.Email, target.Name), req.Justification)
	m.ChangedFields = models.FieldChanges{
		{Field: directory.FieldSchoolID, Before: user.SchoolID, After: target.ID},
	}

	entry, err := s.engine.Execute(ctx, m, func(ctx context.Context) error {
		if err := s.requireJustification(ctx, target, req.Justification); err != nil {
			return err
		}
		return s.dir.MoveUser(ctx, user.Email, user.SchoolID, target.ID)
	})
	if err != nil {
		return nil, err
	}

	return &MutationResult{
		Entry:    entry,
		Reminder: reminder("Move %s to the %s team", user.Email, target.Name),
	}, nil
}

// ChangeLimit sets a per-school seat override. A reason is mandatory.
func (s *LicenseService) ChangeLimit(ctx context.Context, schoolID string, req *ChangeLimitRequest, meta RequestMeta) (*MutationResult, error) {
	if err := utils.Validate(req, "invalid limit change"); err != nil {
		return nil, err
	}

	school, err := s.dir.School(ctx, schoolID)
	if err != nil {
		return nil, err
	}
	limits, err := s.dir.Limits(ctx)
	if err != nil {
		return nil, err
	}

	var before interface{}
	if current, ok := limits[school.ID]; ok {
		if current == *req.MaxLicenses {
			return nil, apperr.NewValidationError("school %s already allows %d licenses", school.Name, current)
		}
		before = current
	}

	m := newMutation(req.Actor, meta)
	m.ChangeKind = models.ChangeKindUpdate
	m.EntityKind = models.EntityKindSchool
	m.EntityID = school.ID
	m.EntityName = school.Name
	m.Description = withNote(fmt.Sprintf("Changed the license limit of %s to %d", school.Name, *req.MaxLicenses), req.Reason)
	m.ChangedFields = models.FieldChanges{
		{Field: directory.FieldMaxLicenses, Before: before, After: *req.MaxLicenses},
	}

	limit := *req.MaxLicenses
	entry, err := s.engine.Execute(ctx, m, func(ctx context.Context) error {
		return s.dir.SetLimit(ctx, school.ID, &limit)
	})
	if err != nil {
		return nil, err
	}

	return &MutationResult{
		Entry:    entry,
		Reminder: reminder("Make sure %s has %d seats", school.Name, limit),
	}, nil
}

func (s *LicenseService) UpdateUser(ctx context.Context, email string, req *UpdateUserRequest, meta RequestMeta) (*MutationResult, error) {
	if err := utils.Validate(req, "invalid user update"); err != nil {
		return nil, err
	}

	user, err := s.dir.User(ctx, email, req.SchoolID)
	if err != nil {
		return nil, err
	}

	changes := models.FieldChanges{{Field: directory.FieldSchoolID, Before: user.SchoolID, After: user.SchoolID}}
	var patch models.UserPatch
	if req.Name != nil {
		if name := strings.TrimSpace(*req.Name); name != user.Name {
			changes = append(changes, models.FieldChange{Field: directory.FieldName, Before: user.Name, After: name})
			patch.Name = &name
		}
	}
	if req.Role != nil && *req.Role != user.Role {
		changes = append(changes, models.FieldChange{Field: directory.FieldRole, Before: string(user.Role), After: string(*req.Role)})
		patch.Role = req.Role
	}
	if patch.Empty() {
		return nil, apperr.NewValidationError("nothing to change for %s", user.Email)
	}

	m := newMutation(req.Actor, meta)
	m.ChangeKind = models.ChangeKindUpdate
	m.EntityKind = models.EntityKindUser
	m.EntityID = user.Email
	m.EntityName = user.Name
	m.Description = fmt.Sprintf("Updated %s", user.Email)
	m.ChangedFields = changes

	entry, err := s.engine.Execute(ctx, m, func(ctx context.Context) error {
		return s.dir.UpdateUser(ctx, user.Email, user.SchoolID, patch)
	})
	if err != nil {
		return nil, err
	}

	return &MutationResult{
		Entry:    entry,
		Reminder: reminder("Update %s", user.Email),
	}, nil
}

// SetSchoolStatus records activation, pausing or onboarding of a school.
func (s *LicenseService) SetSchoolStatus(ctx context.Context, schoolID string, req *SchoolStatusRequest, meta RequestMeta) (*MutationResult, error) {
	if err := utils.Validate(req, "invalid school status change"); err != nil {
		return nil, err
	}

	school, err := s.dir.School(ctx, schoolID)
	if err != nil {
		return nil, err
	}
	if school.Status == req.Status {
		return nil, apperr.NewValidationError("school %s is already %s", school.Name, school.Status)
	}

	kind := models.ChangeKindUpdate
	switch req.Status {
	case models.SchoolStatusActive:
		kind = models.ChangeKindActivate
	case models.SchoolStatusPaused:
		kind = models.ChangeKindDeactivate
	}

	m := newMutation(req.Actor, meta)
	m.ChangeKind = kind
	m.EntityKind = models.EntityKindSchool
	m.EntityID = school.ID
	m.EntityName = school.Name
	m.Description = withNote(fmt.Sprintf("Set %s to %s", school.Name, req.Status), req.Reason)
	m.ChangedFields = models.FieldChanges{
		{Field: directory.FieldStatus, Before: string(school.Status), After: string(req.Status)},
	}

	status := req.Status
	entry, err := s.engine.Execute(ctx, m, func(ctx context.Context) error {
		return s.dir.UpdateSchool(ctx, school.ID, models.SchoolPatch{Status: &status})
	})
	if err != nil {
		return nil, err
	}

	return &MutationResult{
		Entry:    entry,
		Reminder: reminder("Review the %s team", school.Name),
	}, nil
}
