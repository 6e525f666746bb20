// internal/services/audit_service.go
package services

import (
	"context"

	"github.com/javajoker/canva-seat-ledger/internal/apperr"
	"github.com/javajoker/canva-seat-ledger/internal/audit"
	"github.com/javajoker/canva-seat-ledger/internal/models"
)

type AuditService struct {
	engine *audit.Engine
}

type RevertResult struct {
	Reversal *models.AuditEntry `json:"reversal"`
	Original *models.AuditEntry `json:"original"`
	Reminder models.Reminder    `json:"reminder"`
}

func NewAuditService(engine *audit.Engine) *AuditService {
	return &AuditService{engine: engine}
}

// Record stores a mutation that was applied outside this service.
func (s *AuditService) Record(ctx context.Context, m audit.Mutation, meta RequestMeta) (*models.AuditEntry, error) {
	m.IPAddress = meta.IPAddress
	m.UserAgent = meta.UserAgent
	return s.engine.Record(ctx, m)
}

func (s *AuditService) History(ctx context.Context, kind string, entityID string, limit int) ([]models.AuditEntry, error) {
	k := models.EntityKind(kind)
	if !k.Valid() {
		return nil, apperr.NewValidationError("unknown entity kind %q", kind)
	}
	return s.engine.History(ctx, k, entityID, limit)
}

func (s *AuditService) ActorHistory(ctx context.Context, actorID string, limit int) ([]models.AuditEntry, error) {
	return s.engine.ActorHistory(ctx, actorID, limit)
}

func (s *AuditService) Recent(ctx context.Context, limit int) ([]models.AuditEntry, error) {
	return s.engine.Recent(ctx, limit)
}

func (s *AuditService) Entry(ctx context.Context, id string) (*models.AuditEntry, error) {
	return s.engine.Get(ctx, id)
}

// Revert undoes an entry and returns both sides of the pair as they read
// after the reversal.
func (s *AuditService) Revert(ctx context.Context, id string, actor models.Actor) (*RevertResult, error) {
	reversal, err := s.engine.Revert(ctx, id, actor)
	if err != nil {
		return nil, err
	}

	original, err := s.engine.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	return &RevertResult{
		Reversal: reversal,
		Original: original,
		Reminder: reminder("Undo %q", original.Description),
	}, nil
}
