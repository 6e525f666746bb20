// internal/audit/store.go
package audit

import (
	"context"

	"github.com/javajoker/canva-seat-ledger/internal/models"
)

const (
	DefaultHistoryLimit = 50
	MaxHistoryLimit     = 1000
)

// Store persists audit entries append-only: entries are inserted, never
// updated or deleted. Reads report the consumed state of an entry by setting
// RevertedByID from the reversal that references it.
//
// Append must refuse a second reversal of the same entry with a
// NotReversibleError, and must join the unit of work carried by ctx.
type Store interface {
	Append(ctx context.Context, entry *models.AuditEntry) error
	Get(ctx context.Context, id string) (*models.AuditEntry, error)
	ListByEntity(ctx context.Context, kind models.EntityKind, entityID string, limit int) ([]models.AuditEntry, error)
	ListByActor(ctx context.Context, actorID string, limit int) ([]models.AuditEntry, error)
	ListRecent(ctx context.Context, limit int) ([]models.AuditEntry, error)
}

func cloneEntry(e *models.AuditEntry) models.AuditEntry {
	c := *e
	if e.ChangedFields != nil {
		c.ChangedFields = make(models.FieldChanges, len(e.ChangedFields))
		copy(c.ChangedFields, e.ChangedFields)
	}
	if e.ReversalOfID != nil {
		id := *e.ReversalOfID
		c.ReversalOfID = &id
	}
	return c
}
