// internal/audit/gorm_store.go
package audit

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"gorm.io/datatypes"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/javajoker/canva-seat-ledger/internal/apperr"
	"github.com/javajoker/canva-seat-ledger/internal/models"
	"github.com/javajoker/canva-seat-ledger/internal/txn"
)

const uniqueViolation = "23505"

// EntryRecord is the audit_entries row. The unique index on reversal_of_id
// lets the database refuse a second reversal of one entry.
type EntryRecord struct {
	ID            string         `gorm:"primaryKey;size:36"`
	Timestamp     time.Time      `gorm:"not null;index"`
	ChangeKind    string         `gorm:"type:varchar(20);not null"`
	EntityKind    string         `gorm:"type:varchar(20);not null;index:idx_audit_entries_entity,priority:1"`
	EntityID      string         `gorm:"size:255;not null;index:idx_audit_entries_entity,priority:2"`
	EntityName    string         `gorm:"size:255"`
	ActorID       string         `gorm:"size:255;not null;index"`
	ActorName     string         `gorm:"size:255"`
	ActorEmail    string         `gorm:"size:255"`
	Description   string         `gorm:"type:text"`
	ChangedFields datatypes.JSON `gorm:"type:jsonb"`
	Reversible    bool           `gorm:"not null;default:false"`
	ReversalOfID  *string        `gorm:"size:36;uniqueIndex"`
	IPAddress     string         `gorm:"size:45"`
	UserAgent     string         `gorm:"type:text"`
}

func (EntryRecord) TableName() string { return "audit_entries" }

func toRecord(e *models.AuditEntry) (EntryRecord, error) {
	r := EntryRecord{
		ID:           e.ID,
		Timestamp:    e.Timestamp,
		ChangeKind:   string(e.ChangeKind),
		EntityKind:   string(e.EntityKind),
		EntityID:     e.EntityID,
		EntityName:   e.EntityName,
		ActorID:      e.ActorID,
		ActorName:    e.ActorName,
		ActorEmail:   e.ActorEmail,
		Description:  e.Description,
		Reversible:   e.Reversible,
		ReversalOfID: e.ReversalOfID,
		IPAddress:    e.IPAddress,
		UserAgent:    e.UserAgent,
	}
	if e.ChangedFields != nil {
		raw, err := json.Marshal(e.ChangedFields)
		if err != nil {
			return r, fmt.Errorf("failed to encode changed fields: %w", err)
		}
		r.ChangedFields = datatypes.JSON(raw)
	}
	return r, nil
}

func (r EntryRecord) toEntry() (models.AuditEntry, error) {
	e := models.AuditEntry{
		ID:           r.ID,
		Timestamp:    r.Timestamp,
		ChangeKind:   models.ChangeKind(r.ChangeKind),
		EntityKind:   models.EntityKind(r.EntityKind),
		EntityID:     r.EntityID,
		EntityName:   r.EntityName,
		ActorID:      r.ActorID,
		ActorName:    r.ActorName,
		ActorEmail:   r.ActorEmail,
		Description:  r.Description,
		Reversible:   r.Reversible,
		ReversalOfID: r.ReversalOfID,
		IPAddress:    r.IPAddress,
		UserAgent:    r.UserAgent,
	}
	if len(r.ChangedFields) > 0 {
		if err := json.Unmarshal(r.ChangedFields, &e.ChangedFields); err != nil {
			return e, fmt.Errorf("failed to decode changed fields of %s: %w", r.ID, err)
		}
	}
	return e, nil
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == uniqueViolation
	}
	return errors.Is(err, gorm.ErrDuplicatedKey)
}

type GormStore struct {
	db *gorm.DB
}

func NewGormStore(db *gorm.DB) *GormStore {
	return &GormStore{db: db}
}

func (s *GormStore) Append(ctx context.Context, e *models.AuditEntry) error {
	conn := txn.Conn(ctx, s.db)

	if e.ReversalOfID != nil {
		// Lock the original so concurrent reverts queue behind each other.
		var target EntryRecord
		err := conn.Clauses(clause.Locking{Strength: "UPDATE"}).
			Select("id").
			Where("id = ?", *e.ReversalOfID).
			First(&target).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return apperr.NewNotFoundError("audit entry", *e.ReversalOfID)
		}
		if err != nil {
			return fmt.Errorf("failed to lock audit entry %s: %w", *e.ReversalOfID, err)
		}
	}

	record, err := toRecord(e)
	if err != nil {
		return err
	}
	if err := conn.Create(&record).Error; err != nil {
		if e.ReversalOfID != nil && isUniqueViolation(err) {
			return &apperr.NotReversibleError{EntryID: *e.ReversalOfID, Reason: "already reverted"}
		}
		return fmt.Errorf("failed to append audit entry: %w", err)
	}
	return nil
}

func (s *GormStore) Get(ctx context.Context, id string) (*models.AuditEntry, error) {
	var record EntryRecord
	err := txn.Conn(ctx, s.db).Where("id = ?", id).First(&record).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, apperr.NewNotFoundError("audit entry", id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get audit entry: %w", err)
	}

	entries, err := s.decorate(ctx, []EntryRecord{record})
	if err != nil {
		return nil, err
	}
	return &entries[0], nil
}

func (s *GormStore) ListByEntity(ctx context.Context, kind models.EntityKind, entityID string, limit int) ([]models.AuditEntry, error) {
	return s.list(ctx, limit, func(q *gorm.DB) *gorm.DB {
		return q.Where("entity_kind = ? AND entity_id = ?", string(kind), entityID)
	})
}

func (s *GormStore) ListByActor(ctx context.Context, actorID string, limit int) ([]models.AuditEntry, error) {
	return s.list(ctx, limit, func(q *gorm.DB) *gorm.DB {
		return q.Where("actor_id = ?", actorID)
	})
}

func (s *GormStore) ListRecent(ctx context.Context, limit int) ([]models.AuditEntry, error) {
	return s.list(ctx, limit, func(q *gorm.DB) *gorm.DB { return q })
}

func (s *GormStore) list(ctx context.Context, limit int, scope func(*gorm.DB) *gorm.DB) ([]models.AuditEntry, error) {
	var records []EntryRecord
	err := scope(txn.Conn(ctx, s.db).Model(&EntryRecord{})).
		Order("timestamp DESC").
		Order("id DESC").
		Limit(limit).
		Find(&records).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list audit entries: %w", err)
	}
	return s.decorate(ctx, records)
}

// decorate converts rows and fills RevertedByID from existing reversals.
func (s *GormStore) decorate(ctx context.Context, records []EntryRecord) ([]models.AuditEntry, error) {
	out := make([]models.AuditEntry, 0, len(records))
	if len(records) == 0 {
		return out, nil
	}

	ids := make([]string, len(records))
	for i, r := range records {
		ids[i] = r.ID
	}

	var reversals []EntryRecord
	err := txn.Conn(ctx, s.db).
		Select("id", "reversal_of_id").
		Where("reversal_of_id IN ?", ids).
		Find(&reversals).Error
	if err != nil {
		return nil, fmt.Errorf("failed to load reversals: %w", err)
	}
	reversedBy := make(map[string]string, len(reversals))
	for _, r := range reversals {
		if r.ReversalOfID != nil {
			reversedBy[*r.ReversalOfID] = r.ID
		}
	}

	for _, r := range records {
		e, err := r.toEntry()
		if err != nil {
			return nil, err
		}
		e.MarkReverted(reversedBy[e.ID])
		out = append(out, e)
	}
	return out, nil
}
