// internal/audit/memory_store.go
package audit

import (
	"context"
	"fmt"
	"sync"

	"github.com/sirupsen/logrus"

	"github.com/javajoker/canva-seat-ledger/internal/apperr"
	"github.com/javajoker/canva-seat-ledger/internal/models"
	"github.com/javajoker/canva-seat-ledger/internal/txn"
)

// MemoryStore keeps the ledger in process. With a FileLog attached every
// committed entry is also appended to disk and replayed on start.
type MemoryStore struct {
	mu         sync.RWMutex
	entries    []models.AuditEntry
	byID       map[string]int
	reversedBy map[string]string
	log        *FileLog
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		byID:       make(map[string]int),
		reversedBy: make(map[string]string),
	}
}

// NewFileBackedStore replays log into memory and appends to it from then on.
func NewFileBackedStore(log *FileLog) (*MemoryStore, error) {
	s := NewMemoryStore()

	entries, err := log.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("failed to replay audit log: %w", err)
	}
	for i := range entries {
		if err := s.insert(&entries[i]); err != nil {
			logrus.WithError(err).WithField("entry_id", entries[i].ID).Warn("Skipping audit log entry during replay")
		}
	}

	s.log = log
	logrus.WithField("entries", len(s.entries)).Info("Audit log replayed")
	return s, nil
}

func (s *MemoryStore) insert(e *models.AuditEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, dup := s.byID[e.ID]; dup {
		return fmt.Errorf("audit entry %s already exists", e.ID)
	}
	if e.ReversalOfID != nil {
		target := *e.ReversalOfID
		if _, ok := s.byID[target]; !ok {
			return apperr.NewNotFoundError("audit entry", target)
		}
		if by, taken := s.reversedBy[target]; taken {
			return &apperr.NotReversibleError{EntryID: target, Reason: "already reverted by " + by}
		}
		s.reversedBy[target] = e.ID
	}

	s.byID[e.ID] = len(s.entries)
	s.entries = append(s.entries, cloneEntry(e))
	return nil
}

func (s *MemoryStore) remove(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	idx, ok := s.byID[id]
	if !ok {
		return
	}
	if target := s.entries[idx].ReversalOfID; target != nil && s.reversedBy[*target] == id {
		delete(s.reversedBy, *target)
	}

	s.entries = append(s.entries[:idx], s.entries[idx+1:]...)
	delete(s.byID, id)
	for i := idx; i < len(s.entries); i++ {
		s.byID[s.entries[i].ID] = i
	}
}

func (s *MemoryStore) Append(ctx context.Context, e *models.AuditEntry) error {
	if err := s.insert(e); err != nil {
		return err
	}
	txn.OnRollback(ctx, func() { s.remove(e.ID) })

	if s.log == nil {
		return nil
	}
	stored := cloneEntry(e)
	err := txn.OnCommit(ctx, func() error { return s.log.Append(stored) })
	if err != nil && !txn.InTransaction(ctx) {
		s.remove(e.ID)
	}
	return err
}

// view returns a read copy with the derived consumed state filled in.
func (s *MemoryStore) view(idx int) models.AuditEntry {
	e := cloneEntry(&s.entries[idx])
	e.MarkReverted(s.reversedBy[e.ID])
	return e
}

func (s *MemoryStore) Get(ctx context.Context, id string) (*models.AuditEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	idx, ok := s.byID[id]
	if !ok {
		return nil, apperr.NewNotFoundError("audit entry", id)
	}
	e := s.view(idx)
	return &e, nil
}

func (s *MemoryStore) list(limit int, match func(*models.AuditEntry) bool) []models.AuditEntry {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]models.AuditEntry, 0)
	for i := len(s.entries) - 1; i >= 0 && len(out) < limit; i-- {
		if match(&s.entries[i]) {
			out = append(out, s.view(i))
		}
	}
	return out
}

func (s *MemoryStore) ListByEntity(ctx context.Context, kind models.EntityKind, entityID string, limit int) ([]models.AuditEntry, error) {
	return s.list(limit, func(e *models.AuditEntry) bool {
		return e.EntityKind == kind && e.EntityID == entityID
	}), nil
}

func (s *MemoryStore) ListByActor(ctx context.Context, actorID string, limit int) ([]models.AuditEntry, error) {
	return s.list(limit, func(e *models.AuditEntry) bool {
		return e.ActorID == actorID
	}), nil
}

func (s *MemoryStore) ListRecent(ctx context.Context, limit int) ([]models.AuditEntry, error) {
	return s.list(limit, func(*models.AuditEntry) bool { return true }), nil
}

func (s *MemoryStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.entries)
}
