// internal/audit/engine.go
package audit

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/javajoker/canva-seat-ledger/internal/apperr"
	"github.com/javajoker/canva-seat-ledger/internal/models"
	"github.com/javajoker/canva-seat-ledger/internal/txn"
)

var validate = validator.New()

// Mutation is a state change as reported by the caller.
type Mutation struct {
	ChangeKind    models.ChangeKind   `json:"change_kind" validate:"required,oneof=Create Update Delete Transfer Activate Deactivate"`
	EntityKind    models.EntityKind   `json:"entity_kind" validate:"required,oneof=School User License Franchise Cluster"`
	EntityID      string              `json:"entity_id" validate:"required,max=255"`
	EntityName    string              `json:"entity_name" validate:"max=255"`
	ActorID       string              `json:"actor_id" validate:"required,max=255"`
	ActorName     string              `json:"actor_name" validate:"max=255"`
	ActorEmail    string              `json:"actor_email" validate:"omitempty,email"`
	Description   string              `json:"description" validate:"max=4000"`
	ChangedFields models.FieldChanges `json:"changed_fields" validate:"dive"`
	// Reversible defaults to true when the changes can be applied back to
	// live state.
	Reversible *bool  `json:"reversible,omitempty"`
	IPAddress  string `json:"-"`
	UserAgent  string `json:"-"`
}

func (m *Mutation) trim() {
	m.EntityID = strings.TrimSpace(m.EntityID)
	m.EntityName = strings.TrimSpace(m.EntityName)
	m.ActorID = strings.TrimSpace(m.ActorID)
	m.ActorName = strings.TrimSpace(m.ActorName)
	m.ActorEmail = strings.TrimSpace(m.ActorEmail)
	m.Description = strings.TrimSpace(m.Description)
}

func (m *Mutation) SetActor(a models.Actor) {
	m.ActorID = a.ID
	m.ActorName = a.Name
	m.ActorEmail = a.Email
}

// StateApplier writes field changes back to live entity state. Reverts
// hand it the inverted changes of the original entry.
type StateApplier interface {
	Supports(kind models.EntityKind, changes models.FieldChanges) bool
	Apply(ctx context.Context, kind models.EntityKind, entityID string, changes models.FieldChanges) error
}

type Engine struct {
	store   Store
	tx      txn.Transactor
	applier StateApplier
	locks   *keyedMutex

	clockMu sync.Mutex
	last    time.Time
	now     func() time.Time
}

func NewEngine(store Store, tx txn.Transactor, applier StateApplier) *Engine {
	return &Engine{
		store:   store,
		tx:      tx,
		applier: applier,
		locks:   newKeyedMutex(),
		now:     time.Now,
	}
}

// stamp returns strictly increasing timestamps at microsecond precision, so
// newest-first ordering holds even when entries land in the same instant.
func (e *Engine) stamp() time.Time {
	e.clockMu.Lock()
	defer e.clockMu.Unlock()

	t := e.now().UTC().Truncate(time.Microsecond)
	if !t.After(e.last) {
		t = e.last.Add(time.Microsecond)
	}
	e.last = t
	return t
}

func (e *Engine) supports(kind models.EntityKind, changes models.FieldChanges) bool {
	return e.applier != nil && len(changes) > 0 && e.applier.Supports(kind, changes)
}

func (e *Engine) build(m Mutation) (*models.AuditEntry, error) {
	m.trim()
	if m.ChangeKind == models.ChangeKindRevert {
		return nil, apperr.NewValidationError("revert entries are created by reverting, not recorded directly")
	}
	if err := validate.Struct(&m); err != nil {
		return nil, apperr.FromValidator(err, "invalid mutation")
	}

	reversible := e.supports(m.EntityKind, m.ChangedFields)
	if m.Reversible != nil {
		if *m.Reversible && !reversible {
			return nil, apperr.NewValidationError("changes to %s cannot be reverted automatically", m.EntityKind)
		}
		reversible = *m.Reversible
	}

	return &models.AuditEntry{
		ID:            uuid.NewString(),
		ChangeKind:    m.ChangeKind,
		EntityKind:    m.EntityKind,
		EntityID:      m.EntityID,
		EntityName:    m.EntityName,
		ActorID:       m.ActorID,
		ActorName:     m.ActorName,
		ActorEmail:    m.ActorEmail,
		Description:   m.Description,
		ChangedFields: m.ChangedFields,
		Reversible:    reversible,
		IPAddress:     m.IPAddress,
		UserAgent:     m.UserAgent,
	}, nil
}

// Record appends an entry for a change that was already applied elsewhere.
func (e *Engine) Record(ctx context.Context, m Mutation) (*models.AuditEntry, error) {
	return e.Execute(ctx, m, nil)
}

// Execute applies a state change and appends its entry in one unit of work.
func (e *Engine) Execute(ctx context.Context, m Mutation, apply func(ctx context.Context) error) (*models.AuditEntry, error) {
	entry, err := e.build(m)
	if err != nil {
		return nil, err
	}

	err = e.tx.WithinTransaction(ctx, func(ctx context.Context) error {
		if apply != nil {
			if err := apply(ctx); err != nil {
				return err
			}
		}
		// Stamped under the unit of work so timestamps follow append order.
		entry.Timestamp = e.stamp()
		return e.store.Append(ctx, entry)
	})
	if err != nil {
		return nil, err
	}

	logrus.WithFields(logrus.Fields{
		"entry_id":    entry.ID,
		"change_kind": entry.ChangeKind,
		"entity_kind": entry.EntityKind,
		"entity_id":   entry.EntityID,
		"actor_id":    entry.ActorID,
	}).Info("Audit entry recorded")

	return entry, nil
}

// Revert undoes entryID by applying its inverted changes and appending a
// Revert entry pointing back at it. An entry can be reverted once; reversals
// themselves cannot be reverted.
func (e *Engine) Revert(ctx context.Context, entryID string, actor models.Actor) (*models.AuditEntry, error) {
	if strings.TrimSpace(actor.ID) == "" {
		actor = models.SystemActor
	}

	unlock := e.locks.Lock(entryID)
	defer unlock()

	var reversal *models.AuditEntry
	err := e.tx.WithinTransaction(ctx, func(ctx context.Context) error {
		original, err := e.store.Get(ctx, entryID)
		if err != nil {
			return err
		}
		if err := checkReversible(original); err != nil {
			return err
		}

		inverse := original.ChangedFields.Inverted()
		if e.applier == nil {
			return &apperr.NotReversibleError{EntryID: entryID, Reason: "no live state to revert"}
		}
		if err := e.applier.Apply(ctx, original.EntityKind, original.EntityID, inverse); err != nil {
			return fmt.Errorf("failed to revert %s: %w", entryID, err)
		}

		originalID := original.ID
		reversal = &models.AuditEntry{
			ID:            uuid.NewString(),
			Timestamp:     e.stamp(),
			ChangeKind:    models.ChangeKindRevert,
			EntityKind:    original.EntityKind,
			EntityID:      original.EntityID,
			EntityName:    original.EntityName,
			ActorID:       actor.ID,
			ActorName:     actor.Name,
			ActorEmail:    actor.Email,
			Description:   revertDescription(original),
			ChangedFields: inverse,
			Reversible:    false,
			ReversalOfID:  &originalID,
		}
		return e.store.Append(ctx, reversal)
	})
	if err != nil {
		return nil, err
	}

	logrus.WithFields(logrus.Fields{
		"entry_id":    reversal.ID,
		"reversal_of": entryID,
		"actor_id":    actor.ID,
	}).Info("Audit entry reverted")

	return reversal, nil
}

func checkReversible(e *models.AuditEntry) error {
	switch {
	case e.IsReversal():
		return &apperr.NotReversibleError{EntryID: e.ID, Reason: "entry is itself a reversal"}
	case e.RevertedByID != "":
		return &apperr.NotReversibleError{EntryID: e.ID, Reason: "already reverted by " + e.RevertedByID}
	case !e.Reversible:
		return &apperr.NotReversibleError{EntryID: e.ID, Reason: "entry is marked irreversible"}
	case len(e.ChangedFields) == 0:
		return &apperr.NotReversibleError{EntryID: e.ID, Reason: "entry has no changed fields"}
	}
	return nil
}

func revertDescription(e *models.AuditEntry) string {
	if e.Description == "" {
		return fmt.Sprintf("Reverted %s %s of %s %s", e.ChangeKind, e.ID, e.EntityKind, e.EntityID)
	}
	return fmt.Sprintf("Reverted %s: %s", e.ID, e.Description)
}

func historyLimit(limit int) int {
	if limit <= 0 {
		return DefaultHistoryLimit
	}
	return limit
}

// History lists entries for one entity, newest first.
func (e *Engine) History(ctx context.Context, kind models.EntityKind, entityID string, limit int) ([]models.AuditEntry, error) {
	if !kind.Valid() {
		return nil, apperr.NewValidationError("unknown entity kind %q", kind)
	}
	return e.store.ListByEntity(ctx, kind, strings.TrimSpace(entityID), historyLimit(limit))
}

func (e *Engine) ActorHistory(ctx context.Context, actorID string, limit int) ([]models.AuditEntry, error) {
	return e.store.ListByActor(ctx, strings.TrimSpace(actorID), historyLimit(limit))
}

func (e *Engine) Recent(ctx context.Context, limit int) ([]models.AuditEntry, error) {
	return e.store.ListRecent(ctx, historyLimit(limit))
}

func (e *Engine) Get(ctx context.Context, id string) (*models.AuditEntry, error) {
	return e.store.Get(ctx, id)
}

type keyedMutex struct {
	mu    sync.Mutex
	locks map[string]*refLock
}

type refLock struct {
	sync.Mutex
	refs int
}

func newKeyedMutex() *keyedMutex {
	return &keyedMutex{locks: make(map[string]*refLock)}
}

func (k *keyedMutex) Lock(key string) func() {
	k.mu.Lock()
	l, ok := k.locks[key]
	if !ok {
		l = &refLock{}
		k.locks[key] = l
	}
	l.refs++
	k.mu.Unlock()

	l.Lock()
	return func() {
		l.Unlock()
		k.mu.Lock()
		l.refs--
		if l.refs == 0 {
			delete(k.locks, key)
		}
		k.mu.Unlock()
	}
}
