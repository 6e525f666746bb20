// internal/audit/engine_test.go
package audit

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/javajoker/canva-seat-ledger/internal/apperr"
	"github.com/javajoker/canva-seat-ledger/internal/models"
	"github.com/javajoker/canva-seat-ledger/internal/txn"
)

type fakeApplier struct {
	mu     sync.Mutex
	limits map[string]interface{}
	fail   error
	calls  int
}

func newFakeApplier() *fakeApplier {
	return &fakeApplier{limits: make(map[string]interface{})}
}

func (f *fakeApplier) Supports(kind models.EntityKind, changes models.FieldChanges) bool {
	return kind == models.EntityKindSchool
}

func (f *fakeApplier) Apply(ctx context.Context, kind models.EntityKind, id string, changes models.FieldChanges) error {
	if f.fail != nil {
		return f.fail
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	f.calls++
	prev, had := f.limits[id]
	for _, c := range changes {
		if c.Field == "max_licenses" {
			f.limits[id] = c.After
		}
	}
	txn.OnRollback(ctx, func() {
		f.mu.Lock()
		defer f.mu.Unlock()
		if had {
			f.limits[id] = prev
		} else {
			delete(f.limits, id)
		}
	})
	return nil
}

func (f *fakeApplier) limit(id string) interface{} {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.limits[id]
}

func limitChange(schoolID string, before, after interface{}) Mutation {
	return Mutation{
		ChangeKind:    models.ChangeKindUpdate,
		EntityKind:    models.EntityKindSchool,
		EntityID:      schoolID,
		EntityName:    "School " + schoolID,
		ActorID:       "u-1",
		ActorName:     "Operator",
		ActorEmail:    "op@maplebear.com.br",
		Description:   "limit change",
		ChangedFields: models.FieldChanges{{Field: "max_licenses", Before: before, After: after}},
	}
}

func newTestEngine() (*Engine, *MemoryStore, *fakeApplier) {
	store := NewMemoryStore()
	applier := newFakeApplier()
	return NewEngine(store, txn.NewMemoryTransactor(), applier), store, applier
}

func TestRecordValidation(t *testing.T) {
	engine, store, _ := newTestEngine()
	ctx := context.Background()

	blankEntity := limitChange("   ", 2, 5)
	noActor := limitChange("12", 2, 5)
	noActor.ActorID = ""
	badKind := limitChange("12", 2, 5)
	badKind.EntityKind = "Galaxy"
	revertKind := limitChange("12", 2, 5)
	revertKind.ChangeKind = models.ChangeKindRevert
	badEmail := limitChange("12", 2, 5)
	badEmail.ActorEmail = "not-an-email"

	for name, m := range map[string]Mutation{
		"blank entity": blankEntity,
		"no actor":     noActor,
		"bad kind":     badKind,
		"revert kind":  revertKind,
		"bad email":    badEmail,
	} {
		_, err := engine.Record(ctx, m)
		assert.True(t, errors.Is(err, apperr.ErrValidation), name)
	}
	assert.Equal(t, 0, store.Len())
}

func TestRecordDefaultsReversibility(t *testing.T) {
	engine, _, _ := newTestEngine()
	ctx := context.Background()

	entry, err := engine.Record(ctx, limitChange("12", 2, 5))
	require.NoError(t, err)
	assert.True(t, entry.Reversible)
	assert.NotEmpty(t, entry.ID)

	cluster := limitChange("sul", 2, 5)
	cluster.EntityKind = models.EntityKindCluster
	entry, err = engine.Record(ctx, cluster)
	require.NoError(t, err)
	assert.False(t, entry.Reversible)

	forced := true
	cluster.Reversible = &forced
	_, err = engine.Record(ctx, cluster)
	assert.True(t, errors.Is(err, apperr.ErrValidation))
}

func TestHistoryNewestFirst(t *testing.T) {
	engine, _, _ := newTestEngine()
	ctx := context.Background()

	var ids []string
	for i := 0; i < 3; i++ {
		e, err := engine.Record(ctx, limitChange("12", i, i+1))
		require.NoError(t, err)
		ids = append(ids, e.ID)
	}
	_, err := engine.Record(ctx, limitChange("15", 2, 3))
	require.NoError(t, err)

	history, err := engine.History(ctx, models.EntityKindSchool, "12", 0)
	require.NoError(t, err)
	require.Len(t, history, 3)
	assert.Equal(t, ids[2], history[0].ID)
	assert.Equal(t, ids[0], history[2].ID)
	assert.True(t, history[0].Timestamp.After(history[1].Timestamp))

	limited, err := engine.History(ctx, models.EntityKindSchool, "12", 1)
	require.NoError(t, err)
	require.Len(t, limited, 1)
	assert.Equal(t, ids[2], limited[0].ID)

	byActor, err := engine.ActorHistory(ctx, "u-1", 0)
	require.NoError(t, err)
	assert.Len(t, byActor, 4)

	_, err = engine.History(ctx, "Galaxy", "12", 0)
	assert.True(t, errors.Is(err, apperr.ErrValidation))
}

func TestExecuteFailedApplyRecordsNothing(t *testing.T) {
	engine, store, _ := newTestEngine()

	_, err := engine.Execute(context.Background(), limitChange("12", 2, 5), func(ctx context.Context) error {
		return errors.New("school is locked")
	})

	require.Error(t, err)
	assert.Equal(t, 0, store.Len())
}

func TestRevert(t *testing.T) {
	engine, _, applier := newTestEngine()
	ctx := context.Background()

	original, err := engine.Execute(ctx, limitChange("12", nil, 5), func(ctx context.Context) error {
		return applier.Apply(ctx, models.EntityKindSchool, "12", models.FieldChanges{{Field: "max_licenses", After: 5}})
	})
	require.NoError(t, err)
	assert.Equal(t, 5, applier.limit("12"))

	reversal, err := engine.Revert(ctx, original.ID, models.Actor{ID: "u-2", Name: "Reviewer"})
	require.NoError(t, err)

	assert.Equal(t, models.ChangeKindRevert, reversal.ChangeKind)
	require.NotNil(t, reversal.ReversalOfID)
	assert.Equal(t, original.ID, *reversal.ReversalOfID)
	assert.Equal(t, "u-2", reversal.ActorID)
	assert.False(t, reversal.Reversible)
	assert.Equal(t, models.FieldChanges{{Field: "max_licenses", Before: 5, After: nil}}, reversal.ChangedFields)
	assert.Nil(t, applier.limit("12"))

	consumed, err := engine.Get(ctx, original.ID)
	require.NoError(t, err)
	assert.False(t, consumed.Reversible)
	assert.Equal(t, reversal.ID, consumed.RevertedByID)

	_, err = engine.Revert(ctx, original.ID, models.Actor{ID: "u-2"})
	assert.True(t, errors.Is(err, apperr.ErrNotReversible))

	_, err = engine.Revert(ctx, reversal.ID, models.Actor{ID: "u-2"})
	assert.True(t, errors.Is(err, apperr.ErrNotReversible))
}

func TestRevertDefaultsToSystemActor(t *testing.T) {
	engine, _, _ := newTestEngine()
	ctx := context.Background()

	original, err := engine.Record(ctx, limitChange("12", 2, 5))
	require.NoError(t, err)

	reversal, err := engine.Revert(ctx, original.ID, models.Actor{})
	require.NoError(t, err)
	assert.Equal(t, models.SystemActor.ID, reversal.ActorID)
}

func TestRevertErrors(t *testing.T) {
	engine, store, applier := newTestEngine()
	ctx := context.Background()

	_, err := engine.Revert(ctx, "missing", models.Actor{ID: "u-1"})
	assert.True(t, errors.Is(err, apperr.ErrNotFound))

	irreversible := limitChange("12", 2, 5)
	no := false
	irreversible.Reversible = &no
	entry, err := engine.Record(ctx, irreversible)
	require.NoError(t, err)
	_, err = engine.Revert(ctx, entry.ID, models.Actor{ID: "u-1"})
	assert.True(t, errors.Is(err, apperr.ErrNotReversible))

	entry, err = engine.Record(ctx, limitChange("15", 2, 5))
	require.NoError(t, err)
	applier.fail = errors.New("school vanished")
	_, err = engine.Revert(ctx, entry.ID, models.Actor{ID: "u-1"})
	require.Error(t, err)
	assert.Equal(t, 2, store.Len())

	applier.fail = nil
	got, err := engine.Get(ctx, entry.ID)
	require.NoError(t, err)
	assert.True(t, got.Reversible)
	assert.Empty(t, got.RevertedByID)
}

func TestConcurrentRevertSucceedsOnce(t *testing.T) {
	engine, store, _ := newTestEngine()
	ctx := context.Background()

	original, err := engine.Record(ctx, limitChange("12", 2, 5))
	require.NoError(t, err)

	var wins, refusals int32
	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := engine.Revert(ctx, original.ID, models.Actor{ID: "u-1"})
			switch {
			case err == nil:
				atomic.AddInt32(&wins, 1)
			case errors.Is(err, apperr.ErrNotReversible):
				atomic.AddInt32(&refusals, 1)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(1), wins)
	assert.Equal(t, int32(19), refusals)
	assert.Equal(t, 2, store.Len())
}

func TestConcurrentExecuteKeepsTimestampOrder(t *testing.T) {
	engine, _, _ := newTestEngine()
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := 0; i < 40; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, err := engine.Execute(ctx, limitChange("12", i, i+1), func(ctx context.Context) error {
				return nil
			})
			assert.NoError(t, err)
		}(i)
	}
	wg.Wait()

	recent, err := engine.Recent(ctx, 100)
	require.NoError(t, err)
	require.Len(t, recent, 40)
	for i := 1; i < len(recent); i++ {
		assert.True(t, recent[i-1].Timestamp.After(recent[i].Timestamp), "entry %d is out of order", i)
	}
}

func TestExecuteRollsBackWhenLogWriteFails(t *testing.T) {
	log, err := OpenFileLog(filepath.Join(t.TempDir(), "audit.jsonl"))
	require.NoError(t, err)
	store, err := NewFileBackedStore(log)
	require.NoError(t, err)
	applier := newFakeApplier()
	engine := NewEngine(store, txn.NewMemoryTransactor(), applier)

	require.NoError(t, log.Close())

	_, err = engine.Execute(context.Background(), limitChange("12", nil, 5), func(ctx context.Context) error {
		return applier.Apply(ctx, models.EntityKindSchool, "12", models.FieldChanges{{Field: "max_licenses", After: 5}})
	})

	require.Error(t, err)
	assert.Equal(t, 0, store.Len())
	assert.Nil(t, applier.limit("12"))
}

func TestFileBackedStoreReplaysLedger(t *testing.T) {
	path := filepath.Join(t.TempDir(), "audit", "audit.jsonl")
	ctx := context.Background()

	log, err := OpenFileLog(path)
	require.NoError(t, err)
	store, err := NewFileBackedStore(log)
	require.NoError(t, err)
	engine := NewEngine(store, txn.NewMemoryTransactor(), newFakeApplier())

	original, err := engine.Record(ctx, limitChange("12", 2, 5))
	require.NoError(t, err)
	reversal, err := engine.Revert(ctx, original.ID, models.Actor{ID: "u-9"})
	require.NoError(t, err)
	require.NoError(t, log.Close())

	// Simulate a torn write left by a crash.
	f, err := os.OpenFile(path, os.O_APPEND|os.O_WRONLY, 0o644)
	require.NoError(t, err)
	_, err = f.WriteString(`{"id":"torn`)
	require.NoError(t, err)
	require.NoError(t, f.Close())

	log, err = OpenFileLog(path)
	require.NoError(t, err)
	defer log.Close()
	replayed, err := NewFileBackedStore(log)
	require.NoError(t, err)
	assert.Equal(t, 2, replayed.Len())

	got, err := replayed.Get(ctx, original.ID)
	require.NoError(t, err)
	assert.Equal(t, reversal.ID, got.RevertedByID)
	assert.False(t, got.Reversible)
	assert.Equal(t, "max_licenses", got.ChangedFields[0].Field)
	assert.Equal(t, float64(5), got.ChangedFields[0].After)

	engine = NewEngine(replayed, txn.NewMemoryTransactor(), newFakeApplier())
	_, err = engine.Revert(ctx, original.ID, models.Actor{ID: "u-9"})
	assert.True(t, errors.Is(err, apperr.ErrNotReversible))

	_, err = engine.Record(ctx, limitChange("15", 2, 3))
	require.NoError(t, err)
	entries, err := log.ReadAll()
	require.NoError(t, err)
	assert.Len(t, entries, 3)
}
