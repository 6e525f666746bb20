// internal/txn/txn.go
package txn

import (
	"context"
	"fmt"
	"sync"
)

// Transactor runs fn as one unit of work. Everything fn changes through a
// participating store commits together or not at all.
type Transactor interface {
	WithinTransaction(ctx context.Context, fn func(ctx context.Context) error) error
}

type journalKey struct{}

type journal struct {
	undo   []func()
	commit []func() error
}

func (j *journal) rollback() {
	for i := len(j.undo) - 1; i >= 0; i-- {
		j.undo[i]()
	}
}

// MemoryTransactor serializes units of work over in-memory stores. Stores
// register undo steps with OnRollback and durable writes with OnCommit.
type MemoryTransactor struct {
	mu sync.Mutex
}

func NewMemoryTransactor() *MemoryTransactor {
	return &MemoryTransactor{}
}

func (t *MemoryTransactor) WithinTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	// Nested calls join the outer unit of work.
	if _, ok := ctx.Value(journalKey{}).(*journal); ok {
		return fn(ctx)
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	j := &journal{}
	ctx = context.WithValue(ctx, journalKey{}, j)

	defer func() {
		if r := recover(); r != nil {
			j.rollback()
			panic(r)
		}
	}()

	if err := fn(ctx); err != nil {
		j.rollback()
		return err
	}

	for _, commit := range j.commit {
		if err := commit(); err != nil {
			j.rollback()
			return fmt.Errorf("failed to commit: %w", err)
		}
	}

	return nil
}

// OnRollback registers undo to run if the surrounding unit of work fails.
// Outside a unit of work it does nothing.
func OnRollback(ctx context.Context, undo func()) {
	if j, ok := ctx.Value(journalKey{}).(*journal); ok {
		j.undo = append(j.undo, undo)
	}
}

// OnCommit defers commit until the unit of work succeeds. Outside a unit of
// work it runs immediately.
func OnCommit(ctx context.Context, commit func() error) error {
	if j, ok := ctx.Value(journalKey{}).(*journal); ok {
		j.commit = append(j.commit, commit)
		return nil
	}
	return commit()
}

// InTransaction reports whether ctx carries an in-memory unit of work.
func InTransaction(ctx context.Context) bool {
	_, ok := ctx.Value(journalKey{}).(*journal)
	return ok
}
