package service

import (
	"context"
	"database/sql"
	"fmt"
	"sync"

	txcontext "labcert/pkg/platform/tx"
)

// StoreTx provides the transactional boundary around issuance's
// duplicate-check-and-insert. Implementations may wrap a database
// transaction or, in memory, a coarse lock. Either way the store's
// unique constraints remain the backstop; the boundary only narrows the
// race window and keeps reads consistent.
type StoreTx interface {
	RunInTx(ctx context.Context, fn func(ctx context.Context) error) error
}

// inMemoryStoreTx serializes issuance in-process. Sufficient for the
// in-memory stores, which only ever run single-instance.
type inMemoryStoreTx struct {
	mu sync.Mutex
}

func newInMemoryStoreTx() *inMemoryStoreTx { return &inMemoryStoreTx{} }

func (t *inMemoryStoreTx) RunInTx(ctx context.Context, fn func(ctx context.Context) error) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	return fn(ctx)
}

// SQLStoreTx runs the callback inside a database transaction, exposing
// the *sql.Tx to stores through the context.
type SQLStoreTx struct {
	db *sql.DB
}

// NewSQLStoreTx constructs a transaction runner over db.
func NewSQLStoreTx(db *sql.DB) *SQLStoreTx { return &SQLStoreTx{db: db} }

func (t *SQLStoreTx) RunInTx(ctx context.Context, fn func(ctx context.Context) error) error {
	tx, err := t.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	if err := fn(txcontext.WithTx(ctx, tx)); err != nil {
		_ = tx.Rollback()
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	return nil
}
