package database

import (
	"context"
	"database/sql"
	"sync"

	"github.com/agubarev/handbook/pkg/fault"
	"github.com/gocraft/dbr/v2"
	"github.com/gocraft/dbr/v2/dialect"
	"github.com/pkg/errors"
	"go.uber.org/zap"
)

// Transactor runs a function inside a single transaction; nested
// calls join the transaction that is already carried by the context
type Transactor interface {
	WithTx(ctx context.Context, fn func(ctx context.Context) error) error
}

type txKey struct{}

// InTx reports whether the context carries a transaction
func InTx(ctx context.Context) bool {
	return ctx.Value(txKey{}) != nil
}

//---------------------------------------------------------------------------
// SQL
//---------------------------------------------------------------------------

// SQLTransactor begins dbr transactions and carries them in the context
type SQLTransactor struct {
	conn   *dbr.Connection
	opts   *sql.TxOptions
	logger *zap.Logger
}

// NewSQLTransactor returns a transactor over a given connection
func NewSQLTransactor(conn *dbr.Connection, logger *zap.Logger) (*SQLTransactor, error) {
	if conn == nil {
		return nil, ErrNilConnection
	}

	if logger == nil {
		logger = zap.NewNop()
	}

	return &SQLTransactor{
		conn:   conn,
		opts:   &sql.TxOptions{Isolation: sql.LevelReadCommitted},
		logger: logger.Named("[tx]"),
	}, nil
}

// WithTx runs fn within a transaction, which is committed only if fn succeeds
func (t *SQLTransactor) WithTx(ctx context.Context, fn func(ctx context.Context) error) (err error) {
	if InTx(ctx) {
		return fn(ctx)
	}

	tx, err := t.conn.NewSession(nil).BeginTx(ctx, t.opts)
	if err != nil {
		return fault.Storage(err, "failed to begin transaction")
	}
	defer tx.RollbackUnlessCommitted()

	if err = fn(context.WithValue(ctx, txKey{}, tx)); err != nil {
		return err
	}

	if err = tx.Commit(); err != nil {
		t.logger.Warn("failed to commit transaction", zap.Error(err))
		return fault.Storage(err, "failed to commit transaction")
	}

	return nil
}

// Runner returns the transaction carried by the context, or a plain session
func Runner(ctx context.Context, conn *dbr.Connection) dbr.SessionRunner {
	if tx, ok := ctx.Value(txKey{}).(*dbr.Tx); ok {
		return tx
	}

	return conn.NewSession(nil)
}

// ForUpdate appends a row lock clause to a select statement
func ForUpdate(q string) string {
	return q + " FOR UPDATE"
}

// InsertID executes an insert statement and returns the generated id
func InsertID(ctx context.Context, d dbr.Dialect, stmt *dbr.InsertStmt) (uint32, error) {
	if d == dialect.PostgreSQL {
		var id uint32
		if err := stmt.Returning("id").LoadContext(ctx, &id); err != nil {
			return 0, err
		}

		return id, nil
	}

	res, err := stmt.ExecContext(ctx)
	if err != nil {
		return 0, err
	}

	id, err := res.LastInsertId()
	if err != nil {
		return 0, errors.Wrap(err, "failed to obtain last insert id")
	}

	return uint32(id), nil
}

//---------------------------------------------------------------------------
// memory
//---------------------------------------------------------------------------

type memoryTx struct {
	undo []func()
}

// MemoryTransactor serializes transactions with a single mutex and
// undoes journaled writes when a transaction fails
type MemoryTransactor struct {
	sync.Mutex
}

// NewMemoryTransactor returns a transactor for in-memory stores
func NewMemoryTransactor() *MemoryTransactor {
	return &MemoryTransactor{}
}

// WithTx runs fn exclusively, rolling back journaled writes on failure
func (t *MemoryTransactor) WithTx(ctx context.Context, fn func(ctx context.Context) error) error {
	if InTx(ctx) {
		return fn(ctx)
	}

	t.Lock()
	defer t.Unlock()

	mtx := &memoryTx{}
	if err := fn(context.WithValue(ctx, txKey{}, mtx)); err != nil {
		for i := len(mtx.undo) - 1; i >= 0; i-- {
			mtx.undo[i]()
		}

		return err
	}

	return nil
}

// Journal registers a function that reverts a write made by a memory
// store, it is a no-op outside of a memory transaction
func Journal(ctx context.Context, undo func()) {
	if mtx, ok := ctx.Value(txKey{}).(*memoryTx); ok {
		mtx.undo = append(mtx.undo, undo)
	}
}
