package database_test

import (
	"context"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/agubarev/handbook/pkg/database"
	"github.com/agubarev/handbook/pkg/fault"
	"github.com/go-sql-driver/mysql"
	"github.com/gocraft/dbr/v2"
	"github.com/gocraft/dbr/v2/dialect"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func mockConnection(t *testing.T) (*dbr.Connection, sqlmock.Sqlmock) {
	conn, mock, err := database.NewMockConnection(dialect.MySQL)
	require.NoError(t, err)

	t.Cleanup(func() { conn.Close() })

	return conn, mock
}

func TestSQLTransactorCommit(t *testing.T) {
	a := assert.New(t)

	conn, mock := mockConnection(t)
	tr, err := database.NewSQLTransactor(conn, nil)
	a.NoError(err)

	mock.ExpectBegin()
	mock.ExpectExec("UPDATE `manual` SET").WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	err = tr.WithTx(context.Background(), func(ctx context.Context) error {
		a.True(database.InTx(ctx))

		// nested transactions join the outer one
		return tr.WithTx(ctx, func(ctx context.Context) error {
			_, err := database.Runner(ctx, conn).
				Update("manual").
				Set("title", "x").
				Where("id = ?", 1).
				ExecContext(ctx)

			return err
		})
	})

	a.NoError(err)
	a.NoError(mock.ExpectationsWereMet())
}

func TestSQLTransactorRollback(t *testing.T) {
	a := assert.New(t)

	conn, mock := mockConnection(t)
	tr, err := database.NewSQLTransactor(conn, nil)
	a.NoError(err)

	mock.ExpectBegin()
	mock.ExpectRollback()

	lockErr := fault.Lock("Manual", "Delete", "Cannot delete manual while delete lock is set")
	err = tr.WithTx(context.Background(), func(ctx context.Context) error {
		return lockErr
	})

	a.Equal(lockErr, err)
	a.NoError(mock.ExpectationsWereMet())
}

func TestInsertIDMySQL(t *testing.T) {
	a := assert.New(t)

	conn, mock := mockConnection(t)

	mock.ExpectExec("INSERT INTO `manual`").WillReturnResult(sqlmock.NewResult(42, 1))

	ctx := context.Background()
	stmt := database.Runner(ctx, conn).InsertInto("manual").Pair("title", "Safety")

	id, err := database.InsertID(ctx, conn.Dialect, stmt)
	a.NoError(err)
	a.Equal(uint32(42), id)
	a.NoError(mock.ExpectationsWereMet())
}

func TestMemoryTransactorUndo(t *testing.T) {
	a := assert.New(t)

	tr := database.NewMemoryTransactor()
	state := make([]int, 0)

	err := tr.WithTx(context.Background(), func(ctx context.Context) error {
		state = append(state, 1)
		database.Journal(ctx, func() { state = state[:len(state)-1] })

		state = append(state, 2)
		database.Journal(ctx, func() { state = state[:len(state)-1] })

		return errors.New("boom")
	})

	a.Error(err)
	a.Empty(state)

	err = tr.WithTx(context.Background(), func(ctx context.Context) error {
		state = append(state, 3)
		database.Journal(ctx, func() { state = state[:len(state)-1] })
		return nil
	})

	a.NoError(err)
	a.Equal([]int{3}, state)
}

func TestClassify(t *testing.T) {
	a := assert.New(t)

	a.Nil(database.Classify(nil, "Manual", "Insert"))
	a.True(fault.Is(database.Classify(dbr.ErrNotFound, "Manual", "Select"), fault.KNotFound))

	dup := &mysql.MySQLError{Number: 1062, Message: "Duplicate entry"}
	a.True(fault.Is(database.Classify(dup, "UserRole", "Insert"), fault.KInvariant))

	fk := &mysql.MySQLError{Number: 1452, Message: "Cannot add or update a child row"}
	a.True(fault.Is(database.Classify(errors.Wrap(fk, "insert"), "Content", "Insert"), fault.KInvariant))

	a.True(fault.Is(database.Classify(errors.New("connection reset"), "Manual", "Update"), fault.KStorage))

	lockErr := fault.Lock("Manual", "Update", "Manual is locked from editing.")
	a.Equal(lockErr, database.Classify(lockErr, "Manual", "Update"))
}

func TestSchema(t *testing.T) {
	a := assert.New(t)

	mysqlStmts, err := database.Schema(dialect.MySQL)
	a.NoError(err)
	a.NotEmpty(mysqlStmts)

	pgStmts, err := database.Schema(dialect.PostgreSQL)
	a.NoError(err)
	a.NotEmpty(pgStmts)

	a.Contains(mysqlStmts[0], "`business`")
	a.Contains(pgStmts[0], "business")
}
