package database

import (
	"context"
	"embed"
	"strings"

	"github.com/gocraft/dbr/v2"
	"github.com/gocraft/dbr/v2/dialect"
	"github.com/pkg/errors"
)

//go:embed schema/*.sql
var schemas embed.FS

// Schema returns the DDL statements for a given dialect
func Schema(d dbr.Dialect) ([]string, error) {
	name := "schema/mysql.sql"
	if d == dialect.PostgreSQL {
		name = "schema/postgres.sql"
	}

	buf, err := schemas.ReadFile(name)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to read %s", name)
	}

	stmts := make([]string, 0)
	for _, stmt := range strings.Split(string(buf), ";") {
		if stmt = strings.TrimSpace(stmt); stmt != "" {
			stmts = append(stmts, stmt)
		}
	}

	return stmts, nil
}

// Migrate applies the schema within a single transaction
func Migrate(ctx context.Context, conn *dbr.Connection) error {
	if conn == nil {
		return ErrNilConnection
	}

	stmts, err := Schema(conn.Dialect)
	if err != nil {
		return err
	}

	tx, err := conn.NewSession(nil).BeginTx(ctx, nil)
	if err != nil {
		return errors.Wrap(err, "failed to begin migration")
	}
	defer tx.RollbackUnlessCommitted()

	for _, stmt := range stmts {
		if _, err = tx.ExecContext(ctx, stmt); err != nil {
			return errors.Wrapf(err, "failed to apply statement: %.60s", stmt)
		}
	}

	return errors.Wrap(tx.Commit(), "failed to commit migration")
}
