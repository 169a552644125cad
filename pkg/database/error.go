package database

import (
	"fmt"

	"github.com/agubarev/handbook/pkg/fault"
	"github.com/go-sql-driver/mysql"
	"github.com/gocraft/dbr/v2"
	"github.com/jackc/pgx"
	"github.com/pkg/errors"
)

// constraint violation codes
const (
	mysqlDuplicateEntry   = 1062
	mysqlNoReferencedRow  = 1452
	mysqlRowIsReferenced  = 1451
	pgUniqueViolation     = "23505"
	pgForeignKeyViolation = "23503"
)

// Classify turns a raw storage error into a typed one
// NOTE: constraint violations are reported as invariant errors
func Classify(err error, entity, op string) error {
	if err == nil {
		return nil
	}

	if _, ok := fault.As(err); ok {
		return err
	}

	if errors.Cause(err) == dbr.ErrNotFound {
		return fault.NotFound(entity)
	}

	switch constraintOf(err) {
	case "duplicate":
		return fault.Invariant(entity, op, "record already exists")
	case "reference":
		return fault.Invariant(entity, op, "referenced record does not exist or is still in use")
	}

	return fault.Storage(err, fmt.Sprintf("%s %s failed", entity, op))
}

func constraintOf(err error) string {
	switch e := errors.Cause(err).(type) {
	case *mysql.MySQLError:
		switch e.Number {
		case mysqlDuplicateEntry:
			return "duplicate"
		case mysqlNoReferencedRow, mysqlRowIsReferenced:
			return "reference"
		}
	case pgx.PgError:
		return pgConstraint(e.Code)
	case *pgx.PgError:
		return pgConstraint(e.Code)
	}

	return ""
}

func pgConstraint(code string) string {
	switch code {
	case pgUniqueViolation:
		return "duplicate"
	case pgForeignKeyViolation:
		return "reference"
	}

	return ""
}
