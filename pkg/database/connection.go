package database

import (
	"os"
	"strings"

	"github.com/agubarev/handbook/pkg/util"
	"github.com/gocraft/dbr/v2"
	"github.com/pkg/errors"
	"go.uber.org/zap"
)

// errors
var (
	ErrNilConnection     = errors.New("database connection is nil")
	ErrUnsupportedDriver = errors.New("unsupported database driver")
	ErrEmptyDSN          = errors.New("database dsn is empty")
)

// supported drivers
const (
	DriverMySQL    = "mysql"
	DriverPostgres = "postgres"
	DriverMemory   = "memory"
)

// Open connects to a database by driver name
func Open(driver, dsn string, logger *zap.Logger) (*dbr.Connection, error) {
	dsn = strings.TrimSpace(dsn)

	// better safe than sorry
	if util.IsTestMode() {
		dsn = strings.TrimSpace(os.Getenv("HANDBOOK_TEST_DATABASE"))
	}

	if dsn == "" {
		return nil, ErrEmptyDSN
	}

	switch driver {
	case DriverMySQL:
		return MySQLConnection(dsn, logger)
	case DriverPostgres:
		return PostgreSQLConnection(dsn, logger)
	default:
		return nil, errors.Wrapf(ErrUnsupportedDriver, "driver %q", driver)
	}
}
