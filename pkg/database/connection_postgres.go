package database

import (
	"github.com/gocraft/dbr/v2"
	"github.com/gocraft/dbr/v2/dialect"
	"github.com/jackc/pgx"
	"github.com/jackc/pgx/log/zapadapter"
	"github.com/jackc/pgx/stdlib"
	"github.com/pkg/errors"
	"go.uber.org/zap"
)

// PostgreSQLConnection opens a dbr connection on top of pgx
func PostgreSQLConnection(dsn string, logger *zap.Logger) (*dbr.Connection, error) {
	conf, err := pgx.ParseDSN(dsn)
	if err != nil {
		return nil, errors.Wrap(err, "failed to parse postgres dsn")
	}

	// injecting logger into database instance
	if logger != nil {
		conf.Logger = zapadapter.NewLogger(logger.Named("[pgx]"))
		conf.LogLevel = pgx.LogLevelWarn
	}

	db := stdlib.OpenDB(conf)
	if err = db.Ping(); err != nil {
		return nil, errors.Wrap(err, "failed to connect to postgres")
	}

	return &dbr.Connection{
		DB:            db,
		Dialect:       dialect.PostgreSQL,
		EventReceiver: &dbr.NullEventReceiver{},
	}, nil
}
