package database

import (
	"github.com/go-sql-driver/mysql"
	"github.com/gocraft/dbr/v2"
	"github.com/pkg/errors"
	"go.uber.org/zap"
)

// MySQLConnection opens a dbr connection to MySQL
// NOTE: parseTime is forced on, timestamps are scanned into time.Time
func MySQLConnection(dsn string, logger *zap.Logger) (*dbr.Connection, error) {
	conf, err := mysql.ParseDSN(dsn)
	if err != nil {
		return nil, errors.Wrap(err, "failed to parse mysql dsn")
	}

	conf.ParseTime = true

	conn, err := dbr.Open(DriverMySQL, conf.FormatDSN(), nil)
	if err != nil {
		return nil, errors.Wrap(err, "failed to connect to mysql")
	}

	if logger != nil {
		logger.Info("connected to mysql", zap.String("addr", conf.Addr), zap.String("db", conf.DBName))
	}

	return conn, nil
}
