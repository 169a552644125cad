package database

import (
	"github.com/DATA-DOG/go-sqlmock"
	"github.com/gocraft/dbr/v2"
	"github.com/pkg/errors"
)

// NewMockConnection returns a dbr connection backed by sqlmock, for store tests
func NewMockConnection(d dbr.Dialect) (*dbr.Connection, sqlmock.Sqlmock, error) {
	db, mock, err := sqlmock.New()
	if err != nil {
		return nil, nil, errors.Wrap(err, "failed to initialize sqlmock")
	}

	conn := &dbr.Connection{
		DB:            db,
		Dialect:       d,
		EventReceiver: &dbr.NullEventReceiver{},
	}

	return conn, mock, nil
}
