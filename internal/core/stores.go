package core

import (
	"github.com/agubarev/handbook/internal/config"
	"github.com/agubarev/handbook/pkg/business"
	"github.com/agubarev/handbook/pkg/database"
	"github.com/agubarev/handbook/pkg/event"
	"github.com/agubarev/handbook/pkg/manual"
	"github.com/agubarev/handbook/pkg/quiz"
	"github.com/agubarev/handbook/pkg/role"
	"github.com/gocraft/dbr/v2"
	"github.com/pkg/errors"
	"go.uber.org/zap"
)

// Stores is the set of stores the core is built upon
type Stores struct {
	Roles      role.Store
	Businesses business.Store
	Manuals    manual.Store
	Quizzes    quiz.Store
	Events     event.Store
}

// Validate stores
func (s Stores) Validate() error {
	if s.Roles == nil || s.Businesses == nil || s.Manuals == nil || s.Quizzes == nil || s.Events == nil {
		return ErrNilStore
	}

	return nil
}

// NewMemoryStores returns stores keeping everything in memory
func NewMemoryStores() Stores {
	return Stores{
		Roles:      role.NewMemoryStore(),
		Businesses: business.NewMemoryStore(),
		Manuals:    manual.NewMemoryStore(),
		Quizzes:    quiz.NewMemoryStore(),
		Events:     event.NewMemoryStore(),
	}
}

// NewSQLStores returns stores over a given database connection
func NewSQLStores(conn *dbr.Connection) (s Stores, err error) {
	if conn == nil {
		return s, database.ErrNilConnection
	}

	if s.Roles, err = role.NewSQLStore(conn); err != nil {
		return s, err
	}

	if s.Businesses, err = business.NewSQLStore(conn); err != nil {
		return s, err
	}

	if s.Manuals, err = manual.NewSQLStore(conn); err != nil {
		return s, err
	}

	if s.Quizzes, err = quiz.NewSQLStore(conn); err != nil {
		return s, err
	}

	if s.Events, err = event.NewSQLStore(conn); err != nil {
		return s, err
	}

	return s, nil
}

// Open builds the core as configured; the returned function
// releases the database handles
func Open(c config.Config, logger *zap.Logger) (_ *Core, closeFn func() error, err error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	var (
		tx      database.Transactor
		stores  Stores
		closers []func() error
	)

	closeFn = func() (err error) {
		for i := len(closers) - 1; i >= 0; i-- {
			if cerr := closers[i](); cerr != nil && err == nil {
				err = cerr
			}
		}

		return err
	}

	// releasing whatever has been opened so far
	defer func() {
		if err != nil {
			closeFn()
		}
	}()

	//---------------------------------------------------------------------------
	// primary storage
	//---------------------------------------------------------------------------
	switch c.Database.Driver {
	case database.DriverMemory:
		logger.Warn("using in-memory storage, nothing will be persisted")
		tx, stores = database.NewMemoryTransactor(), NewMemoryStores()
	default:
		conn, err := database.Open(c.Database.Driver, c.Database.DSN, logger)
		if err != nil {
			return nil, nil, errors.Wrap(err, "failed to connect to the database")
		}

		closers = append(closers, conn.Close)

		if tx, err = database.NewSQLTransactor(conn, logger); err != nil {
			return nil, nil, err
		}

		if stores, err = NewSQLStores(conn); err != nil {
			return nil, nil, err
		}
	}

	//---------------------------------------------------------------------------
	// events may be kept apart from the primary storage
	//---------------------------------------------------------------------------
	dir, err := c.BadgerDir()
	if err != nil {
		return nil, nil, err
	}

	if dir != "" {
		db, err := event.OpenBadger(dir, logger)
		if err != nil {
			return nil, nil, err
		}

		closers = append(closers, db.Close)

		if stores.Events, err = event.NewBadgerStore(db); err != nil {
			return nil, nil, err
		}
	}

	hb, err := New(tx, stores, logger)
	if err != nil {
		return nil, nil, err
	}

	return hb, closeFn, nil
}
