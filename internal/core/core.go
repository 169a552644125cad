package core

import (
	"fmt"

	"github.com/agubarev/handbook/pkg/business"
	"github.com/agubarev/handbook/pkg/database"
	"github.com/agubarev/handbook/pkg/event"
	"github.com/agubarev/handbook/pkg/lock"
	"github.com/agubarev/handbook/pkg/manual"
	"github.com/agubarev/handbook/pkg/metrics"
	"github.com/agubarev/handbook/pkg/quiz"
	"github.com/agubarev/handbook/pkg/role"
	"github.com/pkg/errors"
	"go.uber.org/zap"
)

// Core is the aggregate of every manager, all of them sharing
// one transactor and one lock engine
type Core struct {
	tx         database.Transactor
	locks      *lock.Engine
	roles      *role.Manager
	businesses *business.Manager
	manuals    *manual.Manager
	quizzes    *quiz.Manager
	events     *event.Log
	metrics    *metrics.Metrics
	logger     *zap.Logger
}

// New wires the managers around the given stores
func New(tx database.Transactor, s Stores, logger *zap.Logger) (c *Core, err error) {
	if tx == nil {
		return nil, ErrNilTransactor
	}

	if err = s.Validate(); err != nil {
		return nil, err
	}

	if logger == nil {
		logger = zap.NewNop()
	}

	c = &Core{
		tx:      tx,
		locks:   lock.NewEngine(),
		metrics: metrics.New(),
	}

	if err = c.SetLogger(logger); err != nil {
		return nil, err
	}

	l := c.Logger()

	//---------------------------------------------------------------------------
	// lock engine
	//---------------------------------------------------------------------------
	if err = c.locks.SetLogger(logger); err != nil {
		return nil, err
	}

	c.locks.SetObserver(c.metrics)

	//---------------------------------------------------------------------------
	// roles and businesses
	//---------------------------------------------------------------------------
	l.Info("initializing role manager")
	if c.roles, err = role.NewManager(s.Roles, tx, c.locks); err != nil {
		return nil, errors.Wrap(err, "failed to initialize role manager")
	}

	if err = c.roles.SetLogger(logger); err != nil {
		return nil, err
	}

	c.roles.Resolver().SetObserver(c.metrics)

	l.Info("initializing business manager")
	if c.businesses, err = business.NewManager(s.Businesses, tx, c.locks, c.roles.Resolver(), c.roles); err != nil {
		return nil, errors.Wrap(err, "failed to initialize business manager")
	}

	if err = c.businesses.SetLogger(logger); err != nil {
		return nil, err
	}

	c.roles.SetMembers(c.businesses)

	//---------------------------------------------------------------------------
	// content and quizzes
	//---------------------------------------------------------------------------
	l.Info("initializing manual manager")
	if c.manuals, err = manual.NewManager(s.Manuals, tx, c.locks, c.roles); err != nil {
		return nil, errors.Wrap(err, "failed to initialize manual manager")
	}

	if err = c.manuals.SetLogger(logger); err != nil {
		return nil, err
	}

	l.Info("initializing quiz manager")
	if c.quizzes, err = quiz.NewManager(s.Quizzes, tx, c.locks, c.roles, c.manuals); err != nil {
		return nil, errors.Wrap(err, "failed to initialize quiz manager")
	}

	if err = c.quizzes.SetLogger(logger); err != nil {
		return nil, err
	}

	c.quizzes.SetObserver(c.metrics)

	//---------------------------------------------------------------------------
	// event log
	//---------------------------------------------------------------------------
	if c.events, err = event.NewLog(s.Events, c.locks); err != nil {
		return nil, errors.Wrap(err, "failed to initialize event log")
	}

	if err = c.events.SetLogger(logger); err != nil {
		return nil, err
	}

	return c, nil
}

// Transactor returns the shared transactor
func (c *Core) Transactor() database.Transactor {
	return c.tx
}

// LockEngine returns the shared lock engine
func (c *Core) LockEngine() *lock.Engine {
	return c.locks
}

// RoleManager returns the role manager
func (c *Core) RoleManager() *role.Manager {
	return c.roles
}

// BusinessManager returns the business manager
func (c *Core) BusinessManager() *business.Manager {
	return c.businesses
}

// ManualManager returns the manual manager
func (c *Core) ManualManager() *manual.Manager {
	return c.manuals
}

// QuizManager returns the quiz manager
func (c *Core) QuizManager() *quiz.Manager {
	return c.quizzes
}

// EventLog returns the event log
func (c *Core) EventLog() *event.Log {
	return c.events
}

// Metrics returns the decision counters
func (c *Core) Metrics() *metrics.Metrics {
	return c.metrics
}

// SetLogger setting a primary logger for the core
func (c *Core) SetLogger(logger *zap.Logger) error {
	// if logger is set, then giving it a name
	// to know the log context
	if logger != nil {
		logger = logger.Named("[handbook]")
	}

	c.logger = logger

	return nil
}

// Logger returns primary logger if is set, otherwise initializing and returning
// a new default emergency logger
// NOTE: will panic if it finally fails to obtain a logger
func (c *Core) Logger() *zap.Logger {
	if c.logger == nil {
		l, err := zap.NewDevelopment()
		if err != nil {
			// having a working logger is crucial, thus must panic() if initialization fails
			panic(fmt.Errorf("failed to initialize core logger: %s", err))
		}

		c.logger = l
	}

	return c.logger
}
