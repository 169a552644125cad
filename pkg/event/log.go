package event

import (
	"context"
	"fmt"

	"github.com/agubarev/handbook/pkg/database"
	"github.com/agubarev/handbook/pkg/fault"
	"github.com/agubarev/handbook/pkg/lock"
	"github.com/agubarev/handbook/pkg/role"
	"github.com/agubarev/handbook/pkg/util"
	"github.com/oklog/ulid"
	"go.uber.org/zap"
)

// maximum number of events returned at once
const maxEvents = 100

// Log is the append-only event log, events are never
// updated nor deleted
type Log struct {
	store  Store
	locks  *lock.Engine
	logger *zap.Logger
}

// NewLog initializes an event log
func NewLog(s Store, locks *lock.Engine) (*Log, error) {
	if s == nil {
		return nil, ErrNilStore
	}

	if locks == nil {
		return nil, ErrNilEngine
	}

	return &Log{store: s, locks: locks}, nil
}

// SetLogger assigns a logger for this log
func (l *Log) SetLogger(logger *zap.Logger) error {
	if logger != nil {
		logger = logger.Named("[event]")
	}

	l.logger = logger

	return nil
}

// Logger returns primary logger if is set, otherwise initializing and returning
func (l *Log) Logger() *zap.Logger {
	if l.logger == nil {
		zl, err := zap.NewDevelopment()
		if err != nil {
			panic(fmt.Errorf("failed to initialize event log logger: %s", err))
		}

		l.logger = zl
	}

	return l.logger
}

// Record appends an event, assigning its id and creation time
func (l *Log) Record(ctx context.Context, e Event) (Event, error) {
	if err := e.Validate(); err != nil {
		return e, fault.Invariant("Event", "Insert", err.Error())
	}

	if !e.IsOwned() {
		return e, fault.Invariant("Event", "Insert", "Must have either business_id or user_id")
	}

	if e.Status == "" {
		e.Status = StatusPass
	}

	e.ID = util.NewULID()
	e.CreatedAt = database.Now()

	if err := l.store.CreateEvent(ctx, e); err != nil {
		return e, err
	}

	l.Logger().Debug(
		"recorded event",
		zap.String("id", e.ID.String()),
		zap.String("name", e.Name),
		zap.String("status", e.Status),
	)

	return e, nil
}

// Outcome records an event whose status follows the result of an
// operation; the operation error is passed through
func (l *Log) Outcome(ctx context.Context, e Event, opErr error) error {
	e.Status = StatusPass
	if opErr != nil {
		e.Status = StatusFail
		e.Note = opErr.Error()
	}

	if _, err := l.Record(ctx, e); err != nil {
		l.Logger().Warn("failed to record event", zap.String("name", e.Name), zap.Error(err))
	}

	return opErr
}

// EventByID returns an event owned by the actor or its business
func (l *Log) EventByID(ctx context.Context, actor role.Actor, id ulid.ULID) (Event, error) {
	e, err := l.store.FetchEventByID(ctx, id)
	if err != nil {
		return e, err
	}

	ownedByBusiness := e.BusinessID != nil && *e.BusinessID == actor.BusinessID
	ownedByUser := e.UserID != nil && *e.UserID == actor.UserID

	if !ownedByBusiness && !ownedByUser {
		return Event{}, fault.NotFound("Event")
	}

	return e, nil
}

// BusinessEvents returns the latest events of the actor's business
func (l *Log) BusinessEvents(ctx context.Context, actor role.Actor, limit int) ([]Event, error) {
	if limit <= 0 || limit > maxEvents {
		limit = maxEvents
	}

	return l.store.FetchEvents(ctx, actor.BusinessID, 0, limit)
}

// UserEvents returns the latest events of the actor
func (l *Log) UserEvents(ctx context.Context, actor role.Actor, limit int) ([]Event, error) {
	if limit <= 0 || limit > maxEvents {
		limit = maxEvents
	}

	return l.store.FetchEvents(ctx, 0, actor.UserID, limit)
}

// Update always fails, events are append-only
func (l *Log) Update(ctx context.Context, id ulid.ULID) error {
	return l.locks.RejectUpdate(lock.KEvent)
}

// Delete always fails, events are append-only
func (l *Log) Delete(ctx context.Context, id ulid.ULID) error {
	return l.locks.RejectDelete(lock.KEvent)
}
