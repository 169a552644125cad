package event

import (
	"context"

	"github.com/agubarev/handbook/pkg/database"
	"github.com/gocraft/dbr/v2"
	"github.com/oklog/ulid"
	"github.com/pkg/errors"
)

// Store represents an append-only event storage backend
type Store interface {
	CreateEvent(ctx context.Context, e Event) error
	FetchEventByID(ctx context.Context, id ulid.ULID) (Event, error)

	// FetchEvents returns the latest events of a business, or of a
	// user when businessID is zero, newest first
	FetchEvents(ctx context.Context, businessID, userID uint32, limit int) ([]Event, error)
}

// SQLStore is the default store implementation, backed by dbr
// over either MySQL or PostgreSQL
type SQLStore struct {
	conn *dbr.Connection
}

// NewSQLStore returns an event store with a relational database used as a backend
func NewSQLStore(conn *dbr.Connection) (Store, error) {
	if conn == nil {
		return nil, database.ErrNilConnection
	}

	return &SQLStore{conn: conn}, nil
}

// row is an event as stored, the id is kept in its canonical text form
type row struct {
	ID string `db:"id"`
	Event
}

func (r row) event() (Event, error) {
	id, err := ulid.Parse(r.ID)
	if err != nil {
		return Event{}, errors.Wrapf(err, "malformed event id %q", r.ID)
	}

	e := r.Event
	e.ID = id

	return e, nil
}

func (s *SQLStore) CreateEvent(ctx context.Context, e Event) error {
	_, err := database.Runner(ctx, s.conn).
		InsertInto("event").
		Pair("id", e.ID.String()).
		Pair("name", e.Name).
		Pair("status", e.Status).
		Pair("note", e.Note).
		Pair("business_id", e.BusinessID).
		Pair("user_id", e.UserID).
		Pair("created_at", e.CreatedAt).
		ExecContext(ctx)

	return database.Classify(err, "Event", "Insert")
}

func (s *SQLStore) FetchEventByID(ctx context.Context, id ulid.ULID) (Event, error) {
	var r row

	err := database.Runner(ctx, s.conn).
		SelectBySql("SELECT * FROM event WHERE id = ?", id.String()).
		LoadOneContext(ctx, &r)

	if err != nil {
		return Event{}, database.Classify(err, "Event", "Select")
	}

	return r.event()
}

func (s *SQLStore) FetchEvents(ctx context.Context, businessID, userID uint32, limit int) ([]Event, error) {
	rows := make([]row, 0)

	stmt := database.Runner(ctx, s.conn).Select("*").From("event")

	if businessID != 0 {
		stmt = stmt.Where("business_id = ?", businessID)
	} else {
		stmt = stmt.Where("user_id = ?", userID)
	}

	// ulids sort by creation time
	stmt = stmt.OrderDesc("id")

	if limit > 0 {
		stmt = stmt.Limit(uint64(limit))
	}

	if _, err := stmt.LoadContext(ctx, &rows); err != nil {
		return nil, database.Classify(err, "Event", "Select")
	}

	es := make([]Event, 0, len(rows))
	for _, r := range rows {
		e, err := r.event()
		if err != nil {
			return nil, err
		}

		es = append(es, e)
	}

	return es, nil
}
