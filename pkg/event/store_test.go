package event_test

import (
	"context"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/agubarev/handbook/pkg/database"
	"github.com/agubarev/handbook/pkg/event"
	"github.com/agubarev/handbook/pkg/fault"
	"github.com/agubarev/handbook/pkg/util"
	"github.com/gocraft/dbr/v2/dialect"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBadgerStore(t *testing.T) {
	a := assert.New(t)
	ctx := context.Background()

	db, err := event.OpenBadger(t.TempDir(), util.LoggerForTesting())
	require.NoError(t, err)
	defer db.Close()

	s, err := event.NewBadgerStore(db)
	require.NoError(t, err)

	l := newLog(t, s)

	first, err := l.Record(ctx, event.ForBusiness(event.NameBusinessRegistration, 1))
	require.NoError(t, err)

	userID := uint32(3)
	second := event.ForBusiness(event.NameMembershipInvitation, 1)
	second.UserID = &userID

	second, err = l.Record(ctx, second)
	require.NoError(t, err)

	_, err = l.Record(ctx, event.ForBusiness(event.NameBusinessRegistration, 12))
	require.NoError(t, err)

	stored, err := s.FetchEventByID(ctx, first.ID)
	a.NoError(err)
	a.Equal(first.ID, stored.ID)
	a.Equal(event.NameBusinessRegistration, stored.Name)
	a.Equal(uint32(1), *stored.BusinessID)
	a.Nil(stored.UserID)

	es, err := s.FetchEvents(ctx, 1, 0, 0)
	a.NoError(err)
	require.Len(t, es, 2)
	a.Equal(second.ID, es[0].ID)
	a.Equal(first.ID, es[1].ID)

	es, err = s.FetchEvents(ctx, 0, userID, 10)
	a.NoError(err)
	require.Len(t, es, 1)
	a.Equal(second.ID, es[0].ID)

	es, err = s.FetchEvents(ctx, 1, 0, 1)
	a.NoError(err)
	a.Len(es, 1)

	// ids are never reused
	err = s.CreateEvent(ctx, first)
	a.True(fault.Is(err, fault.KInvariant))

	_, err = s.FetchEventByID(ctx, util.NewULID())
	a.True(fault.Is(err, fault.KNotFound))
}

func TestSQLStore(t *testing.T) {
	a := assert.New(t)
	ctx := context.Background()

	conn, mock, err := database.NewMockConnection(dialect.MySQL)
	require.NoError(t, err)
	defer conn.Close()

	s, err := event.NewSQLStore(conn)
	require.NoError(t, err)

	id := util.NewULID()
	now := time.Now().UTC().Truncate(time.Second)

	mock.ExpectExec("INSERT INTO `event`.*" + id.String() + ".*NULL").WillReturnResult(sqlmock.NewResult(0, 1))

	a.NoError(s.CreateEvent(ctx, event.Event{
		ID:         id,
		Name:       event.NameBusinessRegistration,
		Status:     event.StatusPass,
		BusinessID: func() *uint32 { v := uint32(1); return &v }(),
		CreatedAt:  now,
	}))

	columns := []string{"id", "name", "status", "note", "business_id", "user_id", "created_at"}

	mock.ExpectQuery(regexp.QuoteMeta("SELECT * FROM event WHERE id = '" + id.String() + "'")).
		WillReturnRows(sqlmock.NewRows(columns).AddRow(id.String(), "Business Registration", "PASS", "", 1, nil, now))

	e, err := s.FetchEventByID(ctx, id)
	a.NoError(err)
	a.Equal(id, e.ID)
	a.Equal(uint32(1), *e.BusinessID)
	a.Nil(e.UserID)

	mock.ExpectQuery("SELECT \\* FROM event WHERE .*user_id = 3.*ORDER BY id DESC LIMIT 5").
		WillReturnRows(sqlmock.NewRows(columns).AddRow("malformed", "x", "PASS", "", nil, 3, now))

	_, err = s.FetchEvents(ctx, 0, 3, 5)
	a.Error(err)

	a.NoError(mock.ExpectationsWereMet())
}
