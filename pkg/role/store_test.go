package role_test

import (
	"context"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/agubarev/handbook/pkg/database"
	"github.com/agubarev/handbook/pkg/fault"
	"github.com/agubarev/handbook/pkg/role"
	"github.com/go-sql-driver/mysql"
	"github.com/gocraft/dbr/v2/dialect"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var roleColumns = []string{
	"id", "department_id", "name", "access", "prevent_edit", "prevent_delete",
	"updated_by", "created_at", "updated_at",
}

func newSQLStore(t *testing.T) (role.Store, sqlmock.Sqlmock) {
	conn, mock, err := database.NewMockConnection(dialect.MySQL)
	require.NoError(t, err)

	t.Cleanup(func() { conn.Close() })

	s, err := role.NewSQLStore(conn)
	require.NoError(t, err)

	return s, mock
}

func TestSQLStoreFetchRoleForUpdate(t *testing.T) {
	a := assert.New(t)

	s, mock := newSQLStore(t)
	now := time.Now().UTC().Truncate(time.Second)

	mock.ExpectQuery(regexp.QuoteMeta("SELECT * FROM role WHERE id = 5 FOR UPDATE")).
		WillReturnRows(sqlmock.NewRows(roleColumns).AddRow(5, 2, "General", "ADMIN", true, true, 1, now, now))

	r, err := s.FetchRoleByID(context.Background(), 5, true)
	a.NoError(err)
	a.Equal(uint32(5), r.ID)
	a.Equal(uint32(2), r.DepartmentID)
	a.Equal(role.AccessAdmin, r.Access)
	a.True(r.PreventEdit)
	a.Equal(now, r.CreatedAt)

	mock.ExpectQuery(regexp.QuoteMeta("SELECT * FROM role WHERE id = 6")).
		WillReturnRows(sqlmock.NewRows(roleColumns))

	_, err = s.FetchRoleByID(context.Background(), 6, false)
	a.True(fault.Is(err, fault.KNotFound))

	a.NoError(mock.ExpectationsWereMet())
}

func TestSQLStoreFetchHeldRoles(t *testing.T) {
	a := assert.New(t)

	s, mock := newSQLStore(t)
	now := time.Now().UTC().Truncate(time.Second)

	columns := append(append([]string{}, roleColumns...), "business_id", "granted_at")
	mock.ExpectQuery("FROM user_role ur").
		WillReturnRows(sqlmock.NewRows(columns).
			AddRow(7, 2, "Cook", "USER", false, false, 1, now, now, 1, now).
			AddRow(3, 2, "Head Chef", "MANAGER", false, false, 1, now, now, 1, now.Add(-time.Hour)))

	hs, err := s.FetchHeldRoles(context.Background(), 1, 10)
	a.NoError(err)
	a.Len(hs, 2)
	a.Equal("Cook", hs[0].Name)
	a.Equal(role.AccessManager, hs[1].Access)
	a.Equal(uint32(1), hs[1].BusinessID)
	a.Equal(now.Add(-time.Hour), hs[1].GrantedAt)

	a.NoError(mock.ExpectationsWereMet())
}

func TestSQLStoreCreateUserRoleDuplicate(t *testing.T) {
	a := assert.New(t)

	s, mock := newSQLStore(t)

	mock.ExpectExec("INSERT INTO `user_role`").
		WillReturnError(&mysql.MySQLError{Number: 1062, Message: "Duplicate entry '1-2'"})

	err := s.CreateUserRole(context.Background(), role.UserRole{UserID: 1, RoleID: 2, CreatedAt: time.Now()})
	a.True(fault.Is(err, fault.KInvariant))

	a.NoError(mock.ExpectationsWereMet())
}
