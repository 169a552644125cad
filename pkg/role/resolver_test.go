package role_test

import (
	"context"
	"testing"
	"time"

	"github.com/agubarev/handbook/pkg/role"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEffectiveAccess(t *testing.T) {
	a := assert.New(t)
	ctx := context.Background()

	f := newFixture(t)
	r := f.m.Resolver()

	kitchen := f.createDepartment(t, "Kitchen")
	f.createRole(t, kitchen.ID, "Cook", role.AccessUser, role.Permission{}, 2, 3)
	f.createRole(t, kitchen.ID, "Head Chef", role.AccessManager, role.Permission{}, 3)

	access, err := r.EffectiveAccess(ctx, businessID, founderID)
	a.NoError(err)
	a.Equal(role.AccessAdmin, access)

	access, err = r.EffectiveAccess(ctx, businessID, 2)
	a.NoError(err)
	a.Equal(role.AccessUser, access)

	// the highest level wins
	access, err = r.EffectiveAccess(ctx, businessID, 3)
	a.NoError(err)
	a.Equal(role.AccessManager, access)

	isManager, err := r.IsManager(ctx, businessID, 3)
	a.NoError(err)
	a.True(isManager)

	isAdmin, err := r.IsAdmin(ctx, businessID, 3)
	a.NoError(err)
	a.False(isAdmin)

	// no roles, and roles elsewhere, are not errors
	access, err = r.EffectiveAccess(ctx, businessID, 99)
	a.NoError(err)
	a.Equal(role.AccessNone, access)

	access, err = r.EffectiveAccess(ctx, 2, founderID)
	a.NoError(err)
	a.Equal(role.AccessNone, access)
}

func TestAuthoritativeRole(t *testing.T) {
	a := assert.New(t)
	ctx := context.Background()

	s := role.NewMemoryStore()
	r, err := role.NewResolver(s)
	require.NoError(t, err)

	d, err := s.CreateDepartment(ctx, role.Department{BusinessID: 1, Name: "Floor"})
	require.NoError(t, err)

	older, err := s.CreateRole(ctx, role.Role{DepartmentID: d.ID, Name: "Shift Lead", Access: role.AccessManager})
	require.NoError(t, err)

	newer, err := s.CreateRole(ctx, role.Role{DepartmentID: d.ID, Name: "Floor Manager", Access: role.AccessManager})
	require.NoError(t, err)

	staff, err := s.CreateRole(ctx, role.Role{DepartmentID: d.ID, Name: "Waiter", Access: role.AccessUser})
	require.NoError(t, err)

	now := time.Now()
	require.NoError(t, s.CreateUserRole(ctx, role.UserRole{UserID: 5, RoleID: older.ID, CreatedAt: now.Add(-2 * time.Hour)}))
	require.NoError(t, s.CreateUserRole(ctx, role.UserRole{UserID: 5, RoleID: newer.ID, CreatedAt: now.Add(-time.Hour)}))
	require.NoError(t, s.CreateUserRole(ctx, role.UserRole{UserID: 5, RoleID: staff.ID, CreatedAt: now}))

	held, ok, err := r.AuthoritativeRole(ctx, 1, 5)
	a.NoError(err)
	a.True(ok)
	a.Equal(newer.ID, held.ID)

	_, ok, err = r.AuthoritativeRole(ctx, 1, 6)
	a.NoError(err)
	a.False(ok)
}

func TestIsManagerOf(t *testing.T) {
	a := assert.New(t)
	ctx := context.Background()

	f := newFixture(t)
	r := f.m.Resolver()

	kitchen := f.createDepartment(t, "Kitchen")
	bar := f.createDepartment(t, "Bar")

	f.createRole(t, kitchen.ID, "Head Chef", role.AccessManager, role.Permission{}, 2)
	sous := f.createRole(t, kitchen.ID, "Sous Chef", role.AccessManager, role.Permission{}, 4)
	cook := f.createRole(t, kitchen.ID, "Cook", role.AccessUser, role.Permission{})
	f.createRole(t, bar.ID, "Bar Manager", role.AccessManager, role.Permission{}, 3)
	bartender := f.createRole(t, bar.ID, "Bartender", role.AccessUser, role.Permission{})

	cases := []struct {
		userID   uint32
		roleID   uint32
		expected bool
	}{
		{2, cook.ID, true},
		{2, bartender.ID, false},
		{3, bartender.ID, true},
		{3, cook.ID, false},
		{2, sous.ID, false},
		{4, cook.ID, true},
		{5, cook.ID, false},
		{2, 9999, false},
	}

	for _, c := range cases {
		is, err := r.IsManagerOf(ctx, c.userID, c.roleID)
		a.NoError(err)
		a.Equal(c.expected, is, "user %d, role %d", c.userID, c.roleID)
	}
}

func TestHasPermission(t *testing.T) {
	a := assert.New(t)
	ctx := context.Background()

	f := newFixture(t)
	r := f.m.Resolver()

	kitchen := f.createDepartment(t, "Kitchen")
	f.createRole(t, kitchen.ID, "Cook", role.AccessUser, role.Permission{DepartmentViewReports: true}, 2)
	f.createRole(t, kitchen.ID, "Helper", role.AccessUser, role.Permission{}, 2)

	ok, err := r.HasPermission(ctx, businessID, 2, role.GlobalViewReports, role.DepartmentViewReports)
	a.NoError(err)
	a.True(ok)

	ok, err = r.HasPermission(ctx, businessID, 2, role.GlobalCRUDRole)
	a.NoError(err)
	a.False(ok)

	ok, err = r.HasPermission(ctx, businessID, founderID, role.GlobalCRUDUsers)
	a.NoError(err)
	a.True(ok)
}
