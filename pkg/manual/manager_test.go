package manual_test

import (
	"context"
	"testing"
	"time"

	"github.com/agubarev/handbook/pkg/database"
	"github.com/agubarev/handbook/pkg/fault"
	"github.com/agubarev/handbook/pkg/lock"
	"github.com/agubarev/handbook/pkg/manual"
	"github.com/agubarev/handbook/pkg/role"
	"github.com/agubarev/handbook/pkg/util"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	businessID = uint32(1)
	founderID  = uint32(1)
	cookID     = uint32(2)
	chefID     = uint32(3)
)

type fixture struct {
	m       *manual.Manager
	roles   *role.Manager
	admin   role.Actor
	cook    role.Actor
	chef    role.Actor
	general role.Role
	kitchen role.Department
	cookR   role.Role
}

func newFixture(t *testing.T) *fixture {
	ctx := context.Background()

	tx := database.NewMemoryTransactor()
	locks := lock.NewEngine()
	require.NoError(t, locks.SetLogger(util.LoggerForTesting()))

	roles, err := role.NewManager(role.NewMemoryStore(), tx, locks)
	require.NoError(t, err)
	require.NoError(t, roles.SetLogger(util.LoggerForTesting()))

	m, err := manual.NewManager(manual.NewMemoryStore(), tx, locks, roles)
	require.NoError(t, err)
	require.NoError(t, m.SetLogger(util.LoggerForTesting()))

	_, general, err := roles.Bootstrap(
		ctx,
		founderID,
		role.Department{BusinessID: businessID, Name: "Admin", PreventEdit: true, PreventDelete: true},
		role.Role{Name: "General", Access: role.AccessAdmin, PreventEdit: true, PreventDelete: true},
		role.FullPermission(0),
	)
	require.NoError(t, err)

	f := &fixture{
		m:       m,
		roles:   roles,
		admin:   role.Actor{UserID: founderID, BusinessID: businessID},
		cook:    role.Actor{UserID: cookID, BusinessID: businessID},
		chef:    role.Actor{UserID: chefID, BusinessID: businessID},
		general: general,
	}

	f.kitchen, err = roles.CreateDepartment(ctx, f.admin, role.Department{Name: "Kitchen"})
	require.NoError(t, err)

	f.cookR, _, err = roles.CreateRole(ctx, f.admin, role.Role{DepartmentID: f.kitchen.ID, Name: "Cook", Access: role.AccessUser}, role.Permission{})
	require.NoError(t, err)

	chefR, _, err := roles.CreateRole(ctx, f.admin, role.Role{DepartmentID: f.kitchen.ID, Name: "Chef", Access: role.AccessManager}, role.Permission{})
	require.NoError(t, err)

	_, err = roles.AssignUser(ctx, f.admin, cookID, f.cookR.ID)
	require.NoError(t, err)

	_, err = roles.AssignUser(ctx, f.admin, chefID, chefR.ID)
	require.NoError(t, err)

	return f
}

// tree creates a manual with a single section, policy and content
func (f *fixture) tree(t *testing.T, title string, published bool, assignments ...manual.Assignment) (manual.Manual, manual.Section, manual.Policy, manual.Content) {
	ctx := context.Background()

	man, _, err := f.m.CreateManual(ctx, f.admin, manual.Manual{Title: title, Published: published}, assignments)
	require.NoError(t, err)

	s, err := f.m.CreateSection(ctx, f.admin, man.ID, manual.Section{Title: "Hygiene"})
	require.NoError(t, err)

	p, err := f.m.CreatePolicy(ctx, f.admin, s.ID, manual.Policy{Title: "Hand washing"})
	require.NoError(t, err)

	c, err := f.m.CreateContent(ctx, f.admin, p.ID, manual.Content{Title: "Before shift", Body: "Wash for 20 seconds"})
	require.NoError(t, err)

	return man, s, p, c
}

func setEditLock(locked bool) func(ctx context.Context, man manual.Manual) (manual.Manual, error) {
	return func(ctx context.Context, man manual.Manual) (manual.Manual, error) {
		man.PreventEdit = locked
		return man, nil
	}
}

func retitle(title string) func(ctx context.Context, c manual.Content) (manual.Content, error) {
	return func(ctx context.Context, c manual.Content) (manual.Content, error) {
		c.Title = title
		return c, nil
	}
}

func toRole(id uint32) manual.Assignment {
	return manual.Assignment{RoleID: &id}
}

func toDepartment(id uint32) manual.Assignment {
	return manual.Assignment{DepartmentID: &id}
}

func TestContentLockScenario(t *testing.T) {
	a := assert.New(t)
	ctx := context.Background()

	f := newFixture(t)
	man, s, p, c := f.tree(t, "Kitchen basics", false)

	man, err := f.m.UpdateManual(ctx, f.admin, man.ID, setEditLock(true))
	a.NoError(err)
	a.True(man.PreventEdit)

	_, err = f.m.UpdateContent(ctx, f.admin, c.ID, retitle("x"))
	a.True(fault.Is(err, fault.KLock))
	a.EqualError(err, "ContentUpdateError: Cannot update content while the manual is locked from editing")

	// creating children is an edit of the tree as well
	_, err = f.m.CreatePolicy(ctx, f.admin, s.ID, manual.Policy{Title: "Gloves"})
	a.EqualError(err, "PolicyInsertError: Cannot insert a policy while the manual is locked")

	_, err = f.m.CreateContent(ctx, f.admin, p.ID, manual.Content{Title: "After shift", Body: "Again"})
	a.EqualError(err, "ContentInsertError: Cannot insert content while the manual is locked")

	_, err = f.m.UpdateSection(ctx, f.admin, s.ID, func(ctx context.Context, s manual.Section) (manual.Section, error) {
		s.Title = "Cleanliness"
		return s, nil
	})
	a.EqualError(err, "ManualSectionUpdateError: Cannot update a section while the manual is locked from editing")

	a.EqualError(f.m.DeleteContent(ctx, f.admin, c.ID), "ContentDeleteError: Cannot delete content while the manual is locked from editing")

	// any other change of a locked manual is refused
	_, err = f.m.UpdateManual(ctx, f.admin, man.ID, func(ctx context.Context, man manual.Manual) (manual.Manual, error) {
		man.Published = true
		return man, nil
	})
	a.EqualError(err, "ManualUpdateError: Manual is locked from editing.")

	// re-locking is a no-op
	_, err = f.m.UpdateManual(ctx, f.admin, man.ID, setEditLock(true))
	a.NoError(err)

	_, err = f.m.UpdateManual(ctx, f.admin, man.ID, setEditLock(false))
	a.NoError(err)

	c, err = f.m.UpdateContent(ctx, f.admin, c.ID, retitle("x"))
	a.NoError(err)
	a.Equal("x", c.Title)
	a.Equal(util.ChecksumString(c.Body), c.Checksum)
}

func TestUpdateKeepsIdentity(t *testing.T) {
	a := assert.New(t)
	ctx := context.Background()

	f := newFixture(t)
	_, s, _, own := f.tree(t, "Kitchen basics", false)
	locked, _, _, victim := f.tree(t, "Bar basics", false)

	_, err := f.m.UpdateManual(ctx, f.admin, locked.ID, setEditLock(true))
	require.NoError(t, err)

	c, err := f.m.UpdateContent(ctx, f.admin, own.ID, func(ctx context.Context, c manual.Content) (manual.Content, error) {
		c.ID = victim.ID
		c.Title = "x"
		c.CreatedAt = time.Unix(0, 0)
		return c, nil
	})
	a.NoError(err)
	a.Equal(own.ID, c.ID)
	a.Equal("x", c.Title)
	a.Equal(own.CreatedAt, c.CreatedAt)

	stored, err := f.m.ContentByID(ctx, f.admin, victim.ID)
	a.NoError(err)
	a.Equal(victim.Title, stored.Title)

	stored, err = f.m.ContentByID(ctx, f.admin, own.ID)
	a.NoError(err)
	a.Equal("x", stored.Title)
	a.Equal(own.CreatedAt, stored.CreatedAt)

	updated, err := f.m.UpdateSection(ctx, f.admin, s.ID, func(ctx context.Context, s manual.Section) (manual.Section, error) {
		s.ID = 0
		s.Title = "Cleanliness"
		return s, nil
	})
	a.NoError(err)
	a.Equal(s.ID, updated.ID)
}

func TestDeleteLocks(t *testing.T) {
	a := assert.New(t)
	ctx := context.Background()

	f := newFixture(t)
	man, s, p, c := f.tree(t, "Kitchen basics", false)

	_, err := f.m.UpdateManual(ctx, f.admin, man.ID, func(ctx context.Context, man manual.Manual) (manual.Manual, error) {
		man.PreventDelete = true
		return man, nil
	})
	a.NoError(err)

	err = f.m.DeleteManual(ctx, f.admin, man.ID)
	a.True(fault.Is(err, fault.KLock))
	a.EqualError(err, "ManualDeleteError: Cannot delete manual while delete lock is set")

	// the delete lock alone leaves the children alone
	a.NoError(f.m.DeleteContent(ctx, f.admin, c.ID))

	_, err = f.m.UpdateManual(ctx, f.admin, man.ID, setEditLock(true))
	a.NoError(err)

	a.EqualError(f.m.DeleteSection(ctx, f.admin, s.ID), "ManualSectionDeleteError: Cannot delete a section while the manual is locked from editing")

	_, err = f.m.UpdateManual(ctx, f.admin, man.ID, func(ctx context.Context, man manual.Manual) (manual.Manual, error) {
		man.PreventEdit = false
		man.PreventDelete = false
		return man, nil
	})
	a.NoError(err)

	a.NoError(f.m.DeleteManual(ctx, f.admin, man.ID))

	_, err = f.m.ManualByID(ctx, f.admin, man.ID)
	a.True(fault.Is(err, fault.KNotFound))

	// the tree went along with it
	a.True(fault.Is(f.m.DeletePolicy(ctx, f.admin, p.ID), fault.KNotFound))
}

func TestOrphanPrevention(t *testing.T) {
	a := assert.New(t)
	ctx := context.Background()

	f := newFixture(t)

	zero := uint32(0)

	_, _, err := f.m.CreateManual(ctx, f.admin, manual.Manual{Title: "Nowhere"}, []manual.Assignment{{RoleID: &zero}})
	a.True(fault.Is(err, fault.KInvariant))
	a.EqualError(err, "ManualAssignmentInsertError: Cannot add a manual_assignment without a role or department")

	ms, err := f.m.ListVisibleManuals(ctx, f.admin, manual.Query{})
	a.NoError(err)
	a.Empty(ms)

	// without explicit assignments the creator's role owns the manual
	man, as, err := f.m.CreateManual(ctx, f.admin, manual.Manual{Title: "Owned"}, nil)
	a.NoError(err)
	require.Len(t, as, 1)
	a.True(as[0].Owner)
	a.Equal(f.general.ID, *as[0].RoleID)
	a.Nil(as[0].DepartmentID)

	_, err = f.m.AddAssignment(ctx, f.admin, man.ID, manual.Assignment{})
	a.EqualError(err, "ManualAssignmentInsertError: Cannot add a manual_assignment without a role or department")

	_, err = f.m.UpdateAssignment(ctx, f.admin, as[0].ID, func(ctx context.Context, as manual.Assignment) (manual.Assignment, error) {
		as.RoleID = nil
		return as, nil
	})
	a.True(fault.Is(err, fault.KInvariant))
	a.EqualError(err, "ManualAssignmentUpdateError: Cannot update a manual_assignment without a role or department")

	// the last assignment stays
	err = f.m.DeleteAssignment(ctx, f.admin, as[0].ID)
	a.True(fault.Is(err, fault.KInvariant))

	kitchen, err := f.m.AddAssignment(ctx, f.admin, man.ID, toDepartment(f.kitchen.ID))
	a.NoError(err)
	a.False(kitchen.Owner)

	a.NoError(f.m.DeleteAssignment(ctx, f.admin, as[0].ID))

	left, err := f.m.Assignments(ctx, f.admin, man.ID)
	a.NoError(err)
	require.Len(t, left, 1)
	a.Equal(kitchen.ID, left[0].ID)

	// retargeting to a role of another business is not possible
	_, err = f.m.UpdateAssignment(ctx, f.admin, kitchen.ID, func(ctx context.Context, as manual.Assignment) (manual.Assignment, error) {
		foreign := uint32(9999)
		as.DepartmentID = &foreign
		return as, nil
	})
	a.True(fault.Is(err, fault.KNotFound))
}

func TestListVisibleManuals(t *testing.T) {
	a := assert.New(t)
	ctx := context.Background()

	f := newFixture(t)

	alpha, _, _, _ := f.tree(t, "Alpha", true, toRole(f.cookR.ID))
	bravo, _, _, _ := f.tree(t, "Bravo", true, toDepartment(f.kitchen.ID))
	charlie, _, _, _ := f.tree(t, "Charlie", false, toDepartment(f.kitchen.ID))
	delta, _, _, _ := f.tree(t, "Delta", true)

	titles := func(ms []manual.Manual) []string {
		ts := make([]string, len(ms))
		for i, m := range ms {
			ts[i] = m.Title
		}

		return ts
	}

	// a user sees published manuals of own roles and departments
	ms, err := f.m.ListVisibleManuals(ctx, f.cook, manual.Query{})
	a.NoError(err)
	a.ElementsMatch([]string{"Alpha", "Bravo"}, titles(ms))

	// managers and admins see everything
	for _, actor := range []role.Actor{f.chef, f.admin} {
		ms, err = f.m.ListVisibleManuals(ctx, actor, manual.Query{})
		a.NoError(err)
		a.ElementsMatch([]string{"Alpha", "Bravo", "Charlie", "Delta"}, titles(ms))
	}

	// a stranger sees nothing
	ms, err = f.m.ListVisibleManuals(ctx, role.Actor{UserID: 77, BusinessID: businessID}, manual.Query{})
	a.NoError(err)
	a.Empty(ms)

	ms, err = f.m.ListVisibleManuals(ctx, f.admin, manual.Query{FilterField: "department", FilterIDs: []uint32{f.kitchen.ID}})
	a.NoError(err)
	a.ElementsMatch([]string{"Bravo", "Charlie"}, titles(ms))

	ms, err = f.m.ListVisibleManuals(ctx, f.admin, manual.Query{Search: "LPH"})
	a.NoError(err)
	a.Equal([]string{"Alpha"}, titles(ms))

	ms, err = f.m.ListVisibleManuals(ctx, f.admin, manual.Query{SortField: "title", SortOrder: "ASC", Limit: 2, Page: 2})
	a.NoError(err)
	a.Equal([]string{"Charlie", "Delta"}, titles(ms))

	ms, err = f.m.ListVisibleManuals(ctx, f.admin, manual.Query{SortField: "title", SortOrder: "DESC", Limit: 3, Page: 1})
	a.NoError(err)
	a.Equal([]string{"Delta", "Charlie", "Bravo"}, titles(ms))

	// invalid queries never reach the store
	_, err = f.m.ListVisibleManuals(ctx, f.admin, manual.Query{SortField: "created_at", SortOrder: "ASC"})
	a.Equal(manual.ErrInvalidSort, err)

	// single manuals follow the same visibility
	_, err = f.m.ManualByID(ctx, f.cook, alpha.ID)
	a.NoError(err)

	for _, id := range []uint32{charlie.ID, delta.ID} {
		_, err = f.m.ManualByID(ctx, f.cook, id)
		a.True(fault.Is(err, fault.KNotFound))
	}

	visible, err := f.m.IsVisible(ctx, f.cook, bravo.ID)
	a.NoError(err)
	a.True(visible)

	// other businesses don't see it at all
	visible, err = f.m.IsVisible(ctx, role.Actor{UserID: founderID, BusinessID: 2}, bravo.ID)
	a.NoError(err)
	a.False(visible)
}

func TestTreeListings(t *testing.T) {
	a := assert.New(t)
	ctx := context.Background()

	f := newFixture(t)

	man, s, p, c := f.tree(t, "Kitchen", true, toDepartment(f.kitchen.ID))
	draft, ds, dp, _ := f.tree(t, "Draft", false, toDepartment(f.kitchen.ID))

	second, err := f.m.CreateContent(ctx, f.admin, p.ID, manual.Content{Title: "After shift", Body: "Wash again"})
	require.NoError(t, err)

	sections, err := f.m.Sections(ctx, f.cook, man.ID)
	a.NoError(err)
	require.Len(t, sections, 1)
	a.Equal(s.ID, sections[0].ID)

	policies, err := f.m.Policies(ctx, f.cook, s.ID)
	a.NoError(err)
	require.Len(t, policies, 1)
	a.Equal(p.ID, policies[0].ID)

	contents, err := f.m.Contents(ctx, f.cook, p.ID)
	a.NoError(err)
	require.Len(t, contents, 2)
	a.Equal(c.ID, contents[0].ID)
	a.Equal(second.ID, contents[1].ID)
	a.Equal(util.ChecksumString("Wash again"), contents[1].Checksum)

	// unpublished manuals are hidden from plain users
	_, err = f.m.Sections(ctx, f.cook, draft.ID)
	a.True(fault.Is(err, fault.KNotFound))

	_, err = f.m.Policies(ctx, f.cook, ds.ID)
	a.True(fault.Is(err, fault.KNotFound))

	_, err = f.m.Contents(ctx, f.cook, dp.ID)
	a.True(fault.Is(err, fault.KNotFound))

	contents, err = f.m.Contents(ctx, f.chef, dp.ID)
	a.NoError(err)
	a.Len(contents, 1)

	// foreign businesses see nothing
	_, err = f.m.Sections(ctx, role.Actor{UserID: founderID, BusinessID: businessID + 1}, man.ID)
	a.True(fault.Is(err, fault.KNotFound))
}

func TestReadReceipts(t *testing.T) {
	a := assert.New(t)
	ctx := context.Background()

	f := newFixture(t)

	man, _, _, c := f.tree(t, "Alpha", true, toRole(f.cookR.ID))
	_, _, _, draft := f.tree(t, "Draft", false, toRole(f.cookR.ID))

	// reading is not affected by locks
	_, err := f.m.UpdateManual(ctx, f.admin, man.ID, setEditLock(true))
	a.NoError(err)

	r, err := f.m.MarkRead(ctx, f.cook, c.ID)
	a.NoError(err)
	a.Equal(c.ID, r.ContentID)
	a.Equal(cookID, r.UserID)

	read, err := f.m.HasRead(ctx, f.cook, c.ID)
	a.NoError(err)
	a.True(read)

	_, err = f.m.MarkRead(ctx, f.cook, c.ID)
	a.True(fault.Is(err, fault.KInvariant))

	err = f.m.UpdateRead(ctx, f.cook, c.ID)
	a.True(fault.Is(err, fault.KInvariant))
	a.EqualError(err, "ContentReadUpdateError: Cannot update content_read")

	// content of an unpublished manual can't be read
	_, err = f.m.MarkRead(ctx, f.cook, draft.ID)
	a.True(fault.Is(err, fault.KNotFound))

	// admins and managers don't leave receipts
	for _, actor := range []role.Actor{f.admin, f.chef} {
		_, err = f.m.MarkRead(ctx, actor, c.ID)
		a.True(fault.Is(err, fault.KAuthorization))
	}

	a.NoError(f.m.UnmarkRead(ctx, f.cook, c.ID))

	read, err = f.m.HasRead(ctx, f.cook, c.ID)
	a.NoError(err)
	a.False(read)

	a.True(fault.Is(f.m.UnmarkRead(ctx, f.cook, c.ID), fault.KNotFound))
}

func TestIsOwner(t *testing.T) {
	a := assert.New(t)
	ctx := context.Background()

	f := newFixture(t)
	man, _, _, _ := f.tree(t, "Owned", true)
	shared, _, _, _ := f.tree(t, "Shared", true, manual.Assignment{RoleID: &f.cookR.ID, Owner: true})

	owner, err := f.m.IsOwner(ctx, founderID, man.ID)
	a.NoError(err)
	a.True(owner)

	owner, err = f.m.IsOwner(ctx, cookID, man.ID)
	a.NoError(err)
	a.False(owner)

	// a USER role never owns anything
	owner, err = f.m.IsOwner(ctx, cookID, shared.ID)
	a.NoError(err)
	a.False(owner)

	owner, err = f.m.IsOwner(ctx, founderID, 9999)
	a.NoError(err)
	a.False(owner)
}

func TestAuthorization(t *testing.T) {
	a := assert.New(t)
	ctx := context.Background()

	f := newFixture(t)
	man, s, _, c := f.tree(t, "Alpha", true, toRole(f.cookR.ID))

	_, _, err := f.m.CreateManual(ctx, f.cook, manual.Manual{Title: "Mine"}, nil)
	a.True(fault.Is(err, fault.KAuthorization))
	a.EqualError(err, "ManualInsertError: access denied")

	_, err = f.m.UpdateContent(ctx, f.cook, c.ID, retitle("x"))
	a.True(fault.Is(err, fault.KAuthorization))

	a.True(fault.Is(f.m.DeleteSection(ctx, f.cook, s.ID), fault.KAuthorization))

	// managers author content
	_, err = f.m.CreateSection(ctx, f.chef, man.ID, manual.Section{Title: "Knives"})
	a.NoError(err)

	// another business can't even tell it exists
	other := role.Actor{UserID: 9, BusinessID: 2}
	_, _, err = f.roles.Bootstrap(
		ctx,
		other.UserID,
		role.Department{BusinessID: other.BusinessID, Name: "Admin"},
		role.Role{Name: "General", Access: role.AccessAdmin},
		role.FullPermission(0),
	)
	require.NoError(t, err)

	_, err = f.m.UpdateContent(ctx, other, c.ID, retitle("x"))
	a.True(fault.Is(err, fault.KNotFound))

	a.True(fault.Is(f.m.DeleteManual(ctx, other, man.ID), fault.KNotFound))
}

func TestCreateWithMissingTarget(t *testing.T) {
	a := assert.New(t)
	ctx := context.Background()

	f := newFixture(t)

	// the second assignment points to a missing role, so nothing is created
	_, _, err := f.m.CreateManual(ctx, f.admin, manual.Manual{Title: "Partial"}, []manual.Assignment{
		toDepartment(f.kitchen.ID),
		toRole(9999),
	})
	a.True(fault.Is(err, fault.KNotFound))

	ms, err := f.m.ListVisibleManuals(ctx, f.admin, manual.Query{})
	a.NoError(err)
	a.Empty(ms)
}
