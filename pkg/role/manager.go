package role

import (
	"context"
	"fmt"

	"github.com/agubarev/handbook/pkg/database"
	"github.com/agubarev/handbook/pkg/fault"
	"github.com/agubarev/handbook/pkg/lock"
	"github.com/agubarev/handbook/pkg/util"
	"github.com/pkg/errors"
	"github.com/r3labs/diff"
	"go.uber.org/zap"
)

// errors
var (
	ErrNilTransactor = errors.New("transactor is nil")
	ErrNilEngine     = errors.New("lock engine is nil")
)

// levels allowed to manage anything within a business
var adminOnly = []Access{AccessAdmin}

// levels allowed to browse the structure of a business
var supervisors = []Access{AccessAdmin, AccessManager}

// MembershipChecker reports whether a user has accepted a membership
// of a business
type MembershipChecker interface {
	IsMember(ctx context.Context, businessID, userID uint32) (bool, error)
}

// Manager manages departments, roles, their permissions and the
// binding of users to roles
type Manager struct {
	store    Store
	tx       database.Transactor
	locks    *lock.Engine
	resolver *Resolver
	members  MembershipChecker
	logger   *zap.Logger
}

// NewManager initializes a role manager and registers its
// lock roots with the engine
func NewManager(s Store, tx database.Transactor, locks *lock.Engine) (*Manager, error) {
	if s == nil {
		return nil, ErrNilStore
	}

	if tx == nil {
		return nil, ErrNilTransactor
	}

	if locks == nil {
		return nil, ErrNilEngine
	}

	resolver, err := NewResolver(s)
	if err != nil {
		return nil, err
	}

	m := &Manager{
		store:    s,
		tx:       tx,
		locks:    locks,
		resolver: resolver,
	}

	if err = m.registerLocks(); err != nil {
		return nil, errors.Wrap(err, "failed to register lock resolvers")
	}

	return m, nil
}

func (m *Manager) registerLocks() error {
	err := m.locks.RegisterRoot(lock.KDepartment, func(ctx context.Context, id uint32) (lock.Flags, error) {
		d, err := m.store.FetchDepartmentByID(ctx, id, true)
		return lock.Flags{PreventEdit: d.PreventEdit, PreventDelete: d.PreventDelete}, err
	})

	if err != nil {
		return err
	}

	err = m.locks.RegisterRoot(lock.KRole, func(ctx context.Context, id uint32) (lock.Flags, error) {
		r, err := m.store.FetchRoleByID(ctx, id, true)
		return lock.Flags{PreventEdit: r.PreventEdit, PreventDelete: r.PreventDelete}, err
	})

	if err != nil {
		return err
	}

	// a permission is keyed by its role id
	return m.locks.RegisterParent(lock.KPermission, func(ctx context.Context, roleID uint32) (lock.Ref, error) {
		return lock.Ref{Kind: lock.KRole, ID: roleID}, nil
	})
}

// SetLogger assigns a logger for this manager
func (m *Manager) SetLogger(logger *zap.Logger) error {
	if logger != nil {
		logger = logger.Named("[role]")
	}

	m.logger = logger

	return nil
}

// Logger returns primary logger if is set, otherwise initializing and returning
func (m *Manager) Logger() *zap.Logger {
	if m.logger == nil {
		l, err := zap.NewDevelopment()
		if err != nil {
			panic(fmt.Errorf("failed to initialize role manager logger: %s", err))
		}

		m.logger = l
	}

	return m.logger
}

// Store returns store if set
func (m *Manager) Store() (Store, error) {
	if m.store == nil {
		return nil, ErrNilStore
	}

	return m.store, nil
}

// SetMembers sets the membership checker consulted before binding
// a user to a role
func (m *Manager) SetMembers(mc MembershipChecker) {
	m.members = mc
}

// Resolver returns the role resolver backed by this manager's store
func (m *Manager) Resolver() *Resolver {
	return m.resolver
}

// ensureDepartment checks that a department belongs to the actor's business
// NOTE: a foreign department is reported as not found
func (m *Manager) ensureDepartment(ctx context.Context, actor Actor, id uint32, forUpdate bool) (Department, error) {
	d, err := m.store.FetchDepartmentByID(ctx, id, forUpdate)
	if err != nil {
		return d, err
	}

	if d.BusinessID != actor.BusinessID {
		return Department{}, fault.NotFound("Department")
	}

	return d, nil
}

// ensureRole checks that a role belongs to the actor's business
func (m *Manager) ensureRole(ctx context.Context, actor Actor, id uint32, forUpdate bool) (Role, error) {
	r, err := m.store.FetchRoleByID(ctx, id, forUpdate)
	if err != nil {
		return r, err
	}

	if _, err = m.ensureDepartment(ctx, actor, r.DepartmentID, false); err != nil {
		return Role{}, fault.NotFound("Role")
	}

	return r, nil
}

// authorizeRoleEdit passes for admins and global role editors, and for
// managers of the role's department who hold the departmental grant
func (m *Manager) authorizeRoleEdit(ctx context.Context, actor Actor, entity, op string, departmentID, roleID uint32) error {
	allowed, err := m.resolver.allows(ctx, actor, adminOnly, []Grant{GlobalCRUDRole})
	if err != nil {
		return err
	}

	if !allowed {
		var manages bool

		if roleID != 0 {
			manages, err = m.resolver.IsManagerOf(ctx, actor.UserID, roleID)
		} else {
			manages, err = m.resolver.IsDepartmentManager(ctx, actor.UserID, departmentID)
		}

		if err != nil {
			return err
		}

		if manages {
			allowed, err = m.resolver.HasPermission(ctx, actor.BusinessID, actor.UserID, DepartmentCRUDRole)
			if err != nil {
				return err
			}
		}
	}

	return m.resolver.Decide(entity, op, allowed)
}

//---------------------------------------------------------------------------
// departments
//---------------------------------------------------------------------------

// CreateDepartment creates a new department within the actor's business
func (m *Manager) CreateDepartment(ctx context.Context, actor Actor, d Department) (Department, error) {
	d.BusinessID = actor.BusinessID
	d.Created(actor.UserID)

	if err := d.Validate(); err != nil {
		return d, fault.Invariant("Department", "Insert", err.Error())
	}

	err := m.tx.WithTx(ctx, func(ctx context.Context) (err error) {
		if err = m.resolver.Authorize(ctx, actor, "Department", "Insert", adminOnly, GlobalCRUDDepartment); err != nil {
			return err
		}

		d, err = m.store.CreateDepartment(ctx, d)

		return err
	})

	if err != nil {
		return d, err
	}

	m.Logger().Debug("created department", zap.Uint32("id", d.ID), zap.String("name", d.Name))

	return d, nil
}

// UpdateDepartment updates an existing department
// NOTE: an update releasing the edit lock is allowed while locked
func (m *Manager) UpdateDepartment(ctx context.Context, actor Actor, id uint32, fn func(ctx context.Context, d Department) (Department, error)) (d Department, err error) {
	err = m.tx.WithTx(ctx, func(ctx context.Context) error {
		if err = m.resolver.Authorize(ctx, actor, "Department", "Update", adminOnly, GlobalCRUDDepartment); err != nil {
			return err
		}

		current, err := m.ensureDepartment(ctx, actor, id, true)
		if err != nil {
			return err
		}

		updated, err := fn(ctx, current)
		if err != nil {
			return err
		}

		updated.ID = current.ID
		updated.Retain(current.Audit)

		changelog, err := util.ProtectedChangelog(map[string]bool{
			"name":           true,
			"prevent_edit":   true,
			"prevent_delete": true,
		}, current, updated)

		if err != nil {
			return fault.Invariant("Department", "Update", err.Error())
		}

		// nothing has changed, re-locking a locked department ends up here
		if len(changelog) == 0 {
			d = current
			return nil
		}

		next := lock.Flags{PreventEdit: updated.PreventEdit, PreventDelete: updated.PreventDelete}
		if err = m.locks.CheckUpdate(ctx, lock.Ref{Kind: lock.KDepartment, ID: id}, next); err != nil {
			return err
		}

		if err = updated.Validate(); err != nil {
			return fault.Invariant("Department", "Update", err.Error())
		}

		updated.Touched(actor.UserID)
		if err = m.store.UpdateDepartment(ctx, updated); err != nil {
			return err
		}

		m.Logger().Debug("updated department", zap.Uint32("id", id), util.DumpChangelog(changelog))
		d = updated

		return nil
	})

	return d, err
}

// DeleteDepartment deletes a department along with its roles
func (m *Manager) DeleteDepartment(ctx context.Context, actor Actor, id uint32) error {
	return m.tx.WithTx(ctx, func(ctx context.Context) error {
		if err := m.resolver.Authorize(ctx, actor, "Department", "Delete", adminOnly, GlobalCRUDDepartment); err != nil {
			return err
		}

		if _, err := m.ensureDepartment(ctx, actor, id, true); err != nil {
			return err
		}

		if err := m.locks.CheckDelete(ctx, lock.Ref{Kind: lock.KDepartment, ID: id}); err != nil {
			return err
		}

		if err := m.store.DeleteDepartmentByID(ctx, id); err != nil {
			return err
		}

		m.Logger().Debug("deleted department", zap.Uint32("id", id))

		return nil
	})
}

// DepartmentByID returns a department of the actor's business
func (m *Manager) DepartmentByID(ctx context.Context, actor Actor, id uint32) (Department, error) {
	return m.ensureDepartment(ctx, actor, id, false)
}

// ListDepartments returns every department of the actor's business
func (m *Manager) ListDepartments(ctx context.Context, actor Actor) ([]Department, error) {
	if err := m.resolver.Authorize(ctx, actor, "Department", "Select", supervisors); err != nil {
		return nil, err
	}

	return m.store.FetchDepartmentsByBusinessID(ctx, actor.BusinessID)
}

//---------------------------------------------------------------------------
// roles
//---------------------------------------------------------------------------

// CreateRole creates a role together with its permission
func (m *Manager) CreateRole(ctx context.Context, actor Actor, r Role, p Permission) (Role, Permission, error) {
	if r.Access == AccessNone {
		r.Access = AccessUser
	}

	r.Created(actor.UserID)

	if err := r.Validate(); err != nil {
		return r, p, fault.Invariant("Role", "Insert", err.Error())
	}

	err := m.tx.WithTx(ctx, func(ctx context.Context) (err error) {
		if _, err = m.ensureDepartment(ctx, actor, r.DepartmentID, false); err != nil {
			return err
		}

		if err = m.authorizeRoleEdit(ctx, actor, "Role", "Insert", r.DepartmentID, 0); err != nil {
			return err
		}

		// department managers can't mint roles above their own level
		if r.Access != AccessUser {
			if err = m.resolver.Authorize(ctx, actor, "Role", "Insert", adminOnly, GlobalCRUDRole); err != nil {
				return err
			}
		}

		if r, err = m.store.CreateRole(ctx, r); err != nil {
			return err
		}

		p.RoleID = r.ID
		p.Audit = r.Audit

		return m.store.CreatePermission(ctx, p)
	})

	if err != nil {
		return r, p, err
	}

	m.Logger().Debug("created role", zap.Uint32("id", r.ID), zap.String("access", r.Access.String()))

	return r, p, nil
}

// UpdateRole updates an existing role
func (m *Manager) UpdateRole(ctx context.Context, actor Actor, id uint32, fn func(ctx context.Context, r Role) (Role, error)) (r Role, err error) {
	err = m.tx.WithTx(ctx, func(ctx context.Context) error {
		current, err := m.ensureRole(ctx, actor, id, true)
		if err != nil {
			return err
		}

		if err = m.authorizeRoleEdit(ctx, actor, "Role", "Update", current.DepartmentID, id); err != nil {
			return err
		}

		updated, err := fn(ctx, current)
		if err != nil {
			return err
		}

		updated.ID = current.ID
		updated.Retain(current.Audit)

		changelog, err := util.ProtectedChangelog(map[string]bool{
			"name":           true,
			"access":         true,
			"prevent_edit":   true,
			"prevent_delete": true,
		}, current, updated)

		if err != nil {
			return fault.Invariant("Role", "Update", err.Error())
		}

		if len(changelog) == 0 {
			r = current
			return nil
		}

		next := lock.Flags{PreventEdit: updated.PreventEdit, PreventDelete: updated.PreventDelete}
		if err = m.locks.CheckUpdate(ctx, lock.Ref{Kind: lock.KRole, ID: id}, next); err != nil {
			return err
		}

		// only admins may change access levels
		if util.Changed(changelog, "access") {
			if err = m.resolver.Authorize(ctx, actor, "Role", "Update", adminOnly, GlobalCRUDRole); err != nil {
				return err
			}
		}

		if err = updated.Validate(); err != nil {
			return fault.Invariant("Role", "Update", err.Error())
		}

		updated.Touched(actor.UserID)
		if err = m.store.UpdateRole(ctx, updated); err != nil {
			return err
		}

		m.Logger().Debug("updated role", zap.Uint32("id", id), util.DumpChangelog(changelog))
		r = updated

		return nil
	})

	return r, err
}

// DeleteRole deletes a role; its permission and user bindings cascade
func (m *Manager) DeleteRole(ctx context.Context, actor Actor, id uint32) error {
	return m.tx.WithTx(ctx, func(ctx context.Context) error {
		if err := m.resolver.Authorize(ctx, actor, "Role", "Delete", adminOnly); err != nil {
			return err
		}

		if _, err := m.ensureRole(ctx, actor, id, true); err != nil {
			return err
		}

		if err := m.locks.CheckDelete(ctx, lock.Ref{Kind: lock.KRole, ID: id}); err != nil {
			return err
		}

		if err := m.store.DeleteRoleByID(ctx, id); err != nil {
			return err
		}

		m.Logger().Debug("deleted role", zap.Uint32("id", id))

		return nil
	})
}

// RoleByID returns a role of the actor's business
func (m *Manager) RoleByID(ctx context.Context, actor Actor, id uint32) (Role, error) {
	return m.ensureRole(ctx, actor, id, false)
}

// ListRoles returns the roles of a department
func (m *Manager) ListRoles(ctx context.Context, actor Actor, departmentID uint32) ([]Role, error) {
	if err := m.resolver.Authorize(ctx, actor, "Role", "Select", supervisors); err != nil {
		return nil, err
	}

	if _, err := m.ensureDepartment(ctx, actor, departmentID, false); err != nil {
		return nil, err
	}

	return m.store.FetchRolesByDepartmentID(ctx, departmentID)
}

//---------------------------------------------------------------------------
// permissions
//---------------------------------------------------------------------------

// UpdatePermission changes the grants of a role's permission; it is refused
// while the role is locked from editing
func (m *Manager) UpdatePermission(ctx context.Context, actor Actor, roleID uint32, fn func(ctx context.Context, p Permission) (Permission, error)) (p Permission, changelog diff.Changelog, err error) {
	err = m.tx.WithTx(ctx, func(ctx context.Context) error {
		r, err := m.ensureRole(ctx, actor, roleID, false)
		if err != nil {
			return err
		}

		if err = m.authorizeRoleEdit(ctx, actor, "Permission", "Update", r.DepartmentID, roleID); err != nil {
			return err
		}

		// the engine re-reads the role under a row lock
		if err = m.locks.CheckUpdate(ctx, lock.Ref{Kind: lock.KPermission, ID: roleID}, lock.Flags{}); err != nil {
			return err
		}

		current, err := m.store.FetchPermissionByRoleID(ctx, roleID, true)
		if err != nil {
			return err
		}

		updated, err := fn(ctx, current)
		if err != nil {
			return err
		}

		updated.Retain(current.Audit)

		changelog, err = util.ProtectedChangelog(permissionFields, current, updated)
		if err != nil {
			return fault.Invariant("Permission", "Update", err.Error())
		}

		if len(changelog) == 0 {
			p = current
			return nil
		}

		updated.RoleID = roleID
		updated.Touched(actor.UserID)

		if err = m.store.UpdatePermission(ctx, updated); err != nil {
			return err
		}

		m.Logger().Debug("updated permission", zap.Uint32("role_id", roleID), util.DumpChangelog(changelog))
		p = updated

		return nil
	})

	return p, changelog, err
}

// PermissionByRoleID returns the permission of a role
func (m *Manager) PermissionByRoleID(ctx context.Context, actor Actor, roleID uint32) (Permission, error) {
	if _, err := m.ensureRole(ctx, actor, roleID, false); err != nil {
		return Permission{}, err
	}

	return m.store.FetchPermissionByRoleID(ctx, roleID, false)
}

//---------------------------------------------------------------------------
// user roles
//---------------------------------------------------------------------------

func (m *Manager) authorizeAssignment(ctx context.Context, actor Actor, op string, roleID uint32) error {
	allowed, err := m.resolver.allows(ctx, actor, nil, []Grant{GlobalAssignUsersToRole})
	if err != nil {
		return err
	}

	if !allowed {
		manages, err := m.resolver.IsManagerOf(ctx, actor.UserID, roleID)
		if err != nil {
			return err
		}

		if manages {
			allowed, err = m.resolver.HasPermission(ctx, actor.BusinessID, actor.UserID, DepartmentAssignUsersToRole)
			if err != nil {
				return err
			}
		}
	}

	return m.resolver.Decide("UserRole", op, allowed)
}

// AssignUser binds a user to a role
func (m *Manager) AssignUser(ctx context.Context, actor Actor, userID, roleID uint32) (ur UserRole, err error) {
	if userID == 0 {
		return ur, fault.Invariant("UserRole", "Insert", "User id cannot be null or empty")
	}

	err = m.tx.WithTx(ctx, func(ctx context.Context) error {
		if _, err := m.ensureRole(ctx, actor, roleID, false); err != nil {
			return err
		}

		if err := m.authorizeAssignment(ctx, actor, "Insert", roleID); err != nil {
			return err
		}

		if m.members != nil {
			member, err := m.members.IsMember(ctx, actor.BusinessID, userID)
			if err != nil {
				return err
			}

			if !member {
				return fault.NotFound("Membership")
			}
		}

		ur = UserRole{
			UserID:    userID,
			RoleID:    roleID,
			UpdatedBy: actor.UserID,
			CreatedAt: database.Now(),
		}

		return m.store.CreateUserRole(ctx, ur)
	})

	if err != nil {
		return ur, err
	}

	m.Logger().Debug("assigned user to role", zap.Uint32("user_id", userID), zap.Uint32("role_id", roleID))

	return ur, nil
}

// UnassignUser removes a user from a role
func (m *Manager) UnassignUser(ctx context.Context, actor Actor, userID, roleID uint32) error {
	return m.tx.WithTx(ctx, func(ctx context.Context) error {
		if _, err := m.ensureRole(ctx, actor, roleID, false); err != nil {
			return err
		}

		if err := m.authorizeAssignment(ctx, actor, "Delete", roleID); err != nil {
			return err
		}

		return m.store.DeleteUserRole(ctx, userID, roleID)
	})
}

// RevokeMember unbinds a user from every role of a business
// NOTE: not authorized, the caller removing the membership is
func (m *Manager) RevokeMember(ctx context.Context, businessID, userID uint32) error {
	return m.tx.WithTx(ctx, func(ctx context.Context) error {
		if err := m.store.DeleteUserRolesByBusinessID(ctx, businessID, userID); err != nil {
			return err
		}

		m.Logger().Debug("revoked member roles", zap.Uint32("business_id", businessID), zap.Uint32("user_id", userID))

		return nil
	})
}

// RoleMembers returns the bindings of a role
func (m *Manager) RoleMembers(ctx context.Context, actor Actor, roleID uint32) ([]UserRole, error) {
	if err := m.resolver.Authorize(ctx, actor, "UserRole", "Select", supervisors); err != nil {
		return nil, err
	}

	if _, err := m.ensureRole(ctx, actor, roleID, false); err != nil {
		return nil, err
	}

	return m.store.FetchUserRolesByRoleID(ctx, roleID)
}

// MemberRoles returns the roles a user holds within the actor's business;
// users may always see their own
func (m *Manager) MemberRoles(ctx context.Context, actor Actor, userID uint32) ([]HeldRole, error) {
	if userID != actor.UserID {
		if err := m.resolver.Authorize(ctx, actor, "UserRole", "Select", supervisors); err != nil {
			return nil, err
		}
	}

	return m.resolver.HeldRoles(ctx, actor.BusinessID, userID)
}

// UpdateUserRole always fails, a binding is deleted and created instead
func (m *Manager) UpdateUserRole(ctx context.Context, actor Actor, userID, roleID uint32) error {
	return m.locks.RejectUpdate(lock.KUserRole)
}

// Bootstrap creates a department, a role with its permission and binds the
// given user to it, all without authorization; used when a business is
// registered and has no admin yet
func (m *Manager) Bootstrap(ctx context.Context, userID uint32, d Department, r Role, p Permission) (Department, Role, error) {
	err := m.tx.WithTx(ctx, func(ctx context.Context) (err error) {
		d.Created(userID)
		if err = d.Validate(); err != nil {
			return fault.Invariant("Department", "Insert", err.Error())
		}

		if d, err = m.store.CreateDepartment(ctx, d); err != nil {
			return err
		}

		r.DepartmentID = d.ID
		r.Created(userID)
		if err = r.Validate(); err != nil {
			return fault.Invariant("Role", "Insert", err.Error())
		}

		if r, err = m.store.CreateRole(ctx, r); err != nil {
			return err
		}

		p.RoleID = r.ID
		p.Audit = r.Audit
		if err = m.store.CreatePermission(ctx, p); err != nil {
			return err
		}

		return m.store.CreateUserRole(ctx, UserRole{
			UserID:    userID,
			RoleID:    r.ID,
			UpdatedBy: userID,
			CreatedAt: r.CreatedAt,
		})
	})

	return d, r, err
}
