package manual

import (
	"context"
	"fmt"

	"github.com/agubarev/handbook/pkg/database"
	"github.com/agubarev/handbook/pkg/fault"
	"github.com/agubarev/handbook/pkg/lock"
	"github.com/agubarev/handbook/pkg/role"
	"github.com/agubarev/handbook/pkg/util"
	"github.com/pkg/errors"
	"go.uber.org/zap"
)

// orphan prevention messages
const (
	msgOrphanInsert = "Cannot add a manual_assignment without a role or department"
	msgOrphanUpdate = "Cannot update a manual_assignment without a role or department"
	msgLastDelete   = "Cannot delete the last manual_assignment of a manual"
)

// levels allowed to author content
var editors = []role.Access{role.AccessAdmin, role.AccessManager}

// Manager manages manuals, their visibility and the content tree
// beneath them; every mutation of the tree goes through the lock engine
type Manager struct {
	store    Store
	tx       database.Transactor
	locks    *lock.Engine
	roles    *role.Manager
	resolver *role.Resolver
	logger   *zap.Logger
}

// NewManager initializes a manual manager and registers the
// manual lock tree with the engine
func NewManager(s Store, tx database.Transactor, locks *lock.Engine, roles *role.Manager) (*Manager, error) {
	if s == nil {
		return nil, ErrNilStore
	}

	if tx == nil {
		return nil, ErrNilTransactor
	}

	if locks == nil {
		return nil, ErrNilEngine
	}

	if roles == nil {
		return nil, ErrNilRoleManager
	}

	m := &Manager{
		store:    s,
		tx:       tx,
		locks:    locks,
		roles:    roles,
		resolver: roles.Resolver(),
	}

	if err := m.registerLocks(); err != nil {
		return nil, errors.Wrap(err, "failed to register lock resolvers")
	}

	return m, nil
}

func (m *Manager) registerLocks() error {
	err := m.locks.RegisterRoot(lock.KManual, func(ctx context.Context, id uint32) (lock.Flags, error) {
		man, err := m.store.FetchManualByID(ctx, id, true)
		return lock.Flags{PreventEdit: man.PreventEdit, PreventDelete: man.PreventDelete}, err
	})

	if err != nil {
		return err
	}

	err = m.locks.RegisterParent(lock.KManualSection, func(ctx context.Context, id uint32) (lock.Ref, error) {
		s, err := m.store.FetchSectionByID(ctx, id, false)
		return lock.Ref{Kind: lock.KManual, ID: s.ManualID}, err
	})

	if err != nil {
		return err
	}

	err = m.locks.RegisterParent(lock.KPolicy, func(ctx context.Context, id uint32) (lock.Ref, error) {
		p, err := m.store.FetchPolicyByID(ctx, id, false)
		return lock.Ref{Kind: lock.KManualSection, ID: p.SectionID}, err
	})

	if err != nil {
		return err
	}

	return m.locks.RegisterParent(lock.KContent, func(ctx context.Context, id uint32) (lock.Ref, error) {
		c, err := m.store.FetchContentByID(ctx, id, false)
		return lock.Ref{Kind: lock.KPolicy, ID: c.PolicyID}, err
	})
}

// SetLogger assigns a logger for this manager
func (m *Manager) SetLogger(logger *zap.Logger) error {
	if logger != nil {
		logger = logger.Named("[manual]")
	}

	m.logger = logger

	return nil
}

// Logger returns primary logger if is set, otherwise initializing and returning
func (m *Manager) Logger() *zap.Logger {
	if m.logger == nil {
		l, err := zap.NewDevelopment()
		if err != nil {
			panic(fmt.Errorf("failed to initialize manual manager logger: %s", err))
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

func (m *Manager) authorizeEdit(ctx context.Context, actor role.Actor, entity, op string) error {
	return m.resolver.Authorize(ctx, actor, entity, op, editors, role.GlobalCRUDResources, role.DepartmentCRUDResources)
}

func (m *Manager) authorizeAssign(ctx context.Context, actor role.Actor, op string) error {
	return m.resolver.Authorize(ctx, actor, "ManualAssignment", op, editors, role.GlobalAssignResourcesToRole, role.DepartmentAssignResourcesToRole)
}

// ensureManual checks that a manual belongs to the actor's business
// NOTE: a foreign manual is reported as not found
func (m *Manager) ensureManual(ctx context.Context, actor role.Actor, id uint32, forUpdate bool) (Manual, error) {
	man, err := m.store.FetchManualByID(ctx, id, forUpdate)
	if err != nil {
		return man, err
	}

	if man.BusinessID != actor.BusinessID {
		return Manual{}, fault.NotFound("Manual")
	}

	return man, nil
}

// audience returns the roles and departments the actor reads manuals
// through, or nil if the actor is privileged enough to see everything
func (m *Manager) audience(ctx context.Context, actor role.Actor) (*Audience, error) {
	access, err := m.resolver.EffectiveAccess(ctx, actor.BusinessID, actor.UserID)
	if err != nil {
		return nil, err
	}

	if access == role.AccessAdmin || access == role.AccessManager {
		return nil, nil
	}

	hs, err := m.resolver.HeldRoles(ctx, actor.BusinessID, actor.UserID)
	if err != nil {
		return nil, err
	}

	aud := &Audience{
		RoleIDs:       make([]uint32, 0, len(hs)),
		DepartmentIDs: make([]uint32, 0, len(hs)),
	}

	seen := make(map[uint32]bool, len(hs))
	for _, h := range hs {
		aud.RoleIDs = append(aud.RoleIDs, h.ID)

		if !seen[h.DepartmentID] {
			seen[h.DepartmentID] = true
			aud.DepartmentIDs = append(aud.DepartmentIDs, h.DepartmentID)
		}
	}

	return aud, nil
}

//---------------------------------------------------------------------------
// manuals
//---------------------------------------------------------------------------

// CreateManual creates an unpublished manual along with its assignments;
// without any given assignment the manual is owned by the actor's
// authoritative role
func (m *Manager) CreateManual(ctx context.Context, actor role.Actor, man Manual, assignments []Assignment) (Manual, []Assignment, error) {
	man.ID = 0
	man.BusinessID = actor.BusinessID
	man.Created(actor.UserID)

	if err := man.Validate(); err != nil {
		return man, nil, fault.Invariant("Manual", "Insert", err.Error())
	}

	assignments = append([]Assignment(nil), assignments...)
	created := make([]Assignment, 0, len(assignments)+1)

	err := m.tx.WithTx(ctx, func(ctx context.Context) (err error) {
		if err = m.authorizeEdit(ctx, actor, "Manual", "Insert"); err != nil {
			return err
		}

		if err = m.locks.CheckInsert(ctx, lock.KManual, lock.Ref{}); err != nil {
			return err
		}

		if len(assignments) == 0 {
			held, ok, err := m.resolver.AuthoritativeRole(ctx, actor.BusinessID, actor.UserID)
			if err != nil {
				return err
			}

			if ok {
				roleID := held.ID
				assignments = []Assignment{{RoleID: &roleID, Owner: true}}
			}
		}

		// a manual that nobody can see is never created
		if len(assignments) == 0 {
			return fault.Invariant("ManualAssignment", "Insert", msgOrphanInsert)
		}

		for i := range assignments {
			assignments[i] = normalize(assignments[i])
			if assignments[i].IsOrphan() {
				return fault.Invariant("ManualAssignment", "Insert", msgOrphanInsert)
			}

			if err = m.ensureTargets(ctx, actor, assignments[i]); err != nil {
				return err
			}
		}

		if man, err = m.store.CreateManual(ctx, man); err != nil {
			return err
		}

		for _, a := range assignments {
			a.ID = 0
			a.ManualID = man.ID
			a.Audit = man.Audit

			if a, err = m.store.CreateAssignment(ctx, a); err != nil {
				return err
			}

			created = append(created, a)
		}

		return nil
	})

	if err != nil {
		return man, nil, err
	}

	m.Logger().Debug(
		"created manual",
		zap.Uint32("id", man.ID),
		zap.Uint32("business_id", man.BusinessID),
		zap.Int("assignments", len(created)),
	)

	return man, created, nil
}

// UpdateManual updates an existing manual
// NOTE: an update releasing the edit lock is allowed while locked
func (m *Manager) UpdateManual(ctx context.Context, actor role.Actor, id uint32, fn func(ctx context.Context, man Manual) (Manual, error)) (man Manual, err error) {
	err = m.tx.WithTx(ctx, func(ctx context.Context) error {
		if err = m.authorizeEdit(ctx, actor, "Manual", "Update"); err != nil {
			return err
		}

		current, err := m.ensureManual(ctx, actor, id, true)
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
			"title":          true,
			"published":      true,
			"prevent_edit":   true,
			"prevent_delete": true,
		}, current, updated)

		if err != nil {
			return fault.Invariant("Manual", "Update", err.Error())
		}

		// re-locking a locked manual ends up here
		if len(changelog) == 0 {
			man = current
			return nil
		}

		next := lock.Flags{PreventEdit: updated.PreventEdit, PreventDelete: updated.PreventDelete}
		if err = m.locks.CheckUpdate(ctx, lock.Ref{Kind: lock.KManual, ID: id}, next); err != nil {
			return err
		}

		if err = updated.Validate(); err != nil {
			return fault.Invariant("Manual", "Update", err.Error())
		}

		updated.Touched(actor.UserID)
		if err = m.store.UpdateManual(ctx, updated); err != nil {
			return err
		}

		m.Logger().Debug("updated manual", zap.Uint32("id", id), util.DumpChangelog(changelog))
		man = updated

		return nil
	})

	return man, err
}

// DeleteManual deletes a manual along with its whole tree
func (m *Manager) DeleteManual(ctx context.Context, actor role.Actor, id uint32) error {
	return m.tx.WithTx(ctx, func(ctx context.Context) error {
		if err := m.authorizeEdit(ctx, actor, "Manual", "Delete"); err != nil {
			return err
		}

		if _, err := m.ensureManual(ctx, actor, id, true); err != nil {
			return err
		}

		if err := m.locks.CheckDelete(ctx, lock.Ref{Kind: lock.KManual, ID: id}); err != nil {
			return err
		}

		if err := m.store.DeleteManualByID(ctx, id); err != nil {
			return err
		}

		m.Logger().Debug("deleted manual", zap.Uint32("id", id))

		return nil
	})
}

// ManualByID returns a manual visible to the actor
func (m *Manager) ManualByID(ctx context.Context, actor role.Actor, id uint32) (Manual, error) {
	man, err := m.ensureManual(ctx, actor, id, false)
	if err != nil {
		return man, err
	}

	visible, err := m.visible(ctx, actor, man)
	if err != nil {
		return Manual{}, err
	}

	if !visible {
		return Manual{}, fault.NotFound("Manual")
	}

	return man, nil
}

// BusinessManual returns a manual of the actor's business regardless
// of whether the actor can see it
func (m *Manager) BusinessManual(ctx context.Context, actor role.Actor, id uint32) (Manual, error) {
	return m.ensureManual(ctx, actor, id, false)
}

// ListVisibleManuals lists the manuals of the actor's business; admins
// and managers see all of them, everybody else sees only published
// manuals assigned to a role they hold or to its department
func (m *Manager) ListVisibleManuals(ctx context.Context, actor role.Actor, q Query) ([]Manual, error) {
	if err := q.Validate(); err != nil {
		return nil, err
	}

	aud, err := m.audience(ctx, actor)
	if err != nil {
		return nil, err
	}

	return m.store.FetchManuals(ctx, actor.BusinessID, q, aud)
}

// IsVisible reports whether the actor can see a given manual
func (m *Manager) IsVisible(ctx context.Context, actor role.Actor, manualID uint32) (bool, error) {
	man, err := m.ensureManual(ctx, actor, manualID, false)
	if err != nil {
		if fault.Is(err, fault.KNotFound) {
			return false, nil
		}

		return false, err
	}

	return m.visible(ctx, actor, man)
}

func (m *Manager) visible(ctx context.Context, actor role.Actor, man Manual) (bool, error) {
	aud, err := m.audience(ctx, actor)
	if err != nil {
		return false, err
	}

	if aud == nil {
		return true, nil
	}

	if !man.Published {
		return false, nil
	}

	as, err := m.store.FetchAssignmentsByManualID(ctx, man.ID, false)
	if err != nil {
		return false, err
	}

	for _, a := range as {
		if aud.Includes(a) {
			return true, nil
		}
	}

	return false, nil
}

// IsOwner reports whether the user holds a non-USER role which
// owns the manual
func (m *Manager) IsOwner(ctx context.Context, userID, manualID uint32) (bool, error) {
	man, err := m.store.FetchManualByID(ctx, manualID, false)
	if err != nil {
		if fault.Is(err, fault.KNotFound) {
			return false, nil
		}

		return false, err
	}

	hs, err := m.resolver.HeldRoles(ctx, man.BusinessID, userID)
	if err != nil {
		return false, err
	}

	as, err := m.store.FetchAssignmentsByManualID(ctx, manualID, false)
	if err != nil {
		return false, err
	}

	for _, a := range as {
		if !a.Owner || a.RoleID == nil {
			continue
		}

		for _, h := range hs {
			if h.ID == *a.RoleID && h.Access != role.AccessUser {
				return true, nil
			}
		}
	}

	return false, nil
}

//---------------------------------------------------------------------------
// assignments
//---------------------------------------------------------------------------

// normalize turns zero targets into absent ones
func normalize(a Assignment) Assignment {
	if a.RoleID != nil && *a.RoleID == 0 {
		a.RoleID = nil
	}

	if a.DepartmentID != nil && *a.DepartmentID == 0 {
		a.DepartmentID = nil
	}

	return a
}

// ensureTargets checks that the assigned role and department
// belong to the actor's business
func (m *Manager) ensureTargets(ctx context.Context, actor role.Actor, a Assignment) error {
	if a.RoleID != nil {
		if _, err := m.roles.RoleByID(ctx, actor, *a.RoleID); err != nil {
			return err
		}
	}

	if a.DepartmentID != nil {
		if _, err := m.roles.DepartmentByID(ctx, actor, *a.DepartmentID); err != nil {
			return err
		}
	}

	return nil
}

// AddAssignment makes a manual visible to one more role or department
func (m *Manager) AddAssignment(ctx context.Context, actor role.Actor, manualID uint32, a Assignment) (Assignment, error) {
	a = normalize(a)
	if a.IsOrphan() {
		return a, fault.Invariant("ManualAssignment", "Insert", msgOrphanInsert)
	}

	err := m.tx.WithTx(ctx, func(ctx context.Context) (err error) {
		if err = m.authorizeAssign(ctx, actor, "Insert"); err != nil {
			return err
		}

		if _, err = m.ensureManual(ctx, actor, manualID, false); err != nil {
			return err
		}

		if err = m.ensureTargets(ctx, actor, a); err != nil {
			return err
		}

		a.ID = 0
		a.ManualID = manualID
		a.Created(actor.UserID)

		a, err = m.store.CreateAssignment(ctx, a)

		return err
	})

	if err != nil {
		return a, err
	}

	m.Logger().Debug("added manual assignment", zap.Uint32("id", a.ID), zap.Uint32("manual_id", manualID))

	return a, nil
}

// UpdateAssignment retargets an assignment
func (m *Manager) UpdateAssignment(ctx context.Context, actor role.Actor, id uint32, fn func(ctx context.Context, a Assignment) (Assignment, error)) (a Assignment, err error) {
	err = m.tx.WithTx(ctx, func(ctx context.Context) error {
		if err = m.authorizeAssign(ctx, actor, "Update"); err != nil {
			return err
		}

		current, err := m.store.FetchAssignmentByID(ctx, id, true)
		if err != nil {
			return err
		}

		if _, err = m.ensureManual(ctx, actor, current.ManualID, false); err != nil {
			return fault.NotFound("ManualAssignment")
		}

		updated, err := fn(ctx, current)
		if err != nil {
			return err
		}

		updated = normalize(updated)
		updated.ID = current.ID
		updated.ManualID = current.ManualID
		updated.Retain(current.Audit)

		if updated.IsOrphan() {
			return fault.Invariant("ManualAssignment", "Update", msgOrphanUpdate)
		}

		if err = m.ensureTargets(ctx, actor, updated); err != nil {
			return err
		}

		updated.Touched(actor.UserID)
		if err = m.store.UpdateAssignment(ctx, updated); err != nil {
			return err
		}

		a = updated

		return nil
	})

	return a, err
}

// DeleteAssignment removes an assignment unless it is the last one
func (m *Manager) DeleteAssignment(ctx context.Context, actor role.Actor, id uint32) error {
	return m.tx.WithTx(ctx, func(ctx context.Context) error {
		if err := m.authorizeAssign(ctx, actor, "Delete"); err != nil {
			return err
		}

		a, err := m.store.FetchAssignmentByID(ctx, id, true)
		if err != nil {
			return err
		}

		// locking the manual row serializes concurrent removals
		if _, err = m.ensureManual(ctx, actor, a.ManualID, true); err != nil {
			return fault.NotFound("ManualAssignment")
		}

		as, err := m.store.FetchAssignmentsByManualID(ctx, a.ManualID, true)
		if err != nil {
			return err
		}

		if len(as) <= 1 {
			return fault.Invariant("ManualAssignment", "Delete", msgLastDelete)
		}

		return m.store.DeleteAssignmentByID(ctx, id)
	})
}

// Assignments lists the assignments of a manual
func (m *Manager) Assignments(ctx context.Context, actor role.Actor, manualID uint32) ([]Assignment, error) {
	if _, err := m.ensureManual(ctx, actor, manualID, false); err != nil {
		return nil, err
	}

	return m.store.FetchAssignmentsByManualID(ctx, manualID, false)
}
