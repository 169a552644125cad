package role

import (
	"context"

	"github.com/agubarev/handbook/pkg/fault"
	"github.com/pkg/errors"
)

// AccessObserver is notified of every authorization decision
type AccessObserver interface {
	ObserveAccess(entity, op string, allowed bool)
}

// Resolver answers what a user is allowed to do within a business,
// judging by the roles the user holds there
// NOTE: absence of roles is never an error, only storage failures are
type Resolver struct {
	store    Store
	observer AccessObserver
}

// NewResolver initializes a role resolver
func NewResolver(s Store) (*Resolver, error) {
	if s == nil {
		return nil, ErrNilStore
	}

	return &Resolver{store: s}, nil
}

// SetObserver assigns a decision observer
func (r *Resolver) SetObserver(o AccessObserver) {
	r.observer = o
}

// EffectiveAccess returns the highest access level among the roles
// the user holds within a business, or AccessNone
func (r *Resolver) EffectiveAccess(ctx context.Context, businessID, userID uint32) (Access, error) {
	held, ok, err := r.AuthoritativeRole(ctx, businessID, userID)
	if err != nil || !ok {
		return AccessNone, err
	}

	return held.Access, nil
}

// AuthoritativeRole returns the most recently granted role of the highest
// access level held by the user within a business
func (r *Resolver) AuthoritativeRole(ctx context.Context, businessID, userID uint32) (held HeldRole, ok bool, err error) {
	hs, err := r.store.FetchHeldRoles(ctx, businessID, userID)
	if err != nil {
		return held, false, errors.Wrap(err, "failed to obtain held roles")
	}

	// held roles are ordered by grant time, newest first, so the
	// first one of the highest level wins
	for _, h := range hs {
		if !ok || h.Access.Rank() > held.Access.Rank() {
			held, ok = h, true
		}
	}

	return held, ok, nil
}

// HeldRoles returns every role the user holds within a business,
// newest first
func (r *Resolver) HeldRoles(ctx context.Context, businessID, userID uint32) ([]HeldRole, error) {
	hs, err := r.store.FetchHeldRoles(ctx, businessID, userID)
	if err != nil {
		return nil, errors.Wrap(err, "failed to obtain held roles")
	}

	return hs, nil
}

// IsAdmin reports whether the user has the admin access level
func (r *Resolver) IsAdmin(ctx context.Context, businessID, userID uint32) (bool, error) {
	access, err := r.EffectiveAccess(ctx, businessID, userID)
	return access == AccessAdmin, err
}

// IsManager reports whether the user's effective access level is manager
func (r *Resolver) IsManager(ctx context.Context, businessID, userID uint32) (bool, error) {
	access, err := r.EffectiveAccess(ctx, businessID, userID)
	return access == AccessManager, err
}

// IsManagerOf reports whether the user holds a manager role of the
// department the given role belongs to; managers never manage other
// manager roles
func (r *Resolver) IsManagerOf(ctx context.Context, userID, roleID uint32) (bool, error) {
	target, err := r.store.FetchRoleByID(ctx, roleID, false)
	if err != nil {
		if fault.Is(err, fault.KNotFound) {
			return false, nil
		}

		return false, err
	}

	if target.Access == AccessManager {
		return false, nil
	}

	return r.managesDepartment(ctx, userID, target.DepartmentID)
}

// IsDepartmentManager reports whether the user holds a manager role
// of a given department
func (r *Resolver) IsDepartmentManager(ctx context.Context, userID, departmentID uint32) (bool, error) {
	return r.managesDepartment(ctx, userID, departmentID)
}

func (r *Resolver) managesDepartment(ctx context.Context, userID, departmentID uint32) (bool, error) {
	rs, err := r.store.FetchRolesByDepartmentID(ctx, departmentID)
	if err != nil {
		return false, err
	}

	for _, candidate := range rs {
		if candidate.Access != AccessManager {
			continue
		}

		holds, err := r.store.HasUserRole(ctx, userID, candidate.ID)
		if err != nil {
			return false, err
		}

		if holds {
			return true, nil
		}
	}

	return false, nil
}

// HasPermission reports whether any role the user holds within
// a business carries at least one of the given grants
func (r *Resolver) HasPermission(ctx context.Context, businessID, userID uint32, grants ...Grant) (bool, error) {
	if len(grants) == 0 {
		return true, nil
	}

	hs, err := r.store.FetchHeldRoles(ctx, businessID, userID)
	if err != nil {
		return false, errors.Wrap(err, "failed to obtain held roles")
	}

	for _, h := range hs {
		p, err := r.store.FetchPermissionByRoleID(ctx, h.ID, false)
		if err != nil {
			if fault.Is(err, fault.KNotFound) {
				continue
			}

			return false, err
		}

		if p.HasAny(grants...) {
			return true, nil
		}
	}

	return false, nil
}

// Authorize passes if the actor either has one of the access levels or
// holds any of the grants, failing with an authorization error otherwise
func (r *Resolver) Authorize(ctx context.Context, actor Actor, entity, op string, levels []Access, grants ...Grant) error {
	allowed, err := r.allows(ctx, actor, levels, grants)
	if err != nil {
		return err
	}

	return r.Decide(entity, op, allowed)
}

// Decide turns a decision into an authorization error when denied
func (r *Resolver) Decide(entity, op string, allowed bool) error {
	if r.observer != nil {
		r.observer.ObserveAccess(entity, op, allowed)
	}

	if !allowed {
		return fault.Forbidden(entity, op)
	}

	return nil
}

func (r *Resolver) allows(ctx context.Context, actor Actor, levels []Access, grants []Grant) (bool, error) {
	if len(levels) > 0 {
		access, err := r.EffectiveAccess(ctx, actor.BusinessID, actor.UserID)
		if err != nil {
			return false, err
		}

		for _, l := range levels {
			if access == l {
				return true, nil
			}
		}
	}

	if len(grants) > 0 {
		return r.HasPermission(ctx, actor.BusinessID, actor.UserID, grants...)
	}

	return false, nil
}
