package business

import (
	"context"
	"fmt"

	"github.com/agubarev/handbook/pkg/database"
	"github.com/agubarev/handbook/pkg/fault"
	"github.com/agubarev/handbook/pkg/lock"
	"github.com/agubarev/handbook/pkg/role"
	"github.com/agubarev/handbook/pkg/util"
	"go.uber.org/zap"
)

var adminOnly = []role.Access{role.AccessAdmin}

// Revoker drops whatever a user was granted within a business
type Revoker interface {
	RevokeMember(ctx context.Context, businessID, userID uint32) error
}

// Manager manages businesses and the memberships of users
type Manager struct {
	store    Store
	tx       database.Transactor
	locks    *lock.Engine
	resolver *role.Resolver
	revoker  Revoker
	logger   *zap.Logger
}

// NewManager initializes a business manager
func NewManager(s Store, tx database.Transactor, locks *lock.Engine, resolver *role.Resolver, revoker Revoker) (*Manager, error) {
	if s == nil {
		return nil, ErrNilStore
	}

	if tx == nil {
		return nil, ErrNilTransactor
	}

	if locks == nil {
		return nil, ErrNilEngine
	}

	if resolver == nil {
		return nil, ErrNilResolver
	}

	if revoker == nil {
		return nil, ErrNilRevoker
	}

	m := &Manager{
		store:    s,
		tx:       tx,
		locks:    locks,
		resolver: resolver,
		revoker:  revoker,
	}

	return m, nil
}

// SetLogger assigns a logger for this manager
func (m *Manager) SetLogger(logger *zap.Logger) error {
	if logger != nil {
		logger = logger.Named("[business]")
	}

	m.logger = logger

	return nil
}

// Logger returns primary logger if is set, otherwise initializing and returning
func (m *Manager) Logger() *zap.Logger {
	if m.logger == nil {
		l, err := zap.NewDevelopment()
		if err != nil {
			panic(fmt.Errorf("failed to initialize business manager logger: %s", err))
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

// Register creates a business along with the founder's membership, which
// becomes the founder's default one and can't be deleted
func (m *Manager) Register(ctx context.Context, founderID uint32, b Business) (_ Business, ms Membership, err error) {
	if founderID == 0 {
		return b, ms, fault.Invariant("Membership", "Insert", "User id cannot be null or empty")
	}

	if err = b.Validate(); err != nil {
		return b, ms, err
	}

	now := database.Now()
	b.CreatedAt, b.UpdatedAt = now, now

	err = m.tx.WithTx(ctx, func(ctx context.Context) (err error) {
		if b, err = m.store.CreateBusiness(ctx, b); err != nil {
			return err
		}

		ms = Membership{
			BusinessID:    b.ID,
			UserID:        founderID,
			Accepted:      true,
			IsDefault:     true,
			PreventDelete: true,
		}

		ms.Created(founderID)

		if err = ms.Validate("Insert"); err != nil {
			return err
		}

		if err = m.store.ClearDefaultMemberships(ctx, founderID); err != nil {
			return err
		}

		return m.store.CreateMembership(ctx, ms)
	})

	if err != nil {
		return b, ms, err
	}

	m.Logger().Debug("registered business", zap.Uint32("id", b.ID), zap.Uint32("founder_id", founderID))

	return b, ms, nil
}

// BusinessByID returns a business the actor is a member of
func (m *Manager) BusinessByID(ctx context.Context, actor role.Actor) (Business, error) {
	if _, err := m.store.FetchMembership(ctx, actor.BusinessID, actor.UserID, false); err != nil {
		return Business{}, fault.NotFound("Business")
	}

	return m.store.FetchBusinessByID(ctx, actor.BusinessID)
}

// UpdateBusiness updates the actor's business
func (m *Manager) UpdateBusiness(ctx context.Context, actor role.Actor, fn func(ctx context.Context, b Business) (Business, error)) (b Business, err error) {
	err = m.tx.WithTx(ctx, func(ctx context.Context) error {
		if err := m.resolver.Authorize(ctx, actor, "Business", "Update", adminOnly); err != nil {
			return err
		}

		current, err := m.store.FetchBusinessByID(ctx, actor.BusinessID)
		if err != nil {
			return err
		}

		updated, err := fn(ctx, current)
		if err != nil {
			return err
		}

		updated.ID = current.ID
		updated.CreatedAt = current.CreatedAt

		changelog, err := util.ProtectedChangelog(map[string]bool{
			"name":        true,
			"address":     true,
			"city":        true,
			"postal_code": true,
			"province":    true,
			"country":     true,
		}, current, updated)

		if err != nil {
			return fault.Invariant("Business", "Update", err.Error())
		}

		if len(changelog) == 0 {
			b = current
			return nil
		}

		if err = updated.Validate(); err != nil {
			return err
		}

		updated.UpdatedAt = database.Now()
		if err = m.store.UpdateBusiness(ctx, updated); err != nil {
			return err
		}

		b = updated

		return nil
	})

	return b, err
}

//---------------------------------------------------------------------------
// memberships
//---------------------------------------------------------------------------

// CreateMembership invites a user into the actor's business, the membership
// stays pending until the user accepts it
func (m *Manager) CreateMembership(ctx context.Context, actor role.Actor, userID uint32) (ms Membership, err error) {
	ms = Membership{
		BusinessID: actor.BusinessID,
		UserID:     userID,
	}

	if err = ms.Validate("Insert"); err != nil {
		return ms, err
	}

	ms.Created(actor.UserID)

	err = m.tx.WithTx(ctx, func(ctx context.Context) error {
		if err := m.resolver.Authorize(ctx, actor, "Membership", "Insert", adminOnly, role.GlobalCRUDUsers); err != nil {
			return err
		}

		return m.store.CreateMembership(ctx, ms)
	})

	if err != nil {
		return ms, err
	}

	m.Logger().Debug("created membership", zap.Uint32("business_id", ms.BusinessID), zap.Uint32("user_id", userID))

	return ms, nil
}

// AcceptMembership accepts a pending invitation on behalf of the invited user
func (m *Manager) AcceptMembership(ctx context.Context, userID, businessID uint32) (ms Membership, err error) {
	err = m.tx.WithTx(ctx, func(ctx context.Context) error {
		if ms, err = m.store.FetchMembership(ctx, businessID, userID, true); err != nil {
			return err
		}

		if ms.Accepted {
			return nil
		}

		ms.Accepted = true
		ms.Touched(userID)

		if err = ms.Validate("Update"); err != nil {
			return err
		}

		return m.store.UpdateMembership(ctx, ms)
	})

	return ms, err
}

// SetDefaultMembership makes an accepted membership the user's default
// one, clearing the previous default within the same transaction
func (m *Manager) SetDefaultMembership(ctx context.Context, userID, businessID uint32) (ms Membership, err error) {
	err = m.tx.WithTx(ctx, func(ctx context.Context) error {
		if ms, err = m.store.FetchMembership(ctx, businessID, userID, true); err != nil {
			return err
		}

		if !ms.Accepted {
			return fault.Invariant("Membership", "Update", "Only an accepted membership can be the default one")
		}

		if ms.IsDefault {
			return nil
		}

		if err = m.store.ClearDefaultMemberships(ctx, userID); err != nil {
			return err
		}

		ms.IsDefault = true
		ms.Touched(userID)

		return m.store.UpdateMembership(ctx, ms)
	})

	return ms, err
}

// UpdateMembership lets an admin change the delete lock of a membership
func (m *Manager) UpdateMembership(ctx context.Context, actor role.Actor, userID uint32, fn func(ctx context.Context, ms Membership) (Membership, error)) (ms Membership, err error) {
	err = m.tx.WithTx(ctx, func(ctx context.Context) error {
		if err := m.resolver.Authorize(ctx, actor, "Membership", "Update", adminOnly); err != nil {
			return err
		}

		current, err := m.store.FetchMembership(ctx, actor.BusinessID, userID, true)
		if err != nil {
			return err
		}

		updated, err := fn(ctx, current)
		if err != nil {
			return err
		}

		updated.Retain(current.Audit)

		if err = updated.Validate("Update"); err != nil {
			return err
		}

		changelog, err := util.ProtectedChangelog(map[string]bool{"prevent_delete": true}, current, updated)
		if err != nil {
			return fault.Invariant("Membership", "Update", err.Error())
		}

		if len(changelog) == 0 {
			ms = current
			return nil
		}

		updated.Touched(actor.UserID)
		if err = m.store.UpdateMembership(ctx, updated); err != nil {
			return err
		}

		ms = updated

		return nil
	})

	return ms, err
}

// IsMember reports whether a user has accepted a membership of a business
func (m *Manager) IsMember(ctx context.Context, businessID, userID uint32) (bool, error) {
	ms, err := m.store.FetchMembership(ctx, businessID, userID, false)
	if err != nil {
		if fault.Is(err, fault.KNotFound) {
			return false, nil
		}

		return false, err
	}

	return ms.Accepted, nil
}

// ListMemberships returns every membership of a user, oldest first
func (m *Manager) ListMemberships(ctx context.Context, userID uint32) ([]Membership, error) {
	if userID == 0 {
		return nil, ErrZeroID
	}

	return m.store.FetchMembershipsByUserID(ctx, userID)
}

// DeleteMembership removes a user from a business along with every role
// they hold there; only admins may do so and only while the membership
// is not locked from deletion
func (m *Manager) DeleteMembership(ctx context.Context, actor role.Actor, businessID, userID uint32) error {
	return m.tx.WithTx(ctx, func(ctx context.Context) error {
		if businessID != actor.BusinessID {
			return m.resolver.Decide("Membership", "Delete", false)
		}

		if err := m.resolver.Authorize(ctx, actor, "Membership", "Delete", adminOnly); err != nil {
			return err
		}

		ms, err := m.store.FetchMembership(ctx, businessID, userID, true)
		if err != nil {
			return err
		}

		flags := lock.Flags{PreventDelete: ms.PreventDelete}
		if err = m.locks.CheckOwnDelete(lock.KMembership, flags); err != nil {
			return err
		}

		if err = m.store.DeleteMembership(ctx, businessID, userID); err != nil {
			return err
		}

		if err = m.revoker.RevokeMember(ctx, businessID, userID); err != nil {
			return err
		}

		m.Logger().Debug("deleted membership", zap.Uint32("business_id", businessID), zap.Uint32("user_id", userID))

		return nil
	})
}
