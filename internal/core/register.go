package core

import (
	"context"

	"github.com/agubarev/handbook/pkg/business"
	"github.com/agubarev/handbook/pkg/event"
	"github.com/agubarev/handbook/pkg/role"
	"go.uber.org/zap"
)

// names of what every business starts with
const (
	AdminDepartmentName = "Admin"
	GeneralRoleName     = "General"
)

// RegisterBusiness creates a business in a single transaction along with
// a locked Admin department, a locked General role holding every grant
// and the founder's membership bound to that role; the outcome is
// recorded as an event either way
func (c *Core) RegisterBusiness(ctx context.Context, founderID uint32, b business.Business) (_ business.Business, err error) {
	err = c.tx.WithTx(ctx, func(ctx context.Context) (err error) {
		if b, _, err = c.businesses.Register(ctx, founderID, b); err != nil {
			return err
		}

		_, _, err = c.roles.Bootstrap(
			ctx,
			founderID,
			role.Department{
				BusinessID:    b.ID,
				Name:          AdminDepartmentName,
				PreventEdit:   true,
				PreventDelete: true,
			},
			role.Role{
				Name:          GeneralRoleName,
				Access:        role.AccessAdmin,
				PreventEdit:   true,
				PreventDelete: true,
			},
			role.FullPermission(0),
		)

		return err
	})

	e := event.ForUser(event.NameBusinessRegistration, founderID)
	if err == nil {
		e.BusinessID = &b.ID

		c.Logger().Info("registered business", zap.Uint32("business_id", b.ID), zap.Uint32("founder_id", founderID))
	}

	return b, c.events.Outcome(ctx, e, err)
}

// InviteMember creates a pending membership of a user within the
// actor's business, recording the invitation
func (c *Core) InviteMember(ctx context.Context, actor role.Actor, userID uint32) (business.Membership, error) {
	ms, err := c.businesses.CreateMembership(ctx, actor, userID)

	e := event.ForUser(event.NameMembershipInvitation, userID)
	if actor.BusinessID != 0 {
		e.BusinessID = &actor.BusinessID
	}

	return ms, c.events.Outcome(ctx, e, err)
}
