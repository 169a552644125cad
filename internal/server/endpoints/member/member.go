package member

import (
	"context"
	"net/http"
	"strconv"

	"github.com/agubarev/handbook/internal/core"
	"github.com/agubarev/handbook/internal/server/endpoints"
	"github.com/agubarev/handbook/pkg/business"
	"github.com/agubarev/handbook/pkg/role"
	"github.com/agubarev/handbook/pkg/util/report"
)

// Register creates a business founded by the actor
var Register = endpoints.Create[business.Business]("", func(ctx context.Context, c *core.Core, actor role.Actor, _ uint32, b business.Business) (business.Business, error) {
	return c.RegisterBusiness(ctx, actor.UserID, b)
})

// Invite creates a pending membership of a user
var Invite = endpoints.ActionOn[business.Membership]("user_id", http.StatusCreated, func(ctx context.Context, c *core.Core, actor role.Actor, userID uint32) (business.Membership, error) {
	return c.InviteMember(ctx, actor, userID)
})

// Accept accepts the actor's invitation into a business
var Accept = endpoints.Action[business.Membership](http.StatusOK, func(ctx context.Context, c *core.Core, actor role.Actor, businessID uint32) (business.Membership, error) {
	return c.BusinessManager().AcceptMembership(ctx, actor.UserID, businessID)
})

// Delete removes a user from the actor's business
var Delete = endpoints.DeleteOn("user_id", func(ctx context.Context, c *core.Core, actor role.Actor, userID uint32) error {
	return c.BusinessManager().DeleteMembership(ctx, actor, actor.BusinessID, userID)
})

// List returns the memberships of the actor
func List(ctx context.Context, c *core.Core, w http.ResponseWriter, r *http.Request) (result interface{}, aux interface{}, code int, rep *report.Report) {
	actor, err := endpoints.Actor(ctx)
	if err != nil {
		return endpoints.Fail(ctx, err)
	}

	ms, err := c.BusinessManager().ListMemberships(ctx, actor.UserID)
	if err != nil {
		return endpoints.Fail(ctx, err)
	}

	return ms, nil, http.StatusOK, nil
}

// Events returns the latest events of the actor's business
func Events(ctx context.Context, c *core.Core, w http.ResponseWriter, r *http.Request) (result interface{}, aux interface{}, code int, rep *report.Report) {
	actor, err := endpoints.Actor(ctx)
	if err != nil {
		return endpoints.Fail(ctx, err)
	}

	// a malformed limit falls back to the default
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))

	es, err := c.EventLog().BusinessEvents(ctx, actor, limit)
	if err != nil {
		return endpoints.Fail(ctx, err)
	}

	return es, nil, http.StatusOK, nil
}
