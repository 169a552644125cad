package role

import (
	"context"
	"net/http"

	"github.com/agubarev/handbook/internal/core"
	"github.com/agubarev/handbook/internal/server/endpoints"
	"github.com/agubarev/handbook/pkg/role"
	"github.com/agubarev/handbook/pkg/util/report"
)

// NewRole is the payload of a role creation
type NewRole struct {
	Role       role.Role       `json:"role"`
	Permission role.Permission `json:"permission"`
}

// departments
var (
	PostDepartment = endpoints.Create[role.Department]("", func(ctx context.Context, c *core.Core, actor role.Actor, _ uint32, d role.Department) (role.Department, error) {
		return c.RoleManager().CreateDepartment(ctx, actor, d)
	})

	PutDepartment = endpoints.Update[role.Department](func(ctx context.Context, c *core.Core, actor role.Actor, id uint32, patch func(context.Context, role.Department) (role.Department, error)) (role.Department, error) {
		return c.RoleManager().UpdateDepartment(ctx, actor, id, patch)
	})

	DeleteDepartment = endpoints.Delete(func(ctx context.Context, c *core.Core, actor role.Actor, id uint32) error {
		return c.RoleManager().DeleteDepartment(ctx, actor, id)
	})

	ListRoles = endpoints.Get[[]role.Role](func(ctx context.Context, c *core.Core, actor role.Actor, departmentID uint32) ([]role.Role, error) {
		return c.RoleManager().ListRoles(ctx, actor, departmentID)
	})
)

// roles
var (
	PostRole = endpoints.Create[NewRole]("id", func(ctx context.Context, c *core.Core, actor role.Actor, departmentID uint32, payload NewRole) (NewRole, error) {
		payload.Role.DepartmentID = departmentID

		r, p, err := c.RoleManager().CreateRole(ctx, actor, payload.Role, payload.Permission)

		return NewRole{Role: r, Permission: p}, err
	})

	PutRole = endpoints.Update[role.Role](func(ctx context.Context, c *core.Core, actor role.Actor, id uint32, patch func(context.Context, role.Role) (role.Role, error)) (role.Role, error) {
		return c.RoleManager().UpdateRole(ctx, actor, id, patch)
	})

	DeleteRole = endpoints.Delete(func(ctx context.Context, c *core.Core, actor role.Actor, id uint32) error {
		return c.RoleManager().DeleteRole(ctx, actor, id)
	})

	RoleMembers = endpoints.Get[[]role.UserRole](func(ctx context.Context, c *core.Core, actor role.Actor, roleID uint32) ([]role.UserRole, error) {
		return c.RoleManager().RoleMembers(ctx, actor, roleID)
	})

	MemberRoles = endpoints.ActionOn[[]role.HeldRole]("user_id", http.StatusOK, func(ctx context.Context, c *core.Core, actor role.Actor, userID uint32) ([]role.HeldRole, error) {
		return c.RoleManager().MemberRoles(ctx, actor, userID)
	})
)

// ListDepartments returns the departments of the actor's business
func ListDepartments(ctx context.Context, c *core.Core, w http.ResponseWriter, r *http.Request) (result interface{}, aux interface{}, code int, rep *report.Report) {
	actor, err := endpoints.Actor(ctx)
	if err != nil {
		return endpoints.Fail(ctx, err)
	}

	ds, err := c.RoleManager().ListDepartments(ctx, actor)
	if err != nil {
		return endpoints.Fail(ctx, err)
	}

	return ds, nil, http.StatusOK, nil
}

// PutPermission changes the grants of a role, the changelog
// comes along as auxiliary data
func PutPermission(ctx context.Context, c *core.Core, w http.ResponseWriter, r *http.Request) (result interface{}, aux interface{}, code int, rep *report.Report) {
	actor, err := endpoints.Actor(ctx)
	if err != nil {
		return endpoints.Fail(ctx, err)
	}

	roleID, err := endpoints.Param(r, "id")
	if err != nil {
		return endpoints.Fail(ctx, err)
	}

	body, err := endpoints.Body(r)
	if err != nil {
		return endpoints.Fail(ctx, err)
	}

	p, changelog, err := c.RoleManager().UpdatePermission(ctx, actor, roleID, func(ctx context.Context, p role.Permission) (role.Permission, error) {
		err := endpoints.Unmarshal(body, &p)
		return p, err
	})

	if err != nil {
		return endpoints.Fail(ctx, err)
	}

	return p, changelog, http.StatusOK, nil
}

// AssignUser binds a user to a role
func AssignUser(ctx context.Context, c *core.Core, w http.ResponseWriter, r *http.Request) (result interface{}, aux interface{}, code int, rep *report.Report) {
	actor, err := endpoints.Actor(ctx)
	if err != nil {
		return endpoints.Fail(ctx, err)
	}

	roleID, err := endpoints.Param(r, "id")
	if err != nil {
		return endpoints.Fail(ctx, err)
	}

	userID, err := endpoints.Param(r, "user_id")
	if err != nil {
		return endpoints.Fail(ctx, err)
	}

	ur, err := c.RoleManager().AssignUser(ctx, actor, userID, roleID)
	if err != nil {
		return endpoints.Fail(ctx, err)
	}

	return ur, nil, http.StatusCreated, nil
}

// UnassignUser removes a user from a role
func UnassignUser(ctx context.Context, c *core.Core, w http.ResponseWriter, r *http.Request) (result interface{}, aux interface{}, code int, rep *report.Report) {
	actor, err := endpoints.Actor(ctx)
	if err != nil {
		return endpoints.Fail(ctx, err)
	}

	roleID, err := endpoints.Param(r, "id")
	if err != nil {
		return endpoints.Fail(ctx, err)
	}

	userID, err := endpoints.Param(r, "user_id")
	if err != nil {
		return endpoints.Fail(ctx, err)
	}

	if err = c.RoleManager().UnassignUser(ctx, actor, userID, roleID); err != nil {
		return endpoints.Fail(ctx, err)
	}

	return map[string]uint32{"role_id": roleID, "user_id": userID}, nil, http.StatusOK, nil
}
