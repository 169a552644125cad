package role

import "github.com/agubarev/handbook/pkg/database"

// Grant names a single permission flag
type Grant string

// permission grants
const (
	GlobalCRUDUsers                 Grant = "global_crud_users"
	GlobalCRUDDepartment            Grant = "global_crud_department"
	GlobalCRUDRole                  Grant = "global_crud_role"
	GlobalCRUDResources             Grant = "global_crud_resources"
	GlobalAssignUsersToRole         Grant = "global_assign_users_to_role"
	GlobalAssignResourcesToRole     Grant = "global_assign_resources_to_role"
	GlobalViewReports               Grant = "global_view_reports"
	DepartmentCRUDRole              Grant = "dept_crud_role"
	DepartmentCRUDResources         Grant = "dept_crud_resources"
	DepartmentAssignUsersToRole     Grant = "dept_assign_users_to_role"
	DepartmentAssignResourcesToRole Grant = "dept_assign_resources_to_role"
	DepartmentViewReports           Grant = "dept_view_reports"
)

// Grants lists every known grant
var Grants = []Grant{
	GlobalCRUDUsers,
	GlobalCRUDDepartment,
	GlobalCRUDRole,
	GlobalCRUDResources,
	GlobalAssignUsersToRole,
	GlobalAssignResourcesToRole,
	GlobalViewReports,
	DepartmentCRUDRole,
	DepartmentCRUDResources,
	DepartmentAssignUsersToRole,
	DepartmentAssignResourcesToRole,
	DepartmentViewReports,
}

// Permission is the set of grants attached to a single role
// NOTE: created together with its role and removed only by cascade
type Permission struct {
	RoleID                          uint32 `db:"role_id" json:"role_id" diff:"-"`
	GlobalCRUDUsers                 bool   `db:"global_crud_users" json:"global_crud_users" diff:"global_crud_users"`
	GlobalCRUDDepartment            bool   `db:"global_crud_department" json:"global_crud_department" diff:"global_crud_department"`
	GlobalCRUDRole                  bool   `db:"global_crud_role" json:"global_crud_role" diff:"global_crud_role"`
	GlobalCRUDResources             bool   `db:"global_crud_resources" json:"global_crud_resources" diff:"global_crud_resources"`
	GlobalAssignUsersToRole         bool   `db:"global_assign_users_to_role" json:"global_assign_users_to_role" diff:"global_assign_users_to_role"`
	GlobalAssignResourcesToRole     bool   `db:"global_assign_resources_to_role" json:"global_assign_resources_to_role" diff:"global_assign_resources_to_role"`
	GlobalViewReports               bool   `db:"global_view_reports" json:"global_view_reports" diff:"global_view_reports"`
	DepartmentCRUDRole              bool   `db:"dept_crud_role" json:"dept_crud_role" diff:"dept_crud_role"`
	DepartmentCRUDResources         bool   `db:"dept_crud_resources" json:"dept_crud_resources" diff:"dept_crud_resources"`
	DepartmentAssignUsersToRole     bool   `db:"dept_assign_users_to_role" json:"dept_assign_users_to_role" diff:"dept_assign_users_to_role"`
	DepartmentAssignResourcesToRole bool   `db:"dept_assign_resources_to_role" json:"dept_assign_resources_to_role" diff:"dept_assign_resources_to_role"`
	DepartmentViewReports           bool   `db:"dept_view_reports" json:"dept_view_reports" diff:"dept_view_reports"`

	database.Audit `diff:"-"`
}

// FullPermission returns a permission with every grant set
func FullPermission(roleID uint32) Permission {
	p := Permission{RoleID: roleID}
	for _, g := range Grants {
		p.Set(g, true)
	}

	return p
}

// Has reports whether a grant is set
func (p Permission) Has(g Grant) bool {
	if ptr := p.field(g); ptr != nil {
		return *ptr
	}

	return false
}

// HasAny reports whether at least one of the grants is set
func (p Permission) HasAny(grants ...Grant) bool {
	for _, g := range grants {
		if p.Has(g) {
			return true
		}
	}

	return false
}

// Set toggles a grant
func (p *Permission) Set(g Grant, v bool) {
	if ptr := p.field(g); ptr != nil {
		*ptr = v
	}
}

// Columns returns the grant columns along with their values
func (p Permission) Columns() map[string]interface{} {
	cols := make(map[string]interface{}, len(Grants))
	for _, g := range Grants {
		cols[string(g)] = p.Has(g)
	}

	return cols
}

// allowed permission changes
var permissionFields = func() map[string]bool {
	fields := make(map[string]bool, len(Grants))
	for _, g := range Grants {
		fields[string(g)] = true
	}

	return fields
}()

func (p *Permission) field(g Grant) *bool {
	switch g {
	case GlobalCRUDUsers:
		return &p.GlobalCRUDUsers
	case GlobalCRUDDepartment:
		return &p.GlobalCRUDDepartment
	case GlobalCRUDRole:
		return &p.GlobalCRUDRole
	case GlobalCRUDResources:
		return &p.GlobalCRUDResources
	case GlobalAssignUsersToRole:
		return &p.GlobalAssignUsersToRole
	case GlobalAssignResourcesToRole:
		return &p.GlobalAssignResourcesToRole
	case GlobalViewReports:
		return &p.GlobalViewReports
	case DepartmentCRUDRole:
		return &p.DepartmentCRUDRole
	case DepartmentCRUDResources:
		return &p.DepartmentCRUDResources
	case DepartmentAssignUsersToRole:
		return &p.DepartmentAssignUsersToRole
	case DepartmentAssignResourcesToRole:
		return &p.DepartmentAssignResourcesToRole
	case DepartmentViewReports:
		return &p.DepartmentViewReports
	}

	return nil
}
