package role

import (
	"context"

	"github.com/agubarev/handbook/pkg/database"
	"github.com/gocraft/dbr/v2"
)

// Store represents a department, role and permission storage backend
// NOTE: forUpdate row-locks the fetched record until the
// carried transaction ends
type Store interface {
	CreateDepartment(ctx context.Context, d Department) (Department, error)
	UpdateDepartment(ctx context.Context, d Department) error
	FetchDepartmentByID(ctx context.Context, id uint32, forUpdate bool) (Department, error)
	FetchDepartmentsByBusinessID(ctx context.Context, businessID uint32) ([]Department, error)
	DeleteDepartmentByID(ctx context.Context, id uint32) error

	CreateRole(ctx context.Context, r Role) (Role, error)
	UpdateRole(ctx context.Context, r Role) error
	FetchRoleByID(ctx context.Context, id uint32, forUpdate bool) (Role, error)
	FetchRolesByDepartmentID(ctx context.Context, departmentID uint32) ([]Role, error)
	DeleteRoleByID(ctx context.Context, id uint32) error

	CreatePermission(ctx context.Context, p Permission) error
	UpdatePermission(ctx context.Context, p Permission) error
	FetchPermissionByRoleID(ctx context.Context, roleID uint32, forUpdate bool) (Permission, error)

	CreateUserRole(ctx context.Context, ur UserRole) error
	HasUserRole(ctx context.Context, userID, roleID uint32) (bool, error)
	DeleteUserRole(ctx context.Context, userID, roleID uint32) error
	DeleteUserRolesByBusinessID(ctx context.Context, businessID, userID uint32) error
	FetchUserRolesByRoleID(ctx context.Context, roleID uint32) ([]UserRole, error)
	FetchHeldRoles(ctx context.Context, businessID, userID uint32) ([]HeldRole, error)
}

// SQLStore is the default store implementation, backed by dbr
// over either MySQL or PostgreSQL
type SQLStore struct {
	conn *dbr.Connection
}

// NewSQLStore returns a role store with a relational database used as a backend
func NewSQLStore(conn *dbr.Connection) (Store, error) {
	if conn == nil {
		return nil, database.ErrNilConnection
	}

	return &SQLStore{conn: conn}, nil
}

//---------------------------------------------------------------------------
// departments
//---------------------------------------------------------------------------

func (s *SQLStore) CreateDepartment(ctx context.Context, d Department) (_ Department, err error) {
	if d.ID != 0 {
		return d, ErrNonZeroID
	}

	stmt := database.Runner(ctx, s.conn).
		InsertInto("department").
		Pair("business_id", d.BusinessID).
		Pair("name", d.Name).
		Pair("prevent_edit", d.PreventEdit).
		Pair("prevent_delete", d.PreventDelete).
		Pair("updated_by", d.UpdatedBy).
		Pair("created_at", d.CreatedAt).
		Pair("updated_at", d.UpdatedAt)

	if d.ID, err = database.InsertID(ctx, s.conn.Dialect, stmt); err != nil {
		return d, database.Classify(err, "Department", "Insert")
	}

	return d, nil
}

func (s *SQLStore) UpdateDepartment(ctx context.Context, d Department) error {
	if d.ID == 0 {
		return ErrZeroID
	}

	_, err := database.Runner(ctx, s.conn).
		Update("department").
		Set("name", d.Name).
		Set("prevent_edit", d.PreventEdit).
		Set("prevent_delete", d.PreventDelete).
		Set("updated_by", d.UpdatedBy).
		Set("updated_at", d.UpdatedAt).
		Where("id = ?", d.ID).
		ExecContext(ctx)

	return database.Classify(err, "Department", "Update")
}

func (s *SQLStore) FetchDepartmentByID(ctx context.Context, id uint32, forUpdate bool) (d Department, err error) {
	q := "SELECT * FROM department WHERE id = ?"
	if forUpdate {
		q = database.ForUpdate(q)
	}

	err = database.Runner(ctx, s.conn).SelectBySql(q, id).LoadOneContext(ctx, &d)

	return d, database.Classify(err, "Department", "Select")
}

func (s *SQLStore) FetchDepartmentsByBusinessID(ctx context.Context, businessID uint32) (ds []Department, err error) {
	_, err = database.Runner(ctx, s.conn).
		SelectBySql("SELECT * FROM department WHERE business_id = ? ORDER BY id", businessID).
		LoadContext(ctx, &ds)

	return ds, database.Classify(err, "Department", "Select")
}

func (s *SQLStore) DeleteDepartmentByID(ctx context.Context, id uint32) error {
	_, err := database.Runner(ctx, s.conn).DeleteFrom("department").Where("id = ?", id).ExecContext(ctx)
	return database.Classify(err, "Department", "Delete")
}

//---------------------------------------------------------------------------
// roles
//---------------------------------------------------------------------------

func (s *SQLStore) CreateRole(ctx context.Context, r Role) (_ Role, err error) {
	if r.ID != 0 {
		return r, ErrNonZeroID
	}

	stmt := database.Runner(ctx, s.conn).
		InsertInto("role").
		Pair("department_id", r.DepartmentID).
		Pair("name", r.Name).
		Pair("access", string(r.Access)).
		Pair("prevent_edit", r.PreventEdit).
		Pair("prevent_delete", r.PreventDelete).
		Pair("updated_by", r.UpdatedBy).
		Pair("created_at", r.CreatedAt).
		Pair("updated_at", r.UpdatedAt)

	if r.ID, err = database.InsertID(ctx, s.conn.Dialect, stmt); err != nil {
		return r, database.Classify(err, "Role", "Insert")
	}

	return r, nil
}

func (s *SQLStore) UpdateRole(ctx context.Context, r Role) error {
	if r.ID == 0 {
		return ErrZeroID
	}

	_, err := database.Runner(ctx, s.conn).
		Update("role").
		Set("name", r.Name).
		Set("access", string(r.Access)).
		Set("prevent_edit", r.PreventEdit).
		Set("prevent_delete", r.PreventDelete).
		Set("updated_by", r.UpdatedBy).
		Set("updated_at", r.UpdatedAt).
		Where("id = ?", r.ID).
		ExecContext(ctx)

	return database.Classify(err, "Role", "Update")
}

func (s *SQLStore) FetchRoleByID(ctx context.Context, id uint32, forUpdate bool) (r Role, err error) {
	q := "SELECT * FROM role WHERE id = ?"
	if forUpdate {
		q = database.ForUpdate(q)
	}

	err = database.Runner(ctx, s.conn).SelectBySql(q, id).LoadOneContext(ctx, &r)

	return r, database.Classify(err, "Role", "Select")
}

func (s *SQLStore) FetchRolesByDepartmentID(ctx context.Context, departmentID uint32) (rs []Role, err error) {
	_, err = database.Runner(ctx, s.conn).
		SelectBySql("SELECT * FROM role WHERE department_id = ? ORDER BY id", departmentID).
		LoadContext(ctx, &rs)

	return rs, database.Classify(err, "Role", "Select")
}

func (s *SQLStore) DeleteRoleByID(ctx context.Context, id uint32) error {
	_, err := database.Runner(ctx, s.conn).DeleteFrom("role").Where("id = ?", id).ExecContext(ctx)
	return database.Classify(err, "Role", "Delete")
}

//---------------------------------------------------------------------------
// permissions
//---------------------------------------------------------------------------

func (s *SQLStore) CreatePermission(ctx context.Context, p Permission) error {
	if p.RoleID == 0 {
		return ErrZeroID
	}

	stmt := database.Runner(ctx, s.conn).
		InsertInto("permission").
		Pair("role_id", p.RoleID)

	for _, g := range Grants {
		stmt = stmt.Pair(string(g), p.Has(g))
	}

	_, err := stmt.
		Pair("updated_by", p.UpdatedBy).
		Pair("created_at", p.CreatedAt).
		Pair("updated_at", p.UpdatedAt).
		ExecContext(ctx)

	return database.Classify(err, "Permission", "Insert")
}

func (s *SQLStore) UpdatePermission(ctx context.Context, p Permission) error {
	if p.RoleID == 0 {
		return ErrZeroID
	}

	_, err := database.Runner(ctx, s.conn).
		Update("permission").
		SetMap(p.Columns()).
		Set("updated_by", p.UpdatedBy).
		Set("updated_at", p.UpdatedAt).
		Where("role_id = ?", p.RoleID).
		ExecContext(ctx)

	return database.Classify(err, "Permission", "Update")
}

func (s *SQLStore) FetchPermissionByRoleID(ctx context.Context, roleID uint32, forUpdate bool) (p Permission, err error) {
	q := "SELECT * FROM permission WHERE role_id = ?"
	if forUpdate {
		q = database.ForUpdate(q)
	}

	err = database.Runner(ctx, s.conn).SelectBySql(q, roleID).LoadOneContext(ctx, &p)

	return p, database.Classify(err, "Permission", "Select")
}

//---------------------------------------------------------------------------
// user roles
//---------------------------------------------------------------------------

func (s *SQLStore) CreateUserRole(ctx context.Context, ur UserRole) error {
	if ur.UserID == 0 || ur.RoleID == 0 {
		return ErrZeroID
	}

	_, err := database.Runner(ctx, s.conn).
		InsertInto("user_role").
		Pair("user_id", ur.UserID).
		Pair("role_id", ur.RoleID).
		Pair("updated_by", ur.UpdatedBy).
		Pair("created_at", ur.CreatedAt).
		ExecContext(ctx)

	return database.Classify(err, "UserRole", "Insert")
}

func (s *SQLStore) HasUserRole(ctx context.Context, userID, roleID uint32) (bool, error) {
	var count int

	err := database.Runner(ctx, s.conn).
		SelectBySql("SELECT COUNT(*) FROM user_role WHERE user_id = ? AND role_id = ?", userID, roleID).
		LoadOneContext(ctx, &count)

	if err != nil {
		return false, database.Classify(err, "UserRole", "Select")
	}

	return count > 0, nil
}

func (s *SQLStore) DeleteUserRole(ctx context.Context, userID, roleID uint32) error {
	_, err := database.Runner(ctx, s.conn).
		DeleteFrom("user_role").
		Where("user_id = ? AND role_id = ?", userID, roleID).
		ExecContext(ctx)

	return database.Classify(err, "UserRole", "Delete")
}

// DeleteUserRolesByBusinessID unbinds a user from every role of a business
func (s *SQLStore) DeleteUserRolesByBusinessID(ctx context.Context, businessID, userID uint32) error {
	q := `DELETE FROM user_role
		WHERE user_id = ? AND role_id IN (
			SELECT r.id FROM role r
			INNER JOIN department d ON d.id = r.department_id
			WHERE d.business_id = ?
		)`

	_, err := database.Runner(ctx, s.conn).DeleteBySql(q, userID, businessID).ExecContext(ctx)

	return database.Classify(err, "UserRole", "Delete")
}

func (s *SQLStore) FetchUserRolesByRoleID(ctx context.Context, roleID uint32) (urs []UserRole, err error) {
	_, err = database.Runner(ctx, s.conn).
		SelectBySql("SELECT * FROM user_role WHERE role_id = ? ORDER BY created_at, user_id", roleID).
		LoadContext(ctx, &urs)

	return urs, database.Classify(err, "UserRole", "Select")
}

// FetchHeldRoles returns roles a user holds within a business, the most
// recently granted first
func (s *SQLStore) FetchHeldRoles(ctx context.Context, businessID, userID uint32) (hs []HeldRole, err error) {
	q := `SELECT r.*, d.business_id, ur.created_at AS granted_at
		FROM user_role ur
		INNER JOIN role r ON r.id = ur.role_id
		INNER JOIN department d ON d.id = r.department_id
		WHERE ur.user_id = ? AND d.business_id = ?
		ORDER BY ur.created_at DESC, r.id DESC`

	_, err = database.Runner(ctx, s.conn).SelectBySql(q, userID, businessID).LoadContext(ctx, &hs)

	return hs, database.Classify(err, "UserRole", "Select")
}
