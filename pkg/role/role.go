package role

import (
	"strings"
	"time"

	"github.com/agubarev/handbook/pkg/database"
	"github.com/asaskevich/govalidator"
	"github.com/pkg/errors"
)

// errors
var (
	ErrNilStore      = errors.New("role store is nil")
	ErrNilResolver   = errors.New("role resolver is nil")
	ErrZeroID        = errors.New("id is zero")
	ErrNonZeroID     = errors.New("id is not zero")
	ErrInvalidAccess = errors.New("invalid access level")
	ErrEmptyName     = errors.New("name is empty")
)

// Access is the access level granted by a role
type Access string

// access levels, ordered from the highest
const (
	AccessAdmin   Access = "ADMIN"
	AccessManager Access = "MANAGER"
	AccessUser    Access = "USER"
	AccessNone    Access = ""
)

// Rank returns the ordinal of the access level, higher is stronger
func (a Access) Rank() int {
	switch a {
	case AccessAdmin:
		return 3
	case AccessManager:
		return 2
	case AccessUser:
		return 1
	default:
		return 0
	}
}

// Validate checks whether the access level is assignable to a role
func (a Access) Validate() error {
	switch a {
	case AccessAdmin, AccessManager, AccessUser:
		return nil
	}

	return errors.Wrapf(ErrInvalidAccess, "%q", string(a))
}

func (a Access) String() string {
	if a == AccessNone {
		return "NONE"
	}

	return string(a)
}

// Actor is the identity on whose behalf an operation is performed
type Actor struct {
	UserID     uint32 `json:"user_id"`
	BusinessID uint32 `json:"business_id"`
}

// Department groups roles within a business and is a lock root
type Department struct {
	ID            uint32 `db:"id" json:"id" diff:"-"`
	BusinessID    uint32 `db:"business_id" json:"business_id" diff:"business_id"`
	Name          string `db:"name" json:"name" diff:"name" valid:"required,stringlength(1|255)"`
	PreventEdit   bool   `db:"prevent_edit" json:"prevent_edit" diff:"prevent_edit"`
	PreventDelete bool   `db:"prevent_delete" json:"prevent_delete" diff:"prevent_delete"`

	database.Audit `diff:"-"`
}

// Validate department
func (d Department) Validate() error {
	if d.BusinessID == 0 {
		return errors.Wrap(ErrZeroID, "business id")
	}

	if strings.TrimSpace(d.Name) == "" {
		return ErrEmptyName
	}

	if _, err := govalidator.ValidateStruct(d); err != nil {
		return err
	}

	return nil
}

// Role belongs to a department and grants an access level along
// with a set of permissions; it is a lock root
type Role struct {
	ID            uint32 `db:"id" json:"id" diff:"-"`
	DepartmentID  uint32 `db:"department_id" json:"department_id" diff:"department_id"`
	Name          string `db:"name" json:"name" diff:"name" valid:"required,stringlength(1|255)"`
	Access        Access `db:"access" json:"access" diff:"access"`
	PreventEdit   bool   `db:"prevent_edit" json:"prevent_edit" diff:"prevent_edit"`
	PreventDelete bool   `db:"prevent_delete" json:"prevent_delete" diff:"prevent_delete"`

	database.Audit `diff:"-"`
}

// Validate role
func (r Role) Validate() error {
	if r.DepartmentID == 0 {
		return errors.Wrap(ErrZeroID, "department id")
	}

	if strings.TrimSpace(r.Name) == "" {
		return ErrEmptyName
	}

	if err := r.Access.Validate(); err != nil {
		return err
	}

	if _, err := govalidator.ValidateStruct(r); err != nil {
		return err
	}

	return nil
}

// UserRole binds a user to a role
type UserRole struct {
	UserID    uint32    `db:"user_id" json:"user_id"`
	RoleID    uint32    `db:"role_id" json:"role_id"`
	UpdatedBy uint32    `db:"updated_by" json:"updated_by"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
}

// HeldRole is a role held by a user within a business, along with
// the time it was granted
type HeldRole struct {
	Role
	BusinessID uint32    `db:"business_id" json:"business_id"`
	GrantedAt  time.Time `db:"granted_at" json:"granted_at"`
}
