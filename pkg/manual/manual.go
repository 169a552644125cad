package manual

import (
	"strings"
	"time"

	"github.com/agubarev/handbook/pkg/database"
	"github.com/agubarev/handbook/pkg/util"
	"github.com/asaskevich/govalidator"
	"github.com/pkg/errors"
)

// errors
var (
	ErrNilStore       = errors.New("manual store is nil")
	ErrNilRoleManager = errors.New("role manager is nil")
	ErrNilTransactor  = errors.New("transactor is nil")
	ErrNilEngine      = errors.New("lock engine is nil")
	ErrZeroID         = errors.New("id is zero")
	ErrNonZeroID      = errors.New("id is not zero")
	ErrEmptyTitle     = errors.New("title is empty")
)

// Manual is a tree of training content published to a business;
// it is the lock root of everything beneath it
type Manual struct {
	ID            uint32 `db:"id" json:"id" diff:"-"`
	BusinessID    uint32 `db:"business_id" json:"business_id" diff:"business_id"`
	Title         string `db:"title" json:"title" diff:"title" valid:"required,stringlength(1|255)"`
	Published     bool   `db:"published" json:"published" diff:"published"`
	PreventEdit   bool   `db:"prevent_edit" json:"prevent_edit" diff:"prevent_edit"`
	PreventDelete bool   `db:"prevent_delete" json:"prevent_delete" diff:"prevent_delete"`

	database.Audit `diff:"-"`
}

// Validate manual
func (m Manual) Validate() error {
	if m.BusinessID == 0 {
		return errors.Wrap(ErrZeroID, "business id")
	}

	if strings.TrimSpace(m.Title) == "" {
		return ErrEmptyTitle
	}

	if _, err := govalidator.ValidateStruct(m); err != nil {
		return err
	}

	return nil
}

// Assignment makes a manual visible to a role, or to every
// role of a department
type Assignment struct {
	ID           uint32  `db:"id" json:"id"`
	ManualID     uint32  `db:"manual_id" json:"manual_id"`
	RoleID       *uint32 `db:"role_id" json:"role_id"`
	DepartmentID *uint32 `db:"department_id" json:"department_id"`
	Owner        bool    `db:"owner" json:"owner"`

	database.Audit
}

// IsOrphan reports whether the assignment points nowhere
func (a Assignment) IsOrphan() bool {
	return (a.RoleID == nil || *a.RoleID == 0) && (a.DepartmentID == nil || *a.DepartmentID == 0)
}

// Section is the first level of a manual
type Section struct {
	ID       uint32 `db:"id" json:"id" diff:"-"`
	ManualID uint32 `db:"manual_id" json:"manual_id" diff:"manual_id"`
	Title    string `db:"title" json:"title" diff:"title" valid:"required,stringlength(1|255)"`

	database.Audit `diff:"-"`
}

// Validate section
func (s Section) Validate() error {
	if s.ManualID == 0 {
		return errors.Wrap(ErrZeroID, "manual id")
	}

	if strings.TrimSpace(s.Title) == "" {
		return ErrEmptyTitle
	}

	_, err := govalidator.ValidateStruct(s)

	return err
}

// Policy groups content within a section
type Policy struct {
	ID        uint32 `db:"id" json:"id" diff:"-"`
	SectionID uint32 `db:"manual_section_id" json:"manual_section_id" diff:"manual_section_id"`
	Title     string `db:"title" json:"title" diff:"title" valid:"required,stringlength(1|255)"`

	database.Audit `diff:"-"`
}

// Validate policy
func (p Policy) Validate() error {
	if p.SectionID == 0 {
		return errors.Wrap(ErrZeroID, "section id")
	}

	if strings.TrimSpace(p.Title) == "" {
		return ErrEmptyTitle
	}

	_, err := govalidator.ValidateStruct(p)

	return err
}

// Content is a readable piece of a policy
type Content struct {
	ID       uint32 `db:"id" json:"id" diff:"-"`
	PolicyID uint32 `db:"policy_id" json:"policy_id" diff:"policy_id"`
	Title    string `db:"title" json:"title" diff:"title" valid:"required,stringlength(1|255)"`
	Body     string `db:"body" json:"body" diff:"body"`
	Checksum uint64 `db:"-" json:"-" diff:"-"`

	database.Audit `diff:"-"`
}

// Validate content
func (c Content) Validate() error {
	if c.PolicyID == 0 {
		return errors.Wrap(ErrZeroID, "policy id")
	}

	if strings.TrimSpace(c.Title) == "" {
		return ErrEmptyTitle
	}

	_, err := govalidator.ValidateStruct(c)

	return err
}

// ETag returns an entity tag of the body
func (c *Content) ETag() string {
	if c.Checksum == 0 {
		c.Checksum = util.ChecksumString(c.Body)
	}

	return util.ETag(c.Checksum)
}

// Read is a receipt of a user having read a piece of content
// NOTE: it is never updated, only inserted and deleted
type Read struct {
	ContentID uint32    `db:"content_id" json:"content_id"`
	UserID    uint32    `db:"user_id" json:"user_id"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
}

// Audience is the set of roles and departments a non-privileged
// reader is associated with; a nil audience sees everything
type Audience struct {
	RoleIDs       []uint32
	DepartmentIDs []uint32
}

// IsEmpty reports whether the audience holds nothing at all
func (a *Audience) IsEmpty() bool {
	return a != nil && len(a.RoleIDs) == 0 && len(a.DepartmentIDs) == 0
}

// Includes reports whether an assignment targets the audience
func (a *Audience) Includes(as Assignment) bool {
	if a == nil {
		return true
	}

	for _, id := range a.RoleIDs {
		if as.RoleID != nil && *as.RoleID == id {
			return true
		}
	}

	for _, id := range a.DepartmentIDs {
		if as.DepartmentID != nil && *as.DepartmentID == id {
			return true
		}
	}

	return false
}
