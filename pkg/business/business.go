package business

import (
	"strings"
	"time"

	"github.com/agubarev/handbook/pkg/database"
	"github.com/agubarev/handbook/pkg/fault"
	"github.com/asaskevich/govalidator"
	"github.com/pkg/errors"
)

// errors
var (
	ErrNilStore      = errors.New("business store is nil")
	ErrNilResolver   = errors.New("role resolver is nil")
	ErrNilRevoker    = errors.New("revoker is nil")
	ErrNilTransactor = errors.New("transactor is nil")
	ErrNilEngine     = errors.New("lock engine is nil")
	ErrZeroID        = errors.New("id is zero")
	ErrNonZeroID     = errors.New("id is not zero")
)

// Business is the root tenant
type Business struct {
	ID         uint32    `db:"id" json:"id" diff:"-"`
	Name       string    `db:"name" json:"name" diff:"name" valid:"required,stringlength(1|255)"`
	Address    string    `db:"address" json:"address" diff:"address" valid:"stringlength(0|255)"`
	City       string    `db:"city" json:"city" diff:"city" valid:"stringlength(0|255)"`
	PostalCode string    `db:"postal_code" json:"postal_code" diff:"postal_code" valid:"stringlength(0|32)"`
	Province   string    `db:"province" json:"province" diff:"province" valid:"stringlength(0|255)"`
	Country    string    `db:"country" json:"country" diff:"country" valid:"stringlength(0|255)"`
	CreatedAt  time.Time `db:"created_at" json:"created_at" diff:"-"`
	UpdatedAt  time.Time `db:"updated_at" json:"updated_at" diff:"-"`
}

// Validate business
func (b Business) Validate() error {
	if strings.TrimSpace(b.Name) == "" {
		return fault.Invariant("Business", "Insert", "Name cannot be null or empty")
	}

	if _, err := govalidator.ValidateStruct(b); err != nil {
		return fault.Invariant("Business", "Insert", err.Error())
	}

	return nil
}

// Membership binds a user to a business
type Membership struct {
	BusinessID    uint32 `db:"business_id" json:"business_id" diff:"business_id"`
	UserID        uint32 `db:"user_id" json:"user_id" diff:"user_id"`
	Accepted      bool   `db:"accepted" json:"accepted" diff:"accepted"`
	IsDefault     bool   `db:"is_default" json:"is_default" diff:"is_default"`
	PreventDelete bool   `db:"prevent_delete" json:"prevent_delete" diff:"prevent_delete"`

	database.Audit `diff:"-"`
}

// Validate membership for a given operation, "Insert" or "Update"
func (m Membership) Validate(op string) error {
	if m.BusinessID == 0 {
		return fault.Invariant("Membership", op, "Business id cannot be null or empty")
	}

	if m.UserID == 0 {
		return fault.Invariant("Membership", op, "User id cannot be null or empty")
	}

	if m.IsDefault && !m.Accepted {
		return fault.Invariant("Membership", op, "Only an accepted membership can be the default one")
	}

	return nil
}
