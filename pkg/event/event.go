package event

import (
	"strings"
	"time"

	"github.com/oklog/ulid"
	"github.com/pkg/errors"
)

// errors
var (
	ErrNilStore  = errors.New("event store is nil")
	ErrNilEngine = errors.New("lock engine is nil")
	ErrNilDB     = errors.New("badger database is nil")
	ErrEmptyName = errors.New("event name is empty")
)

// outcome statuses
const (
	StatusPass = "PASS"
	StatusFail = "FAIL"
)

// common event names
const (
	NameBusinessRegistration = "Business Registration"
	NameMembershipInvitation = "Membership Invitation"
	NamePasswordReset        = "Password Reset"
)

// Event is an append-only record of an outcome, e.g. a delivered
// notification; it belongs to a business, a user or both
type Event struct {
	ID         ulid.ULID `db:"-" json:"id"`
	Name       string    `db:"name" json:"name"`
	Status     string    `db:"status" json:"status"`
	Note       string    `db:"note" json:"note"`
	BusinessID *uint32   `db:"business_id" json:"business_id"`
	UserID     *uint32   `db:"user_id" json:"user_id"`
	CreatedAt  time.Time `db:"created_at" json:"created_at"`
}

// Validate event
func (e Event) Validate() error {
	if strings.TrimSpace(e.Name) == "" {
		return ErrEmptyName
	}

	return nil
}

// IsOwned reports whether the event refers to a business or a user
func (e Event) IsOwned() bool {
	return (e.BusinessID != nil && *e.BusinessID != 0) || (e.UserID != nil && *e.UserID != 0)
}

// Passed reports whether the recorded outcome is a success
func (e Event) Passed() bool {
	return e.Status == StatusPass
}

// ForBusiness returns an event owned by a business
func ForBusiness(name string, businessID uint32) Event {
	return Event{Name: name, BusinessID: &businessID}
}

// ForUser returns an event owned by a user
func ForUser(name string, userID uint32) Event {
	return Event{Name: name, UserID: &userID}
}
