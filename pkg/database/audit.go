package database

import "time"

// Audit is the bookkeeping carried by every editable record
type Audit struct {
	CreatedAt time.Time `db:"created_at" json:"created_at" diff:"-"`
	UpdatedAt time.Time `db:"updated_at" json:"updated_at" diff:"-"`
	UpdatedBy uint32    `db:"updated_by" json:"updated_by" diff:"-"`
}

// Created stamps a new record
func (a *Audit) Created(actorID uint32) {
	now := Now()

	a.CreatedAt = now
	a.UpdatedAt = now
	a.UpdatedBy = actorID
}

// Touched stamps an updated record
func (a *Audit) Touched(actorID uint32) {
	a.UpdatedAt = Now()
	a.UpdatedBy = actorID
}

// Retain keeps the creation stamp of the stored record
func (a *Audit) Retain(stored Audit) {
	a.CreatedAt = stored.CreatedAt
}

// Now returns the current time truncated to what every supported
// backend stores without loss
func Now() time.Time {
	return time.Now().UTC().Truncate(time.Second)
}
