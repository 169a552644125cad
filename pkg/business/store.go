package business

import (
	"context"

	"github.com/agubarev/handbook/pkg/database"
	"github.com/gocraft/dbr/v2"
)

// Store represents a business and membership storage backend
type Store interface {
	CreateBusiness(ctx context.Context, b Business) (Business, error)
	UpdateBusiness(ctx context.Context, b Business) error
	FetchBusinessByID(ctx context.Context, id uint32) (Business, error)

	CreateMembership(ctx context.Context, m Membership) error
	UpdateMembership(ctx context.Context, m Membership) error
	FetchMembership(ctx context.Context, businessID, userID uint32, forUpdate bool) (Membership, error)
	FetchMembershipsByUserID(ctx context.Context, userID uint32) ([]Membership, error)
	ClearDefaultMemberships(ctx context.Context, userID uint32) error
	DeleteMembership(ctx context.Context, businessID, userID uint32) error
}

// SQLStore is the default store implementation, backed by dbr
type SQLStore struct {
	conn *dbr.Connection
}

// NewSQLStore returns a business store with a relational database used as a backend
func NewSQLStore(conn *dbr.Connection) (Store, error) {
	if conn == nil {
		return nil, database.ErrNilConnection
	}

	return &SQLStore{conn: conn}, nil
}

func (s *SQLStore) CreateBusiness(ctx context.Context, b Business) (_ Business, err error) {
	if b.ID != 0 {
		return b, ErrNonZeroID
	}

	stmt := database.Runner(ctx, s.conn).
		InsertInto("business").
		Pair("name", b.Name).
		Pair("address", b.Address).
		Pair("city", b.City).
		Pair("postal_code", b.PostalCode).
		Pair("province", b.Province).
		Pair("country", b.Country).
		Pair("created_at", b.CreatedAt).
		Pair("updated_at", b.UpdatedAt)

	if b.ID, err = database.InsertID(ctx, s.conn.Dialect, stmt); err != nil {
		return b, database.Classify(err, "Business", "Insert")
	}

	return b, nil
}

func (s *SQLStore) UpdateBusiness(ctx context.Context, b Business) error {
	if b.ID == 0 {
		return ErrZeroID
	}

	_, err := database.Runner(ctx, s.conn).
		Update("business").
		Set("name", b.Name).
		Set("address", b.Address).
		Set("city", b.City).
		Set("postal_code", b.PostalCode).
		Set("province", b.Province).
		Set("country", b.Country).
		Set("updated_at", b.UpdatedAt).
		Where("id = ?", b.ID).
		ExecContext(ctx)

	return database.Classify(err, "Business", "Update")
}

func (s *SQLStore) FetchBusinessByID(ctx context.Context, id uint32) (b Business, err error) {
	err = database.Runner(ctx, s.conn).
		SelectBySql("SELECT * FROM business WHERE id = ?", id).
		LoadOneContext(ctx, &b)

	return b, database.Classify(err, "Business", "Select")
}

func (s *SQLStore) CreateMembership(ctx context.Context, m Membership) error {
	_, err := database.Runner(ctx, s.conn).
		InsertInto("membership").
		Pair("business_id", m.BusinessID).
		Pair("user_id", m.UserID).
		Pair("accepted", m.Accepted).
		Pair("is_default", m.IsDefault).
		Pair("prevent_delete", m.PreventDelete).
		Pair("updated_by", m.UpdatedBy).
		Pair("created_at", m.CreatedAt).
		Pair("updated_at", m.UpdatedAt).
		ExecContext(ctx)

	return database.Classify(err, "Membership", "Insert")
}

func (s *SQLStore) UpdateMembership(ctx context.Context, m Membership) error {
	_, err := database.Runner(ctx, s.conn).
		Update("membership").
		Set("accepted", m.Accepted).
		Set("is_default", m.IsDefault).
		Set("prevent_delete", m.PreventDelete).
		Set("updated_by", m.UpdatedBy).
		Set("updated_at", m.UpdatedAt).
		Where("business_id = ? AND user_id = ?", m.BusinessID, m.UserID).
		ExecContext(ctx)

	return database.Classify(err, "Membership", "Update")
}

func (s *SQLStore) FetchMembership(ctx context.Context, businessID, userID uint32, forUpdate bool) (m Membership, err error) {
	q := "SELECT * FROM membership WHERE business_id = ? AND user_id = ?"
	if forUpdate {
		q = database.ForUpdate(q)
	}

	err = database.Runner(ctx, s.conn).SelectBySql(q, businessID, userID).LoadOneContext(ctx, &m)

	return m, database.Classify(err, "Membership", "Select")
}

func (s *SQLStore) FetchMembershipsByUserID(ctx context.Context, userID uint32) (ms []Membership, err error) {
	_, err = database.Runner(ctx, s.conn).
		SelectBySql("SELECT * FROM membership WHERE user_id = ? ORDER BY created_at", userID).
		LoadContext(ctx, &ms)

	return ms, database.Classify(err, "Membership", "Select")
}

// ClearDefaultMemberships unsets the default flag of every membership of a user
func (s *SQLStore) ClearDefaultMemberships(ctx context.Context, userID uint32) error {
	_, err := database.Runner(ctx, s.conn).
		Update("membership").
		Set("is_default", false).
		Where("user_id = ? AND is_default = ?", userID, true).
		ExecContext(ctx)

	return database.Classify(err, "Membership", "Update")
}

func (s *SQLStore) DeleteMembership(ctx context.Context, businessID, userID uint32) error {
	_, err := database.Runner(ctx, s.conn).
		DeleteFrom("membership").
		Where("business_id = ? AND user_id = ?", businessID, userID).
		ExecContext(ctx)

	return database.Classify(err, "Membership", "Delete")
}
