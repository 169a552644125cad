package manual

import (
	"context"
	"fmt"

	"github.com/agubarev/handbook/pkg/database"
	"github.com/gocraft/dbr/v2"
)

// Store represents a manual tree storage backend
// NOTE: forUpdate row-locks the fetched record until the
// carried transaction ends
type Store interface {
	CreateManual(ctx context.Context, m Manual) (Manual, error)
	UpdateManual(ctx context.Context, m Manual) error
	FetchManualByID(ctx context.Context, id uint32, forUpdate bool) (Manual, error)
	FetchManuals(ctx context.Context, businessID uint32, q Query, audience *Audience) ([]Manual, error)
	DeleteManualByID(ctx context.Context, id uint32) error

	CreateAssignment(ctx context.Context, a Assignment) (Assignment, error)
	UpdateAssignment(ctx context.Context, a Assignment) error
	FetchAssignmentByID(ctx context.Context, id uint32, forUpdate bool) (Assignment, error)
	FetchAssignmentsByManualID(ctx context.Context, manualID uint32, forUpdate bool) ([]Assignment, error)
	DeleteAssignmentByID(ctx context.Context, id uint32) error

	CreateSection(ctx context.Context, s Section) (Section, error)
	UpdateSection(ctx context.Context, s Section) error
	FetchSectionByID(ctx context.Context, id uint32, forUpdate bool) (Section, error)
	FetchSectionsByManualID(ctx context.Context, manualID uint32) ([]Section, error)
	DeleteSectionByID(ctx context.Context, id uint32) error

	CreatePolicy(ctx context.Context, p Policy) (Policy, error)
	UpdatePolicy(ctx context.Context, p Policy) error
	FetchPolicyByID(ctx context.Context, id uint32, forUpdate bool) (Policy, error)
	FetchPoliciesBySectionID(ctx context.Context, sectionID uint32) ([]Policy, error)
	DeletePolicyByID(ctx context.Context, id uint32) error

	CreateContent(ctx context.Context, c Content) (Content, error)
	UpdateContent(ctx context.Context, c Content) error
	FetchContentByID(ctx context.Context, id uint32, forUpdate bool) (Content, error)
	FetchContentsByPolicyID(ctx context.Context, policyID uint32) ([]Content, error)
	DeleteContentByID(ctx context.Context, id uint32) error

	CreateRead(ctx context.Context, r Read) error
	HasRead(ctx context.Context, contentID, userID uint32) (bool, error)
	DeleteRead(ctx context.Context, contentID, userID uint32) error
}

// SQLStore is the default store implementation, backed by dbr
// over either MySQL or PostgreSQL
type SQLStore struct {
	conn *dbr.Connection
}

// NewSQLStore returns a manual store with a relational database used as a backend
func NewSQLStore(conn *dbr.Connection) (Store, error) {
	if conn == nil {
		return nil, database.ErrNilConnection
	}

	return &SQLStore{conn: conn}, nil
}

func (s *SQLStore) fetchByID(ctx context.Context, table, entity string, id uint32, forUpdate bool, dest interface{}) error {
	q := fmt.Sprintf("SELECT * FROM %s WHERE id = ?", table)
	if forUpdate {
		q = database.ForUpdate(q)
	}

	err := database.Runner(ctx, s.conn).SelectBySql(q, id).LoadOneContext(ctx, dest)

	return database.Classify(err, entity, "Select")
}

// fetchByParent loads every child of a parent record, oldest first
func (s *SQLStore) fetchByParent(ctx context.Context, table, column, entity string, parentID uint32, dest interface{}) error {
	q := fmt.Sprintf("SELECT * FROM %s WHERE %s = ? ORDER BY id", table, column)

	_, err := database.Runner(ctx, s.conn).SelectBySql(q, parentID).LoadContext(ctx, dest)

	return database.Classify(err, entity, "Select")
}

func (s *SQLStore) deleteByID(ctx context.Context, table, entity string, id uint32) error {
	res, err := database.Runner(ctx, s.conn).DeleteFrom(table).Where("id = ?", id).ExecContext(ctx)
	if err != nil {
		return database.Classify(err, entity, "Delete")
	}

	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return database.Classify(dbr.ErrNotFound, entity, "Delete")
	}

	return nil
}

//---------------------------------------------------------------------------
// manuals
//---------------------------------------------------------------------------

func (s *SQLStore) CreateManual(ctx context.Context, m Manual) (_ Manual, err error) {
	if m.ID != 0 {
		return m, ErrNonZeroID
	}

	stmt := database.Runner(ctx, s.conn).
		InsertInto("manual").
		Pair("business_id", m.BusinessID).
		Pair("title", m.Title).
		Pair("published", m.Published).
		Pair("prevent_edit", m.PreventEdit).
		Pair("prevent_delete", m.PreventDelete).
		Pair("updated_by", m.UpdatedBy).
		Pair("created_at", m.CreatedAt).
		Pair("updated_at", m.UpdatedAt)

	if m.ID, err = database.InsertID(ctx, s.conn.Dialect, stmt); err != nil {
		return m, database.Classify(err, "Manual", "Insert")
	}

	return m, nil
}

func (s *SQLStore) UpdateManual(ctx context.Context, m Manual) error {
	if m.ID == 0 {
		return ErrZeroID
	}

	_, err := database.Runner(ctx, s.conn).
		Update("manual").
		Set("title", m.Title).
		Set("published", m.Published).
		Set("prevent_edit", m.PreventEdit).
		Set("prevent_delete", m.PreventDelete).
		Set("updated_by", m.UpdatedBy).
		Set("updated_at", m.UpdatedAt).
		Where("id = ?", m.ID).
		ExecContext(ctx)

	return database.Classify(err, "Manual", "Update")
}

func (s *SQLStore) FetchManualByID(ctx context.Context, id uint32, forUpdate bool) (m Manual, err error) {
	return m, s.fetchByID(ctx, "manual", "Manual", id, forUpdate, &m)
}

// FetchManuals lists the manuals of a business; a non-nil audience
// narrows it down to published manuals assigned to the audience
func (s *SQLStore) FetchManuals(ctx context.Context, businessID uint32, q Query, audience *Audience) ([]Manual, error) {
	ms := make([]Manual, 0)

	if audience.IsEmpty() {
		return ms, nil
	}

	stmt := database.Runner(ctx, s.conn).
		Select("*").
		From("manual").
		Where("business_id = ?", businessID)

	if audience != nil {
		stmt = stmt.Where("published = ?", true)

		switch {
		case len(audience.RoleIDs) == 0:
			stmt = stmt.Where("id IN (SELECT manual_id FROM manual_assignment WHERE department_id IN ?)", audience.DepartmentIDs)
		case len(audience.DepartmentIDs) == 0:
			stmt = stmt.Where("id IN (SELECT manual_id FROM manual_assignment WHERE role_id IN ?)", audience.RoleIDs)
		default:
			stmt = stmt.Where(
				"id IN (SELECT manual_id FROM manual_assignment WHERE role_id IN ? OR department_id IN ?)",
				audience.RoleIDs,
				audience.DepartmentIDs,
			)
		}
	}

	if column, ok := filterColumns[q.FilterField]; ok {
		stmt = stmt.Where(fmt.Sprintf("id IN (SELECT manual_id FROM manual_assignment WHERE %s IN ?)", column), q.FilterIDs)
	}

	if q.Search != "" {
		stmt = stmt.Where("title LIKE ?", "%"+q.Search+"%")
	}

	if q.SortField != "" {
		stmt = stmt.OrderDir(q.SortField, q.Ascending())
	} else {
		stmt = stmt.OrderDesc("created_at")
	}

	if q.Limit > 0 {
		stmt = stmt.Paginate(uint64(q.Page), uint64(q.Limit))
	}

	if _, err := stmt.LoadContext(ctx, &ms); err != nil {
		return nil, database.Classify(err, "Manual", "Select")
	}

	return ms, nil
}

func (s *SQLStore) DeleteManualByID(ctx context.Context, id uint32) error {
	return s.deleteByID(ctx, "manual", "Manual", id)
}

//---------------------------------------------------------------------------
// assignments
//---------------------------------------------------------------------------

func (s *SQLStore) CreateAssignment(ctx context.Context, a Assignment) (_ Assignment, err error) {
	if a.ID != 0 {
		return a, ErrNonZeroID
	}

	stmt := database.Runner(ctx, s.conn).
		InsertInto("manual_assignment").
		Pair("manual_id", a.ManualID).
		Pair("role_id", a.RoleID).
		Pair("department_id", a.DepartmentID).
		Pair("owner", a.Owner).
		Pair("updated_by", a.UpdatedBy).
		Pair("created_at", a.CreatedAt).
		Pair("updated_at", a.UpdatedAt)

	if a.ID, err = database.InsertID(ctx, s.conn.Dialect, stmt); err != nil {
		return a, database.Classify(err, "ManualAssignment", "Insert")
	}

	return a, nil
}

func (s *SQLStore) UpdateAssignment(ctx context.Context, a Assignment) error {
	if a.ID == 0 {
		return ErrZeroID
	}

	_, err := database.Runner(ctx, s.conn).
		Update("manual_assignment").
		Set("role_id", a.RoleID).
		Set("department_id", a.DepartmentID).
		Set("owner", a.Owner).
		Set("updated_by", a.UpdatedBy).
		Set("updated_at", a.UpdatedAt).
		Where("id = ?", a.ID).
		ExecContext(ctx)

	return database.Classify(err, "ManualAssignment", "Update")
}

func (s *SQLStore) FetchAssignmentByID(ctx context.Context, id uint32, forUpdate bool) (a Assignment, err error) {
	return a, s.fetchByID(ctx, "manual_assignment", "ManualAssignment", id, forUpdate, &a)
}

func (s *SQLStore) FetchAssignmentsByManualID(ctx context.Context, manualID uint32, forUpdate bool) ([]Assignment, error) {
	as := make([]Assignment, 0)

	q := "SELECT * FROM manual_assignment WHERE manual_id = ? ORDER BY id"
	if forUpdate {
		q = database.ForUpdate(q)
	}

	if _, err := database.Runner(ctx, s.conn).SelectBySql(q, manualID).LoadContext(ctx, &as); err != nil {
		return nil, database.Classify(err, "ManualAssignment", "Select")
	}

	return as, nil
}

func (s *SQLStore) DeleteAssignmentByID(ctx context.Context, id uint32) error {
	return s.deleteByID(ctx, "manual_assignment", "ManualAssignment", id)
}

//---------------------------------------------------------------------------
// sections
//---------------------------------------------------------------------------

func (s *SQLStore) CreateSection(ctx context.Context, sec Section) (_ Section, err error) {
	if sec.ID != 0 {
		return sec, ErrNonZeroID
	}

	stmt := database.Runner(ctx, s.conn).
		InsertInto("manual_section").
		Pair("manual_id", sec.ManualID).
		Pair("title", sec.Title).
		Pair("updated_by", sec.UpdatedBy).
		Pair("created_at", sec.CreatedAt).
		Pair("updated_at", sec.UpdatedAt)

	if sec.ID, err = database.InsertID(ctx, s.conn.Dialect, stmt); err != nil {
		return sec, database.Classify(err, "ManualSection", "Insert")
	}

	return sec, nil
}

func (s *SQLStore) UpdateSection(ctx context.Context, sec Section) error {
	if sec.ID == 0 {
		return ErrZeroID
	}

	_, err := database.Runner(ctx, s.conn).
		Update("manual_section").
		Set("title", sec.Title).
		Set("updated_by", sec.UpdatedBy).
		Set("updated_at", sec.UpdatedAt).
		Where("id = ?", sec.ID).
		ExecContext(ctx)

	return database.Classify(err, "ManualSection", "Update")
}

func (s *SQLStore) FetchSectionByID(ctx context.Context, id uint32, forUpdate bool) (sec Section, err error) {
	return sec, s.fetchByID(ctx, "manual_section", "ManualSection", id, forUpdate, &sec)
}

func (s *SQLStore) FetchSectionsByManualID(ctx context.Context, manualID uint32) ([]Section, error) {
	ss := make([]Section, 0)
	return ss, s.fetchByParent(ctx, "manual_section", "manual_id", "ManualSection", manualID, &ss)
}

func (s *SQLStore) DeleteSectionByID(ctx context.Context, id uint32) error {
	return s.deleteByID(ctx, "manual_section", "ManualSection", id)
}

//---------------------------------------------------------------------------
// policies
//---------------------------------------------------------------------------

func (s *SQLStore) CreatePolicy(ctx context.Context, p Policy) (_ Policy, err error) {
	if p.ID != 0 {
		return p, ErrNonZeroID
	}

	stmt := database.Runner(ctx, s.conn).
		InsertInto("policy").
		Pair("manual_section_id", p.SectionID).
		Pair("title", p.Title).
		Pair("updated_by", p.UpdatedBy).
		Pair("created_at", p.CreatedAt).
		Pair("updated_at", p.UpdatedAt)

	if p.ID, err = database.InsertID(ctx, s.conn.Dialect, stmt); err != nil {
		return p, database.Classify(err, "Policy", "Insert")
	}

	return p, nil
}

func (s *SQLStore) UpdatePolicy(ctx context.Context, p Policy) error {
	if p.ID == 0 {
		return ErrZeroID
	}

	_, err := database.Runner(ctx, s.conn).
		Update("policy").
		Set("title", p.Title).
		Set("updated_by", p.UpdatedBy).
		Set("updated_at", p.UpdatedAt).
		Where("id = ?", p.ID).
		ExecContext(ctx)

	return database.Classify(err, "Policy", "Update")
}

func (s *SQLStore) FetchPolicyByID(ctx context.Context, id uint32, forUpdate bool) (p Policy, err error) {
	return p, s.fetchByID(ctx, "policy", "Policy", id, forUpdate, &p)
}

func (s *SQLStore) FetchPoliciesBySectionID(ctx context.Context, sectionID uint32) ([]Policy, error) {
	ps := make([]Policy, 0)
	return ps, s.fetchByParent(ctx, "policy", "manual_section_id", "Policy", sectionID, &ps)
}

func (s *SQLStore) DeletePolicyByID(ctx context.Context, id uint32) error {
	return s.deleteByID(ctx, "policy", "Policy", id)
}

//---------------------------------------------------------------------------
// contents
//---------------------------------------------------------------------------

func (s *SQLStore) CreateContent(ctx context.Context, c Content) (_ Content, err error) {
	if c.ID != 0 {
		return c, ErrNonZeroID
	}

	stmt := database.Runner(ctx, s.conn).
		InsertInto("content").
		Pair("policy_id", c.PolicyID).
		Pair("title", c.Title).
		Pair("body", c.Body).
		Pair("updated_by", c.UpdatedBy).
		Pair("created_at", c.CreatedAt).
		Pair("updated_at", c.UpdatedAt)

	if c.ID, err = database.InsertID(ctx, s.conn.Dialect, stmt); err != nil {
		return c, database.Classify(err, "Content", "Insert")
	}

	return c, nil
}

func (s *SQLStore) UpdateContent(ctx context.Context, c Content) error {
	if c.ID == 0 {
		return ErrZeroID
	}

	_, err := database.Runner(ctx, s.conn).
		Update("content").
		Set("title", c.Title).
		Set("body", c.Body).
		Set("updated_by", c.UpdatedBy).
		Set("updated_at", c.UpdatedAt).
		Where("id = ?", c.ID).
		ExecContext(ctx)

	return database.Classify(err, "Content", "Update")
}

func (s *SQLStore) FetchContentByID(ctx context.Context, id uint32, forUpdate bool) (c Content, err error) {
	return c, s.fetchByID(ctx, "content", "Content", id, forUpdate, &c)
}

func (s *SQLStore) FetchContentsByPolicyID(ctx context.Context, policyID uint32) ([]Content, error) {
	cs := make([]Content, 0)
	return cs, s.fetchByParent(ctx, "content", "policy_id", "Content", policyID, &cs)
}

func (s *SQLStore) DeleteContentByID(ctx context.Context, id uint32) error {
	return s.deleteByID(ctx, "content", "Content", id)
}

//---------------------------------------------------------------------------
// read receipts
//---------------------------------------------------------------------------

func (s *SQLStore) CreateRead(ctx context.Context, r Read) error {
	_, err := database.Runner(ctx, s.conn).
		InsertInto("content_read").
		Pair("content_id", r.ContentID).
		Pair("user_id", r.UserID).
		Pair("created_at", r.CreatedAt).
		ExecContext(ctx)

	return database.Classify(err, "ContentRead", "Insert")
}

func (s *SQLStore) HasRead(ctx context.Context, contentID, userID uint32) (bool, error) {
	var count int

	err := database.Runner(ctx, s.conn).
		SelectBySql("SELECT COUNT(*) FROM content_read WHERE content_id = ? AND user_id = ?", contentID, userID).
		LoadOneContext(ctx, &count)

	if err != nil {
		return false, database.Classify(err, "ContentRead", "Select")
	}

	return count > 0, nil
}

func (s *SQLStore) DeleteRead(ctx context.Context, contentID, userID uint32) error {
	res, err := database.Runner(ctx, s.conn).
		DeleteFrom("content_read").
		Where("content_id = ? AND user_id = ?", contentID, userID).
		ExecContext(ctx)

	if err != nil {
		return database.Classify(err, "ContentRead", "Delete")
	}

	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return database.Classify(dbr.ErrNotFound, "ContentRead", "Delete")
	}

	return nil
}
