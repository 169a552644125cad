package quiz

import (
	"context"
	"fmt"

	"github.com/agubarev/handbook/pkg/database"
	"github.com/gocraft/dbr/v2"
)

// Store represents a quiz storage backend
// NOTE: forUpdate row-locks the fetched record until the
// carried transaction ends
type Store interface {
	CreateQuiz(ctx context.Context, q Quiz) (Quiz, error)
	UpdateQuiz(ctx context.Context, q Quiz) error
	FetchQuizByID(ctx context.Context, id uint32, forUpdate bool) (Quiz, error)
	FetchQuizzesByManualID(ctx context.Context, manualID uint32) ([]Quiz, error)
	DeleteQuizByID(ctx context.Context, id uint32) error

	CreateSection(ctx context.Context, s Section) (Section, error)
	UpdateSection(ctx context.Context, s Section) error
	FetchSectionByID(ctx context.Context, id uint32, forUpdate bool) (Section, error)
	FetchSectionsByQuizID(ctx context.Context, quizID uint32) ([]Section, error)
	DeleteSectionByID(ctx context.Context, id uint32) error

	CreateQuestion(ctx context.Context, q Question) (Question, error)
	UpdateQuestion(ctx context.Context, q Question) error
	FetchQuestionByID(ctx context.Context, id uint32, forUpdate bool) (Question, error)
	FetchQuestionsBySectionID(ctx context.Context, sectionID uint32) ([]Question, error)
	DeleteQuestionByID(ctx context.Context, id uint32) error

	CreateAnswer(ctx context.Context, a Answer) (Answer, error)
	UpdateAnswer(ctx context.Context, a Answer) error
	FetchAnswerByID(ctx context.Context, id uint32, forUpdate bool) (Answer, error)
	FetchAnswersByQuestionID(ctx context.Context, questionID uint32) ([]Answer, error)
	DeleteAnswerByID(ctx context.Context, id uint32) error

	CreateAttempt(ctx context.Context, a Attempt) (Attempt, error)
	UpdateAttempt(ctx context.Context, a Attempt) error
	FetchAttemptByID(ctx context.Context, id uint32, forUpdate bool) (Attempt, error)
	FetchAttempts(ctx context.Context, quizID, userID uint32) ([]Attempt, error)
	FetchAttemptsByQuizID(ctx context.Context, quizID uint32) ([]Attempt, error)
	CountAttempts(ctx context.Context, quizID, userID uint32) (uint32, error)

	CreateResult(ctx context.Context, r Result) (Result, error)
	FetchResultsByAttemptID(ctx context.Context, attemptID uint32) ([]Result, error)
}

// SQLStore is the default store implementation, backed by dbr
// over either MySQL or PostgreSQL
type SQLStore struct {
	conn *dbr.Connection
}

// NewSQLStore returns a quiz store with a relational database used as a backend
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
// quizzes
//---------------------------------------------------------------------------

func (s *SQLStore) CreateQuiz(ctx context.Context, q Quiz) (_ Quiz, err error) {
	if q.ID != 0 {
		return q, ErrNonZeroID
	}

	stmt := database.Runner(ctx, s.conn).
		InsertInto("quiz").
		Pair("manual_id", q.ManualID).
		Pair("title", q.Title).
		Pair("max_attempts", q.MaxAttempts).
		Pair("published", q.Published).
		Pair("prevent_edit", q.PreventEdit).
		Pair("prevent_delete", q.PreventDelete).
		Pair("updated_by", q.UpdatedBy).
		Pair("created_at", q.CreatedAt).
		Pair("updated_at", q.UpdatedAt)

	if q.ID, err = database.InsertID(ctx, s.conn.Dialect, stmt); err != nil {
		return q, database.Classify(err, "Quiz", "Insert")
	}

	return q, nil
}

func (s *SQLStore) UpdateQuiz(ctx context.Context, q Quiz) error {
	if q.ID == 0 {
		return ErrZeroID
	}

	_, err := database.Runner(ctx, s.conn).
		Update("quiz").
		Set("title", q.Title).
		Set("max_attempts", q.MaxAttempts).
		Set("published", q.Published).
		Set("prevent_edit", q.PreventEdit).
		Set("prevent_delete", q.PreventDelete).
		Set("updated_by", q.UpdatedBy).
		Set("updated_at", q.UpdatedAt).
		Where("id = ?", q.ID).
		ExecContext(ctx)

	return database.Classify(err, "Quiz", "Update")
}

func (s *SQLStore) FetchQuizByID(ctx context.Context, id uint32, forUpdate bool) (q Quiz, err error) {
	return q, s.fetchByID(ctx, "quiz", "Quiz", id, forUpdate, &q)
}

func (s *SQLStore) FetchQuizzesByManualID(ctx context.Context, manualID uint32) ([]Quiz, error) {
	qs := make([]Quiz, 0)

	_, err := database.Runner(ctx, s.conn).
		SelectBySql("SELECT * FROM quiz WHERE manual_id = ? ORDER BY id", manualID).
		LoadContext(ctx, &qs)

	if err != nil {
		return nil, database.Classify(err, "Quiz", "Select")
	}

	return qs, nil
}

func (s *SQLStore) DeleteQuizByID(ctx context.Context, id uint32) error {
	return s.deleteByID(ctx, "quiz", "Quiz", id)
}

//---------------------------------------------------------------------------
// sections
//---------------------------------------------------------------------------

func (s *SQLStore) CreateSection(ctx context.Context, sec Section) (_ Section, err error) {
	if sec.ID != 0 {
		return sec, ErrNonZeroID
	}

	stmt := database.Runner(ctx, s.conn).
		InsertInto("quiz_section").
		Pair("quiz_id", sec.QuizID).
		Pair("title", sec.Title).
		Pair("updated_by", sec.UpdatedBy).
		Pair("created_at", sec.CreatedAt).
		Pair("updated_at", sec.UpdatedAt)

	if sec.ID, err = database.InsertID(ctx, s.conn.Dialect, stmt); err != nil {
		return sec, database.Classify(err, "QuizSection", "Insert")
	}

	return sec, nil
}

func (s *SQLStore) UpdateSection(ctx context.Context, sec Section) error {
	if sec.ID == 0 {
		return ErrZeroID
	}

	_, err := database.Runner(ctx, s.conn).
		Update("quiz_section").
		Set("title", sec.Title).
		Set("updated_by", sec.UpdatedBy).
		Set("updated_at", sec.UpdatedAt).
		Where("id = ?", sec.ID).
		ExecContext(ctx)

	return database.Classify(err, "QuizSection", "Update")
}

func (s *SQLStore) FetchSectionByID(ctx context.Context, id uint32, forUpdate bool) (sec Section, err error) {
	return sec, s.fetchByID(ctx, "quiz_section", "QuizSection", id, forUpdate, &sec)
}

func (s *SQLStore) FetchSectionsByQuizID(ctx context.Context, quizID uint32) ([]Section, error) {
	ss := make([]Section, 0)
	return ss, s.fetchByParent(ctx, "quiz_section", "quiz_id", "QuizSection", quizID, &ss)
}

func (s *SQLStore) DeleteSectionByID(ctx context.Context, id uint32) error {
	return s.deleteByID(ctx, "quiz_section", "QuizSection", id)
}

//---------------------------------------------------------------------------
// questions
//---------------------------------------------------------------------------

func (s *SQLStore) CreateQuestion(ctx context.Context, q Question) (_ Question, err error) {
	if q.ID != 0 {
		return q, ErrNonZeroID
	}

	stmt := database.Runner(ctx, s.conn).
		InsertInto("quiz_question").
		Pair("quiz_section_id", q.SectionID).
		Pair("question", q.Question).
		Pair("question_type", q.Type).
		Pair("updated_by", q.UpdatedBy).
		Pair("created_at", q.CreatedAt).
		Pair("updated_at", q.UpdatedAt)

	if q.ID, err = database.InsertID(ctx, s.conn.Dialect, stmt); err != nil {
		return q, database.Classify(err, "Question", "Insert")
	}

	return q, nil
}

func (s *SQLStore) UpdateQuestion(ctx context.Context, q Question) error {
	if q.ID == 0 {
		return ErrZeroID
	}

	_, err := database.Runner(ctx, s.conn).
		Update("quiz_question").
		Set("question", q.Question).
		Set("question_type", q.Type).
		Set("updated_by", q.UpdatedBy).
		Set("updated_at", q.UpdatedAt).
		Where("id = ?", q.ID).
		ExecContext(ctx)

	return database.Classify(err, "Question", "Update")
}

func (s *SQLStore) FetchQuestionByID(ctx context.Context, id uint32, forUpdate bool) (q Question, err error) {
	return q, s.fetchByID(ctx, "quiz_question", "Question", id, forUpdate, &q)
}

func (s *SQLStore) FetchQuestionsBySectionID(ctx context.Context, sectionID uint32) ([]Question, error) {
	qs := make([]Question, 0)
	return qs, s.fetchByParent(ctx, "quiz_question", "quiz_section_id", "QuizQuestion", sectionID, &qs)
}

func (s *SQLStore) DeleteQuestionByID(ctx context.Context, id uint32) error {
	return s.deleteByID(ctx, "quiz_question", "Question", id)
}

//---------------------------------------------------------------------------
// answers
//---------------------------------------------------------------------------

func (s *SQLStore) CreateAnswer(ctx context.Context, a Answer) (_ Answer, err error) {
	if a.ID != 0 {
		return a, ErrNonZeroID
	}

	stmt := database.Runner(ctx, s.conn).
		InsertInto("quiz_answer").
		Pair("quiz_question_id", a.QuestionID).
		Pair("answer", a.Answer).
		Pair("correct", a.Correct).
		Pair("updated_by", a.UpdatedBy).
		Pair("created_at", a.CreatedAt).
		Pair("updated_at", a.UpdatedAt)

	if a.ID, err = database.InsertID(ctx, s.conn.Dialect, stmt); err != nil {
		return a, database.Classify(err, "QuizAnswer", "Insert")
	}

	return a, nil
}

func (s *SQLStore) UpdateAnswer(ctx context.Context, a Answer) error {
	if a.ID == 0 {
		return ErrZeroID
	}

	_, err := database.Runner(ctx, s.conn).
		Update("quiz_answer").
		Set("answer", a.Answer).
		Set("correct", a.Correct).
		Set("updated_by", a.UpdatedBy).
		Set("updated_at", a.UpdatedAt).
		Where("id = ?", a.ID).
		ExecContext(ctx)

	return database.Classify(err, "QuizAnswer", "Update")
}

func (s *SQLStore) FetchAnswerByID(ctx context.Context, id uint32, forUpdate bool) (a Answer, err error) {
	return a, s.fetchByID(ctx, "quiz_answer", "QuizAnswer", id, forUpdate, &a)
}

func (s *SQLStore) FetchAnswersByQuestionID(ctx context.Context, questionID uint32) ([]Answer, error) {
	as := make([]Answer, 0)
	return as, s.fetchByParent(ctx, "quiz_answer", "quiz_question_id", "QuizAnswer", questionID, &as)
}

func (s *SQLStore) DeleteAnswerByID(ctx context.Context, id uint32) error {
	return s.deleteByID(ctx, "quiz_answer", "QuizAnswer", id)
}

//---------------------------------------------------------------------------
// attempts
//---------------------------------------------------------------------------

func (s *SQLStore) CreateAttempt(ctx context.Context, a Attempt) (_ Attempt, err error) {
	if a.ID != 0 {
		return a, ErrNonZeroID
	}

	stmt := database.Runner(ctx, s.conn).
		InsertInto("quiz_attempt").
		Pair("user_id", a.UserID).
		Pair("quiz_id", a.QuizID).
		Pair("created_at", a.CreatedAt).
		Pair("updated_at", a.UpdatedAt)

	if a.ID, err = database.InsertID(ctx, s.conn.Dialect, stmt); err != nil {
		return a, database.Classify(err, "QuizAttempt", "Insert")
	}

	return a, nil
}

// UpdateAttempt only ever moves the completion timestamp
func (s *SQLStore) UpdateAttempt(ctx context.Context, a Attempt) error {
	if a.ID == 0 {
		return ErrZeroID
	}

	_, err := database.Runner(ctx, s.conn).
		Update("quiz_attempt").
		Set("updated_at", a.UpdatedAt).
		Where("id = ?", a.ID).
		ExecContext(ctx)

	return database.Classify(err, "QuizAttempt", "Update")
}

func (s *SQLStore) FetchAttemptByID(ctx context.Context, id uint32, forUpdate bool) (a Attempt, err error) {
	return a, s.fetchByID(ctx, "quiz_attempt", "QuizAttempt", id, forUpdate, &a)
}

func (s *SQLStore) FetchAttempts(ctx context.Context, quizID, userID uint32) ([]Attempt, error) {
	as := make([]Attempt, 0)

	_, err := database.Runner(ctx, s.conn).
		SelectBySql("SELECT * FROM quiz_attempt WHERE quiz_id = ? AND user_id = ? ORDER BY id", quizID, userID).
		LoadContext(ctx, &as)

	if err != nil {
		return nil, database.Classify(err, "QuizAttempt", "Select")
	}

	return as, nil
}

func (s *SQLStore) FetchAttemptsByQuizID(ctx context.Context, quizID uint32) ([]Attempt, error) {
	as := make([]Attempt, 0)
	return as, s.fetchByParent(ctx, "quiz_attempt", "quiz_id", "QuizAttempt", quizID, &as)
}

func (s *SQLStore) CountAttempts(ctx context.Context, quizID, userID uint32) (uint32, error) {
	var count uint32

	err := database.Runner(ctx, s.conn).
		SelectBySql("SELECT COUNT(*) FROM quiz_attempt WHERE quiz_id = ? AND user_id = ?", quizID, userID).
		LoadOneContext(ctx, &count)

	if err != nil {
		return 0, database.Classify(err, "QuizAttempt", "Select")
	}

	return count, nil
}

//---------------------------------------------------------------------------
// results
//---------------------------------------------------------------------------

func (s *SQLStore) CreateResult(ctx context.Context, r Result) (_ Result, err error) {
	if r.ID != 0 {
		return r, ErrNonZeroID
	}

	stmt := database.Runner(ctx, s.conn).
		InsertInto("quiz_result").
		Pair("quiz_attempt_id", r.AttemptID).
		Pair("quiz_question_id", r.QuestionID).
		Pair("quiz_answer_id", r.AnswerID).
		Pair("updated_by", r.UpdatedBy).
		Pair("created_at", r.CreatedAt)

	if r.ID, err = database.InsertID(ctx, s.conn.Dialect, stmt); err != nil {
		return r, database.Classify(err, "QuizResult", "Insert")
	}

	return r, nil
}

func (s *SQLStore) FetchResultsByAttemptID(ctx context.Context, attemptID uint32) ([]Result, error) {
	rs := make([]Result, 0)

	_, err := database.Runner(ctx, s.conn).
		SelectBySql("SELECT * FROM quiz_result WHERE quiz_attempt_id = ? ORDER BY id", attemptID).
		LoadContext(ctx, &rs)

	if err != nil {
		return nil, database.Classify(err, "QuizResult", "Select")
	}

	return rs, nil
}
