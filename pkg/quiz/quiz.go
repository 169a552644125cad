package quiz

import (
	"strings"
	"time"

	"github.com/agubarev/handbook/pkg/database"
	"github.com/asaskevich/govalidator"
	"github.com/pkg/errors"
)

// errors
var (
	ErrNilStore         = errors.New("quiz store is nil")
	ErrNilTransactor    = errors.New("transactor is nil")
	ErrNilEngine        = errors.New("lock engine is nil")
	ErrNilRoleManager   = errors.New("role manager is nil")
	ErrNilManualManager = errors.New("manual manager is nil")
	ErrZeroID           = errors.New("id is zero")
	ErrNonZeroID        = errors.New("id is not zero")
	ErrEmptyTitle       = errors.New("title is empty")
	ErrZeroAttempts     = errors.New("max attempts must be at least 1")
	ErrInvalidType      = errors.New("invalid question type")
)

// QuestionType designates how a question is answered
type QuestionType string

// question types
const (
	MultipleChoice QuestionType = "multiple choice"
	SingleChoice   QuestionType = "single choice"
)

// Validate question type
func (t QuestionType) Validate() error {
	switch t {
	case MultipleChoice, SingleChoice:
		return nil
	}

	return errors.Wrapf(ErrInvalidType, "%q", string(t))
}

// Quiz belongs to a manual and is the lock root of its sections,
// questions and answers
type Quiz struct {
	ID            uint32 `db:"id" json:"id" diff:"-"`
	ManualID      uint32 `db:"manual_id" json:"manual_id" diff:"manual_id"`
	Title         string `db:"title" json:"title" diff:"title" valid:"required,stringlength(1|255)"`
	MaxAttempts   uint32 `db:"max_attempts" json:"max_attempts" diff:"max_attempts"`
	Published     bool   `db:"published" json:"published" diff:"published"`
	PreventEdit   bool   `db:"prevent_edit" json:"prevent_edit" diff:"prevent_edit"`
	PreventDelete bool   `db:"prevent_delete" json:"prevent_delete" diff:"prevent_delete"`

	database.Audit `diff:"-"`
}

// Validate quiz
func (q Quiz) Validate() error {
	if q.ManualID == 0 {
		return errors.Wrap(ErrZeroID, "manual id")
	}

	if strings.TrimSpace(q.Title) == "" {
		return ErrEmptyTitle
	}

	if q.MaxAttempts == 0 {
		return ErrZeroAttempts
	}

	_, err := govalidator.ValidateStruct(q)

	return err
}

// Section groups questions of a quiz
type Section struct {
	ID     uint32 `db:"id" json:"id" diff:"-"`
	QuizID uint32 `db:"quiz_id" json:"quiz_id" diff:"quiz_id"`
	Title  string `db:"title" json:"title" diff:"title" valid:"required,stringlength(1|255)"`

	database.Audit `diff:"-"`
}

// Validate section
func (s Section) Validate() error {
	if s.QuizID == 0 {
		return errors.Wrap(ErrZeroID, "quiz id")
	}

	if strings.TrimSpace(s.Title) == "" {
		return ErrEmptyTitle
	}

	_, err := govalidator.ValidateStruct(s)

	return err
}

// Question belongs to a quiz section
type Question struct {
	ID        uint32       `db:"id" json:"id" diff:"-"`
	SectionID uint32       `db:"quiz_section_id" json:"quiz_section_id" diff:"quiz_section_id"`
	Question  string       `db:"question" json:"question" diff:"question"`
	Type      QuestionType `db:"question_type" json:"question_type" diff:"question_type"`

	database.Audit `diff:"-"`
}

// Validate question
func (q Question) Validate() error {
	if q.SectionID == 0 {
		return errors.Wrap(ErrZeroID, "section id")
	}

	if strings.TrimSpace(q.Question) == "" {
		return errors.New("question is empty")
	}

	return q.Type.Validate()
}

// Answer is a possible answer to a question
type Answer struct {
	ID         uint32 `db:"id" json:"id" diff:"-"`
	QuestionID uint32 `db:"quiz_question_id" json:"quiz_question_id" diff:"quiz_question_id"`
	Answer     string `db:"answer" json:"answer" diff:"answer"`
	Correct    bool   `db:"correct" json:"correct" diff:"correct"`

	database.Audit `diff:"-"`
}

// Validate answer
func (a Answer) Validate() error {
	if a.QuestionID == 0 {
		return errors.Wrap(ErrZeroID, "question id")
	}

	if strings.TrimSpace(a.Answer) == "" {
		return errors.New("answer is empty")
	}

	return nil
}

// Attempt is a single take of a quiz by a user; it is in progress
// while both of its timestamps are equal and completed afterwards
type Attempt struct {
	ID        uint32    `db:"id" json:"id" diff:"-"`
	UserID    uint32    `db:"user_id" json:"user_id" diff:"user_id"`
	QuizID    uint32    `db:"quiz_id" json:"quiz_id" diff:"quiz_id"`
	CreatedAt time.Time `db:"created_at" json:"created_at" diff:"-"`
	UpdatedAt time.Time `db:"updated_at" json:"updated_at" diff:"-"`
}

// IsCompleted reports whether the attempt has been completed
func (a Attempt) IsCompleted() bool {
	return !a.UpdatedAt.Equal(a.CreatedAt)
}

// completionTime returns the completion timestamp of an attempt,
// which always differs from its creation time
func (a Attempt) completionTime(now time.Time) time.Time {
	if !now.After(a.CreatedAt) {
		return a.CreatedAt.Add(time.Second)
	}

	return now
}

// Result is an answer given to a question within an attempt
// NOTE: it is written once and never updated
type Result struct {
	ID         uint32    `db:"id" json:"id"`
	AttemptID  uint32    `db:"quiz_attempt_id" json:"quiz_attempt_id"`
	QuestionID uint32    `db:"quiz_question_id" json:"quiz_question_id"`
	AnswerID   uint32    `db:"quiz_answer_id" json:"quiz_answer_id"`
	UpdatedBy  uint32    `db:"updated_by" json:"updated_by"`
	CreatedAt  time.Time `db:"created_at" json:"created_at"`
}
