package quiz

import (
	"context"
	"fmt"

	"github.com/agubarev/handbook/pkg/database"
	"github.com/agubarev/handbook/pkg/fault"
	"github.com/agubarev/handbook/pkg/lock"
	"github.com/agubarev/handbook/pkg/manual"
	"github.com/agubarev/handbook/pkg/role"
	"github.com/agubarev/handbook/pkg/util"
	"github.com/pkg/errors"
	"go.uber.org/zap"
)

// levels allowed to author quizzes
var editors = []role.Access{role.AccessAdmin, role.AccessManager}

// AttemptObserver is notified whenever an attempt is started or completed
type AttemptObserver interface {
	ObserveAttempt(completed bool)
}

// Manager manages quizzes along with their attempts and results;
// every mutation of a quiz tree goes through the lock engine
type Manager struct {
	store    Store
	tx       database.Transactor
	locks    *lock.Engine
	resolver *role.Resolver
	manuals  *manual.Manager
	observer AttemptObserver
	logger   *zap.Logger
}

// NewManager initializes a quiz manager and registers the
// quiz lock tree with the engine
func NewManager(s Store, tx database.Transactor, locks *lock.Engine, roles *role.Manager, manuals *manual.Manager) (*Manager, error) {
	if s == nil {
		return nil, ErrNilStore
	}

	if tx == nil {
		return nil, ErrNilTransactor
	}

	if locks == nil {
		return nil, ErrNilEngine
	}

	if roles == nil {
		return nil, ErrNilRoleManager
	}

	if manuals == nil {
		return nil, ErrNilManualManager
	}

	m := &Manager{
		store:    s,
		tx:       tx,
		locks:    locks,
		resolver: roles.Resolver(),
		manuals:  manuals,
	}

	if err := m.registerLocks(); err != nil {
		return nil, errors.Wrap(err, "failed to register lock resolvers")
	}

	return m, nil
}

func (m *Manager) registerLocks() error {
	err := m.locks.RegisterRoot(lock.KQuiz, func(ctx context.Context, id uint32) (lock.Flags, error) {
		q, err := m.store.FetchQuizByID(ctx, id, true)
		return lock.Flags{PreventEdit: q.PreventEdit, PreventDelete: q.PreventDelete}, err
	})

	if err != nil {
		return err
	}

	err = m.locks.RegisterParent(lock.KQuizSection, func(ctx context.Context, id uint32) (lock.Ref, error) {
		s, err := m.store.FetchSectionByID(ctx, id, false)
		return lock.Ref{Kind: lock.KQuiz, ID: s.QuizID}, err
	})

	if err != nil {
		return err
	}

	err = m.locks.RegisterParent(lock.KQuestion, func(ctx context.Context, id uint32) (lock.Ref, error) {
		q, err := m.store.FetchQuestionByID(ctx, id, false)
		return lock.Ref{Kind: lock.KQuizSection, ID: q.SectionID}, err
	})

	if err != nil {
		return err
	}

	return m.locks.RegisterParent(lock.KAnswer, func(ctx context.Context, id uint32) (lock.Ref, error) {
		a, err := m.store.FetchAnswerByID(ctx, id, false)
		return lock.Ref{Kind: lock.KQuestion, ID: a.QuestionID}, err
	})
}

// SetLogger assigns a logger for this manager
func (m *Manager) SetLogger(logger *zap.Logger) error {
	if logger != nil {
		logger = logger.Named("[quiz]")
	}

	m.logger = logger

	return nil
}

// Logger returns primary logger if is set, otherwise initializing and returning
func (m *Manager) Logger() *zap.Logger {
	if m.logger == nil {
		l, err := zap.NewDevelopment()
		if err != nil {
			panic(fmt.Errorf("failed to initialize quiz manager logger: %s", err))
		}

		m.logger = l
	}

	return m.logger
}

// SetObserver assigns an attempt observer
func (m *Manager) SetObserver(o AttemptObserver) {
	m.observer = o
}

// Store returns store if set
func (m *Manager) Store() (Store, error) {
	if m.store == nil {
		return nil, ErrNilStore
	}

	return m.store, nil
}

func (m *Manager) authorizeEdit(ctx context.Context, actor role.Actor, entity, op string) error {
	return m.resolver.Authorize(ctx, actor, entity, op, editors, role.GlobalCRUDResources, role.DepartmentCRUDResources)
}

// privileged reports whether the actor sees unpublished quizzes
func (m *Manager) privileged(ctx context.Context, actor role.Actor) (bool, error) {
	access, err := m.resolver.EffectiveAccess(ctx, actor.BusinessID, actor.UserID)
	if err != nil {
		return false, err
	}

	return access == role.AccessAdmin || access == role.AccessManager, nil
}

// quizOf returns a quiz of the actor's business along with its manual
// NOTE: a foreign quiz is reported as not found
func (m *Manager) quizOf(ctx context.Context, actor role.Actor, id uint32, forUpdate bool) (Quiz, manual.Manual, error) {
	q, err := m.store.FetchQuizByID(ctx, id, forUpdate)
	if err != nil {
		return q, manual.Manual{}, err
	}

	man, err := m.manuals.BusinessManual(ctx, actor, q.ManualID)
	if err != nil {
		if fault.Is(err, fault.KNotFound) {
			return Quiz{}, man, fault.NotFound("Quiz")
		}

		return Quiz{}, man, err
	}

	return q, man, nil
}

func (m *Manager) sectionOf(ctx context.Context, actor role.Actor, id uint32, forUpdate bool) (Section, error) {
	s, err := m.store.FetchSectionByID(ctx, id, forUpdate)
	if err != nil {
		return s, err
	}

	if _, _, err = m.quizOf(ctx, actor, s.QuizID, false); err != nil {
		return Section{}, fault.NotFound("QuizSection")
	}

	return s, nil
}

func (m *Manager) questionOf(ctx context.Context, actor role.Actor, id uint32, forUpdate bool) (Question, Section, error) {
	q, err := m.store.FetchQuestionByID(ctx, id, forUpdate)
	if err != nil {
		return q, Section{}, err
	}

	s, err := m.sectionOf(ctx, actor, q.SectionID, false)
	if err != nil {
		return Question{}, s, fault.NotFound("Question")
	}

	return q, s, nil
}

func (m *Manager) answerOf(ctx context.Context, actor role.Actor, id uint32, forUpdate bool) (Answer, error) {
	a, err := m.store.FetchAnswerByID(ctx, id, forUpdate)
	if err != nil {
		return a, err
	}

	if _, _, err = m.questionOf(ctx, actor, a.QuestionID, false); err != nil {
		return Answer{}, fault.NotFound("QuizAnswer")
	}

	return a, nil
}

//---------------------------------------------------------------------------
// quizzes
//---------------------------------------------------------------------------

// CreateQuiz creates a quiz under a manual of the actor's business
func (m *Manager) CreateQuiz(ctx context.Context, actor role.Actor, manualID uint32, q Quiz) (Quiz, error) {
	q.ID = 0
	q.ManualID = manualID
	q.Created(actor.UserID)

	if q.MaxAttempts == 0 {
		q.MaxAttempts = 1
	}

	if err := q.Validate(); err != nil {
		return q, fault.Invariant("Quiz", "Insert", err.Error())
	}

	err := m.tx.WithTx(ctx, func(ctx context.Context) (err error) {
		if err = m.authorizeEdit(ctx, actor, "Quiz", "Insert"); err != nil {
			return err
		}

		if _, err = m.manuals.BusinessManual(ctx, actor, manualID); err != nil {
			return err
		}

		if err = m.locks.CheckInsert(ctx, lock.KQuiz, lock.Ref{}); err != nil {
			return err
		}

		q, err = m.store.CreateQuiz(ctx, q)

		return err
	})

	if err != nil {
		return q, err
	}

	m.Logger().Debug("created quiz", zap.Uint32("id", q.ID), zap.Uint32("manual_id", manualID))

	return q, nil
}

// UpdateQuiz updates an existing quiz
// NOTE: an update releasing the edit lock is allowed while locked
func (m *Manager) UpdateQuiz(ctx context.Context, actor role.Actor, id uint32, fn func(ctx context.Context, q Quiz) (Quiz, error)) (q Quiz, err error) {
	err = m.tx.WithTx(ctx, func(ctx context.Context) error {
		if err = m.authorizeEdit(ctx, actor, "Quiz", "Update"); err != nil {
			return err
		}

		current, _, err := m.quizOf(ctx, actor, id, true)
		if err != nil {
			return err
		}

		updated, err := fn(ctx, current)
		if err != nil {
			return err
		}

		updated.ID = current.ID
		updated.Retain(current.Audit)

		changelog, err := util.ProtectedChangelog(map[string]bool{
			"title":          true,
			"max_attempts":   true,
			"published":      true,
			"prevent_edit":   true,
			"prevent_delete": true,
		}, current, updated)

		if err != nil {
			return fault.Invariant("Quiz", "Update", err.Error())
		}

		if len(changelog) == 0 {
			q = current
			return nil
		}

		next := lock.Flags{PreventEdit: updated.PreventEdit, PreventDelete: updated.PreventDelete}
		if err = m.locks.CheckUpdate(ctx, lock.Ref{Kind: lock.KQuiz, ID: id}, next); err != nil {
			return err
		}

		if err = updated.Validate(); err != nil {
			return fault.Invariant("Quiz", "Update", err.Error())
		}

		updated.Touched(actor.UserID)
		if err = m.store.UpdateQuiz(ctx, updated); err != nil {
			return err
		}

		m.Logger().Debug("updated quiz", zap.Uint32("id", id), util.DumpChangelog(changelog))
		q = updated

		return nil
	})

	return q, err
}

// DeleteQuiz deletes a quiz along with its tree, attempts and results
func (m *Manager) DeleteQuiz(ctx context.Context, actor role.Actor, id uint32) error {
	return m.tx.WithTx(ctx, func(ctx context.Context) error {
		if err := m.authorizeEdit(ctx, actor, "Quiz", "Delete"); err != nil {
			return err
		}

		if _, _, err := m.quizOf(ctx, actor, id, true); err != nil {
			return err
		}

		if err := m.locks.CheckDelete(ctx, lock.Ref{Kind: lock.KQuiz, ID: id}); err != nil {
			return err
		}

		if err := m.store.DeleteQuizByID(ctx, id); err != nil {
			return err
		}

		m.Logger().Debug("deleted quiz", zap.Uint32("id", id))

		return nil
	})
}

// QuizByID returns a quiz the actor can see; unpublished quizzes
// are seen only by admins and managers
func (m *Manager) QuizByID(ctx context.Context, actor role.Actor, id uint32) (Quiz, error) {
	q, _, err := m.quizOf(ctx, actor, id, false)
	if err != nil {
		return q, err
	}

	privileged, err := m.privileged(ctx, actor)
	if err != nil {
		return Quiz{}, err
	}

	if privileged {
		return q, nil
	}

	visible, err := m.manuals.IsVisible(ctx, actor, q.ManualID)
	if err != nil {
		return Quiz{}, err
	}

	if !q.Published || !visible {
		return Quiz{}, fault.NotFound("Quiz")
	}

	return q, nil
}

// QuizzesByManual lists the quizzes of a manual the actor can see
func (m *Manager) QuizzesByManual(ctx context.Context, actor role.Actor, manualID uint32) ([]Quiz, error) {
	if _, err := m.manuals.ManualByID(ctx, actor, manualID); err != nil {
		return nil, err
	}

	qs, err := m.store.FetchQuizzesByManualID(ctx, manualID)
	if err != nil {
		return nil, err
	}

	privileged, err := m.privileged(ctx, actor)
	if err != nil || privileged {
		return qs, err
	}

	published := qs[:0]
	for _, q := range qs {
		if q.Published {
			published = append(published, q)
		}
	}

	return published, nil
}

//---------------------------------------------------------------------------
// sections
//---------------------------------------------------------------------------

// Sections lists the sections of a quiz the actor can see
func (m *Manager) Sections(ctx context.Context, actor role.Actor, quizID uint32) ([]Section, error) {
	if _, err := m.QuizByID(ctx, actor, quizID); err != nil {
		return nil, err
	}

	return m.store.FetchSectionsByQuizID(ctx, quizID)
}

// CreateSection adds a section to a quiz
func (m *Manager) CreateSection(ctx context.Context, actor role.Actor, quizID uint32, s Section) (Section, error) {
	s.ID = 0
	s.QuizID = quizID
	s.Created(actor.UserID)

	if err := s.Validate(); err != nil {
		return s, fault.Invariant("QuizSection", "Insert", err.Error())
	}

	err := m.tx.WithTx(ctx, func(ctx context.Context) (err error) {
		if err = m.authorizeEdit(ctx, actor, "QuizSection", "Insert"); err != nil {
			return err
		}

		if _, _, err = m.quizOf(ctx, actor, quizID, false); err != nil {
			return err
		}

		if err = m.locks.CheckInsert(ctx, lock.KQuizSection, lock.Ref{Kind: lock.KQuiz, ID: quizID}); err != nil {
			return err
		}

		s, err = m.store.CreateSection(ctx, s)

		return err
	})

	if err != nil {
		return s, err
	}

	m.Logger().Debug("created section", zap.Uint32("id", s.ID), zap.Uint32("quiz_id", quizID))

	return s, nil
}

// UpdateSection updates a section while its quiz is not locked
func (m *Manager) UpdateSection(ctx context.Context, actor role.Actor, id uint32, fn func(ctx context.Context, s Section) (Section, error)) (s Section, err error) {
	err = m.tx.WithTx(ctx, func(ctx context.Context) error {
		if err = m.authorizeEdit(ctx, actor, "QuizSection", "Update"); err != nil {
			return err
		}

		current, err := m.sectionOf(ctx, actor, id, true)
		if err != nil {
			return err
		}

		updated, err := fn(ctx, current)
		if err != nil {
			return err
		}

		updated.ID = current.ID
		updated.Retain(current.Audit)

		changelog, err := util.ProtectedChangelog(map[string]bool{"title": true}, current, updated)
		if err != nil {
			return fault.Invariant("QuizSection", "Update", err.Error())
		}

		if len(changelog) == 0 {
			s = current
			return nil
		}

		if err = m.locks.CheckUpdate(ctx, lock.Ref{Kind: lock.KQuizSection, ID: id}, lock.Flags{}); err != nil {
			return err
		}

		if err = updated.Validate(); err != nil {
			return fault.Invariant("QuizSection", "Update", err.Error())
		}

		updated.Touched(actor.UserID)
		if err = m.store.UpdateSection(ctx, updated); err != nil {
			return err
		}

		s = updated

		return nil
	})

	return s, err
}

// DeleteSection deletes a section along with its questions
func (m *Manager) DeleteSection(ctx context.Context, actor role.Actor, id uint32) error {
	return m.tx.WithTx(ctx, func(ctx context.Context) error {
		if err := m.authorizeEdit(ctx, actor, "QuizSection", "Delete"); err != nil {
			return err
		}

		if _, err := m.sectionOf(ctx, actor, id, true); err != nil {
			return err
		}

		if err := m.locks.CheckDelete(ctx, lock.Ref{Kind: lock.KQuizSection, ID: id}); err != nil {
			return err
		}

		return m.store.DeleteSectionByID(ctx, id)
	})
}

//---------------------------------------------------------------------------
// questions
//---------------------------------------------------------------------------

// Questions lists the questions of a quiz section the actor can see
func (m *Manager) Questions(ctx context.Context, actor role.Actor, sectionID uint32) ([]Question, error) {
	sec, err := m.sectionOf(ctx, actor, sectionID, false)
	if err != nil {
		return nil, err
	}

	if _, err = m.QuizByID(ctx, actor, sec.QuizID); err != nil {
		return nil, fault.NotFound("QuizSection")
	}

	return m.store.FetchQuestionsBySectionID(ctx, sectionID)
}

// CreateQuestion adds a question to a section
func (m *Manager) CreateQuestion(ctx context.Context, actor role.Actor, sectionID uint32, q Question) (Question, error) {
	q.ID = 0
	q.SectionID = sectionID
	q.Created(actor.UserID)

	if err := q.Validate(); err != nil {
		return q, fault.Invariant("Question", "Insert", err.Error())
	}

	err := m.tx.WithTx(ctx, func(ctx context.Context) (err error) {
		if err = m.authorizeEdit(ctx, actor, "Question", "Insert"); err != nil {
			return err
		}

		if _, err = m.sectionOf(ctx, actor, sectionID, false); err != nil {
			return err
		}

		if err = m.locks.CheckInsert(ctx, lock.KQuestion, lock.Ref{Kind: lock.KQuizSection, ID: sectionID}); err != nil {
			return err
		}

		q, err = m.store.CreateQuestion(ctx, q)

		return err
	})

	if err != nil {
		return q, err
	}

	m.Logger().Debug("created question", zap.Uint32("id", q.ID), zap.Uint32("section_id", sectionID))

	return q, nil
}

// UpdateQuestion updates a question while its quiz is not locked
func (m *Manager) UpdateQuestion(ctx context.Context, actor role.Actor, id uint32, fn func(ctx context.Context, q Question) (Question, error)) (q Question, err error) {
	err = m.tx.WithTx(ctx, func(ctx context.Context) error {
		if err = m.authorizeEdit(ctx, actor, "Question", "Update"); err != nil {
			return err
		}

		current, _, err := m.questionOf(ctx, actor, id, true)
		if err != nil {
			return err
		}

		updated, err := fn(ctx, current)
		if err != nil {
			return err
		}

		updated.ID = current.ID
		updated.Retain(current.Audit)

		changelog, err := util.ProtectedChangelog(map[string]bool{
			"question":      true,
			"question_type": true,
		}, current, updated)

		if err != nil {
			return fault.Invariant("Question", "Update", err.Error())
		}

		if len(changelog) == 0 {
			q = current
			return nil
		}

		if err = m.locks.CheckUpdate(ctx, lock.Ref{Kind: lock.KQuestion, ID: id}, lock.Flags{}); err != nil {
			return err
		}

		if err = updated.Validate(); err != nil {
			return fault.Invariant("Question", "Update", err.Error())
		}

		updated.Touched(actor.UserID)
		if err = m.store.UpdateQuestion(ctx, updated); err != nil {
			return err
		}

		q = updated

		return nil
	})

	return q, err
}

// DeleteQuestion deletes a question along with its answers
func (m *Manager) DeleteQuestion(ctx context.Context, actor role.Actor, id uint32) error {
	return m.tx.WithTx(ctx, func(ctx context.Context) error {
		if err := m.authorizeEdit(ctx, actor, "Question", "Delete"); err != nil {
			return err
		}

		if _, _, err := m.questionOf(ctx, actor, id, true); err != nil {
			return err
		}

		if err := m.locks.CheckDelete(ctx, lock.Ref{Kind: lock.KQuestion, ID: id}); err != nil {
			return err
		}

		return m.store.DeleteQuestionByID(ctx, id)
	})
}

//---------------------------------------------------------------------------
// answers
//---------------------------------------------------------------------------

// Answers lists the answers to a question; the correct ones are
// revealed only to admins and managers
func (m *Manager) Answers(ctx context.Context, actor role.Actor, questionID uint32) ([]Answer, error) {
	_, sec, err := m.questionOf(ctx, actor, questionID, false)
	if err != nil {
		return nil, err
	}

	if _, err = m.QuizByID(ctx, actor, sec.QuizID); err != nil {
		return nil, fault.NotFound("Question")
	}

	as, err := m.store.FetchAnswersByQuestionID(ctx, questionID)
	if err != nil {
		return nil, err
	}

	privileged, err := m.privileged(ctx, actor)
	if err != nil || privileged {
		return as, err
	}

	for i := range as {
		as[i].Correct = false
	}

	return as, nil
}

// CreateAnswer adds a possible answer to a question
func (m *Manager) CreateAnswer(ctx context.Context, actor role.Actor, questionID uint32, a Answer) (Answer, error) {
	a.ID = 0
	a.QuestionID = questionID
	a.Created(actor.UserID)

	if err := a.Validate(); err != nil {
		return a, fault.Invariant("QuizAnswer", "Insert", err.Error())
	}

	err := m.tx.WithTx(ctx, func(ctx context.Context) (err error) {
		if err = m.authorizeEdit(ctx, actor, "QuizAnswer", "Insert"); err != nil {
			return err
		}

		if _, _, err = m.questionOf(ctx, actor, questionID, false); err != nil {
			return err
		}

		if err = m.locks.CheckInsert(ctx, lock.KAnswer, lock.Ref{Kind: lock.KQuestion, ID: questionID}); err != nil {
			return err
		}

		a, err = m.store.CreateAnswer(ctx, a)

		return err
	})

	if err != nil {
		return a, err
	}

	m.Logger().Debug("created answer", zap.Uint32("id", a.ID), zap.Uint32("question_id", questionID))

	return a, nil
}

// UpdateAnswer updates an answer while its quiz is not locked
func (m *Manager) UpdateAnswer(ctx context.Context, actor role.Actor, id uint32, fn func(ctx context.Context, a Answer) (Answer, error)) (a Answer, err error) {
	err = m.tx.WithTx(ctx, func(ctx context.Context) error {
		if err = m.authorizeEdit(ctx, actor, "QuizAnswer", "Update"); err != nil {
			return err
		}

		current, err := m.answerOf(ctx, actor, id, true)
		if err != nil {
			return err
		}

		updated, err := fn(ctx, current)
		if err != nil {
			return err
		}

		updated.ID = current.ID
		updated.Retain(current.Audit)

		changelog, err := util.ProtectedChangelog(map[string]bool{
			"answer":  true,
			"correct": true,
		}, current, updated)

		if err != nil {
			return fault.Invariant("QuizAnswer", "Update", err.Error())
		}

		if len(changelog) == 0 {
			a = current
			return nil
		}

		if err = m.locks.CheckUpdate(ctx, lock.Ref{Kind: lock.KAnswer, ID: id}, lock.Flags{}); err != nil {
			return err
		}

		if err = updated.Validate(); err != nil {
			return fault.Invariant("QuizAnswer", "Update", err.Error())
		}

		updated.Touched(actor.UserID)
		if err = m.store.UpdateAnswer(ctx, updated); err != nil {
			return err
		}

		a = updated

		return nil
	})

	return a, err
}

// DeleteAnswer deletes an answer
func (m *Manager) DeleteAnswer(ctx context.Context, actor role.Actor, id uint32) error {
	return m.tx.WithTx(ctx, func(ctx context.Context) error {
		if err := m.authorizeEdit(ctx, actor, "QuizAnswer", "Delete"); err != nil {
			return err
		}

		if _, err := m.answerOf(ctx, actor, id, true); err != nil {
			return err
		}

		if err := m.locks.CheckDelete(ctx, lock.Ref{Kind: lock.KAnswer, ID: id}); err != nil {
			return err
		}

		return m.store.DeleteAnswerByID(ctx, id)
	})
}
