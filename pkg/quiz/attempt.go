package quiz

import (
	"context"
	"fmt"

	"github.com/agubarev/handbook/pkg/database"
	"github.com/agubarev/handbook/pkg/fault"
	"github.com/agubarev/handbook/pkg/lock"
	"github.com/agubarev/handbook/pkg/role"
	"github.com/agubarev/handbook/pkg/util"
	"go.uber.org/zap"
)

// only plain users take quizzes
var takers = []role.Access{role.AccessUser}

func (m *Manager) observe(completed bool) {
	if m.observer != nil {
		m.observer.ObserveAttempt(completed)
	}
}

// StartAttempt starts a new attempt of a quiz by the actor; the quiz
// row stays locked until the attempt is stored, which keeps concurrent
// starts from exceeding the attempt limit
func (m *Manager) StartAttempt(ctx context.Context, actor role.Actor, quizID uint32) (a Attempt, err error) {
	err = m.tx.WithTx(ctx, func(ctx context.Context) error {
		if err = m.resolver.Authorize(ctx, actor, "QuizAttempt", "Insert", takers); err != nil {
			return err
		}

		q, man, err := m.quizOf(ctx, actor, quizID, true)
		if err != nil {
			return err
		}

		if err = m.locks.CheckInsert(ctx, lock.KQuizAttempt, lock.Ref{Kind: lock.KQuiz, ID: quizID}); err != nil {
			return err
		}

		if !q.Published || !man.Published {
			return fault.Invariant("QuizAttempt", "Insert", "quiz is not published")
		}

		visible, err := m.manuals.IsVisible(ctx, actor, q.ManualID)
		if err != nil {
			return err
		}

		if !visible {
			return fault.NotFound("Quiz")
		}

		count, err := m.store.CountAttempts(ctx, quizID, actor.UserID)
		if err != nil {
			return err
		}

		if count >= q.MaxAttempts {
			return fault.Newf(fault.KInvariant, "QuizAttempt", "Insert", "attempt limit of %d reached", q.MaxAttempts)
		}

		now := database.Now()

		a, err = m.store.CreateAttempt(ctx, Attempt{
			UserID:    actor.UserID,
			QuizID:    quizID,
			CreatedAt: now,
			UpdatedAt: now,
		})

		return err
	})

	if err != nil {
		return a, err
	}

	m.observe(false)
	m.Logger().Debug(
		"started attempt",
		zap.Uint32("id", a.ID),
		zap.Uint32("quiz_id", quizID),
		zap.Uint32("user_id", actor.UserID),
	)

	return a, nil
}

// attemptOf returns an attempt owned by the actor
// NOTE: somebody else's attempt is reported as not found
func (m *Manager) attemptOf(ctx context.Context, actor role.Actor, id uint32, forUpdate bool) (Attempt, error) {
	a, err := m.store.FetchAttemptByID(ctx, id, forUpdate)
	if err != nil {
		return a, err
	}

	if a.UserID != actor.UserID {
		return Attempt{}, fault.NotFound("QuizAttempt")
	}

	if _, _, err = m.quizOf(ctx, actor, a.QuizID, false); err != nil {
		return Attempt{}, fault.NotFound("QuizAttempt")
	}

	return a, nil
}

// UpdateAttempt completes an attempt; user_id and quiz_id cannot be
// changed, and an attempt is completed only once
func (m *Manager) UpdateAttempt(ctx context.Context, actor role.Actor, id uint32, fn func(ctx context.Context, a Attempt) (Attempt, error)) (a Attempt, err error) {
	err = m.tx.WithTx(ctx, func(ctx context.Context) error {
		current, err := m.attemptOf(ctx, actor, id, true)
		if err != nil {
			return err
		}

		if current.IsCompleted() {
			return fault.Lock("QuizAttempt", "Update", fmt.Sprintf("quiz_attempt_id %d has been completed", id))
		}

		updated, err := fn(ctx, current)
		if err != nil {
			return err
		}

		changelog, err := util.ProtectedChangelog(map[string]bool{}, current, updated)
		if err != nil || len(changelog) > 0 {
			return fault.Invariant("QuizAttempt", "Update", "user_id and quiz_id cannot be changed")
		}

		updated = current
		updated.UpdatedAt = current.completionTime(database.Now())

		if err = m.store.UpdateAttempt(ctx, updated); err != nil {
			return err
		}

		a = updated

		return nil
	})

	if err != nil {
		return a, err
	}

	m.observe(true)
	m.Logger().Debug("completed attempt", zap.Uint32("id", a.ID), zap.Uint32("user_id", actor.UserID))

	return a, nil
}

// CompleteAttempt marks an attempt of the actor as completed
func (m *Manager) CompleteAttempt(ctx context.Context, actor role.Actor, id uint32) (Attempt, error) {
	return m.UpdateAttempt(ctx, actor, id, func(ctx context.Context, a Attempt) (Attempt, error) {
		return a, nil
	})
}

// AttemptByID returns an attempt of the actor
func (m *Manager) AttemptByID(ctx context.Context, actor role.Actor, id uint32) (Attempt, error) {
	return m.attemptOf(ctx, actor, id, false)
}

// Attempts lists the attempts of a quiz taken by the actor
func (m *Manager) Attempts(ctx context.Context, actor role.Actor, quizID uint32) ([]Attempt, error) {
	if _, _, err := m.quizOf(ctx, actor, quizID, false); err != nil {
		return nil, err
	}

	return m.store.FetchAttempts(ctx, quizID, actor.UserID)
}

// ScoredAttempt is an attempt along with the number of correctly
// answered questions out of the total; the score is -1 while the
// attempt is in progress
type ScoredAttempt struct {
	Attempt
	Score int    `json:"score"`
	Total uint32 `json:"total"`
}

// authorizeReport allows reviewing the attempts of other users
func (m *Manager) authorizeReport(ctx context.Context, actor role.Actor, op string) error {
	return m.resolver.Authorize(ctx, actor, "QuizAttempt", op, editors, role.GlobalViewReports, role.DepartmentViewReports)
}

// UserAttempts lists the scored attempts of a quiz taken by a user;
// users may always review their own
func (m *Manager) UserAttempts(ctx context.Context, actor role.Actor, quizID, userID uint32) ([]ScoredAttempt, error) {
	if userID != actor.UserID {
		if err := m.authorizeReport(ctx, actor, "Select"); err != nil {
			return nil, err
		}
	}

	if _, _, err := m.quizOf(ctx, actor, quizID, false); err != nil {
		return nil, err
	}

	as, err := m.store.FetchAttempts(ctx, quizID, userID)
	if err != nil {
		return nil, err
	}

	return m.score(ctx, quizID, as)
}

// QuizAttempts lists the scored attempts of every user who took a quiz
func (m *Manager) QuizAttempts(ctx context.Context, actor role.Actor, quizID uint32) ([]ScoredAttempt, error) {
	if err := m.authorizeReport(ctx, actor, "Select"); err != nil {
		return nil, err
	}

	if _, _, err := m.quizOf(ctx, actor, quizID, false); err != nil {
		return nil, err
	}

	as, err := m.store.FetchAttemptsByQuizID(ctx, quizID)
	if err != nil {
		return nil, err
	}

	return m.score(ctx, quizID, as)
}

// score counts the correct answers of each completed attempt
func (m *Manager) score(ctx context.Context, quizID uint32, as []Attempt) ([]ScoredAttempt, error) {
	correct := make(map[uint32]bool)
	total := uint32(0)

	sections, err := m.store.FetchSectionsByQuizID(ctx, quizID)
	if err != nil {
		return nil, err
	}

	for _, sec := range sections {
		qs, err := m.store.FetchQuestionsBySectionID(ctx, sec.ID)
		if err != nil {
			return nil, err
		}

		total += uint32(len(qs))

		for _, q := range qs {
			answers, err := m.store.FetchAnswersByQuestionID(ctx, q.ID)
			if err != nil {
				return nil, err
			}

			for _, ans := range answers {
				correct[ans.ID] = ans.Correct
			}
		}
	}

	scored := make([]ScoredAttempt, 0, len(as))
	for _, a := range as {
		sa := ScoredAttempt{Attempt: a, Score: -1, Total: total}

		if a.IsCompleted() {
			rs, err := m.store.FetchResultsByAttemptID(ctx, a.ID)
			if err != nil {
				return nil, err
			}

			sa.Score = 0
			for _, r := range rs {
				if correct[r.AnswerID] {
					sa.Score++
				}
			}
		}

		scored = append(scored, sa)
	}

	return scored, nil
}

//---------------------------------------------------------------------------
// results
//---------------------------------------------------------------------------

// RecordResult records the actor's answer to a question within an
// attempt that is still in progress; one answer per question
func (m *Manager) RecordResult(ctx context.Context, actor role.Actor, attemptID, questionID, answerID uint32) (r Result, err error) {
	err = m.tx.WithTx(ctx, func(ctx context.Context) error {
		a, err := m.attemptOf(ctx, actor, attemptID, true)
		if err != nil {
			return err
		}

		if a.IsCompleted() {
			return fault.Lock("QuizResult", "Insert", fmt.Sprintf("quiz_attempt_id %d has been completed", attemptID))
		}

		q, err := m.store.FetchQuestionByID(ctx, questionID, false)
		if err != nil {
			return referential(err)
		}

		s, err := m.store.FetchSectionByID(ctx, q.SectionID, false)
		if err != nil {
			return referential(err)
		}

		if s.QuizID != a.QuizID {
			return fault.Invariant("QuizResult", "Insert", "question does not belong to the quiz of the attempt")
		}

		ans, err := m.store.FetchAnswerByID(ctx, answerID, false)
		if err != nil {
			return referential(err)
		}

		if ans.QuestionID != questionID {
			return fault.Invariant("QuizResult", "Insert", "answer does not belong to the question")
		}

		r, err = m.store.CreateResult(ctx, Result{
			AttemptID:  attemptID,
			QuestionID: questionID,
			AnswerID:   answerID,
			UpdatedBy:  actor.UserID,
			CreatedAt:  database.Now(),
		})

		return err
	})

	if err != nil {
		return r, err
	}

	m.Logger().Debug(
		"recorded result",
		zap.Uint32("attempt_id", attemptID),
		zap.Uint32("question_id", questionID),
		zap.Uint32("answer_id", answerID),
	)

	return r, nil
}

// referential turns a missing question or answer into a result invariant
func referential(err error) error {
	if fault.Is(err, fault.KNotFound) {
		return fault.Invariant("QuizResult", "Insert", msgReferential)
	}

	return err
}

// Results lists the results recorded within an attempt of the actor
func (m *Manager) Results(ctx context.Context, actor role.Actor, attemptID uint32) ([]Result, error) {
	if _, err := m.attemptOf(ctx, actor, attemptID, false); err != nil {
		return nil, err
	}

	return m.store.FetchResultsByAttemptID(ctx, attemptID)
}

// UpdateResult always fails, results are write-once
func (m *Manager) UpdateResult(ctx context.Context, actor role.Actor, resultID uint32) error {
	return m.locks.RejectUpdate(lock.KQuizResult)
}
