package quiz_test

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/agubarev/handbook/pkg/database"
	"github.com/agubarev/handbook/pkg/fault"
	"github.com/agubarev/handbook/pkg/lock"
	"github.com/agubarev/handbook/pkg/manual"
	"github.com/agubarev/handbook/pkg/quiz"
	"github.com/agubarev/handbook/pkg/role"
	"github.com/agubarev/handbook/pkg/util"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	businessID = uint32(1)
	founderID  = uint32(1)
	cookID     = uint32(2)
	chefID     = uint32(3)
	otherCook  = uint32(4)
)

type counter struct {
	started   int
	completed int
	sync.Mutex
}

func (c *counter) ObserveAttempt(completed bool) {
	c.Lock()
	defer c.Unlock()

	if completed {
		c.completed++
	} else {
		c.started++
	}
}

type fixture struct {
	m        *quiz.Manager
	manuals  *manual.Manager
	observed *counter
	admin    role.Actor
	cook     role.Actor
	chef     role.Actor
	other    role.Actor
	kitchen  role.Department
	general  role.Role
}

func newFixture(t *testing.T) *fixture {
	ctx := context.Background()

	tx := database.NewMemoryTransactor()
	locks := lock.NewEngine()
	require.NoError(t, locks.SetLogger(util.LoggerForTesting()))

	roles, err := role.NewManager(role.NewMemoryStore(), tx, locks)
	require.NoError(t, err)
	require.NoError(t, roles.SetLogger(util.LoggerForTesting()))

	manuals, err := manual.NewManager(manual.NewMemoryStore(), tx, locks, roles)
	require.NoError(t, err)
	require.NoError(t, manuals.SetLogger(util.LoggerForTesting()))

	m, err := quiz.NewManager(quiz.NewMemoryStore(), tx, locks, roles, manuals)
	require.NoError(t, err)
	require.NoError(t, m.SetLogger(util.LoggerForTesting()))

	_, general, err := roles.Bootstrap(
		ctx,
		founderID,
		role.Department{BusinessID: businessID, Name: "Admin", PreventEdit: true, PreventDelete: true},
		role.Role{Name: "General", Access: role.AccessAdmin, PreventEdit: true, PreventDelete: true},
		role.FullPermission(0),
	)
	require.NoError(t, err)

	f := &fixture{
		m:        m,
		manuals:  manuals,
		observed: &counter{},
		admin:    role.Actor{UserID: founderID, BusinessID: businessID},
		cook:     role.Actor{UserID: cookID, BusinessID: businessID},
		chef:     role.Actor{UserID: chefID, BusinessID: businessID},
		other:    role.Actor{UserID: otherCook, BusinessID: businessID},
		general:  general,
	}

	m.SetObserver(f.observed)

	f.kitchen, err = roles.CreateDepartment(ctx, f.admin, role.Department{Name: "Kitchen"})
	require.NoError(t, err)

	cookR, _, err := roles.CreateRole(ctx, f.admin, role.Role{DepartmentID: f.kitchen.ID, Name: "Cook", Access: role.AccessUser}, role.Permission{})
	require.NoError(t, err)

	chefR, _, err := roles.CreateRole(ctx, f.admin, role.Role{DepartmentID: f.kitchen.ID, Name: "Chef", Access: role.AccessManager}, role.Permission{})
	require.NoError(t, err)

	for _, userID := range []uint32{cookID, otherCook} {
		_, err = roles.AssignUser(ctx, f.admin, userID, cookR.ID)
		require.NoError(t, err)
	}

	_, err = roles.AssignUser(ctx, f.admin, chefID, chefR.ID)
	require.NoError(t, err)

	return f
}

type tree struct {
	quiz     quiz.Quiz
	section  quiz.Section
	question quiz.Question
	right    quiz.Answer
	wrong    quiz.Answer
}

// quizTree creates a published quiz with a single question under a
// published manual assigned to the given department
func (f *fixture) quizTree(t *testing.T, departmentID uint32, maxAttempts uint32) tree {
	ctx := context.Background()

	man, _, err := f.manuals.CreateManual(
		ctx,
		f.admin,
		manual.Manual{Title: "Kitchen basics", Published: true},
		[]manual.Assignment{{DepartmentID: &departmentID}},
	)
	require.NoError(t, err)

	var tr tree

	tr.quiz, err = f.m.CreateQuiz(ctx, f.admin, man.ID, quiz.Quiz{Title: "Hygiene check", MaxAttempts: maxAttempts, Published: true})
	require.NoError(t, err)

	tr.section, err = f.m.CreateSection(ctx, f.admin, tr.quiz.ID, quiz.Section{Title: "Hands"})
	require.NoError(t, err)

	tr.question, err = f.m.CreateQuestion(ctx, f.admin, tr.section.ID, quiz.Question{
		Question: "How long do you wash your hands?",
		Type:     quiz.SingleChoice,
	})
	require.NoError(t, err)

	tr.right, err = f.m.CreateAnswer(ctx, f.admin, tr.question.ID, quiz.Answer{Answer: "20 seconds", Correct: true})
	require.NoError(t, err)

	tr.wrong, err = f.m.CreateAnswer(ctx, f.admin, tr.question.ID, quiz.Answer{Answer: "2 seconds"})
	require.NoError(t, err)

	return tr
}

func setQuizLocks(edit, del bool) func(ctx context.Context, q quiz.Quiz) (quiz.Quiz, error) {
	return func(ctx context.Context, q quiz.Quiz) (quiz.Quiz, error) {
		q.PreventEdit = edit
		q.PreventDelete = del
		return q, nil
	}
}

func TestAttemptScenario(t *testing.T) {
	a := assert.New(t)
	ctx := context.Background()

	f := newFixture(t)
	tr := f.quizTree(t, f.kitchen.ID, 1)

	at, err := f.m.StartAttempt(ctx, f.cook, tr.quiz.ID)
	a.NoError(err)
	a.NotZero(at.ID)
	a.Equal(cookID, at.UserID)
	a.False(at.IsCompleted())

	// the only allowed attempt is already taken
	_, err = f.m.StartAttempt(ctx, f.cook, tr.quiz.ID)
	a.True(fault.Is(err, fault.KInvariant))
	a.EqualError(err, "QuizAttemptInsertError: attempt limit of 1 reached")

	done, err := f.m.CompleteAttempt(ctx, f.cook, at.ID)
	a.NoError(err)
	a.True(done.IsCompleted())
	a.True(done.UpdatedAt.After(done.CreatedAt))

	_, err = f.m.CompleteAttempt(ctx, f.cook, at.ID)
	a.True(fault.Is(err, fault.KLock))
	a.EqualError(err, fmt.Sprintf("QuizAttemptUpdateError: quiz_attempt_id %d has been completed", at.ID))

	// completion does not free up the limit
	_, err = f.m.StartAttempt(ctx, f.cook, tr.quiz.ID)
	a.EqualError(err, "QuizAttemptInsertError: attempt limit of 1 reached")

	// the limit is per user
	_, err = f.m.StartAttempt(ctx, f.other, tr.quiz.ID)
	a.NoError(err)

	as, err := f.m.Attempts(ctx, f.cook, tr.quiz.ID)
	a.NoError(err)
	a.Len(as, 1)

	a.Equal(2, f.observed.started)
	a.Equal(1, f.observed.completed)
}

func TestAttemptLimit(t *testing.T) {
	a := assert.New(t)
	ctx := context.Background()

	f := newFixture(t)
	tr := f.quizTree(t, f.kitchen.ID, 3)

	for i := 0; i < 3; i++ {
		at, err := f.m.StartAttempt(ctx, f.cook, tr.quiz.ID)
		require.NoError(t, err)

		_, err = f.m.CompleteAttempt(ctx, f.cook, at.ID)
		require.NoError(t, err)
	}

	_, err := f.m.StartAttempt(ctx, f.cook, tr.quiz.ID)
	a.EqualError(err, "QuizAttemptInsertError: attempt limit of 3 reached")

	// raising the limit lets the user retry
	_, err = f.m.UpdateQuiz(ctx, f.admin, tr.quiz.ID, func(ctx context.Context, q quiz.Quiz) (quiz.Quiz, error) {
		q.MaxAttempts = 4
		return q, nil
	})
	a.NoError(err)

	_, err = f.m.StartAttempt(ctx, f.cook, tr.quiz.ID)
	a.NoError(err)
}

func TestStartAttemptRequirements(t *testing.T) {
	a := assert.New(t)
	ctx := context.Background()

	f := newFixture(t)
	tr := f.quizTree(t, f.kitchen.ID, 2)

	// only plain users take quizzes
	_, err := f.m.StartAttempt(ctx, f.admin, tr.quiz.ID)
	a.True(fault.Is(err, fault.KAuthorization))
	a.EqualError(err, "QuizAttemptInsertError: access denied")

	_, err = f.m.StartAttempt(ctx, f.chef, tr.quiz.ID)
	a.True(fault.Is(err, fault.KAuthorization))

	_, err = f.m.UpdateQuiz(ctx, f.admin, tr.quiz.ID, func(ctx context.Context, q quiz.Quiz) (quiz.Quiz, error) {
		q.Published = false
		return q, nil
	})
	require.NoError(t, err)

	_, err = f.m.StartAttempt(ctx, f.cook, tr.quiz.ID)
	a.True(fault.Is(err, fault.KInvariant))
	a.EqualError(err, "QuizAttemptInsertError: quiz is not published")

	// assigned only to the admin department, hidden from the kitchen
	hidden := f.quizTree(t, f.general.DepartmentID, 2)

	_, err = f.m.StartAttempt(ctx, f.cook, hidden.quiz.ID)
	a.True(fault.Is(err, fault.KNotFound))

	_, err = f.m.StartAttempt(ctx, f.cook, 999)
	a.True(fault.Is(err, fault.KNotFound))

	// a foreign business sees nothing
	_, err = f.m.StartAttempt(ctx, role.Actor{UserID: cookID, BusinessID: 2}, tr.quiz.ID)
	a.Error(err)

	a.Zero(f.observed.started)
}

func TestStartAttemptLocked(t *testing.T) {
	a := assert.New(t)
	ctx := context.Background()

	f := newFixture(t)
	tr := f.quizTree(t, f.kitchen.ID, 2)

	_, err := f.m.UpdateQuiz(ctx, f.admin, tr.quiz.ID, setQuizLocks(true, false))
	require.NoError(t, err)

	_, err = f.m.StartAttempt(ctx, f.cook, tr.quiz.ID)
	a.True(fault.Is(err, fault.KLock))
	a.EqualError(err, "QuizAttemptInsertError: Cannot start an attempt while the quiz is locked")

	_, err = f.m.UpdateQuiz(ctx, f.admin, tr.quiz.ID, setQuizLocks(false, false))
	require.NoError(t, err)

	_, err = f.m.StartAttempt(ctx, f.cook, tr.quiz.ID)
	a.NoError(err)
}

func TestUpdateAttemptIdentity(t *testing.T) {
	a := assert.New(t)
	ctx := context.Background()

	f := newFixture(t)
	tr := f.quizTree(t, f.kitchen.ID, 1)

	at, err := f.m.StartAttempt(ctx, f.cook, tr.quiz.ID)
	require.NoError(t, err)

	_, err = f.m.UpdateAttempt(ctx, f.cook, at.ID, func(ctx context.Context, at quiz.Attempt) (quiz.Attempt, error) {
		at.UserID = otherCook
		return at, nil
	})
	a.True(fault.Is(err, fault.KInvariant))
	a.EqualError(err, "QuizAttemptUpdateError: user_id and quiz_id cannot be changed")

	_, err = f.m.UpdateAttempt(ctx, f.cook, at.ID, func(ctx context.Context, at quiz.Attempt) (quiz.Attempt, error) {
		at.QuizID++
		return at, nil
	})
	a.EqualError(err, "QuizAttemptUpdateError: user_id and quiz_id cannot be changed")

	// a failed update leaves the attempt in progress
	at, err = f.m.AttemptByID(ctx, f.cook, at.ID)
	a.NoError(err)
	a.False(at.IsCompleted())

	// somebody else's attempt does not exist for the actor
	_, err = f.m.CompleteAttempt(ctx, f.other, at.ID)
	a.True(fault.Is(err, fault.KNotFound))

	at, err = f.m.CompleteAttempt(ctx, f.cook, at.ID)
	a.NoError(err)
	a.True(at.IsCompleted())
}

func TestRecordResult(t *testing.T) {
	a := assert.New(t)
	ctx := context.Background()

	f := newFixture(t)
	tr := f.quizTree(t, f.kitchen.ID, 1)
	foreign := f.quizTree(t, f.kitchen.ID, 1)

	at, err := f.m.StartAttempt(ctx, f.cook, tr.quiz.ID)
	require.NoError(t, err)

	r, err := f.m.RecordResult(ctx, f.cook, at.ID, tr.question.ID, tr.right.ID)
	a.NoError(err)
	a.NotZero(r.ID)
	a.Equal(cookID, r.UpdatedBy)

	// one answer per question
	_, err = f.m.RecordResult(ctx, f.cook, at.ID, tr.question.ID, tr.wrong.ID)
	a.True(fault.Is(err, fault.KInvariant))
	a.EqualError(err, "QuizResultInsertError: record already exists")

	_, err = f.m.RecordResult(ctx, f.cook, at.ID, foreign.question.ID, foreign.right.ID)
	a.True(fault.Is(err, fault.KInvariant))
	a.EqualError(err, "QuizResultInsertError: question does not belong to the quiz of the attempt")

	other, err := f.m.CreateQuestion(ctx, f.admin, tr.section.ID, quiz.Question{Question: "Gloves?", Type: quiz.MultipleChoice})
	require.NoError(t, err)

	_, err = f.m.RecordResult(ctx, f.cook, at.ID, other.ID, tr.right.ID)
	a.EqualError(err, "QuizResultInsertError: answer does not belong to the question")

	_, err = f.m.RecordResult(ctx, f.cook, at.ID, 999, tr.right.ID)
	a.EqualError(err, "QuizResultInsertError: referenced record does not exist or is still in use")

	_, err = f.m.RecordResult(ctx, f.other, at.ID, other.ID, tr.right.ID)
	a.True(fault.Is(err, fault.KNotFound))

	_, err = f.m.CompleteAttempt(ctx, f.cook, at.ID)
	require.NoError(t, err)

	_, err = f.m.RecordResult(ctx, f.cook, at.ID, other.ID, tr.right.ID)
	a.True(fault.Is(err, fault.KLock))

	rs, err := f.m.Results(ctx, f.cook, at.ID)
	a.NoError(err)
	a.Len(rs, 1)

	err = f.m.UpdateResult(ctx, f.cook, r.ID)
	a.True(fault.Is(err, fault.KInvariant))
	a.EqualError(err, "QuizResultUpdateError: Cannot update quiz_result")
}

func TestQuizLocks(t *testing.T) {
	a := assert.New(t)
	ctx := context.Background()

	f := newFixture(t)
	tr := f.quizTree(t, f.kitchen.ID, 1)

	q, err := f.m.UpdateQuiz(ctx, f.admin, tr.quiz.ID, setQuizLocks(true, true))
	a.NoError(err)
	a.True(q.PreventEdit)

	_, err = f.m.UpdateQuiz(ctx, f.admin, tr.quiz.ID, func(ctx context.Context, q quiz.Quiz) (quiz.Quiz, error) {
		q.Title = "x"
		return q, nil
	})
	a.EqualError(err, "QuizUpdateError: Quiz is locked from editing.")

	_, err = f.m.CreateSection(ctx, f.admin, tr.quiz.ID, quiz.Section{Title: "Knives"})
	a.True(fault.Is(err, fault.KLock))
	a.EqualError(err, "QuizSectionInsertError: Cannot insert a section while the quiz is locked")

	_, err = f.m.UpdateQuestion(ctx, f.admin, tr.question.ID, func(ctx context.Context, q quiz.Question) (quiz.Question, error) {
		q.Question = "x"
		return q, nil
	})
	a.EqualError(err, "QuestionUpdateError: Cannot update a question while the quiz is locked from editing")

	_, err = f.m.UpdateAnswer(ctx, f.admin, tr.wrong.ID, func(ctx context.Context, ans quiz.Answer) (quiz.Answer, error) {
		ans.Correct = true
		return ans, nil
	})
	a.EqualError(err, "QuizAnswerUpdateError: Cannot update an answer while the quiz is locked from editing")

	a.EqualError(
		f.m.DeleteAnswer(ctx, f.admin, tr.wrong.ID),
		"QuizAnswerDeleteError: Cannot delete an answer while the quiz is locked from editing",
	)

	a.EqualError(
		f.m.DeleteSection(ctx, f.admin, tr.section.ID),
		"QuizSectionDeleteError: Cannot delete a section while the quiz is locked from editing",
	)

	a.EqualError(f.m.DeleteQuiz(ctx, f.admin, tr.quiz.ID), "QuizDeleteError: Cannot delete quiz while delete lock is set")

	// releasing the edit lock is the one update permitted while locked
	q, err = f.m.UpdateQuiz(ctx, f.admin, tr.quiz.ID, setQuizLocks(false, true))
	a.NoError(err)
	a.False(q.PreventEdit)

	a.NoError(f.m.DeleteAnswer(ctx, f.admin, tr.wrong.ID))
	a.EqualError(f.m.DeleteQuiz(ctx, f.admin, tr.quiz.ID), "QuizDeleteError: Cannot delete quiz while delete lock is set")

	_, err = f.m.UpdateQuiz(ctx, f.admin, tr.quiz.ID, setQuizLocks(false, false))
	a.NoError(err)
	a.NoError(f.m.DeleteQuiz(ctx, f.admin, tr.quiz.ID))

	// the whole tree goes with the quiz
	_, err = f.m.QuizByID(ctx, f.admin, tr.quiz.ID)
	a.True(fault.Is(err, fault.KNotFound))

	a.True(fault.Is(f.m.DeleteQuestion(ctx, f.admin, tr.question.ID), fault.KNotFound))
}

func TestQuizAuthoring(t *testing.T) {
	a := assert.New(t)
	ctx := context.Background()

	f := newFixture(t)
	tr := f.quizTree(t, f.kitchen.ID, 1)

	// managers author quizzes, plain users do not
	_, err := f.m.CreateSection(ctx, f.chef, tr.quiz.ID, quiz.Section{Title: "Knives"})
	a.NoError(err)

	_, err = f.m.CreateSection(ctx, f.cook, tr.quiz.ID, quiz.Section{Title: "Knives"})
	a.True(fault.Is(err, fault.KAuthorization))
	a.EqualError(err, "QuizSectionInsertError: access denied")

	_, err = f.m.CreateQuestion(ctx, f.admin, tr.section.ID, quiz.Question{Question: "?", Type: "essay"})
	a.True(fault.Is(err, fault.KInvariant))

	_, err = f.m.CreateQuiz(ctx, f.admin, tr.quiz.ManualID, quiz.Quiz{})
	a.EqualError(err, "QuizInsertError: title is empty")

	// protected fields never change
	_, err = f.m.UpdateQuiz(ctx, f.admin, tr.quiz.ID, func(ctx context.Context, q quiz.Quiz) (quiz.Quiz, error) {
		q.ManualID++
		return q, nil
	})
	a.True(fault.Is(err, fault.KInvariant))

	// unpublished quizzes are hidden from plain users only
	hidden, err := f.m.CreateQuiz(ctx, f.admin, tr.quiz.ManualID, quiz.Quiz{Title: "Draft"})
	require.NoError(t, err)
	a.Equal(uint32(1), hidden.MaxAttempts)

	_, err = f.m.QuizByID(ctx, f.cook, hidden.ID)
	a.True(fault.Is(err, fault.KNotFound))

	_, err = f.m.QuizByID(ctx, f.chef, hidden.ID)
	a.NoError(err)

	qs, err := f.m.QuizzesByManual(ctx, f.cook, tr.quiz.ManualID)
	a.NoError(err)
	a.Len(qs, 1)

	qs, err = f.m.QuizzesByManual(ctx, f.admin, tr.quiz.ManualID)
	a.NoError(err)
	a.Len(qs, 2)
}

func TestUpdateKeepsIdentity(t *testing.T) {
	a := assert.New(t)
	ctx := context.Background()

	f := newFixture(t)
	own := f.quizTree(t, f.kitchen.ID, 1)
	locked := f.quizTree(t, f.kitchen.ID, 1)

	_, err := f.m.UpdateQuiz(ctx, f.admin, locked.quiz.ID, setQuizLocks(true, false))
	require.NoError(t, err)

	answer, err := f.m.UpdateAnswer(ctx, f.admin, own.wrong.ID, func(ctx context.Context, ans quiz.Answer) (quiz.Answer, error) {
		ans.ID = locked.right.ID
		ans.Answer = "2 minutes"
		ans.CreatedAt = time.Unix(0, 0)
		return ans, nil
	})
	a.NoError(err)
	a.Equal(own.wrong.ID, answer.ID)
	a.Equal(own.wrong.CreatedAt, answer.CreatedAt)

	store, err := f.m.Store()
	require.NoError(t, err)

	stored, err := store.FetchAnswerByID(ctx, locked.right.ID, false)
	a.NoError(err)
	a.Equal("20 seconds", stored.Answer)

	stored, err = store.FetchAnswerByID(ctx, own.wrong.ID, false)
	a.NoError(err)
	a.Equal("2 minutes", stored.Answer)

	q, err := f.m.UpdateQuiz(ctx, f.admin, own.quiz.ID, func(ctx context.Context, q quiz.Quiz) (quiz.Quiz, error) {
		q.ID = locked.quiz.ID
		q.Title = "Renamed"
		return q, nil
	})
	a.NoError(err)
	a.Equal(own.quiz.ID, q.ID)

	lockedQuiz, err := store.FetchQuizByID(ctx, locked.quiz.ID, false)
	a.NoError(err)
	a.Equal("Hygiene check", lockedQuiz.Title)
}

func TestQuizListings(t *testing.T) {
	a := assert.New(t)
	ctx := context.Background()

	f := newFixture(t)
	tr := f.quizTree(t, f.kitchen.ID, 1)

	sections, err := f.m.Sections(ctx, f.cook, tr.quiz.ID)
	a.NoError(err)
	a.Len(sections, 1)
	a.Equal(tr.section.ID, sections[0].ID)

	questions, err := f.m.Questions(ctx, f.cook, tr.section.ID)
	a.NoError(err)
	a.Len(questions, 1)
	a.Equal(tr.question.ID, questions[0].ID)

	// plain users never see which answer is correct
	answers, err := f.m.Answers(ctx, f.cook, tr.question.ID)
	a.NoError(err)
	a.Len(answers, 2)
	a.Equal(tr.right.ID, answers[0].ID)
	a.False(answers[0].Correct)

	answers, err = f.m.Answers(ctx, f.chef, tr.question.ID)
	a.NoError(err)
	a.True(answers[0].Correct)
	a.False(answers[1].Correct)

	// the content of unpublished quizzes is hidden from plain users
	_, err = f.m.UpdateQuiz(ctx, f.admin, tr.quiz.ID, func(ctx context.Context, q quiz.Quiz) (quiz.Quiz, error) {
		q.Published = false
		return q, nil
	})
	require.NoError(t, err)

	_, err = f.m.Sections(ctx, f.cook, tr.quiz.ID)
	a.True(fault.Is(err, fault.KNotFound))

	_, err = f.m.Questions(ctx, f.cook, tr.section.ID)
	a.True(fault.Is(err, fault.KNotFound))

	_, err = f.m.Answers(ctx, f.cook, tr.question.ID)
	a.True(fault.Is(err, fault.KNotFound))

	sections, err = f.m.Sections(ctx, f.chef, tr.quiz.ID)
	a.NoError(err)
	a.Len(sections, 1)

	// foreign businesses see nothing
	stranger := role.Actor{UserID: cookID, BusinessID: businessID + 1}

	_, err = f.m.Sections(ctx, stranger, tr.quiz.ID)
	a.True(fault.Is(err, fault.KNotFound))
}

func TestScoredAttempts(t *testing.T) {
	a := assert.New(t)
	ctx := context.Background()

	f := newFixture(t)
	tr := f.quizTree(t, f.kitchen.ID, 2)

	second, err := f.m.CreateQuestion(ctx, f.admin, tr.section.ID, quiz.Question{Question: "Gloves?", Type: quiz.SingleChoice})
	require.NoError(t, err)

	yes, err := f.m.CreateAnswer(ctx, f.admin, second.ID, quiz.Answer{Answer: "Yes", Correct: true})
	require.NoError(t, err)

	first, err := f.m.StartAttempt(ctx, f.cook, tr.quiz.ID)
	require.NoError(t, err)

	_, err = f.m.RecordResult(ctx, f.cook, first.ID, tr.question.ID, tr.right.ID)
	require.NoError(t, err)

	_, err = f.m.RecordResult(ctx, f.cook, first.ID, second.ID, yes.ID)
	require.NoError(t, err)

	_, err = f.m.CompleteAttempt(ctx, f.cook, first.ID)
	require.NoError(t, err)

	retry, err := f.m.StartAttempt(ctx, f.cook, tr.quiz.ID)
	require.NoError(t, err)

	_, err = f.m.RecordResult(ctx, f.cook, retry.ID, tr.question.ID, tr.wrong.ID)
	require.NoError(t, err)

	// the other cook completes without a single correct answer
	other, err := f.m.StartAttempt(ctx, f.other, tr.quiz.ID)
	require.NoError(t, err)

	_, err = f.m.RecordResult(ctx, f.other, other.ID, tr.question.ID, tr.wrong.ID)
	require.NoError(t, err)

	_, err = f.m.CompleteAttempt(ctx, f.other, other.ID)
	require.NoError(t, err)

	// users review their own attempts
	scored, err := f.m.UserAttempts(ctx, f.cook, tr.quiz.ID, cookID)
	a.NoError(err)
	require.Len(t, scored, 2)
	a.Equal(first.ID, scored[0].ID)
	a.Equal(2, scored[0].Score)
	a.Equal(uint32(2), scored[0].Total)
	a.Equal(retry.ID, scored[1].ID)
	a.Equal(-1, scored[1].Score)

	// but not the attempts of others
	_, err = f.m.UserAttempts(ctx, f.cook, tr.quiz.ID, otherCook)
	a.True(fault.Is(err, fault.KAuthorization))
	a.EqualError(err, "QuizAttemptSelectError: access denied")

	_, err = f.m.QuizAttempts(ctx, f.cook, tr.quiz.ID)
	a.True(fault.Is(err, fault.KAuthorization))

	scored, err = f.m.UserAttempts(ctx, f.chef, tr.quiz.ID, otherCook)
	a.NoError(err)
	require.Len(t, scored, 1)
	a.Equal(0, scored[0].Score)

	scored, err = f.m.QuizAttempts(ctx, f.admin, tr.quiz.ID)
	a.NoError(err)
	a.Len(scored, 3)

	for _, sa := range scored {
		a.Equal(uint32(2), sa.Total)
	}

	_, err = f.m.QuizAttempts(ctx, role.Actor{UserID: founderID, BusinessID: businessID + 1}, tr.quiz.ID)
	a.Error(err)
}
