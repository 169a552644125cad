package quiz

import (
	"context"
	"net/http"

	"github.com/agubarev/handbook/internal/core"
	"github.com/agubarev/handbook/internal/server/endpoints"
	"github.com/agubarev/handbook/pkg/quiz"
	"github.com/agubarev/handbook/pkg/role"
	"github.com/agubarev/handbook/pkg/util/report"
)

// quizzes
var (
	Post = endpoints.Create[quiz.Quiz]("id", func(ctx context.Context, c *core.Core, actor role.Actor, manualID uint32, q quiz.Quiz) (quiz.Quiz, error) {
		return c.QuizManager().CreateQuiz(ctx, actor, manualID, q)
	})

	Get = endpoints.Get[quiz.Quiz](func(ctx context.Context, c *core.Core, actor role.Actor, id uint32) (quiz.Quiz, error) {
		return c.QuizManager().QuizByID(ctx, actor, id)
	})

	List = endpoints.Get[[]quiz.Quiz](func(ctx context.Context, c *core.Core, actor role.Actor, manualID uint32) ([]quiz.Quiz, error) {
		return c.QuizManager().QuizzesByManual(ctx, actor, manualID)
	})

	Put = endpoints.Update[quiz.Quiz](func(ctx context.Context, c *core.Core, actor role.Actor, id uint32, patch func(context.Context, quiz.Quiz) (quiz.Quiz, error)) (quiz.Quiz, error) {
		return c.QuizManager().UpdateQuiz(ctx, actor, id, patch)
	})

	Delete = endpoints.Delete(func(ctx context.Context, c *core.Core, actor role.Actor, id uint32) error {
		return c.QuizManager().DeleteQuiz(ctx, actor, id)
	})
)

// sections
var (
	PostSection = endpoints.Create[quiz.Section]("id", func(ctx context.Context, c *core.Core, actor role.Actor, quizID uint32, s quiz.Section) (quiz.Section, error) {
		return c.QuizManager().CreateSection(ctx, actor, quizID, s)
	})

	PutSection = endpoints.Update[quiz.Section](func(ctx context.Context, c *core.Core, actor role.Actor, id uint32, patch func(context.Context, quiz.Section) (quiz.Section, error)) (quiz.Section, error) {
		return c.QuizManager().UpdateSection(ctx, actor, id, patch)
	})

	DeleteSection = endpoints.Delete(func(ctx context.Context, c *core.Core, actor role.Actor, id uint32) error {
		return c.QuizManager().DeleteSection(ctx, actor, id)
	})

	ListSections = endpoints.Get[[]quiz.Section](func(ctx context.Context, c *core.Core, actor role.Actor, quizID uint32) ([]quiz.Section, error) {
		return c.QuizManager().Sections(ctx, actor, quizID)
	})
)

// questions
var (
	PostQuestion = endpoints.Create[quiz.Question]("id", func(ctx context.Context, c *core.Core, actor role.Actor, sectionID uint32, q quiz.Question) (quiz.Question, error) {
		return c.QuizManager().CreateQuestion(ctx, actor, sectionID, q)
	})

	PutQuestion = endpoints.Update[quiz.Question](func(ctx context.Context, c *core.Core, actor role.Actor, id uint32, patch func(context.Context, quiz.Question) (quiz.Question, error)) (quiz.Question, error) {
		return c.QuizManager().UpdateQuestion(ctx, actor, id, patch)
	})

	DeleteQuestion = endpoints.Delete(func(ctx context.Context, c *core.Core, actor role.Actor, id uint32) error {
		return c.QuizManager().DeleteQuestion(ctx, actor, id)
	})

	ListQuestions = endpoints.Get[[]quiz.Question](func(ctx context.Context, c *core.Core, actor role.Actor, sectionID uint32) ([]quiz.Question, error) {
		return c.QuizManager().Questions(ctx, actor, sectionID)
	})
)

// answers
var (
	PostAnswer = endpoints.Create[quiz.Answer]("id", func(ctx context.Context, c *core.Core, actor role.Actor, questionID uint32, a quiz.Answer) (quiz.Answer, error) {
		return c.QuizManager().CreateAnswer(ctx, actor, questionID, a)
	})

	PutAnswer = endpoints.Update[quiz.Answer](func(ctx context.Context, c *core.Core, actor role.Actor, id uint32, patch func(context.Context, quiz.Answer) (quiz.Answer, error)) (quiz.Answer, error) {
		return c.QuizManager().UpdateAnswer(ctx, actor, id, patch)
	})

	DeleteAnswer = endpoints.Delete(func(ctx context.Context, c *core.Core, actor role.Actor, id uint32) error {
		return c.QuizManager().DeleteAnswer(ctx, actor, id)
	})

	ListAnswers = endpoints.Get[[]quiz.Answer](func(ctx context.Context, c *core.Core, actor role.Actor, questionID uint32) ([]quiz.Answer, error) {
		return c.QuizManager().Answers(ctx, actor, questionID)
	})
)

// attempts
var (
	StartAttempt = endpoints.Action[quiz.Attempt](http.StatusCreated, func(ctx context.Context, c *core.Core, actor role.Actor, quizID uint32) (quiz.Attempt, error) {
		return c.QuizManager().StartAttempt(ctx, actor, quizID)
	})

	CompleteAttempt = endpoints.Action[quiz.Attempt](http.StatusOK, func(ctx context.Context, c *core.Core, actor role.Actor, id uint32) (quiz.Attempt, error) {
		return c.QuizManager().CompleteAttempt(ctx, actor, id)
	})

	GetAttempt = endpoints.Get[quiz.Attempt](func(ctx context.Context, c *core.Core, actor role.Actor, id uint32) (quiz.Attempt, error) {
		return c.QuizManager().AttemptByID(ctx, actor, id)
	})

	QuizAttempts = endpoints.Get[[]quiz.ScoredAttempt](func(ctx context.Context, c *core.Core, actor role.Actor, quizID uint32) ([]quiz.ScoredAttempt, error) {
		return c.QuizManager().QuizAttempts(ctx, actor, quizID)
	})

	Results = endpoints.Get[[]quiz.Result](func(ctx context.Context, c *core.Core, actor role.Actor, attemptID uint32) ([]quiz.Result, error) {
		return c.QuizManager().Results(ctx, actor, attemptID)
	})
)

// NewResult is the payload of a recorded answer
type NewResult struct {
	AnswerID uint32 `json:"answer_id"`
}

// RecordResult records the answer given to a question within an attempt
func RecordResult(ctx context.Context, c *core.Core, w http.ResponseWriter, r *http.Request) (result interface{}, aux interface{}, code int, rep *report.Report) {
	actor, err := endpoints.Actor(ctx)
	if err != nil {
		return endpoints.Fail(ctx, err)
	}

	attemptID, err := endpoints.Param(r, "id")
	if err != nil {
		return endpoints.Fail(ctx, err)
	}

	questionID, err := endpoints.Param(r, "question_id")
	if err != nil {
		return endpoints.Fail(ctx, err)
	}

	var payload NewResult
	if err = endpoints.Decode(r, &payload); err != nil {
		return endpoints.Fail(ctx, err)
	}

	res, err := c.QuizManager().RecordResult(ctx, actor, attemptID, questionID, payload.AnswerID)
	if err != nil {
		return endpoints.Fail(ctx, err)
	}

	return res, nil, http.StatusCreated, nil
}

// UserAttempts lists the scored attempts of a quiz taken by a user
func UserAttempts(ctx context.Context, c *core.Core, w http.ResponseWriter, r *http.Request) (result interface{}, aux interface{}, code int, rep *report.Report) {
	actor, err := endpoints.Actor(ctx)
	if err != nil {
		return endpoints.Fail(ctx, err)
	}

	quizID, err := endpoints.Param(r, "id")
	if err != nil {
		return endpoints.Fail(ctx, err)
	}

	userID, err := endpoints.Param(r, "user_id")
	if err != nil {
		return endpoints.Fail(ctx, err)
	}

	as, err := c.QuizManager().UserAttempts(ctx, actor, quizID, userID)
	if err != nil {
		return endpoints.Fail(ctx, err)
	}

	return as, nil, http.StatusOK, nil
}
