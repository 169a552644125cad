package server

import (
	"context"
	"net/http"
	"time"

	"github.com/agubarev/handbook/internal/core"
	"github.com/agubarev/handbook/internal/server/endpoints"
	epauth "github.com/agubarev/handbook/internal/server/endpoints/auth"
	epmanual "github.com/agubarev/handbook/internal/server/endpoints/manual"
	epmember "github.com/agubarev/handbook/internal/server/endpoints/member"
	epquiz "github.com/agubarev/handbook/internal/server/endpoints/quiz"
	eprole "github.com/agubarev/handbook/internal/server/endpoints/role"
	"github.com/agubarev/handbook/pkg/auth"
	"github.com/go-chi/chi"
	"github.com/go-chi/chi/middleware"
	"github.com/pkg/errors"
	"go.uber.org/zap"
)

// time given to the in-flight requests upon shutdown
const shutdownTimeout = 10 * time.Second

// Server serves the HTTP API
type Server struct {
	core *core.Core
	auth *auth.Authenticator
}

// New initializes the HTTP server
func New(c *core.Core, a *auth.Authenticator) (*Server, error) {
	if c == nil {
		return nil, core.ErrNilCore
	}

	if a == nil {
		return nil, auth.ErrNilAuthenticator
	}

	s := &Server{
		core: c,
		auth: a,
	}

	return s, nil
}

// Router returns the routing tree of this server
func (s *Server) Router() chi.Router {
	c := s.core

	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(MiddlewareMetrics(c.Metrics()))
	r.Use(MiddlewareLogging(c.Logger()))

	// exposition is left unauthenticated
	r.Method(http.MethodGet, "/metrics", c.Metrics().Handler())

	//---------------------------------------------------------------------------
	// API ROUTING (V1)
	//---------------------------------------------------------------------------
	r.Route("/api/v1", func(r chi.Router) {
		r.Use(s.auth.Middleware)

		r.Route("/auth", func(r chi.Router) {
			r.Method(http.MethodPost, "/logout", endpoints.NewEndpoint(c, epauth.Logout(s.auth), "logout"))
		})

		r.Route("/businesses", func(r chi.Router) {
			r.Method(http.MethodPost, "/", endpoints.NewEndpoint(c, epmember.Register, "post_business"))
			r.Method(http.MethodPut, "/{id}/accept", endpoints.NewEndpoint(c, epmember.Accept, "accept_membership"))
		})

		r.Route("/members", func(r chi.Router) {
			r.Method(http.MethodGet, "/", endpoints.NewEndpoint(c, epmember.List, "list_memberships"))
			r.Method(http.MethodPost, "/{user_id}", endpoints.NewEndpoint(c, epmember.Invite, "post_member"))
			r.Method(http.MethodDelete, "/{user_id}", endpoints.NewEndpoint(c, epmember.Delete, "delete_member"))
			r.Method(http.MethodGet, "/{user_id}/roles", endpoints.NewEndpoint(c, eprole.MemberRoles, "list_member_roles"))
		})

		r.Method(http.MethodGet, "/events", endpoints.NewEndpoint(c, epmember.Events, "list_events"))

		r.Route("/departments", func(r chi.Router) {
			r.Method(http.MethodGet, "/", endpoints.NewEndpoint(c, eprole.ListDepartments, "list_departments"))
			r.Method(http.MethodPost, "/", endpoints.NewEndpoint(c, eprole.PostDepartment, "post_department"))
			r.Method(http.MethodPut, "/{id}", endpoints.NewEndpoint(c, eprole.PutDepartment, "put_department"))
			r.Method(http.MethodDelete, "/{id}", endpoints.NewEndpoint(c, eprole.DeleteDepartment, "delete_department"))
			r.Method(http.MethodGet, "/{id}/roles", endpoints.NewEndpoint(c, eprole.ListRoles, "list_roles"))
			r.Method(http.MethodPost, "/{id}/roles", endpoints.NewEndpoint(c, eprole.PostRole, "post_role"))
		})

		r.Route("/roles", func(r chi.Router) {
			r.Method(http.MethodPut, "/{id}", endpoints.NewEndpoint(c, eprole.PutRole, "put_role"))
			r.Method(http.MethodDelete, "/{id}", endpoints.NewEndpoint(c, eprole.DeleteRole, "delete_role"))
			r.Method(http.MethodPut, "/{id}/permission", endpoints.NewEndpoint(c, eprole.PutPermission, "put_permission"))
			r.Method(http.MethodGet, "/{id}/users", endpoints.NewEndpoint(c, eprole.RoleMembers, "list_role_members"))
			r.Method(http.MethodPost, "/{id}/users/{user_id}", endpoints.NewEndpoint(c, eprole.AssignUser, "assign_user"))
			r.Method(http.MethodDelete, "/{id}/users/{user_id}", endpoints.NewEndpoint(c, eprole.UnassignUser, "unassign_user"))
		})

		r.Route("/manuals", func(r chi.Router) {
			r.Method(http.MethodGet, "/", endpoints.NewEndpoint(c, epmanual.List, "list_manuals"))
			r.Method(http.MethodPost, "/", endpoints.NewEndpoint(c, epmanual.Post, "post_manual"))
			r.Method(http.MethodGet, "/{id}", endpoints.NewEndpoint(c, epmanual.Get, "get_manual"))
			r.Method(http.MethodPut, "/{id}", endpoints.NewEndpoint(c, epmanual.Put, "put_manual"))
			r.Method(http.MethodDelete, "/{id}", endpoints.NewEndpoint(c, epmanual.Delete, "delete_manual"))

			r.Method(http.MethodGet, "/{id}/sections", endpoints.NewEndpoint(c, epmanual.ListSections, "list_sections"))
			r.Method(http.MethodPost, "/{id}/sections", endpoints.NewEndpoint(c, epmanual.PostSection, "post_section"))
			r.Method(http.MethodPut, "/sections/{id}", endpoints.NewEndpoint(c, epmanual.PutSection, "put_section"))
			r.Method(http.MethodDelete, "/sections/{id}", endpoints.NewEndpoint(c, epmanual.DeleteSection, "delete_section"))

			r.Method(http.MethodGet, "/sections/{id}/policies", endpoints.NewEndpoint(c, epmanual.ListPolicies, "list_policies"))
			r.Method(http.MethodPost, "/sections/{id}/policies", endpoints.NewEndpoint(c, epmanual.PostPolicy, "post_policy"))
			r.Method(http.MethodPut, "/policies/{id}", endpoints.NewEndpoint(c, epmanual.PutPolicy, "put_policy"))
			r.Method(http.MethodDelete, "/policies/{id}", endpoints.NewEndpoint(c, epmanual.DeletePolicy, "delete_policy"))

			r.Method(http.MethodGet, "/policies/{id}/contents", endpoints.NewEndpoint(c, epmanual.ListContents, "list_contents"))
			r.Method(http.MethodPost, "/policies/{id}/contents", endpoints.NewEndpoint(c, epmanual.PostContent, "post_content"))
			r.Method(http.MethodGet, "/contents/{id}", endpoints.NewEndpoint(c, epmanual.GetContent, "get_content"))
			r.Method(http.MethodPut, "/contents/{id}", endpoints.NewEndpoint(c, epmanual.PutContent, "put_content"))
			r.Method(http.MethodDelete, "/contents/{id}", endpoints.NewEndpoint(c, epmanual.DeleteContent, "delete_content"))
			r.Method(http.MethodPost, "/contents/{id}/read", endpoints.NewEndpoint(c, epmanual.Read, "read_content"))
			r.Method(http.MethodDelete, "/contents/{id}/read", endpoints.NewEndpoint(c, epmanual.Unread, "unread_content"))

			r.Method(http.MethodPost, "/{id}/assignments", endpoints.NewEndpoint(c, epmanual.PostAssignment, "post_assignment"))
			r.Method(http.MethodPut, "/assignments/{id}", endpoints.NewEndpoint(c, epmanual.PutAssignment, "put_assignment"))
			r.Method(http.MethodDelete, "/assignments/{id}", endpoints.NewEndpoint(c, epmanual.DeleteAssignment, "delete_assignment"))

			r.Method(http.MethodGet, "/{id}/quizzes", endpoints.NewEndpoint(c, epquiz.List, "list_quizzes"))
			r.Method(http.MethodPost, "/{id}/quizzes", endpoints.NewEndpoint(c, epquiz.Post, "post_quiz"))
		})

		r.Route("/quizzes", func(r chi.Router) {
			r.Method(http.MethodGet, "/{id}", endpoints.NewEndpoint(c, epquiz.Get, "get_quiz"))
			r.Method(http.MethodPut, "/{id}", endpoints.NewEndpoint(c, epquiz.Put, "put_quiz"))
			r.Method(http.MethodDelete, "/{id}", endpoints.NewEndpoint(c, epquiz.Delete, "delete_quiz"))

			r.Method(http.MethodGet, "/{id}/sections", endpoints.NewEndpoint(c, epquiz.ListSections, "list_quiz_sections"))
			r.Method(http.MethodPost, "/{id}/sections", endpoints.NewEndpoint(c, epquiz.PostSection, "post_quiz_section"))
			r.Method(http.MethodPut, "/sections/{id}", endpoints.NewEndpoint(c, epquiz.PutSection, "put_quiz_section"))
			r.Method(http.MethodDelete, "/sections/{id}", endpoints.NewEndpoint(c, epquiz.DeleteSection, "delete_quiz_section"))

			r.Method(http.MethodGet, "/sections/{id}/questions", endpoints.NewEndpoint(c, epquiz.ListQuestions, "list_questions"))
			r.Method(http.MethodPost, "/sections/{id}/questions", endpoints.NewEndpoint(c, epquiz.PostQuestion, "post_question"))
			r.Method(http.MethodPut, "/questions/{id}", endpoints.NewEndpoint(c, epquiz.PutQuestion, "put_question"))
			r.Method(http.MethodDelete, "/questions/{id}", endpoints.NewEndpoint(c, epquiz.DeleteQuestion, "delete_question"))

			r.Method(http.MethodGet, "/questions/{id}/answers", endpoints.NewEndpoint(c, epquiz.ListAnswers, "list_answers"))
			r.Method(http.MethodPost, "/questions/{id}/answers", endpoints.NewEndpoint(c, epquiz.PostAnswer, "post_answer"))
			r.Method(http.MethodPut, "/answers/{id}", endpoints.NewEndpoint(c, epquiz.PutAnswer, "put_answer"))
			r.Method(http.MethodDelete, "/answers/{id}", endpoints.NewEndpoint(c, epquiz.DeleteAnswer, "delete_answer"))

			r.Method(http.MethodGet, "/{id}/attempts", endpoints.NewEndpoint(c, epquiz.QuizAttempts, "list_quiz_attempts"))
			r.Method(http.MethodPost, "/{id}/attempts", endpoints.NewEndpoint(c, epquiz.StartAttempt, "start_attempt"))
			r.Method(http.MethodGet, "/{id}/attempts/users/{user_id}", endpoints.NewEndpoint(c, epquiz.UserAttempts, "list_user_attempts"))
			r.Method(http.MethodGet, "/attempts/{id}", endpoints.NewEndpoint(c, epquiz.GetAttempt, "get_attempt"))
			r.Method(http.MethodPut, "/attempts/{id}", endpoints.NewEndpoint(c, epquiz.CompleteAttempt, "complete_attempt"))
			r.Method(http.MethodGet, "/attempts/{id}/results", endpoints.NewEndpoint(c, epquiz.Results, "list_results"))
			r.Method(http.MethodPost, "/attempts/{id}/results/{question_id}", endpoints.NewEndpoint(c, epquiz.RecordResult, "record_result"))
		})
	})

	return r
}

// Run serves the API until the context is cancelled, then lets
// the in-flight requests finish
func (s *Server) Run(ctx context.Context, addr string) error {
	logger := s.core.Logger()

	srv := &http.Server{
		Addr:              addr,
		Handler:           s.Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errch := make(chan error, 1)

	go func() {
		logger.Info("listening", zap.String("addr", addr))
		errch <- srv.ListenAndServe()
	}()

	select {
	case err := <-errch:
		return errors.Wrap(err, "server failed")
	case <-ctx.Done():
	}

	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		return errors.Wrap(err, "failed to shut down gracefully")
	}

	return nil
}
