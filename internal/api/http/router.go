package http

import (
	"database/sql"
	nethttp "net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	auth "github.com/cnpmnc/assignment/internal/auth/middleware"
	"github.com/cnpmnc/assignment/internal/exam"
	"github.com/cnpmnc/assignment/internal/rbac"
	"github.com/cnpmnc/assignment/internal/submission"
	"github.com/cnpmnc/assignment/internal/users"
)

type RouterConfig struct {
	DB          *sql.DB
	Auth        *auth.AuthService
	Users       *users.SQLStore
	Classes     ClassStore
	Exams       exam.Store
	Submissions *submission.Service

	EnableLocalAuth bool
	CORSOrigins     []string
	RequestTimeout  time.Duration
}

// NewRouter mounts every route. Protected routes go through
// JWT → role from DB → RBAC.
func NewRouter(c RouterConfig) nethttp.Handler {
	if c.RequestTimeout == 0 {
		c.RequestTimeout = 30 * time.Second
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID, middleware.RealIP, middleware.Logger, middleware.Recoverer)
	r.Use(middleware.Timeout(c.RequestTimeout))
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   c.CORSOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Authorization", "Content-Type"},
		ExposedHeaders:   []string{"Content-Length"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	if c.EnableLocalAuth {
		r.Post("/auth/login", auth.LoginHandler(c.Auth, c.Users))
	}

	r.Group(func(pr chi.Router) {
		pr.Use(auth.JWTMiddleware(c.Auth), auth.AttachRoleFromDB(c.DB))

		pr.Route("/api", func(ar chi.Router) {
			// classes
			ar.With(rbac.Require(rbac.PermClassCreate)).Post("/classes", CreateClassHandler(c.Classes))
			ar.With(rbac.Require(rbac.PermClassList)).Get("/classes", ListClassesHandler(c.Classes))
			ar.With(rbac.Require(rbac.PermClassJoin)).Post("/classes/join", JoinClassHandler(c.Classes))
			ar.With(rbac.Require(rbac.PermClassView)).Get("/classes/{classID}", GetClassHandler(c.Classes))
			ar.With(rbac.Require(rbac.PermClassUpdate)).Put("/classes/{classID}", UpdateClassHandler(c.Classes))
			ar.With(rbac.Require(rbac.PermClassDelete)).Delete("/classes/{classID}", DeleteClassHandler(c.Classes))
			ar.With(rbac.Require(rbac.PermClassView)).
				Get("/classes/{classID}/students", ListClassStudentsHandler(c.Classes))
			ar.With(rbac.Require(rbac.PermClassEnroll)).
				Post("/classes/{classID}/students", EnrollStudentHandler(c.Classes, c.Users))
			ar.With(rbac.Require(rbac.PermTestCreate)).
				Post("/classes/{classID}/tests", CreateTestHandler(c.Classes, c.Exams))
			ar.With(rbac.Require(rbac.PermTestView)).
				Get("/classes/{classID}/tests", ListClassTestsHandler(c.Classes, c.Exams))

			// tests
			ar.With(rbac.Require(rbac.PermTestJoin)).Post("/tests/join", JoinTestHandler(c.Submissions))
			ar.With(rbac.Require(rbac.PermTestView)).Get("/tests/{testID}", GetTestHandler(c.Classes, c.Exams))
			ar.With(rbac.Require(rbac.PermTestUpdate)).Put("/tests/{testID}", UpdateTestHandler(c.Classes, c.Exams))
			ar.With(rbac.Require(rbac.PermTestUpdate)).
				Post("/tests/{testID}/publish", PublishTestHandler(c.Classes, c.Exams))
			ar.With(rbac.Require(rbac.PermTestDelete)).Delete("/tests/{testID}", DeleteTestHandler(c.Classes, c.Exams))
			ar.With(rbac.Require(rbac.PermQuestionCreate)).
				Post("/tests/{testID}/questions", AddQuestionHandler(c.Classes, c.Exams))
			ar.With(rbac.Require(rbac.PermQuestionView)).
				Get("/tests/{testID}/questions", ListQuestionsHandler(c.Classes, c.Exams))
			ar.With(rbac.Require(rbac.PermResultViewAll)).
				Get("/tests/{testID}/results", TestResultsHandler(c.Classes, c.Exams, c.Submissions))

			// submissions
			ar.With(rbac.Require(rbac.PermSubmissionCreate)).Post("/submissions", SubmitHandler(c.Submissions))
			ar.With(rbac.RequireAny(rbac.PermSubmissionOwn, rbac.PermResultViewAll)).
				Get("/submissions/{submissionID}/result", ResultHandler(c.Classes, c.Exams, c.Submissions))

			// the caller's own views
			ar.With(rbac.Require(rbac.PermTestJoin)).Get("/me/tests", StudentTestsHandler(c.Exams))
			ar.With(rbac.Require(rbac.PermGradeViewOwn)).Get("/me/grades", GradesHandler(c.Submissions))

			// users
			ar.With(rbac.Require(rbac.PermUserCreate)).Post("/users", CreateUsersHandler(c.Users))
			ar.With(rbac.Require(rbac.PermUserList)).Get("/users", ListUsersHandler(c.Users))
		})
	})

	r.Get("/healthz", func(w nethttp.ResponseWriter, r *nethttp.Request) { w.WriteHeader(nethttp.StatusOK) })
	r.Get("/readyz", func(w nethttp.ResponseWriter, r *nethttp.Request) {
		if err := c.DB.PingContext(r.Context()); err != nil {
			nethttp.Error(w, "db unavailable", nethttp.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(nethttp.StatusOK)
	})
	return r
}
