package api

import (
	"log/slog"
	"net/http"
	"time"
	"tle_zone_judge/internal/api/handler"
	"tle_zone_judge/internal/api/middleware"
	"tle_zone_judge/internal/app/service"
	"tle_zone_judge/internal/common/security"
	"tle_zone_judge/internal/platform/metrics"

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/jwtauth/v5"
)

// requestTimeout covers a full judging cycle: dispatch, the poll deadline and the final write.
const requestTimeout = 60 * time.Second

func NewRouter(
	log *slog.Logger,
	tokens *security.TokenIssuer,
	tokenTTL time.Duration,
	authService *service.AuthService,
	problemService *service.ProblemService,
	submissionService *service.SubmissionService,
	userService *service.UserService,
) http.Handler {
	r := chi.NewRouter()

	// Base Middlewares
	r.Use(chiMiddleware.RequestID)
	r.Use(chiMiddleware.RealIP)
	r.Use(middleware.RequestLogger(log))
	r.Use(chiMiddleware.Recoverer)
	r.Use(chiMiddleware.Timeout(requestTimeout))

	// Tokens come from "Authorization: Bearer T" or the session cookie.
	r.Use(jwtauth.Verify(tokens.Auth, jwtauth.TokenFromHeader, jwtauth.TokenFromCookie))
	authn := middleware.Authenticator(authService)

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("OK"))
	})
	r.Handle("/metrics", metrics.Handler())

	r.Route("/api/v1", func(v1 chi.Router) {
		authHandler := handler.NewAuthHandler(authService, tokenTTL)
		v1.Route("/auth", func(ar chi.Router) {
			authHandler.RegisterRoutes(ar, authn)
		})

		problemHandler := handler.NewProblemHandler(problemService)
		submissionHandler := handler.NewSubmissionHandler(submissionService)
		v1.Route("/problems", func(pr chi.Router) {
			problemHandler.RegisterRoutes(pr, authn)
			submissionHandler.RegisterProblemRoutes(pr, authn)
		})
		v1.Route("/submissions", func(sr chi.Router) {
			submissionHandler.RegisterRoutes(sr, authn)
		})

		userHandler := handler.NewUserHandler(userService)
		v1.Route("/users", func(ur chi.Router) {
			userHandler.RegisterRoutes(ur, authn)
		})
	})

	return r
}
