package api

import (
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/marmos91/filerealm/internal/logger"
	"github.com/marmos91/filerealm/pkg/api/auth"
	"github.com/marmos91/filerealm/pkg/api/handlers"
	apiMiddleware "github.com/marmos91/filerealm/pkg/api/middleware"
)

// Dependencies are the services the API exposes.
type Dependencies struct {
	// RealmName is reported by the readiness probe.
	RealmName string

	// Authenticator checks login credentials.
	Authenticator handlers.Authenticator

	// Users backs the user listing and the readiness probe.
	Users interface {
		handlers.UserDirectory
		handlers.UserCounter
	}

	// Groups resolves directory groups. Nil disables the groups endpoint
	// (it answers 503).
	Groups handlers.GroupResolver

	// Metrics serves /metrics when non-nil.
	Metrics http.Handler
}

// NewRouter creates the chi router with all middleware and routes.
//
// Routes:
//   - GET /health - Liveness probe
//   - GET /health/ready - Readiness probe
//   - GET /metrics - Prometheus metrics (when enabled)
//   - POST /api/v1/auth/login - Password login, returns an access token
//   - GET /api/v1/auth/me - Current user
//   - GET /api/v1/users - Usernames in the users file (admin only)
//   - GET /api/v1/users/{username}/groups - Directory groups (self or admin)
func NewRouter(deps Dependencies, jwtService *auth.JWTService) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(requestLogger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(30 * time.Second))

	healthHandler := handlers.NewHealthHandler(deps.RealmName, deps.Users)
	r.Route("/health", func(r chi.Router) {
		r.Get("/", healthHandler.Liveness)
		r.Get("/ready", healthHandler.Readiness)
	})

	r.Get("/", func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, "/health", http.StatusTemporaryRedirect)
	})

	if deps.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", deps.Metrics)
	}

	authHandler := handlers.NewAuthHandler(deps.Authenticator, jwtService)
	userHandler := handlers.NewUserHandler(deps.Users, deps.Groups)

	r.Route("/api/v1", func(r chi.Router) {
		r.Route("/auth", func(r chi.Router) {
			r.Post("/login", authHandler.Login)

			r.Group(func(r chi.Router) {
				r.Use(apiMiddleware.JWTAuth(jwtService))
				r.Get("/me", authHandler.Me)
			})
		})

		r.Route("/users", func(r chi.Router) {
			r.Use(apiMiddleware.JWTAuth(jwtService))

			r.With(apiMiddleware.RequireRole(auth.RoleAdmin)).Get("/", userHandler.List)

			// Self-access allowed; the handler does its own authorization.
			r.Get("/{username}/groups", userHandler.Groups)
		})
	})

	return r
}

// isHealthPath returns true if the request path is a healthcheck endpoint.
func isHealthPath(path string) bool {
	return path == "/health" || strings.HasPrefix(path, "/health/")
}

// requestLogger logs requests with the internal logger and seeds the
// request's LogContext. Healthcheck requests are logged at DEBUG.
func requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		requestID := middleware.GetReqID(r.Context())

		lc := logger.NewLogContext(r.RemoteAddr)
		lc.RequestID = requestID
		r = r.WithContext(logger.WithContext(r.Context(), lc))

		logger.Debug("API request started",
			"request_id", requestID,
			"method", r.Method,
			"path", r.URL.Path,
			"remote_addr", r.RemoteAddr,
		)

		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		logArgs := []any{
			"request_id", requestID,
			"method", r.Method,
			"path", r.URL.Path,
			"status", ww.Status(),
			"bytes", ww.BytesWritten(),
			"duration", time.Since(start).String(),
		}
		if isHealthPath(r.URL.Path) {
			logger.Debug("API request completed", logArgs...)
		} else {
			logger.Info("API request completed", logArgs...)
		}
	})
}
