// Package http exposes FamBudget operations as a JSON API.
package http

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gorilla/mux"
	"github.com/rs/cors"

	"fambudget/internal/auth"
	applog "fambudget/internal/log"
	"fambudget/internal/middleware/ratelimit"
	"fambudget/internal/middleware/security"
	"fambudget/internal/middleware/trace"
	"fambudget/internal/services"
	"fambudget/internal/storage"
)

// Services are the operations the API serves.
type Services struct {
	Store      *storage.Store
	Auth       *auth.Service
	Directory  *services.Directory
	Families   *services.Families
	Categories *services.Categories
	Household  *services.Household
	Ledger     *services.Ledger
	Goals      *services.Goals
}

type Options struct {
	Addr               string
	AllowedOrigins     []string
	RateLimitPerMinute int
	Logger             *applog.Logger
}

// Server embeds http.Server; Shutdown also stops the rate limiter.
type Server struct {
	http.Server
	svc      Services
	limiter  *ratelimit.Limiter
	detector *security.Detector
	tracer   *trace.Middleware
	logger   *applog.Logger
}

func NewServer(opts Options, svc Services) *Server {
	logger := opts.Logger
	if logger == nil {
		logger = applog.New(applog.DefaultConfig())
	}
	logger = logger.WithComponent(applog.ComponentHTTP)

	s := &Server{
		svc:      svc,
		limiter:  ratelimit.NewLimiter(ratelimit.Config{RequestsPerMinute: opts.RateLimitPerMinute}),
		detector: security.NewDetector(),
		logger:   logger,
	}
	s.tracer = trace.NewMiddleware(s.detector.ClientIP)

	s.Server = http.Server{
		Addr:              opts.Addr,
		Handler:           s.handler(opts.AllowedOrigins),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}
	return s
}

// handler wraps the router with the middleware chain, outermost first:
// CORS, tracing, security headers, probe detection, request logger, rate
// limit.
func (s *Server) handler(origins []string) http.Handler {
	var h http.Handler = s.routes()
	h = s.limiter.Middleware(s.detector.ClientIP, func(w http.ResponseWriter, r *http.Request, retry int) {
		applog.FromContext(r.Context()).Warn("Rate limit exceeded", applog.FieldClientIP, s.detector.ClientIP(r))
		TooManyRequests(strconv.Itoa(max(retry, 1))).Write(w)
	})(h)
	h = applog.Middleware(s.logger)(h)
	h = s.detector.Middleware(h)
	h = security.Headers(security.DefaultHeadersConfig())(h)
	h = s.tracer.Handler(h)

	if len(origins) == 0 {
		origins = []string{"*"}
	}
	c := cors.New(cors.Options{
		AllowedOrigins:   origins,
		AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete, http.MethodOptions},
		AllowedHeaders:   []string{"Content-Type", "Authorization", trace.HeaderRequestID},
		ExposedHeaders:   []string{HeaderInvalidate, trace.HeaderRequestID, "Retry-After"},
		AllowCredentials: !(len(origins) == 1 && origins[0] == "*"),
		MaxAge:           600,
	})
	return c.Handler(h)
}

func (s *Server) routes() *mux.Router {
	r := mux.NewRouter()
	r.NotFoundHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ErrorResponse(http.StatusNotFound, "not_found", "No such route").Write(w)
	})
	r.MethodNotAllowedHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ErrorResponse(http.StatusMethodNotAllowed, "method_not_allowed", "Method not allowed").Write(w)
	})

	r.HandleFunc("/healthz", handleHealth).Methods(http.MethodGet)
	r.HandleFunc("/readyz", s.handleReady).Methods(http.MethodGet)

	r.HandleFunc("/auth/signup", s.handleSignUp).Methods(http.MethodPost)
	r.HandleFunc("/auth/signin", s.handleSignIn).Methods(http.MethodPost)
	r.HandleFunc("/auth/password-reset", s.handlePasswordReset).Methods(http.MethodPost)
	r.HandleFunc("/auth/password-reset/confirm", s.handlePasswordResetConfirm).Methods(http.MethodPost)

	api := r.NewRoute().Subrouter()
	api.Use(s.requireAuth)

	api.HandleFunc("/auth/signout", s.handleSignOut).Methods(http.MethodPost)
	api.HandleFunc("/auth/password", s.handleUpdatePassword).Methods(http.MethodPut)

	api.HandleFunc("/me", s.handleMe).Methods(http.MethodGet)
	api.HandleFunc("/family/members", s.handleFamilyMembers).Methods(http.MethodGet)
	api.HandleFunc("/families", s.handleCreateFamily).Methods(http.MethodPost)
	api.HandleFunc("/families/{id}/members", s.handleAddMember).Methods(http.MethodPost)
	api.HandleFunc("/families/{id}", s.handleDeleteFamily).Methods(http.MethodDelete)

	api.HandleFunc("/categories", s.handleListCategories).Methods(http.MethodGet)
	api.HandleFunc("/categories/exists", s.handleCategoryExists).Methods(http.MethodGet)
	api.HandleFunc("/categories", s.handleCreateCategory).Methods(http.MethodPost)
	api.HandleFunc("/categories/{id}", s.handleUpdateCategory).Methods(http.MethodPut)
	api.HandleFunc("/categories/{id}", s.handleDeleteCategory).Methods(http.MethodDelete)

	api.HandleFunc("/movements", s.handleListMovements).Methods(http.MethodGet)
	api.HandleFunc("/movements/total", s.handleMovementTotal).Methods(http.MethodGet)
	api.HandleFunc("/movements", s.handleCreateMovement).Methods(http.MethodPost)
	api.HandleFunc("/movements/{id}", s.handleUpdateMovement).Methods(http.MethodPut)
	api.HandleFunc("/balance", s.handleBalance).Methods(http.MethodGet)

	api.HandleFunc("/goals", s.handleListGoals).Methods(http.MethodGet)
	api.HandleFunc("/goals", s.handleCreateGoal).Methods(http.MethodPost)
	api.HandleFunc("/goals/{id}", s.handleEditGoal).Methods(http.MethodPut)
	api.HandleFunc("/goals/{id}", s.handleDeleteGoal).Methods(http.MethodDelete)
	api.HandleFunc("/goals/{id}/contributions", s.handleContribute).Methods(http.MethodPost)

	return r
}

// requireAuth accepts "Authorization: Bearer <token>" and stores the
// identity in the request context.
func (s *Server) requireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		header := r.Header.Get("Authorization")
		scheme, token, ok := strings.Cut(header, " ")
		if !ok || !strings.EqualFold(scheme, "Bearer") || strings.TrimSpace(token) == "" {
			ErrorResponse(http.StatusUnauthorized, "unauthorized", "Missing bearer token").Write(w)
			return
		}
		identity, err := s.svc.Auth.Authenticate(strings.TrimSpace(token))
		if err != nil {
			FromError(r, err).Write(w)
			return
		}
		next.ServeHTTP(w, r.WithContext(auth.WithIdentity(r.Context(), identity)))
	})
}

// Shutdown stops accepting requests, waits for in-flight ones and stops
// the rate limiter.
func (s *Server) Shutdown(ctx context.Context) error {
	s.limiter.Stop()
	slog.InfoContext(ctx, "HTTP server shutting down",
		"requests_served", s.tracer.Total(),
		"rate_limit_hits", s.limiter.Hits(),
		"suspicious_requests", s.detector.SuspiciousCount())
	return s.Server.Shutdown(ctx)
}

func handleHealth(w http.ResponseWriter, r *http.Request) {
	NewJSONResponse().Body(map[string]string{"status": "ok"}).Write(w)
}

func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()
	if err := s.svc.Store.Ping(ctx); err != nil {
		applog.FromContext(ctx).Error("Readiness check failed", applog.FieldError, err)
		ErrorResponse(http.StatusServiceUnavailable, "not_ready", "Database unavailable").Write(w)
		return
	}
	NewJSONResponse().Body(map[string]string{"status": "ready"}).Write(w)
}
