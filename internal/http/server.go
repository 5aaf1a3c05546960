// Package http exposes the expenses JSON API.
package http

import (
	"context"
	"net/http"
	"sync"
	"time"

	"expenses/internal/core"
	applog "expenses/internal/log"
	"expenses/internal/middleware/ratelimit"
	"expenses/internal/middleware/security"
	"expenses/internal/middleware/trace"
	"expenses/internal/services"
	"expenses/internal/store"
)

// maxBodyBytes bounds every request body.
const maxBodyBytes = 1 << 20

// ExpenseService is the owner-scoped expense API the handlers call.
type ExpenseService interface {
	List(ctx context.Context, owner string, f core.Filter) ([]core.Expense, error)
	Get(ctx context.Context, owner, id string) (core.Expense, error)
	Create(ctx context.Context, owner string, in core.NewExpense) (core.Expense, error)
	Update(ctx context.Context, owner, id string, p core.ExpensePatch) (core.Expense, error)
	Delete(ctx context.Context, owner, id string) error
	Report(ctx context.Context, owner, startDate, endDate string) (core.Report, error)
}

type AuthService interface {
	Register(ctx context.Context, in services.Registration) (services.Token, error)
	Login(ctx context.Context, in services.Credentials) (services.Token, error)
}

// TokenVerifier resolves a bearer token to a user id.
type TokenVerifier interface {
	Verify(token string) (string, error)
}

// Options wires the server's collaborators. Ready may be nil, in which case
// /readyz always succeeds.
type Options struct {
	Expenses      ExpenseService
	Auth          AuthService
	Verifier      TokenVerifier
	Ready         store.Pinger
	Logger        *applog.Logger
	AuthRateLimit int
}

// Server is an http.Server with the API routes and middleware installed.
type Server struct {
	http.Server

	expenses ExpenseService
	auth     AuthService
	verifier TokenVerifier
	ready    store.Pinger

	detector    *security.Detector
	tracer      *trace.Middleware
	authLimiter *ratelimit.Limiter

	shutdownOnce sync.Once
}

// NewServer configures routes and middleware, returning a ready-to-run server.
func NewServer(addr string, opts Options) *Server {
	logger := opts.Logger
	if logger == nil {
		logger = applog.New(applog.DefaultConfig())
	}

	detector := security.NewDetector()
	s := &Server{
		expenses:    opts.Expenses,
		auth:        opts.Auth,
		verifier:    opts.Verifier,
		ready:       opts.Ready,
		detector:    detector,
		tracer:      trace.NewMiddleware(detector.ExtractClientIP),
		authLimiter: ratelimit.NewLimiter(ratelimit.Config{RequestsPerMinute: opts.AuthRateLimit}),
	}

	mux := http.NewServeMux()

	limited := s.authLimiter.Middleware(detector.ExtractClientIP, func(w http.ResponseWriter, r *http.Request) {
		writeMessage(w, http.StatusTooManyRequests, "Too many requests, please try again later")
	})
	mux.Handle("POST /api/auth/register", limited(http.HandlerFunc(s.handleRegister)))
	mux.Handle("POST /api/auth/login", limited(http.HandlerFunc(s.handleLogin)))

	mux.Handle("GET /api/expenses", s.requireAuth(s.handleListExpenses))
	mux.Handle("POST /api/expenses", s.requireAuth(s.handleCreateExpense))
	mux.Handle("GET /api/expenses/reports", s.requireAuth(s.handleReport))
	mux.Handle("GET /api/expenses/{id}", s.requireAuth(s.handleGetExpense))
	mux.Handle("PATCH /api/expenses/{id}", s.requireAuth(s.handleUpdateExpense))
	mux.Handle("DELETE /api/expenses/{id}", s.requireAuth(s.handleDeleteExpense))

	mux.HandleFunc("GET /healthz", handleHealth)
	mux.HandleFunc("GET /readyz", s.handleReady)

	var handler http.Handler = mux
	handler = applog.Middleware(logger.WithComponent(applog.ComponentHTTP), trace.GetRequestID)(handler)
	handler = security.NewHeadersMiddleware(security.DefaultHeadersConfig()).Middleware(handler)
	handler = detector.Middleware(handler)
	handler = s.tracer.Middleware(handler)

	s.Server = http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       10 * time.Second,
		WriteTimeout:      10 * time.Second,
		IdleTimeout:       60 * time.Second,
		MaxHeaderBytes:    1 << 16, // 64KB
	}
	return s
}

// Shutdown stops the rate limiter and gracefully shuts the listener down.
// Only the first call has any effect.
func (s *Server) Shutdown(ctx context.Context) error {
	var shutdownErr error
	s.shutdownOnce.Do(func() {
		s.authLimiter.Stop()
		shutdownErr = s.Server.Shutdown(ctx)
	})
	return shutdownErr
}

func handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	if s.ready != nil {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		if err := s.ready.Ping(ctx); err != nil {
			applog.FromContext(r.Context()).WarnContext(r.Context(), "Readiness check failed", applog.FieldError, err)
			writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unavailable"})
			return
		}
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
}
