// Package server sets up the HTTP server, router, and all route definitions.
//
// SERVER ARCHITECTURE:
// This package is the "wiring" layer. It connects handlers, middleware, and routes,
// and decides:
// - Which method + path pairs map to which handler functions
// - What middleware runs on which routes
// - How the server starts and stops gracefully
//
// DEPENDENCY INJECTION FLOW:
// main.go loads config, opens the database and builds the executor, then:
//
//	server.New(cfg, Deps{DB, Executor}) creates:
//	  SnippetService, UserService, AuthService → handlers → chi router
//
// This is the "composition root" pattern: all dependencies are wired in one
// place (New/routes), rather than scattered across the codebase.
package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"

	"github.com/sakif/snippet-api/internal/auth"
	"github.com/sakif/snippet-api/internal/config"
	"github.com/sakif/snippet-api/internal/executor"
	"github.com/sakif/snippet-api/internal/handler"
	"github.com/sakif/snippet-api/internal/middleware"
	"github.com/sakif/snippet-api/internal/pagination"
	sqliteRepo "github.com/sakif/snippet-api/internal/repository/sqlite"
	"github.com/sakif/snippet-api/internal/service"
)

// Deps are the long-lived resources the server uses but does not own.
// main.go opens and closes them.
type Deps struct {
	DB       *sqliteRepo.DB
	Executor executor.Executor
	// GitHub overrides the provider built from config; tests use it.
	GitHub handler.GitHubExchanger
}

// Server represents the HTTP server and all its dependencies.
type Server struct {
	router  *chi.Mux
	config  *config.Config
	logger  *slog.Logger
	metrics *middleware.Metrics
	limiter *middleware.IPRateLimiter
	stop    chan struct{}
}

// New builds the services, handlers and router.
//
// Each layer only receives what it needs:
// - Services get repository interfaces (not the concrete sqlite.DB)
// - Handlers get services (not the repository or DB)
func New(cfg *config.Config, deps Deps, logger *slog.Logger) (*Server, error) {
	if deps.DB == nil {
		return nil, errors.New("server: a database is required")
	}
	if deps.Executor == nil {
		deps.Executor = executor.Disabled{}
	}

	tokens, err := auth.NewTokenService(cfg.Auth.JWTSecret, cfg.Auth.TokenTTL)
	if err != nil {
		return nil, fmt.Errorf("server: %w", err)
	}

	github := deps.GitHub
	if github == nil && cfg.Auth.GitHubEnabled() {
		github = auth.NewGitHubProvider(cfg.Auth.GitHubClientID, cfg.Auth.GitHubClientSecret, cfg.Auth.GitHubCallbackURL)
	}

	s := &Server{
		router:  chi.NewRouter(),
		config:  cfg,
		logger:  logger,
		metrics: middleware.NewMetrics(),
		stop:    make(chan struct{}),
	}
	if cfg.RateLimit.Enabled {
		s.limiter = middleware.NewIPRateLimiter(cfg.RateLimit.RPS, cfg.RateLimit.Burst)
		s.limiter.OnReject = s.metrics.Throttled
		s.limiter.StartSweeper(time.Minute, s.stop)
	}

	snippetService := service.NewSnippetService(deps.DB, logger)
	userService := service.NewUserService(deps.DB, logger)
	authService := service.NewAuthService(deps.DB, tokens, auth.NewPasswordServiceWithCost(cfg.Auth.PasswordCost), logger)

	paginator := pagination.New(cfg.Pagination.PageSize)
	s.routes(routeHandlers{
		snippets: handler.NewSnippetHandler(snippetService, paginator, deps.Executor, logger),
		users:    handler.NewUserHandler(userService, paginator, logger),
		auth:     handler.NewAuthHandler(authService, userService, github, cfg.Auth.CookieSecure, logger),
		health:   handler.NewHealthHandler(deps.DB, logger),
		github:   github != nil,
		tokens:   tokens,
	})

	return s, nil
}

type routeHandlers struct {
	snippets *handler.SnippetHandler
	users    *handler.UserHandler
	auth     *handler.AuthHandler
	health   *handler.HealthHandler
	github   bool
	tokens   *auth.TokenService
}

// routes is the dispatch table.
//
// ROUTE STRUCTURE:
// GET    /snippets                  → list (paginated)
// POST   /snippets                  → create            [auth]
// GET    /snippets/{id}             → retrieve
// PUT    /snippets/{id}             → full update
// PATCH  /snippets/{id}             → partial update
// DELETE /snippets/{id}             → delete
// GET    /snippets/{id}/highlight   → HTML rendering
// POST   /snippets/{id}/run         → sandboxed run     [auth]
// GET    /users, /users/{id}        → users with their snippet ids
// POST   /auth/register|login|logout, GET /auth/me [auth]
// GET    /auth/github/login|callback (only when configured)
// GET    /healthz, /metrics
//
// MIDDLEWARE ORDER MATTERS:
// 1. RequestID: assigns a unique ID to each request (for tracing)
// 2. RealIP: extracts the client IP from proxy headers (the rate limiter keys on it)
// 3. Metrics: counts every request, including ones rejected further down
// 4. Authenticate: resolves the caller from the Bearer header or cookie
// 5. Logger: runs after Authenticate so log lines carry the user id
// 6. Recoverer: catches panics and returns 500 instead of crashing
// 7. RateLimit: throttles writes per client IP
func (s *Server) routes(h routeHandlers) {
	r := s.router

	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(s.metrics.Middleware)
	r.Use(auth.Authenticate(h.tokens))
	r.Use(middleware.Logger(s.logger))
	r.Use(chimiddleware.Recoverer)
	if s.limiter != nil {
		r.Use(s.limiter.Middleware)
	}

	r.Get("/healthz", h.health.HandleHealth)
	r.Handle("/metrics", s.metrics.Handler())

	r.Route("/snippets", func(r chi.Router) {
		r.Get("/", h.snippets.HandleList)
		r.With(auth.RequireAuth).Post("/", h.snippets.HandleCreate)

		r.Route("/{id}", func(r chi.Router) {
			r.Get("/", h.snippets.HandleGet)
			r.Put("/", h.snippets.HandleUpdate)
			r.Patch("/", h.snippets.HandlePatch)
			r.Delete("/", h.snippets.HandleDelete)
			r.Get("/highlight", h.snippets.HandleHighlight)
			r.With(auth.RequireAuth).Post("/run", h.snippets.HandleRun)
		})
	})

	r.Route("/users", func(r chi.Router) {
		r.Get("/", h.users.HandleList)
		r.Get("/{id}", h.users.HandleGet)
	})

	r.Route("/auth", func(r chi.Router) {
		r.Post("/register", h.auth.HandleRegister)
		r.Post("/login", h.auth.HandleLogin)
		r.Post("/logout", h.auth.HandleLogout)
		r.With(auth.RequireAuth).Get("/me", h.auth.HandleMe)

		if h.github {
			r.Get("/github/login", h.auth.HandleGitHubLogin)
			r.Get("/github/callback", h.auth.HandleGitHubCallback)
		}
	})
}

// Handler exposes the router, mainly for httptest.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Run listens on http.port and serves until ctx is cancelled.
func (s *Server) Run(ctx context.Context) error {
	ln, err := net.Listen("tcp", fmt.Sprintf(":%d", s.config.HTTP.Port))
	if err != nil {
		return fmt.Errorf("server: listen: %w", err)
	}
	return s.Serve(ctx, ln)
}

// Serve serves HTTP on ln until ctx is cancelled, then shuts down gracefully.
//
// GRACEFUL SHUTDOWN:
// 1. Stop accepting new HTTP connections
// 2. Wait up to http.shutdown_timeout for in-flight requests to finish
// 3. Stop background work (the rate limiter sweeper)
//
// Request contexts are not derived from ctx: cancelling ctx starts the
// shutdown, it must not abort the requests the shutdown is waiting for.
// main.go cancels ctx on SIGINT/SIGTERM and closes the database afterwards.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	srv := &http.Server{
		Handler:      s.router,
		ReadTimeout:  s.config.HTTP.ReadTimeout,
		WriteTimeout: s.config.HTTP.WriteTimeout,
		IdleTimeout:  s.config.HTTP.IdleTimeout,
	}
	defer close(s.stop)

	serverErrors := make(chan error, 1)
	go func() {
		s.logger.Info("server starting",
			slog.String("addr", ln.Addr().String()),
			slog.String("database", s.config.Database.Path),
		)
		serverErrors <- srv.Serve(ln)
	}()

	select {
	case err := <-serverErrors:
		if !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server error: %w", err)
		}
		return nil

	case <-ctx.Done():
		s.logger.Info("shutdown signal received")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), s.config.HTTP.ShutdownTimeout)
		defer cancel()

		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("graceful shutdown failed: %w", err)
		}
		s.logger.Info("server stopped gracefully")
		return nil
	}
}
