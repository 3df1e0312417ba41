// Package http implements the REST API for the housing draw service:
// group formation, membership writes, rosters, and operational endpoints.
package http

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/meonBot/master-vesta-2/internal/application/command"
	"github.com/meonBot/master-vesta-2/internal/application/query"
)

// ══════════════════════════════════════════════════════════════════════════════
// SERVER CONFIGURATION
// ══════════════════════════════════════════════════════════════════════════════

// Config contains HTTP server configuration.
type Config struct {
	// Host - address to bind (default: "0.0.0.0").
	Host string

	// Port - port to listen on (default: 8080).
	Port int

	// ReadTimeout - maximum duration for reading the entire request.
	ReadTimeout time.Duration

	// WriteTimeout - maximum duration for writing the response.
	WriteTimeout time.Duration

	// IdleTimeout - maximum duration for idle connections.
	IdleTimeout time.Duration

	// ShutdownTimeout - grace period for in-flight requests on stop.
	ShutdownTimeout time.Duration

	// EnableMetrics - expose the Prometheus /metrics endpoint.
	EnableMetrics bool
}

// DefaultConfig returns default server configuration.
func DefaultConfig() Config {
	return Config{
		Host:            "0.0.0.0",
		Port:            8080,
		ReadTimeout:     15 * time.Second,
		WriteTimeout:    15 * time.Second,
		IdleTimeout:     60 * time.Second,
		ShutdownTimeout: 10 * time.Second,
		EnableMetrics:   true,
	}
}

// Address returns the server address string.
func (c Config) Address() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// ══════════════════════════════════════════════════════════════════════════════
// DEPENDENCIES
// ══════════════════════════════════════════════════════════════════════════════

// HealthCheckFunc probes one dependency; nil error means healthy.
type HealthCheckFunc func(ctx context.Context) error

// Dependencies contains all handlers and hooks the server routes to.
type Dependencies struct {
	// Command handlers (CQRS write side)
	CreateDraw        *command.CreateDrawHandler
	AdvanceDraw       *command.AdvanceDrawHandler
	RegisterUser      *command.RegisterUserHandler
	CreateGroup       *command.CreateGroupHandler
	RequestMembership *command.RequestMembershipHandler
	InviteMember      *command.InviteMemberHandler
	AcceptMembership  *command.AcceptMembershipHandler
	LeaveGroup        *command.LeaveGroupHandler
	LockMembership    *command.LockMembershipHandler
	BeginFinalizing   *command.BeginFinalizingHandler
	AssignSuite       *command.AssignSuiteHandler
	TeardownDraw      *command.TeardownDrawHandler

	// Query handlers (CQRS read side)
	GetGroup           *query.GetGroupHandler
	GetUserMemberships *query.GetUserMembershipsHandler

	// HealthChecks are probed by /healthz, keyed by dependency name.
	HealthChecks map[string]HealthCheckFunc

	// Logger for request logging and handler errors.
	Logger *slog.Logger

	// Registerer for HTTP metrics. Nil disables metric collection.
	Registerer prometheus.Registerer
}

// ══════════════════════════════════════════════════════════════════════════════
// SERVER
// ══════════════════════════════════════════════════════════════════════════════

// Server is the HTTP server for the housing draw API.
type Server struct {
	config  Config
	deps    Dependencies
	logger  *slog.Logger
	metrics *httpMetrics
	srv     *http.Server
}

// NewServer creates a configured, unstarted server.
func NewServer(config Config, deps Dependencies) *Server {
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}

	s := &Server{
		config: config,
		deps:   deps,
		logger: logger,
	}
	if deps.Registerer != nil {
		s.metrics = newHTTPMetrics(deps.Registerer)
	}

	s.srv = &http.Server{
		Addr:         config.Address(),
		Handler:      s.routes(),
		ReadTimeout:  config.ReadTimeout,
		WriteTimeout: config.WriteTimeout,
		IdleTimeout:  config.IdleTimeout,
	}
	return s
}

func (s *Server) routes() http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(s.recoverPanics)
	r.Use(s.logRequests)
	if s.metrics != nil {
		r.Use(s.metrics.instrument)
	}

	r.Get("/healthz", s.handleHealth)
	if s.config.EnableMetrics {
		r.Method(http.MethodGet, "/metrics", promhttp.Handler())
	}

	r.Route("/api/v1", func(r chi.Router) {
		r.Post("/draws", s.handleCreateDraw)

		r.Route("/draws/{drawID}", func(r chi.Router) {
			r.Post("/status", s.handleAdvanceDraw)
			r.Post("/users", s.handleRegisterUser)
			r.Post("/groups", s.handleCreateGroup)
			r.Delete("/groups", s.handleTeardownDraw)
		})

		r.Route("/groups/{groupID}", func(r chi.Router) {
			r.Get("/", s.handleGetGroup)
			r.Post("/requests", s.handleRequestMembership)
			r.Post("/invitations", s.handleInviteMember)
			r.Post("/finalize", s.handleBeginFinalizing)
			r.Post("/suite", s.handleAssignSuite)

			r.Route("/members/{userID}", func(r chi.Router) {
				r.Post("/accept", s.handleAcceptMembership)
				r.Post("/lock", s.handleLockMembership)
				r.Delete("/", s.handleLeaveGroup)
			})
		})

		r.Get("/users/{userID}/memberships", s.handleGetUserMemberships)
	})

	return r
}

// Start runs the server until ctx is cancelled, then shuts down gracefully.
func (s *Server) Start(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("http server listening", "addr", s.config.Address())
		if err := s.srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("http server: %w", err)
	case <-ctx.Done():
		return s.Shutdown()
	}
}

// Shutdown stops the server, giving in-flight requests the configured
// grace period.
func (s *Server) Shutdown() error {
	ctx, cancel := context.WithTimeout(context.Background(), s.config.ShutdownTimeout)
	defer cancel()

	s.logger.Info("http server shutting down")
	if err := s.srv.Shutdown(ctx); err != nil {
		return fmt.Errorf("http server shutdown: %w", err)
	}
	return nil
}
