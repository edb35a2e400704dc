// Package server provides the HTTP API server and the metrics listener
package server

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/alchemorsel/recipeflow/internal/infrastructure/config"
	"github.com/alchemorsel/recipeflow/internal/infrastructure/http/handlers"
	"github.com/alchemorsel/recipeflow/internal/infrastructure/http/middleware"
	"github.com/alchemorsel/recipeflow/internal/infrastructure/security"
	apperrors "github.com/alchemorsel/recipeflow/pkg/errors"
	"github.com/alchemorsel/recipeflow/pkg/healthcheck"
	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"
	"golang.org/x/net/http2"
)

// Instrumenter wraps the router with tracing instrumentation
type Instrumenter interface {
	InstrumentHTTPHandler(handler http.Handler, operation string) http.Handler
}

// Dependencies groups what the router serves
type Dependencies struct {
	Pipeline     *handlers.PipelineHandlers
	Health       *healthcheck.HealthCheck
	Tokens       *security.TokenService
	Observer     middleware.RequestObserver
	Instrumenter Instrumenter
	Metrics      http.Handler
}

// Server represents the HTTP server
type Server struct {
	config        *config.Config
	logger        *zap.Logger
	router        *chi.Mux
	server        *http.Server
	metricsServer *http.Server
	limiter       *middleware.RateLimiter
}

// NewServer creates a new HTTP server instance
func NewServer(cfg *config.Config, deps Dependencies, logger *zap.Logger) *Server {
	s := &Server{
		config: cfg,
		logger: logger.Named("http-server"),
	}
	if cfg.RateLimit.Enable {
		s.limiter = middleware.NewRateLimiter(cfg.RateLimit, s.logger)
	}

	s.router = s.setupRouter(deps)

	var handler http.Handler = s.router
	if deps.Instrumenter != nil {
		handler = deps.Instrumenter.InstrumentHTTPHandler(handler, "recipeflow-api")
	}

	s.server = &http.Server{
		Addr:              net.JoinHostPort(cfg.Server.Host, fmt.Sprint(cfg.Server.Port)),
		Handler:           handler,
		ReadTimeout:       cfg.Server.ReadTimeout,
		WriteTimeout:      cfg.Server.WriteTimeout,
		IdleTimeout:       cfg.Server.IdleTimeout,
		ReadHeaderTimeout: 5 * time.Second,
		MaxHeaderBytes:    cfg.Server.MaxHeaderBytes,
	}

	if cfg.Monitoring.EnableMetrics && deps.Metrics != nil {
		mux := http.NewServeMux()
		mux.Handle("/metrics", deps.Metrics)
		s.metricsServer = &http.Server{
			Addr:              net.JoinHostPort(cfg.Server.Host, fmt.Sprint(cfg.Monitoring.MetricsPort)),
			Handler:           mux,
			ReadHeaderTimeout: 5 * time.Second,
		}
	}

	return s
}

// Router exposes the routes, mainly for tests
func (s *Server) Router() http.Handler {
	return s.router
}

// setupRouter configures the HTTP router with middleware and routes
func (s *Server) setupRouter(deps Dependencies) *chi.Mux {
	r := chi.NewRouter()
	healthPath := s.config.Monitoring.HealthCheckPath

	// Global middleware
	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(middleware.Logger(s.logger, deps.Observer, healthPath))
	r.Use(chimiddleware.Recoverer)
	r.Use(middleware.Security(s.config.IsProduction()))
	r.Use(middleware.CORS(s.config.Server))
	if s.limiter != nil {
		r.Use(s.limiter.Handler)
	}
	if s.config.Server.EnableCompression {
		r.Use(middleware.Compress(5))
	}

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		handlers.WriteError(w, r, s.logger, apperrors.NewNotFoundError("route"))
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		handlers.WriteError(w, r, s.logger, apperrors.NewAppError(apperrors.CodeBadRequest, "Method not allowed", r.Method))
	})

	r.Get(healthPath, deps.Health.Handler())
	r.Get("/health/live", deps.Health.LivenessHandler())
	r.Get("/health/ready", deps.Health.ReadinessHandler())

	r.Group(func(r chi.Router) {
		r.Use(chimiddleware.Timeout(s.config.Server.RequestTimeout))
		r.Use(middleware.JSONOnly(s.logger))

		// Pipeline triggers and knowledge reads are operator-only
		r.Group(func(r chi.Router) {
			r.Use(middleware.OperatorAuth(deps.Tokens, s.logger))
			r.Post("/recipe-extract", deps.Pipeline.ExtractRecipe)
			r.Post("/recipe-generate-cards", deps.Pipeline.GenerateCards)
			r.Get("/knowledge", deps.Pipeline.ListKnowledge)
			r.Get("/knowledge/{cuisine}", deps.Pipeline.GetKnowledge)
		})

		r.Get("/recipes/{id}/cards", deps.Pipeline.ListCards)
	})

	return r
}

// Start starts the HTTP server and, when enabled, the metrics listener.
// It blocks until the API server stops.
func (s *Server) Start() error {
	s.logger.Info("Starting HTTP server",
		zap.String("address", s.server.Addr),
		zap.String("environment", s.config.App.Environment),
	)

	if s.config.Server.EnableHTTP2 {
		if err := http2.ConfigureServer(s.server, &http2.Server{IdleTimeout: s.config.Server.IdleTimeout}); err != nil {
			s.logger.Error("Failed to configure HTTP/2", zap.Error(err))
		}
	}

	if s.metricsServer != nil {
		go func() {
			s.logger.Info("Starting metrics server", zap.String("address", s.metricsServer.Addr))
			if err := s.metricsServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				s.logger.Error("Metrics server failed", zap.Error(err))
			}
		}()
	}

	if err := s.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown gracefully shuts down the HTTP server
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("Shutting down HTTP server")
	if s.limiter != nil {
		s.limiter.Stop()
	}

	var errs []error
	if err := s.server.Shutdown(ctx); err != nil {
		errs = append(errs, fmt.Errorf("api server: %w", err))
	}
	if s.metricsServer != nil {
		if err := s.metricsServer.Shutdown(ctx); err != nil {
			errs = append(errs, fmt.Errorf("metrics server: %w", err))
		}
	}
	return errors.Join(errs...)
}
