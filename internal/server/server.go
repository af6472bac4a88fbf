package server

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/rs/zerolog"

	"github.com/maksimww/papertrader/internal/config"
	"github.com/maksimww/papertrader/internal/events"
	"github.com/maksimww/papertrader/internal/modules/allocation"
	"github.com/maksimww/papertrader/internal/modules/analytics"
	"github.com/maksimww/papertrader/internal/modules/execution"
	"github.com/maksimww/papertrader/internal/modules/portfolio"
	"github.com/maksimww/papertrader/internal/modules/statestore"
	"github.com/maksimww/papertrader/internal/modules/strategy"
	"github.com/maksimww/papertrader/internal/scheduler"
)

// Deps bundles everything the HTTP layer talks to
type Deps struct {
	Config           *config.Config
	Log              zerolog.Logger
	Registry         *strategy.Registry
	Coordinator      *allocation.Coordinator
	State            *statestore.Store
	Gate             *execution.Gate
	Analytics        *analytics.Service
	Events           *events.Manager
	PortfolioHandler *portfolio.Handler
	ExecutionHandler *execution.Handler
	CycleJob         *scheduler.CoordinationCycleJob
	Scheduler        *scheduler.Scheduler
	RunCycle         func() error
	StartedAt        time.Time
}

// Server represents the HTTP server
type Server struct {
	router *chi.Mux
	server *http.Server
	deps   Deps
	log    zerolog.Logger
}

// New creates a new HTTP server
func New(deps Deps) *Server {
	s := &Server{
		router: chi.NewRouter(),
		deps:   deps,
		log:    deps.Log.With().Str("component", "server").Logger(),
	}

	s.setupMiddleware(deps.Config.DevMode)
	s.setupRoutes()

	s.server = &http.Server{
		Addr:         fmt.Sprintf(":%d", deps.Config.Port),
		Handler:      s.router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	return s
}

// setupMiddleware configures middleware
func (s *Server) setupMiddleware(devMode bool) {
	s.router.Use(middleware.Recoverer)
	s.router.Use(middleware.RequestID)
	s.router.Use(middleware.RealIP)
	s.router.Use(s.loggingMiddleware)
	s.router.Use(middleware.Timeout(60 * time.Second))

	s.router.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		ExposedHeaders:   []string{"Link"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	if !devMode {
		s.router.Use(middleware.Compress(5))
	}
}

// setupRoutes configures all routes
func (s *Server) setupRoutes() {
	s.router.Get("/health", s.handleHealth)

	s.router.Route("/api", func(r chi.Router) {
		r.Route("/system", func(r chi.Router) {
			r.Get("/status", s.handleSystemStatus)
		})

		r.Route("/strategies", func(r chi.Router) {
			r.Get("/", s.handleListStrategies)
			r.Post("/{id}/start", s.handleStartStrategy)
			r.Post("/{id}/stop", s.handleStopStrategy)
		})

		r.Route("/portfolio", func(r chi.Router) {
			r.Get("/summary", s.deps.PortfolioHandler.HandleGetSummary)
			r.Get("/trades", s.deps.PortfolioHandler.HandleListTrades)
			r.Post("/buy", s.deps.PortfolioHandler.HandleBuy)
			r.Post("/sell", s.deps.PortfolioHandler.HandleSell)
		})

		r.Route("/executions", func(r chi.Router) {
			r.Get("/", s.deps.ExecutionHandler.HandleList)
			r.Get("/status", s.deps.ExecutionHandler.HandleStatus)
		})

		r.Route("/coordination", func(r chi.Router) {
			r.Post("/run", s.handleRunCoordination)
			r.Get("/status", s.handleCoordinationStatus)
		})

		r.Route("/analytics", func(r chi.Router) {
			r.Get("/metrics", s.handleAnalyticsMetrics)
		})
	})
}

// Start starts the HTTP server
func (s *Server) Start() error {
	s.log.Info().Int("port", s.deps.Config.Port).Msg("Starting HTTP server")
	return s.server.ListenAndServe()
}

// Shutdown gracefully shuts down the server
func (s *Server) Shutdown(ctx context.Context) error {
	s.log.Info().Msg("Shutting down HTTP server")
	return s.server.Shutdown(ctx)
}

// loggingMiddleware logs HTTP requests
func (s *Server) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()

		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		s.log.Info().
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", ww.Status()).
			Int("bytes", ww.BytesWritten()).
			Dur("duration_ms", time.Since(start)).
			Str("request_id", middleware.GetReqID(r.Context())).
			Msg("HTTP request")
	})
}
