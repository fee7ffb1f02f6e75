// Package server exposes the enrichment engine over HTTP.
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

	"github.com/mscan/enrich/internal/cache"
	"github.com/mscan/enrich/internal/database"
	"github.com/mscan/enrich/internal/enrich"
	"github.com/mscan/enrich/internal/ratelimit"
	"github.com/mscan/enrich/internal/resolver"
	"github.com/mscan/enrich/internal/scheduler"
)

// Config holds server dependencies.
type Config struct {
	Log       zerolog.Logger
	CacheDB   *database.DB
	Store     *cache.Store
	Limiter   *ratelimit.AdaptiveLimiter
	Resolver  *resolver.Resolver
	Runner    *enrich.Runner
	Scheduler *scheduler.Scheduler
	DataDir   string
	Port      int
	DevMode   bool
}

// Server is the HTTP server.
type Server struct {
	router    *chi.Mux
	server    *http.Server
	log       zerolog.Logger
	cacheDB   *database.DB
	store     *cache.Store
	limiter   *ratelimit.AdaptiveLimiter
	resolver  *resolver.Resolver
	runner    *enrich.Runner
	scheduler *scheduler.Scheduler
	dataDir   string
	devMode   bool
	startedAt time.Time
}

// New creates the HTTP server and mounts all routes.
func New(cfg Config) *Server {
	s := &Server{
		router:    chi.NewRouter(),
		log:       cfg.Log.With().Str("component", "server").Logger(),
		cacheDB:   cfg.CacheDB,
		store:     cfg.Store,
		limiter:   cfg.Limiter,
		resolver:  cfg.Resolver,
		runner:    cfg.Runner,
		scheduler: cfg.Scheduler,
		dataDir:   cfg.DataDir,
		devMode:   cfg.DevMode,
		startedAt: time.Now(),
	}

	s.setupMiddleware()
	s.setupRoutes()

	s.server = &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Port),
		Handler:      s.router,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 5 * time.Minute, // batch enrichments can be slow under rate limiting
		IdleTimeout:  120 * time.Second,
	}

	return s
}

func (s *Server) setupMiddleware() {
	s.router.Use(middleware.Recoverer)
	s.router.Use(middleware.RequestID)
	s.router.Use(middleware.RealIP)
	s.router.Use(middleware.Timeout(5 * time.Minute))

	s.router.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Content-Type"},
		AllowCredentials: false,
		MaxAge:           300,
	}))

	if !s.devMode {
		s.router.Use(middleware.Compress(5))
	}
}

func (s *Server) setupRoutes() {
	s.router.Get("/health", s.handleHealth)

	s.router.Route("/api", func(r chi.Router) {
		r.Post("/enrich", s.handleBatchEnrich)
		r.Get("/enrich/{identifier}", s.handleEnrich)

		r.Get("/resolve/{identifier}", s.handleResolve)
		r.Get("/search", s.handleSearch)

		r.Get("/stats", s.handleStats)

		r.Route("/system", func(r chi.Router) {
			r.Get("/health", s.handleSystemHealth)
			r.Get("/database/stats", s.handleDatabaseStats)
			r.Post("/backup", s.handleTriggerBackup)
			r.Post("/cleanup", s.handleTriggerCleanup)
			r.Post("/vacuum", s.handleVacuum)
			r.Post("/refresh-index", s.handleTriggerIndexRefresh)
		})
	})
}

// Start begins serving. Blocks until the listener fails or is closed.
func (s *Server) Start() error {
	s.log.Info().Str("addr", s.server.Addr).Msg("HTTP server starting")

	if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("server failed: %w", err)
	}
	return nil
}

// Shutdown gracefully stops the server.
func (s *Server) Shutdown(ctx context.Context) error {
	s.log.Info().Msg("HTTP server shutting down")
	return s.server.Shutdown(ctx)
}

// Router exposes the handler tree, used by tests.
func (s *Server) Router() http.Handler {
	return s.router
}
