// Package main is the entry point for the mscan enrichment engine.
// The engine resolves company identifiers against SEC EDGAR, fetches
// filings and XBRL financial data through a rate-limited cached client,
// and scores the resulting profiles for sales qualification.
package main

import (
	"context"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/mscan/enrich/internal/cache"
	"github.com/mscan/enrich/internal/config"
	"github.com/mscan/enrich/internal/database"
	"github.com/mscan/enrich/internal/edgar"
	"github.com/mscan/enrich/internal/enrich"
	"github.com/mscan/enrich/internal/ratelimit"
	"github.com/mscan/enrich/internal/reliability"
	"github.com/mscan/enrich/internal/resolver"
	"github.com/mscan/enrich/internal/scheduler"
	"github.com/mscan/enrich/internal/scoring"
	"github.com/mscan/enrich/internal/server"
	"github.com/mscan/enrich/pkg/logger"
)

func main() {
	// Load configuration first to get log level
	cfg, err := config.Load()
	if err != nil {
		fallbackLog := logger.New(logger.Config{Level: "info", Pretty: true})
		fallbackLog.Fatal().Err(err).Msg("Failed to load configuration")
	}

	log := logger.New(logger.Config{
		Level:  cfg.LogLevel,
		Pretty: cfg.DevMode,
	})
	logger.SetGlobalLogger(log)

	log.Info().Str("data_dir", cfg.DataDir).Msg("Starting enrichment engine")

	// Single-database architecture: everything ephemeral lives in the
	// tiered EDGAR cache, so losing the file only costs re-fetches.
	db, err := database.New(database.Config{
		Path:    filepath.Join(cfg.DataDir, "edgar_cache.db"),
		Profile: database.ProfileCache,
		Name:    "edgar_cache",
	})
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to open cache database")
	}
	defer db.Close()

	store, err := cache.NewStore(db.Conn(), log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize cache store")
	}

	// The SEC enforces a hard ceiling of 10 requests/second. The adaptive
	// wrapper halves the rate whenever EDGAR pushes back with a 403/429.
	limiter := ratelimit.NewAdaptive(cfg.MaxRequestsPerSecond, float64(cfg.MaxRequestsPerSecond), log)

	requestTimeout := time.Duration(cfg.RequestTimeout) * time.Second

	res := resolver.New(store, limiter, cfg.UserAgent, log)
	res.SetTimeout(requestTimeout)

	// With adaptation disabled the client only sees the plain token bucket
	// and never triggers the backoff path.
	var acquirer resolver.TokenAcquirer = limiter
	if !cfg.AdaptiveRateLimit {
		acquirer = limiter.Limiter
		log.Info().Msg("Adaptive rate limiting disabled")
	}

	client, err := edgar.NewClient(store, acquirer, res, cfg.UserAgent, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Invalid EDGAR client configuration")
	}
	client.SetTimeout(requestTimeout)
	retry := edgar.DefaultRetryPolicy()
	retry.MaxRetries = uint64(cfg.MaxRetries)
	client.SetRetryPolicy(retry)

	runner := enrich.NewRunner(client, scoring.NewScorer(), enrich.DefaultWorkers, log)

	// Background jobs: nightly cache cleanup, weekly ticker index refresh,
	// and nightly cloud backup when credentials are configured.
	sched := scheduler.New(log)
	if err := sched.AddJob("0 3 * * *", cache.NewCleanupJob(store, log)); err != nil {
		log.Fatal().Err(err).Msg("Failed to schedule cache cleanup")
	}
	if err := sched.AddJob("0 4 * * 0", resolver.NewRefreshJob(res, log)); err != nil {
		log.Fatal().Err(err).Msg("Failed to schedule ticker index refresh")
	}

	if cfg.BackupEnabled() {
		s3, err := reliability.NewS3Client(context.Background(), cfg.Backup)
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to initialize backup storage client")
		}
		backupSvc := reliability.NewBackupService(s3, db, cfg.DataDir, log)
		if err := sched.AddJob("30 3 * * *", reliability.NewBackupJob(backupSvc, cfg.Backup.Retention, log)); err != nil {
			log.Fatal().Err(err).Msg("Failed to schedule cloud backup")
		}
		log.Info().Str("bucket", cfg.Backup.Bucket).Msg("Cloud backups enabled")
	} else {
		log.Info().Msg("Cloud backups disabled (no credentials configured)")
	}
	sched.Start()

	srv := server.New(server.Config{
		Log:       log,
		CacheDB:   db,
		Store:     store,
		Limiter:   limiter,
		Resolver:  res,
		Runner:    runner,
		Scheduler: sched,
		DataDir:   cfg.DataDir,
		Port:      cfg.Port,
		DevMode:   cfg.DevMode,
	})

	go func() {
		if err := srv.Start(); err != nil {
			log.Fatal().Err(err).Msg("Failed to start server")
		}
	}()

	log.Info().Int("port", cfg.Port).Msg("Enrichment engine started")

	// Block until SIGINT or SIGTERM
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("Shutting down...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Server forced to shutdown")
	}

	sched.Stop()

	// Flush the in-memory hit/miss counters so stats survive restarts.
	if err := store.PersistStats(); err != nil {
		log.Error().Err(err).Msg("Failed to persist cache stats")
	}

	log.Info().Msg("Enrichment engine stopped")
}
