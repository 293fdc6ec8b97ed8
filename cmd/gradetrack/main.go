package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/circademic/gradetrack/internal/api"
	"github.com/circademic/gradetrack/internal/auth"
	"github.com/circademic/gradetrack/internal/cleanup"
	"github.com/circademic/gradetrack/internal/config"
	"github.com/circademic/gradetrack/internal/health"
	"github.com/circademic/gradetrack/internal/live"
	"github.com/circademic/gradetrack/internal/locale"
	"github.com/circademic/gradetrack/internal/storage"
	"github.com/circademic/gradetrack/internal/tracker"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	// Setup structured logging
	opts := &slog.HandlerOptions{Level: cfg.Log.SlogLevel()}
	var handler slog.Handler = slog.NewJSONHandler(os.Stdout, opts)
	if strings.EqualFold(cfg.Log.Format, "text") {
		handler = slog.NewTextHandler(os.Stdout, opts)
	}
	slog.SetDefault(slog.New(handler))

	slog.Info("starting gradetrack",
		"host", cfg.Server.Host,
		"port", cfg.Server.Port,
		"database", cfg.Database.Driver,
	)

	// Create context for initialization
	initCtx, initCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer initCancel()

	registry := health.NewRegistry(5 * time.Second)

	// Initialize storage
	repo, err := openRepository(initCtx, cfg.Database, registry)
	if err != nil {
		slog.Error("failed to initialize storage", "error", err)
		os.Exit(1)
	}
	defer repo.Close()
	registry.Register("storage", health.CheckerFunc(repo.Ping))

	// Session state and live events live in Redis when configured
	var (
		sessions auth.SessionStore
		broker   live.Broker
	)
	if cfg.Redis.Address != "" {
		rdb := redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Address,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		defer rdb.Close()

		if err := rdb.Ping(initCtx).Err(); err != nil {
			slog.Error("failed to connect to redis", "address", cfg.Redis.Address, "error", err)
			os.Exit(1)
		}
		slog.Info("redis connected successfully", "address", cfg.Redis.Address)

		sessions = auth.NewRedisSessionStore(rdb)
		broker = live.NewRedisBroker(rdb)
		registry.Register("redis", health.NewRedisChecker(rdb))
	} else {
		slog.Warn("redis address not set, keeping sessions and live events in memory")
		sessions = auth.NewMemorySessionStore()
		broker = live.NewMemoryBroker()
	}
	defer broker.Close()

	// Load locale bundles
	locales, err := locale.NewLoader(cfg.Locale.Default)
	if err != nil {
		slog.Error("failed to load locale bundles", "error", err)
		os.Exit(1)
	}
	if cfg.Locale.Dir != "" {
		if err := locales.LoadFromDir(cfg.Locale.Dir); err != nil {
			slog.Warn("failed to load locale bundles from dir", "dir", cfg.Locale.Dir, "error", err)
		}
	}
	slog.Info("locale bundles loaded", "locales", locales.List(), "default", cfg.Locale.Default)

	// Identity provider
	var google auth.IDTokenVerifier
	if cfg.Auth.GoogleClientID != "" {
		google = auth.NewGoogleVerifier(cfg.Auth.GoogleClientID)
	}
	tokens := auth.NewTokenIssuer(auth.TokenConfig{
		Secret: cfg.Auth.JWTSecret,
		TTL:    cfg.Auth.TokenTTL,
		Issuer: cfg.Auth.Issuer,
	})
	authService := auth.NewService(repo, sessions, tokens, google, auth.LogMailer{}, auth.Config{
		MaxSignInAttempts: cfg.Auth.MaxSignInAttempts,
		AttemptWindow:     cfg.Auth.AttemptWindow,
		ResetTokenTTL:     cfg.Auth.ResetTokenTTL,
		BcryptCost:        cfg.Auth.BcryptCost,
		ResetURL:          strings.TrimRight(cfg.Server.PublicURL, "/") + "/reset-password",
	})

	trackerService := tracker.NewService(repo, broker, locales.Default().Categories)

	// Initialize cleanup worker
	cleaner := cleanup.NewCleaner(repo, cfg.Cleanup.Interval)

	// Create context with cancellation
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Start cleanup worker
	cleaner.Start(ctx)

	// Setup HTTP server
	server := api.NewServer(cfg.Server, api.Dependencies{
		Auth:    authService,
		Tracker: trackerService,
		Broker:  broker,
		Locales: locales,
		Health:  registry,
	})
	httpServer := &http.Server{
		Addr:              fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:           server.Router(),
		ReadHeaderTimeout: 15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	// Start server in goroutine
	go func() {
		slog.Info("HTTP server starting", "addr", httpServer.Addr)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("HTTP server error", "error", err)
			os.Exit(1)
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	slog.Info("shutting down gracefully...")

	// Cancel context to stop background workers
	cancel()

	// Shutdown HTTP server with timeout
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		slog.Error("HTTP server shutdown error", "error", err)
	}

	slog.Info("gradetrack stopped")
}

// openRepository connects the configured storage backend. PostgreSQL is
// migrated before use and gets a direct readiness check.
func openRepository(ctx context.Context, cfg config.DatabaseConfig, registry *health.Registry) (storage.Repository, error) {
	if cfg.Driver == "memory" {
		slog.Warn("using in-memory storage, data is lost on restart")
		return storage.NewMemoryRepository(), nil
	}

	repo, err := storage.NewPostgresRepository(ctx, storage.PostgresConfig{
		DSN:          cfg.DSN,
		MaxOpenConns: int32(cfg.MaxOpenConns),
		MaxIdleConns: int32(cfg.MaxIdleConns),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create database repository: %w", err)
	}
	slog.Info("database connected successfully")

	// Run database migrations
	slog.Info("running database migrations", "dir", cfg.MigrationsDir)
	if err := storage.RunMigrations(ctx, repo.Pool(), os.DirFS(cfg.MigrationsDir)); err != nil {
		repo.Close()
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	checker, err := health.NewPostgresChecker(cfg.DSN)
	if err != nil {
		repo.Close()
		return nil, fmt.Errorf("failed to create postgres checker: %w", err)
	}
	registry.Register("postgres", checker)

	return repo, nil
}
