// Package main is the entrypoint for the GeoHarvest tool server.
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/kiranshivaraju/geoharvest/internal/api"
	"github.com/kiranshivaraju/geoharvest/internal/api/handler"
	mw "github.com/kiranshivaraju/geoharvest/internal/api/middleware"
	"github.com/kiranshivaraju/geoharvest/internal/appeears"
	"github.com/kiranshivaraju/geoharvest/internal/cache"
	"github.com/kiranshivaraju/geoharvest/internal/catalog"
	"github.com/kiranshivaraju/geoharvest/internal/config"
	"github.com/kiranshivaraju/geoharvest/internal/jobs"
	"github.com/kiranshivaraju/geoharvest/internal/mirror"
	"github.com/kiranshivaraju/geoharvest/internal/search"
	"github.com/kiranshivaraju/geoharvest/internal/store"
	"github.com/kiranshivaraju/geoharvest/internal/telemetry"
	"github.com/kiranshivaraju/geoharvest/internal/tools"
)

const shutdownTimeout = 30 * time.Second

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	if err := run(); err != nil {
		slog.Error("server failed", "error", err)
		os.Exit(1)
	}
}

func run() error {
	// 1. Load config, fail fast on invalid values
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	slog.Info("config loaded", "env", cfg.Server.Env, "appeears_url", cfg.AppEEARS.BaseURL)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// 2. Connect to database
	pool, err := store.Connect(ctx, cfg.Database)
	if err != nil {
		return fmt.Errorf("connect database: %w", err)
	}
	defer pool.Close()
	slog.Info("database connected")

	// 3. Run migrations
	if err := store.RunMigrations(cfg.Database.URL, "migrations"); err != nil {
		return fmt.Errorf("run migrations: %w", err)
	}
	slog.Info("database migrations applied")

	// 4. Create Redis cache
	redisCache, err := cache.NewRedisCache(cfg.Redis.URL)
	if err != nil {
		return fmt.Errorf("create redis cache: %w", err)
	}
	defer redisCache.Close()

	if err := redisCache.Ping(ctx); err != nil {
		return fmt.Errorf("ping redis: %w", err)
	}
	slog.Info("redis connected")

	// 5. Search backend; unreachable is reported by health, not fatal
	esClient, err := search.NewClient(search.Config{
		Address:  cfg.Elastic.Address(),
		Username: cfg.Elastic.Username,
		Password: cfg.Elastic.Password,
	})
	if err != nil {
		return fmt.Errorf("create search client: %w", err)
	}

	// 6. AppEEARS services and tool registry
	pgStore := store.NewPostgresStore(pool)

	services, err := buildServices(ctx, cfg, redisCache)
	if err != nil {
		return err
	}
	services.Search = esClient
	services.Downloads = pgStore

	registry := tools.NewRegistry(pgStore)
	if err := tools.RegisterAll(registry, services); err != nil {
		return fmt.Errorf("register tools: %w", err)
	}
	slog.Info("tools registered", "count", len(registry.List()))

	// 7. Build router with dependencies
	deps := api.Dependencies{
		Auth:      mw.NewAuth(cfg.Tools.APIKeyHashes, cfg.Tools.AllowUnauthorized),
		RateLimit: mw.NewRateLimit(redisCache, cfg.Tools.RateLimitPerMin),

		HealthHandler: handler.NewHealthHandler(map[string]handler.Pinger{
			"database": pgStore,
			"cache":    redisCache,
			"search":   esClient,
		}),
		MetricsHandler: telemetry.Handler(),

		ListToolsHandler:   handler.NewListToolsHandler(registry),
		InvokeToolHandler:  handler.NewInvokeToolHandler(registry),
		InvocationsHandler: handler.NewListInvocationsHandler(pgStore),
	}

	router := api.NewRouter(deps)

	// 8. Start HTTP server. No WriteTimeout: download_job_results may run
	// for as long as the bundle takes to stream.
	addr := fmt.Sprintf(":%d", cfg.Server.Port)
	srv := &http.Server{
		Addr:              addr,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		slog.Info("server listening", "addr", addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("server error: %w", err)
	case <-ctx.Done():
		slog.Info("shutdown signal received, draining connections...")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown: %w", err)
	}

	slog.Info("server stopped gracefully")
	return nil
}

// buildServices wires the AppEEARS job lifecycle on top of one shared lease.
// c may be nil, in which case the product catalog is not cached.
func buildServices(ctx context.Context, cfg *config.Config, c cache.Cache) (tools.Services, error) {
	httpClient := appeears.NewHTTPClient(cfg.AppEEARS.Timeout)
	lease := appeears.NewLease(cfg.AppEEARS.BaseURL, cfg.AppEEARS.Username, cfg.AppEEARS.Password, httpClient)
	gw := appeears.NewGateway(cfg.AppEEARS.BaseURL, lease, httpClient)

	tracker := jobs.NewTracker(gw)

	var opts []jobs.DownloaderOption
	if cfg.Mirror.Bucket != "" {
		m, err := mirror.NewS3Mirror(ctx, cfg.Mirror)
		if err != nil {
			return tools.Services{}, fmt.Errorf("create bundle mirror: %w", err)
		}
		opts = append(opts, jobs.WithMirror(m))
		slog.Info("bundle mirror enabled", "bucket", cfg.Mirror.Bucket, "prefix", cfg.Mirror.Prefix)
	}

	return tools.Services{
		Submitter:  jobs.NewSubmitter(gw),
		Tracker:    tracker,
		Bundles:    jobs.NewResolver(gw, tracker),
		Downloader: jobs.NewDownloader(gw, tracker, cfg.Download.Path, opts...),
		Canceller:  jobs.NewCanceller(gw, tracker),
		Catalog:    catalog.NewService(gw, c, cfg.AppEEARS.ProductCacheTTL),
	}, nil
}
