// API entry point: loads configuration, wires dependencies and serves HTTP.
package main

import (
	"context"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/marcelojr/awards-night/internal/app/ceremony"
	"github.com/marcelojr/awards-night/internal/app/httpapi"
	"github.com/marcelojr/awards-night/internal/domain"
	"github.com/marcelojr/awards-night/internal/platform/clock"
	"github.com/marcelojr/awards-night/internal/platform/config"
	"github.com/marcelojr/awards-night/internal/platform/health"
	"github.com/marcelojr/awards-night/internal/platform/ids"
	"github.com/marcelojr/awards-night/internal/platform/logger"
	"github.com/marcelojr/awards-night/internal/platform/migrations"
	"github.com/marcelojr/awards-night/internal/platform/ratelimit"
	postgresstorage "github.com/marcelojr/awards-night/internal/platform/storage/postgres"
	redisstorage "github.com/marcelojr/awards-night/internal/platform/storage/redis"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load()
	if err != nil {
		logger.Fatal("invalid configuration", "err", err)
	}

	// One shared GORM connection for the whole lifecycle: pool reuse and readiness checks.
	db, err := postgresstorage.Open(ctx, cfg.PostgresDSN())
	if err != nil {
		logger.Fatal("postgres connection failed", "err", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		logger.Fatal("getting sql.DB failed", "err", err)
	}
	defer sqlDB.Close()

	if cfg.AutoMigrate {
		// Automatic migrations run only when enabled to avoid production surprises.
		if err := migrations.Run(db); err != nil {
			logger.Fatal("automatic migration failed", "err", err)
		}
	}

	// Redis backs the vote feed, live counters and the rate limiter.
	redisClient, err := redisstorage.NewClient(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
	if err != nil {
		logger.Fatal("redis connection failed", "err", err)
	}
	defer redisClient.Close()

	store := postgresstorage.NewDocumentStore(db, ids.DefaultGenerator())
	systemClock := clock.NewSystemClock()

	var feed domain.Feed
	var counter domain.Counter
	if cfg.LiveTallyEnabled {
		feed = redisstorage.NewFeed(redisClient, cfg.FeedKey)
		counter = redisstorage.NewCounter(redisClient, cfg.CounterKeyPrefix)
	}

	var guard domain.Guard = ratelimit.NewNoop()
	if cfg.RateLimitEnabled {
		window := time.Duration(cfg.RateLimitWindowSeconds) * time.Second
		guard = ratelimit.NewRedisLimiter(redisClient, cfg.RateLimitMaxActions, window, cfg.RateLimitKeyPrefix)
	}

	service := ceremony.NewService(store, feed, counter, guard, systemClock, ids.DefaultGenerator())

	if cfg.AdminIdentity != "" {
		// Seed the event admin once; a second start against the same document is a no-op.
		admin, err := service.Bootstrap(ctx, cfg.AdminName, cfg.AdminIdentity)
		if err != nil {
			logger.Fatal("admin bootstrap failed", "err", err)
		}
		logger.Info("admin ready", "id", admin.ID, "name", admin.Name)
	}

	mux := http.NewServeMux()
	checker := health.NewChecker(sqlDB, redisClient)

	// HTTP exposes the API, the health checks and the Prometheus scrape target.
	api := httpapi.New(service, logger.L())
	api.Register(mux)
	mux.HandleFunc("/readyz", checker.ReadyHandler())
	mux.Handle("/metrics", promhttp.Handler())

	logger.Info("api listening", "addr", cfg.HTTPAddress)
	if err := http.ListenAndServe(cfg.HTTPAddress, mux); err != nil {
		logger.Fatal("server error", "err", err)
	}
}
