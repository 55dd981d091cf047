// Live-tally worker: consumes vote events from the Redis feed and keeps the
// advisory counters and metrics up to date.
package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/marcelojr/awards-night/internal/app/worker"
	"github.com/marcelojr/awards-night/internal/domain"
	"github.com/marcelojr/awards-night/internal/platform/config"
	"github.com/marcelojr/awards-night/internal/platform/health"
	"github.com/marcelojr/awards-night/internal/platform/logger"
	redisstorage "github.com/marcelojr/awards-night/internal/platform/storage/redis"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load()
	if err != nil {
		logger.Fatal("invalid configuration", "err", err)
	}

	// The worker only touches Redis: the feed and the counters live on the same instance.
	redisClient, err := redisstorage.NewClient(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
	if err != nil {
		logger.Fatal("redis connection failed", "err", err)
	}
	defer redisClient.Close()

	counter := redisstorage.NewCounter(redisClient, cfg.CounterKeyPrefix)
	feed := redisstorage.NewFeed(redisClient, cfg.FeedKey)
	checker := health.NewChecker(nil, redisClient)

	if cfg.WorkerMetricsAddress != "" {
		go func() {
			// Metrics keep the worker observable while the main goroutine drains the feed.
			mux := http.NewServeMux()
			mux.Handle("/metrics", promhttp.Handler())
			mux.HandleFunc("/readyz", checker.ReadyHandler())
			logger.Info("worker metrics listening", "addr", cfg.WorkerMetricsAddress)
			if err := http.ListenAndServe(cfg.WorkerMetricsAddress, mux); err != nil {
				logger.Error("worker metrics server error", "err", err)
			}
		}()
	}

	processor := worker.NewTallyProcessor(counter)

	logger.Info("worker started, waiting for vote events")
	err = feed.ConsumeVotes(ctx, func(ctx context.Context, event domain.VoteEvent) error {
		// Events are applied one at a time to keep simple list semantics.
		if err := processor.Process(ctx, event); err != nil {
			logger.Error("vote event processing failed", "round", event.RoundID, "err", err)
		}
		return nil
	})

	if err != nil && !errors.Is(err, context.Canceled) && !errors.Is(err, context.DeadlineExceeded) {
		logger.Fatal("worker stopped with error", "err", err)
	}

	logger.Info("worker stopped")
}
