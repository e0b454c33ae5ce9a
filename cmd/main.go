package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"energy-monitor/internal/anomaly"
	"energy-monitor/internal/api"
	"energy-monitor/internal/baseline"
	"energy-monitor/internal/cache"
	"energy-monitor/internal/config"
	"energy-monitor/internal/db"
	"energy-monitor/internal/ingest"
	"energy-monitor/internal/logging"
	"energy-monitor/internal/notifier"
	"energy-monitor/internal/query"
	"energy-monitor/internal/rollup"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	logger, err := logging.New(cfg.Logging.Dir, cfg.Logging.Level)
	if err != nil {
		log.Fatalf("Failed to init logger: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Database
	store, err := db.New(ctx, cfg.DB.DSN)
	if err != nil {
		logger.Errorf("Failed to connect to database: %v", err)
		log.Fatalf("Database connection failed: %v", err)
	}
	defer store.Close()
	if err := store.InitSchema(ctx); err != nil {
		log.Fatalf("Schema init failed: %v", err)
	}

	// Redis result cache: optional, the service degrades to store-only.
	var redisCache *cache.RedisCache
	if cfg.Redis.Addr != "" {
		redisCache, err = cache.New(ctx, cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB, cfg.Redis.TTL)
		if err != nil {
			logger.Warnf("Redis unavailable, running without cache: %v", err)
			redisCache = nil
		} else {
			defer redisCache.Close()
		}
	}

	// Baseline estimator restored from the last snapshot
	estimator := baseline.New(store, logger, cfg.Baseline.MinSamples, cfg.Baseline.ForgettingFactor)
	if err := estimator.Restore(ctx); err != nil {
		logger.Errorf("Baseline restore failed, starting cold: %v", err)
	}

	// Ingestion pipeline: buffer -> store -> score -> publish
	scorer := anomaly.NewScorer(cfg.Baseline.OffHoursFloorKWh)
	buffer := ingest.NewBuffer(logger)
	hub := api.NewHub(logger)
	pipeline := ingest.NewPipeline(buffer, store, estimator, scorer, logger, hub)

	consumer := ingest.NewConsumer(cfg, pipeline, logger)
	defer consumer.Close()
	go consumer.Run(ctx)
	logger.Infof("Kafka consumer initialized with topic: %s", cfg.Kafka.Topic)

	// Scheduled rollup refresh, also releasing aged ingest dedup slots
	refresher := rollup.NewRefresher(store, estimator, buffer, logger, cfg.Rollup.Interval, cfg.Rollup.GraceWindow, cfg.Rollup.TimeBudget)
	go refresher.Run(ctx)

	// Query service
	var queryCache query.Cache
	if redisCache != nil {
		queryCache = redisCache
	}
	queries := query.New(store, queryCache, logger)

	// Telegram notification side channel
	var providers []notifier.Provider
	if cfg.Notifier.TelegramToken != "" {
		tg, err := notifier.NewTelegramProvider(cfg.Notifier.TelegramToken, cfg.Notifier.TelegramChatIDs, cfg.Notifier.TelegramRate, logger)
		if err != nil {
			logger.Errorf("Telegram provider disabled: %v", err)
		} else {
			providers = append(providers, tg)
		}
	}
	var cursorStore notifier.CursorStore
	if redisCache != nil {
		cursorStore = redisCache
	}
	alerts := notifier.New(store, cursorStore, logger, cfg.Notifier.QueueSize, cfg.Notifier.MaxWorkers, cfg.Notifier.PollInterval, providers...)
	go alerts.Run(ctx)

	// API server
	handler := api.NewHandler(queries, store, buffer, estimator, logger)
	router := api.NewRouter(logger, cfg, handler, hub)

	srv := &http.Server{Addr: cfg.API.Port, Handler: router}
	go func() {
		logger.Infof("Starting API server on %s", cfg.API.Port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Errorf("API server failed: %v", err)
			stop()
		}
	}()

	<-ctx.Done()
	logger.Infof("Shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Errorf("API shutdown failed: %v", err)
	}
	if err := estimator.Snapshot(shutdownCtx); err != nil {
		logger.Errorf("Final baseline snapshot failed: %v", err)
	}
}
