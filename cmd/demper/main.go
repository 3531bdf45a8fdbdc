package main

import (
	"context"
	"database/sql"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/go-sql-driver/mysql"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"

	"github.com/nmakarov/repricer/internal/adapter/marketplace"
	"github.com/nmakarov/repricer/internal/adapter/storage"
	"github.com/nmakarov/repricer/internal/config"
	"github.com/nmakarov/repricer/internal/core/service"
	"github.com/nmakarov/repricer/internal/metrics"
	"github.com/nmakarov/repricer/internal/obs"
	"github.com/nmakarov/repricer/internal/shard"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		obs.NewLogger(0).Error("invalid configuration", "error", err)
		os.Exit(1)
	}

	logger := obs.NewLogger(cfg.InstanceIndex)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	db, err := sql.Open("mysql", cfg.MySQLDSN)
	if err != nil {
		logger.Error("open mysql", "error", err)
		os.Exit(1)
	}
	// The pool backs up to MaxConcurrent simultaneous item writes plus the
	// batch fetch; connections are held per query only.
	db.SetMaxOpenConns(cfg.MaxConcurrent + 5)
	db.SetMaxIdleConns(cfg.MaxConcurrent)
	db.SetConnMaxLifetime(5 * time.Minute)

	if err := db.PingContext(ctx); err != nil {
		logger.Error("mysql unreachable", "error", err)
		os.Exit(1)
	}
	logger.Info("connected to mysql")

	rdb := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
	if err := rdb.Ping(ctx).Err(); err != nil {
		logger.Error("redis unreachable", "error", err)
		os.Exit(1)
	}
	logger.Info("connected to redis")

	spec := shard.Spec{Index: cfg.InstanceIndex, Count: cfg.InstanceCount, UUID: cfg.IDIsUUID}

	store := storage.NewMySQLAdapter(db, spec)
	sessions := storage.NewRedisSessionStore(rdb, cfg.SessionTTL)

	client, err := marketplace.NewClient(marketplace.Options{
		BaseURL: cfg.MarketplaceBaseURL,
		Timeout: cfg.HTTPTimeout,
		RPS:     cfg.OutboundRPS,
	})
	if err != nil {
		logger.Error("marketplace client", "error", err)
		os.Exit(1)
	}

	registry := prometheus.NewRegistry()
	m := metrics.New(registry)

	var metricsServer *http.Server
	if cfg.MetricsAddr != "" {
		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))
		metricsServer = &http.Server{Addr: cfg.MetricsAddr, Handler: mux}
		go func() {
			logger.Info("metrics listening", "addr", cfg.MetricsAddr)
			if err := metricsServer.ListenAndServe(); err != http.ErrServerClosed {
				logger.Error("metrics server", "error", err)
			}
		}()
	}

	reconciler := service.NewReconciler(store, client, client, sessions, logger, m, service.ReconcilerConfig{
		StaleAfter:    cfg.CheckInterval,
		BatchSize:     cfg.BatchSize,
		MaxConcurrent: cfg.MaxConcurrent,
		MinDelay:      cfg.MinDelay,
		MaxDelay:      cfg.MaxDelay,
	})
	storeSync := service.NewStoreSyncCoordinator(client, store, spec, cfg.SyncStoresMode, logger, m)
	scheduler := service.NewScheduler(reconciler, storeSync, cfg.DemperInterval, logger)

	done := make(chan struct{})
	go func() {
		defer close(done)
		scheduler.Run(ctx)
	}()
	logger.Info("scheduler started",
		"instance", cfg.InstanceIndex,
		"instances", cfg.InstanceCount,
		"batch", cfg.BatchSize,
		"concurrency", cfg.MaxConcurrent,
		"interval", cfg.DemperInterval.String(),
	)

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down")
	cancel()
	<-done
	logger.Info("scheduler stopped")

	if metricsServer != nil {
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
		metricsServer.Shutdown(shutdownCtx)
		shutdownCancel()
	}

	rdb.Close()
	db.Close()
	logger.Info("connections closed")
}
