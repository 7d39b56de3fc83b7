// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/AleutianAI/journalclub/pkg/logging"
	"github.com/AleutianAI/journalclub/services/discussion/config"
	"github.com/AleutianAI/journalclub/services/discussion/middleware"
	"github.com/AleutianAI/journalclub/services/discussion/observability"
	"github.com/AleutianAI/journalclub/services/discussion/routes"
	"github.com/AleutianAI/journalclub/services/discussion/services"
	bstore "github.com/AleutianAI/journalclub/services/discussion/storage/badger"
	"github.com/AleutianAI/journalclub/services/discussion/store"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
	"golang.org/x/sync/errgroup"
)

func main() {
	configPath := flag.String("config", "", "path to journalclub.yaml (default $JOURNALCLUB_CONFIG or ~/.journalclub/journalclub.yaml)")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	logger := newLogger(cfg)
	defer logger.Close()
	slog.SetDefault(logger.Slog())

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, *configPath, logger); err != nil {
		logger.Error("discussion service stopped with error", "error", err)
		os.Exit(1)
	}
	logger.Info("discussion service stopped")
}

func newLogger(cfg *config.Config) *logging.Logger {
	level, err := logging.ParseLevel(cfg.Logging.Level)
	if err != nil {
		level = logging.LevelInfo
	}
	return logging.New(logging.Config{
		Level:   level,
		LogDir:  cfg.Logging.Dir,
		Service: "discussion",
		JSON:    cfg.Logging.JSON,
	})
}

// storageConfig maps the service config onto the badger layer.
func storageConfig(cfg config.StorageConfig, logger *slog.Logger) bstore.Config {
	if cfg.InMemory {
		return bstore.InMemoryConfig()
	}
	bc := bstore.DefaultConfig(cfg.DataDir)
	bc.SyncWrites = cfg.SyncWrites
	bc.GCInterval = cfg.GCInterval
	bc.GCDiscardRatio = cfg.GCDiscardRatio
	bc.Logger = logger.With("component", "badger")
	return bc
}

// applyReload pushes the live-reloadable settings into running components.
// Everything else requires a restart.
func applyReload(next *config.Config, logger *logging.Logger, limiter *middleware.RateLimiter) {
	if level, err := logging.ParseLevel(next.Logging.Level); err == nil && level != logger.Level() {
		logger.SetLevel(level)
		logger.Info("log level changed", "level", level.String())
	}
	perSecond, burst := limiter.Limit()
	if float64(perSecond) != next.Votes.RatePerSecond || burst != next.Votes.Burst {
		limiter.SetLimit(next.Votes.RatePerSecond, next.Votes.Burst)
		logger.Info("vote rate limit changed",
			"rate_per_second", next.Votes.RatePerSecond, "burst", next.Votes.Burst)
	}
}

func run(ctx context.Context, cfg *config.Config, configPath string, logger *logging.Logger) error {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	shutdownTelemetry, err := observability.InitTelemetry(ctx, observability.TelemetryConfig{
		ServiceName:  cfg.Telemetry.ServiceName,
		OTLPEndpoint: cfg.Telemetry.OTLPEndpoint,
		StdoutTraces: cfg.Telemetry.StdoutTraces,
		Registerer:   reg,
	})
	if err != nil {
		return fmt.Errorf("failed to set up telemetry: %w", err)
	}
	defer observability.ShutdownWithTimeout(shutdownTelemetry, cfg.Server.ShutdownTimeout)

	db, err := bstore.Open(storageConfig(cfg.Storage, logger.Slog()))
	if err != nil {
		return fmt.Errorf("failed to open storage: %w", err)
	}
	defer func() {
		if err := db.Close(); err != nil {
			logger.Error("failed to close storage", "error", err)
		}
	}()

	metrics := observability.NewMetrics(reg)
	discussions := store.New(db, logger.Slog())
	viewer := services.NewThreadViewService(discussions, metrics, logger.Slog())
	limiter := middleware.NewRateLimiter(cfg.Votes.RatePerSecond, cfg.Votes.Burst)

	if cfg.Logging.Level != "debug" {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()
	router.Use(gin.Recovery(), otelgin.Middleware(cfg.Telemetry.ServiceName))
	routes.SetupRoutes(router, routes.Dependencies{
		Citations:   discussions,
		Posts:       discussions,
		Threads:     viewer,
		Metrics:     metrics,
		Gatherer:    reg,
		VoteLimiter: limiter,
		Logger:      logger.Slog(),
	})

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info("discussion service listening",
			"port", cfg.Server.Port,
			"data_dir", db.Path(),
			"in_memory", db.InMemory())
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()
		logger.Info("shutting down the HTTP server")
		return srv.Shutdown(shutdownCtx)
	})
	g.Go(func() error {
		err := config.Watch(gctx, configPath, func(next *config.Config) {
			applyReload(next, logger, limiter)
		})
		if err != nil {
			// Live reload is optional; the service keeps running without it.
			logger.Warn("config watcher unavailable", "error", err)
		}
		return nil
	})

	return g.Wait()
}
