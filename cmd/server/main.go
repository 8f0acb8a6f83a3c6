// Package main runs the platform HTTP server.
package main

import (
	"context"
	"flag"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	app "github.com/postlane/platform/internal/app"
	"github.com/postlane/platform/internal/app/cache"
	"github.com/postlane/platform/internal/app/httpapi"
	"github.com/postlane/platform/internal/app/storage/postgres"
	"github.com/postlane/platform/internal/config"
	"github.com/postlane/platform/internal/middleware"
	"github.com/postlane/platform/internal/platform/migrations"
	"github.com/postlane/platform/pkg/logger"
)

func main() {
	configPath := flag.String("config", "config.yaml", "Path to configuration file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		logger.NewDefault("main").WithError(err).Fatal("load configuration")
	}

	log := logger.New(cfg.Logging)
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	stores := app.Stores{}
	if cfg.Database.URL != "" {
		db, err := sqlx.Connect("postgres", cfg.Database.URL)
		if err != nil {
			log.WithError(err).Fatal("connect to database")
		}
		defer db.Close()
		if err := migrations.Apply(ctx, db.DB); err != nil {
			log.WithError(err).Fatal("apply migrations")
		}
		store := postgres.New(db)
		stores = app.Stores{
			Users:         store,
			Social:        store,
			Subscriptions: store,
			Gamification:  store,
			Webhooks:      store,
			Schedule:      store,
		}
		log.Info("using postgres storage")
	} else {
		log.Warn("database.url not set; using in-memory storage")
	}

	var backend cache.Cache
	if cfg.Redis.Addr != "" {
		client := redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		if err := client.Ping(ctx).Err(); err != nil {
			log.WithError(err).Fatal("connect to redis")
		}
		defer client.Close()
		backend = cache.NewRedis(client, "platform")
		log.Info("using redis cache")
	}

	application, err := app.New(cfg, stores, backend, log)
	if err != nil {
		log.WithError(err).Fatal("build application")
	}

	if err := application.Start(ctx); err != nil {
		log.WithError(err).Fatal("start application")
	}

	registry := prometheus.NewRegistry()
	metrics := middleware.NewMetrics(registry)
	auth := middleware.NewAuthMiddleware([]byte(cfg.Auth.Secret), log, httpapi.SkipAuthPaths)
	limiter := middleware.NewRateLimiter(cfg.Server.RequestsPerSecond, cfg.Server.Burst, log)

	cleanupStop := make(chan struct{})
	limiter.StartCleanup(10*time.Minute, cleanupStop)

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))
	mux.Handle("/", httpapi.NewHandler(application))

	// Auth wraps the limiter so authenticated traffic is keyed per user, not
	// per proxy address.
	var handler http.Handler = mux
	handler = limiter.Handler(handler)
	handler = auth.Handler(handler)
	handler = middleware.Logging(log)(handler)
	handler = metrics.Handler(handler)

	server := &http.Server{
		Addr:         cfg.Server.Addr,
		Handler:      handler,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		log.WithField("addr", cfg.Server.Addr).Info("server listening")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
		log.Info("shutdown signal received")
	case err := <-errCh:
		log.WithError(err).Error("server error")
	}

	close(cleanupStop)

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.WithError(err).Error("server shutdown")
	}
	if err := application.Stop(shutdownCtx); err != nil {
		log.WithError(err).Error("application stop")
	}
	log.Info("server stopped")
}
