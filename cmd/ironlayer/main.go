// Package main is the ironlayer control-plane entry point.
package main

import (
	"context"
	"log"
	"net"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/robfig/cron/v3"

	"github.com/ironlayer/ironlayer/internal/config"
	"github.com/ironlayer/ironlayer/internal/eventbus"
	"github.com/ironlayer/ironlayer/internal/governance"
	"github.com/ironlayer/ironlayer/internal/logging"
	"github.com/ironlayer/ironlayer/internal/metering"
	"github.com/ironlayer/ironlayer/internal/state/postgres"
)

func main() {
	ctx := context.Background()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("CRITICAL: load config: %v", err)
	}
	if err := cfg.Validate(); err != nil {
		log.Fatalf("CRITICAL: %v", err)
	}

	logger := logging.New("ironlayer", cfg.Logging.Level, cfg.Logging.Format)
	logger.WithFields(map[string]interface{}{"env": cfg.Env}).Info("starting ironlayer")

	// The telemetry/webhook egress path must never resolve to a private
	// or loopback address outside dev; fail fast rather than let a
	// misconfigured subscription URL reach an internal service.
	if !cfg.IsDev() {
		if err := governance.ValidateWebhookURL(strings.TrimSpace(os.Getenv("TELEMETRY_ENDPOINT")), net.LookupIP); err != nil && os.Getenv("TELEMETRY_ENDPOINT") != "" {
			log.Fatalf("CRITICAL: TELEMETRY_ENDPOINT is not a safe egress target: %v", err)
		}
	}

	if err := setupStateStore(ctx, cfg, logger); err != nil {
		log.Fatalf("CRITICAL: setup state store: %v", err)
	}

	bus := eventbus.New(logger)
	dispatcher := eventbus.NewDispatcher(&http.Client{Timeout: 10 * time.Second}, net.LookupIP, logger)
	bus.Subscribe(eventbus.EventPlanApplied, func(ctx context.Context, e eventbus.Event) error {
		dispatcher.Deliver(ctx, e)
		return nil
	})
	bus.Subscribe(eventbus.EventRunFailed, func(ctx context.Context, e eventbus.Event) error {
		dispatcher.Deliver(ctx, e)
		return nil
	})

	meteringSink := metering.NewMemorySink()
	collector := metering.NewCollector(meteringSink, 500)

	aggStore := metering.NewMemoryStore()
	aggregator := metering.NewAggregator(aggStore)

	scheduler := cron.New()
	if _, err := scheduler.AddFunc("@every 1m", func() {
		if err := collector.Flush(ctx); err != nil {
			logger.WithFields(map[string]interface{}{"error": err.Error()}).Error("metering flush failed")
		}
	}); err != nil {
		log.Fatalf("CRITICAL: schedule metering flush: %v", err)
	}
	if _, err := scheduler.AddFunc("@every 1h", func() {
		if err := aggregator.RunOnce(ctx, timeNow()); err != nil {
			logger.WithFields(map[string]interface{}{"error": err.Error()}).Error("metering rollup failed")
		}
	}); err != nil {
		log.Fatalf("CRITICAL: schedule metering rollup: %v", err)
	}
	scheduler.Start()
	defer scheduler.Stop()

	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", healthHandler)
	mux.Handle("/metrics", promhttp.Handler())

	server := &http.Server{
		Addr:              cfg.Server.Host + ":" + strconv.Itoa(cfg.Server.Port),
		Handler:           mux,
		ReadTimeout:       30 * time.Second,
		ReadHeaderTimeout: 10 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       120 * time.Second,
		MaxHeaderBytes:    1 << 20,
	}

	go func() {
		logger.WithFields(map[string]interface{}{"addr": server.Addr}).Info("listening")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("CRITICAL: server error: %v", err)
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh

	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	if err := collector.Flush(shutdownCtx); err != nil {
		logger.WithFields(map[string]interface{}{"error": err.Error()}).Error("final metering flush failed")
	}
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.WithFields(map[string]interface{}{"error": err.Error()}).Error("server shutdown error")
	}
}

// setupStateStore opens and, if configured, migrates the persistent state
// store. When Database.Driver is "memory" no connection is made: callers
// that need a state.CRUDStore construct one per entity type via
// internal/state/memory instead.
func setupStateStore(ctx context.Context, cfg *config.Config, logger *logging.Logger) error {
	if cfg.Database.Driver == "memory" {
		logger.Info("using in-memory state store (not for production)")
		return nil
	}

	dsn := cfg.Database.DSN
	if dsn == "" {
		dsn = cfg.Database.ConnectionString()
	}
	db, err := postgres.Connect(dsn)
	if err != nil {
		return err
	}
	db.SetMaxOpenConns(cfg.Database.MaxOpenConns)
	db.SetMaxIdleConns(cfg.Database.MaxIdleConns)
	db.SetConnMaxLifetime(time.Duration(cfg.Database.ConnMaxLifetime) * time.Second)

	if cfg.Database.MigrateOnStart {
		migrationsPath := os.Getenv("MIGRATIONS_PATH")
		if migrationsPath == "" {
			migrationsPath = "internal/state/postgres/migrations"
		}
		if err := postgres.Migrate(db, migrationsPath); err != nil {
			return err
		}
		logger.Info("migrations applied")
	}
	return nil
}

func healthHandler(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(`{"status":"ok"}`))
}

// timeNow is the single call site for wall-clock time in main.
func timeNow() time.Time { return time.Now() }
