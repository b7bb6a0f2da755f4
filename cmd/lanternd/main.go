package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/lanternsearch/lantern/internal/document"
	"github.com/lanternsearch/lantern/internal/index"
	"github.com/lanternsearch/lantern/internal/ingest"
	storagepg "github.com/lanternsearch/lantern/internal/storage/postgres"
	"github.com/lanternsearch/lantern/pkg/config"
	"github.com/lanternsearch/lantern/pkg/health"
	"github.com/lanternsearch/lantern/pkg/kafka"
	"github.com/lanternsearch/lantern/pkg/logger"
	"github.com/lanternsearch/lantern/pkg/metrics"
	"github.com/lanternsearch/lantern/pkg/postgres"
	"github.com/lanternsearch/lantern/pkg/resilience"
)

func main() {
	configPath := flag.String("config", "configs/development.yaml", "path to config file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	logger.Setup(cfg.Logging.Level, cfg.Logging.Format)
	slog.Info("starting lanternd", "port", cfg.Server.Port)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	m := metrics.New()

	var pgClient *postgres.Client
	newStore := func(name string) (document.Store, error) {
		return document.NewMemStore(), nil
	}
	pgClient, err = postgres.New(cfg.Postgres)
	if err != nil {
		slog.Warn("postgres unavailable, using in-memory document store", "error", err)
		pgClient = nil
	} else {
		defer pgClient.Close()
		newStore = func(name string) (document.Store, error) {
			return storagepg.NewStore(ctx, pgClient, name)
		}
		slog.Info("document store ready", "host", cfg.Postgres.Host, "database", cfg.Postgres.Database)
	}

	registry := index.NewRegistry(cfg.Index.MutationQueueSize, m, newStore)

	mutationHandler := ingest.NewConsumer(registry, resilience.RetryConfig{}, logger.WithComponent("ingest"))
	consumer := kafka.NewConsumer(cfg.Kafka, cfg.Kafka.Topics.IndexMutations, mutationHandler.Handle)
	go func() {
		if err := consumer.Start(ctx); err != nil {
			slog.Error("mutation consumer stopped", "error", err)
		}
	}()
	slog.Info("mutation consumer started", "topic", cfg.Kafka.Topics.IndexMutations)

	checker := health.NewChecker()
	checker.Register("postgres", func(ctx context.Context) health.ComponentHealth {
		if pgClient == nil {
			return health.ComponentHealth{Status: health.StatusDegraded, Message: "in-memory store"}
		}
		if err := pgClient.DB.PingContext(ctx); err != nil {
			return health.ComponentHealth{Status: health.StatusDown, Message: err.Error()}
		}
		return health.ComponentHealth{Status: health.StatusUp}
	})
	checker.Register("indexes", func(ctx context.Context) health.ComponentHealth {
		names := registry.Names()
		return health.ComponentHealth{
			Status:  health.StatusUp,
			Message: fmt.Sprintf("%d indexes registered", len(names)),
		}
	})

	mux := http.NewServeMux()
	mux.HandleFunc("GET /health/live", checker.LiveHandler())
	mux.HandleFunc("GET /health/ready", checker.ReadyHandler())
	if cfg.Metrics.Enabled {
		mux.Handle("GET /metrics", metrics.Handler())
	}

	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      mux,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	go func() {
		<-ctx.Done()
		slog.Info("shutdown signal received")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			slog.Error("server shutdown error", "error", err)
		}
	}()

	slog.Info("lanternd listening", "addr", server.Addr)
	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		slog.Error("server error", "error", err)
		os.Exit(1)
	}

	slog.Info("lanternd stopped")
}
