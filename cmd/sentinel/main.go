package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/jonboulle/clockwork"

	boltadapter "github.com/Arham-Git047/Project-Sentinel/internal/adapter/bolt"
	httpadapter "github.com/Arham-Git047/Project-Sentinel/internal/adapter/http"
	kafkaadapter "github.com/Arham-Git047/Project-Sentinel/internal/adapter/kafka"
	"github.com/Arham-Git047/Project-Sentinel/internal/adapter/mapbox"
	natsadapter "github.com/Arham-Git047/Project-Sentinel/internal/adapter/nats"
	wsadapter "github.com/Arham-Git047/Project-Sentinel/internal/adapter/websocket"
	"github.com/Arham-Git047/Project-Sentinel/internal/alert"
	"github.com/Arham-Git047/Project-Sentinel/internal/config"
	"github.com/Arham-Git047/Project-Sentinel/internal/domain"
	"github.com/Arham-Git047/Project-Sentinel/internal/notify"
	"github.com/Arham-Git047/Project-Sentinel/internal/observability"
	"github.com/Arham-Git047/Project-Sentinel/internal/pipeline"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	logger := observability.NewLogger(cfg)
	metrics := observability.NewMetrics()

	// Zone localisation for readings that carry coordinates only.
	var resolver domain.ZoneResolver = domain.CentroidResolver{MaxDistanceKm: 25}
	if cfg.MapboxEnabled {
		client := mapbox.NewClient(cfg.MapboxToken, cfg.MapboxTimeout, metrics, logger)
		resolver = mapbox.NewCachedResolver(client, cfg.MapboxCacheSize, metrics)
		metrics.MapboxEnabled.Set(1)
		logger.Info("mapbox zone resolution enabled", "cache_size", cfg.MapboxCacheSize, "timeout", cfg.MapboxTimeout)
	} else {
		logger.Info("mapbox zone resolution disabled, using zone centroids")
	}

	// Outbound sinks.
	writer := kafkaadapter.NewAlertWriter(cfg, logger)
	hub := wsadapter.NewHub(logger)
	sinks := []notify.Sink{notify.LogSink{Logger: logger}, writer, hub}

	var publisher *natsadapter.Publisher
	if cfg.NATSURL != "" {
		publisher, err = natsadapter.Connect(cfg.NATSURL, cfg.NATSSubject, logger)
		if err != nil {
			logger.Error("failed to connect nats", "error", err)
			os.Exit(1)
		}
		sinks = append(sinks, publisher)
		logger.Info("nats fan-out enabled", "subject", cfg.NATSSubject)
	}

	dispatcher := notify.NewDispatcher(cfg.NotifyQueueSize, sinks,
		notify.WithLogger(logger),
		notify.WithMetrics(metrics),
	)

	var store alert.Store
	var journal *boltadapter.Store
	if cfg.AlertDBPath != "" {
		journal, err = boltadapter.Open(cfg.AlertDBPath)
		if err != nil {
			logger.Error("failed to open alert journal", "error", err)
			os.Exit(1)
		}
		store = journal
	}

	engine, alerts, err := pipeline.Assemble(cfg, pipeline.Deps{
		Clock:    clockwork.NewRealClock(),
		Emitter:  dispatcher,
		Resolver: resolver,
		Store:    store,
		Logger:   logger,
		Metrics:  metrics,
	})
	if err != nil {
		logger.Error("failed to build engine", "error", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if journal != nil {
		n, err := alerts.Restore(ctx)
		if err != nil {
			logger.Error("failed to restore alerts from journal", "error", err)
			os.Exit(1)
		}
		logger.Info("alert journal restored", "path", cfg.AlertDBPath, "active_alerts", n)
	}

	reader := kafkaadapter.NewReader(cfg, logger)
	ingester := pipeline.NewIngester(reader, engine, logger, metrics, cfg.BatchSize)
	srv := httpadapter.NewServer(cfg.HTTPAddr, engine, hub.ServeWS, logger)

	// Start HTTP server.
	go func() {
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http server error", "error", err)
		}
	}()

	go func() {
		if err := hub.Run(ctx); err != nil {
			logger.Error("websocket hub error", "error", err)
		}
	}()

	go func() {
		if err := dispatcher.Run(ctx); err != nil {
			logger.Error("dispatcher error", "error", err)
		}
	}()

	// Start ingestion and evaluation.
	go func() {
		if err := ingester.Run(ctx); err != nil {
			logger.Error("ingester error", "error", err)
		}
	}()
	go func() {
		if err := engine.Run(ctx); err != nil {
			logger.Error("engine error", "error", err)
		}
	}()

	if journal != nil {
		maintenance, err := pipeline.StartMaintenance(ctx, cfg.PruneSchedule, cfg.AlertRetention, alerts, logger)
		if err != nil {
			logger.Error("failed to schedule journal pruning", "error", err)
			os.Exit(1)
		}
		defer maintenance.Stop()
	}

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("http server shutdown error", "error", err)
	}
	if err := reader.Close(); err != nil {
		logger.Error("kafka reader close error", "error", err)
	}

	// Deliver whatever the last cycle queued before closing the sinks.
	dispatcher.Drain(shutdownCtx)

	if err := writer.Close(); err != nil {
		logger.Error("kafka writer close error", "error", err)
	}
	if publisher != nil {
		if err := publisher.Close(); err != nil {
			logger.Error("nats close error", "error", err)
		}
	}
	if journal != nil {
		if err := journal.Close(); err != nil {
			logger.Error("alert journal close error", "error", err)
		}
	}

	logger.Info("shutdown complete")
}
