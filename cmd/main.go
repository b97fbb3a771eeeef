package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/UnknownOlympus/hermes/internal/api"
	"github.com/UnknownOlympus/hermes/internal/capture"
	"github.com/UnknownOlympus/hermes/internal/config"
	"github.com/UnknownOlympus/hermes/internal/geocoding"
	"github.com/UnknownOlympus/hermes/internal/location"
	"github.com/UnknownOlympus/hermes/internal/metrics"
	"github.com/UnknownOlympus/hermes/internal/models"
	"github.com/UnknownOlympus/hermes/internal/ocr"
	"github.com/UnknownOlympus/hermes/internal/ocr/tesseract"
	"github.com/UnknownOlympus/hermes/internal/resolver"
	"github.com/UnknownOlympus/hermes/internal/route"
	"github.com/UnknownOlympus/hermes/internal/stops"
	"github.com/UnknownOlympus/hermes/internal/storage"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Constants for different environment types.
const (
	envLocal = "local"
	envDev   = "development"
	envProd  = "production"
)

const shutdownTimeout = 10 * time.Second

// main is the entry point of the application.
func main() {
	// Create a context that will be canceled when an interrupt signal is received.
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Load application configuration.
	cfg := config.MustLoad()

	// Set up the logger based on the environment.
	logger := setupLogger(cfg.Env)

	// Create a separate registry for metrics.
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector())
	reg.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	appMetrics := metrics.NewMetrics(reg)

	// Open the durable storage the route and the resolution cache live in.
	kv, closeStorage, err := storage.New(ctx, storage.Config{
		Type: storage.Type(cfg.Storage.Type),
		Dir:  cfg.Storage.Dir,
		Redis: storage.RedisConfig{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		},
		Postgres: storage.PostgresConfig{
			Host:     cfg.Database.Host,
			Port:     cfg.Database.Port,
			User:     cfg.Database.User,
			Password: cfg.Database.Password,
			Name:     cfg.Database.Name,
		},
		Logger: logger,
	})
	if err != nil {
		log.Fatalf("Failed to open storage: %v", err)
	}
	defer closeStorage()

	// Create the place-search provider selected in configuration.
	provider, err := geocoding.NewProvider(geocoding.ProviderConfig{
		Type:      geocoding.ProviderType(cfg.Provider.Type),
		APIKey:    cfg.Provider.APIKey,
		RateLimit: cfg.Provider.RateLimit,
		BaseURL:   cfg.Provider.BaseURL,
		Logger:    logger,
	})
	if err != nil {
		log.Fatalf("Failed to create place-search provider: %v", err)
	}
	if cfg.CacheEnabled {
		provider = resolver.NewCachedProvider(provider, kv, appMetrics, logger)
	}

	logger.InfoContext(ctx, "Place-search provider initialized", "type", cfg.Provider.Type, "cache", cfg.CacheEnabled)

	addressResolver := resolver.New(logger, provider, cfg.Provider.Type, appMetrics, cfg.AddressSuffix)

	// Restore the route persisted by the previous run.
	store := stops.NewStore(kv, cfg.Namespace, appMetrics, logger)
	if err = store.Load(ctx); err != nil {
		log.Fatalf("Failed to load persisted route: %v", err)
	}

	tracker := location.NewTracker(positionSource(cfg.Position, logger), cfg.Position.Restart, logger)
	go func() {
		if runErr := tracker.Run(ctx); runErr != nil {
			logger.WarnContext(ctx, "Live location unavailable", "error", runErr)
		}
	}()

	var extractor ocr.Extractor
	if cfg.OCRLanguages != "" {
		engine, engineErr := tesseract.NewEngine(cfg.OCRLanguages, logger)
		if engineErr != nil {
			logger.WarnContext(ctx, "Photo capture disabled", "error", engineErr)
		} else {
			defer engine.Close()
			extractor = engine
		}
	}

	pipeline := capture.NewService(logger, addressResolver, extractor, store, tracker, appMetrics, cfg.Workers)
	sequencer := route.NewSequencer(store, tracker, logger)
	router := api.NewRouter(api.NewServer(logger, store, sequencer, pipeline, addressResolver, tracker))

	// Start the monitoring server in a goroutine to allow main to listen for signals.
	go startMonitoringServer(ctx, logger, reg, kv, cfg.HealthPort)

	go func() {
		logger.InfoContext(ctx, "Starting route API", "port", cfg.HTTPPort)
		if serveErr := router.Start(fmt.Sprintf(":%d", cfg.HTTPPort)); serveErr != nil &&
			!errors.Is(serveErr, http.ErrServerClosed) {
			logger.ErrorContext(ctx, "Route API failed", "error", serveErr)
			stop()
		}
	}()

	// Log that the application has started.
	logger.InfoContext(ctx, "Application started. Press Ctrl+C to stop.", "namespace", cfg.Namespace)

	// Wait for the context to be canceled (e.g., by Ctrl+C).
	<-ctx.Done()

	logger.InfoContext(ctx, "Shutdown signal received. Stopping application...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err = router.Shutdown(shutdownCtx); err != nil {
		logger.ErrorContext(shutdownCtx, "Failed to stop route API", "error", err)
	}

	logger.InfoContext(shutdownCtx, "Application stopped gracefully.")
}

// positionSource picks where the live location comes from. Push mode has no source: the
// client reports positions through the API.
func positionSource(cfg config.PositionConfig, log *slog.Logger) location.Source {
	switch cfg.Source {
	case config.PositionStatic:
		return location.StaticSource{Coordinates: models.Coordinates{Latitude: cfg.Latitude, Longitude: cfg.Longitude}}
	case config.PositionFile:
		return location.NewFileSource(cfg.File, cfg.Interval, log)
	default:
		return nil
	}
}

// startMonitoringServer starts an HTTP server that provides health check and metrics endpoints.
// It listens on the specified port and logs the server's status and any errors encountered.
//
// Parameters:
// - ctx: A context.Context for managing cancellation and timeouts.
// - log: A logger for logging server events and errors.
// - reg: A registry with Prometheus collectors.
// - kv: The storage backend to ping.
// - port: The port number on which the server will listen.
func startMonitoringServer(
	ctx context.Context,
	log *slog.Logger,
	reg *prometheus.Registry,
	kv storage.KV,
	port int,
) {
	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", func(writer http.ResponseWriter, req *http.Request) {
		log.DebugContext(ctx, "Performing health checks...")
		status, body := http.StatusOK, "OK"
		if err := kv.Ping(req.Context()); err != nil {
			status, body = http.StatusServiceUnavailable, "Storage ping failed"
		}
		writer.WriteHeader(status)
		_, err := writer.Write([]byte(body))
		if err != nil {
			log.ErrorContext(ctx, "failed to write reply", "error", err)
		}

		log.DebugContext(ctx, "Health checks completed", "status", status)
	})
	mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))

	log.InfoContext(ctx, "Starting monitoring server", "port", port)
	readTimeout := 5
	writeTimeout := 10
	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", port),
		Handler:      mux,
		ReadTimeout:  time.Duration(readTimeout) * time.Second,
		WriteTimeout: time.Duration(writeTimeout) * time.Second,
	}
	go func() {
		<-ctx.Done()
		_ = server.Close()
	}()
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.ErrorContext(ctx, "Monitoring server failed", "error", err)
	}
}

// setupLogger initializes and returns a logger based on the environment provided.
func setupLogger(env string) *slog.Logger {
	var log *slog.Logger

	switch env {
	case envLocal:
		log = slog.New(
			slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
				Level:     slog.LevelDebug,
				AddSource: true,
			}),
		)
	case envDev:
		log = slog.New(
			slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
				Level: slog.LevelInfo,
			}),
		)
	case envProd:
		log = slog.New(
			slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
				Level:       slog.LevelWarn,
				ReplaceAttr: dropTime,
			}),
		)
	default:
		log = slog.New(
			slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
				Level:       slog.LevelError,
				ReplaceAttr: dropTime,
			}),
		)

		log.Error(
			"The env parameter was not specified or was invalid. Logging will be minimal, by default.",
			slog.String("available_envs", "local, development, production"))
	}

	return log
}

func dropTime(_ []string, a slog.Attr) slog.Attr {
	if a.Key == slog.TimeKey {
		return slog.Attr{}
	}
	return a
}
