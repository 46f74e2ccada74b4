package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/couchcryptid/bloom-risk-service/internal/adapter/aemet"
	httpadapter "github.com/couchcryptid/bloom-risk-service/internal/adapter/http"
	kafkaadapter "github.com/couchcryptid/bloom-risk-service/internal/adapter/kafka"
	"github.com/couchcryptid/bloom-risk-service/internal/adapter/meteomatics"
	"github.com/couchcryptid/bloom-risk-service/internal/adapter/simulator"
	"github.com/couchcryptid/bloom-risk-service/internal/adapter/weather"
	"github.com/couchcryptid/bloom-risk-service/internal/config"
	"github.com/couchcryptid/bloom-risk-service/internal/domain"
	"github.com/couchcryptid/bloom-risk-service/internal/observability"
	"github.com/couchcryptid/bloom-risk-service/internal/pipeline"
	sharedobs "github.com/couchcryptid/storm-data-shared/observability"
	"github.com/jonboulle/clockwork"
)

const warmupTimeout = 30 * time.Second

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	logger := sharedobs.NewLogger(cfg.LogLevel, cfg.LogFormat)
	metrics := observability.NewMetrics()
	clk := clockwork.NewRealClock()

	// Weather providers are feature-flagged by their credentials; the
	// simulator is always available as the fallback estimator.
	var local, global domain.WeatherProvider
	if cfg.AEMETEnabled {
		client := aemet.NewClient(aemet.Options{
			APIKey:       cfg.AEMETAPIKey,
			BaseURL:      cfg.AEMETBaseURL,
			Station:      cfg.AEMETStation,
			Municipality: cfg.AEMETMunicipality,
			Timeout:      cfg.WeatherTimeout,
		}, clk, metrics, logger)
		local = weather.NewCachedProvider(client, cfg.WeatherCacheSize, cfg.WeatherCacheTTL, clk, metrics)
		logger.Info("aemet provider enabled", "station", cfg.AEMETStation, "municipality", cfg.AEMETMunicipality)
	} else {
		logger.Info("aemet provider disabled")
	}
	if cfg.MeteomaticsEnabled {
		client := meteomatics.NewClient(meteomatics.Options{
			Username: cfg.MeteomaticsUsername,
			Password: cfg.MeteomaticsPassword,
			BaseURL:  cfg.MeteomaticsBaseURL,
			Timeout:  cfg.WeatherTimeout,
		}, clk, metrics, logger)
		global = weather.NewCachedProvider(client, cfg.WeatherCacheSize, cfg.WeatherCacheTTL, clk, metrics)
		logger.Info("meteomatics provider enabled")
	} else {
		logger.Info("meteomatics provider disabled")
	}

	sim := simulator.New(cfg.SimulatorSeed, cfg.Region, clk)
	coordinator, err := weather.NewCoordinator(weather.Options{
		Local:       local,
		Global:      global,
		Fallback:    sim,
		DefaultMode: cfg.WeatherMode,
	}, clk, metrics, logger)
	if err != nil {
		logger.Error("failed to configure weather", "error", err)
		os.Exit(1)
	}

	crops := domain.DefaultCropTable()
	detector := domain.NewDetector(domain.NewSmoother(cfg.SmoothingWindow, cfg.SmoothingPolyOrder), cfg.OnsetDerivativeThreshold)

	opts := pipeline.Options{
		NDVI:        sim,
		Weather:     coordinator,
		History:     sim,
		Detector:    detector,
		Scorer:      domain.NewScorer(crops, clk),
		Home:        cfg.Region,
		Regions:     cfg.Regions,
		DefaultCrop: cfg.DefaultCrop,
	}
	var writer *kafkaadapter.Writer
	if cfg.KafkaEnabled {
		writer = kafkaadapter.NewWriter(cfg.KafkaBrokers, cfg.KafkaResultsTopic, logger)
		opts.Publisher = writer
		logger.Info("result publishing enabled", "topic", cfg.KafkaResultsTopic, "brokers", cfg.KafkaBrokers)
	}

	analyzer := pipeline.New(opts, clk, metrics, logger)
	srv := httpadapter.NewServer(cfg.HTTPAddr, analyzer, coordinator, logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Start HTTP server.
	go func() {
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http server error", "error", err)
		}
	}()

	// Start result publisher.
	go func() {
		if err := analyzer.Run(ctx); err != nil {
			logger.Error("publisher error", "error", err)
		}
	}()

	// Readiness flips after the first analysis; warm up so it does not wait
	// for the first request.
	go func() {
		wctx, cancel := context.WithTimeout(ctx, warmupTimeout)
		defer cancel()
		if err := analyzer.Warmup(wctx); err != nil {
			logger.Warn("warm-up failed, readiness waits for the first request", "error", err)
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("http server shutdown error", "error", err)
	}
	if writer != nil {
		if err := writer.Close(); err != nil {
			logger.Error("kafka writer close error", "error", err)
		}
	}

	logger.Info("shutdown complete")
}
