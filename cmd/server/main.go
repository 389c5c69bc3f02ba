package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"camcast/internal/core/domain"
	"camcast/internal/core/services"
	"camcast/internal/infrastructure/capture"
	"camcast/internal/infrastructure/middleware"
	"camcast/internal/infrastructure/monitoring"
	"camcast/internal/infrastructure/stream"
	"camcast/pkg/config"
	"camcast/pkg/logger"
	"camcast/pkg/tracing"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

func main() {
	// Try multiple config paths
	configPaths := []string{
		"configs/config.yaml",
		"./configs/config.yaml",
		"config.yaml",
	}

	var cfg *config.Config
	var err error

	for _, path := range configPaths {
		cfg, err = config.Load(path)
		if err == nil {
			break
		}
	}
	if err != nil {
		cfg = config.DefaultConfig()
	}

	// Initialize logger
	zapLogger := logger.New(cfg.Logging.Level, cfg.Logging.Format)
	defer zapLogger.Sync()

	log := zapLogger.Sugar()

	// Initialize tracing
	tp, err := tracing.Init(tracing.Config{
		Enabled:     cfg.Tracing.Enabled,
		ServiceName: "camcast",
		JaegerURL:   cfg.Tracing.JaegerURL,
		Environment: cfg.Tracing.Environment,
		SampleRate:  cfg.Tracing.SampleRate,
	})
	if err != nil {
		log.Fatalw("failed to initialize tracing", "error", err)
	}

	bounds := domain.TierBounds{Min: domain.Tier(cfg.Tiers.Min), Max: domain.Tier(cfg.Tiers.Max)}

	// Core state: demand counters and the per-tier frame slots
	collector := monitoring.NewPrometheusCollector(prometheus.DefaultRegisterer)
	demand := services.NewDemandRegistry()
	cache := services.NewFrameCache()

	// Connection hub and subscription endpoint
	hub := stream.NewHub(demand, collector, stream.HubConfig{
		Bounds:       bounds,
		SendTimeout:  cfg.Stream.SendTimeout,
		PingInterval: cfg.Stream.PingInterval,
		PongTimeout:  cfg.Stream.PongTimeout,
	}, log)
	hub.SetTierIdleFunc(cache.Drop)
	hub.SetLatestFrameFunc(cache.Latest)

	wsServer := stream.NewServer(hub, demand, collector, log)

	// Capture source and the timing loop
	source := capture.NewSyntheticSource(640, 480)
	loop := services.NewCaptureLoop(source, demand, cache, hub, collector, cfg.Capture.TargetFPS, log)

	loopCtx, loopCancel := context.WithCancel(context.Background())
	defer loopCancel()

	loopErr := make(chan error, 1)
	go func() {
		loopErr <- loop.Run(loopCtx)
	}()

	// Configure Gin
	if cfg.Logging.Level != "debug" {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()
	router.Use(middleware.RecoveryMiddleware(log))
	router.Use(middleware.ErrorHandlerMiddleware(log))
	if cfg.Tracing.Enabled {
		router.Use(middleware.TracingMiddleware())
	}

	router.GET("/websocket/:quality",
		middleware.NewConnectionRateLimitMiddleware(cfg),
		wsServer.HandleSubscribe)
	router.GET("/health", wsServer.HealthCheck)
	router.GET("/stats", wsServer.Stats)

	if cfg.Monitoring.PrometheusEnabled {
		router.GET("/metrics", gin.WrapH(promhttp.Handler()))
		log.Info("Prometheus metrics enabled")
	}

	srv := &http.Server{
		Addr:         cfg.Server.Address,
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	serverErr := make(chan error, 1)
	go func() {
		log.Infof("Starting camcast server on %s", cfg.Server.Address)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			serverErr <- err
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-serverErr:
		log.Fatalw("Server failed", "error", err)
	case err := <-loopErr:
		if err != nil {
			log.Errorw("Capture loop failed", "error", err)
		}
	case sig := <-sigChan:
		log.Infow("Received shutdown signal", "signal", sig)
	}

	log.Info("Shutting down camcast server...")

	// Stop the capture loop first; it releases the camera exactly once.
	loopCancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer shutdownCancel()

	hub.CloseAll()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Errorw("Error during server shutdown", "error", err)
		if closeErr := srv.Close(); closeErr != nil {
			log.Errorw("Error force closing server", "error", closeErr)
		}
	} else {
		log.Info("Server shutdown gracefully")
	}

	if err := tp.Shutdown(shutdownCtx); err != nil {
		log.Errorw("Error shutting down tracer", "error", err)
	}

	log.Info("camcast server stopped")
}
