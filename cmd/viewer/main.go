package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"sync/atomic"
	"syscall"
	"time"

	"camcast/internal/client"
	"camcast/internal/core/domain"
	"camcast/pkg/config"
	"camcast/pkg/logger"
	"camcast/pkg/retry"
)

// Headless viewer: subscribes to a camcast server and lets the adaptive
// controller chase the tier its link can sustain, logging what it receives.
func main() {
	serverURL := flag.String("url", "ws://localhost:6732", "camcast server base URL")
	tier := flag.Int("tier", 80, "initial quality tier")
	flag.Parse()

	cfg, err := config.Load("configs/config.yaml")
	if err != nil {
		cfg = config.DefaultConfig()
	}

	zapLogger := logger.New(cfg.Logging.Level, "console")
	defer zapLogger.Sync()

	log := zapLogger.Sugar()

	var frames, bytes atomic.Uint64

	controller := client.NewController(client.Config{
		ServerURL:   *serverURL,
		InitialTier: domain.Tier(*tier),
		Bounds: domain.TierBounds{
			Min: domain.Tier(cfg.Tiers.Min),
			Max: domain.Tier(cfg.Tiers.Max),
		},
		LowFPS:           cfg.Adaptive.LowFPS,
		HighFPS:          cfg.Adaptive.HighFPS,
		Step:             cfg.Adaptive.Step,
		Window:           cfg.Adaptive.Window,
		CheckInterval:    cfg.Adaptive.CheckInterval,
		HandshakeTimeout: 5 * time.Second,
		Dial:             retry.DefaultConfig(),
		OnFrame: func(data []byte, tier domain.Tier) {
			frames.Add(1)
			bytes.Add(uint64(len(data)))
		},
	}, log)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go func() {
		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
		<-sigChan
		cancel()
	}()

	go func() {
		ticker := time.NewTicker(5 * time.Second)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				log.Infow("viewer stats",
					"state", controller.State(),
					"tier", controller.Tier(),
					"frames", frames.Load(),
					"bytes", bytes.Load(),
				)
			}
		}
	}()

	if err := controller.Run(ctx); err != nil {
		log.Fatalw("viewer stopped", "error", err)
	}
	log.Info("viewer closed")
}
