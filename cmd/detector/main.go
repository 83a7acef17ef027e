// Command detector serves POST /detect_motion: it loads a video's extracted
// frames from the shared frame store and reports the motion segments.
package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/heimdex/heimdex-motion/internal/api"
	"github.com/heimdex/heimdex-motion/internal/config"
	"github.com/heimdex/heimdex-motion/internal/detection"
	"github.com/heimdex/heimdex-motion/internal/frames"
	"github.com/heimdex/heimdex-motion/internal/logging"
	"github.com/heimdex/heimdex-motion/internal/metrics"
	"github.com/heimdex/heimdex-motion/internal/motion"
)

const shutdownTimeout = 10 * time.Second

func main() {
	if err := run(); err != nil {
		log.Fatalf("fatal error: %v", err)
	}
}

func run() error {
	startTime := time.Now()

	cfg, err := config.New()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	logger := logging.WithComponent(logging.NewLogger(cfg.LogLevel()), "detector")

	thresholds := motion.Thresholds{
		PixelDiff:        cfg.PixelDiffThreshold(),
		MotionPixelCount: cfg.PixelCountThreshold(),
	}
	logger.Info("starting motion detector",
		"version", config.Version,
		"frames_dir", cfg.FramesDir(),
		"pixel_diff", thresholds.PixelDiff,
		"motion_pixel_count", thresholds.MotionPixelCount,
	)

	if info, err := os.Stat(cfg.FramesDir()); err != nil || !info.IsDir() {
		logger.Warn("frames dir not available yet", "frames_dir", cfg.FramesDir())
	}

	m := metrics.New()
	svc, err := detection.NewService(frames.NewLoader(cfg.FramesDir()), thresholds, m, logger)
	if err != nil {
		return fmt.Errorf("invalid detection thresholds: %w", err)
	}

	router := api.NewDetectorRouter(api.DetectorConfig{
		Service:    svc,
		Thresholds: thresholds,
		Metrics:    m,
		Logger:     logger,
		StartTime:  startTime,
	})
	server := api.NewServer(cfg.BindAddr(), cfg.DetectorPort(), router, logger)

	return serve(server, logger)
}

// serve runs the server until it fails or SIGINT/SIGTERM arrives, then
// drains in-flight requests.
func serve(server *api.Server, logger *slog.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	g, gctx := errgroup.WithContext(ctx)
	g.Go(server.Start)
	g.Go(func() error {
		<-gctx.Done()
		logger.Info("initiating graceful shutdown")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	logger.Info("shutdown complete")
	return nil
}
