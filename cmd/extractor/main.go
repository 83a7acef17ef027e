// Command extractor serves POST /extract_frames: it samples a video with
// ffmpeg into the shared frame store and reports the frame count.
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
	"github.com/heimdex/heimdex-motion/internal/db"
	"github.com/heimdex/heimdex-motion/internal/extraction"
	"github.com/heimdex/heimdex-motion/internal/logging"
	"github.com/heimdex/heimdex-motion/internal/metrics"
	"github.com/heimdex/heimdex-motion/internal/pipeline"
)

const (
	shutdownTimeout = 10 * time.Second
	probeTimeout    = 10 * time.Second
)

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

	if err := os.MkdirAll(cfg.DataDir(), 0755); err != nil {
		return fmt.Errorf("failed to create data dir: %w", err)
	}
	if err := os.MkdirAll(cfg.FramesDir(), 0755); err != nil {
		return fmt.Errorf("failed to create frames dir: %w", err)
	}

	logger := logging.WithComponent(logging.NewLogger(cfg.LogLevel()), "extractor")
	logger.Info("starting frame extractor",
		"version", config.Version,
		"data_dir", logging.SanitizePath(cfg.DataDir()),
		"frames_dir", cfg.FramesDir(),
		"fps", cfg.FPS(),
	)

	database, err := db.New(cfg.DBPath(), logger)
	if err != nil {
		return fmt.Errorf("failed to initialize database: %w", err)
	}
	defer database.Close()

	ffmpeg, err := pipeline.NewFFmpegExtractor(pipeline.Config{
		FFmpegPath: cfg.FFmpegPath(),
		Timeout:    cfg.ExtractTimeout(),
		Logger:     logger,
	})
	if err != nil {
		return fmt.Errorf("ffmpeg unavailable: %w", err)
	}

	doctor := pipeline.NewCachedDoctor(pipeline.VersionProber{FFmpegPath: ffmpeg.Path()}, logger)
	probeCtx, probeCancel := context.WithTimeout(context.Background(), probeTimeout)
	if caps, err := doctor.Refresh(probeCtx); err != nil {
		logger.Warn("initial ffmpeg probe failed", "error", err)
	} else {
		logger.Info("ffmpeg detected", "path", caps.Path, "version", caps.Version)
	}
	probeCancel()

	m := metrics.New()
	svc, err := extraction.NewService(extraction.NewRepository(database.Conn()), ffmpeg, extraction.Config{
		FramesDir:     cfg.FramesDir(),
		FPS:           cfg.FPS(),
		MaxConcurrent: cfg.MaxExtractions(),
	}, m, logger)
	if err != nil {
		return fmt.Errorf("failed to create extraction service: %w", err)
	}

	router := api.NewExtractorRouter(api.ExtractorConfig{
		Service:   svc,
		Doctor:    doctor,
		DB:        database,
		FPS:       cfg.FPS(),
		Metrics:   m,
		Logger:    logger,
		StartTime: startTime,
	})
	server := api.NewServer(cfg.BindAddr(), cfg.ExtractorPort(), router, logger)

	return serve(server, logger)
}

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
