// Package extraction samples a video into the shared frame store and keeps a
// ledger of every run.
package extraction

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"time"

	"golang.org/x/sync/semaphore"

	"github.com/heimdex/heimdex-motion/internal/detection"
	"github.com/heimdex/heimdex-motion/internal/framestore"
	"github.com/heimdex/heimdex-motion/internal/logging"
	"github.com/heimdex/heimdex-motion/internal/metrics"
	"github.com/heimdex/heimdex-motion/internal/pipeline"
)

type ExtractionService interface {
	Extract(ctx context.Context, req Request) (*Response, error)
	GetExtraction(ctx context.Context, id string) (*Extraction, error)
	ListExtractions(ctx context.Context, limit int) ([]*Extraction, error)
}

type Config struct {
	FramesDir string
	FPS       int

	// MaxConcurrent bounds simultaneous ffmpeg runs; zero means one.
	MaxConcurrent int
}

type Service struct {
	repo      Repository
	extractor pipeline.Extractor
	cfg       Config
	sem       *semaphore.Weighted
	metrics   *metrics.Metrics
	logger    *slog.Logger
}

func NewService(repo Repository, extractor pipeline.Extractor, cfg Config, m *metrics.Metrics, logger *slog.Logger) (*Service, error) {
	if cfg.FPS < 1 {
		return nil, fmt.Errorf("invalid fps %d", cfg.FPS)
	}
	if cfg.FramesDir == "" {
		return nil, errors.New("frames dir is required")
	}
	if cfg.MaxConcurrent < 1 {
		cfg.MaxConcurrent = 1
	}
	if logger == nil {
		logger = logging.Discard()
	}
	return &Service{
		repo:      repo,
		extractor: extractor,
		cfg:       cfg,
		sem:       semaphore.NewWeighted(int64(cfg.MaxConcurrent)),
		metrics:   m,
		logger:    logger,
	}, nil
}

// Extract writes <stem>_1.png .. <stem>_N.png into the frame store and
// returns N. A run that produced no frames is a failure.
func (s *Service) Extract(ctx context.Context, req Request) (*Response, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	videoPath, err := framestore.VideoPath(req.AbsolutePath, req.Filename)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", detection.ErrInvalidRequest, err)
	}

	log := logging.WithVideo(s.logger, req.Filename)
	start := time.Now()

	rec := &Extraction{
		ID:           NewID(),
		Filename:     req.Filename,
		AbsolutePath: req.AbsolutePath,
		LastModified: req.LastModified,
		VideoPath:    videoPath,
		FPS:          s.cfg.FPS,
		Status:       StatusRunning,
		CreatedAt:    start,
		UpdatedAt:    start,
	}
	if err := s.repo.CreateExtraction(ctx, rec); err != nil {
		return nil, fmt.Errorf("record extraction: %w", err)
	}

	frames, err := s.extract(ctx, videoPath, framestore.Stem(req.Filename))
	elapsed := time.Since(start)
	s.metrics.ObserveExtraction(frames, elapsed, err)

	rec.FrameCount = frames
	rec.DurationMs = elapsed.Milliseconds()
	rec.UpdatedAt = time.Now()
	rec.Status = StatusCompleted
	if err != nil {
		rec.Status = StatusFailed
		rec.Error = err.Error()
	}
	// The caller's context may already be done; the ledger row must still close.
	if ferr := s.repo.FinishExtraction(context.WithoutCancel(ctx), rec); ferr != nil {
		log.Warn("failed to finish extraction record", "extraction_id", rec.ID, "error", ferr)
	}

	if err != nil {
		log.Error("frame extraction failed",
			"extraction_id", rec.ID,
			"video", logging.SanitizePath(videoPath),
			"error", err,
		)
		return nil, err
	}

	log.Info("frame extraction complete",
		"extraction_id", rec.ID,
		"frame_count", frames,
		"duration_ms", elapsed.Milliseconds(),
	)
	return &Response{VideoIdentity: req.VideoIdentity, FrameCount: frames}, nil
}

func (s *Service) extract(ctx context.Context, videoPath, stem string) (int, error) {
	info, err := os.Stat(videoPath)
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrVideoNotFound, err)
	}
	if !info.Mode().IsRegular() {
		return 0, fmt.Errorf("%w: %s is not a regular file", ErrVideoNotFound, videoPath)
	}

	if err := s.sem.Acquire(ctx, 1); err != nil {
		return 0, fmt.Errorf("wait for extraction slot: %w", err)
	}
	defer s.sem.Release(1)

	if err := os.MkdirAll(s.cfg.FramesDir, 0755); err != nil {
		return 0, fmt.Errorf("create frames dir: %w", err)
	}

	res, err := s.extractor.Extract(ctx, videoPath, framestore.OutputPattern(s.cfg.FramesDir, stem), s.cfg.FPS)
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrExtractionFailed, err)
	}
	if !res.IsSuccess() {
		return 0, fmt.Errorf("%w: ffmpeg exited with code %d", ErrExtractionFailed, res.ExitCode)
	}
	if res.FrameCount == 0 {
		return 0, fmt.Errorf("%w: no frames produced", ErrExtractionFailed)
	}
	return res.FrameCount, nil
}

func (s *Service) GetExtraction(ctx context.Context, id string) (*Extraction, error) {
	return s.repo.GetExtraction(ctx, id)
}

func (s *Service) ListExtractions(ctx context.Context, limit int) ([]*Extraction, error) {
	return s.repo.ListExtractions(ctx, limit)
}
