// Package detection runs one motion detection request end to end: load the
// video's frames from the frame store, segment them, and echo the identity.
package detection

import (
	"context"
	"fmt"
	"image"
	"log/slog"
	"time"

	"github.com/heimdex/heimdex-motion/internal/framestore"
	"github.com/heimdex/heimdex-motion/internal/logging"
	"github.com/heimdex/heimdex-motion/internal/metrics"
	"github.com/heimdex/heimdex-motion/internal/motion"
)

// FrameLoader produces the ordered grayscale frames 1..n of a video stem.
type FrameLoader interface {
	Load(ctx context.Context, stem string, n int) ([]*image.Gray, error)
}

type DetectionService interface {
	Detect(ctx context.Context, req Request) (*Response, error)
}

// Service holds only immutable dependencies; all scan state is per call.
type Service struct {
	loader     FrameLoader
	thresholds motion.Thresholds
	metrics    *metrics.Metrics
	logger     *slog.Logger
}

func NewService(loader FrameLoader, thresholds motion.Thresholds, m *metrics.Metrics, logger *slog.Logger) (*Service, error) {
	if err := thresholds.Validate(); err != nil {
		return nil, err
	}
	return &Service{
		loader:     loader,
		thresholds: thresholds,
		metrics:    m,
		logger:     logger,
	}, nil
}

func (s *Service) Thresholds() motion.Thresholds {
	return s.thresholds
}

func (s *Service) Detect(ctx context.Context, req Request) (*Response, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	start := time.Now()
	resp, err := s.detect(ctx, req)

	segments := 0
	if resp != nil {
		segments = len(resp.Motions)
	}
	s.metrics.ObserveDetection(req.FrameCount, segments, time.Since(start), err)

	if s.logger != nil {
		log := logging.WithVideo(s.logger, req.Filename)
		if err != nil {
			log.Error("motion detection failed", "frame_count", req.FrameCount, "error", err)
		} else {
			log.Info("motion detection complete",
				"frame_count", req.FrameCount,
				"motion_detected", resp.MotionDetected,
				"segments", segments,
				"duration_ms", time.Since(start).Milliseconds(),
			)
		}
	}
	return resp, err
}

func (s *Service) detect(ctx context.Context, req Request) (*Response, error) {
	frames, err := s.loader.Load(ctx, framestore.Stem(req.Filename), req.FrameCount)
	if err != nil {
		return nil, fmt.Errorf("load frames: %w", err)
	}

	res, err := motion.Detect(frames, s.thresholds)
	if err != nil {
		return nil, fmt.Errorf("segment frames: %w", err)
	}
	return Assemble(req, res), nil
}
