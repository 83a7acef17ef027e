package api

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/heimdex/heimdex-motion/internal/config"
	"github.com/heimdex/heimdex-motion/internal/detection"
	"github.com/heimdex/heimdex-motion/internal/extraction"
	"github.com/heimdex/heimdex-motion/internal/logging"
	"github.com/heimdex/heimdex-motion/internal/metrics"
	"github.com/heimdex/heimdex-motion/internal/motion"
	"github.com/heimdex/heimdex-motion/internal/pipeline"
)

const (
	maxBodyBytes        = 1 << 20
	defaultListLimit    = 50
	detectionFailedMsg  = "motion detection failed"
	extractionFailedMsg = "frame extraction failed"
)

type DetectorConfig struct {
	Service    detection.DetectionService
	Thresholds motion.Thresholds
	Metrics    *metrics.Metrics
	Logger     *slog.Logger
	StartTime  time.Time
}

// Pinger is satisfied by *db.DB.
type Pinger interface {
	Ping(ctx context.Context) error
}

type ExtractorConfig struct {
	Service   extraction.ExtractionService
	Doctor    *pipeline.CachedDoctor
	DB        Pinger
	FPS       int
	Metrics   *metrics.Metrics
	Logger    *slog.Logger
	StartTime time.Time
}

func newBaseRouter(m *metrics.Metrics, logger *slog.Logger) *chi.Mux {
	r := chi.NewRouter()

	r.Use(RequestIDMiddleware())
	r.Use(RecoveryMiddleware(logger))
	r.Use(LoggingMiddleware(logger))
	if m != nil {
		r.Use(MetricsMiddleware(m))
		r.Method(http.MethodGet, "/metrics", m.Handler())
	}
	return r
}

func NewDetectorRouter(cfg DetectorConfig) *chi.Mux {
	r := newBaseRouter(cfg.Metrics, cfg.Logger)

	r.Get("/health", detectorHealthHandler(cfg))
	r.Post("/detect_motion", detectMotionHandler(cfg))

	return r
}

func NewExtractorRouter(cfg ExtractorConfig) *chi.Mux {
	r := newBaseRouter(cfg.Metrics, cfg.Logger)

	r.Get("/health", extractorHealthHandler(cfg))
	r.Post("/extract_frames", extractFramesHandler(cfg))
	r.Get("/extractions", listExtractionsHandler(cfg))
	r.Get("/extractions/{id}", getExtractionHandler(cfg))

	return r
}

func detectorHealthHandler(cfg DetectorConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		WriteJSON(w, http.StatusOK, HealthResponse{
			Status:  "ok",
			Service: "detector",
			Version: config.Version,
			UptimeS: int64(time.Since(cfg.StartTime).Seconds()),
			Thresholds: &ThresholdsResponse{
				PixelDiff:        int(cfg.Thresholds.PixelDiff),
				MotionPixelCount: cfg.Thresholds.MotionPixelCount,
			},
		})
	}
}

func detectMotionHandler(cfg DetectorConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req DetectMotionRequest
		if err := decodeBody(w, r, &req); err != nil {
			WriteError(w, http.StatusUnprocessableEntity, "invalid request body", "VALIDATION_ERROR")
			return
		}
		if req.FrameCount == nil {
			WriteError(w, http.StatusUnprocessableEntity, "frame_count is required", "VALIDATION_ERROR")
			return
		}

		resp, err := cfg.Service.Detect(r.Context(), detection.Request{
			VideoIdentity: req.Identity(),
			FrameCount:    *req.FrameCount,
		})
		if err != nil {
			if errors.Is(err, detection.ErrInvalidRequest) {
				WriteError(w, http.StatusUnprocessableEntity, err.Error(), "VALIDATION_ERROR")
				return
			}
			logging.WithRequestID(cfg.Logger, RequestID(r.Context())).Error(detectionFailedMsg, "error", err)
			WriteError(w, http.StatusInternalServerError, detectionFailedMsg, "INTERNAL_ERROR")
			return
		}

		WriteJSON(w, http.StatusOK, DetectionToResponse(resp))
	}
}

func extractorHealthHandler(cfg ExtractorConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		resp := HealthResponse{
			Status:  "ok",
			Service: "extractor",
			Version: config.Version,
			UptimeS: int64(time.Since(cfg.StartTime).Seconds()),
			FPS:     cfg.FPS,
		}

		if cfg.Doctor != nil {
			caps, err := cfg.Doctor.Get(ctx)
			if err != nil || caps == nil {
				resp.FFmpeg = &FFmpegStatusResponse{Available: false, Error: "ffmpeg probe failed"}
				resp.Status = "degraded"
			} else {
				resp.FFmpeg = CapabilitiesToResponse(caps)
			}
		}

		if cfg.DB != nil {
			resp.Database = "ok"
			if err := cfg.DB.Ping(ctx); err != nil {
				cfg.Logger.Warn("database ping failed", "error", err)
				resp.Database = "unavailable"
				resp.Status = "degraded"
			}
		}

		status := http.StatusOK
		if resp.Status != "ok" {
			status = http.StatusServiceUnavailable
		}
		WriteJSON(w, status, resp)
	}
}

func extractFramesHandler(cfg ExtractorConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req ExtractFramesRequest
		if err := decodeBody(w, r, &req); err != nil {
			WriteError(w, http.StatusUnprocessableEntity, "invalid request body", "VALIDATION_ERROR")
			return
		}

		resp, err := cfg.Service.Extract(r.Context(), extraction.Request{VideoIdentity: req.Identity()})
		if err != nil {
			if errors.Is(err, detection.ErrInvalidRequest) {
				WriteError(w, http.StatusUnprocessableEntity, err.Error(), "VALIDATION_ERROR")
				return
			}
			logging.WithRequestID(cfg.Logger, RequestID(r.Context())).Error(extractionFailedMsg, "error", err)
			WriteError(w, http.StatusInternalServerError, extractionFailedMsg, "INTERNAL_ERROR")
			return
		}

		WriteJSON(w, http.StatusOK, ExtractFramesToResponse(resp))
	}
}

func listExtractionsHandler(cfg ExtractorConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		limit := defaultListLimit
		if s := r.URL.Query().Get("limit"); s != "" {
			n, err := strconv.Atoi(s)
			if err != nil || n < 1 {
				WriteError(w, http.StatusUnprocessableEntity, "limit must be a positive integer", "VALIDATION_ERROR")
				return
			}
			limit = n
		}

		extractions, err := cfg.Service.ListExtractions(r.Context(), limit)
		if err != nil {
			cfg.Logger.Error("failed to list extractions", "error", err)
			WriteError(w, http.StatusInternalServerError, "failed to list extractions", "INTERNAL_ERROR")
			return
		}

		resp := ExtractionsResponse{Extractions: make([]ExtractionResponse, len(extractions))}
		for i, e := range extractions {
			resp.Extractions[i] = ExtractionToResponse(e)
		}
		WriteJSON(w, http.StatusOK, resp)
	}
}

func getExtractionHandler(cfg ExtractorConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "id")
		if id == "" {
			WriteError(w, http.StatusBadRequest, "extraction id required", "BAD_REQUEST")
			return
		}

		e, err := cfg.Service.GetExtraction(r.Context(), id)
		if err != nil {
			cfg.Logger.Error("failed to get extraction", "extraction_id", id, "error", err)
			WriteError(w, http.StatusInternalServerError, "failed to get extraction", "INTERNAL_ERROR")
			return
		}
		if e == nil {
			WriteError(w, http.StatusNotFound, "extraction not found", "NOT_FOUND")
			return
		}

		WriteJSON(w, http.StatusOK, ExtractionToResponse(e))
	}
}

func decodeBody(w http.ResponseWriter, r *http.Request, v any) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	return json.NewDecoder(r.Body).Decode(v)
}
