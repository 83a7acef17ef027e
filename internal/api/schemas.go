package api

import (
	"time"

	"github.com/heimdex/heimdex-motion/internal/detection"
	"github.com/heimdex/heimdex-motion/internal/extraction"
	"github.com/heimdex/heimdex-motion/internal/motion"
	"github.com/heimdex/heimdex-motion/internal/pipeline"
)

type ErrorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code"`
}

// VideoIdentityRequest accepts both the underscore field names and the
// dotted aliases used by older callers. The underscore form wins when both
// are present.
type VideoIdentityRequest struct {
	Filename          string `json:"filename"`
	AbsolutePath      string `json:"absolute_path"`
	AbsolutePathAlias string `json:"absolute.path"`
	LastModified      string `json:"file_lastModifiedTime"`
	LastModifiedAlias string `json:"file.lastModifiedTime"`
}

func (v VideoIdentityRequest) Identity() detection.VideoIdentity {
	id := detection.VideoIdentity{
		Filename:     v.Filename,
		AbsolutePath: v.AbsolutePath,
		LastModified: v.LastModified,
	}
	if id.AbsolutePath == "" {
		id.AbsolutePath = v.AbsolutePathAlias
	}
	if id.LastModified == "" {
		id.LastModified = v.LastModifiedAlias
	}
	return id
}

type VideoIdentityResponse struct {
	Filename     string `json:"filename"`
	AbsolutePath string `json:"absolute_path"`
	LastModified string `json:"file_lastModifiedTime"`
}

func identityToResponse(v detection.VideoIdentity) VideoIdentityResponse {
	return VideoIdentityResponse{
		Filename:     v.Filename,
		AbsolutePath: v.AbsolutePath,
		LastModified: v.LastModified,
	}
}

type DetectMotionRequest struct {
	VideoIdentityRequest
	FrameCount *int `json:"frame_count"`
}

type DetectMotionResponse struct {
	VideoIdentityResponse
	FrameCount     int              `json:"frame_count"`
	MotionDetected int              `json:"motion_detected"`
	Motions        []motion.Segment `json:"motions"`
}

func DetectionToResponse(r *detection.Response) DetectMotionResponse {
	detected := 0
	if r.MotionDetected {
		detected = 1
	}
	motions := r.Motions
	if motions == nil {
		motions = []motion.Segment{}
	}
	return DetectMotionResponse{
		VideoIdentityResponse: identityToResponse(r.VideoIdentity),
		FrameCount:            r.FrameCount,
		MotionDetected:        detected,
		Motions:               motions,
	}
}

type ExtractFramesRequest struct {
	VideoIdentityRequest
}

type ExtractFramesResponse struct {
	VideoIdentityResponse
	FrameCount int `json:"frame_count"`
}

func ExtractFramesToResponse(r *extraction.Response) ExtractFramesResponse {
	return ExtractFramesResponse{
		VideoIdentityResponse: identityToResponse(r.VideoIdentity),
		FrameCount:            r.FrameCount,
	}
}

type ExtractionResponse struct {
	ID           string `json:"id"`
	Filename     string `json:"filename"`
	AbsolutePath string `json:"absolute_path"`
	LastModified string `json:"file_lastModifiedTime"`
	FPS          int    `json:"fps"`
	FrameCount   int    `json:"frame_count"`
	Status       string `json:"status"`
	Error        string `json:"error,omitempty"`
	DurationMs   int64  `json:"duration_ms"`
	CreatedAt    string `json:"created_at"`
	UpdatedAt    string `json:"updated_at"`
}

type ExtractionsResponse struct {
	Extractions []ExtractionResponse `json:"extractions"`
}

// ExtractionToResponse leaves out the resolved video path.
func ExtractionToResponse(e *extraction.Extraction) ExtractionResponse {
	return ExtractionResponse{
		ID:           e.ID,
		Filename:     e.Filename,
		AbsolutePath: e.AbsolutePath,
		LastModified: e.LastModified,
		FPS:          e.FPS,
		FrameCount:   e.FrameCount,
		Status:       e.Status,
		Error:        e.Error,
		DurationMs:   e.DurationMs,
		CreatedAt:    e.CreatedAt.Format(time.RFC3339),
		UpdatedAt:    e.UpdatedAt.Format(time.RFC3339),
	}
}

type ThresholdsResponse struct {
	PixelDiff        int `json:"pixel_diff"`
	MotionPixelCount int `json:"motion_pixel_count"`
}

type FFmpegStatusResponse struct {
	Available   bool   `json:"available"`
	Version     string `json:"version,omitempty"`
	Error       string `json:"error,omitempty"`
	LastProbeAt string `json:"last_probe_at,omitempty"`
}

func CapabilitiesToResponse(c *pipeline.Capabilities) *FFmpegStatusResponse {
	if c == nil {
		return nil
	}
	resp := &FFmpegStatusResponse{
		Available: c.Available,
		Version:   c.Version,
		Error:     c.Error,
	}
	if !c.ProbedAt.IsZero() {
		resp.LastProbeAt = c.ProbedAt.Format(time.RFC3339)
	}
	return resp
}

type HealthResponse struct {
	Status     string                `json:"status"`
	Service    string                `json:"service"`
	Version    string                `json:"version"`
	UptimeS    int64                 `json:"uptime_s"`
	Thresholds *ThresholdsResponse   `json:"thresholds,omitempty"`
	FPS        int                   `json:"fps,omitempty"`
	FFmpeg     *FFmpegStatusResponse `json:"ffmpeg,omitempty"`
	Database   string                `json:"database,omitempty"`
}
