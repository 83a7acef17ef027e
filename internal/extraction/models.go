package extraction

import (
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/heimdex/heimdex-motion/internal/detection"
)

var (
	ErrVideoNotFound    = errors.New("video not found")
	ErrExtractionFailed = errors.New("frame extraction failed")
)

const (
	StatusRunning   = "running"
	StatusCompleted = "completed"
	StatusFailed    = "failed"
)

// Request identifies the source video. The identity fields match the ones
// the detector later receives.
type Request struct {
	detection.VideoIdentity
}

func (r Request) Validate() error {
	return r.VideoIdentity.Validate()
}

type Response struct {
	detection.VideoIdentity
	FrameCount int
}

// Extraction is one ledger row.
type Extraction struct {
	ID           string    `json:"id"`
	Filename     string    `json:"filename"`
	AbsolutePath string    `json:"absolute_path"`
	LastModified string    `json:"file_lastModifiedTime"`
	VideoPath    string    `json:"video_path"`
	FPS          int       `json:"fps"`
	FrameCount   int       `json:"frame_count"`
	Status       string    `json:"status"`
	Error        string    `json:"error,omitempty"`
	DurationMs   int64     `json:"duration_ms"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

func NewID() string {
	return uuid.NewString()
}
