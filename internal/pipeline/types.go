// Package pipeline runs ffmpeg as a subprocess to sample a video into
// numbered still frames, and probes the installed ffmpeg.
package pipeline

import (
	"context"
	"time"
)

// Extractor samples videoPath at fps frames per second into files named by
// outputPattern (an ffmpeg image2 pattern such as "/frames/clip_%d.png").
type Extractor interface {
	Extract(ctx context.Context, videoPath, outputPattern string, fps int) (RunResult, error)
}

// RunResult is the structured outcome of one ffmpeg run.
type RunResult struct {
	ExitCode   int           `json:"exit_code"`
	FrameCount int           `json:"frame_count"`           // last frame= value reported on the progress pipe
	StderrTail string        `json:"stderr_tail,omitempty"` // last N bytes of stderr
	Duration   time.Duration `json:"duration"`
}

// IsSuccess returns true when ffmpeg exited cleanly.
func (r RunResult) IsSuccess() bool { return r.ExitCode == 0 }

// Capabilities is what `ffmpeg -version` reported.
type Capabilities struct {
	Available bool      `json:"available"`
	Path      string    `json:"path,omitempty"`
	Version   string    `json:"version,omitempty"`
	Error     string    `json:"error,omitempty"`
	ProbedAt  time.Time `json:"probed_at"`
}
