package pipeline

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/heimdex/heimdex-motion/internal/logging"
)

const (
	maxStderrBytes = 8 * 1024 // 8 KB tail of stderr kept for diagnostics
)

var frameProgress = regexp.MustCompile(`^frame=(\d+)`)

// Config holds the extractor's configuration.
type Config struct {
	FFmpegPath string        // binary name or path; empty = "ffmpeg" on PATH
	Timeout    time.Duration // per-extraction timeout; zero = none
	Logger     *slog.Logger
}

// FFmpegExtractor is the production implementation of Extractor.
type FFmpegExtractor struct {
	cfg    Config
	ffmpeg string // resolved binary path
}

// NewFFmpegExtractor resolves the ffmpeg binary and returns an extractor.
func NewFFmpegExtractor(cfg Config) (*FFmpegExtractor, error) {
	bin, err := resolveFFmpeg(cfg.FFmpegPath)
	if err != nil {
		return nil, err
	}
	if cfg.Logger == nil {
		cfg.Logger = logging.Discard()
	}

	cfg.Logger.Info("ffmpeg extractor initialised", "ffmpeg", bin, "timeout", cfg.Timeout)
	return &FFmpegExtractor{cfg: cfg, ffmpeg: bin}, nil
}

func (e *FFmpegExtractor) Path() string {
	return e.ffmpeg
}

// Extract runs ffmpeg with an fps filter and reads the frame counter from
// the -progress pipe. The returned error is only set when ffmpeg could not
// be started; a failed run is reported through RunResult.
func (e *FFmpegExtractor) Extract(ctx context.Context, videoPath, outputPattern string, fps int) (RunResult, error) {
	if fps < 1 {
		return RunResult{ExitCode: -1}, fmt.Errorf("invalid fps %d", fps)
	}
	if err := os.MkdirAll(filepath.Dir(outputPattern), 0755); err != nil {
		return RunResult{ExitCode: -1}, fmt.Errorf("cannot create output dir: %w", err)
	}

	if e.cfg.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, e.cfg.Timeout)
		defer cancel()
	}

	args := []string{
		"-i", videoPath,
		"-vf", fmt.Sprintf("fps=%d", fps),
		"-progress", "pipe:1",
		"-nostats",
		"-v", "quiet",
		"-y",
		outputPattern,
	}
	return e.exec(ctx, args)
}

// exec is the core subprocess execution helper.
func (e *FFmpegExtractor) exec(ctx context.Context, args []string) (RunResult, error) {
	start := time.Now()

	cmd := exec.CommandContext(ctx, e.ffmpeg, args...)

	// Capture stderr with bounded buffer
	var stderrBuf bytes.Buffer
	cmd.Stderr = io.Writer(&limitedWriter{w: &stderrBuf, limit: maxStderrBytes})

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return RunResult{ExitCode: -1}, fmt.Errorf("stdout pipe: %w", err)
	}

	e.cfg.Logger.Info("executing ffmpeg", "args", sanitizeArgs(args))

	if err := cmd.Start(); err != nil {
		return RunResult{ExitCode: -1, Duration: time.Since(start)}, fmt.Errorf("start ffmpeg: %w", err)
	}

	frameCount := readProgress(stdout)

	err = cmd.Wait()
	elapsed := time.Since(start)

	exitCode := 0
	if err != nil {
		if exitErr, ok := err.(*exec.ExitError); ok {
			exitCode = exitErr.ExitCode()
		} else {
			exitCode = -1
		}
	}

	stderrTail := stderrBuf.String()

	if exitCode != 0 {
		e.cfg.Logger.Warn("ffmpeg failed",
			"exit_code", exitCode,
			"duration_ms", elapsed.Milliseconds(),
			"stderr_tail", truncate(stderrTail, 512),
		)
		frameCount = 0
	} else {
		e.cfg.Logger.Info("ffmpeg succeeded",
			"frames", frameCount,
			"duration_ms", elapsed.Milliseconds(),
		)
	}

	return RunResult{
		ExitCode:   exitCode,
		FrameCount: frameCount,
		StderrTail: stderrTail,
		Duration:   elapsed,
	}, nil
}

// readProgress consumes ffmpeg's key=value progress stream until EOF and
// returns the last reported frame number.
func readProgress(r io.Reader) int {
	count := 0
	sc := bufio.NewScanner(r)
	for sc.Scan() {
		m := frameProgress.FindStringSubmatch(strings.TrimSpace(sc.Text()))
		if m == nil {
			continue
		}
		if n, err := strconv.Atoi(m[1]); err == nil {
			count = n
		}
	}
	// Drain so ffmpeg never blocks on a full pipe after a scanner error.
	io.Copy(io.Discard, r)
	return count
}

func sanitizeArgs(args []string) []string {
	out := make([]string, len(args))
	for i, a := range args {
		out[i] = logging.SanitizePath(a)
	}
	return out
}

// resolveFFmpeg finds a usable ffmpeg binary.
func resolveFFmpeg(preferred string) (string, error) {
	if preferred == "" {
		preferred = "ffmpeg"
	}
	p, err := exec.LookPath(preferred)
	if err != nil {
		return "", fmt.Errorf("ffmpeg %q not found: %w", preferred, err)
	}
	return p, nil
}

func truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return "..." + s[len(s)-maxLen:]
}

// limitedWriter is an io.Writer that keeps only the last `limit` bytes.
type limitedWriter struct {
	w     *bytes.Buffer
	limit int
}

func (lw *limitedWriter) Write(p []byte) (int, error) {
	n := len(p)
	lw.w.Write(p)
	if lw.w.Len() > lw.limit {
		// Keep only the tail
		b := lw.w.Bytes()
		lw.w.Reset()
		lw.w.Write(b[len(b)-lw.limit:])
	}
	return n, nil
}
