package pipeline

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"testing"
	"time"

	"github.com/heimdex/heimdex-motion/internal/logging"
)

// fakeFFmpeg writes an executable shell script standing in for ffmpeg.
func fakeFFmpeg(t *testing.T, body string) string {
	t.Helper()
	if runtime.GOOS == "windows" {
		t.Skip("shell script fakes need a POSIX shell")
	}
	path := filepath.Join(t.TempDir(), "ffmpeg")
	script := "#!/bin/sh\n" + body + "\n"
	if err := os.WriteFile(path, []byte(script), 0755); err != nil {
		t.Fatalf("write fake ffmpeg: %v", err)
	}
	return path
}

func newTestExtractor(t *testing.T, bin string) *FFmpegExtractor {
	t.Helper()
	e, err := NewFFmpegExtractor(Config{FFmpegPath: bin, Timeout: 10 * time.Second, Logger: logging.Discard()})
	if err != nil {
		t.Fatalf("NewFFmpegExtractor() error = %v", err)
	}
	return e
}

func TestRunResult_IsSuccess(t *testing.T) {
	tests := []struct {
		exitCode int
		want     bool
	}{
		{0, true},
		{1, false},
		{-1, false},
		{127, false},
	}
	for _, tt := range tests {
		r := RunResult{ExitCode: tt.exitCode}
		if got := r.IsSuccess(); got != tt.want {
			t.Errorf("RunResult{ExitCode: %d}.IsSuccess() = %v, want %v", tt.exitCode, got, tt.want)
		}
	}
}

func TestReadProgress(t *testing.T) {
	stream := strings.Join([]string{
		"frame=1",
		"fps=0.00",
		"progress=continue",
		"frame=12",
		"out_time=00:00:12.000000",
		"progress=continue",
		"frame=15",
		"progress=end",
	}, "\n")

	if got := readProgress(strings.NewReader(stream)); got != 15 {
		t.Errorf("readProgress() = %d, want 15", got)
	}
	if got := readProgress(strings.NewReader("progress=end\n")); got != 0 {
		t.Errorf("readProgress() without frames = %d, want 0", got)
	}
}

func TestExtract_ParsesFrameCountAndArgs(t *testing.T) {
	argsFile := filepath.Join(t.TempDir(), "args")
	bin := fakeFFmpeg(t, `echo "$@" > `+argsFile+`
echo "frame=2"
echo "progress=continue"
echo "frame=4"
echo "progress=end"`)

	out := filepath.Join(t.TempDir(), "store", "clip_%d.png")
	res, err := newTestExtractor(t, bin).Extract(context.Background(), "/videos/clip.mp4", out, 1)
	if err != nil {
		t.Fatalf("Extract() error = %v", err)
	}
	if !res.IsSuccess() {
		t.Fatalf("Extract() exit = %d, stderr = %q", res.ExitCode, res.StderrTail)
	}
	if res.FrameCount != 4 {
		t.Errorf("FrameCount = %d, want 4", res.FrameCount)
	}

	if _, err := os.Stat(filepath.Dir(out)); err != nil {
		t.Errorf("output dir not created: %v", err)
	}

	args, err := os.ReadFile(argsFile)
	if err != nil {
		t.Fatalf("read args: %v", err)
	}
	for _, want := range []string{"-i /videos/clip.mp4", "-vf fps=1", "-progress pipe:1", "-nostats", out} {
		if !strings.Contains(string(args), want) {
			t.Errorf("ffmpeg args %q missing %q", args, want)
		}
	}
}

func TestExtract_NonZeroExit(t *testing.T) {
	bin := fakeFFmpeg(t, `echo "frame=3"
echo "moov atom not found" >&2
exit 1`)

	res, err := newTestExtractor(t, bin).Extract(context.Background(), "/videos/bad.mp4",
		filepath.Join(t.TempDir(), "bad_%d.png"), 1)
	if err != nil {
		t.Fatalf("Extract() error = %v", err)
	}
	if res.IsSuccess() {
		t.Fatal("Extract() succeeded, want failure")
	}
	if res.FrameCount != 0 {
		t.Errorf("FrameCount = %d, want 0 on failure", res.FrameCount)
	}
	if !strings.Contains(res.StderrTail, "moov atom not found") {
		t.Errorf("StderrTail = %q", res.StderrTail)
	}
}

func TestExtract_InvalidFPS(t *testing.T) {
	bin := fakeFFmpeg(t, "exit 0")
	if _, err := newTestExtractor(t, bin).Extract(context.Background(), "v.mp4", filepath.Join(t.TempDir(), "v_%d.png"), 0); err == nil {
		t.Error("Extract() with fps 0 should fail")
	}
}

func TestExtract_Timeout(t *testing.T) {
	bin := fakeFFmpeg(t, "exec sleep 5")
	e, err := NewFFmpegExtractor(Config{FFmpegPath: bin, Timeout: 100 * time.Millisecond, Logger: logging.Discard()})
	if err != nil {
		t.Fatalf("NewFFmpegExtractor() error = %v", err)
	}

	res, err := e.Extract(context.Background(), "v.mp4", filepath.Join(t.TempDir(), "v_%d.png"), 1)
	if err != nil {
		t.Fatalf("Extract() error = %v", err)
	}
	if res.IsSuccess() {
		t.Error("Extract() succeeded despite timeout")
	}
}

func TestNewFFmpegExtractor_NotFound(t *testing.T) {
	if _, err := NewFFmpegExtractor(Config{FFmpegPath: "/nonexistent/ffmpeg999"}); err == nil {
		t.Fatal("expected error for nonexistent ffmpeg")
	}
}

func TestLimitedWriter_KeepsOnlyTail(t *testing.T) {
	var buf bytes.Buffer
	lw := &limitedWriter{w: &buf, limit: 10}

	lw.Write([]byte("hello"))
	if buf.String() != "hello" {
		t.Errorf("after short write got %q, want %q", buf.String(), "hello")
	}

	lw.Write([]byte(" world of test data"))
	if got := buf.String(); got != " test data" {
		t.Errorf("after overflow got %q, want %q", got, " test data")
	}
}

func TestTruncate(t *testing.T) {
	tests := []struct {
		input  string
		maxLen int
		want   string
	}{
		{"hello", 10, "hello"},
		{"hello", 5, "hello"},
		{"hello world", 5, "...world"},
	}
	for _, tt := range tests {
		if got := truncate(tt.input, tt.maxLen); got != tt.want {
			t.Errorf("truncate(%q, %d) = %q, want %q", tt.input, tt.maxLen, got, tt.want)
		}
	}
}
