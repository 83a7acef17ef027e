package detection

import (
	"context"
	"errors"
	"image"
	"image/png"
	"os"
	"testing"

	"github.com/heimdex/heimdex-motion/internal/frames"
	"github.com/heimdex/heimdex-motion/internal/framestore"
	"github.com/heimdex/heimdex-motion/internal/logging"
	"github.com/heimdex/heimdex-motion/internal/metrics"
	"github.com/heimdex/heimdex-motion/internal/motion"
)

func writeFrames(t *testing.T, root, stem string, values ...uint8) {
	t.Helper()
	for i, v := range values {
		img := image.NewGray(image.Rect(0, 0, 100, 100))
		for p := range img.Pix {
			img.Pix[p] = v
		}
		f, err := os.Create(framestore.FramePath(root, stem, i+1))
		if err != nil {
			t.Fatalf("create frame: %v", err)
		}
		if err := png.Encode(f, img); err != nil {
			t.Fatalf("encode frame: %v", err)
		}
		f.Close()
	}
}

func newTestService(t *testing.T, root string) *Service {
	t.Helper()
	svc, err := NewService(frames.NewLoader(root), motion.DefaultThresholds(), metrics.New(), logging.Discard())
	if err != nil {
		t.Fatalf("NewService() error = %v", err)
	}
	return svc
}

func testRequest(frameCount int) Request {
	return Request{
		VideoIdentity: VideoIdentity{
			Filename:     "cam1.mp4",
			AbsolutePath: "/videos",
			LastModified: "2024-05-01T10:00:00Z",
		},
		FrameCount: frameCount,
	}
}

func TestService_Detect(t *testing.T) {
	root := t.TempDir()
	writeFrames(t, root, "cam1", 10, 10, 240, 240, 10, 10)

	resp, err := newTestService(t, root).Detect(context.Background(), testRequest(6))
	if err != nil {
		t.Fatalf("Detect() error = %v", err)
	}

	if !resp.MotionDetected {
		t.Error("MotionDetected = false, want true")
	}
	want := []motion.Segment{{Start: 1, End: 2}, {Start: 3, End: 4}}
	if len(resp.Motions) != len(want) {
		t.Fatalf("Motions = %v, want %v", resp.Motions, want)
	}
	for i := range want {
		if resp.Motions[i] != want[i] {
			t.Errorf("Motions[%d] = %v, want %v", i, resp.Motions[i], want[i])
		}
	}
	if resp.VideoIdentity != testRequest(6).VideoIdentity {
		t.Errorf("identity not echoed: %+v", resp.VideoIdentity)
	}
	if resp.FrameCount != 6 {
		t.Errorf("FrameCount = %d, want 6", resp.FrameCount)
	}
}

func TestService_Detect_NoFrames(t *testing.T) {
	resp, err := newTestService(t, t.TempDir()).Detect(context.Background(), testRequest(0))
	if err != nil {
		t.Fatalf("Detect() error = %v", err)
	}
	if resp.MotionDetected || len(resp.Motions) != 0 || resp.Motions == nil {
		t.Errorf("resp = %+v, want no motion and empty list", resp)
	}
}

func TestService_Detect_MissingFrame(t *testing.T) {
	root := t.TempDir()
	writeFrames(t, root, "cam1", 0, 0, 0, 0)

	resp, err := newTestService(t, root).Detect(context.Background(), testRequest(5))
	if err == nil {
		t.Fatalf("Detect() = %+v, want error", resp)
	}
	if resp != nil {
		t.Errorf("partial response returned: %+v", resp)
	}
	if !errors.Is(err, frames.ErrFrameNotFound) {
		t.Errorf("error = %v, want ErrFrameNotFound", err)
	}
}

func TestService_Detect_InvalidRequest(t *testing.T) {
	svc := newTestService(t, t.TempDir())

	tests := []struct {
		name   string
		mutate func(*Request)
	}{
		{"missing filename", func(r *Request) { r.Filename = "" }},
		{"missing path", func(r *Request) { r.AbsolutePath = "" }},
		{"missing mtime", func(r *Request) { r.LastModified = "" }},
		{"negative count", func(r *Request) { r.FrameCount = -1 }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := testRequest(1)
			tt.mutate(&req)
			if _, err := svc.Detect(context.Background(), req); !errors.Is(err, ErrInvalidRequest) {
				t.Errorf("Detect() error = %v, want ErrInvalidRequest", err)
			}
		})
	}
}

func TestService_Detect_UsesFilenameStem(t *testing.T) {
	root := t.TempDir()
	writeFrames(t, root, "cam1", 0, 200)

	req := testRequest(2)
	req.Filename = "cam1.mkv"

	resp, err := newTestService(t, root).Detect(context.Background(), req)
	if err != nil {
		t.Fatalf("Detect() error = %v", err)
	}
	if len(resp.Motions) != 1 || resp.Motions[0] != (motion.Segment{Start: 0, End: 1}) {
		t.Errorf("Motions = %v, want [[0 1]]", resp.Motions)
	}
}

func TestNewService_InvalidThresholds(t *testing.T) {
	_, err := NewService(frames.NewLoader(t.TempDir()), motion.Thresholds{MotionPixelCount: -5}, nil, nil)
	if !errors.Is(err, motion.ErrInvalidThresholds) {
		t.Errorf("NewService() error = %v, want ErrInvalidThresholds", err)
	}
}

func TestAssemble_NilMotions(t *testing.T) {
	resp := Assemble(testRequest(1), motion.Result{})
	if resp.Motions == nil {
		t.Error("Assemble() left Motions nil")
	}
}
