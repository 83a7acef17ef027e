package metrics

import (
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestObserveDetection(t *testing.T) {
	m := New()

	m.ObserveDetection(10, 2, time.Millisecond, nil)
	m.ObserveDetection(5, 0, time.Millisecond, nil)
	m.ObserveDetection(0, 0, time.Millisecond, errors.New("frame missing"))

	if got := testutil.ToFloat64(m.detectionsTotal.WithLabelValues("motion")); got != 1 {
		t.Errorf("motion detections = %v, want 1", got)
	}
	if got := testutil.ToFloat64(m.detectionsTotal.WithLabelValues("still")); got != 1 {
		t.Errorf("still detections = %v, want 1", got)
	}
	if got := testutil.ToFloat64(m.detectionsTotal.WithLabelValues("error")); got != 1 {
		t.Errorf("error detections = %v, want 1", got)
	}
	if got := testutil.ToFloat64(m.framesLoaded); got != 15 {
		t.Errorf("frames loaded = %v, want 15", got)
	}
	if got := testutil.ToFloat64(m.segmentsEmitted); got != 2 {
		t.Errorf("segments emitted = %v, want 2", got)
	}
}

func TestObserveExtraction(t *testing.T) {
	m := New()

	m.ObserveExtraction(30, time.Second, nil)
	m.ObserveExtraction(0, time.Second, errors.New("ffmpeg exited 1"))

	if got := testutil.ToFloat64(m.extractionsTotal.WithLabelValues("completed")); got != 1 {
		t.Errorf("completed = %v, want 1", got)
	}
	if got := testutil.ToFloat64(m.extractionsTotal.WithLabelValues("failed")); got != 1 {
		t.Errorf("failed = %v, want 1", got)
	}
	if got := testutil.ToFloat64(m.framesExtracted); got != 30 {
		t.Errorf("frames extracted = %v, want 30", got)
	}
}

func TestRegistry_HoldsOwnCollectors(t *testing.T) {
	m := New()
	m.ObserveHTTP("/health", 200, time.Millisecond)
	m.ObserveHTTP("/detect_motion", 500, time.Millisecond)

	n, err := testutil.GatherAndCount(m.Registry(), "motion_http_requests_total")
	if err != nil {
		t.Fatalf("GatherAndCount() error = %v", err)
	}
	if n != 2 {
		t.Errorf("http_requests_total series = %d, want 2", n)
	}

	other := New()
	if n, _ := testutil.GatherAndCount(other.Registry(), "motion_http_requests_total"); n != 0 {
		t.Errorf("second registry shares series: %d", n)
	}
}

func TestNilMetricsIsNoop(t *testing.T) {
	var m *Metrics
	m.ObserveHTTP("/detect_motion", 200, time.Millisecond)
	m.ObserveDetection(1, 1, time.Millisecond, nil)
	m.ObserveExtraction(1, time.Millisecond, nil)
}

func TestHandler_Exposition(t *testing.T) {
	m := New()
	m.ObserveHTTP("/detect_motion", http.StatusOK, 5*time.Millisecond)

	rr := httptest.NewRecorder()
	m.Handler().ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rr.Code)
	}
	body, _ := io.ReadAll(rr.Body)
	if !strings.Contains(string(body), `motion_http_requests_total{route="/detect_motion",status="200"} 1`) {
		t.Errorf("exposition missing request counter:\n%s", body)
	}
}
