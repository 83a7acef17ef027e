// Package metrics defines the Prometheus collectors shared by the extractor
// and detector services. Each process owns one registry.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "motion"

// Metrics is safe for concurrent use. A nil *Metrics records nothing.
type Metrics struct {
	registry *prometheus.Registry

	httpRequests       *prometheus.CounterVec
	httpDuration       *prometheus.HistogramVec
	detectionsTotal    *prometheus.CounterVec
	detectionDuration  prometheus.Histogram
	framesLoaded       prometheus.Counter
	segmentsEmitted    prometheus.Counter
	extractionsTotal   *prometheus.CounterVec
	extractionDuration prometheus.Histogram
	framesExtracted    prometheus.Counter
}

func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),

		httpRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "Total number of HTTP requests, by route and status code",
		}, []string{"route", "status"}),

		httpDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "Duration of HTTP requests in seconds",
			Buckets:   prometheus.DefBuckets,
		}, []string{"route"}),

		detectionsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "detections_total",
			Help:      "Total number of motion detection runs, by outcome",
		}, []string{"outcome"}), // outcome: motion, still, error

		detectionDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "detection_duration_seconds",
			Help:      "Duration of frame loading plus motion segmentation",
			Buckets:   []float64{.01, .05, .1, .25, .5, 1, 2.5, 5, 10, 30},
		}),

		framesLoaded: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "frames_loaded_total",
			Help:      "Total number of frames loaded from the frame store",
		}),

		segmentsEmitted: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "segments_emitted_total",
			Help:      "Total number of motion segments reported",
		}),

		extractionsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "extractions_total",
			Help:      "Total number of frame extraction runs, by status",
		}, []string{"status"}),

		extractionDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "extraction_duration_seconds",
			Help:      "Duration of ffmpeg frame extraction",
			Buckets:   []float64{1, 5, 10, 30, 60, 120, 300, 600, 1800},
		}),

		framesExtracted: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "frames_extracted_total",
			Help:      "Total number of frames written to the frame store",
		}),
	}

	m.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.httpRequests,
		m.httpDuration,
		m.detectionsTotal,
		m.detectionDuration,
		m.framesLoaded,
		m.segmentsEmitted,
		m.extractionsTotal,
		m.extractionDuration,
		m.framesExtracted,
	)
	return m
}

// Registry exposes the underlying registry, mainly for tests.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *Metrics) ObserveHTTP(route string, status int, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.httpRequests.WithLabelValues(route, strconv.Itoa(status)).Inc()
	m.httpDuration.WithLabelValues(route).Observe(elapsed.Seconds())
}

func (m *Metrics) ObserveDetection(frames, segments int, elapsed time.Duration, err error) {
	if m == nil {
		return
	}
	m.detectionDuration.Observe(elapsed.Seconds())
	switch {
	case err != nil:
		m.detectionsTotal.WithLabelValues("error").Inc()
		return
	case segments > 0:
		m.detectionsTotal.WithLabelValues("motion").Inc()
	default:
		m.detectionsTotal.WithLabelValues("still").Inc()
	}
	m.framesLoaded.Add(float64(frames))
	m.segmentsEmitted.Add(float64(segments))
}

func (m *Metrics) ObserveExtraction(frames int, elapsed time.Duration, err error) {
	if m == nil {
		return
	}
	m.extractionDuration.Observe(elapsed.Seconds())
	if err != nil {
		m.extractionsTotal.WithLabelValues("failed").Inc()
		return
	}
	m.extractionsTotal.WithLabelValues("completed").Inc()
	m.framesExtracted.Add(float64(frames))
}
