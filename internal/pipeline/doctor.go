package pipeline

import (
	"context"
	"log/slog"
	"os/exec"
	"strings"
	"sync"
	"time"
)

const (
	defaultCacheTTL     = 5 * time.Minute
	defaultProbeTimeout = 10 * time.Second
)

// Prober reports ffmpeg capabilities.
type Prober interface {
	Probe(ctx context.Context) (*Capabilities, error)
}

// VersionProber runs `ffmpeg -version`.
type VersionProber struct {
	FFmpegPath string
}

func (p VersionProber) Probe(ctx context.Context) (*Capabilities, error) {
	ctx, cancel := context.WithTimeout(ctx, defaultProbeTimeout)
	defer cancel()

	bin, err := resolveFFmpeg(p.FFmpegPath)
	if err != nil {
		return nil, err
	}

	out, err := exec.CommandContext(ctx, bin, "-version").Output()
	if err != nil {
		return nil, err
	}

	return &Capabilities{
		Available: true,
		Path:      bin,
		Version:   parseVersion(string(out)),
		ProbedAt:  time.Now(),
	}, nil
}

// parseVersion extracts the version token from the first line of
// `ffmpeg -version`, e.g. "ffmpeg version 6.1.1-3ubuntu5 Copyright ...".
func parseVersion(out string) string {
	line, _, _ := strings.Cut(out, "\n")
	fields := strings.Fields(line)
	for i, f := range fields {
		if f == "version" && i+1 < len(fields) {
			return fields[i+1]
		}
	}
	return ""
}

// CachedDoctor wraps a Prober to cache probe results with a configurable TTL.
// This avoids spawning ffmpeg on every health check.
type CachedDoctor struct {
	prober Prober
	ttl    time.Duration
	logger *slog.Logger

	mu     sync.RWMutex
	cached *Capabilities
}

// NewCachedDoctor creates a caching wrapper around ffmpeg probes.
func NewCachedDoctor(prober Prober, logger *slog.Logger) *CachedDoctor {
	return &CachedDoctor{
		prober: prober,
		ttl:    defaultCacheTTL,
		logger: logger,
	}
}

// Get returns cached capabilities if fresh, otherwise re-probes.
func (d *CachedDoctor) Get(ctx context.Context) (*Capabilities, error) {
	d.mu.RLock()
	if d.cached != nil && time.Since(d.cached.ProbedAt) < d.ttl {
		caps := d.cached
		d.mu.RUnlock()
		return caps, nil
	}
	d.mu.RUnlock()

	return d.Refresh(ctx)
}

func (d *CachedDoctor) Peek() *Capabilities {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.cached
}

// Refresh forces a new probe regardless of cache freshness.
func (d *CachedDoctor) Refresh(ctx context.Context) (*Capabilities, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	caps, err := d.prober.Probe(ctx)
	if err != nil {
		d.logger.Warn("ffmpeg probe failed", "error", err)
		// Return stale cache if available
		if d.cached != nil {
			d.logger.Info("returning stale ffmpeg capabilities")
			return d.cached, nil
		}
		return nil, err
	}

	d.cached = caps
	return caps, nil
}

// Invalidate clears the cached capabilities.
func (d *CachedDoctor) Invalidate() {
	d.mu.Lock()
	d.cached = nil
	d.mu.Unlock()
}
