// Package config provides configuration management for the motion services.
// Configuration is loaded from environment variables with sensible defaults,
// optionally layered over a YAML file for detection tuning.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

const (
	// Default values
	DefaultDetectorPort  = 8778
	DefaultExtractorPort = 8779
	DefaultBindAddr      = "0.0.0.0"
	DefaultLogLevel      = "info"
	DefaultDataDir       = ".motion"
	DefaultFramesDir     = "/frames"
	DefaultFFmpegPath    = "ffmpeg"

	// Environment variable names
	EnvDetectorPort  = "MOTION_DETECTOR_PORT"
	EnvExtractorPort = "MOTION_EXTRACTOR_PORT"
	EnvBindAddr      = "MOTION_BIND_ADDR"
	EnvLogLevel      = "MOTION_LOG_LEVEL"
	EnvDataDir       = "MOTION_DATA_DIR"
	EnvFramesDir     = "MOTION_FRAMES_DIR"
	EnvConfigFile    = "MOTION_CONFIG_FILE"

	// Extraction environment variable names
	EnvFPS            = "MOTION_FPS"
	EnvFFmpegPath     = "MOTION_FFMPEG_PATH"
	EnvExtractTimeout = "MOTION_EXTRACT_TIMEOUT"
	EnvMaxExtractions = "MOTION_MAX_EXTRACTIONS"

	// Detection environment variable names
	EnvPixelDiffThreshold  = "MOTION_PIXEL_DIFF_THRESHOLD"
	EnvPixelCountThreshold = "MOTION_PIXEL_COUNT_THRESHOLD"

	// Database filename
	DBFilename = "extractions.db"

	// Extraction defaults
	DefaultFPS            = 1
	DefaultExtractTimeout = 1800 // 30 minutes
	DefaultMaxExtractions = 2

	// Detection defaults
	DefaultPixelDiffThreshold  = 25
	DefaultPixelCountThreshold = 5000
)

// Config defines the application configuration interface
type Config interface {
	DetectorPort() int
	ExtractorPort() int
	BindAddr() string
	LogLevel() string
	DataDir() string
	DBPath() string
	FramesDir() string
	FPS() int
	FFmpegPath() string
	ExtractTimeout() time.Duration
	MaxExtractions() int
	PixelDiffThreshold() uint8
	PixelCountThreshold() int
}

// EnvConfig reads configuration from environment variables
type EnvConfig struct {
	detectorPort  int
	extractorPort int
	bindAddr      string
	logLevel      string
	dataDir       string
	framesDir     string

	fps            int
	ffmpegPath     string
	extractTimeout time.Duration
	maxExtractions int

	pixelDiffThreshold  int
	pixelCountThreshold int
}

// fileConfig is the shape of the optional YAML file named by MOTION_CONFIG_FILE.
type fileConfig struct {
	FPS        *int `yaml:"fps"`
	Thresholds struct {
		PixelDiff        *int `yaml:"pixel_diff"`
		MotionPixelCount *int `yaml:"motion_pixel_count"`
	} `yaml:"thresholds"`
}

// New creates a new EnvConfig with defaults, the optional YAML file, and
// environment variable overrides, in that order of precedence.
func New() (*EnvConfig, error) {
	cfg := &EnvConfig{
		detectorPort:        DefaultDetectorPort,
		extractorPort:       DefaultExtractorPort,
		bindAddr:            DefaultBindAddr,
		logLevel:            DefaultLogLevel,
		dataDir:             defaultDataDir(),
		framesDir:           DefaultFramesDir,
		fps:                 DefaultFPS,
		ffmpegPath:          DefaultFFmpegPath,
		extractTimeout:      time.Duration(DefaultExtractTimeout) * time.Second,
		maxExtractions:      DefaultMaxExtractions,
		pixelDiffThreshold:  DefaultPixelDiffThreshold,
		pixelCountThreshold: DefaultPixelCountThreshold,
	}

	if path := os.Getenv(EnvConfigFile); path != "" {
		if err := cfg.loadFile(path); err != nil {
			return nil, err
		}
	}

	var err error
	if cfg.detectorPort, err = envPort(EnvDetectorPort, cfg.detectorPort); err != nil {
		return nil, err
	}
	if cfg.extractorPort, err = envPort(EnvExtractorPort, cfg.extractorPort); err != nil {
		return nil, err
	}

	if ba := os.Getenv(EnvBindAddr); ba != "" {
		cfg.bindAddr = ba
	}

	// Override log level from environment
	if ll := os.Getenv(EnvLogLevel); ll != "" {
		cfg.logLevel = ll
	}

	// Override data directory from environment
	if dd := os.Getenv(EnvDataDir); dd != "" {
		cfg.dataDir = dd
	}

	if fd := os.Getenv(EnvFramesDir); fd != "" {
		cfg.framesDir = fd
	}

	if fp := os.Getenv(EnvFFmpegPath); fp != "" {
		cfg.ffmpegPath = fp
	}

	if cfg.fps, err = envInt(EnvFPS, cfg.fps); err != nil {
		return nil, err
	}

	timeoutSecs, err := envInt(EnvExtractTimeout, int(cfg.extractTimeout/time.Second))
	if err != nil {
		return nil, err
	}
	cfg.extractTimeout = time.Duration(timeoutSecs) * time.Second

	if cfg.maxExtractions, err = envInt(EnvMaxExtractions, cfg.maxExtractions); err != nil {
		return nil, err
	}

	if cfg.pixelDiffThreshold, err = envInt(EnvPixelDiffThreshold, cfg.pixelDiffThreshold); err != nil {
		return nil, err
	}
	if cfg.pixelCountThreshold, err = envInt(EnvPixelCountThreshold, cfg.pixelCountThreshold); err != nil {
		return nil, err
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *EnvConfig) loadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("invalid %s: %w", EnvConfigFile, err)
	}

	var fc fileConfig
	if err := yaml.Unmarshal(data, &fc); err != nil {
		return fmt.Errorf("invalid %s: %w", EnvConfigFile, err)
	}

	if fc.FPS != nil {
		c.fps = *fc.FPS
	}
	if fc.Thresholds.PixelDiff != nil {
		c.pixelDiffThreshold = *fc.Thresholds.PixelDiff
	}
	if fc.Thresholds.MotionPixelCount != nil {
		c.pixelCountThreshold = *fc.Thresholds.MotionPixelCount
	}
	return nil
}

func (c *EnvConfig) validate() error {
	if c.fps < 1 {
		return fmt.Errorf("invalid %s: fps must be at least 1", EnvFPS)
	}
	if c.extractTimeout <= 0 {
		return fmt.Errorf("invalid %s: timeout must be positive", EnvExtractTimeout)
	}
	if c.maxExtractions < 1 {
		return fmt.Errorf("invalid %s: must be at least 1", EnvMaxExtractions)
	}
	if c.pixelDiffThreshold < 0 || c.pixelDiffThreshold > 255 {
		return fmt.Errorf("invalid %s: must be between 0 and 255", EnvPixelDiffThreshold)
	}
	if c.pixelCountThreshold < 0 {
		return fmt.Errorf("invalid %s: must not be negative", EnvPixelCountThreshold)
	}
	return nil
}

// DetectorPort returns the motion detector HTTP port
func (c *EnvConfig) DetectorPort() int {
	return c.detectorPort
}

// ExtractorPort returns the frame extractor HTTP port
func (c *EnvConfig) ExtractorPort() int {
	return c.extractorPort
}

func (c *EnvConfig) BindAddr() string {
	return c.bindAddr
}

// LogLevel returns the log level (debug, info, warn, error)
func (c *EnvConfig) LogLevel() string {
	return c.logLevel
}

// DataDir returns the data directory path
func (c *EnvConfig) DataDir() string {
	return c.dataDir
}

// DBPath returns the full path to the SQLite extraction ledger
func (c *EnvConfig) DBPath() string {
	return filepath.Join(c.dataDir, DBFilename)
}

// FramesDir returns the shared frame store directory
func (c *EnvConfig) FramesDir() string {
	return c.framesDir
}

func (c *EnvConfig) FPS() int {
	return c.fps
}

func (c *EnvConfig) FFmpegPath() string {
	return c.ffmpegPath
}

func (c *EnvConfig) ExtractTimeout() time.Duration {
	return c.extractTimeout
}

// MaxExtractions bounds concurrent ffmpeg processes
func (c *EnvConfig) MaxExtractions() int {
	return c.maxExtractions
}

func (c *EnvConfig) PixelDiffThreshold() uint8 {
	return uint8(c.pixelDiffThreshold)
}

func (c *EnvConfig) PixelCountThreshold() int {
	return c.pixelCountThreshold
}

func envPort(name string, def int) (int, error) {
	p := os.Getenv(name)
	if p == "" {
		return def, nil
	}
	port, err := strconv.Atoi(p)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", name, err)
	}
	if port < 1 || port > 65535 {
		return 0, fmt.Errorf("invalid %s: port must be between 1 and 65535", name)
	}
	return port, nil
}

func envInt(name string, def int) (int, error) {
	v := os.Getenv(name)
	if v == "" {
		return def, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", name, err)
	}
	return n, nil
}

// defaultDataDir returns the default data directory path
func defaultDataDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		// Fallback to current directory if home is not available
		return DefaultDataDir
	}
	return filepath.Join(home, DefaultDataDir)
}

// Version information (set at build time via ldflags)
var (
	Version   = "0.1.0"
	BuildTime = "unknown"
	GitCommit = "unknown"
)
