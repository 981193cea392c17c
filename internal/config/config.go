package config

import (
	"errors"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds all service settings, populated from environment variables.
type Config struct {
	// Input rasters.
	DEMPath  string // terrain elevation model, also the alignment reference
	CNPath   string // curve-number map, co-registered with the DEM
	RadarDir string // directory of precipitation rasters to accumulate

	// Outputs.
	RunoffOutputPath  string // accumulated runoff, float32 single band
	FlowDirOutputPath string // D8 codes, uint8 single band
	RiskOutputPath    string // optional; empty disables persisting the risk map

	TempDir string // scratch space for per-file crop/align artifacts

	// Area of interest in georeferenced units. Cropping is disabled
	// when the box is degenerate (max <= min on either axis).
	AOIMinX, AOIMinY, AOIMaxX, AOIMaxY float64

	Workers        int     // tile workers; 0 means one per available CPU
	AlertThreshold float64 // accumulated-runoff depth that marks a risk zone

	// Alert publishing (feature-flagged: no brokers, no publishing).
	KafkaBrokers    []string
	KafkaAlertTopic string

	HTTPAddr        string
	LogLevel        string
	LogFormat       string
	ShutdownTimeout time.Duration
}

// Load reads configuration from environment variables, applying defaults where unset.
func Load() (*Config, error) {
	shutdownTimeout, err := parseDuration("SHUTDOWN_TIMEOUT", "10s")
	if err != nil {
		return nil, err
	}

	workers, err := parseInt("WORKERS", 0)
	if err != nil || workers < 0 {
		return nil, errors.New("invalid WORKERS")
	}

	threshold, err := parseFloat("ALERT_THRESHOLD", 50)
	if err != nil {
		return nil, errors.New("invalid ALERT_THRESHOLD")
	}

	aoi, err := parseAOI()
	if err != nil {
		return nil, err
	}

	cfg := &Config{
		DEMPath:  envOrDefault("DEM_PATH", "data/dem.grd"),
		CNPath:   envOrDefault("CN_PATH", "data/cn_map.grd"),
		RadarDir: envOrDefault("RADAR_DIR", "data/radar"),

		RunoffOutputPath:  envOrDefault("RUNOFF_OUTPUT_PATH", "out/accumulated_runoff.grd"),
		FlowDirOutputPath: envOrDefault("FLOWDIR_OUTPUT_PATH", "out/flow_direction.grd"),
		RiskOutputPath:    os.Getenv("RISK_OUTPUT_PATH"),

		TempDir: envOrDefault("TEMP_DIR", os.TempDir()),

		AOIMinX: aoi[0], AOIMinY: aoi[1], AOIMaxX: aoi[2], AOIMaxY: aoi[3],

		Workers:        workers,
		AlertThreshold: threshold,

		KafkaBrokers:    parseBrokers(os.Getenv("KAFKA_BROKERS")),
		KafkaAlertTopic: envOrDefault("KAFKA_ALERT_TOPIC", "flood-alerts"),

		HTTPAddr:        envOrDefault("HTTP_ADDR", ":8080"),
		LogLevel:        envOrDefault("LOG_LEVEL", "info"),
		LogFormat:       envOrDefault("LOG_FORMAT", "json"),
		ShutdownTimeout: shutdownTimeout,
	}

	if cfg.DEMPath == "" {
		return nil, errors.New("DEM_PATH is required")
	}
	if cfg.CNPath == "" {
		return nil, errors.New("CN_PATH is required")
	}
	if cfg.RadarDir == "" {
		return nil, errors.New("RADAR_DIR is required")
	}

	return cfg, nil
}

// AlertsEnabled reports whether alert publishing is configured.
func (c *Config) AlertsEnabled() bool { return len(c.KafkaBrokers) > 0 }

// CropEnabled reports whether a usable area of interest is configured.
func (c *Config) CropEnabled() bool {
	return c.AOIMaxX > c.AOIMinX && c.AOIMaxY > c.AOIMinY
}

func envOrDefault(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func parseBrokers(s string) []string {
	if s == "" {
		return nil
	}
	parts := strings.Split(s, ",")
	brokers := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			brokers = append(brokers, p)
		}
	}
	return brokers
}

func parseDuration(key, def string) (time.Duration, error) {
	d, err := time.ParseDuration(envOrDefault(key, def))
	if err != nil || d <= 0 {
		return 0, errors.New("invalid " + key)
	}
	return d, nil
}

func parseInt(key string, def int) (int, error) {
	s := os.Getenv(key)
	if s == "" {
		return def, nil
	}
	return strconv.Atoi(s)
}

func parseFloat(key string, def float64) (float64, error) {
	s := os.Getenv(key)
	if s == "" {
		return def, nil
	}
	return strconv.ParseFloat(s, 64)
}

func parseAOI() ([4]float64, error) {
	var box [4]float64
	for i, key := range [...]string{"AOI_MIN_X", "AOI_MIN_Y", "AOI_MAX_X", "AOI_MAX_Y"} {
		v, err := parseFloat(key, 0)
		if err != nil {
			return box, errors.New("invalid " + key)
		}
		box[i] = v
	}
	return box, nil
}
