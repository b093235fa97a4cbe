package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config captures the settings required to boot the inspector CLI and service.
type Config struct {
	Server     ServerConfig     `yaml:"server"`
	Logging    LoggingConfig    `yaml:"logging"`
	Manifests  ManifestsConfig  `yaml:"manifests"`
	Inspection InspectionConfig `yaml:"inspection"`
	Source     SourceConfig     `yaml:"source"`
}

// ServerConfig controls gRPC listener behaviour.
type ServerConfig struct {
	Address         string        `yaml:"address"`
	MetricsAddress  string        `yaml:"metricsAddress"`
	GracefulTimeout time.Duration `yaml:"gracefulTimeout"`
}

// LoggingConfig controls structured logging.
type LoggingConfig struct {
	Level string `yaml:"level"`
	JSON  bool   `yaml:"json"`
}

// ManifestsConfig points at a directory of tier manifests overriding the built-in ones.
type ManifestsConfig struct {
	Path string `yaml:"path"`
}

// InspectionConfig tunes the report pipeline.
type InspectionConfig struct {
	MinCorrelationRows int    `yaml:"minCorrelationRows"`
	ParallelClassify   bool   `yaml:"parallelClassify"`
	MaxWorkers         int    `yaml:"maxWorkers"`
	StrictTimestamps   bool   `yaml:"strictTimestamps"`
	DefaultTier        string `yaml:"defaultTier"`
}

// SourceConfig controls where snapshots are read from. CacheTTL of zero
// disables the decoded-table cache.
type SourceConfig struct {
	DataDir      string        `yaml:"dataDir"`
	BaseURL      string        `yaml:"baseURL"`
	Timeout      time.Duration `yaml:"timeout"`
	MaxBytes     int64         `yaml:"maxBytes"`
	CacheTTL     time.Duration `yaml:"cacheTTL"`
	CacheEntries int           `yaml:"cacheEntries"`
}

// Load initialises Config from a YAML file and optional environment overrides.
func Load(path string) (*Config, error) {
	if path == "" {
		path = os.Getenv("TIER_INSPECTOR_CONFIG")
	}

	cfg := defaultConfig()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return nil, fmt.Errorf("config file %s not found: %w", path, err)
			}
			return nil, fmt.Errorf("read config: %w", err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("parse config: %w", err)
		}
	}

	applyEnvOverrides(&cfg)
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func defaultConfig() Config {
	return Config{
		Server: ServerConfig{
			Address:         ":50061",
			MetricsAddress:  ":2113",
			GracefulTimeout: 10 * time.Second,
		},
		Logging:   LoggingConfig{Level: "info", JSON: false},
		Manifests: ManifestsConfig{Path: "configs/manifests"},
		Inspection: InspectionConfig{
			MinCorrelationRows: 10,
			ParallelClassify:   true,
			MaxWorkers:         4,
		},
		Source: SourceConfig{
			DataDir:      "data",
			Timeout:      30 * time.Second,
			MaxBytes:     512 << 20,
			CacheTTL:     10 * time.Minute,
			CacheEntries: 4,
		},
	}
}

func (c *Config) validate() error {
	if c.Inspection.MinCorrelationRows < 2 {
		return fmt.Errorf("inspection.minCorrelationRows must be at least 2, got %d", c.Inspection.MinCorrelationRows)
	}
	if c.Inspection.MaxWorkers < 0 {
		return fmt.Errorf("inspection.maxWorkers must not be negative, got %d", c.Inspection.MaxWorkers)
	}
	if c.Source.MaxBytes < 0 {
		return fmt.Errorf("source.maxBytes must not be negative, got %d", c.Source.MaxBytes)
	}
	return nil
}

func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("TIER_INSPECTOR_SERVER_ADDRESS"); v != "" {
		cfg.Server.Address = v
	}
	if v := os.Getenv("TIER_INSPECTOR_METRICS_ADDRESS"); v != "" {
		cfg.Server.MetricsAddress = v
	}
	if v := os.Getenv("TIER_INSPECTOR_LOG_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}
	if v := os.Getenv("TIER_INSPECTOR_LOG_FORMAT"); v == "json" {
		cfg.Logging.JSON = true
	}
	if v := os.Getenv("TIER_INSPECTOR_MANIFESTS_PATH"); v != "" {
		cfg.Manifests.Path = v
	}
	if v := os.Getenv("TIER_INSPECTOR_MIN_CORRELATION_ROWS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Inspection.MinCorrelationRows = n
		}
	}
	if v := os.Getenv("TIER_INSPECTOR_PARALLEL_CLASSIFY"); v != "" {
		cfg.Inspection.ParallelClassify = isTrue(v)
	}
	if v := os.Getenv("TIER_INSPECTOR_MAX_WORKERS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Inspection.MaxWorkers = n
		}
	}
	if v := os.Getenv("TIER_INSPECTOR_STRICT_TIMESTAMPS"); v != "" {
		cfg.Inspection.StrictTimestamps = isTrue(v)
	}
	if v := os.Getenv("TIER_INSPECTOR_DEFAULT_TIER"); v != "" {
		cfg.Inspection.DefaultTier = v
	}
	if v := os.Getenv("TIER_INSPECTOR_DATA_DIR"); v != "" {
		cfg.Source.DataDir = v
	}
	if v := os.Getenv("TIER_INSPECTOR_SOURCE_BASE_URL"); v != "" {
		cfg.Source.BaseURL = v
	}
	if v := os.Getenv("TIER_INSPECTOR_SOURCE_TIMEOUT"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.Source.Timeout = d
		}
	}
	if v := os.Getenv("TIER_INSPECTOR_SOURCE_MAX_BYTES"); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			cfg.Source.MaxBytes = n
		}
	}
	if v := os.Getenv("TIER_INSPECTOR_CACHE_TTL"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.Source.CacheTTL = d
		}
	}
	if v := os.Getenv("TIER_INSPECTOR_CACHE_ENTRIES"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Source.CacheEntries = n
		}
	}
}

func isTrue(v string) bool {
	return strings.EqualFold(v, "true") || v == "1"
}
