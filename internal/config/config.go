// Package config loads featurectl settings from YAML with defaults.
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

type Duration struct{ time.Duration }

func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	if value.Kind != yaml.ScalarNode {
		return fmt.Errorf("duration must be scalar")
	}
	dd, err := time.ParseDuration(value.Value)
	if err != nil {
		return err
	}
	d.Duration = dd
	return nil
}

func (d Duration) MarshalYAML() (any, error) {
	return d.String(), nil
}

type Config struct {
	Log        LogConfig        `yaml:"log"`
	Market     MarketConfig     `yaml:"market"`
	Extraction ExtractionConfig `yaml:"extraction"`
	Batch      BatchConfig      `yaml:"batch"`
	Storage    StorageConfig    `yaml:"storage"`
	Cache      CacheConfig      `yaml:"cache"`
	Guard      GuardConfig      `yaml:"guard"`
	Metrics    MetricsConfig    `yaml:"metrics"`
}

type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"` // console | json
}

type MarketConfig struct {
	Timezone string `yaml:"timezone"`
}

type ExtractionConfig struct {
	Benchmarks      []string `yaml:"benchmarks"`
	DefaultTicker   string   `yaml:"default_ticker"`
	MaxFallbackDays int      `yaml:"max_fallback_days"`
	ReadTimeout     Duration `yaml:"read_timeout"`
	CoverageWindow  Duration `yaml:"coverage_window"`
}

type BatchConfig struct {
	ChunkSize int `yaml:"chunk_size"`
	Workers   int `yaml:"workers"`
	Limit     int `yaml:"limit"`
	TestLimit int `yaml:"test_limit"`
}

type StorageConfig struct {
	Backend       string `yaml:"backend"` // memory | sql
	PostgresDSN   string `yaml:"postgres_dsn"`
	ClickhouseDSN string `yaml:"clickhouse_dsn"`
}

type CacheConfig struct {
	Enabled bool     `yaml:"enabled"`
	Addr    string   `yaml:"addr"`
	DB      int      `yaml:"db"`
	TTL     Duration `yaml:"ttl"`
}

type GuardConfig struct {
	Enabled          bool     `yaml:"enabled"`
	RequestsPerSec   float64  `yaml:"requests_per_sec"`
	Burst            int      `yaml:"burst"`
	FailureThreshold uint32   `yaml:"failure_threshold"`
	OpenTimeout      Duration `yaml:"open_timeout"`
}

type MetricsConfig struct {
	Addr string `yaml:"addr"` // empty disables the /metrics listener
}

// Storage backends.
const (
	BackendMemory = "memory"
	BackendSQL    = "sql"
)

func defaultConfig() Config {
	return Config{
		Log: LogConfig{
			Level:  "info",
			Format: "console",
		},
		Market: MarketConfig{
			Timezone: "America/New_York",
		},
		Extraction: ExtractionConfig{
			Benchmarks:      []string{"SPY", "QQQ"},
			DefaultTicker:   "SPY",
			MaxFallbackDays: 5,
			ReadTimeout:     Duration{10 * time.Second},
			CoverageWindow:  Duration{7 * 24 * time.Hour},
		},
		Batch: BatchConfig{
			ChunkSize: 100,
			Workers:   4,
			Limit:     0,
			TestLimit: 5,
		},
		Storage: StorageConfig{
			Backend: BackendMemory,
		},
		Cache: CacheConfig{
			Enabled: false,
			Addr:    "localhost:6379",
			TTL:     Duration{24 * time.Hour},
		},
		Guard: GuardConfig{
			Enabled:          false,
			RequestsPerSec:   50,
			Burst:            10,
			FailureThreshold: 5,
			OpenTimeout:      Duration{30 * time.Second},
		},
	}
}

// Default returns the built-in configuration.
func Default() Config {
	return defaultConfig()
}

// Load reads path over the defaults. A missing file yields the defaults.
// POSTGRES_DSN, CLICKHOUSE_DSN and REDIS_ADDR override the file.
func Load(path string) (Config, error) {
	cfg := defaultConfig()

	if path != "" {
		b, err := os.ReadFile(path)
		switch {
		case errors.Is(err, os.ErrNotExist):
		case err != nil:
			return Config{}, fmt.Errorf("read config %s: %w", path, err)
		default:
			if err := yaml.Unmarshal(b, &cfg); err != nil {
				return Config{}, fmt.Errorf("parse config %s: %w", path, err)
			}
		}
	}

	applyEnv(&cfg)
	applyFallbacks(&cfg)

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func applyEnv(cfg *Config) {
	if v := os.Getenv("POSTGRES_DSN"); v != "" {
		cfg.Storage.PostgresDSN = v
	}
	if v := os.Getenv("CLICKHOUSE_DSN"); v != "" {
		cfg.Storage.ClickhouseDSN = v
	}
	if v := os.Getenv("REDIS_ADDR"); v != "" {
		cfg.Cache.Addr = v
	}
}

func applyFallbacks(cfg *Config) {
	def := defaultConfig()

	if cfg.Log.Level == "" {
		cfg.Log.Level = def.Log.Level
	}
	if cfg.Log.Format == "" {
		cfg.Log.Format = def.Log.Format
	}
	if cfg.Market.Timezone == "" {
		cfg.Market.Timezone = def.Market.Timezone
	}
	if cfg.Extraction.MaxFallbackDays <= 0 {
		cfg.Extraction.MaxFallbackDays = def.Extraction.MaxFallbackDays
	}
	if cfg.Extraction.ReadTimeout.Duration <= 0 {
		cfg.Extraction.ReadTimeout = def.Extraction.ReadTimeout
	}
	if cfg.Extraction.CoverageWindow.Duration <= 0 {
		cfg.Extraction.CoverageWindow = def.Extraction.CoverageWindow
	}
	if cfg.Batch.ChunkSize <= 0 {
		cfg.Batch.ChunkSize = def.Batch.ChunkSize
	}
	if cfg.Batch.Workers <= 0 {
		cfg.Batch.Workers = def.Batch.Workers
	}
	if cfg.Batch.TestLimit <= 0 {
		cfg.Batch.TestLimit = def.Batch.TestLimit
	}
	if cfg.Storage.Backend == "" {
		cfg.Storage.Backend = def.Storage.Backend
	}
	if cfg.Cache.TTL.Duration <= 0 {
		cfg.Cache.TTL = def.Cache.TTL
	}
	if cfg.Guard.RequestsPerSec <= 0 {
		cfg.Guard.RequestsPerSec = def.Guard.RequestsPerSec
	}
	if cfg.Guard.Burst <= 0 {
		cfg.Guard.Burst = def.Guard.Burst
	}
	if cfg.Guard.FailureThreshold == 0 {
		cfg.Guard.FailureThreshold = def.Guard.FailureThreshold
	}
	if cfg.Guard.OpenTimeout.Duration <= 0 {
		cfg.Guard.OpenTimeout = def.Guard.OpenTimeout
	}

	for i, b := range cfg.Extraction.Benchmarks {
		cfg.Extraction.Benchmarks[i] = strings.ToUpper(strings.TrimSpace(b))
	}
	cfg.Extraction.DefaultTicker = strings.ToUpper(strings.TrimSpace(cfg.Extraction.DefaultTicker))
}

// Validate checks settings that have no sensible fallback.
func (c Config) Validate() error {
	if _, err := time.LoadLocation(c.Market.Timezone); err != nil {
		return fmt.Errorf("market.timezone %q: %w", c.Market.Timezone, err)
	}
	switch c.Log.Format {
	case "console", "json":
	default:
		return fmt.Errorf("log.format must be console or json, got %q", c.Log.Format)
	}
	switch c.Storage.Backend {
	case BackendMemory:
	case BackendSQL:
		if c.Storage.PostgresDSN == "" || c.Storage.ClickhouseDSN == "" {
			return errors.New("storage.backend sql requires postgres_dsn and clickhouse_dsn")
		}
	default:
		return fmt.Errorf("storage.backend must be memory or sql, got %q", c.Storage.Backend)
	}
	for _, b := range c.Extraction.Benchmarks {
		if b == "" {
			return errors.New("extraction.benchmarks contains an empty ticker")
		}
	}
	if c.Cache.Enabled && c.Cache.Addr == "" {
		return errors.New("cache.enabled requires cache.addr")
	}
	return nil
}
