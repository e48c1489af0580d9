package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func writeConfig(t *testing.T, yml string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(yml), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestLoadMissingFileReturnsDefaults(t *testing.T) {
	t.Setenv("POSTGRES_DSN", "")
	t.Setenv("CLICKHOUSE_DSN", "")
	t.Setenv("REDIS_ADDR", "")

	cfg, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	if err != nil {
		t.Fatalf("expected nil error for missing config, got %v", err)
	}

	def := defaultConfig()
	if cfg.Market.Timezone != def.Market.Timezone {
		t.Fatalf("expected default timezone %q, got %q", def.Market.Timezone, cfg.Market.Timezone)
	}
	if cfg.Batch.ChunkSize != def.Batch.ChunkSize {
		t.Fatalf("expected default chunk size %d, got %d", def.Batch.ChunkSize, cfg.Batch.ChunkSize)
	}
	if len(cfg.Extraction.Benchmarks) != 2 || cfg.Extraction.Benchmarks[0] != "SPY" {
		t.Fatalf("expected default benchmarks, got %v", cfg.Extraction.Benchmarks)
	}
	if cfg.Storage.Backend != BackendMemory {
		t.Fatalf("expected memory backend, got %q", cfg.Storage.Backend)
	}
}

func TestLoadAppliesFallbacksAndNormalizes(t *testing.T) {
	t.Setenv("POSTGRES_DSN", "")
	t.Setenv("CLICKHOUSE_DSN", "")
	path := writeConfig(t, `market:
  timezone: ""
extraction:
  benchmarks: [" spy", "iwm "]
  default_ticker: aapl
  max_fallback_days: 0
  read_timeout: 0s
  coverage_window: 72h
batch:
  chunk_size: 0
  workers: 16
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load config: %v", err)
	}

	if cfg.Market.Timezone != "America/New_York" {
		t.Fatalf("expected timezone fallback, got %q", cfg.Market.Timezone)
	}
	if cfg.Extraction.MaxFallbackDays != 5 {
		t.Fatalf("expected max fallback days 5, got %d", cfg.Extraction.MaxFallbackDays)
	}
	if cfg.Extraction.ReadTimeout.Duration != 10*time.Second {
		t.Fatalf("expected read timeout fallback, got %s", cfg.Extraction.ReadTimeout)
	}
	if cfg.Extraction.CoverageWindow.Duration != 72*time.Hour {
		t.Fatalf("expected coverage window 72h, got %s", cfg.Extraction.CoverageWindow)
	}
	if cfg.Batch.ChunkSize != 100 || cfg.Batch.Workers != 16 {
		t.Fatalf("unexpected batch config %+v", cfg.Batch)
	}
	if cfg.Extraction.Benchmarks[0] != "SPY" || cfg.Extraction.Benchmarks[1] != "IWM" {
		t.Fatalf("expected normalized benchmarks, got %v", cfg.Extraction.Benchmarks)
	}
	if cfg.Extraction.DefaultTicker != "AAPL" {
		t.Fatalf("expected upper-cased default ticker, got %q", cfg.Extraction.DefaultTicker)
	}
}

func TestLoadEnvOverrides(t *testing.T) {
	t.Setenv("POSTGRES_DSN", "postgres://u:p@db:5432/features")
	t.Setenv("CLICKHOUSE_DSN", "clickhouse://default@ch:9000/prices")
	path := writeConfig(t, "storage:\n  backend: sql\n")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load config: %v", err)
	}
	if cfg.Storage.PostgresDSN != "postgres://u:p@db:5432/features" {
		t.Fatalf("expected env DSN, got %q", cfg.Storage.PostgresDSN)
	}
}

func TestLoadRejectsInvalid(t *testing.T) {
	t.Setenv("POSTGRES_DSN", "")
	t.Setenv("CLICKHOUSE_DSN", "")

	tests := []struct {
		name string
		yml  string
	}{
		{"bad timezone", "market:\n  timezone: Mars/Olympus\n"},
		{"bad backend", "storage:\n  backend: mongo\n"},
		{"sql without dsn", "storage:\n  backend: sql\n"},
		{"bad duration", "extraction:\n  read_timeout: soon\n"},
		{"bad log format", "log:\n  format: xml\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := Load(writeConfig(t, tt.yml)); err == nil {
				t.Fatal("expected error")
			}
		})
	}
}
