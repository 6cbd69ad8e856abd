package config

import (
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"
	"time"
)

func TestLoadWithFileOverrides(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	configYAML := `
api:
  base_url: http://localhost:9999
  timeout: 3s
  per_page: 50
  max_pages: 5
  page_delay: 50ms
ingest:
  regions: [1061, 1146]
  workers: 2
storage:
  provider: postgres
  postgres:
    dsn: postgres://localhost/arctic
    table: raw_docs
dataset:
  path: out/vacancies.parquet
  gcs_bucket: arctic-bucket
lock:
  redis_url: redis://localhost:6379/0
notify:
  project_id: arctic-project
  topic: vacancy-runs
dashboard:
  port: 9000
logging:
  development: false
`
	if err := os.WriteFile(path, []byte(configYAML), 0o600); err != nil {
		t.Fatalf("failed to write config: %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.API.BaseURL != "http://localhost:9999" || cfg.API.PerPage != 50 || cfg.API.MaxPages != 5 {
		t.Fatalf("expected api overrides to apply: %+v", cfg.API)
	}
	if cfg.API.Timeout != 3*time.Second || cfg.API.PageDelay != 50*time.Millisecond {
		t.Fatalf("expected durations to parse: %+v", cfg.API)
	}
	if !reflect.DeepEqual(cfg.Ingest.Regions, []int{1061, 1146}) || cfg.Ingest.Workers != 2 {
		t.Fatalf("expected ingest overrides: %+v", cfg.Ingest)
	}
	if cfg.Storage.Provider != "postgres" || cfg.Storage.Postgres.Table != "raw_docs" {
		t.Fatalf("expected postgres storage: %+v", cfg.Storage)
	}
	if cfg.Dashboard.DataPath != "out/vacancies.parquet" {
		t.Fatalf("expected dashboard to read the dataset path, got %q", cfg.Dashboard.DataPath)
	}
	if cfg.Lock.TTL != 30*time.Minute {
		t.Fatalf("expected default lock ttl, got %v", cfg.Lock.TTL)
	}
	if cfg.Logging.Development {
		t.Fatalf("expected logging.development=false")
	}
}

func TestLoadDefaults(t *testing.T) {
	t.Parallel()

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if !reflect.DeepEqual(cfg.Ingest.Regions, DefaultRegions) {
		t.Fatalf("expected default regions, got %v", cfg.Ingest.Regions)
	}
	if cfg.Ingest.Workers != 8 {
		t.Fatalf("expected 8 workers, got %d", cfg.Ingest.Workers)
	}
	if cfg.API.PerPage != 100 || cfg.API.MaxPages != 20 {
		t.Fatalf("unexpected paging defaults: %+v", cfg.API)
	}
	if cfg.API.Timeout != 10*time.Second || cfg.API.PageDelay != 200*time.Millisecond {
		t.Fatalf("unexpected timing defaults: %+v", cfg.API)
	}
	if cfg.Storage.Mongo.Database != "arctic_labor" || cfg.Storage.Mongo.Collection != "raw_vacancies" {
		t.Fatalf("unexpected mongo defaults: %+v", cfg.Storage.Mongo)
	}
	if cfg.Dataset.Path != "data/superset/arctic_vacancies.parquet" {
		t.Fatalf("unexpected dataset path %q", cfg.Dataset.Path)
	}
	if cfg.Dashboard.HistogramBins != 20 || cfg.Dashboard.PreviewRows != 20 || cfg.Dashboard.MinProfessionSamples != 2 {
		t.Fatalf("unexpected dashboard defaults: %+v", cfg.Dashboard)
	}
}

func TestLoadMissingFile(t *testing.T) {
	t.Parallel()

	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	if err == nil || !strings.Contains(err.Error(), "read config") {
		t.Fatalf("expected read error, got %v", err)
	}
}

func TestValidate(t *testing.T) {
	t.Parallel()

	base, err := Load("")
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{name: "valid", mutate: func(*Config) {}},
		{name: "no regions", mutate: func(c *Config) { c.Ingest.Regions = nil }, wantErr: "ingest.regions"},
		{name: "no workers", mutate: func(c *Config) { c.Ingest.Workers = 0 }, wantErr: "ingest.workers"},
		{name: "per page too large", mutate: func(c *Config) { c.API.PerPage = 101 }, wantErr: "api.per_page"},
		{name: "zero timeout", mutate: func(c *Config) { c.API.Timeout = 0 }, wantErr: "api.timeout"},
		{name: "unknown provider", mutate: func(c *Config) { c.Storage.Provider = "sqlite" }, wantErr: "storage.provider"},
		{name: "postgres without dsn", mutate: func(c *Config) { c.Storage.Provider = "postgres" }, wantErr: "storage.postgres.dsn"},
		{name: "memory provider", mutate: func(c *Config) { c.Storage.Provider = "memory" }},
		{name: "topic without project", mutate: func(c *Config) { c.Notify.Topic = "runs" }, wantErr: "notify.project_id"},
		{name: "lock without ttl", mutate: func(c *Config) {
			c.Lock.RedisURL = "redis://localhost:6379"
			c.Lock.TTL = 0
		}, wantErr: "lock.ttl"},
		{name: "no bins", mutate: func(c *Config) { c.Dashboard.HistogramBins = 0 }, wantErr: "dashboard.histogram_bins"},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			cfg := base
			cfg.Ingest.Regions = append([]int(nil), base.Ingest.Regions...)
			tt.mutate(&cfg)
			err := cfg.Validate()
			if tt.wantErr == "" {
				if err != nil {
					t.Fatalf("Validate() error = %v", err)
				}
				return
			}
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Fatalf("expected error containing %q, got %v", tt.wantErr, err)
			}
		})
	}
}
