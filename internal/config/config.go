// Package config loads and validates pipeline configuration via Viper.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// DefaultRegions are the hh.ru area identifiers of the Arctic zone regions.
var DefaultRegions = []int{1061, 1414, 1985, 1982, 1174, 1146, 1008, 1077}

// Config captures all service configuration knobs loaded via Viper.
type Config struct {
	API       APIConfig       `mapstructure:"api"`
	Ingest    IngestConfig    `mapstructure:"ingest"`
	Storage   StorageConfig   `mapstructure:"storage"`
	Dataset   DatasetConfig   `mapstructure:"dataset"`
	Lock      LockConfig      `mapstructure:"lock"`
	Notify    NotifyConfig    `mapstructure:"notify"`
	Metrics   MetricsConfig   `mapstructure:"metrics"`
	Dashboard DashboardConfig `mapstructure:"dashboard"`
	Schedule  ScheduleConfig  `mapstructure:"schedule"`
	Logging   LoggingConfig   `mapstructure:"logging"`
}

// APIConfig controls the vacancy API client.
type APIConfig struct {
	BaseURL   string        `mapstructure:"base_url"`
	UserAgent string        `mapstructure:"user_agent"`
	Timeout   time.Duration `mapstructure:"timeout"`
	PerPage   int           `mapstructure:"per_page"`
	MaxPages  int           `mapstructure:"max_pages"`
	PageDelay time.Duration `mapstructure:"page_delay"`
}

// IngestConfig governs the region worker pool.
type IngestConfig struct {
	Regions []int `mapstructure:"regions"`
	Workers int   `mapstructure:"workers"`
}

// StorageConfig selects and configures the raw document store.
type StorageConfig struct {
	Provider string         `mapstructure:"provider"`
	Mongo    MongoConfig    `mapstructure:"mongo"`
	Postgres PostgresConfig `mapstructure:"postgres"`
}

// MongoConfig locates the raw vacancy collection.
type MongoConfig struct {
	URI        string        `mapstructure:"uri"`
	Database   string        `mapstructure:"database"`
	Collection string        `mapstructure:"collection"`
	Timeout    time.Duration `mapstructure:"timeout"`
}

// PostgresConfig controls the JSONB raw store.
type PostgresConfig struct {
	DSN      string `mapstructure:"dsn"`
	Table    string `mapstructure:"table"`
	MaxConns int32  `mapstructure:"max_conns"`
}

// DatasetConfig sets where the flat dataset is written and mirrored.
type DatasetConfig struct {
	Path      string `mapstructure:"path"`
	GCSBucket string `mapstructure:"gcs_bucket"`
	GCSObject string `mapstructure:"gcs_object"`
}

// LockConfig configures the optional Redis run lock.
type LockConfig struct {
	RedisURL string        `mapstructure:"redis_url"`
	Key      string        `mapstructure:"key"`
	TTL      time.Duration `mapstructure:"ttl"`
}

// NotifyConfig holds Pub/Sub metadata for run notifications.
type NotifyConfig struct {
	ProjectID string `mapstructure:"project_id"`
	Topic     string `mapstructure:"topic"`
}

// MetricsConfig controls the Prometheus Pushgateway used by batch runs.
type MetricsConfig struct {
	PushgatewayURL string `mapstructure:"pushgateway_url"`
	Job            string `mapstructure:"job"`
}

// DashboardConfig controls the dashboard server.
type DashboardConfig struct {
	Port                 int    `mapstructure:"port"`
	DataPath             string `mapstructure:"data_path"`
	MinProfessionSamples int    `mapstructure:"min_profession_samples"`
	PreviewRows          int    `mapstructure:"preview_rows"`
	HistogramBins        int    `mapstructure:"histogram_bins"`
	TopProfessions       int    `mapstructure:"top_professions"`
}

// ScheduleConfig drives periodic pipeline runs.
type ScheduleConfig struct {
	Cron string `mapstructure:"cron"`
}

// LoggingConfig toggles zap development features.
type LoggingConfig struct {
	Development bool `mapstructure:"development"`
}

// Load builds a Config from disk/environment.
func Load(path string) (Config, error) {
	v := viper.New()
	v.SetEnvPrefix("ARCTIC")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("unmarshal config: %w", err)
	}
	if cfg.Dashboard.DataPath == "" {
		cfg.Dashboard.DataPath = cfg.Dataset.Path
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("api.base_url", "https://api.hh.ru")
	v.SetDefault("api.user_agent", "arctic-vacancy-pipeline/1.0 (ops@arctic-labor.example)")
	v.SetDefault("api.timeout", 10*time.Second)
	v.SetDefault("api.per_page", 100)
	v.SetDefault("api.max_pages", 20)
	v.SetDefault("api.page_delay", 200*time.Millisecond)
	v.SetDefault("ingest.regions", DefaultRegions)
	v.SetDefault("ingest.workers", 8)
	v.SetDefault("storage.provider", "mongo")
	v.SetDefault("storage.mongo.uri", "mongodb://localhost:27017/")
	v.SetDefault("storage.mongo.database", "arctic_labor")
	v.SetDefault("storage.mongo.collection", "raw_vacancies")
	v.SetDefault("storage.mongo.timeout", 10*time.Second)
	v.SetDefault("storage.postgres.table", "raw_vacancies")
	v.SetDefault("storage.postgres.max_conns", 8)
	v.SetDefault("dataset.path", "data/superset/arctic_vacancies.parquet")
	v.SetDefault("dataset.gcs_object", "arctic_vacancies.parquet")
	v.SetDefault("lock.key", "arctic-vacancy-pipeline:run")
	v.SetDefault("lock.ttl", 30*time.Minute)
	v.SetDefault("metrics.job", "arctic_vacancy_pipeline")
	v.SetDefault("dashboard.port", 8501)
	v.SetDefault("dashboard.min_profession_samples", 2)
	v.SetDefault("dashboard.preview_rows", 20)
	v.SetDefault("dashboard.histogram_bins", 20)
	v.SetDefault("dashboard.top_professions", 10)
	v.SetDefault("schedule.cron", "@every 6h")
	v.SetDefault("logging.development", true)
}

// Validate enforces required values and reasonable limits.
func (c Config) Validate() error {
	if c.API.BaseURL == "" {
		return fmt.Errorf("api.base_url is required")
	}
	if c.API.Timeout <= 0 {
		return fmt.Errorf("api.timeout must be > 0")
	}
	if c.API.PerPage <= 0 || c.API.PerPage > 100 {
		return fmt.Errorf("api.per_page must be between 1 and 100")
	}
	if c.API.MaxPages <= 0 {
		return fmt.Errorf("api.max_pages must be > 0")
	}
	if c.API.PageDelay < 0 {
		return fmt.Errorf("api.page_delay must be >= 0")
	}
	if len(c.Ingest.Regions) == 0 {
		return fmt.Errorf("ingest.regions must not be empty")
	}
	if c.Ingest.Workers <= 0 {
		return fmt.Errorf("ingest.workers must be > 0")
	}
	switch c.Storage.Provider {
	case "mongo":
		if c.Storage.Mongo.URI == "" || c.Storage.Mongo.Database == "" || c.Storage.Mongo.Collection == "" {
			return fmt.Errorf("storage.mongo.uri, database and collection are required")
		}
	case "postgres":
		if c.Storage.Postgres.DSN == "" {
			return fmt.Errorf("storage.postgres.dsn is required when provider is postgres")
		}
	case "memory":
	default:
		return fmt.Errorf("storage.provider %q is not one of mongo, postgres, memory", c.Storage.Provider)
	}
	if c.Dataset.Path == "" {
		return fmt.Errorf("dataset.path is required")
	}
	if c.Lock.RedisURL != "" && c.Lock.TTL <= 0 {
		return fmt.Errorf("lock.ttl must be > 0 when lock.redis_url is set")
	}
	if c.Notify.Topic != "" && c.Notify.ProjectID == "" {
		return fmt.Errorf("notify.project_id must be set when notify.topic is set")
	}
	if c.Dashboard.Port <= 0 {
		return fmt.Errorf("dashboard.port must be > 0")
	}
	if c.Dashboard.HistogramBins <= 0 {
		return fmt.Errorf("dashboard.histogram_bins must be > 0")
	}
	return nil
}
