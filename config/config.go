package config

import (
	"log"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Config represents the overall application configuration.
type Config struct {
	Server     ServerConfig     `yaml:"server"`
	Database   DatabaseConfig   `yaml:"database"`
	Push       PushConfig       `yaml:"push"`
	WorkerPool WorkerPoolConfig `yaml:"worker_pool"`
	Source     SourceConfig     `yaml:"source"`
	Tracking   TrackingConfig   `yaml:"tracking"`
	Sink       SinkConfig       `yaml:"sink"`
	Fanout     FanoutConfig     `yaml:"fanout"`
}

// ServerConfig holds the HTTP server configuration.
type ServerConfig struct {
	Port            int     `yaml:"port"`
	RateLimitPerSec float64 `yaml:"rate_limit_per_sec"`
	RateLimitBurst  int     `yaml:"rate_limit_burst"`
	CacheTTLSeconds int     `yaml:"cache_ttl_seconds"`
}

// DatabaseConfig holds the database connection configuration. The driver is
// selected from the DSN: "postgres://" DSNs use the postgres driver, anything
// else is treated as a SQLite path.
type DatabaseConfig struct {
	DSN                    string `yaml:"dsn"`
	MaxOpenConns           int    `yaml:"max_open_conns"`
	MaxIdleConns           int    `yaml:"max_idle_conns"`
	ConnMaxLifetimeMinutes int    `yaml:"conn_max_lifetime_minutes"`
}

// PushConfig holds the VAPID keys for web push alert notifications.
type PushConfig struct {
	PublicKey  string `yaml:"vapid_public_key"`
	PrivateKey string `yaml:"vapid_private_key"`
	Subject    string `yaml:"subject"`
	TTL        int    `yaml:"ttl"`
}

// WorkerPoolConfig holds the configuration for the alert notification workers.
type WorkerPoolConfig struct {
	Size int `yaml:"size"`
}

// SourceConfig configures the position source for the local tracking agent.
// When Endpoint is set the agent reads fixes from the device location bridge;
// otherwise it falls back to a static source pinned at StaticLat/StaticLng
// (fixed installations, dry runs).
type SourceConfig struct {
	Endpoint        string            `yaml:"endpoint"`
	Headers         map[string]string `yaml:"headers"`
	TimeoutSeconds  int               `yaml:"timeout_seconds"`
	WatchIntervalMS int               `yaml:"watch_interval_ms"`
	Timeout         time.Duration     `yaml:"-"`
	WatchInterval   time.Duration     `yaml:"-"`
	StaticLat       float64           `yaml:"static_lat"`
	StaticLng       float64           `yaml:"static_lng"`
}

// TrackingConfig configures the local tracking loop. The loop only runs when
// Enabled is true and the configured role is "provider".
type TrackingConfig struct {
	Enabled                  bool          `yaml:"enabled"`
	SubjectID                string        `yaml:"subject_id"`
	GroupID                  string        `yaml:"group_id"`
	Role                     string        `yaml:"role"`
	PollIntervalMS           int           `yaml:"poll_interval_ms"`
	SuperviseIntervalSeconds int           `yaml:"supervise_interval_seconds"`
	PollInterval             time.Duration `yaml:"-"`
	SuperviseInterval        time.Duration `yaml:"-"`
}

// SinkConfig holds the location write sink configuration.
type SinkConfig struct {
	MinWriteIntervalMS int           `yaml:"min_write_interval_ms"`
	MinWriteInterval   time.Duration `yaml:"-"`
}

// FanoutConfig holds the snapshot fan-out configuration.
type FanoutConfig struct {
	PollIntervalSeconds int           `yaml:"poll_interval_seconds"`
	MinRefreshGapMS     int           `yaml:"min_refresh_gap_ms"`
	PollInterval        time.Duration `yaml:"-"`
	MinRefreshGap       time.Duration `yaml:"-"`
}

// Load reads the configuration from the given path and applies defaults.
func Load(path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var cfg Config
	decoder := yaml.NewDecoder(f)
	if err := decoder.Decode(&cfg); err != nil {
		return nil, err
	}
	cfg.ApplyDefaults()
	return &cfg, nil
}

// ApplyDefaults fills in zero-valued fields and derives the time.Duration
// mirrors of the raw integer interval fields.
func (cfg *Config) ApplyDefaults() {
	if cfg.Server.Port <= 0 {
		cfg.Server.Port = 8080
	}
	if cfg.Server.RateLimitPerSec <= 0 {
		cfg.Server.RateLimitPerSec = 10
	}
	if cfg.Server.RateLimitBurst <= 0 {
		cfg.Server.RateLimitBurst = 5
	}
	if cfg.Server.CacheTTLSeconds <= 0 {
		cfg.Server.CacheTTLSeconds = 3
	}

	if cfg.Push.TTL <= 0 {
		cfg.Push.TTL = 3600
	}

	if cfg.WorkerPool.Size <= 0 {
		log.Printf("worker_pool.size is not set or invalid; defaulting to 1")
		cfg.WorkerPool.Size = 1
	}

	if cfg.Source.TimeoutSeconds <= 0 {
		cfg.Source.TimeoutSeconds = 10
	}
	cfg.Source.Timeout = time.Duration(cfg.Source.TimeoutSeconds) * time.Second
	if cfg.Source.WatchIntervalMS <= 0 {
		cfg.Source.WatchIntervalMS = 1000
	}
	cfg.Source.WatchInterval = time.Duration(cfg.Source.WatchIntervalMS) * time.Millisecond

	if cfg.Tracking.Role == "" {
		cfg.Tracking.Role = "provider"
	}
	if cfg.Tracking.PollIntervalMS <= 0 {
		cfg.Tracking.PollIntervalMS = 1500
	}
	cfg.Tracking.PollInterval = time.Duration(cfg.Tracking.PollIntervalMS) * time.Millisecond
	if cfg.Tracking.SuperviseIntervalSeconds <= 0 {
		cfg.Tracking.SuperviseIntervalSeconds = 30
	}
	cfg.Tracking.SuperviseInterval = time.Duration(cfg.Tracking.SuperviseIntervalSeconds) * time.Second

	if cfg.Sink.MinWriteIntervalMS <= 0 {
		cfg.Sink.MinWriteIntervalMS = 1000
	}
	cfg.Sink.MinWriteInterval = time.Duration(cfg.Sink.MinWriteIntervalMS) * time.Millisecond

	if cfg.Fanout.PollIntervalSeconds <= 0 {
		cfg.Fanout.PollIntervalSeconds = 4
	}
	cfg.Fanout.PollInterval = time.Duration(cfg.Fanout.PollIntervalSeconds) * time.Second
	if cfg.Fanout.MinRefreshGapMS <= 0 {
		cfg.Fanout.MinRefreshGapMS = 180
	}
	cfg.Fanout.MinRefreshGap = time.Duration(cfg.Fanout.MinRefreshGapMS) * time.Millisecond
}
