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
	Upstream   UpstreamConfig   `yaml:"upstream"`
	Watcher    WatcherConfig    `yaml:"watcher"`
	Tokens     TokenConfig      `yaml:"tokens"`
	Database   DatabaseConfig   `yaml:"database"`
	Push       PushConfig       `yaml:"push"`
	WorkerPool WorkerPoolConfig `yaml:"worker_pool"`
}

// ServerConfig holds the local API server configuration.
type ServerConfig struct {
	Port            int     `yaml:"port"`
	RateLimitPerSec float64 `yaml:"rate_limit_per_sec"`
	CacheTTLSeconds int     `yaml:"cache_ttl_seconds"`
}

// UpstreamConfig describes the remote reservation backend and how the
// equipment mirror is kept fresh.
type UpstreamConfig struct {
	BaseURL        string        `yaml:"base_url"`
	GymID          string        `yaml:"gym_id"`
	Transport      string        `yaml:"transport"` // "poll" (default) or "push"
	PollIntervalMS int           `yaml:"poll_interval_ms"`
	PollInterval   time.Duration `yaml:"-"` // Ignored by YAML parser
	FlashDelayMS   int           `yaml:"flash_delay_ms"`
	FlashDelay     time.Duration `yaml:"-"`
	HTTPProxy      string        `yaml:"http_proxy"`
}

// WatcherConfig controls the reservation notification watcher.
type WatcherConfig struct {
	IntervalMS    int           `yaml:"interval_ms"`
	Interval      time.Duration `yaml:"-"`
	WindowSeconds int           `yaml:"window_seconds"`
}

// TokenConfig locates the durable credential store.
type TokenConfig struct {
	Path string `yaml:"path"`
}

// PushConfig holds the VAPID keys for web push notifications.
type PushConfig struct {
	PublicKey  string `yaml:"vapid_public_key"`
	PrivateKey string `yaml:"vapid_private_key"`
	Subject    string `yaml:"subject"`
	TTL        int    `yaml:"ttl"`
}

// DatabaseConfig holds the local transition-history database configuration.
type DatabaseConfig struct {
	DSN                    string `yaml:"dsn"`
	MaxOpenConns           int    `yaml:"max_open_conns"`
	MaxIdleConns           int    `yaml:"max_idle_conns"`
	ConnMaxLifetimeMinutes int    `yaml:"conn_max_lifetime_minutes"`
}

// WorkerPoolConfig holds the configuration for the notification worker pool.
type WorkerPoolConfig struct {
	Size int `yaml:"size"`
}

// minPollIntervalMS bounds the worst-case request rate against the backend.
const minPollIntervalMS = 3000

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

	if cfg.Upstream.Transport == "" {
		cfg.Upstream.Transport = "poll"
	}

	if cfg.Upstream.PollIntervalMS <= 0 {
		cfg.Upstream.PollIntervalMS = 5000
	}
	if cfg.Upstream.PollIntervalMS < minPollIntervalMS {
		log.Printf("upstream.poll_interval_ms %d is below the %dms floor; clamping", cfg.Upstream.PollIntervalMS, minPollIntervalMS)
		cfg.Upstream.PollIntervalMS = minPollIntervalMS
	}
	cfg.Upstream.PollInterval = time.Duration(cfg.Upstream.PollIntervalMS) * time.Millisecond

	if cfg.Upstream.FlashDelayMS <= 0 {
		cfg.Upstream.FlashDelayMS = 700
	}
	cfg.Upstream.FlashDelay = time.Duration(cfg.Upstream.FlashDelayMS) * time.Millisecond

	if cfg.Watcher.IntervalMS <= 0 {
		cfg.Watcher.IntervalMS = 3000
	}
	cfg.Watcher.Interval = time.Duration(cfg.Watcher.IntervalMS) * time.Millisecond

	if cfg.Watcher.WindowSeconds <= 0 {
		cfg.Watcher.WindowSeconds = 15
	}

	if cfg.Tokens.Path == "" {
		cfg.Tokens.Path = "./gymsync-tokens.db"
	}

	if cfg.Database.DSN == "" {
		cfg.Database.DSN = "./gymsync.db"
	}

	if cfg.Push.TTL <= 0 {
		cfg.Push.TTL = 3600
	}

	if cfg.WorkerPool.Size <= 0 {
		log.Printf("worker_pool.size is not set or invalid; defaulting to 1")
		cfg.WorkerPool.Size = 1
	}

	return &cfg, nil
}
