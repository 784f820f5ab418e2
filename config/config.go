package config

import (
	"bytes"
	"log"
	"os"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config represents the overall application configuration.
type Config struct {
	Server     ServerConfig     `yaml:"server"`
	Database   DatabaseConfig   `yaml:"database"`
	Push       PushConfig       `yaml:"push"`
	WorkerPool WorkerPoolConfig `yaml:"worker_pool"`
	Lease      LeaseConfig      `yaml:"lease"`
	Booking    BookingConfig    `yaml:"booking"`
	Events     EventsConfig     `yaml:"events"`
	Sweeper    SweeperConfig    `yaml:"sweeper"`
	Inventory  InventoryConfig  `yaml:"inventory"`
}

// WorkerPoolConfig holds the configuration for the notification worker pool.
type WorkerPoolConfig struct {
	Size int `yaml:"size"`
}

// PushConfig holds the VAPID keys for web push notifications.
type PushConfig struct {
	PublicKey  string `yaml:"vapid_public_key"`
	PrivateKey string `yaml:"vapid_private_key"`
	Subject    string `yaml:"subject"`
	TTL        int    `yaml:"ttl"`
	Icon       string `yaml:"icon"`
}

// ServerConfig holds the server-related configuration.
type ServerConfig struct {
	Port            int      `yaml:"port"`
	UserIDHeader    string   `yaml:"user_id_header"`
	RateLimitPerSec float64  `yaml:"rate_limit_per_sec"`
	RateLimitBurst  int      `yaml:"rate_limit_burst"`
	CacheTTLSeconds int      `yaml:"cache_ttl_seconds"`
	CORSOrigins     []string `yaml:"cors_origins"`
}

// DatabaseConfig holds the database connection configuration.
type DatabaseConfig struct {
	Driver                 string `yaml:"driver"` // postgres, mysql or sqlite
	DSN                    string `yaml:"dsn"`
	MaxOpenConns           int    `yaml:"max_open_conns"`
	MaxIdleConns           int    `yaml:"max_idle_conns"`
	ConnMaxLifetimeMinutes int    `yaml:"conn_max_lifetime_minutes"`
	LogSQL                 bool   `yaml:"log_sql"`
}

// LeaseConfig selects how room and user leases are held.
type LeaseConfig struct {
	Backend       string        `yaml:"backend"` // local or redis
	RedisURL      string        `yaml:"redis_url"`
	WaitMillis    int           `yaml:"wait_ms"`
	TTLSeconds    int           `yaml:"ttl_seconds"`
	Wait          time.Duration `yaml:"-"`
	TTL           time.Duration `yaml:"-"`
	RetryInterval time.Duration `yaml:"-"`
}

// BookingConfig holds booking history pagination limits.
type BookingConfig struct {
	HistoryDefaultPageSize int `yaml:"history_default_page_size"`
	HistoryMaxPageSize     int `yaml:"history_max_page_size"`
}

// EventsConfig sizes the change notifier queue.
type EventsConfig struct {
	QueueSize int `yaml:"queue_size"`
}

// SweeperConfig controls the background reconcile loop.
type SweeperConfig struct {
	Enabled             bool          `yaml:"enabled"`
	IntervalSeconds     int           `yaml:"interval_seconds"`
	Interval            time.Duration `yaml:"-"`
	AutoEndOverdue      bool          `yaml:"auto_end_overdue"`
	OverdueGraceMinutes int           `yaml:"overdue_grace_minutes"`
	OverdueGrace        time.Duration `yaml:"-"`
}

// InventoryConfig lists the rooms and users seeded at startup.
type InventoryConfig struct {
	Rooms []RoomEntry `yaml:"rooms"`
	Users []UserEntry `yaml:"users"`
}

// RoomEntry is a configured room. Floor may be left out and is then parsed
// from the room number.
type RoomEntry struct {
	ID     string `yaml:"id"`
	Number string `yaml:"number"`
	Floor  int    `yaml:"floor"`
}

// UserEntry is a configured professor.
type UserEntry struct {
	ID         string `yaml:"id"`
	Name       string `yaml:"name"`
	Email      string `yaml:"email"`
	Department string `yaml:"department"`
}

// Load reads the configuration from the given path. A .env file in the
// working directory is loaded first, and ${VAR} references in the YAML are
// expanded from the environment.
func Load(path string) (*Config, error) {
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		log.Printf("could not load .env: %v", err)
	}

	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	expanded := os.ExpandEnv(string(raw))

	var cfg Config
	decoder := yaml.NewDecoder(bytes.NewBufferString(expanded))
	if err := decoder.Decode(&cfg); err != nil {
		return nil, err
	}

	applyDefaults(&cfg)
	return &cfg, nil
}

func applyDefaults(cfg *Config) {
	if cfg.Server.Port <= 0 {
		cfg.Server.Port = 8080
	}
	if cfg.Server.UserIDHeader == "" {
		cfg.Server.UserIDHeader = "X-User-ID"
	}
	if cfg.Server.RateLimitPerSec <= 0 {
		cfg.Server.RateLimitPerSec = 10
	}
	if cfg.Server.RateLimitBurst <= 0 {
		cfg.Server.RateLimitBurst = 5
	}
	if cfg.Server.CacheTTLSeconds <= 0 {
		cfg.Server.CacheTTLSeconds = 30
	}

	if cfg.Database.Driver == "" {
		cfg.Database.Driver = "postgres"
	}

	if cfg.Push.TTL <= 0 {
		cfg.Push.TTL = 3600
	}
	if cfg.Push.Icon == "" {
		cfg.Push.Icon = "/icon-192.png"
	}

	if cfg.WorkerPool.Size <= 0 {
		log.Printf("worker_pool.size is not set or invalid; defaulting to 1")
		cfg.WorkerPool.Size = 1
	}

	if cfg.Lease.Backend == "" {
		cfg.Lease.Backend = "local"
	}
	if cfg.Lease.WaitMillis <= 0 {
		cfg.Lease.WaitMillis = 5000
	}
	cfg.Lease.Wait = time.Duration(cfg.Lease.WaitMillis) * time.Millisecond
	if cfg.Lease.TTLSeconds <= 0 {
		cfg.Lease.TTLSeconds = 30
	}
	cfg.Lease.TTL = time.Duration(cfg.Lease.TTLSeconds) * time.Second
	cfg.Lease.RetryInterval = 25 * time.Millisecond

	if cfg.Booking.HistoryDefaultPageSize <= 0 {
		cfg.Booking.HistoryDefaultPageSize = 20
	}
	if cfg.Booking.HistoryMaxPageSize <= 0 {
		cfg.Booking.HistoryMaxPageSize = 100
	}

	if cfg.Events.QueueSize <= 0 {
		cfg.Events.QueueSize = 256
	}

	if cfg.Sweeper.IntervalSeconds <= 0 {
		cfg.Sweeper.IntervalSeconds = 300
	}
	cfg.Sweeper.Interval = time.Duration(cfg.Sweeper.IntervalSeconds) * time.Second
	if cfg.Sweeper.OverdueGraceMinutes < 0 {
		cfg.Sweeper.OverdueGraceMinutes = 0
	}
	cfg.Sweeper.OverdueGrace = time.Duration(cfg.Sweeper.OverdueGraceMinutes) * time.Minute
}
