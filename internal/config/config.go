// Package config loads the ingest worker's runtime configuration from a
// YAML file with an environment-variable overlay, mirroring the layered
// Load/loadFromEnv/validate pattern used throughout the surrounding system.
package config

import (
	"os"
	"strconv"
	"time"

	"github.com/aprsworld/ingestd/internal/apperrors"
	"gopkg.in/yaml.v3"
)

type BrokerConfig struct {
	Hosts       []string `yaml:"hosts"`
	Destination string   `yaml:"destination"`
	Login       string   `yaml:"login"`
	Passcode    string   `yaml:"passcode"`
	Prefetch    int      `yaml:"prefetch"`
	HeartBeat   string   `yaml:"heart_beat"`
}

type CacheConfig struct {
	Addr       string        `yaml:"addr"`
	DefaultTTL time.Duration `yaml:"default_ttl"`
}

type DatabaseConfig struct {
	DSN              string `yaml:"dsn"`
	UseUUIDPacketIDs bool   `yaml:"use_uuid_packet_ids"`
	MaxOpenConns     int    `yaml:"max_open_conns"`
	MaxIdleConns     int    `yaml:"max_idle_conns"`
}

type WorkerConfig struct {
	DropDefer            bool          `yaml:"drop_defer"`
	ReportInterval       time.Duration `yaml:"report_interval"`
	TelemetryInterval    time.Duration `yaml:"telemetry_interval"`
	LocatorFlushInterval time.Duration `yaml:"locator_flush_interval"`
}

type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

type Config struct {
	Broker   BrokerConfig   `yaml:"broker"`
	Cache    CacheConfig    `yaml:"cache"`
	Database DatabaseConfig `yaml:"database"`
	Worker   WorkerConfig   `yaml:"worker"`
	Logging  LoggingConfig  `yaml:"logging"`
}

// DefaultConfig returns a Config populated with the system's documented
// defaults (spec.md: prefetch 1024, heart-beat "0,5000", duplicates/position
// TTLs live in pkg/store, report interval 3600s, drop_defer true).
func DefaultConfig() *Config {
	return &Config{
		Broker: BrokerConfig{
			Prefetch:  1024,
			HeartBeat: "0,5000",
		},
		Cache: CacheConfig{
			Addr:       "localhost:6379",
			DefaultTTL: 5 * time.Minute,
		},
		Database: DatabaseConfig{
			MaxOpenConns: 25,
			MaxIdleConns: 5,
		},
		Worker: WorkerConfig{
			DropDefer:            true,
			ReportInterval:       3600 * time.Second,
			TelemetryInterval:    5 * time.Second,
			LocatorFlushInterval: 5 * time.Second,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "text",
		},
	}
}

// Load reads, parses, overlays environment variables onto, and validates a
// Config from the YAML file at path.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, apperrors.Wrapf(err, apperrors.TypeValidation, "failed to read config file %s", path)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, apperrors.Wrapf(err, apperrors.TypeValidation, "failed to parse config file %s", path)
	}

	if err := loadFromEnv(cfg); err != nil {
		return nil, err
	}

	if err := validate(cfg); err != nil {
		return nil, err
	}

	return cfg, nil
}

func loadFromEnv(cfg *Config) error {
	if v := os.Getenv("BROKER_DESTINATION"); v != "" {
		cfg.Broker.Destination = v
	}
	if v := os.Getenv("BROKER_LOGIN"); v != "" {
		cfg.Broker.Login = v
	}
	if v := os.Getenv("BROKER_PASSCODE"); v != "" {
		cfg.Broker.Passcode = v
	}
	if v := os.Getenv("CACHE_ADDR"); v != "" {
		cfg.Cache.Addr = v
	}
	if v := os.Getenv("DB_DSN"); v != "" {
		cfg.Database.DSN = v
	}
	if v := os.Getenv("DROP_DEFER"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return apperrors.Wrapf(err, apperrors.TypeValidation, "invalid DROP_DEFER value %q", v)
		}
		cfg.Worker.DropDefer = b
	}
	if v := os.Getenv("LOG_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}
	return nil
}

func validate(cfg *Config) error {
	if cfg.Broker.Destination == "" {
		return apperrors.New(apperrors.TypeValidation, "broker destination is required")
	}
	if len(cfg.Broker.Hosts) == 0 {
		return apperrors.New(apperrors.TypeValidation, "at least one broker host is required")
	}
	if cfg.Broker.Prefetch <= 0 {
		return apperrors.New(apperrors.TypeValidation, "broker prefetch must be greater than 0")
	}
	if cfg.Cache.Addr == "" {
		return apperrors.New(apperrors.TypeValidation, "cache addr is required")
	}
	if cfg.Database.DSN == "" {
		return apperrors.New(apperrors.TypeValidation, "database dsn is required")
	}
	if cfg.Database.MaxOpenConns <= 0 {
		return apperrors.New(apperrors.TypeValidation, "max open connections must be greater than 0")
	}
	if cfg.Database.MaxIdleConns < 0 {
		return apperrors.New(apperrors.TypeValidation, "max idle connections must be non-negative")
	}
	if cfg.Worker.ReportInterval <= 0 {
		return apperrors.New(apperrors.TypeValidation, "report interval must be greater than 0")
	}
	return nil
}
