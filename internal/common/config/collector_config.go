package config

import (
	"errors"
	"fmt"
	"io/fs"
	"net"
	"os"
	"time"

	"github.com/joho/godotenv"

	"github.com/lugx/beacon/internal/common/configtypes"
	"github.com/lugx/beacon/pkg/types"
)

// Environment variables that override the clickhouse section
const (
	EnvClickHouseHost     = "CLICKHOUSE_HOST"
	EnvClickHouseUsername = "CLICKHOUSE_USERNAME"
	EnvClickHousePassword = "CLICKHOUSE_PASSWORD"
)

const (
	defaultCollectorListen   = ":5002"
	defaultRequestTimeout    = 5 * time.Second
	defaultDialTimeout       = 10 * time.Second
	defaultClickHouseTable   = "web_analytics"
	defaultClickHousePort    = "9000"
	defaultClickHouseTLSPort = "9440"
	defaultMetricsPath       = "/metrics"
)

// CollectorConfig configures the collector service
type CollectorConfig struct {
	Server       CollectorServerConfig     `yaml:"server"`
	ClickHouse   ClickHouseConfig          `yaml:"clickhouse"`
	Redis        *configtypes.RedisConfig  `yaml:"redis"`
	EventLogging EventLoggingConfig        `yaml:"event_logging"`
	Metrics      configtypes.MetricsConfig `yaml:"metrics"`
	Log          configtypes.LogConfig     `yaml:"log"`
}

type CollectorServerConfig struct {
	Listen      string         `yaml:"listen"`
	Timeout     types.Duration `yaml:"timeout"`
	MaxBodySize int            `yaml:"max_body_size"`
	CORSOrigin  string         `yaml:"cors_origin"`

	// ClientIPHeaders are trusted in order; empty uses the connection address
	ClientIPHeaders []string `yaml:"client_ip_headers"`
}

type ClickHouseConfig struct {
	Addr        []string       `yaml:"addr"`
	Database    string         `yaml:"database"`
	Username    string         `yaml:"username"`
	Password    string         `yaml:"password"`
	Secure      bool           `yaml:"secure"`
	DialTimeout types.Duration `yaml:"dial_timeout"`
	Table       string         `yaml:"table"`
}

type EventLoggingConfig struct {
	File configtypes.EventFileConfig `yaml:"file"`
}

// LoadDotEnv loads KEY=VALUE files into the process environment.
// Missing files are skipped; existing variables win.
func LoadDotEnv(paths ...string) error {
	if len(paths) == 0 {
		paths = []string{".env"}
	}
	for _, p := range paths {
		if err := godotenv.Load(p); err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				continue
			}
			return fmt.Errorf("failed to load %s: %w", p, err)
		}
	}
	return nil
}

// LoadCollectorConfig reads the file, applies CLICKHOUSE_* overrides, defaults and validation
func LoadCollectorConfig(path string) (*CollectorConfig, error) {
	var cfg CollectorConfig
	if err := loadYAML(path, &cfg); err != nil {
		return nil, err
	}

	if err := cfg.applyEnv(os.Getenv); err != nil {
		return nil, err
	}
	cfg.applyDefaults()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return &cfg, nil
}

func (cfg *CollectorConfig) applyEnv(getenv func(string) string) error {
	if host := getenv(EnvClickHouseHost); host != "" {
		addr, err := clickHouseAddr(host, cfg.ClickHouse.Secure)
		if err != nil {
			return fmt.Errorf("invalid %s: %w", EnvClickHouseHost, err)
		}
		cfg.ClickHouse.Addr = []string{addr}
	}
	if v := getenv(EnvClickHouseUsername); v != "" {
		cfg.ClickHouse.Username = v
	}
	if v := getenv(EnvClickHousePassword); v != "" {
		cfg.ClickHouse.Password = v
	}
	return nil
}

// clickHouseAddr appends the native protocol port when host has none
func clickHouseAddr(host string, secure bool) (string, error) {
	if _, _, err := net.SplitHostPort(host); err == nil {
		return host, nil
	}
	if host == "" {
		return "", fmt.Errorf("host is empty")
	}
	port := defaultClickHousePort
	if secure {
		port = defaultClickHouseTLSPort
	}
	return net.JoinHostPort(host, port), nil
}

func (cfg *CollectorConfig) applyDefaults() {
	applyLogDefaults(&cfg.Log)

	if cfg.Server.Listen == "" {
		cfg.Server.Listen = defaultCollectorListen
	}
	if cfg.Server.Timeout == 0 {
		cfg.Server.Timeout = types.Duration(defaultRequestTimeout)
	}
	if cfg.Server.CORSOrigin == "" {
		cfg.Server.CORSOrigin = "*"
	}

	if cfg.ClickHouse.Table == "" {
		cfg.ClickHouse.Table = defaultClickHouseTable
	}
	if cfg.ClickHouse.DialTimeout == 0 {
		cfg.ClickHouse.DialTimeout = types.Duration(defaultDialTimeout)
	}

	if cfg.Metrics.Enabled && cfg.Metrics.Path == "" {
		cfg.Metrics.Path = defaultMetricsPath
	}
}

func (cfg *CollectorConfig) Validate() error {
	if err := configtypes.ValidateListenAddress(cfg.Server.Listen); err != nil {
		return fmt.Errorf("invalid server.listen: %w", err)
	}
	if cfg.Server.Timeout < 0 {
		return fmt.Errorf("server.timeout must be positive")
	}
	if cfg.Server.MaxBodySize < 0 {
		return fmt.Errorf("server.max_body_size must be >= 0, got %d", cfg.Server.MaxBodySize)
	}

	// an empty clickhouse.addr is allowed: the collector starts and answers 500 on /track
	for _, addr := range cfg.ClickHouse.Addr {
		if _, _, err := net.SplitHostPort(addr); err != nil {
			return fmt.Errorf("invalid clickhouse.addr %q: %w", addr, err)
		}
	}
	if cfg.ClickHouse.DialTimeout < 0 {
		return fmt.Errorf("clickhouse.dial_timeout must be positive")
	}

	if cfg.Redis != nil && cfg.Redis.Addr == "" {
		return fmt.Errorf("redis.addr is required when the redis section is present")
	}

	if cfg.EventLogging.File.Enabled {
		if cfg.EventLogging.File.Path == "" {
			return fmt.Errorf("event_logging.file.path must be specified when enabled")
		}
		if err := validateRotation("event_logging.file.rotation", cfg.EventLogging.File.Rotation); err != nil {
			return err
		}
	}

	if err := validateMetrics(cfg.Metrics, cfg.Server.Listen); err != nil {
		return err
	}

	return validateLog(cfg.Log)
}
