package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

const (
	BackendMemory   = "memory"
	BackendSQLite   = "sqlite"
	BackendPostgres = "postgres"
	BackendRedis    = "redis"
)

type AppConfig struct {
	ListenAddr string `yaml:"listen_addr"`
	WSAddr     string `yaml:"ws_addr"`
	HTTPAddr   string `yaml:"http_addr"`

	StoreBackend string `yaml:"store_backend"`
	SQLitePath   string `yaml:"sqlite_path"`
	DatabaseURL  string `yaml:"database_url"`
	RedisURL     string `yaml:"redis_url"`

	BcryptCost       int `yaml:"bcrypt_cost"`
	ChatLogLimit     int `yaml:"chatlog_limit"`
	ChatLogMax       int `yaml:"chatlog_max"`
	LeaderboardLimit int `yaml:"leaderboard_limit"`
	MaxLineBytes     int `yaml:"max_line_bytes"`
}

// Default returns the configuration used when nothing is set.
func Default() *AppConfig {
	return &AppConfig{
		ListenAddr:       ":5555",
		StoreBackend:     BackendSQLite,
		SQLitePath:       "data/tictac.db",
		BcryptCost:       10,
		ChatLogLimit:     20,
		ChatLogMax:       100,
		LeaderboardLimit: 10,
		MaxLineBytes:     64 * 1024,
	}
}

// Load applies defaults, then the YAML file named by CONFIG_FILE, then
// environment overrides.
func Load() (*AppConfig, error) {
	cfg := Default()

	if path := strings.TrimSpace(os.Getenv("CONFIG_FILE")); path != "" {
		if err := cfg.mergeFile(path); err != nil {
			return nil, err
		}
	}

	setString(&cfg.ListenAddr, "LISTEN_ADDR")
	setString(&cfg.WSAddr, "WS_ADDR")
	setString(&cfg.HTTPAddr, "HTTP_ADDR")
	setString(&cfg.StoreBackend, "STORE_BACKEND")
	setString(&cfg.SQLitePath, "SQLITE_PATH")
	setString(&cfg.DatabaseURL, "DATABASE_URL")
	setString(&cfg.RedisURL, "REDIS_URL")
	setPositiveInt(&cfg.BcryptCost, "BCRYPT_COST")
	setPositiveInt(&cfg.ChatLogLimit, "CHATLOG_LIMIT")
	setPositiveInt(&cfg.ChatLogMax, "CHATLOG_MAX")
	setPositiveInt(&cfg.LeaderboardLimit, "LEADERBOARD_LIMIT")
	setPositiveInt(&cfg.MaxLineBytes, "MAX_LINE_BYTES")

	cfg.StoreBackend = strings.ToLower(strings.TrimSpace(cfg.StoreBackend))
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks cross-field requirements.
func (c *AppConfig) Validate() error {
	if strings.TrimSpace(c.ListenAddr) == "" {
		return errors.New("LISTEN_ADDR is required")
	}
	switch c.StoreBackend {
	case BackendMemory:
	case BackendSQLite:
		if strings.TrimSpace(c.SQLitePath) == "" {
			return errors.New("SQLITE_PATH is required for the sqlite backend")
		}
	case BackendPostgres:
		if c.DatabaseURL == "" {
			return errors.New("DATABASE_URL is required for the postgres backend")
		}
	case BackendRedis:
		if c.RedisURL == "" {
			return errors.New("REDIS_URL is required for the redis backend")
		}
	default:
		return fmt.Errorf("unknown STORE_BACKEND %q", c.StoreBackend)
	}
	if c.ChatLogMax < c.ChatLogLimit {
		c.ChatLogMax = c.ChatLogLimit
	}
	return nil
}

func (c *AppConfig) mergeFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config file: %w", err)
	}
	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("parse config file %s: %w", path, err)
	}
	return nil
}

func setString(dst *string, key string) {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		*dst = v
	}
}

func setPositiveInt(dst *int, key string) {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			*dst = n
		}
	}
}
