package config

import (
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/faucetdb/sluice/internal/model"
)

// YAMLConfig represents the top-level sluice.yaml configuration file.
type YAMLConfig struct {
	Sources []SourceYAML  `yaml:"sources"`
	Batch   BatchConfig   `yaml:"batch"`
	Server  ServerConfig  `yaml:"server"`
	Logging LoggingConfig `yaml:"logging"`
}

// SourceYAML defines a storage source in the configuration file.
type SourceYAML struct {
	Name   string          `yaml:"name"`
	Label  string          `yaml:"label,omitempty"`
	Driver string          `yaml:"driver"`
	DSN    string          `yaml:"dsn"`
	Schema string          `yaml:"schema,omitempty"`
	Pool   *PoolYAMLConfig `yaml:"pool,omitempty"`
}

// PoolYAMLConfig controls the connection pool for a source.
type PoolYAMLConfig struct {
	MaxOpenConns    int    `yaml:"max_open_conns"`
	MaxIdleConns    int    `yaml:"max_idle_conns"`
	ConnMaxLifetime string `yaml:"conn_max_lifetime"`
	ConnMaxIdleTime string `yaml:"conn_max_idle_time"`
}

// BatchConfig controls how sessions execute batches.
type BatchConfig struct {
	Transactions bool `yaml:"transactions"`
}

// ServerConfig controls the HTTP schema explorer.
type ServerConfig struct {
	Host            string     `yaml:"host"`
	Port            int        `yaml:"port"`
	ShutdownTimeout string     `yaml:"shutdown_timeout"`
	RateLimit       int        `yaml:"rate_limit"` // requests per minute per client, 0 disables
	CORS            CORSConfig `yaml:"cors"`
}

// CORSConfig controls cross-origin resource sharing settings.
type CORSConfig struct {
	Origins []string `yaml:"origins"`
	Methods []string `yaml:"methods"`
}

// LoggingConfig controls log output.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// LoadYAMLConfig reads and parses a YAML configuration file. Environment
// variables referenced as ${VAR_NAME} in the file are expanded before parsing.
// Settings absent from the file keep their defaults.
func LoadYAMLConfig(path string) (*YAMLConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config file: %w", err)
	}

	content := os.ExpandEnv(string(data))

	cfg := DefaultYAMLConfig()
	if err := yaml.Unmarshal([]byte(content), cfg); err != nil {
		return nil, fmt.Errorf("parse config file: %w", err)
	}
	return cfg, nil
}

// DefaultYAMLConfig returns a YAMLConfig pre-filled with defaults.
func DefaultYAMLConfig() *YAMLConfig {
	return &YAMLConfig{
		Batch: BatchConfig{Transactions: true},
		Server: ServerConfig{
			Host:            "127.0.0.1",
			Port:            8080,
			ShutdownTimeout: "10s",
			RateLimit:       600,
			CORS: CORSConfig{
				Origins: []string{"*"},
				Methods: []string{"GET"},
			},
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "text",
		},
	}
}

// WriteDefaultConfig writes the default configuration to a YAML file.
func WriteDefaultConfig(path string) error {
	cfg := DefaultYAMLConfig()
	cfg.Sources = []SourceYAML{{Name: "local", Driver: "sqlite", DSN: "sluice-data.db"}}
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}

// SourceConfig converts a file entry into a source definition, applying the
// default pool for settings left unset.
func (s SourceYAML) SourceConfig() (model.SourceConfig, error) {
	if s.Name == "" || s.Driver == "" {
		return model.SourceConfig{}, fmt.Errorf("source %q: name and driver are required", s.Name)
	}
	pool := model.DefaultPoolConfig()
	if p := s.Pool; p != nil {
		if p.MaxOpenConns > 0 {
			pool.MaxOpenConns = p.MaxOpenConns
		}
		if p.MaxIdleConns > 0 {
			pool.MaxIdleConns = p.MaxIdleConns
		}
		var err error
		if pool.ConnMaxLifetime, err = durationOr(p.ConnMaxLifetime, pool.ConnMaxLifetime); err != nil {
			return model.SourceConfig{}, fmt.Errorf("source %q: conn_max_lifetime: %w", s.Name, err)
		}
		if pool.ConnMaxIdleTime, err = durationOr(p.ConnMaxIdleTime, pool.ConnMaxIdleTime); err != nil {
			return model.SourceConfig{}, fmt.Errorf("source %q: conn_max_idle_time: %w", s.Name, err)
		}
	}
	return model.SourceConfig{
		Name:     s.Name,
		Label:    s.Label,
		Driver:   s.Driver,
		DSN:      s.DSN,
		Schema:   s.Schema,
		IsActive: true,
		Pool:     pool,
	}, nil
}

func durationOr(s string, def time.Duration) (time.Duration, error) {
	if s == "" {
		return def, nil
	}
	return time.ParseDuration(s)
}

// SlogLevel maps the configured level name onto a slog level.
func (l LoggingConfig) SlogLevel() slog.Level {
	switch strings.ToLower(l.Level) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
