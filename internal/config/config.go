// Package config reads runtime settings from the environment.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
)

const (
	appDirName     = "froggy-mcp-tester"
	defaultAPIAddr = "127.0.0.1:7331"
)

// Config holds resolved settings. Flags may override fields after Load.
type Config struct {
	Home         string
	APIAddr      string
	APIToken     string
	APIAllowlist string
	LogLevel     logrus.Level
	HTTPTimeout  time.Duration
}

// Load reads FROGGY_* variables. Callers load .env beforehand.
func Load() (Config, error) {
	cfg := Config{
		Home:         envOr("FROGGY_HOME", ""),
		APIAddr:      envOr("FROGGY_API_ADDR", defaultAPIAddr),
		APIToken:     envOr("FROGGY_API_TOKEN", ""),
		APIAllowlist: envOr("FROGGY_API_ALLOWLIST", ""),
		LogLevel:     logrus.InfoLevel,
	}

	if cfg.Home == "" {
		base, err := os.UserConfigDir()
		if err != nil {
			return Config{}, fmt.Errorf("resolve config dir: %w", err)
		}
		cfg.Home = filepath.Join(base, appDirName)
	}

	if raw := envOr("FROGGY_LOG_LEVEL", ""); raw != "" {
		level, err := logrus.ParseLevel(raw)
		if err != nil {
			return Config{}, fmt.Errorf("FROGGY_LOG_LEVEL: %w", err)
		}
		cfg.LogLevel = level
	}

	if raw := envOr("FROGGY_HTTP_TIMEOUT", ""); raw != "" && raw != "0" {
		d, err := time.ParseDuration(raw)
		if err != nil {
			return Config{}, fmt.Errorf("FROGGY_HTTP_TIMEOUT: %w", err)
		}
		if d < 0 {
			return Config{}, fmt.Errorf("FROGGY_HTTP_TIMEOUT: must not be negative")
		}
		cfg.HTTPTimeout = d
	}
	return cfg, nil
}

// LogDir is where component log files are written.
func (c Config) LogDir() string {
	return filepath.Join(c.Home, "logs")
}

func envOr(key, fallback string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return fallback
}
