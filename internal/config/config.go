// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 GachaFight Contributors

// Package config loads server settings from flags, a YAML file, and the
// environment.
package config

import (
	"errors"
	"io/fs"
	"os"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/posflag"
	"github.com/knadh/koanf/v2"
	"github.com/samber/oops"
	"github.com/spf13/pflag"

	"github.com/gachafight/arena/internal/auth"
	"github.com/gachafight/arena/internal/xdg"
)

// Store backends.
const (
	StoreMemory   = "memory"
	StorePostgres = "postgres"
	StoreSQLite   = "sqlite"
)

// Config is the serve command's configuration.
type Config struct {
	ListenAddr        string        `koanf:"listen-addr"`
	MetricsAddr       string        `koanf:"metrics-addr"`
	LogFormat         string        `koanf:"log-format"`
	LogLevel          string        `koanf:"log-level"`
	Catalog           string        `koanf:"catalog"`
	BroadcastInterval time.Duration `koanf:"broadcast-interval"`
	OutboxSize        int           `koanf:"outbox-size"`
	AllowedOrigins    []string      `koanf:"allowed-origins"`
	Store             string        `koanf:"store"`
	DatabaseURL       string        `koanf:"database-url"`
	SQLitePath        string        `koanf:"sqlite-path"`
	JWTSecret         string        `koanf:"jwt-secret"`
	RewardWorkers     int           `koanf:"reward-workers"`
	RewardQueueSize   int           `koanf:"reward-queue-size"`
	RewardMaxRetries  uint64        `koanf:"reward-max-retries"`
	RewardTimeout     time.Duration `koanf:"reward-timeout"`
	TLSDir            string        `koanf:"tls-dir"`
	LockoutThreshold  int           `koanf:"auth-lockout-threshold"`
	LockoutDuration   time.Duration `koanf:"auth-lockout-duration"`
}

// secrets are read from the environment and override file and flag values.
type secrets struct {
	JWTSecret   string `env:"GACHAFIGHT_JWT_SECRET"`
	DatabaseURL string `env:"DATABASE_URL"`
}

// RegisterFlags defines every configuration flag with its default.
func RegisterFlags(fs *pflag.FlagSet) {
	fs.String("listen-addr", ":3001", "websocket listen address")
	fs.String("metrics-addr", "127.0.0.1:9100", "metrics/health HTTP address (empty = disabled)")
	fs.String("log-format", "json", "log format (json or text)")
	fs.String("log-level", "info", "log level (debug, info, warn, error)")
	fs.String("catalog", "", "character catalog file (default: embedded catalog)")
	fs.Duration("broadcast-interval", 100*time.Millisecond, "room-sync interval")
	fs.Int("outbox-size", 64, "per-connection outbound event buffer")
	fs.StringSlice("allowed-origins", nil, "allowed Origin glob patterns (empty = any)")
	fs.String("store", StoreMemory, "profile store (memory, postgres, or sqlite)")
	fs.String("database-url", "", "postgres connection string (or DATABASE_URL)")
	fs.String("sqlite-path", "", "sqlite database path (default: XDG_DATA_HOME/gachafight/profiles.db)")
	fs.String("jwt-secret", "", "identity token signing secret (or GACHAFIGHT_JWT_SECRET)")
	fs.Int("reward-workers", 2, "reward credit workers")
	fs.Int("reward-queue-size", 256, "pending reward credit capacity")
	fs.Uint64("reward-max-retries", 5, "retries for transient reward failures")
	fs.Duration("reward-timeout", 5*time.Second, "per-attempt reward credit timeout")
	fs.String("tls-dir", "", "serve wss:// with the arena.crt/arena.key pair in this directory")
	fs.Int("auth-lockout-threshold", auth.LockoutThreshold, "failed handshakes before a host is locked out (0 = disabled)")
	fs.Duration("auth-lockout-duration", auth.LockoutDuration, "how long a locked-out host is refused")
}

// Loader reads configuration. The zero value reads the process environment.
type Loader struct {
	// Environ replaces the process environment when non-nil.
	Environ map[string]string
}

// Load builds a Config with precedence flag defaults < config file <
// explicitly set flags < environment secrets. An empty path loads the XDG
// config file when it exists.
func (l Loader) Load(flags *pflag.FlagSet, path string) (*Config, error) {
	k := koanf.New(".")

	if path == "" {
		if def, err := xdg.ConfigFile(); err == nil {
			if _, statErr := os.Stat(def); statErr == nil {
				path = def
			}
		}
	} else if _, err := os.Stat(path); errors.Is(err, fs.ErrNotExist) {
		return nil, oops.Code("CONFIG_NOT_FOUND").With("path", path).Wrap(err)
	}

	if path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, oops.Code("CONFIG_PARSE_FAILED").With("path", path).Wrap(err)
		}
	}
	// Unchanged flags only fill keys the file did not set.
	if err := k.Load(posflag.Provider(flags, ".", k), nil); err != nil {
		return nil, oops.Code("CONFIG_PARSE_FAILED").Wrap(err)
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, oops.Code("CONFIG_PARSE_FAILED").Wrap(err)
	}

	var s secrets
	if err := env.ParseWithOptions(&s, env.Options{Environment: l.Environ}); err != nil {
		return nil, oops.Code("CONFIG_ENV_FAILED").Wrap(err)
	}
	if s.JWTSecret != "" {
		cfg.JWTSecret = s.JWTSecret
	}
	if s.DatabaseURL != "" {
		cfg.DatabaseURL = s.DatabaseURL
	}

	if cfg.Store == StoreSQLite && cfg.SQLitePath == "" {
		p, err := xdg.SQLitePath()
		if err != nil {
			return nil, err
		}
		cfg.SQLitePath = p
	}
	return &cfg, nil
}

// Validate reports the first invalid setting.
func (c *Config) Validate() error {
	invalid := func(field string, value any, msg string) error {
		return oops.Code("CONFIG_INVALID").With("field", field).With("value", value).Errorf("%s: %s", field, msg)
	}

	switch {
	case c.ListenAddr == "":
		return invalid("listen-addr", c.ListenAddr, "is required")
	case c.LogFormat != "json" && c.LogFormat != "text":
		return invalid("log-format", c.LogFormat, "must be 'json' or 'text'")
	case !validLevel(c.LogLevel):
		return invalid("log-level", c.LogLevel, "must be debug, info, warn, or error")
	case c.BroadcastInterval <= 0:
		return invalid("broadcast-interval", c.BroadcastInterval, "must be positive")
	case c.OutboxSize <= 0:
		return invalid("outbox-size", c.OutboxSize, "must be positive")
	case len(c.JWTSecret) < auth.MinSecretLength:
		return invalid("jwt-secret", "<redacted>", "must be set and at least 16 bytes")
	case c.RewardWorkers <= 0:
		return invalid("reward-workers", c.RewardWorkers, "must be positive")
	case c.RewardQueueSize <= 0:
		return invalid("reward-queue-size", c.RewardQueueSize, "must be positive")
	case c.RewardTimeout <= 0:
		return invalid("reward-timeout", c.RewardTimeout, "must be positive")
	case c.LockoutThreshold < 0:
		return invalid("auth-lockout-threshold", c.LockoutThreshold, "must not be negative")
	case c.LockoutThreshold > 0 && c.LockoutDuration <= 0:
		return invalid("auth-lockout-duration", c.LockoutDuration, "must be positive")
	}

	switch c.Store {
	case StoreMemory:
	case StorePostgres:
		if c.DatabaseURL == "" {
			return invalid("database-url", "", "is required for the postgres store")
		}
	case StoreSQLite:
		if c.SQLitePath == "" {
			return invalid("sqlite-path", "", "is required for the sqlite store")
		}
	default:
		return invalid("store", c.Store, "must be memory, postgres, or sqlite")
	}
	return nil
}

func validLevel(s string) bool {
	switch s {
	case "debug", "info", "warn", "error":
		return true
	}
	return false
}
