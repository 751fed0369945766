// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

// Package config loads savevault settings. Values are layered: built-in
// defaults, then the YAML config file, then DATABASE_URL from the
// environment, then command-line flags the user actually set.
package config

import (
	"errors"
	"io/fs"
	"log/slog"
	"os"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/posflag"
	"github.com/knadh/koanf/v2"
	"github.com/samber/oops"
	"github.com/spf13/pflag"
	yamlv3 "gopkg.in/yaml.v3"

	"github.com/holomush/savevault/internal/auth"
	"github.com/holomush/savevault/internal/logging"
	"github.com/holomush/savevault/internal/vaultcrypto"
	"github.com/holomush/savevault/internal/xdg"
)

// EnvDatabaseURL names the environment variable holding the remote store DSN.
const EnvDatabaseURL = "DATABASE_URL"

// Flag names shared by every command.
const (
	FlagConfig         = "config"
	FlagLogFormat      = "log-format"
	FlagLogLevel       = "log-level"
	FlagBackend        = "backend"
	FlagDatabaseURL    = "database-url"
	FlagSavesDir       = "saves-dir"
	FlagConnectTimeout = "connect-timeout"
	FlagMetricsAddr    = "metrics-addr"
)

// flagKeys maps flag names to koanf keys. Flags not listed here are not
// configuration.
var flagKeys = map[string]string{
	FlagLogFormat:      "log_format",
	FlagLogLevel:       "log_level",
	FlagBackend:        "backend",
	FlagDatabaseURL:    "database_url",
	FlagSavesDir:       "saves_dir",
	FlagConnectTimeout: "connect_timeout",
	FlagMetricsAddr:    "metrics_addr",
}

// KDF holds the argon2id costs applied to newly registered accounts.
type KDF struct {
	Time      uint32 `koanf:"time" yaml:"time"`
	MemoryKiB uint32 `koanf:"memory_kib" yaml:"memory_kib"`
	Threads   uint8  `koanf:"threads" yaml:"threads"`
}

// Params converts the configured costs to derivation parameters.
func (k KDF) Params() vaultcrypto.Params {
	return vaultcrypto.Params{
		Time:      k.Time,
		MemoryKiB: k.MemoryKiB,
		Threads:   k.Threads,
		KeyLen:    vaultcrypto.KeyLen,
	}
}

// Config is the effective configuration.
type Config struct {
	LogFormat      string        `koanf:"log_format" yaml:"log_format"`
	LogLevel       string        `koanf:"log_level" yaml:"log_level"`
	Backend        string        `koanf:"backend" yaml:"backend"`
	DatabaseURL    string        `koanf:"database_url" yaml:"database_url"`
	SavesDir       string        `koanf:"saves_dir" yaml:"saves_dir"`
	ConnectTimeout time.Duration `koanf:"connect_timeout" yaml:"connect_timeout"`
	// AutoMigrate applies pending remote schema migrations on connect.
	AutoMigrate bool `koanf:"auto_migrate" yaml:"auto_migrate"`
	// MetricsAddr is empty when the metrics server is disabled.
	MetricsAddr string `koanf:"metrics_addr" yaml:"metrics_addr"`
	KDF         KDF    `koanf:"kdf" yaml:"kdf"`
}

// Default returns the built-in configuration. SavesDir is resolved at load
// time from the XDG data directory.
func Default() Config {
	p := vaultcrypto.DefaultParams()
	return Config{
		LogFormat:      "text",
		LogLevel:       "info",
		Backend:        string(auth.ModeAuto),
		ConnectTimeout: auth.DefaultConnectTimeout,
		KDF: KDF{
			Time:      p.Time,
			MemoryKiB: p.MemoryKiB,
			Threads:   p.Threads,
		},
	}
}

// RegisterFlags adds the configuration flags to fs.
func RegisterFlags(fs *pflag.FlagSet) {
	d := Default()
	fs.String(FlagConfig, "", "config file path (default: XDG_CONFIG_HOME/savevault/config.yaml)")
	fs.String(FlagLogFormat, d.LogFormat, "log format (json or text)")
	fs.String(FlagLogLevel, d.LogLevel, "log level (debug, info, warn, error)")
	fs.String(FlagBackend, d.Backend, "save backend (auto, remote, or local)")
	fs.String(FlagDatabaseURL, "", "remote store connection URL (default: $DATABASE_URL)")
	fs.String(FlagSavesDir, "", "local save directory (default: XDG_DATA_HOME/savevault/saves)")
	fs.Duration(FlagConnectTimeout, d.ConnectTimeout, "how long to wait for the remote store before falling back")
	fs.String(FlagMetricsAddr, "", "metrics/health HTTP address (empty = disabled)")
}

// LoadOptions configures Load.
type LoadOptions struct {
	// Path is the config file. When empty the XDG default is used and a
	// missing file is not an error.
	Path string
	// Flags are parsed command-line flags registered with RegisterFlags.
	Flags *pflag.FlagSet
	// Getenv defaults to os.Getenv.
	Getenv func(string) string
}

// Load builds the effective configuration. The result is not validated.
func Load(opts LoadOptions) (*Config, error) {
	getenv := opts.Getenv
	if getenv == nil {
		getenv = os.Getenv
	}

	k := koanf.New(".")
	if err := setDefaults(k, Default()); err != nil {
		return nil, err
	}

	path, required := opts.Path, true
	if path == "" {
		defaultPath, err := xdg.ConfigFile()
		if err == nil {
			path, required = defaultPath, false
		}
	}
	if path != "" {
		if err := loadFile(k, path, required); err != nil {
			return nil, err
		}
	}

	if dsn := getenv(EnvDatabaseURL); dsn != "" {
		if err := k.Set("database_url", dsn); err != nil {
			return nil, oops.Code("CONFIG_LOAD_FAILED").With("source", "environment").Wrap(err)
		}
	}

	if opts.Flags != nil {
		provider := posflag.ProviderWithFlag(opts.Flags, ".", k, func(f *pflag.Flag) (string, interface{}) {
			key, ok := flagKeys[f.Name]
			if !ok {
				return "", nil
			}
			return key, posflag.FlagVal(opts.Flags, f)
		})
		if err := k.Load(provider, nil); err != nil {
			return nil, oops.Code("CONFIG_LOAD_FAILED").With("source", "flags").Wrap(err)
		}
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, oops.Code("CONFIG_LOAD_FAILED").With("operation", "decode configuration").Wrap(err)
	}

	if cfg.SavesDir == "" {
		dir, err := xdg.SavesDir()
		if err != nil {
			return nil, oops.Code("CONFIG_LOAD_FAILED").With("operation", "resolve saves directory").Wrap(err)
		}
		cfg.SavesDir = dir
	}
	return &cfg, nil
}

func setDefaults(k *koanf.Koanf, d Config) error {
	defaults := map[string]any{
		"log_format":      d.LogFormat,
		"log_level":       d.LogLevel,
		"backend":         d.Backend,
		"database_url":    d.DatabaseURL,
		"saves_dir":       d.SavesDir,
		"connect_timeout": d.ConnectTimeout,
		"auto_migrate":    d.AutoMigrate,
		"metrics_addr":    d.MetricsAddr,
		"kdf.time":        d.KDF.Time,
		"kdf.memory_kib":  d.KDF.MemoryKiB,
		"kdf.threads":     d.KDF.Threads,
	}
	for key, val := range defaults {
		if err := k.Set(key, val); err != nil {
			return oops.Code("CONFIG_LOAD_FAILED").With("key", key).Wrap(err)
		}
	}
	return nil
}

func loadFile(k *koanf.Koanf, path string, required bool) error {
	if _, err := os.Stat(path); err != nil {
		if errors.Is(err, fs.ErrNotExist) && !required {
			return nil
		}
		return oops.Code("CONFIG_NOT_FOUND").With("path", path).Wrap(err)
	}
	if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
		return oops.Code("CONFIG_LOAD_FAILED").With("path", path).Wrap(err)
	}
	return nil
}

// Validate checks that the configuration is usable.
func (c *Config) Validate() error {
	if !logging.ValidFormat(c.LogFormat) {
		return invalid("log_format", c.LogFormat).Errorf("log format must be 'json' or 'text', got %q", c.LogFormat)
	}
	if _, err := logging.ParseLevel(c.LogLevel); err != nil {
		return invalid("log_level", c.LogLevel).Wrap(err)
	}
	mode, err := auth.ParseSelectMode(c.Backend)
	if err != nil {
		return invalid("backend", c.Backend).Wrap(err)
	}
	if mode == auth.ModeRemote && c.DatabaseURL == "" {
		return invalid("database_url", "").Errorf("backend %q requires a database URL", mode)
	}
	if c.ConnectTimeout <= 0 {
		return invalid("connect_timeout", c.ConnectTimeout.String()).Errorf("connect timeout must be positive")
	}
	if c.SavesDir == "" && mode != auth.ModeRemote {
		return invalid("saves_dir", "").Errorf("saves directory is required")
	}
	if err := c.KDF.Params().Validate(); err != nil {
		return invalid("kdf", "").Wrap(err)
	}
	return nil
}

func invalid(field, value string) oops.OopsErrorBuilder {
	b := oops.Code("CONFIG_INVALID").With("field", field)
	if value != "" {
		b = b.With("value", value)
	}
	return b
}

// Mode returns the parsed backend selection mode. Call after Validate.
func (c *Config) Mode() auth.SelectMode {
	mode, err := auth.ParseSelectMode(c.Backend)
	if err != nil {
		return auth.ModeAuto
	}
	return mode
}

// LogLevelValue returns the parsed log level, or info when invalid.
func (c *Config) LogLevelValue() slog.Level {
	level, _ := logging.ParseLevel(c.LogLevel)
	return level
}

// YAML renders the configuration for display with the database password
// masked.
func (c *Config) YAML() ([]byte, error) {
	shown := struct {
		LogFormat      string `yaml:"log_format"`
		LogLevel       string `yaml:"log_level"`
		Backend        string `yaml:"backend"`
		DatabaseURL    string `yaml:"database_url,omitempty"`
		SavesDir       string `yaml:"saves_dir"`
		ConnectTimeout string `yaml:"connect_timeout"`
		AutoMigrate    bool   `yaml:"auto_migrate"`
		MetricsAddr    string `yaml:"metrics_addr,omitempty"`
		KDF            KDF    `yaml:"kdf"`
	}{
		LogFormat:      c.LogFormat,
		LogLevel:       c.LogLevel,
		Backend:        c.Backend,
		DatabaseURL:    logging.RedactURL(c.DatabaseURL),
		SavesDir:       c.SavesDir,
		ConnectTimeout: c.ConnectTimeout.String(),
		AutoMigrate:    c.AutoMigrate,
		MetricsAddr:    c.MetricsAddr,
		KDF:            c.KDF,
	}
	out, err := yamlv3.Marshal(shown)
	if err != nil {
		return nil, oops.Code("CONFIG_RENDER_FAILED").Wrap(err)
	}
	return out, nil
}
