// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

// Package config loads authcore configuration from a YAML file, command-line
// flags and, for secrets, the environment.
package config

import (
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/posflag"
	"github.com/knadh/koanf/v2"
	"github.com/samber/oops"
	"github.com/spf13/pflag"

	"github.com/holomush/authcore/internal/logging"
)

// Store drivers.
const (
	DriverMemory   = "memory"
	DriverPostgres = "postgres"
)

// MinSecretLength is the minimum length of the token signing secret.
const MinSecretLength = 32

// Config is the full authcore configuration.
type Config struct {
	Log     LogConfig     `koanf:"log"`
	Store   StoreConfig   `koanf:"store"`
	Metrics MetricsConfig `koanf:"metrics"`
	Notify  NotifyConfig  `koanf:"notify"`

	// Secrets never come from the config file.
	Secrets Secrets `koanf:"-"`
}

// LogConfig configures the process logger.
type LogConfig struct {
	Format string `koanf:"format"`
	Level  string `koanf:"level"`
}

// StoreConfig selects and tunes the account store.
type StoreConfig struct {
	Driver      string        `koanf:"driver"`
	MaxAttempts int           `koanf:"max_attempts"`
	RetryBase   time.Duration `koanf:"retry_base"`
	RetryMax    time.Duration `koanf:"retry_max"`
}

// MetricsConfig configures the observability server. An empty Addr disables it.
type MetricsConfig struct {
	Addr string `koanf:"addr"`
}

// NotifyConfig configures notification delivery.
type NotifyConfig struct {
	SendTimeout time.Duration `koanf:"send_timeout"`
}

// Secrets are read from the environment only.
type Secrets struct {
	TokenSecret string `env:"AUTHCORE_TOKEN_SECRET,required"`
	DatabaseURL string `env:"DATABASE_URL"`
}

// flagKeys maps flag names onto config keys.
var flagKeys = map[string]string{
	"log-format":          "log.format",
	"log-level":           "log.level",
	"store-driver":        "store.driver",
	"store-max-attempts":  "store.max_attempts",
	"store-retry-base":    "store.retry_base",
	"store-retry-max":     "store.retry_max",
	"metrics-addr":        "metrics.addr",
	"notify-send-timeout": "notify.send_timeout",
}

// RegisterFlags adds the config flags to fs. Flag defaults are the built-in
// defaults.
func RegisterFlags(fs *pflag.FlagSet) {
	fs.String("config", "", "path to a YAML config file (default "+DefaultFile()+" if present)")
	fs.String("log-format", "json", "log format (json, text)")
	fs.String("log-level", "info", "log level (debug, info, warn, error)")
	fs.String("store-driver", DriverMemory, "account store driver (memory, postgres)")
	fs.Int("store-max-attempts", 8, "maximum attempts per store transaction")
	fs.Duration("store-retry-base", 5*time.Millisecond, "base delay between transaction attempts")
	fs.Duration("store-retry-max", 250*time.Millisecond, "maximum delay between transaction attempts")
	fs.String("metrics-addr", "127.0.0.1:9100", "observability server address (empty to disable)")
	fs.Duration("notify-send-timeout", 30*time.Second, "timeout for a single notification delivery")
}

// LoadOptions control where Load reads from.
type LoadOptions struct {
	// Flags is the parsed flag set carrying RegisterFlags' flags.
	Flags *pflag.FlagSet
	// Environment replaces the process environment when non-nil.
	Environment map[string]string
}

// Load builds a Config from, in increasing precedence, flag defaults, the
// config file and explicitly set flags, then reads secrets and validates.
func Load(opts LoadOptions) (*Config, error) {
	k := koanf.New(".")

	path, explicit := configPath(opts.Flags)
	if path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			if explicit || !isNotExist(err) {
				return nil, oops.Code("CONFIG_LOAD_FAILED").With("path", path).Wrap(err)
			}
		}
	}

	if opts.Flags != nil {
		provider := posflag.ProviderWithFlag(opts.Flags, ".", k, func(f *pflag.Flag) (string, any) {
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

	cfg := &Config{}
	if err := k.UnmarshalWithConf("", cfg, koanf.UnmarshalConf{Tag: "koanf"}); err != nil {
		return nil, oops.Code("CONFIG_LOAD_FAILED").With("source", "merged").Wrap(err)
	}

	if err := env.ParseWithOptions(&cfg.Secrets, env.Options{Environment: opts.Environment}); err != nil {
		return nil, oops.Code("CONFIG_INVALID").With("source", "environment").Wrap(err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// configPath returns the file to load and whether it was asked for
// explicitly.
func configPath(fs *pflag.FlagSet) (string, bool) {
	if fs != nil {
		if f := fs.Lookup("config"); f != nil && f.Value.String() != "" {
			return f.Value.String(), true
		}
	}
	return DefaultFile(), false
}

// Validate reports the first invalid setting.
func (c *Config) Validate() error {
	invalid := func(field string, value any, msg string) error {
		return oops.Code("CONFIG_INVALID").With("field", field).With("value", value).Errorf("%s", msg)
	}

	switch {
	case c.Secrets.TokenSecret == "":
		return oops.Code("CONFIG_INVALID").With("field", "AUTHCORE_TOKEN_SECRET").Errorf("token secret is required")
	case len(c.Secrets.TokenSecret) < MinSecretLength:
		return oops.Code("CONFIG_INVALID").
			With("field", "AUTHCORE_TOKEN_SECRET").
			With("min_length", MinSecretLength).
			Errorf("token secret is too short")
	case c.Log.Format != "json" && c.Log.Format != "text":
		return invalid("log.format", c.Log.Format, "log format must be json or text")
	case c.Store.Driver != DriverMemory && c.Store.Driver != DriverPostgres:
		return invalid("store.driver", c.Store.Driver, "store driver must be memory or postgres")
	case c.Store.Driver == DriverPostgres && c.Secrets.DatabaseURL == "":
		return oops.Code("CONFIG_INVALID").With("field", "DATABASE_URL").Errorf("database url is required for the postgres driver")
	case c.Store.MaxAttempts < 1:
		return invalid("store.max_attempts", c.Store.MaxAttempts, "max attempts must be at least 1")
	case c.Store.RetryBase < 0 || c.Store.RetryMax < 0:
		return invalid("store.retry_base", c.Store.RetryBase, "retry delays must not be negative")
	case c.Notify.SendTimeout <= 0:
		return invalid("notify.send_timeout", c.Notify.SendTimeout, "send timeout must be positive")
	}
	if _, err := logging.ParseLevel(c.Log.Level); err != nil {
		return invalid("log.level", c.Log.Level, "log level must be debug, info, warn or error")
	}
	return nil
}

// DatabaseURL reads DATABASE_URL alone, for commands that need no signing
// secret. environment replaces the process environment when non-nil.
func DatabaseURL(environment map[string]string) (string, error) {
	var s struct {
		URL string `env:"DATABASE_URL,required,notEmpty"`
	}
	if err := env.ParseWithOptions(&s, env.Options{Environment: environment}); err != nil {
		return "", oops.Code("CONFIG_INVALID").With("field", "DATABASE_URL").Wrap(err)
	}
	return s.URL, nil
}
