// Package config loads the aspectd configuration from a YAML file, an optional .env
// file and ASPECT_* environment variables, in that order of precedence.
package config

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"strings"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	goerrors "github.com/goliatone/go-errors"
	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v3"

	"github.com/goliatone/go-aspect-cache/aspect"
	"github.com/goliatone/go-aspect-cache/cache"
	"github.com/goliatone/go-aspect-cache/failure"
	"github.com/goliatone/go-aspect-cache/logsink"
)

// EnvPrefix is the prefix of every environment override.
const EnvPrefix = "ASPECT"

// Config holds all aspectd configuration.
type Config struct {
	HTTP        HTTPConfig        `yaml:"http"`
	Log         LogConfig         `yaml:"log"`
	Cache       cache.Config      `yaml:"cache"`
	Interceptor InterceptorConfig `yaml:"interceptor"`
	Failure     FailureConfig     `yaml:"failure"`
}

// HTTPConfig controls the demo server.
type HTTPConfig struct {
	Addr            string        `yaml:"addr"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout" split_words:"true"`
}

// LogConfig controls the diagnostic logger.
type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// InterceptorConfig controls the call interceptor.
type InterceptorConfig struct {
	TTL          time.Duration `yaml:"ttl"`
	MaxKeyLength int           `yaml:"max_key_length" split_words:"true"`
	FailClosed   bool          `yaml:"fail_closed" split_words:"true"`
}

// FailureConfig controls the failure layer and its sinks.
type FailureConfig struct {
	ErrorPath string `yaml:"error_path" split_words:"true"`
	LogFile   string `yaml:"log_file" split_words:"true"`
	DBDriver  string `yaml:"db_driver" envconfig:"DB_DRIVER"`
	DBDSN     string `yaml:"db_dsn" envconfig:"DB_DSN"`
}

// Default returns a Config with sensible defaults.
func Default() *Config {
	return &Config{
		HTTP: HTTPConfig{
			Addr:            ":8080",
			ShutdownTimeout: 10 * time.Second,
		},
		Log: LogConfig{
			Level:  "info",
			Format: "json",
		},
		Cache: cache.DefaultConfig(),
		Interceptor: InterceptorConfig{
			TTL: aspect.DefaultTTL,
		},
		Failure: FailureConfig{
			ErrorPath: failure.DefaultErrorPath,
			LogFile:   "logs/failures.log",
			DBDriver:  logsink.DriverSQLite,
			DBDSN:     "aspect.db",
		},
	}
}

// Load builds the configuration. path names an optional YAML file; envFiles are
// optional .env files loaded into the process environment before overrides are
// applied. Missing .env files are ignored.
func Load(path string, envFiles ...string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config: %w", err)
		}
		if err := yaml.Unmarshal([]byte(os.ExpandEnv(string(data))), cfg); err != nil {
			return nil, fmt.Errorf("parse config: %w", err)
		}
	}

	if err := loadEnvFiles(envFiles...); err != nil {
		return nil, err
	}

	if err := envconfig.Process(EnvPrefix, cfg); err != nil {
		return nil, fmt.Errorf("process environment: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func loadEnvFiles(files ...string) error {
	for _, file := range files {
		// godotenv never overrides variables already set in the environment
		if err := godotenv.Load(file); err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				continue
			}
			return fmt.Errorf("load %s: %w", file, err)
		}
	}
	return nil
}

// Validate checks the configuration, reporting every offending field.
func (c *Config) Validate() error {
	if err := c.Cache.Validate(); err != nil {
		return err
	}

	err := validation.Errors{
		"http.addr":             validation.Validate(c.HTTP.Addr, validation.Required),
		"http.shutdown_timeout": validation.Validate(c.HTTP.ShutdownTimeout, validation.Min(time.Duration(0))),
		"log.level":             validation.Validate(strings.ToLower(c.Log.Level), validation.In("debug", "info", "warn", "error")),
		"log.format":            validation.Validate(c.Log.Format, validation.In("json", "text")),
		"interceptor.ttl": validation.Validate(c.Interceptor.TTL,
			validation.Min(time.Duration(0)),
			// in-process stores clamp entry TTLs to their own ceiling
			validation.When(c.Cache.Backend != cache.BackendRedis,
				validation.Max(c.Cache.TTL).Error(fmt.Sprintf("must not exceed cache.ttl (%s)", c.Cache.TTL)),
			),
		),
		"interceptor.max_key_length": validation.Validate(c.Interceptor.MaxKeyLength, validation.Min(0)),
		"failure.error_path":         validation.Validate(c.Failure.ErrorPath, validation.Required),
		"failure.db_driver":          validation.Validate(c.Failure.DBDriver, validation.In(logsink.DriverSQLite, logsink.DriverPostgres)),
		"failure.db_dsn":             validation.Validate(c.Failure.DBDSN, validation.When(c.Failure.DBDriver != "", validation.Required)),
	}.Filter()
	if err != nil {
		return goerrors.FromOzzoValidation(err, "invalid configuration")
	}
	return nil
}

// SlogLevel returns the configured log level.
func (c LogConfig) SlogLevel() slog.Level {
	var level slog.Level
	if err := level.UnmarshalText([]byte(c.Level)); err != nil {
		return slog.LevelInfo
	}
	return level
}

// NewLogger creates the diagnostic logger described by c.
func (c LogConfig) NewLogger(w io.Writer) *slog.Logger {
	opts := &slog.HandlerOptions{Level: c.SlogLevel()}
	if c.Format == "text" {
		return slog.New(slog.NewTextHandler(w, opts))
	}
	return slog.New(slog.NewJSONHandler(w, opts))
}
