package cacheinfra

import (
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	goerrors "github.com/goliatone/go-errors"
	"github.com/viccon/sturdyc"
)

// Supported store backends.
const (
	BackendSturdyc = "sturdyc"
	BackendOtter   = "otter"
	BackendRedis   = "redis"
)

// Config holds the configuration for the store backends.
type Config struct {
	// Backend selects the store implementation. Empty means sturdyc.
	Backend string `json:"backend"`

	// Capacity defines the maximum number of entries that the in-process
	// backends can store. Must be greater than 0.
	Capacity int `json:"capacity"`

	// NumShards determines the number of sturdyc shards for concurrent access.
	// Higher values improve concurrency but increase memory overhead.
	NumShards int `json:"num_shards"`

	// TTL is the longest lifetime any entry can have. Entries added with a
	// shorter TTL expire on their own deadline; the backend evicts everything
	// once this ceiling passes.
	TTL time.Duration `json:"ttl"`

	// EvictionPercentage specifies what percentage of entries sturdyc evicts
	// when it reaches capacity. Must be between 1-100.
	EvictionPercentage int `json:"eviction_percentage"`

	// EvictionInterval sets how often sturdyc checks for expired entries.
	// Zero value uses the default interval.
	EvictionInterval time.Duration `json:"eviction_interval"`

	Redis RedisConfig `json:"redis"`
}

// RedisConfig configures the redis backend.
type RedisConfig struct {
	Addr         string        `json:"addr"`
	Password     string        `json:"password"`
	DB           int           `json:"db"`
	Prefix       string        `json:"prefix"`
	DialTimeout  time.Duration `json:"dial_timeout"`
	ReadTimeout  time.Duration `json:"read_timeout"`
	WriteTimeout time.Duration `json:"write_timeout"`
}

// DefaultConfig returns a Config with sensible defaults for most use cases.
func DefaultConfig() Config {
	return Config{
		Backend:            BackendSturdyc,
		Capacity:           10000,
		NumShards:          256,
		TTL:                time.Hour,
		EvictionPercentage: 10,
		EvictionInterval:   0, // Use default
		Redis: RedisConfig{
			Addr:         "localhost:6379",
			Prefix:       "aspect:",
			DialTimeout:  5 * time.Second,
			ReadTimeout:  3 * time.Second,
			WriteTimeout: 3 * time.Second,
		},
	}
}

// ToSturdycOptions converts the Config to sturdyc.Option slice.
// Capacity, NumShards, TTL, and EvictionPercentage are passed directly
// to sturdyc.New() and are not included in the options.
func (c Config) ToSturdycOptions() []sturdyc.Option {
	var options []sturdyc.Option
	if c.EvictionInterval > 0 {
		options = append(options, sturdyc.WithEvictionInterval(c.EvictionInterval))
	}
	return options
}

// Validate checks if the configuration values are valid.
// Failures are reported as a validation error listing every offending field.
func (c Config) Validate() error {
	inProcess := c.Backend != BackendRedis
	sturdy := c.Backend == "" || c.Backend == BackendSturdyc

	err := validation.ValidateStruct(&c,
		validation.Field(&c.Backend, validation.In(BackendSturdyc, BackendOtter, BackendRedis)),
		validation.Field(&c.Capacity, validation.When(inProcess, validation.Required, validation.Min(1))),
		validation.Field(&c.NumShards, validation.When(sturdy, validation.Required, validation.Min(1))),
		validation.Field(&c.TTL, validation.Required, validation.Min(time.Duration(1))),
		validation.Field(&c.EvictionPercentage, validation.When(sturdy, validation.Required, validation.Min(1), validation.Max(100))),
		validation.Field(&c.EvictionInterval, validation.Min(time.Duration(0))),
		validation.Field(&c.Redis, validation.When(c.Backend == BackendRedis, validation.By(validateRedis))),
	)
	if err != nil {
		return goerrors.FromOzzoValidation(err, "invalid cache configuration")
	}
	return nil
}

func validateRedis(value any) error {
	rc, _ := value.(RedisConfig)
	return validation.ValidateStruct(&rc,
		validation.Field(&rc.Addr, validation.Required),
		validation.Field(&rc.DB, validation.Min(0), validation.Max(15)),
	)
}
