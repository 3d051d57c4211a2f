package cache

import (
	"time"

	"github.com/goliatone/go-aspect-cache/internal/cacheinfra"
)

// Supported backends for NewStore.
const (
	BackendSturdyc = cacheinfra.BackendSturdyc
	BackendOtter   = cacheinfra.BackendOtter
	BackendRedis   = cacheinfra.BackendRedis
)

// Config exposes store configuration options for consumers of the cache package.
type Config struct {
	Backend            string        `json:"backend" yaml:"backend"`
	Capacity           int           `json:"capacity" yaml:"capacity"`
	NumShards          int           `json:"num_shards" yaml:"num_shards" split_words:"true"`
	TTL                time.Duration `json:"ttl" yaml:"ttl"`
	EvictionPercentage int           `json:"eviction_percentage" yaml:"eviction_percentage" split_words:"true"`
	EvictionInterval   time.Duration `json:"eviction_interval" yaml:"eviction_interval" split_words:"true"`
	Redis              RedisConfig   `json:"redis" yaml:"redis"`
}

// RedisConfig configures the redis backend.
type RedisConfig struct {
	Addr         string        `json:"addr" yaml:"addr"`
	Password     string        `json:"password" yaml:"password"`
	DB           int           `json:"db" yaml:"db"`
	Prefix       string        `json:"prefix" yaml:"prefix"`
	DialTimeout  time.Duration `json:"dial_timeout" yaml:"dial_timeout" split_words:"true"`
	ReadTimeout  time.Duration `json:"read_timeout" yaml:"read_timeout" split_words:"true"`
	WriteTimeout time.Duration `json:"write_timeout" yaml:"write_timeout" split_words:"true"`
}

// DefaultConfig returns a Config populated with sensible defaults.
func DefaultConfig() Config {
	return convertFromInternal(cacheinfra.DefaultConfig())
}

// Validate checks whether the configuration values are valid.
func (c Config) Validate() error {
	return c.toInternal().Validate()
}

// NewStore constructs the Store selected by cfg.Backend.
func NewStore(cfg Config) (Store, error) {
	return cacheinfra.NewStore(cfg.toInternal())
}

func (c Config) toInternal() cacheinfra.Config {
	return cacheinfra.Config{
		Backend:            c.Backend,
		Capacity:           c.Capacity,
		NumShards:          c.NumShards,
		TTL:                c.TTL,
		EvictionPercentage: c.EvictionPercentage,
		EvictionInterval:   c.EvictionInterval,
		Redis: cacheinfra.RedisConfig{
			Addr:         c.Redis.Addr,
			Password:     c.Redis.Password,
			DB:           c.Redis.DB,
			Prefix:       c.Redis.Prefix,
			DialTimeout:  c.Redis.DialTimeout,
			ReadTimeout:  c.Redis.ReadTimeout,
			WriteTimeout: c.Redis.WriteTimeout,
		},
	}
}

func convertFromInternal(cfg cacheinfra.Config) Config {
	return Config{
		Backend:            cfg.Backend,
		Capacity:           cfg.Capacity,
		NumShards:          cfg.NumShards,
		TTL:                cfg.TTL,
		EvictionPercentage: cfg.EvictionPercentage,
		EvictionInterval:   cfg.EvictionInterval,
		Redis: RedisConfig{
			Addr:         cfg.Redis.Addr,
			Password:     cfg.Redis.Password,
			DB:           cfg.Redis.DB,
			Prefix:       cfg.Redis.Prefix,
			DialTimeout:  cfg.Redis.DialTimeout,
			ReadTimeout:  cfg.Redis.ReadTimeout,
			WriteTimeout: cfg.Redis.WriteTimeout,
		},
	}
}
