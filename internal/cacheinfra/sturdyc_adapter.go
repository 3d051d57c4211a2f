package cacheinfra

import (
	"context"
	"time"

	"github.com/viccon/sturdyc"
)

// Store mirrors the cache.Store contract so this package stays free of an import
// back into the public cache package.
type Store interface {
	Exists(ctx context.Context, key string) (bool, error)
	Get(ctx context.Context, key string) (any, bool, error)
	Add(ctx context.Context, key string, value any, ttl time.Duration) error
}

// NewStore builds the backend selected by cfg.Backend.
func NewStore(cfg Config) (Store, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	switch cfg.Backend {
	case BackendOtter:
		return NewOtterStore(cfg)
	case BackendRedis:
		return NewRedisStore(cfg.Redis)
	default:
		return NewSturdycStore(cfg)
	}
}

// entry wraps a stored value with its own expiry so that in-process backends,
// which only know a single client wide TTL, can honor per-entry TTLs.
type entry struct {
	value     any
	expiresAt time.Time
}

func (e entry) expired(now time.Time) bool {
	return !now.Before(e.expiresAt)
}

// SturdycStore is the default in-process Store backed by a sturdyc client.
type SturdycStore struct {
	client *sturdyc.Client[entry]
	maxTTL time.Duration
	now    func() time.Time
}

// NewSturdycStore creates a new sturdyc store.
// It validates the configuration and initializes a sturdyc client with the provided settings.
//
// The client TTL is cfg.TTL and works as a ceiling: an entry added with a longer
// TTL is still evicted once the ceiling passes.
func NewSturdycStore(cfg Config) (*SturdycStore, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	client := sturdyc.New[entry](
		cfg.Capacity,
		cfg.NumShards,
		cfg.TTL,
		cfg.EvictionPercentage,
		cfg.ToSturdycOptions()...,
	)

	return &SturdycStore{client: client, maxTTL: cfg.TTL, now: time.Now}, nil
}

// Exists reports whether a live entry is stored under key.
func (s *SturdycStore) Exists(_ context.Context, key string) (bool, error) {
	_, ok := s.lookup(key)
	return ok, nil
}

// Get returns the value stored under key. Expired entries are reported as a miss.
func (s *SturdycStore) Get(_ context.Context, key string) (any, bool, error) {
	e, ok := s.lookup(key)
	if !ok {
		return nil, false, nil
	}
	return e.value, true, nil
}

// Add stores value under key for ttl, replacing any previous entry.
func (s *SturdycStore) Add(_ context.Context, key string, value any, ttl time.Duration) error {
	if ttl <= 0 || ttl > s.maxTTL {
		ttl = s.maxTTL
	}
	s.client.Set(key, entry{value: value, expiresAt: s.now().Add(ttl)})
	return nil
}

// Size returns the number of entries currently held by the client, expired or not.
func (s *SturdycStore) Size() int {
	return s.client.Size()
}

func (s *SturdycStore) lookup(key string) (entry, bool) {
	e, ok := s.client.Get(key)
	if !ok {
		return entry{}, false
	}
	if e.expired(s.now()) {
		s.client.Delete(key)
		return entry{}, false
	}
	return e, true
}
