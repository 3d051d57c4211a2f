package cacheinfra

import (
	"context"
	"fmt"
	"time"

	"github.com/maypok86/otter/v2"
)

// OtterStore is an in-memory W-TinyLFU Store backed by otter.
type OtterStore struct {
	cache  *otter.Cache[string, entry]
	maxTTL time.Duration
	now    func() time.Time
}

// NewOtterStore creates an otter store bounded by cfg.Capacity entries.
func NewOtterStore(cfg Config) (*OtterStore, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	c, err := otter.New[string, entry](&otter.Options[string, entry]{
		MaximumSize:      cfg.Capacity,
		ExpiryCalculator: otter.ExpiryWriting[string, entry](cfg.TTL),
	})
	if err != nil {
		return nil, fmt.Errorf("create otter cache: %w", err)
	}
	return &OtterStore{cache: c, maxTTL: cfg.TTL, now: time.Now}, nil
}

// Exists reports whether a live entry is stored under key.
func (o *OtterStore) Exists(_ context.Context, key string) (bool, error) {
	_, ok := o.lookup(key)
	return ok, nil
}

// Get returns the value stored under key if present and not expired.
func (o *OtterStore) Get(_ context.Context, key string) (any, bool, error) {
	e, ok := o.lookup(key)
	if !ok {
		return nil, false, nil
	}
	return e.value, true, nil
}

// Add stores a value with per-entry TTL.
func (o *OtterStore) Add(_ context.Context, key string, value any, ttl time.Duration) error {
	if ttl <= 0 || ttl > o.maxTTL {
		ttl = o.maxTTL
	}
	o.cache.Set(key, entry{value: value, expiresAt: o.now().Add(ttl)})
	return nil
}

func (o *OtterStore) lookup(key string) (entry, bool) {
	e, ok := o.cache.GetIfPresent(key)
	if !ok {
		return entry{}, false
	}
	if e.expired(o.now()) {
		o.cache.Invalidate(key)
		return entry{}, false
	}
	return e, true
}
