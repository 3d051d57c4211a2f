package aspect

import (
	"context"
	"sync"
	"time"
)

type addCall struct {
	Key   string
	Value any
	TTL   time.Duration
}

type memEntry struct {
	value     any
	expiresAt time.Time
}

// memStore is a Store double with a controllable clock and injectable failures.
type memStore struct {
	mu        sync.Mutex
	entries   map[string]memEntry
	now       time.Time
	adds      []addCall
	gets      int
	existsErr error
	getErr    error
	addErr    error
	// vanish makes Get miss even when Exists reported the key.
	vanish bool
}

func newMemStore() *memStore {
	return &memStore{
		entries: make(map[string]memEntry),
		now:     time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
	}
}

func (m *memStore) Exists(_ context.Context, key string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.existsErr != nil {
		return false, m.existsErr
	}
	_, ok := m.live(key)
	return ok, nil
}

func (m *memStore) Get(_ context.Context, key string) (any, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.gets++
	if m.getErr != nil {
		return nil, false, m.getErr
	}
	if m.vanish {
		return nil, false, nil
	}
	e, ok := m.live(key)
	if !ok {
		return nil, false, nil
	}
	return e.value, true, nil
}

func (m *memStore) Add(_ context.Context, key string, value any, ttl time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.addErr != nil {
		return m.addErr
	}
	m.adds = append(m.adds, addCall{Key: key, Value: value, TTL: ttl})
	m.entries[key] = memEntry{value: value, expiresAt: m.now.Add(ttl)}
	return nil
}

// put seeds an entry without recording an Add.
func (m *memStore) put(key string, value any) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries[key] = memEntry{value: value, expiresAt: m.now.Add(time.Hour)}
}

func (m *memStore) advance(d time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.now = m.now.Add(d)
}

func (m *memStore) addCalls() []addCall {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]addCall, len(m.adds))
	copy(out, m.adds)
	return out
}

func (m *memStore) has(key string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.live(key)
	return ok
}

func (m *memStore) live(key string) (memEntry, bool) {
	e, ok := m.entries[key]
	if !ok || !m.now.Before(e.expiresAt) {
		return memEntry{}, false
	}
	return e, true
}
