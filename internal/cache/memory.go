package cache

import (
	"context"
	"sync"
	"time"
)

type entry struct {
	value   []byte
	expires time.Time
}

// Memory is an in-process Store.  Expired entries are dropped lazily on
// read.  It is meant for single-node development and tests.
type Memory struct {
	mu    sync.Mutex
	items map[string]entry
	now   func() time.Time

	// Unavailable makes every call behave like a failed backend.
	Unavailable bool
	gets, sets  int
}

// NewMemory returns an empty store using the wall clock.
func NewMemory() *Memory {
	return &Memory{items: map[string]entry{}, now: time.Now}
}

// WithClock replaces the time source.
func (m *Memory) WithClock(now func() time.Time) *Memory {
	m.mu.Lock()
	m.now = now
	m.mu.Unlock()
	return m
}

func (m *Memory) Get(_ context.Context, key string) ([]byte, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.gets++
	if m.Unavailable {
		return nil, false
	}
	e, ok := m.items[key]
	if !ok {
		return nil, false
	}
	if !m.now().Before(e.expires) {
		delete(m.items, key)
		return nil, false
	}
	return e.value, true
}

func (m *Memory) Set(_ context.Context, key string, value []byte, ttl time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sets++
	if m.Unavailable || ttl <= 0 {
		return
	}
	m.items[key] = entry{value: append([]byte(nil), value...), expires: m.now().Add(ttl)}
}

// Put writes a raw value without counting it; used to seed legacy encodings.
func (m *Memory) Put(key string, value []byte, ttl time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.items[key] = entry{value: value, expires: m.now().Add(ttl)}
}

// TTL returns the remaining lifetime of key, or 0 when absent.
func (m *Memory) TTL(key string) time.Duration {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.items[key]
	if !ok {
		return 0
	}
	return e.expires.Sub(m.now())
}

// Calls returns the number of Get and Set calls made so far.
func (m *Memory) Calls() (gets, sets int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.gets, m.sets
}
