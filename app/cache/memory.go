package cache

import (
	"context"
	"strconv"
	"sync"
	"time"
)

type memoryItem struct {
	value     []byte
	expiresAt time.Time
}

// Memory is an in-process Cache. Expiry is lazy on read and additionally
// proactive through a per-key eviction timer so abandoned keys do not
// accumulate.
type Memory struct {
	mu     sync.Mutex
	store  map[string]memoryItem
	timers map[string]*time.Timer
}

// NewMemory constructs an empty in-memory cache.
func NewMemory() *Memory {
	return &Memory{
		store:  make(map[string]memoryItem),
		timers: make(map[string]*time.Timer),
	}
}

func (m *Memory) Get(_ context.Context, key string) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	item, ok := m.getLocked(key)
	if !ok {
		return nil, ErrNotFound
	}
	return item.value, nil
}

func (m *Memory) Set(_ context.Context, key string, value []byte, ttl time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.setLocked(key, value, ttl)
	return nil
}

func (m *Memory) SetNX(_ context.Context, key string, value []byte, ttl time.Duration) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.getLocked(key); ok {
		return false, nil
	}
	m.setLocked(key, value, ttl)
	return true, nil
}

func (m *Memory) Increment(_ context.Context, key string) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	item, ok := m.getLocked(key)
	n := int64(0)
	if ok {
		parsed, err := strconv.ParseInt(string(item.value), 10, 64)
		if err != nil {
			return 0, err
		}
		n = parsed
	}
	n++

	// Keep the stored window end verbatim. Recomputing a TTL here can
	// land at or below zero and persist the counter without expiry.
	updated := memoryItem{value: []byte(strconv.FormatInt(n, 10))}
	if ok {
		updated.expiresAt = item.expiresAt
	}
	m.store[key] = updated
	return n, nil
}

func (m *Memory) Expire(_ context.Context, key string, ttl time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	item, ok := m.getLocked(key)
	if !ok {
		return nil
	}
	m.setLocked(key, item.value, ttl)
	return nil
}

func (m *Memory) Del(_ context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.deleteLocked(key)
	return nil
}

func (m *Memory) Exists(_ context.Context, key string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	_, ok := m.getLocked(key)
	return ok, nil
}

// getLocked returns a live item, evicting it when expired. Caller holds mu.
func (m *Memory) getLocked(key string) (memoryItem, bool) {
	item, ok := m.store[key]
	if !ok {
		return memoryItem{}, false
	}
	if !item.expiresAt.IsZero() && !item.expiresAt.After(time.Now()) {
		m.deleteLocked(key)
		return memoryItem{}, false
	}
	return item, true
}

// setLocked stores the item and resets its eviction timer. Caller holds mu.
func (m *Memory) setLocked(key string, value []byte, ttl time.Duration) {
	if timer, ok := m.timers[key]; ok {
		timer.Stop()
		delete(m.timers, key)
	}

	item := memoryItem{value: value}
	if ttl > 0 {
		item.expiresAt = time.Now().Add(ttl)
		m.timers[key] = time.AfterFunc(ttl, func() {
			m.mu.Lock()
			defer m.mu.Unlock()
			current, ok := m.store[key]
			if ok && !current.expiresAt.IsZero() && !current.expiresAt.After(time.Now()) {
				m.deleteLocked(key)
			}
		})
	}
	m.store[key] = item
}

func (m *Memory) deleteLocked(key string) {
	if timer, ok := m.timers[key]; ok {
		timer.Stop()
		delete(m.timers, key)
	}
	delete(m.store, key)
}
