package cache

import (
	"context"
	"sync"
	"sync/atomic"
	"time"
)

type memoryEntry struct {
	value     []byte
	expiresAt time.Time
}

// MemoryCache кеш в памяти процесса, когда Redis не настроен.
// Просроченные записи удаляются при чтении.
type MemoryCache struct {
	mu      sync.RWMutex
	entries map[string]memoryEntry
	config  CacheConfig
	metrics counters
	now     func() time.Time
}

// NewMemoryCache создаёт кеш в памяти
func NewMemoryCache(config CacheConfig) *MemoryCache {
	config.applyDefaults()
	return &MemoryCache{
		entries: make(map[string]memoryEntry),
		config:  config,
		now:     time.Now,
	}
}

func (m *MemoryCache) Get(ctx context.Context, key string) ([]byte, error) {
	if key == "" {
		return nil, ErrInvalidKey
	}
	atomic.AddInt64(&m.metrics.total, 1)

	m.mu.RLock()
	entry, ok := m.entries[key]
	m.mu.RUnlock()

	if ok && m.now().Before(entry.expiresAt) {
		atomic.AddInt64(&m.metrics.hits, 1)
		return entry.value, nil
	}
	if ok {
		m.mu.Lock()
		if cur, still := m.entries[key]; still && !m.now().Before(cur.expiresAt) {
			delete(m.entries, key)
		}
		m.mu.Unlock()
	}

	atomic.AddInt64(&m.metrics.misses, 1)
	return nil, ErrCacheMiss
}

func (m *MemoryCache) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	if key == "" {
		return ErrInvalidKey
	}
	stored := append([]byte(nil), value...)

	m.mu.Lock()
	m.entries[key] = memoryEntry{value: stored, expiresAt: m.now().Add(m.config.clampTTL(ttl))}
	m.mu.Unlock()
	return nil
}

func (m *MemoryCache) Delete(ctx context.Context, key string) error {
	m.mu.Lock()
	delete(m.entries, key)
	m.mu.Unlock()
	return nil
}

func (m *MemoryCache) Close() error {
	m.mu.Lock()
	m.entries = make(map[string]memoryEntry)
	m.mu.Unlock()
	return nil
}

func (m *MemoryCache) GetMetrics() CacheMetrics {
	return m.metrics.snapshot()
}
