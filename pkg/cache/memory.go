package cache

import (
	"context"
	"sync"
	"time"
)

type memoryItem struct {
	value    []byte
	expireAt time.Time
}

func (m *memoryItem) expired() bool {
	return !m.expireAt.IsZero() && time.Now().After(m.expireAt)
}

// MemoryStore implements Store using in-process storage with a periodic
// janitor. Entries without a TTL never expire.
type MemoryStore struct {
	data    map[string]*memoryItem
	mutex   sync.RWMutex
	maxSize int
	stop    chan struct{}
	once    sync.Once
}

// NewMemoryStore creates an in-memory store.
func NewMemoryStore(opts ...MemoryOption) *MemoryStore {
	cfg := &MemoryConfig{
		MaxSize:         10000,
		CleanupInterval: time.Minute,
	}

	for _, opt := range opts {
		opt(cfg)
	}

	ms := &MemoryStore{
		data:    make(map[string]*memoryItem),
		maxSize: cfg.MaxSize,
		stop:    make(chan struct{}),
	}

	go ms.janitor(cfg.CleanupInterval)
	return ms
}

func (ms *MemoryStore) Set(_ context.Context, key string, value []byte, ttl time.Duration) error {
	var expireAt time.Time
	if ttl > 0 {
		expireAt = time.Now().Add(ttl)
	}

	ms.mutex.Lock()
	if len(ms.data) >= ms.maxSize {
		ms.evictExpiredLocked()
	}
	ms.data[key] = &memoryItem{value: value, expireAt: expireAt}
	ms.mutex.Unlock()
	return nil
}

func (ms *MemoryStore) Get(_ context.Context, key string) ([]byte, error) {
	ms.mutex.RLock()
	item, ok := ms.data[key]
	ms.mutex.RUnlock()
	if !ok {
		return nil, ErrCacheMiss
	}
	if item.expired() {
		ms.mutex.Lock()
		delete(ms.data, key)
		ms.mutex.Unlock()
		return nil, ErrCacheMiss
	}
	return item.value, nil
}

func (ms *MemoryStore) Delete(_ context.Context, keys ...string) error {
	ms.mutex.Lock()
	for _, k := range keys {
		delete(ms.data, k)
	}
	ms.mutex.Unlock()
	return nil
}

func (ms *MemoryStore) Close() error {
	ms.once.Do(func() { close(ms.stop) })
	return nil
}

func (ms *MemoryStore) janitor(interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ms.stop:
			return
		case <-ticker.C:
			ms.mutex.Lock()
			ms.evictExpiredLocked()
			ms.mutex.Unlock()
		}
	}
}

func (ms *MemoryStore) evictExpiredLocked() {
	for k, item := range ms.data {
		if item.expired() {
			delete(ms.data, k)
		}
	}
}
