package cache

import (
	"context"
	"strings"
	"sync"
	"time"
)

// MemoryClient implements an in-memory cache for development and tests.
type MemoryClient struct {
	mu      sync.RWMutex
	data    map[string]cacheEntry
	lists   map[string][][]byte
	maxSize int
	seq     uint64
	stop    chan struct{}
	once    sync.Once
}

type cacheEntry struct {
	value     []byte
	expiresAt time.Time // zero means no expiry
	seq       uint64
}

func (e cacheEntry) expired(now time.Time) bool {
	return !e.expiresAt.IsZero() && now.After(e.expiresAt)
}

// NewMemoryClient creates a new in-memory cache client.
func NewMemoryClient(maxSize int) *MemoryClient {
	if maxSize <= 0 {
		maxSize = 10000
	}

	c := &MemoryClient{
		data:    make(map[string]cacheEntry),
		lists:   make(map[string][][]byte),
		maxSize: maxSize,
		stop:    make(chan struct{}),
	}

	go c.cleanup()

	return c
}

// Get retrieves a value from cache.
func (c *MemoryClient) Get(_ context.Context, key string) ([]byte, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	entry, ok := c.data[key]
	if !ok || entry.expired(time.Now()) {
		return nil, ErrCacheMiss
	}

	out := make([]byte, len(entry.value))
	copy(out, entry.value)
	return out, nil
}

// Set stores a value in cache with TTL.
func (c *MemoryClient) Set(_ context.Context, key string, value []byte, ttl time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, exists := c.data[key]; !exists && len(c.data) >= c.maxSize {
		c.evictOldest()
	}

	stored := make([]byte, len(value))
	copy(stored, value)

	var expiresAt time.Time
	if ttl > 0 {
		expiresAt = time.Now().Add(ttl)
	}

	c.seq++
	c.data[key] = cacheEntry{value: stored, expiresAt: expiresAt, seq: c.seq}
	return nil
}

// Delete removes a value from cache.
func (c *MemoryClient) Delete(_ context.Context, key string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	delete(c.data, key)
	delete(c.lists, key)
	return nil
}

// DeleteByPrefix removes all keys with the given prefix.
func (c *MemoryClient) DeleteByPrefix(_ context.Context, prefix string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	for key := range c.data {
		if strings.HasPrefix(key, prefix) {
			delete(c.data, key)
		}
	}
	for key := range c.lists {
		if strings.HasPrefix(key, prefix) {
			delete(c.lists, key)
		}
	}
	return nil
}

// PushBounded prepends value to the list at key and trims it to maxLen.
func (c *MemoryClient) PushBounded(_ context.Context, key string, value []byte, maxLen int) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	stored := make([]byte, len(value))
	copy(stored, value)

	list := append([][]byte{stored}, c.lists[key]...)
	if maxLen > 0 && len(list) > maxLen {
		list = list[:maxLen]
	}
	c.lists[key] = list
	return nil
}

// Range returns up to n of the newest list items at key.
func (c *MemoryClient) Range(_ context.Context, key string, n int) ([][]byte, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	list := c.lists[key]
	if n < len(list) {
		list = list[:n]
	}
	out := make([][]byte, len(list))
	copy(out, list)
	return out, nil
}

// Close stops the background cleanup.
func (c *MemoryClient) Close() error {
	c.once.Do(func() { close(c.stop) })
	return nil
}

// evictOldest removes the least recently written entry.
func (c *MemoryClient) evictOldest() {
	var oldestKey string
	var oldestSeq uint64

	for key, entry := range c.data {
		if oldestKey == "" || entry.seq < oldestSeq {
			oldestKey = key
			oldestSeq = entry.seq
		}
	}

	if oldestKey != "" {
		delete(c.data, oldestKey)
	}
}

func (c *MemoryClient) cleanup() {
	ticker := time.NewTicker(time.Minute)
	defer ticker.Stop()

	for {
		select {
		case <-c.stop:
			return
		case now := <-ticker.C:
			c.mu.Lock()
			for key, entry := range c.data {
				if entry.expired(now) {
					delete(c.data, key)
				}
			}
			c.mu.Unlock()
		}
	}
}

var (
	_ Client     = (*MemoryClient)(nil)
	_ ListClient = (*MemoryClient)(nil)
)
