package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"sync"
)

// ErrReadOnly is returned when writing to a cache opened read-only.
var ErrReadOnly = errors.New("cache is read-only")

// Named is one in-process cache mirrored to a Store. Every Put flushes the
// whole mapping synchronously. Concurrent writers to the same key are not
// ordered: the last Put wins.
type Named struct {
	name     string
	store    Store
	readOnly bool

	mu      sync.RWMutex
	entries map[string]json.RawMessage

	flushMu sync.Mutex
}

// Option configures Open.
type Option func(*Named)

// ReadOnly rejects Put, Delete and Clear.
func ReadOnly() Option {
	return func(n *Named) { n.readOnly = true }
}

// Open loads the named cache from store.
func Open(ctx context.Context, store Store, name string, opts ...Option) (*Named, error) {
	entries, err := store.Load(ctx, name)
	if err != nil {
		return nil, err
	}
	return newNamed(store, name, entries, opts...), nil
}

// OpenEmpty returns the named cache with no entries, without reading store.
// Used to recover from a corrupt persisted cache.
func OpenEmpty(store Store, name string, opts ...Option) *Named {
	return newNamed(store, name, nil, opts...)
}

func newNamed(store Store, name string, entries map[string]json.RawMessage, opts ...Option) *Named {
	if entries == nil {
		entries = map[string]json.RawMessage{}
	}
	n := &Named{name: name, store: store, entries: entries}
	for _, opt := range opts {
		opt(n)
	}
	return n
}

// Name returns the cache name.
func (n *Named) Name() string {
	return n.name
}

// IsReadOnly reports whether the cache rejects writes.
func (n *Named) IsReadOnly() bool {
	return n.readOnly
}

// Get returns the stored value for key.
func (n *Named) Get(key string) (json.RawMessage, bool) {
	n.mu.RLock()
	defer n.mu.RUnlock()

	v, ok := n.entries[key]
	return v, ok
}

// Put stores value under key and flushes the cache.
func (n *Named) Put(ctx context.Context, key string, value json.RawMessage) error {
	if n.readOnly {
		return fmt.Errorf("%w: %s", ErrReadOnly, n.name)
	}
	if !json.Valid(value) {
		return fmt.Errorf("put %s/%s: invalid json value", n.name, key)
	}

	n.mu.Lock()
	n.entries[key] = append(json.RawMessage(nil), value...)
	n.mu.Unlock()

	return n.Flush(ctx)
}

// PutJSON marshals v and stores it under key.
func (n *Named) PutJSON(ctx context.Context, key string, v interface{}) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("encode %s/%s: %w", n.name, key, err)
	}
	return n.Put(ctx, key, data)
}

// Delete removes key and flushes the cache.
func (n *Named) Delete(ctx context.Context, key string) error {
	if n.readOnly {
		return fmt.Errorf("%w: %s", ErrReadOnly, n.name)
	}

	n.mu.Lock()
	delete(n.entries, key)
	n.mu.Unlock()

	return n.Flush(ctx)
}

// Clear removes every entry and flushes the cache.
func (n *Named) Clear(ctx context.Context) error {
	if n.readOnly {
		return fmt.Errorf("%w: %s", ErrReadOnly, n.name)
	}

	n.mu.Lock()
	n.entries = map[string]json.RawMessage{}
	n.mu.Unlock()

	return n.Flush(ctx)
}

// Flush writes the current mapping to the store. Flushes are serialized so
// the last one to finish always carries the newest snapshot.
func (n *Named) Flush(ctx context.Context) error {
	n.flushMu.Lock()
	defer n.flushMu.Unlock()

	n.mu.RLock()
	snapshot := make(map[string]json.RawMessage, len(n.entries))
	for k, v := range n.entries {
		snapshot[k] = v
	}
	n.mu.RUnlock()

	if err := n.store.Save(ctx, n.name, snapshot); err != nil {
		return fmt.Errorf("flush %s: %w", n.name, err)
	}
	return nil
}

// Keys returns the cached keys, sorted.
func (n *Named) Keys() []string {
	n.mu.RLock()
	defer n.mu.RUnlock()

	keys := make([]string, 0, len(n.entries))
	for k := range n.entries {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Len returns the number of entries.
func (n *Named) Len() int {
	n.mu.RLock()
	defer n.mu.RUnlock()
	return len(n.entries)
}
