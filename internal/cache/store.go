package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// ErrCorruptCache is returned when a persisted cache cannot be decoded.
var ErrCorruptCache = errors.New("corrupt cache")

// Store persists whole named caches. Load of an unknown name returns an
// empty mapping.
type Store interface {
	Load(ctx context.Context, name string) (map[string]json.RawMessage, error)
	Save(ctx context.Context, name string, entries map[string]json.RawMessage) error
}

// FileStore keeps each named cache as a pretty-printed JSON object in
// <dir>/<name>.json.
type FileStore struct {
	dir string
}

// NewFileStore creates a file-backed store rooted at dir.
func NewFileStore(dir string) *FileStore {
	return &FileStore{dir: dir}
}

// Path returns the file backing the named cache.
func (s *FileStore) Path(name string) string {
	return filepath.Join(s.dir, name+".json")
}

// Load reads the named cache. A missing file is an empty cache.
func (s *FileStore) Load(_ context.Context, name string) (map[string]json.RawMessage, error) {
	data, err := os.ReadFile(s.Path(name))
	if errors.Is(err, os.ErrNotExist) {
		return map[string]json.RawMessage{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read cache %s: %w", name, err)
	}
	if len(strings.TrimSpace(string(data))) == 0 {
		return map[string]json.RawMessage{}, nil
	}

	entries := map[string]json.RawMessage{}
	if err := json.Unmarshal(data, &entries); err != nil {
		return nil, fmt.Errorf("%w %s: %v", ErrCorruptCache, name, err)
	}
	return entries, nil
}

// Save atomically replaces the named cache file.
func (s *FileStore) Save(_ context.Context, name string, entries map[string]json.RawMessage) error {
	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return fmt.Errorf("create cache dir: %w", err)
	}

	data, err := json.MarshalIndent(entries, "", "  ")
	if err != nil {
		return fmt.Errorf("encode cache %s: %w", name, err)
	}

	tmp, err := os.CreateTemp(s.dir, name+".*.tmp")
	if err != nil {
		return fmt.Errorf("create temp cache file: %w", err)
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("write cache %s: %w", name, err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("close cache %s: %w", name, err)
	}
	if err := os.Rename(tmpName, s.Path(name)); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("replace cache %s: %w", name, err)
	}
	return nil
}

// ClientStore keeps each named cache as one JSON document in a Client.
type ClientStore struct {
	client Client
}

// NewClientStore wraps a Redis or memory client as a Store.
func NewClientStore(client Client) *ClientStore {
	return &ClientStore{client: client}
}

func storeKey(name string) string {
	return CacheKey("cache", name)
}

// Load reads the named cache document.
func (s *ClientStore) Load(ctx context.Context, name string) (map[string]json.RawMessage, error) {
	data, err := s.client.Get(ctx, storeKey(name))
	if errors.Is(err, ErrCacheMiss) {
		return map[string]json.RawMessage{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("load cache %s: %w", name, err)
	}

	entries := map[string]json.RawMessage{}
	if err := json.Unmarshal(data, &entries); err != nil {
		return nil, fmt.Errorf("%w %s: %v", ErrCorruptCache, name, err)
	}
	return entries, nil
}

// Save replaces the named cache document without expiry.
func (s *ClientStore) Save(ctx context.Context, name string, entries map[string]json.RawMessage) error {
	data, err := json.Marshal(entries)
	if err != nil {
		return fmt.Errorf("encode cache %s: %w", name, err)
	}
	if err := s.client.Set(ctx, storeKey(name), data, 0); err != nil {
		return fmt.Errorf("save cache %s: %w", name, err)
	}
	return nil
}

var (
	_ Store = (*FileStore)(nil)
	_ Store = (*ClientStore)(nil)
)
