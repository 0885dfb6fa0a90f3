package store

import (
	"context"
	"slices"
	"strings"
	"sync"
)

// MemoryStore is an in-memory Store. It is exported for use in tests of
// packages that depend on a Store.
type MemoryStore struct {
	mu          sync.RWMutex
	collections map[string]map[string][]byte

	// Errors returned instead of performing the operation, when set.
	CollectionErr error
	ResourceErr   error
	StoreErr      error

	// Stores counts successful StoreResource calls.
	Stores int
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{collections: make(map[string]map[string][]byte)}
}

// Put creates the collection at path if needed and stores a resource in it.
func (m *MemoryStore) Put(path, name string, content []byte) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.ensure(CleanPath(path))[name] = slices.Clone(content)
}

// PutConfig stores content as the configuration resource of a collection.
func (m *MemoryStore) PutConfig(collection string, content string) {
	m.Put(ConfigPath(collection), ConfigFilename, []byte(content))
}

// Get returns a resource and whether it exists.
func (m *MemoryStore) Get(path, name string) ([]byte, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	res, ok := m.collections[CleanPath(path)]
	if !ok {
		return nil, false
	}
	data, ok := res[name]
	return slices.Clone(data), ok
}

// GetConfig returns the configuration resource of a collection.
func (m *MemoryStore) GetConfig(collection string) (string, bool) {
	data, ok := m.Get(ConfigPath(collection), ConfigFilename)
	return string(data), ok
}

func (m *MemoryStore) ensure(path string) map[string][]byte {
	res, ok := m.collections[path]
	if !ok {
		res = make(map[string][]byte)
		m.collections[path] = res
	}
	return res
}

// Collection implements Store.
func (m *MemoryStore) Collection(_ context.Context, path string) (Collection, error) {
	if m.CollectionErr != nil {
		return nil, m.CollectionErr
	}
	path = CleanPath(path)
	m.mu.RLock()
	defer m.mu.RUnlock()
	if _, ok := m.collections[path]; !ok {
		return nil, ErrCollectionNotFound
	}
	return &memoryCollection{store: m, path: path}, nil
}

// CreateCollection implements Store.
func (m *MemoryStore) CreateCollection(_ context.Context, path string) (Collection, error) {
	if m.CollectionErr != nil {
		return nil, m.CollectionErr
	}
	path = CleanPath(path)
	m.mu.Lock()
	defer m.mu.Unlock()
	m.ensure(path)
	return &memoryCollection{store: m, path: path}, nil
}

// ConfigCollections implements Lister.
func (m *MemoryStore) ConfigCollections(_ context.Context) ([]string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []string
	for p, res := range m.collections {
		if _, ok := res[ConfigFilename]; !ok {
			continue
		}
		if c, ok := CollectionFromConfigPath(p); ok {
			out = append(out, c)
		}
	}
	slices.SortFunc(out, strings.Compare)
	return out, nil
}

type memoryCollection struct {
	store *MemoryStore
	path  string
}

func (c *memoryCollection) Path() string {
	return c.path
}

func (c *memoryCollection) Resource(_ context.Context, name string) ([]byte, error) {
	if c.store.ResourceErr != nil {
		return nil, c.store.ResourceErr
	}
	data, ok := c.store.Get(c.path, name)
	if !ok {
		return nil, ErrResourceNotFound
	}
	return data, nil
}

func (c *memoryCollection) StoreResource(_ context.Context, name string, content []byte) error {
	if c.store.StoreErr != nil {
		return c.store.StoreErr
	}
	c.store.Put(c.path, name, content)
	c.store.mu.Lock()
	c.store.Stores++
	c.store.mu.Unlock()
	return nil
}
