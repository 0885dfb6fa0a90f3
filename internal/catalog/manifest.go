package catalog

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"sync"
	"time"
)

const (
	// ManifestVersion is the current schema version
	ManifestVersion = 1

	// ManifestFilename is the default manifest filename
	ManifestFilename = "manifest.json"
)

// Manifest stores the catalog state of all known collections.
type Manifest struct {
	Version     int                        `json:"version"`
	LastRefresh time.Time                  `json:"last_refresh"`
	Collections map[string]CollectionState `json:"collections"`
	mu          sync.RWMutex               `json:"-"`
}

// CollectionState stores the catalog state of a single collection.
type CollectionState struct {
	// Hash of the canonical serialization of the indexed configuration
	Hash         string    `json:"hash"`
	Declarations int       `json:"declarations"`
	IndexedAt    time.Time `json:"indexed_at"`
	Error        string    `json:"error,omitempty"`
}

// NewManifest creates a new empty manifest.
func NewManifest() *Manifest {
	return &Manifest{
		Version:     ManifestVersion,
		Collections: make(map[string]CollectionState),
	}
}

// LoadManifest reads a manifest from disk, or creates a new one if it doesn't exist.
func LoadManifest(path string) (*Manifest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return NewManifest(), nil
		}
		return nil, fmt.Errorf("failed to read manifest: %w", err)
	}

	var manifest Manifest
	if err := json.Unmarshal(data, &manifest); err != nil {
		return nil, fmt.Errorf("failed to parse manifest: %w", err)
	}
	if manifest.Version != ManifestVersion {
		// Unknown layouts are rebuilt from scratch
		return NewManifest(), nil
	}
	if manifest.Collections == nil {
		manifest.Collections = make(map[string]CollectionState)
	}

	return &manifest, nil
}

// Save writes the manifest to disk atomically.
func (m *Manifest) Save(path string) error {
	m.mu.RLock()
	data, err := json.MarshalIndent(m, "", "  ")
	m.mu.RUnlock()
	if err != nil {
		return fmt.Errorf("failed to marshal manifest: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create manifest directory: %w", err)
	}

	tempPath := path + ".tmp"
	if err := os.WriteFile(tempPath, data, 0644); err != nil {
		return fmt.Errorf("failed to write manifest temp file: %w", err)
	}
	if err := os.Rename(tempPath, path); err != nil {
		_ = os.Remove(tempPath)
		return fmt.Errorf("failed to rename manifest file: %w", err)
	}

	return nil
}

// State returns the state of a collection.
func (m *Manifest) State(collection string) (CollectionState, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	state, ok := m.Collections[collection]
	return state, ok
}

// SetState updates the state of a collection.
func (m *Manifest) SetState(collection string, state CollectionState) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Collections[collection] = state
}

// SetError records a refresh failure, keeping the last indexed state.
func (m *Manifest) SetError(collection string, err string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	state := m.Collections[collection]
	state.Error = err
	m.Collections[collection] = state
}

// Errors returns the collections whose last refresh failed.
func (m *Manifest) Errors() map[string]string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	result := make(map[string]string)
	for collection, state := range m.Collections {
		if state.Error != "" {
			result[collection] = state.Error
		}
	}
	return result
}

// CollectionNames returns the known collections in lexical order.
func (m *Manifest) CollectionNames() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	names := make([]string, 0, len(m.Collections))
	for name := range m.Collections {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}

// Declarations returns the total number of indexed declarations.
func (m *Manifest) Declarations() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	total := 0
	for _, state := range m.Collections {
		total += state.Declarations
	}
	return total
}

// RemoveStale removes collections not in keep.
// Returns the removed collections in lexical order.
func (m *Manifest) RemoveStale(keep []string) []string {
	m.mu.Lock()
	defer m.mu.Unlock()

	var removed []string
	for collection := range m.Collections {
		if !slices.Contains(keep, collection) {
			removed = append(removed, collection)
		}
	}
	for _, collection := range removed {
		delete(m.Collections, collection)
	}
	slices.Sort(removed)
	return removed
}

// UpdateLastRefresh updates the last refresh timestamp.
func (m *Manifest) UpdateLastRefresh() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.LastRefresh = time.Now()
}
