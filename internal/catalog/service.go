package catalog

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"sync"
	"time"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/sha1n/xconf-mcp/internal/config"
	"github.com/sha1n/xconf-mcp/internal/store"
	"github.com/sha1n/xconf-mcp/internal/xconf"
)

const (
	// LockFilename is the name of the refresh lock file
	LockFilename = "refresh.lock"

	// MaxParallelRefreshes is the maximum number of concurrent collection refreshes
	MaxParallelRefreshes = 4
)

// ErrNotReady is returned while the declaration index is not open.
var ErrNotReady = errors.New("catalog is not ready")

// Service keeps a searchable catalog of the declarations of all configured
// collections.
type Service struct {
	settings *config.CatalogSettings
	store    store.Store
	manifest *Manifest
	lock     *store.FileLock
	indexer  *Indexer
	logger   *slog.Logger
	ready    bool
	mu       sync.RWMutex
}

// NewService creates a new catalog service over a store.
func NewService(st store.Store, settings *config.CatalogSettings) (*Service, error) {
	if settings == nil {
		return nil, fmt.Errorf("settings cannot be nil")
	}
	if st == nil {
		return nil, fmt.Errorf("store cannot be nil")
	}
	for _, pattern := range settings.Include {
		if !doublestar.ValidatePattern(pattern) {
			return nil, fmt.Errorf("invalid include pattern: %s", pattern)
		}
	}

	if err := os.MkdirAll(settings.BaseDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create base directory: %w", err)
	}

	manifest, err := LoadManifest(filepath.Join(settings.BaseDir, ManifestFilename))
	if err != nil {
		return nil, fmt.Errorf("failed to load manifest: %w", err)
	}

	return &Service{
		settings: settings,
		store:    st,
		manifest: manifest,
		lock:     store.NewFileLock(filepath.Join(settings.BaseDir, LockFilename), settings.SyncTimeout),
		logger:   slog.Default(),
	}, nil
}

// Initialize opens the index, refreshing it first when this instance wins
// the refresh lock. Other instances wait for the refresh to complete.
func (s *Service) Initialize(ctx context.Context) error {
	lease, err := s.lock.TryAcquire()
	if err != nil {
		return fmt.Errorf("failed to acquire lock: %w", err)
	}

	if lease == nil {
		s.logger.Info("Another instance is refreshing the catalog, waiting for completion")
		if lease, err = s.lock.Acquire(ctx); err != nil {
			s.logger.Warn("Timeout waiting for catalog refresh, using existing index", "error", err)
		} else {
			_ = lease.Release()
		}

		manifest, err := LoadManifest(s.manifestPath())
		if err != nil {
			return fmt.Errorf("failed to reload manifest: %w", err)
		}
		s.mu.Lock()
		s.manifest = manifest
		s.mu.Unlock()

		return s.open()
	}

	defer func() {
		if err := lease.Release(); err != nil {
			s.logger.Error("Failed to release refresh lock", "error", err)
		}
	}()

	s.logger.Info("Acquired refresh lock, refreshing catalog")
	if err := s.open(); err != nil {
		return err
	}
	if err := s.refreshAll(ctx); err != nil {
		// Partial catalogs are still searchable
		s.logger.Error("Catalog refresh failed", "error", err)
	}
	return nil
}

// open opens the declaration index.
func (s *Service) open() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.indexer != nil {
		return nil
	}
	indexer, err := OpenIndexer(s.settings.BaseDir, s.settings.SyncTimeout)
	if err != nil {
		return err
	}
	s.indexer = indexer
	s.ready = true

	count, _ := indexer.DocCount()
	s.logger.Info("Catalog ready", "declarations", count)
	return nil
}

// RefreshAll re-indexes every collection in scope and drops collections
// that left it.
func (s *Service) RefreshAll(ctx context.Context) error {
	return s.lock.With(ctx, func() error {
		return s.refreshAll(ctx)
	})
}

func (s *Service) refreshAll(ctx context.Context) error {
	indexer, err := s.getIndexer()
	if err != nil {
		return err
	}

	collections, err := s.Collections(ctx)
	if err != nil {
		return err
	}

	for _, collection := range s.manifest.RemoveStale(collections) {
		s.logger.Info("Removing stale collection", "collection", collection)
		if err := indexer.Remove(collection); err != nil {
			s.logger.Error("Failed to remove stale declarations", "collection", collection, "error", err)
		}
	}

	// Use semaphore to limit parallel refreshes
	sem := make(chan struct{}, MaxParallelRefreshes)
	var wg sync.WaitGroup
	errChan := make(chan error, len(collections))

	for _, collection := range collections {
		wg.Add(1)
		go func(collection string) {
			defer wg.Done()
			sem <- struct{}{}        // Acquire
			defer func() { <-sem }() // Release

			if err := s.refresh(ctx, indexer, collection); err != nil {
				errChan <- err
			}
		}(collection)
	}

	wg.Wait()
	close(errChan)

	var errs []error
	for err := range errChan {
		errs = append(errs, err)
	}

	s.manifest.UpdateLastRefresh()
	if err := s.saveManifest(); err != nil {
		errs = append(errs, err)
	}

	if len(errs) > 0 {
		return fmt.Errorf("%d collection refresh(es) failed: %w", len(errs), errors.Join(errs...))
	}
	return nil
}

// RefreshCollection re-indexes the declarations of a single collection.
func (s *Service) RefreshCollection(ctx context.Context, collection string) error {
	indexer, err := s.getIndexer()
	if err != nil {
		return err
	}

	return s.lock.With(ctx, func() error {
		if err := s.refresh(ctx, indexer, store.CleanPath(collection)); err != nil {
			return err
		}
		return s.saveManifest()
	})
}

// refresh loads a collection configuration and re-indexes it when its
// content changed since the last refresh.
func (s *Service) refresh(ctx context.Context, indexer *Indexer, collection string) error {
	doc, err := xconf.Load(ctx, s.store, collection, xconf.WithLogger(s.logger))
	if err != nil {
		s.manifest.SetError(collection, err.Error())
		return fmt.Errorf("refresh %s: %w", collection, err)
	}

	hash := ContentHash(doc)
	if state, ok := s.manifest.State(collection); ok && state.Hash == hash && state.Error == "" {
		s.logger.Debug("Collection configuration unchanged", "collection", collection)
		return nil
	}

	decls := Declarations(collection, doc)
	if err := indexer.Replace(collection, decls); err != nil {
		s.manifest.SetError(collection, err.Error())
		return fmt.Errorf("refresh %s: %w", collection, err)
	}

	s.manifest.SetState(collection, CollectionState{
		Hash:         hash,
		Declarations: len(decls),
		IndexedAt:    time.Now(),
	})
	s.logger.Info("Indexed collection configuration", "collection", collection, "declarations", len(decls))
	return nil
}

// Collections returns the collections in scope: configured collections
// listed by the store that match an include pattern, plus the explicitly
// configured ones.
func (s *Service) Collections(ctx context.Context) ([]string, error) {
	var result []string

	if lister, ok := s.store.(store.Lister); ok && len(s.settings.Include) > 0 {
		listed, err := lister.ConfigCollections(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to list collections: %w", err)
		}
		for _, collection := range listed {
			if s.included(collection) {
				result = append(result, collection)
			}
		}
	} else if len(s.settings.Collections) == 0 {
		s.logger.Warn("Store cannot list collections and none are configured")
	}

	for _, collection := range s.settings.Collections {
		collection = store.CleanPath(collection)
		if !slices.Contains(result, collection) {
			result = append(result, collection)
		}
	}

	slices.Sort(result)
	return result, nil
}

func (s *Service) included(collection string) bool {
	for _, pattern := range s.settings.Include {
		if ok, _ := doublestar.Match(pattern, collection); ok {
			return true
		}
	}
	return false
}

// ContentHash returns the hash of the canonical serialization of a document.
func ContentHash(doc *xconf.Document) string {
	sum := sha256.Sum256(doc.Marshal(xconf.DefaultFormat()))
	return hex.EncodeToString(sum[:])
}

func (s *Service) manifestPath() string {
	return filepath.Join(s.settings.BaseDir, ManifestFilename)
}

func (s *Service) saveManifest() error {
	s.mu.RLock()
	manifest := s.manifest
	s.mu.RUnlock()
	return manifest.Save(s.manifestPath())
}

func (s *Service) getIndexer() (*Indexer, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if !s.ready || s.indexer == nil {
		return nil, ErrNotReady
	}
	return s.indexer, nil
}

// IsReady returns true if the index is open for search.
func (s *Service) IsReady() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.ready
}

// Manifest returns the catalog manifest.
func (s *Service) Manifest() *Manifest {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.manifest
}

// Settings returns the service settings.
func (s *Service) Settings() *config.CatalogSettings {
	return s.settings
}

// SetLogger replaces the service logger.
func (s *Service) SetLogger(logger *slog.Logger) {
	s.logger = logger
}

// Close releases the index.
func (s *Service) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.ready = false
	if s.indexer == nil {
		return nil
	}
	err := s.indexer.Close()
	s.indexer = nil
	if err != nil {
		return fmt.Errorf("failed to close index: %w", err)
	}
	return nil
}
