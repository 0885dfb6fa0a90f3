package store

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"time"
)

// LockFilename is the name of the write lock file at the root of a FileStore.
const LockFilename = ".store.lock"

// FileStore maps collections to directories and resources to files under a
// root directory. Writes are atomic and serialized across processes.
type FileStore struct {
	root string
	lock *FileLock
}

// NewFileStore creates a store rooted at dir, creating dir if needed.
func NewFileStore(dir string, lockTimeout time.Duration) (*FileStore, error) {
	if dir == "" {
		return nil, fmt.Errorf("store directory cannot be empty")
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create store directory: %w", err)
	}
	return &FileStore{
		root: dir,
		lock: NewFileLock(filepath.Join(dir, LockFilename), lockTimeout),
	}, nil
}

// Root returns the root directory of the store.
func (s *FileStore) Root() string {
	return s.root
}

// ConfigRoot returns the directory holding the configuration collection.
func (s *FileStore) ConfigRoot() string {
	return s.dir(ConfigCollection)
}

// CollectionForFile maps a file below ConfigRoot to the collection it
// configures. It returns false for files that are not configuration resources.
func (s *FileStore) CollectionForFile(file string) (string, bool) {
	if filepath.Base(file) != ConfigFilename {
		return "", false
	}
	rel, err := filepath.Rel(s.root, filepath.Dir(file))
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", false
	}
	return CollectionFromConfigPath("/" + filepath.ToSlash(rel))
}

func (s *FileStore) dir(path string) string {
	return filepath.Join(s.root, filepath.FromSlash(CleanPath(path)))
}

// Collection implements Store.
func (s *FileStore) Collection(_ context.Context, path string) (Collection, error) {
	dir := s.dir(path)
	info, err := os.Stat(dir)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, ErrCollectionNotFound
		}
		return nil, fmt.Errorf("failed to stat collection: %w", err)
	}
	if !info.IsDir() {
		return nil, ErrCollectionNotFound
	}
	return &fileCollection{store: s, path: CleanPath(path), dir: dir}, nil
}

// CreateCollection implements Store.
func (s *FileStore) CreateCollection(_ context.Context, path string) (Collection, error) {
	dir := s.dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create collection: %w", err)
	}
	return &fileCollection{store: s, path: CleanPath(path), dir: dir}, nil
}

// ConfigCollections implements Lister.
func (s *FileStore) ConfigCollections(ctx context.Context) ([]string, error) {
	root := s.ConfigRoot()
	var out []string
	err := filepath.WalkDir(root, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) && p == root {
				return filepath.SkipAll
			}
			return err
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if d.IsDir() {
			return nil
		}
		if c, ok := s.CollectionForFile(p); ok {
			out = append(out, c)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list configurations: %w", err)
	}
	slices.Sort(out)
	return out, nil
}

type fileCollection struct {
	store *FileStore
	path  string
	dir   string
}

func (c *fileCollection) Path() string {
	return c.path
}

func (c *fileCollection) file(name string) (string, error) {
	if name == "" || name == "." || name == ".." || strings.ContainsAny(name, `/\`) {
		return "", fmt.Errorf("invalid resource name: %q", name)
	}
	return filepath.Join(c.dir, name), nil
}

func (c *fileCollection) Resource(_ context.Context, name string) ([]byte, error) {
	file, err := c.file(name)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(file)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, ErrResourceNotFound
		}
		return nil, fmt.Errorf("failed to read resource: %w", err)
	}
	return data, nil
}

// StoreResource writes to a temporary file and renames it over the target
// while holding the store lock.
func (c *fileCollection) StoreResource(ctx context.Context, name string, content []byte) error {
	file, err := c.file(name)
	if err != nil {
		return err
	}
	return c.store.lock.With(ctx, func() error {
		if err := os.MkdirAll(c.dir, 0755); err != nil {
			return fmt.Errorf("failed to create collection directory: %w", err)
		}
		tempPath := file + ".tmp"
		if err := os.WriteFile(tempPath, content, 0644); err != nil {
			return fmt.Errorf("failed to write temp file: %w", err)
		}
		if err := os.Rename(tempPath, file); err != nil {
			_ = os.Remove(tempPath)
			return fmt.Errorf("failed to rename resource file: %w", err)
		}
		return nil
	})
}
