package store

import (
	"context"
	"errors"
	"path"
	"strings"
)

const (
	// ConfigCollection is the system collection mirroring the database tree
	// with one configuration resource per configured collection.
	ConfigCollection = "/db/system/config"

	// ConfigFilename is the well-known name of a collection configuration resource.
	ConfigFilename = "collection.xconf"
)

var (
	// ErrCollectionNotFound indicates the requested collection does not exist
	ErrCollectionNotFound = errors.New("collection not found")

	// ErrResourceNotFound indicates the requested resource does not exist
	ErrResourceNotFound = errors.New("resource not found")
)

// Store provides access to collections of a document database.
type Store interface {
	// Collection returns the collection at path, or ErrCollectionNotFound.
	Collection(ctx context.Context, path string) (Collection, error)

	// CreateCollection returns the collection at path, creating it and any
	// missing ancestors first.
	CreateCollection(ctx context.Context, path string) (Collection, error)
}

// Collection is a container of named resources.
type Collection interface {
	Path() string

	// Resource returns the raw content of the named resource, or ErrResourceNotFound.
	Resource(ctx context.Context, name string) ([]byte, error)

	// StoreResource creates or overwrites the named resource.
	StoreResource(ctx context.Context, name string, content []byte) error
}

// Lister is implemented by stores able to enumerate configured collections.
type Lister interface {
	// ConfigCollections returns the paths (e.g. "/db/books") of all collections
	// that carry a configuration resource.
	ConfigCollections(ctx context.Context) ([]string, error)
}

// CleanPath normalizes a collection path to an absolute, slash-separated form
// without a trailing slash.
func CleanPath(p string) string {
	p = strings.TrimSpace(p)
	if p == "" {
		return "/"
	}
	return path.Clean("/" + p)
}

// ConfigPath returns the configuration collection path for a collection,
// e.g. "/db/books" -> "/db/system/config/db/books".
func ConfigPath(collection string) string {
	collection = CleanPath(collection)
	if collection == "/" {
		return ConfigCollection
	}
	return ConfigCollection + collection
}

// CollectionFromConfigPath is the inverse of ConfigPath. It returns false for
// paths outside the configuration collection.
func CollectionFromConfigPath(p string) (string, bool) {
	p = CleanPath(p)
	if p == ConfigCollection {
		return "/", true
	}
	rest, ok := strings.CutPrefix(p, ConfigCollection+"/")
	if !ok {
		return "", false
	}
	return "/" + rest, true
}
