package editor

import (
	"context"
	"errors"
	"log/slog"

	"github.com/sha1n/xconf-mcp/internal/store"
	"github.com/sha1n/xconf-mcp/internal/xconf"
)

// SavedFunc is called after a collection configuration was saved.
type SavedFunc func(ctx context.Context, collection string)

// Service edits collection configurations in a store. Every call works on a
// freshly loaded document; nothing is cached between calls.
type Service struct {
	store   store.Store
	format  xconf.Format
	logger  *slog.Logger
	onSaved []SavedFunc
}

// NewService creates an editor over a store. Saved documents are serialized
// with format.
func NewService(st store.Store, format xconf.Format) *Service {
	return &Service{
		store:  st,
		format: format,
		logger: slog.Default(),
	}
}

// SetLogger replaces the service logger.
func (s *Service) SetLogger(logger *slog.Logger) {
	s.logger = logger
}

// OnSaved registers a callback invoked after each successful save.
func (s *Service) OnSaved(fn SavedFunc) {
	s.onSaved = append(s.onSaved, fn)
}

// Format returns the serialization format of saved documents.
func (s *Service) Format() xconf.Format {
	return s.format
}

// Open loads the configuration of a collection.
func (s *Service) Open(ctx context.Context, collection string) (*xconf.Document, error) {
	if collection == "" {
		return nil, errors.New("collection is required")
	}
	return xconf.Load(ctx, s.store, store.CleanPath(collection),
		xconf.WithFormat(s.format), xconf.WithLogger(s.logger))
}

// Edit loads the configuration of a collection, applies fn and saves the
// document if fn changed it. A malformed configuration is not edited.
func (s *Service) Edit(ctx context.Context, collection string, fn func(doc *xconf.Document) error) (*xconf.Document, error) {
	doc, err := s.Open(ctx, collection)
	if err != nil {
		return nil, err
	}

	if err := fn(doc); err != nil {
		return doc, err
	}
	if !doc.Dirty() {
		return doc, nil
	}

	if err := doc.Save(ctx); err != nil {
		return doc, err
	}
	for _, hook := range s.onSaved {
		hook(ctx, doc.Collection())
	}
	return doc, nil
}
