package xconf

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/sha1n/xconf-mcp/internal/store"
)

// Document is the in-memory model of a collection configuration.
//
// A Document is a snapshot: two documents loaded from the same collection are
// independent and may diverge. It is not safe for concurrent use.
type Document struct {
	collection string
	store      store.Store
	format     Format
	logger     *slog.Logger

	fullText *FullTextIndex
	ranges   Section[*RangeIndex]
	qnames   Section[*QNameIndex]
	triggers Section[*Trigger]

	dirty bool
}

// New returns an empty document that is not bound to any store.
func New() *Document {
	return &Document{format: DefaultFormat(), logger: slog.Default()}
}

// Load reads the configuration of collection from st.
//
// A missing configuration collection or resource yields an empty document and
// no error, so the configuration can be created by mutating and saving it.
// If the resource cannot be parsed, the empty document is returned together
// with a *ParseError; callers decide whether to continue with it.
func Load(ctx context.Context, st store.Store, collection string, opts ...Option) (*Document, error) {
	o := resolveOptions(opts)
	doc := &Document{
		collection: store.CleanPath(collection),
		store:      st,
		format:     o.format,
		logger:     o.logger,
	}

	configPath := store.ConfigPath(doc.collection)
	col, err := st.Collection(ctx, configPath)
	if err != nil {
		if errors.Is(err, store.ErrCollectionNotFound) {
			o.logger.DebugContext(ctx, "No configuration collection", "collection", doc.collection)
			return doc, nil
		}
		return nil, fmt.Errorf("failed to open %s: %w", configPath, err)
	}

	data, err := col.Resource(ctx, store.ConfigFilename)
	if err != nil {
		if errors.Is(err, store.ErrResourceNotFound) {
			o.logger.DebugContext(ctx, "No configuration resource", "collection", doc.collection)
			return doc, nil
		}
		return nil, fmt.Errorf("failed to read %s/%s: %w", configPath, store.ConfigFilename, err)
	}

	parsed, err := parse(data)
	if err != nil {
		o.logger.WarnContext(ctx, "Collection configuration is not well-formed", "collection", doc.collection, "error", err)
		return doc, &ParseError{Collection: doc.collection, Err: err}
	}

	doc.fullText = parsed.fullText
	doc.ranges = parsed.ranges
	doc.qnames = parsed.qnames
	doc.triggers = parsed.triggers
	return doc, nil
}

// Collection returns the path of the configured collection.
func (d *Document) Collection() string {
	return d.collection
}

// Dirty reports whether the document was mutated since it was loaded.
func (d *Document) Dirty() bool {
	return d.dirty
}

// Save serializes the document and overwrites the configuration resource,
// creating the configuration collection if needed. Every failure wraps
// ErrSaveFailed. Saving does not reset Dirty.
func (d *Document) Save(ctx context.Context) error {
	if d.store == nil {
		return fmt.Errorf("%w: document is not bound to a store", ErrSaveFailed)
	}

	content := d.Marshal(d.format)
	configPath := store.ConfigPath(d.collection)

	col, err := d.store.CreateCollection(ctx, configPath)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrSaveFailed, err)
	}
	if err := col.StoreResource(ctx, store.ConfigFilename, content); err != nil {
		return fmt.Errorf("%w: %w", ErrSaveFailed, err)
	}

	d.logger.InfoContext(ctx, "Saved collection configuration", "collection", d.collection, "bytes", len(content))
	return nil
}

// HasFullText reports whether the document declares a full-text index.
func (d *Document) HasFullText() bool {
	return d.fullText != nil
}

// FullText returns the full-text index, or nil when absent.
func (d *Document) FullText() *FullTextIndex {
	return d.fullText
}

// FullTextDefaultAll reports whether all nodes are full-text indexed by default.
func (d *Document) FullTextDefaultAll() bool {
	return d.fullText != nil && d.fullText.DefaultAll
}

// FullTextAttributes reports whether attributes are full-text indexed.
func (d *Document) FullTextAttributes() bool {
	return d.fullText != nil && d.fullText.Attributes
}

// FullTextAlphanum reports whether alphanumeric values are full-text indexed.
func (d *Document) FullTextAlphanum() bool {
	return d.fullText != nil && d.fullText.Alphanum
}

// SetFullTextDefaultAll sets the default full-text indexing mode.
func (d *Document) SetFullTextDefaultAll(defaultAll bool) {
	d.dirty = true
	if d.fullText == nil {
		d.fullText = &FullTextIndex{DefaultAll: defaultAll}
		return
	}
	d.fullText.DefaultAll = defaultAll
}

// SetFullTextAttributes sets whether attributes are full-text indexed.
func (d *Document) SetFullTextAttributes(attributes bool) {
	d.dirty = true
	if d.fullText == nil {
		d.fullText = &FullTextIndex{Attributes: attributes}
		return
	}
	d.fullText.Attributes = attributes
}

// SetFullTextAlphanum sets whether alphanumeric values are full-text indexed.
func (d *Document) SetFullTextAlphanum(alphanum bool) {
	d.dirty = true
	if d.fullText == nil {
		d.fullText = &FullTextIndex{Alphanum: alphanum}
		return
	}
	d.fullText.Alphanum = alphanum
}

// fullTextPaths returns the path section, or an absent one if there is no
// full-text index.
func (d *Document) fullTextPaths() *Section[*IndexPath] {
	if d.fullText == nil {
		return &Section[*IndexPath]{}
	}
	return &d.fullText.Paths
}

// FullTextPathCount returns the number of full-text path declarations.
func (d *Document) FullTextPathCount() int {
	return d.fullTextPaths().Len()
}

// FullTextPath returns the XPath of the i-th full-text path declaration.
func (d *Document) FullTextPath(i int) string {
	return d.fullTextPaths().At(i).Path
}

// FullTextPathAction returns the action of the i-th full-text path declaration.
func (d *Document) FullTextPathAction(i int) Action {
	return d.fullTextPaths().At(i).Action
}

// AddFullTextPath appends a full-text path declaration, creating the full-text
// index with all options off if it is absent.
func (d *Document) AddFullTextPath(xpath string, action Action) {
	d.dirty = true
	if d.fullText == nil {
		d.fullText = &FullTextIndex{}
	}
	d.fullText.Paths.Append(&IndexPath{Path: xpath, Action: action})
}

// UpdateFullTextPath overwrites the non-nil fields of the i-th full-text path
// declaration. It panics if i is out of range.
func (d *Document) UpdateFullTextPath(i int, xpath *string, action *Action) {
	p := d.fullTextPaths().At(i)
	d.dirty = true
	if xpath != nil {
		p.SetPath(*xpath)
	}
	if action != nil {
		p.SetAction(*action)
	}
}

// DeleteFullTextPath removes the i-th full-text path declaration. Indexes
// outside the current list are ignored.
func (d *Document) DeleteFullTextPath(i int) {
	if d.fullTextPaths().Remove(i) {
		d.dirty = true
	}
}

// HasRangeIndexes reports whether the document has a range index section.
func (d *Document) HasRangeIndexes() bool {
	return d.ranges.Present()
}

// RangeIndexes returns the range indexes, or nil when the section is absent.
// The entries are shared with the document.
func (d *Document) RangeIndexes() []*RangeIndex {
	return d.ranges.Items()
}

// RangeIndex returns the i-th range index. It panics if i is out of range.
func (d *Document) RangeIndex(i int) *RangeIndex {
	return d.ranges.At(i)
}

// RangeIndexCount returns the number of range indexes.
func (d *Document) RangeIndexCount() int {
	return d.ranges.Len()
}

// AddRangeIndex appends a range index.
func (d *Document) AddRangeIndex(xpath, xsType string) {
	d.dirty = true
	d.ranges.Append(&RangeIndex{XPath: xpath, Type: xsType})
}

// UpdateRangeIndex overwrites the non-nil fields of the i-th range index.
// It panics if i is out of range.
func (d *Document) UpdateRangeIndex(i int, xpath, xsType *string) {
	r := d.ranges.At(i)
	d.dirty = true
	if xpath != nil {
		r.SetXPath(*xpath)
	}
	if xsType != nil {
		r.SetType(*xsType)
	}
}

// DeleteRangeIndex removes the i-th range index. Indexes outside the current
// list are ignored.
func (d *Document) DeleteRangeIndex(i int) {
	if d.ranges.Remove(i) {
		d.dirty = true
	}
}

// HasQNameIndexes reports whether the document has a qname index section.
func (d *Document) HasQNameIndexes() bool {
	return d.qnames.Present()
}

// QNameIndexes returns the qname indexes, or nil when the section is absent.
// The entries are shared with the document.
func (d *Document) QNameIndexes() []*QNameIndex {
	return d.qnames.Items()
}

// QNameIndex returns the i-th qname index. It panics if i is out of range.
func (d *Document) QNameIndex(i int) *QNameIndex {
	return d.qnames.At(i)
}

// QNameIndexCount returns the number of qname indexes.
func (d *Document) QNameIndexCount() int {
	return d.qnames.Len()
}

// AddQNameIndex appends a qname index.
func (d *Document) AddQNameIndex(qname, xsType string) {
	d.dirty = true
	d.qnames.Append(&QNameIndex{QName: qname, Type: xsType})
}

// UpdateQNameIndex overwrites the non-nil fields of the i-th qname index.
// It panics if i is out of range.
func (d *Document) UpdateQNameIndex(i int, qname, xsType *string) {
	q := d.qnames.At(i)
	d.dirty = true
	if qname != nil {
		q.SetQName(*qname)
	}
	if xsType != nil {
		q.SetType(*xsType)
	}
}

// DeleteQNameIndex removes the i-th qname index. Indexes outside the current
// list are ignored.
func (d *Document) DeleteQNameIndex(i int) {
	if d.qnames.Remove(i) {
		d.dirty = true
	}
}

// HasTriggers reports whether the document declares any trigger section.
func (d *Document) HasTriggers() bool {
	return d.triggers.Present()
}

// Triggers returns the trigger declarations, or nil when absent.
func (d *Document) Triggers() []*Trigger {
	return d.triggers.Items()
}

// Trigger returns the i-th trigger. It panics if i is out of range.
func (d *Document) Trigger(i int) *Trigger {
	return d.triggers.At(i)
}

// TriggerCount returns the number of trigger declarations.
func (d *Document) TriggerCount() int {
	return d.triggers.Len()
}

// AddTrigger appends a trigger declaration. params is copied.
func (d *Document) AddTrigger(event, class string, params map[string]string) {
	d.dirty = true
	t := &Trigger{Event: event, Class: class, Parameters: make(map[string]string, len(params))}
	for k, v := range params {
		t.Parameters[k] = v
	}
	d.triggers.Append(t)
}

// DeleteTrigger removes the i-th trigger. Indexes outside the current list
// are ignored.
func (d *Document) DeleteTrigger(i int) {
	if d.triggers.Remove(i) {
		d.dirty = true
	}
}
