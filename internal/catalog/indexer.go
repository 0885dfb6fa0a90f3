package catalog

import (
	"errors"
	"fmt"
	"path/filepath"
	"time"

	"github.com/blevesearch/bleve/v2"
	"github.com/blevesearch/bleve/v2/analysis/analyzer/custom"
	"github.com/blevesearch/bleve/v2/analysis/analyzer/keyword"
	"github.com/blevesearch/bleve/v2/analysis/token/lowercase"
	"github.com/blevesearch/bleve/v2/analysis/tokenizer/regexp"
	"github.com/blevesearch/bleve/v2/mapping"
	"github.com/blevesearch/bleve/v2/search/query"
	"github.com/sha1n/xconf-mcp/internal/domain"
	"github.com/sha1n/xconf-mcp/internal/xconf"
)

const (
	// IndexDirname is the name of the index directory under the catalog base dir
	IndexDirname = "declarations.bleve"

	// MaxBatchSize is the maximum number of documents per batch
	MaxBatchSize = 100

	// identifierAnalyzer splits xpaths, qnames and class names into their name parts
	identifierAnalyzer = "identifier"
)

// Indexer maintains the declaration index.
type Indexer struct {
	index bleve.Index
}

// CreateIndexMapping creates the Bleve index mapping for declarations.
func CreateIndexMapping() (mapping.IndexMapping, error) {
	indexMapping := bleve.NewIndexMapping()

	err := indexMapping.AddCustomTokenizer(identifierAnalyzer, map[string]interface{}{
		"type":   regexp.Name,
		"regexp": `[\p{L}\p{N}_-]+`,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to register tokenizer: %w", err)
	}
	err = indexMapping.AddCustomAnalyzer(identifierAnalyzer, map[string]interface{}{
		"type":          custom.Name,
		"tokenizer":     identifierAnalyzer,
		"token_filters": []string{lowercase.Name},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to register analyzer: %w", err)
	}

	docMapping := bleve.NewDocumentMapping()

	// Target and class are searched by name parts
	for _, field := range []string{domain.FieldTarget, domain.FieldClass} {
		f := bleve.NewTextFieldMapping()
		f.Analyzer = identifierAnalyzer
		f.Store = true
		f.IncludeTermVectors = true
		docMapping.AddFieldMappingsAt(field, f)
	}

	// Filters are matched verbatim
	for _, field := range []string{domain.FieldCollection, domain.FieldKind, domain.FieldType} {
		f := bleve.NewTextFieldMapping()
		f.Analyzer = keyword.Name
		f.Store = true
		docMapping.AddFieldMappingsAt(field, f)
	}

	positionField := bleve.NewNumericFieldMapping()
	positionField.Store = true
	docMapping.AddFieldMappingsAt(domain.FieldPosition, positionField)

	idField := bleve.NewTextFieldMapping()
	idField.Index = false
	idField.Store = true
	docMapping.AddFieldMappingsAt(domain.FieldID, idField)

	indexMapping.DefaultMapping = docMapping
	indexMapping.DefaultAnalyzer = keyword.Name

	return indexMapping, nil
}

// OpenIndexer opens the index under baseDir, creating it when missing.
// openTimeout bounds the wait for an index held open by another process.
func OpenIndexer(baseDir string, openTimeout time.Duration) (*Indexer, error) {
	path := filepath.Join(baseDir, IndexDirname)
	runtimeConfig := map[string]interface{}{
		"bolt_timeout": openTimeout.String(),
	}

	index, err := bleve.OpenUsing(path, runtimeConfig)
	if err == nil {
		return &Indexer{index: index}, nil
	}
	if !errors.Is(err, bleve.ErrorIndexPathDoesNotExist) {
		return nil, fmt.Errorf("failed to open index: %w", err)
	}

	indexMapping, err := CreateIndexMapping()
	if err != nil {
		return nil, err
	}
	index, err = bleve.NewUsing(path, indexMapping, bleve.Config.DefaultIndexType, bleve.Config.DefaultKVStore, runtimeConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to create index: %w", err)
	}
	return &Indexer{index: index}, nil
}

// Declarations lists the declarations of a configuration document in
// document order: full-text paths, range indexes, qname indexes, triggers.
func Declarations(collection string, doc *xconf.Document) []domain.Declaration {
	var decls []domain.Declaration
	add := func(kind, target, typ, class string, position int) {
		decls = append(decls, domain.Declaration{
			ID:         domain.DeclarationID(collection, kind, position),
			Collection: collection,
			Kind:       kind,
			Target:     target,
			Type:       typ,
			Class:      class,
			Position:   position,
		})
	}

	for i := 0; i < doc.FullTextPathCount(); i++ {
		kind := domain.KindFullTextInclude
		if doc.FullTextPathAction(i) == xconf.ActionExclude {
			kind = domain.KindFullTextExclude
		}
		add(kind, doc.FullTextPath(i), "", "", i)
	}
	for i, r := range doc.RangeIndexes() {
		add(domain.KindRange, r.XPath, r.Type, "", i)
	}
	for i, q := range doc.QNameIndexes() {
		add(domain.KindQName, q.QName, q.Type, "", i)
	}
	for i, t := range doc.Triggers() {
		add(domain.KindTrigger, t.Event, "", t.Class, i)
	}
	return decls
}

// Replace swaps the declarations of a collection for decls.
func (i *Indexer) Replace(collection string, decls []domain.Declaration) error {
	ids, err := i.collectionIDs(collection)
	if err != nil {
		return err
	}

	batch := i.index.NewBatch()
	for _, id := range ids {
		batch.Delete(id)
	}
	for _, decl := range decls {
		if err := batch.Index(decl.ID, decl); err != nil {
			return fmt.Errorf("failed to index %s: %w", decl.ID, err)
		}
		if batch.Size() >= MaxBatchSize {
			if err := i.index.Batch(batch); err != nil {
				return fmt.Errorf("batch index failed: %w", err)
			}
			batch = i.index.NewBatch()
		}
	}

	if batch.Size() > 0 {
		if err := i.index.Batch(batch); err != nil {
			return fmt.Errorf("final batch index failed: %w", err)
		}
	}
	return nil
}

// Remove deletes all declarations of a collection.
func (i *Indexer) Remove(collection string) error {
	return i.Replace(collection, nil)
}

// collectionIDs returns the document IDs of a collection's declarations.
func (i *Indexer) collectionIDs(collection string) ([]string, error) {
	total, err := i.index.DocCount()
	if err != nil {
		return nil, fmt.Errorf("failed to count documents: %w", err)
	}
	if total == 0 {
		return nil, nil
	}

	req := bleve.NewSearchRequest(termQuery(domain.FieldCollection, collection))
	req.Size = int(total)
	res, err := i.index.Search(req)
	if err != nil {
		return nil, fmt.Errorf("failed to list declarations of %s: %w", collection, err)
	}

	ids := make([]string, 0, len(res.Hits))
	for _, hit := range res.Hits {
		ids = append(ids, hit.ID)
	}
	return ids, nil
}

// Search runs a declaration query and returns the matching declarations.
func (i *Indexer) Search(q query.Query, size int, sortBy []string) ([]domain.Declaration, uint64, error) {
	req := bleve.NewSearchRequest(q)
	req.Size = size
	req.Fields = []string{
		domain.FieldCollection, domain.FieldKind, domain.FieldTarget,
		domain.FieldType, domain.FieldClass, domain.FieldPosition,
	}
	if len(sortBy) > 0 {
		req.SortBy(sortBy)
	}

	res, err := i.index.Search(req)
	if err != nil {
		return nil, 0, err
	}

	decls := make([]domain.Declaration, 0, len(res.Hits))
	for _, hit := range res.Hits {
		decl := domain.Declaration{ID: hit.ID}
		decl.Collection, _ = hit.Fields[domain.FieldCollection].(string)
		decl.Kind, _ = hit.Fields[domain.FieldKind].(string)
		decl.Target, _ = hit.Fields[domain.FieldTarget].(string)
		decl.Type, _ = hit.Fields[domain.FieldType].(string)
		decl.Class, _ = hit.Fields[domain.FieldClass].(string)
		if pos, ok := hit.Fields[domain.FieldPosition].(float64); ok {
			decl.Position = int(pos)
		}
		decls = append(decls, decl)
	}
	return decls, res.Total, nil
}

// DocCount returns the number of indexed declarations.
func (i *Indexer) DocCount() (uint64, error) {
	return i.index.DocCount()
}

// Close closes the index.
func (i *Indexer) Close() error {
	return i.index.Close()
}

func termQuery(field, term string) query.Query {
	q := bleve.NewTermQuery(term)
	q.SetField(field)
	return q
}
