package catalog

import (
	"fmt"
	"strings"

	"github.com/blevesearch/bleve/v2"
	"github.com/blevesearch/bleve/v2/search/query"
	"github.com/sha1n/xconf-mcp/internal/domain"
	"github.com/sha1n/xconf-mcp/internal/store"
)

// Query selects declarations. Text matches targets and trigger classes;
// Kind and Collection filter exactly. At least one must be set.
type Query struct {
	Text       string
	Kind       string
	Collection string
}

// Result holds the declarations matched by a query.
type Result struct {
	Declarations []domain.Declaration
	Total        uint64
}

// Search finds declarations in the catalog.
func (s *Service) Search(q Query) (*Result, error) {
	indexer, err := s.getIndexer()
	if err != nil {
		return nil, err
	}

	bq, sortBy, err := buildQuery(q)
	if err != nil {
		return nil, err
	}

	decls, total, err := indexer.Search(bq, s.settings.MaxResults, sortBy)
	if err != nil {
		return nil, fmt.Errorf("search failed: %w", err)
	}
	return &Result{Declarations: decls, Total: total}, nil
}

// buildQuery constructs a Bleve query. Filter-only queries are listed in
// collection order instead of by score.
func buildQuery(q Query) (query.Query, []string, error) {
	text := strings.TrimSpace(q.Text)
	if text == "" && q.Kind == "" && q.Collection == "" {
		return nil, nil, fmt.Errorf("query cannot be empty")
	}
	if q.Kind != "" && !domain.IsKind(q.Kind) {
		return nil, nil, fmt.Errorf("unknown kind %q, expected one of: %s", q.Kind, strings.Join(domain.Kinds, ", "))
	}

	var must []query.Query
	var sortBy []string

	if text != "" {
		targetQuery := bleve.NewMatchQuery(text)
		targetQuery.SetField(domain.FieldTarget)
		targetQuery.SetBoost(2.0)

		classQuery := bleve.NewMatchQuery(text)
		classQuery.SetField(domain.FieldClass)

		must = append(must, bleve.NewDisjunctionQuery(targetQuery, classQuery))
	} else {
		sortBy = []string{domain.FieldCollection, domain.FieldKind, domain.FieldPosition}
	}

	if q.Kind != "" {
		must = append(must, termQuery(domain.FieldKind, q.Kind))
	}
	if q.Collection != "" {
		must = append(must, termQuery(domain.FieldCollection, store.CleanPath(q.Collection)))
	}

	if len(must) == 1 {
		return must[0], sortBy, nil
	}
	return bleve.NewConjunctionQuery(must...), sortBy, nil
}
