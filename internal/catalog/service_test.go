package catalog

import (
	"context"
	"errors"
	"path/filepath"
	"slices"
	"testing"
	"time"

	"github.com/sha1n/xconf-mcp/internal/config"
	"github.com/sha1n/xconf-mcp/internal/domain"
	"github.com/sha1n/xconf-mcp/internal/store"
)

const booksConfig = `<collection xmlns="http://exist-db.org/collection-config/1.0">
	<index xmlns:mods="http://www.loc.gov/mods/v3">
		<fulltext default="none" attributes="false" alphanum="false">
			<include path="//mods:title"/>
			<exclude path="//mods:note"/>
		</fulltext>
		<create path="//book/@year" type="xs:integer"/>
		<create qname="mods:name" type="xs:string"/>
	</index>
	<triggers>
		<trigger event="store,update" class="org.exist.collections.triggers.HistoryTrigger"/>
	</triggers>
</collection>`

const articlesConfig = `<collection xmlns="http://exist-db.org/collection-config/1.0">
	<index>
		<create path="//article/title" type="xs:string"/>
	</index>
</collection>`

func testSettings(dir string) *config.CatalogSettings {
	return &config.CatalogSettings{
		Enabled:     true,
		BaseDir:     dir,
		Include:     []string{"/db/**"},
		MaxResults:  20,
		Debounce:    20 * time.Millisecond,
		SyncTimeout: 5 * time.Second,
	}
}

func newTestService(t *testing.T, st store.Store, settings *config.CatalogSettings) *Service {
	t.Helper()
	svc, err := NewService(st, settings)
	if err != nil {
		t.Fatalf("NewService failed: %v", err)
	}
	t.Cleanup(func() {
		if err := svc.Close(); err != nil {
			t.Errorf("Close failed: %v", err)
		}
	})
	return svc
}

func newInitializedService(t *testing.T, st store.Store) *Service {
	t.Helper()
	svc := newTestService(t, st, testSettings(t.TempDir()))
	if err := svc.Initialize(context.Background()); err != nil {
		t.Fatalf("Initialize failed: %v", err)
	}
	return svc
}

func seededStore() *store.MemoryStore {
	st := store.NewMemoryStore()
	st.PutConfig("/db/books", booksConfig)
	st.PutConfig("/db/articles", articlesConfig)
	return st
}

func TestNewService_Validation(t *testing.T) {
	st := store.NewMemoryStore()

	if _, err := NewService(st, nil); err == nil {
		t.Error("Expected error for nil settings")
	}
	if _, err := NewService(nil, testSettings(t.TempDir())); err == nil {
		t.Error("Expected error for nil store")
	}

	settings := testSettings(t.TempDir())
	settings.Include = []string{"/db/[unclosed"}
	if _, err := NewService(st, settings); err == nil {
		t.Error("Expected error for invalid include pattern")
	}
}

func TestService_NotReadyBeforeInitialize(t *testing.T) {
	svc := newTestService(t, seededStore(), testSettings(t.TempDir()))

	if svc.IsReady() {
		t.Error("Expected service not ready before Initialize")
	}
	if _, err := svc.Search(Query{Text: "title"}); !errors.Is(err, ErrNotReady) {
		t.Errorf("Expected ErrNotReady, got %v", err)
	}
	if err := svc.RefreshCollection(context.Background(), "/db/books"); !errors.Is(err, ErrNotReady) {
		t.Errorf("Expected ErrNotReady, got %v", err)
	}
}

func TestService_InitializeIndexesAllCollections(t *testing.T) {
	svc := newInitializedService(t, seededStore())

	if !svc.IsReady() {
		t.Fatal("Expected service ready after Initialize")
	}

	m := svc.Manifest()
	if !slices.Equal(m.CollectionNames(), []string{"/db/articles", "/db/books"}) {
		t.Errorf("Collections = %v", m.CollectionNames())
	}
	if books, _ := m.State("/db/books"); books.Declarations != 5 {
		t.Errorf("Books declarations = %d, want 5", books.Declarations)
	}
	if m.Declarations() != 6 {
		t.Errorf("Total declarations = %d, want 6", m.Declarations())
	}

	// The manifest is persisted for the next instance
	loaded, err := LoadManifest(filepath.Join(svc.Settings().BaseDir, ManifestFilename))
	if err != nil {
		t.Fatalf("LoadManifest failed: %v", err)
	}
	if len(loaded.CollectionNames()) != 2 {
		t.Errorf("Persisted collections = %v", loaded.CollectionNames())
	}
}

func TestService_Collections(t *testing.T) {
	st := store.NewMemoryStore()
	st.PutConfig("/db/apps/blog", articlesConfig)
	st.PutConfig("/db/data/books", booksConfig)
	st.PutConfig("/db", articlesConfig)

	tests := []struct {
		name        string
		include     []string
		collections []string
		expected    []string
	}{
		{"everything under db", []string{"/db/**"}, nil, []string{"/db", "/db/apps/blog", "/db/data/books"}},
		{"one subtree", []string{"/db/apps/**"}, nil, []string{"/db/apps/blog"}},
		{"several patterns", []string{"/db/apps/*", "/db"}, nil, []string{"/db", "/db/apps/blog"}},
		{"explicit collections are added", []string{"/db/apps/**"}, []string{"db/legacy/", "/db/apps/blog"}, []string{"/db/apps/blog", "/db/legacy"}},
		{"explicit only", nil, []string{"/db/legacy"}, []string{"/db/legacy"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			settings := testSettings(t.TempDir())
			settings.Include = tt.include
			settings.Collections = tt.collections
			svc := newTestService(t, st, settings)

			got, err := svc.Collections(context.Background())
			if err != nil {
				t.Fatalf("Collections failed: %v", err)
			}
			if !slices.Equal(got, tt.expected) {
				t.Errorf("Collections = %v, want %v", got, tt.expected)
			}
		})
	}
}

func TestService_RefreshCollection_SkipsUnchanged(t *testing.T) {
	st := seededStore()
	svc := newInitializedService(t, st)

	before, _ := svc.Manifest().State("/db/books")
	if err := svc.RefreshCollection(context.Background(), "/db/books"); err != nil {
		t.Fatalf("RefreshCollection failed: %v", err)
	}
	after, _ := svc.Manifest().State("/db/books")

	if !after.IndexedAt.Equal(before.IndexedAt) {
		t.Error("Expected unchanged configuration not to be re-indexed")
	}
}

func TestService_RefreshCollection_PicksUpChanges(t *testing.T) {
	st := seededStore()
	svc := newInitializedService(t, st)

	st.PutConfig("/db/articles", `<collection xmlns="http://exist-db.org/collection-config/1.0">
	<index>
		<create qname="headline" type="xs:string"/>
		<create qname="byline" type="xs:string"/>
	</index>
</collection>`)

	if err := svc.RefreshCollection(context.Background(), "/db/articles/"); err != nil {
		t.Fatalf("RefreshCollection failed: %v", err)
	}

	state, _ := svc.Manifest().State("/db/articles")
	if state.Declarations != 2 {
		t.Errorf("Declarations = %d, want 2", state.Declarations)
	}

	result, err := svc.Search(Query{Collection: "/db/articles"})
	if err != nil {
		t.Fatalf("Search failed: %v", err)
	}
	if result.Total != 2 {
		t.Fatalf("Total = %d, want 2", result.Total)
	}
	for _, decl := range result.Declarations {
		if decl.Kind != domain.KindQName {
			t.Errorf("Expected only qname declarations after the change, got %+v", decl)
		}
	}
}

func TestService_RefreshCollection_ParseErrorKeepsDeclarations(t *testing.T) {
	st := seededStore()
	svc := newInitializedService(t, st)

	st.PutConfig("/db/books", "<collection><index>")
	err := svc.RefreshCollection(context.Background(), "/db/books")
	if err == nil {
		t.Fatal("Expected refresh error for malformed configuration")
	}

	state, _ := svc.Manifest().State("/db/books")
	if state.Error == "" || state.Declarations != 5 {
		t.Errorf("Expected error recorded and declarations kept, got %+v", state)
	}
	result, err := svc.Search(Query{Collection: "/db/books"})
	if err != nil {
		t.Fatalf("Search failed: %v", err)
	}
	if result.Total != 5 {
		t.Errorf("Total = %d, want 5", result.Total)
	}

	// A fixed configuration clears the error even when the content matches the last indexed one
	st.PutConfig("/db/books", booksConfig)
	if err := svc.RefreshCollection(context.Background(), "/db/books"); err != nil {
		t.Fatalf("RefreshCollection failed: %v", err)
	}
	if state, _ := svc.Manifest().State("/db/books"); state.Error != "" {
		t.Errorf("Expected error cleared, got %q", state.Error)
	}
}

func TestService_RefreshCollection_MissingConfigClearsDeclarations(t *testing.T) {
	st := seededStore()
	settings := testSettings(t.TempDir())
	settings.Include = nil
	settings.Collections = []string{"/db/books", "/db/gone"}
	svc := newTestService(t, st, settings)
	if err := svc.Initialize(context.Background()); err != nil {
		t.Fatalf("Initialize failed: %v", err)
	}

	state, ok := svc.Manifest().State("/db/gone")
	if !ok || state.Declarations != 0 || state.Error != "" {
		t.Errorf("Expected an empty, healthy state for a collection without configuration, got %+v", state)
	}
}

func TestService_RefreshAll_RemovesStaleCollections(t *testing.T) {
	st := seededStore()
	settings := testSettings(t.TempDir())
	svc := newTestService(t, st, settings)
	if err := svc.Initialize(context.Background()); err != nil {
		t.Fatalf("Initialize failed: %v", err)
	}

	settings.Include = []string{"/db/books"}
	if err := svc.RefreshAll(context.Background()); err != nil {
		t.Fatalf("RefreshAll failed: %v", err)
	}

	if names := svc.Manifest().CollectionNames(); !slices.Equal(names, []string{"/db/books"}) {
		t.Errorf("Collections = %v", names)
	}
	result, err := svc.Search(Query{Collection: "/db/articles"})
	if err != nil {
		t.Fatalf("Search failed: %v", err)
	}
	if result.Total != 0 {
		t.Errorf("Expected stale declarations removed, got %d", result.Total)
	}
}

func TestService_RefreshAll_ReportsFailures(t *testing.T) {
	st := seededStore()
	svc := newInitializedService(t, st)

	st.ResourceErr = errors.New("connection reset")
	defer func() { st.ResourceErr = nil }()

	err := svc.RefreshAll(context.Background())
	if err == nil {
		t.Fatal("Expected error when resources cannot be read")
	}
	if errs := svc.Manifest().Errors(); len(errs) != 2 {
		t.Errorf("Expected both collections to record an error, got %v", errs)
	}
}

func TestService_FollowerUsesExistingIndex(t *testing.T) {
	dir := t.TempDir()
	st := seededStore()

	leader := newTestService(t, st, testSettings(dir))
	if err := leader.Initialize(context.Background()); err != nil {
		t.Fatalf("Leader Initialize failed: %v", err)
	}
	if err := leader.Close(); err != nil {
		t.Fatalf("Leader Close failed: %v", err)
	}

	follower := newTestService(t, st, testSettings(dir))
	lease, err := follower.lock.TryAcquire()
	if err != nil || lease == nil {
		t.Fatalf("Expected to hold the refresh lock, got %v", err)
	}
	settings := follower.Settings()
	settings.SyncTimeout = 50 * time.Millisecond

	// Held by another instance: wait times out and the existing index is used
	other := newTestService(t, st, settings)
	if err := other.Initialize(context.Background()); err != nil {
		t.Fatalf("Follower Initialize failed: %v", err)
	}
	_ = lease.Release()

	if !other.IsReady() {
		t.Fatal("Expected follower ready")
	}
	if other.Manifest().Declarations() != 6 {
		t.Errorf("Expected follower to load the leader's manifest, got %d declarations", other.Manifest().Declarations())
	}
	result, err := other.Search(Query{Text: "HistoryTrigger"})
	if err != nil {
		t.Fatalf("Search failed: %v", err)
	}
	if result.Total != 1 {
		t.Errorf("Total = %d, want 1", result.Total)
	}
}

func TestService_Close_Idempotent(t *testing.T) {
	svc := newInitializedService(t, seededStore())
	if err := svc.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}
	if svc.IsReady() {
		t.Error("Expected not ready after Close")
	}
	if err := svc.Close(); err != nil {
		t.Errorf("Second Close failed: %v", err)
	}
}
