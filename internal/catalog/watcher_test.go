package catalog

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/sha1n/xconf-mcp/internal/store"
)

type refreshRecorder struct {
	mu    sync.Mutex
	calls []string
	ch    chan string
}

func newRefreshRecorder() *refreshRecorder {
	return &refreshRecorder{ch: make(chan string, 100)}
}

func (r *refreshRecorder) refresh(_ context.Context, collection string) error {
	r.mu.Lock()
	r.calls = append(r.calls, collection)
	r.mu.Unlock()
	r.ch <- collection
	return nil
}

func (r *refreshRecorder) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.calls)
}

func (r *refreshRecorder) expect(t *testing.T, collection string) {
	t.Helper()
	select {
	case got := <-r.ch:
		if got != collection {
			t.Errorf("Refreshed %q, want %q", got, collection)
		}
	case <-time.After(5 * time.Second):
		t.Fatalf("Timed out waiting for refresh of %s", collection)
	}
}

func startTestWatcher(t *testing.T, debounce time.Duration) (*store.FileStore, *refreshRecorder) {
	t.Helper()
	fs, err := store.NewFileStore(t.TempDir(), time.Second)
	if err != nil {
		t.Fatalf("NewFileStore failed: %v", err)
	}
	rec := newRefreshRecorder()
	w := NewWatcher(fs, rec.refresh, debounce)
	if err := w.Start(context.Background()); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	t.Cleanup(func() { _ = w.Close() })
	return fs, rec
}

func storeConfig(t *testing.T, fs *store.FileStore, collection, content string) {
	t.Helper()
	col, err := fs.CreateCollection(context.Background(), store.ConfigPath(collection))
	if err != nil {
		t.Fatalf("CreateCollection failed: %v", err)
	}
	if err := col.StoreResource(context.Background(), store.ConfigFilename, []byte(content)); err != nil {
		t.Fatalf("StoreResource failed: %v", err)
	}
}

func TestWatcher_RefreshesStoredConfiguration(t *testing.T) {
	fs, rec := startTestWatcher(t, 20*time.Millisecond)

	storeConfig(t, fs, "/db/books", booksConfig)
	rec.expect(t, "/db/books")

	storeConfig(t, fs, "/db/books", articlesConfig)
	rec.expect(t, "/db/books")
}

func TestWatcher_RefreshesRemovedConfiguration(t *testing.T) {
	fs, rec := startTestWatcher(t, 20*time.Millisecond)

	storeConfig(t, fs, "/db", articlesConfig)
	rec.expect(t, "/db")

	if err := os.Remove(filepath.Join(fs.ConfigRoot(), "db", store.ConfigFilename)); err != nil {
		t.Fatalf("Remove failed: %v", err)
	}
	rec.expect(t, "/db")
}

func TestWatcher_CoalescesBursts(t *testing.T) {
	fs, rec := startTestWatcher(t, 300*time.Millisecond)

	for i := 0; i < 5; i++ {
		storeConfig(t, fs, "/db/books", booksConfig)
	}
	rec.expect(t, "/db/books")

	time.Sleep(500 * time.Millisecond)
	if n := rec.count(); n != 1 {
		t.Errorf("Expected one refresh for a burst, got %d", n)
	}
}

func TestWatcher_IgnoresOtherFiles(t *testing.T) {
	fs, rec := startTestWatcher(t, 20*time.Millisecond)

	dir := filepath.Join(fs.ConfigRoot(), "db", "books")
	if err := os.MkdirAll(dir, 0755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("x"), 0644); err != nil {
		t.Fatal(err)
	}
	storeConfig(t, fs, "/db/articles", articlesConfig)

	rec.expect(t, "/db/articles")
	if n := rec.count(); n != 1 {
		t.Errorf("Expected only the configuration change to refresh, got %d refreshes", n)
	}
}

func TestWatcher_StartTwice(t *testing.T) {
	fs, err := store.NewFileStore(t.TempDir(), time.Second)
	if err != nil {
		t.Fatal(err)
	}
	w := NewWatcher(fs, newRefreshRecorder().refresh, 0)
	if err := w.Start(context.Background()); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	defer func() { _ = w.Close() }()

	if err := w.Start(context.Background()); err == nil {
		t.Error("Expected error when starting twice")
	}
}

func TestWatcher_CloseWithoutStart(t *testing.T) {
	fs, err := store.NewFileStore(t.TempDir(), time.Second)
	if err != nil {
		t.Fatal(err)
	}
	if err := NewWatcher(fs, newRefreshRecorder().refresh, 0).Close(); err != nil {
		t.Errorf("Close failed: %v", err)
	}
}
