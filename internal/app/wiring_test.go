package app

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/sha1n/xconf-mcp/internal/config"
	"github.com/sha1n/xconf-mcp/internal/store"
	"github.com/spf13/pflag"
)

func fsSettings(t *testing.T) *config.Settings {
	t.Helper()
	return &config.Settings{
		Transport: "stdio",
		Store: config.StoreSettings{
			Backend:     config.StoreBackendFS,
			BaseDir:     t.TempDir(),
			LockTimeout: time.Second,
		},
		Format: config.FormatSettings{Newline: config.NewlineLF},
		Catalog: config.CatalogSettings{
			BaseDir:     t.TempDir(),
			Include:     []string{"/db/**"},
			MaxResults:  20,
			Debounce:    50 * time.Millisecond,
			SyncTimeout: 5 * time.Second,
		},
	}
}

func TestNewStore(t *testing.T) {
	tests := []struct {
		name     string
		settings config.StoreSettings
		wantType string
		wantErr  bool
	}{
		{"fs", config.StoreSettings{Backend: config.StoreBackendFS, BaseDir: t.TempDir(), LockTimeout: time.Second}, "*store.FileStore", false},
		{"empty backend defaults to fs", config.StoreSettings{BaseDir: t.TempDir()}, "*store.FileStore", false},
		{"fs without directory", config.StoreSettings{Backend: config.StoreBackendFS}, "", true},
		{"rest", config.StoreSettings{Backend: config.StoreBackendREST, URL: "http://localhost:8080/exist", Timeout: time.Second}, "*store.RESTStore", false},
		{"rest without url", config.StoreSettings{Backend: config.StoreBackendREST}, "", true},
		{"unknown backend", config.StoreSettings{Backend: "s3"}, "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			st, err := NewStore(&tt.settings)
			if tt.wantErr {
				if err == nil {
					t.Error("Expected error")
				}
				return
			}
			if err != nil {
				t.Fatalf("NewStore failed: %v", err)
			}
			switch st.(type) {
			case *store.FileStore:
				if tt.wantType != "*store.FileStore" {
					t.Errorf("Got FileStore, want %s", tt.wantType)
				}
			case *store.RESTStore:
				if tt.wantType != "*store.RESTStore" {
					t.Errorf("Got RESTStore, want %s", tt.wantType)
				}
			default:
				t.Errorf("Unexpected store type %T", st)
			}
		})
	}
}

func TestNewEditor_UsesConfiguredNewline(t *testing.T) {
	settings := fsSettings(t)
	settings.Format.Newline = config.NewlineCRLF

	edit, _, err := NewEditor(settings)
	if err != nil {
		t.Fatalf("NewEditor failed: %v", err)
	}
	if edit.Format().Newline != "\r\n" {
		t.Errorf("Newline = %q, want CRLF", edit.Format().Newline)
	}
}

func TestCreateMCPServer_EditorOnly(t *testing.T) {
	server, cleanup, err := CreateMCPServer(fsSettings(t), "test")
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if server == nil {
		t.Fatal("Expected server to be created")
	}
	if cleanup != nil {
		t.Error("Expected no cleanup without a catalog")
	}
}

func TestCreateMCPServer_InvalidStore(t *testing.T) {
	settings := fsSettings(t)
	settings.Store.BaseDir = ""

	if _, _, err := CreateMCPServer(settings, "test"); err == nil {
		t.Error("Expected error for a store without directory")
	}
}

func TestCreateMCPServer_WithCatalog(t *testing.T) {
	settings := fsSettings(t)
	settings.Catalog.Enabled = true
	settings.Catalog.Watch = true

	server, cleanup, err := CreateMCPServer(settings, "test")
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if server == nil {
		t.Fatal("Expected server to be created")
	}
	if cleanup == nil {
		t.Fatal("Expected cleanup for the catalog")
	}
	cleanup()

	if _, err := os.Stat(filepath.Join(settings.Catalog.BaseDir, "manifest.json")); err != nil {
		t.Errorf("Expected catalog manifest to be written: %v", err)
	}
}

func TestRunWithDeps_PassesVersion(t *testing.T) {
	var gotVersion string
	params := RunParams{
		LoadSettings: func(*pflag.FlagSet) (*config.Settings, error) {
			return &config.Settings{Transport: "sse"}, nil
		},
		ValidSettings: noopValidate,
		CreateServer: func(_ *config.Settings, version string) (*mcp.Server, func(), error) {
			gotVersion = version
			return nil, nil, nil
		},
		StartSSEServer: func(*mcp.Server, *config.Settings) error {
			return errors.New("stop")
		},
	}

	_ = RunWithDeps(context.Background(), params, nil, "1.2.3")

	if gotVersion != "1.2.3" {
		t.Errorf("Version = %q, want 1.2.3", gotVersion)
	}
}

func showParams(settings *config.Settings, out *strings.Builder) ShowParams {
	return ShowParams{
		LoadSettings:  func(*pflag.FlagSet) (*config.Settings, error) { return settings, nil },
		ValidSettings: noopValidate,
		Out:           out,
	}
}

func writeConfig(t *testing.T, settings *config.Settings, collection, content string) {
	t.Helper()
	dir := filepath.Join(settings.Store.BaseDir, filepath.FromSlash(store.ConfigPath(collection)))
	if err := os.MkdirAll(dir, 0755); err != nil {
		t.Fatalf("Failed to create config dir: %v", err)
	}
	if err := os.WriteFile(filepath.Join(dir, store.ConfigFilename), []byte(content), 0644); err != nil {
		t.Fatalf("Failed to write config: %v", err)
	}
}

func TestShow(t *testing.T) {
	settings := fsSettings(t)
	writeConfig(t, settings, "/db/books", `<collection xmlns="http://exist-db.org/collection-config/1.0">
	<index>
		<create qname="author" type="xs:string"/>
	</index>
</collection>`)

	tests := []struct {
		view string
		want string
	}{
		{"", `<create qname="author" type="xs:string"/>`},
		{"xml", `<collection xmlns="http://exist-db.org/collection-config/1.0">`},
		{"tree", "author as xs:string"},
		{"yaml", "collection: /db/books"},
	}

	for _, tt := range tests {
		t.Run("view "+tt.view, func(t *testing.T) {
			var out strings.Builder
			if err := Show(context.Background(), showParams(settings, &out), nil, "/db/books", tt.view); err != nil {
				t.Fatalf("Show failed: %v", err)
			}
			if !strings.Contains(out.String(), tt.want) {
				t.Errorf("Expected %q in:\n%s", tt.want, out.String())
			}
			if !strings.HasSuffix(out.String(), "\n") {
				t.Error("Expected output to end with a newline")
			}
		})
	}
}

func TestShow_Errors(t *testing.T) {
	settings := fsSettings(t)
	writeConfig(t, settings, "/db/broken", "<collection><index>")

	tests := []struct {
		name       string
		collection string
		view       string
		want       string
	}{
		{"unknown view", "/db/books", "html", "unknown view"},
		{"malformed", "/db/broken", "xml", "malformed"},
		{"missing collection", "", "xml", "collection is required"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var out strings.Builder
			err := Show(context.Background(), showParams(settings, &out), nil, tt.collection, tt.view)
			if err == nil || !strings.Contains(err.Error(), tt.want) {
				t.Errorf("Expected error containing %q, got %v", tt.want, err)
			}
		})
	}
}
