package app

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/sha1n/xconf-mcp/internal/catalog"
	"github.com/sha1n/xconf-mcp/internal/config"
	"github.com/sha1n/xconf-mcp/internal/editor"
	mcputil "github.com/sha1n/xconf-mcp/internal/mcp"
	"github.com/sha1n/xconf-mcp/internal/store"
	"github.com/sha1n/xconf-mcp/internal/xconf"
	"github.com/spf13/pflag"
)

// ServerName is the MCP implementation name announced to clients.
const ServerName = "xconf-mcp"

// RunParams contains dependencies for the run function
type RunParams struct {
	LoadSettings      func(*pflag.FlagSet) (*config.Settings, error)
	ValidSettings     func(*config.Settings) error
	StartSSEServer    func(*mcp.Server, *config.Settings) error
	CreateServer      func(*config.Settings, string) (*mcp.Server, func(), error)
	CustomIOTransport mcp.Transport // Optional: for testing with custom IO
}

// DefaultRunParams returns production dependencies
func DefaultRunParams() RunParams {
	return RunParams{
		LoadSettings:   config.LoadSettingsWithFlags,
		ValidSettings:  config.ValidateSettings,
		StartSSEServer: StartSSEServer,
		CreateServer:   CreateMCPServer,
	}
}

// RunWithDeps executes the server with the provided dependencies
func RunWithDeps(ctx context.Context, params RunParams, flags *pflag.FlagSet, version string) error {
	settings, err := params.LoadSettings(flags)
	if err != nil {
		return fmt.Errorf("failed to load settings: %w", err)
	}

	if err := params.ValidSettings(settings); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	// stderr only: stdout carries the stdio transport
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, nil)))

	slog.Info("Starting xconf MCP server", "version", version)
	config.Log(settings)

	mcpServer, cleanup, err := params.CreateServer(settings, version)
	if err != nil {
		return err
	}
	if cleanup != nil {
		defer cleanup()
	}

	if settings.Transport == "stdio" {
		transport := params.CustomIOTransport
		if transport == nil {
			transport = &mcp.StdioTransport{}
		}
		return mcpServer.Run(ctx, transport)
	}

	slog.Info("Starting SSE server", "host", settings.Host, "port", settings.Port)
	return params.StartSSEServer(mcpServer, settings)
}

// NewStore creates the store selected by settings.
func NewStore(settings *config.StoreSettings) (store.Store, error) {
	switch settings.Backend {
	case config.StoreBackendFS, "":
		return store.NewFileStore(settings.BaseDir, settings.LockTimeout)
	case config.StoreBackendREST:
		return store.NewRESTStore(store.RESTOptions{
			URL:      settings.URL,
			Username: settings.Username,
			Password: settings.Password,
			Timeout:  settings.Timeout,
		})
	default:
		return nil, fmt.Errorf("unknown store backend: %s", settings.Backend)
	}
}

// NewEditor creates the editor service over the configured store.
func NewEditor(settings *config.Settings) (*editor.Service, store.Store, error) {
	st, err := NewStore(&settings.Store)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create store: %w", err)
	}
	format := xconf.Format{Newline: settings.Format.Sequence()}
	return editor.NewService(st, format), st, nil
}

// CreateMCPServer creates the MCP server with registered tools. When the
// catalog is enabled it is built before the server starts; a catalog that
// fails to initialize is dropped and the editor tools are served alone.
func CreateMCPServer(settings *config.Settings, version string) (*mcp.Server, func(), error) {
	edit, st, err := NewEditor(settings)
	if err != nil {
		return nil, nil, err
	}

	var cat *catalog.Service
	var cleanup func()

	if settings.Catalog.Enabled {
		cat, cleanup, err = startCatalog(st, &settings.Catalog)
		if err != nil {
			slog.Error("Catalog initialization failed, search is disabled", "error", err)
			cat = nil
		} else {
			edit.OnSaved(func(ctx context.Context, collection string) {
				if err := cat.RefreshCollection(ctx, collection); err != nil {
					slog.Warn("Failed to refresh catalog after save", "collection", collection, "error", err)
				}
			})
		}
	}

	server := mcputil.CreateServer(mcputil.ServerConfig{
		Name:    ServerName,
		Version: version,
		Editor:  edit,
		Catalog: cat,
	})

	return server, cleanup, nil
}

func startCatalog(st store.Store, settings *config.CatalogSettings) (*catalog.Service, func(), error) {
	svc, err := catalog.NewService(st, settings)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create catalog service: %w", err)
	}

	// Background context: the catalog outlives any single request
	if err := svc.Initialize(context.Background()); err != nil {
		if closeErr := svc.Close(); closeErr != nil {
			slog.Error("Failed to close catalog service", "error", closeErr)
		}
		return nil, nil, err
	}

	var watcher *catalog.Watcher
	if fs, ok := st.(*store.FileStore); ok && settings.Watch {
		watcher = catalog.NewWatcher(fs, svc.RefreshCollection, settings.Debounce)
		if err := watcher.Start(context.Background()); err != nil {
			slog.Warn("Failed to watch store, catalog will only refresh on edits", "error", err)
			watcher = nil
		}
	} else if settings.Watch {
		slog.Warn("Catalog watch requires the fs store backend, ignoring")
	}

	cleanup := func() {
		if watcher != nil {
			if err := watcher.Close(); err != nil {
				slog.Error("Failed to stop store watcher", "error", err)
			}
		}
		if err := svc.Close(); err != nil {
			slog.Error("Failed to close catalog service", "error", err)
		}
	}
	return svc, cleanup, nil
}
