package mcp

import (
	"github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/sha1n/xconf-mcp/internal/catalog"
	"github.com/sha1n/xconf-mcp/internal/editor"
)

// ServerConfig contains configuration for creating an MCP server
type ServerConfig struct {
	Name    string
	Version string

	// Editor serves the configuration editing tools. Required.
	Editor *editor.Service
	// Catalog serves declaration search. Optional.
	Catalog *catalog.Service
}

// CreateServer creates the MCP server and registers the tools of the
// configured services.
func CreateServer(cfg ServerConfig) *mcp.Server {
	s := mcp.NewServer(&mcp.Implementation{
		Name:    cfg.Name,
		Version: cfg.Version,
	}, nil)

	if cfg.Editor != nil {
		editor.Register(s, cfg.Editor)
	}
	if cfg.Catalog != nil {
		catalog.RegisterSearchTool(s, cfg.Catalog)
	}

	return s
}
