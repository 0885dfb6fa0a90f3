package catalog

import (
	"context"
	"fmt"
	"strings"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/sha1n/xconf-mcp/internal/domain"
)

// SearchArgument defines search parameters.
type SearchArgument struct {
	Query      string `json:"query,omitempty" jsonschema_description:"Text matched against index paths, qualified names and trigger classes"`
	Kind       string `json:"kind,omitempty" jsonschema_description:"Filter by declaration kind: fulltext-include, fulltext-exclude, range, qname or trigger"`
	Collection string `json:"collection,omitempty" jsonschema_description:"Filter by collection path (e.g., /db/books)"`
}

// SearchHandler handles the search_declarations MCP tool.
type SearchHandler struct {
	service *Service
}

// NewSearchHandler creates a new search handler.
func NewSearchHandler(service *Service) *SearchHandler {
	return &SearchHandler{service: service}
}

// Handle executes the search and returns formatted results.
func (h *SearchHandler) Handle(ctx context.Context, req *mcp.CallToolRequest, args SearchArgument) (*mcp.CallToolResult, any, error) {
	if !h.service.IsReady() {
		return errorResult("Search is not available. The catalog is still being built. Please try again later."), nil, nil
	}

	result, err := h.service.Search(Query{Text: args.Query, Kind: args.Kind, Collection: args.Collection})
	if err != nil {
		return errorResult(fmt.Sprintf("Search failed: %s", err)), nil, nil
	}

	return &mcp.CallToolResult{
		Content: []mcp.Content{
			&mcp.TextContent{Text: formatResults(result, args)},
		},
	}, nil, nil
}

// formatResults renders search results as markdown.
func formatResults(result *Result, args SearchArgument) string {
	description := describe(args)
	if result.Total == 0 {
		return fmt.Sprintf("No declarations found for %s", description)
	}

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("Found %d declarations for %s:\n\n", result.Total, description))

	for i, decl := range result.Declarations {
		sb.WriteString(fmt.Sprintf("%d. %s [%s #%d] %s", i+1, decl.Collection, decl.Kind, decl.Position, decl.Target))
		switch decl.Kind {
		case domain.KindRange, domain.KindQName:
			sb.WriteString(" as " + decl.Type)
		case domain.KindTrigger:
			sb.WriteString(" -> " + decl.Class)
		}
		sb.WriteString("\n")
	}

	if result.Total > uint64(len(result.Declarations)) {
		sb.WriteString(fmt.Sprintf("\n... and %d more results\n", result.Total-uint64(len(result.Declarations))))
	}
	return sb.String()
}

func describe(args SearchArgument) string {
	var parts []string
	if args.Query != "" {
		parts = append(parts, fmt.Sprintf("'%s'", args.Query))
	}
	if args.Kind != "" {
		parts = append(parts, "kind="+args.Kind)
	}
	if args.Collection != "" {
		parts = append(parts, "collection="+args.Collection)
	}
	return strings.Join(parts, ", ")
}

func errorResult(msg string) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		Content: []mcp.Content{
			&mcp.TextContent{Text: msg},
		},
		IsError: true,
	}
}

// GetToolDefinition returns the MCP tool definition.
func (h *SearchHandler) GetToolDefinition() *mcp.Tool {
	return &mcp.Tool{
		Name:        "search_declarations",
		Description: "Search index and trigger declarations across all catalogued collection configurations",
	}
}

// RegisterSearchTool registers the search tool with an MCP server.
func RegisterSearchTool(server *mcp.Server, service *Service) {
	handler := NewSearchHandler(service)
	mcp.AddTool(server, handler.GetToolDefinition(), handler.Handle)
}
