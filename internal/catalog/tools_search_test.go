package catalog

import (
	"context"
	"strings"
	"testing"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/sha1n/xconf-mcp/internal/domain"
)

func resultText(t *testing.T, result *mcp.CallToolResult) string {
	t.Helper()
	if len(result.Content) == 0 {
		t.Fatal("Expected content in result")
	}
	text, ok := result.Content[0].(*mcp.TextContent)
	if !ok {
		t.Fatalf("Expected TextContent, got %T", result.Content[0])
	}
	return text.Text
}

func TestSearchHandler_NotReady(t *testing.T) {
	svc := newTestService(t, seededStore(), testSettings(t.TempDir()))
	handler := NewSearchHandler(svc)

	result, _, err := handler.Handle(context.Background(), &mcp.CallToolRequest{}, SearchArgument{Query: "title"})
	if err != nil {
		t.Fatalf("Handle returned error: %v", err)
	}
	if !result.IsError {
		t.Error("Expected error result when not ready")
	}
	if !strings.Contains(resultText(t, result), "not available") {
		t.Errorf("Unexpected message: %s", resultText(t, result))
	}
}

func TestSearchHandler_InvalidArguments(t *testing.T) {
	handler := NewSearchHandler(newInitializedService(t, seededStore()))

	tests := []struct {
		name string
		args SearchArgument
		want string
	}{
		{"empty", SearchArgument{}, "cannot be empty"},
		{"whitespace", SearchArgument{Query: "  "}, "cannot be empty"},
		{"unknown kind", SearchArgument{Query: "title", Kind: "btree"}, "unknown kind"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result, _, err := handler.Handle(context.Background(), &mcp.CallToolRequest{}, tt.args)
			if err != nil {
				t.Fatalf("Handle returned error: %v", err)
			}
			if !result.IsError {
				t.Fatal("Expected error result")
			}
			if !strings.Contains(resultText(t, result), tt.want) {
				t.Errorf("Expected %q in %q", tt.want, resultText(t, result))
			}
		})
	}
}

func TestSearchHandler_FormatsResults(t *testing.T) {
	handler := NewSearchHandler(newInitializedService(t, seededStore()))

	result, _, err := handler.Handle(context.Background(), &mcp.CallToolRequest{}, SearchArgument{Collection: "/db/books"})
	if err != nil {
		t.Fatalf("Handle returned error: %v", err)
	}
	if result.IsError {
		t.Fatalf("Unexpected error result: %s", resultText(t, result))
	}

	text := resultText(t, result)
	for _, want := range []string{
		"Found 5 declarations for collection=/db/books",
		"/db/books [range #0] //book/@year as xs:integer",
		"/db/books [qname #0] mods:name as xs:string",
		"/db/books [trigger #0] store,update -> org.exist.collections.triggers.HistoryTrigger",
		"/db/books [fulltext-exclude #1] //mods:note\n",
	} {
		if !strings.Contains(text, want) {
			t.Errorf("Expected %q in output:\n%s", want, text)
		}
	}
}

func TestSearchHandler_NoResults(t *testing.T) {
	handler := NewSearchHandler(newInitializedService(t, seededStore()))

	result, _, err := handler.Handle(context.Background(), &mcp.CallToolRequest{}, SearchArgument{Query: "nothing", Kind: domain.KindTrigger})
	if err != nil {
		t.Fatalf("Handle returned error: %v", err)
	}
	if result.IsError {
		t.Error("No results is not an error")
	}
	if text := resultText(t, result); text != "No declarations found for 'nothing', kind=trigger" {
		t.Errorf("Unexpected message: %q", text)
	}
}

func TestFormatResults_Truncated(t *testing.T) {
	text := formatResults(&Result{
		Declarations: []domain.Declaration{{Collection: "/db", Kind: domain.KindRange, Target: "//a", Type: "xs:string"}},
		Total:        3,
	}, SearchArgument{Query: "a"})

	if !strings.Contains(text, "... and 2 more results") {
		t.Errorf("Expected truncation notice, got:\n%s", text)
	}
}

func TestSearchHandler_ToolDefinition(t *testing.T) {
	tool := NewSearchHandler(nil).GetToolDefinition()
	if tool.Name != "search_declarations" {
		t.Errorf("Tool name = %q", tool.Name)
	}
	if tool.Description == "" {
		t.Error("Expected a description")
	}
}
