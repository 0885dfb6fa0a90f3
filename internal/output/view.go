package output

import (
	"fmt"
	"strings"

	"github.com/sha1n/xconf-mcp/internal/xconf"
)

// View selects how a document is rendered.
type View string

// Views
const (
	ViewXML  View = "xml"
	ViewTree View = "tree"
	ViewYAML View = "yaml"
)

// Views lists the supported views.
var Views = []View{ViewXML, ViewTree, ViewYAML}

// ParseView parses a view name. An empty name selects ViewXML.
func ParseView(name string) (View, error) {
	switch v := View(strings.ToLower(strings.TrimSpace(name))); v {
	case "":
		return ViewXML, nil
	case ViewXML, ViewTree, ViewYAML:
		return v, nil
	default:
		return "", fmt.Errorf("unknown view %q, expected xml, tree or yaml", name)
	}
}

// Render renders a document. The XML view is the canonical serialization in
// the given format.
func Render(doc *xconf.Document, view View, format xconf.Format) (string, error) {
	switch view {
	case ViewXML, "":
		return string(doc.Marshal(format)), nil
	case ViewTree:
		return Tree(doc), nil
	case ViewYAML:
		return YAML(doc)
	default:
		return "", fmt.Errorf("unknown view %q", view)
	}
}
