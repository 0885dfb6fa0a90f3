package output

import (
	"bytes"

	"github.com/sha1n/xconf-mcp/internal/xconf"
	"gopkg.in/yaml.v3"
)

// Summary is a structured view of a collection configuration.
type Summary struct {
	Collection string           `yaml:"collection"`
	FullText   *FullTextSummary `yaml:"fulltext,omitempty"`
	Range      []IndexSummary   `yaml:"range,omitempty"`
	QName      []IndexSummary   `yaml:"qname,omitempty"`
	Triggers   []TriggerSummary `yaml:"triggers,omitempty"`
}

// FullTextSummary describes the full-text index.
type FullTextSummary struct {
	Default    string        `yaml:"default"`
	Attributes bool          `yaml:"attributes"`
	Alphanum   bool          `yaml:"alphanum"`
	Paths      []PathSummary `yaml:"paths,omitempty"`
}

// PathSummary is an include or exclude path of the full-text index.
type PathSummary struct {
	Action string `yaml:"action"`
	Path   string `yaml:"path"`
}

// IndexSummary is a range or qname index.
type IndexSummary struct {
	Target string `yaml:"target"`
	Type   string `yaml:"type"`
}

// TriggerSummary is a trigger declaration.
type TriggerSummary struct {
	Event      string            `yaml:"event"`
	Class      string            `yaml:"class"`
	Parameters map[string]string `yaml:"parameters,omitempty"`
}

// Summarize builds the summary of a document. Absent sections are omitted.
func Summarize(doc *xconf.Document) Summary {
	s := Summary{Collection: collectionLabel(doc)}

	if doc.HasFullText() {
		ft := &FullTextSummary{
			Default:    "none",
			Attributes: doc.FullTextAttributes(),
			Alphanum:   doc.FullTextAlphanum(),
		}
		if doc.FullTextDefaultAll() {
			ft.Default = "all"
		}
		for i := 0; i < doc.FullTextPathCount(); i++ {
			ft.Paths = append(ft.Paths, PathSummary{
				Action: string(doc.FullTextPathAction(i)),
				Path:   doc.FullTextPath(i),
			})
		}
		s.FullText = ft
	}

	for _, r := range doc.RangeIndexes() {
		s.Range = append(s.Range, IndexSummary{Target: r.XPath, Type: r.Type})
	}
	for _, q := range doc.QNameIndexes() {
		s.QName = append(s.QName, IndexSummary{Target: q.QName, Type: q.Type})
	}
	for _, t := range doc.Triggers() {
		s.Triggers = append(s.Triggers, TriggerSummary{Event: t.Event, Class: t.Class, Parameters: t.Parameters})
	}
	return s
}

// YAML renders the summary of a document as YAML.
func YAML(doc *xconf.Document) (string, error) {
	var buf bytes.Buffer
	encoder := yaml.NewEncoder(&buf)
	encoder.SetIndent(2)
	if err := encoder.Encode(Summarize(doc)); err != nil {
		return "", err
	}
	if err := encoder.Close(); err != nil {
		return "", err
	}
	return buf.String(), nil
}

func collectionLabel(doc *xconf.Document) string {
	if c := doc.Collection(); c != "" {
		return c
	}
	return "(detached)"
}
