package output

import (
	"fmt"
	"maps"
	"slices"

	"github.com/disiqueira/gotree/v3"
	"github.com/sha1n/xconf-mcp/internal/xconf"
)

// Tree renders a document as a tree rooted at its collection.
func Tree(doc *xconf.Document) string {
	root := gotree.New(collectionLabel(doc))

	if doc.HasFullText() {
		defaultValue := "none"
		if doc.FullTextDefaultAll() {
			defaultValue = "all"
		}
		ft := root.Add(fmt.Sprintf("fulltext (default=%s attributes=%t alphanum=%t)",
			defaultValue, doc.FullTextAttributes(), doc.FullTextAlphanum()))
		for i := 0; i < doc.FullTextPathCount(); i++ {
			ft.Add(fmt.Sprintf("%s %s", doc.FullTextPathAction(i), doc.FullTextPath(i)))
		}
	}

	if doc.HasRangeIndexes() {
		node := root.Add("range")
		for _, r := range doc.RangeIndexes() {
			node.Add(fmt.Sprintf("%s as %s", r.XPath, r.Type))
		}
	}

	if doc.HasQNameIndexes() {
		node := root.Add("qname")
		for _, q := range doc.QNameIndexes() {
			node.Add(fmt.Sprintf("%s as %s", q.QName, q.Type))
		}
	}

	if doc.HasTriggers() {
		node := root.Add("triggers")
		for _, t := range doc.Triggers() {
			trigger := node.Add(fmt.Sprintf("%s -> %s", t.Event, t.Class))
			for _, name := range slices.Sorted(maps.Keys(t.Parameters)) {
				trigger.Add(fmt.Sprintf("%s=%s", name, t.Parameters[name]))
			}
		}
	}

	return root.Print()
}
