package xconf

import (
	"errors"
	"strings"

	"github.com/beevik/etree"
)

// Element and attribute names of the collection configuration dialect.
const (
	Namespace = "http://exist-db.org/collection-config/1.0"

	tagCollection = "collection"
	tagIndex      = "index"
	tagFullText   = "fulltext"
	tagCreate     = "create"
	tagTriggers   = "triggers"
	tagTrigger    = "trigger"
	tagParameter  = "parameter"

	attrDefault    = "default"
	attrAttributes = "attributes"
	attrAlphanum   = "alphanum"
	attrPath       = "path"
	attrQName      = "qname"
	attrType       = "type"
	attrEvent      = "event"
	attrClass      = "class"
	attrName       = "name"
	attrValue      = "value"

	defaultAll  = "all"
	defaultNone = "none"
)

var (
	errNoRoot          = errors.New("document has no root element")
	errMultipleRoots   = errors.New("document has more than one root element")
	errTrailingContent = errors.New("document has text outside the root element")
)

// Parse builds a detached Document from a collection configuration. The
// returned error is a *ParseError.
func Parse(data []byte) (*Document, error) {
	doc, err := parse(data)
	if err != nil {
		return nil, &ParseError{Err: err}
	}
	return doc, nil
}

func parse(data []byte) (*Document, error) {
	tree := etree.NewDocument()
	if err := tree.ReadFromBytes(data); err != nil {
		return nil, err
	}
	root, err := documentRoot(tree)
	if err != nil {
		return nil, err
	}

	doc := New()
	doc.fullText = parseFullText(root)
	doc.ranges, doc.qnames = parseCreates(root)
	doc.triggers = parseTriggers(root)
	return doc, nil
}

// documentRoot returns the single root element. Only whitespace, comments,
// processing instructions and directives may surround it.
func documentRoot(tree *etree.Document) (*etree.Element, error) {
	var root *etree.Element
	for _, tok := range tree.Child {
		switch t := tok.(type) {
		case *etree.Element:
			if root != nil {
				return nil, errMultipleRoots
			}
			root = t
		case *etree.CharData:
			if strings.TrimSpace(t.Data) != "" {
				return nil, errTrailingContent
			}
		}
	}
	if root == nil {
		return nil, errNoRoot
	}
	return root, nil
}

// descendants returns the elements below e with the given local name, in
// document order. e itself is not considered.
func descendants(e *etree.Element, tags ...string) []*etree.Element {
	var out []*etree.Element
	var walk func(*etree.Element)
	walk = func(parent *etree.Element) {
		for _, c := range parent.ChildElements() {
			for _, tag := range tags {
				if c.Tag == tag {
					out = append(out, c)
					break
				}
			}
			walk(c)
		}
	}
	walk(e)
	return out
}

func attr(e *etree.Element, name string) string {
	return e.SelectAttrValue(name, "")
}

// parseFullText reads the first fulltext element. Include and exclude paths
// keep their relative document order.
func parseFullText(root *etree.Element) *FullTextIndex {
	found := descendants(root, tagFullText)
	if len(found) == 0 {
		return nil
	}
	ft := found[0]

	index := &FullTextIndex{
		DefaultAll: attr(ft, attrDefault) == defaultAll,
		Attributes: attr(ft, attrAttributes) == "true",
		Alphanum:   attr(ft, attrAlphanum) == "true",
	}
	for _, p := range descendants(ft, string(ActionInclude), string(ActionExclude)) {
		index.Paths.Append(&IndexPath{Path: attr(p, attrPath), Action: Action(p.Tag)})
	}
	return index
}

// parseCreates reads range and qname indexes from the same create elements.
// Both checks are applied to every element.
func parseCreates(root *etree.Element) (Section[*RangeIndex], Section[*QNameIndex]) {
	var ranges Section[*RangeIndex]
	var qnames Section[*QNameIndex]

	creates := descendants(root, tagCreate)
	if len(creates) == 0 {
		return ranges, qnames
	}

	ranges = NewSection[*RangeIndex]()
	qnames = NewSection[*QNameIndex]()
	for _, c := range creates {
		xsType := attr(c, attrType)
		if p := attr(c, attrPath); p != "" {
			ranges.Append(&RangeIndex{XPath: p, Type: xsType})
		}
		if q := attr(c, attrQName); q != "" {
			qnames.Append(&QNameIndex{QName: q, Type: xsType})
		}
	}
	return ranges, qnames
}

func parseTriggers(root *etree.Element) Section[*Trigger] {
	var triggers Section[*Trigger]
	for _, t := range descendants(root, tagTrigger) {
		trigger := &Trigger{
			Event:      attr(t, attrEvent),
			Class:      attr(t, attrClass),
			Parameters: make(map[string]string),
		}
		for _, p := range descendants(t, tagParameter) {
			trigger.Parameters[attr(p, attrName)] = attr(p, attrValue)
		}
		triggers.Append(trigger)
	}
	return triggers
}
