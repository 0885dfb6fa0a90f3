package xconf

import "fmt"

// Action is the effect of a full-text index path declaration.
type Action string

const (
	ActionInclude Action = "include"
	ActionExclude Action = "exclude"
)

// Valid reports whether a is one of the two known actions.
func (a Action) Valid() bool {
	return a == ActionInclude || a == ActionExclude
}

// IndexPath is a single include/exclude path of the full-text index.
type IndexPath struct {
	Path   string
	Action Action
}

// SetPath replaces the XPath of the declaration.
func (p *IndexPath) SetPath(path string) {
	p.Path = path
}

// SetAction replaces the action of the declaration.
func (p *IndexPath) SetAction(action Action) {
	p.Action = action
}

// FullTextIndex is the full-text indexing policy of a collection.
type FullTextIndex struct {
	// DefaultAll indexes all nodes unless excluded. Serialized as default="all|none".
	DefaultAll bool
	Attributes bool
	Alphanum   bool
	Paths      Section[*IndexPath]
}

// RangeIndex declares a typed range index over an XPath.
type RangeIndex struct {
	XPath string
	Type  string
}

// SetXPath replaces the indexed path.
func (r *RangeIndex) SetXPath(xpath string) {
	r.XPath = xpath
}

// SetType replaces the xs type of the index.
func (r *RangeIndex) SetType(xsType string) {
	r.Type = xsType
}

// QNameIndex declares a typed range index over nodes with a qualified name.
type QNameIndex struct {
	QName string
	Type  string
}

// SetQName replaces the indexed qualified name.
func (q *QNameIndex) SetQName(qname string) {
	q.QName = qname
}

// SetType replaces the xs type of the index.
func (q *QNameIndex) SetType(xsType string) {
	q.Type = xsType
}

// Trigger binds a collection or document event to a handler class.
type Trigger struct {
	Event      string
	Class      string
	Parameters map[string]string
}

// Parameter returns the named parameter and whether it is set.
func (t *Trigger) Parameter(name string) (string, bool) {
	v, ok := t.Parameters[name]
	return v, ok
}

// SetParameter sets a trigger parameter, replacing any previous value.
func (t *Trigger) SetParameter(name, value string) {
	if t.Parameters == nil {
		t.Parameters = make(map[string]string)
	}
	t.Parameters[name] = value
}

// String implements fmt.Stringer for diagnostics.
func (r *RangeIndex) String() string {
	return fmt.Sprintf("range(%s as %s)", r.XPath, r.Type)
}

// String implements fmt.Stringer for diagnostics.
func (q *QNameIndex) String() string {
	return fmt.Sprintf("qname(%s as %s)", q.QName, q.Type)
}
