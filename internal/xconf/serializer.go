package xconf

import (
	"encoding/xml"
	"maps"
	"slices"
	"strconv"
	"strings"
)

// Marshal renders the document in the collection configuration dialect.
//
// Absent sections are omitted. Qname indexes are written from the qname list
// and triggers are written after the index element in declaration order, so
// that Parse(Marshal(d)) reproduces d.
func (d *Document) Marshal(f Format) []byte {
	w := &xmlWriter{nl: f.newline()}

	w.line("", `<`+tagCollection+` xmlns="`+Namespace+`">`)
	w.line("\t", `<`+tagIndex+`>`)

	if ft := d.fullText; ft != nil {
		mode := defaultNone
		if ft.DefaultAll {
			mode = defaultAll
		}
		w.open("\t\t", tagFullText,
			attrDefault, mode,
			attrAttributes, strconv.FormatBool(ft.Attributes),
			attrAlphanum, strconv.FormatBool(ft.Alphanum))
		for _, p := range ft.Paths.Items() {
			w.empty("\t\t\t", string(p.Action), attrPath, p.Path)
		}
		w.close("\t\t", tagFullText)
	}

	for _, r := range d.ranges.Items() {
		w.empty("\t\t", tagCreate, attrPath, r.XPath, attrType, r.Type)
	}
	for _, q := range d.qnames.Items() {
		w.empty("\t\t", tagCreate, attrQName, q.QName, attrType, q.Type)
	}

	w.close("\t", tagIndex)

	if d.triggers.Present() {
		w.line("\t", `<`+tagTriggers+`>`)
		for _, t := range d.triggers.Items() {
			w.open("\t\t", tagTrigger, attrEvent, t.Event, attrClass, t.Class)
			for _, name := range slices.Sorted(maps.Keys(t.Parameters)) {
				w.empty("\t\t\t", tagParameter, attrName, name, attrValue, t.Parameters[name])
			}
			w.close("\t\t", tagTrigger)
		}
		w.close("\t", tagTriggers)
	}

	w.sb.WriteString(`</` + tagCollection + `>`)
	return []byte(w.sb.String())
}

// String returns the document serialized with DefaultFormat.
func (d *Document) String() string {
	return string(d.Marshal(DefaultFormat()))
}

type xmlWriter struct {
	sb strings.Builder
	nl string
}

func (w *xmlWriter) line(indent, text string) {
	w.sb.WriteString(indent)
	w.sb.WriteString(text)
	w.sb.WriteString(w.nl)
}

// start writes "<tag k1="v1" k2="v2"" without closing the tag.
func (w *xmlWriter) start(indent, tag string, attrs []string) {
	w.sb.WriteString(indent)
	w.sb.WriteString("<")
	w.sb.WriteString(tag)
	for i := 0; i+1 < len(attrs); i += 2 {
		w.sb.WriteString(" ")
		w.sb.WriteString(attrs[i])
		w.sb.WriteString(`="`)
		_ = xml.EscapeText(&w.sb, []byte(attrs[i+1]))
		w.sb.WriteString(`"`)
	}
}

func (w *xmlWriter) open(indent, tag string, attrs ...string) {
	w.start(indent, tag, attrs)
	w.sb.WriteString(">")
	w.sb.WriteString(w.nl)
}

func (w *xmlWriter) empty(indent, tag string, attrs ...string) {
	w.start(indent, tag, attrs)
	w.sb.WriteString("/>")
	w.sb.WriteString(w.nl)
}

func (w *xmlWriter) close(indent, tag string) {
	w.line(indent, "</"+tag+">")
}
