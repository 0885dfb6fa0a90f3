package domain

import (
	"fmt"
	"slices"
)

// Declaration is a single index or trigger declaration found in a collection
// configuration. It is the document stored in the catalog search index.
type Declaration struct {
	// ID is unique per declaration.
	// Format: "<collection>#<kind>/<position>", e.g. "/db/books#range/0"
	ID string `json:"id"`

	// Collection is the configured collection, e.g. "/db/books".
	Collection string `json:"collection"`

	// Kind is one of the Kind* constants.
	Kind string `json:"kind"`

	// Target is the declaration subject: a full-text path, a range xpath,
	// a qualified name or a trigger event.
	Target string `json:"target"`

	// Type is the index value type (range and qname declarations only).
	Type string `json:"type,omitempty"`

	// Class is the trigger implementation class (trigger declarations only).
	Class string `json:"class,omitempty"`

	// Position is the ordinal of the declaration within its section.
	Position int `json:"position"`
}

// Declaration kinds
const (
	KindFullTextInclude = "fulltext-include"
	KindFullTextExclude = "fulltext-exclude"
	KindRange           = "range"
	KindQName           = "qname"
	KindTrigger         = "trigger"
)

// Kinds lists all declaration kinds.
var Kinds = []string{KindFullTextInclude, KindFullTextExclude, KindRange, KindQName, KindTrigger}

// IsKind reports whether k names a declaration kind.
func IsKind(k string) bool {
	return slices.Contains(Kinds, k)
}

// DeclarationID builds the document ID of a declaration.
func DeclarationID(collection, kind string, position int) string {
	return fmt.Sprintf("%s#%s/%d", collection, kind, position)
}

// Bleve field name constants for consistent field references in queries and mappings.
const (
	FieldID         = "id"
	FieldCollection = "collection"
	FieldKind       = "kind"
	FieldTarget     = "target"
	FieldType       = "type"
	FieldClass      = "class"
	FieldPosition   = "position"
)
