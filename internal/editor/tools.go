package editor

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/sha1n/xconf-mcp/internal/output"
	"github.com/sha1n/xconf-mcp/internal/xconf"
)

// Index kinds accepted by the index tools
const (
	KindFullText = "fulltext"
	KindRange    = "range"
	KindQName    = "qname"
)

// Full-text options accepted by set_fulltext_option
const (
	OptionDefault    = "default"
	OptionAttributes = "attributes"
	OptionAlphanum   = "alphanum"
)

// ShowArgument defines show_collection_config parameters.
type ShowArgument struct {
	Collection string `json:"collection" jsonschema_description:"Collection path (e.g., /db/books)"`
	View       string `json:"view,omitempty" jsonschema_description:"Rendering: xml (default), tree or yaml"`
}

// AddIndexArgument defines add_index parameters.
type AddIndexArgument struct {
	Collection string `json:"collection" jsonschema_description:"Collection path (e.g., /db/books)"`
	Kind       string `json:"kind" jsonschema_description:"Index kind: fulltext, range or qname"`
	Target     string `json:"target" jsonschema_description:"XPath for fulltext and range indexes, qualified name for qname indexes"`
	Type       string `json:"type,omitempty" jsonschema_description:"XML Schema type of range and qname indexes (e.g., xs:string)"`
	Action     string `json:"action,omitempty" jsonschema_description:"include (default) or exclude, fulltext paths only"`
}

// UpdateIndexArgument defines update_index parameters. Omitted fields are left unchanged.
type UpdateIndexArgument struct {
	Collection string  `json:"collection" jsonschema_description:"Collection path (e.g., /db/books)"`
	Kind       string  `json:"kind" jsonschema_description:"Index kind: fulltext, range or qname"`
	Position   int     `json:"position" jsonschema_description:"Zero-based position of the declaration within its kind"`
	Target     *string `json:"target,omitempty" jsonschema_description:"New XPath or qualified name"`
	Type       *string `json:"type,omitempty" jsonschema_description:"New XML Schema type (range and qname only)"`
	Action     *string `json:"action,omitempty" jsonschema_description:"New action: include or exclude (fulltext only)"`
}

// DeleteIndexArgument defines delete_index parameters.
type DeleteIndexArgument struct {
	Collection string `json:"collection" jsonschema_description:"Collection path (e.g., /db/books)"`
	Kind       string `json:"kind" jsonschema_description:"Index kind: fulltext, range or qname"`
	Position   int    `json:"position" jsonschema_description:"Zero-based position of the declaration within its kind"`
}

// SetFullTextOptionArgument defines set_fulltext_option parameters.
type SetFullTextOptionArgument struct {
	Collection string `json:"collection" jsonschema_description:"Collection path (e.g., /db/books)"`
	Option     string `json:"option" jsonschema_description:"default (index all content), attributes or alphanum"`
	Value      bool   `json:"value" jsonschema_description:"Option value"`
}

// AddTriggerArgument defines add_trigger parameters.
type AddTriggerArgument struct {
	Collection string            `json:"collection" jsonschema_description:"Collection path (e.g., /db/books)"`
	Event      string            `json:"event" jsonschema_description:"Lifecycle event(s) the trigger fires on (e.g., store,update)"`
	Class      string            `json:"class" jsonschema_description:"Trigger implementation class"`
	Parameters map[string]string `json:"parameters,omitempty" jsonschema_description:"Trigger parameters by name"`
}

// DeleteTriggerArgument defines delete_trigger parameters.
type DeleteTriggerArgument struct {
	Collection string `json:"collection" jsonschema_description:"Collection path (e.g., /db/books)"`
	Position   int    `json:"position" jsonschema_description:"Zero-based position of the trigger"`
}

// Tools exposes the editor as MCP tool handlers.
type Tools struct {
	service *Service
}

// NewTools creates the editor tool handlers.
func NewTools(service *Service) *Tools {
	return &Tools{service: service}
}

// Show handles show_collection_config.
func (t *Tools) Show(ctx context.Context, req *mcp.CallToolRequest, args ShowArgument) (*mcp.CallToolResult, any, error) {
	view, err := output.ParseView(args.View)
	if err != nil {
		return errorResult(err.Error()), nil, nil
	}

	doc, err := t.service.Open(ctx, args.Collection)
	if err != nil {
		return failure(args.Collection, err), nil, nil
	}
	if isEmpty(doc) {
		return textResult(fmt.Sprintf("Collection %s has no index configuration", doc.Collection())), nil, nil
	}

	text, err := output.Render(doc, view, t.service.Format())
	if err != nil {
		return errorResult(err.Error()), nil, nil
	}
	return textResult(text), nil, nil
}

// AddIndex handles add_index.
func (t *Tools) AddIndex(ctx context.Context, req *mcp.CallToolRequest, args AddIndexArgument) (*mcp.CallToolResult, any, error) {
	var message string
	doc, err := t.service.Edit(ctx, args.Collection, func(doc *xconf.Document) error {
		if strings.TrimSpace(args.Target) == "" {
			return errors.New("target is required")
		}

		switch args.Kind {
		case KindFullText:
			action := xconf.ActionInclude
			if args.Action != "" {
				action = xconf.Action(args.Action)
			}
			if !action.Valid() {
				return fmt.Errorf("invalid action %q, expected include or exclude", args.Action)
			}
			if args.Type != "" {
				return errors.New("type does not apply to fulltext paths")
			}
			doc.AddFullTextPath(args.Target, action)
			message = fmt.Sprintf("Added fulltext %s path %s at position %d", action, args.Target, doc.FullTextPathCount()-1)

		case KindRange, KindQName:
			if args.Type == "" {
				return fmt.Errorf("type is required for %s indexes", args.Kind)
			}
			if args.Action != "" {
				return fmt.Errorf("action does not apply to %s indexes", args.Kind)
			}
			var position int
			if args.Kind == KindRange {
				doc.AddRangeIndex(args.Target, args.Type)
				position = doc.RangeIndexCount() - 1
			} else {
				doc.AddQNameIndex(args.Target, args.Type)
				position = doc.QNameIndexCount() - 1
			}
			message = fmt.Sprintf("Added %s index %s as %s at position %d", args.Kind, args.Target, args.Type, position)

		default:
			return unknownKind(args.Kind)
		}
		return nil
	})
	return t.edited(doc, args.Collection, message, err), nil, nil
}

// UpdateIndex handles update_index.
func (t *Tools) UpdateIndex(ctx context.Context, req *mcp.CallToolRequest, args UpdateIndexArgument) (*mcp.CallToolResult, any, error) {
	var message string
	doc, err := t.service.Edit(ctx, args.Collection, func(doc *xconf.Document) error {
		if args.Target == nil && args.Type == nil && args.Action == nil {
			return errors.New("nothing to update: set target, type or action")
		}
		if args.Target != nil && strings.TrimSpace(*args.Target) == "" {
			return errors.New("target cannot be empty")
		}

		switch args.Kind {
		case KindFullText:
			if args.Type != nil {
				return errors.New("type does not apply to fulltext paths")
			}
			if err := checkPosition(KindFullText, args.Position, doc.FullTextPathCount()); err != nil {
				return err
			}
			var action *xconf.Action
			if args.Action != nil {
				a := xconf.Action(*args.Action)
				if !a.Valid() {
					return fmt.Errorf("invalid action %q, expected include or exclude", *args.Action)
				}
				action = &a
			}
			doc.UpdateFullTextPath(args.Position, args.Target, action)
			message = fmt.Sprintf("Updated fulltext path %d: %s %s", args.Position,
				doc.FullTextPathAction(args.Position), doc.FullTextPath(args.Position))

		case KindRange:
			if args.Action != nil {
				return errors.New("action does not apply to range indexes")
			}
			if err := checkPosition(KindRange, args.Position, doc.RangeIndexCount()); err != nil {
				return err
			}
			doc.UpdateRangeIndex(args.Position, args.Target, args.Type)
			message = fmt.Sprintf("Updated range index %d: %s", args.Position, doc.RangeIndex(args.Position))

		case KindQName:
			if args.Action != nil {
				return errors.New("action does not apply to qname indexes")
			}
			if err := checkPosition(KindQName, args.Position, doc.QNameIndexCount()); err != nil {
				return err
			}
			doc.UpdateQNameIndex(args.Position, args.Target, args.Type)
			message = fmt.Sprintf("Updated qname index %d: %s", args.Position, doc.QNameIndex(args.Position))

		default:
			return unknownKind(args.Kind)
		}
		return nil
	})
	return t.edited(doc, args.Collection, message, err), nil, nil
}

// DeleteIndex handles delete_index. Deleting a position that does not exist
// changes nothing.
func (t *Tools) DeleteIndex(ctx context.Context, req *mcp.CallToolRequest, args DeleteIndexArgument) (*mcp.CallToolResult, any, error) {
	var message string
	doc, err := t.service.Edit(ctx, args.Collection, func(doc *xconf.Document) error {
		var count int
		switch args.Kind {
		case KindFullText:
			count = doc.FullTextPathCount()
			doc.DeleteFullTextPath(args.Position)
		case KindRange:
			count = doc.RangeIndexCount()
			doc.DeleteRangeIndex(args.Position)
		case KindQName:
			count = doc.QNameIndexCount()
			doc.DeleteQNameIndex(args.Position)
		default:
			return unknownKind(args.Kind)
		}

		if doc.Dirty() {
			message = fmt.Sprintf("Deleted %s declaration at position %d", args.Kind, args.Position)
		} else {
			message = fmt.Sprintf("No %s declaration at position %d (%d declared), nothing changed", args.Kind, args.Position, count)
		}
		return nil
	})
	return t.edited(doc, args.Collection, message, err), nil, nil
}

// SetFullTextOption handles set_fulltext_option.
func (t *Tools) SetFullTextOption(ctx context.Context, req *mcp.CallToolRequest, args SetFullTextOptionArgument) (*mcp.CallToolResult, any, error) {
	var message string
	doc, err := t.service.Edit(ctx, args.Collection, func(doc *xconf.Document) error {
		switch args.Option {
		case OptionDefault:
			doc.SetFullTextDefaultAll(args.Value)
		case OptionAttributes:
			doc.SetFullTextAttributes(args.Value)
		case OptionAlphanum:
			doc.SetFullTextAlphanum(args.Value)
		default:
			return fmt.Errorf("unknown option %q, expected %s, %s or %s", args.Option, OptionDefault, OptionAttributes, OptionAlphanum)
		}
		message = fmt.Sprintf("Set fulltext %s to %t", args.Option, args.Value)
		return nil
	})
	return t.edited(doc, args.Collection, message, err), nil, nil
}

// AddTrigger handles add_trigger.
func (t *Tools) AddTrigger(ctx context.Context, req *mcp.CallToolRequest, args AddTriggerArgument) (*mcp.CallToolResult, any, error) {
	var message string
	doc, err := t.service.Edit(ctx, args.Collection, func(doc *xconf.Document) error {
		if strings.TrimSpace(args.Event) == "" || strings.TrimSpace(args.Class) == "" {
			return errors.New("event and class are required")
		}
		doc.AddTrigger(args.Event, args.Class, args.Parameters)
		message = fmt.Sprintf("Added trigger %s on %s at position %d", args.Class, args.Event, doc.TriggerCount()-1)
		return nil
	})
	return t.edited(doc, args.Collection, message, err), nil, nil
}

// DeleteTrigger handles delete_trigger. Deleting a position that does not
// exist changes nothing.
func (t *Tools) DeleteTrigger(ctx context.Context, req *mcp.CallToolRequest, args DeleteTriggerArgument) (*mcp.CallToolResult, any, error) {
	var message string
	doc, err := t.service.Edit(ctx, args.Collection, func(doc *xconf.Document) error {
		count := doc.TriggerCount()
		doc.DeleteTrigger(args.Position)
		if doc.Dirty() {
			message = fmt.Sprintf("Deleted trigger at position %d", args.Position)
		} else {
			message = fmt.Sprintf("No trigger at position %d (%d declared), nothing changed", args.Position, count)
		}
		return nil
	})
	return t.edited(doc, args.Collection, message, err), nil, nil
}

// edited reports the outcome of an edit, followed by the resulting configuration.
func (t *Tools) edited(doc *xconf.Document, collection, message string, err error) *mcp.CallToolResult {
	if err != nil {
		return failure(collection, err)
	}

	var sb strings.Builder
	sb.WriteString(message)
	if doc.Dirty() {
		sb.WriteString(fmt.Sprintf(". Configuration of %s saved.", doc.Collection()))
	} else {
		sb.WriteString(".")
	}
	sb.WriteString("\n\n")
	sb.WriteString(output.Tree(doc))
	return textResult(sb.String())
}

func failure(collection string, err error) *mcp.CallToolResult {
	var parseErr *xconf.ParseError
	switch {
	case errors.As(err, &parseErr):
		return errorResult(fmt.Sprintf("The configuration of %s is malformed and cannot be edited: %s", collection, parseErr.Err))
	case errors.Is(err, xconf.ErrSaveFailed):
		return errorResult(fmt.Sprintf("Failed to save the configuration of %s: %s", collection, err))
	default:
		return errorResult(err.Error())
	}
}

func checkPosition(kind string, position, count int) error {
	if position < 0 || position >= count {
		return fmt.Errorf("no %s declaration at position %d (%d declared)", kind, position, count)
	}
	return nil
}

func unknownKind(kind string) error {
	return fmt.Errorf("unknown index kind %q, expected %s, %s or %s", kind, KindFullText, KindRange, KindQName)
}

func isEmpty(doc *xconf.Document) bool {
	return !doc.HasFullText() && !doc.HasRangeIndexes() && !doc.HasQNameIndexes() && !doc.HasTriggers()
}

func textResult(text string) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		Content: []mcp.Content{
			&mcp.TextContent{Text: text},
		},
	}
}

func errorResult(msg string) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		Content: []mcp.Content{
			&mcp.TextContent{Text: msg},
		},
		IsError: true,
	}
}

// Register registers the editor tools with an MCP server.
func Register(server *mcp.Server, service *Service) {
	t := NewTools(service)

	mcp.AddTool(server, &mcp.Tool{
		Name:        "show_collection_config",
		Description: "Show the index and trigger configuration (collection.xconf) of a collection",
	}, t.Show)
	mcp.AddTool(server, &mcp.Tool{
		Name:        "add_index",
		Description: "Add a fulltext path, range index or qname index to a collection configuration and save it",
	}, t.AddIndex)
	mcp.AddTool(server, &mcp.Tool{
		Name:        "update_index",
		Description: "Update fields of an existing fulltext path, range index or qname index by position and save the configuration",
	}, t.UpdateIndex)
	mcp.AddTool(server, &mcp.Tool{
		Name:        "delete_index",
		Description: "Delete a fulltext path, range index or qname index by position and save the configuration",
	}, t.DeleteIndex)
	mcp.AddTool(server, &mcp.Tool{
		Name:        "set_fulltext_option",
		Description: "Set the default, attributes or alphanum option of the fulltext index and save the configuration",
	}, t.SetFullTextOption)
	mcp.AddTool(server, &mcp.Tool{
		Name:        "add_trigger",
		Description: "Declare a trigger on a collection and save the configuration",
	}, t.AddTrigger)
	mcp.AddTool(server, &mcp.Tool{
		Name:        "delete_trigger",
		Description: "Delete a trigger declaration by position and save the configuration",
	}, t.DeleteTrigger)
}
