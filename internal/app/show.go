package app

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/sha1n/xconf-mcp/internal/config"
	"github.com/sha1n/xconf-mcp/internal/output"
	"github.com/sha1n/xconf-mcp/internal/xconf"
	"github.com/spf13/pflag"
)

// ShowParams contains dependencies for the show command
type ShowParams struct {
	LoadSettings  func(*pflag.FlagSet) (*config.Settings, error)
	ValidSettings func(*config.Settings) error
	Out           io.Writer
}

// Show prints the configuration of a collection in the requested view.
func Show(ctx context.Context, params ShowParams, flags *pflag.FlagSet, collection, view string) error {
	v, err := output.ParseView(view)
	if err != nil {
		return err
	}

	settings, err := params.LoadSettings(flags)
	if err != nil {
		return fmt.Errorf("failed to load settings: %w", err)
	}
	if err := params.ValidSettings(settings); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	edit, _, err := NewEditor(settings)
	if err != nil {
		return err
	}

	doc, err := edit.Open(ctx, collection)
	if err != nil {
		var parseErr *xconf.ParseError
		if errors.As(err, &parseErr) {
			return fmt.Errorf("configuration of %s is malformed: %w", parseErr.Collection, parseErr.Err)
		}
		return err
	}

	text, err := output.Render(doc, v, edit.Format())
	if err != nil {
		return err
	}
	if _, err := io.WriteString(params.Out, text); err != nil {
		return err
	}
	if len(text) > 0 && text[len(text)-1] != '\n' {
		_, err = io.WriteString(params.Out, edit.Format().Newline)
	}
	return err
}
