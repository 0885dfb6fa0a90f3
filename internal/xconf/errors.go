package xconf

import (
	"errors"
	"fmt"
)

// ErrSaveFailed is wrapped by every error returned from Document.Save.
var ErrSaveFailed = errors.New("save failed")

// ParseError reports a configuration resource that could not be parsed.
type ParseError struct {
	Collection string
	Err        error
}

func (e *ParseError) Error() string {
	if e.Collection == "" {
		return fmt.Sprintf("failed to parse collection configuration: %v", e.Err)
	}
	return fmt.Sprintf("failed to parse configuration of %s: %v", e.Collection, e.Err)
}

func (e *ParseError) Unwrap() error {
	return e.Err
}
