package xconf

import "log/slog"

// Newline sequences accepted by Format.
const (
	NewlineLF   = "\n"
	NewlineCRLF = "\r\n"
)

// Format controls the textual layout of serialized documents.
type Format struct {
	Newline string
}

// DefaultFormat uses LF line endings.
func DefaultFormat() Format {
	return Format{Newline: NewlineLF}
}

func (f Format) newline() string {
	if f.Newline == "" {
		return NewlineLF
	}
	return f.Newline
}

// Option configures Load.
type Option func(*loadOptions)

type loadOptions struct {
	format Format
	logger *slog.Logger
}

// WithFormat sets the layout used when the document is saved.
func WithFormat(f Format) Option {
	return func(o *loadOptions) {
		o.format = f
	}
}

// WithLogger sets the logger used by Load and Save.
func WithLogger(l *slog.Logger) Option {
	return func(o *loadOptions) {
		if l != nil {
			o.logger = l
		}
	}
}

func resolveOptions(opts []Option) loadOptions {
	o := loadOptions{
		format: DefaultFormat(),
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}
