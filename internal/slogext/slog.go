// Package slogext provides slog helpers.
package slogext

import (
	"context"
	"fmt"
	"io"
	"log/slog"

	"github.com/kortschak/goroutine"
	"github.com/pkg/errors"
)

// GoID is a slog.Handler that adds the calling goroutine's goid. It tells
// apart records logged by the host loop from those of decode workers.
type GoID struct {
	slog.Handler
}

func (h GoID) Handle(ctx context.Context, r slog.Record) error {
	r.AddAttrs(slog.Int64("goid", goroutine.ID()))
	return h.Handler.Handle(ctx, r)
}

func (h GoID) WithAttrs(attrs []slog.Attr) slog.Handler {
	return GoID{h.Handler.WithAttrs(attrs)}
}

func (h GoID) WithGroup(name string) slog.Handler {
	return GoID{h.Handler.WithGroup(name)}
}

// Stringer implements slog.LogValuer for [fmt.Stringer].
type Stringer struct {
	fmt.Stringer
}

func (v Stringer) LogValue() slog.Value {
	if v.Stringer == nil {
		return slog.StringValue("<nil>")
	}
	return slog.StringValue(v.String())
}

// Options configures New.
type Options struct {
	// Level is one of debug, info, warn or error. The default is info.
	Level string
	// JSON selects line-delimited JSON output instead of text.
	JSON bool
	// AddSource adds source line details.
	AddSource bool
}

// New returns a logger writing to w that records goroutine IDs.
func New(w io.Writer, opts Options) (*slog.Logger, error) {
	var level slog.LevelVar
	if opts.Level != "" {
		if err := level.UnmarshalText([]byte(opts.Level)); err != nil {
			return nil, errors.Wrapf(err, "invalid log level %q", opts.Level)
		}
	}

	hopts := &slog.HandlerOptions{
		Level:     &level,
		AddSource: opts.AddSource,
	}

	var h slog.Handler
	if opts.JSON {
		h = slog.NewJSONHandler(w, hopts)
	} else {
		h = slog.NewTextHandler(w, hopts)
	}

	return slog.New(GoID{Handler: h}), nil
}

// Discard returns a logger that drops everything.
func Discard() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{
		Level: slog.LevelError + 1,
	}))
}
