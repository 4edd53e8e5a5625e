// Package logger builds the zerolog loggers shared by the commands and
// carries a request or job scoped logger through context.Context.
package logger

import (
	"context"
	"io"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

// Output formats accepted by Options.Format.
const (
	FormatConsole = "console"
	FormatJSON    = "json"
)

type ctxKey struct{}

// Options configures New. The zero value logs at info level to stdout in
// console format.
type Options struct {
	Level   string
	Format  string
	Service string
	Out     io.Writer
}

// New creates a logger from opts. An unknown level falls back to info and an
// unknown format falls back to console.
func New(opts Options) zerolog.Logger {
	out := opts.Out
	if out == nil {
		out = os.Stdout
	}
	if !strings.EqualFold(opts.Format, FormatJSON) {
		out = zerolog.ConsoleWriter{Out: out, TimeFormat: time.RFC3339}
	}

	zctx := zerolog.New(out).Level(ParseLevel(opts.Level)).With().Timestamp().Caller()
	if opts.Service != "" {
		zctx = zctx.Str("service", opts.Service)
	}
	return zctx.Logger()
}

// NewWithWriter creates a JSON logger writing to w at debug level. Tests use
// it to capture output.
func NewWithWriter(w io.Writer) zerolog.Logger {
	return New(Options{Level: "debug", Format: FormatJSON, Out: w})
}

// ParseLevel maps a level name to a zerolog level, defaulting to info.
func ParseLevel(level string) zerolog.Level {
	lvl, err := zerolog.ParseLevel(strings.ToLower(strings.TrimSpace(level)))
	if err != nil || lvl == zerolog.NoLevel {
		return zerolog.InfoLevel
	}
	return lvl
}

// WithContext stores log in ctx.
func WithContext(ctx context.Context, log zerolog.Logger) context.Context {
	return context.WithValue(ctx, ctxKey{}, log)
}

// FromContext returns the logger stored in ctx, or a default one.
func FromContext(ctx context.Context) zerolog.Logger {
	if log, ok := fromContext(ctx); ok {
		return log
	}
	return New(Options{})
}

// InContext reports whether ctx carries a logger.
func InContext(ctx context.Context) bool {
	_, ok := fromContext(ctx)
	return ok
}

func fromContext(ctx context.Context) (zerolog.Logger, bool) {
	log, ok := ctx.Value(ctxKey{}).(zerolog.Logger)
	return log, ok
}

// Component scopes log to a named part of the system.
func Component(log zerolog.Logger, name string) zerolog.Logger {
	return log.With().Str("component", name).Logger()
}

// WithUser returns ctx with its logger tagged with userID.
func WithUser(ctx context.Context, userID string) context.Context {
	log := FromContext(ctx).With().Str("user_id", userID).Logger()
	return WithContext(ctx, log)
}
