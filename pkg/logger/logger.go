// Package logger is the zerolog wrapper every binary logs through. Request,
// actor and order fields ride on the context so deep callers inherit them.
package logger

import (
	"context"
	"io"
	"os"
	"runtime/debug"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"

	pkgerrors "github.com/angelmondragon/khatabook-backend/pkg/errors"
)

const (
	FormatJSON    = "json"
	FormatConsole = "console"
)

type Options struct {
	ServiceName string
	Level       zerolog.Level
	// WarnStack attaches a stack to warnings too.
	WarnStack bool
	Output    io.Writer
	// Format is FormatJSON (default) or FormatConsole.
	Format string
}

type Logger struct {
	root      zerolog.Logger
	warnStack bool
}

type ctxKey struct{}

var timeFormat sync.Once

func New(opts Options) *Logger {
	timeFormat.Do(func() { zerolog.TimeFieldFormat = time.RFC3339Nano })

	level := opts.Level
	if level == zerolog.NoLevel {
		level = zerolog.InfoLevel
	}
	root := zerolog.New(sink(opts)).Level(level).With().
		Timestamp().
		Str("service", opts.ServiceName).
		Logger()
	return &Logger{root: root, warnStack: opts.WarnStack}
}

func sink(opts Options) io.Writer {
	out := opts.Output
	if out == nil {
		out = os.Stdout
	}
	if strings.EqualFold(opts.Format, FormatConsole) {
		return zerolog.ConsoleWriter{Out: out, TimeFormat: time.TimeOnly}
	}
	return out
}

// ParseLevel reads a config level name. Unknown or empty names mean info.
func ParseLevel(value string) zerolog.Level {
	lvl, err := zerolog.ParseLevel(strings.ToLower(strings.TrimSpace(value)))
	if err != nil || lvl == zerolog.NoLevel {
		return zerolog.InfoLevel
	}
	return lvl
}

func (l *Logger) from(ctx context.Context) *zerolog.Logger {
	if ctx != nil {
		if scoped, ok := ctx.Value(ctxKey{}).(*zerolog.Logger); ok {
			return scoped
		}
	}
	return &l.root
}

func (l *Logger) extend(ctx context.Context, add func(zerolog.Context) zerolog.Context) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	scoped := add(l.from(ctx).With()).Logger()
	return context.WithValue(ctx, ctxKey{}, &scoped)
}

func (l *Logger) WithField(ctx context.Context, key string, value any) context.Context {
	return l.extend(ctx, func(c zerolog.Context) zerolog.Context { return c.Interface(key, value) })
}

func (l *Logger) WithFields(ctx context.Context, fields map[string]any) context.Context {
	return l.extend(ctx, func(c zerolog.Context) zerolog.Context { return c.Fields(fields) })
}

func (l *Logger) WithRequestID(ctx context.Context, requestID string) context.Context {
	return l.extend(ctx, func(c zerolog.Context) zerolog.Context { return c.Str("request_id", requestID) })
}

// WithActor tags later entries with the authenticated user.
func (l *Logger) WithActor(ctx context.Context, userID, role string) context.Context {
	return l.extend(ctx, func(c zerolog.Context) zerolog.Context {
		return c.Str("user_id", userID).Str("actor_role", role)
	})
}

func (l *Logger) WithOrderID(ctx context.Context, orderID string) context.Context {
	return l.extend(ctx, func(c zerolog.Context) zerolog.Context { return c.Str("order_id", orderID) })
}

func (l *Logger) Debug(ctx context.Context, msg string) { l.from(ctx).Debug().Msg(msg) }

func (l *Logger) Info(ctx context.Context, msg string) { l.from(ctx).Info().Msg(msg) }

func (l *Logger) Warn(ctx context.Context, msg string) {
	e := l.from(ctx).Warn()
	if l.warnStack {
		e = e.Str("stack", stack())
	}
	e.Msg(msg)
}

// Error records err and its code. Only internal and dependency failures, or
// untyped errors, carry a stack.
func (l *Logger) Error(ctx context.Context, msg string, err error) {
	e := l.from(ctx).Error()
	if err != nil {
		e = e.Err(err)
	}
	typed := pkgerrors.As(err)
	if typed != nil {
		e = e.Str("error_code", string(typed.Code()))
	}
	if typed == nil || typed.Code() == pkgerrors.CodeInternal || typed.Code() == pkgerrors.CodeDependency {
		e = e.Str("stack", stack())
	}
	e.Msg(msg)
}

func stack() string {
	return strings.TrimSpace(string(debug.Stack()))
}
