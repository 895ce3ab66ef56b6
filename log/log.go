// Package log provides a scoped structured logger on top of zerolog.
package log

import (
	"context"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/rs/zerolog"
)

// Attr is a structured attribute attached to a logger.
type Attr func(zerolog.Context) zerolog.Context

// Logger is a scoped logger.
type Logger struct {
	zl zerolog.Logger
}

// InitGlobals configures the global logger and returns the root logger.
func InitGlobals(level zerolog.Level, json, noColor bool) *Logger {
	return InitGlobalsTo(os.Stderr, level, json, noColor)
}

// InitGlobalsTo is InitGlobals with an explicit output.
func InitGlobalsTo(w io.Writer, level zerolog.Level, json, noColor bool) *Logger {
	zerolog.TimeFieldFormat = time.RFC3339Nano
	zerolog.DurationFieldUnit = time.Millisecond
	zerolog.DurationFieldInteger = true

	out := w
	if !json {
		out = zerolog.ConsoleWriter{
			Out:        w,
			NoColor:    noColor,
			TimeFormat: "2006-01-02 15:04:05.000",
		}
	}

	zerolog.SetGlobalLevel(level)

	zl := zerolog.New(out).Level(level).With().Timestamp().Logger()
	zerolog.DefaultContextLogger = &zl

	return &Logger{zl: zl}
}

// New returns a logger derived from the global one with the given scope.
func New(scope string) *Logger {
	zl := zerolog.Nop()
	if zerolog.DefaultContextLogger != nil {
		zl = *zerolog.DefaultContextLogger
	}

	return &Logger{zl: Scope(scope)(zl.With()).Logger()}
}

// Ctx returns the logger attached to ctx or the global logger.
func Ctx(ctx context.Context) *Logger {
	return &Logger{zl: *zerolog.Ctx(ctx)}
}

// WithContext attaches the logger to ctx.
func (l *Logger) WithContext(ctx context.Context) context.Context {
	return l.zl.WithContext(ctx)
}

// With returns a child logger with the attributes attached.
func (l *Logger) With(attrs ...Attr) *Logger {
	c := l.zl.With()
	for _, attr := range attrs {
		c = attr(c)
	}

	return &Logger{zl: c.Logger()}
}

func (l *Logger) Trace(msg string) { l.zl.Trace().Msg(msg) }

func (l *Logger) Tracef(format string, args ...any) { l.zl.Trace().Msgf(format, args...) }

func (l *Logger) Debug(msg string) { l.zl.Debug().Msg(msg) }

func (l *Logger) Debugf(format string, args ...any) { l.zl.Debug().Msgf(format, args...) }

func (l *Logger) Info(msg string) { l.zl.Info().Msg(msg) }

func (l *Logger) Infof(format string, args ...any) { l.zl.Info().Msgf(format, args...) }

func (l *Logger) Warn(msg string) { l.zl.Warn().Msg(msg) }

func (l *Logger) Warnf(format string, args ...any) { l.zl.Warn().Msgf(format, args...) }

// Error logs msg at error level with err attached.
func (l *Logger) Error(err error, msg string) { l.zl.Error().Err(err).Msg(msg) }

// Errorf logs a formatted message at error level with err attached.
func (l *Logger) Errorf(err error, format string, args ...any) {
	l.zl.Error().Err(err).Msg(fmt.Sprintf(format, args...))
}

// Fatal logs msg with err and exits the process.
func (l *Logger) Fatal(err error, msg string) { l.zl.Fatal().Err(err).Msg(msg) }

// Scope sets the logger scope.
func Scope(name string) Attr {
	return func(c zerolog.Context) zerolog.Context { return c.Str("s", name) }
}

// DB attaches the database name.
func DB(name string) Attr {
	return func(c zerolog.Context) zerolog.Context { return c.Str("db", name) }
}

// Op attaches the cluster operation name.
func Op(name string) Attr {
	return func(c zerolog.Context) zerolog.Context { return c.Str("op", name) }
}

// RunID attaches the orchestration run id.
func RunID(id string) Attr {
	return func(c zerolog.Context) zerolog.Context { return c.Str("run_id", id) }
}

func Elapsed(d time.Duration) Attr {
	return func(c zerolog.Context) zerolog.Context { return c.Dur("elapsed", d) }
}

func Count(n int64) Attr {
	return func(c zerolog.Context) zerolog.Context { return c.Int64("count", n) }
}
