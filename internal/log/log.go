// Package log provides context-aware logging for gut.
//
// Human-readable diagnostics go to the logger's writer (stderr in the CLI).
// Debug events are structured zerolog events rendered with a console writer,
// so `--verbose` output stays readable while keeping key=value fields.
package log

import (
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

type ctxKey struct{}

// Logger provides output, debug events and verbose command logging.
type Logger struct {
	out     io.Writer
	verbose bool
	quiet   bool
	zl      zerolog.Logger
}

// New creates a new logger. quiet suppresses everything, including verbose output.
func New(out io.Writer, verbose, quiet bool) *Logger {
	level := zerolog.WarnLevel
	switch {
	case quiet:
		level = zerolog.Disabled
	case verbose:
		level = zerolog.DebugLevel
	}

	cw := zerolog.ConsoleWriter{Out: out, NoColor: true, TimeFormat: time.Kitchen}
	return &Logger{
		out:     out,
		verbose: verbose,
		quiet:   quiet,
		zl:      zerolog.New(cw).Level(level).With().Timestamp().Logger(),
	}
}

// WithLogger attaches a logger to the context.
func WithLogger(ctx context.Context, l *Logger) context.Context {
	return context.WithValue(ctx, ctxKey{}, l)
}

// FromContext retrieves the logger from context.
// Returns a no-op logger if none is attached.
func FromContext(ctx context.Context) *Logger {
	if l, ok := ctx.Value(ctxKey{}).(*Logger); ok {
		return l
	}
	return &Logger{out: io.Discard, zl: zerolog.Nop()}
}

// Printf writes formatted output.
func (l *Logger) Printf(format string, args ...any) {
	if l.quiet {
		return
	}
	fmt.Fprintf(l.out, format, args...)
}

// Println writes a line of output.
func (l *Logger) Println(args ...any) {
	if l.quiet {
		return
	}
	fmt.Fprintln(l.out, args...)
}

// Command logs an external command execution and returns a function that
// records its duration. Only prints when verbose mode is enabled.
func (l *Logger) Command(dir, name string, args ...string) func(time.Duration) {
	if !l.IsVerbose() {
		return func(time.Duration) {}
	}
	line := fmt.Sprintf("$ %s %s", name, strings.Join(args, " "))
	if dir != "" {
		line = fmt.Sprintf("[%s] %s", dir, line)
	}
	return func(d time.Duration) {
		fmt.Fprintf(l.out, "%s (%s)\n", line, d.Round(time.Millisecond))
	}
}

// Debug logs a message with key/value pairs. A trailing key without a value is dropped.
func (l *Logger) Debug(msg string, keyvals ...any) {
	ev := l.zl.Debug()
	for i := 0; i+1 < len(keyvals); i += 2 {
		key := fmt.Sprint(keyvals[i])
		if s, ok := keyvals[i+1].(string); ok {
			ev = ev.Str(key, s)
			continue
		}
		ev = ev.Interface(key, keyvals[i+1])
	}
	ev.Msg(msg)
}

// Warn logs a structured warning. Shown unless quiet.
func (l *Logger) Warn() *zerolog.Event {
	return l.zl.Warn()
}

// IsVerbose returns true if verbose mode is enabled and not silenced by quiet.
func (l *Logger) IsVerbose() bool {
	return l.verbose && !l.quiet
}

// IsQuiet returns true if all output is suppressed.
func (l *Logger) IsQuiet() bool {
	return l.quiet
}
