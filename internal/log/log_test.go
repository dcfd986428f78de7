package log

import (
	"bytes"
	"context"
	"io"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestOutput(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name  string
		quiet bool
		write func(l *Logger)
		want  string
	}{
		{name: "printf", write: func(l *Logger) { l.Printf("applied %d of %d", 3, 4) }, want: "applied 3 of 4"},
		{name: "println", write: func(l *Logger) { l.Println("lang-sme", "patched") }, want: "lang-sme patched\n"},
		{name: "printf quiet", quiet: true, write: func(l *Logger) { l.Printf("hidden") }},
		{name: "println quiet", quiet: true, write: func(l *Logger) { l.Println("hidden") }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			var buf bytes.Buffer
			tt.write(New(&buf, false, tt.quiet))
			assert.Equal(t, tt.want, buf.String())
		})
	}
}

func TestCommand(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		verbose bool
		quiet   bool
		dir     string
		want    string
	}{
		{name: "with dir", verbose: true, dir: "/srv/lang-sme", want: "[/srv/lang-sme] $ git apply --reject - (120ms)\n"},
		{name: "without dir", verbose: true, want: "$ git apply --reject - (120ms)\n"},
		{name: "not verbose", dir: "/srv/lang-sme"},
		{name: "quiet wins", verbose: true, quiet: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			var buf bytes.Buffer
			done := New(&buf, tt.verbose, tt.quiet).Command(tt.dir, "git", "apply", "--reject", "-")
			done(120 * time.Millisecond)
			assert.Equal(t, tt.want, buf.String())
		})
	}
}

func TestDebug(t *testing.T) {
	t.Parallel()

	t.Run("fields", func(t *testing.T) {
		t.Parallel()
		var buf bytes.Buffer
		New(&buf, true, false).Debug("apply state", "repo", "/srv/lang-sme", "paths", 2, "orphan")
		got := buf.String()
		assert.Contains(t, got, "apply state")
		assert.Contains(t, got, "repo=/srv/lang-sme")
		assert.Contains(t, got, "paths=2")
		assert.NotContains(t, got, "orphan")
	})

	for _, tt := range []struct {
		name           string
		verbose, quiet bool
	}{
		{name: "not verbose"},
		{name: "quiet wins", verbose: true, quiet: true},
	} {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			var buf bytes.Buffer
			New(&buf, tt.verbose, tt.quiet).Debug("hidden", "key", "val")
			assert.Empty(t, buf.String())
		})
	}
}

func TestWarn(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	New(&buf, false, false).Warn().Str("path", "logo.bin").Msg("skipping binary file")
	assert.Contains(t, buf.String(), "skipping binary file")
	assert.Contains(t, buf.String(), "path=logo.bin")

	buf.Reset()
	New(&buf, false, true).Warn().Msg("hidden")
	assert.Empty(t, buf.String())
}

func TestFlags(t *testing.T) {
	t.Parallel()

	tests := []struct {
		verbose, quiet        bool
		wantVerbose, wantQuiet bool
	}{
		{verbose: true, wantVerbose: true},
		{quiet: true, wantQuiet: true},
		{verbose: true, quiet: true, wantQuiet: true},
		{},
	}
	for _, tt := range tests {
		l := New(io.Discard, tt.verbose, tt.quiet)
		assert.Equal(t, tt.wantVerbose, l.IsVerbose(), "verbose=%v quiet=%v", tt.verbose, tt.quiet)
		assert.Equal(t, tt.wantQuiet, l.IsQuiet(), "verbose=%v quiet=%v", tt.verbose, tt.quiet)
	}
}

func TestWithLogger_FromContext(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	l := New(&buf, true, false)
	assert.Same(t, l, FromContext(WithLogger(context.Background(), l)))

	fallback := FromContext(context.Background())
	assert.False(t, fallback.IsVerbose())
	assert.False(t, fallback.IsQuiet())
	fallback.Printf("nowhere")
	fallback.Debug("nowhere")
}
