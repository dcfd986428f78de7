// Package output writes primary data (tables, records, patches) to stdout.
// Diagnostics go to stderr through the log package.
package output

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/BurntSushi/toml"
	"gitlab.com/tozd/go/errors"
	"gopkg.in/yaml.v3"
)

// Formats accepted by Encode.
const (
	FormatTOML = "toml"
	FormatJSON = "json"
	FormatYAML = "yaml"
)

// ErrUnknownFormat is returned by Encode for unsupported formats.
var ErrUnknownFormat = errors.Base("unknown format")

type ctxKey struct{}

// Printer writes primary output.
type Printer struct {
	w io.Writer
}

// New returns a Printer writing to w.
func New(w io.Writer) *Printer {
	return &Printer{w: w}
}

// WithPrinter returns ctx carrying a Printer for w.
func WithPrinter(ctx context.Context, w io.Writer) context.Context {
	return context.WithValue(ctx, ctxKey{}, New(w))
}

// FromContext returns the context Printer, or one writing to stdout.
func FromContext(ctx context.Context) *Printer {
	if p, ok := ctx.Value(ctxKey{}).(*Printer); ok {
		return p
	}
	return New(os.Stdout)
}

func (p *Printer) Print(a ...any) {
	fmt.Fprint(p.w, a...)
}

func (p *Printer) Printf(format string, a ...any) {
	fmt.Fprintf(p.w, format, a...)
}

func (p *Printer) Println(a ...any) {
	fmt.Fprintln(p.w, a...)
}

// Writer returns the underlying writer.
func (p *Printer) Writer() io.Writer {
	return p.w
}

var encoders = map[string]func(w io.Writer, v any) error{
	FormatTOML: func(w io.Writer, v any) error {
		return toml.NewEncoder(w).Encode(v)
	},
	FormatJSON: func(w io.Writer, v any) error {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(v)
	},
	FormatYAML: func(w io.Writer, v any) error {
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(v); err != nil {
			return err
		}
		return enc.Close()
	},
}

// Encode writes v in the given format. An empty format means TOML. Nothing
// is written when encoding fails.
func (p *Printer) Encode(format string, v any) error {
	if format == "" {
		format = FormatTOML
	}
	encode, ok := encoders[format]
	if !ok {
		return errors.Errorf("%w %q (want toml, json or yaml)", ErrUnknownFormat, format)
	}
	var buf bytes.Buffer
	if err := encode(&buf, v); err != nil {
		return errors.Errorf("encode %s: %w", format, err)
	}
	_, err := p.w.Write(buf.Bytes())
	return errors.WithStack(err)
}
