// Package generate instantiates a new repository from a template.
package generate

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"slices"

	"gitlab.com/tozd/go/errors"

	"github.com/divvun/gut/internal/delta"
	"github.com/divvun/gut/internal/git"
	"github.com/divvun/gut/internal/log"
	"github.com/divvun/gut/internal/replace"
)

// CommitMessage is the message of the first commit of a generated repository.
const CommitMessage = "Generate project"

// ErrTargetNotEmpty is returned when the target directory already has content.
var ErrTargetNotEmpty = errors.Base("target directory is not empty")

// VCS is the subset of git the generator needs.
type VCS interface {
	ResolveRevision(ctx context.Context, dir, ref string) (string, error)
	ListTreeFiles(ctx context.Context, dir, rev string) ([]git.TreeEntry, error)
	ShowFile(ctx context.Context, dir, rev, path string) ([]byte, error)
	Init(ctx context.Context, dir string) error
	CommitAll(ctx context.Context, dir, message string) error
}

// Options configure a generation.
type Options struct {
	// TemplateDir is a local checkout of the template.
	TemplateDir string
	// Origin is stored in the generated record. Defaults to TemplateDir.
	Origin    string
	TargetDir string
	// Name of the generated repository. Defaults to the base of TargetDir.
	Name         string
	Values       map[string]string
	SkipOptional bool
	NoInit       bool
}

// Result describes a generated repository.
type Result struct {
	Dir            string
	Revision       string
	RevisionNumber int
	Files          []string
}

// Generator instantiates templates through a VCS.
type Generator struct {
	VCS VCS
}

// New returns a generator backed by vcs.
func New(vcs VCS) *Generator {
	return &Generator{VCS: vcs}
}

// RequiredKeys lists the replacement keys the template in templateDir needs.
func RequiredKeys(templateDir string) ([]string, error) {
	tmpl, err := loadTemplate(templateDir)
	if err != nil {
		return nil, err
	}
	return replace.Keys(tmpl.Patterns), nil
}

func loadTemplate(dir string) (*delta.Record, error) {
	tmpl, err := delta.Load(dir)
	if err != nil {
		return nil, err
	}
	if tmpl.Kind != delta.KindTemplate {
		return nil, errors.Errorf("%w: %s is not a template", delta.ErrInvalidState, dir)
	}
	if tmpl.RevisionAnchor == "" {
		return nil, errors.Errorf("%w: template has no published revision, run bump-version in %s", delta.ErrInvalidState, dir)
	}
	return tmpl, nil
}

// Generate writes the template's published revision to opts.TargetDir with
// every placeholder replaced, records the provenance and, unless NoInit is
// set, commits the result to a fresh repository.
func (g *Generator) Generate(ctx context.Context, opts Options) (*Result, error) {
	l := log.FromContext(ctx)

	tmpl, err := loadTemplate(opts.TemplateDir)
	if err != nil {
		return nil, err
	}
	engine, err := replace.Compile(tmpl.Patterns, opts.Values)
	if err != nil {
		return nil, err
	}

	rev, err := g.VCS.ResolveRevision(ctx, opts.TemplateDir, tmpl.RevisionAnchor)
	if err != nil {
		return nil, errors.Errorf("template revision: %w", err)
	}

	origin := opts.Origin
	if origin == "" {
		origin = opts.TemplateDir
	}
	name := opts.Name
	if name == "" {
		name = filepath.Base(opts.TargetDir)
	}
	rec := delta.NewGenerated(origin, name, rev, tmpl.RevisionNumber)
	rec.Patterns = slices.Clone(tmpl.Patterns)
	for k, v := range opts.Values {
		if err := rec.SetReplacement(k, v); err != nil {
			return nil, err
		}
	}

	entries, err := g.VCS.ListTreeFiles(ctx, opts.TemplateDir, rev)
	if err != nil {
		return nil, err
	}

	created, err := prepareTarget(opts.TargetDir)
	if err != nil {
		return nil, err
	}

	res, err := g.write(ctx, opts, tmpl, engine, rev, entries)
	if err == nil {
		err = delta.Save(opts.TargetDir, rec)
	}
	if err == nil && !opts.NoInit {
		err = g.VCS.Init(ctx, opts.TargetDir)
		if err == nil {
			err = g.VCS.CommitAll(ctx, opts.TargetDir, CommitMessage)
		}
	}
	if err != nil {
		if created {
			os.RemoveAll(opts.TargetDir)
		}
		return nil, err
	}

	res.RevisionNumber = tmpl.RevisionNumber
	l.Debug("generated repository", "dir", opts.TargetDir, "revision", rev, "files", len(res.Files))
	return res, nil
}

func (g *Generator) write(ctx context.Context, opts Options, tmpl *delta.Record, engine *replace.Engine, rev string, entries []git.TreeEntry) (*Result, error) {
	res := &Result{Dir: opts.TargetDir, Revision: rev}
	sources := make(map[string]string)

	for _, e := range entries {
		if !tmpl.Generates(e.Path, opts.SkipOptional) {
			continue
		}
		out := engine.Path(e.Path)
		if prev, ok := sources[out]; ok {
			return nil, errors.Errorf("%w: %s and %s both generate %s", delta.ErrInvalidValue, prev, e.Path, out)
		}
		if delta.IsStatePath(out) {
			return nil, errors.Errorf("%w: %s generates %s", delta.ErrInvalidValue, e.Path, out)
		}
		sources[out] = e.Path

		content, err := g.VCS.ShowFile(ctx, opts.TemplateDir, rev, e.Path)
		if err != nil {
			return nil, err
		}
		if err := writeEntry(filepath.Join(opts.TargetDir, filepath.FromSlash(out)), e, rewrite(engine, content)); err != nil {
			return nil, err
		}
		res.Files = append(res.Files, out)
	}
	return res, nil
}

// rewrite replaces placeholders in text content. Content with a NUL byte is
// binary and kept verbatim.
func rewrite(engine *replace.Engine, content []byte) []byte {
	if bytes.IndexByte(content, 0) >= 0 {
		return content
	}
	return engine.Bytes(content)
}

func writeEntry(path string, e git.TreeEntry, content []byte) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return errors.WithStack(err)
	}
	if e.IsSymlink() {
		return errors.WithStack(os.Symlink(string(content), path))
	}
	perm := os.FileMode(0o644)
	if e.IsExecutable() {
		perm = 0o755
	}
	return errors.WithStack(os.WriteFile(path, content, perm))
}

// prepareTarget makes sure dir exists and is empty. It reports whether the
// directory was created.
func prepareTarget(dir string) (bool, error) {
	entries, err := os.ReadDir(dir)
	switch {
	case errors.Is(err, os.ErrNotExist):
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return false, errors.WithStack(err)
		}
		return true, nil
	case err != nil:
		return false, errors.WithStack(err)
	case len(entries) > 0:
		return false, errors.Errorf("%w: %s", ErrTargetNotEmpty, dir)
	}
	return false, nil
}
