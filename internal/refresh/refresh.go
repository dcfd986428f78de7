// Package refresh re-runs the replacement rules of a generated repository
// over its tracked files.
//
// It repairs placeholders that slipped into a repository, for example
// through hand-merged template changes.
package refresh

import (
	"bytes"
	"context"
	"maps"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/aymanbagabas/go-udiff"
	"github.com/bmatcuk/doublestar/v4"
	"gitlab.com/tozd/go/errors"

	"github.com/divvun/gut/internal/delta"
	"github.com/divvun/gut/internal/log"
	"github.com/divvun/gut/internal/replace"
)

// ErrNoReplacements is returned for records without replacement values.
var ErrNoReplacements = errors.Base("no replacements defined")

// binarySniffLen is how much of a file is searched for a NUL byte, as git does.
const binarySniffLen = 8000

// VCS is the subset of git refresh needs.
type VCS interface {
	ListFiles(ctx context.Context, dir string) ([]string, error)
}

// Options select what Refresh rewrites.
type Options struct {
	DryRun bool
	// Files limits the refresh to paths matching any of these globs. A
	// pattern without glob characters matches a path equal to it or ending
	// in it.
	Files []string
}

// Change is a file whose content the rules change.
type Change struct {
	Path string
	// Diff is the unified diff of the change, set in dry-run mode.
	Diff string
}

// Failure is a file that could not be refreshed.
type Failure struct {
	Path string
	Err  error
}

// Report summarizes a refresh of one repository.
type Report struct {
	Repo    string
	DryRun  bool
	Changed []Change
	Failed  []Failure
	// Skipped counts binary and non-regular files.
	Skipped int
}

// Refresh rewrites every tracked text file of repoDir with the record's
// rules. Files that fail are reported and do not stop the refresh.
func Refresh(ctx context.Context, vcs VCS, repoDir string, opts Options) (*Report, error) {
	l := log.FromContext(ctx)

	rec, err := delta.Load(repoDir)
	if err != nil {
		return nil, err
	}
	if len(rec.Replacements) == 0 {
		return nil, errors.Errorf("%w in %s", ErrNoReplacements, delta.Path(repoDir))
	}
	engine, err := replace.Compile(rules(rec), rec.Replacements)
	if err != nil {
		return nil, err
	}

	for _, p := range opts.Files {
		if !doublestar.ValidatePattern(p) {
			return nil, errors.Errorf("%w: bad file pattern %q", delta.ErrInvalidValue, p)
		}
	}

	files, err := vcs.ListFiles(ctx, repoDir)
	if err != nil {
		return nil, err
	}

	report := &Report{Repo: repoDir, DryRun: opts.DryRun}
	for _, f := range files {
		if delta.IsStatePath(f) || !selected(f, opts.Files) {
			continue
		}
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		change, skip, err := refreshFile(repoDir, f, engine, opts.DryRun)
		switch {
		case err != nil:
			report.Failed = append(report.Failed, Failure{Path: f, Err: err})
		case skip != notSkipped:
			report.Skipped++
			if skip == skipBinary {
				l.Warn().Str("repo", repoDir).Str("path", f).Msg("skipping binary file")
			}
		case change != nil:
			report.Changed = append(report.Changed, *change)
		}
	}

	l.Debug("refreshed repository", "repo", repoDir, "files", len(files), "changed", len(report.Changed), "dry_run", opts.DryRun)
	return report, nil
}

// rules returns the record's patterns. Records without patterns replace
// every replacement key case-insensitively.
func rules(rec *delta.Record) []replace.Rule {
	if len(rec.Patterns) > 0 {
		return rec.Patterns
	}
	var out []replace.Rule
	for _, key := range slices.Sorted(maps.Keys(rec.Replacements)) {
		out = append(out, replace.Rule{Match: key, IgnoreCase: true, Replace: "{{" + key + "}}"})
	}
	return out
}

func selected(path string, patterns []string) bool {
	if len(patterns) == 0 {
		return true
	}
	for _, p := range patterns {
		if strings.ContainsAny(p, "*?[{") {
			if ok, _ := doublestar.Match(p, path); ok {
				return true
			}
			continue
		}
		if path == p || strings.HasSuffix(path, "/"+p) {
			return true
		}
	}
	return false
}

type skipReason int

const (
	notSkipped skipReason = iota
	skipMissing
	skipIrregular
	skipBinary
)

func refreshFile(repoDir, rel string, engine *replace.Engine, dryRun bool) (*Change, skipReason, error) {
	path := filepath.Join(repoDir, filepath.FromSlash(rel))
	info, err := os.Lstat(path)
	if errors.Is(err, os.ErrNotExist) {
		// Deleted but not staged.
		return nil, skipMissing, nil
	}
	if err != nil {
		return nil, notSkipped, errors.WithStack(err)
	}
	if !info.Mode().IsRegular() {
		return nil, skipIrregular, nil
	}

	content, err := os.ReadFile(path)
	if err != nil {
		return nil, notSkipped, errors.WithStack(err)
	}
	if isBinary(content) {
		return nil, skipBinary, nil
	}

	updated := engine.String(string(content))
	if updated == string(content) {
		return nil, notSkipped, nil
	}

	change := &Change{Path: rel}
	if dryRun {
		change.Diff = udiff.Unified("a/"+rel, "b/"+rel, string(content), updated)
		return change, notSkipped, nil
	}
	if err := os.WriteFile(path, []byte(updated), info.Mode().Perm()); err != nil {
		return nil, notSkipped, errors.WithStack(err)
	}
	return change, notSkipped, nil
}

func isBinary(content []byte) bool {
	if len(content) > binarySniffLen {
		content = content[:binarySniffLen]
	}
	return bytes.IndexByte(content, 0) >= 0
}
