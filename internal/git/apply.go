package git

import (
	"context"
	"os"
	"path/filepath"
	"strings"

	"gitlab.com/tozd/go/errors"
)

// Conflict is a path whose patch could not be applied cleanly. Hunks holds
// the rejected hunks, or git's error message when the whole file failed.
type Conflict struct {
	Path  string `toml:"path" json:"path" yaml:"path"`
	Hunks string `toml:"hunks" json:"hunks" yaml:"hunks"`
}

// ApplyResult describes the outcome of ApplyPatch.
type ApplyResult struct {
	// Rejects are the .rej files written next to conflicting paths.
	Rejects   []string
	Conflicts []Conflict
}

// Clean reports whether every hunk applied.
func (r *ApplyResult) Clean() bool {
	return len(r.Conflicts) == 0
}

// ApplyPatch applies a unified diff to the work tree of dir. Hunks that do
// not apply are written to <path>.rej while the rest of the patch is kept,
// so a failed application is reported as conflicts rather than an error.
// paths are the paths touched by the patch.
func ApplyPatch(ctx context.Context, dir string, patch []byte, paths []string) (*ApplyResult, error) {
	_, err := inputGit(ctx, dir, patch, "apply", "--reject", "--whitespace=nowarn", "-")
	if err == nil {
		return &ApplyResult{}, nil
	}
	if ctx.Err() != nil {
		return nil, ctx.Err()
	}

	res := &ApplyResult{}
	messages := errorLines(err.Error())
	for _, p := range paths {
		rej := p + ".rej"
		data, readErr := os.ReadFile(filepath.Join(dir, rej))
		if readErr == nil {
			res.Rejects = append(res.Rejects, rej)
			res.Conflicts = append(res.Conflicts, Conflict{Path: p, Hunks: string(data)})
			continue
		}
		if msg, ok := messages[p]; ok {
			res.Conflicts = append(res.Conflicts, Conflict{Path: p, Hunks: msg})
		}
	}
	if len(res.Conflicts) == 0 {
		return nil, errors.Errorf("apply: %w", err)
	}
	return res, nil
}

// errorLines groups "error: <path>: <message>" lines of git apply by path.
func errorLines(stderr string) map[string]string {
	out := make(map[string]string)
	for _, line := range strings.Split(stderr, "\n") {
		msg, ok := strings.CutPrefix(line, "error: ")
		if !ok {
			continue
		}
		if p, ok := strings.CutPrefix(msg, "patch failed: "); ok {
			// patch failed: <path>:<line>
			if i := strings.LastIndex(p, ":"); i > 0 {
				out[p[:i]] = strings.TrimSpace(out[p[:i]] + "\n" + line)
			}
			continue
		}
		if i := strings.Index(msg, ": "); i > 0 {
			out[msg[:i]] = strings.TrimSpace(out[msg[:i]] + "\n" + line)
		}
	}
	return out
}

// StagePaths adds the current state of paths, including deletions, to the index.
func StagePaths(ctx context.Context, dir string, paths []string) error {
	if len(paths) == 0 {
		return nil
	}
	args := append([]string{"add", "-A", "--"}, paths...)
	if err := runGit(ctx, dir, args...); err != nil {
		return errors.Errorf("stage: %w", err)
	}
	return nil
}

// RevertPaths restores paths in the index and work tree to their content at
// base. Paths that did not exist at base are removed.
func RevertPaths(ctx context.Context, dir, base string, paths []string) error {
	var restore []string
	for _, p := range paths {
		if HasPath(ctx, dir, base, p) {
			restore = append(restore, p)
			continue
		}
		if err := runGit(ctx, dir, "rm", "--cached", "--quiet", "--ignore-unmatch", "--", p); err != nil {
			return errors.Errorf("unstage %s: %w", p, err)
		}
		if err := os.Remove(filepath.Join(dir, p)); err != nil && !os.IsNotExist(err) {
			return errors.WithStack(err)
		}
		removeEmptyParents(dir, p)
	}

	if len(restore) > 0 {
		args := append([]string{"checkout", base, "--"}, restore...)
		if err := runGit(ctx, dir, args...); err != nil {
			return errors.Errorf("restore: %w", err)
		}
	}
	return nil
}

func removeEmptyParents(root, path string) {
	for d := filepath.Dir(path); d != "." && d != "/"; d = filepath.Dir(d) {
		// os.Remove fails on non-empty directories, which ends the walk.
		if os.Remove(filepath.Join(root, d)) != nil {
			return
		}
	}
}
