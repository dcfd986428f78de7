// Package repos selects the repositories of an organisation and runs work
// over them in parallel.
package repos

import (
	"context"
	"os"
	"path/filepath"
	"regexp"

	"github.com/sahilm/fuzzy"
	"gitlab.com/tozd/go/errors"
	"golang.org/x/sync/errgroup"

	"github.com/divvun/gut/internal/git"
)

// Find returns the git repositories directly below dir whose folder name
// matches pattern, in name order. An empty pattern matches every repository.
func Find(dir, pattern string) ([]string, error) {
	var re *regexp.Regexp
	if pattern != "" {
		var err error
		if re, err = regexp.Compile(pattern); err != nil {
			return nil, errors.Errorf("invalid repository filter %q: %w", pattern, err)
		}
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, errors.Errorf("failed to read directory %s: %w", dir, err)
	}

	var found []string
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		if re != nil && !re.MatchString(entry.Name()) {
			continue
		}
		path := filepath.Join(dir, entry.Name())
		if git.IsRepo(path) {
			found = append(found, path)
		}
	}
	return found, nil
}

// Similar returns repository names below dir resembling search, best match
// first. It backs "did you mean" hints when Find comes back empty.
func Similar(dir, search string) []string {
	all, err := Find(dir, "")
	if err != nil || search == "" {
		return nil
	}
	names := make([]string, len(all))
	for i, p := range all {
		names[i] = filepath.Base(p)
	}
	var out []string
	for _, m := range fuzzy.Find(search, names) {
		out = append(out, m.Str)
	}
	return out
}

// Result is the outcome of fn for one repository.
type Result[T any] struct {
	Dir   string
	Value T
	Err   error
}

// ForEach runs fn for every dir with at most limit calls in flight. A failing
// repository does not stop the others; results keep the order of dirs.
// Repeated dirs are processed once.
func ForEach[T any](ctx context.Context, dirs []string, limit int, fn func(ctx context.Context, dir string) (T, error)) []Result[T] {
	dirs = unique(dirs)
	results := make([]Result[T], len(dirs))
	if limit < 1 {
		limit = 1
	}

	var g errgroup.Group
	g.SetLimit(limit)
	for i, dir := range dirs {
		results[i].Dir = dir
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				results[i].Err = err
				return nil
			}
			results[i].Value, results[i].Err = fn(ctx, dir)
			return nil
		})
	}
	g.Wait()
	return results
}

func unique(dirs []string) []string {
	seen := make(map[string]bool, len(dirs))
	out := make([]string, 0, len(dirs))
	for _, d := range dirs {
		key := filepath.Clean(d)
		if !seen[key] {
			seen[key] = true
			out = append(out, d)
		}
	}
	return out
}
