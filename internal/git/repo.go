package git

import (
	"bytes"
	"context"
	"strings"

	"gitlab.com/tozd/go/errors"
)

// ErrUnknownRevision is returned when a revision does not name a commit.
var ErrUnknownRevision = errors.Base("unknown revision")

// ResolveRevision returns the full commit SHA named by ref.
func ResolveRevision(ctx context.Context, dir, ref string) (string, error) {
	out, err := outputGit(ctx, dir, "rev-parse", "--verify", "--quiet", ref+"^{commit}")
	if err != nil {
		if ctx.Err() != nil {
			return "", ctx.Err()
		}
		return "", errors.Errorf("%w: %q in %s", ErrUnknownRevision, ref, dir)
	}
	return strings.TrimSpace(string(out)), nil
}

// CurrentRevision returns the SHA of HEAD.
func CurrentRevision(ctx context.Context, dir string) (string, error) {
	return ResolveRevision(ctx, dir, "HEAD")
}

// IsAncestor reports whether ancestor is reachable from rev.
// A commit counts as its own ancestor.
func IsAncestor(ctx context.Context, dir, ancestor, rev string) (bool, error) {
	err := runGit(ctx, dir, "merge-base", "--is-ancestor", ancestor, rev)
	if err == nil {
		return true, nil
	}
	if exitCode(err) == 1 {
		return false, nil
	}
	return false, errors.Errorf("merge-base %s %s: %w", ancestor, rev, err)
}

// DirtyPaths lists paths with staged, unstaged or untracked changes.
func DirtyPaths(ctx context.Context, dir string) ([]string, error) {
	out, err := outputGit(ctx, dir, "status", "--porcelain=v1", "-z", "--untracked-files=all")
	if err != nil {
		return nil, errors.Errorf("status: %w", err)
	}

	var paths []string
	entries := bytes.Split(out, []byte{0})
	for i := 0; i < len(entries); i++ {
		e := entries[i]
		if len(e) < 4 {
			continue
		}
		paths = append(paths, string(e[3:]))
		// Renames and copies are followed by the source path.
		if e[0] == 'R' || e[0] == 'C' {
			i++
		}
	}
	return paths, nil
}

// IsClean reports whether the work tree has no changes outside the excluded
// paths. An exclude entry ending in "/" matches everything below it.
func IsClean(ctx context.Context, dir string, exclude ...string) (bool, error) {
	paths, err := DirtyPaths(ctx, dir)
	if err != nil {
		return false, err
	}
	for _, p := range paths {
		if !excluded(p, exclude) {
			return false, nil
		}
	}
	return true, nil
}

func excluded(path string, exclude []string) bool {
	for _, x := range exclude {
		if path == x || (strings.HasSuffix(x, "/") && strings.HasPrefix(path, x)) {
			return true
		}
	}
	return false
}

// Diff returns the binary-safe unified diff between two revisions with
// rename detection disabled, so every file is a plain add, delete or modify.
func Diff(ctx context.Context, dir, from, to string) ([]byte, error) {
	out, err := outputGit(ctx, dir,
		"-c", "core.quotePath=false",
		"diff", "--no-renames", "--binary", "--full-index",
		"--no-color", "--no-ext-diff", "--no-textconv",
		"--src-prefix=a/", "--dst-prefix=b/",
		from, to, "--")
	if err != nil {
		return nil, errors.Errorf("diff %s..%s: %w", from, to, err)
	}
	return out, nil
}

// ListFiles returns the paths tracked in the index.
func ListFiles(ctx context.Context, dir string) ([]string, error) {
	out, err := outputGit(ctx, dir, "ls-files", "-z")
	if err != nil {
		return nil, errors.Errorf("ls-files: %w", err)
	}
	return splitNul(out), nil
}

// TreeEntry is a blob in a commit tree.
type TreeEntry struct {
	Mode string
	Path string
}

// IsExecutable reports whether the entry has the executable bit.
func (e TreeEntry) IsExecutable() bool { return e.Mode == "100755" }

// IsSymlink reports whether the entry is a symbolic link.
func (e TreeEntry) IsSymlink() bool { return e.Mode == "120000" }

// ListTreeFiles lists the blobs of rev recursively. Submodules are skipped.
func ListTreeFiles(ctx context.Context, dir, rev string) ([]TreeEntry, error) {
	out, err := outputGit(ctx, dir, "ls-tree", "-r", "-z", "--full-tree", rev)
	if err != nil {
		return nil, errors.Errorf("ls-tree %s: %w", rev, err)
	}

	var entries []TreeEntry
	for _, rec := range splitNul(out) {
		// <mode> SP <type> SP <object> TAB <path>
		meta, path, ok := strings.Cut(rec, "\t")
		if !ok {
			continue
		}
		fields := strings.Fields(meta)
		if len(fields) != 3 || fields[1] != "blob" {
			continue
		}
		entries = append(entries, TreeEntry{Mode: fields[0], Path: path})
	}
	return entries, nil
}

// ShowFile returns the content of path at rev.
func ShowFile(ctx context.Context, dir, rev, path string) ([]byte, error) {
	out, err := outputGit(ctx, dir, "cat-file", "blob", rev+":"+path)
	if err != nil {
		return nil, errors.Errorf("cat-file %s:%s: %w", rev, path, err)
	}
	return out, nil
}

// HasPath reports whether path exists at rev.
func HasPath(ctx context.Context, dir, rev, path string) bool {
	return runGit(ctx, dir, "cat-file", "-e", rev+":"+path) == nil
}

func splitNul(b []byte) []string {
	var out []string
	for _, p := range bytes.Split(b, []byte{0}) {
		if len(p) > 0 {
			out = append(out, string(p))
		}
	}
	return out
}
