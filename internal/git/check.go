package git

import (
	"context"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"gitlab.com/tozd/go/errors"
)

// ErrGitNotFound indicates git is not installed or not in PATH
var ErrGitNotFound = errors.Base("git not found: please install git (https://git-scm.com)")

// ErrNotARepository is returned when a directory is not inside a git work tree.
var ErrNotARepository = errors.Base("not a git repository")

// CheckGit verifies that git is available in PATH
func CheckGit() error {
	_, err := exec.LookPath("git")
	if err != nil {
		return ErrGitNotFound
	}
	return nil
}

// IsRepo checks if a path is a git repository (has .git dir or file)
func IsRepo(path string) bool {
	info, err := os.Stat(filepath.Join(path, ".git"))
	if err != nil {
		return false
	}
	// .git can be a directory (regular repo) or file (worktree)
	return info.IsDir() || info.Mode().IsRegular()
}

// TopLevel returns the root of the work tree containing dir.
func TopLevel(ctx context.Context, dir string) (string, error) {
	out, err := outputGit(ctx, dir, "rev-parse", "--show-toplevel")
	if err != nil {
		return "", errors.Errorf("%w: %s", ErrNotARepository, dir)
	}
	return strings.TrimSpace(string(out)), nil
}
