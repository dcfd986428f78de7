package git

import (
	"context"

	"gitlab.com/tozd/go/errors"
)

// Init creates a repository in dir with main as the initial branch.
func Init(ctx context.Context, dir string) error {
	if err := runGit(ctx, "", "init", "--quiet", "-b", "main", dir); err != nil {
		return errors.Errorf("init %s: %w", dir, err)
	}
	return nil
}

// CommitAll stages every change in dir and commits it.
func CommitAll(ctx context.Context, dir, message string) error {
	if err := runGit(ctx, dir, "add", "-A"); err != nil {
		return errors.Errorf("add: %w", err)
	}
	if err := runGit(ctx, dir, "commit", "--quiet", "-m", message); err != nil {
		return errors.Errorf("commit: %w", err)
	}
	return nil
}

// Clone clones url into dest.
func Clone(ctx context.Context, url, dest string) error {
	if err := runGit(ctx, "", "clone", "--quiet", url, dest); err != nil {
		return errors.Errorf("clone %s: %w", url, err)
	}
	return nil
}

// Fetch updates dir from origin and moves its checked out branch to the
// upstream head, discarding local state. Meant for cache checkouts only.
func Fetch(ctx context.Context, dir string) error {
	if err := runGit(ctx, dir, "fetch", "--quiet", "--prune", "origin"); err != nil {
		return errors.Errorf("fetch: %w", err)
	}
	if err := runGit(ctx, dir, "reset", "--quiet", "--hard", "@{upstream}"); err != nil {
		return errors.Errorf("reset: %w", err)
	}
	return nil
}
