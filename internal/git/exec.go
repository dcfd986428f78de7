package git

import (
	"context"

	"gitlab.com/tozd/go/errors"

	"github.com/divvun/gut/internal/cmd"
)

// gitArgs prepends -C <dir> to args if dir is non-empty.
func gitArgs(dir string, args []string) []string {
	if dir == "" {
		return args
	}
	return append([]string{"-C", dir}, args...)
}

// runGit executes a git command with context support and verbose logging.
func runGit(ctx context.Context, dir string, args ...string) error {
	return cmd.RunContext(ctx, "", "git", gitArgs(dir, args)...)
}

// outputGit executes a git command with context support and verbose logging,
// returning stdout.
func outputGit(ctx context.Context, dir string, args ...string) ([]byte, error) {
	return cmd.OutputContext(ctx, "", "git", gitArgs(dir, args)...)
}

// inputGit feeds stdin to a git command and returns stdout.
func inputGit(ctx context.Context, dir string, stdin []byte, args ...string) ([]byte, error) {
	return cmd.InputContext(ctx, "", stdin, "git", gitArgs(dir, args)...)
}

// exitCode returns the exit status of a failed git command, or -1 when the
// command did not run to completion.
func exitCode(err error) int {
	var exitErr *cmd.ExitError
	if errors.As(err, &exitErr) {
		return exitErr.Code
	}
	return -1
}
