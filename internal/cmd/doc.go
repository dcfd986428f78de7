// Package cmd runs external commands with context support.
//
// stderr of a failed command is folded into the returned [ExitError], so a
// failing git call reads like git's own message. In verbose mode every
// command line and its duration is echoed through the context logger.
//
// # Usage
//
//	if err := cmd.RunContext(ctx, dir, "git", "fetch", "--quiet"); err != nil {
//	    return err // includes git's stderr
//	}
//
//	out, err := cmd.OutputContext(ctx, dir, "git", "ls-files", "-z")
//
//	// Feed a patch on stdin:
//	_, err = cmd.InputContext(ctx, dir, patch, "git", "apply", "--reject", "-")
//
// # Design Notes
//
// gut shells out to the git CLI rather than using a Go git library, so
// user configuration (SSH keys, credential helpers, attributes) applies.
package cmd
