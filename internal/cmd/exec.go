// Package cmd provides helpers for executing shell commands with proper error handling.
package cmd

import (
	"bytes"
	"context"
	"os/exec"
	"strconv"
	"strings"
	"time"

	"gitlab.com/tozd/go/errors"

	"github.com/divvun/gut/internal/log"
)

// ExitError is returned when a command ran but exited non-zero.
// Stdout is kept because some git commands (apply, merge-base) report
// through their exit status while still producing output.
type ExitError struct {
	Code   int
	Stderr string
	Stdout []byte
}

func (e *ExitError) Error() string {
	if e.Stderr != "" {
		return e.Stderr
	}
	return "exit status " + strconv.Itoa(e.Code)
}

// RunContext executes a command in dir and returns stderr in the error message if it fails.
func RunContext(ctx context.Context, dir, name string, args ...string) error {
	_, err := run(ctx, dir, nil, name, args...)
	return err
}

// OutputContext executes a command in dir and returns stdout, with stderr in the error if it fails.
func OutputContext(ctx context.Context, dir, name string, args ...string) ([]byte, error) {
	return run(ctx, dir, nil, name, args...)
}

// InputContext executes a command in dir feeding stdin and returns stdout.
func InputContext(ctx context.Context, dir string, stdin []byte, name string, args ...string) ([]byte, error) {
	return run(ctx, dir, stdin, name, args...)
}

func run(ctx context.Context, dir string, stdin []byte, name string, args ...string) ([]byte, error) {
	done := log.FromContext(ctx).Command(dir, name, args...)
	start := time.Now()
	defer func() { done(time.Since(start)) }()

	c := exec.CommandContext(ctx, name, args...)
	c.Dir = dir
	if stdin != nil {
		c.Stdin = bytes.NewReader(stdin)
	}

	var stdout, stderr bytes.Buffer
	c.Stdout = &stdout
	c.Stderr = &stderr

	if err := c.Run(); err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			return stdout.Bytes(), &ExitError{
				Code:   exitErr.ExitCode(),
				Stderr: strings.TrimSpace(stderr.String()),
				Stdout: stdout.Bytes(),
			}
		}
		return nil, errors.Errorf("%s: %w", name, err)
	}
	return stdout.Bytes(), nil
}
