package main

import (
	"context"
	"fmt"
	"strings"

	"github.com/spf13/cobra"
	"gitlab.com/tozd/go/errors"

	"github.com/divvun/gut/internal/config"
	"github.com/divvun/gut/internal/delta"
	"github.com/divvun/gut/internal/git"
	"github.com/divvun/gut/internal/log"
	"github.com/divvun/gut/internal/repos"
	"github.com/divvun/gut/internal/ui/progress"
)

// exitError ends the process with code. A nil err prints nothing, for
// outcomes the command already reported.
type exitError struct {
	code int
	err  error
}

func (e *exitError) Error() string {
	if e.err == nil {
		return fmt.Sprintf("exit status %d", e.code)
	}
	return e.err.Error()
}

func (e *exitError) Unwrap() error {
	return e.err
}

// exitConflicted is the exit code of an apply that left conflicts.
const exitConflicted = 2

// cfgFrom returns the loaded config, or the defaults outside the root command.
func cfgFrom(ctx context.Context) *config.Config {
	if cfg := config.FromContext(ctx); cfg != nil {
		return cfg
	}
	cfg := config.Default()
	return &cfg
}

// currentRepo returns the top level of the repository containing the work dir.
func currentRepo(ctx context.Context) (string, error) {
	return git.TopLevel(ctx, config.WorkDirFromContext(ctx))
}

// loadCurrent loads the record of the current repository.
func loadCurrent(ctx context.Context) (string, *delta.Record, error) {
	dir, err := currentRepo(ctx)
	if err != nil {
		return "", nil, err
	}
	rec, err := delta.Load(dir)
	if err != nil {
		return "", nil, err
	}
	return dir, rec, nil
}

// loadTemplate loads the current repository's record and requires it to be
// a template record.
func loadTemplate(ctx context.Context) (string, *delta.Record, error) {
	dir, rec, err := loadCurrent(ctx)
	if err != nil {
		return "", nil, err
	}
	if rec.Kind != delta.KindTemplate {
		return "", nil, errors.Errorf("%w: %s is a %s repository, not a template", delta.ErrInvalidState, dir, rec.Kind)
	}
	return dir, rec, nil
}

// targetFlags select the repositories a multi-repo command runs on.
type targetFlags struct {
	organisation string
	regex        string
}

func (f *targetFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVarP(&f.organisation, "organisation", "o", "", "Run on the repositories of this organisation (default: default_organisation)")
	cmd.Flags().StringVarP(&f.regex, "regex", "r", "", "Run on repositories whose name matches this regular expression")
}

// resolve returns the selected repositories. Without -o and -r it is the
// current repository.
func (f *targetFlags) resolve(ctx context.Context) ([]string, error) {
	if f.organisation == "" && f.regex == "" {
		dir, err := currentRepo(ctx)
		if err != nil {
			return nil, err
		}
		return []string{dir}, nil
	}

	orgDir, err := cfgFrom(ctx).OrganisationDir(f.organisation)
	if err != nil {
		return nil, err
	}
	dirs, err := repos.Find(orgDir, f.regex)
	if err != nil {
		return nil, err
	}
	if len(dirs) == 0 {
		if similar := repos.Similar(orgDir, f.regex); len(similar) > 0 {
			return nil, errors.Errorf("%w: no repository in %s matches %q (did you mean %s?)", delta.ErrNotFound, orgDir, f.regex, strings.Join(similar[:min(3, len(similar))], ", "))
		}
		return nil, errors.Errorf("%w: no repository in %s matches %q", delta.ErrNotFound, orgDir, f.regex)
	}
	return dirs, nil
}

// parseSet parses repeated KEY=VALUE flags.
func parseSet(values []string) (map[string]string, error) {
	out := make(map[string]string, len(values))
	for _, kv := range values {
		key, value, ok := strings.Cut(kv, "=")
		key = strings.TrimSpace(key)
		if !ok || key == "" {
			return nil, errors.Errorf("%w: --set %q (want KEY=VALUE)", delta.ErrInvalidValue, kv)
		}
		out[key] = value
	}
	return out, nil
}

// forEachRepo runs fn over dirs with the configured parallelism, showing a
// progress counter on terminals.
func forEachRepo[T any](ctx context.Context, label string, dirs []string, fn func(ctx context.Context, dir string) (T, error)) []repos.Result[T] {
	counter := progress.StartCounter(label, len(dirs), !log.FromContext(ctx).IsQuiet())
	defer counter.Stop()

	return repos.ForEach(ctx, dirs, cfgFrom(ctx).Jobs, func(ctx context.Context, dir string) (T, error) {
		defer counter.Done()
		return fn(ctx, dir)
	})
}
