package main

import (
	"context"
	"path/filepath"

	"github.com/spf13/cobra"
	"gitlab.com/tozd/go/errors"

	"github.com/divvun/gut/internal/git"
	"github.com/divvun/gut/internal/output"
	"github.com/divvun/gut/internal/refresh"
	"github.com/divvun/gut/internal/repos"
	"github.com/divvun/gut/internal/ui/styles"
)

func newTemplateRefreshCmd() *cobra.Command {
	var (
		opts    refresh.Options
		targets targetFlags
	)

	cmd := &cobra.Command{
		Use:   "refresh",
		Short: "Replace placeholders left in generated repositories",
		Args:  cobra.NoArgs,
		Long: `Run the replacement patterns over every tracked text file again, fixing
placeholders that slipped in, for example through hand-merged changes.

Records without patterns replace each replacement key case-insensitively.`,
		Example: `  gut template refresh --dry-run           # Show the diff only
  gut template refresh --files '**/*.md'   # Only markdown files
  gut template refresh -o giellalt -r '^lang-'`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			dirs, err := targets.resolve(ctx)
			if err != nil {
				return err
			}
			results := forEachRepo(ctx, "Refreshing", dirs, func(ctx context.Context, dir string) (*refresh.Report, error) {
				return refresh.Refresh(ctx, git.CLI{}, dir, opts)
			})
			return reportRefresh(ctx, results)
		},
	}

	cmd.Flags().BoolVarP(&opts.DryRun, "dry-run", "n", false, "Print the changes instead of writing them")
	cmd.Flags().StringArrayVar(&opts.Files, "files", nil, "Only refresh files matching this glob (repeatable)")
	targets.register(cmd)

	return cmd
}

func reportRefresh(ctx context.Context, results []repos.Result[*refresh.Report]) error {
	out := output.FromContext(ctx)

	var failed int
	var lastErr error
	for _, r := range results {
		name := filepath.Base(r.Dir)
		if r.Err != nil {
			failed++
			lastErr = r.Err
			out.Printf("%s %s: %s\n", styles.ErrorStyle.Render(styles.SymbolFailed), name, r.Err)
			continue
		}

		rep := r.Value
		verb := "updated"
		if rep.DryRun {
			verb = "would update"
		}
		out.Printf("%s %s: %s %d files\n", styles.SuccessStyle.Render(styles.SymbolOK), name, verb, len(rep.Changed))
		for _, c := range rep.Changed {
			if c.Diff != "" {
				out.Print(c.Diff)
				continue
			}
			out.Printf("  %s\n", c.Path)
		}
		for _, f := range rep.Failed {
			out.Printf("  %s %s: %s\n", styles.ErrorStyle.Render(styles.SymbolFailed), f.Path, f.Err)
		}
		if len(rep.Failed) > 0 {
			failed++
			lastErr = errors.Errorf("%s: %d files could not be refreshed", name, len(rep.Failed))
		}
	}

	switch {
	case failed == 1 && len(results) == 1:
		return lastErr
	case failed > 0:
		return errors.Errorf("%d of %d repositories failed", failed, len(results))
	}
	return nil
}
