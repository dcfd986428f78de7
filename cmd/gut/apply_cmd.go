package main

import (
	"context"
	"path/filepath"
	"strconv"
	"time"

	"github.com/atotto/clipboard"
	"github.com/spf13/cobra"
	"gitlab.com/tozd/go/errors"

	"github.com/divvun/gut/internal/apply"
	"github.com/divvun/gut/internal/delta"
	"github.com/divvun/gut/internal/forge"
	"github.com/divvun/gut/internal/git"
	"github.com/divvun/gut/internal/log"
	"github.com/divvun/gut/internal/output"
	"github.com/divvun/gut/internal/repos"
	"github.com/divvun/gut/internal/ui/static"
	"github.com/divvun/gut/internal/ui/styles"
)

func newTemplateApplyCmd() *cobra.Command {
	var (
		resume  bool
		abort   bool
		targets targetFlags
	)

	cmd := &cobra.Command{
		Use:   "apply",
		Short: "Apply template changes to generated repositories",
		Args:  cobra.NoArgs,
		Long: `Apply the template changes a generated repository has not incorporated yet.

A clean apply stages the changes for review. Commit them and run
'gut template apply --continue' to record the new template revision.
Hunks that do not apply are written to .rej files; resolve them, commit and
continue, or run 'gut template apply --abort' to restore the repository.

Exit status is 2 when a repository was left with conflicts.`,
		Example: `  gut template apply                       # Current repository
  gut template apply --continue            # After committing the applied changes
  gut template apply --abort               # Give up and restore touched files
  gut template apply -o giellalt -r '^lang-' # Every matching repository`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			dirs, err := targets.resolve(ctx)
			if err != nil {
				return err
			}
			src, err := forge.New(cfgFrom(ctx))
			if err != nil {
				return err
			}
			o := apply.New(git.CLI{}, src)

			step, label := o.Start, "Applying template"
			switch {
			case resume:
				step, label = o.Continue, "Completing apply"
			case abort:
				step, label = o.Abort, "Aborting apply"
			}

			results := forEachRepo(ctx, label, dirs, step)
			return reportApply(ctx, results)
		},
	}

	cmd.Flags().BoolVar(&resume, "continue", false, "Record the applied revision once the changes are committed")
	cmd.Flags().BoolVar(&abort, "abort", false, "Restore the files touched by the apply in progress")
	cmd.MarkFlagsMutuallyExclusive("continue", "abort")
	targets.register(cmd)

	return cmd
}

// reportApply prints one line per repository and turns failures into the
// exit status.
func reportApply(ctx context.Context, results []repos.Result[*apply.Result]) error {
	out := output.FromContext(ctx)
	l := log.FromContext(ctx)

	var failed, conflicted, patched int
	var lastErr error
	for _, r := range results {
		name := filepath.Base(r.Dir)
		if r.Err != nil {
			failed++
			lastErr = r.Err
			out.Printf("%s %s: %s\n", styles.ErrorStyle.Render(styles.SymbolFailed), name, r.Err)
			continue
		}

		res := r.Value
		switch {
		case res.UpToDate:
			out.Printf("%s %s: already up to date at %s\n", styles.FormatState("up_to_date"), name, styles.ShortRev(res.To))
		case res.State == apply.Completed:
			out.Printf("%s %s: %s -> %s\n", styles.FormatState(string(res.State)), name, styles.ShortRev(res.From), styles.ShortRev(res.To))
		case res.State == apply.Patched:
			patched++
			out.Printf("%s %s: %d paths staged (%s -> %s)\n", styles.FormatState(string(res.State)), name, len(res.Paths), styles.ShortRev(res.From), styles.ShortRev(res.To))
		case res.State == apply.Conflicted:
			conflicted++
			out.Printf("%s %s: %d of %d paths did not apply\n", styles.FormatState(string(res.State)), name, len(res.Conflicts), len(res.Paths))
			out.Print(static.RenderConflicts(res.Conflicts))
		default:
			out.Printf("%s %s\n", styles.FormatState(string(res.State)), name)
		}
	}

	if patched > 0 {
		l.Println("Review and commit the staged changes, then run 'gut template apply --continue'.")
	}
	if conflicted > 0 {
		l.Println("Resolve the .rej files and commit, then run 'gut template apply --continue' (or --abort).")
	}

	switch {
	case failed == 1 && len(results) == 1:
		return lastErr
	case failed > 0:
		return errors.Errorf("%d of %d repositories failed", failed, len(results))
	case conflicted > 0:
		return &exitError{code: exitConflicted}
	}
	return nil
}

func newTemplatePatchCmd() *cobra.Command {
	var copyPatch bool

	cmd := &cobra.Command{
		Use:   "patch",
		Short: "Print the patch of the apply in progress",
		Args:  cobra.NoArgs,
		Long: `Print the rewritten template patch of the apply in progress in the current
repository, for example to apply a rejected hunk by hand.`,
		Example: `  gut template patch
  gut template patch --copy   # Also copy it to the clipboard`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			dir, err := currentRepo(ctx)
			if err != nil {
				return err
			}
			s, err := apply.LoadSession(dir)
			if err != nil {
				return err
			}
			p, err := s.Patch()
			if err != nil {
				return err
			}

			output.FromContext(ctx).Print(string(p))
			if copyPatch {
				if err := clipboard.WriteAll(string(p)); err != nil {
					return errors.Errorf("copy to clipboard: %w", err)
				}
				log.FromContext(ctx).Println("Copied patch to clipboard")
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&copyPatch, "copy", false, "Copy the patch to the clipboard")

	return cmd
}

// repoStatus is one row of template status.
type repoStatus struct {
	Name    string
	Kind    delta.Kind
	Anchor  string
	Number  int
	Session apply.State
	Since   time.Time
}

func newTemplateStatusCmd() *cobra.Command {
	var targets targetFlags

	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show the template state of repositories",
		Args:  cobra.NoArgs,
		Example: `  gut template status
  gut template status -o giellalt -r '^lang-'`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			dirs, err := targets.resolve(ctx)
			if err != nil {
				return err
			}
			results := forEachRepo(ctx, "Reading status", dirs, func(_ context.Context, dir string) (repoStatus, error) {
				return statusOf(dir)
			})

			rows := make([][]string, 0, len(results))
			for _, r := range results {
				name := filepath.Base(r.Dir)
				if r.Err != nil {
					rows = append(rows, []string{name, "", "", "", styles.FormatState("failed") + " " + r.Err.Error()})
					continue
				}
				s := r.Value
				state := styles.FormatState(string(s.Session))
				if s.Session.InProgress() {
					state += styles.MutedStyle.Render(" since " + s.Since.Local().Format(time.DateTime))
				}
				rows = append(rows, []string{name, string(s.Kind), styles.ShortRev(s.Anchor), strconv.Itoa(s.Number), state})
			}
			output.FromContext(ctx).Print(static.RenderTable([]string{"REPOSITORY", "KIND", "REVISION", "NUMBER", "APPLY"}, rows))
			return nil
		},
	}

	targets.register(cmd)

	return cmd
}

func statusOf(dir string) (repoStatus, error) {
	rec, err := delta.Load(dir)
	if err != nil {
		return repoStatus{}, err
	}
	s := repoStatus{Name: rec.Name, Kind: rec.Kind, Anchor: rec.RevisionAnchor, Number: rec.RevisionNumber, Session: apply.NotStarted}
	session, err := apply.LoadSession(dir)
	switch {
	case err == nil:
		s.Session, s.Since = session.State, session.StartedAt
	case !errors.Is(err, delta.ErrNotFound):
		return repoStatus{}, err
	}
	return s, nil
}
