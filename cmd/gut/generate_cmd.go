package main

import (
	"context"
	"maps"
	"path/filepath"
	"slices"

	"github.com/spf13/cobra"
	"gitlab.com/tozd/go/errors"

	"github.com/divvun/gut/internal/config"
	"github.com/divvun/gut/internal/delta"
	"github.com/divvun/gut/internal/forge"
	"github.com/divvun/gut/internal/generate"
	"github.com/divvun/gut/internal/git"
	"github.com/divvun/gut/internal/log"
	"github.com/divvun/gut/internal/output"
	"github.com/divvun/gut/internal/replace"
	"github.com/divvun/gut/internal/ui/prompt"
	"github.com/divvun/gut/internal/ui/styles"
)

func newGenerateCmd() *cobra.Command {
	var (
		set          []string
		skipOptional bool
		noInit       bool
		noPrompt     bool
	)

	cmd := &cobra.Command{
		Use:     "generate-repo <template> <dir>",
		Short:   "Generate a repository from a template",
		Aliases: []string{"generate", "gen"},
		GroupID: GroupTemplate,
		Args:    cobra.ExactArgs(2),
		Long: `Generate a repository from the published revision of a template.

The template is a local directory, a git URL or github:owner/repo. Every
placeholder needs a value: pass them with --set, or answer the prompts when
running in a terminal.`,
		Example: `  gut generate-repo ../template-lang-und lang-sme --set __UND__=sme
  gut generate-repo github:giellalt/template-lang-und lang-sme
  gut generate-repo https://github.com/giellalt/template-lang-und.git lang-sme --skip-optional`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			out := output.FromContext(ctx)

			values, err := parseSet(set)
			if err != nil {
				return err
			}

			src, err := forge.New(cfgFrom(ctx))
			if err != nil {
				return err
			}
			templateDir, origin, err := checkoutTemplate(ctx, src, args[0])
			if err != nil {
				return err
			}
			keys, err := generate.RequiredKeys(templateDir)
			if err != nil {
				return err
			}
			if values, err = collectValues(keys, values, !noPrompt); err != nil {
				return err
			}

			target := args[1]
			if !filepath.IsAbs(target) {
				target = filepath.Join(config.WorkDirFromContext(ctx), target)
			}

			res, err := generate.New(git.CLI{}).Generate(ctx, generate.Options{
				TemplateDir:  templateDir,
				Origin:       origin,
				TargetDir:    target,
				Values:       values,
				SkipOptional: skipOptional,
				NoInit:       noInit,
			})
			if err != nil {
				return err
			}

			out.Printf("%s Generated %s from %s at revision %d (%s), %d files\n",
				styles.SymbolOK, res.Dir, origin, res.RevisionNumber, styles.ShortRev(res.Revision), len(res.Files))
			return nil
		},
	}

	cmd.Flags().StringArrayVar(&set, "set", nil, "Replacement value as KEY=VALUE (repeatable)")
	cmd.Flags().BoolVar(&skipOptional, "skip-optional", false, "Do not generate optional files")
	cmd.Flags().BoolVar(&noInit, "no-init", false, "Do not initialise a git repository")
	cmd.Flags().BoolVar(&noPrompt, "no-prompt", false, "Fail instead of asking for missing values")

	return cmd
}

// checkoutTemplate returns a local checkout of ref and the origin to record.
// Local templates are recorded by absolute path, remote ones by reference.
func checkoutTemplate(ctx context.Context, src *forge.Source, ref string) (dir, origin string, err error) {
	parsed, err := forge.ParseRef(ref)
	if err != nil {
		return "", "", err
	}
	if parsed.Kind == forge.LocalRef && !filepath.IsAbs(parsed.Path) {
		ref = filepath.Join(config.WorkDirFromContext(ctx), parsed.Path)
	}
	dir, err = src.Checkout(ctx, ref)
	if err != nil {
		return "", "", err
	}
	if parsed.Kind == forge.LocalRef {
		return dir, dir, nil
	}
	return dir, ref, nil
}

// collectValues asks for the keys missing from values when prompting is
// allowed and stdin is a terminal. Otherwise the missing keys are left for
// the engine to report.
func collectValues(keys []string, values map[string]string, allowPrompt bool) (map[string]string, error) {
	var missing []string
	for _, k := range keys {
		if _, ok := values[k]; !ok {
			missing = append(missing, k)
		}
	}
	if len(missing) == 0 || !allowPrompt || !prompt.Interactive() {
		return values, nil
	}
	answers, err := prompt.Values(missing)
	if err != nil {
		return nil, err
	}
	maps.Copy(values, answers)
	return values, nil
}

func newTemplateInstallCmd() *cobra.Command {
	var (
		revision string
		set      []string
		noPrompt bool
	)

	cmd := &cobra.Command{
		Use:   "install <template>",
		Short: "Link an existing repository to a template",
		Args:  cobra.ExactArgs(1),
		Long: `Record that the current repository follows a template, without generating
anything. Later applies bring in the template's changes after --revision
(default: the template's published revision).`,
		Example: `  gut template install ../template-lang-und --set __UND__=sme
  gut template install github:giellalt/template-lang-und --revision 1a2b3c4`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			out := output.FromContext(ctx)
			vcs := git.CLI{}

			values, err := parseSet(set)
			if err != nil {
				return err
			}

			dir, err := currentRepo(ctx)
			if err != nil {
				return err
			}
			if _, err := delta.Load(dir); err == nil {
				return errors.Errorf("%w: %s already has a record", delta.ErrInvalidState, delta.Path(dir))
			} else if !errors.Is(err, delta.ErrNotFound) {
				return err
			}

			src, err := forge.New(cfgFrom(ctx))
			if err != nil {
				return err
			}
			templateDir, origin, err := checkoutTemplate(ctx, src, args[0])
			if err != nil {
				return err
			}
			tmpl, err := delta.Load(templateDir)
			if err != nil {
				return err
			}
			if tmpl.Kind != delta.KindTemplate {
				return errors.Errorf("%w: %s is not a template", delta.ErrInvalidState, args[0])
			}

			ref := revision
			if ref == "" {
				ref = tmpl.RevisionAnchor
			}
			if ref == "" {
				return errors.Errorf("%w: template has no published revision, pass --revision", delta.ErrInvalidState)
			}
			rev, err := vcs.ResolveRevision(ctx, templateDir, ref)
			if err != nil {
				return err
			}
			number := 0
			if rev == tmpl.RevisionAnchor {
				number = tmpl.RevisionNumber
			}

			if values, err = collectValues(replace.Keys(tmpl.Patterns), values, !noPrompt); err != nil {
				return err
			}
			if _, err := replace.Compile(tmpl.Patterns, values); err != nil {
				return err
			}

			rec := delta.NewGenerated(origin, filepath.Base(dir), rev, number)
			rec.Patterns = slices.Clone(tmpl.Patterns)
			for _, k := range slices.Sorted(maps.Keys(values)) {
				if err := rec.SetReplacement(k, values[k]); err != nil {
					return err
				}
			}
			if err := delta.Save(dir, rec); err != nil {
				return err
			}

			out.Printf("Installed %s at %s in %s\n", origin, styles.ShortRev(rev), dir)
			log.FromContext(ctx).Println("Commit .gut/ to keep the link.")
			return nil
		},
	}

	cmd.Flags().StringVar(&revision, "revision", "", "Template revision the repository already contains")
	cmd.Flags().StringArrayVar(&set, "set", nil, "Replacement value as KEY=VALUE (repeatable)")
	cmd.Flags().BoolVar(&noPrompt, "no-prompt", false, "Fail instead of asking for missing values")

	return cmd
}
