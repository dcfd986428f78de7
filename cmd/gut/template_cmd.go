package main

import (
	"path/filepath"
	"slices"
	"strconv"

	"github.com/spf13/cobra"
	"gitlab.com/tozd/go/errors"

	"github.com/divvun/gut/internal/delta"
	"github.com/divvun/gut/internal/git"
	"github.com/divvun/gut/internal/log"
	"github.com/divvun/gut/internal/output"
	"github.com/divvun/gut/internal/replace"
	"github.com/divvun/gut/internal/ui/static"
	"github.com/divvun/gut/internal/ui/styles"
)

func newTemplateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "template",
		Short:   "Manage templates and the repositories generated from them",
		Aliases: []string{"tpl"},
		GroupID: GroupTemplate,
		Long: `Manage template repositories and keep generated repositories in sync.

A template publishes a revision with bump-version. Generated repositories
record the revision they were last synced to and catch up with apply.`,
		Example: `  gut template init --name lang-und       # Turn the current repo into a template
  gut template add tools/ --ignore        # Never ship tools/
  gut template pattern add __UND__        # Replace __UND__ with each repo's value
  gut template bump-version               # Publish HEAD
  gut template apply -o giellalt -r lang- # Apply template changes to many repos`,
	}

	cmd.AddCommand(newTemplateInitCmd())
	cmd.AddCommand(newTemplateBumpVersionCmd())
	cmd.AddCommand(newTemplateAddCmd())
	cmd.AddCommand(newTemplateRemoveCmd())
	cmd.AddCommand(newTemplatePatternCmd())
	cmd.AddCommand(newTemplateReplacementCmd())
	cmd.AddCommand(newTemplateInstallCmd())
	cmd.AddCommand(newTemplateApplyCmd())
	cmd.AddCommand(newTemplateRefreshCmd())
	cmd.AddCommand(newTemplateStatusCmd())
	cmd.AddCommand(newTemplateShowCmd())
	cmd.AddCommand(newTemplatePatchCmd())

	return cmd
}

func newTemplateInitCmd() *cobra.Command {
	var name string

	cmd := &cobra.Command{
		Use:   "init",
		Short: "Turn the current repository into a template",
		Args:  cobra.NoArgs,
		Long: `Create .gut/delta.toml describing the current repository as a template.

The template has no published revision until bump-version is run.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			out := output.FromContext(ctx)

			dir, err := currentRepo(ctx)
			if err != nil {
				return err
			}
			if _, err := delta.Load(dir); err == nil {
				return errors.Errorf("%w: %s already has a record", delta.ErrInvalidState, delta.Path(dir))
			} else if !errors.Is(err, delta.ErrNotFound) {
				return err
			}

			if name == "" {
				name = filepath.Base(dir)
			}
			if err := delta.Save(dir, delta.NewTemplate(name, "")); err != nil {
				return err
			}
			out.Printf("Initialised template %s in %s\n", name, dir)
			log.FromContext(ctx).Println("Classify files with 'gut template add', commit .gut/ and publish with 'gut template bump-version'.")
			return nil
		},
	}

	cmd.Flags().StringVar(&name, "name", "", "Template name (default: directory name)")

	return cmd
}

func newTemplateBumpVersionCmd() *cobra.Command {
	var (
		revision string
		force    bool
	)

	cmd := &cobra.Command{
		Use:   "bump-version",
		Short: "Publish a revision of the template",
		Args:  cobra.NoArgs,
		Long: `Publish a template revision. Generated repositories apply the changes up
to the published revision.

The revision defaults to HEAD. It must be committed, differ from the current
revision and descend from it; --force skips these checks.`,
		Example: `  gut template bump-version               # Publish HEAD
  gut template bump-version --revision v2 # Publish a tag`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			out := output.FromContext(ctx)
			vcs := git.CLI{}

			dir, rec, err := loadTemplate(ctx)
			if err != nil {
				return err
			}

			rev, err := vcs.ResolveRevision(ctx, dir, revision)
			if err != nil {
				return err
			}

			if !force {
				clean, err := vcs.IsClean(ctx, dir)
				if err != nil {
					return err
				}
				if !clean {
					return errors.Errorf("%w: commit before publishing (or use --force)", delta.ErrInvalidState)
				}
				if rev == rec.RevisionAnchor {
					return errors.Errorf("%w: %s is already published", delta.ErrInvalidState, styles.ShortRev(rev))
				}
				if rec.RevisionAnchor != "" {
					ok, err := vcs.IsAncestor(ctx, dir, rec.RevisionAnchor, rev)
					if err != nil {
						return err
					}
					if !ok {
						return errors.Errorf("%w: %s does not descend from the published %s (use --force)",
							delta.ErrInvalidState, styles.ShortRev(rev), styles.ShortRev(rec.RevisionAnchor))
					}
				}
			}

			previous := rec.RevisionAnchor
			if err := rec.BumpVersion(rev); err != nil {
				return err
			}
			if err := delta.Save(dir, rec); err != nil {
				return err
			}

			if previous == "" {
				out.Printf("Published revision %d at %s\n", rec.RevisionNumber, styles.ShortRev(rev))
			} else {
				out.Printf("Published revision %d at %s (was %s)\n", rec.RevisionNumber, styles.ShortRev(rev), styles.ShortRev(previous))
			}
			log.FromContext(ctx).Println("Commit .gut/delta.toml to make the revision available.")
			return nil
		},
	}

	cmd.Flags().StringVar(&revision, "revision", "HEAD", "Revision to publish")
	cmd.Flags().BoolVar(&force, "force", false, "Publish even if the revision is not a clean descendant")

	return cmd
}

func newTemplateAddCmd() *cobra.Command {
	var (
		optional bool
		ignore   bool
	)

	cmd := &cobra.Command{
		Use:   "add <path>...",
		Short: "Classify template paths",
		Args:  cobra.MinimumNArgs(1),
		Long: `Classify paths of the template. Required paths (the default) are always
generated and synced, optional paths can be skipped at generation and ignored
paths never leave the template.

A trailing slash classifies a directory; glob patterns are allowed.`,
		Example: `  gut template add README.md
  gut template add docs/ --optional
  gut template add 'tools/**' --ignore`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			out := output.FromContext(ctx)

			class := delta.Required
			switch {
			case optional:
				class = delta.Optional
			case ignore:
				class = delta.Ignored
			}

			dir, rec, err := loadTemplate(ctx)
			if err != nil {
				return err
			}
			for _, p := range args {
				if err := rec.Classify(p, class); err != nil {
					return err
				}
			}
			if err := delta.Save(dir, rec); err != nil {
				return err
			}
			for _, p := range args {
				out.Printf("%s %s\n", class, p)
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&optional, "optional", false, "Classify as optional")
	cmd.Flags().BoolVar(&ignore, "ignore", false, "Classify as ignored")
	cmd.MarkFlagsMutuallyExclusive("optional", "ignore")

	return cmd
}

func newTemplateRemoveCmd() *cobra.Command {
	return &cobra.Command{
		Use:     "remove <path>...",
		Short:   "Remove template path classifications",
		Aliases: []string{"rm"},
		Args:    cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			dir, rec, err := loadTemplate(ctx)
			if err != nil {
				return err
			}
			for _, p := range args {
				if err := rec.Unclassify(p); err != nil {
					return err
				}
			}
			if err := delta.Save(dir, rec); err != nil {
				return err
			}
			for _, p := range args {
				output.FromContext(ctx).Printf("Removed %s\n", p)
			}
			return nil
		},
	}
}

func newTemplatePatternCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "pattern",
		Short: "Manage the template's replacement patterns",
		Long: `Manage the patterns that turn template text into repository text.

A pattern without --replace substitutes the value of the key it names:
__UND__ uses the value stored under __UND__ and {{NAME}} the value under NAME.`,
		Example: `  gut template pattern add __UND__
  gut template pattern add 'und-[a-z]+' --regex --replace '{{__UND__}}'
  gut template pattern list
  gut template pattern remove __UND__`,
	}

	cmd.AddCommand(newTemplatePatternListCmd())
	cmd.AddCommand(newTemplatePatternAddCmd())
	cmd.AddCommand(newTemplatePatternRemoveCmd())

	return cmd
}

func newTemplatePatternListCmd() *cobra.Command {
	return &cobra.Command{
		Use:     "list",
		Short:   "List patterns",
		Aliases: []string{"ls"},
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			_, rec, err := loadCurrent(ctx)
			if err != nil {
				return err
			}
			rows := make([][]string, 0, len(rec.Patterns))
			for _, p := range rec.Patterns {
				rows = append(rows, []string{p.Match, strconv.FormatBool(p.Regex), strconv.FormatBool(p.IgnoreCase), p.Template()})
			}
			output.FromContext(ctx).Print(static.RenderTable([]string{"MATCH", "REGEX", "IGNORE CASE", "REPLACE"}, rows))
			return nil
		},
	}
}

func newTemplatePatternAddCmd() *cobra.Command {
	var rule replace.Rule

	cmd := &cobra.Command{
		Use:   "add <match>",
		Short: "Add or update a pattern",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			dir, rec, err := loadTemplate(ctx)
			if err != nil {
				return err
			}
			rule.Match = args[0]
			if err := rec.AddPattern(rule); err != nil {
				return err
			}
			if err := delta.Save(dir, rec); err != nil {
				return err
			}
			output.FromContext(ctx).Printf("Pattern %s -> %s\n", rule.Match, rule.Template())
			return nil
		},
	}

	cmd.Flags().BoolVar(&rule.Regex, "regex", false, "Match is a regular expression")
	cmd.Flags().BoolVar(&rule.IgnoreCase, "ignore-case", false, "Match case-insensitively")
	cmd.Flags().StringVar(&rule.Replace, "replace", "", "Replacement template, referencing values as {{KEY}}")

	return cmd
}

func newTemplatePatternRemoveCmd() *cobra.Command {
	return &cobra.Command{
		Use:     "remove <match>",
		Short:   "Remove a pattern",
		Aliases: []string{"rm"},
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			dir, rec, err := loadTemplate(ctx)
			if err != nil {
				return err
			}
			if err := rec.RemovePattern(args[0]); err != nil {
				return err
			}
			if err := delta.Save(dir, rec); err != nil {
				return err
			}
			output.FromContext(ctx).Printf("Removed pattern %s\n", args[0])
			return nil
		},
	}
}

func newTemplateReplacementCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "replacement",
		Short: "Manage the replacement values of the current repository",
		Example: `  gut template replacement set __UND__ sme
  gut template replacement remove __UND__`,
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "set <key> <value>",
		Short: "Set a replacement value",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			dir, rec, err := loadCurrent(ctx)
			if err != nil {
				return err
			}
			if err := rec.SetReplacement(args[0], args[1]); err != nil {
				return err
			}
			if err := delta.Save(dir, rec); err != nil {
				return err
			}
			output.FromContext(ctx).Printf("%s = %s\n", args[0], args[1])
			return nil
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:     "remove <key>",
		Short:   "Remove a replacement value",
		Aliases: []string{"rm"},
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			dir, rec, err := loadCurrent(ctx)
			if err != nil {
				return err
			}
			if err := rec.RemoveReplacement(args[0]); err != nil {
				return err
			}
			if err := delta.Save(dir, rec); err != nil {
				return err
			}
			output.FromContext(ctx).Printf("Removed %s\n", args[0])
			if slices.Contains(rec.MissingKeys(), args[0]) {
				log.FromContext(ctx).Warn().Str("key", args[0]).Msg("a pattern still uses this key; applying and refreshing will fail until it is set again")
			}
			return nil
		},
	})

	return cmd
}

func newTemplateShowCmd() *cobra.Command {
	var format string

	cmd := &cobra.Command{
		Use:   "show",
		Short: "Print the record of the current repository",
		Args:  cobra.NoArgs,
		Example: `  gut template show
  gut template show --format json`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			_, rec, err := loadCurrent(ctx)
			if err != nil {
				return err
			}
			return output.FromContext(ctx).Encode(format, rec)
		},
	}

	cmd.Flags().StringVar(&format, "format", output.FormatTOML, "Output format: toml, json or yaml")

	return cmd
}
