package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/spf13/cobra"
	"gitlab.com/tozd/go/errors"

	"github.com/divvun/gut/internal/config"
	"github.com/divvun/gut/internal/git"
	"github.com/divvun/gut/internal/log"
	"github.com/divvun/gut/internal/output"
)

// Command group IDs for organizing help output
const (
	GroupTemplate = "template"
	GroupConfig   = "config"
)

func newRootCmd() *cobra.Command {
	var (
		verbose bool
		quiet   bool
		dir     string
	)

	cmd := &cobra.Command{
		Use:   "gut",
		Short: "Keep repositories generated from a template in sync with it",
		Long: `gut generates repositories from template repositories and later applies
the template's changes to them.

Placeholders in the template (for example __UND__) are replaced with values
recorded per repository, both when generating and when applying changes.
Provenance lives in .gut/delta.toml in every template and generated repository.`,
		SilenceUsage:               true,
		SilenceErrors:              true,
		SuggestionsMinimumDistance: 2, // Enable typo suggestions
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if cmd.Name() == "completion" || cmd.Name() == "__complete" || cmd.Name() == "help" {
				return nil
			}

			if verbose && quiet {
				return errors.New("--verbose and --quiet are mutually exclusive")
			}

			ctx := cmd.Context()
			if ctx == nil {
				ctx = context.Background()
			}
			ctx = log.WithLogger(ctx, log.New(cmd.ErrOrStderr(), verbose, quiet))
			ctx = output.WithPrinter(ctx, cmd.OutOrStdout())

			if config.FromContext(ctx) == nil {
				cfg, err := config.Load()
				if err != nil {
					return err
				}
				ctx = config.WithConfig(ctx, &cfg)
			}
			if dir != "" {
				abs, err := filepath.Abs(dir)
				if err != nil {
					return errors.WithStack(err)
				}
				ctx = config.WithWorkDir(ctx, abs)
			}
			cmd.SetContext(ctx)

			return git.CheckGit()
		},
	}

	cmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Show debug output and the git commands being executed")
	cmd.PersistentFlags().BoolVarP(&quiet, "quiet", "q", false, "Suppress all log output")
	cmd.PersistentFlags().StringVarP(&dir, "directory", "C", "", "Run as if gut was started in `dir`")
	cmd.MarkFlagsMutuallyExclusive("verbose", "quiet")

	cmd.Version = versionString()
	cmd.SetVersionTemplate("{{.Version}}\n")

	cmd.AddGroup(
		&cobra.Group{ID: GroupTemplate, Title: "Template Commands:"},
		&cobra.Group{ID: GroupConfig, Title: "Configuration Commands:"},
	)

	cmd.AddCommand(newTemplateCmd())
	cmd.AddCommand(newGenerateCmd())
	cmd.AddCommand(newConfigCmd())

	return cmd
}

// Execute runs the command line and returns the process exit code.
func Execute() int {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	root := newRootCmd()
	err := root.ExecuteContext(ctx)
	if err == nil {
		return 0
	}

	var exit *exitError
	if errors.As(err, &exit) {
		if exit.err != nil {
			printError(root, exit.err)
		}
		return exit.code
	}
	printError(root, err)
	return 1
}

func printError(root *cobra.Command, err error) {
	if verbose, _ := root.PersistentFlags().GetBool("verbose"); verbose {
		fmt.Fprintf(os.Stderr, "gut: %+v\n", err)
		return
	}
	fmt.Fprintf(os.Stderr, "gut: %s\n", err)
	fmt.Fprintln(os.Stderr, "Run 'gut -h' for help")
}
