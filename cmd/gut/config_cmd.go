package main

import (
	"github.com/spf13/cobra"

	"github.com/divvun/gut/internal/config"
	"github.com/divvun/gut/internal/log"
	"github.com/divvun/gut/internal/output"
)

func newConfigCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "config",
		Short:   "Manage configuration",
		Aliases: []string{"cfg"},
		GroupID: GroupConfig,
		Long: `Manage the global gut configuration: where organisations are checked
out, how many repositories are processed in parallel and how github:
template references are looked up.

GUT_ROOT overrides root for a single invocation.`,
		Example: `  gut config init             # Write the commented defaults
  gut config show --format json
  $EDITOR "$(gut config path)"`,
	}

	cmd.AddCommand(newConfigInitCmd(), newConfigShowCmd(), newConfigPathCmd())

	return cmd
}

func newConfigInitCmd() *cobra.Command {
	var (
		force  bool
		stdout bool
	)

	cmd := &cobra.Command{
		Use:   "init",
		Short: "Create default config file",
		Args:  cobra.NoArgs,
		Example: `  gut config init -f        # Replace an existing file
  gut config init -s        # Print the defaults instead of writing them`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			if stdout {
				output.FromContext(ctx).Print(config.DefaultConfig())
				return nil
			}
			path, err := config.Init(force)
			if err != nil {
				return err
			}
			log.FromContext(ctx).Printf("Wrote %s\n", path)
			return nil
		},
	}

	cmd.Flags().BoolVarP(&force, "force", "f", false, "Replace an existing config file")
	cmd.Flags().BoolVarP(&stdout, "stdout", "s", false, "Print the defaults to stdout")
	cmd.MarkFlagsMutuallyExclusive("force", "stdout")

	return cmd
}

func newConfigShowCmd() *cobra.Command {
	var format string

	cmd := &cobra.Command{
		Use:   "show",
		Short: "Show effective configuration",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			return output.FromContext(ctx).Encode(format, cfgFrom(ctx))
		},
	}

	cmd.Flags().StringVar(&format, "format", output.FormatTOML, "Output format: toml, json or yaml")

	return cmd
}

func newConfigPathCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "path",
		Short: "Print the config file location",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			output.FromContext(cmd.Context()).Println(config.Path())
			return nil
		},
	}
}
