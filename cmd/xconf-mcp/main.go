package main

import (
	"context"
	"os"

	"github.com/sha1n/xconf-mcp/internal/app"
	"github.com/sha1n/xconf-mcp/internal/config"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
)

var (
	// Version is injected at build time
	Version = "dev"
	// Build is injected at build time
	Build = "unknown"
	// ProgramName is injected at build time
	ProgramName = "xconf-mcp"
)

func main() {
	runMain(os.Args, os.Exit)
}

func runMain(args []string, exit func(int)) {
	if err := Execute(Version, Build, ProgramName, args[1:]); err != nil {
		exit(1)
	}
}

// Execute is the entry point for the CLI, extracted for testing
func Execute(version, build, programName string, args []string) error {
	rootCmd := newRootCmd(version, programName)
	rootCmd.SetArgs(args)
	return rootCmd.Execute()
}

func newRootCmd(version, programName string) *cobra.Command {
	rootCmd := &cobra.Command{
		Use:     programName,
		Short:   "eXist collection configuration MCP server",
		Long:    "Edit and search eXist-db collection index configurations (collection.xconf) over MCP",
		Version: version,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runWithFlags(cmd.Flags(), version)
		},
	}

	rootCmd.SetVersionTemplate(`{{.Version}}
`)

	app.RegisterFlags(rootCmd.Flags())
	rootCmd.AddCommand(newShowCmd())

	return rootCmd
}

func newShowCmd() *cobra.Command {
	var view string

	cmd := &cobra.Command{
		Use:   "show <collection>",
		Short: "Print the index configuration of a collection",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			params := app.ShowParams{
				LoadSettings:  config.LoadSettingsWithFlags,
				ValidSettings: config.ValidateSettings,
				Out:           cmd.OutOrStdout(),
			}
			return app.Show(cmd.Context(), params, cmd.Flags(), args[0], view)
		},
	}

	cmd.Flags().StringVarP(&view, "output", "o", "xml", "Output format: xml, tree or yaml")
	app.RegisterStoreFlags(cmd.Flags())

	return cmd
}

func runWithFlags(flags *pflag.FlagSet, version string) error {
	return app.RunWithDeps(context.Background(), app.DefaultRunParams(), flags, version)
}
