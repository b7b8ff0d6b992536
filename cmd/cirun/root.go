package main

import (
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/systemstart/cirun/pkg/config"
	"github.com/systemstart/cirun/pkg/logging"
)

var (
	configPath string
	settings   *config.Settings
)

func newRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "cirun",
		Short: "Run CI workflows locally or from webhook events",
		Long: `cirun runs the steps of a workflow strictly in order in a fresh
workspace and stops at the first step that exits non-zero.

Workflows use a GitHub-Actions-like YAML format and are discovered in
.github/workflows and .cirun. Without a workflow file the built-in Rust
workflow is used: checkout, toolchain setup, build, format check, lint
check and tests.

Get started:
  cirun init              # Write the default workflow
  cirun run               # Run it for the current branch`,
		Version:           version,
		SilenceUsage:      true,
		SilenceErrors:     true,
		PersistentPreRunE: setup,
	}

	flags := rootCmd.PersistentFlags()
	flags.StringVarP(&configPath, "config", "c", "", "Path to settings file (default: .cirun.yaml)")
	flags.String("log-type", logging.Tint, "logging type: json, text or tint")
	flags.String("log-level", "info", "logging level: debug, info, warn, error")
	flags.Bool("no-color", false, "Disable coloured output for cirun and its steps")

	rootCmd.SetFlagErrorFunc(func(_ *cobra.Command, err error) error {
		return withExitCode(exitUsage, err)
	})
	rootCmd.SetVersionTemplate(`{{printf "cirun %s\n" .Version}}`)

	rootCmd.AddCommand(
		newRunCmd(),
		newMatchCmd(),
		newValidateCmd(),
		newInitCmd(),
		newServeCmd(),
		newVersionCmd(),
	)
	return rootCmd
}

func setup(cmd *cobra.Command, _ []string) error {
	envLoaded, err := includeEnv()
	if err != nil {
		return err
	}

	s, err := config.Load(configPath, cmd.Flags())
	if err != nil {
		return withExitCode(exitLoadSettingsFailed, err)
	}
	settings = s

	if err := logging.Initialize(s.LogType, s.LogLevel, logging.Options{NoColor: s.NoColor}); err != nil {
		return withExitCode(exitLoadSettingsFailed, err)
	}
	if envLoaded {
		slog.Info("using .env file")
	} else {
		slog.Debug("no .env file found")
	}
	return nil
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the version",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			_, err := fmt.Fprintf(cmd.OutOrStdout(), "cirun %s\n", version)
			return err
		},
	}
}
