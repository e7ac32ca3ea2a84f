package main

import (
	"fmt"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/jamesainslie/trawl/pkg/trawl/config"
)

var (
	okColor   = color.New(color.FgGreen)
	warnColor = color.New(color.FgYellow)
)

func newConfigCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Manage configuration",
		Long: `Manage trawl configuration settings.

Configuration is loaded from:
  1. $XDG_CONFIG_HOME/trawl/config.yaml (if set)
  2. ~/.config/trawl/config.yaml

Environment variables override config file settings using the TRAWL_ prefix:
  TRAWL_THREADS=8
  TRAWL_BATCH_SIZE=200
  TRAWL_LOGGING_LEVEL=debug`,
	}

	cmd.AddCommand(
		&cobra.Command{
			Use:   "show",
			Short: "Show the effective configuration",
			Args:  cobra.NoArgs,
			RunE:  a.runConfigShow,
		},
		&cobra.Command{
			Use:   "init",
			Short: "Create a default configuration file",
			Args:  cobra.NoArgs,
			RunE:  runConfigInit,
		},
		&cobra.Command{
			Use:   "path",
			Short: "Show the configuration file path",
			Args:  cobra.NoArgs,
			RunE:  runConfigPath,
		},
	)
	return cmd
}

// runConfigShow prints the merged defaults, file, and environment settings.
func (a *app) runConfigShow(cmd *cobra.Command, _ []string) error {
	out := cmd.OutOrStdout()

	if used := a.v.ConfigFileUsed(); used != "" {
		fmt.Fprintf(out, "# Config file: %s\n", used)
	} else {
		fmt.Fprintln(out, "# Config file: (none found, using defaults)")
	}

	data, err := yaml.Marshal(a.v.AllSettings())
	if err != nil {
		return fmt.Errorf("failed to render configuration: %w", err)
	}
	_, err = out.Write(data)
	return err
}

func runConfigInit(cmd *cobra.Command, _ []string) error {
	path, created, err := config.WriteDefault()
	if err != nil {
		return err
	}

	if created {
		okColor.Fprintf(cmd.OutOrStdout(), "Created default config file: %s\n", path)
	} else {
		warnColor.Fprintf(cmd.OutOrStdout(), "Config file already exists: %s\n", path)
	}
	return nil
}

func runConfigPath(cmd *cobra.Command, _ []string) error {
	path, err := config.ConfigPath()
	if err != nil {
		return err
	}
	fmt.Fprintln(cmd.OutOrStdout(), path)
	return nil
}
