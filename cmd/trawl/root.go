package main

import (
	"fmt"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/jamesainslie/trawl/pkg/trawl/config"
	"github.com/jamesainslie/trawl/pkg/trawl/logging"
)

// app carries the state shared by every command of one invocation.
type app struct {
	cfgFile string
	verbose bool

	v   *viper.Viper
	cfg *config.Config
}

// flagKeys maps command-line flags to the config keys they override.
var flagKeys = map[string]string{
	"threads":       "threads",
	"batch-size":    "batch_size",
	"exclude":       "exclude",
	"ext":           "extensions",
	"first-per-dir": "first_per_dir",
	"interval":      "display.interval",
	"output":        "output.format",
	"sort":          "output.sort",
	"limit":         "output.limit",
	"log-level":     "logging.level",
	"log-file":      "logging.path",
}

func newRootCmd() *cobra.Command {
	a := &app{}

	cmd := &cobra.Command{
		Use:   "trawl",
		Short: "Search directory trees for files, fast",
		Long: `Trawl walks a directory tree with a pool of workers and lists the files
whose names match a prefix, regular expression, or glob.

Examples:
  trawl search ~/src --ext go              # every .go file under ~/src
  trawl search / --regex 'report-\d+'      # case-insensitive regex on names
  trawl search . --glob '*.log' -o json    # JSON output
  trawl search . --first-per-dir           # at most one match per directory
  trawl config init                        # write a default config file`,
		SilenceUsage:      true,
		PersistentPreRunE: a.bootstrap,
		PersistentPostRunE: func(*cobra.Command, []string) error {
			return logging.Close()
		},
	}

	cmd.PersistentFlags().StringVar(&a.cfgFile, "config", "", "config file (default: ~/.config/trawl/config.yaml)")
	cmd.PersistentFlags().BoolVarP(&a.verbose, "verbose", "v", false, "log debug output to stderr")
	cmd.PersistentFlags().String("log-level", "", "log file level: debug, info, warn, error")
	cmd.PersistentFlags().String("log-file", "", "log file path (default: $XDG_STATE_HOME/trawl/trawl.log)")

	cmd.AddCommand(newSearchCmd(a), newConfigCmd(a), newVersionCmd())
	return cmd
}

// bootstrap loads configuration with flag overrides and starts logging.
// It runs before every subcommand.
func (a *app) bootstrap(cmd *cobra.Command, _ []string) error {
	v, err := config.NewViper()
	if err != nil {
		return err
	}

	for name, key := range flagKeys {
		if f := cmd.Flags().Lookup(name); f != nil {
			if err := v.BindPFlag(key, f); err != nil {
				return fmt.Errorf("binding flag %s: %w", name, err)
			}
		}
	}

	if err := config.Read(v, a.cfgFile); err != nil {
		return err
	}
	cfg, err := config.Decode(v)
	if err != nil {
		return err
	}
	a.v, a.cfg = v, cfg

	return a.initLogging()
}

func (a *app) initLogging() error {
	maxSize, err := a.cfg.Logging.MaxSizeBytes()
	if err != nil {
		return err
	}

	path, err := config.ExpandPath(a.cfg.Logging.Path)
	if err != nil {
		return err
	}

	console := a.cfg.Logging.Console
	if a.verbose {
		console = "debug"
	}

	return logging.Init(logging.Config{
		Level:        a.cfg.Logging.Level,
		Path:         path,
		MaxSize:      maxSize,
		Components:   a.cfg.Logging.Components,
		ConsoleLevel: console,
	})
}
