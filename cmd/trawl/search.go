package main

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/jamesainslie/trawl/pkg/trawl/criteria"
	"github.com/jamesainslie/trawl/pkg/trawl/logging"
	"github.com/jamesainslie/trawl/pkg/trawl/metrics"
	"github.com/jamesainslie/trawl/pkg/trawl/output"
	"github.com/jamesainslie/trawl/pkg/trawl/scheduler"
	"github.com/jamesainslie/trawl/pkg/trawl/types"
)

// searchFlags holds the flags that only make sense per invocation and
// therefore have no config key.
type searchFlags struct {
	name       string
	regex      string
	glob       string
	noProgress bool
	reverse    bool
}

func newSearchCmd(a *app) *cobra.Command {
	var sf searchFlags

	cmd := &cobra.Command{
		Use:   "search [path]",
		Short: "Search a directory tree for matching files",
		Long: `Search walks the tree under path (default: the configured default_path)
and prints every regular file whose name matches.

Name matching is case-insensitive. At most one of --name, --regex and --glob
applies; --regex wins over --glob, which wins over --name. With no name filter
every file matches, subject to --ext.

Press Ctrl-C to stop early; the files found so far are still printed.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.runSearch(cmd, args, sf)
		},
	}

	f := cmd.Flags()
	f.StringVarP(&sf.name, "name", "n", "", "match file names starting with this prefix")
	f.StringVarP(&sf.regex, "regex", "r", "", "match file names against a regular expression")
	f.StringVarP(&sf.glob, "glob", "g", "", "match file names against a shell glob")
	f.StringSliceP("ext", "e", nil, "only match these extensions (repeatable, e.g. -e go -e md)")
	f.StringSliceP("exclude", "x", nil, "directories never descended into (repeatable)")
	f.IntP("threads", "t", 0, "worker count (0 = derive from CPU count)")
	f.IntP("batch-size", "b", 0, "directories per worker job (0 = derive from memory)")
	f.Bool("first-per-dir", false, "report at most one match per directory")
	f.BoolVar(&sf.noProgress, "no-progress", false, "do not draw the live progress table")
	f.Duration("interval", 0, "progress table redraw interval")
	f.StringP("output", "o", "", fmt.Sprintf("output format: %v", output.Available()))
	f.StringP("sort", "s", "", "sort by path, size, modified or created")
	f.BoolVar(&sf.reverse, "reverse", false, "reverse the sort order")
	f.IntP("limit", "l", 0, "print at most this many files (0 = all)")

	return cmd
}

func (a *app) runSearch(cmd *cobra.Command, args []string, sf searchFlags) error {
	logger := logging.Get("cli")

	root := a.cfg.DefaultPath
	if len(args) == 1 {
		root = args[0]
	}

	c, err := buildCriteria(root, a, sf)
	if err != nil {
		return err
	}

	sortKey, err := output.ParseSortKey(a.cfg.Output.Sort)
	if err != nil {
		return err
	}
	formatter, err := output.Get(a.cfg.Output.Format)
	if err != nil {
		return fmt.Errorf("%w (available: %v)", err, output.Available())
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	stderr := cmd.ErrOrStderr()
	progress := a.cfg.Display.Enabled && !sf.noProgress && metrics.IsTerminal(stderr)

	var res *types.SearchResult
	if progress {
		res, err = scheduler.RunSearchWithProgress(ctx, c, a.cfg.Threads, a.cfg.BatchSize, a.cfg.Display.Interval, stderr)
	} else {
		res, err = scheduler.RunSearch(ctx, c, a.cfg.Threads, a.cfg.BatchSize)
	}

	interrupted := false
	if err != nil {
		// An interrupted search still returns what it found.
		if res == nil || !errors.Is(err, context.Canceled) {
			return fmt.Errorf("search failed: %w", err)
		}
		interrupted = true
		logger.Info("search interrupted", "matched", res.Files.Len())
		warnColor.Fprintln(stderr, "Interrupted, printing partial results")
	}

	result := output.FromSearch(res, output.Options{
		Sort:        sortKey,
		Descending:  sf.reverse,
		Limit:       a.cfg.Output.Limit,
		Interrupted: interrupted,
	})

	var buf bytes.Buffer
	if err := formatter.Format(&buf, result); err != nil {
		return fmt.Errorf("failed to format output: %w", err)
	}
	_, err = cmd.OutOrStdout().Write(buf.Bytes())
	return err
}

// buildCriteria assembles search criteria from flags and configuration.
func buildCriteria(root string, a *app, sf searchFlags) (*criteria.Criteria, error) {
	opts := []criteria.Option{
		criteria.WithExtensions(a.cfg.Extensions...),
		criteria.WithExcludedDirs(a.cfg.Exclude...),
		criteria.WithStopAfterFirstMatch(a.cfg.FirstPerDir),
	}
	if sf.name != "" {
		opts = append(opts, criteria.WithPrefix(sf.name))
	}
	if sf.glob != "" {
		opts = append(opts, criteria.WithGlob(sf.glob))
	}
	if sf.regex != "" {
		opts = append(opts, criteria.WithPattern(sf.regex))
	}

	c, err := criteria.Configure(root, opts...)
	if err != nil {
		return nil, fmt.Errorf("invalid search: %w", err)
	}
	return c, nil
}
