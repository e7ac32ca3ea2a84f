// Package walker reads single directories on behalf of the scheduler.
//
// A Walker never recurses: subdirectories are returned to the caller, which
// queues them. This keeps each worker's stack flat regardless of tree depth.
package walker

import (
	"os"
	"path/filepath"
	"sync"

	"github.com/jamesainslie/trawl/pkg/trawl/criteria"
	"github.com/jamesainslie/trawl/pkg/trawl/logging"
	"github.com/jamesainslie/trawl/pkg/trawl/metrics"
	"github.com/jamesainslie/trawl/pkg/trawl/types"
)

// Walker applies a Criteria to directory entries. It is safe for concurrent
// use by multiple workers.
type Walker struct {
	criteria *criteria.Criteria
	metrics  *metrics.Metrics
	logger   *logging.Logger

	// errors collects unreadable directories and entries without stopping
	// the search.
	errors   []types.ScanError
	errorsMu sync.Mutex
}

// New creates a Walker. A nil metrics gets a private Metrics; a nil logger
// uses the "walker" component logger.
func New(c *criteria.Criteria, m *metrics.Metrics, logger *logging.Logger) *Walker {
	if m == nil {
		m = metrics.New()
	}
	if logger == nil {
		logger = logging.Get("walker")
	}
	return &Walker{
		criteria: c,
		metrics:  m,
		logger:   logger,
	}
}

// WalkOne reads dir and returns the matched files and the subdirectories
// found in it.
//
// A directory that cannot be read is logged, recorded, counted as scanned,
// and yields no results. Symlinks and special files are skipped. Entries
// are visited in name order, so with stop-after-first-match the match
// reported for a directory is deterministic. Subdirectories listed before
// the match are still returned; entries after it, subdirectories included,
// are not visited.
func (w *Walker) WalkOne(dir string) (matched []types.MatchedFile, discovered []string) {
	entries, err := os.ReadDir(dir)
	w.metrics.AddDir()
	if err != nil {
		w.recordError(dir, err)
		return nil, nil
	}

	stopAfterFirst := w.criteria.StopAfterFirstMatch()

	for _, entry := range entries {
		path := filepath.Join(dir, entry.Name())
		mode := entry.Type()

		if mode.IsDir() {
			discovered = append(discovered, path)
			continue
		}
		if !mode.IsRegular() {
			continue
		}

		info, err := entry.Info()
		if err != nil {
			// Removed between ReadDir and Lstat.
			w.recordError(path, err)
			continue
		}

		w.metrics.AddScanned(info.Size())

		if !w.criteria.Evaluate(path) {
			continue
		}

		matched = append(matched, types.MatchedFile{
			Path:       path,
			Size:       info.Size(),
			ModTime:    info.ModTime(),
			CreateTime: createTime(path, info),
			Mode:       info.Mode(),
		})
		w.metrics.AddMatched(1)

		if stopAfterFirst {
			break
		}
	}

	return matched, discovered
}

// WalkBatch drops excluded directories from dirs, then concatenates the
// WalkOne results of the rest.
func (w *Walker) WalkBatch(dirs []string) (matched []types.MatchedFile, discovered []string) {
	for _, dir := range dirs {
		if w.criteria.IsExcluded(dir) {
			w.logger.Debug("skipping excluded directory", "path", dir)
			continue
		}
		m, d := w.WalkOne(dir)
		matched = append(matched, m...)
		discovered = append(discovered, d...)
	}
	return matched, discovered
}

// Errors returns a copy of the errors recorded so far.
func (w *Walker) Errors() []types.ScanError {
	w.errorsMu.Lock()
	defer w.errorsMu.Unlock()

	out := make([]types.ScanError, len(w.errors))
	copy(out, w.errors)
	return out
}

func (w *Walker) recordError(path string, err error) {
	w.metrics.AddError()
	w.logger.Warn("cannot read", "path", path, "error", err)

	w.errorsMu.Lock()
	w.errors = append(w.errors, types.ScanError{Path: path, Error: err.Error()})
	w.errorsMu.Unlock()
}
