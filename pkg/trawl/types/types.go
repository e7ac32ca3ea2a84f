// Package types provides core data types for the trawl filesystem crawler.
// It includes the matched-file record, the path-keyed result set, progress
// snapshots, and search results, along with size formatting helpers.
package types

import (
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/dustin/go-humanize"
)

// Size constants for binary (IEC) units.
const (
	KiB int64 = 1024
	MiB int64 = 1024 * KiB
	GiB int64 = 1024 * MiB
)

// MatchedFile is a file that satisfied the search criteria, together with
// a snapshot of its metadata taken when it was visited.
//
// Identity is defined by Path alone: two MatchedFile values with the same
// path are the same element of a ResultSet even if their metadata differs.
type MatchedFile struct {
	// Path is the absolute path to the file.
	Path string `json:"path"`

	// Size is the file size in bytes.
	Size int64 `json:"size"`

	// ModTime is the last modification time of the file.
	ModTime time.Time `json:"mod_time"`

	// CreateTime is the creation (birth) time of the file.
	// Falls back to ModTime where the platform does not expose it.
	CreateTime time.Time `json:"create_time"`

	// Mode is the file's permission and mode bits.
	Mode os.FileMode `json:"mode"`
}

// Name returns the base name of the file.
func (f MatchedFile) Name() string {
	return filepath.Base(f.Path)
}

// Dir returns the directory containing the file.
func (f MatchedFile) Dir() string {
	return filepath.Dir(f.Path)
}

// HumanSize returns the file size formatted as a human-readable string.
func (f MatchedFile) HumanSize() string {
	return FormatSize(f.Size)
}

// ResultSet is the aggregated set of matched files for one search, keyed by
// path. The first inserted value for a path wins; later values with the same
// path are ignored.
//
// A ResultSet is owned by a single goroutine (the scheduler) and is not safe
// for concurrent mutation.
type ResultSet struct {
	files map[string]MatchedFile
}

// NewResultSet creates an empty result set.
func NewResultSet() *ResultSet {
	return &ResultSet{files: make(map[string]MatchedFile)}
}

// Add inserts f unless a file with the same path is already present.
// It reports whether f was inserted.
func (s *ResultSet) Add(f MatchedFile) bool {
	if _, ok := s.files[f.Path]; ok {
		return false
	}
	s.files[f.Path] = f
	return true
}

// AddAll inserts every file in files and returns the number inserted.
func (s *ResultSet) AddAll(files []MatchedFile) int {
	added := 0
	for _, f := range files {
		if s.Add(f) {
			added++
		}
	}
	return added
}

// Len returns the number of distinct paths in the set.
func (s *ResultSet) Len() int {
	return len(s.files)
}

// Contains reports whether path is in the set.
func (s *ResultSet) Contains(path string) bool {
	_, ok := s.files[path]
	return ok
}

// Get returns the file stored for path.
func (s *ResultSet) Get(path string) (MatchedFile, bool) {
	f, ok := s.files[path]
	return f, ok
}

// Files returns the files in the set ordered by path.
func (s *ResultSet) Files() []MatchedFile {
	files := make([]MatchedFile, 0, len(s.files))
	for _, f := range s.files {
		files = append(files, f)
	}
	sort.Slice(files, func(i, j int) bool {
		return files[i].Path < files[j].Path
	})
	return files
}

// Paths returns the paths in the set in sorted order.
func (s *ResultSet) Paths() []string {
	paths := make([]string, 0, len(s.files))
	for p := range s.files {
		paths = append(paths, p)
	}
	sort.Strings(paths)
	return paths
}

// TotalSize returns the sum of the sizes of all files in the set.
func (s *ResultSet) TotalSize() int64 {
	var total int64
	for _, f := range s.files {
		total += f.Size
	}
	return total
}

// ProgressSnapshot is a point-in-time reading of the search counters.
type ProgressSnapshot struct {
	// FilesScanned is the number of files visited so far.
	FilesScanned int64 `json:"files_scanned"`

	// FilesMatched is the number of files that satisfied the criteria.
	FilesMatched int64 `json:"files_matched"`

	// BytesScanned is the total size of all visited files.
	BytesScanned int64 `json:"bytes_scanned"`

	// DirsScanned is the number of directories read (or attempted).
	DirsScanned int64 `json:"dirs_scanned"`

	// Errors is the number of directories or entries that could not be read.
	Errors int64 `json:"errors"`

	// ActiveThreads is the number of workers currently executing a batch.
	ActiveThreads int64 `json:"active_threads"`

	// QueueDepth is the length of the scheduler's pending-directory queue.
	QueueDepth int64 `json:"queue_depth"`

	// BufferDepth is the number of result batches waiting in the channels.
	BufferDepth int64 `json:"buffer_depth"`

	// Elapsed is the time since the search started.
	Elapsed time.Duration `json:"elapsed"`
}

// ScanError represents an error encountered while reading a directory or
// an entry. It pairs a path with the error message.
type ScanError struct {
	// Path is the file or directory path where the error occurred.
	Path string `json:"path"`

	// Error is the error message describing what went wrong.
	Error string `json:"error"`
}

// SearchResult contains the outcome of one search.
type SearchResult struct {
	// RunID identifies the search in logs.
	RunID string `json:"run_id"`

	// Root is the canonicalized directory the search started from.
	Root string `json:"root"`

	// Files is the deduplicated set of matched files.
	Files *ResultSet `json:"-"`

	// Stats is the final progress snapshot.
	Stats ProgressSnapshot `json:"stats"`

	// Errors contains the non-fatal errors encountered during traversal.
	Errors []ScanError `json:"errors,omitempty"`

	// Elapsed is the total time taken by the search.
	Elapsed time.Duration `json:"elapsed"`
}

// FormatSize converts a size in bytes to a human-readable string
// using binary (IEC) units.
//
// Examples:
//   - FormatSize(0) returns "0 B"
//   - FormatSize(1024) returns "1.0 KiB"
func FormatSize(bytes int64) string {
	if bytes < 0 {
		bytes = 0
	}
	return humanize.IBytes(uint64(bytes))
}
