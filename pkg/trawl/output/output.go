// Package output renders search results for the trawl command line.
//
// Formatters are registered by name and selected at runtime:
//
//	f, err := output.Get("json")
//	if err != nil {
//	    return err
//	}
//	var buf bytes.Buffer
//	if err := f.Format(&buf, output.FromSearch(res, output.Options{})); err != nil {
//	    return err
//	}
package output

import (
	"bytes"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/jamesainslie/trawl/pkg/trawl/types"
)

// FileInfo is a matched file prepared for display.
type FileInfo struct {
	Path       string    `json:"path" yaml:"path"`
	Name       string    `json:"name" yaml:"name"`
	Dir        string    `json:"dir" yaml:"dir"`
	Size       int64     `json:"size" yaml:"size"`
	SizeHuman  string    `json:"size_human" yaml:"size_human"`
	ModTime    time.Time `json:"mod_time" yaml:"mod_time"`
	CreateTime time.Time `json:"create_time" yaml:"create_time"`
	Perms      string    `json:"perms" yaml:"perms"`
}

// Result is everything a formatter needs to render one search.
type Result struct {
	RunID string
	Root  string
	Files []FileInfo

	// TotalFiles is the number of matches before Limit was applied.
	TotalFiles int

	Stats       types.ProgressSnapshot
	Errors      []types.ScanError
	Elapsed     time.Duration
	Interrupted bool
}

// TotalSize returns the sum of the sizes of the listed files.
func (r *Result) TotalSize() int64 {
	var total int64
	for _, f := range r.Files {
		total += f.Size
	}
	return total
}

// Options controls how a search result is turned into a Result.
type Options struct {
	Sort        SortKey
	Descending  bool
	Limit       int
	Interrupted bool
}

// FromSearch converts a search result into sorted, limited display rows.
func FromSearch(res *types.SearchResult, opts Options) *Result {
	r := &Result{
		RunID:       res.RunID,
		Root:        res.Root,
		Stats:       res.Stats,
		Errors:      res.Errors,
		Elapsed:     res.Elapsed,
		Interrupted: opts.Interrupted,
	}

	var matched []types.MatchedFile
	if res.Files != nil {
		matched = res.Files.Files()
	}
	SortFiles(matched, opts.Sort, opts.Descending)

	r.TotalFiles = len(matched)
	if opts.Limit > 0 && len(matched) > opts.Limit {
		matched = matched[:opts.Limit]
	}

	r.Files = make([]FileInfo, len(matched))
	for i, f := range matched {
		r.Files[i] = FileInfo{
			Path:       f.Path,
			Name:       f.Name(),
			Dir:        f.Dir(),
			Size:       f.Size,
			SizeHuman:  f.HumanSize(),
			ModTime:    f.ModTime,
			CreateTime: f.CreateTime,
			Perms:      f.Mode.Perm().String(),
		}
	}
	return r
}

// Formatter renders a Result.
type Formatter interface {
	Format(w *bytes.Buffer, r *Result) error
}

// FormatterFactory creates a new Formatter instance.
type FormatterFactory func() Formatter

// Registry maps formatter names to factories.
type Registry struct {
	mu        sync.RWMutex
	factories map[string]FormatterFactory
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{factories: make(map[string]FormatterFactory)}
}

// Register adds or replaces the factory for name.
func (r *Registry) Register(name string, factory FormatterFactory) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.factories[name] = factory
}

// Get returns a new formatter for name.
func (r *Registry) Get(name string) (Formatter, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	factory, ok := r.factories[name]
	if !ok {
		return nil, fmt.Errorf("unknown output format: %s", name)
	}
	return factory(), nil
}

// Available returns the registered names in sorted order.
func (r *Registry) Available() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.factories))
	for name := range r.factories {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// DefaultRegistry holds the built-in formatters.
var DefaultRegistry = NewRegistry()

// Register adds a factory to the default registry.
func Register(name string, factory FormatterFactory) {
	DefaultRegistry.Register(name, factory)
}

// Get returns a formatter from the default registry.
func Get(name string) (Formatter, error) {
	return DefaultRegistry.Get(name)
}

// Available lists the default registry's formatter names.
func Available() []string {
	return DefaultRegistry.Available()
}
