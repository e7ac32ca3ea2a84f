// Package criteria provides the immutable match configuration for a trawl
// search: the canonicalized root, the filename filter (prefix, regular
// expression, or glob), the extension set, the excluded directories, and the
// stop-after-first-match-per-directory switch.
package criteria

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"

	"github.com/gobwas/glob"
)

// Configuration errors returned by Configure.
var (
	// ErrInvalidRoot indicates the root does not exist, cannot be
	// canonicalized, or is not a directory.
	ErrInvalidRoot = errors.New("invalid root directory")

	// ErrInvalidExcludedDirectory indicates an excluded directory does not
	// exist, cannot be canonicalized, or is not a directory.
	ErrInvalidExcludedDirectory = errors.New("invalid excluded directory")

	// ErrInvalidPattern indicates the filename pattern failed to compile.
	ErrInvalidPattern = errors.New("invalid filename pattern")
)

// FilterKind identifies which filename filter is active.
type FilterKind int

const (
	// FilterNone matches every file name.
	FilterNone FilterKind = iota
	// FilterPrefix matches names starting with a literal prefix.
	FilterPrefix
	// FilterPattern matches names against a regular expression.
	FilterPattern
	// FilterGlob matches names against a shell glob.
	FilterGlob
)

// String returns the string representation of the filter kind.
func (k FilterKind) String() string {
	switch k {
	case FilterPrefix:
		return "prefix"
	case FilterPattern:
		return "pattern"
	case FilterGlob:
		return "glob"
	default:
		return "none"
	}
}

// Criteria is the read-only filter configuration for one search.
// It is built once by Configure and never mutated afterwards, so it can be
// shared freely between worker goroutines.
type Criteria struct {
	root           string
	kind           FilterKind
	prefix         string
	pattern        *regexp.Regexp
	glob           glob.Glob
	filterSource   string
	extensions     map[string]struct{}
	excluded       map[string]struct{}
	stopAfterFirst bool
}

// settings collects raw option values before validation.
type settings struct {
	prefix         string
	pattern        string
	globPattern    string
	extensions     []string
	excluded       []string
	stopAfterFirst bool
}

// Option is a functional option for Configure.
type Option func(*settings)

// WithPrefix sets a literal, case-insensitive filename prefix.
// It is ignored when a pattern or glob is also configured.
func WithPrefix(prefix string) Option {
	return func(s *settings) {
		s.prefix = prefix
	}
}

// WithPattern sets a regular expression matched case-insensitively
// against file base names. It takes precedence over a prefix.
func WithPattern(pattern string) Option {
	return func(s *settings) {
		s.pattern = pattern
	}
}

// WithGlob sets a shell glob (e.g. "*.tar.gz") matched case-insensitively
// against file base names. It takes precedence over a prefix; a regular
// expression takes precedence over it.
func WithGlob(pattern string) Option {
	return func(s *settings) {
		s.globPattern = pattern
	}
}

// WithExtensions restricts matches to the given extensions.
// Extensions are normalized: trimmed, lowercased, leading dot removed.
func WithExtensions(extensions ...string) Option {
	return func(s *settings) {
		s.extensions = append(s.extensions, extensions...)
	}
}

// WithExcludedDirs adds directories whose contents are never read.
func WithExcludedDirs(dirs ...string) Option {
	return func(s *settings) {
		s.excluded = append(s.excluded, dirs...)
	}
}

// WithStopAfterFirstMatch stops scanning a directory's remaining entries as
// soon as one file in it matches.
//
// Entries are read in name order, so the cut depends on names: a
// subdirectory sorting before the first matching file is still traversed,
// one sorting after it is neither traversed nor counted.
func WithStopAfterFirstMatch(enabled bool) Option {
	return func(s *settings) {
		s.stopAfterFirst = enabled
	}
}

// Configure validates the options and builds an immutable Criteria.
// An empty root means the current working directory.
func Configure(root string, opts ...Option) (*Criteria, error) {
	var s settings
	for _, opt := range opts {
		opt(&s)
	}

	if root == "" {
		root = "."
	}
	canonicalRoot, err := Canonicalize(root)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidRoot, err)
	}

	c := &Criteria{
		root:           canonicalRoot,
		extensions:     make(map[string]struct{}),
		excluded:       make(map[string]struct{}),
		stopAfterFirst: s.stopAfterFirst,
	}

	if err := c.setFilenameFilter(s); err != nil {
		return nil, err
	}

	for _, ext := range s.extensions {
		if ext = NormalizeExtension(ext); ext != "" {
			c.extensions[ext] = struct{}{}
		}
	}

	for _, dir := range s.excluded {
		canonical, err := Canonicalize(dir)
		if err != nil {
			return nil, fmt.Errorf("%w: %w", ErrInvalidExcludedDirectory, err)
		}
		c.excluded[canonical] = struct{}{}
	}

	return c, nil
}

// setFilenameFilter selects the active filename filter.
// Precedence: regular expression, then glob, then prefix.
func (c *Criteria) setFilenameFilter(s settings) error {
	switch {
	case s.pattern != "":
		re, err := regexp.Compile("(?i)" + s.pattern)
		if err != nil {
			return fmt.Errorf("%w: %q: %w", ErrInvalidPattern, s.pattern, err)
		}
		c.kind = FilterPattern
		c.pattern = re
		c.filterSource = s.pattern
	case s.globPattern != "":
		g, err := glob.Compile(strings.ToLower(s.globPattern))
		if err != nil {
			return fmt.Errorf("%w: %q: %w", ErrInvalidPattern, s.globPattern, err)
		}
		c.kind = FilterGlob
		c.glob = g
		c.filterSource = s.globPattern
	case s.prefix != "":
		c.kind = FilterPrefix
		c.prefix = strings.ToLower(s.prefix)
		c.filterSource = s.prefix
	default:
		c.kind = FilterNone
	}
	return nil
}

// Canonicalize resolves path to its absolute, symlink-free form and
// verifies that it names a directory.
func Canonicalize(path string) (string, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return "", err
	}

	resolved, err := filepath.EvalSymlinks(abs)
	if err != nil {
		return "", err
	}

	info, err := os.Stat(resolved)
	if err != nil {
		return "", err
	}
	if !info.IsDir() {
		return "", fmt.Errorf("%s is not a directory", resolved)
	}

	return resolved, nil
}

// NormalizeExtension lowercases ext and strips surrounding whitespace and
// any leading dots.
func NormalizeExtension(ext string) string {
	return strings.TrimLeft(strings.ToLower(strings.TrimSpace(ext)), ".")
}

// Root returns the canonicalized root directory.
func (c *Criteria) Root() string {
	return c.root
}

// FilterKind returns the active filename filter kind.
func (c *Criteria) FilterKind() FilterKind {
	return c.kind
}

// FilterSource returns the prefix or pattern text as configured.
func (c *Criteria) FilterSource() string {
	return c.filterSource
}

// Extensions returns the normalized extension set in sorted order.
func (c *Criteria) Extensions() []string {
	return sortedKeys(c.extensions)
}

// ExcludedDirs returns the canonicalized excluded directories in sorted order.
func (c *Criteria) ExcludedDirs() []string {
	return sortedKeys(c.excluded)
}

// StopAfterFirstMatch reports whether directory scans stop at the first match.
func (c *Criteria) StopAfterFirstMatch() bool {
	return c.stopAfterFirst
}

// Evaluate reports whether the entry at path satisfies the filename filter
// and the extension filter. Only the base name is inspected.
func (c *Criteria) Evaluate(path string) bool {
	name := strings.ToLower(filepath.Base(path))
	return c.matchName(name) && c.matchExtension(name)
}

// matchName applies the active filename filter to a lowercased base name.
func (c *Criteria) matchName(name string) bool {
	switch c.kind {
	case FilterPrefix:
		return strings.HasPrefix(name, c.prefix)
	case FilterPattern:
		return c.pattern.MatchString(name)
	case FilterGlob:
		return c.glob.Match(name)
	default:
		return true
	}
}

// matchExtension checks a lowercased base name against the extension set.
func (c *Criteria) matchExtension(name string) bool {
	if len(c.extensions) == 0 {
		return true
	}
	ext := strings.TrimPrefix(filepath.Ext(name), ".")
	if ext == "" {
		return false
	}
	_, ok := c.extensions[ext]
	return ok
}

// IsExcluded reports whether dir exactly equals an excluded directory.
// dir must already be in canonical form; discovered subdirectories are,
// since they are joined onto the canonical root.
func (c *Criteria) IsExcluded(dir string) bool {
	if len(c.excluded) == 0 {
		return false
	}
	_, ok := c.excluded[dir]
	return ok
}

// IsFileExcluded reports whether the parent directory of path is excluded.
func (c *Criteria) IsFileExcluded(path string) bool {
	return c.IsExcluded(filepath.Dir(path))
}

func sortedKeys(m map[string]struct{}) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
