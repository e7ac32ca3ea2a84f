// Package config provides configuration management for trawl.
package config

import "time"

// Default configuration values for trawl.
const (
	// DefaultPath is the directory searched when none is given.
	DefaultPath = "."

	// DefaultThreads of 0 sizes the pool from the detected CPU count.
	DefaultThreads = 0

	// DefaultBatchSize is the number of directories per pool job.
	DefaultBatchSize = 100

	// DefaultDisplayInterval is the progress table redraw interval.
	DefaultDisplayInterval = 100 * time.Millisecond

	// DefaultOutputFormat is the formatter used for results.
	DefaultOutputFormat = "pretty"

	// DefaultSort is the result ordering.
	DefaultSort = "path"

	// DefaultLogMaxSize is the log rotation threshold.
	DefaultLogMaxSize = "10MB"
)
