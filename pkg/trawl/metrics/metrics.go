// Package metrics tracks live search progress and renders it to a terminal.
//
// Metrics holds lock-free counters: workers bump the increment-only ones
// (files scanned, files matched, bytes, directories, errors) and the
// scheduler overwrites the gauges (busy threads, pending queue, buffered
// results). Display samples a Metrics on a fixed interval and redraws a
// small table in place through a ConsoleWriter, which rewrites only the
// characters that changed since the previous frame.
package metrics

import (
	"sync/atomic"
	"time"

	"github.com/jamesainslie/trawl/pkg/trawl/types"
)

// Metrics is a set of atomic progress counters. All methods are safe for
// concurrent use.
type Metrics struct {
	startNanos atomic.Int64

	filesScanned atomic.Int64
	filesMatched atomic.Int64
	bytesScanned atomic.Int64
	dirsScanned  atomic.Int64
	errors       atomic.Int64

	threads atomic.Int64
	queue   atomic.Int64
	buffer  atomic.Int64
}

// New creates a Metrics with the clock started now.
func New() *Metrics {
	m := &Metrics{}
	m.startNanos.Store(time.Now().UnixNano())
	return m
}

// Reset zeroes every counter and restarts the clock.
func (m *Metrics) Reset() {
	m.filesScanned.Store(0)
	m.filesMatched.Store(0)
	m.bytesScanned.Store(0)
	m.dirsScanned.Store(0)
	m.errors.Store(0)
	m.threads.Store(0)
	m.queue.Store(0)
	m.buffer.Store(0)
	m.startNanos.Store(time.Now().UnixNano())
}

// AddScanned records one visited file of the given size.
func (m *Metrics) AddScanned(size int64) {
	m.filesScanned.Add(1)
	if size > 0 {
		m.bytesScanned.Add(size)
	}
}

// AddMatched records n matched files.
func (m *Metrics) AddMatched(n int64) {
	m.filesMatched.Add(n)
}

// AddDir records one directory read, successful or not.
func (m *Metrics) AddDir() {
	m.dirsScanned.Add(1)
}

// AddError records one unreadable directory or entry.
func (m *Metrics) AddError() {
	m.errors.Add(1)
}

// SetThreads sets the busy-worker gauge.
func (m *Metrics) SetThreads(n int64) {
	m.threads.Store(n)
}

// SetQueue sets the pending-directory gauge.
func (m *Metrics) SetQueue(n int64) {
	m.queue.Store(n)
}

// SetBuffer sets the buffered-results gauge.
func (m *Metrics) SetBuffer(n int64) {
	m.buffer.Store(n)
}

// Elapsed returns the time since New or the last Reset.
func (m *Metrics) Elapsed() time.Duration {
	return time.Since(time.Unix(0, m.startNanos.Load()))
}

// Snapshot reads every counter. Individual fields are read atomically but
// not as one consistent cut.
func (m *Metrics) Snapshot() types.ProgressSnapshot {
	return types.ProgressSnapshot{
		FilesScanned:  m.filesScanned.Load(),
		FilesMatched:  m.filesMatched.Load(),
		BytesScanned:  m.bytesScanned.Load(),
		DirsScanned:   m.dirsScanned.Load(),
		Errors:        m.errors.Load(),
		ActiveThreads: m.threads.Load(),
		QueueDepth:    m.queue.Load(),
		BufferDepth:   m.buffer.Load(),
		Elapsed:       m.Elapsed(),
	}
}
