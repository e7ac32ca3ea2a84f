// Package scheduler runs a search: it owns the pending-directory queue,
// hands batches of directories to a worker pool, folds the subdirectories
// and matches that workers publish back into the queue and the result set,
// and decides when the traversal is complete.
//
// Workers never touch the pending queue. They publish through two
// channels, one for discovered directories and one for matched files, and
// the scheduler goroutine alone drains them.
//
// A search halts when every dispatched batch has finished publishing, the
// pool is idle with no queued jobs, both channels are empty, and the
// pending queue is empty. The condition is checked twice, a short delay
// apart, before the scheduler commits to halting.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/jamesainslie/trawl/pkg/trawl/channel"
	"github.com/jamesainslie/trawl/pkg/trawl/criteria"
	"github.com/jamesainslie/trawl/pkg/trawl/logging"
	"github.com/jamesainslie/trawl/pkg/trawl/metrics"
	"github.com/jamesainslie/trawl/pkg/trawl/pool"
	"github.com/jamesainslie/trawl/pkg/trawl/tuner"
	"github.com/jamesainslie/trawl/pkg/trawl/types"
	"github.com/jamesainslie/trawl/pkg/trawl/walker"
)

// Default timings.
const (
	// DefaultQuiescenceDelay separates the two quiescence samples.
	DefaultQuiescenceDelay = 100 * time.Microsecond

	// DefaultThrottle is how long the scheduler sleeps when the pool's job
	// queue is at least twice the worker count.
	DefaultThrottle = time.Millisecond

	// idleSleep keeps an iteration that moved nothing from spinning.
	idleSleep = 50 * time.Microsecond
)

// ErrNilCriteria is returned by Search when no criteria are given.
var ErrNilCriteria = errors.New("nil search criteria")

// State is the scheduler's position in a search.
type State int32

const (
	// StateIdle means no search has started yet.
	StateIdle State = iota
	// StateRunning means batches are being dispatched and results drained.
	StateRunning
	// StateDraining means the search was cancelled: dispatch has stopped
	// and already published matches are being collected.
	StateDraining
	// StateHalted means the last search has finished.
	StateHalted
)

// String returns the string representation of the state.
func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateRunning:
		return "running"
	case StateDraining:
		return "draining"
	case StateHalted:
		return "halted"
	default:
		return fmt.Sprintf("State(%d)", int32(s))
	}
}

// Scheduler drives searches on a caller-supplied pool. The pool is
// restarted lazily by each search and torn down when it halts, so one pool
// can serve any number of sequential searches. Searches on the same
// Scheduler are serialized.
type Scheduler struct {
	pool            *pool.Pool
	batchSize       int
	quiescenceDelay time.Duration
	throttle        time.Duration
	logger          *logging.Logger

	displayOut      io.Writer
	displayInterval time.Duration

	mu    sync.Mutex
	state atomic.Int32
}

// Option is a functional option for New.
type Option func(*Scheduler)

// WithBatchSize sets the number of directories per pool job.
// Values below 1 are ignored.
func WithBatchSize(n int) Option {
	return func(s *Scheduler) {
		if n > 0 {
			s.batchSize = n
		}
	}
}

// WithLogger sets the scheduler's logger.
func WithLogger(l *logging.Logger) Option {
	return func(s *Scheduler) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithQuiescenceDelay sets the pause between the two quiescence samples.
func WithQuiescenceDelay(d time.Duration) Option {
	return func(s *Scheduler) {
		if d >= 0 {
			s.quiescenceDelay = d
		}
	}
}

// WithThrottle sets the back-off used while the job queue is deep.
func WithThrottle(d time.Duration) Option {
	return func(s *Scheduler) {
		if d >= 0 {
			s.throttle = d
		}
	}
}

// WithDisplay enables the live progress table, redrawn to out every
// interval. A nil out disables it.
func WithDisplay(out io.Writer, interval time.Duration) Option {
	return func(s *Scheduler) {
		s.displayOut = out
		s.displayInterval = interval
	}
}

// New creates a scheduler dispatching to p.
func New(p *pool.Pool, opts ...Option) *Scheduler {
	s := &Scheduler{
		pool:            p,
		batchSize:       tuner.DefaultBatchSize,
		quiescenceDelay: DefaultQuiescenceDelay,
		throttle:        DefaultThrottle,
		logger:          logging.Get("scheduler"),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// State returns the scheduler's current state.
func (s *Scheduler) State() State {
	return State(s.state.Load())
}

// BatchSize returns the configured batch size.
func (s *Scheduler) BatchSize() int {
	return s.batchSize
}

// search holds the per-call state of one Search.
type search struct {
	criteria *criteria.Criteria
	metrics  *metrics.Metrics
	walker   *walker.Walker
	logger   *logging.Logger

	dirs  *channel.Channel[[]string]
	files *channel.Channel[[]types.MatchedFile]

	// outstanding counts dispatched batches whose job has not finished
	// publishing its results.
	outstanding atomic.Int64

	pending []string
	results *types.ResultSet
}

// sample is one reading of every quantity the halt condition depends on.
type sample struct {
	outstanding int64
	busy        int
	jobQueue    int
	bufDirs     int64
	bufFiles    int64
	localQueue  int
}

func (x sample) quiescent() bool {
	return x.outstanding == 0 &&
		x.busy == 0 &&
		x.jobQueue == 0 &&
		x.bufDirs == 0 &&
		x.bufFiles == 0 &&
		x.localQueue == 0
}

// Search walks the tree under c.Root() and returns the matched files.
//
// It blocks until the traversal is complete or ctx is done. On
// cancellation the pool is terminated, matches already published are
// collected, and the partial result is returned together with ctx.Err().
func (s *Scheduler) Search(ctx context.Context, c *criteria.Criteria) (*types.SearchResult, error) {
	if c == nil {
		return nil, ErrNilCriteria
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	runID := uuid.NewString()
	run := &search{
		criteria: c,
		metrics:  metrics.New(),
		logger:   s.logger.With("run", runID),
		dirs:     channel.New[[]string](),
		files:    channel.New[[]types.MatchedFile](),
		pending:  []string{c.Root()},
		results:  types.NewResultSet(),
	}
	run.walker = walker.New(c, run.metrics, logging.Get("walker").With("run", runID))

	var display *metrics.Display
	if s.displayOut != nil {
		display = metrics.NewDisplay(run.metrics, s.displayOut, s.displayInterval,
			metrics.WithPath(c.Root()))
		display.Start()
	}

	run.logger.Info("search started",
		"root", c.Root(),
		"threads", s.pool.Size(),
		"batch_size", s.batchSize,
	)

	s.state.Store(int32(StateRunning))
	err := s.loop(ctx, run)

	s.pool.TerminateAll()
	s.state.Store(int32(StateHalted))

	run.metrics.SetThreads(0)
	run.metrics.SetQueue(int64(len(run.pending)))
	run.metrics.SetBuffer(0)
	if display != nil {
		display.Stop()
	}

	stats := run.metrics.Snapshot()
	result := &types.SearchResult{
		RunID:   runID,
		Root:    c.Root(),
		Files:   run.results,
		Stats:   stats,
		Errors:  run.walker.Errors(),
		Elapsed: stats.Elapsed,
	}

	if err != nil {
		run.logger.Warn("search stopped early",
			"error", err,
			"matched", run.results.Len(),
			"scanned", stats.FilesScanned,
		)
		return result, err
	}

	run.logger.Info("search finished",
		"matched", run.results.Len(),
		"scanned", stats.FilesScanned,
		"dirs", stats.DirsScanned,
		"errors", stats.Errors,
		"elapsed", stats.Elapsed,
	)
	return result, nil
}

// loop runs until quiescence is confirmed or ctx is done.
func (s *Scheduler) loop(ctx context.Context, run *search) error {
	threads := s.pool.Size()

	for {
		if err := ctx.Err(); err != nil {
			s.state.Store(int32(StateDraining))
			s.pool.TerminateAll()
			s.collectFiles(run)
			return err
		}

		progressed := false

		if len(run.pending) > 0 {
			if err := s.dispatch(run); err != nil {
				return err
			}
			progressed = true
		}

		x := s.sample(run)

		if s.drain(run, x) {
			progressed = true
		}

		run.metrics.SetThreads(int64(x.busy))
		run.metrics.SetQueue(int64(len(run.pending)))
		run.metrics.SetBuffer(run.dirs.BufferedCount() + run.files.BufferedCount())

		if x.quiescent() {
			if s.quiescenceDelay > 0 {
				time.Sleep(s.quiescenceDelay)
			}
			if s.sample(run).quiescent() {
				return nil
			}
			run.logger.Debug("quiescence not confirmed on re-check")
			continue
		}

		switch {
		case x.jobQueue >= 2*threads:
			time.Sleep(s.throttle)
		case !progressed:
			time.Sleep(idleSleep)
		}
	}
}

// dispatch submits the next batch of pending directories as one job.
func (s *Scheduler) dispatch(run *search) error {
	n := min(s.batchSize, len(run.pending))
	batch := make([]string, n)
	copy(batch, run.pending[:n])
	run.pending = run.pending[n:]

	run.outstanding.Add(1)
	err := s.pool.Execute(func() {
		defer run.outstanding.Add(-1)

		matched, discovered := run.walker.WalkBatch(batch)
		if len(discovered) > 0 {
			if err := run.dirs.Send(discovered); err != nil {
				run.logger.Error("publishing directories", "error", err)
			}
		}
		if len(matched) > 0 {
			if err := run.files.Send(matched); err != nil {
				run.logger.Error("publishing matches", "error", err)
			}
		}
	})
	if err != nil {
		run.outstanding.Add(-1)
		return fmt.Errorf("submitting batch: %w", err)
	}
	return nil
}

// sample reads the halt quantities. outstanding is read first: once it is
// zero every job has returned from its sends, so the buffered counts read
// afterwards include everything those jobs published.
func (s *Scheduler) sample(run *search) sample {
	return sample{
		outstanding: run.outstanding.Load(),
		busy:        s.pool.BusyCount(),
		jobQueue:    s.pool.PendingJobCount(),
		bufDirs:     run.dirs.BufferedCount(),
		bufFiles:    run.files.BufferedCount(),
		localQueue:  len(run.pending),
	}
}

// drain moves at most the sampled number of items out of each channel.
// It reports whether anything was received.
func (s *Scheduler) drain(run *search, x sample) bool {
	received := false

	for range x.bufDirs {
		dirs, err := run.dirs.TryRecv()
		if err != nil {
			break
		}
		run.pending = append(run.pending, dirs...)
		received = true
	}

	for range x.bufFiles {
		files, err := run.files.TryRecv()
		if err != nil {
			break
		}
		run.results.AddAll(files)
		received = true
	}

	return received
}

// collectFiles moves every buffered match into the result set. Discovered
// directories are dropped.
func (s *Scheduler) collectFiles(run *search) {
	for {
		files, err := run.files.TryRecv()
		if err != nil {
			break
		}
		run.results.AddAll(files)
	}
	run.dirs.Drain()
}

// RunSearch searches with a pool created for this call.
// threads or batchSize below 1 are derived from the detected system
// resources.
func RunSearch(ctx context.Context, c *criteria.Criteria, threads, batchSize int) (*types.SearchResult, error) {
	return searchWithNewPool(ctx, c, threads, batchSize)
}

// RunSearchWithProgress is RunSearch with the live progress table drawn to
// out every interval.
func RunSearchWithProgress(
	ctx context.Context,
	c *criteria.Criteria,
	threads, batchSize int,
	interval time.Duration,
	out io.Writer,
) (*types.SearchResult, error) {
	return searchWithNewPool(ctx, c, threads, batchSize, WithDisplay(out, interval))
}

// resolveSizing fills in threads or batchSize below 1 from the detected
// resources. Explicit values are kept as given.
func resolveSizing(threads, batchSize int) (int, int) {
	if threads > 0 && batchSize > 0 {
		return threads, batchSize
	}
	resources, err := tuner.Detect()
	if err != nil {
		logging.Get("scheduler").Debug("resource detection incomplete", "error", err)
	}
	tuned := tuner.CalculateWithOverrides(resources, threads, batchSize)
	return tuned.Threads, tuned.BatchSize
}

func searchWithNewPool(ctx context.Context, c *criteria.Criteria, threads, batchSize int, opts ...Option) (*types.SearchResult, error) {
	threads, batchSize = resolveSizing(threads, batchSize)

	p := pool.New(threads)
	defer p.Close()

	opts = append([]Option{WithBatchSize(batchSize)}, opts...)
	return New(p, opts...).Search(ctx, c)
}
