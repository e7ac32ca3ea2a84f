// Package pool provides a fixed-size pool of long-lived worker goroutines
// consuming jobs from a shared channel.
//
// Workers are started lazily by the first Execute after construction or
// after a shutdown, so a single Pool can serve repeated searches:
//
//	p := pool.New(8)
//	defer p.Close()
//
//	_ = p.Execute(func() { ... })
//	p.Join()
//
// A panicking job is recovered at the worker boundary; the worker keeps
// running and the pool never loses capacity.
package pool

import (
	"context"
	"errors"
	"fmt"
	"runtime/debug"
	"sync"
	"sync/atomic"
	"time"

	"github.com/jamesainslie/trawl/pkg/trawl/channel"
	"github.com/jamesainslie/trawl/pkg/trawl/logging"
)

// DefaultRecvTimeout bounds how long an idle worker waits for a job before
// re-checking the join signal.
const DefaultRecvTimeout = 50 * time.Millisecond

// ErrPoolClosed is returned by Execute after Close.
var ErrPoolClosed = errors.New("pool closed")

// Job is a unit of work executed by one worker.
type Job func()

// State is the lifecycle state of a pool.
type State int32

const (
	// StateTerminated means no workers are running. The next Execute
	// starts them.
	StateTerminated State = iota
	// StateRunning means workers are running.
	StateRunning
	// StateClosed means the pool has been closed and refuses new jobs.
	StateClosed
)

// String returns the string representation of the state.
func (s State) String() string {
	switch s {
	case StateTerminated:
		return "terminated"
	case StateRunning:
		return "running"
	case StateClosed:
		return "closed"
	default:
		return fmt.Sprintf("State(%d)", int32(s))
	}
}

// Pool is a bounded worker pool. All methods are safe for concurrent use,
// except that a job must not call Join, TerminateAll, or Close on its own
// pool.
type Pool struct {
	size        int
	recvTimeout time.Duration
	logger      *logging.Logger

	jobs *channel.Channel[Job]

	// mu serializes lifecycle transitions.
	mu     sync.Mutex
	state  atomic.Int32
	cancel context.CancelFunc
	wg     sync.WaitGroup

	joining atomic.Bool

	active   atomic.Int64
	busy     atomic.Int64
	received atomic.Int64
	timeouts atomic.Int64
	panics   atomic.Int64
	starts   atomic.Int64
}

// Option is a functional option for New.
type Option func(*Pool)

// WithRecvTimeout sets how long an idle worker waits for a job per loop.
func WithRecvTimeout(d time.Duration) Option {
	return func(p *Pool) {
		if d > 0 {
			p.recvTimeout = d
		}
	}
}

// WithLogger sets the logger used for worker lifecycle and panic reports.
func WithLogger(l *logging.Logger) Option {
	return func(p *Pool) {
		if l != nil {
			p.logger = l
		}
	}
}

// New creates a pool of size workers. A size below 1 is treated as 1.
// No goroutines are started until the first Execute.
func New(size int, opts ...Option) *Pool {
	if size < 1 {
		size = 1
	}

	p := &Pool{
		size:        size,
		recvTimeout: DefaultRecvTimeout,
		logger:      logging.Get("pool"),
		jobs:        channel.New[Job](),
	}
	for _, opt := range opts {
		opt(p)
	}
	p.state.Store(int32(StateTerminated))
	return p
}

// Execute enqueues job, starting the workers first if the pool is
// terminated.
func (p *Pool) Execute(job Job) error {
	if job == nil {
		return errors.New("nil job")
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	switch p.State() {
	case StateClosed:
		return ErrPoolClosed
	case StateTerminated:
		p.startLocked()
	}

	if err := p.jobs.Send(job); err != nil {
		return fmt.Errorf("enqueue job: %w", err)
	}
	return nil
}

// startLocked spawns the workers. Must be called with p.mu held.
func (p *Pool) startLocked() {
	ctx, cancel := context.WithCancel(context.Background())
	p.cancel = cancel
	p.joining.Store(false)

	p.wg.Add(p.size)
	for id := range p.size {
		go p.work(ctx, id)
	}

	p.state.Store(int32(StateRunning))
	p.starts.Add(1)
	p.logger.Debug("workers started", "size", p.size, "start", p.starts.Load())
}

// work is the worker loop: wait for a job, run it, then check the join and
// terminate signals.
func (p *Pool) work(ctx context.Context, id int) {
	defer p.wg.Done()

	p.active.Add(1)
	defer p.active.Add(-1)

	for {
		if ctx.Err() != nil {
			return
		}

		job, err := p.receive(ctx)
		switch {
		case err == nil:
			p.received.Add(1)
			p.run(id, job)
		case errors.Is(err, context.DeadlineExceeded):
			p.timeouts.Add(1)
		case errors.Is(err, context.Canceled), errors.Is(err, channel.ErrClosed):
			return
		}

		if p.joining.Load() && p.jobs.BufferedCount() == 0 {
			return
		}
	}
}

// receive waits up to the receive timeout for a job. Cancelling ctx wakes
// the worker immediately.
func (p *Pool) receive(ctx context.Context) (Job, error) {
	recvCtx, cancel := context.WithTimeout(ctx, p.recvTimeout)
	defer cancel()
	return p.jobs.Recv(recvCtx)
}

// run executes job with the worker marked busy, recovering any panic.
func (p *Pool) run(id int, job Job) {
	p.busy.Add(1)
	defer p.busy.Add(-1)

	defer func() {
		if r := recover(); r != nil {
			p.panics.Add(1)
			p.logger.Error("job panicked",
				"worker", id,
				"panic", r,
				"stack", string(debug.Stack()),
			)
		}
	}()

	job()
}

// Join waits for the queued jobs to finish and the workers to exit.
// Each worker exits once it observes the job channel empty.
func (p *Pool) Join() {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.State() != StateRunning {
		return
	}

	p.joining.Store(true)
	p.wg.Wait()
	p.cancel()
	p.joining.Store(false)
	p.state.Store(int32(StateTerminated))
	p.logger.Debug("workers joined", "received", p.received.Load())
}

// TerminateAll signals every worker to exit regardless of queued jobs,
// waits for them, then discards whatever is left in the job channel.
// A job already executing runs to completion.
func (p *Pool) TerminateAll() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.terminateLocked()
}

func (p *Pool) terminateLocked() {
	if p.State() != StateRunning {
		return
	}

	p.cancel()
	p.wg.Wait()

	if dropped := p.jobs.Drain(); dropped > 0 {
		p.logger.Debug("discarded queued jobs", "count", dropped)
	}
	p.state.Store(int32(StateTerminated))
}

// Close terminates the workers and refuses further jobs.
func (p *Pool) Close() {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.State() == StateClosed {
		return
	}
	p.terminateLocked()
	p.jobs.Close()
	p.state.Store(int32(StateClosed))
}

// State returns the current lifecycle state.
func (p *Pool) State() State {
	return State(p.state.Load())
}

// Size returns the configured number of workers.
func (p *Pool) Size() int {
	return p.size
}

// ActiveCount returns the number of workers running their loop.
// The value is a point-in-time snapshot.
func (p *Pool) ActiveCount() int {
	return int(p.active.Load())
}

// BusyCount returns the number of workers currently executing a job.
// Busy workers are a subset of active ones; like ActiveCount the value is
// a point-in-time snapshot.
func (p *Pool) BusyCount() int {
	return int(p.busy.Load())
}

// PendingJobCount returns the number of jobs submitted but not yet picked
// up by a worker.
func (p *Pool) PendingJobCount() int {
	return int(p.jobs.BufferedCount())
}

// ReceivedJobs returns the total number of jobs picked up by workers.
func (p *Pool) ReceivedJobs() int64 {
	return p.received.Load()
}

// RecvTimeouts returns how many times an idle worker's wait expired.
func (p *Pool) RecvTimeouts() int64 {
	return p.timeouts.Load()
}

// Panics returns the number of jobs that panicked.
func (p *Pool) Panics() int64 {
	return p.panics.Load()
}

// Starts returns how many times the workers have been (re)started.
func (p *Pool) Starts() int64 {
	return p.starts.Load()
}
