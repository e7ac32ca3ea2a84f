package metrics

import (
	"io"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/mattn/go-isatty"
	"golang.org/x/term"

	"github.com/jamesainslie/trawl/pkg/trawl/logging"
)

// DefaultInterval is the default redraw interval.
const DefaultInterval = 100 * time.Millisecond

// Display periodically renders a Metrics snapshot to a terminal.
// It only reads the counters, so enabling or disabling it never changes
// search results.
type Display struct {
	metrics  *Metrics
	table    *Table
	writer   *ConsoleWriter
	interval time.Duration
	width    int
	logger   *logging.Logger

	mu      sync.Mutex
	running bool
	stop    chan struct{}
	done    chan struct{}
}

// DisplayOption is a functional option for NewDisplay.
type DisplayOption func(*Display)

// WithWidth caps rendered lines at width runes. Zero disables truncation.
func WithWidth(width int) DisplayOption {
	return func(d *Display) {
		d.width = width
	}
}

// WithPath sets the path shown above the table.
func WithPath(path string) DisplayOption {
	return func(d *Display) {
		d.table.SetPath(path)
	}
}

// NewDisplay creates a display that samples m every interval and draws to
// out. When out is a terminal, lines are truncated to its width.
func NewDisplay(m *Metrics, out io.Writer, interval time.Duration, opts ...DisplayOption) *Display {
	if interval <= 0 {
		interval = DefaultInterval
	}

	d := &Display{
		metrics:  m,
		table:    NewTable(""),
		writer:   NewConsoleWriter(out),
		interval: interval,
		width:    TerminalWidth(out),
		logger:   logging.Get("metrics"),
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Table returns the table the display renders.
func (d *Display) Table() *Table {
	return d.table
}

// Start launches the redraw loop. Calling Start on a running display is a
// no-op.
func (d *Display) Start() {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.running {
		return
	}
	d.running = true
	d.stop = make(chan struct{})
	d.done = make(chan struct{})

	go d.loop(d.stop, d.done)
}

// Stop ends the redraw loop, draws a final frame, and restores the cursor.
func (d *Display) Stop() {
	d.mu.Lock()
	defer d.mu.Unlock()

	if !d.running {
		return
	}
	close(d.stop)
	<-d.done
	d.running = false

	d.draw()
	if err := d.writer.Finish(); err != nil {
		d.logger.Debug("display finish failed", "error", err)
	}
}

func (d *Display) loop(stop <-chan struct{}, done chan<- struct{}) {
	defer close(done)

	ticker := time.NewTicker(d.interval)
	defer ticker.Stop()

	d.draw()
	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			d.draw()
		}
	}
}

func (d *Display) draw() {
	d.table.Update(d.metrics.Snapshot())
	frame := truncateLines(d.table.Render(), d.width)
	if err := d.writer.Write(frame); err != nil {
		d.logger.Debug("display write failed", "error", err)
	}
}

// TerminalWidth returns the width of out when it is a terminal, else 0.
func TerminalWidth(out io.Writer) int {
	if !IsTerminal(out) {
		return 0
	}
	f := out.(*os.File)
	width, _, err := term.GetSize(int(f.Fd()))
	if err != nil {
		return 0
	}
	return width
}

// IsTerminal reports whether out is a terminal, including Cygwin/MSYS
// pseudo-terminals.
func IsTerminal(out io.Writer) bool {
	f, ok := out.(*os.File)
	if !ok {
		return false
	}
	return isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
}

// truncateLines cuts each line of s to width runes. The last terminal
// column is left free so the cursor never wraps.
func truncateLines(s string, width int) string {
	if width <= 1 {
		return s
	}
	limit := width - 1

	lines := strings.Split(s, "\n")
	for i, line := range lines {
		if r := []rune(line); len(r) > limit {
			lines[i] = string(r[:limit])
		}
	}
	return strings.Join(lines, "\n")
}
