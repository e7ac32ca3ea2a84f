package metrics

import (
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/dustin/go-humanize"

	"github.com/jamesainslie/trawl/pkg/trawl/types"
)

// tableBox frames the progress rows. It sets no colors, so the rendered
// frame is plain text and its columns line up one rune per cell.
var tableBox = lipgloss.NewStyle().
	Border(lipgloss.RoundedBorder()).
	Padding(0, 1)

// Table renders a ProgressSnapshot as a small key/value box with the
// search root on the line above it. Its state is guarded by one mutex.
type Table struct {
	mu       sync.Mutex
	path     string
	snapshot types.ProgressSnapshot
}

// NewTable creates a table labelled with the search root.
func NewTable(path string) *Table {
	return &Table{path: path}
}

// SetPath replaces the path shown above the table.
func (t *Table) SetPath(path string) {
	t.mu.Lock()
	t.path = path
	t.mu.Unlock()
}

// Update stores the snapshot to render next.
func (t *Table) Update(s types.ProgressSnapshot) {
	t.mu.Lock()
	t.snapshot = s
	t.mu.Unlock()
}

// Rows returns the label/value pairs for the current snapshot.
func (t *Table) Rows() [][2]string {
	t.mu.Lock()
	s := t.snapshot
	t.mu.Unlock()

	return [][2]string{
		{"Matched", humanize.Comma(s.FilesMatched)},
		{"Scanned", humanize.Comma(s.FilesScanned)},
		{"Size", types.FormatSize(s.BytesScanned)},
		{"Dirs", humanize.Comma(s.DirsScanned)},
		{"Errors", humanize.Comma(s.Errors)},
		{"Threads", humanize.Comma(s.ActiveThreads)},
		{"Queue", humanize.Comma(s.QueueDepth)},
		{"Buffer", humanize.Comma(s.BufferDepth)},
		{"Time", formatElapsed(s.Elapsed)},
	}
}

// Render returns the frame: the path line followed by the boxed rows.
func (t *Table) Render() string {
	rows := t.Rows()

	labels := make([]string, len(rows))
	values := make([]string, len(rows))
	for i, r := range rows {
		labels[i] = r[0]
		values[i] = r[1]
	}

	body := lipgloss.JoinHorizontal(lipgloss.Top,
		lipgloss.JoinVertical(lipgloss.Left, labels...),
		"   ",
		lipgloss.JoinVertical(lipgloss.Right, values...),
	)

	t.mu.Lock()
	path := t.path
	t.mu.Unlock()

	var b strings.Builder
	b.WriteString("Path: ")
	b.WriteString(path)
	b.WriteByte('\n')
	b.WriteString(tableBox.Render(body))
	return b.String()
}

// formatElapsed renders d as seconds with millisecond precision.
func formatElapsed(d time.Duration) string {
	return fmt.Sprintf("%.3fs", d.Seconds())
}
