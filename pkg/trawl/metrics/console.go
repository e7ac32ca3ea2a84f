package metrics

import (
	"bytes"
	"fmt"
	"io"
	"strings"
	"sync"
)

// ANSI control sequences used by ConsoleWriter.
const (
	csiHideCursor = "\x1b[?25l"
	csiShowCursor = "\x1b[?25h"
	csiClearRight = "\x1b[0K"
	csiClearLine  = "\x1b[2K"
)

// ConsoleWriter redraws a multi-line frame in place. Each frame is compared
// with the previous one rune by rune and only the changed runs are
// rewritten, with the cursor positioned by relative CSI moves. Lines that
// got shorter are cleared to the right; lines that vanished are erased.
//
// Frames are assumed to be one terminal cell per rune and no wider than
// the terminal.
type ConsoleWriter struct {
	mu  sync.Mutex
	out io.Writer

	prev [][]rune

	// cursorRow is the cursor's row relative to the first frame line.
	cursorRow int
	// rows is how many frame rows exist on screen so far.
	rows   int
	hidden bool
}

// NewConsoleWriter creates a writer drawing to out.
func NewConsoleWriter(out io.Writer) *ConsoleWriter {
	return &ConsoleWriter{out: out, rows: 1}
}

// Write draws frame, updating only what changed since the last frame.
func (c *ConsoleWriter) Write(frame string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	lines := splitFrame(frame)

	var buf bytes.Buffer
	if !c.hidden {
		buf.WriteString(csiHideCursor)
		c.hidden = true
	}

	for row, line := range lines {
		var old []rune
		if row < len(c.prev) {
			old = c.prev[row]
		}
		c.diffLine(&buf, row, old, line)
	}

	for row := len(lines); row < len(c.prev); row++ {
		if len(c.prev[row]) == 0 {
			continue
		}
		c.moveTo(&buf, row, 0)
		buf.WriteString(csiClearLine)
	}

	c.prev = lines

	if buf.Len() == 0 {
		return nil
	}
	_, err := c.out.Write(buf.Bytes())
	return err
}

// Finish moves the cursor below the last frame row and shows it again.
// The next Write starts a fresh frame on the following line.
func (c *ConsoleWriter) Finish() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	var buf bytes.Buffer
	if len(c.prev) > 0 {
		c.moveTo(&buf, c.rows-1, 0)
		buf.WriteByte('\n')
	}
	if c.hidden {
		buf.WriteString(csiShowCursor)
	}

	c.prev = nil
	c.cursorRow = 0
	c.rows = 1
	c.hidden = false

	if buf.Len() == 0 {
		return nil
	}
	_, err := c.out.Write(buf.Bytes())
	return err
}

// diffLine rewrites the runs of line that differ from old.
func (c *ConsoleWriter) diffLine(buf *bytes.Buffer, row int, old, line []rune) {
	col := 0
	for col < len(line) {
		if col < len(old) && old[col] == line[col] {
			col++
			continue
		}
		start := col
		for col < len(line) && (col >= len(old) || old[col] != line[col]) {
			col++
		}
		c.moveTo(buf, row, start)
		buf.WriteString(string(line[start:col]))
	}

	if len(old) > len(line) {
		c.moveTo(buf, row, len(line))
		buf.WriteString(csiClearRight)
	}
}

// moveTo positions the cursor at row, col. Rows not yet on screen are
// created with newlines.
func (c *ConsoleWriter) moveTo(buf *bytes.Buffer, row, col int) {
	if row >= c.rows {
		if last := c.rows - 1; c.cursorRow < last {
			fmt.Fprintf(buf, "\x1b[%dB", last-c.cursorRow)
		}
		buf.WriteString(strings.Repeat("\n", row-(c.rows-1)))
		c.rows = row + 1
	} else if row > c.cursorRow {
		fmt.Fprintf(buf, "\x1b[%dB", row-c.cursorRow)
	} else if row < c.cursorRow {
		fmt.Fprintf(buf, "\x1b[%dA", c.cursorRow-row)
	}
	c.cursorRow = row

	fmt.Fprintf(buf, "\x1b[%dG", col+1)
}

func splitFrame(frame string) [][]rune {
	frame = strings.TrimRight(frame, "\n")
	if frame == "" {
		return nil
	}
	parts := strings.Split(frame, "\n")
	lines := make([][]rune, len(parts))
	for i, p := range parts {
		lines[i] = []rune(strings.TrimRight(p, "\r"))
	}
	return lines
}
