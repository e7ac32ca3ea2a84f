package output

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/dustin/go-humanize"
)

// maxListedErrors caps the scan errors printed below the summary.
const maxListedErrors = 5

// PrettyFormatter renders results with lipgloss styling for terminals.
type PrettyFormatter struct{}

// Format writes the formatted output to the buffer.
func (f *PrettyFormatter) Format(w *bytes.Buffer, r *Result) error {
	w.WriteString(f.formatFiles(r))
	w.WriteString(f.formatSummary(r))
	w.WriteString("\n")

	if len(r.Errors) > 0 {
		w.WriteString(f.formatErrors(r))
	}
	return nil
}

func (f *PrettyFormatter) formatFiles(r *Result) string {
	if len(r.Files) == 0 {
		return MutedStyle.Render("  No files matched") + "\n"
	}

	sizeWidth := len("SIZE")
	for _, file := range r.Files {
		sizeWidth = max(sizeWidth, len(file.SizeHuman))
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "  %s  %s  %s\n",
		HeaderStyle.Render(padLeft("SIZE", sizeWidth)),
		HeaderStyle.Render(padRight("MODIFIED", 16)),
		HeaderStyle.Render("PATH"))

	for _, file := range r.Files {
		fmt.Fprintf(&sb, "  %s  %s  %s\n",
			SizeStyle.Render(padLeft(file.SizeHuman, sizeWidth)),
			MutedStyle.Render(file.ModTime.Format("2006-01-02 15:04")),
			PathStyle.Render(file.Path))
	}
	return sb.String()
}

func (f *PrettyFormatter) formatSummary(r *Result) string {
	field := func(label, value string) string {
		return LabelStyle.Render(label) + " " + ValueStyle.Render(value)
	}

	matched := humanize.Comma(int64(r.TotalFiles))
	if len(r.Files) < r.TotalFiles {
		matched = fmt.Sprintf("%s (showing %d)", matched, len(r.Files))
	}

	lines := []string{
		field("Root:", r.Root),
		strings.Join([]string{
			field("Matched:", matched),
			field("Size:", humanize.IBytes(uint64(max(r.TotalSize(), 0)))),
			field("Scanned:", fmt.Sprintf("%s files in %s dirs",
				humanize.Comma(r.Stats.FilesScanned), humanize.Comma(r.Stats.DirsScanned))),
			field("Time:", formatElapsed(r.Elapsed.Seconds())),
		}, "  "),
	}
	if r.Interrupted {
		lines = append(lines, WarningStyle.Bold(true).Render("Search interrupted, results are partial"))
	}
	return SummaryBox.Render(strings.Join(lines, "\n"))
}

func (f *PrettyFormatter) formatErrors(r *Result) string {
	var sb strings.Builder
	sb.WriteString(ErrorStyle.Bold(true).Render(fmt.Sprintf("%d paths could not be read:", len(r.Errors))))
	sb.WriteString("\n")

	for i, e := range r.Errors {
		if i == maxListedErrors {
			sb.WriteString(MutedStyle.Render(fmt.Sprintf("  ... and %d more", len(r.Errors)-maxListedErrors)))
			sb.WriteString("\n")
			break
		}
		sb.WriteString(ErrorStyle.Render("  " + e.Path + ": " + e.Error))
		sb.WriteString("\n")
	}
	return sb.String()
}

func padLeft(s string, width int) string {
	if len(s) >= width {
		return s
	}
	return strings.Repeat(" ", width-len(s)) + s
}

func padRight(s string, width int) string {
	if len(s) >= width {
		return s
	}
	return s + strings.Repeat(" ", width-len(s))
}

// formatElapsed formats seconds as 850ms, 2.3s, 4m 5s or 1h 2m.
func formatElapsed(sec float64) string {
	if sec < 1 {
		return fmt.Sprintf("%.0fms", sec*1000)
	}
	if sec < 60 {
		return fmt.Sprintf("%.1fs", sec)
	}
	minutes := int(sec) / 60
	seconds := int(sec) % 60
	if minutes < 60 {
		return fmt.Sprintf("%dm %ds", minutes, seconds)
	}
	return fmt.Sprintf("%dh %dm", minutes/60, minutes%60)
}

func init() {
	Register("pretty", func() Formatter { return &PrettyFormatter{} })
}

var _ Formatter = (*PrettyFormatter)(nil)
