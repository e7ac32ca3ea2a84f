package output

import (
	"bytes"
	"text/tabwriter"
)

// PlainFormatter writes an aligned SIZE/MODIFIED/PATH table with no styling.
type PlainFormatter struct{}

// Format writes the formatted output to the buffer.
func (f *PlainFormatter) Format(w *bytes.Buffer, r *Result) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)

	if _, err := tw.Write([]byte("SIZE\tMODIFIED\tPATH\n")); err != nil {
		return err
	}
	for _, file := range r.Files {
		line := file.SizeHuman + "\t" + file.ModTime.Format("2006-01-02 15:04") + "\t" + file.Path + "\n"
		if _, err := tw.Write([]byte(line)); err != nil {
			return err
		}
	}
	return tw.Flush()
}

// PathsFormatter writes one path per line, for piping into other tools.
type PathsFormatter struct{}

// Format writes the formatted output to the buffer.
func (f *PathsFormatter) Format(w *bytes.Buffer, r *Result) error {
	for _, file := range r.Files {
		w.WriteString(file.Path)
		w.WriteByte('\n')
	}
	return nil
}

func init() {
	Register("plain", func() Formatter { return &PlainFormatter{} })
	Register("paths", func() Formatter { return &PathsFormatter{} })
}

var (
	_ Formatter = (*PlainFormatter)(nil)
	_ Formatter = (*PathsFormatter)(nil)
)
