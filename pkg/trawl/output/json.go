package output

import (
	"bytes"
	"encoding/json"
	"time"

	"github.com/jamesainslie/trawl/pkg/trawl/types"
)

// document is the structure shared by the json and yaml formatters.
type document struct {
	Files []FileInfo        `json:"files" yaml:"files"`
	Stats documentStats     `json:"stats" yaml:"stats"`
	Meta  documentMeta      `json:"meta" yaml:"meta"`
	Errs  []types.ScanError `json:"errors,omitempty" yaml:"errors,omitempty"`
}

type documentStats struct {
	FilesScanned int64  `json:"files_scanned" yaml:"files_scanned"`
	FilesMatched int64  `json:"files_matched" yaml:"files_matched"`
	BytesScanned int64  `json:"bytes_scanned" yaml:"bytes_scanned"`
	DirsScanned  int64  `json:"dirs_scanned" yaml:"dirs_scanned"`
	Errors       int64  `json:"errors" yaml:"errors"`
	Elapsed      string `json:"elapsed" yaml:"elapsed"`
}

type documentMeta struct {
	RunID       string `json:"run_id" yaml:"run_id"`
	Root        string `json:"root" yaml:"root"`
	TotalFiles  int    `json:"total_files" yaml:"total_files"`
	TotalSize   int64  `json:"total_size" yaml:"total_size"`
	Interrupted bool   `json:"interrupted" yaml:"interrupted"`
}

func buildDocument(r *Result) document {
	files := r.Files
	if files == nil {
		files = []FileInfo{}
	}
	return document{
		Files: files,
		Stats: documentStats{
			FilesScanned: r.Stats.FilesScanned,
			FilesMatched: r.Stats.FilesMatched,
			BytesScanned: r.Stats.BytesScanned,
			DirsScanned:  r.Stats.DirsScanned,
			Errors:       r.Stats.Errors,
			Elapsed:      formatDurationString(r.Elapsed),
		},
		Meta: documentMeta{
			RunID:       r.RunID,
			Root:        r.Root,
			TotalFiles:  r.TotalFiles,
			TotalSize:   r.TotalSize(),
			Interrupted: r.Interrupted,
		},
		Errs: r.Errors,
	}
}

func formatDurationString(d time.Duration) string {
	if d == 0 {
		return ""
	}
	return d.String()
}

// JSONFormatter writes a single indented JSON document.
type JSONFormatter struct{}

// Format writes the formatted output to the buffer.
func (f *JSONFormatter) Format(w *bytes.Buffer, r *Result) error {
	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")
	return encoder.Encode(buildDocument(r))
}

// JSONLFormatter writes one compact JSON object per matched file.
type JSONLFormatter struct{}

// Format writes the formatted output to the buffer.
func (f *JSONLFormatter) Format(w *bytes.Buffer, r *Result) error {
	encoder := json.NewEncoder(w)
	for _, file := range r.Files {
		if err := encoder.Encode(file); err != nil {
			return err
		}
	}
	return nil
}

func init() {
	Register("json", func() Formatter { return &JSONFormatter{} })
	Register("jsonl", func() Formatter { return &JSONLFormatter{} })
}

var (
	_ Formatter = (*JSONFormatter)(nil)
	_ Formatter = (*JSONLFormatter)(nil)
)
