package logging

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// These tests mutate package-level state and must not run in parallel.

func readLog(t *testing.T, path string) string {
	t.Helper()
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	return string(data)
}

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in      string
		want    Level
		wantErr bool
	}{
		{"debug", LevelDebug, false},
		{"INFO", LevelInfo, false},
		{"", LevelInfo, false},
		{"warning", LevelWarn, false},
		{"warn", LevelWarn, false},
		{"error", LevelError, false},
		{"loud", LevelInfo, true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseLevel(tt.in)
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrInvalidLevel)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
			assert.Equal(t, tt.want.String(), got.String())
		})
	}
}

func TestGet_BeforeInitIsSilent(t *testing.T) {
	require.NoError(t, Close())

	logger := Get("silent")
	require.NotNil(t, logger)
	assert.Equal(t, "silent", logger.Component())
	logger.Info("nobody hears this")
	assert.Same(t, logger, Get("silent"))
}

func TestInit_WritesToFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "logs", "trawl.log")
	require.NoError(t, Init(Config{Level: "info", Path: path}))
	t.Cleanup(func() { _ = Close() })

	logger := Get("scheduler")
	logger.Debug("hidden debug")
	logger.Info("search started", "root", "/data")
	logger.With("run", "abc").Warn("slow directory")

	out := readLog(t, path)
	assert.Contains(t, out, "search started")
	assert.Contains(t, out, "root=/data")
	assert.Contains(t, out, "run=abc")
	assert.Contains(t, out, "scheduler")
	assert.NotContains(t, out, "hidden debug")
}

func TestInit_ComponentOverride(t *testing.T) {
	path := filepath.Join(t.TempDir(), "trawl.log")
	require.NoError(t, Init(Config{
		Level:      "warn",
		Path:       path,
		Components: map[string]string{"walker": "debug"},
	}))
	t.Cleanup(func() { _ = Close() })

	Get("walker").Debug("walker detail")
	Get("pool").Info("pool detail")

	out := readLog(t, path)
	assert.Contains(t, out, "walker detail")
	assert.NotContains(t, out, "pool detail")
}

func TestInit_Errors(t *testing.T) {
	dir := t.TempDir()

	assert.ErrorIs(t, Init(Config{Level: "loud", Path: filepath.Join(dir, "a.log")}), ErrInvalidLevel)
	assert.ErrorIs(t, Init(Config{
		Level:      "info",
		Path:       filepath.Join(dir, "b.log"),
		Components: map[string]string{"x": "nope"},
	}), ErrInvalidLevel)
	assert.ErrorIs(t, Init(Config{
		Level:        "info",
		Path:         filepath.Join(dir, "c.log"),
		ConsoleLevel: "nope",
	}), ErrInvalidLevel)

	blocker := filepath.Join(dir, "file")
	require.NoError(t, os.WriteFile(blocker, nil, 0o644))
	assert.Error(t, Init(Config{Level: "info", Path: filepath.Join(blocker, "x.log")}))
}

func TestInit_Console(t *testing.T) {
	var buf bytes.Buffer
	globalState.mu.Lock()
	globalState.console = &buf
	globalState.mu.Unlock()
	t.Cleanup(func() {
		_ = Close()
		globalState.mu.Lock()
		globalState.console = os.Stderr
		globalState.mu.Unlock()
	})

	require.NoError(t, Init(Config{
		Level:        "debug",
		Path:         filepath.Join(t.TempDir(), "trawl.log"),
		ConsoleLevel: "warn",
	}))

	logger := Get("cli")
	logger.Info("file only")
	logger.Error("both places")

	assert.NotContains(t, buf.String(), "file only")
	assert.Contains(t, buf.String(), "both places")
}

func TestFileWriter_Rotates(t *testing.T) {
	path := filepath.Join(t.TempDir(), "trawl.log")
	w, err := newFileWriter(path, 64)
	require.NoError(t, err)
	defer w.Close()

	line := []byte(strings.Repeat("x", 40) + "\n")
	for range 3 {
		_, err := w.Write(line)
		require.NoError(t, err)
	}

	_, err = os.Stat(path + ".1")
	assert.NoError(t, err, "backup file created")

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.LessOrEqual(t, info.Size(), int64(64))

	require.NoError(t, w.Close())
	_, err = w.Write(line)
	assert.ErrorIs(t, err, os.ErrClosed)
}

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()
	assert.Equal(t, "info", cfg.Level)
	assert.True(t, strings.HasSuffix(cfg.Path, filepath.Join("trawl", "trawl.log")))
	assert.Equal(t, int64(DefaultMaxSize), cfg.MaxSize)
}
