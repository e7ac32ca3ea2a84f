package walker

import (
	"os"
	"path/filepath"
	"runtime"
	"sort"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jamesainslie/trawl/pkg/trawl/criteria"
	"github.com/jamesainslie/trawl/pkg/trawl/metrics"
	"github.com/jamesainslie/trawl/pkg/trawl/types"
)

// createTestTree creates files (with contents) and empty directories under a
// canonical temp root. Paths ending in "/" are directories.
func createTestTree(t *testing.T, entries map[string]string) string {
	t.Helper()
	root, err := filepath.EvalSymlinks(t.TempDir())
	require.NoError(t, err)

	for rel, content := range entries {
		path := filepath.Join(root, filepath.FromSlash(rel))
		if rel[len(rel)-1] == '/' {
			require.NoError(t, os.MkdirAll(path, 0o755))
			continue
		}
		require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
		require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	}
	return root
}

func names(files []types.MatchedFile) []string {
	out := make([]string, 0, len(files))
	for _, f := range files {
		out = append(out, f.Name())
	}
	sort.Strings(out)
	return out
}

func TestWalkOne_SplitsFilesAndDirs(t *testing.T) {
	root := createTestTree(t, map[string]string{
		"a.txt":       "aaaa",
		"b.log":       "bb",
		"sub/c.txt":   "c",
		"other/":      "",
		"sub/deeper/": "",
	})

	c, err := criteria.Configure(root)
	require.NoError(t, err)
	m := metrics.New()
	w := New(c, m, nil)

	matched, discovered := w.WalkOne(root)

	assert.Equal(t, []string{"a.txt", "b.log"}, names(matched))
	assert.ElementsMatch(t, []string{
		filepath.Join(root, "other"),
		filepath.Join(root, "sub"),
	}, discovered, "no recursion into subdirectories")

	snap := m.Snapshot()
	assert.Equal(t, int64(2), snap.FilesScanned)
	assert.Equal(t, int64(2), snap.FilesMatched)
	assert.Equal(t, int64(6), snap.BytesScanned)
	assert.Equal(t, int64(1), snap.DirsScanned)
}

func TestWalkOne_MatchedFileMetadata(t *testing.T) {
	root := createTestTree(t, map[string]string{"data.bin": "12345"})

	c, err := criteria.Configure(root)
	require.NoError(t, err)

	matched, _ := New(c, nil, nil).WalkOne(root)
	require.Len(t, matched, 1)

	f := matched[0]
	info, err := os.Stat(f.Path)
	require.NoError(t, err)

	assert.Equal(t, filepath.Join(root, "data.bin"), f.Path)
	assert.Equal(t, int64(5), f.Size)
	assert.Equal(t, info.ModTime(), f.ModTime)
	assert.False(t, f.CreateTime.IsZero())
	assert.True(t, f.Mode.IsRegular())
}

func TestWalkOne_CountsEveryVisitedFile(t *testing.T) {
	root := createTestTree(t, map[string]string{
		"match.go":   "x",
		"skip.txt":   "yy",
		"README":     "zzz",
		"nested/a.g": "",
	})

	c, err := criteria.Configure(root, criteria.WithExtensions("go"))
	require.NoError(t, err)
	m := metrics.New()

	matched, _ := New(c, m, nil).WalkOne(root)

	assert.Equal(t, []string{"match.go"}, names(matched))
	snap := m.Snapshot()
	assert.Equal(t, int64(3), snap.FilesScanned, "matched or not, each file counts once")
	assert.Equal(t, int64(6), snap.BytesScanned)
	assert.Equal(t, int64(1), snap.FilesMatched)
}

func TestWalkOne_StopAfterFirstMatch(t *testing.T) {
	entries := map[string]string{
		"a.log":  "",
		"b/":     "",
		"m1.txt": "",
		"m2.txt": "",
		"m3.txt": "",
		"z/":     "",
	}

	t.Run("enabled", func(t *testing.T) {
		root := createTestTree(t, entries)
		c, err := criteria.Configure(root,
			criteria.WithExtensions("txt"),
			criteria.WithStopAfterFirstMatch(true),
		)
		require.NoError(t, err)
		m := metrics.New()

		matched, discovered := New(c, m, nil).WalkOne(root)

		assert.Equal(t, []string{"m1.txt"}, names(matched))
		assert.Equal(t, []string{filepath.Join(root, "b")}, discovered)
		assert.Equal(t, int64(2), m.Snapshot().FilesScanned, "a.log and m1.txt only")
	})

	t.Run("disabled", func(t *testing.T) {
		root := createTestTree(t, entries)
		c, err := criteria.Configure(root, criteria.WithExtensions("txt"))
		require.NoError(t, err)
		m := metrics.New()

		matched, discovered := New(c, m, nil).WalkOne(root)

		assert.Equal(t, []string{"m1.txt", "m2.txt", "m3.txt"}, names(matched))
		assert.Len(t, discovered, 2)
		assert.Equal(t, int64(4), m.Snapshot().FilesScanned)
	})
}

func TestWalkOne_StopAfterFirstMatchSkipsLaterSubdirs(t *testing.T) {
	root := createTestTree(t, map[string]string{
		"a.txt":      "",
		"zdir/b.txt": "",
	})
	c, err := criteria.Configure(root, criteria.WithStopAfterFirstMatch(true))
	require.NoError(t, err)
	m := metrics.New()

	matched, discovered := New(c, m, nil).WalkOne(root)

	assert.Equal(t, []string{"a.txt"}, names(matched))
	assert.Empty(t, discovered, "zdir sorts after the match and is not published")
	assert.Equal(t, int64(1), m.Snapshot().DirsScanned)
}

func TestWalkOne_SkipsSymlinks(t *testing.T) {
	root := createTestTree(t, map[string]string{
		"real.txt": "x",
		"dir/":     "",
	})
	if err := os.Symlink(filepath.Join(root, "real.txt"), filepath.Join(root, "link.txt")); err != nil {
		t.Skipf("symlinks unsupported: %v", err)
	}
	require.NoError(t, os.Symlink(filepath.Join(root, "dir"), filepath.Join(root, "dirlink")))

	c, err := criteria.Configure(root)
	require.NoError(t, err)

	matched, discovered := New(c, nil, nil).WalkOne(root)

	assert.Equal(t, []string{"real.txt"}, names(matched))
	assert.Equal(t, []string{filepath.Join(root, "dir")}, discovered)
}

func TestWalkOne_UnreadableDirectory(t *testing.T) {
	root := createTestTree(t, map[string]string{"ok.txt": ""})

	c, err := criteria.Configure(root)
	require.NoError(t, err)
	m := metrics.New()
	w := New(c, m, nil)

	missing := filepath.Join(root, "vanished")
	matched, discovered := w.WalkOne(missing)

	assert.Empty(t, matched)
	assert.Empty(t, discovered)

	snap := m.Snapshot()
	assert.Equal(t, int64(1), snap.DirsScanned, "failed reads still count as scanned")
	assert.Equal(t, int64(1), snap.Errors)

	errs := w.Errors()
	require.Len(t, errs, 1)
	assert.Equal(t, missing, errs[0].Path)
	assert.NotEmpty(t, errs[0].Error)
}

func TestWalkOne_PermissionDenied(t *testing.T) {
	if runtime.GOOS == "windows" || os.Geteuid() == 0 {
		t.Skip("permission bits are not enforced for this user")
	}

	root := createTestTree(t, map[string]string{"locked/secret.txt": ""})
	locked := filepath.Join(root, "locked")
	require.NoError(t, os.Chmod(locked, 0o000))
	t.Cleanup(func() { _ = os.Chmod(locked, 0o755) })

	c, err := criteria.Configure(root)
	require.NoError(t, err)
	w := New(c, nil, nil)

	matched, _ := w.WalkOne(locked)
	assert.Empty(t, matched)
	assert.Len(t, w.Errors(), 1)
}

func TestWalkBatch_DropsExcludedDirectories(t *testing.T) {
	root := createTestTree(t, map[string]string{
		"keep/a.txt": "",
		"skip/b.txt": "",
		"also/c.txt": "",
	})
	skip := filepath.Join(root, "skip")

	c, err := criteria.Configure(root, criteria.WithExcludedDirs(skip))
	require.NoError(t, err)
	m := metrics.New()

	matched, discovered := New(c, m, nil).WalkBatch([]string{
		filepath.Join(root, "keep"),
		skip,
		filepath.Join(root, "also"),
	})

	assert.Equal(t, []string{"a.txt", "c.txt"}, names(matched))
	assert.Empty(t, discovered)
	assert.Equal(t, int64(2), m.Snapshot().FilesScanned)
	assert.Equal(t, int64(2), m.Snapshot().DirsScanned)
}
