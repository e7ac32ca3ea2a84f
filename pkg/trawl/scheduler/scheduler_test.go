package scheduler

import (
	"bytes"
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/charlievieth/fastwalk"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jamesainslie/trawl/pkg/trawl/criteria"
	"github.com/jamesainslie/trawl/pkg/trawl/pool"
)

// canonicalTempDir returns a temp dir with symlinks resolved.
func canonicalTempDir(tb testing.TB) string {
	tb.Helper()
	dir, err := filepath.EvalSymlinks(tb.TempDir())
	require.NoError(tb, err)
	return dir
}

// createTree builds a tree of the given fan-out and depth with filesPerDir
// files in every directory, including empty leaf directories.
func createTree(tb testing.TB, root string, fanout, depth, filesPerDir int) {
	tb.Helper()

	var build func(dir string, level int)
	build = func(dir string, level int) {
		for i := range filesPerDir {
			name := filepath.Join(dir, fmt.Sprintf("file%02d.txt", i))
			require.NoError(tb, os.WriteFile(name, []byte("data"), 0o644))
		}
		if level == depth {
			return
		}
		for i := range fanout {
			sub := filepath.Join(dir, fmt.Sprintf("d%d", i))
			require.NoError(tb, os.Mkdir(sub, 0o755))
			build(sub, level+1)
		}
	}
	build(root, 0)

	// Empty directories exercise batches that publish nothing.
	require.NoError(tb, os.MkdirAll(filepath.Join(root, "empty", "deeper", "still"), 0o755))
}

// countRegularFiles independently counts regular files under root, skipping
// the excluded directories.
func countRegularFiles(tb testing.TB, root string, excluded ...string) int {
	tb.Helper()

	skip := make(map[string]bool, len(excluded))
	for _, e := range excluded {
		skip[e] = true
	}

	var (
		mu    sync.Mutex
		count int
	)
	conf := fastwalk.Config{Follow: false}
	err := fastwalk.Walk(&conf, root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			if skip[path] {
				return fs.SkipDir
			}
			return nil
		}
		if d.Type().IsRegular() {
			mu.Lock()
			count++
			mu.Unlock()
		}
		return nil
	})
	require.NoError(tb, err)
	return count
}

func newTestPool(threads int) *pool.Pool {
	return pool.New(threads, pool.WithRecvTimeout(5*time.Millisecond))
}

func TestRunSearch_Completeness(t *testing.T) {
	root := canonicalTempDir(t)
	createTree(t, root, 3, 3, 4)
	want := countRegularFiles(t, root)
	require.Positive(t, want)

	c, err := criteria.Configure(root)
	require.NoError(t, err)

	for _, threads := range []int{1, 2, 3, 16} {
		for _, batch := range []int{1, 10, 1000} {
			t.Run(fmt.Sprintf("threads=%d/batch=%d", threads, batch), func(t *testing.T) {
				ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
				defer cancel()

				result, err := RunSearch(ctx, c, threads, batch)
				require.NoError(t, err)

				assert.Equal(t, want, result.Files.Len())
				assert.Equal(t, int64(want), result.Stats.FilesScanned, "each file visited exactly once")
				assert.Equal(t, int64(want), result.Stats.FilesMatched)
				assert.Empty(t, result.Errors)
				assert.NotEmpty(t, result.RunID)
				assert.Equal(t, root, result.Root)
			})
		}
	}
}

func TestSearch_Exclusion(t *testing.T) {
	root := canonicalTempDir(t)
	createTree(t, root, 2, 2, 3)
	excluded := filepath.Join(root, "d1")
	nestedExcluded := filepath.Join(root, "d0", "d1")

	c, err := criteria.Configure(root, criteria.WithExcludedDirs(excluded, nestedExcluded))
	require.NoError(t, err)

	p := newTestPool(4)
	defer p.Close()

	result, err := New(p).Search(context.Background(), c)
	require.NoError(t, err)

	want := countRegularFiles(t, root, excluded, nestedExcluded)
	assert.Equal(t, want, result.Files.Len())
	assert.Equal(t, int64(want), result.Stats.FilesScanned, "excluded files are never counted")

	for _, path := range result.Files.Paths() {
		assert.NotContains(t, path, excluded+string(filepath.Separator))
		assert.NotContains(t, path, nestedExcluded+string(filepath.Separator))
	}
}

func TestSearch_ExcludedRoot(t *testing.T) {
	root := canonicalTempDir(t)
	createTree(t, root, 1, 1, 2)

	c, err := criteria.Configure(root, criteria.WithExcludedDirs(root))
	require.NoError(t, err)

	result, err := RunSearch(context.Background(), c, 2, 10)
	require.NoError(t, err)
	assert.Equal(t, 0, result.Files.Len())
	assert.Equal(t, int64(0), result.Stats.DirsScanned)
}

func TestSearch_Filters(t *testing.T) {
	root := canonicalTempDir(t)
	sub := filepath.Join(root, "nested")
	require.NoError(t, os.Mkdir(sub, 0o755))
	for _, dir := range []string{root, sub} {
		for _, name := range []string{"a.txt", "A.TXT", "b.log"} {
			require.NoError(t, os.WriteFile(filepath.Join(dir, name), nil, 0o644))
		}
	}

	tests := []struct {
		name string
		opts []criteria.Option
		want []string
	}{
		{"prefix", []criteria.Option{criteria.WithPrefix("a")}, []string{"A.TXT", "a.txt"}},
		{"extension", []criteria.Option{criteria.WithExtensions("log")}, []string{"b.log"}},
		{"pattern", []criteria.Option{criteria.WithPattern(`^a.*\.txt$`)}, []string{"A.TXT", "a.txt"}},
		{"glob", []criteria.Option{criteria.WithGlob("b.*")}, []string{"b.log"}},
	}

	p := newTestPool(3)
	defer p.Close()
	s := New(p, WithBatchSize(1))

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, err := criteria.Configure(root, tt.opts...)
			require.NoError(t, err)

			result, err := s.Search(context.Background(), c)
			require.NoError(t, err)

			var want []string
			for _, dir := range []string{root, sub} {
				for _, name := range tt.want {
					want = append(want, filepath.Join(dir, name))
				}
			}
			sort.Strings(want)
			assert.Equal(t, want, result.Files.Paths())
			assert.Equal(t, int64(6), result.Stats.FilesScanned)
		})
	}
}

func TestSearch_StopAfterFirstMatchPerDirectory(t *testing.T) {
	root := canonicalTempDir(t)
	// Sorts before the m* files, so it is discovered before the first match.
	other := filepath.Join(root, "a-other")
	require.NoError(t, os.Mkdir(other, 0o755))
	for _, name := range []string{"m1.txt", "m2.txt", "m3.txt"} {
		require.NoError(t, os.WriteFile(filepath.Join(root, name), nil, 0o644))
		require.NoError(t, os.WriteFile(filepath.Join(other, name), nil, 0o644))
	}

	p := newTestPool(2)
	defer p.Close()
	s := New(p)

	c, err := criteria.Configure(root, criteria.WithPrefix("m"), criteria.WithStopAfterFirstMatch(true))
	require.NoError(t, err)

	result, err := s.Search(context.Background(), c)
	require.NoError(t, err)
	assert.Equal(t, []string{
		filepath.Join(other, "m1.txt"),
		filepath.Join(root, "m1.txt"),
	}, result.Files.Paths(), "one match per directory, other directories unaffected")
	assert.Equal(t, int64(2), result.Stats.FilesScanned, "scanning stops at m1 in each directory")

	c, err = criteria.Configure(root, criteria.WithPrefix("m"))
	require.NoError(t, err)

	result, err = s.Search(context.Background(), c)
	require.NoError(t, err)
	assert.Equal(t, 6, result.Files.Len())
}

func TestSearch_PoolLifecycle(t *testing.T) {
	root := canonicalTempDir(t)
	createTree(t, root, 2, 2, 2)
	want := countRegularFiles(t, root)

	c, err := criteria.Configure(root)
	require.NoError(t, err)

	p := newTestPool(4)
	defer p.Close()
	s := New(p, WithBatchSize(2))
	assert.Equal(t, StateIdle, s.State())

	for range 3 {
		result, err := s.Search(context.Background(), c)
		require.NoError(t, err)
		assert.Equal(t, want, result.Files.Len())

		assert.Equal(t, StateHalted, s.State())
		assert.Equal(t, 0, p.ActiveCount(), "pool is torn down after each search")
		assert.Equal(t, pool.StateTerminated, p.State())
	}
	assert.Equal(t, int64(3), p.Starts(), "workers restart lazily for every search")
}

func TestSearch_Cancellation(t *testing.T) {
	root := canonicalTempDir(t)
	createTree(t, root, 4, 3, 2)

	c, err := criteria.Configure(root)
	require.NoError(t, err)

	p := newTestPool(2)
	defer p.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	result, err := New(p, WithBatchSize(1)).Search(ctx, c)
	require.ErrorIs(t, err, context.Canceled)
	require.NotNil(t, result)
	assert.LessOrEqual(t, result.Files.Len(), countRegularFiles(t, root))
	assert.Equal(t, 0, p.ActiveCount())
	assert.Equal(t, 0, p.PendingJobCount())
}

func TestSearch_CancellationMidway(t *testing.T) {
	root := canonicalTempDir(t)
	createTree(t, root, 5, 3, 3)

	c, err := criteria.Configure(root)
	require.NoError(t, err)

	p := newTestPool(1)
	defer p.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Millisecond)
	defer cancel()

	result, err := New(p, WithBatchSize(1)).Search(ctx, c)
	if err != nil {
		assert.ErrorIs(t, err, context.DeadlineExceeded)
	}
	require.NotNil(t, result)
	assert.Equal(t, pool.StateTerminated, p.State())
	assert.Equal(t, 0, p.ActiveCount())
}

func TestSearch_UnreadableDirectoryDoesNotAbort(t *testing.T) {
	if os.Geteuid() == 0 {
		t.Skip("root ignores directory permissions")
	}

	root := canonicalTempDir(t)
	createTree(t, root, 2, 1, 2)
	locked := filepath.Join(root, "d0")
	require.NoError(t, os.Chmod(locked, 0o000))
	t.Cleanup(func() { _ = os.Chmod(locked, 0o755) })

	c, err := criteria.Configure(root)
	require.NoError(t, err)

	result, err := RunSearch(context.Background(), c, 2, 1)
	require.NoError(t, err)

	assert.Equal(t, 2+2, result.Files.Len(), "root and d1 files only")
	require.Len(t, result.Errors, 1)
	assert.Equal(t, locked, result.Errors[0].Path)
	assert.Equal(t, int64(1), result.Stats.Errors)
}

func TestSearch_TerminatesWhileTreeIsWritten(t *testing.T) {
	root := canonicalTempDir(t)
	createTree(t, root, 3, 2, 2)

	c, err := criteria.Configure(root)
	require.NoError(t, err)

	stop := make(chan struct{})
	writerDone := make(chan struct{})
	go func() {
		defer close(writerDone)
		for i := 0; ; i++ {
			select {
			case <-stop:
				return
			default:
			}
			name := filepath.Join(root, "d2", fmt.Sprintf("late%04d.txt", i))
			_ = os.WriteFile(name, nil, 0o644)
			time.Sleep(100 * time.Microsecond)
		}
	}()

	var (
		count     int
		searchErr error
	)
	done := make(chan struct{})
	go func() {
		defer close(done)
		r, err := RunSearch(context.Background(), c, 4, 2)
		count, searchErr = r.Files.Len(), err
	}()

	select {
	case <-done:
	case <-time.After(20 * time.Second):
		t.Fatal("search did not halt while the tree was being written")
	}
	close(stop)
	<-writerDone

	require.NoError(t, searchErr)
	assert.GreaterOrEqual(t, count, 3*3*2+3*2+2, "files present before the search are always found")
}

func TestRunSearch_AutoTuned(t *testing.T) {
	root := canonicalTempDir(t)
	createTree(t, root, 2, 1, 1)

	c, err := criteria.Configure(root)
	require.NoError(t, err)

	result, err := RunSearch(context.Background(), c, 0, 0)
	require.NoError(t, err)
	assert.Equal(t, countRegularFiles(t, root), result.Files.Len())
}

func TestRunSearchWithProgress(t *testing.T) {
	root := canonicalTempDir(t)
	createTree(t, root, 2, 2, 2)

	c, err := criteria.Configure(root)
	require.NoError(t, err)

	var out syncBuffer
	result, err := RunSearchWithProgress(context.Background(), c, 2, 5, time.Millisecond, &out)
	require.NoError(t, err)

	plain, err := RunSearch(context.Background(), c, 2, 5)
	require.NoError(t, err)

	assert.Equal(t, plain.Files.Paths(), result.Files.Paths(), "display does not change results")
	assert.Contains(t, out.String(), "Path: "+root)
	assert.Contains(t, out.String(), "Matched")
}

func TestSearch_NilCriteria(t *testing.T) {
	p := newTestPool(1)
	defer p.Close()

	_, err := New(p).Search(context.Background(), nil)
	assert.ErrorIs(t, err, ErrNilCriteria)
}

func TestSearch_ClosedPool(t *testing.T) {
	root := canonicalTempDir(t)
	c, err := criteria.Configure(root)
	require.NoError(t, err)

	p := newTestPool(1)
	p.Close()

	_, err = New(p).Search(context.Background(), c)
	assert.ErrorIs(t, err, pool.ErrPoolClosed)
}

func TestState_String(t *testing.T) {
	assert.Equal(t, "idle", StateIdle.String())
	assert.Equal(t, "running", StateRunning.String())
	assert.Equal(t, "draining", StateDraining.String())
	assert.Equal(t, "halted", StateHalted.String())
}

func TestSample_Quiescent(t *testing.T) {
	assert.True(t, sample{}.quiescent())
	assert.False(t, sample{outstanding: 1}.quiescent())
	assert.False(t, sample{busy: 1}.quiescent())
	assert.False(t, sample{jobQueue: 1}.quiescent())
	assert.False(t, sample{bufDirs: 1}.quiescent())
	assert.False(t, sample{bufFiles: 1}.quiescent())
	assert.False(t, sample{localQueue: 1}.quiescent())
}

// syncBuffer is a bytes.Buffer safe for the display goroutine.
type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

func BenchmarkSearch_ReusedPool(b *testing.B) {
	root := canonicalTempDir(b)
	createTree(b, root, 4, 3, 5)

	c, err := criteria.Configure(root)
	require.NoError(b, err)

	p := pool.New(8)
	defer p.Close()
	s := New(p, WithBatchSize(16))

	b.ResetTimer()
	for range b.N {
		if _, err := s.Search(context.Background(), c); err != nil {
			b.Fatalf("Search failed: %v", err)
		}
	}
}

func BenchmarkRunSearch_BatchSizes(b *testing.B) {
	root := canonicalTempDir(b)
	createTree(b, root, 4, 3, 5)

	c, err := criteria.Configure(root)
	require.NoError(b, err)

	for _, batch := range []int{1, 10, 100} {
		b.Run(fmt.Sprintf("batch=%d", batch), func(b *testing.B) {
			for range b.N {
				if _, err := RunSearch(context.Background(), c, 8, batch); err != nil {
					b.Fatalf("RunSearch failed: %v", err)
				}
			}
		})
	}
}

func TestResolveSizing(t *testing.T) {
	threads, batch := resolveSizing(100, 10)
	assert.Equal(t, 100, threads)
	assert.Equal(t, 10, batch)

	threads, batch = resolveSizing(100, 0)
	assert.Equal(t, 100, threads, "explicit threads survive auto batch sizing")
	assert.GreaterOrEqual(t, batch, 10)

	threads, batch = resolveSizing(0, 7)
	assert.GreaterOrEqual(t, threads, 2)
	assert.LessOrEqual(t, threads, 64)
	assert.Equal(t, 7, batch)
}
