package watcher

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recorder struct {
	mu    sync.Mutex
	paths []string
}

func (r *recorder) record(path string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.paths = append(r.paths, path)
}

func (r *recorder) snapshot() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.paths...)
}

func startWatcher(t *testing.T, w *Watcher) context.CancelFunc {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- w.Watch(ctx) }()
	t.Cleanup(func() {
		cancel()
		select {
		case err := <-done:
			assert.ErrorIs(t, err, context.Canceled)
		case <-time.After(2 * time.Second):
			t.Error("watcher did not stop")
		}
	})
	// give fsnotify a moment to register the directory
	time.Sleep(100 * time.Millisecond)
	return cancel
}

func TestWatchDebouncesWrites(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "part.mesh")
	require.NoError(t, os.WriteFile(path, []byte("v0"), 0o644))

	rec := &recorder{}
	startWatcher(t, New([]string{path}, rec.record).WithDebounce(50*time.Millisecond))

	for i := range 3 {
		require.NoError(t, os.WriteFile(path, []byte{byte('a' + i)}, 0o644))
	}

	require.Eventually(t, func() bool { return len(rec.snapshot()) == 1 }, 2*time.Second, 10*time.Millisecond)
	time.Sleep(150 * time.Millisecond)

	got := rec.snapshot()
	require.Len(t, got, 1)
	abs, _ := filepath.Abs(path)
	assert.Equal(t, abs, got[0])
}

func TestWatchIgnoresOtherFiles(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "part.mesh")
	require.NoError(t, os.WriteFile(path, []byte("v0"), 0o644))

	rec := &recorder{}
	startWatcher(t, New([]string{path}, rec.record).WithDebounce(20*time.Millisecond))

	require.NoError(t, os.WriteFile(filepath.Join(dir, "other.mesh"), []byte("x"), 0o644))
	time.Sleep(200 * time.Millisecond)
	assert.Empty(t, rec.snapshot())
}

func TestWatchMissingDirectory(t *testing.T) {
	w := New([]string{filepath.Join(t.TempDir(), "nope", "part.mesh")}, func(string) {})
	err := w.Watch(context.Background())
	assert.Error(t, err)
}

func TestWithDebounceIgnoresNonPositive(t *testing.T) {
	w := New(nil, func(string) {}).WithDebounce(0)
	assert.Equal(t, DefaultDebounce, w.debounce)
}
