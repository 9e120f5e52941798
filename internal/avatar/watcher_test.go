package avatar

import (
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dshills/avatarscript/internal/logging"
)

func TestDebouncerCoalesces(t *testing.T) {
	var calls atomic.Int32
	d := newDebouncer(20*time.Millisecond, func() { calls.Add(1) })

	for i := 0; i < 5; i++ {
		d.Call()
	}
	assert.True(t, d.IsPending())

	require.Eventually(t, func() bool { return calls.Load() == 1 }, time.Second, 5*time.Millisecond)
	assert.False(t, d.IsPending())

	time.Sleep(50 * time.Millisecond)
	assert.Equal(t, int32(1), calls.Load())
}

func TestDebouncerCancel(t *testing.T) {
	var calls atomic.Int32
	d := newDebouncer(20*time.Millisecond, func() { calls.Add(1) })

	d.Call()
	d.Cancel()
	assert.False(t, d.IsPending())

	time.Sleep(60 * time.Millisecond)
	assert.Equal(t, int32(0), calls.Load())
}

func newTestWatcher(t *testing.T) (*Watcher, chan string) {
	t.Helper()
	changed := make(chan string, 16)
	w, err := NewWatcher(20*time.Millisecond, func(root string) { changed <- root }, logging.Discard())
	require.NoError(t, err)
	t.Cleanup(func() { _ = w.Close() })
	return w, changed
}

func waitChange(t *testing.T, changed <-chan string) string {
	t.Helper()
	select {
	case root := <-changed:
		return root
	case <-time.After(3 * time.Second):
		t.Fatal("timed out waiting for change")
		return ""
	}
}

func TestWatcherReportsScriptChanges(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(root, "lib"), 0o755))

	w, changed := newTestWatcher(t)
	require.NoError(t, w.Add(root))
	require.NoError(t, w.Add(root), "adding twice is a no-op")

	abs, err := filepath.Abs(root)
	require.NoError(t, err)
	assert.Equal(t, []string{abs}, w.Roots())

	require.NoError(t, os.WriteFile(filepath.Join(root, "lib", "util.lua"), []byte("return 1"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(root, "main.lua"), []byte("x = 1"), 0o644))

	assert.Equal(t, abs, waitChange(t, changed))
}

func TestWatcherIgnoresOtherFiles(t *testing.T) {
	root := t.TempDir()
	w, changed := newTestWatcher(t)
	require.NoError(t, w.Add(root))

	require.NoError(t, os.WriteFile(filepath.Join(root, "notes.txt"), []byte("hi"), 0o644))

	select {
	case root := <-changed:
		t.Fatalf("unexpected change for %s", root)
	case <-time.After(200 * time.Millisecond):
	}
}

func TestWatcherRemoveAndClose(t *testing.T) {
	root := t.TempDir()
	w, _ := newTestWatcher(t)
	require.NoError(t, w.Add(root))
	require.NoError(t, w.Remove(root))
	assert.Empty(t, w.Roots())

	require.NoError(t, w.Close())
	require.NoError(t, w.Close())
	assert.ErrorIs(t, w.Add(root), ErrWatcherClosed)
}
