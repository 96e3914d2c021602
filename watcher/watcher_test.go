package watcher

import (
	"context"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func runWatcher(t *testing.T) *Watcher {
	w, err := New()
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = w.Run(ctx)
	}()
	t.Cleanup(func() {
		cancel()
		<-done
		assert.NoError(t, w.Close())
	})
	return w
}

func TestWatcher(t *testing.T) {
	dir := t.TempDir()
	binary := filepath.Join(dir, "core")
	other := filepath.Join(dir, "other")
	require.NoError(t, os.WriteFile(binary, []byte("v1"), 0o755))

	w := runWatcher(t)

	var hits atomic.Int32
	watch, err := w.Watch(binary, func(ev *Event) { hits.Add(1) }, WithModifyFilter())
	require.NoError(t, err)

	require.NoError(t, os.WriteFile(other, []byte("noise"), 0o644))
	require.NoError(t, os.WriteFile(binary, []byte("v2"), 0o755))
	require.Eventually(t, func() bool { return hits.Load() > 0 }, 2*time.Second, 10*time.Millisecond)

	require.NoError(t, w.Unwatch(watch))
	seen := hits.Load()
	require.NoError(t, os.WriteFile(binary, []byte("v3"), 0o755))
	time.Sleep(100 * time.Millisecond)
	assert.Equal(t, seen, hits.Load())
}

func TestWatcherReplaceByRename(t *testing.T) {
	dir := t.TempDir()
	binary := filepath.Join(dir, "core")
	require.NoError(t, os.WriteFile(binary, []byte("v1"), 0o755))

	w := runWatcher(t)

	hit := make(chan *Event, 16)
	_, err := w.Watch(binary, func(ev *Event) { hit <- ev }, WithModifyFilter())
	require.NoError(t, err)

	staged := filepath.Join(dir, ".core.new")
	require.NoError(t, os.WriteFile(staged, []byte("v2"), 0o755))
	require.NoError(t, os.Rename(staged, binary))

	select {
	case ev := <-hit:
		assert.Equal(t, binary, ev.Name)
	case <-time.After(2 * time.Second):
		t.Fatal("replacement was not observed")
	}
}

func TestDebounce(t *testing.T) {
	var calls atomic.Int32
	last := make(chan string, 4)
	cb := WithDebounce(50 * time.Millisecond)(func(ev *Event) {
		calls.Add(1)
		last <- ev.Name
	})

	for range 5 {
		cb(&Event{Name: "/opt/core"})
		time.Sleep(5 * time.Millisecond)
	}
	cb(&Event{Name: "/opt/other"})

	require.Eventually(t, func() bool { return calls.Load() == 2 }, time.Second, 10*time.Millisecond)
	time.Sleep(100 * time.Millisecond)
	assert.EqualValues(t, 2, calls.Load())
	assert.ElementsMatch(t, []string{"/opt/core", "/opt/other"}, []string{<-last, <-last})
}

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}
