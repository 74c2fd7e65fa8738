package defs

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func startWatcher(t *testing.T, root string) (<-chan any, context.CancelFunc) {
	t.Helper()

	return startWatcherDebounced(t, root, 50*time.Millisecond)
}

func startWatcherDebounced(t *testing.T, root string, quiet time.Duration) (<-chan any, context.CancelFunc) {
	t.Helper()

	published := make(chan any, 16)
	w := NewWatcher(root, func(tree any) { published <- tree }, nil)
	w.Debounce = quiet
	w.PollInterval = 20 * time.Millisecond

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		assert.NoError(t, w.Run(ctx))
	}()

	t.Cleanup(func() {
		cancel()
		<-done
	})

	return published, cancel
}

func next(t *testing.T, ch <-chan any) any {
	t.Helper()

	select {
	case v := <-ch:
		return v
	case <-time.After(3 * time.Second):
		t.Fatal("timed out waiting for publish")
		return nil
	}
}

// waitFor reads publishes until one satisfies ok.
func waitFor(t *testing.T, ch <-chan any, ok func(any) bool) any {
	t.Helper()

	deadline := time.After(5 * time.Second)
	for {
		select {
		case v := <-ch:
			if ok(v) {
				return v
			}
		case <-deadline:
			t.Fatal("timed out waiting for matching publish")
			return nil
		}
	}
}

func TestWatcher_PublishesEagerly(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "a.json", "1")

	published, _ := startWatcher(t, root)

	assert.Equal(t, map[string]any{"a": 1.0}, next(t, published))
}

func TestWatcher_RepublishesOnChange(t *testing.T) {
	root := t.TempDir()
	published, _ := startWatcher(t, root)

	assert.Equal(t, map[string]any{}, next(t, published))

	writeFile(t, root, "b.json", `"x"`)

	got := waitFor(t, published, func(v any) bool {
		m, ok := v.(map[string]any)
		return ok && m["b"] == "x"
	})
	assert.Equal(t, map[string]any{"b": "x"}, got)
}

func TestWatcher_NewSubdirectoryWatched(t *testing.T) {
	root := t.TempDir()
	published, _ := startWatcher(t, root)
	next(t, published)

	require.NoError(t, os.MkdirAll(filepath.Join(root, "sub"), 0o750))
	// Give the watcher a moment to register the new directory.
	time.Sleep(100 * time.Millisecond)
	writeFile(t, root, "sub/deep.json", "3")

	waitFor(t, published, func(v any) bool {
		m, ok := v.(map[string]any)
		if !ok {
			return false
		}
		sub, ok := m["sub"].(map[string]any)
		return ok && sub["deep"] == 3.0
	})
}

func TestWatcher_RootAppearsLater(t *testing.T) {
	root := filepath.Join(t.TempDir(), "defs")
	published, _ := startWatcher(t, root)

	assert.Nil(t, next(t, published))

	writeFile(t, root, "late.json", "true")

	waitFor(t, published, func(v any) bool {
		m, ok := v.(map[string]any)
		return ok && m["late"] == true
	})
}

func TestWatcher_BurstPublishesOnce(t *testing.T) {
	root := t.TempDir()
	published, _ := startWatcherDebounced(t, root, 300*time.Millisecond)

	assert.Equal(t, map[string]any{}, next(t, published))

	const files = 10
	for i := range files {
		writeFile(t, root, fmt.Sprintf("f%d.json", i), strconv.Itoa(i))
	}

	got, ok := next(t, published).(map[string]any)
	require.True(t, ok)
	assert.Len(t, got, files)

	select {
	case extra := <-published:
		t.Fatalf("burst published more than once: %v", extra)
	case <-time.After(600 * time.Millisecond):
	}
}

func TestWatcher_NoPublishAfterStop(t *testing.T) {
	root := t.TempDir()
	published, cancel := startWatcherDebounced(t, root, 200*time.Millisecond)
	next(t, published)

	writeFile(t, root, "late.json", "1")
	time.Sleep(50 * time.Millisecond)
	cancel()

	select {
	case v := <-published:
		t.Fatalf("published after stop: %v", v)
	case <-time.After(400 * time.Millisecond):
	}
}
