package source

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func startWatcher(t *testing.T, root string) (<-chan Event, context.CancelFunc) {
	t.Helper()
	src, err := NewDirSource(root)
	require.NoError(t, err)

	w, err := NewWatcher(src, 50*time.Millisecond, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = w.Close() })

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	t.Cleanup(cancel)

	events, err := w.Watch(ctx)
	require.NoError(t, err)
	return events, cancel
}

func nextEvent(t *testing.T, events <-chan Event) Event {
	t.Helper()
	select {
	case e, ok := <-events:
		require.True(t, ok, "event channel closed")
		return e
	case <-time.After(3 * time.Second):
		t.Fatal("timeout waiting for event")
		return Event{}
	}
}

func TestWatcher_ReportsChangeAndRemoval(t *testing.T) {
	root := t.TempDir()
	events, _ := startWatcher(t, root)

	full := writeFile(t, root, "asthma.md", "# Asthma")
	e := nextEvent(t, events)
	assert.Equal(t, Event{Path: "asthma.md", Op: OpChanged}, e)

	require.NoError(t, os.Remove(full))
	e = nextEvent(t, events)
	assert.Equal(t, Event{Path: "asthma.md", Op: OpRemoved}, e)
}

func TestWatcher_IgnoresOtherFiles(t *testing.T) {
	root := t.TempDir()
	events, _ := startWatcher(t, root)

	writeFile(t, root, "scan.png", "binary")

	select {
	case e := <-events:
		t.Errorf("unexpected event %+v", e)
	case <-time.After(300 * time.Millisecond):
	}
}

func TestWatcher_WatchesNewDirectories(t *testing.T) {
	root := t.TempDir()
	events, _ := startWatcher(t, root)

	require.NoError(t, os.Mkdir(filepath.Join(root, "neurology"), 0o755))
	// Give the watcher time to pick up the new directory.
	time.Sleep(200 * time.Millisecond)
	writeFile(t, root, "neurology/stroke.md", "# Stroke")

	e := nextEvent(t, events)
	assert.Equal(t, Event{Path: "neurology/stroke.md", Op: OpChanged}, e)
}

func TestWatcher_ClosesOnCancel(t *testing.T) {
	events, cancel := startWatcher(t, t.TempDir())
	cancel()

	select {
	case _, ok := <-events:
		assert.False(t, ok)
	case <-time.After(time.Second):
		t.Fatal("channel not closed after cancel")
	}
}
