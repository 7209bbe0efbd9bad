package source

import (
	"context"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"
)

// DefaultDebounce is how long a file must stay quiet before its change is reported.
const DefaultDebounce = 500 * time.Millisecond

// Op is the kind of change reported for a knowledge file.
type Op int

const (
	// OpChanged means the file was created or written and should be re-indexed.
	OpChanged Op = iota
	// OpRemoved means the file is gone and its chunks should be deleted.
	OpRemoved
)

func (o Op) String() string {
	if o == OpRemoved {
		return "removed"
	}
	return "changed"
}

// Event is a change to one knowledge file under a DirSource.
type Event struct {
	Path string // Source path, relative to the root
	Op   Op
}

// Watcher reports changes to the knowledge files of a DirSource. Directories
// created after the watch starts are watched as well.
type Watcher struct {
	watcher  *fsnotify.Watcher
	dir      *DirSource
	debounce time.Duration
	logger   *slog.Logger
}

// NewWatcher creates a watcher over dir. A zero debounce selects DefaultDebounce.
func NewWatcher(dir *DirSource, debounce time.Duration, logger *slog.Logger) (*Watcher, error) {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("create fs watcher: %w", err)
	}
	if debounce <= 0 {
		debounce = DefaultDebounce
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Watcher{watcher: w, dir: dir, debounce: debounce, logger: logger}, nil
}

// Watch starts monitoring and returns the event channel. The channel is
// closed when ctx is done or the watcher is closed.
func (w *Watcher) Watch(ctx context.Context) (<-chan Event, error) {
	if err := w.addTree(w.dir.Root()); err != nil {
		return nil, err
	}

	events := make(chan Event, 100)
	go w.loop(ctx, events)
	return events, nil
}

// Close stops the watcher.
func (w *Watcher) Close() error {
	return w.watcher.Close()
}

func (w *Watcher) loop(ctx context.Context, events chan<- Event) {
	defer close(events)

	pending := make(map[string]Op)
	timer := time.NewTimer(w.debounce)
	timer.Stop()
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return

		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			rel, op, ok := w.classify(event)
			if !ok {
				continue
			}
			pending[rel] = op
			timer.Reset(w.debounce)

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			w.logger.Warn("File watcher error", "error", err)

		case <-timer.C:
			for rel, op := range pending {
				select {
				case events <- Event{Path: rel, Op: op}:
				case <-ctx.Done():
					return
				}
			}
			clear(pending)
		}
	}
}

// classify maps an fsnotify event to a knowledge-file change. New directories
// are added to the watch as a side effect.
func (w *Watcher) classify(event fsnotify.Event) (string, Op, bool) {
	if event.Has(fsnotify.Create) {
		if info, err := os.Stat(event.Name); err == nil && info.IsDir() {
			if err := w.addTree(event.Name); err != nil {
				w.logger.Warn("Failed to watch new directory", "dir", event.Name, "error", err)
			}
			return "", 0, false
		}
	}

	if !IsKnowledgeFile(event.Name) {
		return "", 0, false
	}
	rel, ok := w.dir.Relative(event.Name)
	if !ok {
		return "", 0, false
	}

	switch {
	case event.Has(fsnotify.Remove), event.Has(fsnotify.Rename):
		return rel, OpRemoved, true
	case event.Has(fsnotify.Create), event.Has(fsnotify.Write):
		return rel, OpChanged, true
	default:
		return "", 0, false
	}
}

func (w *Watcher) addTree(root string) error {
	return filepath.WalkDir(root, func(p string, entry fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !entry.IsDir() {
			return nil
		}
		if p != root && strings.HasPrefix(entry.Name(), ".") {
			return filepath.SkipDir
		}
		if err := w.watcher.Add(p); err != nil {
			return fmt.Errorf("watch %s: %w", p, err)
		}
		return nil
	})
}
