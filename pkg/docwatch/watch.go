// Package docwatch detects writes to a Document's backing file made by a
// process other than the one holding it open, adapted from the teacher's
// workspace-wide fsnotify loop in pkg/events/fswatch.go but scoped down to
// a single path: one Document owns one file, so there is no per-workspace
// fanout or directory tree to track here, only a debounced watch on one
// path (and, since sqlite journaling may replace rather than edit the
// inode, the containing directory).
package docwatch

import (
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
)

// Event is published whenever the watched file changes on disk.
type Event struct {
	Path     string
	Modified time.Time
}

// Watcher observes a single Document's backing file.
type Watcher struct {
	w      *fsnotify.Watcher
	path   string
	events chan Event
	stop   chan struct{}
}

// Watch starts watching path's containing directory (fsnotify on most
// platforms cannot watch a bare file reliably across editors/sqlite that
// rewrite-and-rename) and filters to events on path itself.
func Watch(path string, debounce time.Duration) (*Watcher, error) {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}

	dir := filepath.Dir(path)
	if err := fw.Add(dir); err != nil {
		_ = fw.Close()
		return nil, err
	}

	if debounce <= 0 {
		debounce = 150 * time.Millisecond
	}

	w := &Watcher{
		w:      fw,
		path:   filepath.Clean(path),
		events: make(chan Event, 16),
		stop:   make(chan struct{}),
	}

	go w.run(debounce)
	return w, nil
}

// Events returns the channel of change notifications for this file.
func (w *Watcher) Events() <-chan Event { return w.events }

// Close stops watching and releases the underlying fsnotify watcher.
func (w *Watcher) Close() error {
	close(w.stop)
	return w.w.Close()
}

func (w *Watcher) run(debounce time.Duration) {
	defer close(w.events)

	var pending bool
	timer := time.NewTimer(time.Hour)
	if !timer.Stop() {
		<-timer.C
	}

	for {
		select {
		case ev, ok := <-w.w.Events:
			if !ok {
				return
			}
			if filepath.Clean(ev.Name) != w.path {
				continue
			}
			if ev.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) == 0 {
				continue
			}
			pending = true
			timer.Reset(debounce)

		case <-timer.C:
			if pending {
				pending = false
				select {
				case w.events <- Event{Path: w.path, Modified: time.Now()}:
				default:
				}
			}

		case _, ok := <-w.w.Errors:
			if !ok {
				return
			}

		case <-w.stop:
			return
		}
	}
}
