// Package watcher adapts fsnotify's directory-level notifications into a
// lazy, infinite stream of (kind, paths) results on a bounded channel,
// recursively watching every directory under each watched root.
package watcher

import (
	"os"
	"path/filepath"

	"github.com/fsnotify/fsnotify"

	"github.com/voidiz/seedmirror/internal/errkind"
)

// Kind classifies a filesystem event the way the debouncer cares about.
type Kind int

const (
	Create Kind = iota
	Modify
	Remove
	Other
)

// Event carries one filesystem notification and the concrete paths it
// affects.
type Event struct {
	Kind  Kind
	Paths []string
}

// Result is a single item on the watcher's output channel: either an
// Event or an Error, never both.
type Result struct {
	Event Event
	Err   error
}

// Watcher wraps a recursive fsnotify watch over one or more roots.
type Watcher struct {
	fsw *fsnotify.Watcher
	out chan Result
}

// New opens a fresh, unwatched Watcher. Results are delivered on a
// capacity-1 channel: a slow consumer backpressures into the fsnotify
// read loop, and from there into the OS's own notification queue, rather
// than silently dropping events here.
func New() (*Watcher, error) {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, errkind.New(errkind.WatcherSetup, "create watcher", err)
	}

	w := &Watcher{fsw: fsw, out: make(chan Result, 1)}
	go w.run()
	return w, nil
}

// Watch recursively registers root and every directory beneath it.
func (w *Watcher) Watch(root string) error {
	return filepath.WalkDir(root, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() {
			return nil
		}
		if addErr := w.fsw.Add(path); addErr != nil {
			return errkind.New(errkind.WatcherSetup, "watch "+path, addErr)
		}
		return nil
	})
}

// Events returns the channel Results are delivered on.
func (w *Watcher) Events() <-chan Result {
	return w.out
}

// Close shuts down the underlying fsnotify watcher. Per spec, shutdown is
// implicit on drop of the handle; Close is the explicit equivalent.
func (w *Watcher) Close() error {
	return w.fsw.Close()
}

func (w *Watcher) run() {
	for {
		select {
		case ev, ok := <-w.fsw.Events:
			if !ok {
				return
			}
			w.handleRaw(ev)
		case err, ok := <-w.fsw.Errors:
			if !ok {
				return
			}
			w.out <- Result{Err: errkind.New(errkind.WatcherSetup, "fsnotify", err)}
		}
	}
}

func (w *Watcher) handleRaw(ev fsnotify.Event) {
	kind := translate(ev.Op)

	if kind == Create {
		if info, err := os.Stat(ev.Name); err == nil && info.IsDir() {
			// Extend the recursive watch to the newly created subtree so
			// files written into it are observed too.
			_ = w.Watch(ev.Name)
		}
	}

	w.out <- Result{Event: Event{Kind: kind, Paths: []string{ev.Name}}}
}

func translate(op fsnotify.Op) Kind {
	switch {
	case op&fsnotify.Create != 0:
		return Create
	case op&fsnotify.Write != 0:
		return Modify
	case op&fsnotify.Remove != 0, op&fsnotify.Rename != 0:
		return Remove
	default:
		return Other
	}
}
