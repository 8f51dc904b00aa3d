// Package workqueue runs client-side sync tasks strictly serially, off an
// unbounded FIFO, while guaranteeing that a given task id is never queued
// or running more than once at a time.
package workqueue

import (
	"container/list"
	"context"
	"sync"

	"github.com/voidiz/seedmirror/internal/logging"
	"github.com/voidiz/seedmirror/internal/safemap"
)

// Task is one unit of work submitted to the queue. ID identifies the task
// for de-duplication purposes; Run performs the work.
type Task struct {
	ID  string
	Run func(ctx context.Context) error
}

// Queue is an unbounded FIFO of Tasks drained by a single worker
// goroutine, so submitted work always executes in submission order and
// never overlaps with itself.
type Queue struct {
	mu     sync.Mutex
	items  *list.List
	notify chan struct{}

	active *safemap.Map[string, struct{}]
}

// New creates an empty Queue and starts its worker goroutine.
func New(ctx context.Context) *Queue {
	q := &Queue{
		items:  list.New(),
		notify: make(chan struct{}, 1),
		active: safemap.New[string, struct{}](),
	}
	go q.run(ctx)
	return q
}

// Submit enqueues t unless a task with the same ID is already queued or
// running, in which case the new submission is dropped.
func (q *Queue) Submit(t Task) {
	if !q.active.SetIfAbsent(t.ID, struct{}{}) {
		logging.L.Info().
			WithMessage("dropping duplicate task, already active").
			WithField("id", t.ID).
			Write()
		return
	}

	q.mu.Lock()
	q.items.PushBack(t)
	q.mu.Unlock()

	select {
	case q.notify <- struct{}{}:
	default:
	}
}

func (q *Queue) pop() (Task, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	front := q.items.Front()
	if front == nil {
		return Task{}, false
	}
	q.items.Remove(front)
	return front.Value.(Task), true
}

func (q *Queue) run(ctx context.Context) {
	for {
		t, ok := q.pop()
		if !ok {
			select {
			case <-ctx.Done():
				return
			case <-q.notify:
				continue
			}
		}

		if err := t.Run(ctx); err != nil {
			logging.L.Error(err).WithMessage("task failed").WithField("id", t.ID).Write()
		}
		q.active.Del(t.ID)

		select {
		case <-ctx.Done():
			return
		default:
		}
	}
}
