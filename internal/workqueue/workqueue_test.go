package workqueue

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSubmitRunsInFIFOOrder(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	q := New(ctx)

	var mu sync.Mutex
	var order []string
	done := make(chan struct{})

	for i, id := range []string{"a", "b", "c"} {
		i, id := i, id
		q.Submit(Task{
			ID: id,
			Run: func(ctx context.Context) error {
				mu.Lock()
				order = append(order, id)
				mu.Unlock()
				if i == 2 {
					close(done)
				}
				return nil
			},
		})
	}

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("tasks did not complete in time")
	}

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []string{"a", "b", "c"}, order)
}

func TestSubmitDropsDuplicateActiveID(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	q := New(ctx)

	block := make(chan struct{})
	started := make(chan struct{})
	var runCount int
	var mu sync.Mutex

	q.Submit(Task{
		ID: "x",
		Run: func(ctx context.Context) error {
			mu.Lock()
			runCount++
			mu.Unlock()
			close(started)
			<-block
			return nil
		},
	})

	<-started
	// Submitted while "x" is still running: must be dropped, not queued.
	q.Submit(Task{ID: "x", Run: func(ctx context.Context) error {
		mu.Lock()
		runCount++
		mu.Unlock()
		return nil
	}})

	close(block)
	time.Sleep(50 * time.Millisecond)

	mu.Lock()
	defer mu.Unlock()
	require.Equal(t, 1, runCount)
}

func TestSubmitAllowsResubmissionAfterCompletion(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	q := New(ctx)

	var mu sync.Mutex
	var runCount int
	done1 := make(chan struct{})
	done2 := make(chan struct{})

	q.Submit(Task{ID: "y", Run: func(ctx context.Context) error {
		mu.Lock()
		runCount++
		mu.Unlock()
		close(done1)
		return nil
	}})
	<-done1
	// Give run() a moment to clear "y" from the active set after Run
	// returns, since completion is only observable to this test via the
	// close(done1) inside Run, which races the active-set cleanup.
	time.Sleep(50 * time.Millisecond)

	q.Submit(Task{ID: "y", Run: func(ctx context.Context) error {
		mu.Lock()
		runCount++
		mu.Unlock()
		close(done2)
		return nil
	}})

	select {
	case <-done2:
	case <-time.After(time.Second):
		t.Fatal("second submission never ran")
	}

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, 2, runCount)
}
