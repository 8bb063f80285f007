package runloop

import (
	"context"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
)

func testLog() *logrus.Entry {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return logrus.NewEntry(l)
}

func waitFor(t *testing.T, done <-chan struct{}) {
	t.Helper()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for the loop")
	}
}

func TestLoopRunsTasksInOrder(t *testing.T) {
	loop := New(16, testLog())
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go loop.Run(ctx)

	var (
		mu  sync.Mutex
		got []int
	)
	finished := make(chan struct{})
	for i := 0; i < 10; i++ {
		i := i
		loop.Submit(func(context.Context) {
			mu.Lock()
			got = append(got, i)
			mu.Unlock()
			if i == 9 {
				close(finished)
			}
		})
	}
	waitFor(t, finished)

	for i, v := range got {
		if v != i {
			t.Fatalf("order = %v", got)
		}
	}
}

func TestLoopSubmitFromManyGoroutines(t *testing.T) {
	loop := New(4, testLog())
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go loop.Run(ctx)

	// Only the loop goroutine touches count.
	count := 0
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			loop.Submit(func(context.Context) { count++ })
		}()
	}
	wg.Wait()

	finished := make(chan struct{})
	loop.Submit(func(context.Context) { close(finished) })
	waitFor(t, finished)
	if count != 50 {
		t.Fatalf("count = %d, want 50", count)
	}
}

func TestLoopRecoversPanics(t *testing.T) {
	loop := New(4, testLog())
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go loop.Run(ctx)

	loop.Submit(func(context.Context) { panic("boom") })
	finished := make(chan struct{})
	loop.Submit(func(context.Context) { close(finished) })
	waitFor(t, finished)
}

func TestLoopSubmitAfterStop(t *testing.T) {
	loop := New(4, testLog())
	ctx, cancel := context.WithCancel(context.Background())
	go loop.Run(ctx)
	cancel()
	waitFor(t, loop.Done())

	if loop.Submit(func(context.Context) {}) {
		t.Fatal("Submit after stop must report false")
	}
}
