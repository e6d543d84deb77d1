package queue

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

func TestQueueProcessesJobs(t *testing.T) {
	q := New(Config{Workers: 2, Size: 16}, nil)
	var handled int64
	q.Start(context.Background(), func(_ context.Context, _ *Job) error {
		atomic.AddInt64(&handled, 1)
		return nil
	})

	for i := 0; i < 10; i++ {
		if !q.Enqueue(&Job{Kind: "test"}) {
			t.Fatalf("enqueue %d rejected", i)
		}
	}
	q.Stop()

	if got := atomic.LoadInt64(&handled); got != 10 {
		t.Fatalf("expected 10 handled, got %d", got)
	}
}

func TestQueueEvictsOldestWhenFull(t *testing.T) {
	var mu sync.Mutex
	var dropped []string
	q := New(Config{Workers: 1, Size: 2}, func(job *Job) {
		mu.Lock()
		dropped = append(dropped, job.Kind)
		mu.Unlock()
	})

	// No workers started: jobs accumulate.
	q.Enqueue(&Job{Kind: "a"})
	q.Enqueue(&Job{Kind: "b"})
	q.Enqueue(&Job{Kind: "c"})

	mu.Lock()
	defer mu.Unlock()
	if len(dropped) != 1 || dropped[0] != "a" {
		t.Fatalf("expected oldest job dropped, got %v", dropped)
	}
	if q.Depth() != 2 {
		t.Fatalf("expected depth 2, got %d", q.Depth())
	}
}

func TestQueueRetriesThenDrops(t *testing.T) {
	var mu sync.Mutex
	var dropped int
	q := New(Config{Workers: 1, Size: 4, RetryLimit: 2, RetryDelay: time.Millisecond}, func(*Job) {
		mu.Lock()
		dropped++
		mu.Unlock()
	})

	var attempts int64
	q.Start(context.Background(), func(_ context.Context, _ *Job) error {
		atomic.AddInt64(&attempts, 1)
		return errors.New("sink down")
	})
	q.Enqueue(&Job{Kind: "flaky"})
	q.Stop()

	// Initial attempt plus RetryLimit retries.
	if got := atomic.LoadInt64(&attempts); got != 3 {
		t.Fatalf("expected 3 attempts, got %d", got)
	}
	mu.Lock()
	defer mu.Unlock()
	if dropped != 1 {
		t.Fatalf("expected 1 drop, got %d", dropped)
	}
}

func TestQueueEnqueueDuringStopDoesNotPanic(t *testing.T) {
	q := New(Config{Workers: 2, Size: 4}, nil)
	q.Start(context.Background(), func(_ context.Context, _ *Job) error { return nil })

	var wg sync.WaitGroup
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 200; j++ {
				q.Enqueue(&Job{Kind: "burst"})
			}
		}()
	}
	q.Stop()
	wg.Wait()
}

func TestQueueRejectsAfterStop(t *testing.T) {
	q := New(Config{Workers: 1, Size: 4}, nil)
	q.Start(context.Background(), func(_ context.Context, _ *Job) error { return nil })
	q.Stop()
	if q.Enqueue(&Job{Kind: "late"}) {
		t.Fatalf("expected enqueue to fail after stop")
	}
}
