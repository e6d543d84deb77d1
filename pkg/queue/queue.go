package queue

import (
	"context"
	"sync"
	"time"
)

// Handler processes a dequeued job. A non-nil error triggers a retry until
// the job's attempt budget is exhausted.
type Handler func(ctx context.Context, job *Job) error

// Job is one unit of queued work.
type Job struct {
	Kind       string
	Payload    interface{}
	Attempts   int
	EnqueuedAt time.Time
}

// Config controls queue capacity and delivery policy.
type Config struct {
	Workers    int
	Size       int
	RetryLimit int
	RetryDelay time.Duration
}

// DropFunc is invoked for jobs evicted because the queue was full.
type DropFunc func(job *Job)

// Queue is a bounded in-process work queue. Enqueue never blocks: when the
// queue is full the oldest job is evicted to make room, since queued alerts
// are best-effort and the newest state is the most useful one.
type Queue struct {
	cfg     Config
	jobs    chan *Job
	onDrop  DropFunc
	wg      sync.WaitGroup
	mu      sync.Mutex
	started bool
	stopped bool
}

// New creates a queue; Start must be called before jobs are processed.
func New(cfg Config, onDrop DropFunc) *Queue {
	if cfg.Workers <= 0 {
		cfg.Workers = 1
	}
	if cfg.Size <= 0 {
		cfg.Size = 256
	}
	if cfg.RetryDelay <= 0 {
		cfg.RetryDelay = 100 * time.Millisecond
	}
	return &Queue{
		cfg:    cfg,
		jobs:   make(chan *Job, cfg.Size),
		onDrop: onDrop,
	}
}

// Enqueue adds a job, evicting the oldest entry when full. Returns false if
// the job itself had to be dropped (queue stopped or eviction raced away).
// The sends stay under the mutex so a concurrent Stop cannot close the
// channel mid-enqueue; they are non-blocking, so the lock is never held on a
// full channel.
func (q *Queue) Enqueue(job *Job) bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.stopped {
		return false
	}

	job.EnqueuedAt = time.Now()
	select {
	case q.jobs <- job:
		return true
	default:
	}

	// Full: evict one from the head, then retry once.
	select {
	case old := <-q.jobs:
		if q.onDrop != nil {
			q.onDrop(old)
		}
	default:
	}
	select {
	case q.jobs <- job:
		return true
	default:
		if q.onDrop != nil {
			q.onDrop(job)
		}
		return false
	}
}

// Start launches the worker pool. Workers exit when ctx is cancelled or the
// queue is stopped and drained.
func (q *Queue) Start(ctx context.Context, h Handler) {
	q.mu.Lock()
	if q.started {
		q.mu.Unlock()
		return
	}
	q.started = true
	q.mu.Unlock()

	for i := 0; i < q.cfg.Workers; i++ {
		q.wg.Add(1)
		go q.worker(ctx, h)
	}
}

func (q *Queue) worker(ctx context.Context, h Handler) {
	defer q.wg.Done()
	for {
		select {
		case <-ctx.Done():
			return
		case job, ok := <-q.jobs:
			if !ok {
				return
			}
			q.process(ctx, h, job)
		}
	}
}

func (q *Queue) process(ctx context.Context, h Handler, job *Job) {
	for {
		job.Attempts++
		err := h(ctx, job)
		if err == nil {
			return
		}
		if job.Attempts > q.cfg.RetryLimit {
			if q.onDrop != nil {
				q.onDrop(job)
			}
			return
		}
		select {
		case <-ctx.Done():
			return
		case <-time.After(q.cfg.RetryDelay):
		}
	}
}

// Stop closes the queue and waits for workers to drain in-flight jobs.
func (q *Queue) Stop() {
	q.mu.Lock()
	if q.stopped {
		q.mu.Unlock()
		return
	}
	q.stopped = true
	close(q.jobs)
	q.mu.Unlock()

	q.wg.Wait()
}

// Depth reports the number of queued jobs.
func (q *Queue) Depth() int {
	return len(q.jobs)
}
