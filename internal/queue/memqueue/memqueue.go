// Package memqueue is an in-process queue.Backend for local runs and tests.
// Jobs do not survive a restart.
package memqueue

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/phrazzld/quizgen-api/internal/queue"
)

// ErrQueueFull is returned when a queue already holds its capacity of
// waiting and delayed jobs.
var ErrQueueFull = errors.New("queue is full")

type entry struct {
	job        queue.Job
	enqueuedAt time.Time
	visibleAt  time.Time
	leasedAt   time.Time
	deliveries int
}

type namedQueue struct {
	waiting   []*entry
	delayed   []*entry
	active    map[string]*entry
	failed    map[string]string
	completed int64
	paused    bool
}

// Queue implements queue.Backend in memory.
type Queue struct {
	mu        sync.Mutex
	queues    map[string]*namedQueue
	seen      map[string]time.Time
	capacity  int
	dedupeTTL time.Duration
	now       func() time.Time
	logger    *slog.Logger
}

// Option configures a Queue.
type Option func(*Queue)

// WithClock replaces time.Now, letting tests move delayed jobs forward.
func WithClock(now func() time.Time) Option {
	return func(q *Queue) { q.now = now }
}

// WithCapacity bounds the number of pending jobs per queue. Zero means unbounded.
func WithCapacity(n int) Option {
	return func(q *Queue) { q.capacity = n }
}

// WithDedupeTTL sets how long an accepted job id blocks duplicates.
func WithDedupeTTL(ttl time.Duration) Option {
	return func(q *Queue) { q.dedupeTTL = ttl }
}

// New creates an empty in-memory queue.
func New(logger *slog.Logger, opts ...Option) *Queue {
	if logger == nil {
		logger = slog.Default()
	}
	q := &Queue{
		queues:    map[string]*namedQueue{},
		seen:      map[string]time.Time{},
		dedupeTTL: 24 * time.Hour,
		now:       time.Now,
		logger:    logger.With("component", "memqueue"),
	}
	for _, opt := range opts {
		opt(q)
	}
	return q
}

var _ queue.Backend = (*Queue)(nil)

func (q *Queue) named(name string) *namedQueue {
	nq, ok := q.queues[name]
	if !ok {
		nq = &namedQueue{active: map[string]*entry{}, failed: map[string]string{}}
		q.queues[name] = nq
	}
	return nq
}

// Enqueue validates every job first and then accepts them together.
func (q *Queue) Enqueue(_ context.Context, jobs ...queue.Job) error {
	for _, job := range jobs {
		if err := job.Validate(); err != nil {
			return err
		}
	}

	q.mu.Lock()
	defer q.mu.Unlock()

	now := q.now()
	q.expireSeen(now)

	if q.capacity > 0 {
		adding := map[string]int{}
		for _, job := range jobs {
			adding[job.Queue]++
		}
		for name, n := range adding {
			nq := q.named(name)
			if len(nq.waiting)+len(nq.delayed)+n > q.capacity {
				return fmt.Errorf("%w: %s capacity %d reached", ErrQueueFull, name, q.capacity)
			}
		}
	}

	for _, job := range jobs {
		key := job.Queue + ":" + job.ID
		if _, dup := q.seen[key]; dup {
			q.logger.Debug("duplicate job ignored", "queue", job.Queue, "job_id", job.ID)
			continue
		}
		q.seen[key] = now.Add(q.dedupeTTL)

		nq := q.named(job.Queue)
		e := &entry{job: job, enqueuedAt: now, visibleAt: now.Add(job.Delay)}
		if job.Delay > 0 {
			nq.delayed = append(nq.delayed, e)
		} else {
			nq.waiting = append(nq.waiting, e)
		}
		q.logger.Debug("job enqueued", "queue", job.Queue, "job_id", job.ID, "delay", job.Delay)
	}
	return nil
}

func (q *Queue) expireSeen(now time.Time) {
	for key, until := range q.seen {
		if !now.Before(until) {
			delete(q.seen, key)
		}
	}
}

// promote moves delayed jobs whose time has come to the waiting list in
// visibility order.
func (nq *namedQueue) promote(now time.Time) {
	if len(nq.delayed) == 0 {
		return
	}
	sort.SliceStable(nq.delayed, func(i, j int) bool {
		return nq.delayed[i].visibleAt.Before(nq.delayed[j].visibleAt)
	})
	n := 0
	for n < len(nq.delayed) && !nq.delayed[n].visibleAt.After(now) {
		n++
	}
	nq.waiting = append(nq.waiting, nq.delayed[:n]...)
	nq.delayed = append([]*entry(nil), nq.delayed[n:]...)
}

// Dequeue leases the oldest visible job.
func (q *Queue) Dequeue(ctx context.Context, name string) (*queue.Delivery, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	q.mu.Lock()
	defer q.mu.Unlock()

	now := q.now()
	nq := q.named(name)
	nq.promote(now)
	if nq.paused || len(nq.waiting) == 0 {
		return nil, nil
	}

	e := nq.waiting[0]
	nq.waiting = nq.waiting[1:]
	e.leasedAt = now
	e.deliveries++
	nq.active[e.job.ID] = e

	return &queue.Delivery{Job: e.job, EnqueuedAt: e.enqueuedAt, Deliveries: e.deliveries}, nil
}

// Complete acknowledges a leased job.
func (q *Queue) Complete(_ context.Context, d *queue.Delivery) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	nq := q.named(d.Queue)
	if _, ok := nq.active[d.ID]; !ok {
		return fmt.Errorf("%w: %s", queue.ErrUnknownDelivery, d.ID)
	}
	delete(nq.active, d.ID)
	nq.completed++
	return nil
}

// Fail records the job as failed.
func (q *Queue) Fail(_ context.Context, d *queue.Delivery, cause error) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	nq := q.named(d.Queue)
	if _, ok := nq.active[d.ID]; !ok {
		return fmt.Errorf("%w: %s", queue.ErrUnknownDelivery, d.ID)
	}
	delete(nq.active, d.ID)
	reason := "unknown error"
	if cause != nil {
		reason = cause.Error()
	}
	nq.failed[d.ID] = reason
	return nil
}

// RequeueStalled puts jobs leased before now-olderThan back at the head of
// the waiting list.
func (q *Queue) RequeueStalled(_ context.Context, name string, olderThan time.Duration) (int, error) {
	q.mu.Lock()
	defer q.mu.Unlock()

	cutoff := q.now().Add(-olderThan)
	nq := q.named(name)
	var stalled []*entry
	for id, e := range nq.active {
		if e.leasedAt.Before(cutoff) {
			stalled = append(stalled, e)
			delete(nq.active, id)
		}
	}
	sort.Slice(stalled, func(i, j int) bool { return stalled[i].leasedAt.Before(stalled[j].leasedAt) })
	nq.waiting = append(stalled, nq.waiting...)
	if len(stalled) > 0 {
		q.logger.Warn("requeued stalled jobs", "queue", name, "count", len(stalled))
	}
	return len(stalled), nil
}

// Metrics reports counts without promoting delayed jobs.
func (q *Queue) Metrics(_ context.Context, name string) (queue.Metrics, error) {
	q.mu.Lock()
	defer q.mu.Unlock()

	nq, ok := q.queues[name]
	if !ok {
		return queue.Metrics{Queue: name}, nil
	}
	return queue.Metrics{
		Queue:     name,
		Waiting:   int64(len(nq.waiting)),
		Active:    int64(len(nq.active)),
		Delayed:   int64(len(nq.delayed)),
		Failed:    int64(len(nq.failed)),
		Completed: nq.completed,
		Paused:    nq.paused,
	}, nil
}

// Pause stops deliveries from the queue.
func (q *Queue) Pause(_ context.Context, name string) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.named(name).paused = true
	return nil
}

// Resume restarts deliveries from the queue.
func (q *Queue) Resume(_ context.Context, name string) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.named(name).paused = false
	return nil
}
