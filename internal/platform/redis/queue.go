package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"github.com/phrazzld/quizgen-api/internal/queue"
)

// record is the stored form of a job.
type record struct {
	Queue      string          `json:"queue"`
	ID         string          `json:"id"`
	Payload    json.RawMessage `json:"payload"`
	EnqueuedAt int64           `json:"enqueued_at"`
}

// Option configures a Queue.
type Option func(*Queue)

// WithKeyPrefix namespaces every key.
func WithKeyPrefix(prefix string) Option {
	return func(q *Queue) { q.prefix = prefix }
}

// WithDedupeTTL sets how long an accepted job id blocks duplicates.
func WithDedupeTTL(ttl time.Duration) Option {
	return func(q *Queue) { q.dedupeTTL = ttl }
}

// WithLogger sets a custom logger.
func WithLogger(l *slog.Logger) Option {
	return func(q *Queue) { q.logger = l }
}

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(q *Queue) { q.now = now }
}

// Queue implements queue.Backend on Redis. The caller owns the client.
type Queue struct {
	client    goredis.Cmdable
	prefix    string
	dedupeTTL time.Duration
	logger    *slog.Logger
	now       func() time.Time
}

var _ queue.Backend = (*Queue)(nil)

// NewQueue creates a Redis-backed queue.
func NewQueue(client goredis.Cmdable, opts ...Option) *Queue {
	q := &Queue{
		client:    client,
		prefix:    "quizgen",
		dedupeTTL: 24 * time.Hour,
		logger:    slog.Default(),
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(q)
	}
	q.logger = q.logger.With("component", "redis_queue")
	return q
}

// Enqueue accepts jobs atomically per queue.
func (q *Queue) Enqueue(ctx context.Context, jobs ...queue.Job) error {
	byQueue := map[string][]queue.Job{}
	var order []string
	for _, job := range jobs {
		if err := job.Validate(); err != nil {
			return err
		}
		if _, ok := byQueue[job.Queue]; !ok {
			order = append(order, job.Queue)
		}
		byQueue[job.Queue] = append(byQueue[job.Queue], job)
	}

	now := q.now().UnixMilli()
	for _, name := range order {
		k := queueKeys(q.prefix, name)
		batch := byQueue[name]

		scriptKeys := []string{k.jobs, k.wait, k.delayed}
		args := []any{now, q.dedupeTTL.Milliseconds()}
		for _, job := range batch {
			raw, err := json.Marshal(record{Queue: name, ID: job.ID, Payload: job.Payload, EnqueuedAt: now})
			if err != nil {
				return fmt.Errorf("redis: encode job %s: %w", job.ID, err)
			}
			scriptKeys = append(scriptKeys, k.dedupe+job.ID)
			args = append(args, job.ID, job.Delay.Milliseconds(), string(raw))
		}

		added, err := enqueueScript.Run(ctx, q.client, scriptKeys, args...).Int()
		if err != nil {
			return fmt.Errorf("redis: enqueue on %s: %w", name, err)
		}
		if skipped := len(batch) - added; skipped > 0 {
			q.logger.Debug("duplicate jobs ignored", "queue", name, "count", skipped)
		}
	}
	return nil
}

// Dequeue leases the next visible job.
func (q *Queue) Dequeue(ctx context.Context, name string) (*queue.Delivery, error) {
	k := queueKeys(q.prefix, name)
	res, err := dequeueScript.Run(ctx, q.client,
		[]string{k.jobs, k.wait, k.delayed, k.active, k.paused, k.deliveries},
		q.now().UnixMilli(),
	).Slice()
	if errors.Is(err, goredis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("redis: dequeue from %s: %w", name, err)
	}
	if len(res) != 3 {
		return nil, fmt.Errorf("redis: dequeue from %s: unexpected reply of %d items", name, len(res))
	}

	id, _ := res[0].(string)
	raw, _ := res[1].(string)
	count, _ := res[2].(int64)

	var rec record
	if err := json.Unmarshal([]byte(raw), &rec); err != nil {
		return nil, fmt.Errorf("redis: decode job %s: %w", id, err)
	}
	return &queue.Delivery{
		Job:        queue.Job{Queue: name, ID: id, Payload: rec.Payload},
		EnqueuedAt: time.UnixMilli(rec.EnqueuedAt),
		Deliveries: int(count),
	}, nil
}

// Complete acknowledges a leased job and drops its record.
func (q *Queue) Complete(ctx context.Context, d *queue.Delivery) error {
	k := queueKeys(q.prefix, d.Queue)
	n, err := completeScript.Run(ctx, q.client,
		[]string{k.active, k.jobs, k.completed, k.deliveries}, d.ID).Int()
	if err != nil {
		return fmt.Errorf("redis: complete %s: %w", d.ID, err)
	}
	if n == 0 {
		return fmt.Errorf("%w: %s", queue.ErrUnknownDelivery, d.ID)
	}
	return nil
}

// Fail moves a leased job to the failed hash. Its record is kept for triage.
func (q *Queue) Fail(ctx context.Context, d *queue.Delivery, cause error) error {
	reason := "unknown error"
	if cause != nil {
		reason = cause.Error()
	}
	k := queueKeys(q.prefix, d.Queue)
	n, err := failScript.Run(ctx, q.client, []string{k.active, k.failed}, d.ID, reason).Int()
	if err != nil {
		return fmt.Errorf("redis: fail %s: %w", d.ID, err)
	}
	if n == 0 {
		return fmt.Errorf("%w: %s", queue.ErrUnknownDelivery, d.ID)
	}
	return nil
}

// RequeueStalled returns long-leased jobs to the head of the waiting list.
func (q *Queue) RequeueStalled(ctx context.Context, name string, olderThan time.Duration) (int, error) {
	k := queueKeys(q.prefix, name)
	cutoff := q.now().Add(-olderThan).UnixMilli()
	n, err := requeueStalledScript.Run(ctx, q.client, []string{k.active, k.wait}, cutoff).Int()
	if err != nil {
		return 0, fmt.Errorf("redis: requeue stalled on %s: %w", name, err)
	}
	if n > 0 {
		q.logger.Warn("requeued stalled jobs", "queue", name, "count", n)
	}
	return n, nil
}

// Metrics reads counts in one round trip.
func (q *Queue) Metrics(ctx context.Context, name string) (queue.Metrics, error) {
	k := queueKeys(q.prefix, name)

	pipe := q.client.TxPipeline()
	waiting := pipe.LLen(ctx, k.wait)
	active := pipe.ZCard(ctx, k.active)
	delayed := pipe.ZCard(ctx, k.delayed)
	failed := pipe.HLen(ctx, k.failed)
	completed := pipe.Get(ctx, k.completed)
	paused := pipe.Exists(ctx, k.paused)
	if _, err := pipe.Exec(ctx); err != nil && !errors.Is(err, goredis.Nil) {
		return queue.Metrics{}, fmt.Errorf("redis: metrics for %s: %w", name, err)
	}

	var completedCount int64
	if v, err := completed.Result(); err == nil {
		completedCount, _ = strconv.ParseInt(v, 10, 64)
	}

	return queue.Metrics{
		Queue:     name,
		Waiting:   waiting.Val(),
		Active:    active.Val(),
		Delayed:   delayed.Val(),
		Failed:    failed.Val(),
		Completed: completedCount,
		Paused:    paused.Val() == 1,
	}, nil
}

// Pause stops deliveries from the queue.
func (q *Queue) Pause(ctx context.Context, name string) error {
	if err := q.client.Set(ctx, queueKeys(q.prefix, name).paused, "1", 0).Err(); err != nil {
		return fmt.Errorf("redis: pause %s: %w", name, err)
	}
	return nil
}

// Resume restarts deliveries from the queue.
func (q *Queue) Resume(ctx context.Context, name string) error {
	if err := q.client.Del(ctx, queueKeys(q.prefix, name).paused).Err(); err != nil {
		return fmt.Errorf("redis: resume %s: %w", name, err)
	}
	return nil
}
