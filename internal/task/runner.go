package task

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/phrazzld/quizgen-api/internal/platform/logger"
	"github.com/phrazzld/quizgen-api/internal/queue"
)

// ErrAlreadyStarted is returned by Start on a running TaskRunner.
var ErrAlreadyStarted = errors.New("task runner already started")

// TaskRunnerConfig holds configuration for the task runner
type TaskRunnerConfig struct {
	// PollInterval is how long an idle worker waits before asking its
	// queue again.
	PollInterval time.Duration

	// JobTimeout bounds the handling of a single job.
	JobTimeout time.Duration

	// StalledAfter is how long a job may stay leased before the monitor
	// returns it to its queue.
	StalledAfter time.Duration

	// StalledCheckInterval defines how often the monitor runs.
	// If zero, defaults to one minute
	StalledCheckInterval time.Duration
}

// DefaultTaskRunnerConfig returns a TaskRunnerConfig with reasonable defaults
func DefaultTaskRunnerConfig() TaskRunnerConfig {
	return TaskRunnerConfig{
		PollInterval:         time.Second,
		JobTimeout:           2 * time.Minute,
		StalledAfter:         5 * time.Minute,
		StalledCheckInterval: time.Minute,
	}
}

type registration struct {
	queue       string
	handler     Handler
	concurrency int
}

// TaskRunner consumes registered queues in the background.
type TaskRunner struct {
	consumer  queue.Consumer
	config    TaskRunnerConfig
	logger    *slog.Logger
	recoverer StaleRecoverer

	mu     sync.Mutex
	regs   []registration
	cancel context.CancelFunc
	group  *errgroup.Group
}

// NewTaskRunner creates a new TaskRunner
func NewTaskRunner(consumer queue.Consumer, config TaskRunnerConfig, logger *slog.Logger) *TaskRunner {
	defaults := DefaultTaskRunnerConfig()
	if config.PollInterval <= 0 {
		config.PollInterval = defaults.PollInterval
	}
	if config.JobTimeout <= 0 {
		config.JobTimeout = defaults.JobTimeout
	}
	if config.StalledAfter <= 0 {
		config.StalledAfter = defaults.StalledAfter
	}
	if config.StalledCheckInterval <= 0 {
		config.StalledCheckInterval = defaults.StalledCheckInterval
	}
	if logger == nil {
		logger = slog.Default()
	}

	return &TaskRunner{
		consumer: consumer,
		config:   config,
		logger:   logger.With("component", "task_runner"),
	}
}

// Register consumes queueName with concurrency workers running h.
// It must be called before Start.
func (r *TaskRunner) Register(queueName string, h Handler, concurrency int) {
	if concurrency <= 0 {
		r.logger.Warn("invalid worker count specified, using default",
			"queue", queueName,
			"specified_count", concurrency,
			"default_count", 1)
		concurrency = 1
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.regs = append(r.regs, registration{queue: queueName, handler: h, concurrency: concurrency})
}

// SetStaleRecoverer makes the monitor also recover abandoned attempts.
func (r *TaskRunner) SetStaleRecoverer(rec StaleRecoverer) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.recoverer = rec
}

// Start launches the workers and the stalled-job monitor. They run until
// Stop is called or ctx is cancelled.
func (r *TaskRunner) Start(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.cancel != nil {
		return ErrAlreadyStarted
	}
	if len(r.regs) == 0 {
		return fmt.Errorf("task runner has no registered queues")
	}

	ctx, cancel := context.WithCancel(ctx)
	g, ctx := errgroup.WithContext(ctx)
	r.cancel = cancel
	r.group = g

	for _, reg := range r.regs {
		for i := range reg.concurrency {
			g.Go(func() error {
				r.worker(ctx, reg, i)
				return nil
			})
		}
		r.logger.Info("consuming queue", "queue", reg.queue, "workers", reg.concurrency)
	}
	g.Go(func() error {
		r.stalledMonitor(ctx)
		return nil
	})
	return nil
}

// Stop signals the workers to stop and waits for jobs in progress to finish.
func (r *TaskRunner) Stop() {
	r.mu.Lock()
	cancel, g := r.cancel, r.group
	r.cancel, r.group = nil, nil
	r.mu.Unlock()

	if cancel == nil {
		return
	}
	cancel()
	_ = g.Wait()
	r.logger.Info("task runner stopped")
}

// worker leases and handles jobs from one queue until ctx ends.
func (r *TaskRunner) worker(ctx context.Context, reg registration, id int) {
	r.logger.Debug("starting worker", "queue", reg.queue, "worker_id", id)
	defer r.logger.Debug("stopping worker", "queue", reg.queue, "worker_id", id)

	for {
		if ctx.Err() != nil {
			return
		}
		d, err := r.consumer.Dequeue(ctx, reg.queue)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			r.logger.Error("failed to dequeue job", "queue", reg.queue, "error", err)
		}
		if d == nil {
			if !wait(ctx, r.config.PollInterval) {
				return
			}
			continue
		}
		r.processDelivery(ctx, reg, d, id)
	}
}

// processDelivery runs the handler and reports the outcome to the queue.
// A job in progress is allowed to finish after shutdown begins, bounded by
// the job timeout.
func (r *TaskRunner) processDelivery(ctx context.Context, reg registration, d *queue.Delivery, workerID int) {
	log := r.logger.With(
		"queue", reg.queue,
		"job_id", d.ID,
		"deliveries", d.Deliveries,
		"worker_id", workerID,
	)

	base := context.WithoutCancel(ctx)
	jobCtx, cancel := context.WithTimeout(logger.WithLogger(base, log), r.config.JobTimeout)
	defer cancel()

	log.Debug("processing job")
	started := time.Now()
	err := r.handle(jobCtx, reg.handler, d)

	if err != nil {
		log.Error("job failed", "error", err, "duration", time.Since(started))
		if failErr := r.consumer.Fail(base, d, err); failErr != nil {
			log.Error("failed to mark job failed", "error", failErr)
		}
		return
	}

	log.Debug("job completed", "duration", time.Since(started))
	if completeErr := r.consumer.Complete(base, d); completeErr != nil {
		log.Error("failed to mark job completed", "error", completeErr)
	}
}

// handle calls h, turning a panic into an error.
func (r *TaskRunner) handle(ctx context.Context, h Handler, d *queue.Delivery) (err error) {
	defer func() {
		if p := recover(); p != nil {
			err = fmt.Errorf("job handler panicked: %v", p)
		}
	}()
	return h.Handle(ctx, d)
}

// stalledMonitor periodically returns stalled jobs to their queues and
// recovers attempts abandoned mid flight.
func (r *TaskRunner) stalledMonitor(ctx context.Context) {
	ticker := time.NewTicker(r.config.StalledCheckInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			r.checkStalled(ctx)
		}
	}
}

func (r *TaskRunner) checkStalled(ctx context.Context) {
	r.mu.Lock()
	regs := append([]registration(nil), r.regs...)
	recoverer := r.recoverer
	r.mu.Unlock()

	for _, reg := range regs {
		n, err := r.consumer.RequeueStalled(ctx, reg.queue, r.config.StalledAfter)
		if err != nil {
			r.logger.Error("failed to requeue stalled jobs", "queue", reg.queue, "error", err)
			continue
		}
		if n > 0 {
			r.logger.Info("requeued stalled jobs", "queue", reg.queue, "count", n)
		}
	}

	if recoverer == nil {
		return
	}
	if _, err := recoverer.RecoverStalePages(ctx); err != nil {
		r.logger.Error("failed to recover stale pages", "error", err)
	}
}

// wait sleeps for d and reports false if ctx ended first.
func wait(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}
