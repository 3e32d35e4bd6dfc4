// Package queue defines the named job queue used for generation and
// rasterization work. Producers enqueue jobs with an idempotency key and an
// optional delay; consumers lease one job at a time and report its outcome.
// Backends live in internal/queue/memqueue and internal/platform/redis.
package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

// Queue names.
const (
	Generation    = "generation"
	Rasterization = "rasterization"
)

var (
	// ErrInvalidJob is returned when a job lacks a queue name or id.
	ErrInvalidJob = errors.New("invalid job")

	// ErrUnknownDelivery is returned when completing or failing a job that
	// is not currently leased.
	ErrUnknownDelivery = errors.New("delivery is not active")
)

// Job is one unit of work. ID is the idempotency key: enqueueing a job whose
// ID was already accepted on the same queue is a silent no-op.
type Job struct {
	Queue   string          `json:"queue"`
	ID      string          `json:"id"`
	Payload json.RawMessage `json:"payload"`
	Delay   time.Duration   `json:"-"`
}

// NewJob builds a job with a JSON-encoded payload.
func NewJob(queueName, id string, payload any, delay time.Duration) (Job, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return Job{}, fmt.Errorf("%w: encode payload: %w", ErrInvalidJob, err)
	}
	return Job{Queue: queueName, ID: id, Payload: raw, Delay: delay}, nil
}

// Validate checks the fields every backend relies on.
func (j Job) Validate() error {
	switch {
	case j.Queue == "":
		return fmt.Errorf("%w: missing queue name", ErrInvalidJob)
	case j.ID == "":
		return fmt.Errorf("%w: missing id", ErrInvalidJob)
	case j.Delay < 0:
		return fmt.Errorf("%w: negative delay", ErrInvalidJob)
	}
	return nil
}

// Delivery is a job leased to one consumer.
type Delivery struct {
	Job
	EnqueuedAt time.Time `json:"enqueued_at"`
	Deliveries int       `json:"deliveries"`
}

// Decode unmarshals the payload into v.
func (d *Delivery) Decode(v any) error {
	if err := json.Unmarshal(d.Payload, v); err != nil {
		return fmt.Errorf("%w: decode payload of %s: %w", ErrInvalidJob, d.ID, err)
	}
	return nil
}

// Metrics is a read-only snapshot of one queue.
type Metrics struct {
	Queue     string `json:"queue"`
	Waiting   int64  `json:"waiting"`
	Active    int64  `json:"active"`
	Delayed   int64  `json:"delayed"`
	Failed    int64  `json:"failed"`
	Completed int64  `json:"completed"`
	Paused    bool   `json:"paused"`
}

// Queue is the producer side.
type Queue interface {
	// Enqueue schedules jobs. Jobs with a positive Delay become visible
	// once the delay has passed; the call itself never waits.
	Enqueue(ctx context.Context, jobs ...Job) error

	// Metrics reports aggregate state without changing it.
	Metrics(ctx context.Context, queueName string) (Metrics, error)
}

// Consumer is the worker side. A job is leased to at most one consumer at a
// time; it returns to the queue only through RequeueStalled.
type Consumer interface {
	// Dequeue leases the next visible job, or returns nil when none is ready
	// or the queue is paused.
	Dequeue(ctx context.Context, queueName string) (*Delivery, error)

	// Complete acknowledges a leased job.
	Complete(ctx context.Context, d *Delivery) error

	// Fail moves a leased job to the failed set with cause as its reason.
	Fail(ctx context.Context, d *Delivery, cause error) error

	// RequeueStalled returns jobs leased longer than olderThan to the
	// waiting list and reports how many moved.
	RequeueStalled(ctx context.Context, queueName string, olderThan time.Duration) (int, error)
}

// Backend is a queue implementation serving both sides plus operator controls.
type Backend interface {
	Queue
	Consumer

	// Pause stops Dequeue from handing out jobs on the queue.
	Pause(ctx context.Context, queueName string) error

	// Resume undoes Pause.
	Resume(ctx context.Context, queueName string) error
}
