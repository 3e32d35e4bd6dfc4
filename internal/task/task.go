package task

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/phrazzld/quizgen-api/internal/queue"
)

// Handler processes one delivered job. Returning an error fails the job
// with the queue; returning nil completes it.
type Handler interface {
	Handle(ctx context.Context, d *queue.Delivery) error
}

// HandlerFunc adapts a function to Handler.
type HandlerFunc func(ctx context.Context, d *queue.Delivery) error

// Handle calls f.
func (f HandlerFunc) Handle(ctx context.Context, d *queue.Delivery) error {
	return f(ctx, d)
}

// AttemptProcessor runs the generation attempt a job asks for.
type AttemptProcessor interface {
	ProcessJob(ctx context.Context, job queue.GenerationPayload) error
}

// StaleRecoverer fails attempts abandoned by dead workers.
type StaleRecoverer interface {
	RecoverStalePages(ctx context.Context) (int, error)
}

// GenerationHandler decodes generation jobs and runs their attempt.
func GenerationHandler(p AttemptProcessor) Handler {
	return HandlerFunc(func(ctx context.Context, d *queue.Delivery) error {
		var payload queue.GenerationPayload
		if err := d.Decode(&payload); err != nil {
			return err
		}
		if payload.PageID == uuid.Nil {
			return fmt.Errorf("%w: generation job %s has no page id", queue.ErrInvalidJob, d.ID)
		}
		return p.ProcessJob(ctx, payload)
	})
}
