package service

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/phrazzld/quizgen-api/internal/domain"
	"github.com/phrazzld/quizgen-api/internal/generation"
	"github.com/phrazzld/quizgen-api/internal/queue"
	"github.com/phrazzld/quizgen-api/internal/store"
)

const opOpsOverview = "ops_overview"

// MaxWindowHours is the longest usage window the overview reports, one year.
const MaxWindowHours = 8760

// unknownError is reported for failed attempts that carry no message.
const unknownError = "Unknown error"

// OpsConfig sets the defaults of the ops overview.
type OpsConfig struct {
	WindowHours       int
	RecentErrorsLimit int
}

// UsageSummary totals LLM usage over a window.
type UsageSummary struct {
	WindowHours      int
	TokensIn         int64
	TokensOut        int64
	EstimatedCostUSD float64
	EventCount       int64
}

// RecentError is a failed attempt prepared for triage.
type RecentError struct {
	AttemptID  uuid.UUID
	Category   string
	Message    string
	OccurredAt time.Time
	PageID     uuid.UUID
	PageNumber int
	UploadID   uuid.UUID
	AttemptNo  int
}

// OpsOverview is a read-only snapshot of pipeline health.
type OpsOverview struct {
	GeneratedAt  time.Time
	Queues       []queue.Metrics
	Usage        UsageSummary
	RecentErrors []RecentError
}

// OpsService summarizes queue health, usage cost and recent failures.
type OpsService struct {
	tx     store.Transactor
	queue  queue.Queue
	cfg    OpsConfig
	now    func() time.Time
	logger *slog.Logger
}

// NewOpsService creates an OpsService.
func NewOpsService(tx store.Transactor, q queue.Queue, cfg OpsConfig, logger *slog.Logger, opts ...Option) (*OpsService, error) {
	const op = "create_ops_service"
	switch {
	case tx == nil:
		return nil, missingDependency(op, "transactor")
	case q == nil:
		return nil, missingDependency(op, "queue")
	case logger == nil:
		return nil, missingDependency(op, "logger")
	}
	if cfg.WindowHours <= 0 || cfg.WindowHours > MaxWindowHours {
		cfg.WindowHours = 24
	}
	if cfg.RecentErrorsLimit <= 0 {
		cfg.RecentErrorsLimit = 20
	}
	set := applyOptions(opts)
	return &OpsService{
		tx:     tx,
		queue:  q,
		cfg:    cfg,
		now:    set.now,
		logger: logger.With("component", "ops_service"),
	}, nil
}

// GetOverview gathers queue metrics, usage totals for the trailing window
// and the most recent failed attempts. A windowHours of zero or less uses
// the configured default; more than MaxWindowHours is a validation error.
// The reads run concurrently and nothing is written.
func (s *OpsService) GetOverview(ctx context.Context, windowHours int) (ov *OpsOverview, err error) {
	ctx, span := tracer.Start(ctx, "ops.overview")
	defer func() { endSpan(span, err) }()

	if windowHours > MaxWindowHours {
		return nil, NewServiceError(opOpsOverview, "window too long",
			fmt.Errorf("%w: windowHours must be at most %d", domain.ErrValidation, MaxWindowHours))
	}
	if windowHours <= 0 {
		windowHours = s.cfg.WindowHours
	}
	now := s.now()
	since := now.Add(-time.Duration(windowHours) * time.Hour)
	stores := s.tx.Stores()

	var (
		genMetrics, rasterMetrics queue.Metrics
		totals                    store.UsageTotals
		failures                  []store.FailedAttempt
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		genMetrics, err = s.queue.Metrics(gctx, queue.Generation)
		return err
	})
	g.Go(func() error {
		var err error
		rasterMetrics, err = s.queue.Metrics(gctx, queue.Rasterization)
		return err
	})
	g.Go(func() error {
		var err error
		totals, err = stores.Usage.Totals(gctx, since)
		return err
	})
	g.Go(func() error {
		var err error
		failures, err = stores.Attempts.ListRecentFailures(gctx, since, s.cfg.RecentErrorsLimit)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, NewServiceError(opOpsOverview, "failed to gather ops overview", err)
	}

	ov = &OpsOverview{
		GeneratedAt: now,
		Queues:      []queue.Metrics{genMetrics, rasterMetrics},
		Usage: UsageSummary{
			WindowHours:      windowHours,
			TokensIn:         totals.TokensIn,
			TokensOut:        totals.TokensOut,
			EstimatedCostUSD: generation.RoundUSD(totals.EstimatedCostUSD),
			EventCount:       totals.EventCount,
		},
		RecentErrors: make([]RecentError, 0, len(failures)),
	}
	for _, f := range failures {
		msg := unknownError
		if f.Attempt.ErrorMessage != nil && *f.Attempt.ErrorMessage != "" {
			msg = *f.Attempt.ErrorMessage
		}
		ov.RecentErrors = append(ov.RecentErrors, RecentError{
			AttemptID:  f.Attempt.ID,
			Category:   "generation",
			Message:    msg,
			OccurredAt: f.Attempt.CreatedAt,
			PageID:     f.Attempt.PageID,
			PageNumber: f.PageNumber,
			UploadID:   f.UploadID,
			AttemptNo:  f.Attempt.AttemptNo,
		})
	}
	return ov, nil
}
