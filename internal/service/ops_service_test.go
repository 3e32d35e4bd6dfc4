package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/phrazzld/quizgen-api/internal/domain"
	"github.com/phrazzld/quizgen-api/internal/mocks"
	"github.com/phrazzld/quizgen-api/internal/queue"
)

func TestOpsOverview(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	f := newFixture(t, mocks.Fail(errors.New("model overloaded")), mocks.Succeed(validResponse()))
	upload, pages := f.seedUpload(2)
	f.queuePage(upload)

	require.NoError(t, f.svc.ProcessAttempt(ctx, pages[0].ID)) // fails, retry scheduled
	require.NoError(t, f.svc.ProcessAttempt(ctx, pages[0].ID)) // succeeds
	require.NoError(t, f.svc.ProcessAttempt(ctx, pages[1].ID)) // succeeds

	old := time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC)
	require.NoError(t, f.store.Stores().Usage.Create(ctx, &domain.UsageEvent{
		ID: uuid.New(), TokensIn: intPtr(99999), EstimatedCostUSD: 1, CreatedAt: old,
	}))

	ops, err := NewOpsService(f.store, f.queue, OpsConfig{}, discardLogger(), WithClock(f.clock.Now))
	require.NoError(t, err)

	ov, err := ops.GetOverview(ctx, 0)
	require.NoError(t, err)

	require.Len(t, ov.Queues, 2)
	assert.Equal(t, queue.Generation, ov.Queues[0].Queue)
	assert.Equal(t, int64(2), ov.Queues[0].Waiting, "two start jobs are still waiting")
	assert.Equal(t, int64(1), ov.Queues[0].Delayed, "one retry")
	assert.Equal(t, queue.Rasterization, ov.Queues[1].Queue)

	assert.Equal(t, 24, ov.Usage.WindowHours)
	assert.Equal(t, int64(2), ov.Usage.EventCount, "events outside the window are ignored")
	assert.Equal(t, int64(2000), ov.Usage.TokensIn)
	assert.Equal(t, int64(1000), ov.Usage.TokensOut)
	assert.InDelta(t, 0.0042, ov.Usage.EstimatedCostUSD, 1e-9)

	require.Len(t, ov.RecentErrors, 1)
	re := ov.RecentErrors[0]
	assert.Equal(t, "generation", re.Category)
	assert.Equal(t, "model overloaded", re.Message)
	assert.Equal(t, pages[0].ID, re.PageID)
	assert.Equal(t, 1, re.PageNumber)
	assert.Equal(t, upload.ID, re.UploadID)
	assert.Equal(t, 1, re.AttemptNo)
	assert.False(t, ov.GeneratedAt.IsZero())
}

func TestOpsOverviewLimitsRecentErrors(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	f := newFixture(t, mocks.Fail(errors.New("boom")))
	upload, pages := f.seedUpload(4)
	f.queuePage(upload)
	for _, p := range pages {
		require.NoError(t, f.svc.ProcessAttempt(ctx, p.ID))
	}

	ops, err := NewOpsService(f.store, f.queue, OpsConfig{RecentErrorsLimit: 3}, discardLogger(), WithClock(f.clock.Now))
	require.NoError(t, err)

	ov, err := ops.GetOverview(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, 1, ov.Usage.WindowHours)
	require.Len(t, ov.RecentErrors, 3)
	assert.Equal(t, pages[3].ID, ov.RecentErrors[0].PageID, "newest first")
}

func TestOpsOverviewIsReadOnly(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	f := newFixture(t)
	upload, _ := f.seedUpload(1)
	f.queuePage(upload)

	ops, err := NewOpsService(f.store, f.queue, OpsConfig{}, discardLogger())
	require.NoError(t, err)

	before, err := f.queue.Metrics(ctx, queue.Generation)
	require.NoError(t, err)
	_, err = ops.GetOverview(ctx, 24)
	require.NoError(t, err)
	after, err := f.queue.Metrics(ctx, queue.Generation)
	require.NoError(t, err)
	assert.Equal(t, before, after)
	assert.Len(t, f.queue.Jobs(), 1)
}

func TestOpsOverviewRejectsWindowsBeyondOneYear(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	f := newFixture(t)
	upload, pages := f.seedUpload(1)
	f.queuePage(upload)
	require.NoError(t, f.svc.ProcessAttempt(ctx, pages[0].ID))

	ops, err := NewOpsService(f.store, f.queue, OpsConfig{}, discardLogger(), WithClock(f.clock.Now))
	require.NoError(t, err)

	ov, err := ops.GetOverview(ctx, MaxWindowHours)
	require.NoError(t, err)
	assert.Equal(t, int64(1), ov.Usage.EventCount)

	_, err = ops.GetOverview(ctx, 3_000_000)
	assert.ErrorIs(t, err, domain.ErrValidation)
}
