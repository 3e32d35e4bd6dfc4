package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/phrazzld/quizgen-api/internal/domain"
	"github.com/phrazzld/quizgen-api/internal/events"
	"github.com/phrazzld/quizgen-api/internal/generation"
	"github.com/phrazzld/quizgen-api/internal/mocks"
	"github.com/phrazzld/quizgen-api/internal/queue"
	"github.com/phrazzld/quizgen-api/internal/store"
)

func decodePageID(t *testing.T, job queue.Job) uuid.UUID {
	t.Helper()
	d := queue.Delivery{Job: job}
	var p queue.GenerationPayload
	require.NoError(t, d.Decode(&p))
	return p.PageID
}

func TestStartGenerationQueuesEveryPendingPage(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	f := newFixture(t)
	upload, pages := f.seedUpload(5)

	n, err := f.svc.StartGeneration(ctx, upload.ID)
	require.NoError(t, err)
	assert.Equal(t, 5, n)

	want := map[uuid.UUID]bool{}
	for _, p := range pages {
		want[p.ID] = true
		assert.Equal(t, domain.PageStatusQueued, f.page(p.ID).Status)
	}

	jobs := f.queue.Jobs()
	require.Len(t, jobs, 5)
	got := map[uuid.UUID]bool{}
	for _, job := range jobs {
		assert.Equal(t, queue.Generation, job.Queue)
		assert.Zero(t, job.Delay)
		got[decodePageID(t, job)] = true
	}
	assert.Equal(t, want, got, "one job per page")

	m, err := f.queue.Metrics(ctx, queue.Generation)
	require.NoError(t, err)
	assert.Equal(t, int64(5), m.Waiting)
}

func TestStartGenerationOnlyTouchesPendingPages(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	f := newFixture(t)
	upload, pages := f.seedUpload(3)

	done := pages[2]
	done.Status = domain.PageStatusComplete
	require.NoError(t, f.store.Stores().Pages.Update(ctx, done))

	n, err := f.svc.StartGeneration(ctx, upload.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	assert.Equal(t, domain.PageStatusComplete, f.page(done.ID).Status)

	_, err = f.svc.StartGeneration(ctx, upload.ID)
	assert.ErrorIs(t, err, domain.ErrNoEligiblePages)
	assert.Len(t, f.queue.Jobs(), 2, "a rejected start enqueues nothing")
}

func TestStartGenerationUnknownUpload(t *testing.T) {
	t.Parallel()
	f := newFixture(t)

	_, err := f.svc.StartGeneration(context.Background(), uuid.New())
	assert.ErrorIs(t, err, store.ErrUploadNotFound)
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestProcessAttemptSuccess(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	f := newFixture(t)
	upload, pages := f.seedUpload(1)
	page := pages[0]
	f.queuePage(upload)

	require.NoError(t, f.svc.ProcessAttempt(ctx, page.ID))

	got := f.page(page.ID)
	assert.Equal(t, domain.PageStatusComplete, got.Status)
	require.NotNil(t, got.Language)
	assert.Equal(t, domain.LanguageBangla, *got.Language)
	require.NotNil(t, got.LastGeneratedAt)

	qs := f.questions(page.ID)
	require.Len(t, qs, 3)
	for i, q := range qs {
		assert.Equal(t, i, q.LineIndex)
		assert.Equal(t, domain.QuestionStatusNotChecked, q.Status)
		assert.Equal(t, upload.Classification, q.Classification)
		assert.Equal(t, domain.LanguageBangla, q.Language)
		assert.Equal(t, domain.Options{A: "one", B: "two", C: "three", D: "four"}, q.Options)
		assert.Equal(t, domain.OptionB, q.CorrectOption)
		assert.False(t, q.IsLockedAfterAdd)
	}
	assert.Equal(t, []string{"first", "second", "third"}, []string{qs[0].Stem, qs[1].Stem, qs[2].Stem})

	attempts := f.attempts(page.ID)
	require.Len(t, attempts, 1)
	a := attempts[0]
	assert.Equal(t, 1, a.AttemptNo)
	assert.True(t, a.IsSuccess)
	assert.Nil(t, a.ErrorMessage)
	assert.Equal(t, "test-model", a.Model)
	assert.Equal(t, "v1", a.PromptVersion)
	assert.Equal(t, fmt.Sprintf("Generate MCQs for upload %s page 1", upload.ID), a.RequestExcerpt)
	require.NotNil(t, a.ResponseExcerpt)
	assert.Equal(t, "0: first | 1: second | 2: third", *a.ResponseExcerpt)

	usage := f.store.UsageEvents()
	require.Len(t, usage, 1)
	assert.Equal(t, a.ID, usage[0].AttemptID)
	assert.Equal(t, page.ID, usage[0].PageID)
	assert.Equal(t, 1000, *usage[0].TokensIn)
	assert.Equal(t, 500, *usage[0].TokensOut)
	assert.InDelta(t, 0.0021, usage[0].EstimatedCostUSD, 1e-9)

	require.Len(t, f.gen.Requests(), 1)
	req := f.gen.Requests()[0]
	assert.Equal(t, page.ID, req.PageID)
	assert.Equal(t, 1, req.PageNumber)
	assert.Empty(t, req.Language)
	assert.True(t, strings.HasPrefix(req.ImageURI, "memory://test-bucket/"+page.PNGKey), req.ImageURI)

	assert.Equal(t, []string{events.PageCompleted}, f.events.Types())
	var payload events.PagePayload
	require.NoError(t, f.events.Last().UnmarshalPayload(&payload))
	assert.Equal(t, 3, payload.QuestionCount)
	assert.Equal(t, 1, payload.AttemptNo)
}

func TestProcessAttemptReplaceIsIdempotent(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	f := newFixture(t)
	upload, pages := f.seedUpload(1)
	page := pages[0]
	f.queuePage(upload)

	require.NoError(t, f.svc.ProcessAttempt(ctx, page.ID))
	first := f.questions(page.ID)

	require.NoError(t, f.svc.RegeneratePage(ctx, page.ID))
	require.NoError(t, f.svc.ProcessAttempt(ctx, page.ID))
	second := f.questions(page.ID)

	strip := func(qs []*domain.Question) []domain.Question {
		out := make([]domain.Question, len(qs))
		for i, q := range qs {
			c := *q
			c.ID, c.CreatedAt, c.UpdatedAt = uuid.Nil, time.Time{}, time.Time{}
			out[i] = c
		}
		return out
	}
	assert.Equal(t, strip(first), strip(second))
	assert.Len(t, f.attempts(page.ID), 2)
}

func TestProcessAttemptFailuresExhaustAttempts(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	f := newFixture(t, mocks.Fail(fmt.Errorf("%w: upstream 503", generation.ErrProviderFailure)))
	upload, pages := f.seedUpload(1)
	page := pages[0]
	f.queuePage(upload)

	require.NoError(t, f.svc.ProcessAttempt(ctx, page.ID))
	assert.Equal(t, domain.PageStatusQueued, f.page(page.ID).Status)
	require.NoError(t, f.svc.ProcessAttempt(ctx, page.ID))
	assert.Equal(t, domain.PageStatusQueued, f.page(page.ID).Status)
	require.NoError(t, f.svc.ProcessAttempt(ctx, page.ID))
	assert.Equal(t, domain.PageStatusFailed, f.page(page.ID).Status)

	attempts := f.attempts(page.ID)
	require.Len(t, attempts, 3)
	for i, a := range attempts {
		assert.Equal(t, i+1, a.AttemptNo)
		assert.False(t, a.IsSuccess)
		require.NotNil(t, a.ErrorMessage)
		assert.Contains(t, *a.ErrorMessage, "upstream 503")
	}

	jobs := f.queue.Jobs()
	require.Len(t, jobs, 3, "start plus two retries")
	assert.Equal(t, 5200*time.Millisecond, jobs[1].Delay)
	assert.Equal(t, 15200*time.Millisecond, jobs[2].Delay)
	for _, job := range jobs {
		assert.Equal(t, page.ID, decodePageID(t, job))
	}

	assert.Equal(t, []string{events.AttemptFailed, events.AttemptFailed, events.PageFailed}, f.events.Types())
	assert.Empty(t, f.questions(page.ID))
	assert.Empty(t, f.store.UsageEvents())
}

func TestProcessAttemptValidationFailureIsRetried(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	bad := validResponse()
	bad.Questions[0].CorrectOption = "a"
	bad.Questions[0].Options = bad.Questions[0].Options[:3]
	f := newFixture(t, mocks.Succeed(bad), mocks.Succeed(validResponse()))
	upload, pages := f.seedUpload(1)
	page := pages[0]
	f.queuePage(upload)

	require.NoError(t, f.svc.ProcessAttempt(ctx, page.ID))
	attempts := f.attempts(page.ID)
	require.Len(t, attempts, 1)
	require.NotNil(t, attempts[0].ErrorMessage)
	assert.Contains(t, *attempts[0].ErrorMessage, generation.ErrInvalidResponse.Error())
	assert.Empty(t, f.questions(page.ID))

	require.NoError(t, f.svc.ProcessAttempt(ctx, page.ID))
	assert.Equal(t, domain.PageStatusComplete, f.page(page.ID).Status)
	assert.Len(t, f.questions(page.ID), 3)
	assert.Equal(t, []int{1, 2}, attemptNumbers(f.attempts(page.ID)))
}

func TestRetryFailedPageContinuesNumbering(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	boom := mocks.Fail(errors.New("boom"))
	f := newFixture(t, boom, boom, boom, mocks.Succeed(validResponse()))
	upload, pages := f.seedUpload(1)
	page := pages[0]
	f.queuePage(upload)

	for range 3 {
		require.NoError(t, f.svc.ProcessAttempt(ctx, page.ID))
	}
	require.Equal(t, domain.PageStatusFailed, f.page(page.ID).Status)

	require.NoError(t, f.svc.RetryFailedPage(ctx, page.ID))
	assert.Equal(t, domain.PageStatusQueued, f.page(page.ID).Status)
	jobs := f.queue.Jobs()
	assert.Zero(t, jobs[len(jobs)-1].Delay)

	require.NoError(t, f.svc.ProcessAttempt(ctx, page.ID))
	assert.Equal(t, domain.PageStatusComplete, f.page(page.ID).Status)
	assert.Equal(t, []int{1, 2, 3, 4}, attemptNumbers(f.attempts(page.ID)))
}

func TestRetryFailedPageRejectsOtherStatuses(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	f := newFixture(t)
	_, pages := f.seedUpload(1)

	err := f.svc.RetryFailedPage(ctx, pages[0].ID)
	assert.ErrorIs(t, err, domain.ErrIllegalTransition)
	assert.Equal(t, domain.PageStatusPending, f.page(pages[0].ID).Status)
	assert.Empty(t, f.queue.Jobs())

	assert.ErrorIs(t, f.svc.RetryFailedPage(ctx, uuid.New()), store.ErrPageNotFound)
}

func TestProcessAttemptIgnoresPagesThatAreNotQueued(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	f := newFixture(t)
	upload, pages := f.seedUpload(1)
	page := pages[0]

	require.NoError(t, f.svc.ProcessAttempt(ctx, page.ID), "pending page")
	assert.Empty(t, f.attempts(page.ID))
	assert.Equal(t, domain.PageStatusPending, f.page(page.ID).Status)

	f.queuePage(upload)
	require.NoError(t, f.svc.ProcessAttempt(ctx, page.ID))
	require.NoError(t, f.svc.ProcessAttempt(ctx, page.ID), "duplicate delivery after completion")
	assert.Len(t, f.attempts(page.ID), 1)
	assert.Len(t, f.gen.Requests(), 1)

	require.NoError(t, f.svc.ProcessAttempt(ctx, uuid.New()), "missing page")
}

func TestRetryJobIsKeptWhenFailureLandsInTheSameMillisecond(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	f := newFixture(t, mocks.Fail(generation.ErrProviderFailure), mocks.Succeed(validResponse()))
	f.clock.Freeze()
	upload, pages := f.seedUpload(1)
	page := pages[0]

	f.queuePage(upload)
	f.deliver(ctx)

	assert.Equal(t, domain.PageStatusQueued, f.page(page.ID).Status)
	m, err := f.queue.Metrics(ctx, queue.Generation)
	require.NoError(t, err)
	assert.Equal(t, int64(1), m.Delayed, "retry job accepted by the queue")

	jobs := f.queue.Jobs()
	require.Len(t, jobs, 2)
	assert.NotEqual(t, jobs[0].ID, jobs[1].ID)

	f.clock.Advance(time.Minute)
	f.deliver(ctx)
	assert.Equal(t, domain.PageStatusComplete, f.page(page.ID).Status)
	assert.Len(t, f.attempts(page.ID), 2)
}

func TestProcessJobDropsJobsOvertakenByRegenerate(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	f := newFixture(t)
	upload, pages := f.seedUpload(1)
	page := pages[0]

	f.queuePage(upload)
	f.clock.Advance(time.Second)
	require.NoError(t, f.svc.RegeneratePage(ctx, page.ID))

	jobs := f.queue.Jobs()
	require.Len(t, jobs, 2)
	payload := func(job queue.Job) queue.GenerationPayload {
		var p queue.GenerationPayload
		require.NoError(t, (&queue.Delivery{Job: job}).Decode(&p))
		return p
	}

	require.NoError(t, f.svc.ProcessJob(ctx, payload(jobs[0])))
	assert.Equal(t, domain.PageStatusQueued, f.page(page.ID).Status)
	assert.Empty(t, f.attempts(page.ID))
	assert.Empty(t, f.gen.Requests())

	require.NoError(t, f.svc.ProcessJob(ctx, payload(jobs[1])))
	assert.Equal(t, domain.PageStatusComplete, f.page(page.ID).Status)
	assert.Len(t, f.attempts(page.ID), 1)
}

func TestRegeneratePage(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	f := newFixture(t)
	upload, pages := f.seedUpload(1)
	page := pages[0]
	f.queuePage(upload)
	require.NoError(t, f.svc.ProcessAttempt(ctx, page.ID))
	require.Len(t, f.questions(page.ID), 3)

	require.NoError(t, f.svc.RegeneratePage(ctx, page.ID))

	got := f.page(page.ID)
	assert.Equal(t, domain.PageStatusQueued, got.Status)
	assert.Nil(t, got.LastGeneratedAt)
	assert.Empty(t, f.questions(page.ID))

	jobs := f.queue.Jobs()
	require.Len(t, jobs, 2)
	assert.Equal(t, page.ID, decodePageID(t, jobs[1]))
	assert.NotEqual(t, jobs[0].ID, jobs[1].ID, "each request gets its own idempotency key")
}

func TestRegeneratePageRefusesLockedQuestions(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	f := newFixture(t)
	_, pages := f.seedUpload(1)
	page := pages[0]
	page.Status = domain.PageStatusComplete
	require.NoError(t, f.store.Stores().Pages.Update(ctx, page))
	qs := f.seedQuestions(page.ID, domain.QuestionStatusApproved, domain.QuestionStatusNotChecked)
	f.lock(qs[0].ID)
	before := f.questions(page.ID)

	err := f.svc.RegeneratePage(ctx, page.ID)
	assert.ErrorIs(t, err, domain.ErrLockConflict)

	assert.Equal(t, before, f.questions(page.ID))
	assert.Equal(t, domain.PageStatusComplete, f.page(page.ID).Status)
	assert.Empty(t, f.queue.Jobs())
}

func TestRegenerateDuringAttemptSupersedesIt(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	var f *fixture
	var regenErr error
	regenerating := func(req generation.Request) (*generation.Response, error) {
		regenErr = f.svc.RegeneratePage(ctx, req.PageID)
		return validResponse(), nil
	}
	f = newFixture(t, regenerating, mocks.Succeed(validResponse()))
	upload, pages := f.seedUpload(1)
	page := pages[0]
	f.queuePage(upload)

	require.NoError(t, f.svc.ProcessAttempt(ctx, page.ID))
	require.NoError(t, regenErr)

	assert.Equal(t, domain.PageStatusQueued, f.page(page.ID).Status)
	assert.Empty(t, f.questions(page.ID), "superseded output is discarded")
	attempts := f.attempts(page.ID)
	require.Len(t, attempts, 1)
	assert.False(t, attempts[0].IsSuccess)
	require.NotNil(t, attempts[0].ErrorMessage)
	assert.Contains(t, *attempts[0].ErrorMessage, "superseded")
	assert.Contains(t, f.events.Types(), events.AttemptSuperseded)

	require.NoError(t, f.svc.ProcessAttempt(ctx, page.ID))
	assert.Equal(t, domain.PageStatusComplete, f.page(page.ID).Status)
	assert.Equal(t, []int{1, 2}, attemptNumbers(f.attempts(page.ID)))
}

func TestFailureAfterRegenerateDoesNotScheduleRetry(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	var f *fixture
	regenerateThenFail := func(req generation.Request) (*generation.Response, error) {
		require.NoError(t, f.svc.RegeneratePage(ctx, req.PageID))
		return nil, errors.New("provider down")
	}
	f = newFixture(t, regenerateThenFail)
	upload, pages := f.seedUpload(1)
	page := pages[0]
	f.queuePage(upload)

	require.NoError(t, f.svc.ProcessAttempt(ctx, page.ID))

	assert.Equal(t, domain.PageStatusQueued, f.page(page.ID).Status)
	assert.Len(t, f.queue.Jobs(), 2, "start and regenerate only")
	attempts := f.attempts(page.ID)
	require.Len(t, attempts, 1)
	require.NotNil(t, attempts[0].ErrorMessage)
}

func TestRecoverStalePages(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	f := newFixture(t)
	upload, pages := f.seedUpload(2)
	f.queuePage(upload)

	// A worker picked the first page and died before reporting back.
	stuck := pages[0]
	_, err := f.svc.beginAttempt(ctx, stuck.ID)
	require.NoError(t, err)

	n, err := f.svc.RecoverStalePages(ctx)
	require.NoError(t, err)
	assert.Zero(t, n, "not stale yet")

	f.clock.Advance(11 * time.Minute)
	n, err = f.svc.RecoverStalePages(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	assert.Equal(t, domain.PageStatusQueued, f.page(stuck.ID).Status)
	attempts := f.attempts(stuck.ID)
	require.Len(t, attempts, 1)
	require.NotNil(t, attempts[0].ErrorMessage)
	assert.Equal(t, "attempt abandoned", *attempts[0].ErrorMessage)

	jobs := f.queue.Jobs()
	assert.Equal(t, 5200*time.Millisecond, jobs[len(jobs)-1].Delay)
	assert.Equal(t, domain.PageStatusQueued, f.page(pages[1].ID).Status, "queued pages are left alone")
}

func TestRecoveredAttemptFinishingLateIsSuperseded(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	f := newFixture(t)
	upload, pages := f.seedUpload(1)
	page := pages[0]
	f.queuePage(upload)

	run, err := f.svc.beginAttempt(ctx, page.ID)
	require.NoError(t, err)
	f.clock.Advance(11 * time.Minute)
	_, err = f.svc.RecoverStalePages(ctx)
	require.NoError(t, err)

	generated, err := generation.Validate(validResponse())
	require.NoError(t, err)
	require.NoError(t, f.svc.recordSuccess(ctx, run, validResponse(), generated))

	assert.Equal(t, domain.PageStatusQueued, f.page(page.ID).Status)
	assert.Empty(t, f.questions(page.ID))
}

func TestAttemptNumbersStayContiguous(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	boom := mocks.Fail(errors.New("boom"))
	f := newFixture(t, boom, mocks.Succeed(validResponse()), boom, boom, mocks.Succeed(validResponse()))
	upload, pages := f.seedUpload(1)
	page := pages[0]
	f.queuePage(upload)

	require.NoError(t, f.svc.ProcessAttempt(ctx, page.ID)) // 1 fails
	require.NoError(t, f.svc.ProcessAttempt(ctx, page.ID)) // 2 succeeds
	require.NoError(t, f.svc.RegeneratePage(ctx, page.ID))
	require.NoError(t, f.svc.ProcessAttempt(ctx, page.ID)) // 3 fails, numbering is not reset so this is terminal
	assert.Equal(t, domain.PageStatusFailed, f.page(page.ID).Status)
	require.NoError(t, f.svc.RetryFailedPage(ctx, page.ID))
	require.NoError(t, f.svc.ProcessAttempt(ctx, page.ID)) // 4 fails, terminal
	assert.Equal(t, domain.PageStatusFailed, f.page(page.ID).Status)
	require.NoError(t, f.svc.RetryFailedPage(ctx, page.ID))
	require.NoError(t, f.svc.ProcessAttempt(ctx, page.ID)) // 5 succeeds

	assert.Equal(t, []int{1, 2, 3, 4, 5}, attemptNumbers(f.attempts(page.ID)))
	assert.Equal(t, domain.PageStatusComplete, f.page(page.ID).Status)
}

func TestGetUploadOverview(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	f := newFixture(t, mocks.Fail(errors.New("boom")), mocks.Succeed(validResponse()))
	upload, pages := f.seedUpload(3)
	f.queuePage(upload)

	require.NoError(t, f.svc.ProcessAttempt(ctx, pages[0].ID)) // fails, back to queued
	require.NoError(t, f.svc.ProcessAttempt(ctx, pages[0].ID)) // succeeds
	require.NoError(t, f.svc.ProcessAttempt(ctx, pages[1].ID)) // succeeds

	ov, err := f.svc.GetUploadOverview(ctx, upload.ID)
	require.NoError(t, err)
	assert.Equal(t, upload.ID, ov.Upload.ID)
	require.Len(t, ov.Pages, 3)
	for i, p := range ov.Pages {
		assert.Equal(t, i+1, p.Page.PageNumber)
		assert.True(t, strings.HasPrefix(p.PNGURL, "memory://test-bucket/"), p.PNGURL)
		assert.True(t, strings.HasPrefix(p.ThumbnailURL, "memory://test-bucket/"), p.ThumbnailURL)
	}

	first := ov.Pages[0]
	assert.Equal(t, 3, first.QuestionCount)
	require.Len(t, first.Attempts, 2)
	assert.Equal(t, 2, first.Attempts[0].AttemptNo, "newest first")
	assert.Equal(t, 1, first.Attempts[1].AttemptNo)
	assert.Zero(t, ov.Pages[2].QuestionCount)
	assert.Empty(t, ov.Pages[2].Attempts)

	assert.Equal(t, map[domain.PageStatus]int{
		domain.PageStatusPending:    0,
		domain.PageStatusQueued:     1,
		domain.PageStatusGenerating: 0,
		domain.PageStatusComplete:   2,
		domain.PageStatusFailed:     0,
	}, ov.StatusCounts)

	_, err = f.svc.GetUploadOverview(ctx, uuid.New())
	assert.ErrorIs(t, err, store.ErrUploadNotFound)
}

func TestNewGenerationServiceValidatesDependencies(t *testing.T) {
	t.Parallel()
	f := newFixture(t)

	_, err := NewGenerationService(nil, f.queue, f.gen, f.svc.backoff, f.objects, events.NewInMemoryEventEmitter(discardLogger()), f.svc.cfg, discardLogger())
	var se *ServiceError
	require.ErrorAs(t, err, &se)
	assert.Contains(t, se.Message, "transactor")

	cfg := f.svc.cfg
	cfg.MaxAttempts = 0
	_, err = NewGenerationService(f.store, f.queue, f.gen, f.svc.backoff, f.objects, events.NewInMemoryEventEmitter(discardLogger()), cfg, discardLogger())
	assert.Error(t, err)
}

func TestTruncateMessage(t *testing.T) {
	t.Parallel()
	assert.Equal(t, "short", truncateMessage("short"))

	long := strings.Repeat("é", maxErrorMessageLen)
	got := truncateMessage(long)
	assert.LessOrEqual(t, len(got), maxErrorMessageLen)
	assert.True(t, strings.HasPrefix(long, got))
	assert.Equal(t, 0, len(got)%2, "never cuts a rune in half")
}

func attemptNumbers(as []*domain.GenerationAttempt) []int {
	out := make([]int, len(as))
	for i, a := range as {
		out[i] = a.AttemptNo
	}
	return out
}
