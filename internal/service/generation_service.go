package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/phrazzld/quizgen-api/internal/backoff"
	"github.com/phrazzld/quizgen-api/internal/domain"
	"github.com/phrazzld/quizgen-api/internal/events"
	"github.com/phrazzld/quizgen-api/internal/generation"
	"github.com/phrazzld/quizgen-api/internal/objectstore"
	"github.com/phrazzld/quizgen-api/internal/platform/logger"
	"github.com/phrazzld/quizgen-api/internal/queue"
	"github.com/phrazzld/quizgen-api/internal/store"
)

const (
	opStartGeneration = "start_generation"
	opProcessAttempt  = "process_attempt"
	opRetryPage       = "retry_failed_page"
	opRegeneratePage  = "regenerate_page"
	opUploadOverview  = "upload_overview"
	opRecoverStale    = "recover_stale_pages"
)

// maxErrorMessageLen bounds the error text stored on an attempt.
const maxErrorMessageLen = 1000

// staleBatchSize caps how many stuck pages one recovery pass handles.
const staleBatchSize = 100

// errAttemptAbandoned is recorded on attempts whose worker never reported back.
var errAttemptAbandoned = errors.New("attempt abandoned")

// GenerationConfig holds the orchestrator's tunables.
type GenerationConfig struct {
	// MaxAttempts is the number of attempts after which a page fails terminally.
	MaxAttempts int
	// Model and PromptVersion are recorded on every attempt.
	Model         string
	PromptVersion string
	// StaleAfter is how long a page may sit in generating before recovery
	// treats its attempt as abandoned.
	StaleAfter time.Duration
	// SignTTL is the lifetime of page image links.
	SignTTL time.Duration
	// Rates prices token usage.
	Rates generation.Rates
}

// GenerationService runs the page state machine.
type GenerationService struct {
	tx        store.Transactor
	queue     queue.Queue
	generator generation.Generator
	backoff   backoff.Strategy
	objects   objectstore.Store
	emitter   events.EventEmitter
	cfg       GenerationConfig
	now       func() time.Time
	logger    *slog.Logger
}

// NewGenerationService creates a GenerationService.
// It returns an error if any of the required dependencies are nil.
func NewGenerationService(
	tx store.Transactor,
	q queue.Queue,
	generator generation.Generator,
	strategy backoff.Strategy,
	objects objectstore.Store,
	emitter events.EventEmitter,
	cfg GenerationConfig,
	logger *slog.Logger,
	opts ...Option,
) (*GenerationService, error) {
	const op = "create_generation_service"
	switch {
	case tx == nil:
		return nil, missingDependency(op, "transactor")
	case q == nil:
		return nil, missingDependency(op, "queue")
	case generator == nil:
		return nil, missingDependency(op, "generator")
	case strategy == nil:
		return nil, missingDependency(op, "backoff strategy")
	case objects == nil:
		return nil, missingDependency(op, "object store")
	case emitter == nil:
		return nil, missingDependency(op, "event emitter")
	case logger == nil:
		return nil, missingDependency(op, "logger")
	}
	if cfg.MaxAttempts < 1 {
		return nil, &ServiceError{Operation: op, Message: "max attempts must be at least 1"}
	}

	set := applyOptions(opts)
	return &GenerationService{
		tx:        tx,
		queue:     q,
		generator: generator,
		backoff:   strategy,
		objects:   objects,
		emitter:   emitter,
		cfg:       cfg,
		now:       set.now,
		logger:    logger.With("component", "generation_service"),
	}, nil
}

// StartGeneration queues every pending page of the upload and enqueues one
// job per page. It returns the number of pages queued.
func (s *GenerationService) StartGeneration(ctx context.Context, uploadID uuid.UUID) (n int, err error) {
	ctx, span := tracer.Start(ctx, "generation.start",
		trace.WithAttributes(attribute.String("upload.id", uploadID.String())))
	defer func() { endSpan(span, err) }()

	now := s.now()
	err = s.tx.WithinTx(ctx, func(ctx context.Context, st store.Stores) error {
		if _, err := st.Uploads.GetByID(ctx, uploadID); err != nil {
			return err
		}
		pages, err := st.Pages.ListByStatusForUpdate(ctx, uploadID, domain.PageStatusPending)
		if err != nil {
			return err
		}
		if len(pages) == 0 {
			return fmt.Errorf("%w: upload %s", domain.ErrNoEligiblePages, uploadID)
		}

		jobs := make([]queue.Job, 0, len(pages))
		for _, page := range pages {
			if err := s.transition(ctx, st, page, domain.PageEventStart, now); err != nil {
				return err
			}
			job, err := queue.GenerationJob(page.ID, now, 0)
			if err != nil {
				return err
			}
			jobs = append(jobs, job)
		}
		n = len(jobs)
		return s.queue.Enqueue(ctx, jobs...)
	})
	if err != nil {
		return 0, NewServiceError(opStartGeneration, "failed to start generation", err)
	}

	logger.FromContextOrDefault(ctx, s.logger).Info("generation started",
		"upload_id", uploadID, "queued_pages", n)
	return n, nil
}

// attemptRun is an attempt in flight and the rows it was started from.
type attemptRun struct {
	page    *domain.Page
	upload  *domain.Upload
	attempt *domain.GenerationAttempt
}

// ProcessAttempt runs one generation attempt for the page, whatever job
// queued it.
func (s *GenerationService) ProcessAttempt(ctx context.Context, pageID uuid.UUID) error {
	return s.ProcessJob(ctx, queue.GenerationPayload{PageID: pageID})
}

// ProcessJob runs the generation attempt a job asks for. It is the handler
// for generation jobs.
//
// Jobs for pages that are not queued are dropped: they are duplicates of a
// delivery already being worked, or jobs for pages finished since. So are
// jobs queued before the page was last queued, which a manual retry or
// regenerate has overtaken. LLM and validation failures are recorded on the
// attempt and scheduled for retry; only persistence failures are returned.
func (s *GenerationService) ProcessJob(ctx context.Context, job queue.GenerationPayload) (err error) {
	pageID := job.PageID
	ctx, span := tracer.Start(ctx, "generation.process_attempt",
		trace.WithAttributes(attribute.String("page.id", pageID.String())))
	defer func() { endSpan(span, err) }()

	log := logger.FromContextOrDefault(ctx, s.logger).With("page_id", pageID)

	run, err := s.beginAttempt(ctx, job)
	if err != nil {
		if errors.Is(err, store.ErrPageNotFound) {
			log.Warn("dropping generation job for missing page")
			return nil
		}
		return NewServiceError(opProcessAttempt, "failed to begin attempt", err)
	}
	if run == nil {
		log.Info("dropping generation job, page is not queued for it")
		return nil
	}

	span.SetAttributes(attribute.Int("attempt.no", run.attempt.AttemptNo))
	log = log.With("attempt_no", run.attempt.AttemptNo)
	ctx = logger.WithLogger(ctx, log)

	resp, generated, genErr := s.generate(ctx, run)
	if genErr != nil {
		log.Warn("generation attempt failed", "error", genErr)
		return s.recordFailure(ctx, run, genErr, false)
	}
	return s.recordSuccess(ctx, run, resp, generated)
}

// staleJobSlack absorbs timestamp rounding by the database, which keeps
// page times to the microsecond.
const staleJobSlack = time.Millisecond

// jobIsStale reports whether the page was queued again after job was built.
// Jobs that do not record when they were queued are never stale.
func jobIsStale(page *domain.Page, job queue.GenerationPayload) bool {
	if job.QueuedAt.IsZero() {
		return false
	}
	return page.UpdatedAt.Sub(job.QueuedAt) > staleJobSlack
}

// beginAttempt moves a queued page to generating and appends its next
// attempt. It returns nil when the page is not queued for job.
func (s *GenerationService) beginAttempt(ctx context.Context, job queue.GenerationPayload) (*attemptRun, error) {
	now := s.now()
	var run *attemptRun
	err := s.tx.WithinTx(ctx, func(ctx context.Context, st store.Stores) error {
		page, err := st.Pages.GetByIDForUpdate(ctx, job.PageID)
		if err != nil {
			return err
		}
		if page.Status != domain.PageStatusQueued || jobIsStale(page, job) {
			return nil
		}
		upload, err := st.Uploads.GetByID(ctx, page.UploadID)
		if err != nil {
			return err
		}
		prior, err := st.Attempts.CountByPage(ctx, page.ID)
		if err != nil {
			return err
		}
		if err := s.transition(ctx, st, page, domain.PageEventPicked, now); err != nil {
			return err
		}

		attempt := &domain.GenerationAttempt{
			ID:             uuid.New(),
			PageID:         page.ID,
			AttemptNo:      prior + 1,
			Model:          s.cfg.Model,
			PromptVersion:  s.cfg.PromptVersion,
			RequestExcerpt: domain.RequestExcerpt(upload.ID, page.PageNumber),
			CreatedAt:      now,
		}
		if err := st.Attempts.Create(ctx, attempt); err != nil {
			return err
		}
		run = &attemptRun{page: page, upload: upload, attempt: attempt}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return run, nil
}

// generate calls the provider and validates its answer.
func (s *GenerationService) generate(
	ctx context.Context,
	run *attemptRun,
) (*generation.Response, []generation.GeneratedQuestion, error) {
	req := generation.Request{
		PageID:     run.page.ID,
		UploadID:   run.upload.ID,
		PageNumber: run.page.PageNumber,
	}
	if run.page.Language != nil {
		req.Language = string(*run.page.Language)
	}
	if run.page.PNGKey != "" {
		uri, err := s.objects.SignedURL(ctx, run.page.PNGKey, s.cfg.SignTTL)
		if err != nil {
			return nil, nil, fmt.Errorf("%w: sign page image: %w", generation.ErrProviderFailure, err)
		}
		req.ImageURI = uri
	}

	resp, err := s.generator.Generate(ctx, req)
	if err != nil {
		return nil, nil, err
	}
	generated, err := generation.Validate(resp)
	if err != nil {
		return nil, nil, err
	}
	return resp, generated, nil
}

// lockCurrent locks the page and reports whether run is still the page's
// attempt in flight.
func (s *GenerationService) lockCurrent(
	ctx context.Context,
	st store.Stores,
	run *attemptRun,
) (*domain.Page, bool, error) {
	page, err := st.Pages.GetByIDForUpdate(ctx, run.page.ID)
	if err != nil {
		return nil, false, err
	}
	if page.Status != domain.PageStatusGenerating {
		return page, false, nil
	}
	latest, err := st.Attempts.GetLatestByPage(ctx, page.ID)
	if err != nil {
		return nil, false, err
	}
	return page, latest.ID == run.attempt.ID, nil
}

// recordSuccess replaces the page's questions with the attempt's output and
// completes the page, all in one unit of work.
func (s *GenerationService) recordSuccess(
	ctx context.Context,
	run *attemptRun,
	resp *generation.Response,
	generated []generation.GeneratedQuestion,
) error {
	log := logger.FromContextOrDefault(ctx, s.logger)
	now := s.now()

	var (
		questions  []*domain.Question
		superseded bool
	)
	err := s.tx.WithinTx(ctx, func(ctx context.Context, st store.Stores) error {
		page, current, err := s.lockCurrent(ctx, st, run)
		if err != nil {
			return err
		}
		if !current {
			superseded = true
			return st.Attempts.MarkFailed(ctx, run.attempt.ID,
				fmt.Sprintf("superseded: page is %s, output discarded", page.Status))
		}

		lang := domain.ResolveLanguage(resp.Language, page.Language)
		questions = buildQuestions(page.ID, run.upload.Classification, lang, generated, now)

		if _, err := st.Questions.DeleteByPage(ctx, page.ID); err != nil {
			return err
		}
		if err := st.Questions.CreateBatch(ctx, questions); err != nil {
			return err
		}

		page.Language = &lang
		page.LastGeneratedAt = &now
		if err := s.transition(ctx, st, page, domain.PageEventSucceeded, now); err != nil {
			return err
		}
		if err := st.Attempts.MarkSucceeded(ctx, run.attempt.ID, domain.ResponseExcerpt(questions)); err != nil {
			return err
		}
		return st.Usage.Create(ctx, &domain.UsageEvent{
			ID:               uuid.New(),
			PageID:           page.ID,
			AttemptID:        run.attempt.ID,
			Model:            s.cfg.Model,
			TokensIn:         resp.TokensIn,
			TokensOut:        resp.TokensOut,
			EstimatedCostUSD: generation.EstimateCost(resp.TokensIn, resp.TokensOut, s.cfg.Rates),
			CreatedAt:        now,
		})
	})
	if err != nil {
		return NewServiceError(opProcessAttempt, "failed to commit generated questions", err)
	}

	payload := s.pagePayload(run)
	if superseded {
		log.Info("attempt superseded, output discarded")
		payload.Error = "superseded"
		s.emit(ctx, events.AttemptSuperseded, payload)
		return nil
	}

	log.Info("generation attempt succeeded", "questions", len(questions))
	payload.QuestionCount = len(questions)
	s.emit(ctx, events.PageCompleted, payload)
	return nil
}

// recordFailure stores cause on the attempt and either schedules the next
// attempt or fails the page terminally. An abandoned attempt whose page has
// already moved on is left untouched.
func (s *GenerationService) recordFailure(
	ctx context.Context,
	run *attemptRun,
	cause error,
	abandoned bool,
) error {
	log := logger.FromContextOrDefault(ctx, s.logger)
	now := s.now()
	message := truncateMessage(cause.Error())

	terminal := run.attempt.AttemptNo+1 > s.cfg.MaxAttempts
	var delay time.Duration
	if !terminal {
		delay = s.backoff.Delay(run.attempt.AttemptNo)
	}

	var current bool
	err := s.tx.WithinTx(ctx, func(ctx context.Context, st store.Stores) error {
		page, ok, err := s.lockCurrent(ctx, st, run)
		if err != nil {
			return err
		}
		current = ok
		if !current {
			if abandoned {
				return nil
			}
			return st.Attempts.MarkFailed(ctx, run.attempt.ID, message)
		}

		if err := st.Attempts.MarkFailed(ctx, run.attempt.ID, message); err != nil {
			return err
		}
		if terminal {
			return s.transition(ctx, st, page, domain.PageEventFailedTerminal, now)
		}
		if err := s.transition(ctx, st, page, domain.PageEventFailedRetryable, now); err != nil {
			return err
		}
		job, err := queue.GenerationJob(page.ID, now, delay)
		if err != nil {
			return err
		}
		return s.queue.Enqueue(ctx, job)
	})
	if err != nil {
		return NewServiceError(opProcessAttempt, "failed to record failed attempt", err)
	}

	payload := s.pagePayload(run)
	payload.Error = message
	switch {
	case !current:
		if !abandoned {
			s.emit(ctx, events.AttemptSuperseded, payload)
		}
	case terminal:
		log.Error("page failed after exhausting attempts", "error", message)
		s.emit(ctx, events.PageFailed, payload)
	default:
		log.Info("generation retry scheduled", "delay", delay)
		payload.RetryInMS = delay.Milliseconds()
		s.emit(ctx, events.AttemptFailed, payload)
	}
	return nil
}

// RetryFailedPage queues a failed page again. Attempt numbering continues
// from the page's history.
func (s *GenerationService) RetryFailedPage(ctx context.Context, pageID uuid.UUID) (err error) {
	ctx, span := tracer.Start(ctx, "generation.retry_page",
		trace.WithAttributes(attribute.String("page.id", pageID.String())))
	defer func() { endSpan(span, err) }()

	now := s.now()
	err = s.tx.WithinTx(ctx, func(ctx context.Context, st store.Stores) error {
		page, err := st.Pages.GetByIDForUpdate(ctx, pageID)
		if err != nil {
			return err
		}
		if err := s.transition(ctx, st, page, domain.PageEventRetry, now); err != nil {
			return err
		}
		job, err := queue.GenerationJob(page.ID, now, 0)
		if err != nil {
			return err
		}
		return s.queue.Enqueue(ctx, job)
	})
	if err != nil {
		return NewServiceError(opRetryPage, "failed to retry page", err)
	}

	logger.FromContextOrDefault(ctx, s.logger).Info("failed page queued for retry", "page_id", pageID)
	return nil
}

// RegeneratePage discards the page's questions and queues it again. Pages
// holding a published question return domain.ErrLockConflict and are left
// as they are.
func (s *GenerationService) RegeneratePage(ctx context.Context, pageID uuid.UUID) (err error) {
	ctx, span := tracer.Start(ctx, "generation.regenerate_page",
		trace.WithAttributes(attribute.String("page.id", pageID.String())))
	defer func() { endSpan(span, err) }()

	now := s.now()
	var removed int64
	err = s.tx.WithinTx(ctx, func(ctx context.Context, st store.Stores) error {
		page, err := st.Pages.GetByIDForUpdate(ctx, pageID)
		if err != nil {
			return err
		}
		locked, err := st.Questions.HasLockedByPage(ctx, page.ID)
		if err != nil {
			return err
		}
		if locked {
			return fmt.Errorf("%w: page %s has published questions", domain.ErrLockConflict, page.ID)
		}

		if removed, err = st.Questions.DeleteByPage(ctx, page.ID); err != nil {
			return err
		}
		page.LastGeneratedAt = nil
		if err := s.transition(ctx, st, page, domain.PageEventRegenerate, now); err != nil {
			return err
		}
		job, err := queue.GenerationJob(page.ID, now, 0)
		if err != nil {
			return err
		}
		return s.queue.Enqueue(ctx, job)
	})
	if err != nil {
		return NewServiceError(opRegeneratePage, "failed to regenerate page", err)
	}

	logger.FromContextOrDefault(ctx, s.logger).Info("page queued for regeneration",
		"page_id", pageID, "questions_removed", removed)
	return nil
}

// RecoverStalePages fails the attempts of pages stuck in generating longer
// than the configured threshold, which happens when a worker dies mid
// attempt. Each goes through the normal failure path. It returns the number
// of pages recovered.
func (s *GenerationService) RecoverStalePages(ctx context.Context) (n int, err error) {
	ctx, span := tracer.Start(ctx, "generation.recover_stale")
	defer func() { endSpan(span, err) }()

	log := logger.FromContextOrDefault(ctx, s.logger)
	stores := s.tx.Stores()
	cutoff := s.now().Add(-s.cfg.StaleAfter)

	pages, err := stores.Pages.ListStale(ctx, domain.PageStatusGenerating, cutoff, staleBatchSize)
	if err != nil {
		return 0, NewServiceError(opRecoverStale, "failed to list stale pages", err)
	}

	for _, page := range pages {
		attempt, err := stores.Attempts.GetLatestByPage(ctx, page.ID)
		if err != nil {
			log.Warn("stale page has no readable attempt", "page_id", page.ID, "error", err)
			continue
		}
		upload, err := stores.Uploads.GetByID(ctx, page.UploadID)
		if err != nil {
			log.Warn("stale page has no readable upload", "page_id", page.ID, "error", err)
			continue
		}

		run := &attemptRun{page: page, upload: upload, attempt: attempt}
		pageCtx := logger.WithLogger(ctx, log.With("page_id", page.ID, "attempt_no", attempt.AttemptNo))
		if err := s.recordFailure(pageCtx, run, errAttemptAbandoned, true); err != nil {
			log.Error("failed to recover stale page", "page_id", page.ID, "error", err)
			continue
		}
		n++
	}
	if n > 0 {
		log.Warn("recovered stale generating pages", "count", n)
	}
	return n, nil
}

// PageOverview is one page of an upload overview.
type PageOverview struct {
	Page          domain.Page
	QuestionCount int
	PNGURL        string
	ThumbnailURL  string
	// Attempts are ordered newest first.
	Attempts []domain.GenerationAttempt
}

// UploadOverview is the generation state of an upload.
type UploadOverview struct {
	Upload       domain.Upload
	Pages        []PageOverview
	StatusCounts map[domain.PageStatus]int
}

// GetUploadOverview returns the upload, its pages in page order with
// question counts, attempts and signed image links, and per-status counts.
func (s *GenerationService) GetUploadOverview(ctx context.Context, uploadID uuid.UUID) (ov *UploadOverview, err error) {
	ctx, span := tracer.Start(ctx, "generation.upload_overview",
		trace.WithAttributes(attribute.String("upload.id", uploadID.String())))
	defer func() { endSpan(span, err) }()

	stores := s.tx.Stores()
	upload, err := stores.Uploads.GetByID(ctx, uploadID)
	if err != nil {
		return nil, NewServiceError(opUploadOverview, "failed to load upload", err)
	}
	pages, err := stores.Pages.ListByUpload(ctx, uploadID)
	if err != nil {
		return nil, NewServiceError(opUploadOverview, "failed to list pages", err)
	}

	ids := make([]uuid.UUID, len(pages))
	for i, p := range pages {
		ids[i] = p.ID
	}
	counts, err := stores.Questions.CountByPages(ctx, ids)
	if err != nil {
		return nil, NewServiceError(opUploadOverview, "failed to count questions", err)
	}
	attempts, err := stores.Attempts.ListByPages(ctx, ids)
	if err != nil {
		return nil, NewServiceError(opUploadOverview, "failed to list attempts", err)
	}
	byPage := make(map[uuid.UUID][]domain.GenerationAttempt, len(pages))
	for _, a := range attempts {
		byPage[a.PageID] = append(byPage[a.PageID], *a)
	}

	ov = &UploadOverview{
		Upload:       *upload,
		Pages:        make([]PageOverview, 0, len(pages)),
		StatusCounts: make(map[domain.PageStatus]int, len(domain.PageStatuses)),
	}
	for _, status := range domain.PageStatuses {
		ov.StatusCounts[status] = 0
	}
	for _, p := range pages {
		po := PageOverview{
			Page:          *p,
			QuestionCount: counts[p.ID],
			Attempts:      byPage[p.ID],
		}
		if po.PNGURL, err = s.sign(ctx, p.PNGKey); err != nil {
			return nil, NewServiceError(opUploadOverview, "failed to sign page image", err)
		}
		if po.ThumbnailURL, err = s.sign(ctx, p.ThumbKey); err != nil {
			return nil, NewServiceError(opUploadOverview, "failed to sign thumbnail", err)
		}
		ov.Pages = append(ov.Pages, po)
		ov.StatusCounts[p.Status]++
	}
	return ov, nil
}

func (s *GenerationService) sign(ctx context.Context, key string) (string, error) {
	if key == "" {
		return "", nil
	}
	return s.objects.SignedURL(ctx, key, s.cfg.SignTTL)
}

// transition applies ev to page and saves it.
func (s *GenerationService) transition(
	ctx context.Context,
	st store.Stores,
	page *domain.Page,
	ev domain.PageEvent,
	now time.Time,
) error {
	if err := page.Apply(ev, now); err != nil {
		return err
	}
	return st.Pages.Update(ctx, page)
}

func (s *GenerationService) pagePayload(run *attemptRun) events.PagePayload {
	return events.PagePayload{
		PageID:     run.page.ID,
		UploadID:   run.upload.ID,
		PageNumber: run.page.PageNumber,
		AttemptNo:  run.attempt.AttemptNo,
	}
}

// emit publishes a pipeline event. Handler failures are logged and never
// undo the committed change that caused the event.
func (s *GenerationService) emit(ctx context.Context, eventType string, payload any) {
	emitEvent(ctx, s.emitter, s.logger, eventType, payload)
}

func emitEvent(ctx context.Context, emitter events.EventEmitter, log *slog.Logger, eventType string, payload any) {
	event, err := events.NewEvent(eventType, payload)
	if err == nil {
		err = emitter.EmitEvent(ctx, event)
	}
	if err != nil {
		logger.FromContextOrDefault(ctx, log).Warn("failed to emit event", "event_type", eventType, "error", err)
	}
}

// buildQuestions turns validated output into review questions.
func buildQuestions(
	pageID uuid.UUID,
	cl domain.Classification,
	lang domain.Language,
	generated []generation.GeneratedQuestion,
	now time.Time,
) []*domain.Question {
	out := make([]*domain.Question, 0, len(generated))
	for _, g := range generated {
		q := &domain.Question{
			ID:             uuid.New(),
			PageID:         pageID,
			Classification: cl,
			Status:         domain.QuestionStatusNotChecked,
			Difficulty:     domain.Difficulty(g.Difficulty),
			Language:       lang,
			LineIndex:      g.LineIndex,
			Stem:           g.Stem,
			CorrectOption:  domain.OptionKey(g.CorrectOption),
			Explanation:    g.Explanation,
			CreatedAt:      now,
			UpdatedAt:      now,
		}
		for _, o := range g.Options {
			q.Options.Set(domain.OptionKey(o.Key), o.Text)
		}
		out = append(out, q)
	}
	return out
}

func truncateMessage(msg string) string {
	if len(msg) <= maxErrorMessageLen {
		return msg
	}
	cut := maxErrorMessageLen
	for cut > 0 && !utf8.RuneStart(msg[cut]) {
		cut--
	}
	return msg[:cut]
}
