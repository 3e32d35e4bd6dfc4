package store

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/phrazzld/quizgen-api/internal/domain"
)

// UploadStore persists uploads and reads the taxonomy they are filed under.
type UploadStore interface {
	// Create saves a new upload.
	Create(ctx context.Context, upload *domain.Upload) error

	// GetByID returns ErrUploadNotFound if the upload does not exist.
	GetByID(ctx context.Context, id uuid.UUID) (*domain.Upload, error)

	// GetChapter returns ErrChapterNotFound if the chapter does not exist.
	GetChapter(ctx context.Context, id uuid.UUID) (*domain.Chapter, error)

	// ListByChapter returns up to limit of the chapter's uploads, newest first.
	ListByChapter(ctx context.Context, chapterID uuid.UUID, limit int) ([]*domain.Upload, error)
}

// PageStore persists pages and their status.
type PageStore interface {
	// CreateBatch saves all pages of an upload.
	CreateBatch(ctx context.Context, pages []*domain.Page) error

	// GetByID returns ErrPageNotFound if the page does not exist.
	GetByID(ctx context.Context, id uuid.UUID) (*domain.Page, error)

	// GetByIDForUpdate is GetByID that also locks the row until the
	// surrounding transaction ends. Outside a transaction it behaves like GetByID.
	GetByIDForUpdate(ctx context.Context, id uuid.UUID) (*domain.Page, error)

	// ListByUpload returns the upload's pages ordered by page number.
	ListByUpload(ctx context.Context, uploadID uuid.UUID) ([]*domain.Page, error)

	// ListByStatusForUpdate returns and locks the upload's pages in status,
	// ordered by page number.
	ListByStatusForUpdate(ctx context.Context, uploadID uuid.UUID, status domain.PageStatus) ([]*domain.Page, error)

	// ListStale returns pages that have sat in status since before cutoff.
	ListStale(ctx context.Context, status domain.PageStatus, cutoff time.Time, limit int) ([]*domain.Page, error)

	// Update saves status, language, lastGeneratedAt and updatedAt.
	// Returns ErrPageNotFound if the page does not exist.
	Update(ctx context.Context, page *domain.Page) error
}

// AttemptStore persists generation attempts. Attempts are append-only.
type AttemptStore interface {
	// Create saves a new attempt. A second attempt with the same page and
	// number returns ErrDuplicate.
	Create(ctx context.Context, attempt *domain.GenerationAttempt) error

	// CountByPage returns how many attempts the page has.
	CountByPage(ctx context.Context, pageID uuid.UUID) (int, error)

	// GetLatestByPage returns the page's highest numbered attempt, or
	// ErrAttemptNotFound when it has none.
	GetLatestByPage(ctx context.Context, pageID uuid.UUID) (*domain.GenerationAttempt, error)

	// MarkSucceeded sets isSuccess and the response excerpt.
	MarkSucceeded(ctx context.Context, id uuid.UUID, responseExcerpt string) error

	// MarkFailed records an error message on the attempt.
	MarkFailed(ctx context.Context, id uuid.UUID, message string) error

	// ListByPages returns attempts for the given pages, newest first per page.
	ListByPages(ctx context.Context, pageIDs []uuid.UUID) ([]*domain.GenerationAttempt, error)

	// ListRecentFailures returns failed attempts created at or after since,
	// newest first, joined with their page and upload.
	ListRecentFailures(ctx context.Context, since time.Time, limit int) ([]FailedAttempt, error)
}

// FailedAttempt is a failed attempt with the identifiers needed for triage.
type FailedAttempt struct {
	Attempt    domain.GenerationAttempt
	PageNumber int
	UploadID   uuid.UUID
}

// QuestionStore persists review questions.
type QuestionStore interface {
	// CreateBatch saves questions in the given order.
	CreateBatch(ctx context.Context, questions []*domain.Question) error

	// ListByPage returns the page's questions ordered by line index.
	ListByPage(ctx context.Context, pageID uuid.UUID) ([]*domain.Question, error)

	// CountByPages returns the number of questions per page.
	CountByPages(ctx context.Context, pageIDs []uuid.UUID) (map[uuid.UUID]int, error)

	// HasLockedByPage reports whether any of the page's questions is locked.
	HasLockedByPage(ctx context.Context, pageID uuid.UUID) (bool, error)

	// DeleteByPage removes all of the page's questions.
	DeleteByPage(ctx context.Context, pageID uuid.UUID) (int64, error)

	// GetByIDsForUpdate returns and locks the questions that exist among ids,
	// ordered by id. Missing ids are simply absent from the result.
	GetByIDsForUpdate(ctx context.Context, ids []uuid.UUID) ([]*domain.Question, error)

	// UpdateStatus sets the review status and reviewer on the given questions.
	UpdateStatus(
		ctx context.Context,
		ids []uuid.UUID,
		status domain.QuestionStatus,
		reviewerID uuid.UUID,
		at time.Time,
	) error

	// DeleteByIDs removes the given questions.
	DeleteByIDs(ctx context.Context, ids []uuid.UUID) error

	// MarkLocked sets isLockedAfterAdd and the reviewer. Locking is one-way.
	MarkLocked(ctx context.Context, id uuid.UUID, reviewerID uuid.UUID, at time.Time) error

	// UpdateContent saves the editable fields of q: stem, options, correct
	// option, explanation, difficulty, reviewer and updatedAt. Returns
	// ErrQuestionNotFound if q does not exist and ErrLocked if it is locked.
	UpdateContent(ctx context.Context, q *domain.Question) error

	// List returns the questions matching f ordered by page number, then
	// line index.
	List(ctx context.Context, f QuestionFilter) ([]*domain.Question, error)

	// CountByStatus counts the questions matching f in each status,
	// ignoring f.Status.
	CountByStatus(ctx context.Context, f QuestionFilter) (map[domain.QuestionStatus]int, error)
}

// QuestionFilter narrows a question listing. Zero fields match everything.
type QuestionFilter struct {
	ClassID   int
	SubjectID uuid.UUID
	ChapterID uuid.UUID
	PageID    uuid.UUID
	Status    domain.QuestionStatus
}

// BankStore persists published question bank entries.
type BankStore interface {
	// NextSequence reserves the next sequence number for the subject.
	// Numbers are monotonic per subject and never handed out twice by
	// committed transactions.
	NextSequence(ctx context.Context, subjectID uuid.UUID) (int64, error)

	// SubjectCode returns the subject's short code, or ErrSubjectNotFound.
	SubjectCode(ctx context.Context, subjectID uuid.UUID) (string, error)

	// Create saves a bank entry. A second entry for the same source question
	// returns ErrDuplicate.
	Create(ctx context.Context, entry *domain.BankEntry) error

	// GetBySourceQuestions returns the bank entries copied from the given
	// questions, keyed by source question id.
	GetBySourceQuestions(ctx context.Context, questionIDs []uuid.UUID) (map[uuid.UUID]*domain.BankEntry, error)
}

// UsageStore persists LLM usage telemetry.
type UsageStore interface {
	// Create appends a usage event.
	Create(ctx context.Context, event *domain.UsageEvent) error

	// Totals sums usage events created at or after since.
	Totals(ctx context.Context, since time.Time) (UsageTotals, error)
}

// UsageTotals aggregates usage events over a window.
type UsageTotals struct {
	TokensIn         int64
	TokensOut        int64
	EstimatedCostUSD float64
	EventCount       int64
}

// Stores groups the repositories that take part in one unit of work.
type Stores struct {
	Uploads   UploadStore
	Pages     PageStore
	Attempts  AttemptStore
	Questions QuestionStore
	Bank      BankStore
	Usage     UsageStore
}

// UnitFn is the body of a unit of work. Every store in s is bound to the
// same transaction.
type UnitFn func(ctx context.Context, s Stores) error

// Transactor runs units of work atomically. Implementations commit when fn
// returns nil and roll back otherwise, so callers never observe a partial
// application of fn.
type Transactor interface {
	// Stores returns repositories that run each call on its own.
	Stores() Stores

	// WithinTx runs fn inside a single transaction.
	WithinTx(ctx context.Context, fn UnitFn) error
}
