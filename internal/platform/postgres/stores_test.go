package postgres

import (
	"context"
	"database/sql"
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/phrazzld/quizgen-api/internal/domain"
	"github.com/phrazzld/quizgen-api/internal/store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var pageRowColumns = []string{
	"id", "upload_id", "page_number", "status", "language", "last_generated_at",
	"png_key", "thumb_key", "created_at", "updated_at",
}

func TestNewStoresPanicOnNilDB(t *testing.T) {
	assert.Panics(t, func() { NewPostgresPageStore(nil, nil) })
	assert.Panics(t, func() { NewPostgresQuestionStore(nil, nil) })
	assert.Panics(t, func() { NewTransactor(nil, nil) })
	assert.NotPanics(t, func() { NewPostgresUsageStore(&sql.DB{}, nil) })
}

func TestPageStoreGetByIDForUpdate(t *testing.T) {
	tr, mock := newMockTransactor(t)
	ctx := context.Background()
	id, uploadID := uuid.New(), uuid.New()
	now := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)

	mock.ExpectQuery(`FROM pages WHERE id = \$1 FOR UPDATE`).
		WithArgs(id).
		WillReturnRows(sqlmock.NewRows(pageRowColumns).
			AddRow(id, uploadID, 3, "queued", "bn", nil, "p.png", "p_thumb.jpg", now, now))

	page, err := tr.Stores().Pages.GetByIDForUpdate(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, domain.PageStatusQueued, page.Status)
	require.NotNil(t, page.Language)
	assert.Equal(t, domain.LanguageBangla, *page.Language)
	assert.Nil(t, page.LastGeneratedAt)
	assert.Equal(t, 3, page.PageNumber)
}

func TestPageStoreGetByIDNotFound(t *testing.T) {
	tr, mock := newMockTransactor(t)
	id := uuid.New()

	mock.ExpectQuery(`FROM pages WHERE id = \$1`).WithArgs(id).WillReturnError(sql.ErrNoRows)

	_, err := tr.Stores().Pages.GetByID(context.Background(), id)
	assert.ErrorIs(t, err, store.ErrPageNotFound)
}

func TestPageStoreUpdate(t *testing.T) {
	tr, mock := newMockTransactor(t)
	now := time.Now().UTC()
	lang := domain.LanguageEnglish
	page := &domain.Page{ID: uuid.New(), Status: domain.PageStatusComplete, Language: &lang, LastGeneratedAt: &now, UpdatedAt: now}

	mock.ExpectExec(regexp.QuoteMeta("UPDATE pages")).
		WithArgs("complete", "en", now, now, page.ID).
		WillReturnResult(sqlmock.NewResult(0, 1))
	require.NoError(t, tr.Stores().Pages.Update(context.Background(), page))

	mock.ExpectExec(regexp.QuoteMeta("UPDATE pages")).
		WillReturnResult(sqlmock.NewResult(0, 0))
	assert.ErrorIs(t, tr.Stores().Pages.Update(context.Background(), page), store.ErrPageNotFound)
}

func TestAttemptStoreCreateDuplicate(t *testing.T) {
	tr, mock := newMockTransactor(t)
	a := &domain.GenerationAttempt{ID: uuid.New(), PageID: uuid.New(), AttemptNo: 2, Model: "m", PromptVersion: "v1"}

	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO page_generation_attempts")).
		WillReturnError(&pgconn.PgError{Code: uniqueViolationCode, ConstraintName: attemptUniqueConstraint})

	err := tr.Stores().Attempts.Create(context.Background(), a)
	assert.ErrorIs(t, err, store.ErrDuplicateAttempt)
}

func TestAttemptStoreListRecentFailures(t *testing.T) {
	tr, mock := newMockTransactor(t)
	since := time.Now().Add(-24 * time.Hour)
	attemptID, pageID, uploadID := uuid.New(), uuid.New(), uuid.New()

	cols := []string{
		"id", "page_id", "attempt_no", "model", "prompt_version", "is_success",
		"error_message", "request_excerpt", "response_excerpt", "created_at", "page_number", "upload_id",
	}
	mock.ExpectQuery(`JOIN pages p ON p.id = a.page_id`).
		WithArgs(since, 20).
		WillReturnRows(sqlmock.NewRows(cols).
			AddRow(attemptID, pageID, 2, "m", "v1", false, "boom", "req", nil, time.Now(), 7, uploadID))

	got, err := tr.Stores().Attempts.ListRecentFailures(context.Background(), since, 20)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, 7, got[0].PageNumber)
	assert.Equal(t, uploadID, got[0].UploadID)
	require.NotNil(t, got[0].Attempt.ErrorMessage)
	assert.Equal(t, "boom", *got[0].Attempt.ErrorMessage)
	assert.Nil(t, got[0].Attempt.ResponseExcerpt)
}

func TestQuestionStoreLockedTriggerMapsToErrLocked(t *testing.T) {
	tr, mock := newMockTransactor(t)
	ids := []uuid.UUID{uuid.New(), uuid.New()}

	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM questions WHERE id = ANY($1::uuid[])")).
		WithArgs("{" + ids[0].String() + "," + ids[1].String() + "}").
		WillReturnError(&pgconn.PgError{Code: lockedQuestionCode, Message: "question is locked"})

	err := tr.Stores().Questions.DeleteByIDs(context.Background(), ids)
	assert.ErrorIs(t, err, store.ErrLocked)
}

func TestQuestionStoreUpdateStatusRequiresEveryRow(t *testing.T) {
	tr, mock := newMockTransactor(t)
	ids := []uuid.UUID{uuid.New(), uuid.New()}
	reviewer := uuid.New()
	at := time.Now()

	mock.ExpectExec(regexp.QuoteMeta("UPDATE questions")).
		WithArgs("approved", reviewer, at, sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))

	err := tr.Stores().Questions.UpdateStatus(context.Background(), ids, domain.QuestionStatusApproved, reviewer, at)
	assert.ErrorIs(t, err, store.ErrQuestionNotFound)
}

func TestQuestionStoreEmptyInputsSkipQueries(t *testing.T) {
	tr, _ := newMockTransactor(t)
	ctx := context.Background()

	qs, err := tr.Stores().Questions.GetByIDsForUpdate(ctx, nil)
	require.NoError(t, err)
	assert.Empty(t, qs)

	counts, err := tr.Stores().Questions.CountByPages(ctx, nil)
	require.NoError(t, err)
	assert.Empty(t, counts)

	attempts, err := tr.Stores().Attempts.ListByPages(ctx, nil)
	require.NoError(t, err)
	assert.Empty(t, attempts)
}

var questionRowColumns = []string{
	"id", "page_id", "class_id", "subject_id", "chapter_id", "status", "difficulty", "language",
	"line_index", "stem", "option_a", "option_b", "option_c", "option_d", "correct_option", "explanation",
	"is_locked_after_add", "reviewed_by", "created_at", "updated_at",
}

func TestQuestionStoreListAppliesFilter(t *testing.T) {
	tr, mock := newMockTransactor(t)
	ctx := context.Background()
	chapter, page, id := uuid.New(), uuid.New(), uuid.New()
	now := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)

	mock.ExpectQuery(regexp.QuoteMeta("WHERE class_id = $1 AND chapter_id = $2 AND status = $3")).
		WithArgs(9, chapter, "approved").
		WillReturnRows(sqlmock.NewRows(questionRowColumns).AddRow(
			id, page, 9, uuid.New(), chapter, "approved", "easy", "en",
			0, "stem", "a", "b", "c", "d", "a", "why",
			false, nil, now, now))

	qs, err := tr.Stores().Questions.List(ctx, store.QuestionFilter{
		ClassID:   9,
		ChapterID: chapter,
		Status:    domain.QuestionStatusApproved,
	})
	require.NoError(t, err)
	require.Len(t, qs, 1)
	assert.Equal(t, id, qs[0].ID)
	assert.Equal(t, domain.QuestionStatusApproved, qs[0].Status)
	assert.Nil(t, qs[0].ReviewedBy)
}

func TestQuestionStoreCountByStatusIgnoresStatusFilter(t *testing.T) {
	tr, mock := newMockTransactor(t)
	page := uuid.New()

	mock.ExpectQuery(regexp.QuoteMeta("SELECT status, COUNT(*) FROM questions WHERE page_id = $1 GROUP BY status")).
		WithArgs(page).
		WillReturnRows(sqlmock.NewRows([]string{"status", "count"}).
			AddRow("approved", 2).
			AddRow("not_checked", 5))

	counts, err := tr.Stores().Questions.CountByStatus(context.Background(), store.QuestionFilter{
		PageID: page,
		Status: domain.QuestionStatusRejected,
	})
	require.NoError(t, err)
	assert.Equal(t, map[domain.QuestionStatus]int{
		domain.QuestionStatusApproved:   2,
		domain.QuestionStatusNotChecked: 5,
	}, counts)
}

func TestQuestionStoreUpdateContent(t *testing.T) {
	tr, mock := newMockTransactor(t)
	ctx := context.Background()
	q := &domain.Question{
		ID:            uuid.New(),
		Stem:          "edited",
		Options:       domain.Options{A: "1", B: "2", C: "3", D: "4"},
		CorrectOption: domain.OptionC,
		Explanation:   "because",
		Difficulty:    domain.DifficultyHard,
		UpdatedAt:     time.Now(),
	}

	mock.ExpectExec(regexp.QuoteMeta("UPDATE questions")).
		WillReturnError(&pgconn.PgError{Code: lockedQuestionCode, Message: "question is locked"})
	assert.ErrorIs(t, tr.Stores().Questions.UpdateContent(ctx, q), store.ErrLocked)

	mock.ExpectExec(regexp.QuoteMeta("UPDATE questions")).
		WillReturnResult(sqlmock.NewResult(0, 0))
	assert.ErrorIs(t, tr.Stores().Questions.UpdateContent(ctx, q), store.ErrQuestionNotFound)
}

func TestBankStoreGetBySourceQuestions(t *testing.T) {
	tr, mock := newMockTransactor(t)
	ctx := context.Background()
	q, entry, subject := uuid.New(), uuid.New(), uuid.New()
	now := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)

	mock.ExpectQuery(regexp.QuoteMeta("FROM question_bank_entries")).
		WithArgs("{" + q.String() + "}").
		WillReturnRows(sqlmock.NewRows([]string{
			"id", "source_question_id", "subject_id", "subject_code", "sequence_no", "created_at",
		}).AddRow(entry, q, subject, "PHY", 7, now))

	got, err := tr.Stores().Bank.GetBySourceQuestions(ctx, []uuid.UUID{q})
	require.NoError(t, err)
	require.Contains(t, got, q)
	assert.Equal(t, entry, got[q].ID)
	assert.Equal(t, int64(7), got[q].SequenceNo)

	empty, err := tr.Stores().Bank.GetBySourceQuestions(ctx, nil)
	require.NoError(t, err)
	assert.Empty(t, empty)
}

func TestUploadStoreListByChapter(t *testing.T) {
	tr, mock := newMockTransactor(t)
	chapter, subject, id := uuid.New(), uuid.New(), uuid.New()
	now := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)

	mock.ExpectQuery(regexp.QuoteMeta("ORDER BY created_at DESC")).
		WithArgs(chapter, 10).
		WillReturnRows(sqlmock.NewRows([]string{
			"id", "class_id", "subject_id", "chapter_id", "uploaded_by", "original_filename",
			"mime_type", "bucket", "pdf_key", "page_count", "created_at",
		}).AddRow(id, 9, subject, chapter, nil, "book.pdf", "application/pdf", "b", "k.pdf", 4, now))

	uploads, err := tr.Stores().Uploads.ListByChapter(context.Background(), chapter, 10)
	require.NoError(t, err)
	require.Len(t, uploads, 1)
	assert.Equal(t, id, uploads[0].ID)
	assert.Equal(t, chapter, uploads[0].Classification.ChapterID)
	assert.Nil(t, uploads[0].UploadedBy)
}

func TestBankStoreNextSequence(t *testing.T) {
	tr, mock := newMockTransactor(t)
	subject := uuid.New()

	mock.ExpectQuery(regexp.QuoteMeta("INSERT INTO subject_sequences")).
		WithArgs(subject).
		WillReturnRows(sqlmock.NewRows([]string{"last_value"}).AddRow(int64(42)))

	next, err := tr.Stores().Bank.NextSequence(context.Background(), subject)
	require.NoError(t, err)
	assert.Equal(t, int64(42), next)
}

func TestBankStoreDuplicateSourceQuestion(t *testing.T) {
	tr, mock := newMockTransactor(t)

	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO question_bank_entries")).
		WillReturnError(&pgconn.PgError{Code: uniqueViolationCode, ConstraintName: bankSourceConstraint})

	err := tr.Stores().Bank.Create(context.Background(), &domain.BankEntry{ID: uuid.New(), SourceQuestionID: uuid.New()})
	assert.ErrorIs(t, err, store.ErrDuplicateBankEntry)
}

func TestBankStoreSubjectCodeNotFound(t *testing.T) {
	tr, mock := newMockTransactor(t)
	id := uuid.New()

	mock.ExpectQuery(regexp.QuoteMeta("SELECT code FROM subjects")).WithArgs(id).WillReturnError(sql.ErrNoRows)

	_, err := tr.Stores().Bank.SubjectCode(context.Background(), id)
	assert.ErrorIs(t, err, store.ErrSubjectNotFound)
}

func TestUsageStoreTotals(t *testing.T) {
	tr, mock := newMockTransactor(t)
	since := time.Now().Add(-time.Hour)

	mock.ExpectQuery(regexp.QuoteMeta("FROM llm_usage_events")).
		WithArgs(since).
		WillReturnRows(sqlmock.NewRows([]string{"tin", "tout", "cost", "n"}).AddRow(int64(1000), int64(500), 0.0021, int64(2)))

	totals, err := tr.Stores().Usage.Totals(context.Background(), since)
	require.NoError(t, err)
	assert.Equal(t, store.UsageTotals{TokensIn: 1000, TokensOut: 500, EstimatedCostUSD: 0.0021, EventCount: 2}, totals)
}

func TestTransactorCommitsUnit(t *testing.T) {
	tr, mock := newMockTransactor(t)
	pageID := uuid.New()

	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta("SELECT COUNT(*) FROM page_generation_attempts")).
		WithArgs(pageID).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(2))
	mock.ExpectCommit()

	var n int
	err := tr.WithinTx(context.Background(), func(ctx context.Context, s store.Stores) error {
		var err error
		n, err = s.Attempts.CountByPage(ctx, pageID)
		return err
	})
	require.NoError(t, err)
	assert.Equal(t, 2, n)
}

func TestTransactorRollsBackUnit(t *testing.T) {
	tr, mock := newMockTransactor(t)
	boom := errors.New("boom")

	mock.ExpectBegin()
	mock.ExpectRollback()

	err := tr.WithinTx(context.Background(), func(context.Context, store.Stores) error { return boom })
	assert.ErrorIs(t, err, boom)
}

func TestEmbeddedMigrationsParse(t *testing.T) {
	migrations, err := Migrations()
	require.NoError(t, err)
	require.NotEmpty(t, migrations)
	assert.Equal(t, int64(1), migrations[0].Version)
}

func TestMigrateRejectsUnknownCommand(t *testing.T) {
	db, _ := newMockDB(t)
	err := Migrate(context.Background(), db, nil, "sideways")
	assert.ErrorContains(t, err, "unknown migration command")
}

func TestUploadStoreCreateMissingChapter(t *testing.T) {
	tr, mock := newMockTransactor(t)
	upload := &domain.Upload{ID: uuid.New(), PageCount: 1, CreatedAt: time.Now()}

	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO uploads")).
		WillReturnError(&pgconn.PgError{Code: foreignKeyViolationCode, ConstraintName: "uploads_chapter_id_fkey"})

	err := tr.Stores().Uploads.Create(context.Background(), upload)
	assert.ErrorIs(t, err, store.ErrInvalidEntity)
	assert.Contains(t, err.Error(), "uploads_chapter_id_fkey")
}
