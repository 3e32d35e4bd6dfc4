package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/phrazzld/quizgen-api/internal/domain"
	"github.com/phrazzld/quizgen-api/internal/platform/logger"
	"github.com/phrazzld/quizgen-api/internal/store"
)

const questionColumns = `id, page_id, class_id, subject_id, chapter_id, status, difficulty, language,
	line_index, stem, option_a, option_b, option_c, option_d, correct_option, explanation,
	is_locked_after_add, reviewed_by, created_at, updated_at`

// PostgresQuestionStore implements store.QuestionStore. Locked questions
// are guarded by a trigger, which surfaces here as store.ErrLocked.
type PostgresQuestionStore struct {
	db     store.DBTX
	logger *slog.Logger
}

// NewPostgresQuestionStore creates a new PostgreSQL implementation of the QuestionStore interface.
func NewPostgresQuestionStore(db store.DBTX, logger *slog.Logger) *PostgresQuestionStore {
	if db == nil {
		panic("db cannot be nil")
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &PostgresQuestionStore{
		db:     db,
		logger: logger.With(slog.String("component", "question_store")),
	}
}

var _ store.QuestionStore = (*PostgresQuestionStore)(nil)

// WithTx returns a store bound to tx.
func (s *PostgresQuestionStore) WithTx(tx *sql.Tx) store.QuestionStore {
	return &PostgresQuestionStore{db: tx, logger: s.logger}
}

// CreateBatch implements store.QuestionStore.CreateBatch.
func (s *PostgresQuestionStore) CreateBatch(ctx context.Context, questions []*domain.Question) error {
	log := logger.FromContextOrDefault(ctx, s.logger)

	query := `
		INSERT INTO questions (` + questionColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19, $20)
	`
	for _, q := range questions {
		_, err := s.db.ExecContext(ctx, query,
			q.ID,
			q.PageID,
			q.Classification.ClassID,
			q.Classification.SubjectID,
			q.Classification.ChapterID,
			string(q.Status),
			string(q.Difficulty),
			string(q.Language),
			q.LineIndex,
			q.Stem,
			q.Options.A,
			q.Options.B,
			q.Options.C,
			q.Options.D,
			string(q.CorrectOption),
			q.Explanation,
			q.IsLockedAfterAdd,
			nullUUID(q.ReviewedBy),
			q.CreatedAt,
			q.UpdatedAt,
		)
		if err != nil {
			log.Error("failed to create question",
				slog.String("error", err.Error()),
				slog.String("page_id", q.PageID.String()),
				slog.Int("line_index", q.LineIndex))
			return MapError(err)
		}
	}
	return nil
}

// ListByPage implements store.QuestionStore.ListByPage.
func (s *PostgresQuestionStore) ListByPage(ctx context.Context, pageID uuid.UUID) ([]*domain.Question, error) {
	query := `SELECT ` + questionColumns + ` FROM questions WHERE page_id = $1 ORDER BY line_index, created_at`
	return s.list(ctx, query, pageID)
}

// CountByPages implements store.QuestionStore.CountByPages.
func (s *PostgresQuestionStore) CountByPages(ctx context.Context, pageIDs []uuid.UUID) (map[uuid.UUID]int, error) {
	counts := make(map[uuid.UUID]int, len(pageIDs))
	if len(pageIDs) == 0 {
		return counts, nil
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT page_id, COUNT(*)
		FROM questions
		WHERE page_id = ANY($1::uuid[])
		GROUP BY page_id
	`, uuidArray(pageIDs))
	if err != nil {
		return nil, MapError(err)
	}
	defer func() { _ = rows.Close() }()

	for rows.Next() {
		var id uuid.UUID
		var n int
		if err := rows.Scan(&id, &n); err != nil {
			return nil, fmt.Errorf("failed to scan question count: %w", err)
		}
		counts[id] = n
	}
	return counts, MapError(rows.Err())
}

// HasLockedByPage implements store.QuestionStore.HasLockedByPage.
func (s *PostgresQuestionStore) HasLockedByPage(ctx context.Context, pageID uuid.UUID) (bool, error) {
	var locked bool
	err := s.db.QueryRowContext(ctx,
		`SELECT EXISTS (SELECT 1 FROM questions WHERE page_id = $1 AND is_locked_after_add)`, pageID,
	).Scan(&locked)
	if err != nil {
		return false, MapError(err)
	}
	return locked, nil
}

// DeleteByPage implements store.QuestionStore.DeleteByPage.
func (s *PostgresQuestionStore) DeleteByPage(ctx context.Context, pageID uuid.UUID) (int64, error) {
	result, err := s.db.ExecContext(ctx, `DELETE FROM questions WHERE page_id = $1`, pageID)
	if err != nil {
		log := logger.FromContextOrDefault(ctx, s.logger)
		if IsLockedViolation(err) {
			log.Warn("page holds a locked question", slog.String("page_id", pageID.String()))
		} else {
			log.Error("failed to delete page questions",
				slog.String("error", err.Error()),
				slog.String("page_id", pageID.String()))
		}
		return 0, MapError(err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to get rows affected: %w", err)
	}
	return n, nil
}

// GetByIDsForUpdate implements store.QuestionStore.GetByIDsForUpdate.
func (s *PostgresQuestionStore) GetByIDsForUpdate(ctx context.Context, ids []uuid.UUID) ([]*domain.Question, error) {
	if len(ids) == 0 {
		return []*domain.Question{}, nil
	}
	query := `
		SELECT ` + questionColumns + `
		FROM questions
		WHERE id = ANY($1::uuid[])
		ORDER BY id
		FOR UPDATE
	`
	return s.list(ctx, query, uuidArray(ids))
}

// UpdateStatus implements store.QuestionStore.UpdateStatus.
// Returns store.ErrQuestionNotFound unless every id was updated.
func (s *PostgresQuestionStore) UpdateStatus(
	ctx context.Context,
	ids []uuid.UUID,
	status domain.QuestionStatus,
	reviewerID uuid.UUID,
	at time.Time,
) error {
	result, err := s.db.ExecContext(ctx, `
		UPDATE questions
		SET status = $1, reviewed_by = $2, updated_at = $3
		WHERE id = ANY($4::uuid[])
	`, string(status), reviewerID, at, uuidArray(ids))
	if err != nil {
		s.logWriteError(ctx, "failed to update question status", err, slog.Int("count", len(ids)))
		return MapError(err)
	}
	return expectRows(result, len(ids))
}

// DeleteByIDs implements store.QuestionStore.DeleteByIDs.
func (s *PostgresQuestionStore) DeleteByIDs(ctx context.Context, ids []uuid.UUID) error {
	result, err := s.db.ExecContext(ctx, `DELETE FROM questions WHERE id = ANY($1::uuid[])`, uuidArray(ids))
	if err != nil {
		s.logWriteError(ctx, "failed to delete questions", err, slog.Int("count", len(ids)))
		return MapError(err)
	}
	return expectRows(result, len(ids))
}

// MarkLocked implements store.QuestionStore.MarkLocked.
func (s *PostgresQuestionStore) MarkLocked(ctx context.Context, id uuid.UUID, reviewerID uuid.UUID, at time.Time) error {
	result, err := s.db.ExecContext(ctx, `
		UPDATE questions
		SET is_locked_after_add = TRUE, reviewed_by = $1, updated_at = $2
		WHERE id = $3
	`, reviewerID, at, id)
	if err != nil {
		return MapError(err)
	}
	return expectRows(result, 1)
}

// UpdateContent implements store.QuestionStore.UpdateContent. The locked
// question trigger refuses edits to published questions.
func (s *PostgresQuestionStore) UpdateContent(ctx context.Context, q *domain.Question) error {
	result, err := s.db.ExecContext(ctx, `
		UPDATE questions
		SET stem = $1, option_a = $2, option_b = $3, option_c = $4, option_d = $5,
			correct_option = $6, explanation = $7, difficulty = $8, reviewed_by = $9, updated_at = $10
		WHERE id = $11
	`,
		q.Stem,
		q.Options.A,
		q.Options.B,
		q.Options.C,
		q.Options.D,
		string(q.CorrectOption),
		q.Explanation,
		string(q.Difficulty),
		nullUUID(q.ReviewedBy),
		q.UpdatedAt,
		q.ID,
	)
	if err != nil {
		s.logWriteError(ctx, "failed to update question", err, slog.String("question_id", q.ID.String()))
		return MapError(err)
	}
	return expectRows(result, 1)
}

// List implements store.QuestionStore.List.
func (s *PostgresQuestionStore) List(ctx context.Context, f store.QuestionFilter) ([]*domain.Question, error) {
	where, args := questionWhere(f, true)
	query := `
		SELECT ` + questionColumns + `
		FROM questions` + where + `
		ORDER BY (SELECT page_number FROM pages WHERE pages.id = questions.page_id), line_index, id
	`
	return s.list(ctx, query, args...)
}

// CountByStatus implements store.QuestionStore.CountByStatus.
func (s *PostgresQuestionStore) CountByStatus(
	ctx context.Context,
	f store.QuestionFilter,
) (map[domain.QuestionStatus]int, error) {
	where, args := questionWhere(f, false)
	rows, err := s.db.QueryContext(ctx, `SELECT status, COUNT(*) FROM questions`+where+` GROUP BY status`, args...)
	if err != nil {
		return nil, MapError(err)
	}
	defer func() { _ = rows.Close() }()

	counts := make(map[domain.QuestionStatus]int)
	for rows.Next() {
		var status string
		var n int
		if err := rows.Scan(&status, &n); err != nil {
			return nil, fmt.Errorf("failed to scan status count: %w", err)
		}
		counts[domain.QuestionStatus(status)] = n
	}
	return counts, MapError(rows.Err())
}

// questionWhere builds the WHERE clause for f. Status is only applied when
// withStatus is set.
func questionWhere(f store.QuestionFilter, withStatus bool) (string, []any) {
	var (
		conds []string
		args  []any
	)
	add := func(cond string, arg any) {
		args = append(args, arg)
		conds = append(conds, fmt.Sprintf(cond, len(args)))
	}
	if f.ClassID != 0 {
		add("class_id = $%d", f.ClassID)
	}
	if f.SubjectID != uuid.Nil {
		add("subject_id = $%d", f.SubjectID)
	}
	if f.ChapterID != uuid.Nil {
		add("chapter_id = $%d", f.ChapterID)
	}
	if f.PageID != uuid.Nil {
		add("page_id = $%d", f.PageID)
	}
	if withStatus && f.Status != "" {
		add("status = $%d", string(f.Status))
	}
	if len(conds) == 0 {
		return "", nil
	}
	return " WHERE " + strings.Join(conds, " AND "), args
}

// logWriteError logs a failed write. Refusals by the locked question
// trigger are expected and logged as warnings.
func (s *PostgresQuestionStore) logWriteError(ctx context.Context, msg string, err error, attrs ...any) {
	log := logger.FromContextOrDefault(ctx, s.logger)
	attrs = append(attrs, slog.String("error", err.Error()))
	if IsLockedViolation(err) {
		log.Warn(msg+": question is locked", attrs...)
		return
	}
	log.Error(msg, attrs...)
}

func (s *PostgresQuestionStore) list(ctx context.Context, query string, args ...any) ([]*domain.Question, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		logger.FromContextOrDefault(ctx, s.logger).Error("failed to list questions",
			slog.String("error", err.Error()))
		return nil, MapError(err)
	}
	defer func() { _ = rows.Close() }()

	out := make([]*domain.Question, 0)
	for rows.Next() {
		q, err := scanQuestion(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan question: %w", err)
		}
		out = append(out, q)
	}
	return out, MapError(rows.Err())
}

func scanQuestion(row rowScanner) (*domain.Question, error) {
	var (
		q                                    domain.Question
		status, difficulty, language, correct string
		reviewedBy                           uuid.NullUUID
	)
	err := row.Scan(
		&q.ID,
		&q.PageID,
		&q.Classification.ClassID,
		&q.Classification.SubjectID,
		&q.Classification.ChapterID,
		&status,
		&difficulty,
		&language,
		&q.LineIndex,
		&q.Stem,
		&q.Options.A,
		&q.Options.B,
		&q.Options.C,
		&q.Options.D,
		&correct,
		&q.Explanation,
		&q.IsLockedAfterAdd,
		&reviewedBy,
		&q.CreatedAt,
		&q.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	q.Status = domain.QuestionStatus(status)
	q.Difficulty = domain.Difficulty(difficulty)
	q.Language = domain.Language(language)
	q.CorrectOption = domain.OptionKey(correct)
	q.ReviewedBy = uuidPtr(reviewedBy)
	return &q, nil
}

// expectRows returns store.ErrQuestionNotFound when fewer than want rows changed.
func expectRows(result sql.Result, want int) error {
	n, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if n < int64(want) {
		return fmt.Errorf("%w: %d of %d found", store.ErrQuestionNotFound, n, want)
	}
	return nil
}
