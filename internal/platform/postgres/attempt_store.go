package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/phrazzld/quizgen-api/internal/domain"
	"github.com/phrazzld/quizgen-api/internal/platform/logger"
	"github.com/phrazzld/quizgen-api/internal/store"
)

const attemptColumns = `a.id, a.page_id, a.attempt_no, a.model, a.prompt_version, a.is_success,
	a.error_message, a.request_excerpt, a.response_excerpt, a.created_at`

const attemptUniqueConstraint = "page_generation_attempts_page_attempt_key"

// PostgresAttemptStore implements store.AttemptStore.
type PostgresAttemptStore struct {
	db     store.DBTX
	logger *slog.Logger
}

// NewPostgresAttemptStore creates a new PostgreSQL implementation of the AttemptStore interface.
func NewPostgresAttemptStore(db store.DBTX, logger *slog.Logger) *PostgresAttemptStore {
	if db == nil {
		panic("db cannot be nil")
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &PostgresAttemptStore{
		db:     db,
		logger: logger.With(slog.String("component", "attempt_store")),
	}
}

var _ store.AttemptStore = (*PostgresAttemptStore)(nil)

// WithTx returns a store bound to tx.
func (s *PostgresAttemptStore) WithTx(tx *sql.Tx) store.AttemptStore {
	return &PostgresAttemptStore{db: tx, logger: s.logger}
}

// Create implements store.AttemptStore.Create.
// Returns store.ErrDuplicateAttempt when the page already has an attempt with this number.
func (s *PostgresAttemptStore) Create(ctx context.Context, a *domain.GenerationAttempt) error {
	log := logger.FromContextOrDefault(ctx, s.logger)

	query := `
		INSERT INTO page_generation_attempts (
			id, page_id, attempt_no, model, prompt_version, is_success,
			error_message, request_excerpt, response_excerpt, created_at
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`
	_, err := s.db.ExecContext(ctx, query,
		a.ID,
		a.PageID,
		a.AttemptNo,
		a.Model,
		a.PromptVersion,
		a.IsSuccess,
		nullString(a.ErrorMessage),
		a.RequestExcerpt,
		nullString(a.ResponseExcerpt),
		a.CreatedAt,
	)
	if err != nil {
		if IsUniqueViolation(err) {
			log.Warn("attempt number already taken",
				slog.String("page_id", a.PageID.String()),
				slog.Int("attempt_no", a.AttemptNo))
			return MapUniqueViolation(err, "generation attempt", attemptUniqueConstraint, store.ErrDuplicateAttempt)
		}
		log.Error("failed to create attempt",
			slog.String("error", err.Error()),
			slog.String("page_id", a.PageID.String()))
		return MapError(err)
	}
	return nil
}

// CountByPage implements store.AttemptStore.CountByPage.
func (s *PostgresAttemptStore) CountByPage(ctx context.Context, pageID uuid.UUID) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM page_generation_attempts WHERE page_id = $1`, pageID,
	).Scan(&n)
	if err != nil {
		return 0, MapError(err)
	}
	return n, nil
}

// GetLatestByPage implements store.AttemptStore.GetLatestByPage.
func (s *PostgresAttemptStore) GetLatestByPage(ctx context.Context, pageID uuid.UUID) (*domain.GenerationAttempt, error) {
	query := `
		SELECT ` + attemptColumns + `
		FROM page_generation_attempts a
		WHERE a.page_id = $1
		ORDER BY a.attempt_no DESC
		LIMIT 1
	`
	a, err := scanAttempt(s.db.QueryRowContext(ctx, query, pageID))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrAttemptNotFound
		}
		return nil, MapError(err)
	}
	return a, nil
}

// MarkSucceeded implements store.AttemptStore.MarkSucceeded.
func (s *PostgresAttemptStore) MarkSucceeded(ctx context.Context, id uuid.UUID, responseExcerpt string) error {
	result, err := s.db.ExecContext(ctx,
		`UPDATE page_generation_attempts SET is_success = TRUE, response_excerpt = $1 WHERE id = $2`,
		responseExcerpt, id,
	)
	if err != nil {
		return MapError(err)
	}
	if err := CheckRowsAffected(result, "generation attempt"); err != nil {
		return store.ErrAttemptNotFound
	}
	return nil
}

// MarkFailed implements store.AttemptStore.MarkFailed.
func (s *PostgresAttemptStore) MarkFailed(ctx context.Context, id uuid.UUID, message string) error {
	result, err := s.db.ExecContext(ctx,
		`UPDATE page_generation_attempts SET error_message = $1 WHERE id = $2`,
		message, id,
	)
	if err != nil {
		return MapError(err)
	}
	if err := CheckRowsAffected(result, "generation attempt"); err != nil {
		return store.ErrAttemptNotFound
	}
	return nil
}

// ListByPages implements store.AttemptStore.ListByPages.
func (s *PostgresAttemptStore) ListByPages(ctx context.Context, pageIDs []uuid.UUID) ([]*domain.GenerationAttempt, error) {
	if len(pageIDs) == 0 {
		return []*domain.GenerationAttempt{}, nil
	}
	query := `
		SELECT ` + attemptColumns + `
		FROM page_generation_attempts a
		WHERE a.page_id = ANY($1::uuid[])
		ORDER BY a.page_id, a.attempt_no DESC
	`
	rows, err := s.db.QueryContext(ctx, query, uuidArray(pageIDs))
	if err != nil {
		return nil, MapError(err)
	}
	defer func() { _ = rows.Close() }()

	out := make([]*domain.GenerationAttempt, 0)
	for rows.Next() {
		a, err := scanAttempt(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan attempt: %w", err)
		}
		out = append(out, a)
	}
	return out, MapError(rows.Err())
}

// ListRecentFailures implements store.AttemptStore.ListRecentFailures.
func (s *PostgresAttemptStore) ListRecentFailures(
	ctx context.Context,
	since time.Time,
	limit int,
) ([]store.FailedAttempt, error) {
	query := `
		SELECT ` + attemptColumns + `, p.page_number, p.upload_id
		FROM page_generation_attempts a
		JOIN pages p ON p.id = a.page_id
		WHERE a.is_success = FALSE AND a.error_message IS NOT NULL AND a.created_at >= $1
		ORDER BY a.created_at DESC
		LIMIT $2
	`
	rows, err := s.db.QueryContext(ctx, query, since, limit)
	if err != nil {
		logger.FromContextOrDefault(ctx, s.logger).Error("failed to list recent failures",
			slog.String("error", err.Error()))
		return nil, MapError(err)
	}
	defer func() { _ = rows.Close() }()

	out := make([]store.FailedAttempt, 0)
	for rows.Next() {
		var f store.FailedAttempt
		a, err := scanAttempt(rows, &f.PageNumber, &f.UploadID)
		if err != nil {
			return nil, fmt.Errorf("failed to scan failed attempt: %w", err)
		}
		f.Attempt = *a
		out = append(out, f)
	}
	return out, MapError(rows.Err())
}

// scanAttempt reads attemptColumns followed by any extra destinations.
func scanAttempt(row rowScanner, extra ...any) (*domain.GenerationAttempt, error) {
	var (
		a        domain.GenerationAttempt
		errMsg   sql.NullString
		response sql.NullString
	)
	dest := []any{
		&a.ID,
		&a.PageID,
		&a.AttemptNo,
		&a.Model,
		&a.PromptVersion,
		&a.IsSuccess,
		&errMsg,
		&a.RequestExcerpt,
		&response,
		&a.CreatedAt,
	}
	if err := row.Scan(append(dest, extra...)...); err != nil {
		return nil, err
	}
	a.ErrorMessage = stringPtr(errMsg)
	a.ResponseExcerpt = stringPtr(response)
	return &a, nil
}
