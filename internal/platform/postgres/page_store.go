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

const pageColumns = `id, upload_id, page_number, status, language, last_generated_at,
	png_key, thumb_key, created_at, updated_at`

// PostgresPageStore implements store.PageStore.
type PostgresPageStore struct {
	db     store.DBTX
	logger *slog.Logger
}

// NewPostgresPageStore creates a new PostgreSQL implementation of the PageStore interface.
// If logger is nil, a default logger will be used.
func NewPostgresPageStore(db store.DBTX, logger *slog.Logger) *PostgresPageStore {
	if db == nil {
		panic("db cannot be nil")
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &PostgresPageStore{
		db:     db,
		logger: logger.With(slog.String("component", "page_store")),
	}
}

var _ store.PageStore = (*PostgresPageStore)(nil)

// WithTx returns a store bound to tx.
func (s *PostgresPageStore) WithTx(tx *sql.Tx) store.PageStore {
	return &PostgresPageStore{db: tx, logger: s.logger}
}

// CreateBatch implements store.PageStore.CreateBatch. Callers that need
// all-or-nothing behavior run it inside a transaction.
func (s *PostgresPageStore) CreateBatch(ctx context.Context, pages []*domain.Page) error {
	log := logger.FromContextOrDefault(ctx, s.logger)

	query := `
		INSERT INTO pages (` + pageColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`
	for _, p := range pages {
		_, err := s.db.ExecContext(ctx, query,
			p.ID,
			p.UploadID,
			p.PageNumber,
			string(p.Status),
			languageValue(p.Language),
			nullTime(p.LastGeneratedAt),
			p.PNGKey,
			p.ThumbKey,
			p.CreatedAt,
			p.UpdatedAt,
		)
		if err != nil {
			log.Error("failed to create page",
				slog.String("error", err.Error()),
				slog.String("page_id", p.ID.String()),
				slog.Int("page_number", p.PageNumber))
			return MapError(err)
		}
	}

	log.Debug("pages created", slog.Int("count", len(pages)))
	return nil
}

// GetByID implements store.PageStore.GetByID.
func (s *PostgresPageStore) GetByID(ctx context.Context, id uuid.UUID) (*domain.Page, error) {
	return s.getOne(ctx, `SELECT `+pageColumns+` FROM pages WHERE id = $1`, id)
}

// GetByIDForUpdate implements store.PageStore.GetByIDForUpdate.
func (s *PostgresPageStore) GetByIDForUpdate(ctx context.Context, id uuid.UUID) (*domain.Page, error) {
	return s.getOne(ctx, `SELECT `+pageColumns+` FROM pages WHERE id = $1 FOR UPDATE`, id)
}

func (s *PostgresPageStore) getOne(ctx context.Context, query string, id uuid.UUID) (*domain.Page, error) {
	page, err := scanPage(s.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrPageNotFound
		}
		logger.FromContextOrDefault(ctx, s.logger).Error("failed to get page",
			slog.String("error", err.Error()),
			slog.String("page_id", id.String()))
		return nil, MapError(err)
	}
	return page, nil
}

// ListByUpload implements store.PageStore.ListByUpload.
func (s *PostgresPageStore) ListByUpload(ctx context.Context, uploadID uuid.UUID) ([]*domain.Page, error) {
	query := `SELECT ` + pageColumns + ` FROM pages WHERE upload_id = $1 ORDER BY page_number`
	return s.list(ctx, query, uploadID)
}

// ListByStatusForUpdate implements store.PageStore.ListByStatusForUpdate.
func (s *PostgresPageStore) ListByStatusForUpdate(
	ctx context.Context,
	uploadID uuid.UUID,
	status domain.PageStatus,
) ([]*domain.Page, error) {
	query := `
		SELECT ` + pageColumns + `
		FROM pages
		WHERE upload_id = $1 AND status = $2
		ORDER BY page_number
		FOR UPDATE
	`
	return s.list(ctx, query, uploadID, string(status))
}

// ListStale implements store.PageStore.ListStale.
func (s *PostgresPageStore) ListStale(
	ctx context.Context,
	status domain.PageStatus,
	cutoff time.Time,
	limit int,
) ([]*domain.Page, error) {
	query := `
		SELECT ` + pageColumns + `
		FROM pages
		WHERE status = $1 AND updated_at < $2
		ORDER BY updated_at
		LIMIT $3
	`
	return s.list(ctx, query, string(status), cutoff, limit)
}

func (s *PostgresPageStore) list(ctx context.Context, query string, args ...any) ([]*domain.Page, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		logger.FromContextOrDefault(ctx, s.logger).Error("failed to list pages",
			slog.String("error", err.Error()))
		return nil, MapError(err)
	}
	defer func() { _ = rows.Close() }()

	pages := make([]*domain.Page, 0)
	for rows.Next() {
		p, err := scanPage(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan page: %w", err)
		}
		pages = append(pages, p)
	}
	if err := rows.Err(); err != nil {
		return nil, MapError(err)
	}
	return pages, nil
}

// Update implements store.PageStore.Update.
func (s *PostgresPageStore) Update(ctx context.Context, page *domain.Page) error {
	log := logger.FromContextOrDefault(ctx, s.logger)

	query := `
		UPDATE pages
		SET status = $1, language = $2, last_generated_at = $3, updated_at = $4
		WHERE id = $5
	`
	result, err := s.db.ExecContext(ctx, query,
		string(page.Status),
		languageValue(page.Language),
		nullTime(page.LastGeneratedAt),
		page.UpdatedAt,
		page.ID,
	)
	if err != nil {
		log.Error("failed to update page",
			slog.String("error", err.Error()),
			slog.String("page_id", page.ID.String()))
		return MapError(err)
	}
	if err := CheckRowsAffected(result, "page"); err != nil {
		return store.ErrPageNotFound
	}

	log.Debug("page updated",
		slog.String("page_id", page.ID.String()),
		slog.String("status", string(page.Status)))
	return nil
}

func scanPage(row rowScanner) (*domain.Page, error) {
	var (
		p        domain.Page
		status   string
		language sql.NullString
		lastGen  sql.NullTime
	)
	err := row.Scan(
		&p.ID,
		&p.UploadID,
		&p.PageNumber,
		&status,
		&language,
		&lastGen,
		&p.PNGKey,
		&p.ThumbKey,
		&p.CreatedAt,
		&p.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	p.Status = domain.PageStatus(status)
	if language.Valid {
		l := domain.Language(language.String)
		p.Language = &l
	}
	p.LastGeneratedAt = timePtr(lastGen)
	return &p, nil
}

func languageValue(l *domain.Language) sql.NullString {
	if l == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: string(*l), Valid: true}
}
