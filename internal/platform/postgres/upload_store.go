package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"github.com/phrazzld/quizgen-api/internal/domain"
	"github.com/phrazzld/quizgen-api/internal/platform/logger"
	"github.com/phrazzld/quizgen-api/internal/store"
)

// PostgresUploadStore implements store.UploadStore.
type PostgresUploadStore struct {
	db     store.DBTX
	logger *slog.Logger
}

// NewPostgresUploadStore creates a new PostgreSQL implementation of the UploadStore interface.
// It accepts a database connection or transaction that should be initialized and managed by the caller.
// If logger is nil, a default logger will be used.
func NewPostgresUploadStore(db store.DBTX, logger *slog.Logger) *PostgresUploadStore {
	if db == nil {
		panic("db cannot be nil")
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &PostgresUploadStore{
		db:     db,
		logger: logger.With(slog.String("component", "upload_store")),
	}
}

var _ store.UploadStore = (*PostgresUploadStore)(nil)

// WithTx returns a store bound to tx.
func (s *PostgresUploadStore) WithTx(tx *sql.Tx) store.UploadStore {
	return &PostgresUploadStore{db: tx, logger: s.logger}
}

// Create implements store.UploadStore.Create.
// Returns store.ErrInvalidEntity when the subject or chapter does not exist.
func (s *PostgresUploadStore) Create(ctx context.Context, upload *domain.Upload) error {
	log := logger.FromContextOrDefault(ctx, s.logger)

	query := `
		INSERT INTO uploads (` + uploadColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
	`
	_, err := s.db.ExecContext(ctx, query,
		upload.ID,
		upload.Classification.ClassID,
		upload.Classification.SubjectID,
		upload.Classification.ChapterID,
		nullUUID(upload.UploadedBy),
		upload.OriginalFilename,
		upload.MimeType,
		upload.Bucket,
		upload.PDFKey,
		upload.PageCount,
		upload.CreatedAt,
	)
	if err != nil {
		if IsForeignKeyViolation(err) {
			log.Warn("upload references missing taxonomy",
				slog.String("upload_id", upload.ID.String()),
				slog.String("chapter_id", upload.Classification.ChapterID.String()))
			return MapError(err)
		}
		log.Error("failed to create upload",
			slog.String("error", err.Error()),
			slog.String("upload_id", upload.ID.String()))
		return MapError(err)
	}

	log.Info("upload created",
		slog.String("upload_id", upload.ID.String()),
		slog.Int("page_count", upload.PageCount))
	return nil
}

const uploadColumns = `id, class_id, subject_id, chapter_id, uploaded_by, original_filename,
	mime_type, bucket, pdf_key, page_count, created_at`

// GetByID implements store.UploadStore.GetByID.
func (s *PostgresUploadStore) GetByID(ctx context.Context, id uuid.UUID) (*domain.Upload, error) {
	log := logger.FromContextOrDefault(ctx, s.logger)

	u, err := scanUpload(s.db.QueryRowContext(ctx, `SELECT `+uploadColumns+` FROM uploads WHERE id = $1`, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			log.Debug("upload not found", slog.String("upload_id", id.String()))
			return nil, store.ErrUploadNotFound
		}
		log.Error("failed to get upload",
			slog.String("error", err.Error()),
			slog.String("upload_id", id.String()))
		return nil, MapError(err)
	}
	return u, nil
}

// ListByChapter implements store.UploadStore.ListByChapter.
func (s *PostgresUploadStore) ListByChapter(ctx context.Context, chapterID uuid.UUID, limit int) ([]*domain.Upload, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+uploadColumns+`
		FROM uploads
		WHERE chapter_id = $1
		ORDER BY created_at DESC
		LIMIT $2
	`, chapterID, limit)
	if err != nil {
		logger.FromContextOrDefault(ctx, s.logger).Error("failed to list uploads",
			slog.String("error", err.Error()),
			slog.String("chapter_id", chapterID.String()))
		return nil, MapError(err)
	}
	defer func() { _ = rows.Close() }()

	out := make([]*domain.Upload, 0)
	for rows.Next() {
		u, err := scanUpload(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan upload: %w", err)
		}
		out = append(out, u)
	}
	return out, MapError(rows.Err())
}

func scanUpload(row rowScanner) (*domain.Upload, error) {
	var u domain.Upload
	var uploadedBy uuid.NullUUID
	err := row.Scan(
		&u.ID,
		&u.Classification.ClassID,
		&u.Classification.SubjectID,
		&u.Classification.ChapterID,
		&uploadedBy,
		&u.OriginalFilename,
		&u.MimeType,
		&u.Bucket,
		&u.PDFKey,
		&u.PageCount,
		&u.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	u.UploadedBy = uuidPtr(uploadedBy)
	return &u, nil
}

// GetChapter implements store.UploadStore.GetChapter.
func (s *PostgresUploadStore) GetChapter(ctx context.Context, id uuid.UUID) (*domain.Chapter, error) {
	query := `SELECT id, subject_id, class_id, name FROM chapters WHERE id = $1`

	var c domain.Chapter
	err := s.db.QueryRowContext(ctx, query, id).Scan(&c.ID, &c.SubjectID, &c.ClassID, &c.Name)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrChapterNotFound
		}
		return nil, MapError(err)
	}
	return &c, nil
}
