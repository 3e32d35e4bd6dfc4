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

const bankSourceConstraint = "question_bank_entries_source_question_key"

// PostgresBankStore implements store.BankStore.
type PostgresBankStore struct {
	db     store.DBTX
	logger *slog.Logger
}

// NewPostgresBankStore creates a new PostgreSQL implementation of the BankStore interface.
func NewPostgresBankStore(db store.DBTX, logger *slog.Logger) *PostgresBankStore {
	if db == nil {
		panic("db cannot be nil")
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &PostgresBankStore{
		db:     db,
		logger: logger.With(slog.String("component", "bank_store")),
	}
}

var _ store.BankStore = (*PostgresBankStore)(nil)

// WithTx returns a store bound to tx.
func (s *PostgresBankStore) WithTx(tx *sql.Tx) store.BankStore {
	return &PostgresBankStore{db: tx, logger: s.logger}
}

// NextSequence implements store.BankStore.NextSequence. The upsert takes a
// row lock on the subject's counter, so concurrent publishers serialize on
// it until their transactions end.
func (s *PostgresBankStore) NextSequence(ctx context.Context, subjectID uuid.UUID) (int64, error) {
	var next int64
	err := s.db.QueryRowContext(ctx, `
		INSERT INTO subject_sequences (subject_id, last_value)
		VALUES ($1, 1)
		ON CONFLICT (subject_id) DO UPDATE SET last_value = subject_sequences.last_value + 1
		RETURNING last_value
	`, subjectID).Scan(&next)
	if err != nil {
		logger.FromContextOrDefault(ctx, s.logger).Error("failed to reserve sequence",
			slog.String("error", err.Error()),
			slog.String("subject_id", subjectID.String()))
		return 0, MapError(err)
	}
	return next, nil
}

// SubjectCode implements store.BankStore.SubjectCode.
func (s *PostgresBankStore) SubjectCode(ctx context.Context, subjectID uuid.UUID) (string, error) {
	var code string
	err := s.db.QueryRowContext(ctx, `SELECT code FROM subjects WHERE id = $1`, subjectID).Scan(&code)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", store.ErrSubjectNotFound
		}
		return "", MapError(err)
	}
	return code, nil
}

// Create implements store.BankStore.Create.
func (s *PostgresBankStore) Create(ctx context.Context, e *domain.BankEntry) error {
	log := logger.FromContextOrDefault(ctx, s.logger)

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO question_bank_entries (id, source_question_id, subject_id, subject_code, sequence_no, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`, e.ID, e.SourceQuestionID, e.SubjectID, e.SubjectCode, e.SequenceNo, e.CreatedAt)
	if err != nil {
		if IsUniqueViolation(err) {
			return MapUniqueViolation(err, "bank entry", bankSourceConstraint, store.ErrDuplicateBankEntry)
		}
		log.Error("failed to create bank entry",
			slog.String("error", err.Error()),
			slog.String("question_id", e.SourceQuestionID.String()))
		return MapError(err)
	}

	log.Info("question published to bank",
		slog.String("question_id", e.SourceQuestionID.String()),
		slog.String("subject_code", e.SubjectCode),
		slog.Int64("sequence_no", e.SequenceNo))
	return nil
}

// GetBySourceQuestions implements store.BankStore.GetBySourceQuestions.
func (s *PostgresBankStore) GetBySourceQuestions(
	ctx context.Context,
	questionIDs []uuid.UUID,
) (map[uuid.UUID]*domain.BankEntry, error) {
	out := make(map[uuid.UUID]*domain.BankEntry, len(questionIDs))
	if len(questionIDs) == 0 {
		return out, nil
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, source_question_id, subject_id, subject_code, sequence_no, created_at
		FROM question_bank_entries
		WHERE source_question_id = ANY($1::uuid[])
	`, uuidArray(questionIDs))
	if err != nil {
		logger.FromContextOrDefault(ctx, s.logger).Error("failed to load bank entries",
			slog.String("error", err.Error()))
		return nil, MapError(err)
	}
	defer func() { _ = rows.Close() }()

	for rows.Next() {
		var e domain.BankEntry
		if err := rows.Scan(&e.ID, &e.SourceQuestionID, &e.SubjectID, &e.SubjectCode, &e.SequenceNo, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan bank entry: %w", err)
		}
		out[e.SourceQuestionID] = &e
	}
	return out, MapError(rows.Err())
}
