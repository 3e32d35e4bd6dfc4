package postgres

import (
	"context"
	"database/sql"
	"log/slog"
	"time"

	"github.com/phrazzld/quizgen-api/internal/domain"
	"github.com/phrazzld/quizgen-api/internal/store"
)

// PostgresUsageStore implements store.UsageStore.
type PostgresUsageStore struct {
	db     store.DBTX
	logger *slog.Logger
}

// NewPostgresUsageStore creates a new PostgreSQL implementation of the UsageStore interface.
func NewPostgresUsageStore(db store.DBTX, logger *slog.Logger) *PostgresUsageStore {
	if db == nil {
		panic("db cannot be nil")
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &PostgresUsageStore{
		db:     db,
		logger: logger.With(slog.String("component", "usage_store")),
	}
}

var _ store.UsageStore = (*PostgresUsageStore)(nil)

// WithTx returns a store bound to tx.
func (s *PostgresUsageStore) WithTx(tx *sql.Tx) store.UsageStore {
	return &PostgresUsageStore{db: tx, logger: s.logger}
}

// Create implements store.UsageStore.Create.
func (s *PostgresUsageStore) Create(ctx context.Context, e *domain.UsageEvent) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO llm_usage_events (id, page_id, attempt_id, model, tokens_in, tokens_out, estimated_cost_usd, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`, e.ID, e.PageID, e.AttemptID, e.Model, nullInt(e.TokensIn), nullInt(e.TokensOut), e.EstimatedCostUSD, e.CreatedAt)
	return MapError(err)
}

// Totals implements store.UsageStore.Totals.
func (s *PostgresUsageStore) Totals(ctx context.Context, since time.Time) (store.UsageTotals, error) {
	var t store.UsageTotals
	err := s.db.QueryRowContext(ctx, `
		SELECT
			COALESCE(SUM(tokens_in), 0),
			COALESCE(SUM(tokens_out), 0),
			COALESCE(SUM(estimated_cost_usd), 0)::float8,
			COUNT(*)
		FROM llm_usage_events
		WHERE created_at >= $1
	`, since).Scan(&t.TokensIn, &t.TokensOut, &t.EstimatedCostUSD, &t.EventCount)
	if err != nil {
		return store.UsageTotals{}, MapError(err)
	}
	return t, nil
}
