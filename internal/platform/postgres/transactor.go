package postgres

import (
	"context"
	"database/sql"
	"log/slog"

	"github.com/phrazzld/quizgen-api/internal/store"
)

// Transactor implements store.Transactor on a *sql.DB.
type Transactor struct {
	db        *sql.DB
	uploads   *PostgresUploadStore
	pages     *PostgresPageStore
	attempts  *PostgresAttemptStore
	questions *PostgresQuestionStore
	bank      *PostgresBankStore
	usage     *PostgresUsageStore
}

// NewTransactor creates the stores on db.
func NewTransactor(db *sql.DB, logger *slog.Logger) *Transactor {
	if db == nil {
		panic("db cannot be nil")
	}
	return &Transactor{
		db:        db,
		uploads:   NewPostgresUploadStore(db, logger),
		pages:     NewPostgresPageStore(db, logger),
		attempts:  NewPostgresAttemptStore(db, logger),
		questions: NewPostgresQuestionStore(db, logger),
		bank:      NewPostgresBankStore(db, logger),
		usage:     NewPostgresUsageStore(db, logger),
	}
}

var _ store.Transactor = (*Transactor)(nil)

// Stores returns repositories that run each call in its own implicit transaction.
func (t *Transactor) Stores() store.Stores {
	return store.Stores{
		Uploads:   t.uploads,
		Pages:     t.pages,
		Attempts:  t.attempts,
		Questions: t.questions,
		Bank:      t.bank,
		Usage:     t.usage,
	}
}

// WithinTx runs fn with every store bound to one transaction.
func (t *Transactor) WithinTx(ctx context.Context, fn store.UnitFn) error {
	return store.RunInTransaction(ctx, t.db, func(ctx context.Context, tx *sql.Tx) error {
		return fn(ctx, store.Stores{
			Uploads:   t.uploads.WithTx(tx),
			Pages:     t.pages.WithTx(tx),
			Attempts:  t.attempts.WithTx(tx),
			Questions: t.questions.WithTx(tx),
			Bank:      t.bank.WithTx(tx),
			Usage:     t.usage.WithTx(tx),
		})
	})
}
