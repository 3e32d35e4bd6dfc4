package postgres

import (
	"database/sql"
	"database/sql/driver"
	"strings"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/phrazzld/quizgen-api/internal/platform/logger"
	"github.com/stretchr/testify/require"
)

// arrayConverter renders []string arguments as postgres array literals so
// sqlmock accepts the same arguments the pgx driver encodes natively.
type arrayConverter struct{}

func (arrayConverter) ConvertValue(v any) (driver.Value, error) {
	if ids, ok := v.([]string); ok {
		return "{" + strings.Join(ids, ",") + "}", nil
	}
	return driver.DefaultParameterConverter.ConvertValue(v)
}

func newMockDB(t *testing.T) (*sql.DB, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New(sqlmock.ValueConverterOption(arrayConverter{}))
	require.NoError(t, err)
	t.Cleanup(func() {
		require.NoError(t, mock.ExpectationsWereMet())
		_ = db.Close()
	})
	return db, mock
}

func newMockTransactor(t *testing.T) (*Transactor, sqlmock.Sqlmock) {
	t.Helper()
	db, mock := newMockDB(t)
	log, _ := logger.NewTestLogger()
	return NewTransactor(db, log), mock
}
