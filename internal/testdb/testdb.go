// Package testdb provides utilities specifically for database testing.
//
// Integration tests call Open to get a connection to the database named by
// the environment and are skipped when none is configured. WithTx isolates
// a test in a transaction that is always rolled back.
package testdb

import (
	"context"
	"database/sql"
	"net/url"
	"os"
	"testing"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib" // registers the pgx driver
	"github.com/stretchr/testify/require"
)

// Environment variables checked for a database URL, in priority order.
const (
	EnvTestDBURL   = "QUIZGEN_TEST_DB_URL"
	EnvDatabaseURL = "DATABASE_URL"
	EnvAppDBURL    = "QUIZGEN_DATABASE_URL"
)

const pingTimeout = 5 * time.Second

// GetTestDatabaseURL returns the first database URL set in the environment,
// or "" when none is.
func GetTestDatabaseURL() string {
	for _, name := range []string{EnvTestDBURL, EnvDatabaseURL, EnvAppDBURL} {
		if v := os.Getenv(name); v != "" {
			return v
		}
	}
	return ""
}

// IsIntegrationTestEnvironment returns true if any of the database URL environment
// variables are set, indicating that integration tests can be run.
func IsIntegrationTestEnvironment() bool {
	return GetTestDatabaseURL() != ""
}

// ShouldSkipDatabaseTest returns true if no database is configured.
func ShouldSkipDatabaseTest() bool {
	return !IsIntegrationTestEnvironment()
}

// Open connects to the test database and closes it when the test ends.
// The test is skipped when no database URL is configured.
func Open(t *testing.T) *sql.DB {
	t.Helper()
	dbURL := GetTestDatabaseURL()
	if dbURL == "" {
		t.Skipf("no test database configured; set %s or %s", EnvTestDBURL, EnvDatabaseURL)
	}

	db, err := sql.Open("pgx", dbURL)
	require.NoError(t, err, "open %s", MaskDatabaseURL(dbURL))
	t.Cleanup(func() { _ = db.Close() })

	ctx, cancel := context.WithTimeout(context.Background(), pingTimeout)
	defer cancel()
	require.NoError(t, db.PingContext(ctx), "ping %s", MaskDatabaseURL(dbURL))
	return db
}

// WithTx runs fn within a transaction that is rolled back afterwards,
// so tests can write freely without affecting each other.
func WithTx(t *testing.T, db *sql.DB, fn func(t *testing.T, tx *sql.Tx)) {
	t.Helper()

	tx, err := db.BeginTx(context.Background(), nil)
	require.NoError(t, err, "begin test transaction")
	defer func() {
		if err := tx.Rollback(); err != nil && err != sql.ErrTxDone {
			t.Errorf("rollback test transaction: %v", err)
		}
	}()

	fn(t, tx)
}

// MaskDatabaseURL hides the password of a database URL for safe logging.
func MaskDatabaseURL(dbURL string) string {
	if dbURL == "" {
		return ""
	}
	u, err := url.Parse(dbURL)
	if err != nil {
		return "[unparseable database url]"
	}
	if _, ok := u.User.Password(); ok {
		u.User = url.UserPassword(u.User.Username(), "xxxxx")
	}
	return u.String()
}
