// Package dbtest opens throwaway in-memory SQLite databases with the
// application schema applied.
package dbtest

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/cnpmnc/assignment/internal/db"
)

// Open returns a fresh, migrated in-memory database closed at test cleanup.
func Open(t testing.TB) *sql.DB {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	dsn := "file:" + uuid.NewString() + "?mode=memory&cache=shared"
	dbh, err := db.Open(ctx, db.DriverSQLite, dsn)
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	t.Cleanup(func() { _ = dbh.Close() })
	return dbh
}

// MustExec runs a statement and fails the test on error.
func MustExec(t testing.TB, dbh *sql.DB, query string, args ...any) {
	t.Helper()
	if _, err := dbh.Exec(query, args...); err != nil {
		t.Fatalf("exec %q: %v", query, err)
	}
}

// SeedUser inserts a user row with an empty password hash.
func SeedUser(t testing.TB, dbh *sql.DB, id, role string) {
	t.Helper()
	MustExec(t, dbh, `INSERT INTO users (id, username, email, display_name, role, created_at)
		VALUES ($1,$2,$3,$4,$5,$6)`, id, id, id+"@example.test", id, role, time.Now().Unix())
}
