// Package storetest opens throwaway SQLite databases with the service schema.
package storetest

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"qrattend/internal/store"
)

// Open returns a migrated SQLite database living in t.TempDir.
func Open(t *testing.T) *store.DB {
	t.Helper()
	db, err := store.NewDB(store.DriverSQLite, filepath.Join(t.TempDir(), "attendance.db"), 1)
	require.NoError(t, err)
	require.NoError(t, db.EnsureSchema(context.Background()))
	t.Cleanup(func() { _ = db.Close() })
	return db
}

// Student is a row of the read-only students table.
type Student struct {
	ID         int64
	NIS        string
	Name       string
	Class      string
	Department string
}

// SeedStudent inserts a student row.
func SeedStudent(t *testing.T, db *store.DB, s Student) {
	t.Helper()
	_, err := db.Client.Exec(
		`INSERT INTO students (id, nis, name, class, department) VALUES (?, ?, ?, ?, ?)`,
		s.ID, s.NIS, s.Name, s.Class, s.Department,
	)
	require.NoError(t, err)
}
