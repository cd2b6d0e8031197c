package store

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"testing"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRebind(t *testing.T) {
	pg := &DB{Driver: DriverPostgres}
	lite := &DB{Driver: DriverSQLite}
	query := `UPDATE tokens SET status = ? WHERE value = ? AND status = ?`

	assert.Equal(t, `UPDATE tokens SET status = $1 WHERE value = $2 AND status = $3`, pg.Rebind(query))
	assert.Equal(t, query, lite.Rebind(query))
}

func TestNewDBRejectsUnknownDriver(t *testing.T) {
	_, err := NewDB("oracle", "whatever", 1)
	require.Error(t, err)
}

func TestNewDBPingFailureReturnsNil(t *testing.T) {
	db, err := NewDB(DriverSQLite, filepath.Join(t.TempDir(), "missing", "s.db"), 1)
	require.Error(t, err)
	assert.Nil(t, db)
}

func TestIsUniqueViolation(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"postgres unique", &pgconn.PgError{Code: "23505"}, true},
		{"postgres unique wrapped", fmt.Errorf("insert token: %w", &pgconn.PgError{Code: "23505"}), true},
		{"postgres foreign key", &pgconn.PgError{Code: "23503"}, false},
		{"postgres check", &pgconn.PgError{Code: "23514"}, false},
		{"plain error", errors.New("boom"), false},
		{"nil", nil, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, IsUniqueViolation(tt.err))
		})
	}
}

func TestEnsureSchemaIsIdempotentAndUniqueViolationDetected(t *testing.T) {
	db, err := NewDB(DriverSQLite, filepath.Join(t.TempDir(), "s.db"), 4)
	require.NoError(t, err)
	defer db.Close()

	ctx := context.Background()
	require.NoError(t, db.EnsureSchema(ctx))
	require.NoError(t, db.EnsureSchema(ctx))
	assert.True(t, db.Healthy(ctx))

	insert := `INSERT INTO tokens (id, value, created_at, expires_at, status) VALUES (?, 'same', '2024-01-01 00:00:00', '2024-01-01 00:05:00', 'active')`
	_, err = db.Client.ExecContext(ctx, insert, "a")
	require.NoError(t, err)
	_, err = db.Client.ExecContext(ctx, insert, "b")
	require.Error(t, err)
	assert.True(t, IsUniqueViolation(err))
	assert.False(t, IsUniqueViolation(errors.New("boom")))
}

func TestStorageErrorWrapping(t *testing.T) {
	assert.Nil(t, Wrap("noop", nil))

	cause := errors.New("connection refused")
	err := Wrap("fetch token", cause)
	assert.True(t, IsStorage(err))
	assert.ErrorIs(t, err, cause)
	assert.Equal(t, "storage: fetch token: connection refused", err.Error())
}
