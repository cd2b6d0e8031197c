package token

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/google/uuid"

	"qrattend/internal/clock"
	"qrattend/internal/store"
)

// Repository persists tokens. Every call goes to the database; nothing is cached.
type Repository struct {
	db *store.DB
}

// NewRepository creates a repo.
func NewRepository(db *store.DB) *Repository {
	return &Repository{db: db}
}

// Create inserts an active token. A value collision yields ErrDuplicateToken.
func (r *Repository) Create(ctx context.Context, t Token) (Token, error) {
	if t.ID == "" {
		t.ID = uuid.NewString()
	}
	if t.Status == "" {
		t.Status = StatusActive
	}
	_, err := r.db.Client.ExecContext(ctx, r.db.Rebind(`
		INSERT INTO tokens (id, value, created_at, expires_at, status)
		VALUES (?, ?, ?, ?, ?)
	`), t.ID, t.Value, t.CreatedAt.UTC(), t.ExpiresAt.UTC(), string(t.Status))
	if err != nil {
		if store.IsUniqueViolation(err) {
			return Token{}, ErrDuplicateToken
		}
		return Token{}, store.Wrap("create token", err)
	}
	return t, nil
}

// FetchActive returns the token only while its status is active; nil when absent or expired by status.
// Callers still have to compare expires_at against the clock.
func (r *Repository) FetchActive(ctx context.Context, value string) (*Token, error) {
	row := r.db.Client.QueryRowContext(ctx, r.db.Rebind(`
		SELECT id, value, created_at, expires_at, status
		FROM tokens
		WHERE value = ? AND status = ?
	`), value, string(StatusActive))

	var t Token
	var status string
	if err := row.Scan(&t.ID, &t.Value, &t.CreatedAt, &t.ExpiresAt, &status); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, store.Wrap("fetch token", err)
	}
	t.Status = Status(status)
	t.CreatedAt = t.CreatedAt.In(clock.Civil)
	t.ExpiresAt = t.ExpiresAt.In(clock.Civil)
	return &t, nil
}

// Expire flips the status to expired. Absent or already expired tokens are a no-op.
// The return value reports whether this call performed the transition.
func (r *Repository) Expire(ctx context.Context, value string) (bool, error) {
	res, err := r.db.Client.ExecContext(ctx, r.db.Rebind(`
		UPDATE tokens SET status = ? WHERE value = ? AND status = ?
	`), string(StatusExpired), value, string(StatusActive))
	if err != nil {
		return false, store.Wrap("expire token", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, store.Wrap("expire token", err)
	}
	return n > 0, nil
}

// ExpireStale flips every active token whose window closed before now.
func (r *Repository) ExpireStale(ctx context.Context, now time.Time) (int64, error) {
	res, err := r.db.Client.ExecContext(ctx, r.db.Rebind(`
		UPDATE tokens SET status = ? WHERE status = ? AND expires_at < ?
	`), string(StatusExpired), string(StatusActive), now.UTC())
	if err != nil {
		return 0, store.Wrap("expire stale tokens", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, store.Wrap("expire stale tokens", err)
	}
	return n, nil
}
