package store

import (
	"context"
	"fmt"
)

// The core only reads students; rows are owned by the student records subsystem.
var schema = []string{
	`CREATE TABLE IF NOT EXISTS students (
		id          BIGINT PRIMARY KEY,
		nis         VARCHAR(20) NOT NULL DEFAULT '',
		name        VARCHAR(100) NOT NULL,
		class       VARCHAR(20) NOT NULL DEFAULT '',
		department  VARCHAR(50) NOT NULL DEFAULT ''
	)`,
	`CREATE TABLE IF NOT EXISTS tokens (
		id          VARCHAR(36) PRIMARY KEY,
		value       VARCHAR(255) NOT NULL UNIQUE,
		created_at  TIMESTAMP NOT NULL,
		expires_at  TIMESTAMP NOT NULL,
		status      VARCHAR(10) NOT NULL DEFAULT 'active',
		CHECK (expires_at > created_at)
	)`,
	`CREATE INDEX IF NOT EXISTS idx_tokens_status_expiry ON tokens(status, expires_at)`,
	`CREATE TABLE IF NOT EXISTS attendance (
		id               VARCHAR(36) PRIMARY KEY,
		student_id       BIGINT NOT NULL REFERENCES students(id),
		attendance_date  VARCHAR(10) NOT NULL,
		recorded_at      TIMESTAMP NOT NULL,
		token_value      VARCHAR(255) NOT NULL,
		status           VARCHAR(10) NOT NULL DEFAULT 'present',
		student_name     VARCHAR(100) NOT NULL DEFAULT '',
		class            VARCHAR(20) NOT NULL DEFAULT '',
		department       VARCHAR(50) NOT NULL DEFAULT '',
		UNIQUE (student_id, attendance_date)
	)`,
	`CREATE INDEX IF NOT EXISTS idx_attendance_recorded ON attendance(recorded_at)`,
}

// EnsureSchema creates the tables and indexes when missing.
func (d *DB) EnsureSchema(ctx context.Context) error {
	for _, stmt := range schema {
		if _, err := d.Client.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("ensure schema: %w", err)
		}
	}
	return nil
}
