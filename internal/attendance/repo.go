package attendance

import (
	"context"
	"database/sql"
	"errors"

	"qrattend/internal/clock"
	"qrattend/internal/store"
)

// Repository is the attendance ledger plus read access to student snapshots.
type Repository struct {
	db *store.DB
}

// NewRepository creates a repo.
func NewRepository(db *store.DB) *Repository {
	return &Repository{db: db}
}

// Student returns the current student row, or nil when it does not exist.
func (r *Repository) Student(ctx context.Context, id int64) (*Student, error) {
	row := r.db.Client.QueryRowContext(ctx, r.db.Rebind(`
		SELECT id, nis, name, class, department FROM students WHERE id = ?
	`), id)
	var s Student
	if err := row.Scan(&s.ID, &s.NIS, &s.Name, &s.Class, &s.Department); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, store.Wrap("fetch student", err)
	}
	return &s, nil
}

// InsertIfAbsent writes rec unless the student already has a record for rec.Date.
// The unique index on (student_id, attendance_date) decides; it returns false on conflict.
func (r *Repository) InsertIfAbsent(ctx context.Context, rec Record) (bool, error) {
	res, err := r.db.Client.ExecContext(ctx, r.db.Rebind(`
		INSERT INTO attendance
			(id, student_id, attendance_date, recorded_at, token_value, status, student_name, class, department)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (student_id, attendance_date) DO NOTHING
	`), rec.ID, rec.StudentID, rec.Date, rec.RecordedAt.UTC(), rec.TokenValue, rec.Status,
		rec.StudentName, rec.Class, rec.Department)
	if err != nil {
		return false, store.Wrap("insert attendance", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, store.Wrap("insert attendance", err)
	}
	return n == 1, nil
}

const selectRecords = `
	SELECT a.id, a.student_id, a.attendance_date, a.recorded_at, a.token_value, a.status,
		a.student_name, a.class, a.department, COALESCE(s.nis, '')
	FROM attendance a
	LEFT JOIN students s ON s.id = a.student_id`

// History returns a student's records, newest first.
func (r *Repository) History(ctx context.Context, studentID int64) ([]Record, error) {
	return r.list(ctx, "history", selectRecords+`
		WHERE a.student_id = ?
		ORDER BY a.recorded_at DESC, a.id DESC`, studentID)
}

// All returns every record, newest first. A non-empty date limits it to that civil day.
func (r *Repository) All(ctx context.Context, date string) ([]Record, error) {
	if date != "" {
		return r.list(ctx, "list attendance", selectRecords+`
			WHERE a.attendance_date = ?
			ORDER BY a.recorded_at DESC, a.id DESC`, date)
	}
	return r.list(ctx, "list attendance", selectRecords+`
		ORDER BY a.recorded_at DESC, a.id DESC`)
}

func (r *Repository) list(ctx context.Context, op, query string, args ...any) ([]Record, error) {
	rows, err := r.db.Client.QueryContext(ctx, r.db.Rebind(query), args...)
	if err != nil {
		return nil, store.Wrap(op, err)
	}
	defer rows.Close()

	res := []Record{}
	for rows.Next() {
		var rec Record
		if err := rows.Scan(&rec.ID, &rec.StudentID, &rec.Date, &rec.RecordedAt, &rec.TokenValue, &rec.Status,
			&rec.StudentName, &rec.Class, &rec.Department, &rec.NIS); err != nil {
			return nil, store.Wrap(op, err)
		}
		rec.RecordedAt = rec.RecordedAt.In(clock.Civil)
		res = append(res, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, store.Wrap(op, err)
	}
	return res, nil
}
