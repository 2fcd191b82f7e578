package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/attendease-api/internal/models"
	"github.com/noah-isme/attendease-api/pkg/attendance"
)

const attendanceColumns = `id, user_id, subject, date, is_present, created_at, updated_at`

// AttendanceRepository stores attendance marks, one per (user, subject, date).
type AttendanceRepository struct {
	db *sqlx.DB
}

func NewAttendanceRepository(db *sqlx.DB) *AttendanceRepository {
	return &AttendanceRepository{db: db}
}

// Upsert writes a mark, replacing any existing mark for the same tuple.
func (r *AttendanceRepository) Upsert(ctx context.Context, rec *models.AttendanceRecord) error {
	if rec.ID == "" {
		rec.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = now
	}
	rec.UpdatedAt = now

	const query = `INSERT INTO attendance_records (id, user_id, subject, date, is_present, created_at, updated_at)
VALUES (:id, :user_id, :subject, :date, :is_present, :created_at, :updated_at)
ON CONFLICT (user_id, subject, date) DO UPDATE SET is_present = EXCLUDED.is_present, updated_at = EXCLUDED.updated_at`
	if _, err := r.db.NamedExecContext(ctx, query, rec); err != nil {
		return fmt.Errorf("upsert attendance: %w", err)
	}
	return nil
}

// Delete removes the mark for a tuple and reports whether one existed.
func (r *AttendanceRepository) Delete(ctx context.Context, userID, subject string, date time.Time) (bool, error) {
	const query = `DELETE FROM attendance_records WHERE user_id = $1 AND subject = $2 AND date = $3`
	res, err := r.db.ExecContext(ctx, query, userID, subject, date)
	if err != nil {
		return false, fmt.Errorf("delete attendance: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("delete attendance: %w", err)
	}
	return n > 0, nil
}

// List returns a user's marks, newest date first. A subject filter takes
// precedence over the date range; the range applies only when both ends are set.
func (r *AttendanceRepository) List(ctx context.Context, userID string, filter models.AttendanceFilter) ([]models.AttendanceRecord, error) {
	query := `SELECT ` + attendanceColumns + ` FROM attendance_records WHERE user_id = $1`
	args := []interface{}{userID}

	switch {
	case filter.Subject != "":
		query += ` AND subject = $2`
		args = append(args, filter.Subject)
	case filter.StartDate != nil && filter.EndDate != nil:
		query += ` AND date BETWEEN $2 AND $3`
		args = append(args, *filter.StartDate, *filter.EndDate)
	}
	query += ` ORDER BY date DESC, subject ASC`

	records := make([]models.AttendanceRecord, 0)
	if err := r.db.SelectContext(ctx, &records, query, args...); err != nil {
		return nil, fmt.Errorf("list attendance: %w", err)
	}
	return records, nil
}

type subjectCountRow struct {
	UserID  string `db:"user_id"`
	Subject string `db:"subject"`
	Present int    `db:"present"`
	Total   int    `db:"total"`
}

// CountsByUser tallies every user's marks per subject in the database. Used
// by admin reports so student records are not pulled one by one.
func (r *AttendanceRepository) CountsByUser(ctx context.Context) (map[string]map[string]attendance.Count, error) {
	const query = `SELECT user_id, subject, COUNT(*) FILTER (WHERE is_present) AS present, COUNT(*) AS total
FROM attendance_records GROUP BY user_id, subject`
	var rows []subjectCountRow
	if err := r.db.SelectContext(ctx, &rows, query); err != nil {
		return nil, fmt.Errorf("count attendance by user: %w", err)
	}

	out := make(map[string]map[string]attendance.Count)
	for _, row := range rows {
		counts, ok := out[row.UserID]
		if !ok {
			counts = make(map[string]attendance.Count)
			out[row.UserID] = counts
		}
		counts[row.Subject] = attendance.Count{Present: row.Present, Total: row.Total}
	}
	return out, nil
}
