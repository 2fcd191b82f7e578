package repository

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/attendease-api/internal/models"
)

// TimetableRepository stores uploaded batch timetables.
type TimetableRepository struct {
	db *sqlx.DB
}

func NewTimetableRepository(db *sqlx.DB) *TimetableRepository {
	return &TimetableRepository{db: db}
}

// ListByBatch returns the stored slots for a batch ordered by weekday position.
// An empty result means the batch has no uploaded timetable.
func (r *TimetableRepository) ListByBatch(ctx context.Context, batch string) ([]models.TimetableSlot, error) {
	const query = `SELECT id, batch, weekday, position, time_range, subject, room, sub_batches, created_at
FROM timetable_slots WHERE batch = $1 ORDER BY weekday, position`
	slots := make([]models.TimetableSlot, 0)
	if err := r.db.SelectContext(ctx, &slots, query, batch); err != nil {
		return nil, fmt.Errorf("list timetable: %w", err)
	}
	for i := range slots {
		slots[i].SubBatch = splitSubBatches(slots[i].SubBatches)
	}
	return slots, nil
}

// ReplaceBatch swaps every slot of a batch in a single transaction.
func (r *TimetableRepository) ReplaceBatch(ctx context.Context, batch string, slots []models.TimetableSlot) (err error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin timetable tx: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	if _, err = tx.ExecContext(ctx, `DELETE FROM timetable_slots WHERE batch = $1`, batch); err != nil {
		return fmt.Errorf("clear timetable: %w", err)
	}

	now := time.Now().UTC()
	const insert = `INSERT INTO timetable_slots (id, batch, weekday, position, time_range, subject, room, sub_batches, created_at)
VALUES (:id, :batch, :weekday, :position, :time_range, :subject, :room, :sub_batches, :created_at)`
	for i := range slots {
		slot := slots[i]
		slot.ID = uuid.NewString()
		slot.Batch = batch
		slot.SubBatches = strings.Join(slot.SubBatch, ",")
		slot.CreatedAt = now
		if _, err = tx.NamedExecContext(ctx, insert, slot); err != nil {
			return fmt.Errorf("insert timetable slot: %w", err)
		}
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("commit timetable: %w", err)
	}
	return nil
}

func splitSubBatches(raw string) []string {
	if raw == "" {
		return nil
	}
	parts := strings.Split(raw, ",")
	out := parts[:0]
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
