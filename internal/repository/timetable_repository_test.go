package repository

import (
	"context"
	"errors"
	"regexp"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/attendease-api/internal/models"
)

func TestListByBatchSplitsSubBatches(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewTimetableRepository(db)

	now := time.Now()
	rows := sqlmock.NewRows([]string{"id", "batch", "weekday", "position", "time_range", "subject", "room", "sub_batches", "created_at"}).
		AddRow("s1", "A1", "Monday", 0, "09:00-10:00", "Data Structures", "CSE-101", "", now).
		AddRow("s2", "A1", "Monday", 1, "14:00-16:00", "DS Lab", "LAB-2", "A1-1, A1-2", now)
	mock.ExpectQuery(regexp.QuoteMeta("FROM timetable_slots WHERE batch = $1 ORDER BY weekday, position")).
		WithArgs("A1").WillReturnRows(rows)

	slots, err := repo.ListByBatch(context.Background(), "A1")
	require.NoError(t, err)
	require.Len(t, slots, 2)
	assert.Nil(t, slots[0].SubBatch)
	assert.Equal(t, []string{"A1-1", "A1-2"}, slots[1].SubBatch)
}

func TestReplaceBatchIsTransactional(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewTimetableRepository(db)

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM timetable_slots WHERE batch = $1")).WithArgs("A1").WillReturnResult(sqlmock.NewResult(0, 4))
	mock.ExpectExec("INSERT INTO timetable_slots").WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectExec("INSERT INTO timetable_slots").WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectCommit()

	err := repo.ReplaceBatch(context.Background(), "A1", []models.TimetableSlot{
		{Weekday: "Monday", Position: 0, Time: "09:00-10:00", Subject: "Algorithms"},
		{Weekday: "Tuesday", Position: 0, Time: "09:00-10:00", Subject: "Networks", SubBatch: []string{"A1-1"}},
	})
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestReplaceBatchRollsBack(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewTimetableRepository(db)

	mock.ExpectBegin()
	mock.ExpectExec("DELETE FROM timetable_slots").WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec("INSERT INTO timetable_slots").WillReturnError(errors.New("value too long"))
	mock.ExpectRollback()

	err := repo.ReplaceBatch(context.Background(), "A1", []models.TimetableSlot{{Weekday: "Monday", Time: "x", Subject: "y"}})
	require.Error(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}
