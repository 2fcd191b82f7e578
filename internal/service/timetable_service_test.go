package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/attendease-api/internal/models"
	appErrors "github.com/noah-isme/attendease-api/pkg/errors"
)

func TestWeekFallsBackToDefault(t *testing.T) {
	svc := NewTimetableService(&stubTimetableRepo{}, nil, nil, nil, 0)

	tt, err := svc.Week(context.Background(), "CSE-A")
	require.NoError(t, err)
	assert.True(t, tt.Default)
	assert.Len(t, tt.Schedule["Monday"], 4)
	assert.Len(t, tt.Schedule["Friday"], 3)
	assert.Equal(t, "Data Structures", tt.Schedule["Monday"][0].Subject)
	assert.Equal(t, "CSE-104", tt.Schedule["Friday"][1].Room)

	tt.Schedule["Monday"][0].Subject = "mutated"
	again, err := svc.Week(context.Background(), "CSE-A")
	require.NoError(t, err)
	assert.Equal(t, "Data Structures", again.Schedule["Monday"][0].Subject)
}

func TestWeekRequiresBatch(t *testing.T) {
	svc := NewTimetableService(&stubTimetableRepo{}, nil, nil, nil, 0)
	_, err := svc.Week(context.Background(), "  ")
	assert.ErrorIs(t, err, appErrors.ErrValidation)
}

func TestReplaceStoresOrderedSlotsAndInvalidatesCache(t *testing.T) {
	repo := &stubTimetableRepo{}
	cacheRepo := newMemCache()
	cache := NewCacheService(cacheRepo, nil, time.Minute, nil, true)
	svc := NewTimetableService(repo, cache, nil, nil, time.Minute)
	ctx := context.Background()

	_, err := svc.Week(ctx, "CSE-B")
	require.NoError(t, err)
	require.True(t, cacheRepo.has("timetable:CSE-B"))

	upload := models.Timetable{Schedule: map[string][]models.TimetableSlot{
		"Tuesday": {
			{Time: "09:00-10:00", Subject: "Physics", Room: "P-1"},
			{Time: "10:00-11:00", Subject: "Physics Lab", SubBatch: []string{"B1", " "}},
		},
		"Monday": {{Time: "09:00-10:00", Subject: " Maths "}},
	}}
	tt, err := svc.Replace(ctx, "CSE-B", upload)
	require.NoError(t, err)
	assert.False(t, tt.Default)
	assert.False(t, cacheRepo.has("timetable:CSE-B"))

	require.Len(t, repo.replaced, 3)
	assert.Equal(t, "Monday", repo.replaced[0].Weekday)
	assert.Equal(t, "Maths", repo.replaced[0].Subject)
	assert.Equal(t, 1, repo.replaced[2].Position)
	assert.Equal(t, "B1", repo.replaced[2].SubBatches)

	lists := repo.lists
	week, err := svc.Week(ctx, "CSE-B")
	require.NoError(t, err)
	assert.Equal(t, lists+1, repo.lists)
	assert.Len(t, week.Schedule["Tuesday"], 2)

	_, err = svc.Week(ctx, "CSE-B")
	require.NoError(t, err)
	assert.Equal(t, lists+1, repo.lists)
}

func TestReplaceValidation(t *testing.T) {
	svc := NewTimetableService(&stubTimetableRepo{}, nil, nil, nil, 0)
	cases := map[string]models.Timetable{
		"empty":       {Schedule: map[string][]models.TimetableSlot{}},
		"bad weekday": {Schedule: map[string][]models.TimetableSlot{"Funday": {{Time: "09:00", Subject: "X"}}}},
		"no subject":  {Schedule: map[string][]models.TimetableSlot{"Monday": {{Time: "09:00"}}}},
		"no time":     {Schedule: map[string][]models.TimetableSlot{"Monday": {{Subject: "X"}}}},
	}
	for name, tt := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := svc.Replace(context.Background(), "CSE-A", tt)
			assert.ErrorIs(t, err, appErrors.ErrValidation)
		})
	}
}

func TestDayFiltersBySubBatch(t *testing.T) {
	repo := &stubTimetableRepo{slots: map[string][]models.TimetableSlot{
		"CSE-A": {
			{Weekday: "Wednesday", Position: 0, Time: "09:00-10:00", Subject: "Networks"},
			{Weekday: "Wednesday", Position: 1, Time: "10:00-12:00", Subject: "Lab", SubBatch: []string{"A1"}},
			{Weekday: "Wednesday", Position: 2, Time: "10:00-12:00", Subject: "Lab", SubBatch: []string{"A2"}},
		},
	}}
	svc := NewTimetableService(repo, nil, nil, nil, 0)
	wednesday := time.Date(2024, 8, 7, 0, 0, 0, 0, time.UTC)

	day, err := svc.Day(context.Background(), "CSE-A", "A2", wednesday)
	require.NoError(t, err)
	assert.Equal(t, "Wednesday", day.Weekday)
	assert.Equal(t, "2024-08-07", day.Date)
	require.Len(t, day.Slots, 2)
	assert.Equal(t, []string{"A2"}, day.Slots[1].SubBatch)

	all, err := svc.Day(context.Background(), "CSE-A", "", wednesday)
	require.NoError(t, err)
	assert.Len(t, all.Slots, 3)

	sunday, err := svc.Day(context.Background(), "CSE-A", "A1", wednesday.AddDate(0, 0, 4))
	require.NoError(t, err)
	assert.Empty(t, sunday.Slots)
}
