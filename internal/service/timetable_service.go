package service

import (
	"context"
	"sort"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/noah-isme/attendease-api/internal/models"
	appErrors "github.com/noah-isme/attendease-api/pkg/errors"
)

type timetableRepository interface {
	ListByBatch(ctx context.Context, batch string) ([]models.TimetableSlot, error)
	ReplaceBatch(ctx context.Context, batch string, slots []models.TimetableSlot) error
}

// TimetableService serves and replaces per-batch weekly timetables.
type TimetableService struct {
	repo      timetableRepository
	cache     *CacheService
	validator *validator.Validate
	logger    *zap.Logger
	cacheTTL  time.Duration
}

// NewTimetableService constructs a TimetableService.
func NewTimetableService(repo timetableRepository, cache *CacheService, validate *validator.Validate, logger *zap.Logger, cacheTTL time.Duration) *TimetableService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if validate == nil {
		validate = NewValidator()
	}
	return &TimetableService{repo: repo, cache: cache, validator: validate, logger: logger, cacheTTL: cacheTTL}
}

func timetableCacheKey(batch string) string {
	return "timetable:" + batch
}

// Week returns the batch's timetable, or the built-in week when none is stored.
func (s *TimetableService) Week(ctx context.Context, batch string) (*models.Timetable, error) {
	batch = strings.TrimSpace(batch)
	if batch == "" {
		return nil, appErrors.Clone(appErrors.ErrValidation, "batch is required")
	}

	tt, _, err := Remember(ctx, s.cache, timetableCacheKey(batch), s.cacheTTL, func(ctx context.Context) (*models.Timetable, error) {
		slots, err := s.repo.ListByBatch(ctx, batch)
		if err != nil {
			return nil, appErrors.Internal(err, "failed to load timetable")
		}
		if len(slots) == 0 {
			return DefaultTimetable(batch), nil
		}
		return groupSlots(batch, slots), nil
	})
	return tt, err
}

// Day returns the slots held on date's weekday for subBatch.
func (s *TimetableService) Day(ctx context.Context, batch, subBatch string, date time.Time) (*models.DaySchedule, error) {
	tt, err := s.Week(ctx, batch)
	if err != nil {
		return nil, err
	}
	weekday := models.WeekdayName(date)
	slots := make([]models.TimetableSlot, 0)
	for _, slot := range tt.Schedule[weekday] {
		if slot.AppliesTo(subBatch) {
			slots = append(slots, slot)
		}
	}
	return &models.DaySchedule{Batch: tt.Batch, Date: date.Format(models.DateLayout), Weekday: weekday, Slots: slots}, nil
}

// Replace swaps the batch's whole week atomically.
func (s *TimetableService) Replace(ctx context.Context, batch string, tt models.Timetable) (*models.Timetable, error) {
	batch = strings.TrimSpace(batch)
	if batch == "" {
		return nil, appErrors.Clone(appErrors.ErrValidation, "batch is required")
	}
	if err := s.validator.Struct(tt); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid timetable")
	}

	slots := make([]models.TimetableSlot, 0)
	for _, day := range models.Weekdays {
		for i, slot := range tt.Schedule[day] {
			subBatches := make([]string, 0, len(slot.SubBatch))
			for _, sb := range slot.SubBatch {
				if sb = strings.TrimSpace(sb); sb != "" {
					subBatches = append(subBatches, sb)
				}
			}
			slots = append(slots, models.TimetableSlot{
				Batch:      batch,
				Weekday:    day,
				Position:   i,
				Time:       strings.TrimSpace(slot.Time),
				Subject:    strings.TrimSpace(slot.Subject),
				Room:       strings.TrimSpace(slot.Room),
				SubBatches: strings.Join(subBatches, ","),
				SubBatch:   subBatches,
			})
		}
	}

	if err := s.repo.ReplaceBatch(ctx, batch, slots); err != nil {
		return nil, appErrors.Internal(err, "failed to replace timetable")
	}
	s.cache.Invalidate(ctx, timetableCacheKey(batch))
	s.logger.Info("timetable replaced", zap.String("batch", batch), zap.Int("slots", len(slots)))
	return groupSlots(batch, slots), nil
}

func groupSlots(batch string, slots []models.TimetableSlot) *models.Timetable {
	schedule := make(map[string][]models.TimetableSlot)
	for _, slot := range slots {
		schedule[slot.Weekday] = append(schedule[slot.Weekday], slot)
	}
	for day := range schedule {
		daySlots := schedule[day]
		sort.SliceStable(daySlots, func(i, j int) bool { return daySlots[i].Position < daySlots[j].Position })
	}
	return &models.Timetable{Batch: batch, Schedule: schedule}
}
