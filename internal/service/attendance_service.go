package service

import (
	"context"
	"database/sql"
	"errors"
	"sort"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/noah-isme/attendease-api/internal/models"
	"github.com/noah-isme/attendease-api/pkg/attendance"
	appErrors "github.com/noah-isme/attendease-api/pkg/errors"
)

type attendanceRepository interface {
	Upsert(ctx context.Context, rec *models.AttendanceRecord) error
	Delete(ctx context.Context, userID, subject string, date time.Time) (bool, error)
	List(ctx context.Context, userID string, filter models.AttendanceFilter) ([]models.AttendanceRecord, error)
}

type userLookup interface {
	FindByID(ctx context.Context, id string) (*models.User, error)
}

type timetableReader interface {
	Week(ctx context.Context, batch string) (*models.Timetable, error)
}

// AttendanceConfig tunes aggregation and the calendar window.
type AttendanceConfig struct {
	Threshold     float64
	StatsCacheTTL time.Duration
	CalendarDays  int
	Location      *time.Location
}

// AttendanceQuery carries raw listing filters from the query string.
type AttendanceQuery struct {
	Subject   string
	StartDate string
	EndDate   string
}

// AttendanceService records marks and derives statistics from them.
type AttendanceService struct {
	repo      attendanceRepository
	users     userLookup
	timetable timetableReader
	cache     *CacheService
	metrics   *MetricsService
	validator *validator.Validate
	logger    *zap.Logger
	config    AttendanceConfig
	now       func() time.Time
}

// NewAttendanceService constructs an AttendanceService.
func NewAttendanceService(repo attendanceRepository, users userLookup, timetable timetableReader, cache *CacheService, metrics *MetricsService, validate *validator.Validate, logger *zap.Logger, config AttendanceConfig) *AttendanceService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if validate == nil {
		validate = NewValidator()
	}
	if !attendance.ValidThreshold(config.Threshold) {
		config.Threshold = attendance.DefaultThreshold
	}
	if config.CalendarDays <= 0 {
		config.CalendarDays = 30
	}
	if config.Location == nil {
		config.Location = time.UTC
	}
	return &AttendanceService{
		repo:      repo,
		users:     users,
		timetable: timetable,
		cache:     cache,
		metrics:   metrics,
		validator: validate,
		logger:    logger,
		config:    config,
		now:       time.Now,
	}
}

func statsCacheKey(userID string) string {
	return "stats:" + userID
}

// Mark records or clears a mark. Marking "off" deletes the record so the class
// counts neither as present nor absent; any other mark replaces the previous
// one for the same subject and date.
func (s *AttendanceService) Mark(ctx context.Context, userID string, req models.MarkAttendanceRequest) (*models.MarkAttendanceResult, error) {
	req.Subject = strings.TrimSpace(req.Subject)
	req.Status = strings.ToLower(strings.TrimSpace(req.Status))
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid attendance payload")
	}
	date, err := time.ParseInLocation(models.DateLayout, req.Date, time.UTC)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "date must be YYYY-MM-DD")
	}

	status := models.AttendanceStatus(req.Status)
	if status == "" {
		status = models.AttendanceStatusPresent
		if req.IsPresent != nil && !*req.IsPresent {
			status = models.AttendanceStatusAbsent
		}
	}

	result := &models.MarkAttendanceResult{Subject: req.Subject, Date: req.Date, Status: status}
	if status == models.AttendanceStatusOff {
		deleted, err := s.repo.Delete(ctx, userID, req.Subject, date)
		if err != nil {
			return nil, appErrors.Internal(err, "failed to delete attendance")
		}
		result.Deleted = deleted
	} else {
		rec := &models.AttendanceRecord{
			UserID:    userID,
			Subject:   req.Subject,
			Date:      date,
			IsPresent: status == models.AttendanceStatusPresent,
		}
		if err := s.repo.Upsert(ctx, rec); err != nil {
			return nil, appErrors.Internal(err, "failed to save attendance")
		}
	}

	s.cache.Invalidate(ctx, statsCacheKey(userID))
	s.metrics.RecordAttendanceMark(string(status))
	return result, nil
}

// List returns a user's marks, newest first.
func (s *AttendanceService) List(ctx context.Context, userID string, query AttendanceQuery) ([]models.AttendanceView, error) {
	filter := models.AttendanceFilter{Subject: strings.TrimSpace(query.Subject)}
	var err error
	if filter.StartDate, err = parseDate(query.StartDate, time.UTC); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "startDate must be YYYY-MM-DD")
	}
	if filter.EndDate, err = parseDate(query.EndDate, time.UTC); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "endDate must be YYYY-MM-DD")
	}

	records, err := s.repo.List(ctx, userID, filter)
	if err != nil {
		return nil, appErrors.Internal(err, "failed to list attendance")
	}
	views := make([]models.AttendanceView, 0, len(records))
	for _, rec := range records {
		views = append(views, models.NewAttendanceView(rec))
	}
	return views, nil
}

// Stats summarises all of a user's marks. The bool reports a cache hit.
func (s *AttendanceService) Stats(ctx context.Context, userID string) (*attendance.Summary, bool, error) {
	return Remember(ctx, s.cache, statsCacheKey(userID), s.config.StatsCacheTTL, func(ctx context.Context) (*attendance.Summary, error) {
		records, err := s.repo.List(ctx, userID, models.AttendanceFilter{})
		if err != nil {
			return nil, appErrors.Internal(err, "failed to load attendance")
		}
		summary := attendance.Summarize(toRecords(records), s.config.Threshold)
		return &summary, nil
	})
}

// Calendar lists, for each of the days ending at end, the classes scheduled
// for the user's batch and how each was marked. Marks for subjects not on
// that day's timetable are reported under Extra.
func (s *AttendanceService) Calendar(ctx context.Context, userID string, days int, end string) ([]models.CalendarDay, error) {
	if days <= 0 {
		days = s.config.CalendarDays
	}
	if days > 366 {
		return nil, appErrors.Clone(appErrors.ErrValidation, "days must be at most 366")
	}
	endDate, err := parseDate(end, time.UTC)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "end must be YYYY-MM-DD")
	}
	if endDate == nil {
		today := s.today()
		endDate = &today
	}
	startDate := endDate.AddDate(0, 0, -(days - 1))

	user, week, err := s.userWeek(ctx, userID)
	if err != nil {
		return nil, err
	}
	records, err := s.repo.List(ctx, userID, models.AttendanceFilter{StartDate: &startDate, EndDate: endDate})
	if err != nil {
		return nil, appErrors.Internal(err, "failed to load attendance")
	}
	marks := indexMarks(records)

	calendar := make([]models.CalendarDay, 0, days)
	for d := *endDate; !d.Before(startDate); d = d.AddDate(0, 0, -1) {
		key := d.Format(models.DateLayout)
		weekday := models.WeekdayName(d)
		day := models.CalendarDay{Date: key, Weekday: weekday, Slots: make([]models.CalendarSlot, 0)}

		scheduled := make(map[string]struct{})
		for _, slot := range week.Schedule[weekday] {
			if !slot.AppliesTo(user.SubBatch) {
				continue
			}
			scheduled[slot.Subject] = struct{}{}
			day.Slots = append(day.Slots, models.CalendarSlot{
				Time:    slot.Time,
				Subject: slot.Subject,
				Room:    slot.Room,
				Status:  markStatus(marks, key, slot.Subject),
			})
		}
		for _, subject := range marks.subjects(key) {
			if _, ok := scheduled[subject]; ok {
				continue
			}
			day.Extra = append(day.Extra, models.CalendarSlot{Subject: subject, Status: markStatus(marks, key, subject)})
		}
		calendar = append(calendar, day)
	}
	return calendar, nil
}

// Dashboard combines the classes due on date with the user's summary.
func (s *AttendanceService) Dashboard(ctx context.Context, userID, date string) (*models.Dashboard, error) {
	day, err := parseDate(date, time.UTC)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "date must be YYYY-MM-DD")
	}
	if day == nil {
		today := s.today()
		day = &today
	}

	user, week, err := s.userWeek(ctx, userID)
	if err != nil {
		return nil, err
	}
	records, err := s.repo.List(ctx, userID, models.AttendanceFilter{StartDate: day, EndDate: day})
	if err != nil {
		return nil, appErrors.Internal(err, "failed to load attendance")
	}
	marks := indexMarks(records)
	key := day.Format(models.DateLayout)
	weekday := models.WeekdayName(*day)

	due := make([]models.DashboardSlot, 0)
	for _, slot := range week.Schedule[weekday] {
		if slot.AppliesTo(user.SubBatch) {
			due = append(due, models.DashboardSlot{TimetableSlot: slot, Status: markStatus(marks, key, slot.Subject)})
		}
	}

	summary, _, err := s.Stats(ctx, userID)
	if err != nil {
		return nil, err
	}
	return &models.Dashboard{Date: key, Weekday: weekday, Today: due, Summary: *summary}, nil
}

func (s *AttendanceService) userWeek(ctx context.Context, userID string) (*models.User, *models.Timetable, error) {
	user, err := s.users.FindByID(ctx, userID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil, appErrors.Clone(appErrors.ErrNotFound, "user not found")
		}
		return nil, nil, appErrors.Internal(err, "failed to fetch user")
	}
	week, err := s.timetable.Week(ctx, user.Batch)
	if err != nil {
		return nil, nil, err
	}
	return user, week, nil
}

// today is the current calendar date in the configured timezone, as a UTC
// midnight so it compares equal to stored dates.
func (s *AttendanceService) today() time.Time {
	y, m, d := s.now().In(s.config.Location).Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

type markIndex map[string]map[string]bool

func indexMarks(records []models.AttendanceRecord) markIndex {
	idx := make(markIndex)
	for _, rec := range records {
		key := rec.DateString()
		if idx[key] == nil {
			idx[key] = make(map[string]bool)
		}
		idx[key][rec.Subject] = rec.IsPresent
	}
	return idx
}

func (idx markIndex) subjects(date string) []string {
	out := make([]string, 0, len(idx[date]))
	for subject := range idx[date] {
		out = append(out, subject)
	}
	sort.Strings(out)
	return out
}

func markStatus(idx markIndex, date, subject string) models.AttendanceStatus {
	present, ok := idx[date][subject]
	switch {
	case !ok:
		return models.AttendanceStatusNone
	case present:
		return models.AttendanceStatusPresent
	default:
		return models.AttendanceStatusAbsent
	}
}

func toRecords(records []models.AttendanceRecord) []attendance.Record {
	out := make([]attendance.Record, 0, len(records))
	for _, rec := range records {
		out = append(out, attendance.Record{Subject: rec.Subject, Date: rec.DateString(), IsPresent: rec.IsPresent})
	}
	return out
}
