package handler

import (
	"context"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/attendease-api/internal/models"
	"github.com/noah-isme/attendease-api/internal/service"
	"github.com/noah-isme/attendease-api/pkg/attendance"
	appErrors "github.com/noah-isme/attendease-api/pkg/errors"
)

type attendanceServiceMock struct {
	userID   string
	markReq  models.MarkAttendanceRequest
	query    service.AttendanceQuery
	days     int
	end      string
	cacheHit bool
	err      error
}

func (m *attendanceServiceMock) Mark(ctx context.Context, userID string, req models.MarkAttendanceRequest) (*models.MarkAttendanceResult, error) {
	m.userID, m.markReq = userID, req
	if m.err != nil {
		return nil, m.err
	}
	return &models.MarkAttendanceResult{Subject: req.Subject, Date: req.Date, Status: models.AttendanceStatusPresent}, nil
}

func (m *attendanceServiceMock) List(ctx context.Context, userID string, query service.AttendanceQuery) ([]models.AttendanceView, error) {
	m.userID, m.query = userID, query
	return []models.AttendanceView{{ID: "r1", Subject: "DBMS", Date: "2024-08-01", IsPresent: true}}, m.err
}

func (m *attendanceServiceMock) Stats(ctx context.Context, userID string) (*attendance.Summary, bool, error) {
	m.userID = userID
	summary := attendance.Summarize(nil, attendance.DefaultThreshold)
	return &summary, m.cacheHit, m.err
}

func (m *attendanceServiceMock) Calendar(ctx context.Context, userID string, days int, end string) ([]models.CalendarDay, error) {
	m.userID, m.days, m.end = userID, days, end
	return []models.CalendarDay{}, m.err
}

func (m *attendanceServiceMock) Dashboard(ctx context.Context, userID, date string) (*models.Dashboard, error) {
	m.userID = userID
	return &models.Dashboard{Date: date}, m.err
}

func TestAttendanceHandlerMark(t *testing.T) {
	svc := &attendanceServiceMock{}
	h := NewAttendanceHandler(svc)

	c, w := newGinContext(http.MethodPost, "/api/attendance", []byte(`{"subject":"DBMS","date":"2024-08-01","isPresent":false}`))
	withSession(c, "user-1", models.RoleStudent)
	h.Mark(c)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "user-1", svc.userID)
	require.NotNil(t, svc.markReq.IsPresent)
	assert.False(t, *svc.markReq.IsPresent)
}

func TestAttendanceHandlerMarkValidationError(t *testing.T) {
	h := NewAttendanceHandler(&attendanceServiceMock{err: appErrors.Clone(appErrors.ErrValidation, "invalid attendance payload")})

	c, w := newGinContext(http.MethodPost, "/api/attendance", []byte(`{"subject":"DBMS"}`))
	withSession(c, "user-1", models.RoleStudent)
	h.Mark(c)

	require.Equal(t, http.StatusBadRequest, w.Code)
}

func TestAttendanceHandlerListPassesFilters(t *testing.T) {
	svc := &attendanceServiceMock{}
	h := NewAttendanceHandler(svc)

	c, w := newGinContext(http.MethodGet, "/api/attendance?subject=DBMS&startDate=2024-08-01&endDate=2024-08-31", nil)
	withSession(c, "user-1", models.RoleStudent)
	h.List(c)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, service.AttendanceQuery{Subject: "DBMS", StartDate: "2024-08-01", EndDate: "2024-08-31"}, svc.query)
	env := decode(t, w)
	assert.Contains(t, string(env.Data), `"isPresent":true`)
	assert.EqualValues(t, 1, env.Meta["count"])
}

func TestAttendanceHandlerStatsReportsCacheHit(t *testing.T) {
	h := NewAttendanceHandler(&attendanceServiceMock{cacheHit: true})

	c, w := newGinContext(http.MethodGet, "/api/attendance/stats", nil)
	withSession(c, "user-1", models.RoleStudent)
	h.Stats(c)

	require.Equal(t, http.StatusOK, w.Code)
	env := decode(t, w)
	assert.Equal(t, true, env.Meta["cache_hit"])
	assert.Contains(t, string(env.Data), `"below_threshold":[]`)
}

func TestAttendanceHandlerCalendarParsesDays(t *testing.T) {
	svc := &attendanceServiceMock{}
	h := NewAttendanceHandler(svc)

	c, w := newGinContext(http.MethodGet, "/api/attendance/calendar?days=14&end=2024-08-05", nil)
	withSession(c, "user-1", models.RoleStudent)
	h.Calendar(c)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, 14, svc.days)
	assert.Equal(t, "2024-08-05", svc.end)

	c, w = newGinContext(http.MethodGet, "/api/attendance/calendar?days=abc", nil)
	withSession(c, "user-1", models.RoleStudent)
	h.Calendar(c)
	require.Equal(t, http.StatusBadRequest, w.Code)
}

func TestAttendanceHandlerRequiresSession(t *testing.T) {
	h := NewAttendanceHandler(&attendanceServiceMock{})
	c, w := newGinContext(http.MethodGet, "/api/dashboard", nil)
	h.Dashboard(c)
	require.Equal(t, http.StatusUnauthorized, w.Code)
}

type timetableServiceMock struct {
	batch, subBatch string
	date            time.Time
	replaced        models.Timetable
}

func (m *timetableServiceMock) Week(ctx context.Context, batch string) (*models.Timetable, error) {
	m.batch = batch
	return service.DefaultTimetable(batch), nil
}

func (m *timetableServiceMock) Day(ctx context.Context, batch, subBatch string, date time.Time) (*models.DaySchedule, error) {
	m.batch, m.subBatch, m.date = batch, subBatch, date
	return &models.DaySchedule{Batch: batch, Date: date.Format(models.DateLayout)}, nil
}

func (m *timetableServiceMock) Replace(ctx context.Context, batch string, tt models.Timetable) (*models.Timetable, error) {
	m.batch, m.replaced = batch, tt
	return &tt, nil
}

func TestTimetableHandlerDay(t *testing.T) {
	svc := &timetableServiceMock{}
	h := NewTimetableHandler(svc, time.UTC)
	h.now = func() time.Time { return time.Date(2024, 8, 5, 23, 0, 0, 0, time.UTC) }

	c, w := newGinContext(http.MethodGet, "/api/timetable/CSE-A/day?sub_batch=A1", nil)
	c.Params = append(c.Params, ginParam("batch", "CSE-A"))
	h.Day(c)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "CSE-A", svc.batch)
	assert.Equal(t, "A1", svc.subBatch)
	assert.Equal(t, "2024-08-05", svc.date.Format(models.DateLayout))

	c, w = newGinContext(http.MethodGet, "/api/timetable/CSE-A/day?date=05-08-2024", nil)
	h.Day(c)
	require.Equal(t, http.StatusBadRequest, w.Code)
}

func TestTimetableHandlerReplaceBindsSchedule(t *testing.T) {
	svc := &timetableServiceMock{}
	h := NewTimetableHandler(svc, nil)

	body := []byte(`{"schedule":{"Monday":[{"time":"09:00-10:00","subject":"Maths","room":"R1","sub_batches":["A1"]}]}}`)
	c, w := newGinContext(http.MethodPut, "/api/admin/timetable/CSE-A", body)
	c.Params = append(c.Params, ginParam("batch", "CSE-A"))
	h.Replace(c)

	require.Equal(t, http.StatusOK, w.Code)
	require.Len(t, svc.replaced.Schedule["Monday"], 1)
	assert.Equal(t, []string{"A1"}, svc.replaced.Schedule["Monday"][0].SubBatch)
}
