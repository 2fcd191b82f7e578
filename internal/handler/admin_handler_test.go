package handler

import (
	"context"
	"errors"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/attendease-api/internal/models"
	"github.com/noah-isme/attendease-api/internal/service"
	appErrors "github.com/noah-isme/attendease-api/pkg/errors"
	"github.com/noah-isme/attendease-api/pkg/jobs"
)

type adminServiceMock struct {
	search string
	err    error
}

func (m *adminServiceMock) ListStudents(ctx context.Context, search string) ([]models.User, *models.UserListMeta, error) {
	m.search = search
	if m.err != nil {
		return nil, nil, m.err
	}
	return []models.User{{ID: "u1", Name: "Asha"}}, &models.UserListMeta{Total: 1, NewThisWeek: 1}, nil
}

func (m *adminServiceMock) StudentAttendance(ctx context.Context, userID string) (*service.StudentAttendance, error) {
	if m.err != nil {
		return nil, m.err
	}
	return &service.StudentAttendance{User: &models.User{ID: userID}}, nil
}

type reportServiceMock struct {
	format string
	err    error
}

func (m *reportServiceMock) Export(ctx context.Context, format string) (*service.ReportFile, error) {
	m.format = format
	if m.err != nil {
		return nil, m.err
	}
	return &service.ReportFile{Filename: "attendance_report.csv", ContentType: "text/csv", Body: []byte("a,b\n")}, nil
}

func TestAdminHandlerListUsers(t *testing.T) {
	admin := &adminServiceMock{}
	h := NewAdminHandler(admin, &reportServiceMock{})

	c, w := newGinContext(http.MethodGet, "/api/admin/users?search=asha", nil)
	h.ListUsers(c)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "asha", admin.search)
	env := decode(t, w)
	assert.EqualValues(t, 1, env.Meta["total"])
	assert.EqualValues(t, 1, env.Meta["new_this_week"])
}

func TestAdminHandlerStudentAttendanceNotFound(t *testing.T) {
	h := NewAdminHandler(&adminServiceMock{err: appErrors.Clone(appErrors.ErrNotFound, "student not found")}, &reportServiceMock{})

	c, w := newGinContext(http.MethodGet, "/api/admin/users/x/attendance", nil)
	c.Params = append(c.Params, ginParam("id", "x"))
	h.StudentAttendance(c)

	require.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, "student not found", decode(t, w).Error.Message)
}

func TestAdminHandlerExportReport(t *testing.T) {
	reports := &reportServiceMock{}
	h := NewAdminHandler(&adminServiceMock{}, reports)

	c, w := newGinContext(http.MethodGet, "/api/admin/reports/attendance?format=csv", nil)
	h.ExportReport(c)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "csv", reports.format)
	assert.Equal(t, "text/csv", w.Header().Get("Content-Type"))
	assert.Equal(t, `attachment; filename="attendance_report.csv"`, w.Header().Get("Content-Disposition"))
	assert.Equal(t, "a,b\n", w.Body.String())
}

func TestAdminHandlerExportReportBadFormat(t *testing.T) {
	h := NewAdminHandler(&adminServiceMock{}, &reportServiceMock{err: appErrors.Clone(appErrors.ErrValidation, "format must be csv or pdf")})

	c, w := newGinContext(http.MethodGet, "/api/admin/reports/attendance?format=xls", nil)
	h.ExportReport(c)
	require.Equal(t, http.StatusBadRequest, w.Code)
}

type fixedStats jobs.Stats

func (s fixedStats) Stats() jobs.Stats { return jobs.Stats(s) }

func TestMetricsHandlerHealth(t *testing.T) {
	h := NewMetricsHandler(service.NewMetricsService(), nil, map[string]Pinger{
		"postgres": PingFunc(func(ctx context.Context) error { return nil }),
	})
	c, w := newGinContext(http.MethodGet, "/api/health", nil)
	h.Health(c)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"postgres":"ok"`)

	h = NewMetricsHandler(nil, nil, map[string]Pinger{
		"redis": PingFunc(func(ctx context.Context) error { return errors.New("connection refused") }),
	})
	c, w = newGinContext(http.MethodGet, "/api/health", nil)
	h.Health(c)
	require.Equal(t, http.StatusServiceUnavailable, w.Code)
	assert.Contains(t, w.Body.String(), `"status":"degraded"`)
}

func TestMetricsHandlerSystem(t *testing.T) {
	h := NewMetricsHandler(service.NewMetricsService(), fixedStats{Processed: 4}, nil)
	c, w := newGinContext(http.MethodGet, "/api/admin/system/metrics", nil)
	h.System(c)

	require.Equal(t, http.StatusOK, w.Code)
	body := w.Body.String()
	assert.Contains(t, body, `"requests_total":0`)
	assert.Contains(t, body, `"processed":4`)
}
