package handler

import (
	"context"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/attendease-api/internal/models"
	"github.com/noah-isme/attendease-api/internal/service"
	"github.com/noah-isme/attendease-api/pkg/attendance"
	appErrors "github.com/noah-isme/attendease-api/pkg/errors"
	"github.com/noah-isme/attendease-api/pkg/response"
)

type attendanceService interface {
	Mark(ctx context.Context, userID string, req models.MarkAttendanceRequest) (*models.MarkAttendanceResult, error)
	List(ctx context.Context, userID string, query service.AttendanceQuery) ([]models.AttendanceView, error)
	Stats(ctx context.Context, userID string) (*attendance.Summary, bool, error)
	Calendar(ctx context.Context, userID string, days int, end string) ([]models.CalendarDay, error)
	Dashboard(ctx context.Context, userID, date string) (*models.Dashboard, error)
}

// AttendanceHandler serves a student's own attendance.
type AttendanceHandler struct {
	service attendanceService
}

// NewAttendanceHandler creates a new handler.
func NewAttendanceHandler(svc attendanceService) *AttendanceHandler {
	return &AttendanceHandler{service: svc}
}

// Mark godoc
// @Summary Mark attendance
// @Description Records present/absent for a subject on a date. Status "off" removes the mark.
// @Tags Attendance
// @Accept json
// @Produce json
// @Param payload body models.MarkAttendanceRequest true "Mark"
// @Success 200 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Security BearerAuth
// @Router /attendance [post]
func (h *AttendanceHandler) Mark(c *gin.Context) {
	session, ok := requireSession(c)
	if !ok {
		return
	}
	var req models.MarkAttendanceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, bindError(err, "invalid attendance payload"))
		return
	}
	res, err := h.service.Mark(c.Request.Context(), session.UserID, req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, res, nil)
}

// List godoc
// @Summary List attendance records
// @Tags Attendance
// @Produce json
// @Param subject query string false "Subject"
// @Param startDate query string false "Range start (YYYY-MM-DD)"
// @Param endDate query string false "Range end (YYYY-MM-DD)"
// @Success 200 {object} response.Envelope
// @Security BearerAuth
// @Router /attendance [get]
func (h *AttendanceHandler) List(c *gin.Context) {
	session, ok := requireSession(c)
	if !ok {
		return
	}
	views, err := h.service.List(c.Request.Context(), session.UserID, service.AttendanceQuery{
		Subject:   c.Query("subject"),
		StartDate: c.Query("startDate"),
		EndDate:   c.Query("endDate"),
	})
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, views, nil, map[string]interface{}{"count": len(views)})
}

// Stats godoc
// @Summary Attendance statistics
// @Tags Attendance
// @Produce json
// @Success 200 {object} response.Envelope
// @Security BearerAuth
// @Router /attendance/stats [get]
func (h *AttendanceHandler) Stats(c *gin.Context) {
	session, ok := requireSession(c)
	if !ok {
		return
	}
	summary, hit, err := h.service.Stats(c.Request.Context(), session.UserID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, summary, nil, map[string]interface{}{"cache_hit": hit})
}

// Calendar godoc
// @Summary Attendance calendar
// @Tags Attendance
// @Produce json
// @Param days query int false "Window size in days"
// @Param end query string false "Last day (YYYY-MM-DD)"
// @Success 200 {object} response.Envelope
// @Security BearerAuth
// @Router /attendance/calendar [get]
func (h *AttendanceHandler) Calendar(c *gin.Context) {
	session, ok := requireSession(c)
	if !ok {
		return
	}
	days := 0
	if raw := c.Query("days"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			response.Error(c, appErrors.Clone(appErrors.ErrValidation, "days must be a positive integer"))
			return
		}
		days = n
	}
	calendar, err := h.service.Calendar(c.Request.Context(), session.UserID, days, c.Query("end"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, calendar, nil)
}

// Dashboard godoc
// @Summary Student dashboard
// @Tags Attendance
// @Produce json
// @Param date query string false "Day (YYYY-MM-DD), defaults to today"
// @Success 200 {object} response.Envelope
// @Security BearerAuth
// @Router /dashboard [get]
func (h *AttendanceHandler) Dashboard(c *gin.Context) {
	session, ok := requireSession(c)
	if !ok {
		return
	}
	dash, err := h.service.Dashboard(c.Request.Context(), session.UserID, c.Query("date"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, dash, nil)
}
