package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/attendease-api/internal/models"
	"github.com/noah-isme/attendease-api/pkg/response"
)

type timetableService interface {
	Week(ctx context.Context, batch string) (*models.Timetable, error)
	Day(ctx context.Context, batch, subBatch string, date time.Time) (*models.DaySchedule, error)
	Replace(ctx context.Context, batch string, tt models.Timetable) (*models.Timetable, error)
}

// TimetableHandler serves batch timetables.
type TimetableHandler struct {
	service timetableService
	loc     *time.Location
	now     func() time.Time
}

// NewTimetableHandler creates a new handler. loc decides what "today" is.
func NewTimetableHandler(svc timetableService, loc *time.Location) *TimetableHandler {
	if loc == nil {
		loc = time.UTC
	}
	return &TimetableHandler{service: svc, loc: loc, now: time.Now}
}

// Week godoc
// @Summary Weekly timetable for a batch
// @Tags Timetable
// @Produce json
// @Param batch path string true "Batch"
// @Success 200 {object} response.Envelope
// @Security BearerAuth
// @Router /timetable/{batch} [get]
func (h *TimetableHandler) Week(c *gin.Context) {
	tt, err := h.service.Week(c.Request.Context(), c.Param("batch"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, tt, nil)
}

// Day godoc
// @Summary Classes for a batch on a date
// @Tags Timetable
// @Produce json
// @Param batch path string true "Batch"
// @Param date query string false "Day (YYYY-MM-DD), defaults to today"
// @Param sub_batch query string false "Sub-batch"
// @Success 200 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Security BearerAuth
// @Router /timetable/{batch}/day [get]
func (h *TimetableHandler) Day(c *gin.Context) {
	y, m, d := h.now().In(h.loc).Date()
	date := time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
	if raw := c.Query("date"); raw != "" {
		parsed, err := time.Parse(models.DateLayout, raw)
		if err != nil {
			response.Error(c, bindError(err, "date must be YYYY-MM-DD"))
			return
		}
		date = parsed
	}
	day, err := h.service.Day(c.Request.Context(), c.Param("batch"), c.Query("sub_batch"), date)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, day, nil)
}

// Replace godoc
// @Summary Replace a batch timetable
// @Description Uploads a full week; the previous slots are replaced atomically.
// @Tags Admin
// @Accept json
// @Produce json
// @Param batch path string true "Batch"
// @Param payload body models.Timetable true "Week schedule"
// @Success 200 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Security BearerAuth
// @Router /admin/timetable/{batch} [put]
func (h *TimetableHandler) Replace(c *gin.Context) {
	var tt models.Timetable
	if err := c.ShouldBindJSON(&tt); err != nil {
		response.Error(c, bindError(err, "invalid timetable payload"))
		return
	}
	res, err := h.service.Replace(c.Request.Context(), c.Param("batch"), tt)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, res, nil)
}
