package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/attendease-api/internal/models"
	"github.com/noah-isme/attendease-api/internal/service"
	"github.com/noah-isme/attendease-api/pkg/response"
)

type adminService interface {
	ListStudents(ctx context.Context, search string) ([]models.User, *models.UserListMeta, error)
	StudentAttendance(ctx context.Context, userID string) (*service.StudentAttendance, error)
}

type reportService interface {
	Export(ctx context.Context, format string) (*service.ReportFile, error)
}

// AdminHandler exposes the operator's student views and reports.
type AdminHandler struct {
	admin   adminService
	reports reportService
}

// NewAdminHandler creates a new handler.
func NewAdminHandler(admin adminService, reports reportService) *AdminHandler {
	return &AdminHandler{admin: admin, reports: reports}
}

// ListUsers godoc
// @Summary List students
// @Tags Admin
// @Produce json
// @Param search query string false "Search name, email, student id or batch"
// @Success 200 {object} response.Envelope
// @Security BearerAuth
// @Router /admin/users [get]
func (h *AdminHandler) ListUsers(c *gin.Context) {
	users, meta, err := h.admin.ListStudents(c.Request.Context(), c.Query("search"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, users, nil, map[string]interface{}{
		"total":         meta.Total,
		"new_this_week": meta.NewThisWeek,
	})
}

// StudentAttendance godoc
// @Summary A student's attendance summary
// @Tags Admin
// @Produce json
// @Param id path string true "User ID"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Security BearerAuth
// @Router /admin/users/{id}/attendance [get]
func (h *AdminHandler) StudentAttendance(c *gin.Context) {
	view, err := h.admin.StudentAttendance(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, view, nil)
}

// ExportReport godoc
// @Summary Download the attendance report
// @Tags Admin
// @Produce text/csv
// @Produce application/pdf
// @Param format query string false "csv (default) or pdf"
// @Success 200 {file} file
// @Failure 400 {object} response.Envelope
// @Security BearerAuth
// @Router /admin/reports/attendance [get]
func (h *AdminHandler) ExportReport(c *gin.Context) {
	file, err := h.reports.Export(c.Request.Context(), c.Query("format"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.File(c, file.Filename, file.ContentType, file.Body)
}
