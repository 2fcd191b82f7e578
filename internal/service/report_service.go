package service

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/attendease-api/internal/models"
	"github.com/noah-isme/attendease-api/pkg/attendance"
	appErrors "github.com/noah-isme/attendease-api/pkg/errors"
	"github.com/noah-isme/attendease-api/pkg/export"
)

type reportUserRepository interface {
	List(ctx context.Context, filter models.UserFilter) ([]models.User, error)
}

type attendanceCounter interface {
	CountsByUser(ctx context.Context) (map[string]map[string]attendance.Count, error)
}

// ReportFile is a rendered export ready to stream.
type ReportFile struct {
	Filename    string
	ContentType string
	Body        []byte
}

// ReportService builds the per-student attendance report.
type ReportService struct {
	users     reportUserRepository
	counts    attendanceCounter
	logger    *zap.Logger
	threshold float64
	now       func() time.Time
}

// NewReportService constructs a ReportService.
func NewReportService(users reportUserRepository, counts attendanceCounter, logger *zap.Logger, threshold float64) *ReportService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if !attendance.ValidThreshold(threshold) {
		threshold = attendance.DefaultThreshold
	}
	return &ReportService{users: users, counts: counts, logger: logger, threshold: threshold, now: time.Now}
}

// Rows returns one row per student, ordered like the student listing.
func (s *ReportService) Rows(ctx context.Context) ([]models.StudentReportRow, error) {
	students, err := s.users.List(ctx, models.UserFilter{Role: models.RoleStudent})
	if err != nil {
		return nil, appErrors.Internal(err, "failed to list students")
	}
	counts, err := s.counts.CountsByUser(ctx)
	if err != nil {
		return nil, appErrors.Internal(err, "failed to count attendance")
	}

	rows := make([]models.StudentReportRow, 0, len(students))
	for _, student := range students {
		summary := attendance.SummarizeCounts(counts[student.ID], s.threshold)
		below := make([]string, 0, len(summary.BelowThreshold))
		for _, stat := range summary.BelowThreshold {
			below = append(below, stat.Subject)
		}
		rows = append(rows, models.StudentReportRow{
			StudentID:      student.StudentID,
			Name:           student.Name,
			Batch:          student.Batch,
			Present:        summary.Overall.TotalPresent,
			Total:          summary.Overall.TotalClasses,
			Percent:        summary.Overall.OverallPercent,
			BelowThreshold: below,
		})
	}
	return rows, nil
}

// Export renders the report as csv or pdf.
func (s *ReportService) Export(ctx context.Context, format string) (*ReportFile, error) {
	exporter, err := export.ForFormat(format)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "format must be csv or pdf")
	}
	rows, err := s.Rows(ctx)
	if err != nil {
		return nil, err
	}

	now := s.now().UTC()
	dataset := export.Dataset{
		Title:   fmt.Sprintf("Attendance report (threshold %s%%)", strconv.FormatFloat(s.threshold, 'f', -1, 64)),
		Headers: []string{"Student ID", "Name", "Batch", "Present", "Total", "Percent", "Below threshold"},
		Rows:    make([][]string, 0, len(rows)),
	}
	for _, row := range rows {
		dataset.Rows = append(dataset.Rows, []string{
			row.StudentID,
			row.Name,
			row.Batch,
			strconv.Itoa(row.Present),
			strconv.Itoa(row.Total),
			strconv.Itoa(row.Percent) + "%",
			strings.Join(row.BelowThreshold, ", "),
		})
	}

	body, err := exporter.Render(dataset)
	if err != nil {
		return nil, appErrors.Internal(err, "failed to render report")
	}
	s.logger.Info("attendance report exported", zap.String("format", exporter.Extension()), zap.Int("rows", len(rows)))
	return &ReportFile{
		Filename:    fmt.Sprintf("attendance_report_%s.%s", now.Format("20060102_150405"), exporter.Extension()),
		ContentType: exporter.ContentType(),
		Body:        body,
	}, nil
}
