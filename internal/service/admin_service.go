package service

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/attendease-api/internal/models"
	"github.com/noah-isme/attendease-api/pkg/attendance"
	appErrors "github.com/noah-isme/attendease-api/pkg/errors"
)

type adminUserRepository interface {
	List(ctx context.Context, filter models.UserFilter) ([]models.User, error)
	FindByID(ctx context.Context, id string) (*models.User, error)
}

type attendanceLister interface {
	List(ctx context.Context, userID string, filter models.AttendanceFilter) ([]models.AttendanceRecord, error)
}

// StudentAttendance is a student's profile with their attendance summary.
type StudentAttendance struct {
	User    *models.User       `json:"user"`
	Summary attendance.Summary `json:"summary"`
}

// AdminService backs the operator's student views.
type AdminService struct {
	users      adminUserRepository
	attendance attendanceLister
	logger     *zap.Logger
	threshold  float64
	now        func() time.Time
}

// NewAdminService constructs an AdminService.
func NewAdminService(users adminUserRepository, attendanceRepo attendanceLister, logger *zap.Logger, threshold float64) *AdminService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if !attendance.ValidThreshold(threshold) {
		threshold = attendance.DefaultThreshold
	}
	return &AdminService{users: users, attendance: attendanceRepo, logger: logger, threshold: threshold, now: time.Now}
}

// ListStudents returns students matching search, newest first, with counts.
func (s *AdminService) ListStudents(ctx context.Context, search string) ([]models.User, *models.UserListMeta, error) {
	users, err := s.users.List(ctx, models.UserFilter{Search: strings.TrimSpace(search), Role: models.RoleStudent})
	if err != nil {
		return nil, nil, appErrors.Internal(err, "failed to list students")
	}
	weekAgo := s.now().UTC().AddDate(0, 0, -7)
	meta := &models.UserListMeta{Total: len(users)}
	for _, u := range users {
		if u.CreatedAt.After(weekAgo) {
			meta.NewThisWeek++
		}
	}
	return users, meta, nil
}

// StudentAttendance summarises one student's marks.
func (s *AdminService) StudentAttendance(ctx context.Context, userID string) (*StudentAttendance, error) {
	user, err := s.users.FindByID(ctx, userID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "student not found")
		}
		return nil, appErrors.Internal(err, "failed to fetch student")
	}
	records, err := s.attendance.List(ctx, user.ID, models.AttendanceFilter{})
	if err != nil {
		return nil, appErrors.Internal(err, "failed to load attendance")
	}
	return &StudentAttendance{User: user, Summary: attendance.Summarize(toRecords(records), s.threshold)}, nil
}
