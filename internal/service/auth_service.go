package service

import (
	"context"
	"crypto/subtle"
	"database/sql"
	"errors"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/noah-isme/attendease-api/internal/models"
	"github.com/noah-isme/attendease-api/internal/repository"
	appErrors "github.com/noah-isme/attendease-api/pkg/errors"
	"github.com/noah-isme/attendease-api/pkg/mailer"
)

type authUserRepository interface {
	FindByEmail(ctx context.Context, email string) (*models.User, error)
	FindByID(ctx context.Context, id string) (*models.User, error)
	ExistsByStudentID(ctx context.Context, studentID string) (bool, error)
	Create(ctx context.Context, user *models.User) error
	UpdatePassword(ctx context.Context, id, passwordHash string, updatedAt time.Time) error
}

type sessionRepository interface {
	Create(ctx context.Context, session *models.Session) error
	FindByID(ctx context.Context, id string) (*models.Session, error)
	Delete(ctx context.Context, id string) error
	DeleteByUser(ctx context.Context, userID string) (int64, error)
	DeleteExpired(ctx context.Context, now time.Time) (int64, error)
}

type otpVerifier interface {
	Issue(ctx context.Context, purpose models.OTPPurpose, email, requestedFrom string) (*models.OTPSentResponse, error)
	Verify(ctx context.Context, purpose models.OTPPurpose, email, code string) error
}

type mailQueue interface {
	Enqueue(ctx context.Context, msg *mailer.Message) error
}

// AuthConfig defines configuration for authentication flows.
type AuthConfig struct {
	Secret            string
	Issuer            string
	SessionTTL        time.Duration
	AdminEmail        string
	AdminPassword     string
	AdminPasswordHash string
}

// AuthService provides registration, login and session use cases.
type AuthService struct {
	users     authUserRepository
	sessions  sessionRepository
	otp       otpVerifier
	mail      mailQueue
	validator *validator.Validate
	metrics   *MetricsService
	logger    *zap.Logger
	config    AuthConfig
	now       func() time.Time
}

// NewAuthService constructs an AuthService instance.
func NewAuthService(users authUserRepository, sessions sessionRepository, otp otpVerifier, mail mailQueue, validate *validator.Validate, metrics *MetricsService, logger *zap.Logger, config AuthConfig) *AuthService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if validate == nil {
		validate = NewValidator()
	}
	if config.SessionTTL <= 0 {
		config.SessionTTL = 7 * 24 * time.Hour
	}
	config.AdminEmail = normalizeEmail(config.AdminEmail)
	return &AuthService{
		users:     users,
		sessions:  sessions,
		otp:       otp,
		mail:      mail,
		validator: validate,
		metrics:   metrics,
		logger:    logger,
		config:    config,
		now:       time.Now,
	}
}

// Register creates a student account and queues the welcome mail.
func (s *AuthService) Register(ctx context.Context, req models.RegisterRequest) (*models.User, error) {
	req.Email = normalizeEmail(req.Email)
	req.StudentID = strings.TrimSpace(req.StudentID)
	req.Name = strings.TrimSpace(req.Name)
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid registration payload")
	}

	if _, err := s.users.FindByEmail(ctx, req.Email); err == nil {
		return nil, appErrors.ErrEmailTaken
	} else if !errors.Is(err, sql.ErrNoRows) {
		return nil, appErrors.Internal(err, "failed to check email")
	}
	taken, err := s.users.ExistsByStudentID(ctx, req.StudentID)
	if err != nil {
		return nil, appErrors.Internal(err, "failed to check student id")
	}
	if taken {
		return nil, appErrors.ErrStudentIDTaken
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, appErrors.Internal(err, "failed to hash password")
	}

	user := &models.User{
		StudentID:    req.StudentID,
		Name:         req.Name,
		Email:        req.Email,
		PasswordHash: string(hash),
		Branch:       strings.TrimSpace(req.Branch),
		Semester:     req.Semester,
		Batch:        strings.TrimSpace(req.Batch),
		SubBatch:     strings.TrimSpace(req.SubBatch),
		Role:         models.RoleStudent,
	}
	if err := s.users.Create(ctx, user); err != nil {
		switch {
		case errors.Is(err, repository.ErrDuplicateEmail):
			return nil, appErrors.ErrEmailTaken
		case errors.Is(err, repository.ErrDuplicateStudentID):
			return nil, appErrors.ErrStudentIDTaken
		}
		return nil, appErrors.Internal(err, "failed to create user")
	}

	welcome := &mailer.Message{
		To:       user.Email,
		Subject:  "Welcome to AttendEase!",
		Template: mailer.TemplateWelcome,
		Data:     mailer.WelcomeData{Name: user.Name, StudentID: user.StudentID},
	}
	if err := s.mail.Enqueue(ctx, welcome); err != nil {
		s.logger.Warn("welcome mail not sent", zap.String("user_id", user.ID), zap.Error(err))
	}

	s.logger.Info("student registered", zap.String("user_id", user.ID), zap.String("batch", user.Batch))
	return user, nil
}

// Login authenticates a student by password and opens a session.
func (s *AuthService) Login(ctx context.Context, req models.LoginRequest) (*models.LoginResponse, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid login payload")
	}

	user, err := s.users.FindByEmail(ctx, normalizeEmail(req.Email))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.ErrInvalidCredentials
		}
		return nil, appErrors.Internal(err, "failed to fetch user")
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(req.Password)); err != nil {
		return nil, appErrors.ErrInvalidCredentials
	}
	return s.issueSession(ctx, user, req.IP, req.UserAgent)
}

// SendLoginOTP mails a login code to a registered student.
func (s *AuthService) SendLoginOTP(ctx context.Context, req models.EmailRequest, requestedFrom string) (*models.OTPSentResponse, error) {
	return s.sendOTP(ctx, models.OTPPurposeLogin, req, requestedFrom)
}

// ForgotPassword mails a password reset code to a registered student.
func (s *AuthService) ForgotPassword(ctx context.Context, req models.EmailRequest, requestedFrom string) (*models.OTPSentResponse, error) {
	return s.sendOTP(ctx, models.OTPPurposeReset, req, requestedFrom)
}

func (s *AuthService) sendOTP(ctx context.Context, purpose models.OTPPurpose, req models.EmailRequest, requestedFrom string) (*models.OTPSentResponse, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid email")
	}
	if _, err := s.users.FindByEmail(ctx, normalizeEmail(req.Email)); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "user not found")
		}
		return nil, appErrors.Internal(err, "failed to fetch user")
	}
	return s.otp.Issue(ctx, purpose, req.Email, requestedFrom)
}

// VerifyLoginOTP exchanges a login code for a session.
func (s *AuthService) VerifyLoginOTP(ctx context.Context, req models.VerifyOTPRequest) (*models.LoginResponse, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid otp payload")
	}
	if err := s.otp.Verify(ctx, models.OTPPurposeLogin, req.Email, req.OTP); err != nil {
		return nil, err
	}
	user, err := s.users.FindByEmail(ctx, normalizeEmail(req.Email))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "user not found")
		}
		return nil, appErrors.Internal(err, "failed to fetch user")
	}
	return s.issueSession(ctx, user, req.IP, req.UserAgent)
}

// ResetPassword sets a new password with a reset code and signs the user out
// everywhere.
func (s *AuthService) ResetPassword(ctx context.Context, req models.ResetPasswordRequest) error {
	if err := s.validator.Struct(req); err != nil {
		return appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid reset payload")
	}
	if err := s.otp.Verify(ctx, models.OTPPurposeReset, req.Email, req.OTP); err != nil {
		return err
	}

	user, err := s.users.FindByEmail(ctx, normalizeEmail(req.Email))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrNotFound, "user not found")
		}
		return appErrors.Internal(err, "failed to fetch user")
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.NewPassword), bcrypt.DefaultCost)
	if err != nil {
		return appErrors.Internal(err, "failed to hash password")
	}
	if err := s.users.UpdatePassword(ctx, user.ID, string(hash), s.now().UTC()); err != nil {
		return appErrors.Internal(err, "failed to update password")
	}

	revoked, err := s.sessions.DeleteByUser(ctx, user.ID)
	if err != nil {
		s.logger.Warn("failed to revoke sessions after reset", zap.String("user_id", user.ID), zap.Error(err))
	}
	s.logger.Info("password reset", zap.String("user_id", user.ID), zap.Int64("sessions_revoked", revoked))
	return nil
}

// AdminLogin authenticates the operator against configured credentials.
func (s *AuthService) AdminLogin(ctx context.Context, req models.LoginRequest) (*models.LoginResponse, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid login payload")
	}
	if !s.adminCredentialsMatch(normalizeEmail(req.Email), req.Password) {
		s.logger.Warn("admin login rejected", zap.String("ip", req.IP))
		return nil, appErrors.ErrInvalidCredentials
	}
	return s.issueSession(ctx, s.adminUser(), req.IP, req.UserAgent)
}

func (s *AuthService) adminCredentialsMatch(email, password string) bool {
	if s.config.AdminEmail == "" || (s.config.AdminPassword == "" && s.config.AdminPasswordHash == "") {
		return false
	}
	emailOK := subtle.ConstantTimeCompare([]byte(email), []byte(s.config.AdminEmail)) == 1
	var passOK bool
	if s.config.AdminPasswordHash != "" {
		passOK = bcrypt.CompareHashAndPassword([]byte(s.config.AdminPasswordHash), []byte(password)) == nil
	} else {
		passOK = subtle.ConstantTimeCompare([]byte(password), []byte(s.config.AdminPassword)) == 1
	}
	return emailOK && passOK
}

func (s *AuthService) adminUser() *models.User {
	return &models.User{
		ID:    models.AdminUserID,
		Name:  "Administrator",
		Email: s.config.AdminEmail,
		Role:  models.RoleAdmin,
	}
}

// Authenticate resolves a bearer token to its live session.
func (s *AuthService) Authenticate(ctx context.Context, token string) (*models.Session, error) {
	claims := &models.JWTClaims{}
	opts := []jwt.ParserOption{jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}), jwt.WithTimeFunc(s.now)}
	if s.config.Issuer != "" {
		opts = append(opts, jwt.WithIssuer(s.config.Issuer))
	}
	parsed, err := jwt.ParseWithClaims(token, claims, func(t *jwt.Token) (interface{}, error) {
		return []byte(s.config.Secret), nil
	}, opts...)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, appErrors.ErrSessionExpired
		}
		return nil, appErrors.Wrap(err, appErrors.ErrUnauthorized.Code, appErrors.ErrUnauthorized.Status, "invalid token")
	}
	if !parsed.Valid || claims.ID == "" {
		return nil, appErrors.Clone(appErrors.ErrUnauthorized, "invalid token")
	}

	session, err := s.sessions.FindByID(ctx, claims.ID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.ErrSessionExpired
		}
		return nil, appErrors.Internal(err, "failed to load session")
	}
	if session.UserID != claims.Subject {
		return nil, appErrors.Clone(appErrors.ErrUnauthorized, "invalid token")
	}
	if session.Expired(s.now()) {
		if err := s.sessions.Delete(ctx, session.ID); err != nil {
			s.logger.Warn("failed to delete expired session", zap.String("session_id", session.ID), zap.Error(err))
		}
		return nil, appErrors.ErrSessionExpired
	}
	return session, nil
}

// Logout ends a session. Unknown sessions are ignored.
func (s *AuthService) Logout(ctx context.Context, sessionID string) error {
	if err := s.sessions.Delete(ctx, sessionID); err != nil {
		return appErrors.Internal(err, "failed to delete session")
	}
	return nil
}

// Profile returns the user behind a session.
func (s *AuthService) Profile(ctx context.Context, session *models.Session) (*models.User, error) {
	if session.IsAdmin() {
		return s.adminUser(), nil
	}
	user, err := s.users.FindByID(ctx, session.UserID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "user not found")
		}
		return nil, appErrors.Internal(err, "failed to fetch user")
	}
	return user, nil
}

// PurgeExpiredSessions deletes sessions past their expiry.
func (s *AuthService) PurgeExpiredSessions(ctx context.Context) (int64, error) {
	n, err := s.sessions.DeleteExpired(ctx, s.now().UTC())
	if err != nil {
		return 0, appErrors.Internal(err, "failed to purge sessions")
	}
	return n, nil
}

func (s *AuthService) issueSession(ctx context.Context, user *models.User, ip, userAgent string) (*models.LoginResponse, error) {
	now := s.now().UTC()
	session := &models.Session{
		ID:        uuid.NewString(),
		UserID:    user.ID,
		Role:      user.Role,
		UserAgent: userAgent,
		IP:        ip,
		ExpiresAt: now.Add(s.config.SessionTTL),
		CreatedAt: now,
	}
	if err := s.sessions.Create(ctx, session); err != nil {
		return nil, appErrors.Internal(err, "failed to create session")
	}

	claims := models.JWTClaims{
		Role: user.Role,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        session.ID,
			Subject:   user.ID,
			Issuer:    s.config.Issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(session.ExpiresAt),
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(s.config.Secret))
	if err != nil {
		return nil, appErrors.Internal(err, "failed to sign token")
	}

	s.metrics.RecordSession()
	return &models.LoginResponse{Token: signed, ExpiresAt: session.ExpiresAt, Role: user.Role, User: user}, nil
}
