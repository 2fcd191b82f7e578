package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/noah-isme/attendease-api/internal/models"
	"github.com/noah-isme/attendease-api/internal/repository"
	appErrors "github.com/noah-isme/attendease-api/pkg/errors"
	"github.com/noah-isme/attendease-api/pkg/mailer"
)

type authFixture struct {
	svc      *AuthService
	users    *stubUsers
	sessions *stubSessions
	otp      *stubOTP
	mail     *recordingMail
}

func hashPassword(t *testing.T, password string) string {
	t.Helper()
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.MinCost)
	require.NoError(t, err)
	return string(hash)
}

func newAuthFixture(t *testing.T, users ...*models.User) *authFixture {
	t.Helper()
	f := &authFixture{
		users:    newStubUsers(users...),
		sessions: newStubSessions(),
		otp:      &stubOTP{},
		mail:     &recordingMail{},
	}
	f.svc = NewAuthService(f.users, f.sessions, f.otp, f.mail, nil, nil, nil, AuthConfig{
		Secret:        "test-secret",
		Issuer:        "attendease",
		SessionTTL:    time.Hour,
		AdminEmail:    "Admin@AttendEase.app",
		AdminPassword: "admin-pass",
	})
	return f
}

func seededStudent(t *testing.T) *models.User {
	return &models.User{
		ID:           "user-1",
		StudentID:    "CSE001",
		Name:         "Asha",
		Email:        "asha@example.com",
		PasswordHash: hashPassword(t, "secret1"),
		Batch:        "CSE-A",
		Role:         models.RoleStudent,
	}
}

func validRegistration() models.RegisterRequest {
	return models.RegisterRequest{
		StudentID: "CSE002",
		Name:      "Ravi",
		Email:     "Ravi@Example.com",
		Password:  "secret1",
		Branch:    "CSE",
		Semester:  3,
		Batch:     "CSE-A",
	}
}

func TestRegisterCreatesStudentAndQueuesWelcome(t *testing.T) {
	f := newAuthFixture(t)

	user, err := f.svc.Register(context.Background(), validRegistration())
	require.NoError(t, err)
	assert.Equal(t, "ravi@example.com", user.Email)
	assert.Equal(t, models.RoleStudent, user.Role)
	require.NoError(t, bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte("secret1")))

	require.Len(t, f.mail.queued, 1)
	assert.Equal(t, mailer.TemplateWelcome, f.mail.queued[0].Template)
	assert.Equal(t, "Welcome to AttendEase!", f.mail.queued[0].Subject)
}

func TestRegisterSurvivesWelcomeMailFailure(t *testing.T) {
	f := newAuthFixture(t)
	f.mail.queueErr = errors.New("queue closed")

	_, err := f.svc.Register(context.Background(), validRegistration())
	require.NoError(t, err)
}

func TestRegisterRejectsDuplicates(t *testing.T) {
	existing := seededStudent(t)

	t.Run("email", func(t *testing.T) {
		f := newAuthFixture(t, existing)
		req := validRegistration()
		req.Email = "ASHA@example.com"
		_, err := f.svc.Register(context.Background(), req)
		assert.ErrorIs(t, err, appErrors.ErrEmailTaken)
	})

	t.Run("student id", func(t *testing.T) {
		f := newAuthFixture(t, existing)
		req := validRegistration()
		req.StudentID = "CSE001"
		_, err := f.svc.Register(context.Background(), req)
		assert.ErrorIs(t, err, appErrors.ErrStudentIDTaken)
	})

	t.Run("insert race", func(t *testing.T) {
		f := newAuthFixture(t)
		f.users.createErr = repository.ErrDuplicateEmail
		_, err := f.svc.Register(context.Background(), validRegistration())
		assert.ErrorIs(t, err, appErrors.ErrEmailTaken)
	})
}

func TestRegisterValidation(t *testing.T) {
	f := newAuthFixture(t)
	cases := map[string]func(*models.RegisterRequest){
		"short password": func(r *models.RegisterRequest) { r.Password = "abc" },
		"bad email":      func(r *models.RegisterRequest) { r.Email = "not-an-email" },
		"no semester":    func(r *models.RegisterRequest) { r.Semester = 0 },
		"no batch":       func(r *models.RegisterRequest) { r.Batch = "" },
	}
	for name, mutate := range cases {
		t.Run(name, func(t *testing.T) {
			req := validRegistration()
			mutate(&req)
			_, err := f.svc.Register(context.Background(), req)
			assert.ErrorIs(t, err, appErrors.ErrValidation)
		})
	}
}

func TestLoginIssuesSessionToken(t *testing.T) {
	f := newAuthFixture(t, seededStudent(t))
	ctx := context.Background()

	resp, err := f.svc.Login(ctx, models.LoginRequest{Email: "Asha@example.com", Password: "secret1", IP: "10.0.0.1"})
	require.NoError(t, err)
	assert.NotEmpty(t, resp.Token)
	assert.Equal(t, models.RoleStudent, resp.Role)
	assert.Len(t, f.sessions.sessions, 1)

	session, err := f.svc.Authenticate(ctx, resp.Token)
	require.NoError(t, err)
	assert.Equal(t, "user-1", session.UserID)
	assert.Equal(t, "10.0.0.1", session.IP)
}

func TestLoginInvalidCredentials(t *testing.T) {
	f := newAuthFixture(t, seededStudent(t))

	_, err := f.svc.Login(context.Background(), models.LoginRequest{Email: "asha@example.com", Password: "wrong"})
	assert.ErrorIs(t, err, appErrors.ErrInvalidCredentials)

	_, err = f.svc.Login(context.Background(), models.LoginRequest{Email: "nobody@example.com", Password: "secret1"})
	assert.ErrorIs(t, err, appErrors.ErrInvalidCredentials)
	assert.Empty(t, f.sessions.sessions)
}

func TestAuthenticateRejectsEndedSessions(t *testing.T) {
	f := newAuthFixture(t, seededStudent(t))
	ctx := context.Background()

	resp, err := f.svc.Login(ctx, models.LoginRequest{Email: "asha@example.com", Password: "secret1"})
	require.NoError(t, err)
	session, err := f.svc.Authenticate(ctx, resp.Token)
	require.NoError(t, err)

	f.sessions.expire(session.ID, time.Now().Add(-time.Minute))
	_, err = f.svc.Authenticate(ctx, resp.Token)
	assert.ErrorIs(t, err, appErrors.ErrSessionExpired)
	assert.Empty(t, f.sessions.sessions)

	resp, err = f.svc.Login(ctx, models.LoginRequest{Email: "asha@example.com", Password: "secret1"})
	require.NoError(t, err)
	session, err = f.svc.Authenticate(ctx, resp.Token)
	require.NoError(t, err)
	require.NoError(t, f.svc.Logout(ctx, session.ID))
	_, err = f.svc.Authenticate(ctx, resp.Token)
	assert.ErrorIs(t, err, appErrors.ErrSessionExpired)
}

func TestAuthenticateRejectsForgedTokens(t *testing.T) {
	f := newAuthFixture(t)

	claims := models.JWTClaims{
		Role: models.RoleAdmin,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        "session-x",
			Subject:   models.AdminUserID,
			Issuer:    "attendease",
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
	}
	forged, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte("other-secret"))
	require.NoError(t, err)

	_, err = f.svc.Authenticate(context.Background(), forged)
	assert.ErrorIs(t, err, appErrors.ErrUnauthorized)

	_, err = f.svc.Authenticate(context.Background(), "garbage")
	assert.ErrorIs(t, err, appErrors.ErrUnauthorized)
}

func TestSendLoginOTPRequiresKnownUser(t *testing.T) {
	f := newAuthFixture(t, seededStudent(t))

	_, err := f.svc.SendLoginOTP(context.Background(), models.EmailRequest{Email: "nobody@example.com"}, "")
	assert.ErrorIs(t, err, appErrors.ErrNotFound)

	_, err = f.svc.SendLoginOTP(context.Background(), models.EmailRequest{Email: "bad"}, "")
	assert.ErrorIs(t, err, appErrors.ErrValidation)

	_, err = f.svc.SendLoginOTP(context.Background(), models.EmailRequest{Email: "asha@example.com"}, "")
	require.NoError(t, err)
	assert.Equal(t, []models.OTPPurpose{models.OTPPurposeLogin}, f.otp.issued)
}

func TestVerifyLoginOTP(t *testing.T) {
	f := newAuthFixture(t, seededStudent(t))

	resp, err := f.svc.VerifyLoginOTP(context.Background(), models.VerifyOTPRequest{Email: "asha@example.com", OTP: "123456"})
	require.NoError(t, err)
	assert.Equal(t, "user-1", resp.User.ID)
	assert.Equal(t, []string{"login:123456"}, f.otp.verified)

	f.otp.verifyErr = appErrors.ErrInvalidOTP
	_, err = f.svc.VerifyLoginOTP(context.Background(), models.VerifyOTPRequest{Email: "asha@example.com", OTP: "123456"})
	assert.ErrorIs(t, err, appErrors.ErrInvalidOTP)
}

func TestResetPasswordRevokesSessions(t *testing.T) {
	f := newAuthFixture(t, seededStudent(t))
	ctx := context.Background()

	_, err := f.svc.ForgotPassword(ctx, models.EmailRequest{Email: "asha@example.com"}, "")
	require.NoError(t, err)
	assert.Equal(t, []models.OTPPurpose{models.OTPPurposeReset}, f.otp.issued)

	login, err := f.svc.Login(ctx, models.LoginRequest{Email: "asha@example.com", Password: "secret1"})
	require.NoError(t, err)

	err = f.svc.ResetPassword(ctx, models.ResetPasswordRequest{Email: "asha@example.com", OTP: "654321", NewPassword: "newpass1"})
	require.NoError(t, err)
	assert.Equal(t, []string{"reset:654321"}, f.otp.verified)

	_, err = f.svc.Authenticate(ctx, login.Token)
	assert.ErrorIs(t, err, appErrors.ErrSessionExpired)

	_, err = f.svc.Login(ctx, models.LoginRequest{Email: "asha@example.com", Password: "newpass1"})
	require.NoError(t, err)
}

func TestAdminLogin(t *testing.T) {
	f := newAuthFixture(t)
	ctx := context.Background()

	_, err := f.svc.AdminLogin(ctx, models.LoginRequest{Email: "admin@attendease.app", Password: "nope"})
	assert.ErrorIs(t, err, appErrors.ErrInvalidCredentials)

	resp, err := f.svc.AdminLogin(ctx, models.LoginRequest{Email: "ADMIN@attendease.app", Password: "admin-pass"})
	require.NoError(t, err)
	assert.Equal(t, models.RoleAdmin, resp.Role)

	session, err := f.svc.Authenticate(ctx, resp.Token)
	require.NoError(t, err)
	assert.True(t, session.IsAdmin())
	assert.Equal(t, models.AdminUserID, session.UserID)

	profile, err := f.svc.Profile(ctx, session)
	require.NoError(t, err)
	assert.Equal(t, "admin@attendease.app", profile.Email)
}

func TestAdminLoginWithHash(t *testing.T) {
	f := newAuthFixture(t)
	f.svc.config.AdminPassword = ""
	f.svc.config.AdminPasswordHash = hashPassword(t, "hashed-pass")

	_, err := f.svc.AdminLogin(context.Background(), models.LoginRequest{Email: "admin@attendease.app", Password: "hashed-pass"})
	require.NoError(t, err)
}

func TestPurgeExpiredSessions(t *testing.T) {
	f := newAuthFixture(t, seededStudent(t))
	ctx := context.Background()

	resp, err := f.svc.Login(ctx, models.LoginRequest{Email: "asha@example.com", Password: "secret1"})
	require.NoError(t, err)
	session, err := f.svc.Authenticate(ctx, resp.Token)
	require.NoError(t, err)
	f.sessions.expire(session.ID, time.Now().Add(-time.Second))

	n, err := f.svc.PurgeExpiredSessions(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)
}
