package service

import (
	"context"
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"math/big"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/attendease-api/internal/models"
	"github.com/noah-isme/attendease-api/internal/repository"
	appErrors "github.com/noah-isme/attendease-api/pkg/errors"
	"github.com/noah-isme/attendease-api/pkg/mailer"
)

type otpStore interface {
	Save(ctx context.Context, purpose models.OTPPurpose, email, codeHash string, ttl time.Duration) error
	Get(ctx context.Context, purpose models.OTPPurpose, email string) (*models.OTPEntry, error)
	IncrementAttempts(ctx context.Context, purpose models.OTPPurpose, email string) (int, error)
	Delete(ctx context.Context, purpose models.OTPPurpose, email string) error
}

type mailSender interface {
	SendNow(ctx context.Context, msg *mailer.Message) error
}

// OTPConfig controls code shape and lifetime.
type OTPConfig struct {
	Length      int
	TTL         time.Duration
	MaxAttempts int
	Secret      string
}

// OTPService issues and verifies single-use numeric codes. Only an HMAC of the
// code is stored.
type OTPService struct {
	store   otpStore
	mail    mailSender
	metrics *MetricsService
	logger  *zap.Logger
	config  OTPConfig
	now     func() time.Time
}

// NewOTPService constructs an OTPService.
func NewOTPService(store otpStore, mail mailSender, metrics *MetricsService, logger *zap.Logger, config OTPConfig) *OTPService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if config.Length <= 0 {
		config.Length = 6
	}
	if config.TTL <= 0 {
		config.TTL = 10 * time.Minute
	}
	if config.MaxAttempts <= 0 {
		config.MaxAttempts = 5
	}
	return &OTPService{store: store, mail: mail, metrics: metrics, logger: logger, config: config, now: time.Now}
}

// Issue replaces any outstanding code for (purpose, email) and mails the new
// one. A code that could not be mailed is discarded.
func (s *OTPService) Issue(ctx context.Context, purpose models.OTPPurpose, email, requestedFrom string) (*models.OTPSentResponse, error) {
	email = normalizeEmail(email)
	code, err := s.generateCode()
	if err != nil {
		return nil, appErrors.Internal(err, "failed to generate otp")
	}
	if err := s.store.Save(ctx, purpose, email, s.hash(code), s.config.TTL); err != nil {
		return nil, appErrors.Internal(err, "failed to store otp")
	}

	template, subject := mailer.TemplateLoginOTP, "Login OTP Verification"
	if purpose == models.OTPPurposeReset {
		template, subject = mailer.TemplateResetOTP, "Password Reset OTP"
	}
	msg := &mailer.Message{
		To:       email,
		Subject:  subject,
		Template: template,
		Data: mailer.OTPData{
			Code:          code,
			ValidForMins:  int(s.config.TTL / time.Minute),
			RequestedFrom: requestedFrom,
		},
	}
	if err := s.mail.SendNow(ctx, msg); err != nil {
		if delErr := s.store.Delete(ctx, purpose, email); delErr != nil {
			s.logger.Warn("failed to discard undelivered otp", zap.String("purpose", string(purpose)), zap.Error(delErr))
		}
		return nil, appErrors.Wrap(err, appErrors.ErrMailDelivery.Code, appErrors.ErrMailDelivery.Status, "failed to send otp email")
	}

	s.metrics.RecordOTP(string(purpose), "issued")
	return &models.OTPSentResponse{Email: email, ExpiresAt: s.now().UTC().Add(s.config.TTL)}, nil
}

// Verify consumes a code. Wrong codes count against MaxAttempts, after which
// the code is burned even if a later guess would have matched.
func (s *OTPService) Verify(ctx context.Context, purpose models.OTPPurpose, email, code string) error {
	email = normalizeEmail(email)
	entry, err := s.store.Get(ctx, purpose, email)
	if err != nil {
		if errors.Is(err, repository.ErrOTPNotFound) {
			s.metrics.RecordOTP(string(purpose), "rejected")
			return appErrors.Clone(appErrors.ErrInvalidOTP, "invalid or expired otp")
		}
		return appErrors.Internal(err, "failed to load otp")
	}

	if !s.now().Before(entry.ExpiresAt) {
		s.discard(ctx, purpose, email)
		s.metrics.RecordOTP(string(purpose), "rejected")
		return appErrors.Clone(appErrors.ErrInvalidOTP, "otp has expired")
	}

	if entry.Attempts >= s.config.MaxAttempts {
		s.discard(ctx, purpose, email)
		s.metrics.RecordOTP(string(purpose), "burned")
		return appErrors.Clone(appErrors.ErrInvalidOTP, "too many attempts, request a new otp")
	}

	if !hmac.Equal([]byte(entry.CodeHash), []byte(s.hash(strings.TrimSpace(code)))) {
		attempts, err := s.store.IncrementAttempts(ctx, purpose, email)
		if err != nil && !errors.Is(err, repository.ErrOTPNotFound) {
			return appErrors.Internal(err, "failed to record otp attempt")
		}
		if attempts >= s.config.MaxAttempts {
			s.discard(ctx, purpose, email)
			s.metrics.RecordOTP(string(purpose), "burned")
			return appErrors.Clone(appErrors.ErrInvalidOTP, "too many attempts, request a new otp")
		}
		s.metrics.RecordOTP(string(purpose), "rejected")
		return appErrors.Clone(appErrors.ErrInvalidOTP, "invalid or expired otp")
	}

	if err := s.store.Delete(ctx, purpose, email); err != nil {
		return appErrors.Internal(err, "failed to consume otp")
	}
	s.metrics.RecordOTP(string(purpose), "verified")
	return nil
}

func (s *OTPService) discard(ctx context.Context, purpose models.OTPPurpose, email string) {
	if err := s.store.Delete(ctx, purpose, email); err != nil {
		s.logger.Warn("failed to delete otp", zap.String("purpose", string(purpose)), zap.Error(err))
	}
}

func (s *OTPService) generateCode() (string, error) {
	var b strings.Builder
	b.Grow(s.config.Length)
	ten := big.NewInt(10)
	for i := 0; i < s.config.Length; i++ {
		n, err := rand.Int(rand.Reader, ten)
		if err != nil {
			return "", err
		}
		b.WriteByte(byte('0' + n.Int64()))
	}
	return b.String(), nil
}

func (s *OTPService) hash(code string) string {
	mac := hmac.New(sha256.New, []byte(s.config.Secret))
	mac.Write([]byte(code))
	return hex.EncodeToString(mac.Sum(nil))
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
