package models

import (
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// RegisterRequest creates a student account.
type RegisterRequest struct {
	StudentID string `json:"student_id" validate:"required,max=32"`
	Name      string `json:"name" validate:"required,max=120"`
	Email     string `json:"email" validate:"required,email"`
	Password  string `json:"password" validate:"required,min=6"`
	Branch    string `json:"branch" validate:"required"`
	Semester  int    `json:"semester" validate:"required,min=1,max=12"`
	Batch     string `json:"batch" validate:"required"`
	SubBatch  string `json:"sub_batch" validate:"omitempty,max=16"`
}

// LoginRequest holds credentials for password and admin logins.
type LoginRequest struct {
	Email     string `json:"email" validate:"required,email"`
	Password  string `json:"password" validate:"required"`
	IP        string `json:"-"`
	UserAgent string `json:"-"`
}

// EmailRequest starts an OTP flow (login or password reset).
type EmailRequest struct {
	Email string `json:"email" validate:"required,email"`
}

// VerifyOTPRequest completes an OTP login.
type VerifyOTPRequest struct {
	Email     string `json:"email" validate:"required,email"`
	OTP       string `json:"otp" validate:"required,numeric"`
	IP        string `json:"-"`
	UserAgent string `json:"-"`
}

// ResetPasswordRequest sets a new password using a reset OTP.
type ResetPasswordRequest struct {
	Email       string `json:"email" validate:"required,email"`
	OTP         string `json:"otp" validate:"required,numeric"`
	NewPassword string `json:"newPassword" validate:"required,min=6"`
}

// LoginResponse returns the issued session token and the caller's identity.
type LoginResponse struct {
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expires_at"`
	Role      UserRole  `json:"role"`
	User      *User     `json:"user,omitempty"`
}

// OTPSentResponse confirms an OTP was mailed without leaking the code.
type OTPSentResponse struct {
	Email     string    `json:"email"`
	ExpiresAt time.Time `json:"expires_at"`
}

// JWTClaims is the session token payload. The registered ID (jti) is the
// session id; the token is only valid while that session row exists.
type JWTClaims struct {
	Role UserRole `json:"role"`
	jwt.RegisteredClaims
}
