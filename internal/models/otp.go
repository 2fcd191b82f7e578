package models

import "time"

// OTPPurpose scopes a one-time code so a login code cannot reset a password.
type OTPPurpose string

const (
	OTPPurposeLogin OTPPurpose = "login"
	OTPPurposeReset OTPPurpose = "reset"
)

// OTPEntry is the stored state of an outstanding code.
type OTPEntry struct {
	CodeHash  string    `json:"code_hash"`
	Attempts  int       `json:"attempts"`
	ExpiresAt time.Time `json:"expires_at"`
}
