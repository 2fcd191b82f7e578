package models

import "time"

// Session is a server-side login. Deleting the row logs the token out.
type Session struct {
	ID        string    `db:"id" json:"id"`
	UserID    string    `db:"user_id" json:"user_id"`
	Role      UserRole  `db:"role" json:"role"`
	UserAgent string    `db:"user_agent" json:"-"`
	IP        string    `db:"ip" json:"-"`
	ExpiresAt time.Time `db:"expires_at" json:"expires_at"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
}

// Expired reports whether the session is past its expiry at now.
func (s *Session) Expired(now time.Time) bool {
	return !now.Before(s.ExpiresAt)
}

// IsAdmin reports whether the session belongs to the operator.
func (s *Session) IsAdmin() bool {
	return s.Role == RoleAdmin
}
