package models

import "time"

// UserRole distinguishes students from the operator account.
type UserRole string

const (
	RoleAdmin   UserRole = "admin"
	RoleStudent UserRole = "student"
)

// AdminUserID is the fixed user id carried by operator sessions. The operator
// has no row in users.
const AdminUserID = "admin"

// User represents a registered student stored in the users table.
type User struct {
	ID           string    `db:"id" json:"id"`
	StudentID    string    `db:"student_id" json:"student_id"`
	Name         string    `db:"name" json:"name"`
	Email        string    `db:"email" json:"email"`
	PasswordHash string    `db:"password" json:"-"`
	Branch       string    `db:"branch" json:"branch"`
	Semester     int       `db:"semester" json:"semester"`
	Batch        string    `db:"batch" json:"batch"`
	SubBatch     string    `db:"sub_batch" json:"sub_batch,omitempty"`
	Role         UserRole  `db:"role" json:"role"`
	CreatedAt    time.Time `db:"created_at" json:"created_at"`
	UpdatedAt    time.Time `db:"updated_at" json:"updated_at"`
}

// UserFilter narrows the admin student listing.
type UserFilter struct {
	Search string
	Role   UserRole
}

// UserListMeta accompanies the admin student listing.
type UserListMeta struct {
	Total       int `json:"total"`
	NewThisWeek int `json:"new_this_week"`
}
