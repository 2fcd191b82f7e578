package repository

import (
	"errors"

	"github.com/lib/pq"
)

var (
	// ErrDuplicateEmail is returned when the users.email unique key rejects a row.
	ErrDuplicateEmail = errors.New("email already exists")
	// ErrDuplicateStudentID is returned when users.student_id is taken.
	ErrDuplicateStudentID = errors.New("student id already exists")
)

const uniqueViolation = "23505"

// translateUnique maps postgres unique violations on users onto typed errors.
func translateUnique(err error) error {
	var pqErr *pq.Error
	if !errors.As(err, &pqErr) || string(pqErr.Code) != uniqueViolation {
		return nil
	}
	switch pqErr.Constraint {
	case "users_email_key":
		return ErrDuplicateEmail
	case "users_student_id_key":
		return ErrDuplicateStudentID
	}
	return nil
}
