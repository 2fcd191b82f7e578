package models

import (
	"time"

	"github.com/noah-isme/attendease-api/pkg/attendance"
)

// Weekdays in display order. Sunday is accepted but rarely scheduled.
var Weekdays = []string{"Monday", "Tuesday", "Wednesday", "Thursday", "Friday", "Saturday", "Sunday"}

// WeekdayName maps a date onto the timetable's weekday keys.
func WeekdayName(d time.Time) string {
	return d.Weekday().String()
}

// TimetableSlot is a stored class slot for a batch.
type TimetableSlot struct {
	ID         string    `db:"id" json:"-"`
	Batch      string    `db:"batch" json:"-"`
	Weekday    string    `db:"weekday" json:"-"`
	Position   int       `db:"position" json:"-"`
	Time       string    `db:"time_range" json:"time" validate:"required,max=32"`
	Subject    string    `db:"subject" json:"subject" validate:"required,max=120"`
	Room       string    `db:"room" json:"room,omitempty" validate:"max=32"`
	SubBatches string    `db:"sub_batches" json:"-"`
	SubBatch   []string  `db:"-" json:"sub_batches,omitempty"`
	CreatedAt  time.Time `db:"created_at" json:"-"`
}

// AppliesTo reports whether the slot is held for subBatch. Slots without
// sub-batches apply to everyone, and an empty subBatch sees every slot.
func (s TimetableSlot) AppliesTo(subBatch string) bool {
	if len(s.SubBatch) == 0 || subBatch == "" {
		return true
	}
	for _, sb := range s.SubBatch {
		if sb == subBatch {
			return true
		}
	}
	return false
}

// Timetable is a batch's week keyed by weekday name.
type Timetable struct {
	Batch    string                     `json:"batch"`
	Schedule map[string][]TimetableSlot `json:"schedule" validate:"required,min=1,dive,keys,weekday,endkeys,dive"`
	Default  bool                       `json:"default"`
}

// DaySchedule is the set of slots held on one date.
type DaySchedule struct {
	Batch   string          `json:"batch"`
	Date    string          `json:"date"`
	Weekday string          `json:"weekday"`
	Slots   []TimetableSlot `json:"slots"`
}

// DashboardSlot pairs a due class with its current mark.
type DashboardSlot struct {
	TimetableSlot
	Status AttendanceStatus `json:"status"`
}

// Dashboard is the landing view for a student.
type Dashboard struct {
	Date    string             `json:"date"`
	Weekday string             `json:"weekday"`
	Today   []DashboardSlot    `json:"today"`
	Summary attendance.Summary `json:"summary"`
}
