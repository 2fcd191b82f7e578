package models

import "time"

// AttendanceStatus is the mark a student submits for a class.
type AttendanceStatus string

const (
	AttendanceStatusPresent AttendanceStatus = "present"
	AttendanceStatusAbsent  AttendanceStatus = "absent"
	// AttendanceStatusOff means the class did not happen; the record is removed.
	AttendanceStatusOff AttendanceStatus = "off"
	// AttendanceStatusNone is only ever reported, never stored: no mark yet.
	AttendanceStatusNone AttendanceStatus = "none"
)

// DateLayout is the wire and storage format for attendance dates.
const DateLayout = "2006-01-02"

// AttendanceRecord is one stored mark, unique per (user, subject, date).
type AttendanceRecord struct {
	ID        string    `db:"id" json:"id"`
	UserID    string    `db:"user_id" json:"user_id"`
	Subject   string    `db:"subject" json:"subject"`
	Date      time.Time `db:"date" json:"-"`
	IsPresent bool      `db:"is_present" json:"isPresent"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
	UpdatedAt time.Time `db:"updated_at" json:"updated_at"`
}

// DateString renders Date in DateLayout.
func (r AttendanceRecord) DateString() string {
	return r.Date.Format(DateLayout)
}

// MarkAttendanceRequest records or clears a mark. IsPresent defaults to true
// when omitted; Status, when given, overrides it.
type MarkAttendanceRequest struct {
	Subject   string `json:"subject" validate:"required,max=120"`
	Date      string `json:"date" validate:"required,iso_date"`
	IsPresent *bool  `json:"isPresent"`
	Status    string `json:"status" validate:"omitempty,attendance_status"`
}

// MarkAttendanceResult tells the client what happened to the mark.
type MarkAttendanceResult struct {
	Subject string           `json:"subject"`
	Date    string           `json:"date"`
	Status  AttendanceStatus `json:"status"`
	Deleted bool             `json:"deleted"`
}

// AttendanceFilter selects records for a listing. StartDate and EndDate only
// apply when both are set; Subject wins over the date range.
type AttendanceFilter struct {
	Subject   string
	StartDate *time.Time
	EndDate   *time.Time
}

// AttendanceView is the listing row sent to clients.
type AttendanceView struct {
	ID        string `json:"id"`
	Subject   string `json:"subject"`
	Date      string `json:"date"`
	IsPresent bool   `json:"isPresent"`
}

// NewAttendanceView converts a stored record for the wire.
func NewAttendanceView(r AttendanceRecord) AttendanceView {
	return AttendanceView{ID: r.ID, Subject: r.Subject, Date: r.DateString(), IsPresent: r.IsPresent}
}

// CalendarSlot is one scheduled class on a calendar day.
type CalendarSlot struct {
	Time    string           `json:"time"`
	Subject string           `json:"subject"`
	Room    string           `json:"room,omitempty"`
	Status  AttendanceStatus `json:"status"`
}

// CalendarDay lists the classes scheduled on a date and their marks.
type CalendarDay struct {
	Date    string         `json:"date"`
	Weekday string         `json:"weekday"`
	Slots   []CalendarSlot `json:"slots"`
	// Extra holds marks for subjects not on that day's timetable.
	Extra []CalendarSlot `json:"extra,omitempty"`
}

// StudentReportRow is one line of the admin attendance export.
type StudentReportRow struct {
	StudentID      string
	Name           string
	Batch          string
	Present        int
	Total          int
	Percent        int
	BelowThreshold []string
}
