package service

import "github.com/noah-isme/attendease-api/internal/models"

type slotSeed struct {
	time, subject, room string
}

// defaultWeek is served to batches that have not uploaded a timetable yet.
var defaultWeek = map[string][]slotSeed{
	"Monday": {
		{"09:00-10:00", "Data Structures", "CSE-101"},
		{"10:00-11:00", "Operating Systems", "CSE-102"},
		{"11:30-12:30", "Database Systems", "CSE-103"},
		{"13:30-14:30", "Computer Networks", "CSE-104"},
	},
	"Tuesday": {
		{"09:00-10:00", "Algorithms", "CSE-101"},
		{"10:00-11:00", "Software Engineering", "CSE-102"},
		{"11:30-12:30", "Machine Learning", "CSE-103"},
		{"13:30-14:30", "Web Development", "CSE-104"},
	},
	"Wednesday": {
		{"09:00-10:00", "Data Structures", "CSE-101"},
		{"10:00-11:00", "Operating Systems", "CSE-102"},
		{"11:30-12:30", "Database Systems", "CSE-103"},
	},
	"Thursday": {
		{"09:00-10:00", "Algorithms", "CSE-101"},
		{"10:00-11:00", "Software Engineering", "CSE-102"},
		{"11:30-12:30", "Machine Learning", "CSE-103"},
		{"13:30-14:30", "Computer Networks", "CSE-104"},
	},
	"Friday": {
		{"09:00-10:00", "Data Structures", "CSE-101"},
		{"10:00-11:00", "Web Development", "CSE-104"},
		{"11:30-12:30", "Machine Learning", "CSE-103"},
	},
}

// DefaultTimetable returns a fresh copy of the built-in week for batch.
func DefaultTimetable(batch string) *models.Timetable {
	schedule := make(map[string][]models.TimetableSlot, len(defaultWeek))
	for day, seeds := range defaultWeek {
		slots := make([]models.TimetableSlot, 0, len(seeds))
		for i, seed := range seeds {
			slots = append(slots, models.TimetableSlot{
				Batch:    batch,
				Weekday:  day,
				Position: i,
				Time:     seed.time,
				Subject:  seed.subject,
				Room:     seed.room,
			})
		}
		schedule[day] = slots
	}
	return &models.Timetable{Batch: batch, Schedule: schedule, Default: true}
}
