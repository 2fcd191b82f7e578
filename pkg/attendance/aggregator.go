// Package attendance turns raw attendance marks into per-subject and overall
// statistics and projects how many classes a student still has to attend to
// reach an attendance threshold.
//
// Every function in this package is pure: no I/O, no shared state. Callers fetch
// records from wherever they live and pass them in.
package attendance

import (
	"math"
	"sort"
)

// DefaultThreshold is the minimum attendance percentage a student must keep.
const DefaultThreshold = 75.0

// Unreachable is returned by ClassesNeeded when no number of attended classes
// can lift the percentage to the threshold (threshold of 100 or more with at
// least one absence, or a NaN threshold).
const Unreachable = -1

// Record is a single attendance mark for one subject on one date.
type Record struct {
	Subject   string `json:"subject"`
	Date      string `json:"date"`
	IsPresent bool   `json:"is_present"`
}

// Count holds the raw tally for a subject.
type Count struct {
	Present int `json:"present"`
	Total   int `json:"total"`
}

// SubjectStats is the derived view of a subject's attendance.
type SubjectStats struct {
	Subject       string `json:"subject"`
	Present       int    `json:"present"`
	Total         int    `json:"total"`
	Percent       int    `json:"percent"`
	ClassesNeeded int    `json:"classes_needed"`
}

// OverallStats sums every subject.
type OverallStats struct {
	TotalPresent   int `json:"total_present"`
	TotalClasses   int `json:"total_classes"`
	OverallPercent int `json:"overall_percent"`
}

// Summary bundles everything a dashboard needs.
type Summary struct {
	Threshold      float64        `json:"threshold"`
	Subjects       []SubjectStats `json:"subjects"`
	Overall        OverallStats   `json:"overall"`
	BelowThreshold []SubjectStats `json:"below_threshold"`
}

// Tally counts present and total marks per subject. Duplicate (subject, date)
// pairs are each counted; uniqueness is the store's job.
func Tally(records []Record) map[string]Count {
	counts := make(map[string]Count)
	for _, rec := range records {
		c := counts[rec.Subject]
		c.Total++
		if rec.IsPresent {
			c.Present++
		}
		counts[rec.Subject] = c
	}
	return counts
}

// Percent returns present/total as a whole percentage rounded half up, or 0
// when total is 0.
func Percent(present, total int) int {
	if total <= 0 {
		return 0
	}
	// round(100p/t) == floor((200p + t) / 2t) for non-negative inputs
	return (200*present + total) / (2 * total)
}

// ClassesNeeded returns the smallest number of consecutive future classes that
// must be attended for the subject to reach threshold percent, assuming each
// projected class counts towards both present and total.
func ClassesNeeded(present, total int, threshold float64) int {
	if math.IsNaN(threshold) {
		return Unreachable
	}
	if total <= 0 {
		return 0
	}
	if float64(Percent(present, total)) >= threshold {
		return 0
	}
	if threshold >= 100 {
		return Unreachable
	}
	deficit := threshold*float64(total) - 100*float64(present)
	if deficit <= 0 {
		return 0
	}
	// small tolerance so exact integer results are not pushed up by float noise
	n := math.Ceil(deficit/(100-threshold) - 1e-9)
	if n < 0 {
		return 0
	}
	return int(n)
}

// Stats builds SubjectStats for every tallied subject, sorted by subject name.
func Stats(counts map[string]Count, threshold float64) []SubjectStats {
	subjects := make([]string, 0, len(counts))
	for subject := range counts {
		subjects = append(subjects, subject)
	}
	sort.Strings(subjects)

	stats := make([]SubjectStats, 0, len(subjects))
	for _, subject := range subjects {
		c := counts[subject]
		stats = append(stats, SubjectStats{
			Subject:       subject,
			Present:       c.Present,
			Total:         c.Total,
			Percent:       Percent(c.Present, c.Total),
			ClassesNeeded: ClassesNeeded(c.Present, c.Total, threshold),
		})
	}
	return stats
}

// Overall sums present and total across subjects.
func Overall(stats []SubjectStats) OverallStats {
	var out OverallStats
	for _, s := range stats {
		out.TotalPresent += s.Present
		out.TotalClasses += s.Total
	}
	out.OverallPercent = Percent(out.TotalPresent, out.TotalClasses)
	return out
}

// BelowThreshold keeps the subjects whose percent is under threshold, in input
// order.
func BelowThreshold(stats []SubjectStats, threshold float64) []SubjectStats {
	below := make([]SubjectStats, 0)
	for _, s := range stats {
		if float64(s.Percent) < threshold {
			below = append(below, s)
		}
	}
	return below
}

// Summarize runs the whole pipeline over a record list.
func Summarize(records []Record, threshold float64) Summary {
	return SummarizeCounts(Tally(records), threshold)
}

// SummarizeCounts is Summarize for counts already tallied by the store.
func SummarizeCounts(counts map[string]Count, threshold float64) Summary {
	stats := Stats(counts, threshold)
	return Summary{
		Threshold:      threshold,
		Subjects:       stats,
		Overall:        Overall(stats),
		BelowThreshold: BelowThreshold(stats, threshold),
	}
}

// ValidThreshold reports whether threshold is a usable percentage.
func ValidThreshold(threshold float64) bool {
	return threshold > 0 && threshold < 100 && !math.IsNaN(threshold)
}
