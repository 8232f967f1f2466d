// Package schedule computes when a recurring reminder is next due.
//
// NextDue is the single source of truth for due-time arithmetic: both the
// hourly scheduler tick and the manual medication-event path call it, so the
// automatic and manual paths can never drift apart.
package schedule

import (
	"strings"
	"time"
)

// Recognized frequency labels.
const (
	FreqDaily           = "daily"
	FreqTwiceDaily      = "twice daily"
	FreqThreeTimesDaily = "three times daily"
	FreqWeekly          = "weekly"
	FreqMonthly         = "monthly"
)

// NextDue returns the next due instant after ref for the given frequency
// label. Unrecognized labels fall back to daily rather than erroring, so a
// mistyped label degrades to a safe cadence instead of a dead reminder.
func NextDue(ref time.Time, frequency string) time.Time {
	switch strings.ToLower(strings.TrimSpace(frequency)) {
	case FreqTwiceDaily:
		return ref.Add(12 * time.Hour)
	case FreqThreeTimesDaily:
		return ref.Add(8 * time.Hour)
	case FreqWeekly:
		return ref.AddDate(0, 0, 7)
	case FreqMonthly:
		return addMonthClamped(ref)
	default:
		return ref.Add(24 * time.Hour)
	}
}

// addMonthClamped advances ref by one calendar month, clamping the day of
// month to the target month's length (Jan 31 -> Feb 28/29, not Mar 2/3).
func addMonthClamped(ref time.Time) time.Time {
	year, month, day := ref.Date()
	firstOfNext := time.Date(year, month+1, 1, ref.Hour(), ref.Minute(), ref.Second(), ref.Nanosecond(), ref.Location())
	lastDay := daysIn(firstOfNext.Year(), firstOfNext.Month())
	if day > lastDay {
		day = lastDay
	}
	return time.Date(firstOfNext.Year(), firstOfNext.Month(), day, ref.Hour(), ref.Minute(), ref.Second(), ref.Nanosecond(), ref.Location())
}

func daysIn(year int, month time.Month) int {
	// Day 0 of the following month is the last day of this month.
	return time.Date(year, month+1, 0, 0, 0, 0, 0, time.UTC).Day()
}
