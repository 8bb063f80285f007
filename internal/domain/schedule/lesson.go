package schedule

import (
	"fmt"
	"strings"
	"time"
)

// Lesson is one calendar entry as stored: times are kept in "HH:MM" form
// and validated only when a lesson is scanned.
type Lesson struct {
	ClassName    string
	DayName      string // English weekday name, e.g. "Monday"
	LessonNumber int    // unique per class and day
	Subject      string
	Teacher      string
	StartTime    string
	EndTime      string
}

// Occurrence is a lesson pinned to a concrete calendar date.
type Occurrence struct {
	Lesson
	Date  time.Time // midnight of the occurrence day
	Start time.Time
}

// At places the lesson on the calendar day of date, in date's location.
func (l Lesson) At(date time.Time) (Occurrence, error) {
	h, m, err := ParseClock(l.StartTime)
	if err != nil {
		return Occurrence{}, fmt.Errorf("lesson %d (%s %s): start time: %w", l.LessonNumber, l.ClassName, l.DayName, err)
	}
	if _, _, err := ParseClock(l.EndTime); err != nil {
		return Occurrence{}, fmt.Errorf("lesson %d (%s %s): end time: %w", l.LessonNumber, l.ClassName, l.DayName, err)
	}
	day := time.Date(date.Year(), date.Month(), date.Day(), 0, 0, 0, 0, date.Location())
	return Occurrence{
		Lesson: l,
		Date:   day,
		Start:  time.Date(day.Year(), day.Month(), day.Day(), h, m, 0, 0, day.Location()),
	}, nil
}

// ParseClock parses an "HH:MM" wall clock value.
func ParseClock(v string) (hour, minute int, err error) {
	t, err := time.Parse("15:04", strings.TrimSpace(v))
	if err != nil {
		return 0, 0, fmt.Errorf("invalid clock value %q", v)
	}
	return t.Hour(), t.Minute(), nil
}

// DayName returns the stored weekday name for t.
func DayName(t time.Time) string {
	return t.Weekday().String()
}

// ParseDayName normalizes a user supplied weekday ("monday", "Mon") to its stored form.
func ParseDayName(v string) (string, error) {
	v = strings.ToLower(strings.TrimSpace(v))
	for d := time.Sunday; d <= time.Saturday; d++ {
		name := d.String()
		if v == strings.ToLower(name) || (len(v) == 3 && strings.HasPrefix(strings.ToLower(name), v)) {
			return name, nil
		}
	}
	return "", fmt.Errorf("unknown weekday %q", v)
}
