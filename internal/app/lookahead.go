package app

import (
	"time"

	"school_notification_bot/internal/domain/schedule"
)

// findUpcoming returns the first occurrence, in lesson order, whose start lies
// in [now, now+window]. Today's lessons are tried before tomorrow's; both are
// compared against now with their full date, so a lesson just after midnight
// is found from the evening before.
func findUpcoming(now time.Time, today, tomorrow []schedule.Occurrence, window time.Duration) (schedule.Occurrence, bool) {
	for _, day := range [][]schedule.Occurrence{today, tomorrow} {
		for _, occ := range day {
			until := occ.Start.Sub(now)
			if until >= 0 && until <= window {
				return occ, true
			}
		}
	}
	return schedule.Occurrence{}, false
}
