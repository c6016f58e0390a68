// Package period resolves leaderboard time windows. All windows are
// half-open [Start, End) so an event landing exactly on a boundary belongs
// to the later window.
package period

import (
	"time"

	"github.com/bxdofficial/Nawi/internal/models"
)

type Window struct {
	Start time.Time
	End   time.Time
}

func (w Window) Contains(t time.Time) bool {
	return !t.Before(w.Start) && t.Before(w.End)
}

// alltime bounds mirror the original platform: a fixed epoch far in the
// past and a horizon about a century out.
var alltimeEpoch = time.Date(2000, time.January, 1, 0, 0, 0, 0, time.UTC)

const alltimeHorizon = 365 * 100 * 24 * time.Hour

// Resolve returns the window of the given granularity containing now.
// Weekly windows run Monday midnight to Monday midnight regardless of
// locale. Boundaries are computed in now's location.
func Resolve(p models.Period, now time.Time) Window {
	switch p {
	case models.PeriodDaily:
		start := midnight(now)
		return Window{Start: start, End: start.AddDate(0, 0, 1)}
	case models.PeriodWeekly:
		start := midnight(now).AddDate(0, 0, -daysSinceMonday(now))
		return Window{Start: start, End: start.AddDate(0, 0, 7)}
	case models.PeriodMonthly:
		start := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, now.Location())
		return Window{Start: start, End: start.AddDate(0, 1, 0)}
	case models.PeriodYearly:
		start := time.Date(now.Year(), time.January, 1, 0, 0, 0, 0, now.Location())
		return Window{Start: start, End: start.AddDate(1, 0, 0)}
	default: // alltime
		return Window{Start: alltimeEpoch, End: now.Add(alltimeHorizon)}
	}
}

func midnight(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
}

func daysSinceMonday(t time.Time) int {
	// time.Weekday counts Sunday as 0; shift so Monday is 0.
	return (int(t.Weekday()) + 6) % 7
}
