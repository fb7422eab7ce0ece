/*
window.go - Impact window calculation

PURPOSE:
  Turns a reference date plus a scope token into the UTC interval that
  scopes every other lookup (sessions, load points, blockers) for one
  adaptation.

SCOPES:
  today:    [date 00:00:00Z, date 23:59:59.999Z]
  next_72h: [date 00:00:00Z, date+72h)
  week:     the ISO Monday-Sunday week containing date, [monday, monday+7d)

The week scope shifts to the preceding Monday: Sunday maps to -6 days,
any other weekday to 1-isoWeekday.

SEE ALSO:
  - rules.go: Uses the window for taper detection and session moves
*/
package adapt

import (
	"fmt"
	"time"
)

// DateLayout is the calendar-date wire format used throughout.
const DateLayout = "2006-01-02"

// ComputeImpactWindow resolves a reference date and scope into a UTC
// window. Malformed dates propagate as a parse failure.
func ComputeImpactWindow(date string, scope Scope) (ImpactWindow, error) {
	day, err := time.ParseInLocation(DateLayout, date, time.UTC)
	if err != nil {
		return ImpactWindow{}, fmt.Errorf("parse reference date %q: %w", date, err)
	}

	switch scope {
	case ScopeToday:
		return ImpactWindow{
			Start: day,
			End:   day.Add(24*time.Hour - time.Millisecond),
		}, nil

	case ScopeNext72:
		return ImpactWindow{
			Start: day,
			End:   day.Add(72 * time.Hour),
		}, nil

	case ScopeWeek:
		monday := day.AddDate(0, 0, mondayShift(day.Weekday()))
		return ImpactWindow{
			Start: monday,
			End:   monday.AddDate(0, 0, 7),
		}, nil

	default:
		return ImpactWindow{}, fmt.Errorf("%w: %q", ErrInvalidScope, scope)
	}
}

// mondayShift returns the day offset from a weekday back to its ISO-week
// Monday. Sunday is day 7 of the ISO week, hence -6.
func mondayShift(wd time.Weekday) int {
	if wd == time.Sunday {
		return -6
	}
	return 1 - int(wd)
}

// Contains reports whether t falls inside the window.
func (w ImpactWindow) Contains(t time.Time) bool {
	return !t.Before(w.Start) && t.Before(w.End)
}
