/*
volume.go - Weekly volume accumulation and change application

PURPOSE:
  Two small pure utilities the guard and evaluator are built on:

  WeeklyVolume: collapses a session set into the single scalar the guard
  reasons about - the sum of planned-but-not-yet-executed durations.
  Completed, missed, and partial sessions contribute nothing to the
  remaining week.

  ApplyChanges: replays a change list onto a COPY of the sessions,
  producing the hypothetical post-edit set. The inputs are never mutated.
  Only replace ops are honored, and ops referencing unknown session ids
  are deliberately inert - the record of "why" lives with the rule that
  generated them, not here.

SEE ALSO:
  - guard.go: Computes before/after volume via these
  - rules.go: Emits the changes applied here
*/
package adapt

import "time"

// =============================================================================
// WEEKLY VOLUME ACCUMULATOR
// =============================================================================

// WeeklyVolume sums planned duration over sessions whose status is
// exactly planned. Empty input yields 0.
func WeeklyVolume(sessions []Session) int {
	total := 0
	for _, s := range sessions {
		if s.Status == StatusPlanned {
			total += s.PlannedDurationMin
		}
	}
	return total
}

// =============================================================================
// CHANGE APPLIER
// =============================================================================

// ApplyChanges replays replace ops onto a copy of sessions. Unknown
// session ids, non-replace ops, unknown fields, and badly typed values
// are all silently ignored.
func ApplyChanges(sessions []Session, changes []DiffChange) []Session {
	out := make([]Session, len(sessions))
	copy(out, sessions)

	index := make(map[SessionID]int, len(out))
	for i, s := range out {
		index[s.ID] = i
	}

	for _, c := range changes {
		if c.Op != OpReplace {
			continue
		}
		id, field, ok := c.Target()
		if !ok {
			continue
		}
		i, ok := index[id]
		if !ok {
			continue
		}
		applyField(&out[i], field, c.To)
	}
	return out
}

// applyField sets a single scalar field from a change value. Values may
// arrive as native Go types or as JSON-decoded float64/string.
func applyField(s *Session, field string, value any) {
	switch field {
	case FieldPlannedDurationMin:
		if v, ok := asInt(value); ok {
			if v < 0 {
				v = 0
			}
			s.PlannedDurationMin = v
		}
	case FieldPrimaryZone:
		if v, ok := value.(string); ok {
			s.PrimaryZone = Zone(v)
		} else if v, ok := value.(Zone); ok {
			s.PrimaryZone = v
		}
	case FieldDate:
		if v, ok := asDate(value); ok {
			s.Date = v
		}
	}
}

func asInt(value any) (int, bool) {
	switch v := value.(type) {
	case int:
		return v, true
	case int64:
		return int(v), true
	case float64:
		return int(v), true
	}
	return 0, false
}

func asDate(value any) (time.Time, bool) {
	switch v := value.(type) {
	case time.Time:
		return v, true
	case string:
		t, err := time.ParseInLocation(DateLayout, v, time.UTC)
		if err != nil {
			return time.Time{}, false
		}
		return t, true
	}
	return time.Time{}, false
}
