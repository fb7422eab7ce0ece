package adapt_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hristiyan90/momentom/adapt"
)

func durationTo(c adapt.DiffChange) int {
	v, ok := c.To.(int)
	if !ok {
		return -1
	}
	return v
}

func TestVolumeGuard_ClampsIncrease(t *testing.T) {
	// GIVEN: 200 weekly minutes and an edit adding 50 (+25%)
	// WHEN: Running the guard
	// THEN: The edit is scaled back so the week lands at exactly +20%

	sessions := []adapt.Session{
		plannedSession("s1", 100),
		plannedSession("s2", 100),
	}
	changes := []adapt.DiffChange{
		adapt.ReplaceField("s1", adapt.FieldPlannedDurationMin, 100, 150),
	}

	out, metrics := adapt.ApplyWeeklyVolumeGuard(sessions, changes, false)

	require.Len(t, out, 1)
	assert.Equal(t, 140, durationTo(out[0]))
	assert.Equal(t, adapt.GuardMetrics{
		OriginalVolume: 200,
		NewVolume:      240,
		DeltaPercent:   20,
		Clamped:        true,
	}, metrics)
}

func TestVolumeGuard_ClampsDecrease(t *testing.T) {
	// GIVEN: 200 weekly minutes and an edit removing 50 (-25%)
	// WHEN: Running the guard
	// THEN: The edit is scaled back to land at exactly -20%

	sessions := []adapt.Session{
		plannedSession("s1", 100),
		plannedSession("s2", 100),
	}
	changes := []adapt.DiffChange{
		adapt.ReplaceField("s1", adapt.FieldPlannedDurationMin, 100, 50),
	}

	out, metrics := adapt.ApplyWeeklyVolumeGuard(sessions, changes, false)

	assert.Equal(t, 60, durationTo(out[0]))
	assert.Equal(t, 160, metrics.NewVolume)
	assert.Equal(t, float64(-20), metrics.DeltaPercent)
	assert.True(t, metrics.Clamped)
}

func TestVolumeGuard_WithinBoundPassesThrough(t *testing.T) {
	// A delta of exactly 20% is legal; the guard only clamps beyond it.
	sessions := []adapt.Session{
		plannedSession("s1", 100),
		plannedSession("s2", 100),
	}
	changes := []adapt.DiffChange{
		adapt.ReplaceField("s1", adapt.FieldPlannedDurationMin, 100, 140),
	}

	out, metrics := adapt.ApplyWeeklyVolumeGuard(sessions, changes, false)

	assert.Equal(t, changes, out)
	assert.False(t, metrics.Clamped)
	assert.Equal(t, float64(20), metrics.DeltaPercent)
}

func TestVolumeGuard_Idempotent(t *testing.T) {
	// GIVEN: A change list the guard already clamped
	// WHEN: Running the guard again on its own output
	// THEN: Nothing is clamped a second time

	sessions := []adapt.Session{
		plannedSession("s1", 100),
		plannedSession("s2", 100),
	}
	changes := []adapt.DiffChange{
		adapt.ReplaceField("s1", adapt.FieldPlannedDurationMin, 100, 150),
	}

	first, firstMetrics := adapt.ApplyWeeklyVolumeGuard(sessions, changes, false)
	require.True(t, firstMetrics.Clamped)

	second, secondMetrics := adapt.ApplyWeeklyVolumeGuard(sessions, first, false)

	assert.Equal(t, first, second)
	assert.False(t, secondMetrics.Clamped)
}

func TestVolumeGuard_IdempotentOnManySmallIncreases(t *testing.T) {
	// GIVEN: Seven +3 edits on a 100-minute week (+21%), a fractional
	//        rescale (20/21) per edit
	// WHEN: Running the guard, then running it again on its own output
	// THEN: Per-edit rounding lands at or under the bound, so the second
	//       pass clamps nothing

	sessions := []adapt.Session{
		plannedSession("s1", 10),
		plannedSession("s2", 10),
		plannedSession("s3", 10),
		plannedSession("s4", 15),
		plannedSession("s5", 15),
		plannedSession("s6", 20),
		plannedSession("s7", 20),
	}
	var changes []adapt.DiffChange
	for _, s := range sessions {
		changes = append(changes, adapt.ReplaceField(s.ID,
			adapt.FieldPlannedDurationMin, s.PlannedDurationMin, s.PlannedDurationMin+3))
	}

	first, firstMetrics := adapt.ApplyWeeklyVolumeGuard(sessions, changes, false)
	require.True(t, firstMetrics.Clamped)
	assert.LessOrEqual(t, firstMetrics.DeltaPercent, float64(adapt.MaxWeeklyDeltaPct))
	for _, c := range first {
		assert.Equal(t, 2, durationTo(c)-mustInt(c.From), "each +3 edit floors to +2")
	}

	second, secondMetrics := adapt.ApplyWeeklyVolumeGuard(sessions, first, false)
	assert.Equal(t, first, second)
	assert.False(t, secondMetrics.Clamped)
}

func mustInt(v any) int {
	i, _ := v.(int)
	return i
}

func TestVolumeGuard_FloorsClampedDuration(t *testing.T) {
	// GIVEN: A single short session being zeroed out
	// WHEN: The rescaled duration would fall below 30 minutes
	// THEN: It is floored at 30

	sessions := []adapt.Session{plannedSession("s1", 35)}
	changes := []adapt.DiffChange{
		adapt.ReplaceField("s1", adapt.FieldPlannedDurationMin, 35, 0),
	}

	out, metrics := adapt.ApplyWeeklyVolumeGuard(sessions, changes, false)

	assert.Equal(t, adapt.MinSessionMinutes, durationTo(out[0]))
	assert.True(t, metrics.Clamped)
}

func TestVolumeGuard_TaperExemptsIncreases(t *testing.T) {
	// GIVEN: A +25% edit inside a taper
	// WHEN: Running the guard
	// THEN: Increases are exempt from clamping in a taper

	sessions := []adapt.Session{
		plannedSession("s1", 100),
		plannedSession("s2", 100),
	}
	changes := []adapt.DiffChange{
		adapt.ReplaceField("s1", adapt.FieldPlannedDurationMin, 100, 150),
	}

	out, metrics := adapt.ApplyWeeklyVolumeGuard(sessions, changes, true)

	assert.Equal(t, changes, out)
	assert.False(t, metrics.Clamped)
	assert.True(t, metrics.Taper)
}

func TestVolumeGuard_TaperStillClampsDecreases(t *testing.T) {
	sessions := []adapt.Session{
		plannedSession("s1", 100),
		plannedSession("s2", 100),
	}
	changes := []adapt.DiffChange{
		adapt.ReplaceField("s1", adapt.FieldPlannedDurationMin, 100, 50),
	}

	out, metrics := adapt.ApplyWeeklyVolumeGuard(sessions, changes, true)

	assert.Equal(t, 60, durationTo(out[0]))
	assert.True(t, metrics.Clamped)
}

func TestVolumeGuard_ZeroBaselineVolume(t *testing.T) {
	// GIVEN: No planned sessions at all
	// WHEN: Running the guard
	// THEN: No percentage is computable; changes pass through

	sessions := []adapt.Session{
		{ID: "s1", PlannedDurationMin: 60, Status: adapt.StatusCompleted},
	}
	changes := []adapt.DiffChange{
		adapt.ReplaceField("s1", adapt.FieldPlannedDurationMin, 60, 90),
	}

	out, metrics := adapt.ApplyWeeklyVolumeGuard(sessions, changes, false)

	assert.Equal(t, changes, out)
	assert.Equal(t, 0, metrics.OriginalVolume)
	assert.False(t, metrics.Clamped)
}

func TestVolumeGuard_NonDurationChangesUntouched(t *testing.T) {
	// Zone edits ride along with a clamped batch unmodified.
	sessions := []adapt.Session{
		plannedSession("s1", 100),
		plannedSession("s2", 100),
	}
	changes := []adapt.DiffChange{
		adapt.ReplaceField("s1", adapt.FieldPrimaryZone, "z4", "z3"),
		adapt.ReplaceField("s1", adapt.FieldPlannedDurationMin, 100, 150),
	}

	out, _ := adapt.ApplyWeeklyVolumeGuard(sessions, changes, false)

	assert.Equal(t, changes[0], out[0], "zone change must pass through untouched")
	assert.Equal(t, 140, durationTo(out[1]))
}
