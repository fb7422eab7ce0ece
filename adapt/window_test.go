package adapt_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hristiyan90/momentom/adapt"
)

func utcDate(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func TestImpactWindow_Today(t *testing.T) {
	// GIVEN: A mid-week reference date
	// WHEN: Computing the today scope
	// THEN: The window covers that calendar day end-inclusive

	w, err := adapt.ComputeImpactWindow("2026-03-04", adapt.ScopeToday)
	require.NoError(t, err)

	assert.Equal(t, utcDate(2026, time.March, 4), w.Start)
	assert.Equal(t, utcDate(2026, time.March, 4).Add(24*time.Hour-time.Millisecond), w.End)
}

func TestImpactWindow_Next72h(t *testing.T) {
	// GIVEN: A reference date
	// WHEN: Computing the next_72h scope
	// THEN: The window is exactly 72 hours, end-exclusive

	w, err := adapt.ComputeImpactWindow("2026-03-04", adapt.ScopeNext72)
	require.NoError(t, err)

	assert.Equal(t, utcDate(2026, time.March, 4), w.Start)
	assert.Equal(t, utcDate(2026, time.March, 7), w.End)
}

func TestImpactWindow_Week_MidWeek(t *testing.T) {
	// GIVEN: A Wednesday reference date (2026-03-04)
	// WHEN: Computing the week scope
	// THEN: The window snaps back to the ISO Monday (2026-03-02)

	w, err := adapt.ComputeImpactWindow("2026-03-04", adapt.ScopeWeek)
	require.NoError(t, err)

	assert.Equal(t, utcDate(2026, time.March, 2), w.Start)
	assert.Equal(t, utcDate(2026, time.March, 9), w.End)
}

func TestImpactWindow_Week_Sunday(t *testing.T) {
	// GIVEN: A Sunday reference date (2026-03-08)
	// WHEN: Computing the week scope
	// THEN: Sunday belongs to the week that began the preceding Monday

	w, err := adapt.ComputeImpactWindow("2026-03-08", adapt.ScopeWeek)
	require.NoError(t, err)

	assert.Equal(t, utcDate(2026, time.March, 2), w.Start)
	assert.Equal(t, utcDate(2026, time.March, 9), w.End)
}

func TestImpactWindow_Week_Monday(t *testing.T) {
	// GIVEN: A Monday reference date
	// WHEN: Computing the week scope
	// THEN: The window starts on the reference date itself

	w, err := adapt.ComputeImpactWindow("2026-03-02", adapt.ScopeWeek)
	require.NoError(t, err)

	assert.Equal(t, utcDate(2026, time.March, 2), w.Start)
}

func TestImpactWindow_InvalidScope(t *testing.T) {
	_, err := adapt.ComputeImpactWindow("2026-03-04", adapt.Scope("fortnight"))
	assert.ErrorIs(t, err, adapt.ErrInvalidScope)
	assert.True(t, adapt.IsClientError(err))
}

func TestImpactWindow_MalformedDate(t *testing.T) {
	_, err := adapt.ComputeImpactWindow("March 4th", adapt.ScopeWeek)
	assert.Error(t, err)
}

func TestImpactWindow_Contains(t *testing.T) {
	// GIVEN: A week window
	// WHEN: Checking boundary instants
	// THEN: Start is inside, End is outside

	w, err := adapt.ComputeImpactWindow("2026-03-04", adapt.ScopeWeek)
	require.NoError(t, err)

	assert.True(t, w.Contains(w.Start))
	assert.True(t, w.Contains(utcDate(2026, time.March, 8)))
	assert.False(t, w.Contains(w.End))
	assert.False(t, w.Contains(utcDate(2026, time.March, 1)))
}
