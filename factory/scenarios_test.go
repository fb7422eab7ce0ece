package factory_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hristiyan90/momentom/adapt"
	"github.com/hristiyan90/momentom/adapt/store"
	"github.com/hristiyan90/momentom/factory"
)

var ref = time.Date(2026, time.March, 4, 0, 0, 0, 0, time.UTC) // a Wednesday

// evaluateScenario loads a scenario and runs a week-scope evaluation the
// way the preview pipeline would.
func evaluateScenario(t *testing.T, scenarioID string) adapt.Evaluation {
	t.Helper()
	ctx := context.Background()
	mem := store.NewMemory()
	require.NoError(t, factory.Load(ctx, mem, scenarioID, ref))

	window, err := adapt.ComputeImpactWindow(ref.Format(adapt.DateLayout), adapt.ScopeWeek)
	require.NoError(t, err)

	plan, err := mem.PlanSummary(ctx, factory.DemoAthleteID)
	require.NoError(t, err)
	sessions, err := mem.SessionsInWindow(ctx, factory.DemoAthleteID, window)
	require.NoError(t, err)
	require.NotEmpty(t, sessions, "scenario must seed sessions inside the reference week")
	loads, err := mem.DailyLoadWindow(ctx, factory.DemoAthleteID, window)
	require.NoError(t, err)
	readiness, err := mem.Readiness(ctx, factory.DemoAthleteID, ref)
	require.NoError(t, err, "every scenario seeds readiness for the reference date")

	return adapt.Evaluate(adapt.EvaluationInput{
		Plan:          *plan,
		Sessions:      sessions,
		Readiness:     readiness,
		LoadPoints:    loads,
		Window:        window,
		Scope:         adapt.ScopeWeek,
		ReferenceDate: ref,
	})
}

func TestScenario_MissedSession(t *testing.T) {
	eval := evaluateScenario(t, "missed-session")

	assert.Equal(t, adapt.ReasonMissedSession, eval.Reason)
	assert.Equal(t, []string{"missed_session"}, eval.Triggers)
	assert.NotEmpty(t, eval.Changes)
}

func TestScenario_RedReadiness(t *testing.T) {
	// The seeded 100-minute z4 ride must come back softened to z3 at -20%.
	eval := evaluateScenario(t, "red-readiness")

	assert.Equal(t, adapt.ReasonLowReadiness, eval.Reason)
	assert.Equal(t, []string{"low_readiness"}, eval.Triggers)
	require.Len(t, eval.Changes, 2)
	assert.Equal(t, "z3", eval.Changes[0].To)
	assert.Equal(t, 80, eval.Changes[1].To)
}

func TestScenario_MonotonyWeek(t *testing.T) {
	eval := evaluateScenario(t, "monotony-week")

	assert.Equal(t, adapt.ReasonMonotonyHigh, eval.Reason)
	assert.NotEmpty(t, eval.Changes)
}

func TestScenario_RampWeek(t *testing.T) {
	eval := evaluateScenario(t, "ramp-week")

	assert.Equal(t, adapt.ReasonRampHigh, eval.Reason)
	assert.NotEmpty(t, eval.Changes)
}

func TestScenario_TaperRaceWeek(t *testing.T) {
	// Amber + suppressed HRV inside a taper: the reduction softens to -10%.
	eval := evaluateScenario(t, "taper-race-week")

	assert.Equal(t, adapt.ReasonLowReadiness, eval.Reason)
	assert.Equal(t, []string{"low_readiness"}, eval.Triggers)
	require.Len(t, eval.Changes, 2)
	assert.Equal(t, 54, eval.Changes[1].To)

	metrics, ok := eval.DataSnapshot["volume_guard"].(adapt.GuardMetrics)
	require.True(t, ok)
	assert.True(t, metrics.Taper)
}

func TestScenario_SteadyWeek_NoAdaptation(t *testing.T) {
	eval := evaluateScenario(t, "steady-week")

	assert.Empty(t, eval.Triggers)
	assert.Nil(t, eval.Changes)
}

func TestLoad_UnknownScenario(t *testing.T) {
	err := factory.Load(context.Background(), store.NewMemory(), "nope", ref)
	assert.Error(t, err)
}

func TestLoad_ResetsPriorData(t *testing.T) {
	// Loading a scenario must clear everything the previous one seeded.
	ctx := context.Background()
	mem := store.NewMemory()
	require.NoError(t, factory.Load(ctx, mem, "monotony-week", ref))
	require.NoError(t, factory.Load(ctx, mem, "steady-week", ref))

	window, err := adapt.ComputeImpactWindow(ref.Format(adapt.DateLayout), adapt.ScopeWeek)
	require.NoError(t, err)
	sessions, err := mem.SessionsInWindow(ctx, factory.DemoAthleteID, window)
	require.NoError(t, err)

	assert.Len(t, sessions, 4, "only steady-week sessions remain")
}
