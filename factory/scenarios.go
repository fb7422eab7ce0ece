/*
Package factory provides pre-built demo scenarios.

PURPOSE:
  Populates a store with realistic athlete data for testing and demos.
  Each scenario seeds one athlete whose plan, sessions, readiness, and
  load history provoke a specific rule in the adaptation cascade, so a
  preview request against that athlete demonstrates one reason code
  end to end.

AVAILABLE SCENARIOS:
  missed-session:  A missed key ride earlier in the week
  red-readiness:   Red readiness band on the reference date
  monotony-week:   Flat, repetitive week with monotony above threshold
  ramp-week:       Acute load ramping faster than 10% week over week
  taper-race-week: Low readiness inside a taper block
  steady-week:     Nothing wrong; exercises the defensive fallback

HOW SCENARIOS WORK:
  1. Reset the store (clears all data)
  2. Seed a plan with phase blocks around the reference date
  3. Seed a week of sessions inside the reference ISO week
  4. Seed readiness and load points dated to the reference date

  All dates are derived from the reference date passed to Load, so a
  scenario loaded "for today" triggers on a preview "for today".

USAGE VIA API:
  POST /api/scenarios/load
  {"scenario_id": "red-readiness"}

ADDING NEW SCENARIOS:
  1. Add to the Scenarios slice with ID, name, description
  2. Create a seed function: seedXxx(ref time.Time) seedData
  3. Register it in seeders

NOTE:
  Scenarios reset the store. Development/demo environments only.

SEE ALSO:
  - api/scenarios.go: HTTP handlers that drive this package
  - adapt/store/memory.go, store/sqlite: Store implementations
*/
package factory

import (
	"context"
	"fmt"
	"time"

	"github.com/hristiyan90/momentom/adapt"
)

// Store is the seeding surface a backend must expose. Both the
// in-memory store and the SQLite store implement it.
type Store interface {
	Reset(ctx context.Context) error
	PutPlan(ctx context.Context, p adapt.Plan) error
	PutSessions(ctx context.Context, athleteID adapt.AthleteID, sessions []adapt.Session) error
	PutReadiness(ctx context.Context, r adapt.ReadinessSnapshot) error
	PutLoadPoints(ctx context.Context, athleteID adapt.AthleteID, points []adapt.LoadPoint) error
	PutBlockers(ctx context.Context, athleteID adapt.AthleteID, blockers []adapt.Blocker) error
}

// Scenario describes one loadable demo scenario.
type Scenario struct {
	ID          string
	Name        string
	Description string

	// AthleteID is the athlete the scenario seeds, so demo clients know
	// which identity to request previews for.
	AthleteID adapt.AthleteID
}

// DemoAthleteID is the single athlete every scenario seeds.
const DemoAthleteID adapt.AthleteID = "athlete-demo"

// Scenarios lists every loadable scenario.
var Scenarios = []Scenario{
	{
		ID:          "missed-session",
		Name:        "Missed Key Session",
		Description: "A key ride was missed earlier this week; the engine reschedules it at reduced volume",
		AthleteID:   DemoAthleteID,
	},
	{
		ID:          "red-readiness",
		Name:        "Red Readiness",
		Description: "Readiness is red today; today's hard interval session is downgraded to z3 at -20%",
		AthleteID:   DemoAthleteID,
	},
	{
		ID:          "monotony-week",
		Name:        "High Monotony",
		Description: "A flat repetitive week; load is redistributed between the largest and smallest sessions",
		AthleteID:   DemoAthleteID,
	},
	{
		ID:          "ramp-week",
		Name:        "Ramp Too Fast",
		Description: "Weekly load ramping above 10%; the first key session is trimmed",
		AthleteID:   DemoAthleteID,
	},
	{
		ID:          "taper-race-week",
		Name:        "Taper Week",
		Description: "Low readiness inside a taper block; reductions are softened and increases suppressed",
		AthleteID:   DemoAthleteID,
	},
	{
		ID:          "steady-week",
		Name:        "Steady Week",
		Description: "Green readiness and sane load; the engine proposes no changes",
		AthleteID:   DemoAthleteID,
	},
}

// FindScenario returns the scenario with the given id.
func FindScenario(id string) (Scenario, bool) {
	for _, s := range Scenarios {
		if s.ID == id {
			return s, true
		}
	}
	return Scenario{}, false
}

// Load resets the store and seeds the scenario, anchoring all dates to
// the ISO week containing ref.
func Load(ctx context.Context, store Store, scenarioID string, ref time.Time) error {
	seeder, ok := seeders[scenarioID]
	if !ok {
		return fmt.Errorf("unknown scenario %q", scenarioID)
	}
	if err := store.Reset(ctx); err != nil {
		return fmt.Errorf("reset store: %w", err)
	}

	data := seeder(midnightUTC(ref))
	if err := store.PutPlan(ctx, data.plan); err != nil {
		return fmt.Errorf("seed plan: %w", err)
	}
	if err := store.PutSessions(ctx, data.plan.AthleteID, data.sessions); err != nil {
		return fmt.Errorf("seed sessions: %w", err)
	}
	for _, r := range data.readiness {
		if err := store.PutReadiness(ctx, r); err != nil {
			return fmt.Errorf("seed readiness: %w", err)
		}
	}
	if len(data.loads) > 0 {
		if err := store.PutLoadPoints(ctx, data.plan.AthleteID, data.loads); err != nil {
			return fmt.Errorf("seed load points: %w", err)
		}
	}
	if len(data.blockers) > 0 {
		if err := store.PutBlockers(ctx, data.plan.AthleteID, data.blockers); err != nil {
			return fmt.Errorf("seed blockers: %w", err)
		}
	}
	return nil
}

// =============================================================================
// SEED DATA BUILDERS
// =============================================================================

type seedData struct {
	plan      adapt.Plan
	sessions  []adapt.Session
	readiness []adapt.ReadinessSnapshot
	loads     []adapt.LoadPoint
	blockers  []adapt.Blocker
}

type seedFunc func(ref time.Time) seedData

var seeders = map[string]seedFunc{
	"missed-session":  seedMissedSession,
	"red-readiness":   seedRedReadiness,
	"monotony-week":   seedMonotonyWeek,
	"ramp-week":       seedRampWeek,
	"taper-race-week": seedTaperRaceWeek,
	"steady-week":     seedSteadyWeek,
}

func midnightUTC(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

// weekMonday returns the Monday of the ISO week containing ref.
func weekMonday(ref time.Time) time.Time {
	shift := 1 - int(ref.Weekday())
	if ref.Weekday() == time.Sunday {
		shift = -6
	}
	return ref.AddDate(0, 0, shift)
}

func buildBasePlan(ref time.Time) adapt.Plan {
	monday := weekMonday(ref)
	return adapt.Plan{
		ID:        "plan-demo",
		AthleteID: DemoAthleteID,
		Version:   1,
		Blocks: []adapt.PlanBlock{
			{Phase: adapt.PhaseBase, Start: monday.AddDate(0, 0, -56), End: monday.AddDate(0, 0, -29)},
			{Phase: adapt.PhaseBuild, Start: monday.AddDate(0, 0, -28), End: monday.AddDate(0, 0, 13)},
			{Phase: adapt.PhasePeak, Start: monday.AddDate(0, 0, 14), End: monday.AddDate(0, 0, 27)},
			{Phase: adapt.PhaseTaper, Start: monday.AddDate(0, 0, 28), End: monday.AddDate(0, 0, 41)},
		},
	}
}

func ptr(v float64) *float64 { return &v }

func session(id string, date time.Time, disc adapt.Discipline, minutes int, zone adapt.Zone, status adapt.SessionStatus, priority adapt.PriorityTier) adapt.Session {
	return adapt.Session{
		ID:                 adapt.SessionID(id),
		AthleteID:          DemoAthleteID,
		Date:               date,
		Discipline:         disc,
		PlannedDurationMin: minutes,
		PrimaryZone:        zone,
		Status:             status,
		Priority:           priority,
	}
}

func greenReadiness(ref time.Time) adapt.ReadinessSnapshot {
	return adapt.ReadinessSnapshot{
		AthleteID: DemoAthleteID,
		Date:      ref,
		Score:     ptr(78),
		Band:      adapt.BandGreen,
		Drivers: []adapt.ReadinessDriver{
			{Signal: adapt.SignalHRV, Z: 0.3, Weight: 0.5, Contribution: 0.15},
			{Signal: adapt.SignalSleep, Z: 0.1, Weight: 0.3, Contribution: 0.03},
			{Signal: adapt.SignalRHR, Z: -0.1, Weight: 0.2, Contribution: -0.02},
		},
	}
}

// seedMissedSession: the Tuesday key ride was missed. On a week-scope
// preview the missed-session rule moves it to the reference date at
// reduced volume.
func seedMissedSession(ref time.Time) seedData {
	monday := weekMonday(ref)
	return seedData{
		plan: buildBasePlan(ref),
		sessions: []adapt.Session{
			session("s-swim-mon", monday, adapt.DisciplineSwim, 45, adapt.ZoneZ2, adapt.StatusCompleted, adapt.PrioritySupporting),
			session("s-bike-tue", monday.AddDate(0, 0, 1), adapt.DisciplineBike, 90, adapt.ZoneZ4, adapt.StatusMissed, adapt.PriorityKey),
			session("s-run-thu", monday.AddDate(0, 0, 3), adapt.DisciplineRun, 60, adapt.ZoneZ2, adapt.StatusPlanned, adapt.PrioritySupporting),
			session("s-bike-sat", monday.AddDate(0, 0, 5), adapt.DisciplineBike, 120, adapt.ZoneZ3, adapt.StatusPlanned, adapt.PriorityKey),
		},
		readiness: []adapt.ReadinessSnapshot{greenReadiness(ref)},
	}
}

// seedRedReadiness: red band today, with a hard 100-minute interval ride
// on the reference date. The engine downgrades it to z3 at -20%.
func seedRedReadiness(ref time.Time) seedData {
	monday := weekMonday(ref)
	snap := adapt.ReadinessSnapshot{
		AthleteID: DemoAthleteID,
		Date:      ref,
		Score:     ptr(31),
		Band:      adapt.BandRed,
		Drivers: []adapt.ReadinessDriver{
			{Signal: adapt.SignalHRV, Z: -2.1, Weight: 0.5, Contribution: -1.05},
			{Signal: adapt.SignalSleep, Z: -1.4, Weight: 0.3, Contribution: -0.42},
			{Signal: adapt.SignalRHR, Z: 1.2, Weight: 0.2, Contribution: 0.24},
		},
	}
	return seedData{
		plan: buildBasePlan(ref),
		sessions: []adapt.Session{
			session("s-swim-mon", monday, adapt.DisciplineSwim, 50, adapt.ZoneZ2, adapt.StatusCompleted, adapt.PrioritySupporting),
			session("s-bike-key", ref, adapt.DisciplineBike, 100, adapt.ZoneZ4, adapt.StatusPlanned, adapt.PriorityKey),
			session("s-run-easy", monday.AddDate(0, 0, 5), adapt.DisciplineRun, 45, adapt.ZoneZ2, adapt.StatusPlanned, adapt.PriorityRecovery),
		},
		readiness: []adapt.ReadinessSnapshot{snap},
	}
}

// seedMonotonyWeek: same-ish sessions every day and monotony above 2.0.
func seedMonotonyWeek(ref time.Time) seedData {
	monday := weekMonday(ref)
	sessions := []adapt.Session{
		session("s-run-big", monday.AddDate(0, 0, 2), adapt.DisciplineRun, 95, adapt.ZoneZ2, adapt.StatusPlanned, adapt.PrioritySupporting),
	}
	for i, id := range []string{"s-run-a", "s-run-b", "s-run-c", "s-run-d"} {
		sessions = append(sessions, session(id, monday.AddDate(0, 0, i+3), adapt.DisciplineRun, 60, adapt.ZoneZ2, adapt.StatusPlanned, adapt.PrioritySupporting))
	}
	sessions = append(sessions, session("s-run-small", monday.AddDate(0, 0, 1), adapt.DisciplineRun, 40, adapt.ZoneZ1, adapt.StatusPlanned, adapt.PriorityRecovery))

	loads := []adapt.LoadPoint{{
		AthleteID:   DemoAthleteID,
		Date:        ref,
		ChronicLoad: ptr(410),
		AcuteLoad:   ptr(430),
		Monotony:    ptr(2.4),
		RampRatePct: ptr(3.0),
	}}
	return seedData{
		plan:      buildBasePlan(ref),
		sessions:  sessions,
		readiness: []adapt.ReadinessSnapshot{greenReadiness(ref)},
		loads:     loads,
	}
}

// seedRampWeek: acute load running well ahead of chronic, ramp above 10%.
func seedRampWeek(ref time.Time) seedData {
	monday := weekMonday(ref)
	loads := []adapt.LoadPoint{{
		AthleteID:   DemoAthleteID,
		Date:        ref,
		ChronicLoad: ptr(380),
		AcuteLoad:   ptr(465),
		Monotony:    ptr(1.3),
		RampRatePct: ptr(14.5),
	}}
	return seedData{
		plan: buildBasePlan(ref),
		sessions: []adapt.Session{
			session("s-bike-key", monday.AddDate(0, 0, 2), adapt.DisciplineBike, 110, adapt.ZoneZ4, adapt.StatusPlanned, adapt.PriorityKey),
			session("s-run-tempo", monday.AddDate(0, 0, 4), adapt.DisciplineRun, 70, adapt.ZoneZ3, adapt.StatusPlanned, adapt.PrioritySupporting),
			session("s-swim-end", monday.AddDate(0, 0, 5), adapt.DisciplineSwim, 60, adapt.ZoneZ2, adapt.StatusPlanned, adapt.PrioritySupporting),
		},
		readiness: []adapt.ReadinessSnapshot{greenReadiness(ref)},
		loads:     loads,
	}
}

// seedTaperRaceWeek: the current week sits inside a taper block, and
// readiness is amber with suppressed HRV. Reductions soften to -10%.
func seedTaperRaceWeek(ref time.Time) seedData {
	monday := weekMonday(ref)
	plan := buildBasePlan(ref)
	// Pull the taper block over the current week.
	plan.Blocks = []adapt.PlanBlock{
		{Phase: adapt.PhaseBuild, Start: monday.AddDate(0, 0, -42), End: monday.AddDate(0, 0, -15)},
		{Phase: adapt.PhasePeak, Start: monday.AddDate(0, 0, -14), End: monday.AddDate(0, 0, -1)},
		{Phase: adapt.PhaseTaper, Start: monday, End: monday.AddDate(0, 0, 13)},
	}
	snap := adapt.ReadinessSnapshot{
		AthleteID: DemoAthleteID,
		Date:      ref,
		Score:     ptr(52),
		Band:      adapt.BandAmber,
		Drivers: []adapt.ReadinessDriver{
			{Signal: adapt.SignalHRV, Z: -1.1, Weight: 0.5, Contribution: -0.55},
			{Signal: adapt.SignalSleep, Z: -0.3, Weight: 0.3, Contribution: -0.09},
			{Signal: adapt.SignalMood, Z: 0.2, Weight: 0.2, Contribution: 0.04},
		},
	}
	return seedData{
		plan: plan,
		sessions: []adapt.Session{
			session("s-bike-sharp", monday.AddDate(0, 0, 2), adapt.DisciplineBike, 60, adapt.ZoneZ4, adapt.StatusPlanned, adapt.PriorityKey),
			session("s-run-short", monday.AddDate(0, 0, 4), adapt.DisciplineRun, 35, adapt.ZoneZ2, adapt.StatusPlanned, adapt.PriorityRecovery),
		},
		readiness: []adapt.ReadinessSnapshot{snap},
	}
}

// seedSteadyWeek: green readiness, load in range, nothing missed.
func seedSteadyWeek(ref time.Time) seedData {
	monday := weekMonday(ref)
	loads := []adapt.LoadPoint{{
		AthleteID:   DemoAthleteID,
		Date:        ref,
		ChronicLoad: ptr(400),
		AcuteLoad:   ptr(405),
		Monotony:    ptr(1.4),
		RampRatePct: ptr(2.0),
	}}
	return seedData{
		plan: buildBasePlan(ref),
		sessions: []adapt.Session{
			session("s-swim-mon", monday, adapt.DisciplineSwim, 45, adapt.ZoneZ2, adapt.StatusCompleted, adapt.PrioritySupporting),
			session("s-bike-wed", monday.AddDate(0, 0, 2), adapt.DisciplineBike, 90, adapt.ZoneZ3, adapt.StatusPlanned, adapt.PriorityKey),
			session("s-run-fri", monday.AddDate(0, 0, 4), adapt.DisciplineRun, 55, adapt.ZoneZ2, adapt.StatusPlanned, adapt.PrioritySupporting),
			session("s-bike-sun", monday.AddDate(0, 0, 6), adapt.DisciplineBike, 150, adapt.ZoneZ2, adapt.StatusPlanned, adapt.PriorityKey),
		},
		readiness: []adapt.ReadinessSnapshot{greenReadiness(ref)},
		loads:     loads,
	}
}
