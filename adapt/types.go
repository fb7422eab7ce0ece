/*
Package adapt provides the core adaptation engine for training plans.

PURPOSE:
  This package contains the deterministic rule evaluator that turns
  (plan, sessions, readiness, load, blockers) into a bounded, explainable
  set of proposed session edits, plus the weekly volume guard that limits
  how aggressive any single adaptation may be.

KEY CONCEPTS IN THIS FILE (types.go):
  - Session: One planned or executed training unit
  - ReadinessSnapshot: Daily recovery state with driver attribution
  - LoadPoint: Daily chronic/acute load, monotony, ramp rate
  - DiffChange: An atomic proposed edit (replace-only from this package)
  - AdaptationPreview: The engine's primary output, cached and versioned
  - Decision: What the athlete chose to do with a preview

DESIGN PRINCIPLES:
  1. Purity: Everything in this package is pure computation. No I/O,
     no clocks, no shared mutable state. Safe on any number of goroutines.
  2. No deletes: The engine can only emit replace edits. A session is
     never silently removed from a plan.
  3. Explainability: Every proposed edit carries a reason code, trigger
     list, driver attribution, and a data snapshot with guard metrics.
  4. Bounded: Weekly volume never swings more than MaxWeeklyDeltaPct in
     a single adaptation, and no session drops below MinSessionMinutes.

USAGE:
  w, _ := adapt.ComputeImpactWindow("2026-03-02", adapt.ScopeWeek)
  eval := adapt.Evaluate(adapt.EvaluationInput{
      Plan:     plan,
      Sessions: sessions,
      Readiness: readiness,
      Window:   w,
  })

SEE ALSO:
  - rules.go: Priority cascade and edit synthesis
  - guard.go: Weekly volume guard
  - window.go: Impact window calculation
  - store.go: Persistence interfaces (previews, decisions, collectors)
*/
package adapt

import (
	"fmt"
	"math"
	"strings"
	"time"
)

// =============================================================================
// IDENTIFIERS
// =============================================================================

type AthleteID string
type PlanID string
type SessionID string

// =============================================================================
// SESSION - One planned or executed training unit
// =============================================================================

type Discipline string

const (
	DisciplineSwim     Discipline = "swim"
	DisciplineBike     Discipline = "bike"
	DisciplineRun      Discipline = "run"
	DisciplineStrength Discipline = "strength"
	DisciplineMobility Discipline = "mobility"
)

type SessionStatus string

const (
	StatusPlanned   SessionStatus = "planned"
	StatusCompleted SessionStatus = "completed"
	StatusMissed    SessionStatus = "missed"
	StatusPartial   SessionStatus = "partial"
)

// PriorityTier marks how important a session is within its week.
type PriorityTier string

const (
	PriorityKey        PriorityTier = "key"
	PrioritySupporting PriorityTier = "supporting"
	PriorityRecovery   PriorityTier = "recovery"
)

// Zone is an ordinal intensity zone z1..z5. Empty means unset.
type Zone string

const (
	ZoneZ1 Zone = "z1"
	ZoneZ2 Zone = "z2"
	ZoneZ3 Zone = "z3"
	ZoneZ4 Zone = "z4"
	ZoneZ5 Zone = "z5"
)

// IsHighIntensity reports whether the zone is z4 or z5.
func (z Zone) IsHighIntensity() bool { return z == ZoneZ4 || z == ZoneZ5 }

// Session is created by the planning subsystem and read-only here;
// edits flow exclusively through ApplyChanges.
//
// INVARIANT: PlannedDurationMin is never negative, and after any
// guard-clamped edit it is never below MinSessionMinutes.
type Session struct {
	ID                 SessionID
	AthleteID          AthleteID
	Date               time.Time // calendar date, UTC midnight
	Discipline         Discipline
	PlannedDurationMin int
	PlannedLoad        *float64
	PrimaryZone        Zone // "" = unset
	Status             SessionStatus
	Priority           PriorityTier // "" = untiered
}

// =============================================================================
// READINESS - Daily recovery state, produced upstream, immutable here
// =============================================================================

type Band string

const (
	BandGreen Band = "green"
	BandAmber Band = "amber"
	BandRed   Band = "red"
)

type DriverSignal string

const (
	SignalHRV         DriverSignal = "hrv"
	SignalRHR         DriverSignal = "rhr"
	SignalSleep       DriverSignal = "sleep"
	SignalSoreness    DriverSignal = "soreness"
	SignalMood        DriverSignal = "mood"
	SignalPriorStrain DriverSignal = "prior_strain"
	SignalContext     DriverSignal = "context"
)

// Readiness flags recognized by the rule cascade.
const (
	FlagMonotonyHigh = "monotony_high"
	FlagRampHigh     = "ramp_high"
)

// ReadinessDriver is one signal's contribution to the composite score.
type ReadinessDriver struct {
	Signal       DriverSignal
	Z            float64 // standardized deviation
	Weight       float64
	Contribution float64
}

type ReadinessSnapshot struct {
	AthleteID AthleteID
	Date      time.Time
	Score     *float64
	Band      Band
	Drivers   []ReadinessDriver
	Flags     []string
	// MissingSignals lists signals unavailable when the snapshot was built.
	MissingSignals []string
}

// HasFlag reports whether the snapshot carries the given flag.
func (r *ReadinessSnapshot) HasFlag(flag string) bool {
	if r == nil {
		return false
	}
	for _, f := range r.Flags {
		if f == flag {
			return true
		}
	}
	return false
}

// Driver returns the driver for a signal, or nil if absent.
func (r *ReadinessSnapshot) Driver(signal DriverSignal) *ReadinessDriver {
	if r == nil {
		return nil
	}
	for i := range r.Drivers {
		if r.Drivers[i].Signal == signal {
			return &r.Drivers[i]
		}
	}
	return nil
}

// driverWeightTolerance bounds floating error when checking that driver
// weights sum to 1.0.
const driverWeightTolerance = 1e-6

// Validate checks the driver-weight invariant. Snapshots with no drivers
// are valid (score may be nil when too few signals were available).
func (r *ReadinessSnapshot) Validate() error {
	if r == nil || len(r.Drivers) == 0 {
		return nil
	}
	sum := 0.0
	for _, d := range r.Drivers {
		sum += d.Weight
	}
	if math.Abs(sum-1.0) > driverWeightTolerance {
		return fmt.Errorf("%w: driver weights sum to %v", ErrInvalidReadiness, sum)
	}
	return nil
}

// =============================================================================
// LOAD POINT - Daily load trend metrics, read-only input
// =============================================================================

type LoadPoint struct {
	AthleteID   AthleteID
	Date        time.Time
	ChronicLoad *float64
	AcuteLoad   *float64
	Monotony    *float64
	RampRatePct *float64
}

// =============================================================================
// PLAN - Versioned plan summary with phase blocks
// =============================================================================

type PlanPhase string

const (
	PhaseBase  PlanPhase = "base"
	PhaseBuild PlanPhase = "build"
	PhasePeak  PlanPhase = "peak"
	PhaseTaper PlanPhase = "taper"
)

// PlanBlock is a dated phase of a plan. End is inclusive (calendar days).
type PlanBlock struct {
	Phase PlanPhase
	Start time.Time
	End   time.Time
}

// Plan is the summary the engine needs: a version counter and phase
// blocks. The version counter is advanced only by the decision recorder,
// via an atomic increment delegated to the store.
type Plan struct {
	ID        PlanID
	AthleteID AthleteID
	Version   int
	Blocks    []PlanBlock
}

// InTaper reports whether any taper block overlaps the impact window.
// Load increases are disallowed inside a taper.
func (p Plan) InTaper(w ImpactWindow) bool {
	for _, b := range p.Blocks {
		if b.Phase != PhaseTaper {
			continue
		}
		// Block days are inclusive; the window is half-open on End.
		blockEnd := b.End.AddDate(0, 0, 1)
		if b.Start.Before(w.End) && w.Start.Before(blockEnd) {
			return true
		}
	}
	return false
}

// =============================================================================
// BLOCKER - Calendar constraint, part of the evaluator contract
// =============================================================================

// Blocker is a calendar constraint (travel, illness, life). Current rules
// do not consume blockers but they are part of the evaluation contract.
type Blocker struct {
	ID        string
	AthleteID AthleteID
	Start     time.Time
	End       time.Time
	Kind      string
	Note      string
}

// =============================================================================
// IMPACT WINDOW + SCOPE
// =============================================================================

type Scope string

const (
	ScopeToday  Scope = "today"
	ScopeNext72 Scope = "next_72h"
	ScopeWeek   Scope = "week"
)

// ImpactWindow is the UTC interval that scopes all data lookups for one
// adaptation. End semantics depend on the scope (see ComputeImpactWindow).
type ImpactWindow struct {
	Start time.Time
	End   time.Time
}

// =============================================================================
// DIFF CHANGE - Atomic proposed edit, pure data
// =============================================================================

type ChangeOp string

// The shared schema declares add/remove for forward compatibility with
// other producers, but this package only ever constructs replace ops and
// the applier only honors replace. That is how the "no session is ever
// deleted" invariant is enforced structurally.
const (
	OpAdd     ChangeOp = "add"
	OpRemove  ChangeOp = "remove"
	OpReplace ChangeOp = "replace"
)

// Session fields addressable by a change path.
const (
	FieldPlannedDurationMin = "planned_duration_min"
	FieldPrimaryZone        = "primary_zone"
	FieldDate               = "date"
)

// DiffChange is an atomic proposed edit. Changes never mutate anything in
// place; a list of them is replayed via ApplyChanges onto a session copy.
type DiffChange struct {
	Op   ChangeOp `json:"op"`
	Path string   `json:"path"` // "/sessions/<id>/<field>"
	From any      `json:"from"`
	To   any      `json:"to"`
}

// ReplaceField is the only change constructor this package exposes.
func ReplaceField(id SessionID, field string, from, to any) DiffChange {
	return DiffChange{
		Op:   OpReplace,
		Path: fmt.Sprintf("/sessions/%s/%s", id, field),
		From: from,
		To:   to,
	}
}

// Target parses the change path into a session id and field name.
// ok is false for paths this engine does not address.
func (c DiffChange) Target() (id SessionID, field string, ok bool) {
	parts := strings.Split(c.Path, "/")
	// Expected shape: ["", "sessions", "<id>", "<field>"]
	if len(parts) != 4 || parts[0] != "" || parts[1] != "sessions" || parts[2] == "" || parts[3] == "" {
		return "", "", false
	}
	return SessionID(parts[2]), parts[3], true
}

// IsDuration reports whether the change targets planned duration.
// Only duration-valued edits participate in guard rescaling.
func (c DiffChange) IsDuration() bool {
	_, field, ok := c.Target()
	return ok && field == FieldPlannedDurationMin
}

// =============================================================================
// GUARD METRICS + EVALUATION OUTPUT
// =============================================================================

// GuardMetrics reports what the weekly volume guard saw and did.
type GuardMetrics struct {
	OriginalVolume int     `json:"original_volume"`
	NewVolume      int     `json:"new_volume"`
	DeltaPercent   float64 `json:"delta_percent"`
	Clamped        bool    `json:"clamped"`
	Taper          bool    `json:"taper"`
}

type ReasonCode string

const (
	ReasonMissedSession ReasonCode = "missed_session"
	ReasonLowReadiness  ReasonCode = "low_readiness"
	ReasonMonotonyHigh  ReasonCode = "monotony_high"
	ReasonRampHigh      ReasonCode = "ramp_high"
)

// DriverAttribution surfaces which readiness signals drove a decision.
type DriverAttribution struct {
	Signal       DriverSignal `json:"signal"`
	Z            float64      `json:"z"`
	Contribution float64      `json:"contribution"`
}

// Evaluation is the rule evaluator's output. Changes have already passed
// the weekly volume guard; DataSnapshot always includes the guard metrics
// under "volume_guard". An empty Triggers list means no adaptation was
// needed (defensive fallback, not a true trigger).
type Evaluation struct {
	Reason       ReasonCode
	Triggers     []string
	Changes      []DiffChange
	Rationale    string
	Drivers      []DriverAttribution
	DataSnapshot map[string]any
}

// =============================================================================
// ADAPTATION PREVIEW - Cached, versioned engine output
// =============================================================================

// Rationale packages the fixed-template explanation with driver
// attribution and the evaluation data snapshot.
type Rationale struct {
	Text         string              `json:"text"`
	Drivers      []DriverAttribution `json:"drivers,omitempty"`
	DataSnapshot map[string]any      `json:"data_snapshot,omitempty"`
}

// AdaptationPreview is never mutated after creation, with one exception:
// a later request may retroactively attach an idempotency key to an
// existing row. Decisions are recorded separately, keyed by ID.
type AdaptationPreview struct {
	ID                string
	AthleteID         AthleteID
	PlanID            PlanID
	PlanVersionBefore int
	Scope             Scope
	Window            ImpactWindow
	Reason            ReasonCode
	Triggers          []string
	Changes           []DiffChange
	Rationale         Rationale
	Checksum          string
	IdempotencyKey    string // "" until attached
	ExpiresAt         time.Time
	CreatedAt         time.Time
}

// Expired reports whether the preview's TTL has passed.
func (p *AdaptationPreview) Expired(now time.Time) bool {
	return !now.Before(p.ExpiresAt)
}

// =============================================================================
// DECISION - Created exactly once per preview, never updated
// =============================================================================

type DecisionType string

const (
	DecisionAccepted DecisionType = "accepted"
	DecisionModified DecisionType = "modified"
	DecisionRejected DecisionType = "rejected"
)

// Decision records what the athlete chose to do with a preview.
// PlanVersionAfter is nil when the decision is a rejection: rejections
// never mutate plan state.
type Decision struct {
	ID                string
	PreviewID         string
	AthleteID         AthleteID
	PlanID            PlanID
	Type              DecisionType
	FinalChanges      []DiffChange
	PlanVersionBefore int
	PlanVersionAfter  *int
	Rationale         string
	DecidedAt         time.Time
}
