/*
rules.go - Deterministic rule evaluator

PURPOSE:
  Selects exactly one reason code from a fixed priority cascade, then
  synthesizes the edits for that reason. Every raw edit list passes
  through the weekly volume guard before being returned.

PRIORITY CASCADE (first match wins, this exact order):
  1. missed_session - any missed session in the window set
  2. low_readiness  - red band, or amber with an hrv z <= -0.8
  3. monotony_high  - max monotony >= 2.0 or the monotony_high flag
  4. ramp_high      - max ramp rate >= 10% or the ramp_high flag

  If nothing matches the evaluator falls back to low_readiness with an
  EMPTY trigger list and no edits. Callers must treat an empty trigger
  list as "no adaptation needed", not as a low-readiness finding.

DESIGN:
  The cascade is an ordered list of (predicate, handler) pairs evaluated
  in sequence. That keeps the ordering invariant explicit and testable in
  isolation from the handlers' edit-generation logic.

FAILURE SEMANTICS:
  No I/O, no domain errors. A missing readiness snapshot with
  AllowMissingReadiness=false is rejected by the caller before this
  evaluator runs, never here.

SEE ALSO:
  - guard.go: Applied to every raw edit list
  - preview/coordinator.go: Wraps evaluation with caching/idempotency
*/
package adapt

import (
	"fmt"
	"math"
	"sort"
	"time"
)

// Edit-synthesis tuning. Percentages are fractions of planned duration.
const (
	missedReduction = 0.15 // missed session rescheduled shorter

	lowReadinessReduction      = 0.20
	lowReadinessTaperReduction = 0.10
	lowReadinessHRVThreshold   = -0.8

	monotonyThreshold     = 2.0
	monotonyBigReduction  = 0.10
	monotonySmallIncrease = 0.05
	rampThresholdPct      = 10.0
	rampReduction         = 0.10
	rampTaperReduction    = 0.05
	maxAttributedDrivers  = 3
)

// EvaluationInput carries everything the cascade inspects. Blockers are
// unused by current rules but remain part of the contract.
type EvaluationInput struct {
	Plan          Plan
	Sessions      []Session
	Readiness     *ReadinessSnapshot
	LoadPoints    []LoadPoint
	Blockers      []Blocker
	Window        ImpactWindow
	Scope         Scope
	ReferenceDate time.Time

	// AllowMissingReadiness lets the pipeline proceed when no readiness
	// snapshot exists. Enforced by the caller, carried here for the
	// contract and the data snapshot.
	AllowMissingReadiness bool
}

// rule pairs a predicate with its edit synthesizer.
type rule struct {
	code    ReasonCode
	matches func(in EvaluationInput) bool
	apply   func(in EvaluationInput, inTaper bool) ([]DiffChange, map[string]any)
}

// cascade order is a hard invariant. Do not reorder.
var cascade = []rule{
	{ReasonMissedSession, matchMissedSession, applyMissedSession},
	{ReasonLowReadiness, matchLowReadiness, applyLowReadiness},
	{ReasonMonotonyHigh, matchMonotonyHigh, applyMonotonyHigh},
	{ReasonRampHigh, matchRampHigh, applyRampHigh},
}

// Evaluate runs the priority cascade and returns the guard-passed result.
func Evaluate(in EvaluationInput) Evaluation {
	inTaper := in.Plan.InTaper(in.Window)

	for _, r := range cascade {
		if !r.matches(in) {
			continue
		}
		raw, snapshot := r.apply(in, inTaper)
		guarded, metrics := ApplyWeeklyVolumeGuard(in.Sessions, raw, inTaper)
		snapshot["volume_guard"] = metrics
		return Evaluation{
			Reason:       r.code,
			Triggers:     []string{string(r.code)},
			Changes:      guarded,
			Rationale:    rationaleFor(r.code),
			Drivers:      attributeDrivers(in.Readiness),
			DataSnapshot: snapshot,
		}
	}

	// Defensive fallback: no true trigger fired. Empty trigger list and
	// no edits signal "no adaptation needed".
	_, metrics := ApplyWeeklyVolumeGuard(in.Sessions, nil, inTaper)
	return Evaluation{
		Reason:       ReasonLowReadiness,
		Triggers:     []string{},
		Changes:      nil,
		Rationale:    "No adaptation needed: readiness and load trends are within normal bounds.",
		Drivers:      attributeDrivers(in.Readiness),
		DataSnapshot: map[string]any{"volume_guard": metrics},
	}
}

// =============================================================================
// RULE 1: MISSED SESSION
// =============================================================================

func matchMissedSession(in EvaluationInput) bool {
	return firstWithStatus(in.Sessions, StatusMissed) != nil
}

// applyMissedSession moves the first missed session to the reference date
// and trims its duration by 15%.
func applyMissedSession(in EvaluationInput, _ bool) ([]DiffChange, map[string]any) {
	s := firstWithStatus(in.Sessions, StatusMissed)
	changes := []DiffChange{
		ReplaceField(s.ID, FieldDate, s.Date.Format(DateLayout), in.ReferenceDate.Format(DateLayout)),
		ReplaceField(s.ID, FieldPlannedDurationMin, s.PlannedDurationMin, reduceBy(s.PlannedDurationMin, missedReduction)),
	}
	return changes, map[string]any{
		"missed_session_id": string(s.ID),
		"missed_date":       s.Date.Format(DateLayout),
	}
}

// =============================================================================
// RULE 2: LOW READINESS
// =============================================================================

func matchLowReadiness(in EvaluationInput) bool {
	r := in.Readiness
	if r == nil {
		return false
	}
	if r.Band == BandRed {
		return true
	}
	if r.Band == BandAmber {
		if hrv := r.Driver(SignalHRV); hrv != nil && hrv.Z <= lowReadinessHRVThreshold {
			return true
		}
	}
	return false
}

// applyLowReadiness softens the first key (or high-intensity) session:
// zone down to z3 and duration trimmed 20%, or 10% inside a taper.
func applyLowReadiness(in EvaluationInput, inTaper bool) ([]DiffChange, map[string]any) {
	snapshot := map[string]any{"band": string(in.Readiness.Band)}
	if hrv := in.Readiness.Driver(SignalHRV); hrv != nil {
		snapshot["hrv_z"] = hrv.Z
	}

	target := firstKeyOrHighIntensity(in.Sessions)
	if target == nil {
		return nil, snapshot
	}

	reduction := lowReadinessReduction
	if inTaper {
		reduction = lowReadinessTaperReduction
	}
	changes := []DiffChange{
		ReplaceField(target.ID, FieldPrimaryZone, string(target.PrimaryZone), string(ZoneZ3)),
		ReplaceField(target.ID, FieldPlannedDurationMin, target.PlannedDurationMin, reduceBy(target.PlannedDurationMin, reduction)),
	}
	snapshot["target_session_id"] = string(target.ID)
	return changes, snapshot
}

// =============================================================================
// RULE 3: MONOTONY HIGH
// =============================================================================

func matchMonotonyHigh(in EvaluationInput) bool {
	if m, ok := maxMonotony(in.LoadPoints); ok && m >= monotonyThreshold {
		return true
	}
	return in.Readiness.HasFlag(FlagMonotonyHigh)
}

// applyMonotonyHigh reduces the single longest planned session by 10%
// (floored at MinSessionMinutes) and, outside a taper, grows the single
// shortest by 5% to restore day-to-day variation. Inside a taper the
// increase is suppressed entirely.
func applyMonotonyHigh(in EvaluationInput, inTaper bool) ([]DiffChange, map[string]any) {
	snapshot := map[string]any{}
	if m, ok := maxMonotony(in.LoadPoints); ok {
		snapshot["monotony"] = m
	}

	big, small := extremePlanned(in.Sessions)
	if big == nil {
		return nil, snapshot
	}

	reduced := reduceBy(big.PlannedDurationMin, monotonyBigReduction)
	if reduced < MinSessionMinutes {
		reduced = MinSessionMinutes
	}
	changes := []DiffChange{
		ReplaceField(big.ID, FieldPlannedDurationMin, big.PlannedDurationMin, reduced),
	}
	if !inTaper && small != nil && small.ID != big.ID {
		changes = append(changes,
			ReplaceField(small.ID, FieldPlannedDurationMin, small.PlannedDurationMin, increaseBy(small.PlannedDurationMin, monotonySmallIncrease)))
	}
	snapshot["big_session_id"] = string(big.ID)
	if small != nil {
		snapshot["small_session_id"] = string(small.ID)
	}
	return changes, snapshot
}

// =============================================================================
// RULE 4: RAMP HIGH
// =============================================================================

func matchRampHigh(in EvaluationInput) bool {
	if r, ok := maxRampRate(in.LoadPoints); ok && r >= rampThresholdPct {
		return true
	}
	return in.Readiness.HasFlag(FlagRampHigh)
}

// applyRampHigh trims the first key session by 10%, or 5% inside a taper.
func applyRampHigh(in EvaluationInput, inTaper bool) ([]DiffChange, map[string]any) {
	snapshot := map[string]any{}
	if r, ok := maxRampRate(in.LoadPoints); ok {
		snapshot["ramp_rate_pct"] = r
	}

	target := firstWithPriority(in.Sessions, PriorityKey)
	if target == nil {
		return nil, snapshot
	}

	reduction := rampReduction
	if inTaper {
		reduction = rampTaperReduction
	}
	changes := []DiffChange{
		ReplaceField(target.ID, FieldPlannedDurationMin, target.PlannedDurationMin, reduceBy(target.PlannedDurationMin, reduction)),
	}
	snapshot["target_session_id"] = string(target.ID)
	return changes, snapshot
}

// =============================================================================
// SELECTORS + HELPERS
// =============================================================================

func firstWithStatus(sessions []Session, status SessionStatus) *Session {
	for i := range sessions {
		if sessions[i].Status == status {
			return &sessions[i]
		}
	}
	return nil
}

func firstWithPriority(sessions []Session, tier PriorityTier) *Session {
	for i := range sessions {
		if sessions[i].Priority == tier {
			return &sessions[i]
		}
	}
	return nil
}

func firstKeyOrHighIntensity(sessions []Session) *Session {
	for i := range sessions {
		if sessions[i].Priority == PriorityKey || sessions[i].PrimaryZone.IsHighIntensity() {
			return &sessions[i]
		}
	}
	return nil
}

// extremePlanned returns the single longest and single shortest planned
// sessions. First occurrence wins on ties. Both are nil when no session
// is planned; both point at the same session when only one is.
func extremePlanned(sessions []Session) (big, small *Session) {
	for i := range sessions {
		s := &sessions[i]
		if s.Status != StatusPlanned {
			continue
		}
		if big == nil || s.PlannedDurationMin > big.PlannedDurationMin {
			big = s
		}
		if small == nil || s.PlannedDurationMin < small.PlannedDurationMin {
			small = s
		}
	}
	return big, small
}

func maxMonotony(points []LoadPoint) (float64, bool) {
	max, found := 0.0, false
	for _, p := range points {
		if p.Monotony != nil && (!found || *p.Monotony > max) {
			max, found = *p.Monotony, true
		}
	}
	return max, found
}

func maxRampRate(points []LoadPoint) (float64, bool) {
	max, found := 0.0, false
	for _, p := range points {
		if p.RampRatePct != nil && (!found || *p.RampRatePct > max) {
			max, found = *p.RampRatePct, true
		}
	}
	return max, found
}

func reduceBy(minutes int, fraction float64) int {
	return int(math.Round(float64(minutes) * (1 - fraction)))
}

func increaseBy(minutes int, fraction float64) int {
	return int(math.Round(float64(minutes) * (1 + fraction)))
}

// rationaleFor returns the fixed explanation template for a reason code.
// No free-form generation: templates only.
func rationaleFor(code ReasonCode) string {
	switch code {
	case ReasonMissedSession:
		return "A missed session was pulled forward into the current window with a reduced duration so the week's key work still happens without stacking fatigue."
	case ReasonLowReadiness:
		return "Readiness is depressed, so the next key session is softened: intensity capped at z3 and duration trimmed."
	case ReasonMonotonyHigh:
		return "Daily training load has been too uniform. Duration is shifted between the longest and shortest sessions to restore variation."
	case ReasonRampHigh:
		return "Weekly load is ramping faster than sustainable, so the next key session is shortened."
	default:
		return fmt.Sprintf("Adaptation proposed (%s).", code)
	}
}

// attributeDrivers surfaces the strongest readiness drivers, by absolute
// contribution, for the preview rationale.
func attributeDrivers(r *ReadinessSnapshot) []DriverAttribution {
	if r == nil || len(r.Drivers) == 0 {
		return nil
	}
	sorted := make([]ReadinessDriver, len(r.Drivers))
	copy(sorted, r.Drivers)
	sort.SliceStable(sorted, func(i, j int) bool {
		return math.Abs(sorted[i].Contribution) > math.Abs(sorted[j].Contribution)
	})
	if len(sorted) > maxAttributedDrivers {
		sorted = sorted[:maxAttributedDrivers]
	}
	out := make([]DriverAttribution, len(sorted))
	for i, d := range sorted {
		out[i] = DriverAttribution{Signal: d.Signal, Z: d.Z, Contribution: d.Contribution}
	}
	return out
}
