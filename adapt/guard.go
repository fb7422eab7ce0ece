/*
guard.go - Weekly volume guard

PURPOSE:
  Bounds how aggressive any single adaptation may be. Compares weekly
  volume before and after a candidate change list; if the relative delta
  exceeds MaxWeeklyDeltaPct, every duration-valued edit in the batch is
  shrunk by the same factor so the aggregate lands at exactly the
  threshold. This is a proportional scale-back, not a per-session cap.

TAPER EXEMPTION:
  Inside a taper, increases are forbidden outright by the rule evaluator,
  so the guard never needs to clamp an increase there - but it still
  defends against any caller that bypasses that rule: only the
  (inTaper && delta >= 0) combination is exempt from clamping.

ARITHMETIC:
  Ratio arithmetic (delta percent, scale factor, per-edit rescale) runs
  on shopspring/decimal so the clamp lands exactly on the threshold
  before integer rounding. Durations themselves stay integer minutes.

INVARIANTS:
  - A clamped duration is never below MinSessionMinutes (30)
  - Re-running the guard on its own output does not clamp again
  - Non-duration changes pass through untouched

SEE ALSO:
  - volume.go: WeeklyVolume and ApplyChanges
  - rules.go: Every raw edit list passes through here before returning
*/
package adapt

import "github.com/shopspring/decimal"

// Guard bounds.
const (
	// MaxWeeklyDeltaPct is the largest relative weekly-volume swing
	// a single adaptation may propose, in either direction.
	MaxWeeklyDeltaPct = 20

	// MinSessionMinutes is the hard floor for any guard-clamped duration.
	MinSessionMinutes = 30
)

var (
	decHundred  = decimal.NewFromInt(100)
	decOne      = decimal.NewFromInt(1)
	maxDeltaPct = decimal.NewFromInt(MaxWeeklyDeltaPct)
)

// ApplyWeeklyVolumeGuard validates a candidate change list against the
// weekly volume bound, rescaling duration edits when the bound is
// exceeded. It never fails: "violation" is a metric, not an error.
func ApplyWeeklyVolumeGuard(sessions []Session, changes []DiffChange, inTaper bool) ([]DiffChange, GuardMetrics) {
	before := WeeklyVolume(sessions)
	after := WeeklyVolume(ApplyChanges(sessions, changes))

	metrics := GuardMetrics{
		OriginalVolume: before,
		NewVolume:      after,
		Taper:          inTaper,
	}

	if before == 0 {
		return changes, metrics
	}

	delta := after - before
	deltaPct := percentOf(delta, before)
	metrics.DeltaPercent = roundedPct(deltaPct)

	violates := deltaPct.Abs().GreaterThan(maxDeltaPct) && !(inTaper && delta >= 0)
	if !violates {
		return changes, metrics
	}

	// Aggregate target: exactly +/-20% of the original volume.
	target := decimal.NewFromInt(int64(before)).
		Mul(maxDeltaPct).
		Div(decHundred)
	if delta < 0 {
		target = target.Neg()
	}
	scale := target.Div(decimal.NewFromInt(int64(delta)))
	if scale.GreaterThan(decOne) {
		scale = decOne
	}

	clamped := make([]DiffChange, len(changes))
	for i, c := range changes {
		clamped[i] = rescaleChange(c, scale)
	}

	afterClamped := WeeklyVolume(ApplyChanges(sessions, clamped))
	metrics.NewVolume = afterClamped
	metrics.DeltaPercent = roundedPct(percentOf(afterClamped-before, before))
	metrics.Clamped = true
	return clamped, metrics
}

// rescaleChange shrinks one duration edit toward its original value:
// from + (to-from)*scale, then floored at MinSessionMinutes. Integer
// rounding always moves toward from - floor for increases, ceil for
// decreases - so the rescaled aggregate never re-crosses the threshold
// and a second guard pass is a no-op even for many-edit batches.
func rescaleChange(c DiffChange, scale decimal.Decimal) DiffChange {
	if c.Op != OpReplace || !c.IsDuration() {
		return c
	}
	from, okFrom := asInt(c.From)
	to, okTo := asInt(c.To)
	if !okFrom || !okTo {
		return c
	}

	span := decimal.NewFromInt(int64(to - from))
	scaled := decimal.NewFromInt(int64(from)).
		Add(span.Mul(scale))
	if to >= from {
		scaled = scaled.Floor()
	} else {
		scaled = scaled.Ceil()
	}

	v := int(scaled.IntPart())
	if v < MinSessionMinutes {
		v = MinSessionMinutes
	}
	c.To = v
	return c
}

// percentOf returns delta/base*100 as a decimal.
func percentOf(delta, base int) decimal.Decimal {
	return decimal.NewFromInt(int64(delta)).
		Mul(decHundred).
		Div(decimal.NewFromInt(int64(base)))
}

// roundedPct converts a decimal percentage into the float carried in
// metrics, rounded to two places for stable display.
func roundedPct(d decimal.Decimal) float64 {
	return d.Round(2).InexactFloat64()
}
