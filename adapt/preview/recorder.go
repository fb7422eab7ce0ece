/*
recorder.go - Decision recording

PURPOSE:
  Takes a previously produced preview plus the athlete's decision and
  finalizes it. This is the single authoritative point where a preview
  becomes a committed edit; previews themselves never alter plan state.

DECISION SEMANTICS:
  accepted: final changes = the preview's original changes, verbatim
  modified: final changes = the caller's alternate set. The caller must
            have re-run the weekly volume guard on it already; this
            contract only requires that what is recorded has been
            guard-validated.
  rejected: final changes = empty; the plan version does NOT advance.

  Plan version after = before + 1 unless rejected, in which case nil.
  The store applies the version advance and the decision insert in one
  transaction; a failed insert never leaves the version moved.

SEE ALSO:
  - coordinator.go: Produces the previews recorded here
  - adapt/store.go: DecisionStore contract
*/
package preview

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/hristiyan90/momentom/adapt"
)

// Recorder finalizes preview decisions.
type Recorder struct {
	Decisions adapt.DecisionStore
	Now       func() time.Time // nil => time.Now
}

func NewRecorder(decisions adapt.DecisionStore) *Recorder {
	return &Recorder{Decisions: decisions, Now: time.Now}
}

func (r *Recorder) now() time.Time {
	if r.Now != nil {
		return r.Now()
	}
	return time.Now()
}

// Record finalizes an athlete's decision on a preview. finalChanges is
// only consulted for modified decisions; accepted and rejected derive
// their change lists from the preview itself.
func (r *Recorder) Record(ctx context.Context, p *adapt.AdaptationPreview, decision adapt.DecisionType, finalChanges []adapt.DiffChange, planVersionBefore int, rationale string) (*adapt.Decision, error) {
	now := r.now()
	if p.Expired(now) {
		return nil, fmt.Errorf("%w: preview %s", adapt.ErrPreviewExpired, p.ID)
	}

	switch decision {
	case adapt.DecisionAccepted:
		finalChanges = p.Changes
	case adapt.DecisionModified:
		// Caller-supplied, already guard-validated. Recorded as given.
	case adapt.DecisionRejected:
		finalChanges = nil
	default:
		return nil, fmt.Errorf("%w: %q", adapt.ErrInvalidDecision, decision)
	}

	// Decisions are create-once.
	if existing, err := r.Decisions.DecisionForPreview(ctx, p.ID); err == nil && existing != nil {
		return nil, fmt.Errorf("%w: preview %s", adapt.ErrDecisionExists, p.ID)
	} else if err != nil && !errors.Is(err, adapt.ErrDecisionNotFound) {
		return nil, err
	}

	// The store advances the plan to this value in the same transaction
	// as the insert below.
	var after *int
	if decision != adapt.DecisionRejected {
		v := planVersionBefore + 1
		after = &v
	}

	d := adapt.Decision{
		ID:                uuid.NewString(),
		PreviewID:         p.ID,
		AthleteID:         p.AthleteID,
		PlanID:            p.PlanID,
		Type:              decision,
		FinalChanges:      finalChanges,
		PlanVersionBefore: planVersionBefore,
		PlanVersionAfter:  after,
		Rationale:         rationale,
		DecidedAt:         now,
	}
	if err := r.Decisions.InsertDecision(ctx, d); err != nil {
		return nil, err
	}
	return &d, nil
}
