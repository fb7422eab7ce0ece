/*
Package preview wraps the rule evaluator with caching, idempotency, and
decision recording.

PURPOSE:
  Proposing an adaptation must be idempotent, cacheable, and versioned
  against the plan. The Coordinator decides, per request, whether to
  return a previously computed preview verbatim, replay a keyed
  computation, or invoke the evaluator and persist a new preview with a
  bounded TTL. The Recorder is the single authoritative point where a
  preview becomes a committed edit.

RESOLUTION ORDER:
  1. Valid idempotency key -> lookup (athlete, key, checksum). Hit =>
     return verbatim, IsReplay=true. Retries with the same key and same
     inputs yield byte-identical output.
  2. Lookup (athlete, checksum) alone - a natural cache hit independent
     of client keys. Hit => IsReplay=false; if the caller supplied a
     valid key not yet attached, attach it best-effort (log-and-continue
     on failure, never fail the request).
  3. Invoke compute(), persist with a 24h expiry, return as created.
     A lost creation race (ErrStoreConflict) re-reads and returns the
     winner's row as a cache hit.

SEE ALSO:
  - adapt/store.go: PreviewStore contract and uniqueness constraints
  - recorder.go: Decision recording
*/
package preview

import (
	"context"
	"errors"
	"log"
	"regexp"
	"time"

	"github.com/google/uuid"

	"github.com/hristiyan90/momentom/adapt"
)

// DefaultTTL bounds how long a preview may be served from cache.
const DefaultTTL = 24 * time.Hour

// idempotencyKeyPattern defines a well-formed client key. Malformed keys
// are ignored rather than rejected: the request still resolves through
// the natural checksum path.
var idempotencyKeyPattern = regexp.MustCompile(`^[A-Za-z0-9_-]{8,64}$`)

// ValidIdempotencyKey reports whether a client-supplied key participates
// in keyed replay.
func ValidIdempotencyKey(key string) bool {
	return idempotencyKeyPattern.MatchString(key)
}

// ComputeFunc produces a fresh evaluation. Invoked at most once per
// Resolve call, and only on a full cache miss.
type ComputeFunc func(ctx context.Context) (adapt.Evaluation, error)

// Request carries the request-scoped identity of one preview resolution.
type Request struct {
	AthleteID      adapt.AthleteID
	PlanID         adapt.PlanID
	PlanVersion    int
	Scope          adapt.Scope
	Window         adapt.ImpactWindow
	Checksum       string
	IdempotencyKey string // optional, may be malformed
}

// Resolved is a resolution outcome.
type Resolved struct {
	Preview *adapt.AdaptationPreview

	// IsReplay marks the keyed idempotent-replay path specifically.
	// A natural checksum hit has IsReplay=false.
	IsReplay bool

	// Created marks a freshly computed and persisted preview.
	Created bool
}

// Coordinator implements the preview cache / idempotency protocol.
type Coordinator struct {
	Previews adapt.PreviewStore
	TTL      time.Duration    // zero => DefaultTTL
	Now      func() time.Time // nil => time.Now
}

func NewCoordinator(previews adapt.PreviewStore) *Coordinator {
	return &Coordinator{Previews: previews, TTL: DefaultTTL, Now: time.Now}
}

func (c *Coordinator) now() time.Time {
	if c.Now != nil {
		return c.Now()
	}
	return time.Now()
}

func (c *Coordinator) ttl() time.Duration {
	if c.TTL > 0 {
		return c.TTL
	}
	return DefaultTTL
}

// Resolve returns a cached, replayed, or freshly computed preview.
func (c *Coordinator) Resolve(ctx context.Context, req Request, compute ComputeFunc) (*Resolved, error) {
	now := c.now()
	keyed := ValidIdempotencyKey(req.IdempotencyKey)

	// 1. Idempotent replay.
	if keyed {
		p, err := c.Previews.FindPreviewByIdempotencyKey(ctx, req.AthleteID, req.IdempotencyKey, req.Checksum, now)
		switch {
		case err == nil:
			return &Resolved{Preview: p, IsReplay: true}, nil
		case !errors.Is(err, adapt.ErrPreviewNotFound):
			return nil, err
		}
	}

	// 2. Natural cache hit on content checksum.
	p, err := c.Previews.FindPreviewByChecksum(ctx, req.AthleteID, req.Checksum, now)
	switch {
	case err == nil:
		if keyed && p.IdempotencyKey == "" {
			// Best-effort: future keyed lookups should replay this row.
			if attachErr := c.Previews.AttachIdempotencyKey(ctx, p.ID, req.IdempotencyKey); attachErr != nil {
				log.Printf("preview: attach idempotency key to %s failed: %v", p.ID, attachErr)
			} else {
				p.IdempotencyKey = req.IdempotencyKey
			}
		}
		return &Resolved{Preview: p}, nil
	case !errors.Is(err, adapt.ErrPreviewNotFound):
		return nil, err
	}

	// 3. Full miss: compute and persist.
	eval, err := compute(ctx)
	if err != nil {
		return nil, err
	}

	fresh := adapt.AdaptationPreview{
		ID:                uuid.NewString(),
		AthleteID:         req.AthleteID,
		PlanID:            req.PlanID,
		PlanVersionBefore: req.PlanVersion,
		Scope:             req.Scope,
		Window:            req.Window,
		Reason:            eval.Reason,
		Triggers:          eval.Triggers,
		Changes:           eval.Changes,
		Rationale: adapt.Rationale{
			Text:         eval.Rationale,
			Drivers:      eval.Drivers,
			DataSnapshot: eval.DataSnapshot,
		},
		Checksum:  req.Checksum,
		ExpiresAt: now.Add(c.ttl()),
		CreatedAt: now,
	}
	if keyed {
		fresh.IdempotencyKey = req.IdempotencyKey
	}

	if err := c.Previews.CreatePreview(ctx, fresh); err != nil {
		if errors.Is(err, adapt.ErrStoreConflict) {
			// Lost the create-if-absent race; the winner's row is our hit.
			winner, findErr := c.Previews.FindPreviewByChecksum(ctx, req.AthleteID, req.Checksum, now)
			if findErr != nil {
				return nil, findErr
			}
			return &Resolved{Preview: winner}, nil
		}
		return nil, err
	}
	return &Resolved{Preview: &fresh, Created: true}, nil
}
