/*
store.go - Persistence and collector interfaces

PURPOSE:
  Defines the boundary between the pure engine and its collaborators.
  The engine itself persists nothing; previews and decisions are
  delegated to a store, and all plan/session/readiness/load reads come
  through the Collector.

CONCURRENCY CONTRACT:
  Concurrent requests with the same (athlete, checksum) race to create
  the preview row. The store's uniqueness constraints - over
  (athlete, checksum) and (athlete, idempotency_key, checksum) - must
  make exactly one creation succeed; the loser observes ErrStoreConflict,
  re-reads, and gets a cache hit. No distributed locking here.

PREVIEWS ARE CREATE-ONCE:
  No Update method exists on PreviewStore except AttachIdempotencyKey,
  the single sanctioned retroactive mutation. On a store timeout the
  correct behavior is a retryable error, never a partially written row.

IMPLEMENTATIONS:
  - store/sqlite:     Production SQLite
  - adapt/store:      In-memory, for tests and dev

SEE ALSO:
  - preview/coordinator.go: Drives PreviewStore
  - preview/recorder.go: Drives DecisionStore
*/
package adapt

import (
	"context"
	"time"
)

// =============================================================================
// COLLECTOR - Read-only data lookups, all may return empty collections
// =============================================================================

type Collector interface {
	// PlanSummary returns the athlete's active plan, or ErrPlanNotFound.
	PlanSummary(ctx context.Context, athleteID AthleteID) (*Plan, error)

	// SessionsInWindow returns sessions dated inside the window.
	SessionsInWindow(ctx context.Context, athleteID AthleteID, w ImpactWindow) ([]Session, error)

	// Readiness returns the snapshot for a date. ErrReadinessNotFound
	// distinguishes "no snapshot" from a store failure.
	Readiness(ctx context.Context, athleteID AthleteID, date time.Time) (*ReadinessSnapshot, error)

	// DailyLoadWindow returns load points dated inside the window.
	DailyLoadWindow(ctx context.Context, athleteID AthleteID, w ImpactWindow) ([]LoadPoint, error)

	// Blockers returns calendar blockers overlapping the window.
	Blockers(ctx context.Context, athleteID AthleteID, w ImpactWindow) ([]Blocker, error)
}

// =============================================================================
// PREVIEW STORE
// =============================================================================

type PreviewStore interface {
	// CreatePreview persists a new preview. Returns ErrStoreConflict when
	// a uniqueness constraint loses a create-if-absent race.
	CreatePreview(ctx context.Context, p AdaptationPreview) error

	// GetPreview returns a preview by id, expired or not, or
	// ErrPreviewNotFound.
	GetPreview(ctx context.Context, id string) (*AdaptationPreview, error)

	// FindPreviewByChecksum returns the unexpired preview for
	// (athlete, checksum), or ErrPreviewNotFound.
	FindPreviewByChecksum(ctx context.Context, athleteID AthleteID, checksum string, now time.Time) (*AdaptationPreview, error)

	// FindPreviewByIdempotencyKey returns the unexpired preview for
	// (athlete, key, checksum), or ErrPreviewNotFound.
	FindPreviewByIdempotencyKey(ctx context.Context, athleteID AthleteID, key, checksum string, now time.Time) (*AdaptationPreview, error)

	// AttachIdempotencyKey retroactively attaches a key to an existing
	// preview so future keyed lookups replay it. Best-effort at the
	// caller: failure must not fail the primary request.
	AttachIdempotencyKey(ctx context.Context, previewID, key string) error

	// DeleteExpired removes previews whose TTL has passed and reports how
	// many were removed.
	DeleteExpired(ctx context.Context, now time.Time) (int, error)
}

// =============================================================================
// DECISION STORE
// =============================================================================

// DecisionStore is append-only: decisions are created exactly once per
// preview-response cycle and never updated.
type DecisionStore interface {
	// InsertDecision persists d. When d.PlanVersionAfter is non-nil the
	// plan version advances to that value in the same transaction, so a
	// failed insert never leaves the version moved. Returns
	// ErrDecisionExists when the preview already has a decision and
	// ErrPlanNotFound when the version advance targets an unknown plan.
	InsertDecision(ctx context.Context, d Decision) error

	// DecisionForPreview returns the recorded decision for a preview, or
	// ErrDecisionNotFound when none exists.
	DecisionForPreview(ctx context.Context, previewID string) (*Decision, error)
}
