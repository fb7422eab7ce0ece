/*
errors.go - Centralized error types for the adaptation engine

PURPOSE:
  All error types in one place for consistency and discoverability.
  The API layer maps these onto HTTP statuses via the helpers below.

ERROR CATEGORIES:
  1. Input errors  - Malformed dates, scopes, readiness preconditions
  2. Store errors  - Preview/decision persistence failures
  3. Conflict errors - Idempotency and create-if-absent races

NOTE ON GUARD "VIOLATIONS":
  A weekly-volume guard violation is never an error. The guard always
  resolves to a valid, bounded change list; "clamped" is a metric.

USAGE:
  if errors.Is(err, adapt.ErrReadinessNotFound) {
      // distinguish "no snapshot for that day" from a store failure
  }

SEE ALSO:
  - store.go: Interfaces that return these errors
  - api/handlers.go: HTTP status mapping
*/
package adapt

import "errors"

// =============================================================================
// SENTINEL ERRORS - Use with errors.Is()
// =============================================================================

var (
	// ErrInvalidScope is returned for a scope token outside today/next_72h/week.
	ErrInvalidScope = errors.New("invalid scope token")

	// ErrInvalidReadiness is returned when a readiness snapshot breaks the
	// driver-weight invariant.
	ErrInvalidReadiness = errors.New("invalid readiness snapshot")

	// ErrReadinessRequired is returned when readiness is absent for the
	// reference date and the caller did not waive it. Retryable once a
	// snapshot syncs.
	ErrReadinessRequired = errors.New("readiness snapshot required")

	// ErrReadinessNotFound distinguishes "no snapshot for that day" from a
	// store failure.
	ErrReadinessNotFound = errors.New("readiness snapshot not found")

	// ErrPlanNotFound is returned when the athlete has no active plan.
	ErrPlanNotFound = errors.New("plan not found")

	// ErrPreviewNotFound is returned for cache misses and unknown preview ids.
	ErrPreviewNotFound = errors.New("preview not found")

	// ErrPreviewExpired is returned when acting on a preview past its TTL.
	ErrPreviewExpired = errors.New("preview expired")

	// ErrStoreConflict is returned when a create-if-absent race loses to a
	// concurrent writer. The loser should re-read and observe a cache hit.
	ErrStoreConflict = errors.New("store uniqueness conflict")

	// ErrDecisionExists is returned when a preview already has a recorded
	// decision. Decisions are created exactly once, never updated.
	ErrDecisionExists = errors.New("decision already recorded")

	// ErrDecisionNotFound distinguishes "no decision recorded yet" from a
	// store failure.
	ErrDecisionNotFound = errors.New("decision not found")

	// ErrInvalidDecision is returned for a decision type outside
	// accepted/modified/rejected.
	ErrInvalidDecision = errors.New("invalid decision type")
)

// =============================================================================
// ERROR HELPERS
// =============================================================================

// IsRetryable returns true if the error might succeed on retry.
func IsRetryable(err error) bool {
	return errors.Is(err, ErrStoreConflict) ||
		errors.Is(err, ErrReadinessRequired)
}

// IsClientError returns true if the error is due to invalid client input.
func IsClientError(err error) bool {
	return errors.Is(err, ErrInvalidScope) ||
		errors.Is(err, ErrInvalidDecision) ||
		errors.Is(err, ErrDecisionExists) ||
		errors.Is(err, ErrPreviewExpired)
}

// IsNotFound returns true if the error indicates a missing resource.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrPlanNotFound) ||
		errors.Is(err, ErrPreviewNotFound) ||
		errors.Is(err, ErrDecisionNotFound) ||
		errors.Is(err, ErrReadinessNotFound)
}
