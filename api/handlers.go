/*
handlers.go - HTTP API handlers for the adaptation engine

PURPOSE:
  Exposes the adaptation engine via REST API. Handles HTTP
  request/response, JSON serialization, and delegates to domain logic.

ENDPOINTS:
  Athletes:
    GET  /api/athletes/{id}/plan                  Plan summary
    GET  /api/athletes/{id}/sessions              Sessions in a window
    GET  /api/athletes/{id}/readiness             Readiness for a date
    POST /api/athletes/{id}/adaptations/preview   Propose an adaptation

  Adaptations:
    POST /api/adaptations/{id}/decision           Record a decision

  Scenarios:
    GET  /api/scenarios                           List demo scenarios
    POST /api/scenarios/load                      Load a demo scenario
    POST /api/scenarios/reset                     Clear all data

REQUEST FLOW (preview):
  1. Resolve athlete identity
  2. Compute the impact window from date + scope
  3. Load plan and readiness; enforce the readiness precondition
  4. Checksum the decision-relevant inputs
  5. Resolve through the preview coordinator (cache/replay/compute)
  6. Serialize; 201 when freshly created, 200 for hits and replays

MODIFIED DECISIONS:
  The route layer re-runs the weekly volume guard on caller-supplied
  change sets before recording, so whatever reaches the recorder is
  guard-validated. The recorder itself stays minimal.

ERROR HANDLING:
  Errors are returned as JSON with appropriate HTTP status:
  - 400: Validation errors, invalid input
  - 401: No athlete identity
  - 404: Resource not found
  - 409: Conflict (decision already recorded)
  - 410: Preview expired
  - 412: Readiness precondition failed (retryable)
  - 500: Internal errors

SEE ALSO:
  - dto.go: Request/response data structures
  - scenarios.go: Demo scenario loaders
  - server.go: Router setup and middleware
*/
package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/hristiyan90/momentom/adapt"
	"github.com/hristiyan90/momentom/adapt/preview"
	"github.com/hristiyan90/momentom/factory"
)

// IdempotencyKeyHeader carries the client-chosen idempotency token.
const IdempotencyKeyHeader = "Idempotency-Key"

// Backend is everything the handlers need from persistence.
type Backend interface {
	adapt.Collector
	adapt.PreviewStore
	adapt.DecisionStore
}

// =============================================================================
// HANDLER CONTEXT
// =============================================================================

// Handler holds all dependencies for HTTP handlers.
type Handler struct {
	Store       Backend
	Seeder      factory.Store
	Identity    IdentityResolver
	Coordinator *preview.Coordinator
	Recorder    *preview.Recorder
}

// NewHandler wires a handler around a backend. seeder may be nil to
// disable scenario loading (production).
func NewHandler(store Backend, seeder factory.Store) *Handler {
	return &Handler{
		Store:       store,
		Seeder:      seeder,
		Identity:    RouteIdentity{},
		Coordinator: preview.NewCoordinator(store),
		Recorder:    preview.NewRecorder(store),
	}
}

// =============================================================================
// PREVIEW
// =============================================================================

// PreviewAdaptation proposes an adaptation for the athlete's upcoming
// window, resolving through the preview cache.
func (h *Handler) PreviewAdaptation(w http.ResponseWriter, r *http.Request) {
	athleteID, err := h.Identity.ResolveAthlete(r)
	if err != nil {
		writeError(w, http.StatusUnauthorized, err)
		return
	}

	var req PreviewRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, fmt.Errorf("invalid request body: %w", err))
		return
	}
	if req.Date == "" {
		req.Date = time.Now().UTC().Format(adapt.DateLayout)
	}
	if req.Scope == "" {
		req.Scope = string(adapt.ScopeWeek)
	}

	window, err := adapt.ComputeImpactWindow(req.Date, adapt.Scope(req.Scope))
	if err != nil {
		writeDomainError(w, err)
		return
	}
	refDate, _ := time.ParseInLocation(adapt.DateLayout, req.Date, time.UTC)

	ctx := r.Context()
	plan, err := h.Store.PlanSummary(ctx, athleteID)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	readiness, err := h.Store.Readiness(ctx, athleteID, refDate)
	if err != nil {
		if !errors.Is(err, adapt.ErrReadinessNotFound) {
			writeDomainError(w, err)
			return
		}
		if !req.AllowMissingReadiness {
			writeDomainError(w, fmt.Errorf("%w: no snapshot for %s", adapt.ErrReadinessRequired, req.Date))
			return
		}
		readiness = nil
	}

	checksum, err := adapt.ComputeInputsChecksum(athleteID, req.Date, adapt.Scope(req.Scope), plan.Version, readiness)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}

	compute := func(ctx context.Context) (adapt.Evaluation, error) {
		sessions, err := h.Store.SessionsInWindow(ctx, athleteID, window)
		if err != nil {
			return adapt.Evaluation{}, err
		}
		loads, err := h.Store.DailyLoadWindow(ctx, athleteID, window)
		if err != nil {
			return adapt.Evaluation{}, err
		}
		blockers, err := h.Store.Blockers(ctx, athleteID, window)
		if err != nil {
			return adapt.Evaluation{}, err
		}
		return adapt.Evaluate(adapt.EvaluationInput{
			Plan:                  *plan,
			Sessions:              sessions,
			Readiness:             readiness,
			LoadPoints:            loads,
			Blockers:              blockers,
			Window:                window,
			Scope:                 adapt.Scope(req.Scope),
			ReferenceDate:         refDate,
			AllowMissingReadiness: req.AllowMissingReadiness,
		}), nil
	}

	resolved, err := h.Coordinator.Resolve(ctx, preview.Request{
		AthleteID:      athleteID,
		PlanID:         plan.ID,
		PlanVersion:    plan.Version,
		Scope:          adapt.Scope(req.Scope),
		Window:         window,
		Checksum:       checksum,
		IdempotencyKey: r.Header.Get(IdempotencyKeyHeader),
	}, compute)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	status := http.StatusOK
	if resolved.Created {
		status = http.StatusCreated
	}
	writeJSON(w, status, previewToDTO(resolved.Preview, resolved.IsReplay, resolved.Created))
}

// =============================================================================
// DECISION
// =============================================================================

// RecordDecision finalizes an athlete's decision on a preview.
func (h *Handler) RecordDecision(w http.ResponseWriter, r *http.Request) {
	previewID := chi.URLParam(r, "previewID")

	var req DecisionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, fmt.Errorf("invalid request body: %w", err))
		return
	}

	ctx := r.Context()
	p, err := h.Store.GetPreview(ctx, previewID)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	// When the caller presents an identity it must own the preview.
	if headerID := r.Header.Get(AthleteIDHeader); headerID != "" && adapt.AthleteID(headerID) != p.AthleteID {
		writeError(w, http.StatusForbidden, fmt.Errorf("preview %s belongs to another athlete", previewID))
		return
	}

	decision := adapt.DecisionType(req.Decision)
	var finalChanges []adapt.DiffChange
	if decision == adapt.DecisionModified {
		finalChanges, err = h.guardModifiedChanges(ctx, p, changesFromDTO(req.Changes))
		if err != nil {
			writeDomainError(w, err)
			return
		}
	}

	d, err := h.Recorder.Record(ctx, p, decision, finalChanges, p.PlanVersionBefore, req.Rationale)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, decisionToDTO(d))
}

// guardModifiedChanges re-validates a caller-supplied change set: only
// replace ops are accepted, and the weekly volume guard runs again so
// the recorded set is bounded exactly like an engine-proposed one.
func (h *Handler) guardModifiedChanges(ctx context.Context, p *adapt.AdaptationPreview, changes []adapt.DiffChange) ([]adapt.DiffChange, error) {
	for _, c := range changes {
		if c.Op != adapt.OpReplace {
			return nil, fmt.Errorf("%w: op %q not permitted", adapt.ErrInvalidDecision, c.Op)
		}
	}
	sessions, err := h.Store.SessionsInWindow(ctx, p.AthleteID, p.Window)
	if err != nil {
		return nil, err
	}
	inTaper := false
	if plan, err := h.Store.PlanSummary(ctx, p.AthleteID); err == nil {
		inTaper = plan.InTaper(p.Window)
	}
	guarded, _ := adapt.ApplyWeeklyVolumeGuard(sessions, changes, inTaper)
	return guarded, nil
}

// =============================================================================
// READ-ONLY LOOKUPS
// =============================================================================

// GetPlan returns the athlete's plan summary.
func (h *Handler) GetPlan(w http.ResponseWriter, r *http.Request) {
	athleteID, err := h.Identity.ResolveAthlete(r)
	if err != nil {
		writeError(w, http.StatusUnauthorized, err)
		return
	}
	plan, err := h.Store.PlanSummary(r.Context(), athleteID)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, planToDTO(plan))
}

// GetSessions returns sessions in the window given by ?date=&scope=
// (defaults: today's date, week scope).
func (h *Handler) GetSessions(w http.ResponseWriter, r *http.Request) {
	athleteID, err := h.Identity.ResolveAthlete(r)
	if err != nil {
		writeError(w, http.StatusUnauthorized, err)
		return
	}

	date := r.URL.Query().Get("date")
	if date == "" {
		date = time.Now().UTC().Format(adapt.DateLayout)
	}
	scope := r.URL.Query().Get("scope")
	if scope == "" {
		scope = string(adapt.ScopeWeek)
	}
	window, err := adapt.ComputeImpactWindow(date, adapt.Scope(scope))
	if err != nil {
		writeDomainError(w, err)
		return
	}

	sessions, err := h.Store.SessionsInWindow(r.Context(), athleteID, window)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	dtos := make([]SessionDTO, len(sessions))
	for i, s := range sessions {
		dtos[i] = sessionToDTO(s)
	}
	writeJSON(w, http.StatusOK, dtos)
}

// GetReadiness returns the readiness snapshot for ?date= (default today).
func (h *Handler) GetReadiness(w http.ResponseWriter, r *http.Request) {
	athleteID, err := h.Identity.ResolveAthlete(r)
	if err != nil {
		writeError(w, http.StatusUnauthorized, err)
		return
	}

	dateStr := r.URL.Query().Get("date")
	if dateStr == "" {
		dateStr = time.Now().UTC().Format(adapt.DateLayout)
	}
	date, err := time.ParseInLocation(adapt.DateLayout, dateStr, time.UTC)
	if err != nil {
		writeError(w, http.StatusBadRequest, fmt.Errorf("invalid date %q", dateStr))
		return
	}

	snap, err := h.Store.Readiness(r.Context(), athleteID, date)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, ReadinessDTO{
		Date:           snap.Date.Format(adapt.DateLayout),
		Score:          snap.Score,
		Band:           string(snap.Band),
		Drivers:        snap.Drivers,
		Flags:          snap.Flags,
		MissingSignals: snap.MissingSignals,
	})
}

// =============================================================================
// RESPONSE HELPERS
// =============================================================================

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func writeError(w http.ResponseWriter, status int, err error) {
	writeJSON(w, status, ErrorDTO{Error: err.Error(), Retryable: adapt.IsRetryable(err)})
}

// writeDomainError maps engine errors onto HTTP statuses.
func writeDomainError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, adapt.ErrReadinessRequired):
		writeError(w, http.StatusPreconditionFailed, err)
	case adapt.IsNotFound(err):
		writeError(w, http.StatusNotFound, err)
	case errors.Is(err, adapt.ErrDecisionExists):
		writeError(w, http.StatusConflict, err)
	case errors.Is(err, adapt.ErrPreviewExpired):
		writeError(w, http.StatusGone, err)
	case adapt.IsClientError(err):
		writeError(w, http.StatusBadRequest, err)
	case errors.Is(err, adapt.ErrInvalidScope):
		writeError(w, http.StatusBadRequest, err)
	default:
		writeError(w, http.StatusInternalServerError, err)
	}
}
