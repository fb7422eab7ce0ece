package api_test

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hristiyan90/momentom/adapt/store"
	"github.com/hristiyan90/momentom/api"
	"github.com/hristiyan90/momentom/factory"
)

// =============================================================================
// TEST HELPERS
// =============================================================================

var refDate = time.Date(2026, time.March, 4, 0, 0, 0, 0, time.UTC) // a Wednesday

// newServer builds a router over a fresh in-memory store seeded with the
// given scenario.
func newServer(t *testing.T, scenarioID string) *httptest.Server {
	t.Helper()
	mem := store.NewMemory()
	if scenarioID != "" {
		require.NoError(t, factory.Load(context.Background(), mem, scenarioID, refDate))
	}
	srv := httptest.NewServer(api.NewRouter(api.NewHandler(mem, mem)))
	t.Cleanup(srv.Close)
	return srv
}

func doJSON(t *testing.T, method, url string, body any, headers map[string]string) (*http.Response, []byte) {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req, err := http.NewRequest(method, url, &buf)
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	var out bytes.Buffer
	_, err = out.ReadFrom(resp.Body)
	require.NoError(t, err)
	return resp, out.Bytes()
}

func previewURL(srv *httptest.Server) string {
	return srv.URL + "/api/athletes/athlete-demo/adaptations/preview"
}

func requestPreview(t *testing.T, srv *httptest.Server, headers map[string]string) (*http.Response, api.PreviewDTO) {
	t.Helper()
	resp, body := doJSON(t, http.MethodPost, previewURL(srv),
		api.PreviewRequest{Date: "2026-03-04", Scope: "week"}, headers)
	var dto api.PreviewDTO
	require.NoError(t, json.Unmarshal(body, &dto))
	return resp, dto
}

// =============================================================================
// PREVIEW
// =============================================================================

func TestPreview_FreshComputation(t *testing.T) {
	// GIVEN: The red-readiness scenario
	// WHEN: Requesting a week-scope preview
	// THEN: 201 with a low_readiness proposal softening the key ride

	srv := newServer(t, "red-readiness")

	resp, dto := requestPreview(t, srv, nil)

	assert.Equal(t, http.StatusCreated, resp.StatusCode)
	assert.True(t, dto.Created)
	assert.False(t, dto.IsReplay)
	assert.Equal(t, "low_readiness", dto.Reason)
	assert.Equal(t, []string{"low_readiness"}, dto.Triggers)
	assert.NotEmpty(t, dto.AdaptationID)
	assert.NotEmpty(t, dto.Checksum)
	assert.Equal(t, 1, dto.PlanVersionBefore)

	require.Len(t, dto.Changes, 2)
	assert.Equal(t, "/sessions/s-bike-key/primary_zone", dto.Changes[0].Path)
	assert.Equal(t, "z3", dto.Changes[0].To)
	assert.Equal(t, "/sessions/s-bike-key/planned_duration_min", dto.Changes[1].Path)
	assert.Equal(t, float64(80), dto.Changes[1].To, "JSON numbers decode as float64")
}

func TestPreview_SecondRequestHitsCache(t *testing.T) {
	srv := newServer(t, "red-readiness")

	_, first := requestPreview(t, srv, nil)
	resp, second := requestPreview(t, srv, nil)

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.False(t, second.Created)
	assert.Equal(t, first.AdaptationID, second.AdaptationID)
	assert.Equal(t, first.Checksum, second.Checksum)
}

func TestPreview_IdempotentReplayViaHeader(t *testing.T) {
	// GIVEN: Two requests carrying the same Idempotency-Key
	// WHEN: The second arrives
	// THEN: It replays the first byte-for-byte, marked is_replay

	srv := newServer(t, "red-readiness")
	headers := map[string]string{api.IdempotencyKeyHeader: "client-retry-001"}

	resp1, first := requestPreview(t, srv, headers)
	require.Equal(t, http.StatusCreated, resp1.StatusCode)

	resp2, second := requestPreview(t, srv, headers)

	assert.Equal(t, http.StatusOK, resp2.StatusCode)
	assert.True(t, second.IsReplay)
	assert.Equal(t, first.AdaptationID, second.AdaptationID)
	assert.Equal(t, first.Changes, second.Changes)
}

func TestPreview_MissingReadinessRejected(t *testing.T) {
	// GIVEN: No readiness snapshot for the requested date
	// WHEN: Requesting a preview without waiving the precondition
	// THEN: 412 with a retryable error

	srv := newServer(t, "red-readiness")

	resp, body := doJSON(t, http.MethodPost, previewURL(srv),
		api.PreviewRequest{Date: "2026-03-05", Scope: "week"}, nil)

	assert.Equal(t, http.StatusPreconditionFailed, resp.StatusCode)
	var errDTO api.ErrorDTO
	require.NoError(t, json.Unmarshal(body, &errDTO))
	assert.True(t, errDTO.Retryable)
}

func TestPreview_MissingReadinessWaived(t *testing.T) {
	srv := newServer(t, "red-readiness")

	resp, body := doJSON(t, http.MethodPost, previewURL(srv),
		api.PreviewRequest{Date: "2026-03-05", Scope: "week", AllowMissingReadiness: true}, nil)

	assert.Equal(t, http.StatusCreated, resp.StatusCode)
	var dto api.PreviewDTO
	require.NoError(t, json.Unmarshal(body, &dto))
	assert.Empty(t, dto.Triggers, "no readiness data means no readiness trigger")
}

func TestPreview_UnknownAthlete(t *testing.T) {
	srv := newServer(t, "red-readiness")

	resp, _ := doJSON(t, http.MethodPost, srv.URL+"/api/athletes/nobody/adaptations/preview",
		api.PreviewRequest{Date: "2026-03-04", Scope: "week"}, nil)

	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestPreview_InvalidScope(t *testing.T) {
	srv := newServer(t, "red-readiness")

	resp, _ := doJSON(t, http.MethodPost, previewURL(srv),
		api.PreviewRequest{Date: "2026-03-04", Scope: "fortnight"}, nil)

	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

// =============================================================================
// DECISION
// =============================================================================

func decisionURL(srv *httptest.Server, previewID string) string {
	return fmt.Sprintf("%s/api/adaptations/%s/decision", srv.URL, previewID)
}

func TestDecision_Accepted(t *testing.T) {
	// GIVEN: A fresh preview at plan version 1
	// WHEN: Accepting it
	// THEN: 201 with the preview's changes verbatim and version 2

	srv := newServer(t, "red-readiness")
	_, p := requestPreview(t, srv, nil)

	resp, body := doJSON(t, http.MethodPost, decisionURL(srv, p.AdaptationID),
		api.DecisionRequest{Decision: "accepted"}, nil)

	require.Equal(t, http.StatusCreated, resp.StatusCode)
	var d api.DecisionDTO
	require.NoError(t, json.Unmarshal(body, &d))
	assert.Equal(t, p.AdaptationID, d.AdaptationID)
	assert.Equal(t, "accepted", d.Decision)
	assert.Equal(t, p.Changes, d.FinalChanges)
	assert.Equal(t, 1, d.PlanVersionBefore)
	require.NotNil(t, d.PlanVersionAfter)
	assert.Equal(t, 2, *d.PlanVersionAfter)
}

func TestDecision_Rejected_NoVersionBump(t *testing.T) {
	srv := newServer(t, "red-readiness")
	_, p := requestPreview(t, srv, nil)

	resp, body := doJSON(t, http.MethodPost, decisionURL(srv, p.AdaptationID),
		api.DecisionRequest{Decision: "rejected", Rationale: "feeling fine"}, nil)

	require.Equal(t, http.StatusCreated, resp.StatusCode)
	var d api.DecisionDTO
	require.NoError(t, json.Unmarshal(body, &d))
	assert.Empty(t, d.FinalChanges)
	assert.Nil(t, d.PlanVersionAfter)
}

func TestDecision_Modified_GuardRevalidates(t *testing.T) {
	// GIVEN: A caller-modified change set that swings volume past 20%
	// WHEN: Recording the modified decision
	// THEN: The recorded set has been clamped by the guard

	srv := newServer(t, "red-readiness")
	_, p := requestPreview(t, srv, nil)

	// Weekly planned volume is 145 (100 + 45); dropping the key ride to
	// 30 would be -48%, far past the bound.
	changes := []api.ChangeDTO{
		{Op: "replace", Path: "/sessions/s-bike-key/planned_duration_min", From: float64(100), To: float64(30)},
	}
	resp, body := doJSON(t, http.MethodPost, decisionURL(srv, p.AdaptationID),
		api.DecisionRequest{Decision: "modified", Changes: changes}, nil)

	require.Equal(t, http.StatusCreated, resp.StatusCode)
	var d api.DecisionDTO
	require.NoError(t, json.Unmarshal(body, &d))
	require.Len(t, d.FinalChanges, 1)

	clamped, ok := d.FinalChanges[0].To.(float64)
	require.True(t, ok)
	assert.Greater(t, clamped, float64(30), "guard must have scaled the cut back")
}

func TestDecision_Modified_RejectsNonReplaceOps(t *testing.T) {
	srv := newServer(t, "red-readiness")
	_, p := requestPreview(t, srv, nil)

	changes := []api.ChangeDTO{
		{Op: "remove", Path: "/sessions/s-bike-key/planned_duration_min"},
	}
	resp, _ := doJSON(t, http.MethodPost, decisionURL(srv, p.AdaptationID),
		api.DecisionRequest{Decision: "modified", Changes: changes}, nil)

	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestDecision_DuplicateConflicts(t *testing.T) {
	srv := newServer(t, "red-readiness")
	_, p := requestPreview(t, srv, nil)

	resp, _ := doJSON(t, http.MethodPost, decisionURL(srv, p.AdaptationID),
		api.DecisionRequest{Decision: "accepted"}, nil)
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	resp, _ = doJSON(t, http.MethodPost, decisionURL(srv, p.AdaptationID),
		api.DecisionRequest{Decision: "rejected"}, nil)
	assert.Equal(t, http.StatusConflict, resp.StatusCode)
}

func TestDecision_UnknownPreview(t *testing.T) {
	srv := newServer(t, "red-readiness")

	resp, _ := doJSON(t, http.MethodPost, decisionURL(srv, "no-such-preview"),
		api.DecisionRequest{Decision: "accepted"}, nil)

	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestDecision_ForeignIdentityForbidden(t *testing.T) {
	// A caller presenting a different athlete identity cannot decide on
	// someone else's preview.
	srv := newServer(t, "red-readiness")
	_, p := requestPreview(t, srv, nil)

	resp, _ := doJSON(t, http.MethodPost, decisionURL(srv, p.AdaptationID),
		api.DecisionRequest{Decision: "accepted"},
		map[string]string{api.AthleteIDHeader: "someone-else"})

	assert.Equal(t, http.StatusForbidden, resp.StatusCode)
}

// =============================================================================
// READ-ONLY LOOKUPS + SCENARIOS
// =============================================================================

func TestGetPlan(t *testing.T) {
	srv := newServer(t, "red-readiness")

	resp, body := doJSON(t, http.MethodGet, srv.URL+"/api/athletes/athlete-demo/plan", nil, nil)

	require.Equal(t, http.StatusOK, resp.StatusCode)
	var dto api.PlanDTO
	require.NoError(t, json.Unmarshal(body, &dto))
	assert.Equal(t, "plan-demo", dto.ID)
	assert.Equal(t, 1, dto.Version)
	assert.NotEmpty(t, dto.Blocks)
}

func TestGetSessions_WindowFiltered(t *testing.T) {
	srv := newServer(t, "red-readiness")

	resp, body := doJSON(t, http.MethodGet,
		srv.URL+"/api/athletes/athlete-demo/sessions?date=2026-03-04&scope=week", nil, nil)

	require.Equal(t, http.StatusOK, resp.StatusCode)
	var dtos []api.SessionDTO
	require.NoError(t, json.Unmarshal(body, &dtos))
	assert.Len(t, dtos, 3)
}

func TestGetReadiness(t *testing.T) {
	srv := newServer(t, "red-readiness")

	resp, body := doJSON(t, http.MethodGet,
		srv.URL+"/api/athletes/athlete-demo/readiness?date=2026-03-04", nil, nil)

	require.Equal(t, http.StatusOK, resp.StatusCode)
	var dto api.ReadinessDTO
	require.NoError(t, json.Unmarshal(body, &dto))
	assert.Equal(t, "red", dto.Band)

	resp, _ = doJSON(t, http.MethodGet,
		srv.URL+"/api/athletes/athlete-demo/readiness?date=2026-03-05", nil, nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestScenarios_ListAndLoad(t *testing.T) {
	srv := newServer(t, "")

	resp, body := doJSON(t, http.MethodGet, srv.URL+"/api/scenarios/", nil, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var list []api.ScenarioDTO
	require.NoError(t, json.Unmarshal(body, &list))
	assert.Len(t, list, len(factory.Scenarios))

	resp, _ = doJSON(t, http.MethodPost, srv.URL+"/api/scenarios/load",
		api.LoadScenarioRequest{ScenarioID: "steady-week"}, nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	resp, _ = doJSON(t, http.MethodPost, srv.URL+"/api/scenarios/load",
		api.LoadScenarioRequest{ScenarioID: "bogus"}, nil)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestScenarios_Reset(t *testing.T) {
	srv := newServer(t, "red-readiness")

	resp, _ := doJSON(t, http.MethodPost, srv.URL+"/api/scenarios/reset", nil, nil)
	require.Equal(t, http.StatusNoContent, resp.StatusCode)

	resp, _ = doJSON(t, http.MethodGet, srv.URL+"/api/athletes/athlete-demo/plan", nil, nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}
