/*
scenarios.go - Demo scenario endpoints

PURPOSE:
  Exposes the factory package's pre-built scenarios over HTTP so demo
  clients can reset the backend into a known state. Each scenario seeds
  one athlete whose data provokes a specific adaptation reason code.

USAGE VIA API:
  GET  /api/scenarios          List scenarios
  POST /api/scenarios/load     {"scenario_id": "red-readiness"}
  POST /api/scenarios/reset    Clear all data

NOTE:
  Loading a scenario resets the store. These endpoints are only mounted
  when the handler carries a seeder; production deployments pass nil.

SEE ALSO:
  - factory/scenarios.go: Scenario definitions and seed data
  - handlers.go: Handler context
*/
package api

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/hristiyan90/momentom/factory"
)

// ListScenarios returns the available demo scenarios.
func (h *Handler) ListScenarios(w http.ResponseWriter, r *http.Request) {
	dtos := make([]ScenarioDTO, len(factory.Scenarios))
	for i, s := range factory.Scenarios {
		dtos[i] = ScenarioDTO{ID: s.ID, Name: s.Name, Description: s.Description}
	}
	writeJSON(w, http.StatusOK, dtos)
}

// LoadScenario resets the store and seeds a scenario anchored to today.
func (h *Handler) LoadScenario(w http.ResponseWriter, r *http.Request) {
	if h.Seeder == nil {
		writeError(w, http.StatusNotFound, fmt.Errorf("scenario loading disabled"))
		return
	}

	var req LoadScenarioRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, fmt.Errorf("invalid request body: %w", err))
		return
	}
	scenario, ok := factory.FindScenario(req.ScenarioID)
	if !ok {
		writeError(w, http.StatusBadRequest, fmt.Errorf("unknown scenario %q", req.ScenarioID))
		return
	}

	if err := factory.Load(r.Context(), h.Seeder, scenario.ID, time.Now().UTC()); err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{
		"scenario_id": scenario.ID,
		"athlete_id":  string(scenario.AthleteID),
	})
}

// ResetStore clears all data.
func (h *Handler) ResetStore(w http.ResponseWriter, r *http.Request) {
	if h.Seeder == nil {
		writeError(w, http.StatusNotFound, fmt.Errorf("reset disabled"))
		return
	}
	if err := h.Seeder.Reset(r.Context()); err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
