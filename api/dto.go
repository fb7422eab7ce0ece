/*
dto.go - Data Transfer Objects for API requests and responses

PURPOSE:
  Defines the JSON structures for API communication. These types decouple
  the internal domain model from the external API contract, allowing
  field renaming without breaking clients, API-specific validation, and
  version evolution.

NAMING CONVENTION:
  - *DTO: Response types returned to clients
  - *Request: Request body types from clients

VALIDATION:
  Validation is done in handlers, not in DTOs. DTOs are pure data
  carriers.

SEE ALSO:
  - handlers.go: Uses these types
*/
package api

import (
	"time"

	"github.com/hristiyan90/momentom/adapt"
)

// =============================================================================
// REQUEST TYPES
// =============================================================================

// PreviewRequest asks the engine to propose an adaptation.
type PreviewRequest struct {
	Date  string `json:"date"`  // reference date, YYYY-MM-DD
	Scope string `json:"scope"` // today | next_72h | week

	// AllowMissingReadiness lets the pipeline proceed when no readiness
	// snapshot exists for the reference date.
	AllowMissingReadiness bool `json:"allow_missing_readiness,omitempty"`
}

// DecisionRequest records what the athlete chose to do with a preview.
type DecisionRequest struct {
	Decision  string      `json:"decision"` // accepted | modified | rejected
	Changes   []ChangeDTO `json:"changes,omitempty"`
	Rationale string      `json:"rationale,omitempty"`
}

// LoadScenarioRequest selects a demo scenario.
type LoadScenarioRequest struct {
	ScenarioID string `json:"scenario_id"`
}

// =============================================================================
// RESPONSE TYPES
// =============================================================================

// ChangeDTO mirrors adapt.DiffChange on the wire.
type ChangeDTO struct {
	Op   string `json:"op"`
	Path string `json:"path"`
	From any    `json:"from"`
	To   any    `json:"to"`
}

type RationaleDTO struct {
	Text         string                    `json:"text"`
	Drivers      []adapt.DriverAttribution `json:"drivers,omitempty"`
	DataSnapshot map[string]any            `json:"data_snapshot,omitempty"`
}

type WindowDTO struct {
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
}

// PreviewDTO is the engine's proposal as returned to clients.
type PreviewDTO struct {
	AdaptationID      string       `json:"adaptation_id"`
	PlanID            string       `json:"plan_id"`
	PlanVersionBefore int          `json:"plan_version_before"`
	Scope             string       `json:"scope"`
	Window            WindowDTO    `json:"impact_window"`
	Reason            string       `json:"reason_code"`
	Triggers          []string     `json:"triggers"`
	Changes           []ChangeDTO  `json:"changes"`
	Rationale         RationaleDTO `json:"rationale"`
	Checksum          string       `json:"checksum"`
	ExpiresAt         time.Time    `json:"expires_at"`

	// IsReplay marks the keyed idempotent-replay path; Created marks a
	// freshly computed preview. Both false = a natural cache hit.
	IsReplay bool `json:"is_replay"`
	Created  bool `json:"created"`
}

// DecisionDTO is the recorded decision as returned to clients.
type DecisionDTO struct {
	DecisionID        string      `json:"decision_id"`
	AdaptationID      string      `json:"adaptation_id"`
	Decision          string      `json:"decision"`
	FinalChanges      []ChangeDTO `json:"final_changes"`
	PlanVersionBefore int         `json:"plan_version_before"`
	PlanVersionAfter  *int        `json:"plan_version_after"`
	DecidedAt         time.Time   `json:"decided_at"`
}

type SessionDTO struct {
	ID                 string   `json:"id"`
	Date               string   `json:"date"`
	Discipline         string   `json:"discipline"`
	PlannedDurationMin int      `json:"planned_duration_min"`
	PlannedLoad        *float64 `json:"planned_load,omitempty"`
	PrimaryZone        string   `json:"primary_zone,omitempty"`
	Status             string   `json:"status"`
	Priority           string   `json:"priority,omitempty"`
}

type ReadinessDTO struct {
	Date           string                  `json:"date"`
	Score          *float64                `json:"score"`
	Band           string                  `json:"band"`
	Drivers        []adapt.ReadinessDriver `json:"drivers"`
	Flags          []string                `json:"flags,omitempty"`
	MissingSignals []string                `json:"missing_signals,omitempty"`
}

type PlanDTO struct {
	ID      string         `json:"id"`
	Version int            `json:"version"`
	Blocks  []PlanBlockDTO `json:"blocks"`
}

type PlanBlockDTO struct {
	Phase string `json:"phase"`
	Start string `json:"start"`
	End   string `json:"end"`
}

type ScenarioDTO struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
}

type ErrorDTO struct {
	Error     string `json:"error"`
	Retryable bool   `json:"retryable,omitempty"`
}

// =============================================================================
// CONVERSIONS
// =============================================================================

func changesToDTO(changes []adapt.DiffChange) []ChangeDTO {
	out := make([]ChangeDTO, len(changes))
	for i, c := range changes {
		out[i] = ChangeDTO{Op: string(c.Op), Path: c.Path, From: c.From, To: c.To}
	}
	return out
}

func changesFromDTO(dtos []ChangeDTO) []adapt.DiffChange {
	out := make([]adapt.DiffChange, len(dtos))
	for i, d := range dtos {
		out[i] = adapt.DiffChange{Op: adapt.ChangeOp(d.Op), Path: d.Path, From: d.From, To: d.To}
	}
	return out
}

func previewToDTO(p *adapt.AdaptationPreview, isReplay, created bool) PreviewDTO {
	triggers := p.Triggers
	if triggers == nil {
		triggers = []string{}
	}
	return PreviewDTO{
		AdaptationID:      p.ID,
		PlanID:            string(p.PlanID),
		PlanVersionBefore: p.PlanVersionBefore,
		Scope:             string(p.Scope),
		Window:            WindowDTO{Start: p.Window.Start, End: p.Window.End},
		Reason:            string(p.Reason),
		Triggers:          triggers,
		Changes:           changesToDTO(p.Changes),
		Rationale: RationaleDTO{
			Text:         p.Rationale.Text,
			Drivers:      p.Rationale.Drivers,
			DataSnapshot: p.Rationale.DataSnapshot,
		},
		Checksum:  p.Checksum,
		ExpiresAt: p.ExpiresAt,
		IsReplay:  isReplay,
		Created:   created,
	}
}

func decisionToDTO(d *adapt.Decision) DecisionDTO {
	return DecisionDTO{
		DecisionID:        d.ID,
		AdaptationID:      d.PreviewID,
		Decision:          string(d.Type),
		FinalChanges:      changesToDTO(d.FinalChanges),
		PlanVersionBefore: d.PlanVersionBefore,
		PlanVersionAfter:  d.PlanVersionAfter,
		DecidedAt:         d.DecidedAt,
	}
}

func sessionToDTO(s adapt.Session) SessionDTO {
	return SessionDTO{
		ID:                 string(s.ID),
		Date:               s.Date.Format(adapt.DateLayout),
		Discipline:         string(s.Discipline),
		PlannedDurationMin: s.PlannedDurationMin,
		PlannedLoad:        s.PlannedLoad,
		PrimaryZone:        string(s.PrimaryZone),
		Status:             string(s.Status),
		Priority:           string(s.Priority),
	}
}

func planToDTO(p *adapt.Plan) PlanDTO {
	blocks := make([]PlanBlockDTO, len(p.Blocks))
	for i, b := range p.Blocks {
		blocks[i] = PlanBlockDTO{
			Phase: string(b.Phase),
			Start: b.Start.Format(adapt.DateLayout),
			End:   b.End.Format(adapt.DateLayout),
		}
	}
	return PlanDTO{ID: string(p.ID), Version: p.Version, Blocks: blocks}
}
