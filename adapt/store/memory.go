// Package store provides an in-memory implementation of the adapt
// persistence and collector interfaces, for tests and development.
package store

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/hristiyan90/momentom/adapt"
)

// =============================================================================
// MEMORY STORE - In-memory implementation (for testing/dev)
// =============================================================================

// Memory implements adapt.Collector, adapt.PreviewStore, and
// adapt.DecisionStore. The same uniqueness
// constraints the SQLite store enforces with unique indexes are enforced
// here under one mutex, so create-if-absent races resolve identically.
type Memory struct {
	mu sync.RWMutex

	plans     map[adapt.AthleteID]*adapt.Plan
	sessions  map[adapt.AthleteID][]adapt.Session
	readiness map[adapt.AthleteID]map[string]*adapt.ReadinessSnapshot // keyed by date
	loads     map[adapt.AthleteID][]adapt.LoadPoint
	blockers  map[adapt.AthleteID][]adapt.Blocker

	previews  map[string]*adapt.AdaptationPreview // by preview id
	decisions map[string]*adapt.Decision          // by preview id
}

func NewMemory() *Memory {
	return &Memory{
		plans:     make(map[adapt.AthleteID]*adapt.Plan),
		sessions:  make(map[adapt.AthleteID][]adapt.Session),
		readiness: make(map[adapt.AthleteID]map[string]*adapt.ReadinessSnapshot),
		loads:     make(map[adapt.AthleteID][]adapt.LoadPoint),
		blockers:  make(map[adapt.AthleteID][]adapt.Blocker),
		previews:  make(map[string]*adapt.AdaptationPreview),
		decisions: make(map[string]*adapt.Decision),
	}
}

// Reset clears everything. Used by scenario loading.
func (m *Memory) Reset(context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.plans = make(map[adapt.AthleteID]*adapt.Plan)
	m.sessions = make(map[adapt.AthleteID][]adapt.Session)
	m.readiness = make(map[adapt.AthleteID]map[string]*adapt.ReadinessSnapshot)
	m.loads = make(map[adapt.AthleteID][]adapt.LoadPoint)
	m.blockers = make(map[adapt.AthleteID][]adapt.Blocker)
	m.previews = make(map[string]*adapt.AdaptationPreview)
	m.decisions = make(map[string]*adapt.Decision)
	return nil
}

// =============================================================================
// SEEDING - Used by the scenario factory and tests
// =============================================================================

func (m *Memory) PutPlan(_ context.Context, p adapt.Plan) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.plans[p.AthleteID] = &p
	return nil
}

func (m *Memory) PutSessions(_ context.Context, athleteID adapt.AthleteID, sessions []adapt.Session) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sessions[athleteID] = append(m.sessions[athleteID], sessions...)
	sort.SliceStable(m.sessions[athleteID], func(i, j int) bool {
		return m.sessions[athleteID][i].Date.Before(m.sessions[athleteID][j].Date)
	})
	return nil
}

func (m *Memory) PutReadiness(_ context.Context, r adapt.ReadinessSnapshot) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.readiness[r.AthleteID] == nil {
		m.readiness[r.AthleteID] = make(map[string]*adapt.ReadinessSnapshot)
	}
	m.readiness[r.AthleteID][r.Date.Format(adapt.DateLayout)] = &r
	return nil
}

func (m *Memory) PutLoadPoints(_ context.Context, athleteID adapt.AthleteID, points []adapt.LoadPoint) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.loads[athleteID] = append(m.loads[athleteID], points...)
	return nil
}

func (m *Memory) PutBlockers(_ context.Context, athleteID adapt.AthleteID, blockers []adapt.Blocker) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.blockers[athleteID] = append(m.blockers[athleteID], blockers...)
	return nil
}

// =============================================================================
// COLLECTOR
// =============================================================================

func (m *Memory) PlanSummary(_ context.Context, athleteID adapt.AthleteID) (*adapt.Plan, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	p, ok := m.plans[athleteID]
	if !ok {
		return nil, adapt.ErrPlanNotFound
	}
	cp := *p
	return &cp, nil
}

func (m *Memory) SessionsInWindow(_ context.Context, athleteID adapt.AthleteID, w adapt.ImpactWindow) ([]adapt.Session, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []adapt.Session
	for _, s := range m.sessions[athleteID] {
		if w.Contains(s.Date) {
			out = append(out, s)
		}
	}
	return out, nil
}

func (m *Memory) Readiness(_ context.Context, athleteID adapt.AthleteID, date time.Time) (*adapt.ReadinessSnapshot, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	r, ok := m.readiness[athleteID][date.Format(adapt.DateLayout)]
	if !ok {
		return nil, adapt.ErrReadinessNotFound
	}
	cp := *r
	return &cp, nil
}

func (m *Memory) DailyLoadWindow(_ context.Context, athleteID adapt.AthleteID, w adapt.ImpactWindow) ([]adapt.LoadPoint, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []adapt.LoadPoint
	for _, p := range m.loads[athleteID] {
		if w.Contains(p.Date) {
			out = append(out, p)
		}
	}
	return out, nil
}

func (m *Memory) Blockers(_ context.Context, athleteID adapt.AthleteID, w adapt.ImpactWindow) ([]adapt.Blocker, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []adapt.Blocker
	for _, b := range m.blockers[athleteID] {
		if b.Start.Before(w.End) && w.Start.Before(b.End) {
			out = append(out, b)
		}
	}
	return out, nil
}

// =============================================================================
// PREVIEW STORE
// =============================================================================

func (m *Memory) CreatePreview(_ context.Context, p adapt.AdaptationPreview) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	// Enforce the same uniqueness the SQLite indexes provide.
	for _, existing := range m.previews {
		if existing.AthleteID != p.AthleteID || existing.Expired(p.CreatedAt) {
			continue
		}
		// The (athlete, checksum) index subsumes the keyed index
		// (athlete, key, checksum) for conflict purposes: reusing an
		// idempotency key with changed inputs is a fresh cache
		// identity, never a conflict.
		if existing.Checksum == p.Checksum {
			return adapt.ErrStoreConflict
		}
	}

	cp := p
	m.previews[p.ID] = &cp
	return nil
}

func (m *Memory) GetPreview(_ context.Context, id string) (*adapt.AdaptationPreview, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	p, ok := m.previews[id]
	if !ok {
		return nil, adapt.ErrPreviewNotFound
	}
	cp := *p
	return &cp, nil
}

func (m *Memory) FindPreviewByChecksum(_ context.Context, athleteID adapt.AthleteID, checksum string, now time.Time) (*adapt.AdaptationPreview, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, p := range m.previews {
		if p.AthleteID == athleteID && p.Checksum == checksum && !p.Expired(now) {
			cp := *p
			return &cp, nil
		}
	}
	return nil, adapt.ErrPreviewNotFound
}

func (m *Memory) FindPreviewByIdempotencyKey(_ context.Context, athleteID adapt.AthleteID, key, checksum string, now time.Time) (*adapt.AdaptationPreview, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, p := range m.previews {
		if p.AthleteID == athleteID && p.IdempotencyKey == key && p.Checksum == checksum && !p.Expired(now) {
			cp := *p
			return &cp, nil
		}
	}
	return nil, adapt.ErrPreviewNotFound
}

func (m *Memory) AttachIdempotencyKey(_ context.Context, previewID, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.previews[previewID]
	if !ok {
		return adapt.ErrPreviewNotFound
	}
	if p.IdempotencyKey != "" && p.IdempotencyKey != key {
		return adapt.ErrStoreConflict
	}
	p.IdempotencyKey = key
	return nil
}

func (m *Memory) DeleteExpired(_ context.Context, now time.Time) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for id, p := range m.previews {
		if p.Expired(now) {
			delete(m.previews, id)
			n++
		}
	}
	return n, nil
}

// =============================================================================
// DECISION STORE
// =============================================================================

// InsertDecision records d and, when it advances the plan, moves the
// plan version under the same lock. All checks run before any write so
// a failed insert never leaves the version moved.
func (m *Memory) InsertDecision(_ context.Context, d adapt.Decision) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, exists := m.decisions[d.PreviewID]; exists {
		return adapt.ErrDecisionExists
	}

	var plan *adapt.Plan
	if d.PlanVersionAfter != nil {
		for _, p := range m.plans {
			if p.ID == d.PlanID {
				plan = p
				break
			}
		}
		if plan == nil {
			return adapt.ErrPlanNotFound
		}
	}

	cp := d
	m.decisions[d.PreviewID] = &cp
	if plan != nil {
		plan.Version = *d.PlanVersionAfter
	}
	return nil
}

func (m *Memory) DecisionForPreview(_ context.Context, previewID string) (*adapt.Decision, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	d, ok := m.decisions[previewID]
	if !ok {
		return nil, adapt.ErrDecisionNotFound
	}
	cp := *d
	return &cp, nil
}
