/*
Package sqlite provides a SQLite-backed implementation of the storage
interfaces.

PURPOSE:
  Implements adapt.Collector, adapt.PreviewStore, and
  adapt.DecisionStore using SQLite. In production the same patterns
  apply to PostgreSQL - only minor SQL dialect differences.

KEY TABLES:
  plans:               Versioned plan summaries with JSON phase blocks
  sessions:            Planned/executed training units
  readiness_snapshots: Daily readiness with JSON driver lists
  load_points:         Daily chronic/acute load, monotony, ramp rate
  blockers:            Calendar constraints
  adaptation_previews: Cached engine output with TTL
  decisions:           Append-only decision records

UNIQUENESS CONSTRAINTS (the concurrency contract):
  idx_previews_checksum:  UNIQUE (athlete_id, checksum)
  idx_previews_idem_key:  UNIQUE (athlete_id, idempotency_key, checksum)
  idx_decisions_preview:  UNIQUE (preview_id)

  Concurrent create-if-absent races resolve to exactly one winner; the
  loser receives adapt.ErrStoreConflict, re-reads, and observes a cache
  hit. Expired preview rows are cleared eagerly before insert (and
  periodically by the sweeper) so a stale row never blocks a fresh one.

WAL MODE:
  SQLite is opened with WAL for better concurrency: multiple readers
  don't block, single writer at a time, better crash recovery.

USAGE:
  st, err := sqlite.New("./data/momentom.db")
  if err != nil {
      log.Fatal(err)
  }
  defer st.Close()

SEE ALSO:
  - adapt/store.go: Interface definitions
  - adapt/store/memory.go: In-memory implementation for testing
*/
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/hristiyan90/momentom/adapt"
)

// Store implements all storage interfaces using SQLite.
type Store struct {
	db *sql.DB
}

// New creates a new SQLite store with the given database path.
// Use ":memory:" for an in-memory database.
func New(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_foreign_keys=on&_journal_mode=WAL")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	store := &Store{db: db}
	if err := store.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}
	return store, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// migrate creates the database schema.
func (s *Store) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS plans (
		id TEXT PRIMARY KEY,
		athlete_id TEXT NOT NULL UNIQUE,
		version INTEGER NOT NULL DEFAULT 1,
		blocks_json TEXT NOT NULL DEFAULT '[]'
	);

	CREATE TABLE IF NOT EXISTS sessions (
		id TEXT PRIMARY KEY,
		athlete_id TEXT NOT NULL,
		date TEXT NOT NULL,
		discipline TEXT NOT NULL,
		planned_duration_min INTEGER NOT NULL CHECK (planned_duration_min >= 0),
		planned_load REAL,
		primary_zone TEXT,
		status TEXT NOT NULL,
		priority TEXT
	);

	CREATE INDEX IF NOT EXISTS idx_sessions_athlete_date
		ON sessions(athlete_id, date);

	CREATE TABLE IF NOT EXISTS readiness_snapshots (
		athlete_id TEXT NOT NULL,
		date TEXT NOT NULL,
		score REAL,
		band TEXT NOT NULL,
		drivers_json TEXT NOT NULL DEFAULT '[]',
		flags_json TEXT NOT NULL DEFAULT '[]',
		missing_json TEXT NOT NULL DEFAULT '[]',
		PRIMARY KEY (athlete_id, date)
	);

	CREATE TABLE IF NOT EXISTS load_points (
		athlete_id TEXT NOT NULL,
		date TEXT NOT NULL,
		chronic_load REAL,
		acute_load REAL,
		monotony REAL,
		ramp_rate_pct REAL,
		PRIMARY KEY (athlete_id, date)
	);

	CREATE TABLE IF NOT EXISTS blockers (
		id TEXT PRIMARY KEY,
		athlete_id TEXT NOT NULL,
		start_at TEXT NOT NULL,
		end_at TEXT NOT NULL,
		kind TEXT,
		note TEXT
	);

	CREATE INDEX IF NOT EXISTS idx_blockers_athlete
		ON blockers(athlete_id, start_at);

	CREATE TABLE IF NOT EXISTS adaptation_previews (
		id TEXT PRIMARY KEY,
		athlete_id TEXT NOT NULL,
		plan_id TEXT NOT NULL,
		plan_version_before INTEGER NOT NULL,
		scope TEXT NOT NULL,
		window_start TEXT NOT NULL,
		window_end TEXT NOT NULL,
		reason TEXT NOT NULL,
		triggers_json TEXT NOT NULL DEFAULT '[]',
		changes_json TEXT NOT NULL DEFAULT '[]',
		rationale_json TEXT NOT NULL DEFAULT '{}',
		checksum TEXT NOT NULL,
		idempotency_key TEXT NOT NULL DEFAULT '',
		expires_at TEXT NOT NULL,
		created_at TEXT NOT NULL
	);

	-- The create-if-absent race resolvers. Exactly one concurrent
	-- creation for the same cache identity can succeed.
	CREATE UNIQUE INDEX IF NOT EXISTS idx_previews_checksum
		ON adaptation_previews(athlete_id, checksum);
	CREATE UNIQUE INDEX IF NOT EXISTS idx_previews_idem_key
		ON adaptation_previews(athlete_id, idempotency_key, checksum)
		WHERE idempotency_key != '';

	CREATE TABLE IF NOT EXISTS decisions (
		id TEXT PRIMARY KEY,
		preview_id TEXT NOT NULL,
		athlete_id TEXT NOT NULL,
		plan_id TEXT NOT NULL,
		decision TEXT NOT NULL,
		final_changes_json TEXT NOT NULL DEFAULT '[]',
		plan_version_before INTEGER NOT NULL,
		plan_version_after INTEGER,
		rationale TEXT,
		decided_at TEXT NOT NULL
	);

	-- Decisions are created exactly once per preview.
	CREATE UNIQUE INDEX IF NOT EXISTS idx_decisions_preview
		ON decisions(preview_id);
	`
	_, err := s.db.Exec(schema)
	return err
}

// isUniqueViolation detects SQLite unique-constraint failures so they can
// be surfaced as adapt.ErrStoreConflict.
func isUniqueViolation(err error) bool {
	return err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed")
}

// lastDayInWindow returns the last calendar day the window covers.
// Window ends are instants (half-open or end-inclusive depending on
// scope); calendar-dated rows need an inclusive date bound.
func lastDayInWindow(w adapt.ImpactWindow) string {
	return w.End.Add(-time.Millisecond).Format(adapt.DateLayout)
}

// =============================================================================
// SEEDING + RESET (scenario support)
// =============================================================================

// Reset clears all data. Development/demo environments only.
func (s *Store) Reset(ctx context.Context) error {
	for _, table := range []string{
		"plans", "sessions", "readiness_snapshots", "load_points",
		"blockers", "adaptation_previews", "decisions",
	} {
		if _, err := s.db.ExecContext(ctx, "DELETE FROM "+table); err != nil {
			return fmt.Errorf("reset %s: %w", table, err)
		}
	}
	return nil
}

func (s *Store) PutPlan(ctx context.Context, p adapt.Plan) error {
	blocks, err := json.Marshal(planBlocksToRows(p.Blocks))
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO plans (id, athlete_id, version, blocks_json)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(athlete_id) DO UPDATE SET
			id = excluded.id,
			version = excluded.version,
			blocks_json = excluded.blocks_json`,
		string(p.ID), string(p.AthleteID), p.Version, string(blocks))
	return err
}

func (s *Store) PutSessions(ctx context.Context, athleteID adapt.AthleteID, sessions []adapt.Session) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	for _, sess := range sessions {
		_, err := tx.ExecContext(ctx, `
			INSERT OR REPLACE INTO sessions
				(id, athlete_id, date, discipline, planned_duration_min, planned_load, primary_zone, status, priority)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			string(sess.ID), string(athleteID), sess.Date.Format(adapt.DateLayout),
			string(sess.Discipline), sess.PlannedDurationMin, sess.PlannedLoad,
			string(sess.PrimaryZone), string(sess.Status), string(sess.Priority))
		if err != nil {
			return err
		}
	}
	return tx.Commit()
}

func (s *Store) PutReadiness(ctx context.Context, r adapt.ReadinessSnapshot) error {
	drivers, err := json.Marshal(r.Drivers)
	if err != nil {
		return err
	}
	flags, err := json.Marshal(emptyIfNil(r.Flags))
	if err != nil {
		return err
	}
	missing, err := json.Marshal(emptyIfNil(r.MissingSignals))
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT OR REPLACE INTO readiness_snapshots
			(athlete_id, date, score, band, drivers_json, flags_json, missing_json)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		string(r.AthleteID), r.Date.Format(adapt.DateLayout), r.Score,
		string(r.Band), string(drivers), string(flags), string(missing))
	return err
}

func (s *Store) PutLoadPoints(ctx context.Context, athleteID adapt.AthleteID, points []adapt.LoadPoint) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	for _, p := range points {
		_, err := tx.ExecContext(ctx, `
			INSERT OR REPLACE INTO load_points
				(athlete_id, date, chronic_load, acute_load, monotony, ramp_rate_pct)
			VALUES (?, ?, ?, ?, ?, ?)`,
			string(athleteID), p.Date.Format(adapt.DateLayout),
			p.ChronicLoad, p.AcuteLoad, p.Monotony, p.RampRatePct)
		if err != nil {
			return err
		}
	}
	return tx.Commit()
}

func (s *Store) PutBlockers(ctx context.Context, athleteID adapt.AthleteID, blockers []adapt.Blocker) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	for _, b := range blockers {
		_, err := tx.ExecContext(ctx, `
			INSERT OR REPLACE INTO blockers (id, athlete_id, start_at, end_at, kind, note)
			VALUES (?, ?, ?, ?, ?, ?)`,
			b.ID, string(athleteID), b.Start.Format(time.RFC3339),
			b.End.Format(time.RFC3339), b.Kind, b.Note)
		if err != nil {
			return err
		}
	}
	return tx.Commit()
}

// =============================================================================
// COLLECTOR
// =============================================================================

func (s *Store) PlanSummary(ctx context.Context, athleteID adapt.AthleteID) (*adapt.Plan, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, version, blocks_json FROM plans WHERE athlete_id = ?`,
		string(athleteID))

	var id, blocksJSON string
	var version int
	if err := row.Scan(&id, &version, &blocksJSON); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, adapt.ErrPlanNotFound
		}
		return nil, err
	}

	var blockRows []planBlockRow
	if err := json.Unmarshal([]byte(blocksJSON), &blockRows); err != nil {
		return nil, fmt.Errorf("decode plan blocks: %w", err)
	}
	blocks, err := planBlocksFromRows(blockRows)
	if err != nil {
		return nil, err
	}
	return &adapt.Plan{
		ID:        adapt.PlanID(id),
		AthleteID: athleteID,
		Version:   version,
		Blocks:    blocks,
	}, nil
}

func (s *Store) SessionsInWindow(ctx context.Context, athleteID adapt.AthleteID, w adapt.ImpactWindow) ([]adapt.Session, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, date, discipline, planned_duration_min, planned_load, primary_zone, status, priority
		FROM sessions
		WHERE athlete_id = ? AND date >= ? AND date <= ?
		ORDER BY date, id`,
		string(athleteID), w.Start.Format(adapt.DateLayout), lastDayInWindow(w))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []adapt.Session
	for rows.Next() {
		var (
			id, date, discipline, status string
			zone, priority               sql.NullString
			duration                     int
			load                         sql.NullFloat64
		)
		if err := rows.Scan(&id, &date, &discipline, &duration, &load, &zone, &status, &priority); err != nil {
			return nil, err
		}
		d, err := time.ParseInLocation(adapt.DateLayout, date, time.UTC)
		if err != nil {
			return nil, fmt.Errorf("decode session date: %w", err)
		}
		sess := adapt.Session{
			ID:                 adapt.SessionID(id),
			AthleteID:          athleteID,
			Date:               d,
			Discipline:         adapt.Discipline(discipline),
			PlannedDurationMin: duration,
			PrimaryZone:        adapt.Zone(zone.String),
			Status:             adapt.SessionStatus(status),
			Priority:           adapt.PriorityTier(priority.String),
		}
		if load.Valid {
			v := load.Float64
			sess.PlannedLoad = &v
		}
		out = append(out, sess)
	}
	return out, rows.Err()
}

func (s *Store) Readiness(ctx context.Context, athleteID adapt.AthleteID, date time.Time) (*adapt.ReadinessSnapshot, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT score, band, drivers_json, flags_json, missing_json
		FROM readiness_snapshots WHERE athlete_id = ? AND date = ?`,
		string(athleteID), date.Format(adapt.DateLayout))

	var (
		score                         sql.NullFloat64
		band, drivers, flags, missing string
	)
	if err := row.Scan(&score, &band, &drivers, &flags, &missing); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, adapt.ErrReadinessNotFound
		}
		return nil, err
	}

	r := adapt.ReadinessSnapshot{
		AthleteID: athleteID,
		Date:      date,
		Band:      adapt.Band(band),
	}
	if score.Valid {
		v := score.Float64
		r.Score = &v
	}
	if err := json.Unmarshal([]byte(drivers), &r.Drivers); err != nil {
		return nil, fmt.Errorf("decode readiness drivers: %w", err)
	}
	if err := json.Unmarshal([]byte(flags), &r.Flags); err != nil {
		return nil, fmt.Errorf("decode readiness flags: %w", err)
	}
	if err := json.Unmarshal([]byte(missing), &r.MissingSignals); err != nil {
		return nil, fmt.Errorf("decode readiness missing signals: %w", err)
	}
	return &r, nil
}

func (s *Store) DailyLoadWindow(ctx context.Context, athleteID adapt.AthleteID, w adapt.ImpactWindow) ([]adapt.LoadPoint, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT date, chronic_load, acute_load, monotony, ramp_rate_pct
		FROM load_points
		WHERE athlete_id = ? AND date >= ? AND date <= ?
		ORDER BY date`,
		string(athleteID), w.Start.Format(adapt.DateLayout), lastDayInWindow(w))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []adapt.LoadPoint
	for rows.Next() {
		var (
			date                       string
			chronic, acute, mono, ramp sql.NullFloat64
		)
		if err := rows.Scan(&date, &chronic, &acute, &mono, &ramp); err != nil {
			return nil, err
		}
		d, err := time.ParseInLocation(adapt.DateLayout, date, time.UTC)
		if err != nil {
			return nil, fmt.Errorf("decode load point date: %w", err)
		}
		p := adapt.LoadPoint{AthleteID: athleteID, Date: d}
		if chronic.Valid {
			v := chronic.Float64
			p.ChronicLoad = &v
		}
		if acute.Valid {
			v := acute.Float64
			p.AcuteLoad = &v
		}
		if mono.Valid {
			v := mono.Float64
			p.Monotony = &v
		}
		if ramp.Valid {
			v := ramp.Float64
			p.RampRatePct = &v
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

func (s *Store) Blockers(ctx context.Context, athleteID adapt.AthleteID, w adapt.ImpactWindow) ([]adapt.Blocker, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, start_at, end_at, kind, note
		FROM blockers
		WHERE athlete_id = ? AND start_at < ? AND end_at > ?
		ORDER BY start_at`,
		string(athleteID), w.End.Format(time.RFC3339), w.Start.Format(time.RFC3339))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []adapt.Blocker
	for rows.Next() {
		var id, start, end string
		var kind, note sql.NullString
		if err := rows.Scan(&id, &start, &end, &kind, &note); err != nil {
			return nil, err
		}
		st, err := time.Parse(time.RFC3339, start)
		if err != nil {
			return nil, fmt.Errorf("decode blocker start: %w", err)
		}
		en, err := time.Parse(time.RFC3339, end)
		if err != nil {
			return nil, fmt.Errorf("decode blocker end: %w", err)
		}
		out = append(out, adapt.Blocker{
			ID:        id,
			AthleteID: athleteID,
			Start:     st,
			End:       en,
			Kind:      kind.String,
			Note:      note.String,
		})
	}
	return out, rows.Err()
}

// =============================================================================
// PREVIEW STORE
// =============================================================================

func (s *Store) CreatePreview(ctx context.Context, p adapt.AdaptationPreview) error {
	triggers, err := json.Marshal(emptyIfNil(p.Triggers))
	if err != nil {
		return err
	}
	changes, err := json.Marshal(emptyChangesIfNil(p.Changes))
	if err != nil {
		return err
	}
	rationale, err := json.Marshal(p.Rationale)
	if err != nil {
		return err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	// Clear expired rows for this cache identity so a stale row never
	// blocks the fresh insert on the unique indexes.
	if _, err := tx.ExecContext(ctx, `
		DELETE FROM adaptation_previews
		WHERE athlete_id = ? AND checksum = ? AND expires_at <= ?`,
		string(p.AthleteID), p.Checksum, p.CreatedAt.UTC().Format(time.RFC3339Nano)); err != nil {
		return err
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO adaptation_previews
			(id, athlete_id, plan_id, plan_version_before, scope,
			 window_start, window_end, reason, triggers_json, changes_json,
			 rationale_json, checksum, idempotency_key, expires_at, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		p.ID, string(p.AthleteID), string(p.PlanID), p.PlanVersionBefore, string(p.Scope),
		p.Window.Start.UTC().Format(time.RFC3339Nano), p.Window.End.UTC().Format(time.RFC3339Nano),
		string(p.Reason), string(triggers), string(changes),
		string(rationale), p.Checksum, p.IdempotencyKey,
		p.ExpiresAt.UTC().Format(time.RFC3339Nano), p.CreatedAt.UTC().Format(time.RFC3339Nano))
	if err != nil {
		if isUniqueViolation(err) {
			return adapt.ErrStoreConflict
		}
		return err
	}
	return tx.Commit()
}

func (s *Store) GetPreview(ctx context.Context, id string) (*adapt.AdaptationPreview, error) {
	return s.scanPreview(s.db.QueryRowContext(ctx,
		previewSelect+` WHERE id = ?`, id))
}

func (s *Store) FindPreviewByChecksum(ctx context.Context, athleteID adapt.AthleteID, checksum string, now time.Time) (*adapt.AdaptationPreview, error) {
	return s.scanPreview(s.db.QueryRowContext(ctx,
		previewSelect+` WHERE athlete_id = ? AND checksum = ? AND expires_at > ?`,
		string(athleteID), checksum, now.UTC().Format(time.RFC3339Nano)))
}

func (s *Store) FindPreviewByIdempotencyKey(ctx context.Context, athleteID adapt.AthleteID, key, checksum string, now time.Time) (*adapt.AdaptationPreview, error) {
	return s.scanPreview(s.db.QueryRowContext(ctx,
		previewSelect+` WHERE athlete_id = ? AND idempotency_key = ? AND checksum = ? AND expires_at > ?`,
		string(athleteID), key, checksum, now.UTC().Format(time.RFC3339Nano)))
}

func (s *Store) AttachIdempotencyKey(ctx context.Context, previewID, key string) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE adaptation_previews SET idempotency_key = ?
		WHERE id = ? AND idempotency_key = ''`,
		key, previewID)
	if err != nil {
		if isUniqueViolation(err) {
			return adapt.ErrStoreConflict
		}
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return adapt.ErrPreviewNotFound
	}
	return nil
}

func (s *Store) DeleteExpired(ctx context.Context, now time.Time) (int, error) {
	res, err := s.db.ExecContext(ctx, `
		DELETE FROM adaptation_previews WHERE expires_at <= ?`,
		now.UTC().Format(time.RFC3339Nano))
	if err != nil {
		return 0, err
	}
	n, err := res.RowsAffected()
	return int(n), err
}

const previewSelect = `
	SELECT id, athlete_id, plan_id, plan_version_before, scope,
	       window_start, window_end, reason, triggers_json, changes_json,
	       rationale_json, checksum, idempotency_key, expires_at, created_at
	FROM adaptation_previews`

func (s *Store) scanPreview(row *sql.Row) (*adapt.AdaptationPreview, error) {
	var (
		id, athleteID, planID, scope, reason         string
		windowStart, windowEnd, expiresAt, createdAt string
		triggersJSON, changesJSON, rationaleJSON     string
		checksum, idemKey                            string
		versionBefore                                int
	)
	err := row.Scan(&id, &athleteID, &planID, &versionBefore, &scope,
		&windowStart, &windowEnd, &reason, &triggersJSON, &changesJSON,
		&rationaleJSON, &checksum, &idemKey, &expiresAt, &createdAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, adapt.ErrPreviewNotFound
		}
		return nil, err
	}

	p := adapt.AdaptationPreview{
		ID:                id,
		AthleteID:         adapt.AthleteID(athleteID),
		PlanID:            adapt.PlanID(planID),
		PlanVersionBefore: versionBefore,
		Scope:             adapt.Scope(scope),
		Reason:            adapt.ReasonCode(reason),
		Checksum:          checksum,
		IdempotencyKey:    idemKey,
	}
	if p.Window.Start, err = time.Parse(time.RFC3339Nano, windowStart); err != nil {
		return nil, fmt.Errorf("decode preview window start: %w", err)
	}
	if p.Window.End, err = time.Parse(time.RFC3339Nano, windowEnd); err != nil {
		return nil, fmt.Errorf("decode preview window end: %w", err)
	}
	if p.ExpiresAt, err = time.Parse(time.RFC3339Nano, expiresAt); err != nil {
		return nil, fmt.Errorf("decode preview expiry: %w", err)
	}
	if p.CreatedAt, err = time.Parse(time.RFC3339Nano, createdAt); err != nil {
		return nil, fmt.Errorf("decode preview created_at: %w", err)
	}
	if err := json.Unmarshal([]byte(triggersJSON), &p.Triggers); err != nil {
		return nil, fmt.Errorf("decode preview triggers: %w", err)
	}
	if err := json.Unmarshal([]byte(changesJSON), &p.Changes); err != nil {
		return nil, fmt.Errorf("decode preview changes: %w", err)
	}
	if err := json.Unmarshal([]byte(rationaleJSON), &p.Rationale); err != nil {
		return nil, fmt.Errorf("decode preview rationale: %w", err)
	}
	return &p, nil
}

// =============================================================================
// DECISION STORE
// =============================================================================

// InsertDecision records d; when it advances the plan, the version
// moves in the same transaction, so a failed insert never leaves the
// version moved.
func (s *Store) InsertDecision(ctx context.Context, d adapt.Decision) error {
	finalChanges, err := json.Marshal(emptyChangesIfNil(d.FinalChanges))
	if err != nil {
		return err
	}
	var after any
	if d.PlanVersionAfter != nil {
		after = *d.PlanVersionAfter
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO decisions
			(id, preview_id, athlete_id, plan_id, decision, final_changes_json,
			 plan_version_before, plan_version_after, rationale, decided_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		d.ID, d.PreviewID, string(d.AthleteID), string(d.PlanID), string(d.Type),
		string(finalChanges), d.PlanVersionBefore, after, d.Rationale,
		d.DecidedAt.UTC().Format(time.RFC3339Nano))
	if err != nil {
		if isUniqueViolation(err) {
			return adapt.ErrDecisionExists
		}
		return err
	}

	if d.PlanVersionAfter != nil {
		res, err := tx.ExecContext(ctx, `
			UPDATE plans SET version = ? WHERE id = ?`,
			*d.PlanVersionAfter, string(d.PlanID))
		if err != nil {
			return err
		}
		n, err := res.RowsAffected()
		if err != nil {
			return err
		}
		if n == 0 {
			return adapt.ErrPlanNotFound
		}
	}
	return tx.Commit()
}

func (s *Store) DecisionForPreview(ctx context.Context, previewID string) (*adapt.Decision, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, athlete_id, plan_id, decision, final_changes_json,
		       plan_version_before, plan_version_after, rationale, decided_at
		FROM decisions WHERE preview_id = ?`, previewID)

	var (
		id, athleteID, planID, decision, changesJSON, decidedAt string
		rationale                                               sql.NullString
		versionBefore                                           int
		versionAfter                                            sql.NullInt64
	)
	err := row.Scan(&id, &athleteID, &planID, &decision, &changesJSON,
		&versionBefore, &versionAfter, &rationale, &decidedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, adapt.ErrDecisionNotFound
		}
		return nil, err
	}

	d := adapt.Decision{
		ID:                id,
		PreviewID:         previewID,
		AthleteID:         adapt.AthleteID(athleteID),
		PlanID:            adapt.PlanID(planID),
		Type:              adapt.DecisionType(decision),
		PlanVersionBefore: versionBefore,
		Rationale:         rationale.String,
	}
	if versionAfter.Valid {
		v := int(versionAfter.Int64)
		d.PlanVersionAfter = &v
	}
	if err := json.Unmarshal([]byte(changesJSON), &d.FinalChanges); err != nil {
		return nil, fmt.Errorf("decode decision changes: %w", err)
	}
	if d.DecidedAt, err = time.Parse(time.RFC3339Nano, decidedAt); err != nil {
		return nil, fmt.Errorf("decode decision timestamp: %w", err)
	}
	return &d, nil
}

// =============================================================================
// ROW HELPERS
// =============================================================================

// planBlockRow is the JSON persistence shape for a plan phase block.
type planBlockRow struct {
	Phase string `json:"phase"`
	Start string `json:"start"`
	End   string `json:"end"`
}

func planBlocksToRows(blocks []adapt.PlanBlock) []planBlockRow {
	rows := make([]planBlockRow, len(blocks))
	for i, b := range blocks {
		rows[i] = planBlockRow{
			Phase: string(b.Phase),
			Start: b.Start.Format(adapt.DateLayout),
			End:   b.End.Format(adapt.DateLayout),
		}
	}
	return rows
}

func planBlocksFromRows(rows []planBlockRow) ([]adapt.PlanBlock, error) {
	blocks := make([]adapt.PlanBlock, len(rows))
	for i, r := range rows {
		start, err := time.ParseInLocation(adapt.DateLayout, r.Start, time.UTC)
		if err != nil {
			return nil, fmt.Errorf("decode plan block start: %w", err)
		}
		end, err := time.ParseInLocation(adapt.DateLayout, r.End, time.UTC)
		if err != nil {
			return nil, fmt.Errorf("decode plan block end: %w", err)
		}
		blocks[i] = adapt.PlanBlock{Phase: adapt.PlanPhase(r.Phase), Start: start, End: end}
	}
	return blocks, nil
}

func emptyIfNil(ss []string) []string {
	if ss == nil {
		return []string{}
	}
	return ss
}

func emptyChangesIfNil(cs []adapt.DiffChange) []adapt.DiffChange {
	if cs == nil {
		return []adapt.DiffChange{}
	}
	return cs
}
