package store_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hristiyan90/momentom/adapt"
	"github.com/hristiyan90/momentom/adapt/store"
)

var now = time.Date(2026, time.March, 4, 9, 0, 0, 0, time.UTC)

func livePreview(id, checksum, key string) adapt.AdaptationPreview {
	return adapt.AdaptationPreview{
		ID:             id,
		AthleteID:      "ath-1",
		PlanID:         "plan-1",
		Checksum:       checksum,
		IdempotencyKey: key,
		ExpiresAt:      now.Add(24 * time.Hour),
		CreatedAt:      now,
	}
}

func TestMemory_CreatePreview_ChecksumUnique(t *testing.T) {
	// GIVEN: A live preview for (athlete, checksum)
	// WHEN: Creating a second with the same checksum
	// THEN: The create-if-absent race loser sees ErrStoreConflict

	ctx := context.Background()
	m := store.NewMemory()
	require.NoError(t, m.CreatePreview(ctx, livePreview("p1", "aaaa", "")))

	err := m.CreatePreview(ctx, livePreview("p2", "aaaa", ""))
	assert.ErrorIs(t, err, adapt.ErrStoreConflict)
}

func TestMemory_CreatePreview_ExpiredRowDoesNotBlock(t *testing.T) {
	ctx := context.Background()
	m := store.NewMemory()
	stale := livePreview("p1", "aaaa", "")
	stale.ExpiresAt = now.Add(-time.Hour)
	require.NoError(t, m.CreatePreview(ctx, stale))

	assert.NoError(t, m.CreatePreview(ctx, livePreview("p2", "aaaa", "")))
}

func TestMemory_AttachIdempotencyKey(t *testing.T) {
	// Attaching is idempotent for the same key but conflicts across keys.
	ctx := context.Background()
	m := store.NewMemory()
	require.NoError(t, m.CreatePreview(ctx, livePreview("p1", "aaaa", "")))

	require.NoError(t, m.AttachIdempotencyKey(ctx, "p1", "key-one-1234"))
	require.NoError(t, m.AttachIdempotencyKey(ctx, "p1", "key-one-1234"))

	err := m.AttachIdempotencyKey(ctx, "p1", "key-two-5678")
	assert.ErrorIs(t, err, adapt.ErrStoreConflict)

	err = m.AttachIdempotencyKey(ctx, "ghost", "key-one-1234")
	assert.ErrorIs(t, err, adapt.ErrPreviewNotFound)
}

func TestMemory_FindPreview_SkipsExpired(t *testing.T) {
	ctx := context.Background()
	m := store.NewMemory()
	require.NoError(t, m.CreatePreview(ctx, livePreview("p1", "aaaa", "key-one-1234")))

	later := now.Add(25 * time.Hour)
	_, err := m.FindPreviewByChecksum(ctx, "ath-1", "aaaa", later)
	assert.ErrorIs(t, err, adapt.ErrPreviewNotFound)
	_, err = m.FindPreviewByIdempotencyKey(ctx, "ath-1", "key-one-1234", "aaaa", later)
	assert.ErrorIs(t, err, adapt.ErrPreviewNotFound)

	// GetPreview by id still returns expired rows; expiry is the caller's
	// concern there.
	p, err := m.GetPreview(ctx, "p1")
	require.NoError(t, err)
	assert.True(t, p.Expired(later))
}

func TestMemory_DeleteExpired(t *testing.T) {
	ctx := context.Background()
	m := store.NewMemory()
	stale := livePreview("p1", "aaaa", "")
	stale.ExpiresAt = now.Add(-time.Minute)
	require.NoError(t, m.CreatePreview(ctx, stale))
	require.NoError(t, m.CreatePreview(ctx, livePreview("p2", "bbbb", "")))

	n, err := m.DeleteExpired(ctx, now)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	_, err = m.GetPreview(ctx, "p1")
	assert.ErrorIs(t, err, adapt.ErrPreviewNotFound)
	_, err = m.GetPreview(ctx, "p2")
	assert.NoError(t, err)
}

func TestMemory_CreatePreview_KeyReuseAcrossChecksums(t *testing.T) {
	// GIVEN: A live preview created under an idempotency key
	// WHEN: The same key arrives with a different checksum (inputs moved,
	//       e.g. a plan-version bump)
	// THEN: That is a fresh cache identity, not a conflict; uniqueness is
	//       over (athlete, key, checksum), matching the SQLite index

	ctx := context.Background()
	m := store.NewMemory()
	require.NoError(t, m.CreatePreview(ctx, livePreview("p1", "aaaa", "retry-key-01")))

	assert.NoError(t, m.CreatePreview(ctx, livePreview("p2", "bbbb", "retry-key-01")))

	err := m.CreatePreview(ctx, livePreview("p3", "aaaa", "retry-key-01"))
	assert.ErrorIs(t, err, adapt.ErrStoreConflict)
}

func seedDecisionPlan(t *testing.T, m *store.Memory, version int) {
	t.Helper()
	require.NoError(t, m.PutPlan(context.Background(),
		adapt.Plan{ID: "plan-1", AthleteID: "ath-1", Version: version}))
}

func versionAfter(v int) *int { return &v }

func TestMemory_InsertDecision_AdvancesPlanVersionAtomically(t *testing.T) {
	// GIVEN: A plan at version 7
	// WHEN: Inserting a decision that advances it to 8
	// THEN: The decision and the version move together

	ctx := context.Background()
	m := store.NewMemory()
	seedDecisionPlan(t, m, 7)

	d := adapt.Decision{
		ID:                "d1",
		PreviewID:         "p1",
		AthleteID:         "ath-1",
		PlanID:            "plan-1",
		Type:              adapt.DecisionAccepted,
		PlanVersionBefore: 7,
		PlanVersionAfter:  versionAfter(8),
	}
	require.NoError(t, m.InsertDecision(ctx, d))

	plan, err := m.PlanSummary(ctx, "ath-1")
	require.NoError(t, err)
	assert.Equal(t, 8, plan.Version)
}

func TestMemory_InsertDecision_FailedInsertLeavesVersionUntouched(t *testing.T) {
	// GIVEN: A preview that already has a recorded decision
	// WHEN: A duplicate insert carrying a version advance fails
	// THEN: The plan version does not move on the error branch

	ctx := context.Background()
	m := store.NewMemory()
	seedDecisionPlan(t, m, 7)

	first := adapt.Decision{
		ID: "d1", PreviewID: "p1", AthleteID: "ath-1", PlanID: "plan-1",
		Type: adapt.DecisionAccepted, PlanVersionBefore: 7, PlanVersionAfter: versionAfter(8),
	}
	require.NoError(t, m.InsertDecision(ctx, first))

	dup := first
	dup.ID = "d2"
	dup.PlanVersionBefore = 8
	dup.PlanVersionAfter = versionAfter(9)
	err := m.InsertDecision(ctx, dup)
	assert.ErrorIs(t, err, adapt.ErrDecisionExists)

	plan, err := m.PlanSummary(ctx, "ath-1")
	require.NoError(t, err)
	assert.Equal(t, 8, plan.Version, "failed insert must not advance the version")
}

func TestMemory_InsertDecision_UnknownPlanRejectedWithoutInsert(t *testing.T) {
	ctx := context.Background()
	m := store.NewMemory()

	d := adapt.Decision{
		ID: "d1", PreviewID: "p1", AthleteID: "ath-1", PlanID: "plan-ghost",
		Type: adapt.DecisionAccepted, PlanVersionBefore: 1, PlanVersionAfter: versionAfter(2),
	}
	err := m.InsertDecision(ctx, d)
	assert.ErrorIs(t, err, adapt.ErrPlanNotFound)

	_, err = m.DecisionForPreview(ctx, "p1")
	assert.ErrorIs(t, err, adapt.ErrDecisionNotFound)
}

func TestMemory_DecisionForPreview_NoneRecorded(t *testing.T) {
	// "No decision yet" is its own not-found condition, distinct from the
	// preview sentinel.
	m := store.NewMemory()
	_, err := m.DecisionForPreview(context.Background(), "p-none")
	assert.ErrorIs(t, err, adapt.ErrDecisionNotFound)
	assert.True(t, adapt.IsNotFound(err))
}
