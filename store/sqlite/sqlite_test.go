package sqlite_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/warp/roster-engine/roster"
	"github.com/warp/roster-engine/store/sqlite"
)

// =============================================================================
// TEST SETUP
// =============================================================================

func newTestStore(t *testing.T) *sqlite.Store {
	t.Helper()
	store, err := sqlite.New(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	ctx := context.Background()
	require.NoError(t, store.SaveAnchor(ctx, roster.AnchorConfig{
		AnchorNumber:       12,
		AnchorYear:         2025,
		AnchorStart:        roster.NewTimePoint(2025, time.October, 11),
		CycleDays:          28,
		CyclesPerYear:      13,
		PublishOffsetDays:  10,
		DeadlineOffsetDays: 21,
	}))
	require.NoError(t, store.SaveRules(ctx, []roster.CapacityRule{
		{Category: "Flight", MaxPerCycle: 2, BlackoutMonths: []int{12}},
	}))
	require.NoError(t, store.SaveStaff(ctx, []roster.StaffMember{
		{ID: "cap-1", Rank: "Captain", Active: true},
		{ID: "cap-2", Rank: "Captain", Active: true},
		{ID: "cap-3", Rank: "Captain", Active: true},
	}))
	require.NoError(t, store.SaveMinimums(ctx, map[roster.Rank]int{"Captain": 2}))
	return store
}

func flightAssignment(id string, number, year int) roster.Assignment {
	return roster.Assignment{
		ObligationID: roster.ObligationID(id),
		Category:     "Flight",
		CycleNumber:  number,
		CycleYear:    year,
		AssignedAt:   roster.NewTimePoint(2025, time.October, 12),
	}
}

func captainLeave(id, subject string, start, end roster.TimePoint) roster.ScheduleRequest {
	return roster.ScheduleRequest{
		ID:          roster.RequestID(id),
		SubjectID:   roster.StaffID(subject),
		Rank:        "Captain",
		Dates:       roster.NewDateRange(start, end),
		Kind:        roster.KindTimeOff,
		RequestedAt: roster.NewTimePoint(2025, time.October, 1),
	}
}

// =============================================================================
// ROUND TRIPS
// =============================================================================

func TestStore_AnchorRoundTrip(t *testing.T) {
	store := newTestStore(t)
	cfg, err := store.Anchor(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 12, cfg.AnchorNumber)
	assert.Equal(t, 2025, cfg.AnchorYear)
	assert.True(t, cfg.AnchorStart.Equal(roster.NewTimePoint(2025, time.October, 11)))
	assert.Equal(t, 28, cfg.CycleDays)
}

func TestStore_AnchorMissing_ConfigurationError(t *testing.T) {
	store, err := sqlite.New(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	_, err = store.Anchor(context.Background())
	require.Error(t, err)
	assert.True(t, roster.IsConfigurationError(err))
}

func TestStore_SnapshotRoundTrip(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)

	require.NoError(t, store.SaveObligations(ctx, []roster.RenewalObligation{{
		ID:               "ob-1",
		Category:         "Flight",
		OwnerID:          "cap-1",
		DueBy:            roster.NewTimePoint(2025, time.November, 1),
		EarliestEligible: roster.NewTimePoint(2025, time.October, 1),
	}}))
	require.NoError(t, store.SubmitRequest(ctx, captainLeave("req-1", "cap-1",
		roster.NewTimePoint(2025, time.November, 3), roster.NewTimePoint(2025, time.November, 5))))

	snap, err := store.Snapshot(ctx)
	require.NoError(t, err)

	assert.Len(t, snap.Rules, 1)
	assert.Equal(t, []int{12}, snap.Rules[0].BlackoutMonths)
	assert.Len(t, snap.Staff, 3)
	assert.Len(t, snap.Obligations, 1)
	assert.True(t, snap.Obligations[0].DueBy.Equal(roster.NewTimePoint(2025, time.November, 1)))
	assert.Len(t, snap.Pending, 1)
	assert.Equal(t, 2, snap.MinimumByRank["Captain"])
}

func TestStore_SaveObligations_Idempotent(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)

	ob := roster.RenewalObligation{
		ID: "ob-1", Category: "Flight", OwnerID: "cap-1",
		DueBy:            roster.NewTimePoint(2025, time.November, 1),
		EarliestEligible: roster.NewTimePoint(2025, time.October, 1),
	}
	require.NoError(t, store.SaveObligations(ctx, []roster.RenewalObligation{ob}))
	require.NoError(t, store.SaveObligations(ctx, []roster.RenewalObligation{ob}))

	snap, err := store.Snapshot(ctx)
	require.NoError(t, err)
	assert.Len(t, snap.Obligations, 1)
}

// =============================================================================
// COMMIT-TIME RE-VALIDATION
// =============================================================================

func TestStore_CommitAssignments_CapacityRace(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)

	require.NoError(t, store.CommitAssignments(ctx, []roster.Assignment{
		flightAssignment("ob-1", 12, 2025),
		flightAssignment("ob-2", 12, 2025),
	}))

	err := store.CommitAssignments(ctx, []roster.Assignment{flightAssignment("ob-3", 12, 2025)})
	require.Error(t, err)
	assert.True(t, roster.IsRetryable(err))

	snap, err := store.Snapshot(ctx)
	require.NoError(t, err)
	assert.Len(t, snap.Assignments, 2)
}

func TestStore_CommitAssignments_RollbackOnMidBatchFailure(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)

	require.NoError(t, store.CommitAssignments(ctx, []roster.Assignment{flightAssignment("ob-1", 12, 2025)}))

	err := store.CommitAssignments(ctx, []roster.Assignment{
		flightAssignment("ob-2", 12, 2025),
		flightAssignment("ob-3", 12, 2025), // third of max 2
	})
	require.Error(t, err)

	snap, err := store.Snapshot(ctx)
	require.NoError(t, err)
	assert.Len(t, snap.Assignments, 1, "failed batch must roll back entirely")
}

func TestStore_CommitAssignments_DuplicateObligation(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)

	require.NoError(t, store.CommitAssignments(ctx, []roster.Assignment{flightAssignment("ob-1", 12, 2025)}))
	err := store.CommitAssignments(ctx, []roster.Assignment{flightAssignment("ob-1", 13, 2025)})
	require.ErrorIs(t, err, roster.ErrDuplicateAssignment)
}

func TestStore_ApproveRequest_StaffingRace(t *testing.T) {
	// Two overlapping Captain absences against 3 Captains, minimum 2: the
	// second approval must re-validate and lose.
	ctx := context.Background()
	store := newTestStore(t)

	require.NoError(t, store.SubmitRequest(ctx, captainLeave("req-1", "cap-1",
		roster.NewTimePoint(2025, time.November, 3), roster.NewTimePoint(2025, time.November, 5))))
	require.NoError(t, store.SubmitRequest(ctx, captainLeave("req-2", "cap-2",
		roster.NewTimePoint(2025, time.November, 4), roster.NewTimePoint(2025, time.November, 4))))

	require.NoError(t, store.ApproveRequest(ctx, "req-1"))

	err := store.ApproveRequest(ctx, "req-2")
	require.Error(t, err)
	assert.True(t, roster.IsRetryable(err))

	snap, err := store.Snapshot(ctx)
	require.NoError(t, err)
	assert.Len(t, snap.Approved, 1)
	assert.Len(t, snap.Pending, 1)
}

func TestStore_ApproveRequest_NotFound(t *testing.T) {
	store := newTestStore(t)
	err := store.ApproveRequest(context.Background(), "missing")
	require.ErrorIs(t, err, roster.ErrRequestNotFound)
}

func TestStore_SubmitRequest_DuplicateID(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)

	first := captainLeave("req-1", "cap-1",
		roster.NewTimePoint(2025, time.November, 3), roster.NewTimePoint(2025, time.November, 5))
	require.NoError(t, store.SubmitRequest(ctx, first))

	// Resubmitting the same ID must surface the sentinel, not a raw
	// driver error, so callers can answer with a conflict status.
	err := store.SubmitRequest(ctx, first)
	require.ErrorIs(t, err, roster.ErrDuplicateRequest)

	snap, err := store.Snapshot(ctx)
	require.NoError(t, err)
	assert.Len(t, snap.Pending, 1)
}

func TestStore_RejectRequest_RemovesPending(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)

	require.NoError(t, store.SubmitRequest(ctx, captainLeave("req-1", "cap-1",
		roster.NewTimePoint(2025, time.November, 3), roster.NewTimePoint(2025, time.November, 5))))
	require.NoError(t, store.RejectRequest(ctx, "req-1"))

	snap, err := store.Snapshot(ctx)
	require.NoError(t, err)
	assert.Empty(t, snap.Pending)
}
