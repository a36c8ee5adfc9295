package store_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/warp/roster-engine/roster"
	"github.com/warp/roster-engine/roster/store"
)

// =============================================================================
// TEST SETUP
// =============================================================================

func testAnchor() roster.AnchorConfig {
	return roster.AnchorConfig{
		AnchorNumber:       12,
		AnchorYear:         2025,
		AnchorStart:        roster.NewTimePoint(2025, time.October, 11),
		CycleDays:          28,
		CyclesPerYear:      13,
		PublishOffsetDays:  10,
		DeadlineOffsetDays: 21,
	}
}

func newSeededMemory() *store.Memory {
	m := store.NewMemory(testAnchor())
	m.SeedRules([]roster.CapacityRule{{Category: "Flight", MaxPerCycle: 2}})
	m.SeedStaff([]roster.StaffMember{
		{ID: "cap-1", Rank: "Captain", Active: true},
		{ID: "cap-2", Rank: "Captain", Active: true},
		{ID: "cap-3", Rank: "Captain", Active: true},
	})
	m.SeedMinimums(map[roster.Rank]int{"Captain": 2})
	return m
}

func assignment(id string, number, year int) roster.Assignment {
	return roster.Assignment{
		ObligationID: roster.ObligationID(id),
		Category:     "Flight",
		CycleNumber:  number,
		CycleYear:    year,
		AssignedAt:   roster.NewTimePoint(2025, time.October, 12),
	}
}

func timeOff(id, subject string, start, end roster.TimePoint) roster.ScheduleRequest {
	return roster.ScheduleRequest{
		ID:        roster.RequestID(id),
		SubjectID: roster.StaffID(subject),
		Rank:      "Captain",
		Dates:     roster.NewDateRange(start, end),
		Kind:      roster.KindTimeOff,
	}
}

// =============================================================================
// ASSIGNMENT COMMITS
// =============================================================================

func TestMemory_CommitAssignments_WithinCapacity(t *testing.T) {
	ctx := context.Background()
	m := newSeededMemory()

	err := m.CommitAssignments(ctx, []roster.Assignment{
		assignment("ob-1", 12, 2025),
		assignment("ob-2", 12, 2025),
	})
	require.NoError(t, err)

	snap, err := m.Snapshot(ctx)
	require.NoError(t, err)
	assert.Len(t, snap.Assignments, 2)
}

func TestMemory_CommitAssignments_CapacityRace_Rejected(t *testing.T) {
	// GIVEN: Capacity 2, with 2 assignments already committed
	// WHEN: A third commit arrives, evaluated against a stale snapshot
	// THEN: Re-validation at commit time rejects it with ErrCommitRace and
	// persists nothing.
	ctx := context.Background()
	m := newSeededMemory()

	require.NoError(t, m.CommitAssignments(ctx, []roster.Assignment{
		assignment("ob-1", 12, 2025),
		assignment("ob-2", 12, 2025),
	}))

	err := m.CommitAssignments(ctx, []roster.Assignment{assignment("ob-3", 12, 2025)})
	require.Error(t, err)
	assert.True(t, roster.IsRetryable(err), "capacity race should be retryable")

	snap, err := m.Snapshot(ctx)
	require.NoError(t, err)
	assert.Len(t, snap.Assignments, 2, "losing commit must persist nothing")
}

func TestMemory_CommitAssignments_Batch_AllOrNothing(t *testing.T) {
	// A batch where the second assignment overflows must not keep the first.
	ctx := context.Background()
	m := newSeededMemory()

	require.NoError(t, m.CommitAssignments(ctx, []roster.Assignment{assignment("ob-1", 12, 2025)}))

	err := m.CommitAssignments(ctx, []roster.Assignment{
		assignment("ob-2", 12, 2025),
		assignment("ob-3", 12, 2025), // would be third of max 2
	})
	require.Error(t, err)

	snap, err := m.Snapshot(ctx)
	require.NoError(t, err)
	assert.Len(t, snap.Assignments, 1)
}

func TestMemory_CommitAssignments_DuplicateObligation_Rejected(t *testing.T) {
	// At most one assignment per obligation.
	ctx := context.Background()
	m := newSeededMemory()

	require.NoError(t, m.CommitAssignments(ctx, []roster.Assignment{assignment("ob-1", 12, 2025)}))

	err := m.CommitAssignments(ctx, []roster.Assignment{assignment("ob-1", 13, 2025)})
	require.ErrorIs(t, err, roster.ErrDuplicateAssignment)
}

// =============================================================================
// REQUEST LIFECYCLE
// =============================================================================

func TestMemory_SubmitRequest_DuplicateID(t *testing.T) {
	ctx := context.Background()
	m := newSeededMemory()

	req := timeOff("req-1", "cap-1",
		roster.NewTimePoint(2025, time.November, 3), roster.NewTimePoint(2025, time.November, 5))
	require.NoError(t, m.SubmitRequest(ctx, req))
	require.ErrorIs(t, m.SubmitRequest(ctx, req), roster.ErrDuplicateRequest)

	snap, _ := m.Snapshot(ctx)
	assert.Len(t, snap.Pending, 1)
}

func TestMemory_ApproveRequest_MovesToApprovedSet(t *testing.T) {
	ctx := context.Background()
	m := newSeededMemory()

	req := timeOff("req-1", "cap-1",
		roster.NewTimePoint(2025, time.November, 3), roster.NewTimePoint(2025, time.November, 5))
	require.NoError(t, m.SubmitRequest(ctx, req))

	snap, _ := m.Snapshot(ctx)
	require.Len(t, snap.Pending, 1)
	require.Empty(t, snap.Approved)

	require.NoError(t, m.ApproveRequest(ctx, "req-1"))

	snap, _ = m.Snapshot(ctx)
	assert.Empty(t, snap.Pending)
	assert.Len(t, snap.Approved, 1)
}

func TestMemory_ApproveRequest_StaffingRace_Rejected(t *testing.T) {
	// GIVEN: 3 Captains, minimum 2; two overlapping requests each fine in
	// isolation
	// WHEN: Both are approved in sequence
	// THEN: The second approval re-validates against the now-approved first
	// one, sees 1 < 2 on the overlap, and loses the race.
	ctx := context.Background()
	m := newSeededMemory()

	first := timeOff("req-1", "cap-1",
		roster.NewTimePoint(2025, time.November, 3), roster.NewTimePoint(2025, time.November, 5))
	second := timeOff("req-2", "cap-2",
		roster.NewTimePoint(2025, time.November, 4), roster.NewTimePoint(2025, time.November, 4))

	require.NoError(t, m.SubmitRequest(ctx, first))
	require.NoError(t, m.SubmitRequest(ctx, second))

	require.NoError(t, m.ApproveRequest(ctx, "req-1"))

	err := m.ApproveRequest(ctx, "req-2")
	require.Error(t, err)
	assert.True(t, roster.IsRetryable(err))

	snap, _ := m.Snapshot(ctx)
	assert.Len(t, snap.Approved, 1, "only the first approval may commit")
	assert.Len(t, snap.Pending, 1, "loser stays pending for escalation")
}

func TestMemory_RejectRequest_RemovesPending(t *testing.T) {
	ctx := context.Background()
	m := newSeededMemory()

	req := timeOff("req-1", "cap-1",
		roster.NewTimePoint(2025, time.November, 3), roster.NewTimePoint(2025, time.November, 5))
	require.NoError(t, m.SubmitRequest(ctx, req))
	require.NoError(t, m.RejectRequest(ctx, "req-1"))

	snap, _ := m.Snapshot(ctx)
	assert.Empty(t, snap.Pending)

	err := m.ApproveRequest(ctx, "req-1")
	require.ErrorIs(t, err, roster.ErrRequestNotFound)
}

func TestMemory_SnapshotIsACopy(t *testing.T) {
	// Mutating a snapshot must not leak back into the store.
	ctx := context.Background()
	m := newSeededMemory()

	snap, err := m.Snapshot(ctx)
	require.NoError(t, err)
	snap.Rules[0].MaxPerCycle = 99

	fresh, err := m.Snapshot(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, fresh.Rules[0].MaxPerCycle)
}
