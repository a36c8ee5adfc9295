/*
store.go - Persistence interface between the engine and its callers

PURPOSE:
  The engine is pure: every evaluation reads one snapshot and computes.
  This file defines the snapshot it reads and the commit contract the
  persistence layer must honor.

THE COMMIT CONTRACT:
  Two concurrent callers can both evaluate against the same snapshot,
  both see "ok", and both try to commit - which would overshoot a
  capacity ceiling or break a staffing minimum. Implementations MUST
  re-validate the relevant invariant at commit time under a lock or
  serializable transaction scoped to the contended key
  ((category, cycle) for assignments, (rank, date range) for approvals),
  and return ErrCommitRace on conflict. Evaluations are cheap to re-run
  against a fresh snapshot, so callers retry.

SNAPSHOT SEMANTICS:
  Snapshot() returns a consistent read of all current commitments. The
  engine never reads the store mid-computation; state is read once per
  call and passed in.

IMPLEMENTATIONS:
  - roster/store/memory.go: In-memory, mutex-guarded (tests/dev)
  - store/sqlite/sqlite.go: SQLite with transactional re-validation

SEE ALSO:
  - allocator.go: Produces the assignments committed here
  - conflict.go: Produces the advisory conflicts checked before approval
*/
package roster

import "context"

// =============================================================================
// SNAPSHOT - One consistent read of current commitments
// =============================================================================

// Snapshot is everything the pure engine needs for one evaluation.
type Snapshot struct {
	Rules         []CapacityRule
	Obligations   []RenewalObligation
	Assignments   []Assignment
	Staff         []StaffMember
	Pending       []ScheduleRequest
	Approved      []ScheduleRequest
	MinimumByRank map[Rank]int
}

// =============================================================================
// REPOSITORY - Read snapshots, commit under re-validation
// =============================================================================

// Repository is the engine's view of persistence. All writes re-validate
// their invariant at commit time (see THE COMMIT CONTRACT above).
type Repository interface {
	// Anchor returns the cycle-grid configuration.
	Anchor(ctx context.Context) (AnchorConfig, error)

	// Snapshot returns a consistent read of all current commitments.
	Snapshot(ctx context.Context) (*Snapshot, error)

	// CommitAssignments persists allocator output atomically. Re-validates
	// the per-(category, cycle) capacity count and the one-assignment-per-
	// obligation invariant; returns ErrCommitRace or ErrDuplicateAssignment
	// without persisting anything on violation.
	CommitAssignments(ctx context.Context, assignments []Assignment) error

	// SubmitRequest records a request as pending. Detection is advisory,
	// so submission never fails on conflicts.
	SubmitRequest(ctx context.Context, req ScheduleRequest) error

	// ApproveRequest moves a pending request to approved. Re-validates the
	// staffing minimum for the request's range against the approved set at
	// commit time; returns ErrCommitRace on shortfall.
	ApproveRequest(ctx context.Context, id RequestID) error

	// RejectRequest removes a pending request.
	RejectRequest(ctx context.Context, id RequestID) error
}
