// Package store provides Repository implementations.
package store

import (
	"context"
	"fmt"
	"sync"

	"github.com/warp/roster-engine/roster"
)

// =============================================================================
// MEMORY STORE - In-memory implementation (for testing/dev)
// =============================================================================

// Memory implements roster.Repository with a single mutex standing in for
// the per-key locks a database would take. Commit-time re-validation runs
// inside the lock, so the commit contract holds even against concurrent
// callers.
type Memory struct {
	mu sync.RWMutex

	anchor      roster.AnchorConfig
	rules       []roster.CapacityRule
	obligations []roster.RenewalObligation
	assignments []roster.Assignment
	staff       []roster.StaffMember
	minimums    map[roster.Rank]int

	requests map[roster.RequestID]requestRecord
}

type requestStatus string

const (
	statusPending  requestStatus = "pending"
	statusApproved requestStatus = "approved"
)

type requestRecord struct {
	request roster.ScheduleRequest
	status  requestStatus
}

func NewMemory(anchor roster.AnchorConfig) *Memory {
	return &Memory{
		anchor:   anchor,
		minimums: make(map[roster.Rank]int),
		requests: make(map[roster.RequestID]requestRecord),
	}
}

// =============================================================================
// SEEDING - Test/dev state setup
// =============================================================================

func (m *Memory) SeedRules(rules []roster.CapacityRule) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.rules = append([]roster.CapacityRule(nil), rules...)
}

func (m *Memory) SeedStaff(staff []roster.StaffMember) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.staff = append([]roster.StaffMember(nil), staff...)
}

func (m *Memory) SeedObligations(obligations []roster.RenewalObligation) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.obligations = append([]roster.RenewalObligation(nil), obligations...)
}

func (m *Memory) SeedMinimums(minimums map[roster.Rank]int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.minimums = make(map[roster.Rank]int, len(minimums))
	for rank, min := range minimums {
		m.minimums[rank] = min
	}
}

// RemoveObligations drops satisfied obligations from the backlog. The
// external compliance system owns backlog lifecycle; this mirrors it.
func (m *Memory) RemoveObligations(ids []roster.ObligationID) {
	m.mu.Lock()
	defer m.mu.Unlock()
	drop := make(map[roster.ObligationID]bool, len(ids))
	for _, id := range ids {
		drop[id] = true
	}
	kept := m.obligations[:0]
	for _, ob := range m.obligations {
		if !drop[ob.ID] {
			kept = append(kept, ob)
		}
	}
	m.obligations = kept
}

// =============================================================================
// REPOSITORY - Reads
// =============================================================================

func (m *Memory) Anchor(_ context.Context) (roster.AnchorConfig, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.anchor, nil
}

func (m *Memory) Snapshot(_ context.Context) (*roster.Snapshot, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.snapshotLocked(), nil
}

func (m *Memory) snapshotLocked() *roster.Snapshot {
	snap := &roster.Snapshot{
		Rules:         append([]roster.CapacityRule(nil), m.rules...),
		Obligations:   append([]roster.RenewalObligation(nil), m.obligations...),
		Assignments:   append([]roster.Assignment(nil), m.assignments...),
		Staff:         append([]roster.StaffMember(nil), m.staff...),
		MinimumByRank: make(map[roster.Rank]int, len(m.minimums)),
	}
	for rank, min := range m.minimums {
		snap.MinimumByRank[rank] = min
	}
	for _, rec := range m.requests {
		switch rec.status {
		case statusPending:
			snap.Pending = append(snap.Pending, rec.request)
		case statusApproved:
			snap.Approved = append(snap.Approved, rec.request)
		}
	}
	return snap
}

// =============================================================================
// REPOSITORY - Commits with re-validation
// =============================================================================

// CommitAssignments re-checks capacity counts under the lock before
// persisting. All-or-nothing.
func (m *Memory) CommitAssignments(_ context.Context, assignments []roster.Assignment) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	rules := make(map[roster.Category]roster.CapacityRule, len(m.rules))
	for _, r := range m.rules {
		rules[r.Category] = r
	}

	type slot struct {
		category roster.Category
		number   int
		year     int
	}
	counts := make(map[slot]int)
	assigned := make(map[roster.ObligationID]bool, len(m.assignments))
	for _, a := range m.assignments {
		counts[slot{a.Category, a.CycleNumber, a.CycleYear}]++
		assigned[a.ObligationID] = true
	}

	for _, a := range assignments {
		if assigned[a.ObligationID] {
			return fmt.Errorf("obligation %s: %w", a.ObligationID, roster.ErrDuplicateAssignment)
		}
		assigned[a.ObligationID] = true

		k := slot{a.Category, a.CycleNumber, a.CycleYear}
		counts[k]++
		rule, ok := rules[a.Category]
		if !ok || counts[k] > rule.MaxPerCycle {
			return &roster.CommitRaceError{
				Invariant: "capacity",
				Detail: fmt.Sprintf("category %q in %s would hold %d of %d",
					a.Category, roster.CycleCode(a.CycleNumber, a.CycleYear), counts[k], rule.MaxPerCycle),
			}
		}
	}

	m.assignments = append(m.assignments, assignments...)
	return nil
}

func (m *Memory) SubmitRequest(_ context.Context, req roster.ScheduleRequest) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, exists := m.requests[req.ID]; exists {
		return fmt.Errorf("request %s: %w", req.ID, roster.ErrDuplicateRequest)
	}
	m.requests[req.ID] = requestRecord{request: req, status: statusPending}
	return nil
}

// ApproveRequest re-runs the staffing check against the CURRENT approved
// set under the lock. A request that looked fine against an older
// snapshot loses the race here instead of breaking the minimum.
func (m *Memory) ApproveRequest(_ context.Context, id roster.RequestID) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	rec, ok := m.requests[id]
	if !ok || rec.status != statusPending {
		return fmt.Errorf("request %s: %w", id, roster.ErrRequestNotFound)
	}

	var approved []roster.ScheduleRequest
	for _, other := range m.requests {
		if other.status == statusApproved {
			approved = append(approved, other.request)
		}
	}

	evaluator := roster.NewEligibilityEvaluator()
	result, err := evaluator.Evaluate(m.staff, rec.request, approved, m.minimums)
	if err != nil {
		return err
	}
	if !result.OK {
		return &roster.CommitRaceError{
			Invariant: "staffing",
			Detail:    fmt.Sprintf("approving %s would break minimum staffing over %s", id, rec.request.Dates),
		}
	}

	rec.status = statusApproved
	m.requests[id] = rec
	return nil
}

func (m *Memory) RejectRequest(_ context.Context, id roster.RequestID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	rec, ok := m.requests[id]
	if !ok || rec.status != statusPending {
		return fmt.Errorf("request %s: %w", id, roster.ErrRequestNotFound)
	}
	delete(m.requests, id)
	return nil
}

// Compile-time check that Memory implements roster.Repository.
var _ roster.Repository = (*Memory)(nil)
