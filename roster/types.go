/*
Package roster provides the core scheduling engine for cycle-based rosters.

PURPOSE:
  This package contains the domain types and algorithms for organizations
  that plan work in fixed-length recurring cycles (roster periods):
  cycle date arithmetic, capacity-bounded allocation of renewal
  obligations, staffing-minimum evaluation, and conflict detection for
  proposed schedule changes.

KEY CONCEPTS IN THIS FILE (types.go):
  - Cycle: One operational period with derived status
  - CapacityRule: Per-category ceiling and blackout months
  - RenewalObligation: One compliance item to place into a cycle
  - Assignment: An obligation pinned to a cycle
  - StaffMember / ScheduleRequest: Minimal roster projection and a
    proposed change to evaluate
  - Conflict: Structured detector output with type and severity

DESIGN PRINCIPLES:
  1. Purity: Every evaluation is a function of its inputs; "now" is the
     explicit AsOf parameter, never a hidden clock read
  2. Derived status: Cycle status is always computed from dates at read
     time, never stored as independent truth
  3. Determinism: Given the same snapshot, allocation and detection
     produce byte-identical output, enabling audits and re-runs
  4. Type safety: IDs, statuses, and severities are typed constants

USAGE:
  calc, _ := roster.NewCycleCalculator(roster.AnchorConfig{...})
  cycle, _ := calc.Cycle(12, 2025)
  result, _ := roster.NewCapacityAllocator(calc).Allocate(roster.AllocationInput{...})

SEE ALSO:
  - cycle.go: Anchor-based cycle arithmetic
  - allocator.go: Capacity-bounded obligation placement
  - eligibility.go: Per-day staffing-minimum evaluation
  - conflict.go: Duplicate/overlap/staffing conflict detection
*/
package roster

// =============================================================================
// IDENTIFIERS
// =============================================================================

type StaffID string
type ObligationID string
type RequestID string
type Category string
type Rank string

// =============================================================================
// CYCLE - One operational period
// =============================================================================

// Cycle represents one roster period. All dates are derived from the anchor
// configuration; a Cycle value is a projection, never a source of truth.
type Cycle struct {
	Number       int // 1..CyclesPerYear
	Year         int
	Start        TimePoint
	End          TimePoint // Start + CycleDays - 1
	PublishDate  TimePoint // Start - PublishOffsetDays
	DeadlineDate TimePoint // PublishDate - DeadlineOffsetDays
}

// CycleStatus is derived from the current date against the cycle's dates.
type CycleStatus string

const (
	CycleOpen      CycleStatus = "open"      // before the request deadline
	CycleLocked    CycleStatus = "locked"    // deadline passed, not yet published
	CyclePublished CycleStatus = "published" // published, not yet finished
	CycleArchived  CycleStatus = "archived"  // finished
)

// Status computes the cycle status as of the given day.
// Never persist the result as authoritative state.
func (c Cycle) Status(asOf TimePoint) CycleStatus {
	switch {
	case asOf.Before(c.DeadlineDate):
		return CycleOpen
	case asOf.Before(c.PublishDate):
		return CycleLocked
	case asOf.Before(c.End):
		return CyclePublished
	default:
		return CycleArchived
	}
}

// Range returns the inclusive [Start, End] span of the cycle.
func (c Cycle) Range() DateRange { return DateRange{Start: c.Start, End: c.End} }

// Key identifies a cycle independent of its derived dates.
type CycleKey struct {
	Number int
	Year   int
}

func (c Cycle) Key() CycleKey { return CycleKey{Number: c.Number, Year: c.Year} }

// =============================================================================
// CAPACITY RULES
// =============================================================================

// CapacityRule caps how many obligations of one category may land in a
// single cycle, and which calendar months are blacked out entirely.
type CapacityRule struct {
	Category       Category
	MaxPerCycle    int
	BlackoutMonths []int // 1..12, by cycle start month
}

// IsBlackout reports whether a cycle starting in the given month is
// closed for this category.
func (r CapacityRule) IsBlackout(month int) bool {
	for _, m := range r.BlackoutMonths {
		if m == month {
			return true
		}
	}
	return false
}

// =============================================================================
// OBLIGATIONS AND ASSIGNMENTS
// =============================================================================

// RenewalObligation is one unit of compliance work awaiting placement.
type RenewalObligation struct {
	ID               ObligationID
	Category         Category
	OwnerID          StaffID
	DueBy            TimePoint // overdue after this date
	EarliestEligible TimePoint // cannot be done before this date
}

// Assignment pins one obligation to one cycle.
type Assignment struct {
	ObligationID ObligationID
	Category     Category
	CycleNumber  int
	CycleYear    int
	AssignedAt   TimePoint
}

// UnscheduledReason explains why an obligation could not be placed.
type UnscheduledReason string

const (
	ReasonNoCapacity         UnscheduledReason = "no_capacity"          // every feasible cycle is full
	ReasonNoFeasibleCycle    UnscheduledReason = "no_feasible_cycle"    // due date before any open cycle
	ReasonInherentInfeasible UnscheduledReason = "inherently_infeasible" // earliest-eligible after due-by
	ReasonZeroCapacityRule   UnscheduledReason = "zero_capacity_rule"   // category configured with max 0
	ReasonNoRule             UnscheduledReason = "no_rule"              // category has no capacity rule
)

// UnscheduledObligation is an expected, actionable outcome for human
// escalation, not an error.
type UnscheduledObligation struct {
	ObligationID ObligationID
	Category     Category
	Reason       UnscheduledReason
}

// =============================================================================
// STAFF AND SCHEDULE REQUESTS
// =============================================================================

// StaffMember is the minimal projection needed for eligibility checks.
type StaffMember struct {
	ID     StaffID
	Rank   Rank
	Active bool
}

// RequestKind tags what a schedule request proposes.
type RequestKind string

const (
	KindTimeOff    RequestKind = "time_off"
	KindDutyChange RequestKind = "duty_change"
	KindOther      RequestKind = "other"
)

// ScheduleRequest is a proposed change removing one person from duty for
// a date range. Rank is denormalized at request time so evaluation does
// not depend on later roster edits.
type ScheduleRequest struct {
	ID          RequestID
	SubjectID   StaffID
	Rank        Rank
	Dates       DateRange
	Kind        RequestKind
	RequestedAt TimePoint // tie-breaking only
}

// =============================================================================
// CONFLICTS
// =============================================================================

type ConflictType string

const (
	ConflictOverlapSamePerson    ConflictType = "overlap_same_person"
	ConflictDuplicateRequest     ConflictType = "duplicate_request"
	ConflictStaffingBelowMinimum ConflictType = "staffing_below_minimum"
)

type Severity string

const (
	SeverityInfo     Severity = "info"
	SeverityWarning  Severity = "warning"
	SeverityCritical Severity = "critical"
)

// Conflict is advisory detector output. Detail is for humans; logic must
// key off Type and Severity only.
type Conflict struct {
	Type               ConflictType
	Severity           Severity
	AffectedRequestIDs []RequestID
	Detail             string
}
