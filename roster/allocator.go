/*
allocator.go - Capacity-bounded placement of renewal obligations

PURPOSE:
  Places a backlog of renewal obligations into upcoming cycles under
  per-category capacity ceilings and seasonal blackout rules. Obligations
  that cannot be placed before their due date are returned for human
  escalation, never silently dropped.

ALGORITHM (greedy earliest-feasible-slot):
  1. Enumerate the next HorizonCycles cycles from the cycle containing
     AsOf, skipping cycles already archived
  2. Sort obligations by due date ascending, owner then id as tie-breaks,
     so output is deterministic and earliest deadlines are placed first
  3. Seed per-(category, cycle) counts from existing assignments
  4. Assign each obligation to the FIRST cycle that is not blacked out
     for its category, overlaps its [earliest-eligible, due-by] window,
     and still has capacity
  5. Everything else lands in Unscheduled with a reason

  Greedy first-fit is intentional: planners need predictable placement
  more than balanced load. Load balancing would be an explicit redesign,
  not a drop-in change here.

FAILURE SEMANTICS:
  A category whose rule has MaxPerCycle = 0, or no rule at all, sends its
  whole backlog to Unscheduled and is surfaced as a rule issue. Negative
  MaxPerCycle is a configuration error and fails fast.

SEE ALSO:
  - cycle.go: Horizon enumeration
  - store.go: Commit-time capacity re-validation
*/
package roster

import (
	"fmt"
	"sort"

	"github.com/shopspring/decimal"
)

// =============================================================================
// INPUT / OUTPUT
// =============================================================================

// AllocationInput is the full snapshot the allocator works from.
type AllocationInput struct {
	Obligations   []RenewalObligation
	Rules         []CapacityRule
	Existing      []Assignment
	HorizonCycles int
	AsOf          TimePoint
}

// RuleIssue flags a rule that makes a whole category unschedulable.
// Reported alongside the allocation so planners fix configuration instead
// of chasing phantom capacity.
type RuleIssue struct {
	Category Category
	Detail   string
}

// CycleLoad reports utilization for one (category, cycle) pair after
// allocation. LoadFactor is assigned/max; exact decimal so dashboards can
// aggregate without float drift.
type CycleLoad struct {
	Category    Category
	Cycle       CycleKey
	Assigned    int
	MaxPerCycle int
	LoadFactor  decimal.Decimal
}

// AllocationResult is deterministic given the same input.
type AllocationResult struct {
	Assignments []Assignment
	Unscheduled []UnscheduledObligation
	RuleIssues  []RuleIssue
	Loads       []CycleLoad
}

// =============================================================================
// CAPACITY ALLOCATOR
// =============================================================================

// CapacityAllocator is a pure function object over a cycle calculator.
type CapacityAllocator struct {
	calc *CycleCalculator
}

func NewCapacityAllocator(calc *CycleCalculator) *CapacityAllocator {
	return &CapacityAllocator{calc: calc}
}

// Allocate places each obligation into its earliest feasible cycle.
// Returns a configuration error for invalid rules; everything else is data.
func (ca *CapacityAllocator) Allocate(input AllocationInput) (*AllocationResult, error) {
	rules, err := indexRules(input.Rules)
	if err != nil {
		return nil, err
	}

	horizon, err := ca.calc.NextCycles(input.AsOf, input.HorizonCycles)
	if err != nil {
		return nil, err
	}
	// The first enumerated cycle can already be archived when AsOf is its
	// final day; never place work there.
	open := horizon[:0]
	for _, c := range horizon {
		if c.Status(input.AsOf) != CycleArchived {
			open = append(open, c)
		}
	}

	result := &AllocationResult{}
	result.RuleIssues = ruleIssues(input.Rules)

	// Deterministic order: due date, then owner, then id.
	obligations := make([]RenewalObligation, len(input.Obligations))
	copy(obligations, input.Obligations)
	sort.SliceStable(obligations, func(i, j int) bool {
		a, b := obligations[i], obligations[j]
		if !a.DueBy.Equal(b.DueBy) {
			return a.DueBy.Before(b.DueBy)
		}
		if a.OwnerID != b.OwnerID {
			return a.OwnerID < b.OwnerID
		}
		return a.ID < b.ID
	})

	counts := seedCounts(input.Existing)

	for _, ob := range obligations {
		placed, reason := ca.place(ob, open, rules, counts, input.AsOf, result)
		if !placed {
			result.Unscheduled = append(result.Unscheduled, UnscheduledObligation{
				ObligationID: ob.ID,
				Category:     ob.Category,
				Reason:       reason,
			})
		}
	}

	result.Loads = loads(counts, rules)
	return result, nil
}

// place tries each open cycle in chronological order and appends the
// assignment on the first fit. Returns the reason when nothing fits.
func (ca *CapacityAllocator) place(
	ob RenewalObligation,
	open []Cycle,
	rules map[Category]CapacityRule,
	counts map[loadKey]int,
	asOf TimePoint,
	result *AllocationResult,
) (bool, UnscheduledReason) {
	rule, ok := rules[ob.Category]
	if !ok {
		return false, ReasonNoRule
	}
	if rule.MaxPerCycle == 0 {
		return false, ReasonZeroCapacityRule
	}
	if ob.EarliestEligible.After(ob.DueBy) {
		// Inherently infeasible: the eligibility window opens after the
		// deadline. Surfaced for human review rather than guessed at.
		return false, ReasonInherentInfeasible
	}

	window := DateRange{Start: ob.EarliestEligible, End: ob.DueBy}
	sawFeasible := false
	for _, c := range open {
		if rule.IsBlackout(int(c.Start.Month())) {
			continue
		}
		if !c.Range().Overlaps(window) {
			continue
		}
		sawFeasible = true
		k := loadKey{Category: ob.Category, Cycle: c.Key()}
		if counts[k] >= rule.MaxPerCycle {
			continue
		}
		counts[k]++
		result.Assignments = append(result.Assignments, Assignment{
			ObligationID: ob.ID,
			Category:     ob.Category,
			CycleNumber:  c.Number,
			CycleYear:    c.Year,
			AssignedAt:   asOf,
		})
		return true, ""
	}

	if sawFeasible {
		return false, ReasonNoCapacity
	}
	return false, ReasonNoFeasibleCycle
}

// =============================================================================
// HELPERS
// =============================================================================

type loadKey struct {
	Category Category
	Cycle    CycleKey
}

func indexRules(rules []CapacityRule) (map[Category]CapacityRule, error) {
	indexed := make(map[Category]CapacityRule, len(rules))
	for _, r := range rules {
		if r.MaxPerCycle < 0 {
			return nil, &ConfigurationError{
				Subject: fmt.Sprintf("capacity rule %q", r.Category),
				Field:   "MaxPerCycle",
				Reason:  fmt.Sprintf("must not be negative, got %d", r.MaxPerCycle),
			}
		}
		for _, m := range r.BlackoutMonths {
			if m < 1 || m > 12 {
				return nil, &ConfigurationError{
					Subject: fmt.Sprintf("capacity rule %q", r.Category),
					Field:   "BlackoutMonths",
					Reason:  fmt.Sprintf("month must be in 1..12, got %d", m),
				}
			}
		}
		indexed[r.Category] = r
	}
	return indexed, nil
}

func ruleIssues(rules []CapacityRule) []RuleIssue {
	var issues []RuleIssue
	for _, r := range rules {
		if r.MaxPerCycle == 0 {
			issues = append(issues, RuleIssue{
				Category: r.Category,
				Detail:   fmt.Sprintf("category %q has MaxPerCycle=0: nothing in this category can ever be scheduled", r.Category),
			})
		}
	}
	return issues
}

func seedCounts(existing []Assignment) map[loadKey]int {
	counts := make(map[loadKey]int)
	for _, a := range existing {
		counts[loadKey{
			Category: a.Category,
			Cycle:    CycleKey{Number: a.CycleNumber, Year: a.CycleYear},
		}]++
	}
	return counts
}

// loads renders the final counters as a sorted utilization report.
func loads(counts map[loadKey]int, rules map[Category]CapacityRule) []CycleLoad {
	result := make([]CycleLoad, 0, len(counts))
	for k, n := range counts {
		rule := rules[k.Category]
		load := CycleLoad{
			Category:    k.Category,
			Cycle:       k.Cycle,
			Assigned:    n,
			MaxPerCycle: rule.MaxPerCycle,
		}
		if rule.MaxPerCycle > 0 {
			load.LoadFactor = decimal.NewFromInt(int64(n)).
				Div(decimal.NewFromInt(int64(rule.MaxPerCycle)))
		}
		result = append(result, load)
	}
	sort.Slice(result, func(i, j int) bool {
		a, b := result[i], result[j]
		if a.Cycle.Year != b.Cycle.Year {
			return a.Cycle.Year < b.Cycle.Year
		}
		if a.Cycle.Number != b.Cycle.Number {
			return a.Cycle.Number < b.Cycle.Number
		}
		return a.Category < b.Category
	})
	return result
}
