/*
conflict.go - Conflict detection for proposed schedule requests

PURPOSE:
  Evaluates one proposed schedule request against every other pending and
  approved request plus the active roster, producing a structured list of
  conflicts. Detection is advisory: the caller decides whether a conflict
  blocks approval.

CHECKS (all run, never short-circuited):
  1. Duplicate: another request for the same person with the exact same
     date range -> DUPLICATE_REQUEST, critical
  2. Overlap: another request for the same person with an intersecting
     but not identical range -> OVERLAP_SAME_PERSON, warning
  3. Staffing: the eligibility evaluator, with all approved requests plus
     this one as context -> STAFFING_BELOW_MINIMUM, critical, naming the
     ranks and days that dip below minimum

  A request can carry several conflicts at once; an empty result means no
  conflicts were DETECTED, not that approval is safe against every
  external business rule (blackouts, for one, live in the allocator).

SEE ALSO:
  - eligibility.go: The staffing sub-check
  - types.go: Conflict, ConflictType, Severity
*/
package roster

import (
	"fmt"
	"sort"
	"strings"
)

// =============================================================================
// CONFLICT DETECTOR
// =============================================================================

// ConflictDetector orchestrates duplicate, overlap, and staffing checks.
type ConflictDetector struct {
	evaluator *EligibilityEvaluator
}

func NewConflictDetector() *ConflictDetector {
	return &ConflictDetector{evaluator: NewEligibilityEvaluator()}
}

// DetectionInput is the snapshot one detection runs against.
type DetectionInput struct {
	Request       ScheduleRequest
	Pending       []ScheduleRequest
	Approved      []ScheduleRequest
	Staff         []StaffMember
	MinimumByRank map[Rank]int
}

// Detect runs all checks and returns every conflict found, duplicates
// first, then overlaps, then staffing. Returns an error only for
// malformed input, never for conflicts.
func (cd *ConflictDetector) Detect(input DetectionInput) ([]Conflict, error) {
	if !input.Request.Dates.Valid() {
		return nil, ErrInvalidDateRange
	}

	var conflicts []Conflict

	duplicates, overlaps := cd.samePerson(input.Request, input.Pending, input.Approved)
	if len(duplicates) > 0 {
		conflicts = append(conflicts, Conflict{
			Type:               ConflictDuplicateRequest,
			Severity:           SeverityCritical,
			AffectedRequestIDs: duplicates,
			Detail: fmt.Sprintf("request %s duplicates an existing request for %s over %s",
				input.Request.ID, input.Request.SubjectID, input.Request.Dates),
		})
	}
	if len(overlaps) > 0 {
		conflicts = append(conflicts, Conflict{
			Type:               ConflictOverlapSamePerson,
			Severity:           SeverityWarning,
			AffectedRequestIDs: overlaps,
			Detail: fmt.Sprintf("request %s overlaps other requests for %s over %s",
				input.Request.ID, input.Request.SubjectID, input.Request.Dates),
		})
	}

	staffing, err := cd.staffing(input)
	if err != nil {
		return nil, err
	}
	if staffing != nil {
		conflicts = append(conflicts, *staffing)
	}

	return conflicts, nil
}

// samePerson partitions other requests for the same subject into exact
// duplicates and mere overlaps. A duplicate is never re-reported as an
// overlap.
func (cd *ConflictDetector) samePerson(
	request ScheduleRequest,
	pending, approved []ScheduleRequest,
) (duplicates, overlaps []RequestID) {
	consider := func(other ScheduleRequest) {
		if other.ID == request.ID || other.SubjectID != request.SubjectID {
			return
		}
		switch {
		case other.Dates.Equal(request.Dates):
			duplicates = append(duplicates, other.ID)
		case other.Dates.Overlaps(request.Dates):
			overlaps = append(overlaps, other.ID)
		}
	}
	for _, r := range pending {
		consider(r)
	}
	for _, r := range approved {
		consider(r)
	}
	sort.Slice(duplicates, func(i, j int) bool { return duplicates[i] < duplicates[j] })
	sort.Slice(overlaps, func(i, j int) bool { return overlaps[i] < overlaps[j] })
	return duplicates, overlaps
}

// staffing runs the eligibility evaluator with the approved set as the
// already-absent context and renders any shortfall as one conflict.
func (cd *ConflictDetector) staffing(input DetectionInput) (*Conflict, error) {
	result, err := cd.evaluator.Evaluate(input.Staff, input.Request, input.Approved, input.MinimumByRank)
	if err != nil {
		return nil, err
	}
	if result.OK {
		return nil, nil
	}

	affected := affectedApprovals(input.Request, input.Approved)
	affected = append([]RequestID{input.Request.ID}, affected...)

	return &Conflict{
		Type:               ConflictStaffingBelowMinimum,
		Severity:           SeverityCritical,
		AffectedRequestIDs: affected,
		Detail:             shortfallDetail(result.Shortfalls),
	}, nil
}

// affectedApprovals lists approved requests overlapping the proposed
// range, the commitments a planner would revisit to resolve a shortfall.
func affectedApprovals(request ScheduleRequest, approved []ScheduleRequest) []RequestID {
	var ids []RequestID
	for _, a := range approved {
		if a.ID != request.ID && a.Dates.Overlaps(request.Dates) {
			ids = append(ids, a.ID)
		}
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

// shortfallDetail names each rank with the days it falls below minimum,
// e.g. "Captain below minimum (9 < 10) on 2025-03-12, 2025-03-13".
func shortfallDetail(shortfalls []DayShortfall) string {
	type rankSummary struct {
		projected int
		minimum   int
		days      []string
	}
	byRank := make(map[Rank]*rankSummary)
	var order []Rank
	for _, s := range shortfalls {
		summary, ok := byRank[s.Rank]
		if !ok {
			summary = &rankSummary{projected: s.Projected, minimum: s.Minimum}
			byRank[s.Rank] = summary
			order = append(order, s.Rank)
		}
		if s.Projected < summary.projected {
			summary.projected = s.Projected
		}
		summary.days = append(summary.days, s.Day.String())
	}
	sort.Slice(order, func(i, j int) bool { return order[i] < order[j] })

	parts := make([]string, 0, len(order))
	for _, rank := range order {
		s := byRank[rank]
		parts = append(parts, fmt.Sprintf("%s below minimum (%d < %d) on %s",
			rank, s.projected, s.minimum, strings.Join(s.days, ", ")))
	}
	return strings.Join(parts, "; ")
}
