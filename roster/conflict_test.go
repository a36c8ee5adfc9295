package roster_test

import (
	"strings"
	"testing"
	"time"

	"github.com/warp/roster-engine/roster"
)

// =============================================================================
// TEST INFRASTRUCTURE
// =============================================================================

func detect(t *testing.T, input roster.DetectionInput) []roster.Conflict {
	t.Helper()
	conflicts, err := roster.NewConflictDetector().Detect(input)
	if err != nil {
		t.Fatal(err)
	}
	return conflicts
}

func conflictOfType(conflicts []roster.Conflict, ct roster.ConflictType) *roster.Conflict {
	for i := range conflicts {
		if conflicts[i].Type == ct {
			return &conflicts[i]
		}
	}
	return nil
}

// =============================================================================
// DUPLICATE vs OVERLAP
// =============================================================================

func TestDetect_ExactDuplicate_Critical(t *testing.T) {
	// GIVEN: A pending request with the identical subject and date range
	// WHEN: Detecting conflicts for a new request
	// THEN: DUPLICATE_REQUEST at critical severity, naming the other id.
	request := removal("req-new", "Captain-a", "Captain",
		date(2025, time.March, 10), date(2025, time.March, 12))
	duplicate := removal("req-old", "Captain-a", "Captain",
		date(2025, time.March, 10), date(2025, time.March, 12))

	conflicts := detect(t, roster.DetectionInput{
		Request: request,
		Pending: []roster.ScheduleRequest{duplicate},
		Staff:   crew("Captain", 30, 0),
	})

	c := conflictOfType(conflicts, roster.ConflictDuplicateRequest)
	if c == nil {
		t.Fatal("expected a duplicate conflict")
	}
	if c.Severity != roster.SeverityCritical {
		t.Errorf("duplicates are critical, got %s", c.Severity)
	}
	if len(c.AffectedRequestIDs) != 1 || c.AffectedRequestIDs[0] != "req-old" {
		t.Errorf("should name the duplicated request, got %v", c.AffectedRequestIDs)
	}

	// An exact duplicate must NOT also be reported as an overlap.
	if conflictOfType(conflicts, roster.ConflictOverlapSamePerson) != nil {
		t.Error("exact duplicate must not double-report as overlap")
	}
}

func TestDetect_OverlappingNotIdentical_Warning(t *testing.T) {
	// GIVEN: An approved request sharing some but not all days
	// THEN: OVERLAP_SAME_PERSON at warning severity, not a duplicate.
	request := removal("req-new", "Captain-a", "Captain",
		date(2025, time.March, 10), date(2025, time.March, 14))
	overlapping := removal("req-old", "Captain-a", "Captain",
		date(2025, time.March, 13), date(2025, time.March, 20))

	conflicts := detect(t, roster.DetectionInput{
		Request:  request,
		Approved: []roster.ScheduleRequest{overlapping},
		Staff:    crew("Captain", 30, 0),
	})

	if conflictOfType(conflicts, roster.ConflictDuplicateRequest) != nil {
		t.Error("overlapping-but-different ranges are not duplicates")
	}
	c := conflictOfType(conflicts, roster.ConflictOverlapSamePerson)
	if c == nil {
		t.Fatal("expected an overlap conflict")
	}
	if c.Severity != roster.SeverityWarning {
		t.Errorf("overlaps are warnings, got %s", c.Severity)
	}
}

func TestDetect_OtherPeopleIgnoredForOverlap(t *testing.T) {
	// Overlap and duplicate checks are same-person only.
	request := removal("req-new", "Captain-a", "Captain",
		date(2025, time.March, 10), date(2025, time.March, 12))
	otherPerson := removal("req-other", "Captain-b", "Captain",
		date(2025, time.March, 10), date(2025, time.March, 12))

	conflicts := detect(t, roster.DetectionInput{
		Request: request,
		Pending: []roster.ScheduleRequest{otherPerson},
		Staff:   crew("Captain", 30, 0),
	})

	if len(conflicts) != 0 {
		t.Errorf("another person's identical range is no conflict, got %+v", conflicts)
	}
}

func TestDetect_AdjacentButNotOverlapping_NoConflict(t *testing.T) {
	// Ranges that touch end-to-start on consecutive days do not intersect.
	request := removal("req-new", "Captain-a", "Captain",
		date(2025, time.March, 13), date(2025, time.March, 15))
	adjacent := removal("req-old", "Captain-a", "Captain",
		date(2025, time.March, 10), date(2025, time.March, 12))

	conflicts := detect(t, roster.DetectionInput{
		Request: request,
		Pending: []roster.ScheduleRequest{adjacent},
		Staff:   crew("Captain", 30, 0),
	})

	if len(conflicts) != 0 {
		t.Errorf("back-to-back ranges do not overlap, got %+v", conflicts)
	}
}

// =============================================================================
// STAFFING CHECK - Spec scenario
// =============================================================================

func TestDetect_StaffingBelowMinimum_OnOverlapDay(t *testing.T) {
	// GIVEN: Minimum 10 Captains, 11 active; one APPROVED request removes
	// a Captain for 3 days
	// WHEN: A second Captain requests 1 day inside that window
	// THEN: The overlapping day projects 9 < 10 -> critical staffing
	// conflict naming the rank and the day.
	staff := crew("Captain", 11, 0)

	approved := removal("req-approved", "Captain-b", "Captain",
		date(2025, time.March, 10), date(2025, time.March, 12))
	request := removal("req-new", "Captain-a", "Captain",
		date(2025, time.March, 11), date(2025, time.March, 11))

	conflicts := detect(t, roster.DetectionInput{
		Request:       request,
		Approved:      []roster.ScheduleRequest{approved},
		Staff:         staff,
		MinimumByRank: map[roster.Rank]int{"Captain": 10},
	})

	c := conflictOfType(conflicts, roster.ConflictStaffingBelowMinimum)
	if c == nil {
		t.Fatal("expected a staffing conflict")
	}
	if c.Severity != roster.SeverityCritical {
		t.Errorf("staffing shortfalls are critical, got %s", c.Severity)
	}
	if !strings.Contains(c.Detail, "Captain") || !strings.Contains(c.Detail, "2025-03-11") {
		t.Errorf("detail should name the rank and day: %q", c.Detail)
	}

	// Both the proposed request and the colliding approval are affected.
	ids := map[roster.RequestID]bool{}
	for _, id := range c.AffectedRequestIDs {
		ids[id] = true
	}
	if !ids["req-new"] || !ids["req-approved"] {
		t.Errorf("affected ids should include both requests, got %v", c.AffectedRequestIDs)
	}
}

// =============================================================================
// ALL CHECKS RUN - No short-circuit
// =============================================================================

func TestDetect_MultipleSimultaneousConflicts(t *testing.T) {
	// GIVEN: A request that duplicates one request, overlaps another, AND
	// breaks the staffing minimum
	// THEN: All three conflicts are reported together.
	staff := crew("Captain", 10, 0)

	request := removal("req-new", "Captain-a", "Captain",
		date(2025, time.March, 10), date(2025, time.March, 12))
	duplicate := removal("req-dup", "Captain-a", "Captain",
		date(2025, time.March, 10), date(2025, time.March, 12))
	overlapping := removal("req-ovl", "Captain-a", "Captain",
		date(2025, time.March, 12), date(2025, time.March, 14))

	conflicts := detect(t, roster.DetectionInput{
		Request:       request,
		Pending:       []roster.ScheduleRequest{duplicate, overlapping},
		Staff:         staff,
		MinimumByRank: map[roster.Rank]int{"Captain": 10},
	})

	if len(conflicts) != 3 {
		t.Fatalf("expected 3 conflicts, got %d: %+v", len(conflicts), conflicts)
	}
	for _, ct := range []roster.ConflictType{
		roster.ConflictDuplicateRequest,
		roster.ConflictOverlapSamePerson,
		roster.ConflictStaffingBelowMinimum,
	} {
		if conflictOfType(conflicts, ct) == nil {
			t.Errorf("missing conflict type %s", ct)
		}
	}
}

func TestDetect_NoConflicts_EmptyList(t *testing.T) {
	// An empty result means nothing was detected; it is not a promise that
	// approval is safe against rules living elsewhere (blackouts are the
	// allocator's business).
	request := removal("req-new", "Captain-a", "Captain",
		date(2025, time.March, 10), date(2025, time.March, 12))

	conflicts := detect(t, roster.DetectionInput{
		Request:       request,
		Staff:         crew("Captain", 30, 0),
		MinimumByRank: map[roster.Rank]int{"Captain": 10},
	})

	if len(conflicts) != 0 {
		t.Errorf("expected no conflicts, got %+v", conflicts)
	}
}
