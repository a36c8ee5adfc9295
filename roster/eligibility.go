/*
eligibility.go - Staffing-minimum evaluation for proposed absences

PURPOSE:
  Answers one question: if this person is removed from duty for this date
  range, does every rank stay at or above its configured minimum on EVERY
  day of the range?

WHY PER-DAY:
  Other already-approved absences start and end inside the requested
  range, so projected staffing fluctuates day to day. Checking only the
  endpoints (or a range average) would miss a single-day dip below
  minimum. The evaluator walks every calendar day in the range.

COUNTING DISCIPLINE:
  - Baseline: active staff counted by rank
  - For each day: subtract one per DISTINCT person absent that day
    (the proposed subject plus anyone with an approved absence
    overlapping the day). A person with two overlapping approvals is
    still one absence, and an inactive person is no absence at all:
    someone who never entered the baseline cannot be subtracted from it.
  - Ranks come from the request (denormalized at request time), falling
    back to the roster when the request carries none.

SEE ALSO:
  - conflict.go: Calls the evaluator as the staffing check
*/
package roster

import "sort"

// =============================================================================
// EVALUATION RESULT
// =============================================================================

// DayShortfall names one rank on one day that falls below minimum.
type DayShortfall struct {
	Day       TimePoint
	Rank      Rank
	Projected int
	Minimum   int
}

// EligibilityResult reports whether the proposed removal keeps staffing
// at or above minimum for the entire range. ProjectedCounts holds each
// rank's WORST day in the range, the number a planner needs to see.
type EligibilityResult struct {
	OK              bool
	ProjectedCounts map[Rank]int
	Shortfalls      []DayShortfall
}

// =============================================================================
// ELIGIBILITY EVALUATOR
// =============================================================================

// EligibilityEvaluator is stateless; every call is a pure function of the
// snapshot it is given.
type EligibilityEvaluator struct{}

func NewEligibilityEvaluator() *EligibilityEvaluator { return &EligibilityEvaluator{} }

// Evaluate projects per-rank staffing for every day of the proposed
// removal, with approvedAbsences as the already-committed context.
func (ee *EligibilityEvaluator) Evaluate(
	staff []StaffMember,
	proposed ScheduleRequest,
	approvedAbsences []ScheduleRequest,
	minimumByRank map[Rank]int,
) (*EligibilityResult, error) {
	if !proposed.Dates.Valid() {
		return nil, ErrInvalidDateRange
	}

	baseline := make(map[Rank]int)
	rankOf := make(map[StaffID]Rank, len(staff))
	activeByID := make(map[StaffID]bool, len(staff))
	for _, s := range staff {
		rankOf[s.ID] = s.Rank
		activeByID[s.ID] = s.Active
		if s.Active {
			baseline[s.Rank]++
		}
	}

	result := &EligibilityResult{
		OK:              true,
		ProjectedCounts: make(map[Rank]int),
	}

	for _, day := range proposed.Dates.Days() {
		absentByRank := make(map[Rank]int)
		seen := map[StaffID]bool{}

		mark := func(req ScheduleRequest) {
			// Only active staff are in the baseline, so only active
			// staff can be subtracted from it.
			if !activeByID[req.SubjectID] {
				return
			}
			if seen[req.SubjectID] {
				return
			}
			seen[req.SubjectID] = true
			rank := req.Rank
			if rank == "" {
				rank = rankOf[req.SubjectID]
			}
			absentByRank[rank]++
		}

		mark(proposed)
		for _, approved := range approvedAbsences {
			if approved.Dates.Contains(day) {
				mark(approved)
			}
		}

		for rank, minimum := range minimumByRank {
			projected := baseline[rank] - absentByRank[rank]
			if current, ok := result.ProjectedCounts[rank]; !ok || projected < current {
				result.ProjectedCounts[rank] = projected
			}
			if projected < minimum {
				result.OK = false
				result.Shortfalls = append(result.Shortfalls, DayShortfall{
					Day:       day,
					Rank:      rank,
					Projected: projected,
					Minimum:   minimum,
				})
			}
		}
	}

	// Map iteration above is unordered; shortfalls must come out stable.
	sort.Slice(result.Shortfalls, func(i, j int) bool {
		a, b := result.Shortfalls[i], result.Shortfalls[j]
		if !a.Day.Equal(b.Day) {
			return a.Day.Before(b.Day)
		}
		return a.Rank < b.Rank
	})

	return result, nil
}
