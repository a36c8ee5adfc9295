package roster_test

import (
	"errors"
	"testing"
	"time"

	"github.com/warp/roster-engine/roster"
)

// =============================================================================
// TEST INFRASTRUCTURE
// =============================================================================
// The reference grid used across the engine tests: the anchor cycle is
// RP12/2025 starting 2025-10-11, 28-day cycles, 13 per year, roster
// published 10 days before start, requests due 21 days before publish.

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

func newCalculator(t *testing.T) *roster.CycleCalculator {
	t.Helper()
	calc, err := roster.NewCycleCalculator(testAnchor())
	if err != nil {
		t.Fatalf("calculator should build from valid anchor: %v", err)
	}
	return calc
}

func date(y int, m time.Month, d int) roster.TimePoint {
	return roster.NewTimePoint(y, m, d)
}

// =============================================================================
// ANCHOR VALIDATION
// =============================================================================

func TestAnchorConfig_Invalid_FailsFast(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*roster.AnchorConfig)
	}{
		{"zero cycle days", func(c *roster.AnchorConfig) { c.CycleDays = 0 }},
		{"negative cycle days", func(c *roster.AnchorConfig) { c.CycleDays = -28 }},
		{"zero cycles per year", func(c *roster.AnchorConfig) { c.CyclesPerYear = 0 }},
		{"anchor number too high", func(c *roster.AnchorConfig) { c.AnchorNumber = 14 }},
		{"anchor number zero", func(c *roster.AnchorConfig) { c.AnchorNumber = 0 }},
		{"missing anchor start", func(c *roster.AnchorConfig) { c.AnchorStart = roster.TimePoint{} }},
		{"negative publish offset", func(c *roster.AnchorConfig) { c.PublishOffsetDays = -1 }},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := testAnchor()
			tc.mutate(&cfg)
			_, err := roster.NewCycleCalculator(cfg)
			if err == nil {
				t.Fatal("invalid anchor should be rejected")
			}
			if !roster.IsConfigurationError(err) {
				t.Errorf("expected configuration error, got: %v", err)
			}
		})
	}
}

// =============================================================================
// KNOWN GRID POINTS
// =============================================================================

func TestCycleStart_KnownGridPoints(t *testing.T) {
	// GIVEN: Anchor RP12/2025 starts 2025-10-11
	// THEN: The surrounding grid points land exactly where operations
	// expects them, including the year boundary with no gap.
	calc := newCalculator(t)

	cases := []struct {
		number, year int
		start        roster.TimePoint
		end          roster.TimePoint
	}{
		{12, 2025, date(2025, time.October, 11), date(2025, time.November, 7)},
		{1, 2025, date(2024, time.December, 7), date(2025, time.January, 3)},
		{13, 2025, date(2025, time.November, 8), date(2025, time.December, 5)},
		{1, 2026, date(2025, time.December, 6), date(2026, time.January, 2)},
	}

	for _, tc := range cases {
		cycle, err := calc.Cycle(tc.number, tc.year)
		if err != nil {
			t.Fatalf("%s: %v", roster.CycleCode(tc.number, tc.year), err)
		}
		if !cycle.Start.Equal(tc.start) {
			t.Errorf("%s start: expected %s, got %s", cycle.Code(), tc.start, cycle.Start)
		}
		if !cycle.End.Equal(tc.end) {
			t.Errorf("%s end: expected %s, got %s", cycle.Code(), tc.end, cycle.End)
		}
	}
}

func TestCycleStart_RejectsNumberOutsideGrid(t *testing.T) {
	calc := newCalculator(t)
	if _, err := calc.CycleStart(0, 2025); err == nil {
		t.Error("cycle number 0 should be rejected")
	}
	if _, err := calc.CycleStart(14, 2025); err == nil {
		t.Error("cycle number 14 should be rejected on a 13-cycle grid")
	}
}

// =============================================================================
// CONTIGUITY - No gaps, no overlaps, across years
// =============================================================================

func TestCycles_TileTheCalendar(t *testing.T) {
	// GIVEN: Five consecutive years of cycles
	// THEN: Each cycle ends the day before the next begins, and each spans
	// exactly CycleDays days.
	calc := newCalculator(t)

	var previous *roster.Cycle
	for year := 2023; year <= 2027; year++ {
		for number := 1; number <= 13; number++ {
			cycle, err := calc.Cycle(number, year)
			if err != nil {
				t.Fatalf("%s: %v", roster.CycleCode(number, year), err)
			}
			if got := roster.DaysBetween(cycle.Start, cycle.End); got != 27 {
				t.Errorf("%s spans %d days, expected 27", cycle.Code(), got)
			}
			if previous != nil && !cycle.Start.Equal(previous.End.AddDays(1)) {
				t.Errorf("gap or overlap between %s (ends %s) and %s (starts %s)",
					previous.Code(), previous.End, cycle.Code(), cycle.Start)
			}
			previous = &cycle
		}
	}
}

// =============================================================================
// ROUND TRIP - CycleContaining inverts CycleStart
// =============================================================================

func TestCycleContaining_RoundTrip(t *testing.T) {
	calc := newCalculator(t)

	for year := 2023; year <= 2027; year++ {
		for number := 1; number <= 13; number++ {
			cycle, err := calc.Cycle(number, year)
			if err != nil {
				t.Fatal(err)
			}

			// First day, mid-cycle, and last day all resolve to this cycle.
			for _, day := range []roster.TimePoint{cycle.Start, cycle.Start.AddDays(14), cycle.End} {
				owner, err := calc.CycleContaining(day)
				if err != nil {
					t.Fatal(err)
				}
				if owner.Number != number || owner.Year != year {
					t.Errorf("%s should own %s, resolved to %s", cycle.Code(), day, owner.Code())
				}
			}
		}
	}
}

func TestCycleContaining_FarFromAnchor(t *testing.T) {
	// GIVEN: Dates 50 years before and after the anchor
	// THEN: The same O(1) arithmetic holds: round trips resolve and the
	// grid stays contiguous. No iteration means no degradation.
	calc := newCalculator(t)

	for _, year := range []int{1975, 1980, 2000, 2050, 2075} {
		for _, number := range []int{1, 7, 13} {
			cycle, err := calc.Cycle(number, year)
			if err != nil {
				t.Fatal(err)
			}
			owner, err := calc.CycleContaining(cycle.Start)
			if err != nil {
				t.Fatal(err)
			}
			if owner.Number != number || owner.Year != year {
				t.Errorf("round trip failed far from anchor: %s resolved to %s",
					cycle.Code(), owner.Code())
			}

			next, err := calc.Cycle(nextKey(number, year))
			if err != nil {
				t.Fatal(err)
			}
			if !next.Start.Equal(cycle.End.AddDays(1)) {
				t.Errorf("grid not contiguous at %s", cycle.Code())
			}
		}
	}
}

func nextKey(number, year int) (int, int) {
	if number == 13 {
		return 1, year + 1
	}
	return number + 1, year
}

// =============================================================================
// STATUS - Derived from dates, never stored
// =============================================================================

func TestCycleStatus_Boundaries(t *testing.T) {
	// GIVEN: RP12/2025 with start 2025-10-11, publish 2025-10-01,
	// deadline 2025-09-10, end 2025-11-07
	calc := newCalculator(t)
	cycle, err := calc.Cycle(12, 2025)
	if err != nil {
		t.Fatal(err)
	}

	if !cycle.PublishDate.Equal(date(2025, time.October, 1)) {
		t.Fatalf("publish date expected 2025-10-01, got %s", cycle.PublishDate)
	}
	if !cycle.DeadlineDate.Equal(date(2025, time.September, 10)) {
		t.Fatalf("deadline expected 2025-09-10, got %s", cycle.DeadlineDate)
	}

	cases := []struct {
		asOf     roster.TimePoint
		expected roster.CycleStatus
	}{
		{date(2025, time.September, 9), roster.CycleOpen},     // day before deadline
		{date(2025, time.September, 10), roster.CycleLocked},  // deadline day
		{date(2025, time.September, 30), roster.CycleLocked},  // day before publish
		{date(2025, time.October, 1), roster.CyclePublished},  // publish day
		{date(2025, time.November, 6), roster.CyclePublished}, // day before end
		{date(2025, time.November, 7), roster.CycleArchived},  // end day
		{date(2026, time.March, 1), roster.CycleArchived},     // long after
	}

	for _, tc := range cases {
		if got := cycle.Status(tc.asOf); got != tc.expected {
			t.Errorf("status as of %s: expected %s, got %s", tc.asOf, tc.expected, got)
		}
	}
}

// =============================================================================
// CYCLE CODES - Exact boundary format
// =============================================================================

func TestCycleCode_ExactFormat(t *testing.T) {
	// Downstream systems parse this format. No zero-padding, ever.
	cases := []struct {
		number, year int
		expected     string
	}{
		{1, 2025, "RP1/2025"},
		{12, 2025, "RP12/2025"},
		{13, 2025, "RP13/2025"},
		{1, 2026, "RP1/2026"},
	}
	for _, tc := range cases {
		if got := roster.CycleCode(tc.number, tc.year); got != tc.expected {
			t.Errorf("expected %q, got %q", tc.expected, got)
		}
	}
}

// =============================================================================
// HORIZON ENUMERATION
// =============================================================================

func TestNextCycles_WalksForwardFromContainingCycle(t *testing.T) {
	calc := newCalculator(t)

	cycles, err := calc.NextCycles(date(2025, time.October, 20), 4)
	if err != nil {
		t.Fatal(err)
	}
	if len(cycles) != 4 {
		t.Fatalf("expected 4 cycles, got %d", len(cycles))
	}

	expected := []string{"RP12/2025", "RP13/2025", "RP1/2026", "RP2/2026"}
	for i, code := range expected {
		if cycles[i].Code() != code {
			t.Errorf("cycle %d: expected %s, got %s", i, code, cycles[i].Code())
		}
	}
}

func TestConfigurationError_Unwraps(t *testing.T) {
	cfg := testAnchor()
	cfg.CycleDays = 0
	_, err := roster.NewCycleCalculator(cfg)

	var confErr *roster.ConfigurationError
	if !errors.As(err, &confErr) {
		t.Fatalf("expected *ConfigurationError, got %T", err)
	}
	if confErr.Field != "CycleDays" {
		t.Errorf("error should identify the bad field, got %q", confErr.Field)
	}
}
