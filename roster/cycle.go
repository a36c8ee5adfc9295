/*
cycle.go - Anchor-based cycle date arithmetic

PURPOSE:
  Converts between calendar dates and roster cycles using a single trusted
  anchor: one known (number, year, start date) triple. Every other cycle's
  dates are derived by constant-time integer arithmetic, so the calculator
  behaves identically arbitrarily far in the past or future.

THE CYCLE GRID:
  Cycles tile the calendar with no gaps and no overlaps. Cycle k+1 starts
  the day after cycle k ends, across year boundaries: a cycle numbered in
  one year may start in the previous calendar year (cycle 1/2025 can start
  in December 2024). Internally every cycle maps to an absolute index

    index = year * CyclesPerYear + (number - 1)

  and dates are index offsets from the anchor in whole cycles.

KEY DATES PER CYCLE:
  Start        first day on duty
  End          Start + CycleDays - 1
  PublishDate  Start - PublishOffsetDays (roster handed to crews)
  DeadlineDate PublishDate - DeadlineOffsetDays (last day for requests)

  The offsets are configuration, not constants: operational policy
  changes them.

SEE ALSO:
  - types.go: Cycle and CycleStatus definitions
  - allocator.go: Consumes cycle enumeration for placement
*/
package roster

import "fmt"

// =============================================================================
// ANCHOR CONFIGURATION
// =============================================================================

// AnchorConfig is the single source of truth for the cycle grid.
type AnchorConfig struct {
	AnchorNumber int       // cycle number of the anchor (1..CyclesPerYear)
	AnchorYear   int       // cycle year of the anchor
	AnchorStart  TimePoint // first day of the anchor cycle

	CycleDays     int // length of every cycle in days
	CyclesPerYear int // cycle numbers run 1..CyclesPerYear

	PublishOffsetDays  int // publish = start - this
	DeadlineOffsetDays int // deadline = publish - this
}

// Validate fails fast on configuration that would corrupt the grid.
func (c AnchorConfig) Validate() error {
	if c.CycleDays <= 0 {
		return &ConfigurationError{Subject: "anchor", Field: "CycleDays", Reason: "must be positive"}
	}
	if c.CyclesPerYear <= 0 {
		return &ConfigurationError{Subject: "anchor", Field: "CyclesPerYear", Reason: "must be positive"}
	}
	if c.AnchorNumber < 1 || c.AnchorNumber > c.CyclesPerYear {
		return &ConfigurationError{
			Subject: "anchor",
			Field:   "AnchorNumber",
			Reason:  fmt.Sprintf("must be in 1..%d, got %d", c.CyclesPerYear, c.AnchorNumber),
		}
	}
	if c.AnchorStart.IsZero() {
		return &ConfigurationError{Subject: "anchor", Field: "AnchorStart", Reason: "must be set"}
	}
	if c.PublishOffsetDays < 0 {
		return &ConfigurationError{Subject: "anchor", Field: "PublishOffsetDays", Reason: "must not be negative"}
	}
	if c.DeadlineOffsetDays < 0 {
		return &ConfigurationError{Subject: "anchor", Field: "DeadlineOffsetDays", Reason: "must not be negative"}
	}
	return nil
}

// =============================================================================
// CYCLE CALCULATOR
// =============================================================================

// CycleCalculator is pure date arithmetic over a validated anchor.
// It holds no mutable state and performs no I/O.
type CycleCalculator struct {
	cfg AnchorConfig
}

// NewCycleCalculator validates the anchor and returns a calculator.
func NewCycleCalculator(cfg AnchorConfig) (*CycleCalculator, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &CycleCalculator{cfg: cfg}, nil
}

// Config returns the anchor configuration the calculator was built from.
func (cc *CycleCalculator) Config() AnchorConfig { return cc.cfg }

// index maps (number, year) to an absolute cycle index on the grid.
func (cc *CycleCalculator) index(number, year int) int {
	return year*cc.cfg.CyclesPerYear + (number - 1)
}

// anchorIndex is the absolute index of the anchor cycle.
func (cc *CycleCalculator) anchorIndex() int {
	return cc.index(cc.cfg.AnchorNumber, cc.cfg.AnchorYear)
}

// CycleStart computes the first day of cycle (number, year) in O(1).
func (cc *CycleCalculator) CycleStart(number, year int) (TimePoint, error) {
	if number < 1 || number > cc.cfg.CyclesPerYear {
		return TimePoint{}, &ConfigurationError{
			Subject: "cycle",
			Field:   "Number",
			Reason:  fmt.Sprintf("must be in 1..%d, got %d", cc.cfg.CyclesPerYear, number),
		}
	}
	offset := cc.index(number, year) - cc.anchorIndex()
	return cc.cfg.AnchorStart.AddDays(offset * cc.cfg.CycleDays), nil
}

// Cycle materializes all derived dates for (number, year).
func (cc *CycleCalculator) Cycle(number, year int) (Cycle, error) {
	start, err := cc.CycleStart(number, year)
	if err != nil {
		return Cycle{}, err
	}
	publish := start.AddDays(-cc.cfg.PublishOffsetDays)
	return Cycle{
		Number:       number,
		Year:         year,
		Start:        start,
		End:          start.AddDays(cc.cfg.CycleDays - 1),
		PublishDate:  publish,
		DeadlineDate: publish.AddDays(-cc.cfg.DeadlineOffsetDays),
	}, nil
}

// CycleContaining maps an arbitrary date to its owning cycle.
// Inverse of CycleStart: floor-divides the day offset from the anchor so
// dates before the anchor resolve correctly.
func (cc *CycleCalculator) CycleContaining(date TimePoint) (Cycle, error) {
	days := DaysBetween(cc.cfg.AnchorStart, date)
	abs := cc.anchorIndex() + floorDiv(days, cc.cfg.CycleDays)

	year := floorDiv(abs, cc.cfg.CyclesPerYear)
	number := abs - year*cc.cfg.CyclesPerYear + 1
	return cc.Cycle(number, year)
}

// NextCycles enumerates n consecutive cycles starting from the cycle
// containing from. Used by the allocator to walk the planning horizon.
func (cc *CycleCalculator) NextCycles(from TimePoint, n int) ([]Cycle, error) {
	current, err := cc.CycleContaining(from)
	if err != nil {
		return nil, err
	}
	cycles := make([]Cycle, 0, n)
	for i := 0; i < n; i++ {
		cycles = append(cycles, current)
		current, err = cc.Cycle(cc.following(current.Number, current.Year))
		if err != nil {
			return nil, err
		}
	}
	return cycles, nil
}

// following returns the (number, year) after the given cycle.
func (cc *CycleCalculator) following(number, year int) (int, int) {
	number++
	if number > cc.cfg.CyclesPerYear {
		number = 1
		year++
	}
	return number, year
}

// floorDiv is integer division rounding toward negative infinity.
// Go's / truncates toward zero, which is wrong for dates before the anchor.
func floorDiv(a, b int) int {
	q := a / b
	if (a%b != 0) && ((a < 0) != (b < 0)) {
		q--
	}
	return q
}

// =============================================================================
// CYCLE CODES - Boundary format other systems parse
// =============================================================================

// CycleCode formats a cycle as "RP{number}/{year}" with no zero-padding.
// This exact format is a contract with downstream systems.
func CycleCode(number, year int) string {
	return fmt.Sprintf("RP%d/%d", number, year)
}

// Code returns the cycle's boundary code, e.g. "RP1/2025".
func (c Cycle) Code() string { return CycleCode(c.Number, c.Year) }
