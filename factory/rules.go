/*
Package factory provides JSON to Go scheduling-configuration conversion.

PURPOSE:
  Converts JSON configuration documents into roster.AnchorConfig,
  roster.CapacityRule sets, staffing minimums, and compliance renewal
  windows. This enables policy changes without code changes - planners
  adjust capacities, blackouts, and offsets in JSON, and the factory
  produces validated Go structs.

JSON SCHEMA:
  {
    "anchor": {
      "number": 12, "year": 2025, "start": "2025-10-11",
      "cycle_days": 28, "cycles_per_year": 13,
      "publish_offset_days": 10, "deadline_offset_days": 21
    },
    "capacity_rules": [
      {"category": "Flight", "max_per_cycle": 4, "blackout_months": [12, 1]}
    ],
    "minimum_by_rank": {"Captain": 10, "Engineer": 4},
    "renewal_windows": [
      {"category": "Flight", "open_days": 60, "notice_days": 90}
    ]
  }

KEY FEATURES:
  - Validates everything fail-fast through the core Validate methods
  - Sensible defaults: 28-day cycles, 13 per year
  - One document carries the whole operational policy

USAGE:
  factory := factory.NewConfigFactory()
  cfg, err := factory.Parse(jsonString)
  calc, err := roster.NewCycleCalculator(cfg.Anchor)

SEE ALSO:
  - roster/cycle.go: AnchorConfig validation
  - roster/allocator.go: CapacityRule consumption
  - compliance/types.go: RenewalWindow validation
*/
package factory

import (
	"encoding/json"
	"fmt"

	"github.com/warp/roster-engine/compliance"
	"github.com/warp/roster-engine/roster"
)

// =============================================================================
// JSON SCHEMA TYPES
// =============================================================================

type ConfigJSON struct {
	Anchor         AnchorJSON          `json:"anchor"`
	CapacityRules  []CapacityRuleJSON  `json:"capacity_rules"`
	MinimumByRank  map[string]int      `json:"minimum_by_rank"`
	RenewalWindows []RenewalWindowJSON `json:"renewal_windows"`
}

type AnchorJSON struct {
	Number             int    `json:"number"`
	Year               int    `json:"year"`
	Start              string `json:"start"` // "2006-01-02"
	CycleDays          int    `json:"cycle_days"`
	CyclesPerYear      int    `json:"cycles_per_year"`
	PublishOffsetDays  int    `json:"publish_offset_days"`
	DeadlineOffsetDays int    `json:"deadline_offset_days"`
}

type CapacityRuleJSON struct {
	Category       string `json:"category"`
	MaxPerCycle    int    `json:"max_per_cycle"`
	BlackoutMonths []int  `json:"blackout_months"`
}

type RenewalWindowJSON struct {
	Category   string `json:"category"`
	OpenDays   int    `json:"open_days"`
	NoticeDays int    `json:"notice_days"`
}

// =============================================================================
// PARSED CONFIGURATION
// =============================================================================

// Config is the fully validated operational policy.
type Config struct {
	Anchor         roster.AnchorConfig
	CapacityRules  []roster.CapacityRule
	MinimumByRank  map[roster.Rank]int
	RenewalWindows []compliance.RenewalWindow
}

// =============================================================================
// CONFIG FACTORY
// =============================================================================

type ConfigFactory struct{}

func NewConfigFactory() *ConfigFactory { return &ConfigFactory{} }

// Parse converts and validates a JSON configuration document.
func (f *ConfigFactory) Parse(raw string) (*Config, error) {
	var doc ConfigJSON
	if err := json.Unmarshal([]byte(raw), &doc); err != nil {
		return nil, fmt.Errorf("invalid configuration JSON: %w", err)
	}

	anchor, err := f.anchor(doc.Anchor)
	if err != nil {
		return nil, err
	}

	cfg := &Config{
		Anchor:        anchor,
		MinimumByRank: make(map[roster.Rank]int, len(doc.MinimumByRank)),
	}

	for _, r := range doc.CapacityRules {
		cfg.CapacityRules = append(cfg.CapacityRules, roster.CapacityRule{
			Category:       roster.Category(r.Category),
			MaxPerCycle:    r.MaxPerCycle,
			BlackoutMonths: r.BlackoutMonths,
		})
	}

	for rank, min := range doc.MinimumByRank {
		if min < 0 {
			return nil, &roster.ConfigurationError{
				Subject: fmt.Sprintf("minimum for rank %q", rank),
				Field:   "MinimumByRank",
				Reason:  fmt.Sprintf("must not be negative, got %d", min),
			}
		}
		cfg.MinimumByRank[roster.Rank(rank)] = min
	}

	for _, w := range doc.RenewalWindows {
		window := compliance.RenewalWindow{
			Category:   roster.Category(w.Category),
			OpenDays:   w.OpenDays,
			NoticeDays: w.NoticeDays,
		}
		if err := window.Validate(); err != nil {
			return nil, err
		}
		cfg.RenewalWindows = append(cfg.RenewalWindows, window)
	}

	return cfg, nil
}

func (f *ConfigFactory) anchor(a AnchorJSON) (roster.AnchorConfig, error) {
	start, err := roster.ParseDate(a.Start)
	if err != nil {
		return roster.AnchorConfig{}, &roster.ConfigurationError{
			Subject: "anchor",
			Field:   "Start",
			Reason:  fmt.Sprintf("expected YYYY-MM-DD, got %q", a.Start),
		}
	}

	cfg := roster.AnchorConfig{
		AnchorNumber:       a.Number,
		AnchorYear:         a.Year,
		AnchorStart:        start,
		CycleDays:          a.CycleDays,
		CyclesPerYear:      a.CyclesPerYear,
		PublishOffsetDays:  a.PublishOffsetDays,
		DeadlineOffsetDays: a.DeadlineOffsetDays,
	}

	// Defaults for the standard 28-day, 13-cycle grid.
	if cfg.CycleDays == 0 {
		cfg.CycleDays = 28
	}
	if cfg.CyclesPerYear == 0 {
		cfg.CyclesPerYear = 13
	}

	if err := cfg.Validate(); err != nil {
		return roster.AnchorConfig{}, err
	}
	return cfg, nil
}
