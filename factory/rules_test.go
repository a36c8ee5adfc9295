package factory_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/warp/roster-engine/factory"
	"github.com/warp/roster-engine/roster"
)

const fullConfig = `{
  "anchor": {
    "number": 12, "year": 2025, "start": "2025-10-11",
    "cycle_days": 28, "cycles_per_year": 13,
    "publish_offset_days": 10, "deadline_offset_days": 21
  },
  "capacity_rules": [
    {"category": "Flight", "max_per_cycle": 4, "blackout_months": [12, 1]},
    {"category": "Medical", "max_per_cycle": 2}
  ],
  "minimum_by_rank": {"Captain": 10, "Engineer": 4},
  "renewal_windows": [
    {"category": "Flight", "open_days": 60, "notice_days": 90}
  ]
}`

func TestParse_FullDocument(t *testing.T) {
	cfg, err := factory.NewConfigFactory().Parse(fullConfig)
	require.NoError(t, err)

	assert.Equal(t, 12, cfg.Anchor.AnchorNumber)
	assert.True(t, cfg.Anchor.AnchorStart.Equal(roster.NewTimePoint(2025, time.October, 11)))
	assert.Len(t, cfg.CapacityRules, 2)
	assert.Equal(t, []int{12, 1}, cfg.CapacityRules[0].BlackoutMonths)
	assert.Equal(t, 10, cfg.MinimumByRank["Captain"])
	require.Len(t, cfg.RenewalWindows, 1)
	assert.Equal(t, 90, cfg.RenewalWindows[0].NoticeDays)
}

func TestParse_DefaultsForStandardGrid(t *testing.T) {
	cfg, err := factory.NewConfigFactory().Parse(`{
	  "anchor": {"number": 1, "year": 2025, "start": "2025-01-04"}
	}`)
	require.NoError(t, err)
	assert.Equal(t, 28, cfg.Anchor.CycleDays)
	assert.Equal(t, 13, cfg.Anchor.CyclesPerYear)
}

func TestParse_BadDate_ConfigurationError(t *testing.T) {
	_, err := factory.NewConfigFactory().Parse(`{
	  "anchor": {"number": 1, "year": 2025, "start": "11/10/2025"}
	}`)
	require.Error(t, err)
	assert.True(t, roster.IsConfigurationError(err))
}

func TestParse_InvalidAnchor_Rejected(t *testing.T) {
	_, err := factory.NewConfigFactory().Parse(`{
	  "anchor": {"number": 20, "year": 2025, "start": "2025-01-04"}
	}`)
	require.Error(t, err)
	assert.True(t, roster.IsConfigurationError(err))
}

func TestParse_NegativeMinimum_Rejected(t *testing.T) {
	_, err := factory.NewConfigFactory().Parse(`{
	  "anchor": {"number": 1, "year": 2025, "start": "2025-01-04"},
	  "minimum_by_rank": {"Captain": -1}
	}`)
	require.Error(t, err)
	assert.True(t, roster.IsConfigurationError(err))
}

func TestParse_MalformedJSON_Error(t *testing.T) {
	_, err := factory.NewConfigFactory().Parse(`{not json`)
	require.Error(t, err)
}
