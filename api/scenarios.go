/*
scenarios.go - Demo scenario loaders for testing and demonstrations

PURPOSE:

	Provides pre-built scenarios that populate the database with realistic
	data for testing and demos. Each scenario installs a configuration,
	a staff roster, and a renewal backlog that demonstrates a specific
	behavior of the engine.

AVAILABLE SCENARIOS:

	airline-crew:     Standard 13-cycle grid, mixed renewal backlog
	capacity-crunch:  More obligations than the simulator slots can hold
	staffing-pinch:   Thin Captain roster where one approval blocks the next

HOW SCENARIOS WORK:
 1. Reset database (clear all data)
 2. Install the scenario's configuration document
 3. Save staff and obligations
 4. Optionally pre-commit assignments or submit requests

USAGE VIA API:

	POST /api/scenarios/load
	{"scenario_id": "capacity-crunch"}

NOTE:

	Scenarios reset the database. Only use in development/demo environments.

SEE ALSO:
  - handlers.go: LoadScenario, ListScenarios handlers
  - factory/rules.go: Configuration JSON definitions
*/
package api

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/warp/roster-engine/roster"
)

// =============================================================================
// SCENARIO DEFINITIONS
// =============================================================================

var scenarios = []ScenarioDTO{
	{
		ID:          "airline-crew",
		Name:        "Airline Crew",
		Description: "Standard 28-day grid with a mixed renewal backlog across three categories",
		Category:    "allocation",
	},
	{
		ID:          "capacity-crunch",
		Name:        "Capacity Crunch",
		Description: "More simulator renewals than capacity, showing unscheduled escalation",
		Category:    "allocation",
	},
	{
		ID:          "staffing-pinch",
		Name:        "Staffing Pinch",
		Description: "Thin Captain roster where overlapping absences fight over the staffing minimum",
		Category:    "requests",
	},
}

// ListScenarios returns available scenarios.
func (h *Handler) ListScenarios(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, scenarios)
}

// GetCurrentScenario returns the currently loaded scenario, if any.
func (h *Handler) GetCurrentScenario(w http.ResponseWriter, r *http.Request) {
	if h.currentScenario == "" {
		writeJSON(w, http.StatusOK, nil)
		return
	}

	for _, s := range scenarios {
		if s.ID == h.currentScenario {
			writeJSON(w, http.StatusOK, s)
			return
		}
	}

	writeJSON(w, http.StatusOK, ScenarioDTO{
		ID:          h.currentScenario,
		Name:        h.currentScenario,
		Description: "Currently loaded scenario",
	})
}

// LoadScenario loads a predefined scenario.
func (h *Handler) LoadScenario(w http.ResponseWriter, r *http.Request) {
	var req LoadScenarioRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	ctx := r.Context()

	// Reset first
	if err := h.Store.Reset(ctx); err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to reset database", err)
		return
	}
	h.mu.Lock()
	h.config = nil
	h.mu.Unlock()
	h.currentScenario = ""

	var err error
	switch req.ScenarioID {
	case "airline-crew":
		err = h.loadAirlineCrewScenario(ctx)
	case "capacity-crunch":
		err = h.loadCapacityCrunchScenario(ctx)
	case "staffing-pinch":
		err = h.loadStaffingPinchScenario(ctx)
	default:
		writeError(w, http.StatusBadRequest, fmt.Sprintf("Unknown scenario: %s", req.ScenarioID), nil)
		return
	}

	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to load scenario", err)
		return
	}

	h.currentScenario = req.ScenarioID
	h.Log.WithField("scenario", req.ScenarioID).Info("scenario loaded")
	writeJSON(w, http.StatusOK, map[string]any{"status": "loaded", "scenario_id": req.ScenarioID})
}

// ResetDatabase clears all data.
func (h *Handler) ResetDatabase(w http.ResponseWriter, r *http.Request) {
	if err := h.Store.Reset(r.Context()); err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to reset database", err)
		return
	}
	h.mu.Lock()
	h.config = nil
	h.mu.Unlock()
	h.currentScenario = ""
	writeJSON(w, http.StatusOK, map[string]any{"status": "reset"})
}

// =============================================================================
// SCENARIO LOADERS
// =============================================================================

// standardConfigJSON is the shared 28-day, 13-cycle grid. Individual
// scenarios override the rules and minimums.
const standardConfigJSON = `{
	"anchor": {
		"number": 12,
		"year": 2025,
		"start": "2025-10-11",
		"publish_offset_days": 10,
		"deadline_offset_days": 21
	},
	"capacity_rules": [
		{"category": "SimCheck", "max_per_cycle": 4, "blackout_months": [12]},
		{"category": "LineCheck", "max_per_cycle": 6},
		{"category": "MedicalExam", "max_per_cycle": 8}
	],
	"minimum_by_rank": {
		"Captain": 6,
		"FirstOfficer": 6,
		"Purser": 3
	},
	"renewal_windows": [
		{"category": "SimCheck", "open_days": 90, "notice_days": 120},
		{"category": "LineCheck", "open_days": 60, "notice_days": 90},
		{"category": "MedicalExam", "open_days": 45, "notice_days": 60}
	]
}`

// installConfig parses and persists a configuration document exactly as
// PutConfig would.
func (h *Handler) installConfig(ctx context.Context, raw string) error {
	cfg, err := h.ConfigFactory.Parse(raw)
	if err != nil {
		return err
	}
	if err := h.Store.SaveAnchor(ctx, cfg.Anchor); err != nil {
		return err
	}
	if err := h.Store.SaveRules(ctx, cfg.CapacityRules); err != nil {
		return err
	}
	if err := h.Store.SaveMinimums(ctx, cfg.MinimumByRank); err != nil {
		return err
	}
	if err := h.Store.SaveConfigDocument(ctx, raw); err != nil {
		return err
	}
	h.mu.Lock()
	h.config = cfg
	h.mu.Unlock()
	return nil
}

func standardRoster() []roster.StaffMember {
	var staff []roster.StaffMember
	add := func(prefix string, rank roster.Rank, n int) {
		for i := 1; i <= n; i++ {
			staff = append(staff, roster.StaffMember{
				ID:     roster.StaffID(fmt.Sprintf("%s-%02d", prefix, i)),
				Rank:   rank,
				Active: true,
			})
		}
	}
	add("cap", "Captain", 8)
	add("fo", "FirstOfficer", 8)
	add("pur", "Purser", 4)
	return staff
}

func renewalObligation(id, category, owner string, due, eligible roster.TimePoint) roster.RenewalObligation {
	return roster.RenewalObligation{
		ID:               roster.ObligationID(id),
		Category:         roster.Category(category),
		OwnerID:          roster.StaffID(owner),
		DueBy:            due,
		EarliestEligible: eligible,
	}
}

// loadAirlineCrewScenario seeds a healthy grid: every obligation fits the
// horizon with room to spare.
func (h *Handler) loadAirlineCrewScenario(ctx context.Context) error {
	if err := h.installConfig(ctx, standardConfigJSON); err != nil {
		return err
	}
	if err := h.Store.SaveStaff(ctx, standardRoster()); err != nil {
		return err
	}

	nov := func(d int) roster.TimePoint { return roster.NewTimePoint(2025, 11, d) }
	jan := func(d int) roster.TimePoint { return roster.NewTimePoint(2026, 1, d) }

	obligations := []roster.RenewalObligation{
		renewalObligation("sim-cap-01", "SimCheck", "cap-01", jan(15), nov(1)),
		renewalObligation("sim-cap-02", "SimCheck", "cap-02", jan(20), nov(1)),
		renewalObligation("sim-fo-01", "SimCheck", "fo-01", jan(31), nov(15)),
		renewalObligation("line-cap-03", "LineCheck", "cap-03", nov(30), roster.NewTimePoint(2025, 10, 1)),
		renewalObligation("line-fo-02", "LineCheck", "fo-02", jan(10), nov(1)),
		renewalObligation("med-pur-01", "MedicalExam", "pur-01", nov(20), roster.NewTimePoint(2025, 10, 15)),
	}
	return h.Store.SaveObligations(ctx, obligations)
}

// loadCapacityCrunchScenario floods the SimCheck category so the horizon
// can't hold everything and the allocator escalates the overflow.
func (h *Handler) loadCapacityCrunchScenario(ctx context.Context) error {
	crunchConfig := `{
		"anchor": {
			"number": 12,
			"year": 2025,
			"start": "2025-10-11",
			"publish_offset_days": 10,
			"deadline_offset_days": 21
		},
		"capacity_rules": [
			{"category": "SimCheck", "max_per_cycle": 2, "blackout_months": [12]}
		],
		"minimum_by_rank": {"Captain": 6},
		"renewal_windows": [
			{"category": "SimCheck", "open_days": 90, "notice_days": 120}
		]
	}`
	if err := h.installConfig(ctx, crunchConfig); err != nil {
		return err
	}
	if err := h.Store.SaveStaff(ctx, standardRoster()); err != nil {
		return err
	}

	// 10 renewals due inside ~2 usable cycles with 2 slots each.
	due := roster.NewTimePoint(2025, 12, 5)
	eligible := roster.NewTimePoint(2025, 10, 11)
	var obligations []roster.RenewalObligation
	for i := 1; i <= 10; i++ {
		obligations = append(obligations, renewalObligation(
			fmt.Sprintf("sim-crunch-%02d", i), "SimCheck",
			fmt.Sprintf("cap-%02d", (i-1)%8+1), due, eligible))
	}
	return h.Store.SaveObligations(ctx, obligations)
}

// loadStaffingPinchScenario seeds a roster one absence away from the
// Captain minimum and a request already in flight: once it is approved,
// any overlapping request draws a critical staffing conflict.
func (h *Handler) loadStaffingPinchScenario(ctx context.Context) error {
	pinchConfig := `{
		"anchor": {
			"number": 12,
			"year": 2025,
			"start": "2025-10-11",
			"publish_offset_days": 10,
			"deadline_offset_days": 21
		},
		"capacity_rules": [
			{"category": "LineCheck", "max_per_cycle": 6}
		],
		"minimum_by_rank": {"Captain": 7},
		"renewal_windows": []
	}`
	if err := h.installConfig(ctx, pinchConfig); err != nil {
		return err
	}
	if err := h.Store.SaveStaff(ctx, standardRoster()); err != nil {
		return err
	}

	// 8 Captains, minimum 7: the first absence is fine, any overlap is not.
	return h.Store.SubmitRequest(ctx, roster.ScheduleRequest{
		ID:          "pinch-req-1",
		SubjectID:   "cap-01",
		Rank:        "Captain",
		Dates:       roster.NewDateRange(roster.NewTimePoint(2025, 11, 10), roster.NewTimePoint(2025, 11, 14)),
		Kind:        roster.KindTimeOff,
		RequestedAt: roster.NewTimePoint(2025, 10, 20),
	})
}
