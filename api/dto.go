/*
dto.go - Data Transfer Objects for API requests and responses

PURPOSE:
  Defines the JSON structures for API communication. These types decouple
  the internal domain model from the external API contract, allowing:
  - Field renaming without breaking clients
  - API-specific validation
  - Version evolution

NAMING CONVENTION:
  - *DTO: Response types returned to clients
  - *Request: Request body types from clients
  - *Response: Complex response wrappers

TYPES:
  Cycles:
    CycleDTO

  Allocation:
    AllocationRunRequest, AllocationResultDTO, AssignmentDTO,
    UnscheduledDTO, RuleIssueDTO, CycleLoadDTO

  Requests:
    SubmitScheduleRequest, ScheduleRequestDTO, ConflictDTO

  Staff & obligations:
    StaffDTO, ObligationDTO, CertificationDTO

  Configuration:
    ConfigDTO (wraps factory.ConfigJSON)

VALIDATION:
  Validation is done in handlers, not in DTOs. DTOs are pure data carriers.

SEE ALSO:
  - handlers.go: Uses these types
  - factory/rules.go: ConfigJSON type
*/
package api

import (
	"github.com/warp/roster-engine/factory"
)

// =============================================================================
// CYCLE TYPES
// =============================================================================

// CycleDTO represents one roster cycle in API responses. Dates are
// YYYY-MM-DD; status is derived from the as-of date of the request.
type CycleDTO struct {
	Code         string `json:"code"`
	Number       int    `json:"number"`
	Year         int    `json:"year"`
	Start        string `json:"start"`
	End          string `json:"end"`
	PublishDate  string `json:"publish_date"`
	DeadlineDate string `json:"deadline_date"`
	Status       string `json:"status"`
}

// =============================================================================
// ALLOCATION TYPES
// =============================================================================

// AllocationRunRequest configures one allocation run.
type AllocationRunRequest struct {
	HorizonCycles int    `json:"horizon_cycles"`
	AsOf          string `json:"as_of,omitempty"` // defaults to today
	Commit        bool   `json:"commit"`          // persist the assignments
}

// AssignmentDTO represents one obligation pinned to one cycle.
type AssignmentDTO struct {
	ObligationID string `json:"obligation_id"`
	Category     string `json:"category"`
	Cycle        string `json:"cycle"`
	AssignedAt   string `json:"assigned_at"`
}

// UnscheduledDTO represents an obligation the allocator could not place.
type UnscheduledDTO struct {
	ObligationID string `json:"obligation_id"`
	Category     string `json:"category"`
	Reason       string `json:"reason"`
}

// RuleIssueDTO flags a capacity rule that blocks a whole category.
type RuleIssueDTO struct {
	Category string `json:"category"`
	Detail   string `json:"detail"`
}

// CycleLoadDTO reports utilization for one (category, cycle) slot.
type CycleLoadDTO struct {
	Category    string `json:"category"`
	Cycle       string `json:"cycle"`
	Assigned    int    `json:"assigned"`
	MaxPerCycle int    `json:"max_per_cycle"`
	LoadFactor  string `json:"load_factor"` // exact decimal, e.g. "0.5"
}

// AllocationResultDTO is the full output of one allocation run.
type AllocationResultDTO struct {
	Assignments []AssignmentDTO  `json:"assignments"`
	Unscheduled []UnscheduledDTO `json:"unscheduled"`
	RuleIssues  []RuleIssueDTO   `json:"rule_issues"`
	Loads       []CycleLoadDTO   `json:"loads"`
	Committed   bool             `json:"committed"`
}

// =============================================================================
// SCHEDULE REQUEST TYPES
// =============================================================================

// SubmitScheduleRequest is the request body to submit a schedule request.
type SubmitScheduleRequest struct {
	ID        string `json:"id"`
	SubjectID string `json:"subject_id"`
	Rank      string `json:"rank,omitempty"` // defaults to the subject's roster rank
	Start     string `json:"start"`
	End       string `json:"end"`
	Kind      string `json:"kind,omitempty"`
}

// ScheduleRequestDTO represents a schedule request in API responses.
type ScheduleRequestDTO struct {
	ID          string `json:"id"`
	SubjectID   string `json:"subject_id"`
	Rank        string `json:"rank"`
	Start       string `json:"start"`
	End         string `json:"end"`
	Kind        string `json:"kind"`
	RequestedAt string `json:"requested_at"`
}

// ConflictDTO represents one detected conflict.
type ConflictDTO struct {
	Type               string   `json:"type"`
	Severity           string   `json:"severity"`
	AffectedRequestIDs []string `json:"affected_request_ids"`
	Detail             string   `json:"detail"`
}

// SubmitResponse pairs the recorded request with its advisory conflicts.
type SubmitResponse struct {
	Request   ScheduleRequestDTO `json:"request"`
	Conflicts []ConflictDTO      `json:"conflicts"`
}

// =============================================================================
// STAFF AND OBLIGATION TYPES
// =============================================================================

// StaffDTO represents a roster member.
type StaffDTO struct {
	ID     string `json:"id"`
	Rank   string `json:"rank"`
	Active bool   `json:"active"`
}

// ObligationDTO represents a renewal obligation.
type ObligationDTO struct {
	ID               string `json:"id"`
	Category         string `json:"category"`
	OwnerID          string `json:"owner_id"`
	DueBy            string `json:"due_by"`
	EarliestEligible string `json:"earliest_eligible"`
}

// CertificationDTO is the input to backlog generation: a certification
// with an expiry date that may need a renewal obligation.
type CertificationDTO struct {
	ID       string `json:"id"`
	OwnerID  string `json:"owner_id"`
	Category string `json:"category"`
	Expires  string `json:"expires"`
}

// BacklogRequest asks the server to derive renewal obligations from
// expiring certifications.
type BacklogRequest struct {
	Certifications []CertificationDTO `json:"certifications"`
	AsOf           string             `json:"as_of,omitempty"`
}

// =============================================================================
// CONFIGURATION AND SCENARIO TYPES
// =============================================================================

// ConfigDTO wraps the JSON configuration document.
type ConfigDTO struct {
	Config factory.ConfigJSON `json:"config"`
}

// ScenarioDTO describes a loadable demo scenario.
type ScenarioDTO struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
	Category    string `json:"category"`
}

// LoadScenarioRequest selects a scenario to load.
type LoadScenarioRequest struct {
	ScenarioID string `json:"scenario_id"`
}

// ErrorResponse is the standard error envelope.
type ErrorResponse struct {
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
}
