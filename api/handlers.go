/*
handlers.go - HTTP API handlers for the roster scheduling engine

PURPOSE:
  Exposes the scheduling engine via REST API. Handles HTTP
  request/response, JSON serialization, and delegates to domain logic.

ENDPOINTS:
  Cycles:
    GET    /api/cycles                    Upcoming cycles from a date
    GET    /api/cycles/current            Cycle containing today
    GET    /api/cycles/{year}/{number}    One cycle by code parts
    GET    /api/cycles/containing         Cycle containing a date

  Allocation:
    POST   /api/allocation/run            Run the capacity allocator
    GET    /api/allocation/report         Utilization per (category, cycle)

  Obligations:
    GET    /api/obligations               List the renewal backlog
    POST   /api/obligations               Add obligations
    POST   /api/obligations/backlog       Derive obligations from certifications

  Requests:
    POST   /api/requests                  Submit (returns advisory conflicts)
    POST   /api/requests/check            Detect conflicts without submitting
    GET    /api/requests/pending          List pending requests
    POST   /api/requests/{id}/approve     Approve (re-validates staffing)
    POST   /api/requests/{id}/reject      Reject

  Staff:
    GET    /api/staff                     List roster
    POST   /api/staff                     Replace roster

  Config:
    GET    /api/config                    Current configuration document
    PUT    /api/config                    Replace configuration

ARCHITECTURE:
  Handler struct holds all dependencies:
  - Store: Database access
  - ConfigFactory: JSON to operational policy conversion
  - Cached parsed config for quick lookups

REQUEST FLOW:
  1. Parse HTTP request
  2. Validate input
  3. Call domain logic (calculator, allocator, detector)
  4. Serialize response
  5. Handle errors

ERROR HANDLING:
  Errors are returned as JSON with appropriate HTTP status:
  - 400: Validation errors, invalid input
  - 404: Resource not found
  - 409: Commit race, duplicate assignment
  - 500: Internal errors

SECURITY NOTE:
  Currently NO authentication or authorization. All endpoints are public.

SEE ALSO:
  - dto.go: Request/response data structures
  - scenarios.go: Demo scenario loaders
  - server.go: Router setup and middleware
*/
package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"sync"

	"github.com/go-chi/chi/v5"
	"github.com/sirupsen/logrus"

	"github.com/warp/roster-engine/compliance"
	"github.com/warp/roster-engine/factory"
	"github.com/warp/roster-engine/roster"
	"github.com/warp/roster-engine/store/sqlite"
)

// DefaultHorizonCycles bounds allocation runs that don't ask for a
// specific horizon.
const DefaultHorizonCycles = 13

// =============================================================================
// HANDLER CONTEXT
// =============================================================================

// Handler holds all dependencies for HTTP handlers.
type Handler struct {
	Store         *sqlite.Store
	ConfigFactory *factory.ConfigFactory
	Log           *logrus.Logger

	mu     sync.RWMutex
	config *factory.Config // parsed policy, nil until configured

	// Track currently loaded scenario
	currentScenario string
}

// NewHandler creates a new handler with the given store.
func NewHandler(store *sqlite.Store, log *logrus.Logger) *Handler {
	if log == nil {
		log = logrus.New()
	}
	return &Handler{
		Store:         store,
		ConfigFactory: factory.NewConfigFactory(),
		Log:           log,
	}
}

// LoadConfig parses the stored configuration document into the cache.
// Missing configuration is not an error; the config endpoints report it.
func (h *Handler) LoadConfig(ctx context.Context) error {
	raw, err := h.Store.ConfigDocument(ctx)
	if err != nil {
		return err
	}
	if raw == "" {
		return nil
	}
	cfg, err := h.ConfigFactory.Parse(raw)
	if err != nil {
		return err
	}
	h.mu.Lock()
	h.config = cfg
	h.mu.Unlock()
	return nil
}

func (h *Handler) cachedConfig() *factory.Config {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.config
}

// calculator builds a cycle calculator from the stored anchor.
func (h *Handler) calculator(ctx context.Context) (*roster.CycleCalculator, error) {
	cfg, err := h.Store.Anchor(ctx)
	if err != nil {
		return nil, err
	}
	return roster.NewCycleCalculator(cfg)
}

// =============================================================================
// CYCLE HANDLERS
// =============================================================================

// ListCycles returns upcoming cycles from a date.
// GET /api/cycles?from=YYYY-MM-DD&count=13&as_of=YYYY-MM-DD
func (h *Handler) ListCycles(w http.ResponseWriter, r *http.Request) {
	calc, err := h.calculator(r.Context())
	if err != nil {
		writeConfigError(w, err)
		return
	}

	from, ok := dateParam(w, r, "from", roster.Today())
	if !ok {
		return
	}
	asOf, ok := dateParam(w, r, "as_of", roster.Today())
	if !ok {
		return
	}
	count := DefaultHorizonCycles
	if raw := r.URL.Query().Get("count"); raw != "" {
		count, err = strconv.Atoi(raw)
		if err != nil || count < 1 {
			writeError(w, http.StatusBadRequest, "Invalid count", err)
			return
		}
	}

	cycles, err := calc.NextCycles(from, count)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to compute cycles", err)
		return
	}

	dtos := make([]CycleDTO, len(cycles))
	for i, c := range cycles {
		dtos[i] = toCycleDTO(c, asOf)
	}
	writeJSON(w, http.StatusOK, dtos)
}

// GetCurrentCycle returns the cycle containing today.
// GET /api/cycles/current
func (h *Handler) GetCurrentCycle(w http.ResponseWriter, r *http.Request) {
	calc, err := h.calculator(r.Context())
	if err != nil {
		writeConfigError(w, err)
		return
	}

	today := roster.Today()
	cycle, err := calc.CycleContaining(today)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to compute cycle", err)
		return
	}
	writeJSON(w, http.StatusOK, toCycleDTO(cycle, today))
}

// GetCycle returns one cycle addressed by year and number.
// GET /api/cycles/{year}/{number}?as_of=YYYY-MM-DD
func (h *Handler) GetCycle(w http.ResponseWriter, r *http.Request) {
	calc, err := h.calculator(r.Context())
	if err != nil {
		writeConfigError(w, err)
		return
	}

	year, err1 := strconv.Atoi(chi.URLParam(r, "year"))
	number, err2 := strconv.Atoi(chi.URLParam(r, "number"))
	if err1 != nil || err2 != nil {
		writeError(w, http.StatusBadRequest, "Invalid cycle address", nil)
		return
	}
	asOf, ok := dateParam(w, r, "as_of", roster.Today())
	if !ok {
		return
	}

	cycle, err := calc.Cycle(number, year)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid cycle", err)
		return
	}
	writeJSON(w, http.StatusOK, toCycleDTO(cycle, asOf))
}

// GetCycleContaining returns the cycle containing an arbitrary date.
// GET /api/cycles/containing?date=YYYY-MM-DD
func (h *Handler) GetCycleContaining(w http.ResponseWriter, r *http.Request) {
	calc, err := h.calculator(r.Context())
	if err != nil {
		writeConfigError(w, err)
		return
	}

	raw := r.URL.Query().Get("date")
	if raw == "" {
		writeError(w, http.StatusBadRequest, "Missing date parameter", nil)
		return
	}
	date, err := roster.ParseDate(raw)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid date format (use YYYY-MM-DD)", err)
		return
	}

	cycle, err := calc.CycleContaining(date)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to compute cycle", err)
		return
	}
	writeJSON(w, http.StatusOK, toCycleDTO(cycle, roster.Today()))
}

// =============================================================================
// ALLOCATION HANDLERS
// =============================================================================

// RunAllocation runs the capacity allocator over the current snapshot.
// With commit=true, assignments are persisted under re-validation; a lost
// race returns 409 and the caller re-runs against a fresh snapshot.
// POST /api/allocation/run
func (h *Handler) RunAllocation(w http.ResponseWriter, r *http.Request) {
	var req AllocationRunRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	asOf := roster.Today()
	if req.AsOf != "" {
		parsed, err := roster.ParseDate(req.AsOf)
		if err != nil {
			writeError(w, http.StatusBadRequest, "Invalid as_of format (use YYYY-MM-DD)", err)
			return
		}
		asOf = parsed
	}
	horizon := req.HorizonCycles
	if horizon <= 0 {
		horizon = DefaultHorizonCycles
	}

	ctx := r.Context()
	calc, err := h.calculator(ctx)
	if err != nil {
		writeConfigError(w, err)
		return
	}
	snap, err := h.Store.Snapshot(ctx)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to read snapshot", err)
		return
	}

	result, err := roster.NewCapacityAllocator(calc).Allocate(roster.AllocationInput{
		Obligations:   unassignedObligations(snap),
		Rules:         snap.Rules,
		Existing:      snap.Assignments,
		HorizonCycles: horizon,
		AsOf:          asOf,
	})
	if err != nil {
		writeError(w, http.StatusBadRequest, "Allocation failed", err)
		return
	}

	committed := false
	if req.Commit && len(result.Assignments) > 0 {
		if err := h.Store.CommitAssignments(ctx, result.Assignments); err != nil {
			if roster.IsRetryable(err) || errors.Is(err, roster.ErrDuplicateAssignment) {
				writeError(w, http.StatusConflict, "Commit lost a race, re-run allocation", err)
				return
			}
			writeError(w, http.StatusInternalServerError, "Failed to commit assignments", err)
			return
		}
		committed = true
		h.Log.WithFields(logrus.Fields{
			"assignments": len(result.Assignments),
			"unscheduled": len(result.Unscheduled),
			"as_of":       asOf.String(),
		}).Info("allocation committed")
	}

	writeJSON(w, http.StatusOK, toAllocationDTO(result, committed))
}

// GetAllocationReport returns utilization without committing anything.
// GET /api/allocation/report?horizon=13&as_of=YYYY-MM-DD
func (h *Handler) GetAllocationReport(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	calc, err := h.calculator(ctx)
	if err != nil {
		writeConfigError(w, err)
		return
	}
	asOf, ok := dateParam(w, r, "as_of", roster.Today())
	if !ok {
		return
	}
	horizon := DefaultHorizonCycles
	if raw := r.URL.Query().Get("horizon"); raw != "" {
		horizon, err = strconv.Atoi(raw)
		if err != nil || horizon < 1 {
			writeError(w, http.StatusBadRequest, "Invalid horizon", err)
			return
		}
	}

	snap, err := h.Store.Snapshot(ctx)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to read snapshot", err)
		return
	}

	// A dry run over an empty backlog still produces the load report for
	// existing assignments.
	result, err := roster.NewCapacityAllocator(calc).Allocate(roster.AllocationInput{
		Rules:         snap.Rules,
		Existing:      snap.Assignments,
		HorizonCycles: horizon,
		AsOf:          asOf,
	})
	if err != nil {
		writeError(w, http.StatusBadRequest, "Report failed", err)
		return
	}

	loads := make([]CycleLoadDTO, len(result.Loads))
	for i, l := range result.Loads {
		loads[i] = toCycleLoadDTO(l)
	}
	writeJSON(w, http.StatusOK, map[string]any{"loads": loads})
}

// =============================================================================
// OBLIGATION HANDLERS
// =============================================================================

// ListObligations returns the renewal backlog with assignment state.
// GET /api/obligations
func (h *Handler) ListObligations(w http.ResponseWriter, r *http.Request) {
	snap, err := h.Store.Snapshot(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to read snapshot", err)
		return
	}

	assigned := make(map[roster.ObligationID]roster.Assignment, len(snap.Assignments))
	for _, a := range snap.Assignments {
		assigned[a.ObligationID] = a
	}

	type row struct {
		ObligationDTO
		AssignedCycle string `json:"assigned_cycle,omitempty"`
	}
	rows := make([]row, len(snap.Obligations))
	for i, ob := range snap.Obligations {
		rows[i] = row{ObligationDTO: toObligationDTO(ob)}
		if a, ok := assigned[ob.ID]; ok {
			rows[i].AssignedCycle = roster.CycleCode(a.CycleNumber, a.CycleYear)
		}
	}
	writeJSON(w, http.StatusOK, rows)
}

// CreateObligations adds obligations to the backlog. Re-posting the same
// IDs is a no-op.
// POST /api/obligations
func (h *Handler) CreateObligations(w http.ResponseWriter, r *http.Request) {
	var dtos []ObligationDTO
	if err := json.NewDecoder(r.Body).Decode(&dtos); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	obligations := make([]roster.RenewalObligation, 0, len(dtos))
	for _, dto := range dtos {
		ob, err := fromObligationDTO(dto)
		if err != nil {
			writeError(w, http.StatusBadRequest, "Invalid obligation", err)
			return
		}
		obligations = append(obligations, ob)
	}

	if err := h.Store.SaveObligations(r.Context(), obligations); err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to save obligations", err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{"saved": len(obligations)})
}

// GenerateBacklog derives renewal obligations from expiring certifications
// using the configured renewal windows, skipping certifications already
// covered by the backlog or an assignment.
// POST /api/obligations/backlog
func (h *Handler) GenerateBacklog(w http.ResponseWriter, r *http.Request) {
	cfg := h.cachedConfig()
	if cfg == nil {
		writeError(w, http.StatusBadRequest, "No configuration loaded", nil)
		return
	}

	var req BacklogRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	asOf := roster.Today()
	if req.AsOf != "" {
		parsed, err := roster.ParseDate(req.AsOf)
		if err != nil {
			writeError(w, http.StatusBadRequest, "Invalid as_of format (use YYYY-MM-DD)", err)
			return
		}
		asOf = parsed
	}

	certs := make([]compliance.Certification, 0, len(req.Certifications))
	for _, c := range req.Certifications {
		expires, err := roster.ParseDate(c.Expires)
		if err != nil {
			writeError(w, http.StatusBadRequest, "Invalid expires format (use YYYY-MM-DD)", err)
			return
		}
		certs = append(certs, compliance.Certification{
			ID:       c.ID,
			OwnerID:  roster.StaffID(c.OwnerID),
			Category: roster.Category(c.Category),
			Expires:  expires,
		})
	}

	builder, err := compliance.NewBacklogBuilder(cfg.RenewalWindows)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid renewal windows", err)
		return
	}

	ctx := r.Context()
	snap, err := h.Store.Snapshot(ctx)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to read snapshot", err)
		return
	}

	obligations := builder.Build(certs, snap.Obligations, snap.Assignments, asOf)
	if len(obligations) > 0 {
		if err := h.Store.SaveObligations(ctx, obligations); err != nil {
			writeError(w, http.StatusInternalServerError, "Failed to save obligations", err)
			return
		}
	}

	dtos := make([]ObligationDTO, len(obligations))
	for i, ob := range obligations {
		dtos[i] = toObligationDTO(ob)
	}
	writeJSON(w, http.StatusCreated, map[string]any{"generated": dtos})
}

// =============================================================================
// SCHEDULE REQUEST HANDLERS
// =============================================================================

// SubmitRequest records a request as pending and returns every detected
// conflict. Detection is advisory: a conflicted request is still recorded,
// approval is where conflicts bind.
// POST /api/requests
func (h *Handler) SubmitRequest(w http.ResponseWriter, r *http.Request) {
	req, snap, ok := h.decodeRequest(w, r)
	if !ok {
		return
	}

	conflicts, err := roster.NewConflictDetector().Detect(roster.DetectionInput{
		Request:       req,
		Pending:       snap.Pending,
		Approved:      snap.Approved,
		Staff:         snap.Staff,
		MinimumByRank: snap.MinimumByRank,
	})
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request", err)
		return
	}

	if err := h.Store.SubmitRequest(r.Context(), req); err != nil {
		if errors.Is(err, roster.ErrDuplicateRequest) {
			writeError(w, http.StatusConflict, "Request ID already submitted", err)
			return
		}
		writeError(w, http.StatusInternalServerError, "Failed to submit request", err)
		return
	}

	writeJSON(w, http.StatusCreated, SubmitResponse{
		Request:   toRequestDTO(req),
		Conflicts: toConflictDTOs(conflicts),
	})
}

// CheckRequest runs conflict detection without recording anything.
// POST /api/requests/check
func (h *Handler) CheckRequest(w http.ResponseWriter, r *http.Request) {
	req, snap, ok := h.decodeRequest(w, r)
	if !ok {
		return
	}

	conflicts, err := roster.NewConflictDetector().Detect(roster.DetectionInput{
		Request:       req,
		Pending:       snap.Pending,
		Approved:      snap.Approved,
		Staff:         snap.Staff,
		MinimumByRank: snap.MinimumByRank,
	})
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"conflicts": toConflictDTOs(conflicts)})
}

// decodeRequest parses a submit body into a domain request, defaulting
// the rank from the roster, and returns the current snapshot alongside.
func (h *Handler) decodeRequest(w http.ResponseWriter, r *http.Request) (roster.ScheduleRequest, *roster.Snapshot, bool) {
	var body SubmitScheduleRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return roster.ScheduleRequest{}, nil, false
	}
	if body.ID == "" || body.SubjectID == "" {
		writeError(w, http.StatusBadRequest, "id and subject_id are required", nil)
		return roster.ScheduleRequest{}, nil, false
	}

	start, err := roster.ParseDate(body.Start)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid start format (use YYYY-MM-DD)", err)
		return roster.ScheduleRequest{}, nil, false
	}
	end, err := roster.ParseDate(body.End)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid end format (use YYYY-MM-DD)", err)
		return roster.ScheduleRequest{}, nil, false
	}

	snap, err := h.Store.Snapshot(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to read snapshot", err)
		return roster.ScheduleRequest{}, nil, false
	}

	rank := roster.Rank(body.Rank)
	if rank == "" {
		for _, s := range snap.Staff {
			if s.ID == roster.StaffID(body.SubjectID) {
				rank = s.Rank
				break
			}
		}
	}

	kind := roster.RequestKind(body.Kind)
	if kind == "" {
		kind = roster.KindTimeOff
	}

	return roster.ScheduleRequest{
		ID:          roster.RequestID(body.ID),
		SubjectID:   roster.StaffID(body.SubjectID),
		Rank:        rank,
		Dates:       roster.NewDateRange(start, end),
		Kind:        kind,
		RequestedAt: roster.Today(),
	}, snap, true
}

// ListPendingRequests returns all pending requests.
// GET /api/requests/pending
func (h *Handler) ListPendingRequests(w http.ResponseWriter, r *http.Request) {
	snap, err := h.Store.Snapshot(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to read snapshot", err)
		return
	}
	dtos := make([]ScheduleRequestDTO, len(snap.Pending))
	for i, req := range snap.Pending {
		dtos[i] = toRequestDTO(req)
	}
	writeJSON(w, http.StatusOK, dtos)
}

// ApproveRequest approves a pending request. The store re-validates the
// staffing minimum at commit time; a lost race returns 409.
// POST /api/requests/{id}/approve
func (h *Handler) ApproveRequest(w http.ResponseWriter, r *http.Request) {
	id := roster.RequestID(chi.URLParam(r, "id"))

	err := h.Store.ApproveRequest(r.Context(), id)
	switch {
	case err == nil:
		writeJSON(w, http.StatusOK, map[string]any{"status": "approved"})
	case errors.Is(err, roster.ErrRequestNotFound):
		writeError(w, http.StatusNotFound, "Request not found", err)
	case roster.IsRetryable(err):
		writeError(w, http.StatusConflict, "Approval would break a staffing minimum", err)
	default:
		writeError(w, http.StatusInternalServerError, "Failed to approve request", err)
	}
}

// RejectRequest removes a pending request.
// POST /api/requests/{id}/reject
func (h *Handler) RejectRequest(w http.ResponseWriter, r *http.Request) {
	id := roster.RequestID(chi.URLParam(r, "id"))

	err := h.Store.RejectRequest(r.Context(), id)
	switch {
	case err == nil:
		writeJSON(w, http.StatusOK, map[string]any{"status": "rejected"})
	case errors.Is(err, roster.ErrRequestNotFound):
		writeError(w, http.StatusNotFound, "Request not found", err)
	default:
		writeError(w, http.StatusInternalServerError, "Failed to reject request", err)
	}
}

// =============================================================================
// STAFF HANDLERS
// =============================================================================

// ListStaff returns the roster.
// GET /api/staff
func (h *Handler) ListStaff(w http.ResponseWriter, r *http.Request) {
	snap, err := h.Store.Snapshot(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to read snapshot", err)
		return
	}
	dtos := make([]StaffDTO, len(snap.Staff))
	for i, s := range snap.Staff {
		dtos[i] = StaffDTO{ID: string(s.ID), Rank: string(s.Rank), Active: s.Active}
	}
	writeJSON(w, http.StatusOK, dtos)
}

// ReplaceStaff replaces the roster.
// POST /api/staff
func (h *Handler) ReplaceStaff(w http.ResponseWriter, r *http.Request) {
	var dtos []StaffDTO
	if err := json.NewDecoder(r.Body).Decode(&dtos); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	staff := make([]roster.StaffMember, len(dtos))
	for i, dto := range dtos {
		staff[i] = roster.StaffMember{
			ID:     roster.StaffID(dto.ID),
			Rank:   roster.Rank(dto.Rank),
			Active: dto.Active,
		}
	}
	if err := h.Store.SaveStaff(r.Context(), staff); err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to save staff", err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{"saved": len(staff)})
}

// =============================================================================
// CONFIG HANDLERS
// =============================================================================

// GetConfig returns the current configuration document.
// GET /api/config
func (h *Handler) GetConfig(w http.ResponseWriter, r *http.Request) {
	raw, err := h.Store.ConfigDocument(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to read configuration", err)
		return
	}
	if raw == "" {
		writeError(w, http.StatusNotFound, "No configuration loaded", nil)
		return
	}

	var doc factory.ConfigJSON
	if err := json.Unmarshal([]byte(raw), &doc); err != nil {
		writeError(w, http.StatusInternalServerError, "Stored configuration is corrupt", err)
		return
	}
	writeJSON(w, http.StatusOK, ConfigDTO{Config: doc})
}

// PutConfig validates and installs a new configuration document: the
// anchor, capacity rules, and rank minimums land in their own tables and
// the raw document is kept for the renewal windows.
// PUT /api/config
func (h *Handler) PutConfig(w http.ResponseWriter, r *http.Request) {
	var dto ConfigDTO
	if err := json.NewDecoder(r.Body).Decode(&dto); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	raw, err := json.Marshal(dto.Config)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid configuration", err)
		return
	}

	cfg, err := h.ConfigFactory.Parse(string(raw))
	if err != nil {
		writeError(w, http.StatusBadRequest, "Configuration rejected", err)
		return
	}

	ctx := r.Context()
	if err := h.Store.SaveAnchor(ctx, cfg.Anchor); err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to save anchor", err)
		return
	}
	if err := h.Store.SaveRules(ctx, cfg.CapacityRules); err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to save rules", err)
		return
	}
	if err := h.Store.SaveMinimums(ctx, cfg.MinimumByRank); err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to save minimums", err)
		return
	}
	if err := h.Store.SaveConfigDocument(ctx, string(raw)); err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to save configuration", err)
		return
	}

	h.mu.Lock()
	h.config = cfg
	h.mu.Unlock()

	h.Log.WithFields(logrus.Fields{
		"rules":    len(cfg.CapacityRules),
		"minimums": len(cfg.MinimumByRank),
		"windows":  len(cfg.RenewalWindows),
	}).Info("configuration installed")

	writeJSON(w, http.StatusOK, map[string]any{"status": "installed"})
}

// =============================================================================
// CONVERSION HELPERS
// =============================================================================

func toCycleDTO(c roster.Cycle, asOf roster.TimePoint) CycleDTO {
	return CycleDTO{
		Code:         c.Code(),
		Number:       c.Number,
		Year:         c.Year,
		Start:        c.Start.String(),
		End:          c.End.String(),
		PublishDate:  c.PublishDate.String(),
		DeadlineDate: c.DeadlineDate.String(),
		Status:       string(c.Status(asOf)),
	}
}

func toAllocationDTO(result *roster.AllocationResult, committed bool) AllocationResultDTO {
	dto := AllocationResultDTO{
		Assignments: make([]AssignmentDTO, len(result.Assignments)),
		Unscheduled: make([]UnscheduledDTO, len(result.Unscheduled)),
		RuleIssues:  make([]RuleIssueDTO, len(result.RuleIssues)),
		Loads:       make([]CycleLoadDTO, len(result.Loads)),
		Committed:   committed,
	}
	for i, a := range result.Assignments {
		dto.Assignments[i] = AssignmentDTO{
			ObligationID: string(a.ObligationID),
			Category:     string(a.Category),
			Cycle:        roster.CycleCode(a.CycleNumber, a.CycleYear),
			AssignedAt:   a.AssignedAt.String(),
		}
	}
	for i, u := range result.Unscheduled {
		dto.Unscheduled[i] = UnscheduledDTO{
			ObligationID: string(u.ObligationID),
			Category:     string(u.Category),
			Reason:       string(u.Reason),
		}
	}
	for i, issue := range result.RuleIssues {
		dto.RuleIssues[i] = RuleIssueDTO{Category: string(issue.Category), Detail: issue.Detail}
	}
	for i, l := range result.Loads {
		dto.Loads[i] = toCycleLoadDTO(l)
	}
	return dto
}

func toCycleLoadDTO(l roster.CycleLoad) CycleLoadDTO {
	return CycleLoadDTO{
		Category:    string(l.Category),
		Cycle:       roster.CycleCode(l.Cycle.Number, l.Cycle.Year),
		Assigned:    l.Assigned,
		MaxPerCycle: l.MaxPerCycle,
		LoadFactor:  l.LoadFactor.String(),
	}
}

func toRequestDTO(req roster.ScheduleRequest) ScheduleRequestDTO {
	return ScheduleRequestDTO{
		ID:          string(req.ID),
		SubjectID:   string(req.SubjectID),
		Rank:        string(req.Rank),
		Start:       req.Dates.Start.String(),
		End:         req.Dates.End.String(),
		Kind:        string(req.Kind),
		RequestedAt: req.RequestedAt.String(),
	}
}

func toConflictDTOs(conflicts []roster.Conflict) []ConflictDTO {
	dtos := make([]ConflictDTO, len(conflicts))
	for i, c := range conflicts {
		ids := make([]string, len(c.AffectedRequestIDs))
		for j, id := range c.AffectedRequestIDs {
			ids[j] = string(id)
		}
		dtos[i] = ConflictDTO{
			Type:               string(c.Type),
			Severity:           string(c.Severity),
			AffectedRequestIDs: ids,
			Detail:             c.Detail,
		}
	}
	return dtos
}

func toObligationDTO(ob roster.RenewalObligation) ObligationDTO {
	return ObligationDTO{
		ID:               string(ob.ID),
		Category:         string(ob.Category),
		OwnerID:          string(ob.OwnerID),
		DueBy:            ob.DueBy.String(),
		EarliestEligible: ob.EarliestEligible.String(),
	}
}

func fromObligationDTO(dto ObligationDTO) (roster.RenewalObligation, error) {
	dueBy, err := roster.ParseDate(dto.DueBy)
	if err != nil {
		return roster.RenewalObligation{}, err
	}
	eligible, err := roster.ParseDate(dto.EarliestEligible)
	if err != nil {
		return roster.RenewalObligation{}, err
	}
	return roster.RenewalObligation{
		ID:               roster.ObligationID(dto.ID),
		Category:         roster.Category(dto.Category),
		OwnerID:          roster.StaffID(dto.OwnerID),
		DueBy:            dueBy,
		EarliestEligible: eligible,
	}, nil
}

// unassignedObligations filters the backlog down to obligations without
// an assignment yet.
func unassignedObligations(snap *roster.Snapshot) []roster.RenewalObligation {
	assigned := make(map[roster.ObligationID]bool, len(snap.Assignments))
	for _, a := range snap.Assignments {
		assigned[a.ObligationID] = true
	}
	var out []roster.RenewalObligation
	for _, ob := range snap.Obligations {
		if !assigned[ob.ID] {
			out = append(out, ob)
		}
	}
	return out
}

// dateParam parses an optional YYYY-MM-DD query parameter, writing a 400
// and returning ok=false on malformed input.
func dateParam(w http.ResponseWriter, r *http.Request, name string, fallback roster.TimePoint) (roster.TimePoint, bool) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return fallback, true
	}
	parsed, err := roster.ParseDate(raw)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid "+name+" format (use YYYY-MM-DD)", err)
		return roster.TimePoint{}, false
	}
	return parsed, true
}

// writeConfigError maps a missing/invalid anchor to 400 rather than 500:
// the fix is configuration, not the server.
func writeConfigError(w http.ResponseWriter, err error) {
	if roster.IsConfigurationError(err) {
		writeError(w, http.StatusBadRequest, "Engine not configured", err)
		return
	}
	writeError(w, http.StatusInternalServerError, "Failed to load configuration", err)
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, message string, err error) {
	resp := ErrorResponse{Error: message}
	if err != nil {
		resp.Details = err.Error()
	}
	writeJSON(w, status, resp)
}
