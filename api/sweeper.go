/*
sweeper.go - Automated allocation sweeper

PURPOSE:
  Periodically re-runs the capacity allocator over the unassigned backlog
  and commits what fits. New obligations arrive between manual runs;
  the sweeper keeps the grid filled without an operator clicking "run".

DESIGN:
  - Runs on a cron schedule (default hourly)
  - Each sweep: snapshot, allocate the unassigned backlog, commit
  - A lost commit race re-snapshots and retries, bounded
  - Unscheduled obligations are logged for escalation; the sweeper never
    invents capacity

CONFIGURATION:
  - Schedule: cron expression (default: "@hourly")
  - Enabled: whether the sweeper is active (default: true)

USAGE:
  sweeper := NewAllocationSweeper(store, log)
  sweeper.Start()
  // ... later
  sweeper.Stop()

SEE ALSO:
  - handlers.go: RunAllocation endpoint (manual runs)
  - roster/allocator.go: CapacityAllocator
*/
package api

import (
	"context"
	"errors"

	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"

	"github.com/warp/roster-engine/roster"
	"github.com/warp/roster-engine/store/sqlite"
)

// maxSweepRetries bounds re-runs after lost commit races within one sweep.
const maxSweepRetries = 3

// AllocationSweeper commits allocator output on a schedule.
type AllocationSweeper struct {
	Store    *sqlite.Store
	Log      *logrus.Logger
	Schedule string
	Horizon  int
	Enabled  bool

	// Now is the clock for allocation runs. Overridable in tests.
	Now func() roster.TimePoint

	cron *cron.Cron
}

// NewAllocationSweeper creates a sweeper with the default hourly schedule.
func NewAllocationSweeper(store *sqlite.Store, log *logrus.Logger) *AllocationSweeper {
	if log == nil {
		log = logrus.New()
	}
	return &AllocationSweeper{
		Store:    store,
		Log:      log,
		Schedule: "@hourly",
		Horizon:  DefaultHorizonCycles,
		Enabled:  true,
		Now:      roster.Today,
	}
}

// Start schedules the sweep and runs one immediately.
func (s *AllocationSweeper) Start() error {
	if !s.Enabled {
		s.Log.Info("sweeper disabled, not starting")
		return nil
	}

	s.cron = cron.New()
	if _, err := s.cron.AddFunc(s.Schedule, s.Sweep); err != nil {
		return err
	}
	s.cron.Start()
	s.Log.WithField("schedule", s.Schedule).Info("sweeper started")

	go s.Sweep()
	return nil
}

// Stop halts the schedule and waits for a running sweep to finish.
func (s *AllocationSweeper) Stop() {
	if s.cron == nil {
		return
	}
	<-s.cron.Stop().Done()
	s.Log.Info("sweeper stopped")
}

// Sweep runs one allocation pass. Also called directly for tests and
// admin triggers.
func (s *AllocationSweeper) Sweep() {
	ctx := context.Background()

	anchor, err := s.Store.Anchor(ctx)
	if err != nil {
		if roster.IsConfigurationError(err) {
			s.Log.Debug("sweep skipped, engine not configured")
			return
		}
		s.Log.WithError(err).Error("sweep failed reading anchor")
		return
	}
	calc, err := roster.NewCycleCalculator(anchor)
	if err != nil {
		s.Log.WithError(err).Error("sweep failed building calculator")
		return
	}
	allocator := roster.NewCapacityAllocator(calc)

	for attempt := 0; attempt <= maxSweepRetries; attempt++ {
		snap, err := s.Store.Snapshot(ctx)
		if err != nil {
			s.Log.WithError(err).Error("sweep failed reading snapshot")
			return
		}

		backlog := unassignedObligations(snap)
		if len(backlog) == 0 {
			return
		}

		result, err := allocator.Allocate(roster.AllocationInput{
			Obligations:   backlog,
			Rules:         snap.Rules,
			Existing:      snap.Assignments,
			HorizonCycles: s.Horizon,
			AsOf:          s.Now(),
		})
		if err != nil {
			s.Log.WithError(err).Error("sweep allocation failed")
			return
		}

		for _, u := range result.Unscheduled {
			s.Log.WithFields(logrus.Fields{
				"obligation": string(u.ObligationID),
				"category":   string(u.Category),
				"reason":     string(u.Reason),
			}).Warn("obligation left unscheduled, needs escalation")
		}
		for _, issue := range result.RuleIssues {
			s.Log.WithField("category", string(issue.Category)).Warn(issue.Detail)
		}

		if len(result.Assignments) == 0 {
			return
		}

		err = s.Store.CommitAssignments(ctx, result.Assignments)
		if err == nil {
			s.Log.WithFields(logrus.Fields{
				"assignments": len(result.Assignments),
				"unscheduled": len(result.Unscheduled),
				"attempt":     attempt + 1,
			}).Info("sweep committed")
			return
		}
		if roster.IsRetryable(err) || errors.Is(err, roster.ErrDuplicateAssignment) {
			s.Log.WithError(err).WithField("attempt", attempt+1).Info("sweep lost a commit race, retrying")
			continue
		}
		s.Log.WithError(err).Error("sweep commit failed")
		return
	}

	s.Log.Warn("sweep gave up after repeated commit races")
}
