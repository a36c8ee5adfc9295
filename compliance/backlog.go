/*
backlog.go - Renewal obligation generation from certification expiries

PURPOSE:
  Converts certification records into the renewal backlog the capacity
  allocator consumes. A certification inside its notice window produces
  exactly one obligation:

    earliestEligible = expiry - OpenDays
    dueBy            = expiry

  Generation is idempotent: certifications that already have a backlog
  entry or a committed assignment are skipped, so the builder can run on
  every sweep without duplicating work.

LIFECYCLE NOTE:
  The backlog is OWNED here, consumed by the allocator, and entries are
  removed when the external compliance record is renewed. The allocator
  never mutates the backlog.

SEE ALSO:
  - roster/allocator.go: Consumes the generated obligations
  - api/handlers.go: GenerateBacklog endpoint feeding certifications in
*/
package compliance

import (
	"sort"

	"github.com/warp/roster-engine/roster"
)

// =============================================================================
// BACKLOG BUILDER
// =============================================================================

// BacklogBuilder derives due obligations from certifications and windows.
type BacklogBuilder struct {
	windows map[roster.Category]RenewalWindow
}

// NewBacklogBuilder validates every window up front.
func NewBacklogBuilder(windows []RenewalWindow) (*BacklogBuilder, error) {
	indexed := make(map[roster.Category]RenewalWindow, len(windows))
	for _, w := range windows {
		if err := w.Validate(); err != nil {
			return nil, err
		}
		indexed[w.Category] = w
	}
	return &BacklogBuilder{windows: indexed}, nil
}

// Build returns the obligations that should exist as of the given day,
// excluding any certification already represented in the current backlog
// or assignment set. Output is sorted by due date for determinism.
func (b *BacklogBuilder) Build(
	certifications []Certification,
	existing []roster.RenewalObligation,
	assigned []roster.Assignment,
	asOf roster.TimePoint,
) []roster.RenewalObligation {
	known := make(map[roster.ObligationID]bool, len(existing)+len(assigned))
	for _, ob := range existing {
		known[ob.ID] = true
	}
	for _, a := range assigned {
		known[a.ObligationID] = true
	}

	var backlog []roster.RenewalObligation
	for _, cert := range certifications {
		window, ok := b.windows[cert.Category]
		if !ok {
			continue // no renewal policy for this category
		}

		noticeFrom := cert.Expires.AddDays(-window.NoticeDays)
		if asOf.Before(noticeFrom) {
			continue // not yet inside the notice window
		}

		id := ObligationIDFor(cert)
		if known[id] {
			continue
		}

		backlog = append(backlog, roster.RenewalObligation{
			ID:               id,
			Category:         cert.Category,
			OwnerID:          cert.OwnerID,
			DueBy:            cert.Expires,
			EarliestEligible: cert.Expires.AddDays(-window.OpenDays),
		})
	}

	sort.Slice(backlog, func(i, j int) bool {
		a, c := backlog[i], backlog[j]
		if !a.DueBy.Equal(c.DueBy) {
			return a.DueBy.Before(c.DueBy)
		}
		return a.ID < c.ID
	})
	return backlog
}

// ObligationIDFor derives the stable backlog id for one certification
// expiry. One expiry, one obligation, however often generation runs.
func ObligationIDFor(cert Certification) roster.ObligationID {
	return roster.ObligationID("renew-" + cert.ID + "-" + cert.Expires.String())
}
