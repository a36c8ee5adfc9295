// Package compliance implements renewal-backlog generation for the roster
// engine. It watches certification records and raises renewal obligations
// as expiries approach, using the core engine's categories and windows.
package compliance

import "github.com/warp/roster-engine/roster"

// =============================================================================
// CERTIFICATION RECORDS
// =============================================================================

// Certification is one held qualification with an expiry date.
type Certification struct {
	ID       string
	OwnerID  roster.StaffID
	Category roster.Category
	Expires  roster.TimePoint
}

// RenewalWindow controls when an expiring certification turns into a
// renewal obligation for its category.
type RenewalWindow struct {
	Category roster.Category

	// OpenDays before expiry the renewal becomes eligible; a renewal done
	// earlier would not reset the certification clock.
	OpenDays int

	// NoticeDays before expiry the obligation enters the backlog. Must be
	// at least OpenDays so the obligation never appears before it could be
	// acted on.
	NoticeDays int
}

// Validate fails fast on windows that could never produce a feasible
// obligation.
func (w RenewalWindow) Validate() error {
	if w.OpenDays < 0 {
		return &roster.ConfigurationError{
			Subject: "renewal window " + string(w.Category),
			Field:   "OpenDays",
			Reason:  "must not be negative",
		}
	}
	if w.NoticeDays < w.OpenDays {
		return &roster.ConfigurationError{
			Subject: "renewal window " + string(w.Category),
			Field:   "NoticeDays",
			Reason:  "must be at least OpenDays",
		}
	}
	return nil
}
