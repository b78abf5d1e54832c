package availability

import "time"

// LeadTime is the minimum notice required before a session may start. The
// same policy filters listed slots and gates new bookings.
type LeadTime struct {
	Min time.Duration
}

func (l LeadTime) Earliest(now time.Time) time.Time {
	if l.Min <= 0 {
		return now
	}
	return now.Add(l.Min)
}

func (l LeadTime) Allows(start, now time.Time) bool {
	return !start.Before(l.Earliest(now))
}
