package cleaning

import "time"

// NextHalfHour rounds t up to the next :00 or :30 clock boundary. A t already
// on a boundary is returned unchanged.
func NextHalfHour(t time.Time) time.Time {
	b := t.Truncate(30 * time.Minute)
	if b.Before(t) {
		b = b.Add(30 * time.Minute)
	}
	return b
}

// NeedsImmediateNotice reports whether a cleaning notice for a reservation
// ending at end must be sent right now instead of waiting for the half-hourly
// sweep. That is the case when end falls inside the Window just before the
// upcoming sweep: the previous sweep ran before this reservation existed, and
// the upcoming one leaves less than the full cleaning window of lead time.
// Ends further out are the sweep's job.
func NeedsImmediateNotice(now, end time.Time) bool {
	gap := NextHalfHour(now).Sub(end)
	return gap >= 0 && gap < Window
}
