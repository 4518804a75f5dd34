package cleaning

import (
	"sort"
	"time"

	"github.com/deskhive/deskhive/services/reservation-service/internal/model"
	"github.com/deskhive/deskhive/services/reservation-service/internal/schedule"
)

// ConflictEvent names a grandfathered pair: reservation A ends at Boundary and
// reservation B starts at that same instant, both booked before the cleaning
// policy was turned on. Consumed by the notifier; the scanner itself sends
// nothing.
type ConflictEvent struct {
	Boundary     time.Time
	ReservationA string
	UserA        string
	IntervalA    schedule.Interval
	ReservationB string
	UserB        string
	IntervalB    schedule.Interval
}

// ScanZeroGap finds every zero-gap adjacency among the given reservations:
// interval pairs where one ends exactly where another starts. Run once per
// enable-cleaning transition over the organization's reservations with
// intervals ending on or after now. The scan is organization-wide, not
// per-desk: cleaning crews are assigned per organization, so an adjacency on
// any desk is a crew scheduling conflict.
//
// Only exact equality counts. Any booking made after the policy flipped on
// went through the buffered conflict check, so a zero gap can only predate
// the toggle; a tolerance window would misflag legitimately spaced bookings.
//
// Each ordered pair is emitted once, sorted by boundary instant then by
// reservation ids so event order is reproducible.
func ScanZeroGap(reservations []model.Reservation, now time.Time) []ConflictEvent {
	type ending struct {
		res      *model.Reservation
		interval schedule.Interval
	}
	endsAt := make(map[int64][]ending)
	for i := range reservations {
		res := &reservations[i]
		for _, iv := range res.Intervals {
			if iv.End.Before(now) {
				// Already over; nothing left to clean.
				continue
			}
			key := iv.End.UnixNano()
			endsAt[key] = append(endsAt[key], ending{res: res, interval: iv})
		}
	}

	var events []ConflictEvent
	for i := range reservations {
		resB := &reservations[i]
		for _, ivB := range resB.Intervals {
			if ivB.End.Before(now) {
				continue
			}
			for _, e := range endsAt[ivB.Start.UnixNano()] {
				if e.res.ID == resB.ID {
					continue
				}
				events = append(events, ConflictEvent{
					Boundary:     ivB.Start,
					ReservationA: e.res.ID,
					UserA:        e.res.UserID,
					IntervalA:    e.interval,
					ReservationB: resB.ID,
					UserB:        resB.UserID,
					IntervalB:    ivB,
				})
			}
		}
	}

	sort.Slice(events, func(i, j int) bool {
		if !events[i].Boundary.Equal(events[j].Boundary) {
			return events[i].Boundary.Before(events[j].Boundary)
		}
		if events[i].ReservationA != events[j].ReservationA {
			return events[i].ReservationA < events[j].ReservationA
		}
		return events[i].ReservationB < events[j].ReservationB
	})
	return events
}
