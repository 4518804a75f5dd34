package cleaning

import (
	"testing"
	"time"

	"github.com/deskhive/deskhive/services/reservation-service/internal/model"
	"github.com/deskhive/deskhive/services/reservation-service/internal/schedule"
)

func at(t *testing.T, d int, hour, min int) time.Time {
	t.Helper()
	return time.Date(2026, 3, d, hour, min, 0, 0, time.UTC)
}

func res(id, userID string, intervals ...schedule.Interval) model.Reservation {
	return model.Reservation{ID: id, OrgID: "org-1", DeskID: "desk-1", UserID: userID, Intervals: intervals}
}

func TestScanZeroGap_ExactAdjacency(t *testing.T) {
	now := at(t, 2, 0, 0)
	a := res("res-a", "user-1", schedule.Interval{Start: at(t, 2, 9, 0), End: at(t, 2, 12, 0)})
	b := res("res-b", "user-2", schedule.Interval{Start: at(t, 2, 12, 0), End: at(t, 2, 13, 0)})

	events := ScanZeroGap([]model.Reservation{a, b}, now)
	if len(events) != 1 {
		t.Fatalf("expected exactly one conflict event, got %d", len(events))
	}
	evt := events[0]
	if evt.ReservationA != "res-a" || evt.ReservationB != "res-b" {
		t.Fatalf("wrong pair: %s -> %s", evt.ReservationA, evt.ReservationB)
	}
	if evt.UserA != "user-1" || evt.UserB != "user-2" {
		t.Fatalf("wrong users: %s, %s", evt.UserA, evt.UserB)
	}
	if !evt.Boundary.Equal(at(t, 2, 12, 0)) {
		t.Fatalf("wrong boundary: %s", evt.Boundary)
	}
}

func TestScanZeroGap_NonZeroGapIgnored(t *testing.T) {
	now := at(t, 2, 0, 0)
	a := res("res-a", "user-1", schedule.Interval{Start: at(t, 2, 9, 0), End: at(t, 2, 12, 0)})
	b := res("res-b", "user-2", schedule.Interval{Start: at(t, 2, 12, 1), End: at(t, 2, 13, 0)})

	if events := ScanZeroGap([]model.Reservation{a, b}, now); len(events) != 0 {
		t.Fatalf("one-minute gap must not be flagged, got %d events", len(events))
	}
}

func TestScanZeroGap_PastIntervalsIgnored(t *testing.T) {
	now := at(t, 5, 0, 0)
	a := res("res-a", "user-1", schedule.Interval{Start: at(t, 2, 9, 0), End: at(t, 2, 12, 0)})
	b := res("res-b", "user-2", schedule.Interval{Start: at(t, 2, 12, 0), End: at(t, 2, 13, 0)})

	if events := ScanZeroGap([]model.Reservation{a, b}, now); len(events) != 0 {
		t.Fatalf("intervals already over cannot be cleaned retroactively, got %d events", len(events))
	}
}

func TestScanZeroGap_CrossDeskAdjacency(t *testing.T) {
	// The scan is organization-wide: adjacency across different desks is still
	// a crew scheduling conflict.
	now := at(t, 2, 0, 0)
	a := model.Reservation{ID: "res-a", OrgID: "org-1", DeskID: "desk-1", UserID: "user-1",
		Intervals: []schedule.Interval{{Start: at(t, 2, 9, 0), End: at(t, 2, 12, 0)}}}
	b := model.Reservation{ID: "res-b", OrgID: "org-1", DeskID: "desk-2", UserID: "user-2",
		Intervals: []schedule.Interval{{Start: at(t, 2, 12, 0), End: at(t, 2, 13, 0)}}}

	if events := ScanZeroGap([]model.Reservation{a, b}, now); len(events) != 1 {
		t.Fatalf("expected cross-desk adjacency to be flagged, got %d events", len(events))
	}
}

func TestScanZeroGap_DeterministicOrder(t *testing.T) {
	now := at(t, 2, 0, 0)
	reservations := []model.Reservation{
		res("res-c", "user-3", schedule.Interval{Start: at(t, 2, 14, 0), End: at(t, 2, 15, 0)}),
		res("res-b", "user-2", schedule.Interval{Start: at(t, 2, 12, 0), End: at(t, 2, 14, 0)}),
		res("res-a", "user-1", schedule.Interval{Start: at(t, 2, 9, 0), End: at(t, 2, 12, 0)}),
	}

	events := ScanZeroGap(reservations, now)
	if len(events) != 2 {
		t.Fatalf("expected 2 conflict events, got %d", len(events))
	}
	if !events[0].Boundary.Equal(at(t, 2, 12, 0)) || !events[1].Boundary.Equal(at(t, 2, 14, 0)) {
		t.Fatalf("events not in ascending boundary order: %s, %s", events[0].Boundary, events[1].Boundary)
	}
	if events[0].ReservationA != "res-a" || events[0].ReservationB != "res-b" {
		t.Fatalf("first pair wrong: %s -> %s", events[0].ReservationA, events[0].ReservationB)
	}
	if events[1].ReservationA != "res-b" || events[1].ReservationB != "res-c" {
		t.Fatalf("second pair wrong: %s -> %s", events[1].ReservationA, events[1].ReservationB)
	}
}

func TestScanZeroGap_MultiIntervalReservation(t *testing.T) {
	// Same ordered pair abutting on two different days yields one event per
	// boundary, never two for the same boundary.
	now := at(t, 2, 0, 0)
	a := res("res-a", "user-1",
		schedule.Interval{Start: at(t, 2, 9, 0), End: at(t, 2, 12, 0)},
		schedule.Interval{Start: at(t, 3, 9, 0), End: at(t, 3, 12, 0)},
	)
	b := res("res-b", "user-2",
		schedule.Interval{Start: at(t, 2, 12, 0), End: at(t, 2, 13, 0)},
		schedule.Interval{Start: at(t, 3, 12, 0), End: at(t, 3, 13, 0)},
	)

	events := ScanZeroGap([]model.Reservation{a, b}, now)
	if len(events) != 2 {
		t.Fatalf("expected one event per boundary, got %d", len(events))
	}
	if events[0].Boundary.Equal(events[1].Boundary) {
		t.Fatal("duplicate events for one boundary")
	}
}
