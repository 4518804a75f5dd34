package model

import (
	"time"

	"github.com/deskhive/deskhive/services/reservation-service/internal/schedule"
)

// Reservation is one member's claim on one desk over a set of intervals
// (typically one per booked calendar day). Intervals are kept ordered by start
// ascending. Cancelling a single day removes its interval; a reservation with
// no intervals left is deleted.
type Reservation struct {
	ID        string
	OrgID     string
	DeskID    string
	UserID    string
	Intervals []schedule.Interval
	CreatedAt time.Time
}

// Desk is identity only; everything else about a desk (name, floor plan
// position, equipment) lives in the organization CRUD surface and is not
// needed for scheduling.
type Desk struct {
	ID         string
	OrgID      string
	LocationID string
	SpaceID    string
}
