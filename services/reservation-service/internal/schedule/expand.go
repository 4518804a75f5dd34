package schedule

import (
	"errors"
	"sort"
	"time"
)

// ErrInvalidRange rejects a booking range with no days or a daily end clock
// that is not strictly after the daily start. Callers are expected to validate
// first; Expand re-checks anyway.
var ErrInvalidRange = errors.New("invalid booking range")

// BookingRange is a set of calendar days with one daily clock window applied
// to each. Days are midnight instants in the organization's timezone;
// DailyStart and DailyEnd are offsets from midnight. A window spanning
// midnight is not supported.
type BookingRange struct {
	Days       []time.Time
	DailyStart time.Duration
	DailyEnd   time.Duration
}

// Expand turns a BookingRange into concrete half-open intervals, one per
// distinct day, sorted ascending by start. Duplicate days collapse to a
// single interval.
func Expand(r BookingRange) ([]Interval, error) {
	if len(r.Days) == 0 {
		return nil, ErrInvalidRange
	}
	if r.DailyStart >= r.DailyEnd {
		return nil, ErrInvalidRange
	}
	if r.DailyStart < 0 || r.DailyEnd > 24*time.Hour {
		return nil, ErrInvalidRange
	}

	seen := make(map[int64]struct{}, len(r.Days))
	intervals := make([]Interval, 0, len(r.Days))
	for _, day := range r.Days {
		key := day.Unix()
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		intervals = append(intervals, Interval{
			Start: day.Add(r.DailyStart),
			End:   day.Add(r.DailyEnd),
		})
	}

	sort.Slice(intervals, func(i, j int) bool {
		return intervals[i].Start.Before(intervals[j].Start)
	})
	return intervals, nil
}
