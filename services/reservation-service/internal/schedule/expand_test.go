package schedule

import (
	"errors"
	"testing"
	"time"
)

func day(t *testing.T, y int, m time.Month, d int) time.Time {
	t.Helper()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func TestExpand_SortedAndCollapsed(t *testing.T) {
	r := BookingRange{
		Days: []time.Time{
			day(t, 2026, 3, 4),
			day(t, 2026, 3, 2),
			day(t, 2026, 3, 4), // duplicate collapses
			day(t, 2026, 3, 3),
		},
		DailyStart: 9 * time.Hour,
		DailyEnd:   17 * time.Hour,
	}

	intervals, err := Expand(r)
	if err != nil {
		t.Fatalf("Expand: %v", err)
	}
	if len(intervals) != 3 {
		t.Fatalf("expected 3 intervals, got %d", len(intervals))
	}
	for i, wantDay := range []int{2, 3, 4} {
		wantStart := time.Date(2026, 3, wantDay, 9, 0, 0, 0, time.UTC)
		wantEnd := time.Date(2026, 3, wantDay, 17, 0, 0, 0, time.UTC)
		if !intervals[i].Start.Equal(wantStart) || !intervals[i].End.Equal(wantEnd) {
			t.Fatalf("interval %d = [%s, %s), want [%s, %s)", i,
				intervals[i].Start, intervals[i].End, wantStart, wantEnd)
		}
	}
}

func TestExpand_Deterministic(t *testing.T) {
	r := BookingRange{
		Days:       []time.Time{day(t, 2026, 3, 9), day(t, 2026, 3, 6), day(t, 2026, 3, 11)},
		DailyStart: 8 * time.Hour,
		DailyEnd:   12 * time.Hour,
	}
	first, err := Expand(r)
	if err != nil {
		t.Fatalf("Expand: %v", err)
	}
	second, err := Expand(r)
	if err != nil {
		t.Fatalf("Expand: %v", err)
	}
	if len(first) != len(second) {
		t.Fatalf("lengths differ: %d vs %d", len(first), len(second))
	}
	for i := range first {
		if !first[i].Start.Equal(second[i].Start) || !first[i].End.Equal(second[i].End) {
			t.Fatalf("interval %d differs between runs", i)
		}
	}
}

func TestExpand_InvalidRanges(t *testing.T) {
	cases := []struct {
		name string
		r    BookingRange
	}{
		{"empty days", BookingRange{DailyStart: 9 * time.Hour, DailyEnd: 17 * time.Hour}},
		{"start equals end", BookingRange{Days: []time.Time{day(t, 2026, 3, 2)}, DailyStart: 9 * time.Hour, DailyEnd: 9 * time.Hour}},
		{"start after end", BookingRange{Days: []time.Time{day(t, 2026, 3, 2)}, DailyStart: 17 * time.Hour, DailyEnd: 9 * time.Hour}},
		{"end past midnight", BookingRange{Days: []time.Time{day(t, 2026, 3, 2)}, DailyStart: 22 * time.Hour, DailyEnd: 26 * time.Hour}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := Expand(tc.r); !errors.Is(err, ErrInvalidRange) {
				t.Fatalf("expected ErrInvalidRange, got %v", err)
			}
		})
	}
}
