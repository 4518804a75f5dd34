package schedule

import (
	"testing"
	"time"
)

func iv(t *testing.T, startHour, startMin, endHour, endMin int) Interval {
	t.Helper()
	day := time.Date(2026, 3, 2, 0, 0, 0, 0, time.UTC)
	return Interval{
		Start: day.Add(time.Duration(startHour)*time.Hour + time.Duration(startMin)*time.Minute),
		End:   day.Add(time.Duration(endHour)*time.Hour + time.Duration(endMin)*time.Minute),
	}
}

func TestConflicts_HalfOpen(t *testing.T) {
	a := iv(t, 9, 0, 12, 0)

	cases := []struct {
		name   string
		b      Interval
		buffer time.Duration
		want   bool
	}{
		{"overlapping", iv(t, 11, 0, 13, 0), 0, true},
		{"contained", iv(t, 10, 0, 11, 0), 0, true},
		{"identical", iv(t, 9, 0, 12, 0), 0, true},
		{"touching end no buffer", iv(t, 12, 0, 13, 0), 0, false},
		{"touching start no buffer", iv(t, 8, 0, 9, 0), 0, false},
		{"disjoint", iv(t, 14, 0, 15, 0), 0, false},
		{"touching end with buffer", iv(t, 12, 0, 13, 0), 30 * time.Minute, true},
		{"touching start with buffer", iv(t, 8, 0, 9, 0), 30 * time.Minute, true},
		{"gap equals buffer exactly", iv(t, 12, 30, 13, 0), 30 * time.Minute, false},
		{"gap just under buffer", iv(t, 12, 29, 13, 0), 30 * time.Minute, true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := Conflicts(a, tc.b, tc.buffer); got != tc.want {
				t.Fatalf("Conflicts(a, b, %s) = %v, want %v", tc.buffer, got, tc.want)
			}
		})
	}
}

func TestConflicts_Symmetric(t *testing.T) {
	pairs := []struct {
		a, b Interval
	}{
		{iv(t, 9, 0, 12, 0), iv(t, 11, 0, 13, 0)},
		{iv(t, 9, 0, 12, 0), iv(t, 12, 0, 13, 0)},
		{iv(t, 9, 0, 10, 0), iv(t, 14, 0, 15, 0)},
		{iv(t, 9, 0, 12, 0), iv(t, 12, 30, 13, 0)},
	}
	for _, p := range pairs {
		for _, buffer := range []time.Duration{0, 30 * time.Minute, 2 * time.Hour} {
			ab := Conflicts(p.a, p.b, buffer)
			ba := Conflicts(p.b, p.a, buffer)
			if ab != ba {
				t.Fatalf("asymmetric: Conflicts(a,b,%s)=%v but Conflicts(b,a,%s)=%v", buffer, ab, buffer, ba)
			}
		}
	}
}

func TestConflicts_BufferMonotonic(t *testing.T) {
	// Widening never removes a conflict.
	a := iv(t, 9, 0, 12, 0)
	others := []Interval{
		iv(t, 11, 0, 13, 0),
		iv(t, 12, 0, 13, 0),
		iv(t, 8, 0, 9, 0),
		iv(t, 10, 0, 11, 0),
	}
	for _, b := range others {
		if !Conflicts(a, b, 0) {
			continue
		}
		for _, buffer := range []time.Duration{time.Minute, 30 * time.Minute, 3 * time.Hour} {
			if !Conflicts(a, b, buffer) {
				t.Fatalf("conflict at buffer 0 vanished at buffer %s for %v vs %v", buffer, a, b)
			}
		}
	}
}
