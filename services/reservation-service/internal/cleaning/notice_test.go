package cleaning

import (
	"testing"
	"time"
)

func clock(t *testing.T, hour, min int) time.Time {
	t.Helper()
	return time.Date(2026, 3, 2, hour, min, 0, 0, time.UTC)
}

func TestNextHalfHour(t *testing.T) {
	cases := []struct {
		in, want time.Time
	}{
		{clock(t, 10, 15), clock(t, 10, 30)},
		{clock(t, 10, 31), clock(t, 11, 0)},
		{clock(t, 10, 30), clock(t, 10, 30)}, // already on a boundary
		{clock(t, 10, 0), clock(t, 10, 0)},
		{clock(t, 23, 45), time.Date(2026, 3, 3, 0, 0, 0, 0, time.UTC)},
	}
	for _, tc := range cases {
		if got := NextHalfHour(tc.in); !got.Equal(tc.want) {
			t.Fatalf("NextHalfHour(%s) = %s, want %s", tc.in.Format("15:04"), got.Format("15:04"), tc.want.Format("15:04"))
		}
	}
}

func TestNeedsImmediateNotice(t *testing.T) {
	now := clock(t, 10, 15) // next boundary 10:30

	cases := []struct {
		name string
		end  time.Time
		want bool
	}{
		{"ends 14min before boundary", clock(t, 10, 16), true},
		{"ends 16min before boundary", clock(t, 10, 14), false},
		{"ends exactly on boundary", clock(t, 10, 30), true},
		{"ends just after boundary", clock(t, 10, 31), false}, // sweep at 10:30 covers it
		{"ends hours later", clock(t, 17, 0), false},
		{"ended long ago", clock(t, 9, 0), false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := NeedsImmediateNotice(now, tc.end); got != tc.want {
				t.Fatalf("NeedsImmediateNotice(10:15, %s) = %v, want %v", tc.end.Format("15:04"), got, tc.want)
			}
		})
	}
}

func TestPolicyBuffer(t *testing.T) {
	if got := (Policy{}).Buffer(); got != 0 {
		t.Fatalf("disabled policy buffer = %s, want 0", got)
	}
	if got := (Policy{Enabled: true}).Buffer(); got != BufferDuration {
		t.Fatalf("enabled policy buffer = %s, want %s", got, BufferDuration)
	}
}
