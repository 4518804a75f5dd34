package handlers

import (
	"testing"
	"time"
)

func TestParseBookingRange(t *testing.T) {
	r, err := parseBookingRange(
		[]string{"2026-03-02", "2026-03-03"},
		"2026-03-02T09:00:00Z",
		"2026-03-02T17:30:00Z",
	)
	if err != nil {
		t.Fatalf("parseBookingRange: %v", err)
	}
	if len(r.Days) != 2 {
		t.Fatalf("expected 2 days, got %d", len(r.Days))
	}
	if r.DailyStart != 9*time.Hour {
		t.Fatalf("expected 9h daily start, got %v", r.DailyStart)
	}
	if r.DailyEnd != 17*time.Hour+30*time.Minute {
		t.Fatalf("expected 17h30m daily end, got %v", r.DailyEnd)
	}
}

func TestParseBookingRangeRejectsInvertedClock(t *testing.T) {
	_, err := parseBookingRange(
		[]string{"2026-03-02"},
		"2026-03-02T17:00:00Z",
		"2026-03-02T09:00:00Z",
	)
	if err == nil {
		t.Fatal("expected error for end before start")
	}
}

func TestParseBookingRangeRejectsEmptyDays(t *testing.T) {
	_, err := parseBookingRange(nil, "2026-03-02T09:00:00Z", "2026-03-02T17:00:00Z")
	if err == nil {
		t.Fatal("expected error for empty days")
	}
}

func TestParseBookingRangeRejectsBadDay(t *testing.T) {
	_, err := parseBookingRange([]string{"03/02/2026"}, "2026-03-02T09:00:00Z", "2026-03-02T17:00:00Z")
	if err == nil {
		t.Fatal("expected error for malformed day")
	}
}

func TestParseBookingRangeRejectsBadTimestamps(t *testing.T) {
	_, err := parseBookingRange([]string{"2026-03-02"}, "9am", "2026-03-02T17:00:00Z")
	if err == nil {
		t.Fatal("expected error for malformed start_time")
	}
	_, err = parseBookingRange([]string{"2026-03-02"}, "2026-03-02T09:00:00Z", "5pm")
	if err == nil {
		t.Fatal("expected error for malformed end_time")
	}
}

func TestParseClockRange(t *testing.T) {
	r, err := parseClockRange([]string{"2026-03-02", " 2026-03-04 "}, "08:15", "12:00")
	if err != nil {
		t.Fatalf("parseClockRange: %v", err)
	}
	if len(r.Days) != 2 {
		t.Fatalf("expected 2 days, got %d", len(r.Days))
	}
	if r.DailyStart != 8*time.Hour+15*time.Minute {
		t.Fatalf("expected 8h15m, got %v", r.DailyStart)
	}
	if r.DailyEnd != 12*time.Hour {
		t.Fatalf("expected 12h, got %v", r.DailyEnd)
	}
}

func TestParseClockRangeSkipsBlankEntries(t *testing.T) {
	r, err := parseClockRange([]string{"2026-03-02", "", "  "}, "09:00", "10:00")
	if err != nil {
		t.Fatalf("parseClockRange: %v", err)
	}
	if len(r.Days) != 1 {
		t.Fatalf("expected 1 day, got %d", len(r.Days))
	}
}

func TestParseClockRangeRejectsInvertedClock(t *testing.T) {
	if _, err := parseClockRange([]string{"2026-03-02"}, "12:00", "12:00"); err == nil {
		t.Fatal("expected error for zero-length window")
	}
}

func TestClockOffset(t *testing.T) {
	at := time.Date(2026, 3, 2, 14, 45, 0, 0, time.UTC)
	if got := clockOffset(at); got != 14*time.Hour+45*time.Minute {
		t.Fatalf("expected 14h45m, got %v", got)
	}
	midnight := time.Date(2026, 3, 2, 0, 0, 0, 0, time.UTC)
	if got := clockOffset(midnight); got != 0 {
		t.Fatalf("expected 0 at midnight, got %v", got)
	}
}
