package schedule

import (
	"testing"
	"time"
)

func TestBuildConflictMap_PerDeskScope(t *testing.T) {
	reserved := iv(t, 9, 0, 12, 0)
	byDesk := map[string][]Interval{
		"desk-a": {reserved},
		"desk-b": nil,
	}

	// Candidate identical to desk-a's reservation: conflicts on desk-a only.
	conflicts := BuildConflictMap([]Interval{reserved}, byDesk, 0)
	if len(conflicts) != 2 {
		t.Fatalf("expected an entry per desk, got %d", len(conflicts))
	}
	if !conflicts["desk-a"] {
		t.Fatal("desk-a should conflict")
	}
	if conflicts["desk-b"] {
		t.Fatal("desk-b has no reservations and must not conflict")
	}
}

func TestBuildConflictMap_BufferAppliesZeroGap(t *testing.T) {
	byDesk := map[string][]Interval{
		"desk-a": {iv(t, 9, 0, 12, 0)},
	}
	candidate := []Interval{iv(t, 12, 0, 13, 0)}

	if got := BuildConflictMap(candidate, byDesk, 0); got["desk-a"] {
		t.Fatal("zero-gap booking must be allowed without a buffer")
	}
	if got := BuildConflictMap(candidate, byDesk, 30*time.Minute); !got["desk-a"] {
		t.Fatal("zero-gap booking must conflict with the cleaning buffer on")
	}
}

func TestBuildConflictMap_EndToEndScenario(t *testing.T) {
	// Desk D reserved [Mon 9:00, Mon 12:00). Request Mon 11:00-13:00, cleaning
	// off: overlap, so D is conflicted.
	byDesk := map[string][]Interval{
		"D": {iv(t, 9, 0, 12, 0)},
	}
	candidate := []Interval{iv(t, 11, 0, 13, 0)}
	if got := BuildConflictMap(candidate, byDesk, 0); !got["D"] {
		t.Fatal("overlapping request must conflict")
	}

	// Existing [Mon 9:00, Mon 10:30), request [Mon 11:00, 13:00), cleaning on:
	// gap is exactly the 30-minute buffer, boundary-equal does not conflict.
	byDesk = map[string][]Interval{
		"D": {iv(t, 9, 0, 10, 30)},
	}
	if got := BuildConflictMap(candidate, byDesk, 30*time.Minute); got["D"] {
		t.Fatal("gap equal to the buffer must not conflict")
	}
}

func TestBuildConflictMap_MultiDayCandidates(t *testing.T) {
	mon := time.Date(2026, 3, 2, 0, 0, 0, 0, time.UTC)
	tue := mon.AddDate(0, 0, 1)
	candidates := []Interval{
		{Start: mon.Add(9 * time.Hour), End: mon.Add(17 * time.Hour)},
		{Start: tue.Add(9 * time.Hour), End: tue.Add(17 * time.Hour)},
	}
	byDesk := map[string][]Interval{
		// Conflicts only on the second candidate day.
		"desk-a": {{Start: tue.Add(10 * time.Hour), End: tue.Add(11 * time.Hour)}},
		"desk-b": {{Start: mon.Add(7 * time.Hour), End: mon.Add(9 * time.Hour)}},
	}

	conflicts := BuildConflictMap(candidates, byDesk, 0)
	if !conflicts["desk-a"] {
		t.Fatal("desk-a conflicts on the second day")
	}
	if conflicts["desk-b"] {
		t.Fatal("desk-b reservation ends exactly at the candidate start")
	}
}
