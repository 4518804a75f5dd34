package schedule

import "time"

// BuildConflictMap marks each desk as unavailable (true) when any candidate
// interval conflicts with any of the desk's reserved intervals, widened by
// buffer. Every desk present in reservedByDesk gets an entry; desks with no
// reservations come out false.
//
// Conflicts are scoped per desk: an identical reserved interval on a different
// desk never marks this one. A reservation being modified must be excluded
// from reservedByDesk by the caller; there is no identity exemption here.
func BuildConflictMap(candidates []Interval, reservedByDesk map[string][]Interval, buffer time.Duration) map[string]bool {
	conflicts := make(map[string]bool, len(reservedByDesk))
	for deskID, reserved := range reservedByDesk {
		conflicts[deskID] = anyConflict(candidates, reserved, buffer)
	}
	return conflicts
}

func anyConflict(candidates, reserved []Interval, buffer time.Duration) bool {
	for _, c := range candidates {
		for _, r := range reserved {
			if Conflicts(c, r, buffer) {
				return true
			}
		}
	}
	return false
}
