package schedule

import "time"

// Interval is a half-open [Start, End) instant range.
type Interval struct {
	Start time.Time
	End   time.Time
}

// Conflicts reports whether a and b overlap once a is widened by buffer on both
// sides. With buffer zero this is plain half-open overlap: [s1,e1) and [s2,e2)
// overlap iff s1 < e2 && s2 < e1, so intervals that merely touch do not
// conflict. With a positive buffer a touching pair does conflict, which is the
// cleaning rule: a desk needs a gap of at least buffer between uses.
//
// Symmetric in a and b for any buffer.
func Conflicts(a, b Interval, buffer time.Duration) bool {
	widenedStart := a.Start.Add(-buffer)
	widenedEnd := a.End.Add(buffer)
	return widenedStart.Before(b.End) && b.Start.Before(widenedEnd)
}
