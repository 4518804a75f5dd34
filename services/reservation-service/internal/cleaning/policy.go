package cleaning

import "time"

// BufferDuration is the mandatory gap between the end of one desk reservation
// and the start of the next while the cleaning policy is on. Fixed for every
// plan and location.
const BufferDuration = 30 * time.Minute

// Window is the time the crew needs to clean one desk. The periodic sweep
// schedules notices so that at least this much lead time remains.
const Window = 15 * time.Minute

// Policy is an organization's cleaning setting, read from persisted org
// settings and passed into conflict checks by value.
type Policy struct {
	Enabled bool
}

// Buffer returns the widening to apply to interval conflict checks: zero when
// cleaning is off, BufferDuration when on.
func (p Policy) Buffer() time.Duration {
	if p.Enabled {
		return BufferDuration
	}
	return 0
}
