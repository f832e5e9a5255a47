package share

import "time"

// SetClock overrides the registry clock for expiry tests.
func (r *Registry) SetClock(now func() time.Time) {
	r.now = now
}
