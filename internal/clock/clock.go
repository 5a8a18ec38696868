package clock

import "time"

// Clock abstracts time.Now so date-sensitive logic (peak windows, waiver
// expiry, future-date checks) is testable with a fixed instant.
type Clock interface {
	Now() time.Time
}

type systemClock struct{}

func (systemClock) Now() time.Time { return time.Now() }

func NewSystem() Clock { return systemClock{} }

type fixedClock struct{ t time.Time }

func (f fixedClock) Now() time.Time { return f.t }

// NewFixed returns a clock pinned to t.
func NewFixed(t time.Time) Clock { return fixedClock{t: t} }
