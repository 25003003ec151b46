package room

import "time"

// Scheduler is the timer primitive a room uses for its countdown.
// It is defined here so room does not depend on the timer package.
type Scheduler interface {
	AddTimer(delay time.Duration, interval time.Duration, callback func()) int64
	RemoveTimer(timerId int64) bool
}

// Hooks are invoked for the occupant of one occupancy cycle.
type Hooks struct {
	// OnTick receives the time left, once per tick interval.
	OnTick func(left time.Duration)
	// OnTimeout runs only when the countdown, not an exit, ended the stay.
	OnTimeout func()
}
