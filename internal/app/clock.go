package app

import "time"

// Clock abstracts time for the checker's debounce window, cache TTL, and
// retry delays, so tests can drive them deterministically.
type Clock interface {
	Now() time.Time
	// AfterFunc schedules f to run after d and returns a handle that can
	// cancel the pending execution.
	AfterFunc(d time.Duration, f func()) Timer
}

// Timer is a cancellable scheduled execution.
type Timer interface {
	// Stop cancels the execution. It reports whether the call prevented
	// the function from running.
	Stop() bool
}

// SystemClock is the real wall clock.
type SystemClock struct{}

func (SystemClock) Now() time.Time {
	return time.Now().UTC()
}

func (SystemClock) AfterFunc(d time.Duration, f func()) Timer {
	return time.AfterFunc(d, f)
}
