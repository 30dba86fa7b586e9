package session

import (
	"sync/atomic"
	"time"
)

// Clock is a monotonic logical clock stamping published snapshots.
//
// Snapshot order is defined by Seq, never by wall-clock time, so
// subscribers can discard anything older than what they already rendered.
type Clock struct {
	seq atomic.Int64
}

// NewClock creates a clock starting at 0. The first Next returns 1.
func NewClock() *Clock {
	return &Clock{}
}

// Next returns the next sequence number.
func (c *Clock) Next() int64 {
	return c.seq.Add(1)
}

// Current returns the last issued sequence number.
func (c *Clock) Current() int64 {
	return c.seq.Load()
}

// Timer is a pending deferred action.
type Timer interface {
	// Stop prevents the action from firing. It returns false if the
	// action already fired or was stopped.
	Stop() bool
}

// Scheduler runs f after d. Implementations call f on their own goroutine.
type Scheduler interface {
	AfterFunc(d time.Duration, f func()) Timer
}

// WallScheduler schedules with time.AfterFunc.
type WallScheduler struct{}

// AfterFunc implements Scheduler.
func (WallScheduler) AfterFunc(d time.Duration, f func()) Timer {
	return time.AfterFunc(d, f)
}
