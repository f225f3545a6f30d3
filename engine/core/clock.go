package core

import "time"

type Clock struct {
	now       func() time.Time
	startTime time.Time
	elapsed   time.Duration
}

func NewClock() *Clock {
	return &Clock{now: time.Now}
}

// NewClockWithSource builds a clock reading time from now. Used by tests.
func NewClockWithSource(now func() time.Time) *Clock {
	return &Clock{now: now}
}

// Updates the provided clock. Should be called just before checking elapsed time.
// Has no effect on non-started clocks.
func (c *Clock) Update() {
	if !c.startTime.IsZero() {
		c.elapsed = c.now().Sub(c.startTime)
	}
}

// Starts the provided clock. Resets elapsed time.
func (c *Clock) Start() {
	c.startTime = c.now()
	c.elapsed = 0
}

// Stops the provided clock. Does not reset elapsed time.
func (c *Clock) Stop() {
	c.startTime = time.Time{}
}

// Elapsed returns the seconds since Start as of the last Update.
func (c *Clock) Elapsed() float64 {
	return c.elapsed.Seconds()
}
