package session

import "time"

// Clock measures active workout time from wall clock timestamps.
// Everything is derived from startedAt, pausedTotal and pauseStartedAt,
// so it survives process restarts and arbitrarily delayed reads: there
// is no tick counting anywhere, a missed refresh can never cause drift.
type Clock struct {
	startedAt      time.Time
	pausedTotal    time.Duration
	pauseStartedAt time.Time
	paused         bool
}

func (c *Clock) Start(now time.Time) {
	c.startedAt = now
	c.pausedTotal = 0
	c.pauseStartedAt = time.Time{}
	c.paused = false
}

func (c *Clock) Pause(now time.Time) {
	if c.paused {
		return
	}
	c.paused = true
	c.pauseStartedAt = now
}

func (c *Clock) Resume(now time.Time) {
	if !c.paused {
		return
	}
	if pausedFor := now.Sub(c.pauseStartedAt); pausedFor > 0 {
		c.pausedTotal += pausedFor
	}
	c.paused = false
	c.pauseStartedAt = time.Time{}
}

func (c *Clock) Paused() bool {
	return c.paused
}

func (c *Clock) StartedAt() time.Time {
	return c.startedAt
}

// restore rebuilds the clock from persisted timestamps. The next
// Elapsed call is immediately correct, regardless of how much time
// passed in between.
func (c *Clock) restore(startedAt time.Time, pausedTotal time.Duration, pauseStartedAt time.Time, paused bool) {
	c.startedAt = startedAt
	c.pausedTotal = pausedTotal
	c.pauseStartedAt = pauseStartedAt
	c.paused = paused
}

// Elapsed returns the total active duration at the given moment, with
// all paused intervals excluded. While paused the result is constant.
// A wall clock jumping backwards can never produce a negative value.
func (c *Clock) Elapsed(now time.Time) time.Duration {
	elapsed := now.Sub(c.startedAt) - c.pausedTotal
	if c.paused {
		elapsed -= now.Sub(c.pauseStartedAt)
	}
	if elapsed < 0 {
		return 0
	}
	return elapsed
}
