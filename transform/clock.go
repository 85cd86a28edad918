package transform

import (
	"sync"
	"time"

	"github.com/benbjohnson/clock"
)

var (
	clockMu sync.RWMutex
	clk     clock.Clock = clock.New()
	epoch               = clk.Now()
)

// SetClock replaces the clock every TimeStamp reads "now" from and returns a function restoring
// the previous one. Tests pass a *clock.Mock.
func SetClock(c clock.Clock) (restore func()) {
	clockMu.Lock()
	prevClock, prevEpoch := clk, epoch
	clk, epoch = c, c.Now()
	clockMu.Unlock()

	return func() {
		clockMu.Lock()
		clk, epoch = prevClock, prevEpoch
		clockMu.Unlock()
	}
}

// Clock returns the clock currently in use.
func Clock() clock.Clock {
	clockMu.RLock()
	defer clockMu.RUnlock()
	return clk
}

// NowMillis returns the current time in milliseconds since the Unix epoch. The value advances
// with the monotonic reading taken when the clock was installed, so wall clock steps never move
// it backwards.
func NowMillis() float64 {
	clockMu.RLock()
	c, e := clk, epoch
	clockMu.RUnlock()
	return durationMillis(time.Duration(e.UnixNano())) + durationMillis(c.Since(e))
}

func durationMillis(d time.Duration) float64 {
	return float64(d) / float64(time.Millisecond)
}

// MillisToDuration converts a millisecond count into a time.Duration.
func MillisToDuration(ms float64) time.Duration {
	return time.Duration(ms * float64(time.Millisecond))
}
