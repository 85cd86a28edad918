package transform

import (
	"fmt"
	"math"
)

// LongestPossibleTime is the expiration of values that never expire.
const LongestPossibleTime = math.MaxFloat64

// TimeStamp is the closed interval [start, expiration], in milliseconds, during which a value is
// current. The zero TimeStamp has never been set and is never valid.
type TimeStamp struct {
	start      float64
	expiration float64
}

// NewTimeStamp returns the interval [start, expiration]. An inverted interval yields the never
// valid zero TimeStamp.
func NewTimeStamp(start, expiration float64) TimeStamp {
	if expiration < start {
		return TimeStamp{}
	}
	return TimeStamp{start: start, expiration: expiration}
}

// NewTimeStampNow returns a TimeStamp starting now and expiring after millisecondsToExpire.
func NewTimeStampNow(millisecondsToExpire float64) TimeStamp {
	var ts TimeStamp
	ts.SetStartTimeNowAndExpireAfter(millisecondsToExpire)
	return ts
}

// SetStartTimeNowAndExpireAfter starts the interval now and ends it millisecondsToExpire later.
// Negative durations are treated as zero.
func (ts *TimeStamp) SetStartTimeNowAndExpireAfter(millisecondsToExpire float64) {
	ts.start = NowMillis()
	if millisecondsToExpire < 0 {
		millisecondsToExpire = 0
	}
	if millisecondsToExpire >= LongestPossibleTime-ts.start {
		ts.expiration = LongestPossibleTime
		return
	}
	ts.expiration = ts.start + millisecondsToExpire
}

// StartTime returns the start of the interval.
func (ts TimeStamp) StartTime() float64 {
	return ts.start
}

// ExpirationTime returns the end of the interval.
func (ts TimeStamp) ExpirationTime() float64 {
	return ts.expiration
}

// IsZero reports whether the TimeStamp was never set.
func (ts TimeStamp) IsZero() bool {
	return ts.start == 0 && ts.expiration == 0
}

// IsValidAtTime reports whether t lies within [start, expiration].
func (ts TimeStamp) IsValidAtTime(t float64) bool {
	if ts.IsZero() {
		return false
	}
	return ts.start <= t && t <= ts.expiration
}

// IsValidNow reports whether the TimeStamp is valid at the current time.
func (ts TimeStamp) IsValidNow() bool {
	return ts.IsValidAtTime(NowMillis())
}

// ComputeOverlap returns the intersection of two intervals. Disjoint intervals, or any never
// valid input, produce the never valid zero TimeStamp.
func ComputeOverlap(a, b TimeStamp) TimeStamp {
	if a.IsZero() || b.IsZero() {
		return TimeStamp{}
	}
	return NewTimeStamp(math.Max(a.start, b.start), math.Min(a.expiration, b.expiration))
}

func (ts TimeStamp) String() string {
	if ts.IsZero() {
		return "[never valid]"
	}
	if ts.expiration == LongestPossibleTime {
		return fmt.Sprintf("[%.3f, forever]", ts.start)
	}
	return fmt.Sprintf("[%.3f, %.3f]", ts.start, ts.expiration)
}

// AlwaysValid returns a TimeStamp valid at every time. It is the neutral element of
// ComputeOverlap.
func AlwaysValid() TimeStamp {
	return TimeStamp{start: -LongestPossibleTime, expiration: LongestPossibleTime}
}
