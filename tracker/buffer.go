package tracker

import (
	"sync"

	"go.uber.org/atomic"
)

const frameSlots = 3

// FrameBuffer is a single producer, single consumer triple buffer. The producer always has a free
// slot to fill and the consumer always reads the most recently completed one, so neither side
// waits on the other; the mutex only guards the slot indices.
type FrameBuffer struct {
	mu      sync.Mutex
	slots   [frameSlots]Frame
	latest  int
	reading int
	fresh   bool

	published atomic.Uint64
	consumed  atomic.Uint64
	dropped   atomic.Uint64
}

// NewFrameBuffer returns an empty buffer.
func NewFrameBuffer() *FrameBuffer {
	return &FrameBuffer{latest: -1, reading: -1}
}

// Publish stores frame as the newest complete frame. A frame that was never consumed is
// overwritten and counted as dropped.
func (b *FrameBuffer) Publish(frame Frame) {
	b.mu.Lock()
	write := 0
	for write == b.latest || write == b.reading {
		write++
	}
	b.mu.Unlock()

	b.slots[write] = frame

	b.mu.Lock()
	if b.fresh {
		b.dropped.Inc()
	}
	b.latest = write
	b.fresh = true
	b.mu.Unlock()
	b.published.Inc()
}

// Latest returns the newest frame not yet returned. ok is false when nothing new arrived since
// the previous call.
func (b *FrameBuffer) Latest() (frame Frame, ok bool) {
	b.mu.Lock()
	if !b.fresh {
		b.mu.Unlock()
		return nil, false
	}
	b.reading = b.latest
	b.fresh = false
	read := b.reading
	b.mu.Unlock()

	b.consumed.Inc()
	return b.slots[read], true
}

// Reset forgets every frame.
func (b *FrameBuffer) Reset() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.slots = [frameSlots]Frame{}
	b.latest, b.reading, b.fresh = -1, -1, false
}

// Stats returns how many frames were published, consumed and overwritten unread.
func (b *FrameBuffer) Stats() (published, consumed, dropped uint64) {
	return b.published.Load(), b.consumed.Load(), b.dropped.Load()
}
