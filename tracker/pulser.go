package tracker

import (
	"context"
	"sync"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/pkg/errors"
	"go.uber.org/atomic"

	"go.igtrack.org/tracking/logging"
	"go.igtrack.org/tracking/transform"
	"go.igtrack.org/tracking/utils"
)

// Pulser calls a tick function at a fixed frequency on its own goroutine. Ticks never overlap; a
// tick that runs long delays the next one rather than queueing more.
type Pulser struct {
	clk    clock.Clock
	logger logging.Logger

	mu      sync.Mutex
	workers utils.StoppableWorkers
	ticks   atomic.Uint64
}

// NewPulser returns a stopped pulser. A nil clk uses the transform package clock.
func NewPulser(clk clock.Clock, logger logging.Logger) *Pulser {
	if clk == nil {
		clk = transform.Clock()
	}
	return &Pulser{clk: clk, logger: logger}
}

// Start begins calling tick every 1/frequency seconds.
func (p *Pulser) Start(frequency float64, tick func(ctx context.Context)) error {
	interval := time.Duration(float64(time.Second) / frequency)
	if !positiveFinite(frequency) || interval <= 0 {
		return errors.Errorf("pulser frequency must be positive and finite, got %g", frequency)
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.workers != nil {
		return errors.New("pulser already running")
	}
	ticker := p.clk.Ticker(interval)
	p.workers = utils.NewStoppableWorkers(func(ctx context.Context) {
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
			}
			if ctx.Err() != nil {
				return
			}
			tick(ctx)
			p.ticks.Inc()
		}
	})
	p.logger.Debugw("pulser started", "interval", interval)
	return nil
}

// PulseTracker starts ticking tr's RequestUpdateStatus at the tracker's frequency. Failed ticks
// are reported by the tracker's events; invalid ones are logged.
func (p *Pulser) PulseTracker(tr *Tracker) error {
	return p.Start(tr.Frequency(), func(ctx context.Context) {
		if err := tr.RequestUpdateStatus(ctx); errors.Is(err, ErrInvalidRequest) {
			p.logger.Debugw("tick outside tracking", "tracker", tr.Name(), "error", err)
		}
	})
}

// Stop halts the pulser and waits for an in flight tick to finish. Stopping a stopped pulser
// does nothing.
func (p *Pulser) Stop() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.workers == nil {
		return
	}
	p.workers.Stop()
	p.workers = nil
	p.logger.Debug("pulser stopped")
}

// Running reports whether the pulser is ticking.
func (p *Pulser) Running() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.workers != nil
}

// Ticks returns how many ticks have completed since the pulser was created.
func (p *Pulser) Ticks() uint64 {
	return p.ticks.Load()
}
