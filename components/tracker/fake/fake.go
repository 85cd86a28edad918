// Package fake implements a simulated tracker that moves its tools along generated trajectories.
package fake

import (
	"context"
	"math"
	"sync"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/golang/geo/r3"
	"github.com/pkg/errors"
	"github.com/samber/lo"

	"go.igtrack.org/tracking/config"
	"go.igtrack.org/tracking/logging"
	"go.igtrack.org/tracking/registry"
	"go.igtrack.org/tracking/serial"
	"go.igtrack.org/tracking/spatialmath"
	"go.igtrack.org/tracking/tracker"
	"go.igtrack.org/tracking/transform"
)

// ReadingError is the error every simulated reading carries, in mm.
const ReadingError = 0.25

// ErrInjected is returned by hooks listed in the tracker's fail_on attribute.
var ErrInjected = errors.New("injected failure")

func init() {
	registry.RegisterDriver(config.KindSimulated, registry.DriverRegistration{
		Constructor: func(ctx context.Context, conf *config.TrackerConfig, port serial.Port, logger logging.Logger) (tracker.Driver, error) {
			return NewDriver(conf, transform.Clock(), logger)
		},
	})
}

// NewDriver returns a simulated driver for conf. A tracker payload with threaded set gives a
// driver that also implements tracker.ThreadedDriver.
func NewDriver(conf *config.TrackerConfig, clk clock.Clock, logger logging.Logger) (tracker.Driver, error) {
	payload, ok := conf.Payload.(*config.SimulatedTracker)
	if conf.Payload != nil && !ok {
		return nil, errors.Errorf("simulated driver cannot use %T", conf.Payload)
	}
	if payload == nil {
		payload = &config.SimulatedTracker{}
	}
	d := &Driver{
		name:   conf.Name,
		clk:    clk,
		logger: logger,
		failOn: payload.FailOn,
		tools:  map[string]*toolState{},
	}
	if payload.Threaded {
		return &ThreadedDriver{Driver: d, period: transform.MillisToDuration(1000 / conf.PollingFrequency())}, nil
	}
	return d, nil
}

type toolState struct {
	conf    *config.SimulatedTool
	updates int
}

// Driver is a simulated tracker. It is safe for concurrent use.
type Driver struct {
	name   string
	clk    clock.Clock
	logger logging.Logger
	failOn []string

	mu       sync.Mutex
	open     bool
	tracking bool
	started  time.Time
	tools    map[string]*toolState
}

func (d *Driver) hook(name string) error {
	if lo.Contains(d.failOn, name) {
		return errors.Wrapf(ErrInjected, "%s %s", d.name, name)
	}
	return nil
}

// Open marks the device open.
func (d *Driver) Open(ctx context.Context) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if err := d.hook(config.HookOpen); err != nil {
		return err
	}
	if d.open {
		return errors.New("already open")
	}
	d.open = true
	d.logger.Debugw("simulated tracker opened", "name", d.name, "tools", len(d.tools))
	return nil
}

// Close marks the device closed and forgets every tool.
func (d *Driver) Close(ctx context.Context) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.open, d.tracking = false, false
	d.tools = map[string]*toolState{}
	return d.hook(config.HookClose)
}

// StartTracking starts the trajectories at the current time.
func (d *Driver) StartTracking(ctx context.Context) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if err := d.hook(config.HookStart); err != nil {
		return err
	}
	if !d.open {
		return errors.New("device is not open")
	}
	d.tracking = true
	d.started = d.clk.Now()
	for _, tool := range d.tools {
		tool.updates = 0
	}
	return nil
}

// StopTracking stops the trajectories.
func (d *Driver) StopTracking(ctx context.Context) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if err := d.hook(config.HookStop); err != nil {
		return err
	}
	d.tracking = false
	return nil
}

// VerifyToolInformation accepts simulated tools. It does not start tracking them.
func (d *Driver) VerifyToolInformation(ctx context.Context, spec tracker.ToolSpec) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if err := d.hook(config.HookVerifyTool); err != nil {
		return err
	}
	_, err := simulatedTool(spec)
	return err
}

func simulatedTool(spec tracker.ToolSpec) (*config.SimulatedTool, error) {
	conf, ok := spec.Payload.(*config.SimulatedTool)
	if !ok {
		return nil, errors.Errorf("simulated tracker cannot track %T", spec.Payload)
	}
	return conf, nil
}

// AttachTool starts reporting a verified tool in every frame.
func (d *Driver) AttachTool(ctx context.Context, spec tracker.ToolSpec) error {
	conf, err := simulatedTool(spec)
	if err != nil {
		return err
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	d.tools[spec.Name] = &toolState{conf: conf}
	return nil
}

// DetachTool stops reporting name. Detaching an unknown tool does nothing.
func (d *Driver) DetachTool(ctx context.Context, name string) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	delete(d.tools, name)
	return nil
}

// UpdateStatus returns every tool's pose at the current time.
func (d *Driver) UpdateStatus(ctx context.Context) (tracker.Frame, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if err := d.hook(config.HookUpdateStatus); err != nil {
		return nil, err
	}
	if !d.tracking {
		return nil, errors.New("device is not tracking")
	}
	elapsed := d.clk.Since(d.started)
	frame := make(tracker.Frame, len(d.tools))
	for name, tool := range d.tools {
		tool.updates++
		reading := Pose(tool.conf, elapsed)
		if n := tool.conf.HiddenEvery; n > 0 && tool.updates%n == 0 {
			reading.Visible = false
		}
		frame[name] = reading
	}
	return frame, nil
}

// Pose returns where a tool following conf is after elapsed.
func Pose(conf *config.SimulatedTool, elapsed time.Duration) tracker.Reading {
	reading := tracker.Reading{
		Translation: conf.Center,
		Rotation:    spatialmath.IdentityQuat,
		Error:       ReadingError,
		Visible:     true,
	}
	if conf.PeriodMs <= 0 {
		return reading
	}
	phase := 2 * math.Pi * float64(elapsed.Milliseconds()) / conf.PeriodMs
	switch conf.Trajectory {
	case config.TrajectoryCircle:
		offset := r3.Vector{X: conf.Radius * math.Cos(phase), Y: conf.Radius * math.Sin(phase)}
		reading.Translation = conf.Center.Add(offset)
		// the tool keeps facing the circle's center
		reading.Rotation = spatialmath.NewVersor(r3.Vector{Z: 1}, phase)
	case config.TrajectoryLine:
		reading.Translation = conf.Center.Add(r3.Vector{X: conf.Radius * math.Sin(phase)})
	}
	return reading
}

// ThreadedDriver is a simulated tracker that produces one frame per polling period on the
// acquisition goroutine.
type ThreadedDriver struct {
	*Driver
	period time.Duration
}

// AcquireFrame waits one period and returns the poses at that time.
func (d *ThreadedDriver) AcquireFrame(ctx context.Context) (tracker.Frame, error) {
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-d.clk.After(d.period):
	}
	return d.UpdateStatus(ctx)
}
