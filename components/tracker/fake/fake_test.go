package fake

import (
	"context"
	"math"
	"testing"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/golang/geo/r3"
	"github.com/pkg/errors"
	"go.viam.com/test"

	"go.igtrack.org/tracking/config"
	"go.igtrack.org/tracking/logging"
	"go.igtrack.org/tracking/referenceframe"
	"go.igtrack.org/tracking/registry"
	"go.igtrack.org/tracking/tracker"
)

func newConfig(payload *config.SimulatedTracker) *config.TrackerConfig {
	return &config.TrackerConfig{Name: "sim", Kind: config.KindSimulated, Frequency: 50, Payload: payload}
}

func TestPose(t *testing.T) {
	static := &config.SimulatedTool{Center: r3.Vector{X: 1, Y: 2, Z: 3}}
	r := Pose(static, time.Hour)
	test.That(t, r.Translation, test.ShouldResemble, static.Center)
	test.That(t, r.Visible, test.ShouldBeTrue)
	test.That(t, r.Error, test.ShouldEqual, ReadingError)

	circle := &config.SimulatedTool{Trajectory: config.TrajectoryCircle, Radius: 10, PeriodMs: 1000}
	r = Pose(circle, 250*time.Millisecond)
	test.That(t, r.Translation.X, test.ShouldAlmostEqual, 0, 1e-9)
	test.That(t, r.Translation.Y, test.ShouldAlmostEqual, 10, 1e-9)
	test.That(t, r.Rotation.Real, test.ShouldAlmostEqual, math.Cos(math.Pi/4), 1e-9)

	line := &config.SimulatedTool{Trajectory: config.TrajectoryLine, Radius: 5, PeriodMs: 400, Center: r3.Vector{Z: 7}}
	r = Pose(line, 100*time.Millisecond)
	test.That(t, r.Translation.X, test.ShouldAlmostEqual, 5, 1e-9)
	test.That(t, r.Translation.Z, test.ShouldAlmostEqual, 7)
}

func TestDriverLifecycle(t *testing.T) {
	ctx := context.Background()
	mock := clock.NewMock()
	d, err := NewDriver(newConfig(nil), mock, logging.NewTestLogger(t))
	test.That(t, err, test.ShouldBeNil)
	_, threaded := d.(tracker.ThreadedDriver)
	test.That(t, threaded, test.ShouldBeFalse)

	test.That(t, d.StartTracking(ctx), test.ShouldNotBeNil)
	test.That(t, d.Open(ctx), test.ShouldBeNil)
	test.That(t, d.Open(ctx), test.ShouldNotBeNil)

	registrar, ok := d.(tracker.ToolRegistrar)
	test.That(t, ok, test.ShouldBeTrue)
	hidden := tracker.ToolSpec{Name: "blinky", Payload: &config.SimulatedTool{HiddenEvery: 2}}
	test.That(t, d.VerifyToolInformation(ctx, hidden), test.ShouldBeNil)
	test.That(t, registrar.AttachTool(ctx, hidden), test.ShouldBeNil)
	coil := tracker.ToolSpec{Name: "coil", Payload: &config.AuroraTool{}}
	test.That(t, d.VerifyToolInformation(ctx, coil), test.ShouldNotBeNil)
	test.That(t, registrar.AttachTool(ctx, coil), test.ShouldNotBeNil)
	// verified but never attached
	test.That(t, d.VerifyToolInformation(ctx, tracker.ToolSpec{Name: "spare", Payload: &config.SimulatedTool{}}), test.ShouldBeNil)

	_, err = d.UpdateStatus(ctx)
	test.That(t, err, test.ShouldNotBeNil)
	test.That(t, d.StartTracking(ctx), test.ShouldBeNil)

	var visible []bool
	for i := 0; i < 4; i++ {
		mock.Add(20 * time.Millisecond)
		frame, err := d.UpdateStatus(ctx)
		test.That(t, err, test.ShouldBeNil)
		test.That(t, frame, test.ShouldContainKey, "blinky")
		test.That(t, frame, test.ShouldNotContainKey, "coil")
		test.That(t, frame, test.ShouldNotContainKey, "spare")
		visible = append(visible, frame["blinky"].Visible)
	}
	test.That(t, visible, test.ShouldResemble, []bool{true, false, true, false})

	test.That(t, registrar.DetachTool(ctx, "blinky"), test.ShouldBeNil)
	test.That(t, registrar.DetachTool(ctx, "blinky"), test.ShouldBeNil)
	frame, err := d.UpdateStatus(ctx)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, frame, test.ShouldBeEmpty)

	test.That(t, d.StopTracking(ctx), test.ShouldBeNil)
	test.That(t, d.Close(ctx), test.ShouldBeNil)
	test.That(t, d.Open(ctx), test.ShouldBeNil)
}

func TestFailOn(t *testing.T) {
	ctx := context.Background()
	d, err := NewDriver(newConfig(&config.SimulatedTracker{FailOn: []string{config.HookOpen, config.HookClose}}),
		clock.NewMock(), logging.NewTestLogger(t))
	test.That(t, err, test.ShouldBeNil)
	err = d.Open(ctx)
	test.That(t, errors.Is(err, ErrInjected), test.ShouldBeTrue)
	test.That(t, err.Error(), test.ShouldContainSubstring, "sim open")
	test.That(t, errors.Is(d.Close(ctx), ErrInjected), test.ShouldBeTrue)

	_, err = NewDriver(&config.TrackerConfig{Name: "x", Payload: &config.AuroraTracker{}}, clock.NewMock(), logging.NewTestLogger(t))
	test.That(t, err, test.ShouldNotBeNil)
}

func TestThreadedDriver(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	mock := clock.NewMock()
	d, err := NewDriver(newConfig(&config.SimulatedTracker{Threaded: true}), mock, logging.NewTestLogger(t))
	test.That(t, err, test.ShouldBeNil)
	threaded, ok := d.(tracker.ThreadedDriver)
	test.That(t, ok, test.ShouldBeTrue)

	test.That(t, d.Open(ctx), test.ShouldBeNil)
	test.That(t, d.(tracker.ToolRegistrar).AttachTool(ctx, tracker.ToolSpec{Name: "probe", Payload: &config.SimulatedTool{}}), test.ShouldBeNil)
	test.That(t, d.StartTracking(ctx), test.ShouldBeNil)

	got := make(chan tracker.Frame, 1)
	go func() {
		frame, _ := threaded.AcquireFrame(ctx)
		got <- frame
	}()
	// AcquireFrame waits on the mock clock; keep advancing until the frame arrives
	var frame tracker.Frame
	for frame == nil {
		mock.Add(20 * time.Millisecond)
		select {
		case frame = <-got:
		case <-time.After(time.Millisecond):
		}
	}
	test.That(t, frame["probe"].Visible, test.ShouldBeTrue)

	cancel()
	_, err = threaded.AcquireFrame(ctx)
	test.That(t, err, test.ShouldNotBeNil)
}

func TestTrackerOnlyReportsAttachedTools(t *testing.T) {
	ctx := context.Background()
	logger := logging.NewTestLogger(t)
	mock := clock.NewMock()
	d, err := NewDriver(newConfig(nil), mock, logger)
	test.That(t, err, test.ShouldBeNil)
	graph := referenceframe.NewGraph()
	tr := tracker.NewTracker(tracker.Options{Name: "sim", Kind: config.KindSimulated, Frequency: 50, Clock: mock},
		d, graph, nil, logger)
	test.That(t, tr.RequestOpen(ctx), test.ShouldBeNil)

	probe := tracker.NewTool(&config.ToolConfig{Name: "probe", Payload: &config.SimulatedTool{}}, graph, nil, logger)
	test.That(t, probe.RequestConfigure(), test.ShouldBeNil)
	test.That(t, tr.VerifyTrackerToolInformation(ctx, probe), test.ShouldBeNil)
	test.That(t, tr.RequestAttachTool(ctx, probe), test.ShouldBeNil)
	test.That(t, tr.RequestDetachTool(ctx, probe), test.ShouldBeNil)

	test.That(t, tr.RequestStartTracking(ctx), test.ShouldBeNil)
	mock.Add(20 * time.Millisecond)
	frame, err := d.UpdateStatus(ctx)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, frame, test.ShouldBeEmpty)
	test.That(t, tr.RequestClose(ctx), test.ShouldBeNil)
}

func TestRegistered(t *testing.T) {
	reg, ok := registry.LookupDriver(config.KindSimulated)
	test.That(t, ok, test.ShouldBeTrue)
	d, err := reg.Constructor(context.Background(), newConfig(nil), nil, logging.NewTestLogger(t))
	test.That(t, err, test.ShouldBeNil)
	test.That(t, d, test.ShouldHaveSameTypeAs, &Driver{})
}
