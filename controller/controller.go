// Package controller builds a complete tracking stack from one tracker configuration. It opens
// the communication channel, constructs the driver, tracker and tools, and drives polling, all
// behind a state machine that reports exactly one terminal event per request and unwinds
// whatever it built when a step fails.
package controller

import (
	"context"
	"io"
	"sync"

	"github.com/benbjohnson/clock"
	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/samber/lo"
	"go.uber.org/multierr"

	"go.igtrack.org/tracking/config"
	"go.igtrack.org/tracking/events"
	"go.igtrack.org/tracking/logging"
	"go.igtrack.org/tracking/referenceframe"
	"go.igtrack.org/tracking/registry"
	"go.igtrack.org/tracking/serial"
	"go.igtrack.org/tracking/statemachine"
	"go.igtrack.org/tracking/tracker"
	"go.igtrack.org/tracking/transform"
)

// State is a state of a Controller.
type State string

// Controller states.
const (
	StateIdle                         State = "Idle"
	StateAttemptingToInitialize       State = "AttemptingToInitialize"
	StateAttemptingToInitializeVendor State = "AttemptingToInitializeVendor"
	StateInitialized                  State = "Initialized"
	StateAttemptingToStart            State = "AttemptingToStart"
	StateStarted                      State = "Started"
	StateAttemptingToStop             State = "AttemptingToStop"
	StateAttemptingToShutdown         State = "AttemptingToShutdown"
)

// Input is an input of the controller state machine.
type Input string

// Controller inputs.
const (
	InputInitialize       Input = "Initialize"
	InputStartTracking    Input = "StartTracking"
	InputStopTracking     Input = "StopTracking"
	InputShutdown         Input = "Shutdown"
	InputGetTracker       Input = "GetTracker"
	InputGetToolList      Input = "GetNonReferenceToolList"
	InputGetReferenceTool Input = "GetReferenceTool"
	InputVendorSelected   Input = "VendorSelected"
	InputSucceeded        Input = "Succeeded"
	InputFailed           Input = "Failed"
)

// Options customize how a Controller reaches hardware.
type Options struct {
	// LookupDriver finds the driver for a kind. Defaults to registry.LookupDriver.
	LookupDriver func(kind config.Kind) (registry.DriverRegistration, bool)
	// OpenSerial opens a serial channel. Defaults to serial.Open.
	OpenSerial func(path string, options serial.Options) (serial.Port, error)
	// Clock drives the polling pulser. Defaults to the transform package clock.
	Clock clock.Clock
}

// vendor is where a configuration is routed.
type vendor struct {
	name        string
	needsSerial bool
}

type request struct {
	ctx  context.Context
	id   uuid.UUID
	err  error
	conf *config.TrackerConfig
}

// Controller is safe for concurrent use; requests are serialized.
type Controller struct {
	mu     sync.Mutex
	fsm    *statemachine.Machine[State, Input]
	opts   Options
	graph  *referenceframe.Graph
	sink   events.Sink
	inner  events.Sink
	logger logging.Logger

	conf      *config.TrackerConfig
	vendor    vendor
	port      serial.Port
	tracker   *tracker.Tracker
	tools     []*tracker.Tool
	reference *tracker.Tool
	pulser    *tracker.Pulser

	req *request
}

// New returns an idle controller that builds its coordinate systems in graph. Terminal events
// and tool availability events go to sink; everything the tracker and tools report is logged.
func New(graph *referenceframe.Graph, sink events.Sink, opts Options, logger logging.Logger) *Controller {
	if sink == nil {
		sink = events.Discard
	}
	if opts.LookupDriver == nil {
		opts.LookupDriver = registry.LookupDriver
	}
	if opts.OpenSerial == nil {
		opts.OpenSerial = serial.Open
	}
	if opts.Clock == nil {
		opts.Clock = transform.Clock()
	}
	c := &Controller{
		opts:   opts,
		graph:  graph,
		sink:   sink,
		logger: logger,
		inner: events.Tee(
			events.LogSink(logger.Sublogger("events")),
			events.Filter(sink, events.OfKind(events.ToolAvailable, events.ToolNotAvailable)),
		),
		pulser: tracker.NewPulser(opts.Clock, logger.Sublogger("pulser")),
	}
	c.fsm = statemachine.New[State, Input]("controller", StateIdle, logger)
	c.buildTransitions()
	return c
}

func (c *Controller) buildTransitions() {
	m := c.fsm
	m.AddTransition(StateIdle, InputInitialize, StateAttemptingToInitialize, c.selectVendor)
	m.AddTransition(StateAttemptingToInitialize, InputVendorSelected, StateAttemptingToInitializeVendor, c.initializeVendor)
	m.AddTransition(StateAttemptingToInitialize, InputFailed, StateIdle, c.failed(events.InitializeFailure))
	m.AddTransition(StateAttemptingToInitializeVendor, InputSucceeded, StateInitialized, c.succeeded(events.InitializeSuccess))
	m.AddTransition(StateAttemptingToInitializeVendor, InputFailed, StateIdle, c.failed(events.InitializeFailure))

	m.AddTransition(StateInitialized, InputStartTracking, StateAttemptingToStart, c.attemptToStart)
	m.AddTransition(StateAttemptingToStart, InputSucceeded, StateStarted, c.succeeded(events.StartSuccess))
	m.AddTransition(StateAttemptingToStart, InputFailed, StateInitialized, c.failed(events.StartFailure))

	m.AddTransition(StateStarted, InputStopTracking, StateAttemptingToStop, c.attemptToStop)
	m.AddTransition(StateAttemptingToStop, InputSucceeded, StateInitialized, c.succeeded(events.StopSuccess))
	m.AddTransition(StateAttemptingToStop, InputFailed, StateStarted, c.failed(events.StopFailure))

	m.AddTransition(StateIdle, InputShutdown, StateIdle, c.succeeded(events.ShutdownSuccess))
	for _, s := range []State{StateInitialized, StateStarted} {
		m.AddTransition(s, InputShutdown, StateAttemptingToShutdown, c.attemptToShutdown)
		for _, q := range []Input{InputGetTracker, InputGetToolList, InputGetReferenceTool} {
			m.AddTransition(s, q, s, nil)
		}
	}
	m.AddTransition(StateAttemptingToShutdown, InputSucceeded, StateIdle, c.succeeded(events.ShutdownSuccess))
	m.AddTransition(StateAttemptingToShutdown, InputFailed, StateIdle, c.failed(events.ShutdownFailure))

	m.SetInvalidRequestHandler(func(state State, input Input) {
		c.req.err = errors.Wrapf(tracker.ErrInvalidRequest, "controller cannot handle %s while %s", input, state)
		c.emit(events.InvalidRequest, c.req.err.Error())
	})
}

func (c *Controller) emit(kind events.Kind, msg string) {
	c.sink.Emit(events.New(c.req.id, kind, "controller", msg, c.opts.Clock.Now()))
}

func (c *Controller) succeeded(kind events.Kind) statemachine.Action {
	return func() { c.emit(kind, "") }
}

func (c *Controller) failed(kind events.Kind) statemachine.Action {
	return func() {
		c.logger.Warnw("controller request failed", "event", kind, "error", c.req.err)
		c.emit(kind, c.req.err.Error())
	}
}

func (c *Controller) result(err error) {
	if err != nil {
		c.req.err = err
		c.fsm.PushInput(InputFailed)
		return
	}
	c.fsm.PushInput(InputSucceeded)
}

func (c *Controller) request(ctx context.Context, input Input, conf *config.TrackerConfig) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.requestLocked(ctx, input, conf)
}

func (c *Controller) requestLocked(ctx context.Context, input Input, conf *config.TrackerConfig) error {
	c.req = &request{ctx: ctx, id: uuid.New(), conf: conf}
	defer func() { c.req = nil }()
	c.fsm.Handle(input)
	return c.req.err
}

// State returns the current state.
func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.fsm.State()
}

// Graph returns the graph the controller builds in.
func (c *Controller) Graph() *referenceframe.Graph {
	return c.graph
}

// ExportStateMachine writes the controller state machine as Graphviz DOT.
func (c *Controller) ExportStateMachine(w io.Writer) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.fsm.ExportDOT(w)
}

// RequestInitialize builds the tracker described by conf: it opens the serial channel when the
// kind needs one, creates and opens the tracker, then configures and attaches every tool and the
// reference tool. Any failure unwinds what was built and leaves the controller Idle.
func (c *Controller) RequestInitialize(ctx context.Context, conf *config.TrackerConfig) error {
	return c.request(ctx, InputInitialize, conf)
}

// selectVendor routes on the payload's dynamic type.
func (c *Controller) selectVendor() {
	conf := c.req.conf
	if conf == nil {
		c.result(errors.Wrap(ErrUnknownConfiguration, "nil configuration"))
		return
	}
	var v vendor
	switch p := conf.Payload.(type) {
	case *config.PolarisTracker:
		v = vendor{name: "NDI " + string(p.Variant), needsSerial: true}
	case *config.AuroraTracker:
		v = vendor{name: "NDI Aurora", needsSerial: true}
	case *config.AscensionTracker:
		v = vendor{name: "Ascension", needsSerial: true}
	case *config.MicronTracker:
		v = vendor{name: "Claron Micron"}
	case *config.InfiniTrackTracker:
		v = vendor{name: "Atracsys InfiniTrack"}
	case *config.SimulatedTracker:
		v = vendor{name: "simulated"}
	default:
		c.result(errors.Wrapf(ErrUnknownConfiguration, "%T", conf.Payload))
		return
	}
	if conf.Payload.Kind() != conf.Kind {
		c.result(errors.Wrapf(ErrUnknownConfiguration, "%s configuration for a %s tracker", conf.Payload.Kind(), conf.Kind))
		return
	}
	if _, err := conf.Validate("tracker " + conf.Name); err != nil {
		c.result(err)
		return
	}
	c.conf, c.vendor = conf, v
	c.logger.Debugw("routing tracker", "name", conf.Name, "vendor", v.name)
	c.fsm.PushInput(InputVendorSelected)
}

func (c *Controller) initializeVendor() {
	if err := c.build(c.req.ctx); err != nil {
		c.result(multierr.Append(err, c.release(c.req.ctx)))
		return
	}
	c.result(nil)
}

func (c *Controller) build(ctx context.Context) error {
	conf := c.conf
	if c.vendor.needsSerial {
		opts := conf.Serial.Options(conf.Kind)
		port, err := c.opts.OpenSerial(conf.Serial.Path, opts)
		if err != nil {
			return errors.Wrapf(err, "cannot open communication with %s tracker %q", c.vendor.name, conf.Name)
		}
		c.port = port
	}

	reg, ok := c.opts.LookupDriver(conf.Kind)
	if !ok {
		return errors.Wrapf(ErrNoDriver, "for %s", conf.Kind)
	}
	driver, err := reg.Constructor(ctx, conf, c.port, c.logger.Sublogger("driver"))
	if err != nil {
		return errors.Wrapf(err, "cannot create %s driver", c.vendor.name)
	}

	c.tracker = tracker.NewTracker(tracker.Options{
		Name:            conf.Name,
		Kind:            conf.Kind,
		Frequency:       conf.PollingFrequency(),
		HardwareTimeout: transform.MillisToDuration(float64(conf.HardwareTimeout())),
		Payload:         conf.Payload,
		Clock:           c.opts.Clock,
	}, driver, c.graph, c.inner, c.logger.Sublogger(conf.Name))
	if err := c.tracker.RequestOpen(ctx); err != nil {
		return errors.Wrapf(err, "cannot initialize %s tracker %q", c.vendor.name, conf.Name)
	}

	for i := range conf.TrackerToolList() {
		if _, err := c.addTool(ctx, &conf.Tools[i]); err != nil {
			return err
		}
	}
	if refConf, ok := conf.ReferenceToolConfig(); ok {
		ref, err := c.addTool(ctx, refConf)
		if err != nil {
			return err
		}
		if err := c.tracker.RequestSetReferenceTool(ctx, ref); err != nil {
			return errors.Wrapf(err, "cannot use %q as reference", ref.Name())
		}
		c.reference = ref
	}
	return nil
}

func (c *Controller) addTool(ctx context.Context, conf *config.ToolConfig) (*tracker.Tool, error) {
	tool := tracker.NewTool(conf, c.graph, c.inner, c.logger)
	c.tools = append(c.tools, tool)
	if err := tool.RequestConfigure(); err != nil {
		return nil, errors.Wrapf(err, "cannot configure tool %q", conf.Name)
	}
	if err := tool.RequestAttachToTracker(ctx, c.tracker); err != nil {
		return nil, errors.Wrapf(err, "cannot attach tool %q", conf.Name)
	}
	return tool, nil
}

// release closes the tracker and the serial channel and removes every node it created from the
// graph. It is safe to call on a partially built stack.
func (c *Controller) release(ctx context.Context) error {
	c.pulser.Stop()
	var errs error
	if c.tracker != nil {
		errs = multierr.Append(errs, c.tracker.RequestClose(ctx))
		for _, tool := range c.tools {
			errs = multierr.Append(errs, c.graph.Remove(tool.CoordinateSystem().ID()))
		}
		errs = multierr.Append(errs, c.graph.Remove(c.tracker.CoordinateSystem().ID()))
	}
	if c.port != nil {
		errs = multierr.Append(errs, errors.Wrap(c.port.Close(), "closing serial channel"))
	}
	c.conf, c.vendor, c.port, c.tracker, c.tools, c.reference = nil, vendor{}, nil, nil, nil, nil
	return errs
}

// RequestStartTracking starts acquisition and the polling pulse. Valid while Initialized.
func (c *Controller) RequestStartTracking(ctx context.Context) error {
	return c.request(ctx, InputStartTracking, nil)
}

func (c *Controller) attemptToStart() {
	if err := c.tracker.RequestStartTracking(c.req.ctx); err != nil {
		c.result(err)
		return
	}
	if err := c.pulser.PulseTracker(c.tracker); err != nil {
		c.result(multierr.Append(err, c.tracker.RequestStopTracking(c.req.ctx)))
		return
	}
	c.result(nil)
}

// RequestStopTracking stops polling and acquisition. Valid while Started; on failure polling
// resumes and the controller stays Started.
func (c *Controller) RequestStopTracking(ctx context.Context) error {
	return c.request(ctx, InputStopTracking, nil)
}

func (c *Controller) attemptToStop() {
	c.pulser.Stop()
	if err := c.tracker.RequestStopTracking(c.req.ctx); err != nil {
		c.result(multierr.Append(err, c.pulser.PulseTracker(c.tracker)))
		return
	}
	c.result(nil)
}

// RequestShutdown stops everything, closes the hardware and releases the tools. It always ends
// Idle.
func (c *Controller) RequestShutdown(ctx context.Context) error {
	return c.request(ctx, InputShutdown, nil)
}

func (c *Controller) attemptToShutdown() {
	c.result(c.release(c.req.ctx))
}

// RequestGetTracker returns the tracker. Valid once Initialized.
func (c *Controller) RequestGetTracker(ctx context.Context) (*tracker.Tracker, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.requestLocked(ctx, InputGetTracker, nil); err != nil {
		return nil, err
	}
	return c.tracker, nil
}

// RequestGetNonReferenceToolList returns the attached tools other than the reference tool, in
// configuration order. Valid once Initialized.
func (c *Controller) RequestGetNonReferenceToolList(ctx context.Context) ([]*tracker.Tool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.requestLocked(ctx, InputGetToolList, nil); err != nil {
		return nil, err
	}
	return lo.Filter(c.tools, func(tool *tracker.Tool, _ int) bool { return tool != c.reference }), nil
}

// RequestGetReferenceTool returns the reference tool, or nil when none is configured. Valid
// once Initialized.
func (c *Controller) RequestGetReferenceTool(ctx context.Context) (*tracker.Tool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.requestLocked(ctx, InputGetReferenceTool, nil); err != nil {
		return nil, err
	}
	return c.reference, nil
}
