// Package tracker drives tracker hardware through a table driven state machine. A Tracker opens
// the device, attaches tools, starts and stops acquisition and, on every polling tick, turns the
// newest raw poses into timestamped transforms published in the coordinate system graph.
// Vendor specifics live behind the Driver interface.
package tracker

import (
	"context"
	"io"
	"math"
	"os"
	"sort"
	"sync"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/google/uuid"
	"github.com/pkg/errors"
	"go.uber.org/multierr"
	goutils "go.viam.com/utils"

	"go.igtrack.org/tracking/config"
	"go.igtrack.org/tracking/events"
	"go.igtrack.org/tracking/logging"
	"go.igtrack.org/tracking/referenceframe"
	"go.igtrack.org/tracking/statemachine"
	"go.igtrack.org/tracking/transform"
	"go.igtrack.org/tracking/utils"
)

// State is a state of a Tracker.
type State string

// Tracker states.
const (
	StateIdle                   State = "Idle"
	StateAttemptingToOpen       State = "AttemptingToOpen"
	StateInitialized            State = "Initialized"
	StateAttemptingToAttachTool State = "AttemptingToAttachTool"
	StateAttemptingToStart      State = "AttemptingToStart"
	StateTracking               State = "Tracking"
	StateAttemptingToUpdate     State = "AttemptingToUpdate"
	StateAttemptingToStop       State = "AttemptingToStop"
	StateAttemptingToClose      State = "AttemptingToClose"
)

// Input is an input of the tracker state machine.
type Input string

// Tracker inputs. Succeeded, Failed and Canceled are only pushed by the tracker itself.
const (
	InputOpen             Input = "Open"
	InputClose            Input = "Close"
	InputStartTracking    Input = "StartTracking"
	InputStopTracking     Input = "StopTracking"
	InputUpdateStatus     Input = "UpdateStatus"
	InputAttachTool       Input = "AttachTool"
	InputDetachTool       Input = "DetachTool"
	InputSetReferenceTool Input = "SetReferenceTool"
	InputSetFrequency     Input = "SetFrequency"
	InputSucceeded        Input = "Succeeded"
	InputFailed           Input = "Failed"
	InputCanceled         Input = "Canceled"
)

// RequestInputs are the inputs callers can trigger.
var RequestInputs = []Input{
	InputOpen, InputClose, InputStartTracking, InputStopTracking, InputUpdateStatus,
	InputAttachTool, InputDetachTool, InputSetReferenceTool, InputSetFrequency,
}

// Options configure a Tracker.
type Options struct {
	Name string
	Kind config.Kind
	// Frequency is the polling rate in Hz. Zero selects the kind's maximum.
	Frequency float64
	// HardwareTimeout bounds each driver call. Zero uses the config default.
	HardwareTimeout time.Duration
	// Payload is the kind specific tracker configuration, used to locate marker files.
	Payload config.TrackerPayload
	// Clock drives slow call warnings and threaded acquisition retries. Defaults to the
	// transform package clock.
	Clock clock.Clock
}

// request holds what the actions of one request need.
type request struct {
	ctx  context.Context
	id   uuid.UUID
	err  error
	tool *Tool
	freq float64
}

// Tracker is safe for concurrent use. Requests are serialized: each one runs the state machine
// to completion, including every hardware call, before the next starts.
type Tracker struct {
	mu     sync.Mutex
	name   string
	kind   config.Kind
	driver Driver
	fsm    *statemachine.Machine[State, Input]
	sink   events.Sink
	logger logging.Logger
	clk    clock.Clock

	graph           *referenceframe.Graph
	cs              *referenceframe.CoordinateSystem
	payload         config.TrackerPayload
	frequency       float64
	hardwareTimeout time.Duration

	tools     map[string]*Tool
	reference *Tool

	buffer  *FrameBuffer
	workers utils.StoppableWorkers

	req *request
}

// NewTracker returns an idle tracker with its own root node in graph.
func NewTracker(opts Options, driver Driver, graph *referenceframe.Graph, sink events.Sink, logger logging.Logger) *Tracker {
	if sink == nil {
		sink = events.Discard
	}
	if opts.Clock == nil {
		opts.Clock = transform.Clock()
	}
	if opts.HardwareTimeout <= 0 {
		opts.HardwareTimeout = time.Duration(config.DefaultHardwareTimeoutMs) * time.Millisecond
	}
	frequency := opts.Frequency
	if !positiveFinite(frequency) {
		frequency = 0
	}
	if info, ok := opts.Kind.Info(); ok && (frequency == 0 || frequency > info.MaxFrequency) {
		frequency = info.MaxFrequency
	}
	if frequency <= 0 {
		frequency = 1
	}
	t := &Tracker{
		name:            opts.Name,
		kind:            opts.Kind,
		driver:          driver,
		sink:            sink,
		logger:          logger,
		clk:             opts.Clock,
		graph:           graph,
		cs:              graph.NewCoordinateSystem(opts.Name),
		payload:         opts.Payload,
		frequency:       frequency,
		hardwareTimeout: opts.HardwareTimeout,
		tools:           map[string]*Tool{},
		buffer:          NewFrameBuffer(),
	}
	t.fsm = statemachine.New[State, Input]("tracker "+opts.Name, StateIdle, logger)
	t.buildTransitions()
	return t
}

func (t *Tracker) buildTransitions() {
	m := t.fsm
	m.AddTransition(StateIdle, InputOpen, StateAttemptingToOpen, t.attemptToOpen)
	m.AddTransition(StateAttemptingToOpen, InputSucceeded, StateInitialized, t.succeeded(events.OpenSuccess))
	m.AddTransition(StateAttemptingToOpen, InputFailed, StateIdle, t.failed(events.OpenFailure))

	m.AddTransition(StateInitialized, InputAttachTool, StateAttemptingToAttachTool, t.attemptToAttachTool)
	m.AddTransition(StateAttemptingToAttachTool, InputSucceeded, StateInitialized, t.attachToolSucceeded)
	m.AddTransition(StateAttemptingToAttachTool, InputFailed, StateInitialized, t.failed(events.ToolAttachFailure))
	m.AddTransition(StateInitialized, InputDetachTool, StateInitialized, t.detachTool)

	m.AddTransition(StateInitialized, InputSetReferenceTool, StateInitialized, t.setReferenceTool)
	m.AddTransition(StateTracking, InputSetReferenceTool, StateTracking, t.setReferenceTool)
	m.AddTransition(StateIdle, InputSetFrequency, StateIdle, t.setFrequency)
	m.AddTransition(StateInitialized, InputSetFrequency, StateInitialized, t.setFrequency)

	m.AddTransition(StateInitialized, InputStartTracking, StateAttemptingToStart, t.attemptToStart)
	m.AddTransition(StateAttemptingToStart, InputSucceeded, StateTracking, t.startSucceeded)
	m.AddTransition(StateAttemptingToStart, InputFailed, StateInitialized, t.failed(events.StartFailure))

	m.AddTransition(StateTracking, InputUpdateStatus, StateAttemptingToUpdate, t.attemptToUpdate)
	m.AddTransition(StateAttemptingToUpdate, InputSucceeded, StateTracking, t.succeeded(events.UpdateStatusSuccess))
	m.AddTransition(StateAttemptingToUpdate, InputFailed, StateTracking, t.failed(events.UpdateStatusFailure))
	m.AddTransition(StateAttemptingToUpdate, InputCanceled, StateTracking, func() {
		t.logger.Debugw("polling tick abandoned", "error", t.req.err)
	})

	m.AddTransition(StateTracking, InputStopTracking, StateAttemptingToStop, t.attemptToStop)
	m.AddTransition(StateAttemptingToStop, InputSucceeded, StateInitialized, t.succeeded(events.StopSuccess))
	m.AddTransition(StateAttemptingToStop, InputFailed, StateTracking, t.failed(events.StopFailure))

	m.AddTransition(StateIdle, InputClose, StateIdle, t.succeeded(events.CloseSuccess))
	m.AddTransition(StateInitialized, InputClose, StateAttemptingToClose, t.attemptToClose)
	m.AddTransition(StateTracking, InputClose, StateAttemptingToClose, t.attemptToStopAndClose)
	m.AddTransition(StateAttemptingToClose, InputSucceeded, StateIdle, t.succeeded(events.CloseSuccess))
	m.AddTransition(StateAttemptingToClose, InputFailed, StateIdle, t.failed(events.CloseFailure))

	m.SetInvalidRequestHandler(func(state State, input Input) {
		t.req.err = newInvalidRequestError(m.Name(), state, input)
		t.emit(events.InvalidRequest, t.req.err.Error(), "")
	})
}

func (t *Tracker) emit(kind events.Kind, msg, toolID string) {
	e := events.New(t.req.id, kind, t.name, msg, t.clk.Now())
	e.ToolID = toolID
	t.sink.Emit(e)
}

func (t *Tracker) toolID() string {
	if t.req.tool != nil {
		return t.req.tool.Name()
	}
	return ""
}

func (t *Tracker) succeeded(kind events.Kind) statemachine.Action {
	return func() { t.emit(kind, "", t.toolID()) }
}

func (t *Tracker) failed(kind events.Kind) statemachine.Action {
	return func() {
		t.logger.Warnw("tracker request failed", "event", kind, "error", t.req.err)
		t.emit(kind, t.req.err.Error(), t.toolID())
	}
}

// result pushes Succeeded for a nil err and Failed otherwise.
func (t *Tracker) result(err error) {
	if err != nil {
		t.req.err = err
		t.fsm.PushInput(InputFailed)
		return
	}
	t.fsm.PushInput(InputSucceeded)
}

func (t *Tracker) request(ctx context.Context, input Input, tool *Tool, freq float64) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.req = &request{ctx: ctx, id: uuid.New(), tool: tool, freq: freq}
	defer func() { t.req = nil }()
	t.fsm.Handle(input)
	return t.req.err
}

// callHardware runs a driver call with the hardware timeout. A call that does not return in time
// is abandoned and reported as ErrHardwareTimeout.
func (t *Tracker) callHardware(op string, warnSlow bool, f func(ctx context.Context) error) error {
	ctx, cancel := context.WithTimeout(t.req.ctx, t.hardwareTimeout)
	defer cancel()
	if warnSlow {
		stop := utils.SlowLogger(ctx, t.clk, "waiting on tracker hardware", "op", op, t.logger)
		defer stop()
	}
	done := make(chan error, 1)
	goutils.PanicCapturingGo(func() { done <- f(ctx) })
	select {
	case err := <-done:
		return errors.Wrap(err, op)
	case <-ctx.Done():
		if callerErr := t.req.ctx.Err(); callerErr != nil {
			return errors.Wrap(callerErr, op)
		}
		return errors.Wrapf(ErrHardwareTimeout, "%s: %v", op, ctx.Err())
	}
}

// positiveFinite rejects zero, negative, NaN and infinite rates.
func positiveFinite(hz float64) bool {
	return hz > 0 && !math.IsInf(hz, 1)
}

// Name returns the tracker name.
func (t *Tracker) Name() string {
	return t.name
}

// Kind returns the tracker kind.
func (t *Tracker) Kind() config.Kind {
	return t.kind
}

// State returns the current state.
func (t *Tracker) State() State {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.fsm.State()
}

// Frequency returns the polling rate in Hz.
func (t *Tracker) Frequency() float64 {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.frequency
}

// ValidityPeriodMs is how long a polled transform stays valid: one polling period.
func (t *Tracker) ValidityPeriodMs() float64 {
	t.mu.Lock()
	defer t.mu.Unlock()
	return 1000 / t.frequency
}

// CoordinateSystem returns the tracker's node in the graph.
func (t *Tracker) CoordinateSystem() *referenceframe.CoordinateSystem {
	return t.cs
}

// Graph returns the graph the tracker and its tools live in.
func (t *Tracker) Graph() *referenceframe.Graph {
	return t.graph
}

// Tools returns the attached tools other than the reference tool, sorted by name.
func (t *Tracker) Tools() []*Tool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.sortedTools(false)
}

func (t *Tracker) sortedTools(withReference bool) []*Tool {
	tools := make([]*Tool, 0, len(t.tools))
	for _, tool := range t.tools {
		if tool != t.reference || withReference {
			tools = append(tools, tool)
		}
	}
	sort.Slice(tools, func(i, j int) bool { return tools[i].Name() < tools[j].Name() })
	return tools
}

// Tool returns the attached tool named name.
func (t *Tracker) Tool(name string) (*Tool, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	tool, ok := t.tools[name]
	return tool, ok
}

// ReferenceTool returns the reference tool, or nil.
func (t *Tracker) ReferenceTool() *Tool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.reference
}

// ComputeTransform returns the transform from src into dst. It holds the tracker lock, so the
// result never mixes two polling ticks.
func (t *Tracker) ComputeTransform(src, dst *referenceframe.CoordinateSystem) (transform.Transform, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	return src.ComputeTransformTo(dst)
}

// FrameBufferStats reports the threaded acquisition counters.
func (t *Tracker) FrameBufferStats() (published, consumed, dropped uint64) {
	return t.buffer.Stats()
}

// ExportStateMachine writes the tracker state machine as Graphviz DOT.
func (t *Tracker) ExportStateMachine(w io.Writer) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.fsm.ExportDOT(w)
}

// RequestOpen opens communication with the hardware. Valid while Idle.
func (t *Tracker) RequestOpen(ctx context.Context) error {
	return t.request(ctx, InputOpen, nil, 0)
}

func (t *Tracker) attemptToOpen() {
	t.result(t.callHardware("open", true, t.driver.Open))
}

// RequestClose stops tracking if needed, closes the hardware and detaches every tool. It is
// honoured from Idle, Initialized and Tracking, and always ends in Idle.
func (t *Tracker) RequestClose(ctx context.Context) error {
	return t.request(ctx, InputClose, nil, 0)
}

func (t *Tracker) attemptToClose() {
	t.result(t.closeAndRelease(nil))
}

// attemptToStopAndClose stops acquisition first. A failed stop does not prevent the close.
func (t *Tracker) attemptToStopAndClose() {
	err := t.callHardware("stop tracking", true, t.driver.StopTracking)
	t.stopAcquisition()
	t.result(t.closeAndRelease(err))
}

func (t *Tracker) closeAndRelease(errs error) error {
	errs = multierr.Append(errs, t.callHardware("close", true, t.driver.Close))
	for _, tool := range t.sortedTools(true) {
		errs = multierr.Append(errs, tool.detached(t.req.id))
		delete(t.tools, tool.Name())
	}
	t.reference = nil
	return errs
}

// RequestStartTracking starts acquisition. Valid while Initialized.
func (t *Tracker) RequestStartTracking(ctx context.Context) error {
	return t.request(ctx, InputStartTracking, nil, 0)
}

func (t *Tracker) attemptToStart() {
	t.result(t.callHardware("start tracking", true, t.driver.StartTracking))
}

func (t *Tracker) startSucceeded() {
	if threaded, ok := t.driver.(ThreadedDriver); ok {
		t.buffer.Reset()
		period := transform.MillisToDuration(1000 / t.frequency)
		t.workers = utils.NewStoppableWorkers(func(ctx context.Context) {
			t.acquire(ctx, threaded, period)
		})
	}
	t.emit(events.StartSuccess, "", "")
}

// acquire runs on the acquisition goroutine of a threaded driver.
func (t *Tracker) acquire(ctx context.Context, d ThreadedDriver, retry time.Duration) {
	for {
		frame, err := d.AcquireFrame(ctx)
		if ctx.Err() != nil {
			return
		}
		if err != nil {
			t.logger.Debugw("acquisition failed", "error", err)
			select {
			case <-ctx.Done():
				return
			case <-t.clk.After(retry):
			}
			continue
		}
		t.buffer.Publish(frame)
	}
}

func (t *Tracker) stopAcquisition() {
	if t.workers != nil {
		t.workers.Stop()
		t.workers = nil
	}
}

// RequestStopTracking stops acquisition. Valid while Tracking; a failure leaves the tracker
// Tracking.
func (t *Tracker) RequestStopTracking(ctx context.Context) error {
	return t.request(ctx, InputStopTracking, nil, 0)
}

func (t *Tracker) attemptToStop() {
	if err := t.callHardware("stop tracking", true, t.driver.StopTracking); err != nil {
		t.result(err)
		return
	}
	t.stopAcquisition()
	for _, tool := range t.tools {
		tool.trackingStopped(t.req.id)
	}
	t.result(nil)
}

// RequestUpdateStatus runs one polling tick. Valid while Tracking. A tick whose ctx is canceled
// mid call returns the ctx error and emits nothing.
func (t *Tracker) RequestUpdateStatus(ctx context.Context) error {
	return t.request(ctx, InputUpdateStatus, nil, 0)
}

func (t *Tracker) readFrame() (frame Frame, fresh bool, err error) {
	if _, ok := t.driver.(ThreadedDriver); ok {
		frame, fresh = t.buffer.Latest()
		return frame, fresh, nil
	}
	err = t.callHardware("update status", false, func(ctx context.Context) error {
		var err error
		frame, err = t.driver.UpdateStatus(ctx)
		return err
	})
	return frame, err == nil, err
}

// attemptToUpdate stamps every tool's newest reading with a window of one polling period and
// republishes the tools in the graph. Tools are expressed relative to the reference tool when
// one is set.
func (t *Tracker) attemptToUpdate() {
	frame, fresh, err := t.readFrame()
	if err != nil && t.req.ctx.Err() != nil {
		t.req.err = err
		t.fsm.PushInput(InputCanceled)
		return
	}
	if err != nil {
		t.result(err)
		return
	}
	if !fresh {
		t.result(nil)
		return
	}

	period := 1000 / t.frequency
	var updated []*Tool
	for _, tool := range t.sortedTools(true) {
		reading, ok := frame[tool.Name()]
		visible := ok && reading.Visible
		var raw transform.Transform
		if visible {
			raw = transform.NewTransform(reading.Translation, reading.Rotation, reading.Error, period)
			updated = append(updated, tool)
		}
		tool.updateRaw(t.req.id, raw, visible)
	}

	var errs error
	var refCalibrated *transform.Transform
	if t.reference != nil {
		tf := t.reference.CalibratedTransform()
		refCalibrated = &tf
		errs = multierr.Append(errs, t.reference.publish(t.cs, nil))
	}
	for _, tool := range updated {
		if tool == t.reference {
			continue
		}
		if refCalibrated != nil {
			errs = multierr.Append(errs, tool.publish(t.reference.cs, refCalibrated))
		} else {
			errs = multierr.Append(errs, tool.publish(t.cs, nil))
		}
	}
	t.result(errs)
}

// RequestAttachTool verifies tool and adds it to the active tool set. Valid while Initialized.
func (t *Tracker) RequestAttachTool(ctx context.Context, tool *Tool) error {
	return t.request(ctx, InputAttachTool, tool, 0)
}

func (t *Tracker) attemptToAttachTool() {
	err := t.verifyTool(t.req.tool)
	if registrar, ok := t.driver.(ToolRegistrar); ok && err == nil {
		spec := ToolSpec{Name: t.req.tool.Name(), Payload: t.req.tool.Payload()}
		err = t.callHardware("attach tool", false, func(ctx context.Context) error {
			return registrar.AttachTool(ctx, spec)
		})
	}
	t.result(err)
}

// forgetTool tells a ToolRegistrar driver to stop reporting name. The tool is already gone from
// the tracker, so a failure is only logged.
func (t *Tracker) forgetTool(name string) {
	registrar, ok := t.driver.(ToolRegistrar)
	if !ok {
		return
	}
	err := t.callHardware("detach tool", false, func(ctx context.Context) error {
		return registrar.DetachTool(ctx, name)
	})
	if err != nil {
		t.logger.Warnw("driver still holds detached tool", "tool", name, "error", err)
	}
}

// VerifyTrackerToolInformation checks, without side effects, that tool could be attached: it
// must be configured, unique, compatible with this tracker's kind, its description files must
// exist and the driver must accept it.
func (t *Tracker) VerifyTrackerToolInformation(ctx context.Context, tool *Tool) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	prev := t.req
	t.req = &request{ctx: ctx, id: uuid.New()}
	defer func() { t.req = prev }()
	return t.verifyTool(tool)
}

func (t *Tracker) verifyTool(tool *Tool) error {
	if tool == nil {
		return errors.Wrap(ErrToolNotConfigured, "nil tool")
	}
	if tool.State() != ToolConfigured {
		return errors.Wrapf(ErrToolNotConfigured, "tool %q is %s", tool.Name(), tool.State())
	}
	if _, dup := t.tools[tool.Name()]; dup {
		return errors.Wrapf(ErrDuplicateTool, "%q", tool.Name())
	}
	if tool.CoordinateSystem().Graph() != t.graph {
		return errors.Wrapf(referenceframe.ErrForeignNode, "tool %q", tool.Name())
	}
	payload := tool.Payload()
	if payload.Kind() != t.kind && !(payload.Kind().IsPolaris() && t.kind.IsPolaris()) {
		return errors.Wrapf(ErrIncompatibleTool, "%s tool %q on %s tracker", payload.Kind(), tool.Name(), t.kind)
	}
	for _, path := range config.RequiredToolFiles(t.payload, payload) {
		if _, err := os.Stat(path); err != nil {
			return errors.Wrapf(ErrMissingToolFile, "tool %q: %v", tool.Name(), err)
		}
	}
	return t.callHardware("verify tool", false, func(ctx context.Context) error {
		return t.driver.VerifyToolInformation(ctx, ToolSpec{Name: tool.Name(), Payload: payload})
	})
}

// attachToolSucceeded hangs the verified tool below the tracker. A tool that cannot be placed in
// the graph is rolled back to Configured.
func (t *Tracker) attachToolSucceeded() {
	tool := t.req.tool
	if err := tool.attached(t, t.req.id); err != nil {
		t.forgetTool(tool.Name())
		t.req.err = err
		t.emit(events.ToolAttachFailure, err.Error(), tool.Name())
		return
	}
	t.tools[tool.Name()] = tool
	t.emit(events.ToolAttachSuccess, "", tool.Name())
}

// RequestDetachTool removes tool from the active set. Valid while Initialized.
func (t *Tracker) RequestDetachTool(ctx context.Context, tool *Tool) error {
	return t.request(ctx, InputDetachTool, tool, 0)
}

func (t *Tracker) detachTool() {
	tool := t.req.tool
	if tool == nil || t.tools[tool.Name()] != tool {
		t.req.err = errors.Wrapf(ErrToolNotAttached, "%q", t.toolID())
		t.emit(events.ToolDetachFailure, t.req.err.Error(), t.toolID())
		return
	}
	if tool == t.reference {
		// the other tools hang below the reference; move them back before it goes
		if err := t.republishToTracker(); err != nil {
			t.req.err = err
			t.emit(events.ToolDetachFailure, err.Error(), tool.Name())
			return
		}
		t.reference = nil
	}
	if err := tool.detached(t.req.id); err != nil {
		t.req.err = err
		t.emit(events.ToolDetachFailure, err.Error(), tool.Name())
		return
	}
	delete(t.tools, tool.Name())
	t.forgetTool(tool.Name())
	t.emit(events.ToolDetachSuccess, "", tool.Name())
}

// RequestSetReferenceTool makes tool the reference every other tool is expressed in. A nil tool
// clears the reference. Valid while Initialized or Tracking.
func (t *Tracker) RequestSetReferenceTool(ctx context.Context, tool *Tool) error {
	return t.request(ctx, InputSetReferenceTool, tool, 0)
}

func (t *Tracker) setReferenceTool() {
	tool := t.req.tool
	if tool != nil && t.tools[tool.Name()] != tool {
		t.req.err = errors.Wrapf(ErrToolNotAttached, "%q", tool.Name())
		t.emit(events.ReferenceToolFailure, t.req.err.Error(), tool.Name())
		return
	}
	t.reference = tool
	if err := t.republishToTracker(); err != nil {
		t.req.err = err
		t.emit(events.ReferenceToolFailure, err.Error(), t.toolID())
		return
	}
	t.emit(events.ReferenceToolSet, "", t.toolID())
}

// republishToTracker hangs every tool directly below the tracker again. The next polling tick
// moves them below the reference tool if one is set.
func (t *Tracker) republishToTracker() error {
	var errs error
	for _, tool := range t.tools {
		errs = multierr.Append(errs, tool.publish(t.cs, nil))
	}
	return errs
}

// RequestSetFrequency changes the polling rate. Valid while Idle or Initialized; the rate must
// not exceed the kind's manufacturer maximum.
func (t *Tracker) RequestSetFrequency(ctx context.Context, hz float64) error {
	return t.request(ctx, InputSetFrequency, nil, hz)
}

func (t *Tracker) setFrequency() {
	hz := t.req.freq
	maxHz := t.frequency
	if info, ok := t.kind.Info(); ok {
		maxHz = info.MaxFrequency
	}
	if !positiveFinite(hz) || hz > maxHz {
		t.req.err = errors.Wrapf(ErrFrequencyOutOfRange, "%g Hz not in (0, %g]", hz, maxHz)
		t.emit(events.FrequencyFailure, t.req.err.Error(), "")
		return
	}
	t.frequency = hz
	t.emit(events.FrequencySet, "", "")
}
