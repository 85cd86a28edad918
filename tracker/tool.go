package tracker

import (
	"context"
	"io"
	"sync"

	"github.com/google/uuid"
	"github.com/pkg/errors"

	"go.igtrack.org/tracking/config"
	"go.igtrack.org/tracking/events"
	"go.igtrack.org/tracking/logging"
	"go.igtrack.org/tracking/referenceframe"
	"go.igtrack.org/tracking/statemachine"
	"go.igtrack.org/tracking/transform"
)

// ToolState is a state of a Tool.
type ToolState string

// Tool states.
const (
	ToolIdle         ToolState = "Idle"
	ToolConfigured   ToolState = "Configured"
	ToolAttached     ToolState = "AttachedToTracker"
	ToolTracked      ToolState = "Tracked"
	ToolNotAvailable ToolState = "NotAvailableToBeTracked"
)

type toolInput string

const (
	toolConfigureInput       toolInput = "Configure"
	toolConfigSucceeded      toolInput = "ConfigurationSucceeded"
	toolConfigFailed         toolInput = "ConfigurationFailed"
	toolAttachInput          toolInput = "AttachToTracker"
	toolAttachedInput        toolInput = "AttachmentSucceeded"
	toolDetachInput          toolInput = "DetachFromTracker"
	toolDetachedInput        toolInput = "DetachmentSucceeded"
	toolAvailableInput       toolInput = "ReportAvailable"
	toolNotAvailableInput    toolInput = "ReportNotAvailable"
	toolTrackingStoppedInput toolInput = "TrackingStopped"
)

// Tool is the software proxy of one tracked instrument. Its raw transform is written by the
// owning tracker once per polling tick; the tool publishes raw ∘ calibration as its transform to
// its parent in the coordinate system graph.
type Tool struct {
	mu     sync.Mutex
	name   string
	conf   *config.ToolConfig
	fsm    *statemachine.Machine[ToolState, toolInput]
	sink   events.Sink
	logger logging.Logger
	cs     *referenceframe.CoordinateSystem

	payload     config.ToolPayload
	calibration transform.Transform
	raw         transform.Transform
	available   bool
	tracker     *Tracker

	requestID uuid.UUID
	reqErr    error
}

// NewTool creates an idle tool from conf with its own node in graph. The calibration in conf,
// if any, becomes the calibration transform.
func NewTool(conf *config.ToolConfig, graph *referenceframe.Graph, sink events.Sink, logger logging.Logger) *Tool {
	if sink == nil {
		sink = events.Discard
	}
	tool := &Tool{
		name:        conf.Name,
		conf:        conf,
		sink:        sink,
		logger:      logger.Sublogger(conf.Name),
		cs:          graph.NewCoordinateSystem(conf.Name),
		calibration: conf.Calibration.Transform(),
	}
	tool.fsm = statemachine.New[ToolState, toolInput]("tool "+conf.Name, ToolIdle, tool.logger)
	tool.buildTransitions()
	return tool
}

func (tool *Tool) buildTransitions() {
	m := tool.fsm
	m.AddTransition(ToolIdle, toolConfigureInput, ToolIdle, tool.configureProcessing)
	m.AddTransition(ToolIdle, toolConfigSucceeded, ToolConfigured, func() {
		tool.emit(events.ToolConfigurationSuccess, "")
	})
	m.AddTransition(ToolIdle, toolConfigFailed, ToolIdle, func() {
		tool.emit(events.ToolConfigurationFailure, tool.reqErr.Error())
	})

	m.AddTransition(ToolConfigured, toolAttachInput, ToolConfigured, nil)
	m.AddTransition(ToolConfigured, toolAttachedInput, ToolAttached, nil)

	for _, s := range []ToolState{ToolAttached, ToolTracked, ToolNotAvailable} {
		m.AddTransition(s, toolDetachInput, s, nil)
		m.AddTransition(s, toolDetachedInput, ToolConfigured, tool.clearAvailability)
	}

	m.AddTransition(ToolAttached, toolAvailableInput, ToolTracked, tool.reportAvailable)
	m.AddTransition(ToolAttached, toolNotAvailableInput, ToolNotAvailable, tool.reportNotAvailable)
	m.AddTransition(ToolTracked, toolAvailableInput, ToolTracked, nil)
	m.AddTransition(ToolTracked, toolNotAvailableInput, ToolNotAvailable, tool.reportNotAvailable)
	m.AddTransition(ToolNotAvailable, toolAvailableInput, ToolTracked, tool.reportAvailable)
	m.AddTransition(ToolNotAvailable, toolNotAvailableInput, ToolNotAvailable, nil)
	m.AddTransition(ToolTracked, toolTrackingStoppedInput, ToolAttached, tool.clearAvailability)
	m.AddTransition(ToolNotAvailable, toolTrackingStoppedInput, ToolAttached, tool.clearAvailability)
	m.AddTransition(ToolAttached, toolTrackingStoppedInput, ToolAttached, nil)

	m.SetInvalidRequestHandler(func(state ToolState, input toolInput) {
		tool.reqErr = newInvalidRequestError(m.Name(), state, input)
		tool.emit(events.InvalidRequest, tool.reqErr.Error())
	})
}

func (tool *Tool) emit(kind events.Kind, msg string) {
	e := events.New(tool.requestID, kind, tool.name, msg, transform.Clock().Now())
	e.ToolID = tool.name
	tool.sink.Emit(e)
}

// request runs input to completion under the tool lock and returns the request's error.
func (tool *Tool) request(requestID uuid.UUID, input toolInput) error {
	tool.mu.Lock()
	defer tool.mu.Unlock()
	return tool.requestLocked(requestID, input)
}

func (tool *Tool) requestLocked(requestID uuid.UUID, input toolInput) error {
	tool.requestID, tool.reqErr = requestID, nil
	tool.fsm.Handle(input)
	return tool.reqErr
}

// Name returns the tool identifier.
func (tool *Tool) Name() string {
	return tool.name
}

// Config returns the configuration the tool was created from.
func (tool *Tool) Config() *config.ToolConfig {
	return tool.conf
}

// State returns the current state.
func (tool *Tool) State() ToolState {
	tool.mu.Lock()
	defer tool.mu.Unlock()
	return tool.fsm.State()
}

// CoordinateSystem returns the tool's node in the graph.
func (tool *Tool) CoordinateSystem() *referenceframe.CoordinateSystem {
	return tool.cs
}

// RequestConfigure validates the kind specific payload and freezes it. Only valid while Idle.
func (tool *Tool) RequestConfigure() error {
	return tool.request(uuid.New(), toolConfigureInput)
}

func (tool *Tool) configureProcessing() {
	payload := tool.conf.Payload
	if payload == nil {
		tool.reqErr = errors.Errorf("tool %q has no kind specific configuration", tool.name)
		tool.fsm.PushInput(toolConfigFailed)
		return
	}
	if err := payload.Validate(tool.name); err != nil {
		tool.reqErr = err
		tool.fsm.PushInput(toolConfigFailed)
		return
	}
	tool.payload = payload
	tool.fsm.PushInput(toolConfigSucceeded)
}

// Payload returns the frozen configuration. It is nil until the tool is configured.
func (tool *Tool) Payload() config.ToolPayload {
	tool.mu.Lock()
	defer tool.mu.Unlock()
	return tool.payload
}

// RequestAttachToTracker asks tr to attach this tool. The tracker emits the result.
func (tool *Tool) RequestAttachToTracker(ctx context.Context, tr *Tracker) error {
	if tr == nil {
		return errors.Wrapf(ErrToolNotAttached, "tool %q: no tracker to attach to", tool.name)
	}
	tool.mu.Lock()
	err := tool.requestLocked(uuid.New(), toolAttachInput)
	tool.mu.Unlock()
	if err != nil {
		return err
	}
	return tr.RequestAttachTool(ctx, tool)
}

// RequestDetachFromTracker asks the owning tracker to detach this tool.
func (tool *Tool) RequestDetachFromTracker(ctx context.Context) error {
	tool.mu.Lock()
	err := tool.requestLocked(uuid.New(), toolDetachInput)
	tr := tool.tracker
	tool.mu.Unlock()
	if err != nil {
		return err
	}
	return tr.RequestDetachTool(ctx, tool)
}

// Tracker returns the tracker this tool is attached to, or nil.
func (tool *Tool) Tracker() *Tracker {
	tool.mu.Lock()
	defer tool.mu.Unlock()
	return tool.tracker
}

// SetCalibrationTransform replaces the calibration transform, which maps the tool's clinical
// frame into its sensor frame.
func (tool *Tool) SetCalibrationTransform(tf transform.Transform) {
	tool.mu.Lock()
	defer tool.mu.Unlock()
	tool.calibration = tf
}

// CalibrationTransform returns the calibration transform.
func (tool *Tool) CalibrationTransform() transform.Transform {
	tool.mu.Lock()
	defer tool.mu.Unlock()
	return tool.calibration
}

// RawTransform returns the last raw pose. It is only meaningful while IsAvailable.
func (tool *Tool) RawTransform() transform.Transform {
	tool.mu.Lock()
	defer tool.mu.Unlock()
	return tool.raw
}

// CalibratedTransform returns raw ∘ calibration.
func (tool *Tool) CalibratedTransform() transform.Transform {
	tool.mu.Lock()
	defer tool.mu.Unlock()
	return transform.Compose(tool.raw, tool.calibration)
}

// IsAvailable reports whether the last polling tick saw the tool.
func (tool *Tool) IsAvailable() bool {
	tool.mu.Lock()
	defer tool.mu.Unlock()
	return tool.available
}

// ExportStateMachine writes the tool state machine as Graphviz DOT.
func (tool *Tool) ExportStateMachine(w io.Writer) error {
	tool.mu.Lock()
	defer tool.mu.Unlock()
	return tool.fsm.ExportDOT(w)
}

// The methods below are called by the owning tracker with its own lock held.

func (tool *Tool) attached(tr *Tracker, requestID uuid.UUID) error {
	tool.mu.Lock()
	defer tool.mu.Unlock()
	if err := tool.requestLocked(requestID, toolAttachedInput); err != nil {
		return err
	}
	if err := tool.cs.SetTransformAndParent(transform.Compose(tool.raw, tool.calibration), tr.cs); err != nil {
		//nolint:errcheck
		tool.requestLocked(requestID, toolDetachedInput)
		return err
	}
	tool.tracker = tr
	return nil
}

func (tool *Tool) detached(requestID uuid.UUID) error {
	tool.mu.Lock()
	defer tool.mu.Unlock()
	if err := tool.requestLocked(requestID, toolDetachedInput); err != nil {
		return err
	}
	tool.tracker = nil
	return tool.cs.DetachFromParent()
}

func (tool *Tool) clearAvailability() {
	tool.available = false
}

func (tool *Tool) reportAvailable() {
	tool.emit(events.ToolAvailable, "")
}

func (tool *Tool) reportNotAvailable() {
	tool.emit(events.ToolNotAvailable, "")
}

func (tool *Tool) trackingStopped(requestID uuid.UUID) {
	tool.mu.Lock()
	defer tool.mu.Unlock()
	//nolint:errcheck
	tool.requestLocked(requestID, toolTrackingStoppedInput)
}

// updateRaw records this tick's sample. Availability events fire only when availability
// changes.
func (tool *Tool) updateRaw(requestID uuid.UUID, raw transform.Transform, visible bool) {
	tool.mu.Lock()
	defer tool.mu.Unlock()
	if visible {
		tool.raw = raw
	}
	tool.available = visible
	input := toolNotAvailableInput
	if visible {
		input = toolAvailableInput
	}
	//nolint:errcheck
	tool.requestLocked(requestID, input)
}

// publish writes the tool's edge into the graph. With a nil reference the tool hangs below
// parent with raw ∘ calibration; otherwise it hangs below the reference's node with
// inverse(referenceCalibrated) ∘ raw ∘ calibration.
func (tool *Tool) publish(parent *referenceframe.CoordinateSystem, referenceCalibrated *transform.Transform) error {
	tool.mu.Lock()
	defer tool.mu.Unlock()
	toParent := transform.Compose(tool.raw, tool.calibration)
	if referenceCalibrated != nil {
		toParent = transform.Compose(referenceCalibrated.Inverse(), toParent)
	}
	return tool.cs.SetTransformAndParent(toParent, parent)
}
