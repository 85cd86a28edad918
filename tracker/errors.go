package tracker

import "github.com/pkg/errors"

var (
	// ErrInvalidRequest is returned for requests that have no transition in the current state.
	ErrInvalidRequest = errors.New("invalid request")
	// ErrHardwareTimeout is returned when a driver call outlives the hardware timeout.
	ErrHardwareTimeout = errors.New("tracker hardware did not answer in time")
	// ErrToolNotConfigured is returned when attaching a tool that was never configured.
	ErrToolNotConfigured = errors.New("tool is not configured")
	// ErrDuplicateTool is returned when a tool with the same name is already attached.
	ErrDuplicateTool = errors.New("a tool with this name is already attached")
	// ErrToolNotAttached is returned for tools that are not attached to this tracker.
	ErrToolNotAttached = errors.New("tool is not attached to this tracker")
	// ErrIncompatibleTool is returned when a tool's kind does not match the tracker's.
	ErrIncompatibleTool = errors.New("tool is not compatible with this tracker")
	// ErrMissingToolFile is returned when an SROM or marker file does not exist.
	ErrMissingToolFile = errors.New("tool description file not found")
	// ErrFrequencyOutOfRange is returned for frequencies above the manufacturer maximum.
	ErrFrequencyOutOfRange = errors.New("frequency out of range")
)

func newInvalidRequestError(machine string, state, input interface{}) error {
	return errors.Wrapf(ErrInvalidRequest, "%s cannot handle %v while %v", machine, input, state)
}
