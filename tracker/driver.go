package tracker

import (
	"context"

	"github.com/golang/geo/r3"
	"gonum.org/v1/gonum/num/quat"

	"go.igtrack.org/tracking/config"
)

// Reading is one raw pose reported by the hardware for one tool, in tracker coordinates.
type Reading struct {
	Translation r3.Vector
	Rotation    quat.Number
	// Error is the hardware's RMS estimate for this sample.
	Error   float64
	Visible bool
}

// Frame maps tool names to the readings of one acquisition. A tool missing from the frame was
// not seen.
type Frame map[string]Reading

// ToolSpec is what a driver is told about a tool it must accept.
type ToolSpec struct {
	Name    string
	Payload config.ToolPayload
}

// Driver is the vendor specific side of a tracker. Each call returns nil on success or an error
// describing the failure; the tracker turns that into its Succeeded or Failed input. Every call
// receives a context bounded by the tracker's hardware timeout.
type Driver interface {
	Open(ctx context.Context) error
	Close(ctx context.Context) error
	StartTracking(ctx context.Context) error
	StopTracking(ctx context.Context) error
	// UpdateStatus returns the newest reading of each tool.
	UpdateStatus(ctx context.Context) (Frame, error)
	// VerifyToolInformation rejects tools the hardware cannot track. It must not have side
	// effects when it fails.
	VerifyToolInformation(ctx context.Context, tool ToolSpec) error
}

// ToolRegistrar is implemented by drivers that keep per tool acquisition state. AttachTool runs
// after a tool passes verification and DetachTool after the tracker lets go of it. Close forgets
// every tool.
type ToolRegistrar interface {
	AttachTool(ctx context.Context, tool ToolSpec) error
	DetachTool(ctx context.Context, name string) error
}

// ThreadedDriver is a driver whose acquisition runs on its own goroutine. While tracking, the
// tracker calls AcquireFrame in a loop and hands frames to polling ticks through a FrameBuffer;
// UpdateStatus is not called.
type ThreadedDriver interface {
	Driver
	// AcquireFrame blocks until the hardware produces a frame or ctx is done.
	AcquireFrame(ctx context.Context) (Frame, error)
}
