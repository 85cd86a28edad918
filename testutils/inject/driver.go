package inject

import (
	"context"
	"sync"

	"go.igtrack.org/tracking/tracker"
)

// Driver is an injected tracker driver. Calls without an injected func go to the embedded driver,
// or succeed when there is none. Every call is counted.
type Driver struct {
	tracker.Driver
	OpenFunc                  func(ctx context.Context) error
	CloseFunc                 func(ctx context.Context) error
	StartTrackingFunc         func(ctx context.Context) error
	StopTrackingFunc          func(ctx context.Context) error
	UpdateStatusFunc          func(ctx context.Context) (tracker.Frame, error)
	VerifyToolInformationFunc func(ctx context.Context, tool tracker.ToolSpec) error

	mu    sync.Mutex
	calls map[string]int
}

func (d *Driver) record(name string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.calls == nil {
		d.calls = map[string]int{}
	}
	d.calls[name]++
}

// CallCount returns how many times the named method ran.
func (d *Driver) CallCount(name string) int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.calls[name]
}

// TotalCalls returns how many driver calls ran in total.
func (d *Driver) TotalCalls() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	n := 0
	for _, c := range d.calls {
		n += c
	}
	return n
}

// Open calls the injected Open or the real version.
func (d *Driver) Open(ctx context.Context) error {
	d.record("Open")
	if d.OpenFunc == nil {
		if d.Driver == nil {
			return nil
		}
		return d.Driver.Open(ctx)
	}
	return d.OpenFunc(ctx)
}

// Close calls the injected Close or the real version.
func (d *Driver) Close(ctx context.Context) error {
	d.record("Close")
	if d.CloseFunc == nil {
		if d.Driver == nil {
			return nil
		}
		return d.Driver.Close(ctx)
	}
	return d.CloseFunc(ctx)
}

// StartTracking calls the injected StartTracking or the real version.
func (d *Driver) StartTracking(ctx context.Context) error {
	d.record("StartTracking")
	if d.StartTrackingFunc == nil {
		if d.Driver == nil {
			return nil
		}
		return d.Driver.StartTracking(ctx)
	}
	return d.StartTrackingFunc(ctx)
}

// StopTracking calls the injected StopTracking or the real version.
func (d *Driver) StopTracking(ctx context.Context) error {
	d.record("StopTracking")
	if d.StopTrackingFunc == nil {
		if d.Driver == nil {
			return nil
		}
		return d.Driver.StopTracking(ctx)
	}
	return d.StopTrackingFunc(ctx)
}

// UpdateStatus calls the injected UpdateStatus or the real version.
func (d *Driver) UpdateStatus(ctx context.Context) (tracker.Frame, error) {
	d.record("UpdateStatus")
	if d.UpdateStatusFunc == nil {
		if d.Driver == nil {
			return tracker.Frame{}, nil
		}
		return d.Driver.UpdateStatus(ctx)
	}
	return d.UpdateStatusFunc(ctx)
}

// VerifyToolInformation calls the injected VerifyToolInformation or the real version.
func (d *Driver) VerifyToolInformation(ctx context.Context, tool tracker.ToolSpec) error {
	d.record("VerifyToolInformation")
	if d.VerifyToolInformationFunc == nil {
		if d.Driver == nil {
			return nil
		}
		return d.Driver.VerifyToolInformation(ctx, tool)
	}
	return d.VerifyToolInformationFunc(ctx, tool)
}
