package referenceframe

import "github.com/pkg/errors"

var (
	// ErrDisconnected is returned when two coordinate systems share no ancestor.
	ErrDisconnected = errors.New("coordinate systems are not connected")
	// ErrCycle is returned when a parent assignment would make the graph cyclic.
	ErrCycle = errors.New("parent assignment would create a cycle")
	// ErrUnknownNode is returned for handles that do not name a live node.
	ErrUnknownNode = errors.New("unknown coordinate system")
	// ErrForeignNode is returned when a handle from another graph is used.
	ErrForeignNode = errors.New("coordinate system belongs to a different graph")
)

// NewDisconnectedError reports that no path links src to dst.
func NewDisconnectedError(src, dst string) error {
	return errors.Wrapf(ErrDisconnected, "no path from %q to %q", src, dst)
}

// NewCycleError reports that making parent the parent of child would close a loop.
func NewCycleError(child, parent string) error {
	return errors.Wrapf(ErrCycle, "%q is a descendant of %q", parent, child)
}
