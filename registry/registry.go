// Package registry maps tracker kinds to the drivers that talk to them.
package registry

import (
	"context"
	"sort"
	"sync"

	"github.com/pkg/errors"
	"github.com/samber/lo"

	"go.igtrack.org/tracking/config"
	"go.igtrack.org/tracking/logging"
	"go.igtrack.org/tracking/serial"
	"go.igtrack.org/tracking/tracker"
)

// A CreateDriver creates a driver for conf. port is the opened serial line for kinds that need
// one and nil otherwise. The controller keeps ownership of port and closes it after the
// tracker is closed, so drivers must not close it.
type CreateDriver func(ctx context.Context, conf *config.TrackerConfig, port serial.Port, logger logging.Logger) (tracker.Driver, error)

// DriverRegistration describes how to build a driver for a tracker kind.
type DriverRegistration struct {
	Constructor CreateDriver
}

var (
	mu             sync.RWMutex
	driverRegistry = map[config.Kind]DriverRegistration{}
)

// RegisterDriver registers a driver for kind. It panics on a missing constructor or a second
// registration for the same kind.
func RegisterDriver(kind config.Kind, reg DriverRegistration) {
	if reg.Constructor == nil {
		panic(errors.Errorf("cannot register a nil constructor for tracker kind %s", kind))
	}
	mu.Lock()
	defer mu.Unlock()
	if _, old := driverRegistry[kind]; old {
		panic(errors.Errorf("trying to register two drivers for tracker kind %s", kind))
	}
	driverRegistry[kind] = reg
}

// DeregisterDriver removes the registration for kind. It is meant for tests.
func DeregisterDriver(kind config.Kind) {
	mu.Lock()
	defer mu.Unlock()
	delete(driverRegistry, kind)
}

// LookupDriver looks up the driver registration for kind.
func LookupDriver(kind config.Kind) (DriverRegistration, bool) {
	mu.RLock()
	defer mu.RUnlock()
	reg, ok := driverRegistry[kind]
	return reg, ok
}

// RegisteredKinds returns the kinds with a driver, sorted.
func RegisteredKinds() []config.Kind {
	mu.RLock()
	defer mu.RUnlock()
	kinds := lo.Keys(driverRegistry)
	sort.Slice(kinds, func(i, j int) bool { return kinds[i] < kinds[j] })
	return kinds
}
