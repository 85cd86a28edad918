package registry

import (
	"context"
	"testing"

	"go.viam.com/test"

	"go.igtrack.org/tracking/config"
	"go.igtrack.org/tracking/logging"
	"go.igtrack.org/tracking/serial"
	"go.igtrack.org/tracking/testutils/inject"
	"go.igtrack.org/tracking/tracker"
)

func TestRegistry(t *testing.T) {
	df := func(ctx context.Context, conf *config.TrackerConfig, port serial.Port, logger logging.Logger) (tracker.Driver, error) {
		return &inject.Driver{}, nil
	}
	kind := config.Kind("x")
	t.Cleanup(func() { DeregisterDriver(kind) })

	// test panics
	test.That(t, func() { RegisterDriver(kind, DriverRegistration{}) }, test.ShouldPanic)

	_, ok := LookupDriver(kind)
	test.That(t, ok, test.ShouldBeFalse)

	RegisterDriver(kind, DriverRegistration{Constructor: df})
	test.That(t, func() { RegisterDriver(kind, DriverRegistration{Constructor: df}) }, test.ShouldPanic)

	reg, ok := LookupDriver(kind)
	test.That(t, ok, test.ShouldBeTrue)
	test.That(t, reg.Constructor, test.ShouldNotBeNil)
	test.That(t, RegisteredKinds(), test.ShouldContain, kind)

	d, err := reg.Constructor(context.Background(), &config.TrackerConfig{Name: "t"}, nil, logging.NewTestLogger(t))
	test.That(t, err, test.ShouldBeNil)
	test.That(t, d, test.ShouldNotBeNil)

	DeregisterDriver(kind)
	test.That(t, RegisteredKinds(), test.ShouldNotContain, kind)
}
