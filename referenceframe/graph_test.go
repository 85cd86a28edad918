package referenceframe

import (
	"math"
	"testing"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/golang/geo/r3"
	"github.com/pkg/errors"
	"go.viam.com/test"

	"go.igtrack.org/tracking/spatialmath"
	"go.igtrack.org/tracking/transform"
)

func withMockClock(t *testing.T) *clock.Mock {
	t.Helper()
	mock := clock.NewMock()
	mock.Set(time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC))
	t.Cleanup(transform.SetClock(mock))
	return mock
}

// buildTree returns world <- tracker <- {reference <- tool, probe} and a detached "image" node.
func buildTree(t *testing.T) (*Graph, map[string]*CoordinateSystem) {
	t.Helper()
	g := NewGraph()
	nodes := map[string]*CoordinateSystem{}
	for _, name := range []string{"world", "tracker", "reference", "tool", "probe", "image"} {
		nodes[name] = g.NewCoordinateSystem(name)
	}
	attach := func(child, parent string, tf transform.Transform) {
		test.That(t, nodes[child].SetTransformAndParent(tf, nodes[parent]), test.ShouldBeNil)
	}
	attach("tracker", "world", transform.NewTransform(
		r3.Vector{X: 100, Y: 0, Z: 20}, spatialmath.NewVersor(r3.Vector{Z: 1}, math.Pi/2), 0.1, 1000))
	attach("reference", "tracker", transform.NewTransform(
		r3.Vector{X: -5, Y: 12, Z: 300}, spatialmath.NewVersor(r3.Vector{X: 1, Y: 1}, 0.7), 0.2, 500))
	attach("tool", "reference", transform.NewTransform(
		r3.Vector{X: 1, Y: 2, Z: 3}, spatialmath.NewVersor(r3.Vector{Y: 1}, -1.1), 0.3, 2000))
	attach("probe", "tracker", transform.NewTransform(
		r3.Vector{X: 40, Y: -7, Z: 250}, spatialmath.NewVersor(r3.Vector{X: 0.2, Z: 1}, 2.5), 0.4, 800))
	return g, nodes
}

func TestNewCoordinateSystem(t *testing.T) {
	withMockClock(t)
	g := NewGraph()
	cs := g.NewCoordinateSystem("tracker")
	test.That(t, cs.Name(), test.ShouldEqual, "tracker")
	_, ok := cs.Parent()
	test.That(t, ok, test.ShouldBeFalse)
	_, ok = cs.TransformToParent()
	test.That(t, ok, test.ShouldBeFalse)

	self, err := cs.ComputeTransformTo(cs)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, self.IsIdentity(1e-12), test.ShouldBeTrue)
	test.That(t, self.IsValidNow(), test.ShouldBeTrue)
}

func TestComputeTransformPath(t *testing.T) {
	withMockClock(t)
	_, nodes := buildTree(t)

	toolToRef, _ := nodes["tool"].TransformToParent()
	refToTracker, _ := nodes["reference"].TransformToParent()
	probeToTracker, _ := nodes["probe"].TransformToParent()

	got, err := nodes["tool"].ComputeTransformTo(nodes["probe"])
	test.That(t, err, test.ShouldBeNil)
	expected := transform.Compose(probeToTracker.Inverse(), transform.Compose(refToTracker, toolToRef))
	test.That(t, got.AlmostEqual(expected, 1e-9), test.ShouldBeTrue)

	// error accumulates over the three edges on the path
	test.That(t, got.Error(), test.ShouldAlmostEqual, 0.9, 1e-12)

	// window is the overlap of every edge; the reference edge expires first
	test.That(t, got.StartTime(), test.ShouldEqual, refToTracker.StartTime())
	test.That(t, got.ExpirationTime(), test.ShouldEqual, refToTracker.ExpirationTime())

	p := r3.Vector{X: 3, Y: -4, Z: 5}
	toWorld, err := nodes["tool"].ComputeTransformTo(nodes["world"])
	test.That(t, err, test.ShouldBeNil)
	probeToWorld, err := nodes["probe"].ComputeTransformTo(nodes["world"])
	test.That(t, err, test.ShouldBeNil)
	test.That(t, spatialmath.R3VectorAlmostEqual(
		probeToWorld.TransformPoint(got.TransformPoint(p)), toWorld.TransformPoint(p), 1e-9), test.ShouldBeTrue)
}

func TestComputeTransformDeterminism(t *testing.T) {
	withMockClock(t)
	_, nodes := buildTree(t)
	names := []string{"world", "tracker", "reference", "tool", "probe"}
	for _, a := range names {
		for _, b := range names {
			ab, err := nodes[a].ComputeTransformTo(nodes[b])
			test.That(t, err, test.ShouldBeNil)
			ba, err := nodes[b].ComputeTransformTo(nodes[a])
			test.That(t, err, test.ShouldBeNil)
			test.That(t, transform.Compose(ab, ba).IsIdentity(1e-9), test.ShouldBeTrue)
			test.That(t, transform.Compose(ba, ab).IsIdentity(1e-9), test.ShouldBeTrue)
		}
	}
}

func TestComputeTransformExpired(t *testing.T) {
	mock := withMockClock(t)
	_, nodes := buildTree(t)
	mock.Add(600 * time.Millisecond)

	got, err := nodes["tool"].ComputeTransformTo(nodes["tracker"])
	test.That(t, err, test.ShouldBeNil)
	test.That(t, got.IsValidNow(), test.ShouldBeFalse)

	got, err = nodes["probe"].ComputeTransformTo(nodes["tracker"])
	test.That(t, err, test.ShouldBeNil)
	test.That(t, got.IsValidNow(), test.ShouldBeTrue)
}

func TestDisconnected(t *testing.T) {
	withMockClock(t)
	_, nodes := buildTree(t)

	_, err := nodes["tool"].ComputeTransformTo(nodes["image"])
	test.That(t, errors.Is(err, ErrDisconnected), test.ShouldBeTrue)
	test.That(t, err.Error(), test.ShouldContainSubstring, `"tool"`)

	test.That(t, nodes["reference"].DetachFromParent(), test.ShouldBeNil)
	_, err = nodes["tool"].ComputeTransformTo(nodes["probe"])
	test.That(t, errors.Is(err, ErrDisconnected), test.ShouldBeTrue)

	got, err := nodes["tool"].ComputeTransformTo(nodes["reference"])
	test.That(t, err, test.ShouldBeNil)
	toolToRef, _ := nodes["tool"].TransformToParent()
	test.That(t, got.AlmostEqual(toolToRef, 1e-12), test.ShouldBeTrue)
}

func TestCycleRejected(t *testing.T) {
	withMockClock(t)
	g, nodes := buildTree(t)

	err := nodes["tracker"].SetTransformAndParent(transform.Identity(), nodes["tool"])
	test.That(t, errors.Is(err, ErrCycle), test.ShouldBeTrue)
	parent, ok := nodes["tracker"].Parent()
	test.That(t, ok, test.ShouldBeTrue)
	test.That(t, parent.Name(), test.ShouldEqual, "world")

	err = nodes["tool"].SetTransformAndParent(transform.Identity(), nodes["tool"])
	test.That(t, errors.Is(err, ErrCycle), test.ShouldBeTrue)

	other := NewGraph().NewCoordinateSystem("elsewhere")
	err = nodes["tool"].SetTransformAndParent(transform.Identity(), other)
	test.That(t, errors.Is(err, ErrForeignNode), test.ShouldBeTrue)
	_, err = nodes["tool"].ComputeTransformTo(other)
	test.That(t, errors.Is(err, ErrForeignNode), test.ShouldBeTrue)

	trace, err := nodes["tool"].Traceback()
	test.That(t, err, test.ShouldBeNil)
	test.That(t, trace, test.ShouldResemble, []string{"tool", "reference", "tracker", "world"})
	test.That(t, g.Names(), test.ShouldResemble, []string{"world", "tracker", "reference", "tool", "probe", "image"})
}

func TestReparent(t *testing.T) {
	withMockClock(t)
	g, nodes := buildTree(t)

	tf := transform.NewTransform(r3.Vector{X: 9}, spatialmath.IdentityQuat, 0.5, 1000)
	test.That(t, nodes["tool"].SetTransformAndParent(tf, nodes["tracker"]), test.ShouldBeNil)
	test.That(t, nodes["tool"].IsChildOf(nodes["tracker"]), test.ShouldBeTrue)
	test.That(t, nodes["tool"].IsChildOf(nodes["reference"]), test.ShouldBeFalse)
	test.That(t, g.Children(nodes["reference"].ID()), test.ShouldBeEmpty)
	test.That(t, len(g.Children(nodes["tracker"].ID())), test.ShouldEqual, 3)

	test.That(t, g.Remove(nodes["tracker"].ID()), test.ShouldBeNil)
	_, ok := nodes["probe"].Parent()
	test.That(t, ok, test.ShouldBeFalse)
	test.That(t, errors.Is(g.Remove(nodes["tracker"].ID()), ErrUnknownNode), test.ShouldBeTrue)
	_, err := g.ComputeTransform(nodes["tracker"].ID(), nodes["world"].ID())
	test.That(t, errors.Is(err, ErrUnknownNode), test.ShouldBeTrue)
}
