package spatialmath

import (
	"math"
	"testing"

	"github.com/go-gl/mathgl/mgl64"
	"github.com/golang/geo/r3"
	"go.viam.com/test"
	"gonum.org/v1/gonum/num/quat"
)

func TestAxisAngleRoundTrip(t *testing.T) {
	aa := NewR4AAFromAxis(r3.Vector{X: 0, Y: 0, Z: 3}, math.Pi/3)
	q := aa.ToQuat()
	test.That(t, quat.Abs(q), test.ShouldAlmostEqual, 1.0)

	back := QuatToR4AA(q)
	test.That(t, back.Theta, test.ShouldAlmostEqual, math.Pi/3)
	test.That(t, back.RZ, test.ShouldAlmostEqual, 1.0)

	zero := NewR4AAFromAxis(r3.Vector{}, 1)
	zero.Normalize()
	test.That(t, zero.RZ, test.ShouldEqual, 1.0)
}

func TestRotateVector(t *testing.T) {
	q := NewVersor(r3.Vector{Z: 1}, math.Pi/2)
	v := RotateVector(q, r3.Vector{X: 1})
	test.That(t, R3VectorAlmostEqual(v, r3.Vector{Y: 1}, 1e-12), test.ShouldBeTrue)

	test.That(t, QuaternionAlmostEqual(q, Flip(q), 1e-12), test.ShouldBeTrue)
	test.That(t, QuaternionAlmostEqual(q, IdentityQuat, 1e-6), test.ShouldBeFalse)
	test.That(t, Normalize(quat.Number{}), test.ShouldResemble, IdentityQuat)
}

func TestRotationMatrixRoundTrip(t *testing.T) {
	for _, tc := range []struct {
		axis  r3.Vector
		angle float64
	}{
		{r3.Vector{X: 1}, 0.3},
		{r3.Vector{X: 1, Y: 2, Z: 3}, 2.9},
		{r3.Vector{Y: 1}, math.Pi},
		{r3.Vector{Z: -1}, math.Pi - 1e-3},
		{r3.Vector{X: 1}, 0},
	} {
		q := NewVersor(tc.axis, tc.angle)
		m := QuatToRotationMatrix(q)
		test.That(t, m.Det(), test.ShouldAlmostEqual, 1.0)
		test.That(t, QuaternionAlmostEqual(RotationMatrixToQuat(m), q, 1e-9), test.ShouldBeTrue)
	}
}

func TestOrthonormalizeRotation(t *testing.T) {
	m := QuatToRotationMatrix(NewVersor(r3.Vector{X: 1, Y: 1}, 0.7))
	noisy := m
	noisy.Set(0, 0, m.At(0, 0)+1e-4)
	noisy.Set(2, 1, m.At(2, 1)-1e-4)

	fixed, err := OrthonormalizeRotation(noisy)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, fixed.Det(), test.ShouldAlmostEqual, 1.0, 1e-9)
	test.That(t, fixed.ApproxEqualThreshold(m, 1e-3), test.ShouldBeTrue)

	mirror := mgl64.Ident3()
	mirror.Set(0, 0, -1)
	_, err = OrthonormalizeRotation(mirror)
	test.That(t, err, test.ShouldNotBeNil)
}

func TestDualQuaternionComposition(t *testing.T) {
	a := NewDualQuaternionFromRotationTranslation(NewVersor(r3.Vector{X: 1}, math.Pi), r3.Vector{X: 4, Y: 2, Z: 6})
	p := a.TransformPoint(r3.Vector{X: 3, Y: 4, Z: 5})
	test.That(t, R3VectorAlmostEqual(p, r3.Vector{X: 7, Y: -2, Z: 1}, 1e-9), test.ShouldBeTrue)

	b := NewDualQuaternionFromRotationTranslation(NewVersor(r3.Vector{Z: 1}, 0.5), r3.Vector{Y: -3})
	ab := a.Compose(b)
	direct := a.TransformPoint(b.TransformPoint(r3.Vector{X: 1, Y: 1, Z: 1}))
	test.That(t, R3VectorAlmostEqual(ab.TransformPoint(r3.Vector{X: 1, Y: 1, Z: 1}), direct, 1e-9), test.ShouldBeTrue)

	ident := ab.Compose(ab.Invert())
	test.That(t, QuaternionAlmostEqual(ident.Rotation(), IdentityQuat, 1e-9), test.ShouldBeTrue)
	test.That(t, R3VectorAlmostEqual(ident.Translation(), r3.Vector{}, 1e-9), test.ShouldBeTrue)

	test.That(t, NewDualQuaternion().Translation(), test.ShouldResemble, r3.Vector{})
}
