package transform

import (
	"math"
	"testing"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/go-gl/mathgl/mgl64"
	"github.com/golang/geo/r3"
	"go.viam.com/test"

	"go.igtrack.org/tracking/spatialmath"
)

func withMockClock(t *testing.T) *clock.Mock {
	t.Helper()
	mock := clock.NewMock()
	mock.Set(time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC))
	t.Cleanup(SetClock(mock))
	return mock
}

func TestTimeStampValidity(t *testing.T) {
	mock := withMockClock(t)

	var fresh TimeStamp
	test.That(t, fresh.IsValidNow(), test.ShouldBeFalse)
	test.That(t, fresh.IsValidAtTime(0), test.ShouldBeFalse)

	var ts TimeStamp
	ts.SetStartTimeNowAndExpireAfter(2000)
	t0 := ts.StartTime()
	test.That(t, t0, test.ShouldEqual, NowMillis())
	test.That(t, ts.ExpirationTime(), test.ShouldEqual, t0+2000)
	test.That(t, ts.IsValidAtTime(t0-1000), test.ShouldBeFalse)
	test.That(t, ts.IsValidAtTime(t0), test.ShouldBeTrue)
	test.That(t, ts.IsValidAtTime(t0+1000), test.ShouldBeTrue)
	test.That(t, ts.IsValidAtTime(t0+2000), test.ShouldBeTrue)
	test.That(t, ts.IsValidAtTime(t0+2001), test.ShouldBeFalse)

	test.That(t, ts.IsValidNow(), test.ShouldBeTrue)
	mock.Add(1500 * time.Millisecond)
	test.That(t, ts.IsValidNow(), test.ShouldBeTrue)
	mock.Add(600 * time.Millisecond)
	test.That(t, ts.IsValidNow(), test.ShouldBeFalse)

	ts.SetStartTimeNowAndExpireAfter(-5)
	test.That(t, ts.ExpirationTime(), test.ShouldEqual, ts.StartTime())

	ts.SetStartTimeNowAndExpireAfter(LongestPossibleTime)
	test.That(t, ts.ExpirationTime(), test.ShouldEqual, LongestPossibleTime)
	test.That(t, ts.String(), test.ShouldContainSubstring, "forever")
}

func TestComputeOverlap(t *testing.T) {
	a := NewTimeStamp(100, 200)
	b := NewTimeStamp(150, 300)
	overlap := ComputeOverlap(a, b)
	test.That(t, overlap.StartTime(), test.ShouldEqual, 150.0)
	test.That(t, overlap.ExpirationTime(), test.ShouldEqual, 200.0)
	test.That(t, ComputeOverlap(b, a), test.ShouldResemble, overlap)

	disjoint := ComputeOverlap(a, NewTimeStamp(250, 300))
	test.That(t, disjoint.IsZero(), test.ShouldBeTrue)
	for _, at := range []float64{-1, 0, 100, 200, 250, 1e12} {
		test.That(t, disjoint.IsValidAtTime(at), test.ShouldBeFalse)
	}

	test.That(t, ComputeOverlap(a, TimeStamp{}).IsZero(), test.ShouldBeTrue)
	test.That(t, NewTimeStamp(5, 1).IsZero(), test.ShouldBeTrue)

	touching := ComputeOverlap(a, NewTimeStamp(200, 400))
	test.That(t, touching.IsValidAtTime(200), test.ShouldBeTrue)
}

func TestErrorFloor(t *testing.T) {
	withMockClock(t)

	var never Transform
	test.That(t, never.Error(), test.ShouldEqual, 0.0)
	test.That(t, never.IsValidNow(), test.ShouldBeFalse)

	tf := NewTransform(r3.Vector{X: 1}, spatialmath.IdentityQuat, 0, 100)
	test.That(t, tf.Error(), test.ShouldEqual, ErrorFloor)
	tf.SetTranslation(r3.Vector{Y: 2}, -3, 100)
	test.That(t, tf.Error(), test.ShouldEqual, ErrorFloor)
	test.That(t, tf.Translation(), test.ShouldResemble, r3.Vector{Y: 2})
	tf.SetRotation(spatialmath.NewVersor(r3.Vector{Z: 1}, 1), math.NaN(), 100)
	test.That(t, tf.Error(), test.ShouldEqual, ErrorFloor)
	test.That(t, tf.Translation(), test.ShouldResemble, r3.Vector{Y: 2})
}

func TestCompose(t *testing.T) {
	mock := withMockClock(t)

	left := NewTransform(r3.Vector{X: 4, Y: 2, Z: 6}, spatialmath.NewVersor(r3.Vector{X: 1}, math.Pi), 0.5, 1000)
	mock.Add(200 * time.Millisecond)
	right := NewTransform(r3.Vector{X: 3, Y: 4, Z: 5}, spatialmath.IdentityQuat, 0.25, 1000)

	composed := Compose(left, right)
	test.That(t, composed.Error(), test.ShouldEqual, 0.75)
	test.That(t, composed.TimeStamp(), test.ShouldResemble, ComputeOverlap(left.TimeStamp(), right.TimeStamp()))
	test.That(t, composed.StartTime(), test.ShouldEqual, right.StartTime())
	test.That(t, composed.ExpirationTime(), test.ShouldEqual, left.ExpirationTime())
	test.That(t, spatialmath.R3VectorAlmostEqual(composed.Translation(), r3.Vector{X: 7, Y: -2, Z: 1}, 1e-9), test.ShouldBeTrue)

	p := r3.Vector{X: -1, Y: 0.5, Z: 2}
	test.That(t,
		spatialmath.R3VectorAlmostEqual(composed.TransformPoint(p), left.TransformPoint(right.TransformPoint(p)), 1e-9),
		test.ShouldBeTrue)

	mock.Add(2 * time.Second)
	late := NewTransform(r3.Vector{}, spatialmath.IdentityQuat, 1, 100)
	stale := Compose(left, late)
	test.That(t, stale.TimeStamp().IsZero(), test.ShouldBeTrue)
	test.That(t, stale.IsValidNow(), test.ShouldBeFalse)
	test.That(t, stale.IsValidAtTime(late.StartTime()), test.ShouldBeFalse)
	test.That(t, stale.Error(), test.ShouldEqual, 1.5)

	chain := ComposeAll(left, right, late)
	test.That(t, chain.AlmostEqual(Compose(Compose(left, right), late), 1e-9), test.ShouldBeTrue)
	test.That(t, ComposeAll().IsIdentity(0), test.ShouldBeTrue)
}

func TestInverse(t *testing.T) {
	withMockClock(t)

	tf := NewTransform(r3.Vector{X: 10, Y: -3, Z: 0.5}, spatialmath.NewVersor(r3.Vector{X: 1, Y: 2, Z: -1}, 1.2), 0.1, 500)
	inv := tf.Inverse()
	test.That(t, inv.Error(), test.ShouldEqual, tf.Error())
	test.That(t, inv.TimeStamp(), test.ShouldResemble, tf.TimeStamp())
	test.That(t, Compose(tf, inv).IsIdentity(1e-9), test.ShouldBeTrue)
	test.That(t, Compose(inv, tf).IsIdentity(1e-9), test.ShouldBeTrue)
}

func TestExportImportRoundTrip(t *testing.T) {
	withMockClock(t)

	for _, tc := range []struct {
		t    r3.Vector
		axis r3.Vector
		ang  float64
	}{
		{r3.Vector{}, r3.Vector{Z: 1}, 0},
		{r3.Vector{X: 1, Y: 2, Z: 3}, r3.Vector{X: 1}, math.Pi / 2},
		{r3.Vector{X: -100, Y: 40.5, Z: 7}, r3.Vector{X: 0.3, Y: -0.2, Z: 0.9}, 2.5},
		{r3.Vector{Z: 1e3}, r3.Vector{Y: 1}, math.Pi},
	} {
		tf := NewTransform(tc.t, spatialmath.NewVersor(tc.axis, tc.ang), 1, 100)
		var m mgl64.Mat4
		tf.ExportTransform(&m)
		test.That(t, m.Row(3), test.ShouldResemble, mgl64.Vec4{0, 0, 0, 1})

		var back Transform
		test.That(t, back.ImportTransform(m, 1, 100), test.ShouldBeNil)
		test.That(t, spatialmath.R3VectorAlmostEqual(back.Translation(), tc.t, 1e-8), test.ShouldBeTrue)
		test.That(t, spatialmath.QuaternionAlmostEqual(back.Rotation(), tf.Rotation(), 1e-8), test.ShouldBeTrue)
	}

	bad := mgl64.Ident4()
	bad.Set(3, 0, 1)
	var tf Transform
	test.That(t, tf.ImportTransform(bad, 1, 100), test.ShouldBeError)

	scaled := mgl64.Scale3D(2, 2, 2)
	test.That(t, tf.ImportTransform(scaled, 1, 100), test.ShouldNotBeNil)
}

func TestAffine(t *testing.T) {
	withMockClock(t)

	scale := mgl64.Diag3(mgl64.Vec3{2, 3, 4})
	af := NewAffineTransform(scale, r3.Vector{X: 1}, 0.2, 100)
	test.That(t, af.TransformPoint(r3.Vector{X: 1, Y: 1, Z: 1}), test.ShouldResemble, r3.Vector{X: 3, Y: 3, Z: 4})

	inv, err := af.Inverse()
	test.That(t, err, test.ShouldBeNil)
	round := ComposeAffine(inv, af)
	test.That(t, round.Matrix().ApproxEqualThreshold(mgl64.Ident3(), 1e-12), test.ShouldBeTrue)
	test.That(t, spatialmath.R3VectorAlmostEqual(round.Offset(), r3.Vector{}, 1e-12), test.ShouldBeTrue)
	test.That(t, round.Error(), test.ShouldAlmostEqual, 0.4)

	_, err = NewAffineTransform(mgl64.Mat3{}, r3.Vector{}, 0, 100).Inverse()
	test.That(t, err, test.ShouldEqual, ErrSingular)

	rigid := NewTransform(r3.Vector{Y: 5}, spatialmath.NewVersor(r3.Vector{Z: 1}, math.Pi/2), 0.1, 100)
	widened := AffineFromRigid(rigid)
	p := r3.Vector{X: 1, Y: 2, Z: 3}
	test.That(t, spatialmath.R3VectorAlmostEqual(widened.TransformPoint(p), rigid.TransformPoint(p), 1e-12), test.ShouldBeTrue)

	var m mgl64.Mat4
	widened.ExportTransform(&m)
	test.That(t, m.At(1, 3), test.ShouldEqual, 5.0)
	test.That(t, NewAffineTransform(scale, r3.Vector{}, 0, 100).Error(), test.ShouldEqual, ErrorFloor)
}

func TestPerspective(t *testing.T) {
	withMockClock(t)

	k := mgl64.Mat3{}
	k.Set(0, 0, 800)
	k.Set(0, 2, 320)
	k.Set(1, 1, 800)
	k.Set(1, 2, 240)
	k.Set(2, 2, 1)

	var pt PerspectiveTransform
	ext := NewTransform(r3.Vector{Z: 100}, spatialmath.IdentityQuat, 0.3, 1000)
	test.That(t, pt.SetTransform(ext, k, 0.1, 1000), test.ShouldBeNil)

	pixel, ok := pt.Project(r3.Vector{})
	test.That(t, ok, test.ShouldBeTrue)
	test.That(t, pixel.X, test.ShouldAlmostEqual, 320.0)
	test.That(t, pixel.Y, test.ShouldAlmostEqual, 240.0)

	pixel, ok = pt.Project(r3.Vector{X: 10, Y: -5})
	test.That(t, ok, test.ShouldBeTrue)
	test.That(t, pixel.X, test.ShouldAlmostEqual, 400.0)
	test.That(t, pixel.Y, test.ShouldAlmostEqual, 200.0)

	_, ok = pt.Project(r3.Vector{Z: -200})
	test.That(t, ok, test.ShouldBeFalse)

	var proj mgl64.Mat3x4
	pt.ExportProjection(&proj)
	test.That(t, proj.At(2, 3), test.ShouldEqual, 100.0)
	var intr mgl64.Mat3
	pt.ExportIntrinsic(&intr)
	test.That(t, intr, test.ShouldResemble, k)
	var extr mgl64.Mat3x4
	pt.ExportExtrinsic(&extr)
	test.That(t, extr.At(2, 3), test.ShouldEqual, 100.0)

	lower := k
	lower.Set(2, 0, 1)
	test.That(t, pt.SetTransform(ext, lower, 0.1, 1000), test.ShouldEqual, ErrNotUpperTriangular)

	shift := NewTransform(r3.Vector{X: 10}, spatialmath.IdentityQuat, 0.2, 1000)
	moved := ComposeWithRigid(pt, shift)
	test.That(t, moved.Error(), test.ShouldAlmostEqual, 0.3)
	pixel, ok = moved.Project(r3.Vector{Y: -5})
	test.That(t, ok, test.ShouldBeTrue)
	test.That(t, pixel.X, test.ShouldAlmostEqual, 400.0)
}
