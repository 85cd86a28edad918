package transform

import (
	"math"

	"github.com/go-gl/mathgl/mgl64"
	"github.com/golang/geo/r2"
	"github.com/golang/geo/r3"
)

// PerspectiveTransform is a pinhole camera model: a rigid extrinsic pose taking world points into
// the camera frame followed by an upper triangular intrinsic projection.
type PerspectiveTransform struct {
	extrinsic Transform
	intrinsic mgl64.Mat3
	err       float64
	stamp     TimeStamp
}

// ValidateIntrinsic checks that k is upper triangular with a non-zero diagonal.
func ValidateIntrinsic(k mgl64.Mat3) error {
	if k.At(1, 0) != 0 || k.At(2, 0) != 0 || k.At(2, 1) != 0 {
		return ErrNotUpperTriangular
	}
	if k.At(0, 0) == 0 || k.At(1, 1) == 0 || k.At(2, 2) == 0 {
		return ErrNotUpperTriangular
	}
	return nil
}

// SetTransform overwrites both parts and restamps the transform. The extrinsic part keeps its
// own stamp for independent inspection.
func (pt *PerspectiveTransform) SetTransform(extrinsic Transform, intrinsic mgl64.Mat3, errValue, millisecondsToExpire float64) error {
	if err := ValidateIntrinsic(intrinsic); err != nil {
		return err
	}
	pt.extrinsic = extrinsic
	pt.intrinsic = intrinsic
	pt.err = clampError(errValue)
	pt.stamp.SetStartTimeNowAndExpireAfter(millisecondsToExpire)
	return nil
}

// Extrinsic returns the rigid camera pose.
func (pt PerspectiveTransform) Extrinsic() Transform {
	return pt.extrinsic
}

// Intrinsic returns the projection matrix.
func (pt PerspectiveTransform) Intrinsic() mgl64.Mat3 {
	return pt.intrinsic
}

// Error returns the uncertainty estimate.
func (pt PerspectiveTransform) Error() float64 {
	return pt.err
}

// TimeStamp returns the validity window.
func (pt PerspectiveTransform) TimeStamp() TimeStamp {
	return pt.stamp
}

// ExportExtrinsic writes [R|t] into m.
func (pt PerspectiveTransform) ExportExtrinsic(m *mgl64.Mat3x4) {
	var full mgl64.Mat4
	pt.extrinsic.ExportTransform(&full)
	for r := 0; r < 3; r++ {
		for c := 0; c < 4; c++ {
			m.Set(r, c, full.At(r, c))
		}
	}
}

// ExportIntrinsic writes the intrinsic matrix into m.
func (pt PerspectiveTransform) ExportIntrinsic(m *mgl64.Mat3) {
	*m = pt.intrinsic
}

// ExportProjection writes the full 3x4 projection K*[R|t] into m.
func (pt PerspectiveTransform) ExportProjection(m *mgl64.Mat3x4) {
	var ext mgl64.Mat3x4
	pt.ExportExtrinsic(&ext)
	*m = pt.intrinsic.Mul3x4(ext)
}

// Project maps a world point to pixel coordinates. ok is false for points at or behind the
// camera plane.
func (pt PerspectiveTransform) Project(p r3.Vector) (pixel r2.Point, ok bool) {
	c := pt.extrinsic.TransformPoint(p)
	if c.Z <= 0 || math.IsNaN(c.Z) {
		return r2.Point{}, false
	}
	h := pt.intrinsic.Mul3x1(mgl64.Vec3{c.X, c.Y, c.Z})
	return r2.Point{X: h[0] / h[2], Y: h[1] / h[2]}, true
}

// ComposeWithRigid returns the camera model seeing points expressed in the frame rigid maps
// from: the extrinsic becomes extrinsic ∘ rigid. Errors add and windows overlap.
func ComposeWithRigid(pt PerspectiveTransform, rigid Transform) PerspectiveTransform {
	return PerspectiveTransform{
		extrinsic: Compose(pt.extrinsic, rigid),
		intrinsic: pt.intrinsic,
		err:       pt.err + rigid.Error(),
		stamp:     ComputeOverlap(pt.stamp, rigid.TimeStamp()),
	}
}
