package transform

import (
	"github.com/go-gl/mathgl/mgl64"
	"github.com/golang/geo/r3"
	"gonum.org/v1/gonum/mat"

	"go.igtrack.org/tracking/spatialmath"
)

// conditionLimit is the condition number past which an affine matrix is treated as singular.
const conditionLimit = 1e12

// AffineTransform maps p to matrix*p + offset.
type AffineTransform struct {
	matrix mgl64.Mat3
	offset r3.Vector
	err    float64
	stamp  TimeStamp
}

// NewAffineTransform returns an affine transform set to matrix and offset.
func NewAffineTransform(matrix mgl64.Mat3, offset r3.Vector, errValue, millisecondsToExpire float64) AffineTransform {
	var af AffineTransform
	af.SetMatrixAndOffset(matrix, offset, errValue, millisecondsToExpire)
	return af
}

// AffineFromRigid widens a rigid transform, keeping its error and validity window.
func AffineFromRigid(tf Transform) AffineTransform {
	return AffineTransform{
		matrix: spatialmath.QuatToRotationMatrix(tf.Rotation()),
		offset: tf.Translation(),
		err:    tf.Error(),
		stamp:  tf.TimeStamp(),
	}
}

// SetMatrixAndOffset overwrites the transform and restamps it.
func (af *AffineTransform) SetMatrixAndOffset(matrix mgl64.Mat3, offset r3.Vector, errValue, millisecondsToExpire float64) {
	af.matrix = matrix
	af.offset = offset
	af.err = clampError(errValue)
	af.stamp.SetStartTimeNowAndExpireAfter(millisecondsToExpire)
}

// Matrix returns the linear part.
func (af AffineTransform) Matrix() mgl64.Mat3 {
	if af.matrix == (mgl64.Mat3{}) && af.stamp.IsZero() {
		return mgl64.Ident3()
	}
	return af.matrix
}

// Offset returns the translation part.
func (af AffineTransform) Offset() r3.Vector {
	return af.offset
}

// Error returns the uncertainty estimate.
func (af AffineTransform) Error() float64 {
	return af.err
}

// TimeStamp returns the validity window.
func (af AffineTransform) TimeStamp() TimeStamp {
	return af.stamp
}

// IsValidNow reports whether the transform is current.
func (af AffineTransform) IsValidNow() bool {
	return af.stamp.IsValidNow()
}

// TransformPoint applies the transform to p.
func (af AffineTransform) TransformPoint(p r3.Vector) r3.Vector {
	v := af.Matrix().Mul3x1(mgl64.Vec3{p.X, p.Y, p.Z})
	return r3.Vector{X: v[0], Y: v[1], Z: v[2]}.Add(af.offset)
}

// ExportTransform writes the homogeneous matrix into m.
func (af AffineTransform) ExportTransform(m *mgl64.Mat4) {
	lin := af.Matrix()
	*m = mgl64.Ident4()
	for r := 0; r < 3; r++ {
		for c := 0; c < 3; c++ {
			m.Set(r, c, lin.At(r, c))
		}
	}
	m.Set(0, 3, af.offset.X)
	m.Set(1, 3, af.offset.Y)
	m.Set(2, 3, af.offset.Z)
}

// Inverse returns the inverse map, or ErrSingular when the matrix is not invertible.
func (af AffineTransform) Inverse() (AffineTransform, error) {
	lin := af.Matrix()
	dense := mat.NewDense(3, 3, nil)
	for r := 0; r < 3; r++ {
		for c := 0; c < 3; c++ {
			dense.Set(r, c, lin.At(r, c))
		}
	}
	if mat.Cond(dense, 2) > conditionLimit {
		return AffineTransform{}, ErrSingular
	}
	var inv mat.Dense
	if err := inv.Inverse(dense); err != nil {
		return AffineTransform{}, ErrSingular
	}

	var invLin mgl64.Mat3
	for r := 0; r < 3; r++ {
		for c := 0; c < 3; c++ {
			invLin.Set(r, c, inv.At(r, c))
		}
	}
	o := invLin.Mul3x1(mgl64.Vec3{af.offset.X, af.offset.Y, af.offset.Z})
	return AffineTransform{
		matrix: invLin,
		offset: r3.Vector{X: -o[0], Y: -o[1], Z: -o[2]},
		err:    af.err,
		stamp:  af.stamp,
	}, nil
}

// ComposeAffine returns left ∘ right with summed errors and overlapping windows.
func ComposeAffine(left, right AffineTransform) AffineTransform {
	ll := left.Matrix()
	o := ll.Mul3x1(mgl64.Vec3{right.offset.X, right.offset.Y, right.offset.Z})
	return AffineTransform{
		matrix: ll.Mul3(right.Matrix()),
		offset: r3.Vector{X: o[0], Y: o[1], Z: o[2]}.Add(left.offset),
		err:    left.err + right.err,
		stamp:  ComputeOverlap(left.stamp, right.stamp),
	}
}
