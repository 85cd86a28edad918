// Package transform provides timestamped, error annotated spatial transforms: rigid, affine and
// perspective. Every setter restamps the value; composition sums errors and intersects validity
// windows.
package transform

import (
	"fmt"
	"math"

	"github.com/go-gl/mathgl/mgl64"
	"github.com/golang/geo/r3"
	"github.com/pkg/errors"
	"gonum.org/v1/gonum/num/quat"

	"go.igtrack.org/tracking/spatialmath"
)

// ErrorFloor is the smallest error a set transform carries. Zero means "never set".
const ErrorFloor = math.SmallestNonzeroFloat64

// rigidTolerance bounds how far an imported rotation block may drift from orthonormal.
const rigidTolerance = 1e-6

func clampError(err float64) float64 {
	if err < ErrorFloor || math.IsNaN(err) {
		return ErrorFloor
	}
	return err
}

// Transform is a rigid motion (rotation then translation) with an uncertainty estimate and a
// validity window. The zero value is the identity, never set and never valid.
type Transform struct {
	rotation    quat.Number
	translation r3.Vector
	err         float64
	stamp       TimeStamp
}

// NewTransform returns a transform set to rot and t, stamped now and expiring after
// millisecondsToExpire.
func NewTransform(t r3.Vector, rot quat.Number, errValue, millisecondsToExpire float64) Transform {
	var tf Transform
	tf.SetTranslationAndRotation(t, rot, errValue, millisecondsToExpire)
	return tf
}

// Identity returns an identity transform that is valid from now on.
func Identity() Transform {
	var tf Transform
	tf.SetToIdentity(LongestPossibleTime)
	return tf
}

// NeutralIdentity returns the identity with the smallest error and a window covering all time,
// so composing with it changes neither the error nor the window of the other operand.
func NeutralIdentity() Transform {
	return Transform{rotation: spatialmath.IdentityQuat, err: ErrorFloor, stamp: AlwaysValid()}
}

// NewStaticTransform returns a transform that is valid from now on, such as a calibration.
func NewStaticTransform(t r3.Vector, rot quat.Number, errValue float64) Transform {
	return NewTransform(t, rot, errValue, LongestPossibleTime)
}

// SetTranslationAndRotation overwrites the transform and restamps it.
func (tf *Transform) SetTranslationAndRotation(t r3.Vector, rot quat.Number, errValue, millisecondsToExpire float64) {
	tf.rotation = spatialmath.Normalize(rot)
	tf.translation = t
	tf.err = clampError(errValue)
	tf.stamp.SetStartTimeNowAndExpireAfter(millisecondsToExpire)
}

// SetTranslation overwrites only the translation and restamps the transform.
func (tf *Transform) SetTranslation(t r3.Vector, errValue, millisecondsToExpire float64) {
	tf.SetTranslationAndRotation(t, tf.Rotation(), errValue, millisecondsToExpire)
}

// SetRotation overwrites only the rotation and restamps the transform.
func (tf *Transform) SetRotation(rot quat.Number, errValue, millisecondsToExpire float64) {
	tf.SetTranslationAndRotation(tf.translation, rot, errValue, millisecondsToExpire)
}

// SetToIdentity resets to the identity with the smallest error.
func (tf *Transform) SetToIdentity(millisecondsToExpire float64) {
	tf.SetTranslationAndRotation(r3.Vector{}, spatialmath.IdentityQuat, ErrorFloor, millisecondsToExpire)
}

// Translation returns the translation.
func (tf Transform) Translation() r3.Vector {
	return tf.translation
}

// Rotation returns the unit rotation quaternion.
func (tf Transform) Rotation() quat.Number {
	if tf.rotation == (quat.Number{}) {
		return spatialmath.IdentityQuat
	}
	return tf.rotation
}

// Error returns the uncertainty estimate. Zero only for a transform that was never set.
func (tf Transform) Error() float64 {
	return tf.err
}

// TimeStamp returns the validity window.
func (tf Transform) TimeStamp() TimeStamp {
	return tf.stamp
}

// StartTime returns the start of the validity window.
func (tf Transform) StartTime() float64 {
	return tf.stamp.StartTime()
}

// ExpirationTime returns the end of the validity window.
func (tf Transform) ExpirationTime() float64 {
	return tf.stamp.ExpirationTime()
}

// IsValidAtTime reports whether the transform is current at t.
func (tf Transform) IsValidAtTime(t float64) bool {
	return tf.stamp.IsValidAtTime(t)
}

// IsValidNow reports whether the transform is current.
func (tf Transform) IsValidNow() bool {
	return tf.stamp.IsValidNow()
}

// ExportTransform writes the homogeneous matrix of the transform into m.
func (tf Transform) ExportTransform(m *mgl64.Mat4) {
	rot := spatialmath.QuatToRotationMatrix(tf.Rotation())
	*m = mgl64.Ident4()
	for r := 0; r < 3; r++ {
		for c := 0; c < 3; c++ {
			m.Set(r, c, rot.At(r, c))
		}
	}
	m.Set(0, 3, tf.translation.X)
	m.Set(1, 3, tf.translation.Y)
	m.Set(2, 3, tf.translation.Z)
}

// ImportTransform sets the transform from a homogeneous rigid matrix.
func (tf *Transform) ImportTransform(m mgl64.Mat4, errValue, millisecondsToExpire float64) error {
	if m.Row(3) != (mgl64.Vec4{0, 0, 0, 1}) {
		return errors.Wrap(ErrNotRigid, "last row must be [0 0 0 1]")
	}
	rot := m.Mat3()
	if math.Abs(rot.Det()-1) > rigidTolerance || !rot.Mul3(rot.Transpose()).ApproxEqualThreshold(mgl64.Ident3(), rigidTolerance) {
		return errors.Wrap(ErrNotRigid, "rotation block is not orthonormal")
	}
	tf.SetTranslationAndRotation(
		r3.Vector{X: m.At(0, 3), Y: m.At(1, 3), Z: m.At(2, 3)},
		spatialmath.RotationMatrixToQuat(rot),
		errValue,
		millisecondsToExpire,
	)
	return nil
}

// Inverse returns the inverse motion with the same error and validity window.
func (tf Transform) Inverse() Transform {
	dq := tf.dualQuaternion().Invert()
	return Transform{rotation: dq.Rotation(), translation: dq.Translation(), err: tf.err, stamp: tf.stamp}
}

// TransformPoint applies the transform to p.
func (tf Transform) TransformPoint(p r3.Vector) r3.Vector {
	return spatialmath.RotateVector(tf.Rotation(), p).Add(tf.translation)
}

// AlmostEqual compares rotation and translation within tol, ignoring error and validity.
func (tf Transform) AlmostEqual(other Transform, tol float64) bool {
	return spatialmath.QuaternionAlmostEqual(tf.Rotation(), other.Rotation(), tol) &&
		spatialmath.R3VectorAlmostEqual(tf.translation, other.translation, tol)
}

// IsIdentity reports whether the transform is the identity within tol.
func (tf Transform) IsIdentity(tol float64) bool {
	return tf.AlmostEqual(Transform{}, tol)
}

func (tf Transform) dualQuaternion() *spatialmath.DualQuaternion {
	return spatialmath.NewDualQuaternionFromRotationTranslation(tf.Rotation(), tf.translation)
}

func (tf Transform) String() string {
	aa := spatialmath.QuatToR4AA(tf.Rotation())
	return fmt.Sprintf("t=(%.4f, %.4f, %.4f) rot=%.4frad@(%.4f, %.4f, %.4f) err=%g valid=%v",
		tf.translation.X, tf.translation.Y, tf.translation.Z, aa.Theta, aa.RX, aa.RY, aa.RZ, tf.err, tf.stamp)
}

// Compose returns left ∘ right: right is applied first. The result's error is the sum of both
// errors and its window is the overlap of both windows; disjoint windows give a transform that
// is never valid.
func Compose(left, right Transform) Transform {
	dq := left.dualQuaternion().Compose(right.dualQuaternion())
	return Transform{
		rotation:    spatialmath.Normalize(dq.Rotation()),
		translation: dq.Translation(),
		err:         left.err + right.err,
		stamp:       ComputeOverlap(left.stamp, right.stamp),
	}
}

// ComposeAll composes a chain, applying the last element first.
func ComposeAll(chain ...Transform) Transform {
	if len(chain) == 0 {
		return Identity()
	}
	out := chain[len(chain)-1]
	for i := len(chain) - 2; i >= 0; i-- {
		out = Compose(chain[i], out)
	}
	return out
}
