package spatialmath

import (
	"github.com/golang/geo/r3"
	"gonum.org/v1/gonum/num/dualquat"
	"gonum.org/v1/gonum/num/quat"
)

// DualQuaternion is a rigid motion: the real part is the rotation and the dual part encodes the
// translation as 0.5 * t * rotation.
type DualQuaternion struct {
	dualquat.Number
}

// NewDualQuaternion returns the identity motion. Use it instead of &DualQuaternion{}, whose real
// part is not a unit quaternion.
func NewDualQuaternion() *DualQuaternion {
	return &DualQuaternion{dualquat.Number{Real: IdentityQuat}}
}

// NewDualQuaternionFromRotationTranslation builds the motion "rotate by rot, then translate by t".
func NewDualQuaternionFromRotationTranslation(rot quat.Number, t r3.Vector) *DualQuaternion {
	q := &DualQuaternion{dualquat.Number{Real: Normalize(rot)}}
	q.SetTranslation(t)
	return q
}

// Rotation returns the rotation quaternion.
func (q *DualQuaternion) Rotation() quat.Number {
	return q.Real
}

// Translation extracts the translation as 2 * dual * conj(real).
func (q *DualQuaternion) Translation() r3.Vector {
	t := quat.Scale(2, quat.Mul(q.Dual, quat.Conj(q.Real)))
	return r3.Vector{X: t.Imag, Y: t.Jmag, Z: t.Kmag}
}

// SetTranslation sets the translation against the current rotation.
func (q *DualQuaternion) SetTranslation(t r3.Vector) {
	q.Dual = quat.Mul(quat.Number{Imag: t.X / 2, Jmag: t.Y / 2, Kmag: t.Z / 2}, q.Real)
}

// Compose returns q ∘ by: the motion "by" followed by q.
func (q *DualQuaternion) Compose(by *DualQuaternion) *DualQuaternion {
	return &DualQuaternion{dualquat.Mul(q.Number, by.Number)}
}

// Invert returns the inverse motion. For unit dual quaternions this is the quaternion conjugate.
func (q *DualQuaternion) Invert() *DualQuaternion {
	return &DualQuaternion{dualquat.ConjQuat(q.Number)}
}

// TransformPoint applies the motion to a point.
func (q *DualQuaternion) TransformPoint(p r3.Vector) r3.Vector {
	return RotateVector(q.Real, p).Add(q.Translation())
}
