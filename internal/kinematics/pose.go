// Package kinematics models serial manipulators with unit dual quaternions.
package kinematics

import (
	"fmt"
	"math"

	"github.com/go-gl/mathgl/mgl64"
	"gonum.org/v1/gonum/num/dualquat"
	"gonum.org/v1/gonum/num/quat"
)

// Pose is a rigid transform stored as a unit dual quaternion r + ε·½·t·r.
type Pose struct {
	DQ dualquat.Number
}

// Identity returns the pose with no rotation and no translation.
func Identity() Pose {
	return Pose{dualquat.Number{Real: quat.Number{Real: 1}}}
}

// NewTranslation returns a pure translation by (x, y, z).
func NewTranslation(x, y, z float64) Pose {
	return Pose{dualquat.Number{
		Real: quat.Number{Real: 1},
		Dual: quat.Number{Imag: x / 2, Jmag: y / 2, Kmag: z / 2},
	}}
}

// NewRotation returns a pure rotation by angle radians about axis.
func NewRotation(angle float64, axis mgl64.Vec3) Pose {
	q := mgl64.QuatRotate(angle, axis.Normalize())
	return Pose{dualquat.Number{
		Real: quat.Number{Real: q.W, Imag: q.V[0], Jmag: q.V[1], Kmag: q.V[2]},
	}}
}

// NewPose builds the pose that rotates by r and then translates by t.
func NewPose(r quat.Number, t mgl64.Vec3) Pose {
	tq := quat.Number{Imag: t[0], Jmag: t[1], Kmag: t[2]}
	return Pose{dualquat.Number{
		Real: r,
		Dual: quat.Scale(0.5, quat.Mul(tq, r)),
	}}
}

// Mul composes p followed by o.
func (p Pose) Mul(o Pose) Pose {
	return Pose{dualquat.Mul(p.DQ, o.DQ)}
}

// Conj returns the dual quaternion conjugate, the inverse of a unit pose.
func (p Pose) Conj() Pose {
	return Pose{dualquat.Conj(p.DQ)}
}

// Rotation returns the rotation quaternion (primary part).
func (p Pose) Rotation() quat.Number {
	return p.DQ.Real
}

// Translation returns t from 2·d·r*.
func (p Pose) Translation() mgl64.Vec3 {
	t := quat.Scale(2, quat.Mul(p.DQ.Dual, quat.Conj(p.DQ.Real)))
	return mgl64.Vec3{t.Imag, t.Jmag, t.Kmag}
}

// Norm is the magnitude of the primary part; 1 for a valid pose.
func (p Pose) Norm() float64 {
	return quat.Abs(p.DQ.Real)
}

// Matrix returns the homogeneous transform of p.
func (p Pose) Matrix() mgl64.Mat4 {
	r := p.DQ.Real
	rot := mgl64.Quat{W: r.Real, V: mgl64.Vec3{r.Imag, r.Jmag, r.Kmag}}
	t := p.Translation()
	return mgl64.Translate3D(t[0], t[1], t[2]).Mul4(rot.Mat4())
}

// Vec8 returns the coefficients [r.w r.x r.y r.z d.w d.x d.y d.z].
func (p Pose) Vec8() []float64 {
	r, d := p.DQ.Real, p.DQ.Dual
	return []float64{r.Real, r.Imag, r.Jmag, r.Kmag, d.Real, d.Imag, d.Jmag, d.Kmag}
}

// PoseFromVec8 is the inverse of Vec8.
func PoseFromVec8(v []float64) (Pose, error) {
	if len(v) != 8 {
		return Pose{}, fmt.Errorf("%w: pose needs 8 coefficients, got %d", ErrDimension, len(v))
	}
	return Pose{dualquat.Number{
		Real: quat.Number{Real: v[0], Imag: v[1], Jmag: v[2], Kmag: v[3]},
		Dual: quat.Number{Real: v[4], Imag: v[5], Jmag: v[6], Kmag: v[7]},
	}}, nil
}

// ApproxEqual compares two poses coefficient-wise, treating q and -q as the same pose.
func (p Pose) ApproxEqual(o Pose, tol float64) bool {
	a, b := p.Vec8(), o.Vec8()
	same, flipped := true, true
	for i := range a {
		if math.Abs(a[i]-b[i]) > tol {
			same = false
		}
		if math.Abs(a[i]+b[i]) > tol {
			flipped = false
		}
	}
	return same || flipped
}

func (p Pose) String() string {
	t := p.Translation()
	r := p.DQ.Real
	return fmt.Sprintf("t=(%.4f, %.4f, %.4f) r=(%.4f, %.4f, %.4f, %.4f)",
		t[0], t[1], t[2], r.Real, r.Imag, r.Jmag, r.Kmag)
}
