package kinematics

import (
	"errors"
	"fmt"

	"github.com/go-gl/mathgl/mgl64"

	"github.com/san-kum/jointtorque/internal/dynamo"
)

var ErrDimension = errors.New("kinematics: dimension mismatch")

type JointType int

const (
	Revolute JointType = iota
	Prismatic
)

func (j JointType) String() string {
	switch j {
	case Revolute:
		return "revolute"
	case Prismatic:
		return "prismatic"
	default:
		return fmt.Sprintf("JointType(%d)", int(j))
	}
}

// DHParams is one column of a modified Denavit-Hartenberg table.
type DHParams struct {
	Theta float64
	D     float64
	A     float64
	Alpha float64
	Type  JointType
}

// ParamsFromTable reads a 5-row MDH table (theta, d, a, alpha, type),
// one column per joint.
func ParamsFromTable(table [5][]float64) ([]DHParams, error) {
	n := len(table[0])
	for row := 1; row < len(table); row++ {
		if len(table[row]) != n {
			return nil, fmt.Errorf("%w: row %d has %d columns, want %d", ErrDimension, row, len(table[row]), n)
		}
	}

	params := make([]DHParams, n)
	for i := range params {
		jt := JointType(table[4][i])
		if jt != Revolute && jt != Prismatic {
			return nil, fmt.Errorf("kinematics: joint %d has unknown type %v", i, table[4][i])
		}
		params[i] = DHParams{
			Theta: table[0][i],
			D:     table[1][i],
			A:     table[2][i],
			Alpha: table[3][i],
			Type:  jt,
		}
	}
	return params, nil
}

// Link returns the MDH transform Rx(alpha)·Tx(a)·Rz(theta)·Tz(d) with the
// joint value q added to theta (revolute) or d (prismatic).
func (p DHParams) Link(q float64) Pose {
	theta, d := p.Theta, p.D
	if p.Type == Prismatic {
		d += q
	} else {
		theta += q
	}
	return NewRotation(p.Alpha, mgl64.Vec3{1, 0, 0}).
		Mul(NewTranslation(p.A, 0, 0)).
		Mul(NewRotation(theta, mgl64.Vec3{0, 0, 1})).
		Mul(NewTranslation(0, 0, d))
}

// SerialManipulator is an open kinematic chain described by MDH parameters.
type SerialManipulator struct {
	params    []DHParams
	base      Pose
	reference Pose
	effector  Pose
}

func NewSerialManipulatorMDH(params []DHParams) *SerialManipulator {
	p := make([]DHParams, len(params))
	copy(p, params)
	return &SerialManipulator{
		params:    p,
		base:      Identity(),
		reference: Identity(),
		effector:  Identity(),
	}
}

func (m *SerialManipulator) Dim() int { return len(m.params) }

func (m *SerialManipulator) Params() []DHParams {
	p := make([]DHParams, len(m.params))
	copy(p, m.params)
	return p
}

func (m *SerialManipulator) SetBaseFrame(p Pose)      { m.base = p }
func (m *SerialManipulator) BaseFrame() Pose          { return m.base }
func (m *SerialManipulator) SetReferenceFrame(p Pose) { m.reference = p }
func (m *SerialManipulator) ReferenceFrame() Pose     { return m.reference }
func (m *SerialManipulator) SetEffector(p Pose)       { m.effector = p }
func (m *SerialManipulator) Effector() Pose           { return m.effector }

// Fkm returns the effector pose at q, expressed in the reference frame.
func (m *SerialManipulator) Fkm(q dynamo.Vector) (Pose, error) {
	return m.FkmTo(q, m.Dim()-1)
}

// FkmTo returns the pose of link i. The effector offset is only applied
// when i is the last link.
func (m *SerialManipulator) FkmTo(q dynamo.Vector, i int) (Pose, error) {
	if len(q) != m.Dim() {
		return Pose{}, fmt.Errorf("%w: got %d joint values, want %d", ErrDimension, len(q), m.Dim())
	}
	if i < 0 || i >= m.Dim() {
		return Pose{}, fmt.Errorf("kinematics: link index %d out of range [0, %d)", i, m.Dim())
	}

	pose := m.reference
	for j := 0; j <= i; j++ {
		pose = pose.Mul(m.params[j].Link(q[j]))
	}
	if i == m.Dim()-1 {
		pose = pose.Mul(m.effector)
	}
	return pose, nil
}
