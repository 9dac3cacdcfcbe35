package dynamo

import (
	"math"

	"gonum.org/v1/gonum/floats"
)

// NumJoints is the number of actuated joints of the Panda arm.
const NumJoints = 7

// Vector is a joint-space quantity: one element per joint.
type Vector []float64

// State and Control are the integrator-facing names of a Vector.
type (
	State   = Vector
	Control = Vector
)

func Zeros(n int) Vector {
	return make(Vector, n)
}

func (v Vector) Clone() Vector {
	c := make(Vector, len(v))
	copy(c, v)
	return c
}

func (v Vector) IsValid() bool {
	for _, x := range v {
		if math.IsNaN(x) || math.IsInf(x, 0) {
			return false
		}
	}
	return true
}

func (v Vector) Norm() float64 {
	if len(v) == 0 {
		return 0
	}
	return floats.Norm(v, 2)
}

// Add returns v + other. Elements past len(other) are copied from v.
func (v Vector) Add(other Vector) Vector {
	result := v.Clone()
	n := min(len(v), len(other))
	floats.Add(result[:n], other[:n])
	return result
}

// Sub returns v - other. Elements past len(other) are copied from v.
func (v Vector) Sub(other Vector) Vector {
	result := v.Clone()
	n := min(len(v), len(other))
	floats.Sub(result[:n], other[:n])
	return result
}

func (v Vector) Scale(factor float64) Vector {
	result := v.Clone()
	floats.Scale(factor, result)
	return result
}

// Neg returns -v.
func (v Vector) Neg() Vector {
	return v.Scale(-1)
}

type System interface {
	Derive(x State, u Control, t float64) State
	StateDim() int
	ControlDim() int
}

type Integrator interface {
	Step(dyn System, x State, u Control, t float64, dt float64) State
}

// Controller maps measured joint positions and velocities to a torque command.
type Controller interface {
	Compute(q, qdot Vector) Vector
}

// Sample is everything the control loop knows after one iteration.
type Sample struct {
	Iteration  int
	Remaining  int
	Q          Vector
	QDot       Vector
	QError     Vector
	TorqueRef  Vector
	TorqueRead Vector
}

type Metric interface {
	Name() string
	Observe(s Sample)
	Value() float64
	Reset()
}

type Observer interface {
	OnStep(s Sample)
}

type Configurable interface {
	GetParams() map[string]float64
	SetParam(name string, value float64) error
}
