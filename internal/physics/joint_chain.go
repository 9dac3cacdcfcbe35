package physics

import (
	"fmt"

	"github.com/san-kum/jointtorque/internal/dynamo"
)

// Rough per-joint effective inertias [kg·m²], link plus reflected rotor, and
// viscous friction [N·m·s/rad] for the Panda. With torques held for a 0.05 s
// step, velocity feedback stays stable while 0.05·Kv/I < 2.
var (
	PandaInertia = []float64{0.80, 0.80, 0.60, 0.60, 0.30, 0.30, 0.20}
	PandaDamping = []float64{0.05, 0.05, 0.05, 0.05, 0.02, 0.02, 0.01}
)

type JointChain struct {
	Inertia []float64
	Damping []float64
}

var (
	_ dynamo.System       = (*JointChain)(nil)
	_ dynamo.Configurable = (*JointChain)(nil)
)

func NewJointChain(inertia, damping []float64) (*JointChain, error) {
	if len(inertia) != len(damping) {
		return nil, fmt.Errorf("physics: %d inertias but %d damping terms", len(inertia), len(damping))
	}
	for i, m := range inertia {
		if m <= 0 {
			return nil, fmt.Errorf("physics: joint %d inertia must be positive, got %f", i, m)
		}
	}
	return &JointChain{
		Inertia: append([]float64(nil), inertia...),
		Damping: append([]float64(nil), damping...),
	}, nil
}

func NewPandaChain() *JointChain {
	c, _ := NewJointChain(PandaInertia, PandaDamping)
	return c
}

func (c *JointChain) StateDim() int {
	return 2 * len(c.Inertia)
}

func (c *JointChain) ControlDim() int {
	return len(c.Inertia)
}

func (c *JointChain) Derive(x dynamo.State, u dynamo.Control, t float64) dynamo.State {
	n := len(c.Inertia)
	dx := make(dynamo.State, 2*n)
	copy(dx[:n], x[n:2*n])

	for i := 0; i < n; i++ {
		tau := 0.0
		if i < len(u) {
			tau = u[i]
		}
		dx[n+i] = (tau - c.Damping[i]*x[n+i]) / c.Inertia[i]
	}
	return dx
}

// Energy is the kinetic energy Σ ½·I_i·qdot_i².
func (c *JointChain) Energy(x dynamo.State) float64 {
	n := len(c.Inertia)
	e := 0.0
	for i := 0; i < n; i++ {
		v := x[n+i]
		e += 0.5 * c.Inertia[i] * v * v
	}
	return e
}

// GetParams returns per-joint inertia and damping keyed "inertia<i>"/"damping<i>".
func (c *JointChain) GetParams() map[string]float64 {
	params := make(map[string]float64, 2*len(c.Inertia))
	for i := range c.Inertia {
		params[fmt.Sprintf("inertia%d", i+1)] = c.Inertia[i]
		params[fmt.Sprintf("damping%d", i+1)] = c.Damping[i]
	}
	return params
}

func (c *JointChain) SetParam(name string, value float64) error {
	var idx int
	if _, err := fmt.Sscanf(name, "inertia%d", &idx); err == nil {
		if idx < 1 || idx > len(c.Inertia) {
			return fmt.Errorf("physics: joint index %d out of range", idx)
		}
		if value <= 0 {
			return fmt.Errorf("physics: inertia must be positive, got %f", value)
		}
		c.Inertia[idx-1] = value
		return nil
	}
	if _, err := fmt.Sscanf(name, "damping%d", &idx); err == nil {
		if idx < 1 || idx > len(c.Damping) {
			return fmt.Errorf("physics: joint index %d out of range", idx)
		}
		c.Damping[idx-1] = value
		return nil
	}
	return fmt.Errorf("physics: unknown parameter %q", name)
}
