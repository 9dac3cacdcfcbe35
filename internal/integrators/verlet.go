package integrators

import (
	"gonum.org/v1/gonum/floats"

	"github.com/san-kum/jointtorque/internal/dynamo"
)

// Verlet and Leapfrog assume the state is [positions, velocities] with the
// derivative [velocities, accelerations], as physics.JointChain lays it out.

// Verlet is velocity Verlet. The acceleration may depend on velocity (joint
// damping), so the second evaluation reuses the start-of-step velocity.
type Verlet struct {
	scratch dynamo.State
}

func NewVerlet() *Verlet {
	return &Verlet{}
}

func (v *Verlet) Step(dyn dynamo.System, x dynamo.State, u dynamo.Control, t, dt float64) dynamo.State {
	n := len(x)
	half := n / 2
	if len(v.scratch) != n {
		v.scratch = make(dynamo.State, n)
	}

	dx := dyn.Derive(x, u, t)
	result := x.Clone()

	// q += qdot·dt + ½·qddot·dt²
	floats.AddScaled(result[:half], dt, x[half:])
	floats.AddScaled(result[:half], 0.5*dt*dt, dx[half:])

	copy(v.scratch[:half], result[:half])
	copy(v.scratch[half:], x[half:])
	dxNew := dyn.Derive(v.scratch, u, t+dt)

	floats.AddScaled(result[half:], dt/2, dx[half:])
	floats.AddScaled(result[half:], dt/2, dxNew[half:])
	return result
}

type Leapfrog struct {
	scratch dynamo.State
}

func NewLeapfrog() *Leapfrog {
	return &Leapfrog{}
}

// Step does kick-drift-kick.
func (l *Leapfrog) Step(dyn dynamo.System, x dynamo.State, u dynamo.Control, t, dt float64) dynamo.State {
	n := len(x)
	half := n / 2
	if len(l.scratch) != n {
		l.scratch = make(dynamo.State, n)
	}

	dx := dyn.Derive(x, u, t)
	floats.AddScaledTo(l.scratch[half:], x[half:], dt/2, dx[half:])
	floats.AddScaledTo(l.scratch[:half], x[:half], dt, l.scratch[half:])

	result := l.scratch.Clone()
	dxNew := dyn.Derive(l.scratch, u, t+dt)
	floats.AddScaled(result[half:], dt/2, dxNew[half:])
	return result
}
