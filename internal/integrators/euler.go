package integrators

import (
	"gonum.org/v1/gonum/floats"

	"github.com/san-kum/jointtorque/internal/dynamo"
)

type Euler struct{}

func NewEuler() *Euler {
	return &Euler{}
}

func (e *Euler) Step(dyn dynamo.System, x dynamo.State, u dynamo.Control, t float64, dt float64) dynamo.State {
	result := x.Clone()
	floats.AddScaled(result, dt, dyn.Derive(x, u, t))
	return result
}
