package control

import "github.com/san-kum/jointtorque/internal/dynamo"

type None struct {
	dim int
}

func NewNone(dim int) *None {
	return &None{
		dim: dim,
	}
}

func (n *None) Compute(q, qdot dynamo.Vector) dynamo.Vector {
	return dynamo.Zeros(n.dim)
}
