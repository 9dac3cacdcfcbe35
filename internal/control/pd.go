package control

import (
	"fmt"
	"math"

	"github.com/san-kum/jointtorque/internal/dynamo"
)

// KvFactor relates the derivative gain to the proportional gain: Kv = KvFactor·sqrt(Kp).
const KvFactor = 3.0

// JointPD regulates every joint towards Desired with zero desired velocity.
type JointPD struct {
	Kp      float64
	Kv      float64
	Desired dynamo.Vector
}

var _ dynamo.Configurable = (*JointPD)(nil)

func NewJointPD(kp float64, desired dynamo.Vector) *JointPD {
	return &JointPD{
		Kp:      kp,
		Kv:      DerivativeGain(kp),
		Desired: desired.Clone(),
	}
}

// DerivativeGain returns KvFactor·sqrt(kp).
func DerivativeGain(kp float64) float64 {
	return KvFactor * math.Sqrt(kp)
}

// Error returns qd - q.
func (p *JointPD) Error(q dynamo.Vector) dynamo.Vector {
	return p.Desired.Sub(q)
}

// Compute returns Kp·(qd - q) + Kv·(-qdot).
func (p *JointPD) Compute(q, qdot dynamo.Vector) dynamo.Vector {
	return p.Error(q).Scale(p.Kp).Add(qdot.Neg().Scale(p.Kv))
}

// GetParams returns tunable parameters for live adjustment
func (p *JointPD) GetParams() map[string]float64 {
	return map[string]float64{
		"Kp": p.Kp,
		"Kv": p.Kv,
	}
}

// SetParam adjusts Kp; Kv follows it.
func (p *JointPD) SetParam(name string, value float64) error {
	switch name {
	case "Kp":
		if value < 0 {
			return fmt.Errorf("control: Kp must be non-negative, got %f", value)
		}
		p.Kp = value
		p.Kv = DerivativeGain(value)
		return nil
	default:
		return fmt.Errorf("control: unknown parameter %q", name)
	}
}
