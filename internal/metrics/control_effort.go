package metrics

import (
	"math"

	"github.com/san-kum/jointtorque/internal/dynamo"
)

// ControlEffort is the mean over iterations of Σ|τ_ref|.
type ControlEffort struct {
	name    string
	sum     float64
	samples int
}

func NewControlEffort() *ControlEffort {
	return &ControlEffort{
		name: "control_effort",
	}
}

func (c *ControlEffort) Name() string {
	return c.name
}

func (c *ControlEffort) Observe(s dynamo.Sample) {
	for _, val := range s.TorqueRef {
		c.sum += math.Abs(val)
	}
	c.samples++
}

func (c *ControlEffort) Value() float64 {
	if c.samples == 0 {
		return 0
	}
	return c.sum / float64(c.samples)
}

func (c *ControlEffort) Reset() {
	c.sum = 0
	c.samples = 0
}

// TorqueTracking is the RMS of τ_ref − τ_read over every joint and iteration.
// It shows how much of the commanded torque the simulator actually applied.
type TorqueTracking struct {
	name   string
	sumSq  float64
	values int
}

func NewTorqueTracking() *TorqueTracking {
	return &TorqueTracking{name: "torque_tracking_rms"}
}

func (m *TorqueTracking) Name() string { return m.name }

func (m *TorqueTracking) Observe(s dynamo.Sample) {
	n := min(len(s.TorqueRef), len(s.TorqueRead))
	for i := 0; i < n; i++ {
		d := s.TorqueRef[i] - s.TorqueRead[i]
		m.sumSq += d * d
	}
	m.values += n
}

func (m *TorqueTracking) Value() float64 {
	if m.values == 0 {
		return 0
	}
	return math.Sqrt(m.sumSq / float64(m.values))
}

func (m *TorqueTracking) Reset() {
	m.sumSq = 0
	m.values = 0
}
