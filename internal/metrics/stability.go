package metrics

import (
	"math"

	"github.com/san-kum/jointtorque/internal/dynamo"
)

// TrackingError reports ‖qd − q‖ of the last observed iteration.
type TrackingError struct {
	name    string
	last    float64
	samples int
}

func NewTrackingError() *TrackingError {
	return &TrackingError{name: "tracking_error"}
}

func (m *TrackingError) Name() string { return m.name }

func (m *TrackingError) Observe(s dynamo.Sample) {
	m.last = s.QError.Norm()
	m.samples++
}

func (m *TrackingError) Value() float64 {
	if m.samples == 0 {
		return math.NaN()
	}
	return m.last
}

func (m *TrackingError) Reset() {
	m.last = 0
	m.samples = 0
}

// MeanTrackingError averages ‖qd − q‖ across iterations.
type MeanTrackingError struct {
	name    string
	sum     float64
	samples int
}

func NewMeanTrackingError() *MeanTrackingError {
	return &MeanTrackingError{name: "mean_tracking_error"}
}

func (m *MeanTrackingError) Name() string { return m.name }

func (m *MeanTrackingError) Observe(s dynamo.Sample) {
	m.sum += s.QError.Norm()
	m.samples++
}

func (m *MeanTrackingError) Value() float64 {
	if m.samples == 0 {
		return 0
	}
	return m.sum / float64(m.samples)
}

func (m *MeanTrackingError) Reset() {
	m.sum = 0
	m.samples = 0
}

// Stability is the fraction of iterations in which every joint velocity
// stayed below threshold in magnitude.
type Stability struct {
	name       string
	threshold  float64
	violations int
	samples    int
}

func NewStability(threshold float64) *Stability {
	return &Stability{
		name:      "stability",
		threshold: threshold,
	}
}

func (s *Stability) Name() string {
	return s.name
}

func (s *Stability) Observe(sample dynamo.Sample) {
	s.samples++
	for _, val := range sample.QDot {
		if math.Abs(val) > s.threshold || math.IsNaN(val) {
			s.violations++
			break
		}
	}
}

func (s *Stability) Value() float64 {
	if s.samples == 0 {
		return 1.0
	}
	return 1.0 - float64(s.violations)/float64(s.samples)
}

func (s *Stability) Reset() {
	s.violations = 0
	s.samples = 0
}

// Defaults returns the metric set every run reports.
func Defaults() []dynamo.Metric {
	return []dynamo.Metric{
		NewTrackingError(),
		NewMeanTrackingError(),
		NewControlEffort(),
		NewTorqueTracking(),
		NewStability(DefaultVelocityLimit),
	}
}

// DefaultVelocityLimit is in rad/s, close to the Panda's slowest joint limit.
const DefaultVelocityLimit = 2.175
