package experiment_test

import (
	"context"
	"sync"

	"github.com/san-kum/jointtorque/internal/bridge"
	"github.com/san-kum/jointtorque/internal/dynamo"
	"github.com/san-kum/jointtorque/internal/kinematics"
)

// fakeSim records every call and returns scripted joint values.
type fakeSim struct {
	mu sync.Mutex

	calls  []string
	poses  map[string][]kinematics.Pose
	torque []dynamo.Vector

	q, qdot dynamo.Vector
	// readScale is applied to commanded torques to produce measured ones.
	readScale float64

	failOn  string
	failErr error
	closed  bool
}

var _ bridge.Simulator = (*fakeSim)(nil)

func newFakeSim(q, qdot dynamo.Vector) *fakeSim {
	return &fakeSim{
		q:         q,
		qdot:      qdot,
		readScale: 0.5,
		poses:     map[string][]kinematics.Pose{},
	}
}

func (f *fakeSim) record(call string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, call)
	if call == f.failOn {
		return f.failErr
	}
	return nil
}

func (f *fakeSim) count(call string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, c := range f.calls {
		if c == call {
			n++
		}
	}
	return n
}

func (f *fakeSim) SetSynchronous(ctx context.Context, enabled bool) error {
	return f.record("SetSynchronous")
}

func (f *fakeSim) StartSimulation(ctx context.Context) error { return f.record("StartSimulation") }
func (f *fakeSim) StopSimulation(ctx context.Context) error  { return f.record("StopSimulation") }

func (f *fakeSim) TriggerNextSimulationStep(ctx context.Context) error {
	return f.record("TriggerNextSimulationStep")
}

func (f *fakeSim) GetJointPositions(ctx context.Context, names []string) (dynamo.Vector, error) {
	return f.q.Clone(), f.record("GetJointPositions")
}

func (f *fakeSim) GetJointVelocities(ctx context.Context, names []string) (dynamo.Vector, error) {
	return f.qdot.Clone(), f.record("GetJointVelocities")
}

func (f *fakeSim) GetJointTorques(ctx context.Context, names []string) (dynamo.Vector, error) {
	if err := f.record("GetJointTorques"); err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	last := f.torque[len(f.torque)-1]
	return last.Scale(f.readScale), nil
}

func (f *fakeSim) SetJointPositions(ctx context.Context, names []string, q dynamo.Vector) error {
	return f.record("SetJointPositions")
}

func (f *fakeSim) SetJointTargetVelocities(ctx context.Context, names []string, qdot dynamo.Vector) error {
	return f.record("SetJointTargetVelocities")
}

func (f *fakeSim) SetJointTorques(ctx context.Context, names []string, tau dynamo.Vector) error {
	if err := f.record("SetJointTorques"); err != nil {
		return err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.torque = append(f.torque, tau.Clone())
	return nil
}

func (f *fakeSim) SetObjectPose(ctx context.Context, name string, pose kinematics.Pose) error {
	if err := f.record("SetObjectPose:" + name); err != nil {
		return err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.poses[name] = append(f.poses[name], pose)
	return nil
}

func (f *fakeSim) GetObjectPose(ctx context.Context, name string) (kinematics.Pose, error) {
	return kinematics.Identity(), f.record("GetObjectPose")
}

func (f *fakeSim) Close() error {
	f.mu.Lock()
	f.closed = true
	f.mu.Unlock()
	return f.record("Close")
}

type countingObserver struct {
	samples []dynamo.Sample
}

func (o *countingObserver) OnStep(s dynamo.Sample) { o.samples = append(o.samples, s) }
