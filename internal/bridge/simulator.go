// Package bridge is the boundary between the control loop and a robot
// simulator. [Simulator] is the capability the loop consumes; it is served
// over gRPC by [Serve] and reached remotely with [Connect].
package bridge

import (
	"context"
	"errors"

	"github.com/san-kum/jointtorque/internal/dynamo"
	"github.com/san-kum/jointtorque/internal/kinematics"
)

var (
	ErrNotConnected   = errors.New("bridge: not connected")
	ErrNotRunning     = errors.New("bridge: simulation is not running")
	ErrNotSynchronous = errors.New("bridge: simulation is not in synchronous mode")
	ErrUnknownJoint   = errors.New("bridge: unknown joint")
	ErrUnknownObject  = errors.New("bridge: unknown object")
)

// Simulator reads and commands named joints and objects of a simulated scene.
type Simulator interface {
	SetSynchronous(ctx context.Context, enabled bool) error
	StartSimulation(ctx context.Context) error
	StopSimulation(ctx context.Context) error
	// TriggerNextSimulationStep advances a synchronous simulation by one step.
	TriggerNextSimulationStep(ctx context.Context) error

	GetJointPositions(ctx context.Context, names []string) (dynamo.Vector, error)
	GetJointVelocities(ctx context.Context, names []string) (dynamo.Vector, error)
	GetJointTorques(ctx context.Context, names []string) (dynamo.Vector, error)
	SetJointPositions(ctx context.Context, names []string, q dynamo.Vector) error
	SetJointTargetVelocities(ctx context.Context, names []string, qdot dynamo.Vector) error
	SetJointTorques(ctx context.Context, names []string, tau dynamo.Vector) error

	SetObjectPose(ctx context.Context, name string, pose kinematics.Pose) error
	GetObjectPose(ctx context.Context, name string) (kinematics.Pose, error)

	// Close disconnects from the simulator.
	Close() error
}
