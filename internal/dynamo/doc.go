// Package dynamo provides the core primitives shared by the joint-torque
// control loop and the simulator backends.
//
// The package defines vectors and the interfaces the other packages plug into:
//
//   - [Vector]: fixed-length joint vector (positions, velocities, torques)
//   - [System]: interface for ODE systems (dX/dt = f(X, u, t))
//   - [Integrator]: numerical stepper over a [System]
//   - [Controller]: joint-space feedback law producing a torque command
//   - [Metric] and [Observer]: per-iteration consumers of a [Sample]
//
// # Example
//
//	ctrl := control.NewJointPD(0.04, qd)
//	tau := ctrl.Compute(q, qdot)
//
// # Thread Safety
//
// Vectors are plain slices. Controllers, metrics and observers keep internal
// state and must not be shared between concurrent loops.
package dynamo
