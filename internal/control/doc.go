// Package control provides joint-space torque controllers.
//
// Controllers implement the [dynamo.Controller] interface and map measured
// joint positions and velocities to a torque command:
//
//   - [JointPD]: proportional-derivative law around a fixed configuration
//   - [None]: zero torque (passive arm)
//
// # Usage
//
//	pd := control.NewJointPD(0.04, qd) // Kp, desired configuration
//	tau := pd.Compute(q, qdot)
//
// Controllers implementing [dynamo.Configurable] support live tuning.
package control
