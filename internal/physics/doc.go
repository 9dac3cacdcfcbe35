// Package physics provides the joint dynamics used by the local scene.
//
// [JointChain] implements [dynamo.System] for a torque-driven arm whose
// joints are decoupled and move without gravity:
//
//	qddot_i = (tau_i - b_i·qdot_i) / I_i
//
// The state is laid out as [q, qdot] and the control is the joint torque.
// This matches a simulator scene with gravity switched off, which is how the
// joint-torque demo is meant to be run.
package physics
