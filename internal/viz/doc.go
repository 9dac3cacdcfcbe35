// Package viz renders torque runs in the terminal.
//
//   - [Reporter]: per-iteration diagnostics printed while the loop runs
//   - [AsciiTorques]: asciigraph chart of one joint's logged torques
//   - [Viewer]: Bubble Tea browser over the two torque logs
//
// # Viewer Key Bindings
//
//	←/→ h/l - Previous/next joint
//	Tab     - Cycle reference, measured and error series
//	T       - Cycle color themes
//	Q       - Quit
package viz
