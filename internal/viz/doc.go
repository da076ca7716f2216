// Package viz provides a terminal monitor for drift probe runs.
//
// The monitor is a Bubble Tea program fed by [probe.RunWithCallback]. Each
// sample the probe takes is pushed into the model, which keeps a rolling
// history of every strategy's error and plots it with asciigraph.
//
// # Key Bindings
//
//	Space - Pause/Resume the probe
//	L     - Toggle logarithmic error axis
//	?     - Show help overlay
//	Q     - Stop the probe and quit
package viz
