// Package simulation provides a streaming test harness for validating the
// end-to-end behavior of registered detectors on synthetic signals.
//
// The simulation exercises the real detector registry and the full
// encoder, context memory and rest-period pipeline, with no mocks.
// Scenarios are plain value slices built from deterministic signal builders;
// the runner replays them and captures per-step scores for property-based
// assertions.
//
// Usage:
//
//	func TestSineSteadyState(t *testing.T) {
//	    r := simulation.NewRunner(t)
//	    result := r.Run(simulation.Scenario{
//	        Name:   "sine",
//	        Values: simulation.Sine(400, 8, 1),
//	    })
//	    simulation.AssertSteadyStateBelow(t, result, 200, 0.3)
//	}
package simulation
