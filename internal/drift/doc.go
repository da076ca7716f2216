// Package drift provides compensated accumulators for long-running
// deterministic simulations.
//
// Repeated floating-point addition loses the low-order bits of every
// addend, and the loss grows with the number of additions. The types here
// carry that loss in a separate compensation term (Neumaier's variant of
// Kahan summation) so the resolved total stays within a few ulps of the
// exact sum however many steps are taken:
//
//   - [Neumaier]: a single compensated scalar
//   - [Accumulator]: three independent Neumaier summers over a [vecmath.Vec3]
//
// # Example
//
//	pos := drift.New()
//	vel := vecmath.New(1, 2, 3)
//	for i := 0; i < 100_000; i++ {
//		pos.AddScaled(vel, 1.0/60.0)
//	}
//	final := pos.Resolve()
//
// # Determinism
//
// [Hash] and [HashState] digest the canonical little-endian bytes of a
// resolved vector or a full accumulator state. Two runs are identical only
// if their digests match; never compare formatted text.
//
// # Thread Safety
//
// Accumulators are NOT thread-safe. Each tracked quantity should have one
// owner; distinct accumulators may be used from different goroutines.
package drift
