// Package vecmath provides the plain 3D vector value used as input to and
// output from the drift accumulators.
//
// [Vec3] is a small immutable value: every operation returns a new vector and
// no operation tracks rounding error. Use [github.com/san-kum/driftsim/internal/drift.Accumulator]
// when a quantity is summed over many steps.
//
// # Encoding
//
// The canonical binary form of a [Vec3] is 24 bytes: X, Y and Z as
// little-endian IEEE-754 doubles. It is the only form that may be hashed
// to compare simulation runs. Text formatting collapses -0 and +0 and is
// not stable across platforms.
package vecmath
