package drift

import (
	"crypto/sha256"
	"encoding/hex"

	"github.com/san-kum/driftsim/internal/vecmath"
)

// CheckpointSize is the length of an encoded accumulator: sum then compensation.
const CheckpointSize = 2 * vecmath.EncodedSize

// MarshalBinary encodes the exact accumulator state as sum followed by
// compensation, each in the canonical 24-byte vector form.
func (a *Accumulator) MarshalBinary() ([]byte, error) {
	buf := make([]byte, 0, CheckpointSize)
	buf, _ = a.Sum().AppendBinary(buf)
	return a.Compensation().AppendBinary(buf)
}

// UnmarshalBinary restores a state written by MarshalBinary. On error the
// accumulator is left unchanged.
func (a *Accumulator) UnmarshalBinary(data []byte) error {
	restored, err := Restore(data)
	if err != nil {
		return err
	}
	*a = *restored
	return nil
}

// Restore decodes a checkpoint. data must be exactly CheckpointSize bytes.
func Restore(data []byte) (*Accumulator, error) {
	if len(data) != CheckpointSize {
		return nil, &vecmath.EncodingError{Layout: "accumulator", Want: CheckpointSize, Got: len(data)}
	}
	sum, err := vecmath.FromBytes(data[:vecmath.EncodedSize])
	if err != nil {
		return nil, err
	}
	comp, err := vecmath.FromBytes(data[vecmath.EncodedSize:])
	if err != nil {
		return nil, err
	}
	return FromState(sum, comp), nil
}

// FromState rebuilds an accumulator from a sum and compensation previously
// read with Sum and Compensation.
func FromState(sum, compensation vecmath.Vec3) *Accumulator {
	return &Accumulator{
		x: Neumaier{sum: sum.X, compensation: compensation.X},
		y: Neumaier{sum: sum.Y, compensation: compensation.Y},
		z: Neumaier{sum: sum.Z, compensation: compensation.Z},
	}
}

// Digest is a SHA-256 over canonical bytes.
type Digest [sha256.Size]byte

func (d Digest) String() string { return hex.EncodeToString(d[:]) }

// Hash digests the canonical bytes of a resolved vector.
func Hash(v vecmath.Vec3) Digest {
	buf := v.Bytes()
	return sha256.Sum256(buf[:])
}

// HashState digests the full accumulator state, so two runs whose resolved
// values agree but whose compensation differs hash differently.
func HashState(a *Accumulator) Digest {
	buf, _ := a.MarshalBinary()
	return sha256.Sum256(buf)
}
