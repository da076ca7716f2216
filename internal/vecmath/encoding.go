package vecmath

import (
	"encoding/binary"
	"math"
)

// EncodedSize is the length of the canonical binary form of a Vec3.
const EncodedSize = 24

// Bytes returns X, Y and Z as little-endian IEEE-754 doubles.
func (v Vec3) Bytes() [EncodedSize]byte {
	var buf [EncodedSize]byte
	binary.LittleEndian.PutUint64(buf[0:8], math.Float64bits(v.X))
	binary.LittleEndian.PutUint64(buf[8:16], math.Float64bits(v.Y))
	binary.LittleEndian.PutUint64(buf[16:24], math.Float64bits(v.Z))
	return buf
}

// AppendBinary appends the canonical 24-byte form of v to b.
func (v Vec3) AppendBinary(b []byte) ([]byte, error) {
	buf := v.Bytes()
	return append(b, buf[:]...), nil
}

// MarshalBinary implements encoding.BinaryMarshaler.
func (v Vec3) MarshalBinary() ([]byte, error) {
	return v.AppendBinary(make([]byte, 0, EncodedSize))
}

// UnmarshalBinary implements encoding.BinaryUnmarshaler. v is left
// unchanged when data is not exactly EncodedSize bytes.
func (v *Vec3) UnmarshalBinary(data []byte) error {
	decoded, err := FromBytes(data)
	if err != nil {
		return err
	}
	*v = decoded
	return nil
}

// FromBytes decodes the canonical form. Any 24-byte buffer is valid,
// including NaN encodings; any other length fails with ErrMalformedEncoding.
func FromBytes(data []byte) (Vec3, error) {
	if len(data) != EncodedSize {
		return Vec3{}, &EncodingError{Layout: "vec3", Want: EncodedSize, Got: len(data)}
	}
	return Vec3{
		X: math.Float64frombits(binary.LittleEndian.Uint64(data[0:8])),
		Y: math.Float64frombits(binary.LittleEndian.Uint64(data[8:16])),
		Z: math.Float64frombits(binary.LittleEndian.Uint64(data[16:24])),
	}, nil
}
