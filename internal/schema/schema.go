// Package schema maps vectors and accumulator state to named-field
// documents for JSON and YAML output.
//
// These documents are for inspection and interchange only. Text encodings
// of floats are not byte-stable, so never hash them; use the binary form
// from package vecmath or drift instead.
package schema

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/san-kum/driftsim/internal/drift"
	"github.com/san-kum/driftsim/internal/vecmath"
)

var ErrUnknownFormat = errors.New("schema: unknown format")

// ErrNonFinite is returned by Encode for JSON documents holding NaN or Inf,
// which JSON cannot represent.
var ErrNonFinite = errors.New("schema: non-finite value cannot be encoded as json")

type Format string

const (
	JSON Format = "json"
	YAML Format = "yaml"
)

// ParseFormat accepts "json", "yaml" or "yml", case-insensitively.
func ParseFormat(s string) (Format, error) {
	switch strings.ToLower(s) {
	case "json":
		return JSON, nil
	case "yaml", "yml":
		return YAML, nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownFormat, s)
}

type VectorDoc struct {
	X float64 `json:"x" yaml:"x"`
	Y float64 `json:"y" yaml:"y"`
	Z float64 `json:"z" yaml:"z"`
}

func FromVec3(v vecmath.Vec3) VectorDoc { return VectorDoc{X: v.X, Y: v.Y, Z: v.Z} }
func (d VectorDoc) Vec3() vecmath.Vec3  { return vecmath.New(d.X, d.Y, d.Z) }

func (d VectorDoc) finite() bool { return d.Vec3().IsFinite() }

// AccumulatorDoc is a readable view of an accumulator. Resolved is derived
// and ignored when converting back.
type AccumulatorDoc struct {
	Sum          VectorDoc `json:"sum" yaml:"sum"`
	Compensation VectorDoc `json:"compensation" yaml:"compensation"`
	Resolved     VectorDoc `json:"resolved" yaml:"resolved"`
}

func FromAccumulator(a *drift.Accumulator) AccumulatorDoc {
	return AccumulatorDoc{
		Sum:          FromVec3(a.Sum()),
		Compensation: FromVec3(a.Compensation()),
		Resolved:     FromVec3(a.Resolve()),
	}
}

// Accumulator rebuilds the accumulator from Sum and Compensation. The result
// is exact only if the document came from a lossless round trip.
func (d AccumulatorDoc) Accumulator() *drift.Accumulator {
	return drift.FromState(d.Sum.Vec3(), d.Compensation.Vec3())
}

// Encode writes doc to w in the given format.
func Encode(w io.Writer, format Format, doc any) error {
	switch format {
	case JSON:
		if !jsonSafe(doc) {
			return ErrNonFinite
		}
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(doc)
	case YAML:
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(doc); err != nil {
			return err
		}
		return enc.Close()
	}
	return fmt.Errorf("%w: %q", ErrUnknownFormat, format)
}

// Decode reads a single document of the given format from r into out.
func Decode(r io.Reader, format Format, out any) error {
	switch format {
	case JSON:
		return json.NewDecoder(r).Decode(out)
	case YAML:
		return yaml.NewDecoder(r).Decode(out)
	}
	return fmt.Errorf("%w: %q", ErrUnknownFormat, format)
}

func jsonSafe(doc any) bool {
	switch d := doc.(type) {
	case VectorDoc:
		return d.finite()
	case *VectorDoc:
		return d.finite()
	case AccumulatorDoc:
		return d.Sum.finite() && d.Compensation.finite() && d.Resolved.finite()
	case *AccumulatorDoc:
		return d.Sum.finite() && d.Compensation.finite() && d.Resolved.finite()
	case float64:
		return !math.IsNaN(d) && !math.IsInf(d, 0)
	}
	return true
}
