// Package deviation compares a live pose against the stored reference.
//
// Every value can be unavailable: before the first successful detection, or
// when no reference is loaded, there is nothing to compare. Unavailable
// values are carried as an explicit state rather than as NaN, so tolerance
// checks can never accidentally pass on missing data.
package deviation

import (
	"fmt"
	"math"

	"pose-aligner/internal/pose"

	"github.com/golang/geo/r3"
)

// Scalar is a value that may be unavailable. The zero value is unavailable.
type Scalar struct {
	v  float64
	ok bool
}

// Of wraps v. NaN and infinities become unavailable.
func Of(v float64) Scalar {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return Scalar{}
	}
	return Scalar{v: v, ok: true}
}

// None is the unavailable value.
var None = Scalar{}

// Value returns the wrapped value and whether it is available.
func (s Scalar) Value() (float64, bool) { return s.v, s.ok }

// Available reports whether the value is present.
func (s Scalar) Available() bool { return s.ok }

// Float returns the value, or NaN when unavailable. Use only at output
// boundaries such as text formatting.
func (s Scalar) Float() float64 {
	if !s.ok {
		return math.NaN()
	}
	return s.v
}

// Abs returns |s|.
func (s Scalar) Abs() Scalar {
	if !s.ok {
		return s
	}
	return Scalar{v: math.Abs(s.v), ok: true}
}

// Format renders the value with two decimals, or placeholder when unavailable.
func (s Scalar) Format(placeholder string) string {
	if !s.ok {
		return placeholder
	}
	return fmt.Sprintf("%.2f", s.v)
}

// ToleranceState is the outcome of comparing a value against a tolerance.
type ToleranceState int

const (
	Unavailable ToleranceState = iota
	Below
	Above
)

func (t ToleranceState) String() string {
	switch t {
	case Below:
		return "below"
	case Above:
		return "above"
	default:
		return "unavailable"
	}
}

// Compare reports whether |s| < tol.
func (s Scalar) Compare(tol float64) ToleranceState {
	if !s.ok {
		return Unavailable
	}
	if math.Abs(s.v) < tol {
		return Below
	}
	return Above
}

// CompareInclusive reports whether |s| <= tol. The navigation overlay uses
// this form to decide whether an axis needs a highlight.
func (s Scalar) CompareInclusive(tol float64) ToleranceState {
	if !s.ok {
		return Unavailable
	}
	if math.Abs(s.v) <= tol {
		return Below
	}
	return Above
}

// Axis identifies one of the three pose axes.
type Axis int

const (
	AxisX Axis = iota
	AxisY
	AxisZ
)

// Axes lists all axes in display order.
var Axes = [3]Axis{AxisX, AxisY, AxisZ}

func (a Axis) String() string {
	switch a {
	case AxisX:
		return "X"
	case AxisY:
		return "Y"
	case AxisZ:
		return "Z"
	}
	return fmt.Sprintf("Axis(%d)", int(a))
}

// Triple holds one Scalar per axis.
type Triple [3]Scalar

// Unknown is a Triple with all components unavailable.
var Unknown = Triple{}

// TripleOf wraps three plain values.
func TripleOf(x, y, z float64) Triple {
	return Triple{Of(x), Of(y), Of(z)}
}

// FromVector wraps an r3.Vector.
func FromVector(v r3.Vector) Triple {
	return TripleOf(v.X, v.Y, v.Z)
}

// FromAngles wraps Euler angles as roll, pitch, yaw.
func FromAngles(e pose.EulerAngles) Triple {
	return TripleOf(e.Roll, e.Pitch, e.Yaw)
}

// At returns the component for axis a.
func (t Triple) At(a Axis) Scalar { return t[a] }

// AngleDifference returns actual-reference wrapped into [-180, 180).
func AngleDifference(actual, reference float64) float64 {
	d := math.Mod(actual-reference+180, 360)
	if d < 0 {
		d += 360
	}
	return d - 180
}

// AngleDeviation is AngleDifference for possibly unavailable values.
func AngleDeviation(actual, reference Scalar) Scalar {
	a, okA := actual.Value()
	r, okR := reference.Value()
	if !okA || !okR {
		return None
	}
	return Of(AngleDifference(a, r))
}

// DistanceDeviation is plain subtraction for possibly unavailable values.
func DistanceDeviation(actual, reference Scalar) Scalar {
	a, okA := actual.Value()
	r, okR := reference.Value()
	if !okA || !okR {
		return None
	}
	return Of(a - r)
}

// Angles applies AngleDeviation per axis.
func Angles(actual, reference Triple) Triple {
	var out Triple
	for i := range out {
		out[i] = AngleDeviation(actual[i], reference[i])
	}
	return out
}

// Distances applies DistanceDeviation per axis.
func Distances(actual, reference Triple) Triple {
	var out Triple
	for i := range out {
		out[i] = DistanceDeviation(actual[i], reference[i])
	}
	return out
}

// WithinTolerance reports whether every component of both triples is
// available and strictly below tol.
func WithinTolerance(distance, angle Triple, tol float64) bool {
	for i := range distance {
		if distance[i].Compare(tol) != Below || angle[i].Compare(tol) != Below {
			return false
		}
	}
	return true
}

// Deviation is the per-frame difference between the live pose and the reference.
type Deviation struct {
	Angle    Triple
	Distance Triple
}

// Within reports whether all six components are strictly inside tol.
func (d Deviation) Within(tol float64) bool {
	return WithinTolerance(d.Distance, d.Angle, tol)
}

// Aligned is Within with an inclusive bound.
func (d Deviation) Aligned(tol float64) bool {
	for i := range d.Angle {
		if d.Angle[i].CompareInclusive(tol) != Below || d.Distance[i].CompareInclusive(tol) != Below {
			return false
		}
	}
	return true
}

// Measurement is the live numeric state shown to the operator: the last
// solved distances and angles.
type Measurement struct {
	Distances Triple
	Angles    Triple
}

// Measure converts a solved pose into displayable distances and angles.
func Measure(p pose.Pose) Measurement {
	return Measurement{
		Distances: FromVector(p.Translation),
		Angles:    FromAngles(pose.ToEuler(p.Rotation)),
	}
}

// Compute returns the deviation of m from ref. A nil reference yields an
// all-unavailable deviation.
func Compute(m Measurement, ref *pose.Reference) Deviation {
	if ref == nil {
		return Deviation{}
	}
	return Deviation{
		Angle:    Angles(m.Angles, FromAngles(ref.Angles)),
		Distance: Distances(m.Distances, FromVector(ref.Distances)),
	}
}
