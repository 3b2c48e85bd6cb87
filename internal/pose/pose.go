// Package pose holds the pose types produced by the vision backend and the
// conversion from axis-angle rotations to Euler angles.
package pose

import (
	"errors"
	"fmt"
	"math"

	"pose-aligner/pkg/geometry"

	"github.com/golang/geo/r3"
	"gonum.org/v1/gonum/mat"
)

// ErrInvalidInput is returned when a rotation or translation does not have
// exactly three components.
var ErrInvalidInput = errors.New("invalid pose input")

// singularThreshold is the sy value below which the rotation is treated as gimbal locked.
const singularThreshold = 1e-6

// Pose is a single per-frame estimate: an axis-angle rotation plus a translation
// in the units of the pattern's square size.
type Pose struct {
	Rotation    r3.Vector
	Translation r3.Vector
}

// EulerAngles are roll, pitch and yaw in degrees, each in [0, 360).
type EulerAngles struct {
	Roll  float64 `json:"roll"`
	Pitch float64 `json:"pitch"`
	Yaw   float64 `json:"yaw"`
}

// Slice returns the angles in roll, pitch, yaw order.
func (e EulerAngles) Slice() [3]float64 {
	return [3]float64{e.Roll, e.Pitch, e.Yaw}
}

// Reference is the stored pose the operator aligns against. It is loaded once
// per session and never modified.
type Reference struct {
	Corners   []geometry.Point2D
	Distances r3.Vector
	Angles    EulerAngles
}

// ParseVector normalizes a rotation or translation as returned by the vision
// backend. Both a flat 3-vector and a 3x1 column arrive as three values; any
// other length is rejected.
func ParseVector(values []float64) (r3.Vector, error) {
	if len(values) != 3 {
		return r3.Vector{}, fmt.Errorf("%w: expected 3 components, got %d", ErrInvalidInput, len(values))
	}
	return r3.Vector{X: values[0], Y: values[1], Z: values[2]}, nil
}

// FromVectors builds a Pose from raw rotation and translation components.
func FromVectors(rotation, translation []float64) (Pose, error) {
	r, err := ParseVector(rotation)
	if err != nil {
		return Pose{}, fmt.Errorf("rotation: %w", err)
	}
	t, err := ParseVector(translation)
	if err != nil {
		return Pose{}, fmt.Errorf("translation: %w", err)
	}
	return Pose{Rotation: r, Translation: t}, nil
}

// Rodrigues expands an axis-angle vector into a 3x3 rotation matrix.
func Rodrigues(v r3.Vector) *mat.Dense {
	theta := v.Norm()
	if theta < 1e-12 {
		return identity()
	}
	k := v.Mul(1 / theta)
	c, s := math.Cos(theta), math.Sin(theta)

	r := mat.NewDense(3, 3, nil)
	r.Scale(c, identity())

	kv := mat.NewVecDense(3, []float64{k.X, k.Y, k.Z})
	var outer mat.Dense
	outer.Outer(1-c, kv, kv)
	r.Add(r, &outer)

	cross := mat.NewDense(3, 3, []float64{
		0, -k.Z, k.Y,
		k.Z, 0, -k.X,
		-k.Y, k.X, 0,
	})
	cross.Scale(s, cross)
	r.Add(r, cross)
	return r
}

func identity() *mat.Dense {
	return mat.NewDense(3, 3, []float64{1, 0, 0, 0, 1, 0, 0, 0, 1})
}

// ToEuler converts an axis-angle rotation to roll, pitch and yaw.
func ToEuler(v r3.Vector) EulerAngles {
	return FromMatrix(Rodrigues(v))
}

// FromMatrix decomposes a rotation matrix. When the matrix is gimbal locked
// yaw is fixed at zero and roll absorbs the remaining rotation.
func FromMatrix(r mat.Matrix) EulerAngles {
	sy := math.Hypot(r.At(0, 0), r.At(1, 0))

	var roll, pitch, yaw float64
	if sy >= singularThreshold {
		roll = math.Atan2(r.At(2, 1), r.At(2, 2))
		pitch = math.Atan2(-r.At(2, 0), sy)
		yaw = math.Atan2(r.At(1, 0), r.At(0, 0))
	} else {
		roll = math.Atan2(-r.At(1, 2), r.At(1, 1))
		pitch = math.Atan2(-r.At(2, 0), sy)
		yaw = 0
	}
	return EulerAngles{
		Roll:  normalizeDegrees(roll),
		Pitch: normalizeDegrees(pitch),
		Yaw:   normalizeDegrees(yaw),
	}
}

// EulerFromRotation is ToEuler for raw backend output.
func EulerFromRotation(values []float64) (EulerAngles, error) {
	v, err := ParseVector(values)
	if err != nil {
		return EulerAngles{}, err
	}
	return ToEuler(v), nil
}

func normalizeDegrees(rad float64) float64 {
	d := rad * 180 / math.Pi
	if d < 0 {
		d += 360
	}
	// A tiny negative value rounds to exactly 360 after the shift.
	if d >= 360 {
		d -= 360
	}
	if d == 0 {
		return 0 // drop negative zero
	}
	return d
}

// AxisAngle is the inverse of Rodrigues: it recovers the axis-angle vector of
// a rotation matrix.
func AxisAngle(r mat.Matrix) r3.Vector {
	w := r3.Vector{
		X: r.At(2, 1) - r.At(1, 2),
		Y: r.At(0, 2) - r.At(2, 0),
		Z: r.At(1, 0) - r.At(0, 1),
	}
	c := (r.At(0, 0) + r.At(1, 1) + r.At(2, 2) - 1) / 2
	c = math.Max(-1, math.Min(1, c))
	theta := math.Acos(c)

	switch {
	case theta < 1e-9:
		return w.Mul(0.5)
	case math.Pi-theta < 1e-6:
		// sin(theta) vanishes; read the axis off the symmetric part.
		k := r3.Vector{
			X: math.Sqrt(math.Max(0, (r.At(0, 0)+1)/2)),
			Y: math.Sqrt(math.Max(0, (r.At(1, 1)+1)/2)),
			Z: math.Sqrt(math.Max(0, (r.At(2, 2)+1)/2)),
		}
		switch {
		case k.X >= k.Y && k.X >= k.Z:
			k.Y = math.Copysign(k.Y, r.At(0, 1))
			k.Z = math.Copysign(k.Z, r.At(0, 2))
		case k.Y >= k.Z:
			k.X = math.Copysign(k.X, r.At(0, 1))
			k.Z = math.Copysign(k.Z, r.At(1, 2))
		default:
			k.X = math.Copysign(k.X, r.At(0, 2))
			k.Y = math.Copysign(k.Y, r.At(1, 2))
		}
		return k.Normalize().Mul(theta)
	default:
		return w.Mul(theta / (2 * math.Sin(theta)))
	}
}
