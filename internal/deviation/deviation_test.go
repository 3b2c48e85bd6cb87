package deviation

import (
	"math"
	"testing"

	"pose-aligner/internal/pose"

	"github.com/golang/geo/r3"
	"github.com/stretchr/testify/assert"
)

func TestAngleDifference(t *testing.T) {
	tests := []struct {
		actual, ref, want float64
	}{
		{350, 5, -15},
		{5, 350, 15},
		{0, 180, -180},
		{180, 0, -180},
		{0, 359, 1},
		{10, 10, 0},
		{90, 270, -180},
		{359.5, 0.25, -0.75},
	}
	for _, tt := range tests {
		assert.InDelta(t, tt.want, AngleDifference(tt.actual, tt.ref), 1e-9, "%v - %v", tt.actual, tt.ref)
	}
}

func TestAngleDifferenceRange(t *testing.T) {
	for a := 0.0; a < 360; a += 7.5 {
		for b := 0.0; b < 360; b += 11.25 {
			d := AngleDifference(a, b)
			assert.GreaterOrEqual(t, d, -180.0)
			assert.LessOrEqual(t, d, 180.0)
		}
	}
}

func TestAngleDeviationPropagatesUnavailable(t *testing.T) {
	assert.False(t, AngleDeviation(None, Of(5)).Available())
	assert.False(t, AngleDeviation(Of(5), Of(math.NaN())).Available())
	assert.False(t, DistanceDeviation(Of(1), None).Available())

	v, ok := DistanceDeviation(Of(3), Of(1)).Value()
	assert.True(t, ok)
	assert.Equal(t, 2.0, v)
}

func TestCompare(t *testing.T) {
	assert.Equal(t, Below, Of(0.49).Compare(0.5))
	assert.Equal(t, Above, Of(0.5).Compare(0.5))
	assert.Equal(t, Above, Of(-0.7).Compare(0.5))
	assert.Equal(t, Unavailable, None.Compare(0.5))

	assert.Equal(t, Below, Of(0.5).CompareInclusive(0.5))
	assert.Equal(t, Above, Of(0.51).CompareInclusive(0.5))
	assert.Equal(t, Unavailable, Of(math.NaN()).CompareInclusive(0.5))
}

func TestWithinTolerance(t *testing.T) {
	half := TripleOf(0.5, 0.5, 0.5)
	assert.False(t, WithinTolerance(half, half, 0.5), "boundary is exclusive")

	near := TripleOf(0.49, 0.49, 0.49)
	assert.True(t, WithinTolerance(near, near, 0.5))

	withGap := Triple{Of(0.1), None, Of(0.1)}
	assert.False(t, WithinTolerance(withGap, near, 0.5))
	assert.False(t, WithinTolerance(near, withGap, 0.5))
	assert.False(t, WithinTolerance(TripleOf(0.1, math.NaN(), 0.1), near, 0.5))
}

func TestDeviationAligned(t *testing.T) {
	d := Deviation{Angle: TripleOf(0.5, 0, 0), Distance: TripleOf(0, -0.5, 0)}
	assert.True(t, d.Aligned(0.5))
	assert.False(t, d.Within(0.5))
	assert.False(t, Deviation{}.Aligned(0.5))
}

func TestComputeDistancesOutsideTolerance(t *testing.T) {
	m := Measurement{Distances: TripleOf(1, 2, 3), Angles: TripleOf(0, 0, 0)}
	ref := &pose.Reference{}

	d := Compute(m, ref)
	for i, want := range []float64{1, 2, 3} {
		v, ok := d.Distance[i].Value()
		assert.True(t, ok)
		assert.Equal(t, want, v)
	}
	assert.False(t, d.Within(0.5))
}

func TestComputeWithoutReference(t *testing.T) {
	m := Measurement{Distances: TripleOf(1, 2, 3), Angles: TripleOf(4, 5, 6)}
	d := Compute(m, nil)
	assert.Equal(t, Unknown, d.Angle)
	assert.Equal(t, Unknown, d.Distance)
}

func TestComputeBeforeFirstDetection(t *testing.T) {
	ref := &pose.Reference{Distances: r3.Vector{X: 1}, Angles: pose.EulerAngles{Roll: 10}}
	d := Compute(Measurement{}, ref)
	assert.False(t, d.Within(1000))
	assert.False(t, d.Angle[AxisX].Available())
}

func TestMeasure(t *testing.T) {
	m := Measure(pose.Pose{
		Rotation:    r3.Vector{Z: -math.Pi / 2},
		Translation: r3.Vector{X: 1, Y: 2, Z: 300},
	})
	z, _ := m.Distances.At(AxisZ).Value()
	yaw, _ := m.Angles.At(AxisZ).Value()
	assert.Equal(t, 300.0, z)
	assert.InDelta(t, 270, yaw, 1e-9)
}

func TestScalarFormat(t *testing.T) {
	assert.Equal(t, "NA", None.Format("NA"))
	assert.Equal(t, "-1.24", Of(-1.236).Format("NA"))
	assert.True(t, math.IsNaN(None.Float()))
}
