package vision

import "pose-aligner/pkg/geometry"

// Detection is what a backend reports for one frame. Rotation and
// Translation are only meaningful when Found is set.
type Detection struct {
	Found       bool
	Corners     []geometry.Point2D // refined, in detector order
	Rotation    []float64          // axis-angle
	Translation []float64
	Inverted    bool
}

// Locate builds a Detection from refined corners by solving the board pose.
func Locate(corners []geometry.Point2D, pattern Pattern, in *Intrinsics) (Detection, error) {
	p, err := SolvePlanar(pattern.ObjectPoints(), corners, in)
	if err != nil {
		return Detection{}, err
	}
	return Detection{
		Found:       true,
		Corners:     corners,
		Rotation:    []float64{p.Rotation.X, p.Rotation.Y, p.Rotation.Z},
		Translation: []float64{p.Translation.X, p.Translation.Y, p.Translation.Z},
		Inverted:    Inverted(corners, pattern.Rows, pattern.Cols),
	}, nil
}
