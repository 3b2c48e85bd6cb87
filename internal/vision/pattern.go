package vision

import (
	"pose-aligner/pkg/geometry"

	"github.com/golang/geo/r3"
)

// Pattern describes the inner-corner grid of a chessboard target.
type Pattern struct {
	Rows       int     `json:"rows"`
	Cols       int     `json:"cols"`
	SquareSize float64 `json:"square_size"`
}

// Size returns the corner count.
func (p Pattern) Size() int { return p.Rows * p.Cols }

// ObjectPoints returns the board corners in board coordinates, z = 0, in the
// order the detector reports them: rows vary fastest.
func (p Pattern) ObjectPoints() []r3.Vector {
	pts := make([]r3.Vector, 0, p.Size())
	for j := 0; j < p.Cols; j++ {
		for i := 0; i < p.Rows; i++ {
			pts = append(pts, r3.Vector{
				X: float64(i) * p.SquareSize,
				Y: float64(j) * p.SquareSize,
			})
		}
	}
	return pts
}

// AxisPoints returns the tips of a coordinate frame of the given length
// drawn on the board. z points out of the board toward the camera.
func AxisPoints(length float64) []r3.Vector {
	return []r3.Vector{
		{X: length},
		{Y: length},
		{Z: -length},
	}
}

// Inverted reports whether the detected corners run backwards along both
// board directions, which means the board is seen upside down.
func Inverted(corners []geometry.Point2D, rows, cols int) bool {
	last := rows * (cols - 1)
	if rows < 2 || cols < 2 || len(corners) <= last {
		return false
	}
	origin := corners[0]
	horizontal := corners[rows-1].Sub(origin)
	vertical := corners[last].Sub(origin)
	return horizontal.X <= 0 && vertical.Y <= 0
}
