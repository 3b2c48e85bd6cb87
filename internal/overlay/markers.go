package overlay

import (
	"image"
	"image/color"

	"pose-aligner/internal/render"
	"pose-aligner/pkg/colorutil"
	"pose-aligner/pkg/geometry"
)

const (
	cornerRadius    = 5
	axisThickness   = 5
	principalRadius = 3
	principalLabel  = "principal point"
)

// Corners marks each point with a filled dot.
func Corners(c render.Canvas, corners []geometry.Point2D, col color.RGBA) {
	for _, p := range corners {
		c.Circle(p.Truncate(), cornerRadius, col, render.Filled)
	}
}

// Axis draws the projected x, y and z axes from origin. projected must hold
// at least the three axis tips; anything shorter is ignored.
func Axis(c render.Canvas, origin geometry.Point2D, projected []geometry.Point2D, palette colorutil.Palette) {
	if len(projected) < 3 {
		return
	}
	o := origin.Truncate()
	colors := [3]color.RGBA{palette.AxisX, palette.AxisY, palette.AxisZ}
	for i, col := range colors {
		c.Line(o, projected[i].Truncate(), col, axisThickness)
	}
}

// PrincipalPoint marks the optical center of the camera with a labelled dot.
func PrincipalPoint(c render.Canvas, pp geometry.Point2D, col color.RGBA) {
	p := pp.Truncate()
	c.Circle(p, principalRadius, col, render.Filled)
	c.Text(principalLabel, p.Add(image.Pt(10, -10)), 0.5, col, 2)
}
