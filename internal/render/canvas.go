// Package render defines the drawing surface shared by every overlay.
//
// A Canvas is owned by exactly one frame iteration. Renderers draw into it
// in turn and must not keep it after they return.
package render

import (
	"image"
	"image/color"

	"pose-aligner/pkg/geometry"
)

// Filled passed as thickness fills the shape.
const Filled = -1

// Canvas is a mutable image that overlays draw onto. Coordinates follow the
// image convention: origin top left, y growing downward. Text is anchored at
// the bottom-left corner of its first glyph.
type Canvas interface {
	Bounds() image.Rectangle
	Line(from, to image.Point, c color.RGBA, thickness int)
	Circle(center image.Point, radius int, c color.RGBA, thickness int)
	// Ellipse draws the arc of an axis-aligned ellipse between two angles
	// given in degrees. 0 to 360 draws the full outline.
	Ellipse(center, axes image.Point, startDeg, endDeg float64, c color.RGBA, thickness int)
	Rectangle(r image.Rectangle, c color.RGBA, thickness int)
	Text(s string, org image.Point, scale float64, c color.RGBA, thickness int)
}

// Arrow draws a line from `from` to `to` with a head at `to`. tipLength is
// the barb length as a fraction of the shaft length.
func Arrow(c Canvas, from, to image.Point, col color.RGBA, thickness int, tipLength float64) {
	c.Line(from, to, col, thickness)
	left, right := geometry.ArrowHead(from, to, tipLength)
	c.Line(left, to, col, thickness)
	c.Line(right, to, col, thickness)
}

// DashedLine draws the dashes geometry.DashSegments computes for the line.
func DashedLine(c Canvas, from, to image.Point, col color.RGBA, thickness int, dashLen, gapLen float64) {
	for _, s := range geometry.DashSegments(from, to, dashLen, gapLen) {
		c.Line(s.From, s.To, col, thickness)
	}
}
