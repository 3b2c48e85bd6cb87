// Package overlay draws the operator-facing overlays: the navigation ball,
// measurement text, menu, corner markers and axis projections.
package overlay

import (
	"fmt"
	"image"
	"image/color"
	"math"
	"strings"

	"pose-aligner/internal/deviation"
	"pose-aligner/internal/render"
	"pose-aligner/pkg/colorutil"
	"pose-aligner/pkg/geometry"
)

// Navigation ball drawing constants, in pixels.
const (
	lineThickness  = 2
	offsetStep     = 10
	dashLen        = 10
	dashGap        = 10
	circleArrowLen = 10
	maxArrowLen    = 90
	fixedTipLen    = 10
	centerDot      = 5
	labelScale     = 0.5
	labelRowStep   = 30
	distanceLabelX = 100 // from the ball center
)

// Style is the static configuration of the navigation ball.
type Style struct {
	WidgetSize      int
	BallColor       color.RGBA
	BackgroundColor color.RGBA
	Palette         colorutil.Palette
	Tolerance       float64
	DistanceUnit    string
	AngleUnit       string
}

// NavigationBall draws a three-axis gimbal with one rotation arc and one
// translation arrow per axis whose deviation exceeds the tolerance.
type NavigationBall struct {
	style Style

	imageHeight int
	offset      image.Point
	center      image.Point
	radius      int
}

// NewNavigationBall lays out the widget in the bottom-left corner of an
// image of the given height.
func NewNavigationBall(imageHeight int, style Style) *NavigationBall {
	nb := &NavigationBall{style: style}
	nb.layout(imageHeight)
	return nb
}

func (nb *NavigationBall) layout(imageHeight int) {
	size := nb.style.WidgetSize
	nb.imageHeight = imageHeight
	nb.offset = image.Pt(offsetStep, imageHeight-size-offsetStep)
	nb.center = image.Pt(nb.offset.X+size/2, nb.offset.Y+size/2)
	nb.radius = size / 3
}

// Center returns the widget center.
func (nb *NavigationBall) Center() image.Point { return nb.center }

// Radius returns the ball radius.
func (nb *NavigationBall) Radius() int { return nb.radius }

// Show draws the template and every highlight for dev. The geometry follows
// the canvas height, so a frame of a different size relays out the widget.
func (nb *NavigationBall) Show(c render.Canvas, dev deviation.Deviation) {
	if h := c.Bounds().Dy(); h != nb.imageHeight {
		nb.layout(h)
	}

	nb.drawTemplate(c)
	for _, a := range deviation.Axes {
		nb.highlightAngle(c, a, dev.Angle.At(a))
	}
	for _, a := range deviation.Axes {
		nb.highlightDistance(c, a, dev.Distance.At(a))
	}
	if dev.Aligned(nb.style.Tolerance) {
		c.Circle(nb.center, centerDot, nb.style.Palette.Aligned, render.Filled)
	}
}

func (nb *NavigationBall) drawTemplate(c render.Canvas) {
	s := nb.style
	size := s.WidgetSize
	r := nb.radius
	flat := int(float64(r) * 0.3)
	diag := int(float64(r) * 0.7)
	cx, cy := nb.center.X, nb.center.Y

	c.Rectangle(image.Rectangle{Min: nb.offset, Max: nb.offset.Add(image.Pt(size, size))}, s.BackgroundColor, render.Filled)
	c.Circle(nb.center, r, s.BallColor, lineThickness)
	c.Ellipse(nb.center, image.Pt(r, flat), 0, 360, s.BallColor, lineThickness)
	c.Ellipse(nb.center, image.Pt(flat, r), 0, 360, s.BallColor, lineThickness)

	crosshairs := [][2]image.Point{
		{image.Pt(cx-r, cy), image.Pt(cx+r, cy)},
		{image.Pt(cx, cy-r), image.Pt(cx, cy+r)},
		{image.Pt(cx-diag, cy-diag), image.Pt(cx+diag, cy+diag)},
	}
	for _, l := range crosshairs {
		render.DashedLine(c, l[0], l[1], s.BallColor, lineThickness, dashLen, dashGap)
	}
	c.Circle(nb.center, centerDot, s.BallColor, render.Filled)
}

func (nb *NavigationBall) axisColor(a deviation.Axis) color.RGBA {
	switch a {
	case deviation.AxisX:
		return nb.style.Palette.AxisX
	case deviation.AxisY:
		return nb.style.Palette.AxisY
	default:
		return nb.style.Palette.AxisZ
	}
}

func (nb *NavigationBall) labelY(a deviation.Axis) int {
	return labelRowStep + nb.imageHeight - nb.style.WidgetSize + int(a)*labelRowStep
}

func (nb *NavigationBall) label(c render.Canvas, a deviation.Axis, x int, v deviation.Scalar, unit string) {
	text := fmt.Sprintf("%s: %s %s", strings.ToLower(a.String()), v.Format(Placeholder), unit)
	c.Text(text, image.Pt(x, nb.labelY(a)), labelScale, nb.axisColor(a), 1)
}

// arc describes the rotation arc for one axis.
type arc struct {
	startDeg float64
	// clockwise arcs subtract the step from the start angle.
	clockwise bool
	axes      image.Point
}

func (nb *NavigationBall) arcFor(a deviation.Axis) arc {
	r := nb.radius
	flat := int(float64(r) * 0.3)
	switch a {
	case deviation.AxisX:
		return arc{startDeg: -90, clockwise: true, axes: image.Pt(flat, r)}
	case deviation.AxisY:
		return arc{startDeg: 180, clockwise: false, axes: image.Pt(r, flat)}
	default:
		return arc{startDeg: 0, clockwise: true, axes: image.Pt(r, r)}
	}
}

func (nb *NavigationBall) highlightAngle(c render.Canvas, a deviation.Axis, v deviation.Scalar) {
	nb.label(c, a, 30, v, nb.style.AngleUnit)

	if v.CompareInclusive(nb.style.Tolerance) != deviation.Above {
		return
	}
	value, _ := v.Value()

	// A full turn already draws the whole ellipse.
	step := math.Trunc(math.Max(-360, math.Min(360, value/nb.style.Tolerance)))
	ar := nb.arcFor(a)
	end := ar.startDeg + step
	if ar.clockwise {
		end = ar.startDeg - step
	}
	col := nb.axisColor(a)
	c.Ellipse(nb.center, ar.axes, ar.startDeg, end, col, lineThickness+1)

	tip, tail := nb.rotationArrow(a, value)
	render.Arrow(c, tip, tail, col, lineThickness, 1)
}

// rotationArrow returns the two arrow endpoints drawn beside the arc of
// axis a. The arrow head sits at the second point.
func (nb *NavigationBall) rotationArrow(a deviation.Axis, value float64) (tip, end image.Point) {
	cx, cy, r := nb.center.X, nb.center.Y, nb.radius
	switch a {
	case deviation.AxisX:
		rise := int(float64(circleArrowLen) * 0.5)
		if value < 0 {
			tip = image.Pt(cx+circleArrowLen, cy-r+circleArrowLen/2)
			end = image.Pt(tip.X-circleArrowLen, tip.Y-rise)
		} else {
			tip = image.Pt(cx-circleArrowLen, cy-r+circleArrowLen/2)
			end = image.Pt(tip.X+circleArrowLen, tip.Y-rise)
		}
	case deviation.AxisY:
		l := circleArrowLen / 2
		drop := int(float64(l) * 2.4)
		if value > 0 {
			tip = image.Pt(cx-r+l, cy-l-(l+2))
			end = image.Pt(tip.X-l, tip.Y+drop)
		} else {
			tip = image.Pt(cx-r+l, cy+drop)
			end = image.Pt(tip.X-l, tip.Y-l-(l+2))
		}
	case deviation.AxisZ:
		if value > 0 {
			tip = image.Pt(cx+r, cy-circleArrowLen)
			end = image.Pt(tip.X, tip.Y+circleArrowLen)
		} else {
			tip = image.Pt(cx+r, cy+circleArrowLen)
			end = image.Pt(tip.X, tip.Y-circleArrowLen)
		}
	}
	return tip, end
}

func (nb *NavigationBall) highlightDistance(c render.Canvas, a deviation.Axis, v deviation.Scalar) {
	nb.label(c, a, nb.center.X+distanceLabelX, v, nb.style.DistanceUnit)

	if v.CompareInclusive(nb.style.Tolerance) != deviation.Above {
		return
	}
	value, _ := v.Value()

	length := int(math.Min(math.Abs(value)/maxArrowLen, 1) * float64(nb.radius))
	if a == deviation.AxisZ {
		length = int(float64(length) * 0.7)
	}
	end := nb.translationEnd(a, value, length)
	tip := TipLength(nb.center, end)
	render.Arrow(c, end, nb.center, nb.axisColor(a), lineThickness, tip)
}

// translationEnd is the tail of the translation arrow for axis a. The arrow
// always points back at the ball center.
func (nb *NavigationBall) translationEnd(a deviation.Axis, value float64, length int) image.Point {
	d := -length
	if value > 0 {
		d = length
	}
	switch a {
	case deviation.AxisX:
		return nb.center.Add(image.Pt(d, 0))
	case deviation.AxisY:
		return nb.center.Add(image.Pt(0, d))
	default:
		return nb.center.Add(image.Pt(d, d))
	}
}

// TipLength converts the fixed arrow-head size into the proportional tip
// length for an arrow between center and end. A zero-length shaft gives 0.
func TipLength(center, end image.Point) float64 {
	return geometry.TipRatio(end, center, fixedTipLen)
}
