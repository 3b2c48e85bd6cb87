package geometry

import (
	"image"
	"math"
)

// Segment is a straight pixel segment between two endpoints.
type Segment struct {
	From, To image.Point
}

// DashCount returns how many dashes fit on a line of the given length when
// each dash is followed by a gap.
func DashCount(length, dashLen, gapLen float64) int {
	period := dashLen + gapLen
	if period <= 0 || length <= 0 {
		return 0
	}
	return int(math.Floor(length / period))
}

// DashSegments splits the line from start to end into dashes. Dash i covers
// the parametric interval [i/n, (i+0.5)/n] of the line, so every dash spans
// half of one dash+gap period and the rest is left blank.
func DashSegments(start, end image.Point, dashLen, gapLen float64) []Segment {
	n := DashCount(PixelDistance(start, end), dashLen, gapLen)
	if n == 0 {
		return nil
	}

	dx := float64(end.X - start.X)
	dy := float64(end.Y - start.Y)
	at := func(t float64) image.Point {
		return image.Point{
			X: int(float64(start.X) + dx*t),
			Y: int(float64(start.Y) + dy*t),
		}
	}

	segments := make([]Segment, 0, n)
	for i := 0; i < n; i++ {
		segments = append(segments, Segment{
			From: at(float64(i) / float64(n)),
			To:   at((float64(i) + 0.5) / float64(n)),
		})
	}
	return segments
}

// EllipseArc approximates an axis-aligned elliptic arc with a polyline for
// canvases that have no native ellipse, such as render.RGBACanvas.
// Angles are in degrees, measured clockwise in image coordinates from the
// positive x axis. A reversed span is swapped, matching how OpenCV draws arcs.
func EllipseArc(center, axes image.Point, startDeg, endDeg float64, deltaDeg int) []image.Point {
	if deltaDeg <= 0 {
		deltaDeg = 1
	}
	if startDeg > endDeg {
		startDeg, endDeg = endDeg, startDeg
	}
	if math.IsNaN(startDeg) || math.IsNaN(endDeg) {
		return nil
	}
	if endDeg-startDeg >= 360 {
		startDeg, endDeg = 0, 360
	} else {
		off := math.Mod(startDeg, 360)
		if off < 0 {
			off += 360
		}
		endDeg += off - startDeg
		startDeg = off
	}

	var pts []image.Point
	step := float64(deltaDeg)
	for a := startDeg; a < endDeg+step; a += step {
		angle := math.Min(a, endDeg) * math.Pi / 180
		p := image.Point{
			X: center.X + int(math.Round(float64(axes.X)*math.Cos(angle))),
			Y: center.Y + int(math.Round(float64(axes.Y)*math.Sin(angle))),
		}
		if len(pts) == 0 || pts[len(pts)-1] != p {
			pts = append(pts, p)
		}
	}
	if len(pts) == 1 {
		pts = append(pts, pts[0])
	}
	return pts
}
