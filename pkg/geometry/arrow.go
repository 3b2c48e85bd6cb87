package geometry

import (
	"image"
	"math"
)

// ArrowHead returns the two barb endpoints of an arrow drawn from `from` to
// `to`. Each barb leaves the tip at 45 degrees to the shaft and is
// tipLength times the shaft length long, the same construction OpenCV's
// arrowedLine uses.
func ArrowHead(from, to image.Point, tipLength float64) (left, right image.Point) {
	size := PixelDistance(from, to) * tipLength
	angle := math.Atan2(float64(from.Y-to.Y), float64(from.X-to.X))

	barb := func(a float64) image.Point {
		return image.Point{
			X: to.X + int(math.Round(size*math.Cos(a))),
			Y: to.Y + int(math.Round(size*math.Sin(a))),
		}
	}
	return barb(angle + math.Pi/4), barb(angle - math.Pi/4)
}

// TipRatio converts a fixed barb length in pixels into the proportional tip
// length of an arrow from `from` to `to`. A zero-length shaft yields 0.
func TipRatio(from, to image.Point, tipPixels float64) float64 {
	length := PixelDistance(from, to)
	if length == 0 {
		return 0
	}
	return tipPixels / length
}
