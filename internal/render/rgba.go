package render

import (
	"image"
	"image/color"
	"image/draw"
	"sort"

	"pose-aligner/pkg/geometry"

	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"
)

// RGBACanvas draws onto an in-memory image.RGBA. It needs no OpenCV; the
// posecheck panel and the overlay tests draw on it.
type RGBACanvas struct {
	img *image.RGBA
}

// NewRGBACanvas allocates a w x h canvas filled with bg.
func NewRGBACanvas(w, h int, bg color.RGBA) *RGBACanvas {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	draw.Draw(img, img.Bounds(), image.NewUniform(bg), image.Point{}, draw.Src)
	return &RGBACanvas{img: img}
}

// WrapRGBA draws directly into img.
func WrapRGBA(img *image.RGBA) *RGBACanvas {
	return &RGBACanvas{img: img}
}

// Image returns the underlying image.
func (c *RGBACanvas) Image() *image.RGBA { return c.img }

func (c *RGBACanvas) Bounds() image.Rectangle { return c.img.Bounds() }

func (c *RGBACanvas) set(x, y int, col color.RGBA) {
	if (image.Point{X: x, Y: y}).In(c.img.Bounds()) {
		c.img.SetRGBA(x, y, col)
	}
}

// Line draws a Bresenham line stamped with a square pen of the given width.
func (c *RGBACanvas) Line(from, to image.Point, col color.RGBA, thickness int) {
	if thickness < 1 {
		thickness = 1
	}
	x1, y1, x2, y2 := from.X, from.Y, to.X, to.Y

	dx := x2 - x1
	dy := y2 - y1
	if dx < 0 {
		dx = -dx
	}
	if dy < 0 {
		dy = -dy
	}
	sx := 1
	if x1 > x2 {
		sx = -1
	}
	sy := 1
	if y1 > y2 {
		sy = -1
	}
	err := dx - dy

	half := thickness / 2
	for {
		for t := -half; t <= half; t++ {
			for s := -half; s <= half; s++ {
				c.set(x1+s, y1+t, col)
			}
		}
		if x1 == x2 && y1 == y2 {
			break
		}
		e2 := 2 * err
		if e2 > -dy {
			err -= dy
			x1 += sx
		}
		if e2 < dx {
			err += dx
			y1 += sy
		}
	}
}

// Circle draws a ring of the given width centered on the radius, or a disc
// when thickness is Filled.
func (c *RGBACanvas) Circle(center image.Point, radius int, col color.RGBA, thickness int) {
	r := float64(radius)
	outer, inner := r, 0.0
	if thickness != Filled {
		half := float64(max(thickness, 1)) / 2
		outer, inner = r+half, r-half
		if inner < 0 {
			inner = 0
		}
	}
	outer2, inner2 := outer*outer, inner*inner

	reach := int(outer) + 1
	for y := center.Y - reach; y <= center.Y+reach; y++ {
		for x := center.X - reach; x <= center.X+reach; x++ {
			dx := float64(x - center.X)
			dy := float64(y - center.Y)
			d2 := dx*dx + dy*dy
			if d2 <= outer2 && (thickness == Filled || d2 >= inner2) {
				c.set(x, y, col)
			}
		}
	}
}

// Ellipse draws the arc as a polyline, or fills the polygon it encloses.
func (c *RGBACanvas) Ellipse(center, axes image.Point, startDeg, endDeg float64, col color.RGBA, thickness int) {
	pts := geometry.EllipseArc(center, axes, startDeg, endDeg, 1)
	if thickness == Filled {
		c.fillPolygon(pts, col)
		return
	}
	for i := 1; i < len(pts); i++ {
		c.Line(pts[i-1], pts[i], col, thickness)
	}
}

// Rectangle outlines r, or fills it when thickness is Filled.
func (c *RGBACanvas) Rectangle(r image.Rectangle, col color.RGBA, thickness int) {
	if thickness == Filled {
		draw.Draw(c.img, r.Intersect(c.img.Bounds()), image.NewUniform(col), image.Point{}, draw.Src)
		return
	}
	tl, br := r.Min, r.Max
	tr, bl := image.Pt(br.X, tl.Y), image.Pt(tl.X, br.Y)
	c.Line(tl, tr, col, thickness)
	c.Line(tr, br, col, thickness)
	c.Line(br, bl, col, thickness)
	c.Line(bl, tl, col, thickness)
}

// Text draws s in the 7x13 bitmap face. The face has a single size, so scale
// and thickness do not change the glyphs.
func (c *RGBACanvas) Text(s string, org image.Point, _ float64, col color.RGBA, _ int) {
	d := font.Drawer{
		Dst:  c.img,
		Src:  image.NewUniform(col),
		Face: basicfont.Face7x13,
		Dot:  fixed.P(org.X, org.Y),
	}
	d.DrawString(s)
}

// fillPolygon is an even-odd scanline fill.
func (c *RGBACanvas) fillPolygon(pts []image.Point, col color.RGBA) {
	if len(pts) < 3 {
		return
	}
	minY, maxY := pts[0].Y, pts[0].Y
	for _, p := range pts {
		minY = min(minY, p.Y)
		maxY = max(maxY, p.Y)
	}

	n := len(pts)
	for y := minY; y <= maxY; y++ {
		fy := float64(y)
		var xs []float64
		for i := 0; i < n; i++ {
			p1, p2 := pts[i], pts[(i+1)%n]
			y1, y2 := float64(p1.Y), float64(p2.Y)
			if (y1 <= fy && y2 > fy) || (y2 <= fy && y1 > fy) {
				t := (fy - y1) / (y2 - y1)
				xs = append(xs, float64(p1.X)+t*float64(p2.X-p1.X))
			}
		}
		sort.Float64s(xs)
		for i := 0; i+1 < len(xs); i += 2 {
			for x := int(xs[i]); x <= int(xs[i+1]); x++ {
				c.set(x, y, col)
			}
		}
	}
}
