package overlay

import (
	"fmt"
	"image"
	"image/color"
	"math"
	"strconv"

	"pose-aligner/internal/deviation"
	"pose-aligner/internal/render"
	"pose-aligner/pkg/colorutil"
)

// Placeholder is printed in place of an unavailable value.
const Placeholder = "NA"

// Measurement block layout.
const (
	textMargin    = 30
	textScale     = 0.7
	textThickness = 2
	textRowStep   = 30
)

// Horizontal shifts of the three measurement blocks on the positioning screen.
const (
	ShiftActual     = 0
	ShiftReference  = 400
	ShiftDifference = 800
)

// Units names the units printed after distances and angles.
type Units struct {
	Distance string
	Angle    string
}

// Annotate writes a titled block of per-axis distance and angle values:
// one row per axis, "x=12.5 mm, r=3.21 deg". Unavailable values print as
// Placeholder.
func Annotate(c render.Canvas, title string, distances, angles deviation.Triple, units Units, palette colorutil.Palette, xShift int) {
	x := textMargin + xShift
	c.Text(title, image.Pt(x, textMargin), textScale, palette.Text, textThickness)

	distLabels := [3]string{"x", "y", "z"}
	angleLabels := [3]string{"r", "p", "y"}
	colors := [3]color.RGBA{palette.AxisX, palette.AxisY, palette.AxisZ}

	for i := range distLabels {
		row := fmt.Sprintf("%s=%s %s, %s=%s %s",
			distLabels[i], formatRounded(distances[i]), units.Distance,
			angleLabels[i], formatRounded(angles[i]), units.Angle)
		c.Text(row, image.Pt(x, 2*textMargin+i*textRowStep), textScale, colors[i], textThickness)
	}
}

// formatRounded rounds to two decimals and prints the shortest form, so 1.5
// prints as "1.5" and 2 as "2".
func formatRounded(s deviation.Scalar) string {
	v, ok := s.Value()
	if !ok {
		return Placeholder
	}
	r := math.Round(v*100) / 100
	if r == 0 { // -0 prints as "-0"
		r = 0
	}
	return strconv.FormatFloat(r, 'f', -1, 64)
}

// MenuItem is one "[K] Label" line of a command menu.
type MenuItem struct {
	Key   string
	Label string
}

// Menu layout.
const (
	menuRightInset = 200
	menuLineHeight = 30
	menuScale      = 0.6
)

// Menu draws items in the bottom-right corner, the last item nearest the bottom.
func Menu(c render.Canvas, items []MenuItem, col color.RGBA) {
	b := c.Bounds()
	top := b.Dy() - len(items)*menuLineHeight
	for i, it := range items {
		c.Text(fmt.Sprintf("[%s] %s", it.Key, it.Label),
			image.Pt(b.Dx()-menuRightInset, top+i*menuLineHeight), menuScale, col, 1)
	}
}
