package render

import (
	"image"
	"image/color"
	"testing"

	"github.com/stretchr/testify/assert"
)

var (
	black = color.RGBA{A: 255}
	red   = color.RGBA{R: 255, A: 255}
)

func TestArrowDrawsShaftAndBarbs(t *testing.T) {
	r := NewRecorder(200, 200)
	Arrow(r, image.Pt(0, 0), image.Pt(100, 0), red, 2, 0.1)

	lines := r.Filter("line")
	assert.Len(t, lines, 3)
	assert.Equal(t, image.Pt(0, 0), lines[0].From)
	for _, l := range lines {
		assert.Equal(t, image.Pt(100, 0), l.To)
	}
}

func TestArrowZeroTipCollapsesBarbs(t *testing.T) {
	r := NewRecorder(200, 200)
	Arrow(r, image.Pt(50, 50), image.Pt(50, 50), red, 2, 0)
	for _, l := range r.Filter("line") {
		assert.Equal(t, image.Pt(50, 50), l.From)
	}
}

func TestDashedLine(t *testing.T) {
	r := NewRecorder(200, 200)
	DashedLine(r, image.Pt(0, 10), image.Pt(60, 10), red, 1, 10, 10)
	assert.Len(t, r.Filter("line"), 3)

	r.Reset()
	DashedLine(r, image.Pt(10, 10), image.Pt(10, 10), red, 1, 10, 10)
	assert.Empty(t, r.Ops)
}

func TestRGBACanvasPrimitives(t *testing.T) {
	c := NewRGBACanvas(100, 100, black)

	c.Rectangle(image.Rect(10, 10, 20, 20), red, Filled)
	assert.Equal(t, red, c.Image().RGBAAt(15, 15))
	assert.Equal(t, black, c.Image().RGBAAt(25, 25))

	c.Line(image.Pt(0, 50), image.Pt(99, 50), red, 1)
	assert.Equal(t, red, c.Image().RGBAAt(70, 50))

	c.Circle(image.Pt(70, 20), 5, red, Filled)
	assert.Equal(t, red, c.Image().RGBAAt(70, 20))

	c.Circle(image.Pt(30, 80), 10, red, 2)
	assert.Equal(t, red, c.Image().RGBAAt(40, 80))
	assert.Equal(t, black, c.Image().RGBAAt(30, 80))
}

func TestRGBACanvasClipsOutOfBounds(t *testing.T) {
	c := NewRGBACanvas(10, 10, black)
	assert.NotPanics(t, func() {
		c.Line(image.Pt(-50, -50), image.Pt(50, 50), red, 3)
		c.Circle(image.Pt(0, 0), 30, red, Filled)
		c.Ellipse(image.Pt(5, 5), image.Pt(40, 12), 0, 360, red, Filled)
		c.Text("NA", image.Pt(-5, 200), 0.5, red, 1)
	})
}

func TestRGBACanvasText(t *testing.T) {
	c := NewRGBACanvas(100, 30, black)
	c.Text("X", image.Pt(2, 20), 0.5, red, 1)

	found := false
	for y := 0; y < 30 && !found; y++ {
		for x := 0; x < 20; x++ {
			if c.Image().RGBAAt(x, y) == red {
				found = true
				break
			}
		}
	}
	assert.True(t, found, "glyph pixels drawn")
}
