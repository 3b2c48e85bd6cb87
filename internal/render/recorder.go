package render

import (
	"fmt"
	"image"
	"image/color"
)

// Op is one recorded drawing call.
type Op struct {
	Kind      string // "line", "circle", "ellipse", "rect" or "text"
	From, To  image.Point
	Center    image.Point
	Axes      image.Point
	Radius    int
	Start     float64
	End       float64
	Rect      image.Rectangle
	Text      string
	Scale     float64
	Color     color.RGBA
	Thickness int
}

func (o Op) String() string {
	switch o.Kind {
	case "line":
		return fmt.Sprintf("line %v-%v", o.From, o.To)
	case "circle":
		return fmt.Sprintf("circle %v r=%d", o.Center, o.Radius)
	case "ellipse":
		return fmt.Sprintf("ellipse %v %v %.0f..%.0f", o.Center, o.Axes, o.Start, o.End)
	case "rect":
		return fmt.Sprintf("rect %v", o.Rect)
	default:
		return fmt.Sprintf("text %q at %v", o.Text, o.From)
	}
}

// Recorder is a Canvas that records calls instead of drawing. The session and
// overlay tests use it to check what was rendered.
type Recorder struct {
	Size image.Point
	Ops  []Op
}

// NewRecorder returns a recorder reporting w x h bounds.
func NewRecorder(w, h int) *Recorder {
	return &Recorder{Size: image.Pt(w, h)}
}

func (r *Recorder) Bounds() image.Rectangle { return image.Rectangle{Max: r.Size} }

func (r *Recorder) Line(from, to image.Point, c color.RGBA, thickness int) {
	r.Ops = append(r.Ops, Op{Kind: "line", From: from, To: to, Color: c, Thickness: thickness})
}

func (r *Recorder) Circle(center image.Point, radius int, c color.RGBA, thickness int) {
	r.Ops = append(r.Ops, Op{Kind: "circle", Center: center, Radius: radius, Color: c, Thickness: thickness})
}

func (r *Recorder) Ellipse(center, axes image.Point, startDeg, endDeg float64, c color.RGBA, thickness int) {
	r.Ops = append(r.Ops, Op{Kind: "ellipse", Center: center, Axes: axes, Start: startDeg, End: endDeg, Color: c, Thickness: thickness})
}

func (r *Recorder) Rectangle(rect image.Rectangle, c color.RGBA, thickness int) {
	r.Ops = append(r.Ops, Op{Kind: "rect", Rect: rect, Color: c, Thickness: thickness})
}

func (r *Recorder) Text(s string, org image.Point, scale float64, c color.RGBA, thickness int) {
	r.Ops = append(r.Ops, Op{Kind: "text", Text: s, From: org, Scale: scale, Color: c, Thickness: thickness})
}

// Texts returns every drawn string in order.
func (r *Recorder) Texts() []string {
	var out []string
	for _, op := range r.Ops {
		if op.Kind == "text" {
			out = append(out, op.Text)
		}
	}
	return out
}

// Filter returns the ops of the given kind.
func (r *Recorder) Filter(kind string) []Op {
	var out []Op
	for _, op := range r.Ops {
		if op.Kind == kind {
			out = append(out, op)
		}
	}
	return out
}

// Reset drops all recorded ops.
func (r *Recorder) Reset() { r.Ops = r.Ops[:0] }
