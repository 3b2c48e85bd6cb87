package session

import (
	"fmt"
	"io"
	"log"

	"pose-aligner/internal/deviation"
	"pose-aligner/internal/overlay"
	"pose-aligner/internal/pose"
	"pose-aligner/internal/vision"
	"pose-aligner/pkg/colorutil"
	"pose-aligner/pkg/geometry"
)

// CornerDrawer draws detected corners the way the vision backend renders
// its chessboard overlay.
type CornerDrawer interface {
	DrawCorners(f Frame, pattern vision.Pattern, corners []geometry.Point2D)
}

// ReferenceMenu is the command list of the reference capture loop.
var ReferenceMenu = []overlay.MenuItem{
	{Key: "F", Label: "Flip Image"},
	{Key: "I", Label: "Save Image"},
	{Key: "S", Label: "Save Reference"},
	{Key: "ESC", Label: "Escape"},
}

// ReferenceOptions configures a ReferenceCapture.
type ReferenceOptions struct {
	Detector   Detector
	Drawer     CornerDrawer
	Intrinsics *vision.Intrinsics
	Pattern    vision.Pattern
	Palette    colorutil.Palette
	Units      overlay.Units
	// Save persists the captured reference.
	Save func(pose.Reference) error
	Out  io.Writer
}

// ReferenceCapture shows the live pose and saves it as the reference on S.
type ReferenceCapture struct {
	opts    ReferenceOptions
	flipped bool

	measurement deviation.Measurement
	captured    *pose.Reference
	inverted    bool
}

// NewReferenceCapture starts with nothing captured.
func NewReferenceCapture(opts ReferenceOptions) *ReferenceCapture {
	if opts.Out == nil {
		opts.Out = io.Discard
	}
	return &ReferenceCapture{
		opts:        opts,
		measurement: deviation.Measurement{Distances: deviation.Unknown, Angles: deviation.Unknown},
	}
}

// Captured returns the latest solved pose, or nil before the first detection.
func (r *ReferenceCapture) Captured() *pose.Reference { return r.captured }

func (r *ReferenceCapture) Menu() []overlay.MenuItem { return ReferenceMenu }

func (r *ReferenceCapture) ImageTitle() string { return "ref" }

func (r *ReferenceCapture) Leave(w io.Writer) {
	fmt.Fprint(w, "Leaving data collection process...\n\n")
}

func (r *ReferenceCapture) Key(k Key) bool {
	switch {
	case k.Is('f'):
		r.flipped = !r.flipped
	case k.Is('s'):
		r.save()
	default:
		return false
	}
	return true
}

func (r *ReferenceCapture) save() {
	if r.captured == nil {
		fmt.Fprint(r.opts.Out, "No reference detected yet, nothing to save\n\n")
		return
	}
	if r.opts.Save == nil {
		return
	}
	if err := r.opts.Save(*r.captured); err != nil {
		log.Printf("reference: %v", err)
	}
}

// Frame draws the detected board with its axis and the live measurement.
func (r *ReferenceCapture) Frame(f Frame) {
	det := detect(r.opts.Detector, f, "reference")
	if det.Found {
		if det.Inverted && !r.inverted {
			log.Println("reference: The template or camera may be inverted")
		}
		r.inverted = det.Inverted

		if r.opts.Drawer != nil {
			r.opts.Drawer.DrawCorners(f, r.opts.Pattern, det.Corners)
		}
		if solved, err := pose.FromVectors(det.Rotation, det.Translation); err == nil {
			r.measurement = deviation.Measure(solved)
			r.captured = &pose.Reference{
				Corners:   append([]geometry.Point2D(nil), det.Corners...),
				Distances: solved.Translation,
				Angles:    pose.ToEuler(solved.Rotation),
			}
			drawAxis(f, det, solved, r.opts.Intrinsics, r.opts.Pattern, r.opts.Palette)
		} else {
			r.measurement = deviation.Measurement{Distances: deviation.Unknown, Angles: deviation.Unknown}
		}
	}

	if r.flipped {
		f.Flip()
	}
	overlay.Annotate(f, "Actual", r.measurement.Distances, r.measurement.Angles, r.opts.Units, r.opts.Palette, overlay.ShiftActual)
}
