package session

import (
	"fmt"
	"io"
	"log"

	"pose-aligner/internal/deviation"
	"pose-aligner/internal/overlay"
	"pose-aligner/internal/pose"
	"pose-aligner/internal/telemetry"
	"pose-aligner/internal/vision"
	"pose-aligner/pkg/colorutil"
)

// Detector finds the board in a frame and solves its pose.
type Detector interface {
	Detect(f Frame) (vision.Detection, error)
}

// Toggles are the independent display switches of the positioning loop.
type Toggles struct {
	AddInfo      bool
	Corners      bool
	Measurements bool
	Navigation   bool
	Flipped      bool
}

// DefaultToggles shows corners and measurements only.
func DefaultToggles() Toggles {
	return Toggles{Corners: true, Measurements: true}
}

// Toggle flips the switch bound to k and reports whether k is bound.
func (t *Toggles) Toggle(k Key) bool {
	switch {
	case k.Is('a'):
		t.AddInfo = !t.AddInfo
	case k.Is('c'):
		t.Corners = !t.Corners
	case k.Is('f'):
		t.Flipped = !t.Flipped
	case k.Is('m'):
		t.Measurements = !t.Measurements
	case k.Is('n'):
		t.Navigation = !t.Navigation
	default:
		return false
	}
	return true
}

// PositionMenu is the command list of the positioning loop.
var PositionMenu = []overlay.MenuItem{
	{Key: "A", Label: "Additional Info"},
	{Key: "C", Label: "Corners"},
	{Key: "F", Label: "Flip Image"},
	{Key: "I", Label: "Save Image"},
	{Key: "M", Label: "Measurements"},
	{Key: "N", Label: "Navigation"},
	{Key: "ESC", Label: "Escape"},
}

// PositionOptions configures a Positioner.
type PositionOptions struct {
	Detector   Detector
	Intrinsics *vision.Intrinsics
	// Reference may be nil, in which case every deviation is unavailable.
	Reference *pose.Reference
	Pattern   vision.Pattern
	Palette   colorutil.Palette
	Units     overlay.Units
	NavStyle  overlay.Style
	Publisher telemetry.Publisher
	Session   string
}

// Positioner compares the live board pose with the reference every frame.
type Positioner struct {
	opts    PositionOptions
	toggles Toggles
	nav     *overlay.NavigationBall

	measurement deviation.Measurement
	deviation   deviation.Deviation
	inverted    bool
	frames      uint64
}

// NewPositioner starts with every numeric value unavailable.
func NewPositioner(opts PositionOptions) *Positioner {
	if opts.Publisher == nil {
		opts.Publisher = telemetry.Nop{}
	}
	return &Positioner{
		opts:    opts,
		toggles: DefaultToggles(),
		measurement: deviation.Measurement{
			Distances: deviation.Unknown,
			Angles:    deviation.Unknown,
		},
	}
}

// Toggles returns the current display switches.
func (p *Positioner) Toggles() Toggles { return p.toggles }

// Measurement returns the last solved distances and angles.
func (p *Positioner) Measurement() deviation.Measurement { return p.measurement }

// Deviation returns the last computed deviation.
func (p *Positioner) Deviation() deviation.Deviation { return p.deviation }

func (p *Positioner) Menu() []overlay.MenuItem { return PositionMenu }

func (p *Positioner) ImageTitle() string { return "pose" }

func (p *Positioner) Key(k Key) bool { return p.toggles.Toggle(k) }

func (p *Positioner) Leave(w io.Writer) {
	fmt.Fprint(w, "Leaving position estimation process...\n\n")
}

// Frame detects the board, updates the deviation and draws the overlays
// the toggles enable. A missed detection keeps the previous values.
func (p *Positioner) Frame(f Frame) {
	p.frames++
	det := detect(p.opts.Detector, f, "position")
	palette := p.opts.Palette

	var solved *pose.Pose
	if det.Found {
		p.warnInverted(det.Inverted)
		solved = p.update(det)

		if p.toggles.Corners && p.opts.Reference != nil {
			overlay.Corners(f, p.opts.Reference.Corners, palette.Reference)
		}
		if p.toggles.Corners {
			overlay.Corners(f, det.Corners, palette.Detected)
			if p.opts.Reference != nil && p.deviation.Within(p.opts.NavStyle.Tolerance) {
				overlay.Corners(f, p.opts.Reference.Corners, palette.Matched)
			}
		}
		if p.toggles.AddInfo && solved != nil {
			drawAxis(f, det, *solved, p.opts.Intrinsics, p.opts.Pattern, palette)
		}
	}

	if p.toggles.Flipped {
		f.Flip()
	}

	if p.toggles.Measurements {
		ref := deviation.Measurement{Distances: deviation.Unknown, Angles: deviation.Unknown}
		if r := p.opts.Reference; r != nil {
			ref = deviation.Measurement{Distances: deviation.FromVector(r.Distances), Angles: deviation.FromAngles(r.Angles)}
		}
		overlay.Annotate(f, "Difference", p.deviation.Distance, p.deviation.Angle, p.opts.Units, palette, overlay.ShiftDifference)
		overlay.Annotate(f, "Actual", p.measurement.Distances, p.measurement.Angles, p.opts.Units, palette, overlay.ShiftActual)
		overlay.Annotate(f, "Reference", ref.Distances, ref.Angles, p.opts.Units, palette, overlay.ShiftReference)
	}

	if p.toggles.Navigation {
		if p.nav == nil {
			p.nav = overlay.NewNavigationBall(f.Bounds().Dy(), p.opts.NavStyle)
		}
		p.nav.Show(f, p.deviation)
	}

	if p.toggles.AddInfo && p.opts.Intrinsics != nil {
		overlay.PrincipalPoint(f, p.opts.Intrinsics.PrincipalPoint(), palette.Principal)
	}

	p.opts.Publisher.Publish(telemetry.NewSample(p.opts.Session, p.frames, det.Found, p.deviation, p.opts.NavStyle.Tolerance))
}

// update recomputes the measurement from a detection. Malformed pose data
// makes this frame's values unavailable instead of failing the loop.
func (p *Positioner) update(det vision.Detection) *pose.Pose {
	solved, err := pose.FromVectors(det.Rotation, det.Translation)
	if err != nil {
		p.measurement = deviation.Measurement{Distances: deviation.Unknown, Angles: deviation.Unknown}
		p.deviation = deviation.Deviation{}
		return nil
	}
	p.measurement = deviation.Measure(solved)
	p.deviation = deviation.Compute(p.measurement, p.opts.Reference)
	return &solved
}

func (p *Positioner) warnInverted(inverted bool) {
	if inverted && !p.inverted {
		log.Println("position: The template or camera may be inverted")
	}
	p.inverted = inverted
}

// detect runs the detector; failures count as a miss.
func detect(d Detector, f Frame, subsystem string) vision.Detection {
	if d == nil {
		return vision.Detection{}
	}
	det, err := d.Detect(f)
	if err != nil {
		log.Printf("%s: detection failed: %v", subsystem, err)
		return vision.Detection{}
	}
	if det.Found && len(det.Corners) == 0 {
		det.Found = false
	}
	return det
}

// drawAxis projects a square-sized coordinate frame from the first corner.
func drawAxis(f Frame, det vision.Detection, p pose.Pose, in *vision.Intrinsics, pattern vision.Pattern, palette colorutil.Palette) {
	if in == nil {
		return
	}
	tips := in.Project(vision.AxisPoints(pattern.SquareSize), p)
	overlay.Axis(f, det.Corners[0], tips, palette)
}
