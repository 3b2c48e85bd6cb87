package session

import (
	"fmt"
	"image"
	"io"
	"log"
	"strconv"
	"strings"
	"time"

	"pose-aligner/internal/overlay"
	"pose-aligner/internal/vision"
	"pose-aligner/pkg/geometry"
)

// CollectKeyWait is the key wait while collecting calibration views, which
// also spaces the collected samples apart.
const CollectKeyWait = 200 * time.Millisecond

// Calibrator finds board corners and solves the camera model.
type Calibrator interface {
	CornerDrawer
	// FindCorners returns the refined corners, or nil when the board is
	// not visible.
	FindCorners(f Frame, pattern vision.Pattern) ([]geometry.Point2D, error)
	Calibrate(samples []vision.Sample, size image.Point) (*vision.Calibration, error)
}

var (
	// CalibrationMenu is the command list of the calibration loop.
	CalibrationMenu = []overlay.MenuItem{
		{Key: "C", Label: "Calibration"},
		{Key: "D", Label: "Delete points"},
		{Key: "S", Label: "Save Calibration"},
		{Key: "V", Label: "Visualize Data"},
		{Key: "ESC", Label: "Escape"},
	}
	collectMenu = []overlay.MenuItem{{Key: "ESC", Label: "Escape"}}
)

// CalibrationOptions configures a CalibrationCollector.
type CalibrationOptions struct {
	Calibrator Calibrator
	Pattern    vision.Pattern
	// Ask prompts the operator and returns the typed line.
	Ask       func(prompt string) (string, error)
	Save      func(cal *vision.Calibration, samples []vision.Sample, size image.Point) error
	Visualize func(*vision.Report) error
	Out       io.Writer
}

// CalibrationCollector gathers board views and calibrates the camera.
type CalibrationCollector struct {
	opts       CalibrationOptions
	collecting bool
	samples    []vision.Sample
	size       image.Point
	cal        *vision.Calibration
}

// NewCalibrationCollector starts with no samples.
func NewCalibrationCollector(opts CalibrationOptions) *CalibrationCollector {
	if opts.Out == nil {
		opts.Out = io.Discard
	}
	return &CalibrationCollector{opts: opts}
}

// Samples returns the collected views.
func (c *CalibrationCollector) Samples() []vision.Sample { return c.samples }

// Calibration returns the latest result, or nil.
func (c *CalibrationCollector) Calibration() *vision.Calibration { return c.cal }

// Collecting reports whether views are being gathered.
func (c *CalibrationCollector) Collecting() bool { return c.collecting }

func (c *CalibrationCollector) Menu() []overlay.MenuItem {
	if c.collecting {
		return collectMenu
	}
	return CalibrationMenu
}

func (c *CalibrationCollector) KeyWait() time.Duration {
	if c.collecting {
		return CollectKeyWait
	}
	return 0
}

// Frame records the frame size and, while collecting, every view in which
// the board is found.
func (c *CalibrationCollector) Frame(f Frame) {
	if c.size == (image.Point{}) {
		c.size = f.Bounds().Size()
	}
	if !c.collecting {
		return
	}
	corners, err := c.opts.Calibrator.FindCorners(f, c.opts.Pattern)
	if err != nil {
		log.Printf("calibration: detection failed: %v", err)
		return
	}
	if len(corners) == 0 {
		return
	}
	c.samples = append(c.samples, vision.Sample{Object: c.opts.Pattern.ObjectPoints(), Image: corners})
	c.opts.Calibrator.DrawCorners(f, c.opts.Pattern, corners)
}

func (c *CalibrationCollector) Key(k Key) bool {
	if c.collecting {
		if k != KeyEsc {
			return false
		}
		fmt.Fprint(c.opts.Out, "Leaving data collection process...\n\n")
		c.collecting = false
		c.calibrate()
		return true
	}

	switch {
	case k.Is('c'):
		c.collecting = true
	case k.Is('d'):
		if c.deleteSample() {
			c.calibrate()
		}
	case k.Is('s'):
		c.save()
	case k.Is('v'):
		c.visualize()
	default:
		return false
	}
	return true
}

func (c *CalibrationCollector) calibrate() {
	c.cal = nil
	if len(c.samples) == 0 {
		fmt.Fprint(c.opts.Out, "No points to perform camera calibration\n\n")
		return
	}
	fmt.Fprint(c.opts.Out, "Calibrating the camera...\n\n")
	cal, err := c.opts.Calibrator.Calibrate(c.samples, c.size)
	if err != nil {
		log.Printf("calibration: %v", err)
		return
	}
	c.cal = cal
	fmt.Fprintf(c.opts.Out, "Camera has been calibrated, RMS %.4f px\n\n", cal.RMS)
}

// deleteSample asks for a 1-based sample index and removes that sample.
func (c *CalibrationCollector) deleteSample() bool {
	if c.opts.Ask == nil {
		return false
	}
	line, err := c.opts.Ask("Enter image index to delete: ")
	if err != nil {
		log.Printf("calibration: %v", err)
		return false
	}
	idx, err := strconv.Atoi(strings.TrimSpace(line))
	if err != nil {
		fmt.Fprint(c.opts.Out, "Invalid index. Please enter a valid integer\n\n")
		return false
	}
	if idx < 1 || idx > len(c.samples) {
		fmt.Fprintf(c.opts.Out, "Index %d is out of range\n\n", idx)
		return false
	}
	c.samples = append(c.samples[:idx-1], c.samples[idx:]...)
	fmt.Fprintf(c.opts.Out, "Object and image points with index %d have been deleted\n\n", idx)
	return true
}

func (c *CalibrationCollector) save() {
	if c.cal == nil {
		fmt.Fprint(c.opts.Out, "No calibration to save\n\n")
		return
	}
	if c.opts.Save == nil {
		return
	}
	if err := c.opts.Save(c.cal, c.samples, c.size); err != nil {
		log.Printf("calibration: %v", err)
	}
}

func (c *CalibrationCollector) visualize() {
	if c.cal == nil {
		fmt.Fprint(c.opts.Out, "No re-projection errors to visualize\n\n")
		return
	}
	report, err := vision.NewReport(c.samples, c.cal, c.size.X, c.size.Y)
	if err != nil {
		log.Printf("calibration: %v", err)
		return
	}
	report.Print(c.opts.Out)
	if c.opts.Visualize == nil {
		return
	}
	if err := c.opts.Visualize(report); err != nil {
		log.Printf("calibration: %v", err)
	}
}
