package app

import (
	"context"
	"fmt"
	"image"
	"io"
	"os"
	"path/filepath"
	"time"

	"pose-aligner/internal/capture"
	"pose-aligner/internal/config"
	"pose-aligner/internal/overlay"
	"pose-aligner/internal/pose"
	"pose-aligner/internal/session"
	"pose-aligner/internal/store"
	"pose-aligner/internal/telemetry"
	"pose-aligner/internal/vision"
	"pose-aligner/internal/vision/opencv"
	"pose-aligner/pkg/colorutil"
	"pose-aligner/ui/window"

	"github.com/pkg/errors"
)

var (
	positionStart = []overlay.MenuItem{
		{Key: "P", Label: "Position"},
		{Key: "ESC", Label: "Escape"},
	}
	referenceStart = []overlay.MenuItem{
		{Key: "R", Label: "Reference"},
		{Key: "ESC", Label: "Escape"},
	}
)

// Live runs sessions on a real camera shown in an OpenCV window.
type Live struct {
	Config    *config.Config
	Palette   colorutil.Palette
	Publisher telemetry.Publisher
	// Ask reads an answer from the operator console.
	Ask func(prompt string) (string, error)
	Out io.Writer
	Now func() time.Time
}

func (l *Live) now() time.Time {
	if l.Now != nil {
		return l.Now()
	}
	return time.Now()
}

func (l *Live) namer() store.Namer {
	return store.Namer{Dir: l.Config.DataDir, Pattern: l.Config.PatternName, Now: l.Now}
}

// DetectCameras probes the device indexes.
func (l *Live) DetectCameras() []int {
	return capture.DetectIndexes()
}

func (l *Live) run(ctx context.Context, camera int, mode session.Mode, start session.Key, startMenu []overlay.MenuItem) error {
	cam, err := capture.Open(camera, l.Config.FrameWidth, l.Config.FrameHeight)
	if err != nil {
		return err
	}
	defer cam.Close()

	win := window.New(l.Config.PatternName, l.Config.WindowWidth, l.Config.WindowHeight)
	defer win.Close()

	m := session.New(session.Config{
		Events:    session.NewLiveEvents(cam, win),
		Display:   win,
		Mode:      mode,
		StartKey:  start,
		IdleMenu:  startMenu,
		MenuColor: l.Palette.Text,
		Images:    l.namer(),
		Out:       l.Out,
	})
	return m.Run(ctx)
}

// Position compares the live pose against ref until the operator escapes.
func (l *Live) Position(ctx context.Context, camera int, cal *store.Calibration, ref *store.Reference) error {
	in, err := cal.Intrinsics()
	if err != nil {
		return err
	}
	pattern := l.Config.Pattern()
	if ref.Pattern.Size() > 0 && ref.Pattern.Size() != pattern.Size() {
		return errors.Errorf("reference was taken with a %dx%d board, configured board is %dx%d",
			ref.Pattern.Rows, ref.Pattern.Cols, pattern.Rows, pattern.Cols)
	}
	pub := l.Publisher
	if pub == nil {
		pub = telemetry.Nop{}
	}
	mode := session.NewPositioner(session.PositionOptions{
		Detector:   opencv.New(pattern, in, l.Config.TermMaxIter, l.Config.TermEpsilon),
		Intrinsics: in,
		Reference:  ref.Pose(),
		Pattern:    pattern,
		Palette:    l.Palette,
		Units:      l.Config.Units(),
		NavStyle:   l.Config.NavStyle(l.Palette),
		Publisher:  pub,
		Session:    telemetry.NewSessionID(),
	})
	return l.run(ctx, camera, mode, 'p', positionStart)
}

// Reference measures the board pose and saves it on request.
func (l *Live) Reference(ctx context.Context, camera int, cal *store.Calibration) error {
	in, err := cal.Intrinsics()
	if err != nil {
		return err
	}
	pattern := l.Config.Pattern()
	backend := opencv.New(pattern, in, l.Config.TermMaxIter, l.Config.TermEpsilon)
	mode := session.NewReferenceCapture(session.ReferenceOptions{
		Detector:   backend,
		Drawer:     backend,
		Intrinsics: in,
		Pattern:    pattern,
		Palette:    l.Palette,
		Units:      l.Config.Units(),
		Save:       l.saveReference,
		Out:        l.Out,
	})
	return l.run(ctx, camera, mode, 'r', referenceStart)
}

func (l *Live) saveReference(ref pose.Reference) error {
	sr, err := store.NewReference(ref, l.Config.Pattern(), l.now())
	if err != nil {
		return err
	}
	path := l.namer().Path("ref", store.Extension)
	if err := store.Save(path, sr); err != nil {
		return err
	}
	fmt.Fprintf(l.Out, "Reference data has been saved as %s\n\n", path)
	return nil
}

// Calibration collects board views and calibrates the camera.
func (l *Live) Calibration(ctx context.Context, camera int) error {
	pattern := l.Config.Pattern()
	mode := session.NewCalibrationCollector(session.CalibrationOptions{
		Calibrator: opencv.New(pattern, nil, l.Config.TermMaxIter, l.Config.TermEpsilon),
		Pattern:    pattern,
		Ask:        l.Ask,
		Save:       l.saveCalibration,
		Visualize:  l.writeReport,
		Out:        l.Out,
	})
	return l.run(ctx, camera, mode, 0, nil)
}

func (l *Live) saveCalibration(cal *vision.Calibration, samples []vision.Sample, size image.Point) error {
	sc := store.NewCalibration(cal, samples, size, l.Config.Pattern(), l.now())
	path := l.namer().Path("cal", store.Extension)
	if err := store.Save(path, sc); err != nil {
		return err
	}
	fmt.Fprintf(l.Out, "Calibration data has been saved as %s\n\n", path)
	return nil
}

// writeReport renders the coverage and error charts next to the data files.
func (l *Live) writeReport(r *vision.Report) error {
	n := l.namer()
	for _, chart := range []struct {
		title string
		write func(io.Writer) error
	}{
		{"coverage", r.WriteCoveragePNG},
		{"errors", r.WriteErrorsPNG},
	} {
		path := n.Path(chart.title, "png")
		if err := writeFile(path, chart.write); err != nil {
			return err
		}
		fmt.Fprintf(l.Out, "Chart has been saved as %s\n", path)
	}
	fmt.Fprintln(l.Out)
	return nil
}

func writeFile(path string, write func(io.Writer) error) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return errors.Wrap(err, "creating chart directory")
	}
	f, err := os.Create(path)
	if err != nil {
		return errors.Wrap(err, "creating chart")
	}
	if err := write(f); err != nil {
		f.Close()
		return errors.Wrapf(err, "rendering %s", path)
	}
	return f.Close()
}
