// Command posecheck measures the board pose in a still image against saved
// calibration and reference data and prints the deviation.
package main

import (
	"flag"
	"fmt"
	"image"
	_ "image/jpeg"
	"image/png"
	"os"
	"strings"

	"pose-aligner/internal/config"
	"pose-aligner/internal/deviation"
	"pose-aligner/internal/frame"
	"pose-aligner/internal/overlay"
	"pose-aligner/internal/render"
	"pose-aligner/internal/session"
	"pose-aligner/internal/store"
	"pose-aligner/internal/telemetry"
	"pose-aligner/internal/vision/opencv"
	"pose-aligner/pkg/colorutil"

	_ "golang.org/x/image/tiff"
)

func main() {
	configPath := flag.String("config", config.DefaultPath, "Path to the settings file")
	calPath := flag.String("cal", "", "Path to calibration data")
	refPath := flag.String("ref", "", "Path to reference data (optional)")
	imgPath := flag.String("i", "", "Path to image (png, jpeg or tiff)")
	outPath := flag.String("o", "", "Write the annotated image here")
	panelPath := flag.String("panel", "", "Write a PNG with the navigation ball and measurement blocks here")
	toggles := flag.String("show", "n", "Overlay keys to toggle on top of the defaults (a, c, f, m, n)")
	flag.Parse()

	if *calPath == "" || *imgPath == "" {
		fmt.Println("Usage: posecheck -cal <calibration> -i <image> [-ref <reference>] [-o <out.jpg>] [-panel <out.png>] [-show an]")
		os.Exit(1)
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}

	cal, err := store.LoadCalibration(*calPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load calibration: %v\n", err)
		os.Exit(1)
	}
	in, err := cal.Intrinsics()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Calibration unusable: %v\n", err)
		os.Exit(1)
	}

	opts := session.PositionOptions{
		Intrinsics: in,
		Pattern:    cfg.Pattern(),
		Palette:    colorutil.DefaultPalette(),
		Units:      cfg.Units(),
		NavStyle:   cfg.NavStyle(colorutil.DefaultPalette()),
		Publisher:  telemetry.Nop{},
		Session:    telemetry.NewSessionID(),
	}
	if *refPath != "" {
		ref, err := store.LoadReference(*refPath)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Failed to load reference: %v\n", err)
			os.Exit(1)
		}
		opts.Reference = ref.Pose()
	}
	opts.Detector = opencv.New(opts.Pattern, in, cfg.TermMaxIter, cfg.TermEpsilon)

	img, err := decode(*imgPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to read image: %v\n", err)
		os.Exit(1)
	}
	f, err := frame.FromImage(img)
	if err != nil {
		fmt.Fprintf(os.Stderr, "%v\n", err)
		os.Exit(1)
	}
	defer f.Close()

	p := session.NewPositioner(opts)
	for _, r := range strings.ToLower(*toggles) {
		p.Key(session.Key(r))
	}
	p.Frame(f)

	m := p.Measurement()
	dev := p.Deviation()
	fmt.Printf("=== %s (%dx%d) ===\n", *imgPath, img.Bounds().Dx(), img.Bounds().Dy())
	printTriple("Actual distance", m.Distances, cfg.DistanceUnit)
	printTriple("Actual angle", m.Angles, cfg.AngleUnit)
	if opts.Reference != nil {
		printTriple("Distance deviation", dev.Distance, cfg.DistanceUnit)
		printTriple("Angle deviation", dev.Angle, cfg.AngleUnit)
		fmt.Printf("Aligned (tolerance %g): %v\n", cfg.Tolerance, dev.Aligned(cfg.Tolerance))
	}

	if *panelPath != "" {
		if err := writePanel(*panelPath, m, dev, cfg, opts.Palette); err != nil {
			fmt.Fprintf(os.Stderr, "Failed to write panel: %v\n", err)
			os.Exit(1)
		}
		fmt.Printf("Panel written to %s\n", *panelPath)
	}

	if *outPath != "" {
		if err := f.Save(*outPath); err != nil {
			fmt.Fprintf(os.Stderr, "%v\n", err)
			os.Exit(1)
		}
		fmt.Printf("Annotated image written to %s\n", *outPath)
	}
}

func decode(path string) (image.Image, error) {
	fh, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer fh.Close()
	img, _, err := image.Decode(fh)
	return img, err
}

// writePanel draws the overlays on a blank canvas, without the camera image.
func writePanel(path string, m deviation.Measurement, dev deviation.Deviation, cfg *config.Config, palette colorutil.Palette) error {
	const w, h = 1280, 720
	c := render.NewRGBACanvas(w, h, cfg.NavBallBackground)
	overlay.Annotate(c, "Difference", dev.Distance, dev.Angle, cfg.Units(), palette, overlay.ShiftDifference)
	overlay.Annotate(c, "Actual", m.Distances, m.Angles, cfg.Units(), palette, overlay.ShiftActual)
	overlay.NewNavigationBall(h, cfg.NavStyle(palette)).Show(c, dev)

	fh, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := png.Encode(fh, c.Image()); err != nil {
		fh.Close()
		return err
	}
	return fh.Close()
}

func printTriple(label string, t deviation.Triple, unit string) {
	parts := make([]string, 0, len(deviation.Axes))
	for _, a := range deviation.Axes {
		parts = append(parts, fmt.Sprintf("%s=%s", strings.ToLower(a.String()), t.At(a).Format("NA")))
	}
	fmt.Printf("%-20s %s %s\n", label+":", strings.Join(parts, ", "), unit)
}
