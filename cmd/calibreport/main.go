// Command calibreport prints the quality summary of saved calibration data
// and renders its coverage and re-projection error charts.
package main

import (
	"flag"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"pose-aligner/internal/store"
	"pose-aligner/internal/vision"
)

func main() {
	calPath := flag.String("cal", "", "Path to calibration data")
	outDir := flag.String("o", "", "Directory for the chart PNGs (no charts if empty)")
	flag.Parse()

	if *calPath == "" {
		fmt.Println("Usage: calibreport -cal <calibration> [-o <dir>]")
		os.Exit(1)
	}

	saved, err := store.LoadCalibration(*calPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load calibration: %v\n", err)
		os.Exit(1)
	}
	cal, samples, err := saved.Restore()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to restore calibration: %v\n", err)
		os.Exit(1)
	}

	fmt.Printf("=== %s ===\n", filepath.Base(*calPath))
	fmt.Printf("Pattern: %dx%d, square %g\n", saved.Pattern.Rows, saved.Pattern.Cols, saved.Pattern.SquareSize)
	fmt.Printf("Image size: %dx%d\n", saved.ImageWidth, saved.ImageHeight)
	fmt.Printf("RMS: %.4f px\n", saved.RMS)
	for _, row := range saved.CameraMatrix {
		fmt.Printf("  %10.3f %10.3f %10.3f\n", row[0], row[1], row[2])
	}
	fmt.Printf("Distortion: %v\n", saved.Distortion)

	if len(samples) == 0 {
		fmt.Println("\nNo samples stored with this calibration")
		return
	}

	report, err := vision.NewReport(samples, cal, saved.ImageWidth, saved.ImageHeight)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Report failed: %v\n", err)
		os.Exit(1)
	}
	fmt.Println()
	report.Print(os.Stdout)

	if *outDir == "" {
		return
	}
	if err := os.MkdirAll(*outDir, 0o755); err != nil {
		fmt.Fprintf(os.Stderr, "%v\n", err)
		os.Exit(1)
	}
	base := strings.TrimSuffix(filepath.Base(*calPath), filepath.Ext(*calPath))
	for name, write := range map[string]func(io.Writer) error{
		"coverage": report.WriteCoveragePNG,
		"errors":   report.WriteErrorsPNG,
	} {
		path := filepath.Join(*outDir, base+"_"+name+".png")
		if err := writePNG(path, write); err != nil {
			fmt.Fprintf(os.Stderr, "Failed to write %s: %v\n", path, err)
			os.Exit(1)
		}
		fmt.Printf("Wrote %s\n", path)
	}
}

func writePNG(path string, write func(io.Writer) error) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := write(f); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}
