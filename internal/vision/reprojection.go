package vision

import (
	"fmt"
	"math"

	"pose-aligner/internal/pose"
	"pose-aligner/pkg/geometry"

	"github.com/golang/geo/r3"
	"gonum.org/v1/gonum/stat"
)

// Sample is one calibration view: the board corners in board coordinates and
// where they were detected in the image.
type Sample struct {
	Object []r3.Vector
	Image  []geometry.Point2D
}

// Calibration is the result of calibrating a camera from a set of samples.
type Calibration struct {
	Intrinsics *Intrinsics
	RMS        float64
	Views      []pose.Pose // one per sample
}

// ReprojectionError is the L2 norm of the residual between detected and
// projected points divided by the point count.
func ReprojectionError(detected, projected []geometry.Point2D) float64 {
	if len(detected) == 0 || len(detected) != len(projected) {
		return math.NaN()
	}
	var sum float64
	for i := range detected {
		d := detected[i].Sub(projected[i])
		sum += d.X*d.X + d.Y*d.Y
	}
	return math.Sqrt(sum) / float64(len(projected))
}

// ReprojectionErrors projects each sample through its solved view and
// returns the per-sample error.
func ReprojectionErrors(samples []Sample, cal *Calibration) ([]float64, error) {
	if cal == nil || cal.Intrinsics == nil {
		return nil, fmt.Errorf("no calibration")
	}
	if len(cal.Views) != len(samples) {
		return nil, fmt.Errorf("%d views for %d samples", len(cal.Views), len(samples))
	}
	errs := make([]float64, len(samples))
	for i, s := range samples {
		errs[i] = ReprojectionError(s.Image, cal.Intrinsics.Project(s.Object, cal.Views[i]))
	}
	return errs, nil
}

// SolveViews recovers the per-sample pose for known intrinsics.
func SolveViews(samples []Sample, in *Intrinsics) ([]pose.Pose, error) {
	views := make([]pose.Pose, len(samples))
	for i, s := range samples {
		p, err := SolvePlanar(s.Object, s.Image, in)
		if err != nil {
			return nil, fmt.Errorf("sample %d: %w", i+1, err)
		}
		views[i] = p
	}
	return views, nil
}

// ErrorStats summarizes per-sample reprojection errors.
type ErrorStats struct {
	Mean         float64
	StdDev       float64
	OutlierLimit float64 // mean + 2 standard deviations
	Max          float64
}

// Summarize computes ErrorStats using the population standard deviation.
func Summarize(errs []float64) ErrorStats {
	if len(errs) == 0 {
		return ErrorStats{}
	}
	mean, std := stat.PopMeanStdDev(errs, nil)
	maxErr := errs[0]
	for _, e := range errs[1:] {
		maxErr = math.Max(maxErr, e)
	}
	return ErrorStats{Mean: mean, StdDev: std, OutlierLimit: mean + 2*std, Max: maxErr}
}

// Outliers returns the 1-based indexes of samples above the outlier limit.
func (s ErrorStats) Outliers(errs []float64) []int {
	var out []int
	for i, e := range errs {
		if e > s.OutlierLimit {
			out = append(out, i+1)
		}
	}
	return out
}

// Coverage counts the distinct whole-pixel positions hit by any detected
// corner and the share of the image area they make up, in percent.
func Coverage(samples []Sample, width, height int) (covered int, percent float64) {
	seen := make(map[[2]float64]struct{})
	for _, s := range samples {
		for _, p := range s.Image {
			seen[[2]float64{math.RoundToEven(p.X), math.RoundToEven(p.Y)}] = struct{}{}
		}
	}
	covered = len(seen)
	if width <= 0 || height <= 0 {
		return covered, 0
	}
	percent = math.Round(float64(covered)/float64(width*height)*100*1000) / 1000
	return covered, percent
}
